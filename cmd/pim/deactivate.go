package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diggerhq/azure-pim/pkg/models"
	"github.com/diggerhq/azure-pim/pkg/pim"
)

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <role> <scope>",
	Short: "Deactivate a single active role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		role, scope := models.Role(args[0]), args[1]

		active, err := client.ListActiveRoleAssignments(ctx, nil, pim.FilterAsTarget)
		if err != nil {
			return fmt.Errorf("unable to list active assignments: %w", err)
		}
		assignment, ok := active.Find(role, scope)
		if !ok {
			return fmt.Errorf("active role not found: role:%s scope:%s", role, scope)
		}
		return client.DeactivateRoleAssignment(ctx, assignment)
	},
}

var deactivateSetCmd = &cobra.Command{
	Use:   "deactivate-set",
	Short: "Deactivate a set of active roles concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		config, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		set, err := buildRoleSet(cmd, config, func() (models.RoleAssignmentSet, error) {
			return client.ListActiveRoleAssignments(ctx, nil, pim.FilterAsTarget)
		})
		if err != nil {
			return err
		}

		concurrency, err := cmd.Flags().GetInt("concurrency")
		if err != nil {
			return err
		}
		return client.DeactivateRoleAssignmentSet(ctx, set, concurrency)
	},
}

func init() {
	deactivateSetCmd.Flags().Int("concurrency", pim.DefaultConcurrency, "How many deactivation requests to issue concurrently")
	deactivateSetCmd.Flags().String("config", "", "Path to a JSON file listing roles to deactivate")
	deactivateSetCmd.Flags().StringArray("role", nil, "Role to deactivate as ROLE=SCOPE; repeat for multiple")

	rootCmd.AddCommand(deactivateCmd)
	rootCmd.AddCommand(deactivateSetCmd)
}
