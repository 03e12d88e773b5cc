package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/diggerhq/azure-pim/pkg/models"
	"github.com/diggerhq/azure-pim/pkg/pim"
)

// elevationRoles are the roles that allow removing other principals' role
// assignments; cleanup self-elevates to one of these when requested.
var elevationRoles = []models.Role{"Owner", "Role Based Access Control Administrator"}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-orphans <scope>",
	Short: "Delete role assignments whose principal no longer exists",
	Long: `Delete role assignments whose principal no longer resolves in the
directory. Plain ARM assignments are deleted directly; with --eligible,
PIM-managed eligibility grants are removed via AdminRemove requests.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		scope, err := models.NewScope(args[0])
		if err != nil {
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		expand, _ := cmd.Flags().GetBool("expand")
		eligible, _ := cmd.Flags().GetBool("eligible")
		elevate, _ := cmd.Flags().GetBool("elevate")

		if elevate {
			if err := selfElevate(ctx, scope); err != nil {
				return err
			}
		}

		opts := pim.OrphanOptions{Yes: yes, Expand: expand}
		if err := client.DeleteOrphanedRoleAssignments(ctx, scope, opts); err != nil {
			return err
		}
		if eligible {
			return client.DeleteOrphanedEligibleRoleAssignments(ctx, scope, opts)
		}
		return nil
	},
}

// selfElevate activates any eligible elevation role covering the target
// scope and waits for it to take effect before deletions start.
func selfElevate(ctx context.Context, scope models.Scope) error {
	eligible, err := client.ListEligibleRoleAssignments(ctx, nil, pim.FilterAsTarget)
	if err != nil {
		return err
	}
	active, err := client.ListActiveRoleAssignments(ctx, nil, pim.FilterAsTarget)
	if err != nil {
		return err
	}

	var toActivate models.RoleAssignmentSet
	for _, assignment := range eligible.Items() {
		if !assignment.Scope.Contains(scope) {
			continue
		}
		for _, role := range elevationRoles {
			if assignment.Role == role && !active.ContainsGrant(assignment) {
				toActivate.Insert(assignment)
			}
		}
	}
	if toActivate.IsEmpty() {
		return nil
	}

	err = client.ActivateRoleAssignmentSet(ctx, toActivate,
		"cleaning up orphaned role assignments", pim.DefaultDuration, pim.DefaultConcurrency)
	if err != nil {
		return err
	}
	return client.WaitForRoleActivation(ctx, toActivate, 5*time.Minute)
}

func init() {
	cleanupCmd.Flags().Bool("yes", false, "Automatically answer yes to all prompts")
	cleanupCmd.Flags().Bool("expand", false, "Also reconcile every eligible child scope")
	cleanupCmd.Flags().Bool("eligible", false, "Also remove orphaned PIM eligibility grants")
	cleanupCmd.Flags().Bool("elevate", false, "Self-elevate before deleting, when an elevation role is eligible")
	rootCmd.AddCommand(cleanupCmd)
}
