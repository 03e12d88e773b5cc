package main

import (
	"github.com/spf13/cobra"

	"github.com/diggerhq/azure-pim/pkg/models"
	"github.com/diggerhq/azure-pim/pkg/pim"
)

var (
	listActive  bool
	listObjects bool
	listScope   string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List eligible or active role assignments",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var (
			assignments models.RoleAssignmentSet
			err         error
		)
		if listActive {
			assignments, err = client.ListActiveRoleAssignments(ctx, nil, pim.FilterAsTarget)
		} else {
			assignments, err = client.ListEligibleRoleAssignments(ctx, nil, pim.FilterAsTarget)
		}
		if err != nil {
			return err
		}

		if listScope != "" {
			filter, err := models.NewScope(listScope)
			if err != nil {
				return err
			}
			assignments.Retain(func(a models.RoleAssignment) bool {
				return filter.Contains(a.Scope)
			})
		}

		if listObjects {
			if assignments, err = client.AnnotateObjects(ctx, assignments); err != nil {
				return err
			}
		}
		return output(assignments)
	},
}

func init() {
	listCmd.Flags().BoolVar(&listActive, "active", false, "List active assignments instead of eligible ones")
	listCmd.Flags().BoolVar(&listObjects, "objects", false, "Resolve and attach directory objects for each principal")
	listCmd.Flags().StringVar(&listScope, "scope", "", "Only list assignments within this scope")
	rootCmd.AddCommand(listCmd)
}
