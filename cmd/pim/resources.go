package main

import (
	"github.com/spf13/cobra"

	"github.com/diggerhq/azure-pim/pkg/models"
)

var childResourcesCmd = &cobra.Command{
	Use:   "child-resources <scope>",
	Short: "List descendant resources you are eligible to act on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := models.NewScope(args[0])
		if err != nil {
			return err
		}
		resources, err := client.EligibleChildResources(cmd.Context(), scope)
		if err != nil {
			return err
		}
		return output(resources)
	},
}

var definitionsCmd = &cobra.Command{
	Use:   "definitions <scope>",
	Short: "List role definitions visible at a scope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := models.NewScope(args[0])
		if err != nil {
			return err
		}
		definitions, err := client.RoleDefinitions(cmd.Context(), scope)
		if err != nil {
			return err
		}
		return output(definitions)
	},
}

func init() {
	rootCmd.AddCommand(childResourcesCmd)
	rootCmd.AddCommand(definitionsCmd)
}
