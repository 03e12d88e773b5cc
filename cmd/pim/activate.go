package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/diggerhq/azure-pim/pkg/models"
	"github.com/diggerhq/azure-pim/pkg/pim"
)

var vipActivate *viper.Viper

var activateCmd = &cobra.Command{
	Use:   "activate <role> <scope> <justification>",
	Short: "Activate a single eligible role",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		role, scope, justification := models.Role(args[0]), args[1], args[2]

		eligible, err := client.ListEligibleRoleAssignments(ctx, nil, pim.FilterAsTarget)
		if err != nil {
			return fmt.Errorf("unable to list eligible assignments: %w", err)
		}
		assignment, ok := eligible.Find(role, scope)
		if !ok {
			return fmt.Errorf("role not found: role:%s scope:%s", role, scope)
		}

		minutes, err := cmd.Flags().GetInt("duration")
		if err != nil {
			return err
		}
		return client.ActivateRoleAssignment(ctx, assignment, justification, time.Duration(minutes)*time.Minute)
	},
}

var activateSetCmd = &cobra.Command{
	Use:   "activate-set <justification>",
	Short: "Activate a set of roles concurrently",
	Long: `Activate a set of roles concurrently.

Roles come from repeated --role ROLE=SCOPE flags, from a JSON config file
of [{"role": ..., "scope": ...}] entries, or both.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		justification := args[0]

		set, err := buildRoleSet(cmd,
			vipActivate.GetString("config"),
			func() (models.RoleAssignmentSet, error) {
				return client.ListEligibleRoleAssignments(ctx, nil, pim.FilterAsTarget)
			})
		if err != nil {
			return err
		}

		duration := time.Duration(vipActivate.GetInt("duration")) * time.Minute
		concurrency := vipActivate.GetInt("concurrency")
		if err := client.ActivateRoleAssignmentSet(ctx, set, justification, duration, concurrency); err != nil {
			return err
		}

		if wait := vipActivate.GetDuration("wait"); wait > 0 {
			return client.WaitForRoleActivation(ctx, set, wait)
		}
		return nil
	},
}

// buildRoleSet resolves the requested (role, scope) pairs against the
// provided listing, so requests always carry the current definition ids.
func buildRoleSet(cmd *cobra.Command, configPath string, list func() (models.RoleAssignmentSet, error)) (models.RoleAssignmentSet, error) {
	type roleEntry struct {
		Role  models.Role `json:"role"`
		Scope string      `json:"scope"`
	}

	var desired []roleEntry
	pairs, err := cmd.Flags().GetStringArray("role")
	if err != nil {
		return models.RoleAssignmentSet{}, err
	}
	for _, pair := range pairs {
		role, scope, found := strings.Cut(pair, "=")
		if !found {
			return models.RoleAssignmentSet{}, fmt.Errorf("invalid ROLE=SCOPE: no `=` found in %q", pair)
		}
		desired = append(desired, roleEntry{Role: models.Role(role), Scope: scope})
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return models.RoleAssignmentSet{}, fmt.Errorf("unable to open role set config file: %w", err)
		}
		var entries []roleEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return models.RoleAssignmentSet{}, fmt.Errorf("unable to parse role set config file: %w", err)
		}
		desired = append(desired, entries...)
	}

	available, err := list()
	if err != nil {
		return models.RoleAssignmentSet{}, fmt.Errorf("unable to list assignments: %w", err)
	}

	var set models.RoleAssignmentSet
	for _, entry := range desired {
		assignment, ok := available.Find(entry.Role, entry.Scope)
		if !ok {
			return models.RoleAssignmentSet{}, fmt.Errorf("role not found: role:%s scope:%s", entry.Role, entry.Scope)
		}
		set.Insert(assignment)
	}
	return set, nil
}

func init() {
	vipActivate = viper.New()
	vipActivate.SetEnvPrefix("PIM")
	vipActivate.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vipActivate.AutomaticEnv()

	activateCmd.Flags().Int("duration", 480, "Activation duration in minutes")

	activateSetCmd.Flags().Int("duration", 480, "Activation duration in minutes")
	activateSetCmd.Flags().Int("concurrency", pim.DefaultConcurrency, "How many activation requests to issue concurrently")
	activateSetCmd.Flags().String("config", "", "Path to a JSON file listing roles to activate")
	activateSetCmd.Flags().StringArray("role", nil, "Role to activate as ROLE=SCOPE; repeat for multiple")
	activateSetCmd.Flags().Duration("wait", 0, "Wait up to this long for the roles to become active")
	vipActivate.BindPFlag("duration", activateSetCmd.Flags().Lookup("duration"))
	vipActivate.BindPFlag("concurrency", activateSetCmd.Flags().Lookup("concurrency"))
	vipActivate.BindPFlag("config", activateSetCmd.Flags().Lookup("config"))
	vipActivate.BindPFlag("wait", activateSetCmd.Flags().Lookup("wait"))

	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(activateSetCmd)
}
