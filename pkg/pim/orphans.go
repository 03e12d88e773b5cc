package pim

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/diggerhq/azure-pim/pkg/backend"
	"github.com/diggerhq/azure-pim/pkg/models"
)

// ConfirmFunc decides whether a single orphaned entry gets deleted.
type ConfirmFunc func(description string) bool

// OrphanOptions control orphan reconciliation. With Yes set every deletion
// proceeds without prompting; otherwise Confirm is consulted per entry
// (defaulting to an interactive y/N prompt on stdin).
type OrphanOptions struct {
	Yes     bool
	Expand  bool
	Confirm ConfirmFunc
}

func (o OrphanOptions) confirm(description string) bool {
	if o.Yes {
		return true
	}
	if o.Confirm != nil {
		return o.Confirm(description)
	}
	return promptYesNo(description)
}

func promptYesNo(description string) bool {
	fmt.Fprintf(os.Stderr, "delete %s? [y/N] ", description)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// reconcileScopes returns the scope itself plus, when expansion is
// requested, every eligible descendant scope.
func (c *Client) reconcileScopes(ctx context.Context, scope models.Scope, expand bool) ([]models.Scope, error) {
	scopes := []models.Scope{scope}
	if !expand {
		return scopes, nil
	}

	children, err := c.EligibleChildResources(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		scopes = append(scopes, child.ID)
	}
	return scopes, nil
}

// DeleteOrphanedRoleAssignments removes plain ARM role assignments whose
// principal no longer resolves in the directory. An assignment is orphaned
// iff the batch directory lookup returned nothing for its principal id.
func (c *Client) DeleteOrphanedRoleAssignments(ctx context.Context, scope models.Scope, opts OrphanOptions) error {
	scopes, err := c.reconcileScopes(ctx, scope, opts.Expand)
	if err != nil {
		return err
	}

	// Assignments inherited from ancestor scopes show up in every child
	// listing; keep each one once, keyed by its resource id.
	byID := make(map[string]models.Assignment)
	var ids []string
	for _, s := range scopes {
		assignments, err := c.ListRoleAssignments(ctx, s)
		if err != nil {
			return err
		}
		for _, assignment := range assignments {
			if _, ok := byID[assignment.ID]; ok {
				continue
			}
			byID[assignment.ID] = assignment
			ids = append(ids, assignment.Properties.PrincipalID)
		}
	}

	objects, err := c.resolver.GetObjectsByIDs(ctx, ids)
	if err != nil {
		return err
	}

	for _, assignment := range byID {
		if _, ok := objects[assignment.Properties.PrincipalID]; ok {
			continue
		}

		description := fmt.Sprintf("role assignment %s (principal %s) at %s",
			assignment.Name, assignment.Properties.PrincipalID, assignment.Properties.Scope)
		if !opts.confirm(description) {
			slog.Info("skipping orphaned role assignment", "name", assignment.Name)
			continue
		}

		slog.Info("deleting orphaned role assignment",
			"name", assignment.Name,
			"principal_id", assignment.Properties.PrincipalID,
			"scope", assignment.Properties.Scope)
		_, err := c.backend.Request(http.MethodDelete, backend.OperationRoleAssignments).
			WithScope(assignment.Properties.Scope).
			WithExtra("/" + assignment.Name).
			Send(ctx)
		if err != nil {
			return fmt.Errorf("unable to delete role assignment %s: %w", assignment.Name, err)
		}
	}
	return nil
}

// DeleteOrphanedEligibleRoleAssignments removes PIM-managed eligibility
// grants whose principal no longer resolves. Unlike plain assignments,
// these are removed by submitting an AdminRemove schedule request.
func (c *Client) DeleteOrphanedEligibleRoleAssignments(ctx context.Context, scope models.Scope, opts OrphanOptions) error {
	scopes, err := c.reconcileScopes(ctx, scope, opts.Expand)
	if err != nil {
		return err
	}

	var eligible models.RoleAssignmentSet
	for _, s := range scopes {
		s := s
		set, err := c.ListEligibleRoleAssignments(ctx, &s, FilterAtScope)
		if err != nil {
			return err
		}
		eligible.Extend(set)
	}
	// A grant inherited from an ancestor scope appears once per descendant;
	// only the outermost entry needs removing.
	eligible.ReduceDominated()

	var ids []string
	for _, assignment := range eligible.Items() {
		if assignment.PrincipalID != "" {
			ids = append(ids, assignment.PrincipalID)
		}
	}
	objects, err := c.resolver.GetObjectsByIDs(ctx, ids)
	if err != nil {
		return err
	}

	for _, assignment := range eligible.Items() {
		if assignment.PrincipalID == "" {
			continue
		}
		if _, ok := objects[assignment.PrincipalID]; ok {
			continue
		}

		description := fmt.Sprintf("eligible assignment %s (principal %s)",
			assignment.Friendly(), assignment.PrincipalID)
		if !opts.confirm(description) {
			slog.Info("skipping orphaned eligible assignment", "assignment", assignment.Key())
			continue
		}

		slog.Info("deleting orphaned eligible assignment",
			"role", assignment.Role,
			"principal_id", assignment.PrincipalID,
			"scope", assignment.Scope)
		body := scheduleRequest{
			Properties: scheduleRequestProperties{
				PrincipalID:      assignment.PrincipalID,
				RoleDefinitionID: assignment.RoleDefinitionID,
				RequestType:      "AdminRemove",
			},
		}
		_, err := c.backend.Request(http.MethodPut, backend.OperationRoleEligibilityScheduleRequests).
			WithScope(assignment.Scope).
			WithExtra("/" + uuid.NewString()).
			WithBody(body).
			WithValidator(backend.ValidateActivation).
			Send(ctx)
		if err != nil {
			return fmt.Errorf("unable to remove eligible assignment %s: %w", assignment.Key(), err)
		}
	}
	return nil
}
