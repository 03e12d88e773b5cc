package pim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/diggerhq/azure-pim/pkg/backend"
	"github.com/diggerhq/azure-pim/pkg/models"
)

// scheduleInstance is the subset of a schedule instance entry the client
// extracts; the provider sends far more, all of it ignored.
type scheduleInstance struct {
	Properties struct {
		RoleDefinitionID   string `json:"roleDefinitionId"`
		PrincipalID        string `json:"principalId"`
		PrincipalType      string `json:"principalType"`
		ExpandedProperties struct {
			RoleDefinition struct {
				DisplayName string `json:"displayName"`
			} `json:"roleDefinition"`
			Scope struct {
				ID          string `json:"id"`
				DisplayName string `json:"displayName"`
			} `json:"scope"`
		} `json:"expandedProperties"`
	} `json:"properties"`
}

// ListEligibleRoleAssignments enumerates grants the targeted principals may
// activate. A nil scope lists tenant-wide.
func (c *Client) ListEligibleRoleAssignments(ctx context.Context, scope *models.Scope, filter ListFilter) (models.RoleAssignmentSet, error) {
	return c.listScheduleInstances(ctx, backend.OperationRoleEligibilityScheduleInstances, scope, filter)
}

// ListActiveRoleAssignments enumerates currently-in-effect grants. The call
// is issued exactly once; eventual consistency after activation is the
// concern of WaitForRoleActivation, not of this listing.
func (c *Client) ListActiveRoleAssignments(ctx context.Context, scope *models.Scope, filter ListFilter) (models.RoleAssignmentSet, error) {
	return c.listScheduleInstances(ctx, backend.OperationRoleAssignmentScheduleInstances, scope, filter)
}

func (c *Client) listScheduleInstances(ctx context.Context, operation backend.Operation, scope *models.Scope, filter ListFilter) (models.RoleAssignmentSet, error) {
	request := c.backend.Request(http.MethodGet, operation).
		WithQuery("$filter", filter.expression())
	if scope != nil {
		request = request.WithScope(*scope)
	}

	body, err := request.Send(ctx)
	if err != nil {
		return models.RoleAssignmentSet{}, fmt.Errorf("unable to list %s: %w", operation, err)
	}
	return parseRoleAssignments(body)
}

func parseRoleAssignments(body []byte) (models.RoleAssignmentSet, error) {
	var set models.RoleAssignmentSet

	var response struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return set, fmt.Errorf("unable to parse response: missing value array: %.200s", body)
	}

	for _, raw := range response.Value {
		var entry scheduleInstance
		if err := json.Unmarshal(raw, &entry); err != nil {
			return set, fmt.Errorf("unable to parse schedule instance: %w: %s", err, raw)
		}

		expanded := entry.Properties.ExpandedProperties
		if expanded.RoleDefinition.DisplayName == "" {
			return set, fmt.Errorf("no role name: %s", raw)
		}
		if expanded.Scope.ID == "" {
			return set, fmt.Errorf("no scope id: %s", raw)
		}
		if entry.Properties.RoleDefinitionID == "" {
			return set, fmt.Errorf("no role definition id: %s", raw)
		}
		scope, err := models.NewScope(expanded.Scope.ID)
		if err != nil {
			return set, fmt.Errorf("invalid scope id %q: %w", expanded.Scope.ID, err)
		}

		set.Insert(models.RoleAssignment{
			Role:             models.Role(expanded.RoleDefinition.DisplayName),
			Scope:            scope,
			ScopeName:        expanded.Scope.DisplayName,
			RoleDefinitionID: entry.Properties.RoleDefinitionID,
			PrincipalID:      entry.Properties.PrincipalID,
			PrincipalType:    entry.Properties.PrincipalType,
		})
	}
	return set, nil
}

// ListRoleAssignments lists the plain ARM role assignments at a scope,
// including inherited ones.
func (c *Client) ListRoleAssignments(ctx context.Context, scope models.Scope) ([]models.Assignment, error) {
	body, err := c.backend.Request(http.MethodGet, backend.OperationRoleAssignments).
		WithScope(scope).
		WithQuery("$filter", FilterAtScope.expression()).
		Send(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list role assignments at %s: %w", scope, err)
	}
	return models.ParseAssignments(body)
}

// RoleDefinitions fetches the role definitions visible at a scope, cached
// per scope for the cache TTL.
func (c *Client) RoleDefinitions(ctx context.Context, scope models.Scope) ([]models.Definition, error) {
	if definitions, ok := c.definitions.Get(scope); ok {
		return definitions, nil
	}

	body, err := c.backend.Request(http.MethodGet, backend.OperationRoleDefinitions).
		WithScope(scope).
		Send(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list role definitions at %s: %w", scope, err)
	}

	definitions, err := models.ParseDefinitions(body)
	if err != nil {
		return nil, err
	}
	c.definitions.Insert(scope, definitions)
	return definitions, nil
}

// RoleDefinition finds a definition by role name at a scope, comparing
// case-insensitively.
func (c *Client) RoleDefinition(ctx context.Context, scope models.Scope, role models.Role) (models.Definition, error) {
	definitions, err := c.RoleDefinitions(ctx, scope)
	if err != nil {
		return models.Definition{}, err
	}
	for _, definition := range definitions {
		if strings.EqualFold(definition.Properties.RoleName, role.String()) {
			return definition, nil
		}
	}
	return models.Definition{}, fmt.Errorf("role not found: %s at %s", role, scope)
}

// EligibleChildResources lists the descendant resources of a scope the
// current principal is eligible to act on.
func (c *Client) EligibleChildResources(ctx context.Context, scope models.Scope) ([]models.ChildResource, error) {
	body, err := c.backend.Request(http.MethodGet, backend.OperationEligibleChildResources).
		WithScope(scope).
		Send(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list eligible child resources of %s: %w", scope, err)
	}
	return models.ParseChildResources(body)
}

// AnnotateObjects resolves the principals behind the assignments and
// attaches the resulting directory objects for display and filtering.
// Assignments whose principal no longer resolves are left untouched.
func (c *Client) AnnotateObjects(ctx context.Context, set models.RoleAssignmentSet) (models.RoleAssignmentSet, error) {
	ids := make([]string, 0, set.Len())
	for _, assignment := range set.Items() {
		if assignment.PrincipalID != "" {
			ids = append(ids, assignment.PrincipalID)
		}
	}
	objects, err := c.resolver.GetObjectsByIDs(ctx, ids)
	if err != nil {
		return set, err
	}

	annotated := models.RoleAssignmentSet{}
	for _, assignment := range set.Items() {
		if object, ok := objects[assignment.PrincipalID]; ok {
			object := object
			assignment.Object = &object
		}
		annotated.Insert(assignment)
	}
	return annotated, nil
}
