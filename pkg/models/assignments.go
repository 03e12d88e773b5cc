package models

import (
	"encoding/json"
	"fmt"
)

// Assignment is a plain ARM role assignment, as opposed to a PIM-managed
// time-bound RoleAssignment. These are what the orphan reconciler deletes
// directly.
type Assignment struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Type       string               `json:"type"`
	Properties AssignmentProperties `json:"properties"`
	Object     *Object              `json:"object,omitempty"`
}

type AssignmentProperties struct {
	RoleDefinitionID string `json:"roleDefinitionId"`
	PrincipalID      string `json:"principalId"`
	PrincipalType    string `json:"principalType"`
	Scope            Scope  `json:"scope"`
	Description      string `json:"description,omitempty"`
	Condition        string `json:"condition,omitempty"`
	CreatedOn        string `json:"createdOn,omitempty"`
	CreatedBy        string `json:"createdBy,omitempty"`
	UpdatedOn        string `json:"updatedOn,omitempty"`
	UpdatedBy        string `json:"updatedBy,omitempty"`
}

// ParseAssignments decodes a roleAssignments list response, requiring the
// fields every downstream consumer depends on.
func ParseAssignments(body []byte) ([]Assignment, error) {
	var response struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("unable to parse role assignment response: %w", err)
	}

	assignments := make([]Assignment, 0, len(response.Value))
	for _, raw := range response.Value {
		var assignment Assignment
		if err := json.Unmarshal(raw, &assignment); err != nil {
			return nil, fmt.Errorf("unable to parse role assignment: %w: %s", err, raw)
		}
		if assignment.ID == "" || assignment.Name == "" {
			return nil, fmt.Errorf("role assignment missing id: %s", raw)
		}
		if assignment.Properties.RoleDefinitionID == "" {
			return nil, fmt.Errorf("role assignment missing roleDefinitionId: %s", raw)
		}
		if assignment.Properties.PrincipalID == "" {
			return nil, fmt.Errorf("role assignment missing principalId: %s", raw)
		}
		assignments = append(assignments, assignment)
	}
	return assignments, nil
}
