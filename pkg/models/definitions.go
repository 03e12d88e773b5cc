package models

import (
	"encoding/json"
	"fmt"
)

// Definition is the immutable metadata of a role, fetched per scope and
// cached for the lifetime of a run.
type Definition struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Type       string               `json:"type"`
	Properties DefinitionProperties `json:"properties"`
}

type DefinitionProperties struct {
	RoleName         string       `json:"roleName"`
	Description      string       `json:"description,omitempty"`
	Type             string       `json:"type,omitempty"`
	Permissions      []Permission `json:"permissions"`
	AssignableScopes []string     `json:"assignableScopes"`
}

type Permission struct {
	Actions        []string `json:"actions,omitempty"`
	NotActions     []string `json:"notActions,omitempty"`
	DataActions    []string `json:"dataActions,omitempty"`
	NotDataActions []string `json:"notDataActions,omitempty"`
}

// ParseDefinitions decodes a roleDefinitions list response.
func ParseDefinitions(body []byte) ([]Definition, error) {
	var response struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("unable to parse role definition response: %w", err)
	}

	definitions := make([]Definition, 0, len(response.Value))
	for _, raw := range response.Value {
		var definition Definition
		if err := json.Unmarshal(raw, &definition); err != nil {
			return nil, fmt.Errorf("unable to parse role definition: %w: %s", err, raw)
		}
		if definition.ID == "" || definition.Properties.RoleName == "" {
			return nil, fmt.Errorf("role definition missing id or roleName: %s", raw)
		}
		definitions = append(definitions, definition)
	}
	return definitions, nil
}
