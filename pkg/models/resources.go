package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// ChildResource is a descendant resource the caller is eligible to act on.
type ChildResource struct {
	ID   Scope  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func (c ChildResource) Compare(other ChildResource) int {
	if cmp := c.ID.Compare(other.ID); cmp != 0 {
		return cmp
	}
	if cmp := strings.Compare(c.Name, other.Name); cmp != 0 {
		return cmp
	}
	return strings.Compare(c.Type, other.Type)
}

// ParseChildResources decodes an eligibleChildResources response into an
// ordered, deduplicated list.
func ParseChildResources(body []byte) ([]ChildResource, error) {
	var response struct {
		Value []ChildResource `json:"value"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("unable to parse eligible child resources: %w", err)
	}

	resources := response.Value
	slices.SortFunc(resources, ChildResource.Compare)
	return slices.CompactFunc(resources, func(a, b ChildResource) bool {
		return a.Compare(b) == 0
	}), nil
}
