package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ErrLeadingSlash is returned when constructing a Scope from a string that
// does not start with a "/".
var ErrLeadingSlash = errors.New("scope must start with a /")

// Scope is a hierarchical Azure resource path, such as a subscription, a
// resource group, or an arbitrary resource beneath one. A Scope always
// starts with a "/" and is immutable once constructed.
type Scope struct {
	path string
}

func NewScope(value string) (Scope, error) {
	if !strings.HasPrefix(value, "/") {
		return Scope{}, ErrLeadingSlash
	}
	return Scope{path: value}, nil
}

func ScopeFromSubscription(subscriptionID uuid.UUID) Scope {
	return Scope{path: fmt.Sprintf("/subscriptions/%s", subscriptionID)}
}

func ScopeFromResourceGroup(subscriptionID uuid.UUID, resourceGroup string) Scope {
	return Scope{path: fmt.Sprintf("/subscriptions/%s/resourceGroups/%s", subscriptionID, resourceGroup)}
}

func ScopeFromProvider(subscriptionID uuid.UUID, resourceGroup string, provider string) Scope {
	return Scope{path: fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/%s", subscriptionID, resourceGroup, provider)}
}

func (s Scope) String() string {
	return s.path
}

func (s Scope) IsZero() bool {
	return s.path == ""
}

// Contains reports whether other is at or beneath s. This is a structural
// prefix test over "/"-separated path segments, not an ACL check: a scope
// always contains itself, and "/a/b" contains "/a/b/c" but not "/a/bc".
func (s Scope) Contains(other Scope) bool {
	left := strings.Split(s.path, "/")
	right := strings.Split(other.path, "/")
	if len(right) < len(left) {
		return false
	}
	return slices.Equal(left, right[:len(left)])
}

// IsSubscription reports whether the scope is a subscription itself rather
// than a resource within one.
func (s Scope) IsSubscription() bool {
	return strings.HasPrefix(s.path, "/subscriptions/") && !strings.Contains(s.path, "/resourceGroups/")
}

// Subscription extracts the subscription id for scopes of the form
// "/subscriptions/<uuid>[/...]".
func (s Scope) Subscription() (uuid.UUID, bool) {
	parts := strings.Split(s.path, "/")
	if len(parts) < 3 || parts[1] != "subscriptions" {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

// Compare orders scopes lexically by path.
func (s Scope) Compare(other Scope) int {
	return strings.Compare(s.path, other.path)
}

func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.path), nil
}

func (s *Scope) UnmarshalText(data []byte) error {
	scope, err := NewScope(string(data))
	if err != nil {
		return fmt.Errorf("invalid scope %q: %w", data, err)
	}
	*s = scope
	return nil
}
