package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Role is a case-preserved role name such as "Storage Blob Data
// Contributor". Lookups compare case-insensitively at the call site.
type Role string

func (r Role) String() string {
	return string(r)
}

// RoleAssignment is a potential or active time-bound PIM grant.
// RoleDefinitionID is required to submit activation or deactivation
// requests. Object is attached lazily once the principal behind the
// assignment has been resolved in the directory.
type RoleAssignment struct {
	Role             Role    `json:"role"`
	Scope            Scope   `json:"scope"`
	ScopeName        string  `json:"scope_name,omitempty"`
	RoleDefinitionID string  `json:"-"`
	PrincipalID      string  `json:"principal_id,omitempty"`
	PrincipalType    string  `json:"principal_type,omitempty"`
	Object           *Object `json:"object,omitempty"`
}

// Compare orders assignments by role, then scope, then scope name, then
// principal, so sets of assignments have a stable total order.
func (a RoleAssignment) Compare(other RoleAssignment) int {
	if c := strings.Compare(string(a.Role), string(other.Role)); c != 0 {
		return c
	}
	if c := a.Scope.Compare(other.Scope); c != 0 {
		return c
	}
	if c := strings.Compare(a.ScopeName, other.ScopeName); c != 0 {
		return c
	}
	return strings.Compare(a.PrincipalID, other.PrincipalID)
}

// Friendly renders the assignment for log lines and prompts.
func (a RoleAssignment) Friendly() string {
	return fmt.Sprintf("%q in %q (%s)", a.Role, a.ScopeName, a.Scope)
}

// Key identifies the assignment as role@scope in error listings.
func (a RoleAssignment) Key() string {
	return fmt.Sprintf("%s@%s", a.Role, a.Scope)
}

// RoleAssignmentSet is an ordered, deduplicated collection of assignments.
// The zero value is ready to use.
type RoleAssignmentSet struct {
	items []RoleAssignment
}

func NewRoleAssignmentSet(items ...RoleAssignment) RoleAssignmentSet {
	var s RoleAssignmentSet
	for _, item := range items {
		s.Insert(item)
	}
	return s
}

func (s *RoleAssignmentSet) Insert(item RoleAssignment) bool {
	i, found := slices.BinarySearchFunc(s.items, item, RoleAssignment.Compare)
	if found {
		return false
	}
	s.items = slices.Insert(s.items, i, item)
	return true
}

func (s *RoleAssignmentSet) Extend(other RoleAssignmentSet) {
	for _, item := range other.items {
		s.Insert(item)
	}
}

func (s RoleAssignmentSet) Contains(item RoleAssignment) bool {
	_, found := slices.BinarySearchFunc(s.items, item, RoleAssignment.Compare)
	return found
}

// ContainsGrant reports whether the set holds the same role at the same
// scope, ignoring principal and display fields. Used when matching freshly
// listed active assignments against a requested set.
func (s RoleAssignmentSet) ContainsGrant(item RoleAssignment) bool {
	return slices.ContainsFunc(s.items, func(a RoleAssignment) bool {
		return a.Role == item.Role && a.Scope == item.Scope
	})
}

func (s RoleAssignmentSet) Len() int {
	return len(s.items)
}

func (s RoleAssignmentSet) IsEmpty() bool {
	return len(s.items) == 0
}

// Items returns the assignments in order. The slice is shared; callers
// must not mutate it.
func (s RoleAssignmentSet) Items() []RoleAssignment {
	return s.items
}

func (s RoleAssignmentSet) Clone() RoleAssignmentSet {
	return RoleAssignmentSet{items: slices.Clone(s.items)}
}

func (s *RoleAssignmentSet) Retain(keep func(RoleAssignment) bool) {
	s.items = slices.DeleteFunc(s.items, func(a RoleAssignment) bool {
		return !keep(a)
	})
}

// Find locates an assignment by role name and either scope path or scope
// display name, comparing case-insensitively.
func (s RoleAssignmentSet) Find(role Role, scope string) (RoleAssignment, bool) {
	wantRole := strings.ToLower(string(role))
	wantScope := strings.ToLower(scope)
	for _, a := range s.items {
		if strings.ToLower(string(a.Role)) == wantRole && strings.ToLower(a.Scope.String()) == wantScope {
			return a, true
		}
	}
	for _, a := range s.items {
		if strings.ToLower(string(a.Role)) == wantRole && strings.ToLower(a.ScopeName) == wantScope {
			return a, true
		}
	}
	return RoleAssignment{}, false
}

// ReduceDominated drops entries whose (role, principal) is already held at
// an ancestor scope within the set, keeping only the outermost grant.
func (s *RoleAssignmentSet) ReduceDominated() {
	snapshot := slices.Clone(s.items)
	s.Retain(func(a RoleAssignment) bool {
		return !slices.ContainsFunc(snapshot, func(b RoleAssignment) bool {
			return b.Role == a.Role &&
				b.PrincipalID == a.PrincipalID &&
				b.Scope != a.Scope &&
				b.Scope.Contains(a.Scope)
		})
	})
}

// Friendly renders the set as a bulleted list for error messages.
func (s RoleAssignmentSet) Friendly() string {
	lines := make([]string, 0, len(s.items))
	for _, a := range s.items {
		lines = append(lines, "* "+a.Friendly())
	}
	return strings.Join(lines, "\n")
}

// Keys lists every assignment as role@scope.
func (s RoleAssignmentSet) Keys() []string {
	keys := make([]string, 0, len(s.items))
	for _, a := range s.items {
		keys = append(keys, a.Key())
	}
	return keys
}

func (s RoleAssignmentSet) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}
