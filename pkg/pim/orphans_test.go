package pim

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assignmentJSON(name, principalID, scope string) string {
	return fmt.Sprintf(`{
	  "id": "%s/providers/Microsoft.Authorization/roleAssignments/%s",
	  "name": "%s",
	  "properties": {
	    "roleDefinitionId": "/providers/Microsoft.Authorization/roleDefinitions/def",
	    "principalId": "%s",
	    "principalType": "User",
	    "scope": "%s"
	  }
	}`, scope, name, name, principalID, scope)
}

// orphanServer serves an ARM assignment listing where principal "alive"
// resolves in the directory and principal "ghost" does not.
func orphanServer(t *testing.T, deleted *[]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/getByIds"):
			w.Write([]byte(`{"value": [{"@odata.type": "#microsoft.graph.user", "id": "alive", "displayName": "Ada"}]}`))
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/roleAssignments"):
			w.Write([]byte(`{"value": [` +
				assignmentJSON("keep-me", "alive", testScope) + "," +
				assignmentJSON("ghost-assignment", "ghost", testScope) +
				`]}`))
		case r.Method == http.MethodDelete && strings.Contains(r.URL.Path, "/roleAssignments/"):
			*deleted = append(*deleted, r.URL.Path)
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func TestDeleteOrphanedRoleAssignments(t *testing.T) {
	var deleted []string
	client := newTestClient(t, orphanServer(t, &deleted))

	err := client.DeleteOrphanedRoleAssignments(context.Background(), mustScope(t, testScope), OrphanOptions{Yes: true})
	require.NoError(t, err)

	require.Len(t, deleted, 1, "only the unresolvable principal's assignment goes")
	assert.Equal(t, testScope+"/providers/Microsoft.Authorization/roleAssignments/ghost-assignment", deleted[0])
}

func TestDeleteOrphanedRoleAssignmentsDeclined(t *testing.T) {
	var deleted []string
	var asked []string
	client := newTestClient(t, orphanServer(t, &deleted))

	opts := OrphanOptions{Confirm: func(description string) bool {
		asked = append(asked, description)
		return false
	}}
	err := client.DeleteOrphanedRoleAssignments(context.Background(), mustScope(t, testScope), opts)
	require.NoError(t, err)

	assert.Empty(t, deleted, "declined deletions are skipped")
	require.Len(t, asked, 1)
	assert.Contains(t, asked[0], "ghost")
}

func TestDeleteOrphanedRoleAssignmentsExpand(t *testing.T) {
	childScope := testScope + "/resourceGroups/rg-child"
	var deleted, listed []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/eligibleChildResources"):
			w.Write([]byte(fmt.Sprintf(`{"value": [{"id": "%s", "name": "rg-child", "type": "resourcegroup"}]}`, childScope)))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/getByIds"):
			w.Write([]byte(`{"value": []}`))
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/roleAssignments"):
			listed = append(listed, r.URL.Path)
			// The inherited assignment shows up in both listings.
			w.Write([]byte(`{"value": [` + assignmentJSON("ghost-assignment", "ghost", testScope) + `]}`))
		case r.Method == http.MethodDelete && strings.Contains(r.URL.Path, "/roleAssignments/"):
			deleted = append(deleted, r.URL.Path)
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	err := client.DeleteOrphanedRoleAssignments(context.Background(), mustScope(t, testScope), OrphanOptions{Yes: true, Expand: true})
	require.NoError(t, err)

	assert.Len(t, listed, 2, "parent and eligible child are both reconciled")
	assert.Len(t, deleted, 1, "the inherited assignment is deleted once")
}

func TestDeleteOrphanedEligibleRoleAssignments(t *testing.T) {
	var removals [][]byte
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/roleEligibilityScheduleInstances"):
			assert.Equal(t, "atScope()", r.URL.Query().Get("$filter"))
			w.Write([]byte(`{"value": [` +
				instanceJSON("Reader", testScope, "sub", "alive") + "," +
				instanceJSON("Owner", testScope, "sub", "ghost") +
				`]}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/getByIds"):
			w.Write([]byte(`{"value": [{"@odata.type": "#microsoft.graph.user", "id": "alive", "displayName": "Ada"}]}`))
		case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/roleEligibilityScheduleRequests/"):
			removals = append(removals, readAll(t, r))
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	err := client.DeleteOrphanedEligibleRoleAssignments(context.Background(), mustScope(t, testScope), OrphanOptions{Yes: true})
	require.NoError(t, err)

	require.Len(t, removals, 1)
	request := decodeScheduleRequest(t, removals[0])
	assert.Equal(t, "AdminRemove", request.Properties.RequestType)
	assert.Equal(t, "ghost", request.Properties.PrincipalID)
	assert.Nil(t, request.Properties.ScheduleInfo)
}

func TestReduceDominatedBeforeRemoval(t *testing.T) {
	childScope := testScope + "/resourceGroups/rg-child"
	var removals int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/eligibleChildResources"):
			w.Write([]byte(fmt.Sprintf(`{"value": [{"id": "%s", "name": "rg-child", "type": "resourcegroup"}]}`, childScope)))
		case strings.Contains(r.URL.Path, childScope+"/providers") && strings.Contains(r.URL.Path, "/roleEligibilityScheduleInstances"):
			// The child reports the same grant scoped to itself.
			w.Write([]byte(`{"value": [` + instanceJSON("Owner", childScope, "rg-child", "ghost") + `]}`))
		case strings.Contains(r.URL.Path, "/roleEligibilityScheduleInstances"):
			w.Write([]byte(`{"value": [` + instanceJSON("Owner", testScope, "sub", "ghost") + `]}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/getByIds"):
			w.Write([]byte(`{"value": []}`))
		case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/roleEligibilityScheduleRequests/"):
			removals++
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	err := client.DeleteOrphanedEligibleRoleAssignments(context.Background(), mustScope(t, testScope), OrphanOptions{Yes: true, Expand: true})
	require.NoError(t, err)
	assert.Equal(t, 1, removals, "an inherited grant is removed at its outermost scope only")
}

func TestOrphanOptionsConfirm(t *testing.T) {
	yes := OrphanOptions{Yes: true}
	assert.True(t, yes.confirm("anything"))

	declined := OrphanOptions{Confirm: func(string) bool { return false }}
	assert.False(t, declined.confirm("anything"))

	// Yes wins over a confirm func.
	both := OrphanOptions{Yes: true, Confirm: func(string) bool { return false }}
	assert.True(t, both.confirm("anything"))
}
