package pim

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diggerhq/azure-pim/pkg/models"
)

func TestParseRoleAssignments(t *testing.T) {
	body := `{"value": [` +
		instanceJSON("Reader", testScope+"/resourceGroups/rg-b", "rg-b", "p1") + "," +
		instanceJSON("Owner", testScope+"/resourceGroups/rg-a", "rg-a", "p2") +
		`]}`

	set, err := parseRoleAssignments([]byte(body))
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	items := set.Items()
	assert.Equal(t, models.Role("Owner"), items[0].Role, "entries come out ordered")
	assert.Equal(t, "rg-a", items[0].ScopeName)
	assert.Equal(t, "p2", items[0].PrincipalID)
	assert.Equal(t, "User", items[0].PrincipalType)
	assert.Equal(t, models.Role("Reader"), items[1].Role)
	assert.Contains(t, items[1].RoleDefinitionID, "/providers/Microsoft.Authorization/roleDefinitions/")
}

func TestParseRoleAssignmentsMissingFields(t *testing.T) {
	missingRole := `{"value": [{"properties": {"roleDefinitionId": "x", "expandedProperties": {"scope": {"id": "/s"}}}}]}`
	_, err := parseRoleAssignments([]byte(missingRole))
	assert.ErrorContains(t, err, "no role name")

	missingScope := `{"value": [{"properties": {"roleDefinitionId": "x", "expandedProperties": {"roleDefinition": {"displayName": "Reader"}}}}]}`
	_, err = parseRoleAssignments([]byte(missingScope))
	assert.ErrorContains(t, err, "no scope id")

	missingDefinition := `{"value": [{"properties": {"expandedProperties": {"roleDefinition": {"displayName": "Reader"}, "scope": {"id": "/s"}}}}]}`
	_, err = parseRoleAssignments([]byte(missingDefinition))
	assert.ErrorContains(t, err, "no role definition id")

	_, err = parseRoleAssignments([]byte(`not json`))
	assert.ErrorContains(t, err, "missing value array")
}

func TestListEligibleRoleAssignments(t *testing.T) {
	var gotPath, gotFilter string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFilter = r.URL.Query().Get("$filter")
		w.Write([]byte(`{"value": [` + instanceJSON("Reader", testScope, "sub", "p1") + `]}`))
	}))

	scope := mustScope(t, testScope)
	set, err := client.ListEligibleRoleAssignments(context.Background(), &scope, FilterAsTarget)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
	assert.Equal(t, testScope+"/providers/Microsoft.Authorization/roleEligibilityScheduleInstances", gotPath)
	assert.Equal(t, "asTarget()", gotFilter)
}

func TestListEligibleTenantWide(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"value": []}`))
	}))

	set, err := client.ListEligibleRoleAssignments(context.Background(), nil, FilterAsTarget)
	require.NoError(t, err)
	assert.True(t, set.IsEmpty())
	assert.Equal(t, "/providers/Microsoft.Authorization/roleEligibilityScheduleInstances", gotPath)
}

func TestRoleDefinitionsCached(t *testing.T) {
	var calls atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"value": [{
		  "id": "/providers/Microsoft.Authorization/roleDefinitions/bbbb",
		  "name": "bbbb",
		  "properties": {"roleName": "Contributor", "type": "BuiltInRole"}
		}]}`))
	}))
	ctx := context.Background()
	scope := mustScope(t, testScope)

	_, err := client.RoleDefinitions(ctx, scope)
	require.NoError(t, err)
	_, err = client.RoleDefinitions(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load(), "second listing served from cache")

	definition, err := client.RoleDefinition(ctx, scope, "contributor")
	require.NoError(t, err)
	assert.Equal(t, "Contributor", definition.Properties.RoleName, "lookup is case-insensitive")

	_, err = client.RoleDefinition(ctx, scope, "Nonexistent")
	assert.ErrorContains(t, err, "role not found")

	client.ClearCache()
	_, err = client.RoleDefinitions(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestAnnotateObjects(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getByIds") {
			w.Write([]byte(`{"value": [{"@odata.type": "#microsoft.graph.user", "id": "p1", "displayName": "Ada", "userPrincipalName": "ada@contoso.com"}]}`))
			return
		}
		http.NotFound(w, r)
	}))

	var set models.RoleAssignmentSet
	set.Insert(models.RoleAssignment{Role: "Reader", Scope: mustScope(t, testScope), PrincipalID: "p1"})
	set.Insert(models.RoleAssignment{Role: "Owner", Scope: mustScope(t, testScope), PrincipalID: "gone"})

	annotated, err := client.AnnotateObjects(context.Background(), set)
	require.NoError(t, err)

	for _, assignment := range annotated.Items() {
		switch assignment.PrincipalID {
		case "p1":
			require.NotNil(t, assignment.Object)
			assert.Equal(t, "Ada", assignment.Object.DisplayName)
		case "gone":
			assert.Nil(t, assignment.Object, "unresolvable principals stay bare")
		}
	}
}
