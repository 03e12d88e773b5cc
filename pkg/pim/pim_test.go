package pim

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diggerhq/azure-pim/pkg/azure"
	"github.com/diggerhq/azure-pim/pkg/backend"
	"github.com/diggerhq/azure-pim/pkg/models"
)

const (
	testOID   = "00000000-0000-0000-0000-000000000042"
	testScope = "/subscriptions/00000000-0000-0000-0000-000000000000"
)

func fakeJWT(oid string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"oid":"` + oid + `"}`))
	return header + "." + payload + ".signature"
}

type jwtProvider struct{}

func (jwtProvider) Token(ctx context.Context, scope azure.TokenScope) (string, error) {
	return fakeJWT(testOID), nil
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	b := backend.New(backend.Config{
		ManagementURL:  server.URL,
		GraphURL:       server.URL,
		RetryAttempts:  1,
		RetryInterval:  time.Millisecond,
		RequestTimeout: 5 * time.Second,
	}, jwtProvider{})
	return NewClientWithBackend(b)
}

// instanceJSON builds one schedule instance entry the way the provider
// shapes them.
func instanceJSON(role, scope, scopeName, principalID string) string {
	return fmt.Sprintf(`{
	  "properties": {
	    "roleDefinitionId": "%s/providers/Microsoft.Authorization/roleDefinitions/def-of-%s",
	    "principalId": "%s",
	    "principalType": "User",
	    "expandedProperties": {
	      "roleDefinition": {"displayName": "%s"},
	      "scope": {"id": "%s", "displayName": "%s"}
	    }
	  }
	}`, scope, principalID, principalID, role, scope, scopeName)
}

func readAll(t *testing.T, r *http.Request) []byte {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		t.Errorf("unable to read request body: %v", err)
	}
	return data
}

func mustScope(t *testing.T, path string) models.Scope {
	t.Helper()
	scope, err := models.NewScope(path)
	if err != nil {
		t.Fatalf("bad scope %q: %v", path, err)
	}
	return scope
}
