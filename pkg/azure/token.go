// Package azure acquires bearer tokens for the control planes the client
// talks to, using the credentials of the locally signed-in Azure CLI user.
package azure

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// TokenScope selects which control plane a token is valid for.
type TokenScope int

const (
	TokenScopeManagement TokenScope = iota
	TokenScopeGraph
)

func (s TokenScope) String() string {
	switch s {
	case TokenScopeManagement:
		return "management"
	case TokenScopeGraph:
		return "graph"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Resource returns the OAuth scope string requested for s.
func (s TokenScope) Resource() string {
	switch s {
	case TokenScopeGraph:
		return "https://graph.microsoft.com/.default"
	default:
		return "https://management.core.windows.net/.default"
	}
}

// TokenProvider returns a bearer token for the requested scope. The request
// backend memoizes results, so providers do not need their own caching.
type TokenProvider interface {
	Token(ctx context.Context, scope TokenScope) (string, error)
}

// CLITokenProvider obtains tokens from the Azure CLI's logged-in account.
type CLITokenProvider struct {
	cred *azidentity.AzureCLICredential
}

func NewCLITokenProvider() (*CLITokenProvider, error) {
	cred, err := azidentity.NewAzureCLICredential(nil)
	if err != nil {
		return nil, fmt.Errorf("could not create azure cli credential: %w", err)
	}
	return &CLITokenProvider{cred: cred}, nil
}

func (p *CLITokenProvider) Token(ctx context.Context, scope TokenScope) (string, error) {
	token, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{scope.Resource()},
	})
	if err != nil {
		return "", fmt.Errorf("could not get %s token from azure cli: %w", scope, err)
	}
	return token.Token, nil
}

// ExtractObjectID pulls the "oid" claim out of a bearer token, identifying
// the principal the token was issued to. The signature is not verified;
// the token was just handed to us by the credential provider.
func ExtractObjectID(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("token is not a JWT")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("could not decode token payload: %w", err)
	}

	var claims struct {
		OID string `json:"oid"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("could not parse token claims: %w", err)
	}
	if claims.OID == "" {
		return "", fmt.Errorf("token is missing the oid claim")
	}
	return claims.OID, nil
}
