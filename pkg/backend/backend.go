// Package backend executes authenticated requests against the Azure
// management and Graph control planes with a uniform retry policy.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/diggerhq/azure-pim/pkg/azure"
	"github.com/diggerhq/azure-pim/pkg/models"
)

// ValidateFunc decides whether a response is a success, independent of the
// raw HTTP status. Returning a nil error accepts the response as-is; see
// ValidateActivation for why a 400 can be a success.
type ValidateFunc func(status int, body []byte) error

// Backend owns the HTTP client, the token provider, and the per-scope
// bearer token memo. Tokens are fetched at most once per scope per process.
type Backend struct {
	cfg      Config
	client   *http.Client
	provider azure.TokenProvider

	mu     sync.Mutex
	tokens map[azure.TokenScope]string
}

func New(cfg Config, provider azure.TokenProvider) *Backend {
	return &Backend{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		provider: provider,
		tokens:   make(map[azure.TokenScope]string),
	}
}

func NewFromEnv(provider azure.TokenProvider) (*Backend, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg, provider), nil
}

// GraphURL exposes the directory base URL for the object resolver.
func (b *Backend) GraphURL() string {
	return b.cfg.GraphURL
}

// Token returns the cached bearer token for scope, fetching it on first
// use. The lock is never held across the provider call for other scopes'
// readers; token acquisition is rare enough that a single lock is fine.
func (b *Backend) Token(ctx context.Context, scope azure.TokenScope) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if token, ok := b.tokens[scope]; ok {
		return token, nil
	}

	token, err := b.provider.Token(ctx, scope)
	if err != nil {
		return "", err
	}
	b.tokens[scope] = token
	return token, nil
}

// PrincipalID returns the object id of the principal the management token
// was issued to.
func (b *Backend) PrincipalID(ctx context.Context) (string, error) {
	token, err := b.Token(ctx, azure.TokenScopeManagement)
	if err != nil {
		return "", err
	}
	oid, err := azure.ExtractObjectID(token)
	if err != nil {
		return "", fmt.Errorf("unable to obtain the current user: %w", err)
	}
	return oid, nil
}

// Do executes one request with the uniform retry policy: transport errors
// and HTTP 429 are retried with jittered exponential backoff up to the
// configured attempt budget; everything else is classified by the
// validator, or by the 2xx check when no validator is given. Each attempt
// sends a fresh request built from the retained body bytes.
func (b *Backend) Do(ctx context.Context, method, rawURL string, scope azure.TokenScope, body any, validate ValidateFunc) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("could not encode request body: %w", err)
		}
	}

	token, err := b.Token(ctx, scope)
	if err != nil {
		return nil, err
	}

	attempt := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("could not build request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Ms-Command-Name", "Microsoft_Azure_PIMCommon.")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		response, err := b.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer response.Body.Close()

		slog.Debug("got response", "method", method, "url", rawURL, "status", response.StatusCode)
		if response.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("rate limited: %s %s", method, rawURL)
		}

		data, err := io.ReadAll(response.Body)
		if err != nil {
			return nil, fmt.Errorf("could not read response body: %w", err)
		}
		if len(data) > 0 && !json.Valid(data) {
			return nil, backoff.Permanent(fmt.Errorf("response is not valid JSON: %.200s", data))
		}

		if validate != nil {
			if err := validate(response.StatusCode, data); err != nil {
				return nil, backoff.Permanent(err)
			}
			return data, nil
		}
		if response.StatusCode >= 200 && response.StatusCode < 300 {
			return data, nil
		}
		return nil, fmt.Errorf("request failed: status:%d body:%s", response.StatusCode, data)
	}

	attempts := b.cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(newRetrySchedule(b.cfg.RetryInterval), attempts-1),
		ctx,
	)
	data, err := backoff.RetryWithData(attempt, policy)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	return data, nil
}

func newRetrySchedule(initial time.Duration) *backoff.ExponentialBackOff {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = initial
	schedule.MaxElapsedTime = 0
	return schedule
}

// Request starts a builder for a Microsoft.Authorization operation.
func (b *Backend) Request(method string, operation Operation) *Request {
	return &Request{
		backend:   b,
		method:    method,
		operation: operation,
		query:     url.Values{},
	}
}

// Request accumulates the pieces of one management-plane call.
type Request struct {
	backend   *Backend
	method    string
	operation Operation
	scope     models.Scope
	extra     string
	query     url.Values
	body      any
	validate  ValidateFunc
}

// WithScope prefixes the operation path with a resource scope. Without it
// the operation applies tenant-wide.
func (r *Request) WithScope(scope models.Scope) *Request {
	r.scope = scope
	return r
}

// WithExtra appends an extra path element, such as "/{requestId}" on
// schedule request PUTs.
func (r *Request) WithExtra(extra string) *Request {
	r.extra = extra
	return r
}

func (r *Request) WithQuery(key, value string) *Request {
	r.query.Set(key, value)
	return r
}

func (r *Request) WithBody(body any) *Request {
	r.body = body
	return r
}

func (r *Request) WithValidator(validate ValidateFunc) *Request {
	r.validate = validate
	return r
}

func (r *Request) Send(ctx context.Context) ([]byte, error) {
	r.query.Set("api-version", r.operation.apiVersion())
	rawURL := fmt.Sprintf(
		"%s%s/providers/Microsoft.Authorization/%s%s?%s",
		r.backend.cfg.ManagementURL,
		r.scope,
		r.operation,
		r.extra,
		r.query.Encode(),
	)
	return r.backend.Do(ctx, r.method, rawURL, r.operation.tokenScope(), r.body, r.validate)
}
