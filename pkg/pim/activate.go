package pim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diggerhq/azure-pim/pkg/backend"
	"github.com/diggerhq/azure-pim/pkg/models"
)

// ErrNoRolesSpecified is returned by the set operations when given nothing
// to do.
var ErrNoRolesSpecified = errors.New("no roles specified")

type scheduleRequest struct {
	Properties scheduleRequestProperties `json:"properties"`
}

type scheduleRequestProperties struct {
	PrincipalID      string        `json:"principalId"`
	RoleDefinitionID string        `json:"roleDefinitionId"`
	RequestType      string        `json:"requestType"`
	Justification    string        `json:"justification,omitempty"`
	ScheduleInfo     *scheduleInfo `json:"scheduleInfo,omitempty"`
}

type scheduleInfo struct {
	Expiration scheduleExpiration `json:"expiration"`
}

type scheduleExpiration struct {
	Duration string `json:"duration"`
	Type     string `json:"type"`
}

// ActivateRoleAssignment submits a self-activation request for one
// assignment. A provider response that the role is already active or
// already requested counts as success.
func (c *Client) ActivateRoleAssignment(ctx context.Context, assignment models.RoleAssignment, justification string, duration time.Duration) error {
	formatted, err := models.FormatDuration(duration)
	if err != nil {
		return err
	}

	principalID, err := c.backend.PrincipalID(ctx)
	if err != nil {
		return err
	}

	slog.Info("activating role", "role", assignment.Role, "scope_name", assignment.ScopeName, "scope", assignment.Scope)
	requestID := uuid.NewString()
	body := scheduleRequest{
		Properties: scheduleRequestProperties{
			PrincipalID:      principalID,
			RoleDefinitionID: assignment.RoleDefinitionID,
			RequestType:      "SelfActivate",
			Justification:    justification,
			ScheduleInfo: &scheduleInfo{
				Expiration: scheduleExpiration{
					Duration: formatted,
					Type:     "AfterDuration",
				},
			},
		},
	}

	_, err = c.backend.Request(http.MethodPut, backend.OperationRoleAssignmentScheduleRequests).
		WithScope(assignment.Scope).
		WithExtra("/" + requestID).
		WithBody(body).
		WithValidator(backend.ValidateActivation).
		Send(ctx)
	if err != nil {
		return fmt.Errorf("unable to activate %s: %w", assignment.Key(), err)
	}
	slog.Info("submitted activation request", "request_id", requestID)
	return nil
}

// DeactivateRoleAssignment submits a self-deactivation request for one
// active assignment.
func (c *Client) DeactivateRoleAssignment(ctx context.Context, assignment models.RoleAssignment) error {
	principalID, err := c.backend.PrincipalID(ctx)
	if err != nil {
		return err
	}

	slog.Info("deactivating role", "role", assignment.Role, "scope_name", assignment.ScopeName, "scope", assignment.Scope)
	requestID := uuid.NewString()
	body := scheduleRequest{
		Properties: scheduleRequestProperties{
			PrincipalID:      principalID,
			RoleDefinitionID: assignment.RoleDefinitionID,
			RequestType:      "SelfDeactivate",
		},
	}

	_, err = c.backend.Request(http.MethodPut, backend.OperationRoleAssignmentScheduleRequests).
		WithScope(assignment.Scope).
		WithExtra("/" + requestID).
		WithBody(body).
		WithValidator(backend.ValidateActivation).
		Send(ctx)
	if err != nil {
		return fmt.Errorf("unable to deactivate %s: %w", assignment.Key(), err)
	}
	return nil
}

// ActivateRoleAssignmentSet activates every assignment in the set with
// bounded concurrency. Failures are collected, not fail-fast: a failed
// assignment never aborts its siblings, and the aggregate error names each
// failed role@scope.
func (c *Client) ActivateRoleAssignmentSet(ctx context.Context, set models.RoleAssignmentSet, justification string, duration time.Duration, concurrency int) error {
	return c.forEachAssignment(ctx, set, concurrency, "activate", func(ctx context.Context, assignment models.RoleAssignment) error {
		return c.ActivateRoleAssignment(ctx, assignment, justification, duration)
	})
}

// DeactivateRoleAssignmentSet deactivates every assignment in the set with
// bounded concurrency, aggregating failures the same way activation does.
func (c *Client) DeactivateRoleAssignmentSet(ctx context.Context, set models.RoleAssignmentSet, concurrency int) error {
	return c.forEachAssignment(ctx, set, concurrency, "deactivate", func(ctx context.Context, assignment models.RoleAssignment) error {
		return c.DeactivateRoleAssignment(ctx, assignment)
	})
}

func (c *Client) forEachAssignment(ctx context.Context, set models.RoleAssignmentSet, concurrency int, verb string, fn func(context.Context, models.RoleAssignment) error) error {
	if set.IsEmpty() {
		return ErrNoRolesSpecified
	}

	pool := c.workerPool(concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed []string

	record := func(assignment models.RoleAssignment, err error) {
		slog.Error("role operation failed",
			"operation", verb,
			"role", assignment.Role,
			"scope", assignment.Scope,
			"role_definition_id", assignment.RoleDefinitionID,
			"error", err)
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, assignment.Key())
	}

	for _, assignment := range set.Items() {
		assignment := assignment
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.Acquire(ctx, 1); err != nil {
				record(assignment, err)
				return
			}
			defer pool.Release(1)
			if err := fn(ctx, assignment); err != nil {
				record(assignment, err)
			}
		}()
	}
	wg.Wait()

	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("unable to %s the following roles: %s", verb, strings.Join(failed, ", "))
	}
	return nil
}

// WaitForRoleActivation polls the active assignment list until every entry
// of set shows up or the timeout elapses. The provider offers no push
// notification, so polling is the only option; iterations are throttled to
// one list call per poll interval no matter how fast the call returns.
func (c *Client) WaitForRoleActivation(ctx context.Context, set models.RoleAssignmentSet, timeout time.Duration) error {
	if set.IsEmpty() {
		return nil
	}

	waiting := set.Clone()
	deadline := time.Now().Add(timeout)

	for {
		started := time.Now()

		active, err := c.ListActiveRoleAssignments(ctx, nil, FilterAsTarget)
		if err != nil {
			return fmt.Errorf("unable to poll active assignments: %w", err)
		}
		waiting.Retain(func(assignment models.RoleAssignment) bool {
			return !active.ContainsGrant(assignment)
		})
		if waiting.IsEmpty() {
			return nil
		}

		if !time.Now().Before(deadline) {
			return fmt.Errorf("timed out waiting for activation of: %s", strings.Join(waiting.Keys(), ", "))
		}

		slog.Info("waiting for roles to activate", "remaining", waiting.Len())
		if wait := c.pollInterval - time.Since(started); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
}
