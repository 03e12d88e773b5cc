// Package graph resolves directory principals behind role assignments and
// expands group membership via the Microsoft Graph API.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/diggerhq/azure-pim/pkg/azure"
	"github.com/diggerhq/azure-pim/pkg/backend"
	"github.com/diggerhq/azure-pim/pkg/cache"
	"github.com/diggerhq/azure-pim/pkg/models"
)

// getByIDsLimit is the directory API's maximum batch size per call.
const getByIDsLimit = 50

// Resolver maps principal ids to directory Objects with a TTL-bounded
// cache. A nil cached value is a tombstone: the id was looked up and the
// directory had nothing, so repeated misses do not re-query.
type Resolver struct {
	backend *backend.Backend
	objects *cache.ExpiringMap[string, *models.Object]
	members *cache.ExpiringMap[string, []models.Object]
}

func NewResolver(b *backend.Backend, ttl time.Duration) *Resolver {
	return &Resolver{
		backend: b,
		objects: cache.NewExpiringMap[string, *models.Object](ttl),
		members: cache.NewExpiringMap[string, []models.Object](ttl),
	}
}

func (r *Resolver) ClearCache() {
	r.objects.Clear()
	r.members.Clear()
}

type directoryObject struct {
	ODataType         string `json:"@odata.type"`
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
}

func (o directoryObject) toObject() (models.Object, error) {
	objectType, err := models.ObjectTypeFromOData(o.ODataType)
	if err != nil {
		return models.Object{}, err
	}
	if o.ID == "" {
		return models.Object{}, fmt.Errorf("directory object missing id: %+v", o)
	}
	return models.Object{
		ID:          o.ID,
		DisplayName: o.DisplayName,
		UPN:         o.UserPrincipalName,
		Type:        objectType,
	}, nil
}

type directoryList struct {
	Value    []directoryObject `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// GetObjectsByIDs resolves a set of principal ids, issuing at most one
// directory call per 50 uncached ids. Ids the directory does not recognize
// are tombstoned so a later call within the TTL stays local, and are
// silently absent from the result.
func (r *Resolver) GetObjectsByIDs(ctx context.Context, ids []string) (map[string]models.Object, error) {
	ids = lo.Uniq(ids)
	missing := lo.Filter(ids, func(id string, _ int) bool {
		return !r.objects.Contains(id)
	})

	if len(missing) > 0 {
		var mu sync.Mutex
		resolved := make(map[string]models.Object)

		group, groupCtx := errgroup.WithContext(ctx)
		for _, chunk := range lo.Chunk(missing, getByIDsLimit) {
			chunk := chunk
			group.Go(func() error {
				objects, err := r.getByIDs(groupCtx, chunk)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				for _, object := range objects {
					resolved[object.ID] = object
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}

		for _, id := range missing {
			if object, ok := resolved[id]; ok {
				object := object
				r.objects.Insert(id, &object)
			} else {
				slog.Debug("directory object not found", "id", id)
				r.objects.Insert(id, nil)
			}
		}
	}

	result := make(map[string]models.Object, len(ids))
	for _, id := range ids {
		if object, ok := r.objects.Get(id); ok && object != nil {
			result[id] = *object
		}
	}
	return result, nil
}

func (r *Resolver) getByIDs(ctx context.Context, ids []string) ([]models.Object, error) {
	url := r.backend.GraphURL() + "/v1.0/directoryObjects/getByIds"
	body := map[string][]string{"ids": ids}

	data, err := r.backend.Do(ctx, http.MethodPost, url, azure.TokenScopeGraph, body, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to look up directory objects: %w", err)
	}

	var response directoryList
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("unable to parse directory response: %w: %.200s", err, data)
	}

	objects := make([]models.Object, 0, len(response.Value))
	for _, entry := range response.Value {
		object, err := entry.toObject()
		if err != nil {
			return nil, err
		}
		objects = append(objects, object)
	}
	return objects, nil
}

// GroupMembers lists the members of a group. With nested set, membership
// is expanded through child groups using a worklist and a visited set, so
// cyclic nesting (A contains B contains A) terminates and yields each
// reachable member exactly once.
func (r *Resolver) GroupMembers(ctx context.Context, groupID string, nested bool) ([]models.Object, error) {
	if !nested {
		return r.directMembers(ctx, groupID)
	}

	var result []models.Object
	seen := make(map[string]bool)
	done := make(map[string]bool)
	worklist := []string{groupID}

	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]
		if done[id] {
			continue
		}
		done[id] = true

		members, err := r.directMembers(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, member := range members {
			if member.Type == models.ObjectTypeGroup && !done[member.ID] {
				worklist = append(worklist, member.ID)
			}
			if !seen[member.ID] {
				seen[member.ID] = true
				result = append(result, member)
			}
		}
	}
	return result, nil
}

// directMembers fetches a group's direct members, following result pages,
// with a per-group cache for the TTL.
func (r *Resolver) directMembers(ctx context.Context, groupID string) ([]models.Object, error) {
	if members, ok := r.members.Get(groupID); ok {
		return members, nil
	}

	members := []models.Object{}
	url := fmt.Sprintf("%s/v1.0/groups/%s/members", r.backend.GraphURL(), groupID)
	for url != "" {
		data, err := r.backend.Do(ctx, http.MethodGet, url, azure.TokenScopeGraph, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("unable to list members of group %s: %w", groupID, err)
		}

		var response directoryList
		if err := json.Unmarshal(data, &response); err != nil {
			return nil, fmt.Errorf("unable to parse group member response: %w: %.200s", err, data)
		}
		for _, entry := range response.Value {
			object, err := entry.toObject()
			if err != nil {
				return nil, err
			}
			members = append(members, object)
		}
		url = response.NextLink
	}

	r.members.Insert(groupID, members)
	return members, nil
}
