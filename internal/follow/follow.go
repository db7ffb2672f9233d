// Package follow provides the follow relation model and repositories.
// A follow marks a user's declared interest in an asset or a country.
package follow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Common errors for follow operations.
var (
	ErrFollowNotFound    = errors.New("follow not found")
	ErrInvalidEntityKind = errors.New("entity kind must be asset or country")
)

// EntityKind identifies what a follow points at.
type EntityKind string

// Supported entity kinds.
const (
	EntityAsset   EntityKind = "asset"
	EntityCountry EntityKind = "country"
)

// ParseEntityKind validates a raw entity kind.
func ParseEntityKind(s string) (EntityKind, error) {
	switch EntityKind(s) {
	case EntityAsset, EntityCountry:
		return EntityKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEntityKind, s)
	}
}

// Follow is a (user, entity kind, entity id) relation. Unique per triple.
type Follow struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"-"`
	EntityKind EntityKind `json:"entity_type"`
	EntityID   int64      `json:"entity_id"`
	FollowedAt time.Time  `json:"followed_at"`
}

// Repository defines follow storage operations.
type Repository interface {
	// ListByUser returns every follow of a user, newest first.
	ListByUser(ctx context.Context, userID int64) ([]Follow, error)

	// Add creates the follow if it does not exist and returns the stored row.
	// Adding an existing follow is idempotent and returns created=false.
	Add(ctx context.Context, userID int64, kind EntityKind, entityID int64) (f *Follow, created bool, err error)

	// Remove deletes a follow. Returns ErrFollowNotFound if it does not exist.
	Remove(ctx context.Context, userID int64, kind EntityKind, entityID int64) error
}

// Sets is a user's follows partitioned by entity kind.
type Sets struct {
	Assets    map[int64]struct{}
	Countries map[int64]struct{}
}

// Partition splits follows into followed asset IDs and followed country IDs.
// Follows with an unknown kind are ignored.
func Partition(follows []Follow) Sets {
	sets := Sets{
		Assets:    make(map[int64]struct{}),
		Countries: make(map[int64]struct{}),
	}
	for _, f := range follows {
		switch f.EntityKind {
		case EntityAsset:
			sets.Assets[f.EntityID] = struct{}{}
		case EntityCountry:
			sets.Countries[f.EntityID] = struct{}{}
		}
	}
	return sets
}

type followKey struct {
	userID   int64
	kind     EntityKind
	entityID int64
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	follows map[followKey]Follow
	nextID  int64
	now     func() time.Time
}

// NewInMemoryRepository creates a new in-memory follow repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		follows: make(map[followKey]Follow),
		nextID:  1,
		now:     time.Now,
	}
}

// ListByUser returns the user's follows, newest first.
func (r *InMemoryRepository) ListByUser(ctx context.Context, userID int64) ([]Follow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Follow
	for k, f := range r.follows {
		if k.userID == userID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FollowedAt.Equal(out[j].FollowedAt) {
			return out[i].FollowedAt.After(out[j].FollowedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Add creates a follow or returns the existing one.
func (r *InMemoryRepository) Add(ctx context.Context, userID int64, kind EntityKind, entityID int64) (*Follow, bool, error) {
	if _, err := ParseEntityKind(string(kind)); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := followKey{userID: userID, kind: kind, entityID: entityID}
	if existing, ok := r.follows[key]; ok {
		return &existing, false, nil
	}

	f := Follow{
		ID:         r.nextID,
		UserID:     userID,
		EntityKind: kind,
		EntityID:   entityID,
		FollowedAt: r.now().UTC(),
	}
	r.nextID++
	r.follows[key] = f
	return &f, true, nil
}

// Remove deletes a follow.
func (r *InMemoryRepository) Remove(ctx context.Context, userID int64, kind EntityKind, entityID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := followKey{userID: userID, kind: kind, entityID: entityID}
	if _, ok := r.follows[key]; !ok {
		return ErrFollowNotFound
	}
	delete(r.follows, key)
	return nil
}
