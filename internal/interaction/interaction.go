// Package interaction provides the engagement record model and repositories.
// The store keeps at most one record per (user, item); the latest write wins.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Common errors for interaction operations.
var (
	ErrInvalidKind  = errors.New("interaction type must be one of view, click, save, skip, share")
	ErrInvalidDwell = errors.New("dwell_seconds must not be negative")
)

// Kind is the type of engagement a user had with an item.
type Kind string

// Supported interaction kinds.
const (
	KindView  Kind = "view"  // scrolled past
	KindClick Kind = "click" // opened the full item
	KindSave  Kind = "save"  // bookmarked
	KindSkip  Kind = "skip"  // dismissed
	KindShare Kind = "share" // shared externally
)

// ParseKind validates a raw interaction kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindView, KindClick, KindSave, KindSkip, KindShare:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Interaction is the most recent engagement of a user with one item.
type Interaction struct {
	UserID       int64     `json:"user_id"`
	ItemID       int64     `json:"feed_event_id"`
	Kind         Kind      `json:"interaction_type"`
	DwellSeconds *int      `json:"dwell_seconds,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks kind and dwell values.
func (i *Interaction) Validate() error {
	if _, err := ParseKind(string(i.Kind)); err != nil {
		return err
	}
	if i.DwellSeconds != nil && *i.DwellSeconds < 0 {
		return ErrInvalidDwell
	}
	return nil
}

// Repository defines interaction storage operations.
type Repository interface {
	// ListByUser returns every interaction record of a user.
	ListByUser(ctx context.Context, userID int64) ([]Interaction, error)

	// Upsert records an interaction, replacing any prior record for the
	// same (user, item) pair.
	Upsert(ctx context.Context, rec *Interaction) error
}

// IndexByItem maps item ID to the user's interaction with it.
func IndexByItem(records []Interaction) map[int64]Interaction {
	out := make(map[int64]Interaction, len(records))
	for _, rec := range records {
		// Defensive against a store returning duplicates: keep the latest.
		if prev, ok := out[rec.ItemID]; ok && prev.CreatedAt.After(rec.CreatedAt) {
			continue
		}
		out[rec.ItemID] = rec
	}
	return out
}

type recordKey struct {
	userID int64
	itemID int64
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[recordKey]Interaction
	now     func() time.Time
}

// NewInMemoryRepository creates a new in-memory interaction repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[recordKey]Interaction),
		now:     time.Now,
	}
}

// ListByUser returns the user's interaction records.
func (r *InMemoryRepository) ListByUser(ctx context.Context, userID int64) ([]Interaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Interaction
	for k, rec := range r.records {
		if k.userID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Upsert stores rec, overwriting any previous record for (user, item).
func (r *InMemoryRepository) Upsert(ctx context.Context, rec *Interaction) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *rec
	if stored.DwellSeconds != nil {
		d := *stored.DwellSeconds
		stored.DwellSeconds = &d
	}
	stored.CreatedAt = r.now().UTC()
	rec.CreatedAt = stored.CreatedAt

	r.records[recordKey{userID: rec.UserID, itemID: rec.ItemID}] = stored
	return nil
}
