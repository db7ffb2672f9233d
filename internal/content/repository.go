package content

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository defines the read operations the feed needs on content items.
type Repository interface {
	// ListPublishedSince returns items published at or after since,
	// ordered by publication time descending, at most limit items.
	ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]Item, error)

	// GetByID retrieves a single item. Returns ErrItemNotFound if absent.
	GetByID(ctx context.Context, id int64) (*Item, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu     sync.RWMutex
	items  map[int64]Item
	nextID int64
}

// NewInMemoryRepository creates a new in-memory content repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items:  make(map[int64]Item),
		nextID: 1,
	}
}

// Create stores a new item. A zero ID is replaced with the next sequence value.
func (r *InMemoryRepository) Create(item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item.ID == 0 {
		item.ID = r.nextID
	}
	if item.ID >= r.nextID {
		r.nextID = item.ID + 1
	}

	r.items[item.ID] = cloneItem(*item)
	return nil
}

// ListPublishedSince returns items published at or after since, newest first.
func (r *InMemoryRepository) ListPublishedSince(ctx context.Context, since time.Time, limit int) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	since = NormalizeUTC(since)

	var candidates []Item
	for _, item := range r.items {
		if item.PublishedUTC().Before(since) {
			continue
		}
		candidates = append(candidates, item)
	}

	// Newest first, ID DESC on equal timestamps to match the Postgres ordering
	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := candidates[i].PublishedUTC(), candidates[j].PublishedUTC()
		if !pi.Equal(pj) {
			return pi.After(pj)
		}
		return candidates[i].ID > candidates[j].ID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]Item, len(candidates))
	for i, item := range candidates {
		out[i] = cloneItem(item)
	}
	return out, nil
}

// GetByID retrieves an item by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id int64) (*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	c := cloneItem(item)
	return &c, nil
}

// cloneItem copies the slices of an item so callers cannot mutate stored state.
func cloneItem(item Item) Item {
	if item.RelatedAssetIDs != nil {
		item.RelatedAssetIDs = append([]int64(nil), item.RelatedAssetIDs...)
	}
	if item.RelatedCountryIDs != nil {
		item.RelatedCountryIDs = append([]int64(nil), item.RelatedCountryIDs...)
	}
	if item.Data != nil {
		item.Data = append([]byte(nil), item.Data...)
	}
	return item
}
