// Package content provides the feed content item model and repositories
// for reading the items published by ingestion jobs and editors.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Common errors for content operations.
var (
	ErrItemNotFound = errors.New("content item not found")
)

// Category values assigned by upstream generators.
const (
	CategoryPriceMove    = "price_move"
	CategoryMacroRelease = "macro_release"
	CategoryArticle      = "article"
	CategoryTradeUpdate  = "trade_update"
)

// Importance bounds for Item.Importance.
const (
	MinImportance = 0.0
	MaxImportance = 10.0
)

// Item is a single card in the feed. Items are written once by ingestion
// jobs or editorial publishing and are never mutated by the ranker.
type Item struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Body      *string `json:"body"`
	Category  string  `json:"event_type"`
	Subtype   *string `json:"event_subtype"`
	SourceURL *string `json:"source_url"`
	ImageURL  *string `json:"image_url"`

	PublishedAt time.Time `json:"published_at"`

	// Related entities may reference assets or countries that no longer exist.
	RelatedAssetIDs   []int64 `json:"related_asset_ids"`
	RelatedCountryIDs []int64 `json:"related_country_ids"`

	// Data is opaque to the ranker (change_pct, indicator_value, ...).
	Data json.RawMessage `json:"event_data"`

	// Importance is in [0, 10]; nil means the generator did not set one.
	Importance *float64 `json:"importance_score"`
}

// PublishedUTC returns the publication time in UTC.
func (i *Item) PublishedUTC() time.Time {
	return NormalizeUTC(i.PublishedAt)
}

// NormalizeUTC converts t to UTC.
func NormalizeUTC(t time.Time) time.Time {
	return t.UTC()
}

// naiveLayouts are timestamp layouts without zone information.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an RFC 3339 timestamp. Timestamps without a zone
// offset are interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	var lastErr error
	for _, layout := range naiveLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// UnmarshalJSON decodes an item, accepting published_at values without a zone offset as UTC.
func (i *Item) UnmarshalJSON(data []byte) error {
	type alias Item
	aux := struct {
		*alias
		PublishedAt string `json:"published_at"`
	}{alias: (*alias)(i)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.PublishedAt == "" {
		i.PublishedAt = time.Time{}
		return nil
	}
	t, err := ParseTimestamp(aux.PublishedAt)
	if err != nil {
		return fmt.Errorf("invalid published_at %q: %w", aux.PublishedAt, err)
	}
	i.PublishedAt = t
	return nil
}
