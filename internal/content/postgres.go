package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/metricshour/metricshour/internal/tracing"
)

// PostgresRepository implements Repository on the feed_events table.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

const itemColumns = `id, title, body, event_type, event_subtype, source_url, image_url,
	published_at, related_asset_ids, related_country_ids, event_data, importance_score`

// ListPublishedSince returns items published at or after since, newest first.
// Served by ix_feed_events_published_at.
func (r *PostgresRepository) ListPublishedSince(ctx context.Context, since time.Time, limit int) (items []Item, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "feed_events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT ` + itemColumns + `
		FROM feed_events
		WHERE published_at >= $1
		ORDER BY published_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, NormalizeUTC(since), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feed events: %w", err)
	}

	r.logger.DebugContext(ctx, "loaded feed candidates",
		slog.Time("since", since),
		slog.Int("count", len(items)))

	return items, nil
}

// GetByID retrieves a single feed event.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (item *Item, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "feed_events", tracing.DBOperationQuery)
	defer func() {
		if errors.Is(err, ErrItemNotFound) {
			endSpan(nil)
			return
		}
		endSpan(err)
	}()

	query := `SELECT ` + itemColumns + ` FROM feed_events WHERE id = $1`
	item, err = scanItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return item, err
}

// Insert stores a new feed event and sets its ID.
func (r *PostgresRepository) Insert(ctx context.Context, item *Item) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "feed_events", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	assets, err := marshalIDs(item.RelatedAssetIDs)
	if err != nil {
		return err
	}
	countries, err := marshalIDs(item.RelatedCountryIDs)
	if err != nil {
		return err
	}
	var data []byte
	if len(item.Data) > 0 {
		data = item.Data
	}

	query := `
		INSERT INTO feed_events (title, body, event_type, event_subtype, source_url, image_url,
			published_at, related_asset_ids, related_country_ids, event_data, importance_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err = r.db.QueryRowContext(ctx, query,
		item.Title, item.Body, item.Category, item.Subtype, item.SourceURL, item.ImageURL,
		NormalizeUTC(item.PublishedAt), assets, countries, data, item.Importance,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to insert feed event: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		item                       Item
		body, subtype, source, img sql.NullString
		assets, countries, data    []byte
		importance                 sql.NullFloat64
	)
	err := row.Scan(&item.ID, &item.Title, &body, &item.Category, &subtype, &source, &img,
		&item.PublishedAt, &assets, &countries, &data, &importance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan feed event: %w", err)
	}

	item.Body = nullString(body)
	item.Subtype = nullString(subtype)
	item.SourceURL = nullString(source)
	item.ImageURL = nullString(img)
	item.PublishedAt = NormalizeUTC(item.PublishedAt)

	if item.RelatedAssetIDs, err = unmarshalIDs(assets); err != nil {
		return nil, fmt.Errorf("feed event %d related_asset_ids: %w", item.ID, err)
	}
	if item.RelatedCountryIDs, err = unmarshalIDs(countries); err != nil {
		return nil, fmt.Errorf("feed event %d related_country_ids: %w", item.ID, err)
	}
	if len(data) > 0 {
		item.Data = json.RawMessage(data)
	}
	if importance.Valid {
		v := importance.Float64
		item.Importance = &v
	}
	return &item, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// marshalIDs encodes an ID list as a JSONB array; nil encodes as [].
func marshalIDs(ids []int64) ([]byte, error) {
	if ids == nil {
		return []byte("[]"), nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode id list: %w", err)
	}
	return b, nil
}

// unmarshalIDs decodes a JSONB id array. NULL and JSON null decode to nil.
func unmarshalIDs(b []byte) ([]int64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
