package interaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/metricshour/metricshour/internal/tracing"
)

// ErrItemNotFound is returned by Upsert when the referenced feed event does not exist.
var ErrItemNotFound = errors.New("feed event not found")

// pgForeignKeyViolation is the SQLSTATE for foreign_key_violation.
const pgForeignKeyViolation = "23503"

// itemForeignKey is the constraint tying user_interactions to feed_events.
const itemForeignKey = "fk_user_interactions_event"

// PostgresRepository implements Repository on the user_interactions table.
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

// ListByUser returns every interaction record of a user.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) (records []Interaction, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "user_interactions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT user_id, feed_event_id, interaction_type, dwell_seconds, created_at
		FROM user_interactions
		WHERE user_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec   Interaction
			dwell sql.NullInt64
		)
		if err := rows.Scan(&rec.UserID, &rec.ItemID, &rec.Kind, &dwell, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		if dwell.Valid {
			d := int(dwell.Int64)
			rec.DwellSeconds = &d
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interactions: %w", err)
	}
	return records, nil
}

// Upsert records an interaction. The uq_user_interaction constraint keeps
// one row per (user, item); on conflict the row is overwritten.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *Interaction) (err error) {
	if err := rec.Validate(); err != nil {
		return err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "user_interactions", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO user_interactions (user_id, feed_event_id, interaction_type, dwell_seconds, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT ON CONSTRAINT uq_user_interaction DO UPDATE
		SET interaction_type = EXCLUDED.interaction_type,
			dwell_seconds = EXCLUDED.dwell_seconds,
			created_at = EXCLUDED.created_at
		RETURNING created_at
	`
	var dwell sql.NullInt64
	if rec.DwellSeconds != nil {
		dwell = sql.NullInt64{Int64: int64(*rec.DwellSeconds), Valid: true}
	}

	err = r.db.QueryRowContext(ctx, query, rec.UserID, rec.ItemID, rec.Kind, dwell).Scan(&rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation && pqErr.Constraint == itemForeignKey {
			return ErrItemNotFound
		}
		return fmt.Errorf("failed to upsert interaction: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	r.logger.DebugContext(ctx, "interaction recorded",
		slog.Int64("user_id", rec.UserID),
		slog.Int64("feed_event_id", rec.ItemID),
		slog.String("interaction_type", string(rec.Kind)))
	return nil
}
