package follow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/metricshour/metricshour/internal/tracing"
)

// PostgresRepository implements Repository on the user_follows table.
// Uniqueness is enforced by the uq_user_follow constraint.
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

// ListByUser returns every follow of a user, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) (follows []Follow, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "user_follows", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT id, user_id, entity_type, entity_id, followed_at
		FROM user_follows
		WHERE user_id = $1
		ORDER BY followed_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query follows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f Follow
		if err := rows.Scan(&f.ID, &f.UserID, &f.EntityKind, &f.EntityID, &f.FollowedAt); err != nil {
			return nil, fmt.Errorf("failed to scan follow: %w", err)
		}
		f.FollowedAt = f.FollowedAt.UTC()
		follows = append(follows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate follows: %w", err)
	}
	return follows, nil
}

// Add inserts a follow, returning the existing row when it is already present.
func (r *PostgresRepository) Add(ctx context.Context, userID int64, kind EntityKind, entityID int64) (f *Follow, created bool, err error) {
	if _, err := ParseEntityKind(string(kind)); err != nil {
		return nil, false, err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "user_follows", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	f = &Follow{}
	insert := `
		INSERT INTO user_follows (user_id, entity_type, entity_id, followed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT ON CONSTRAINT uq_user_follow DO NOTHING
		RETURNING id, user_id, entity_type, entity_id, followed_at
	`
	err = r.db.QueryRowContext(ctx, insert, userID, kind, entityID).
		Scan(&f.ID, &f.UserID, &f.EntityKind, &f.EntityID, &f.FollowedAt)
	if err == nil {
		f.FollowedAt = f.FollowedAt.UTC()
		r.logger.InfoContext(ctx, "follow added",
			slog.Int64("user_id", userID),
			slog.String("entity_type", string(kind)),
			slog.Int64("entity_id", entityID))
		return f, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to insert follow: %w", err)
	}

	// Conflict: the follow already exists
	existing := `
		SELECT id, user_id, entity_type, entity_id, followed_at
		FROM user_follows
		WHERE user_id = $1 AND entity_type = $2 AND entity_id = $3
	`
	err = r.db.QueryRowContext(ctx, existing, userID, kind, entityID).
		Scan(&f.ID, &f.UserID, &f.EntityKind, &f.EntityID, &f.FollowedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing follow: %w", err)
	}
	f.FollowedAt = f.FollowedAt.UTC()
	return f, false, nil
}

// Remove deletes a follow.
func (r *PostgresRepository) Remove(ctx context.Context, userID int64, kind EntityKind, entityID int64) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "user_follows", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_follows WHERE user_id = $1 AND entity_type = $2 AND entity_id = $3`,
		userID, kind, entityID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrFollowNotFound
	}
	return nil
}
