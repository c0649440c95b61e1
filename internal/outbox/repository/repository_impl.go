package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qalam/internal/outbox/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Append(ctx context.Context, tx *gorm.DB, entry *domain.Entry) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO outbox_entries (id, aggregate_id, event_type, payload, status, attempts, max_attempts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.AggregateID,
		entry.EventType,
		entry.Payload,
		entry.Status,
		entry.Attempts,
		entry.MaxAttempts,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Error
}

func (r *repo) FetchPending(ctx context.Context, db *gorm.DB, limit int) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := db.WithContext(ctx).Raw(
		`SELECT id, aggregate_id, event_type, payload, status, attempts, max_attempts,
		        last_error, claimed_at, processed_at, created_at, updated_at
		 FROM outbox_entries
		 WHERE status = ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		domain.StatusPending,
		limit,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Claim uses a compare-and-swap on status so two workers never hold the same
// entry; the loser observes zero affected rows. The winner re-reads the row
// so attempt bookkeeping done by other workers between fetch and claim is
// never overwritten.
func (r *repo) Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (*domain.Entry, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE outbox_entries
		 SET status = ?, claimed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusProcessing,
		now,
		now,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var entry domain.Entry
	err := db.WithContext(ctx).Raw(
		`SELECT id, aggregate_id, event_type, payload, status, attempts, max_attempts,
		        last_error, claimed_at, processed_at, created_at, updated_at
		 FROM outbox_entries WHERE id = ?`,
		id,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repo) MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbox_entries
		 SET status = ?, processed_at = ?, last_error = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusCompleted,
		now,
		now,
		id,
		domain.StatusProcessing,
	).Error
}

func (r *repo) ReleaseForRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastError string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbox_entries
		 SET status = ?, attempts = ?, last_error = ?, claimed_at = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusPending,
		attempts,
		lastError,
		now,
		id,
		domain.StatusProcessing,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastError string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbox_entries
		 SET status = ?, attempts = ?, last_error = ?, processed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusFailed,
		attempts,
		lastError,
		now,
		now,
		id,
		domain.StatusProcessing,
	).Error
}

func (r *repo) ReclaimStale(ctx context.Context, db *gorm.DB, cutoff time.Time, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE outbox_entries
		 SET status = ?, claimed_at = NULL, updated_at = ?
		 WHERE status = ? AND claimed_at IS NOT NULL AND claimed_at <= ?`,
		domain.StatusPending,
		now,
		domain.StatusProcessing,
		cutoff,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) FindByAggregate(ctx context.Context, db *gorm.DB, aggregateID snowflake.ID) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := db.WithContext(ctx).Raw(
		`SELECT id, aggregate_id, event_type, payload, status, attempts, max_attempts,
		        last_error, claimed_at, processed_at, created_at, updated_at
		 FROM outbox_entries
		 WHERE aggregate_id = ?
		 ORDER BY created_at ASC, id ASC`,
		aggregateID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
