package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists outbox entries. Append takes the caller's transaction
// handle so an entry commits atomically with the aggregate change it
// describes; the remaining methods run on the dispatcher's connection.
type Repository interface {
	Append(ctx context.Context, tx *gorm.DB, entry *Entry) error

	// FetchPending returns up to limit pending entries, oldest first.
	FetchPending(ctx context.Context, db *gorm.DB, limit int) ([]Entry, error)

	// Claim moves one pending entry to processing and returns the row as it
	// is after the claim. Attempts may have advanced since the caller
	// fetched, so dispatch decisions must use the returned row, not the
	// fetched snapshot. Nil means a concurrent worker already holds the
	// entry.
	Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (*Entry, error)

	MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error

	// ReleaseForRetry returns a processing entry to pending with one more
	// attempt recorded.
	ReleaseForRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastError string, now time.Time) error

	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastError string, now time.Time) error

	// ReclaimStale returns processing entries claimed before cutoff to
	// pending without consuming an attempt.
	ReclaimStale(ctx context.Context, db *gorm.DB, cutoff time.Time, now time.Time) (int64, error)

	FindByAggregate(ctx context.Context, db *gorm.DB, aggregateID snowflake.ID) ([]Entry, error)
}
