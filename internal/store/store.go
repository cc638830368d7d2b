// Package store provides the proof audit trail persistence interface and its
// SQLite implementation.
package store

import (
	"context"
	"time"

	"github.com/ashureev/zkverify/internal/domain"
)

// Repository persists proof audit records. Implementations must be safe for
// concurrent use by many session handlers.
type Repository interface {
	// SaveRecord appends one completed proving attempt to the audit trail.
	SaveRecord(ctx context.Context, rec *domain.ProofRecord) error

	// RecentRecords returns up to limit records, newest first.
	RecentRecords(ctx context.Context, limit int) ([]*domain.ProofRecord, error)

	// CountByOutcome returns the number of succeeded and failed attempts.
	CountByOutcome(ctx context.Context) (succeeded, failed int64, err error)

	// DeleteOlderThan removes records older than ttl and reports how many.
	DeleteOlderThan(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
