package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/zkverify/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS proof_records (
		session_id TEXT PRIMARY KEY,
		remote_addr TEXT NOT NULL,
		success INTEGER NOT NULL,
		message TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_proof_records_created ON proof_records(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveRecord appends one completed proving attempt to the audit trail.
// SQLITE_BUSY conflicts are retried with backoff.
func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *domain.ProofRecord) error {
	query := `
		INSERT INTO proof_records (session_id, remote_addr, success, message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	success := 0
	if rec.Success {
		success = 1
	}

	var err error
	delay := 50 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		_, err = s.db.ExecContext(ctx, query,
			rec.SessionID, rec.RemoteAddr, success, rec.Message, rec.DurationMs, rec.CreatedAt.Unix())
		if err == nil {
			return nil
		}
		if !isConflictError(err) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("save proof record %s: %w", rec.SessionID, err)
}

// RecentRecords returns up to limit records, newest first.
func (s *SQLiteStore) RecentRecords(ctx context.Context, limit int) ([]*domain.ProofRecord, error) {
	query := `
		SELECT session_id, remote_addr, success, message, duration_ms, created_at
		FROM proof_records ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent records: %w", err)
	}
	defer rows.Close()

	var records []*domain.ProofRecord
	for rows.Next() {
		var rec domain.ProofRecord
		var success int
		var createdAt int64
		if err := rows.Scan(&rec.SessionID, &rec.RemoteAddr, &success, &rec.Message, &rec.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan proof record: %w", err)
		}
		rec.Success = success != 0
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proof records: %w", err)
	}

	return records, nil
}

// CountByOutcome returns the number of succeeded and failed attempts.
func (s *SQLiteStore) CountByOutcome(ctx context.Context) (int64, int64, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
		FROM proof_records`

	var succeeded, failed int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&succeeded, &failed); err != nil {
		return 0, 0, fmt.Errorf("count proof records: %w", err)
	}
	return succeeded, failed, nil
}

// DeleteOlderThan removes records older than ttl.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).Unix()

	res, err := s.db.ExecContext(ctx, `DELETE FROM proof_records WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old proof records: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted records: %w", err)
	}
	return deleted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConflictError checks for SQLITE_BUSY / "database is locked" errors, the
// SQLite concurrency failures that warrant a retry.
func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
