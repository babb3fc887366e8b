package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/WangYihang/url-dedup/pkg/domain/entity"
)

// ErrNotFound is returned by Lookup for unknown hashes
var ErrNotFound = errors.New("url not found")

// SQLiteStore implements repository.URLStore. Each distinct normalized URL is
// one row keyed by its hash; saving it again bumps seen_count.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// StoredURL is one row of the urls table
type StoredURL struct {
	HashValue     string
	URL           string
	NormalizedURL string
	Domain        string
	RunID         string
	Status        string
	SeenCount     int64
	FirstSeen     time.Time
	LastSeen      time.Time
}

// OpenSQLiteStore opens or creates the database at path
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS urls (
		url_hash TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		normalized_url TEXT NOT NULL,
		domain TEXT,
		run_id TEXT,
		status TEXT NOT NULL,
		seen_count INTEGER NOT NULL DEFAULT 1,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_urls_domain ON urls(domain);
	CREATE INDEX IF NOT EXISTS idx_urls_last_seen ON urls(last_seen);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Save upserts records in one transaction. Records without a hash value
// (invalid URLs, internal errors) are skipped.
func (s *SQLiteStore) Save(ctx context.Context, records []*entity.URLRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO urls (url_hash, url, normalized_url, domain, run_id, status, seen_count, first_seen, last_seen)
	VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
	ON CONFLICT(url_hash) DO UPDATE SET
		seen_count = seen_count + 1,
		run_id = excluded.run_id,
		last_seen = excluded.last_seen
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if r == nil || r.HashValue == "" {
			continue
		}
		ts := r.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err = stmt.ExecContext(ctx,
			r.HashValue, r.URL, r.NormalizedURL, r.Domain, r.RunID, r.Status,
			ts.UnixMilli(), ts.UnixMilli(),
		); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", r.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Count returns the number of distinct stored URLs
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM urls").Scan(&n)
	return n, err
}

// Lookup returns the row for a hash value
func (s *SQLiteStore) Lookup(ctx context.Context, hashValue string) (*StoredURL, error) {
	var u StoredURL
	var firstSeen, lastSeen int64
	err := s.db.QueryRowContext(ctx, `
	SELECT url_hash, url, normalized_url, domain, run_id, status, seen_count, first_seen, last_seen
	FROM urls WHERE url_hash = ?
	`, hashValue).Scan(
		&u.HashValue, &u.URL, &u.NormalizedURL, &u.Domain, &u.RunID, &u.Status,
		&u.SeenCount, &firstSeen, &lastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.FirstSeen = time.UnixMilli(firstSeen)
	u.LastSeen = time.UnixMilli(lastSeen)
	return &u, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
