package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one JSON row per profile in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "memory.db")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps read-modify-write commits from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS memory_records (
		profile_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, profileID string) (Record, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM memory_records WHERE profile_id = ?`, normalizeProfile(profileID),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultRecord(), nil
	}
	if err != nil {
		return DefaultRecord(), fmt.Errorf("query memory record: %w", err)
	}
	var rec Record
	if err := sonic.UnmarshalString(raw, &rec); err != nil {
		return DefaultRecord(), fmt.Errorf("decode memory record: %w", err)
	}
	return rec.normalize(), nil
}

func (s *SQLiteStore) Save(ctx context.Context, profileID string, rec Record) error {
	raw, err := sonic.MarshalString(rec.normalize())
	if err != nil {
		return fmt.Errorf("encode memory record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memory_records (profile_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(profile_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		normalizeProfile(profileID), raw, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save memory record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
