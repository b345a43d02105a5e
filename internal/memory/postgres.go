package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists memory records in PostgreSQL as jsonb documents.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_records (
			profile_id TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			session_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, profileID string) (Record, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM memory_records WHERE profile_id=$1`, normalizeProfile(profileID),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultRecord(), nil
	}
	if err != nil {
		return DefaultRecord(), fmt.Errorf("query memory record: %w", err)
	}
	var rec Record
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return DefaultRecord(), fmt.Errorf("decode memory record: %w", err)
	}
	return rec.normalize(), nil
}

func (s *PostgresStore) Save(ctx context.Context, profileID string, rec Record) error {
	raw, err := sonic.Marshal(rec.normalize())
	if err != nil {
		return fmt.Errorf("encode memory record: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO memory_records (profile_id, data, session_count, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (profile_id) DO UPDATE
		 SET data = EXCLUDED.data, session_count = EXCLUDED.session_count, updated_at = now()`,
		normalizeProfile(profileID),
		string(raw),
		rec.SessionCount,
	)
	if err != nil {
		return fmt.Errorf("save memory record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
