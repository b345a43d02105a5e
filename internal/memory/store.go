package memory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrPersistence wraps failures of the durable store. The conversation keeps
// going when it is returned.
var ErrPersistence = errors.New("memory persistence failed")

// Store persists one Record per profile. Load returns DefaultRecord for a
// profile that has never been saved.
type Store interface {
	Load(ctx context.Context, profileID string) (Record, error)
	Save(ctx context.Context, profileID string, rec Record) error
	Close() error
}

// StoreConfig selects and configures a backend.
type StoreConfig struct {
	Backend     string
	FilePath    string
	SQLitePath  string
	DatabaseURL string
	RedisURL    string
}

// NewStore creates the configured backend. An empty backend falls back to
// postgres when DATABASE_URL is set and to the JSON file otherwise.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "file"
		if strings.TrimSpace(cfg.DatabaseURL) != "" {
			backend = "postgres"
		}
	}

	switch backend {
	case "file":
		return NewFileStore(cfg.FilePath), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres memory backend")
		}
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "redis":
		return NewRedisStore(ctx, cfg.RedisURL)
	case "memory":
		return NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported memory backend %q", cfg.Backend)
	}
}

var profileUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

func normalizeProfile(id string) string {
	id = profileUnsafe.ReplaceAllString(strings.TrimSpace(id), "_")
	if id == "" || id == "." || id == ".." {
		return "default"
	}
	return id
}
