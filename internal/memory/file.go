package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
)

// FileStore keeps each profile in a pretty-printed JSON document. The default
// profile lives at path itself; other profiles get a sibling file named
// <base>.<profile><ext>.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "memory.json")
	}
	return &FileStore{path: path}
}

func (s *FileStore) pathFor(profileID string) string {
	profileID = normalizeProfile(profileID)
	if profileID == "default" {
		return s.path
	}
	ext := filepath.Ext(s.path)
	base := strings.TrimSuffix(s.path, ext)
	return base + "." + profileID + ext
}

func (s *FileStore) Load(_ context.Context, profileID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.pathFor(profileID))
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultRecord(), nil
	}
	if err != nil {
		return DefaultRecord(), fmt.Errorf("read memory file: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return DefaultRecord(), nil
	}
	var rec Record
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return DefaultRecord(), fmt.Errorf("decode memory file: %w", err)
	}
	return rec.normalize(), nil
}

// Save writes through a temp file and rename so a crash never leaves a torn
// document behind.
func (s *FileStore) Save(_ context.Context, profileID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := sonic.ConfigStd.MarshalIndent(rec.normalize(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	path := s.pathFor(profileID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".memory-*.json")
	if err != nil {
		return fmt.Errorf("create temp memory file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write memory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close memory file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace memory file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
