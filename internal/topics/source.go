// Package topics reads the researched topic list the host can talk about.
package topics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/logger"
	"github.com/codewithabhay10/conversational-ai-podcast-host/internal/types"
)

// Source lists the topics currently on offer.
type Source interface {
	List(ctx context.Context) ([]types.Topic, error)
}

// Catalog is the on-disk format written by the research crawler.
type Catalog struct {
	FetchedAt  string        `json:"fetched_at"`
	TopicCount int           `json:"topic_count"`
	Topics     []types.Topic `json:"topics"`
}

// FileSource re-reads a catalog file on every List call so a crawler can
// refresh it while the server runs.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: strings.TrimSpace(path)}
}

// List returns the catalog topics in file order. A missing file yields an
// empty list.
func (s *FileSource) List(ctx context.Context) ([]types.Topic, error) {
	cat, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return cat.Topics, nil
}

func (s *FileSource) Load(ctx context.Context) (Catalog, error) {
	if s.path == "" {
		return Catalog{Topics: []types.Topic{}}, nil
	}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warnf(ctx, "no topics file found at %s", s.path)
		return Catalog{Topics: []types.Topic{}}, nil
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("read topics: %w", err)
	}
	var cat Catalog
	if err := sonic.Unmarshal(raw, &cat); err != nil {
		return Catalog{}, fmt.Errorf("decode topics %s: %w", s.path, err)
	}

	kept := cat.Topics[:0]
	for i, t := range cat.Topics {
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			continue
		}
		if t.ID == 0 {
			t.ID = i + 1
		}
		kept = append(kept, t)
	}
	cat.Topics = kept
	if cat.Topics == nil {
		cat.Topics = []types.Topic{}
	}
	if cat.FetchedAt == "" {
		cat.FetchedAt = "unknown"
	}
	logger.Debugf(ctx, "loaded %d topics (fetched: %s)", len(cat.Topics), cat.FetchedAt)
	return cat, nil
}

// Save writes topics in the catalog format, stamping the fetch time.
func (s *FileSource) Save(topics []types.Topic, now time.Time) error {
	cat := Catalog{
		FetchedAt:  now.Format(time.RFC3339),
		TopicCount: len(topics),
		Topics:     topics,
	}
	raw, err := sonic.ConfigStd.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write topics: %w", err)
	}
	return nil
}
