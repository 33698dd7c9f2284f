package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tubetalk/tubetalk/internal/model"
)

// Item is one embedded chunk as stored by a backend. ID must be stable across
// reloads of the same video so that re-ingestion replaces rather than
// duplicates.
type Item struct {
	ID     string
	Vector []float32
	Chunk  model.Chunk
}

// Index stores embedded chunks per collection (one collection per video) and
// answers nearest-neighbor queries. Replace replaces the whole collection
// content in one call; partially written collections must not survive a failed
// Replace on backends that cannot write atomically, so callers pair Replace
// with Delete on failure.
type Index interface {
	Replace(ctx context.Context, collection string, items []Item) error
	Query(ctx context.Context, collection string, vector []float32, k int) ([]model.ScoredChunk, error)
	Exists(ctx context.Context, collection string) (bool, error)
	Delete(ctx context.Context, collection string) error
}

type Config struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Deps carries process-wide handles a backend may need.
type Deps struct {
	DB *sql.DB
}

type Factory func(args interface{}, deps Deps) (Index, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg Config, deps Deps) (Index, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("index.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported index type: %s", cfg.Type)
	}
	return factory(cfg.Data, deps)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("index config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode index config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode index config: %w", err)
	}
	return nil
}
