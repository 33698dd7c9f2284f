package transcriptstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	dir string
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	cfg := &localConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("transcript_store dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &localStore{dir: cfg.Dir}, nil
}

func (s *localStore) path(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("invalid transcript key: %q", key)
	}
	return filepath.Join(s.dir, key+".txt"), nil
}

func (s *localStore) Save(ctx context.Context, key string, data []byte) error {
	_ = ctx
	path, err := s.path(key)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *localStore) Load(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}
