package transcriptstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	commons3 "github.com/xxxsen/common/s3"
)

type s3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

// s3Store is a write-only archive: transcripts are uploaded for offline
// inspection and re-ingestion tooling, Load always reports a miss so the
// loader falls back to the caption source.
type s3Store struct {
	client *commons3.S3Client
	prefix string
}

func init() {
	Register("s3", createS3Store)
}

func createS3Store(args interface{}) (Store, error) {
	cfg := &s3Config{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 endpoint/bucket/secret_id/secret_key are required")
	}
	if cfg.Region == "" {
		cfg.Region = "cn"
	}
	client, err := commons3.New(
		commons3.WithEndpoint(cfg.Endpoint),
		commons3.WithSecret(cfg.SecretID, cfg.SecretKey),
		commons3.WithBucket(cfg.Bucket),
		commons3.WithRegion(cfg.Region),
		commons3.WithSSL(cfg.UseSSL),
	)
	if err != nil {
		return nil, err
	}
	return &s3Store{
		client: client,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *s3Store) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("transcript key is required")
	}
	objectKey := key + ".txt"
	if s.prefix != "" {
		objectKey = path.Join(s.prefix, objectKey)
	}
	if _, err := s.client.Upload(ctx, objectKey, bytes.NewReader(data), int64(len(data))); err != nil {
		return err
	}
	return nil
}

func (s *s3Store) Load(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	_ = key
	return nil, ErrNotFound
}
