package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tubetalk/tubetalk/internal/model"
	"github.com/tubetalk/tubetalk/internal/pkg/errs"
)

// qdrant point ids must be integers or UUIDs, so stable string ids are mapped
// to deterministic v5 UUIDs under this namespace.
var qdrantIDNamespace = uuid.MustParse("9a3f5e60-7c1b-4b8e-9a37-52a4d1f0c9aa")

type qdrantConfig struct {
	URL     string `json:"url"`
	APIKey  string `json:"api_key"`
	Timeout int    `json:"timeout"`
}

// qdrantIndex is a minimal REST client to qdrant using cosine distance with
// one qdrant collection per video.
type qdrantIndex struct {
	url    string
	apiKey string
	client *http.Client
}

func init() {
	Register("qdrant", createQdrantIndex)
}

func createQdrantIndex(args interface{}, deps Deps) (Index, error) {
	cfg := &qdrantConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &qdrantIndex{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (q *qdrantIndex) Replace(ctx context.Context, collection string, items []Item) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no items to store", errs.ErrInvalid)
	}
	// drop-and-recreate keeps reloads idempotent even when the chunk count shrinks
	if err := q.Delete(ctx, collection); err != nil {
		return err
	}
	create := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     len(items[0].Vector),
			"distance": "Cosine",
		},
	}
	if err := q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", collection), create, nil); err != nil {
		return err
	}
	points := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		points = append(points, map[string]interface{}{
			"id":     uuid.NewSHA1(qdrantIDNamespace, []byte(item.ID)).String(),
			"vector": item.Vector,
			"payload": map[string]interface{}{
				"video_id": item.Chunk.VideoID,
				"seq":      item.Chunk.Seq,
				"text":     item.Chunk.Text,
				"start":    item.Chunk.Start,
				"end":      item.Chunk.End,
			},
		})
	}
	body := map[string]interface{}{"points": points}
	return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", collection), body, nil)
}

func (q *qdrantIndex) Query(ctx context.Context, collection string, vector []float32, k int) ([]model.ScoredChunk, error) {
	req := map[string]interface{}{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", collection), req, &resp)
	if err != nil {
		return nil, err
	}
	results := make([]model.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := model.Chunk{}
		if v, ok := r.Payload["video_id"].(string); ok {
			chunk.VideoID = v
		}
		if v, ok := r.Payload["seq"].(float64); ok {
			chunk.Seq = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		if v, ok := r.Payload["start"].(float64); ok {
			chunk.Start = int(v)
		}
		if v, ok := r.Payload["end"].(float64); ok {
			chunk.End = int(v)
		}
		results = append(results, model.ScoredChunk{Chunk: chunk, Score: r.Score})
	}
	return results, nil
}

func (q *qdrantIndex) Exists(ctx context.Context, collection string) (bool, error) {
	err := q.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", collection), nil, nil)
	if err == nil {
		return true, nil
	}
	if errs.IsCollectionNotFound(err) {
		return false, nil
	}
	return false, err
}

func (q *qdrantIndex) Delete(ctx context.Context, collection string) error {
	err := q.do(ctx, http.MethodDelete, fmt.Sprintf("/collections/%s", collection), nil, nil)
	if err != nil && !errs.IsCollectionNotFound(err) {
		return err
	}
	return nil
}

func (q *qdrantIndex) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.url+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant %s %s: %v", errs.ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errs.ErrCollectionNotFound
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: qdrant %s %s: %s: %s", errs.ErrUpstream, method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
