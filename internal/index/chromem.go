package index

import (
	"context"
	"fmt"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/tubetalk/tubetalk/internal/model"
	"github.com/tubetalk/tubetalk/internal/pkg/errs"
)

type chromemConfig struct {
	Path     string `json:"path"`
	Compress bool   `json:"compress"`
}

// chromemIndex runs an embedded chromem-go store, optionally persisted to
// disk. Embeddings are always supplied by the caller, so the collections use
// no embedding function of their own.
type chromemIndex struct {
	db *chromem.DB
}

func init() {
	Register("chromem", createChromemIndex)
}

func createChromemIndex(args interface{}, deps Deps) (Index, error) {
	cfg := &chromemConfig{}
	if args != nil {
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Path == "" {
		return &chromemIndex{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &chromemIndex{db: db}, nil
}

func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding is precomputed")
}

func (c *chromemIndex) Replace(ctx context.Context, collection string, items []Item) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no items to store", errs.ErrInvalid)
	}
	if err := c.db.DeleteCollection(collection); err != nil {
		return err
	}
	coll, err := c.db.CreateCollection(collection, nil, noEmbedding)
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, 0, len(items))
	for _, item := range items {
		docs = append(docs, chromem.Document{
			ID:        item.ID,
			Content:   item.Chunk.Text,
			Embedding: item.Vector,
			Metadata: map[string]string{
				"video_id": item.Chunk.VideoID,
				"seq":      strconv.Itoa(item.Chunk.Seq),
				"start":    strconv.Itoa(item.Chunk.Start),
				"end":      strconv.Itoa(item.Chunk.End),
			},
		})
	}
	return coll.AddDocuments(ctx, docs, 1)
}

func (c *chromemIndex) Query(ctx context.Context, collection string, vector []float32, k int) ([]model.ScoredChunk, error) {
	coll := c.db.GetCollection(collection, noEmbedding)
	if coll == nil {
		return nil, errs.ErrCollectionNotFound
	}
	// chromem rejects nResults above the document count
	if count := coll.Count(); k > count {
		k = count
	}
	if k == 0 {
		return nil, nil
	}
	hits, err := coll.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, err
	}
	results := make([]model.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		seq, _ := strconv.Atoi(hit.Metadata["seq"])
		start, _ := strconv.Atoi(hit.Metadata["start"])
		end, _ := strconv.Atoi(hit.Metadata["end"])
		results = append(results, model.ScoredChunk{
			Chunk: model.Chunk{
				VideoID: hit.Metadata["video_id"],
				Seq:     seq,
				Text:    hit.Content,
				Start:   start,
				End:     end,
			},
			Score: hit.Similarity,
		})
	}
	return results, nil
}

func (c *chromemIndex) Exists(ctx context.Context, collection string) (bool, error) {
	return c.db.GetCollection(collection, noEmbedding) != nil, nil
}

func (c *chromemIndex) Delete(ctx context.Context, collection string) error {
	return c.db.DeleteCollection(collection)
}
