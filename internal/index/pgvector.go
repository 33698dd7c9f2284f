package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/tubetalk/tubetalk/internal/model"
	"github.com/tubetalk/tubetalk/internal/pkg/dbutil"
	"github.com/tubetalk/tubetalk/internal/pkg/errs"
)

// pgvectorIndex keeps all collections in one chunks table with a vector
// column; Replace is transactional, so a failed load never leaves a
// half-written collection queryable.
type pgvectorIndex struct {
	db *sql.DB
}

func init() {
	Register("pgvector", createPgvectorIndex)
}

func createPgvectorIndex(args interface{}, deps Deps) (Index, error) {
	_ = args
	if deps.DB == nil {
		return nil, fmt.Errorf("pgvector index requires a database connection")
	}
	return &pgvectorIndex{db: deps.DB}, nil
}

func (p *pgvectorIndex) Replace(ctx context.Context, collection string, items []Item) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no items to store", errs.ErrInvalid)
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	delSQL, delArgs, err := builder.BuildDelete("video_chunks", map[string]interface{}{"collection": collection})
	if err != nil {
		return err
	}
	delSQL, delArgs = dbutil.Finalize(delSQL, delArgs)
	if _, err := tx.ExecContext(ctx, delSQL, delArgs...); err != nil {
		return err
	}

	const insert = `
		INSERT INTO video_chunks (collection, chunk_id, seq, content, start_pos, end_pos, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, insert,
			collection,
			item.ID,
			item.Chunk.Seq,
			item.Chunk.Text,
			item.Chunk.Start,
			item.Chunk.End,
			pgvector.NewVector(item.Vector),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *pgvectorIndex) Query(ctx context.Context, collection string, vector []float32, k int) ([]model.ScoredChunk, error) {
	const query = `
		SELECT seq, content, start_pos, end_pos, 1 - (embedding <=> $1) AS score
		FROM video_chunks
		WHERE collection = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := p.db.QueryContext(ctx, query, pgvector.NewVector(vector), collection, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.ScoredChunk
	for rows.Next() {
		var item model.ScoredChunk
		if err := rows.Scan(&item.Chunk.Seq, &item.Chunk.Text, &item.Chunk.Start, &item.Chunk.End, &item.Score); err != nil {
			return nil, err
		}
		item.Chunk.VideoID = collection
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		exists, err := p.Exists(ctx, collection)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errs.ErrCollectionNotFound
		}
	}
	return results, nil
}

func (p *pgvectorIndex) Exists(ctx context.Context, collection string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM video_chunks WHERE collection = $1)`
	var exists bool
	if err := p.db.QueryRowContext(ctx, query, collection).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (p *pgvectorIndex) Delete(ctx context.Context, collection string) error {
	delSQL, delArgs, err := builder.BuildDelete("video_chunks", map[string]interface{}{"collection": collection})
	if err != nil {
		return err
	}
	delSQL, delArgs = dbutil.Finalize(delSQL, delArgs)
	_, err = p.db.ExecContext(ctx, delSQL, delArgs...)
	return err
}
