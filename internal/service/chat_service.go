package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/tubetalk/tubetalk/internal/ai"
	"github.com/tubetalk/tubetalk/internal/index"
	"github.com/tubetalk/tubetalk/internal/model"
	"github.com/tubetalk/tubetalk/internal/pkg/errs"
)

const DefaultTopK = 4

type ChatConfig struct {
	TopK             int
	MaxQuestionChars int
}

// ChatService runs the read path: question -> embedding -> nearest-neighbor
// query -> context assembly -> answer.
type ChatService struct {
	embed    Embedder
	answerer Answerer
	idx      index.Index
	cfg      ChatConfig
	cache    *expirable.LRU[string, string]
	backoff  time.Duration
}

func NewChatService(embed Embedder, answerer Answerer, idx index.Index, cfg ChatConfig) *ChatService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &ChatService{
		embed:    embed,
		answerer: answerer,
		idx:      idx,
		cfg:      cfg,
		cache:    expirable.NewLRU[string, string](10000, nil, 2*time.Hour),
		backoff:  500 * time.Millisecond,
	}
}

// Retrieve returns the top-k chunks most similar to the question, ordered by
// descending score with ties broken by ascending chunk sequence. Asking about
// a video that was never loaded fails with errs.ErrCollectionNotFound; a
// loaded video with no relevant chunks yields an empty result.
func (s *ChatService) Retrieve(ctx context.Context, videoID, question string, k int) ([]model.ScoredChunk, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, fmt.Errorf("%w: video id is required", errs.ErrInvalid)
	}
	if k <= 0 {
		k = s.cfg.TopK
	}
	logger := logutil.GetLogger(ctx).With(zap.String("video_id", videoID))

	exists, err := s.idx.Exists(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.ErrCollectionNotFound
	}

	var vector []float32
	err = s.retryOnce(ctx, logger, "embed question", func() error {
		var embedErr error
		vector, embedErr = s.embed.Embed(ctx, question, ai.TaskTypeQuery)
		return embedErr
	})
	if err != nil {
		logger.Error("failed to embed question", zap.Error(err))
		return nil, err
	}

	var hits []model.ScoredChunk
	err = s.retryOnce(ctx, logger, "index query", func() error {
		var queryErr error
		hits, queryErr = s.idx.Query(ctx, videoID, vector, k)
		return queryErr
	})
	if err != nil {
		logger.Error("index query failed", zap.Error(err))
		return nil, err
	}

	// backends rank by similarity already; re-sorting pins down tie order so
	// retrieval stays deterministic
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.Seq < hits[j].Chunk.Seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Ask answers a question about a loaded video. Answers are cached per
// (video, question) pair.
func (s *ChatService) Ask(ctx context.Context, videoID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question is required", errs.ErrInvalid)
	}
	if max := s.cfg.MaxQuestionChars; max > 0 && len(question) > max {
		return "", fmt.Errorf("%w: question too long", errs.ErrInvalid)
	}
	cacheKey := s.cacheKey(videoID, question)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}
	hits, err := s.Retrieve(ctx, videoID, question, s.cfg.TopK)
	if err != nil {
		return "", err
	}
	answer, err := s.answerer.Answer(ctx, AssembleContext(hits), question)
	if err != nil {
		return "", err
	}
	s.cache.Add(cacheKey, answer)
	return answer, nil
}

// AssembleContext joins chunk texts in rank order with a blank line. Rank
// order, not video order: the most relevant excerpt leads the prompt.
func AssembleContext(hits []model.ScoredChunk) string {
	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		parts = append(parts, hit.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}

func (s *ChatService) retryOnce(ctx context.Context, logger *zap.Logger, op string, fn func() error) error {
	err := fn()
	if err == nil || !errs.IsRetryable(err) {
		return err
	}
	logger.Warn("upstream call failed, retrying once", zap.String("op", op), zap.Error(err))
	select {
	case <-ctx.Done():
		return err
	case <-time.After(s.backoff):
	}
	return fn()
}

func (s *ChatService) cacheKey(videoID, question string) string {
	hash := sha256.Sum256([]byte(question))
	return videoID + ":" + hex.EncodeToString(hash[:])
}
