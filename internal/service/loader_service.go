package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/tubetalk/tubetalk/internal/ai"
	"github.com/tubetalk/tubetalk/internal/captions"
	"github.com/tubetalk/tubetalk/internal/index"
	"github.com/tubetalk/tubetalk/internal/model"
	"github.com/tubetalk/tubetalk/internal/pkg/errs"
	"github.com/tubetalk/tubetalk/internal/splitter"
	"github.com/tubetalk/tubetalk/internal/transcriptstore"
)

type LoaderConfig struct {
	ChunkSize  int
	Overlap    int
	ReuseCache bool
}

type LoadResult struct {
	VideoID    string `json:"video_id"`
	ChunkCount int    `json:"chunk_count"`
	Collection string `json:"collection"`
}

// LoaderService runs the write path: captions -> concat -> split -> embed ->
// index, one collection per video. Loads of the same video are serialized so
// two concurrent requests cannot interleave writes into one collection.
type LoaderService struct {
	source  CaptionSource
	embed   Embedder
	idx     index.Index
	archive transcriptstore.Store
	cfg     LoaderConfig

	backoff time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLoaderService(source CaptionSource, embed Embedder, idx index.Index, archive transcriptstore.Store, cfg LoaderConfig) *LoaderService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = splitter.DefaultChunkSize
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = splitter.DefaultOverlap
	}
	return &LoaderService{
		source:  source,
		embed:   embed,
		idx:     idx,
		archive: archive,
		cfg:     cfg,
		backoff: 500 * time.Millisecond,
		locks:   make(map[string]*sync.Mutex),
	}
}

// LoadVideo is idempotent: re-loading a video replaces its collection with
// the equivalent of a single load. On any failure past the first index write
// the collection is torn down so a half-written collection is never queryable.
func (s *LoaderService) LoadVideo(ctx context.Context, videoID string) (*LoadResult, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, fmt.Errorf("%w: video id is required", errs.ErrInvalid)
	}
	unlock := s.lock(videoID)
	defer unlock()

	logger := logutil.GetLogger(ctx).With(zap.String("video_id", videoID))

	text, err := s.transcriptText(ctx, videoID)
	if err != nil {
		return nil, err
	}
	chunks, err := splitter.Split(text, s.cfg.ChunkSize, s.cfg.Overlap)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, errs.ErrNoCaptions
	}
	items := make([]index.Item, 0, len(chunks))
	for i := range chunks {
		chunks[i].VideoID = videoID
		var vector []float32
		err := s.retryOnce(ctx, logger, "embed chunk", func() error {
			var embedErr error
			vector, embedErr = s.embed.Embed(ctx, chunks[i].Text, ai.TaskTypeDocument)
			return embedErr
		})
		if err != nil {
			logger.Error("failed to embed chunk", zap.Int("seq", chunks[i].Seq), zap.Error(err))
			return nil, err
		}
		items = append(items, index.Item{
			ID:     fmt.Sprintf("%s:%d", videoID, chunks[i].Seq),
			Vector: vector,
			Chunk:  chunks[i],
		})
	}
	err = s.retryOnce(ctx, logger, "index replace", func() error {
		return s.idx.Replace(ctx, videoID, items)
	})
	if err != nil {
		logger.Error("failed to store chunks, tearing down collection", zap.Error(err))
		if delErr := s.idx.Delete(context.WithoutCancel(ctx), videoID); delErr != nil {
			logger.Warn("collection teardown failed", zap.Error(delErr))
		}
		return nil, err
	}
	logger.Info("video loaded", zap.Int("chunks", len(items)))
	return &LoadResult{
		VideoID:    videoID,
		ChunkCount: len(items),
		Collection: videoID,
	}, nil
}

func (s *LoaderService) transcriptText(ctx context.Context, videoID string) (string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("video_id", videoID))
	if s.archive != nil && s.cfg.ReuseCache {
		data, err := s.archive.Load(ctx, videoID)
		if err == nil && len(data) > 0 {
			logger.Debug("transcript served from archive", zap.Int("size", len(data)))
			return string(data), nil
		}
		if err != nil && !errors.Is(err, transcriptstore.ErrNotFound) {
			logger.Warn("transcript archive read failed", zap.Error(err))
		}
	}
	var segments []model.TranscriptSegment
	err := s.retryOnce(ctx, logger, "fetch captions", func() error {
		var fetchErr error
		segments, fetchErr = s.source.GetTranscript(ctx, videoID)
		return fetchErr
	})
	if err != nil {
		return "", err
	}
	text := captions.Concat(segments)
	if strings.TrimSpace(text) == "" {
		return "", errs.ErrNoCaptions
	}
	if s.archive != nil {
		if saveErr := s.archive.Save(ctx, videoID, []byte(text)); saveErr != nil {
			logger.Warn("transcript archive write failed", zap.Error(saveErr))
		}
	}
	return text, nil
}

func (s *LoaderService) retryOnce(ctx context.Context, logger *zap.Logger, op string, fn func() error) error {
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

func (s *LoaderService) lock(videoID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[videoID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[videoID] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
