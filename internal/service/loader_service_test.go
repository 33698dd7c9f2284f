package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubetalk/tubetalk/internal/index"
	"github.com/tubetalk/tubetalk/internal/model"
	"github.com/tubetalk/tubetalk/internal/pkg/errs"
)

type fakeCaptionSource struct {
	mu       sync.Mutex
	segments []model.TranscriptSegment
	err      error
	failOnce bool
	calls    int
}

func (f *fakeCaptionSource) GetTranscript(ctx context.Context, videoID string) ([]model.TranscriptSegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		if f.failOnce {
			err := f.err
			f.err = nil
			return nil, err
		}
		return nil, f.err
	}
	return f.segments, nil
}

type fakeServiceEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeServiceEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type fakeAnswerer struct {
	mu       sync.Mutex
	answer   string
	err      error
	calls    int
	contexts []string
}

func (f *fakeAnswerer) Answer(ctx context.Context, contextText, question string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.contexts = append(f.contexts, contextText)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// fakeIndex keeps collections in memory and can be told to fail Replace or
// Query a fixed number of times.
type fakeIndex struct {
	mu          sync.Mutex
	collections map[string][]index.Item
	hits        []model.ScoredChunk

	replaceFails int
	queryFails   int
	replaceCalls int
	deleteCalls  int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{collections: make(map[string][]index.Item)}
}

func (f *fakeIndex) Replace(ctx context.Context, collection string, items []index.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaceCalls++
	if f.replaceFails > 0 {
		f.replaceFails--
		return fmt.Errorf("%w: write refused", errs.ErrUpstream)
	}
	stored := make([]index.Item, len(items))
	copy(stored, items)
	f.collections[collection] = stored
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, collection string, vector []float32, k int) ([]model.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryFails > 0 {
		f.queryFails--
		return nil, fmt.Errorf("%w: query refused", errs.ErrUpstream)
	}
	if _, ok := f.collections[collection]; !ok {
		return nil, errs.ErrCollectionNotFound
	}
	hits := make([]model.ScoredChunk, len(f.hits))
	copy(hits, f.hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeIndex) Exists(ctx context.Context, collection string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[collection]
	return ok, nil
}

func (f *fakeIndex) Delete(ctx context.Context, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	delete(f.collections, collection)
	return nil
}

func segmentsFromText(text string) []model.TranscriptSegment {
	words := strings.Fields(text)
	segments := make([]model.TranscriptSegment, 0, len(words))
	for i, word := range words {
		segments = append(segments, model.TranscriptSegment{
			Text:  word,
			Start: float64(i),
			Dur:   1,
		})
	}
	return segments
}

func newTestLoader(source CaptionSource, idx index.Index) (*LoaderService, *fakeServiceEmbedder) {
	embed := &fakeServiceEmbedder{}
	svc := NewLoaderService(source, embed, idx, nil, LoaderConfig{ChunkSize: 40, Overlap: 10})
	svc.backoff = time.Millisecond
	return svc, embed
}

func TestLoaderLoadVideo(t *testing.T) {
	source := &fakeCaptionSource{segments: segmentsFromText(strings.Repeat("one two three four ", 10))}
	idx := newFakeIndex()
	svc, _ := newTestLoader(source, idx)

	result, err := svc.LoadVideo(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, "vid1", result.VideoID)
	assert.Equal(t, "vid1", result.Collection)
	assert.True(t, result.ChunkCount > 1)

	items := idx.collections["vid1"]
	require.Len(t, items, result.ChunkCount)
	for i, item := range items {
		assert.Equal(t, fmt.Sprintf("vid1:%d", i), item.ID)
		assert.Equal(t, "vid1", item.Chunk.VideoID)
		assert.Equal(t, i, item.Chunk.Seq)
		assert.NotEmpty(t, item.Vector)
	}
}

func TestLoaderLoadVideoIdempotent(t *testing.T) {
	source := &fakeCaptionSource{segments: segmentsFromText(strings.Repeat("alpha beta gamma ", 12))}
	idx := newFakeIndex()
	svc, _ := newTestLoader(source, idx)

	first, err := svc.LoadVideo(context.Background(), "vid1")
	require.NoError(t, err)
	second, err := svc.LoadVideo(context.Background(), "vid1")
	require.NoError(t, err)

	assert.Equal(t, first.ChunkCount, second.ChunkCount)
	assert.Len(t, idx.collections["vid1"], second.ChunkCount)
	assert.Equal(t, 2, idx.replaceCalls)
}

func TestLoaderLoadVideoInvalidID(t *testing.T) {
	svc, _ := newTestLoader(&fakeCaptionSource{}, newFakeIndex())
	_, err := svc.LoadVideo(context.Background(), "   ")
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestLoaderLoadVideoNoCaptions(t *testing.T) {
	source := &fakeCaptionSource{err: errs.ErrNoCaptions}
	idx := newFakeIndex()
	svc, _ := newTestLoader(source, idx)

	_, err := svc.LoadVideo(context.Background(), "vid1")
	assert.ErrorIs(t, err, errs.ErrNoCaptions)
	assert.Equal(t, 1, source.calls)
	assert.Empty(t, idx.collections)
}

func TestLoaderRetriesTransientFetch(t *testing.T) {
	source := &fakeCaptionSource{
		segments: segmentsFromText("hello world again and again and again"),
		err:      fmt.Errorf("%w: flaky", errs.ErrUpstream),
		failOnce: true,
	}
	svc, _ := newTestLoader(source, newFakeIndex())

	_, err := svc.LoadVideo(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestLoaderEmbedFailureLeavesNothingBehind(t *testing.T) {
	source := &fakeCaptionSource{segments: segmentsFromText(strings.Repeat("word ", 30))}
	idx := newFakeIndex()
	svc, embed := newTestLoader(source, idx)
	embed.err = fmt.Errorf("%w: quota", errs.ErrEmbeddingUnavailable)

	_, err := svc.LoadVideo(context.Background(), "vid1")
	assert.ErrorIs(t, err, errs.ErrEmbeddingUnavailable)
	assert.Equal(t, 0, idx.replaceCalls)
	assert.Empty(t, idx.collections)
}

func TestLoaderReplaceFailureTearsDownCollection(t *testing.T) {
	source := &fakeCaptionSource{segments: segmentsFromText(strings.Repeat("word ", 30))}
	idx := newFakeIndex()
	// two failures so the retry is also exhausted
	idx.replaceFails = 2
	svc, _ := newTestLoader(source, idx)

	_, err := svc.LoadVideo(context.Background(), "vid1")
	assert.ErrorIs(t, err, errs.ErrUpstream)
	assert.Equal(t, 1, idx.deleteCalls)
	assert.Empty(t, idx.collections)
}

func TestLoaderReplaceRetrySucceeds(t *testing.T) {
	source := &fakeCaptionSource{segments: segmentsFromText(strings.Repeat("word ", 30))}
	idx := newFakeIndex()
	idx.replaceFails = 1
	svc, _ := newTestLoader(source, idx)

	result, err := svc.LoadVideo(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, 2, idx.replaceCalls)
	assert.Len(t, idx.collections["vid1"], result.ChunkCount)
}

func TestLoaderSerializesSameVideo(t *testing.T) {
	source := &fakeCaptionSource{segments: segmentsFromText(strings.Repeat("word ", 30))}
	idx := newFakeIndex()
	svc, _ := newTestLoader(source, idx)

	var inFlight, maxInFlight int32
	slowSource := captionSourceFunc(func(ctx context.Context, videoID string) ([]model.TranscriptSegment, error) {
		current := atomic.AddInt32(&inFlight, 1)
		for {
			observed := atomic.LoadInt32(&maxInFlight)
			if current <= observed || atomic.CompareAndSwapInt32(&maxInFlight, observed, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return source.GetTranscript(ctx, videoID)
	})
	svc.source = slowSource

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.LoadVideo(context.Background(), "vid1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

type captionSourceFunc func(ctx context.Context, videoID string) ([]model.TranscriptSegment, error)

func (f captionSourceFunc) GetTranscript(ctx context.Context, videoID string) ([]model.TranscriptSegment, error) {
	return f(ctx, videoID)
}
