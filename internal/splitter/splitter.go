package splitter

import (
	"fmt"

	"github.com/tubetalk/tubetalk/internal/model"
	"github.com/tubetalk/tubetalk/internal/pkg/errs"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// Split segments text into overlapping chunks with a sliding window.
//
// Each chunk spans [pos, pos+chunkSize) clipped to the text length; the next
// window starts overlap bytes before the previous chunk's end, so adjacent
// chunks share exactly overlap bytes (less only when the boundary heuristic
// shortens a chunk). Concatenating the non-overlapping spans reconstructs the
// input exactly.
func Split(text string, chunkSize, overlap int) ([]model.Chunk, error) {
	if chunkSize <= 0 || overlap < 0 || chunkSize <= overlap {
		return nil, fmt.Errorf("%w: chunk_size=%d overlap=%d", errs.ErrInvalidConfig, chunkSize, overlap)
	}
	if len(text) == 0 {
		return nil, nil
	}

	var chunks []model.Chunk
	pos := 0
	for pos < len(text) {
		end := pos + chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = softenBoundary(text, pos, end, chunkSize, overlap)
		}
		shared := overlap
		if pos == 0 {
			shared = 0
		}
		chunks = append(chunks, model.Chunk{
			Seq:     len(chunks),
			Text:    text[pos:end],
			Start:   pos,
			End:     end,
			Overlap: shared,
		})
		if end >= len(text) {
			break
		}
		pos = end - overlap
	}
	return chunks, nil
}

// softenBoundary moves a mid-text cut back to the nearest preceding whitespace
// within the last 10% of the window. The hard cut stands when no whitespace is
// found there or when moving back would leave the chunk no longer than the
// overlap (which would stall the walk).
func softenBoundary(text string, pos, end, chunkSize, overlap int) int {
	lookback := chunkSize / 10
	if lookback == 0 {
		return end
	}
	min := end - lookback
	if min < pos {
		min = pos
	}
	for i := end - 1; i >= min; i-- {
		if !isSpace(text[i]) {
			continue
		}
		// cut after the whitespace byte so it stays with the current chunk
		if i+1-pos > overlap {
			return i + 1
		}
		break
	}
	return end
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
