package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tubetalk/tubetalk/internal/model"
	"github.com/tubetalk/tubetalk/internal/pkg/errs"
)

func TestSplitInvalidConfig(t *testing.T) {
	cases := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"zero chunk size", 0, 0},
		{"negative chunk size", -1, 0},
		{"negative overlap", 100, -1},
		{"overlap equals chunk size", 100, 100},
		{"overlap exceeds chunk size", 100, 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Split("some text", tc.chunkSize, tc.overlap)
			require.ErrorIs(t, err, errs.ErrInvalidConfig)
		})
	}
}

func TestSplitEmptyInput(t *testing.T) {
	chunks, err := Split("", 100, 10)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestSplitShortInputSingleChunk(t *testing.T) {
	chunks, err := Split("hello", 100, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "hello", chunks[0].Text)
	require.Equal(t, 0, chunks[0].Overlap)
}

func TestSplitUniformText(t *testing.T) {
	text := strings.Repeat("A", 2500)
	chunks, err := Split(text, 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.Equal(t, 1000, len(chunks[0].Text))
	require.Equal(t, 1000, len(chunks[1].Text))
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		require.Equal(t, prev.End-200, cur.Start, "adjacent chunks must share exactly the configured overlap")
		require.Equal(t, prev.Text[len(prev.Text)-200:], cur.Text[:200])
	}
	requireReconstructs(t, text, chunks)
}

func TestSplitReconstruction(t *testing.T) {
	inputs := []string{
		"the quick brown fox jumps over the lazy dog and keeps on running through the field",
		strings.Repeat("word boundary test with plenty of spaces to cut on ", 40),
		strings.Repeat("X", 3071),
		"a\nb\nc\nd\ne\nf\ng",
	}
	for _, text := range inputs {
		for _, cfg := range [][2]int{{1000, 200}, {100, 20}, {64, 0}, {10, 3}} {
			chunks, err := Split(text, cfg[0], cfg[1])
			require.NoError(t, err)
			requireReconstructs(t, text, chunks)
			for i, c := range chunks {
				require.NotEmpty(t, c.Text)
				require.Equal(t, i, c.Seq)
				if i < len(chunks)-1 {
					require.LessOrEqual(t, len(c.Text), cfg[0])
				}
				if i > 0 {
					shared := chunks[i-1].End - c.Start
					require.GreaterOrEqual(t, shared, 0)
					require.LessOrEqual(t, shared, cfg[1])
				}
			}
		}
	}
}

func TestSplitPrefersWhitespaceBoundary(t *testing.T) {
	// one space inside the last 10% of the window
	text := strings.Repeat("B", 955) + " " + strings.Repeat("C", 500)
	chunks, err := Split(text, 1000, 100)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	require.Equal(t, 956, chunks[0].End, "cut should land just after the whitespace")
	require.True(t, strings.HasSuffix(chunks[0].Text, " "))
	requireReconstructs(t, text, chunks)
}

func TestSplitHardCutWithoutWhitespace(t *testing.T) {
	text := strings.Repeat("D", 1500)
	chunks, err := Split(text, 1000, 200)
	require.NoError(t, err)
	require.Equal(t, 1000, chunks[0].End)
	requireReconstructs(t, text, chunks)
}

func requireReconstructs(t *testing.T, text string, chunks []model.Chunk) {
	t.Helper()
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Text[c.Overlap:])
	}
	require.Equal(t, text, sb.String())
}
