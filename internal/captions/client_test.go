package captions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tubetalk/tubetalk/internal/model"
	"github.com/tubetalk/tubetalk/internal/pkg/errs"
)

const sampleXML = `<?xml version="1.0" encoding="utf-8" ?><transcript>` +
	`<text start="0.5" dur="2.1">hello world</text>` +
	`<text start="2.6" dur="1.8">it&amp;#39;s a test</text>` +
	`<text start="4.4" dur="0.9">  </text>` +
	`<text start="5.3" dur="3.0">goodbye</text>` +
	`</transcript>`

func TestGetTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "en", r.URL.Query().Get("lang"))
		require.Equal(t, "vid123", r.URL.Query().Get("v"))
		_, _ = w.Write([]byte(sampleXML))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	segments, err := client.GetTranscript(context.Background(), "vid123")
	require.NoError(t, err)
	require.Equal(t, []model.TranscriptSegment{
		{Text: "hello world", Start: 0.5, Dur: 2.1},
		{Text: "it's a test", Start: 2.6, Dur: 1.8},
		{Text: "goodbye", Start: 5.3, Dur: 3.0},
	}, segments)
}

func TestGetTranscriptNoCaptions(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(""))
			},
		},
		{
			name: "empty transcript",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<transcript></transcript>`))
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			client := New(Config{BaseURL: srv.URL})
			_, err := client.GetTranscript(context.Background(), "vid123")
			require.ErrorIs(t, err, errs.ErrNoCaptions)
		})
	}
}

func TestGetTranscriptUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	_, err := client.GetTranscript(context.Background(), "vid123")
	require.ErrorIs(t, err, errs.ErrUpstream)
}

func TestGetTranscriptEmptyVideoID(t *testing.T) {
	client := New(Config{})
	_, err := client.GetTranscript(context.Background(), "  ")
	require.ErrorIs(t, err, errs.ErrInvalid)
}

func TestConcat(t *testing.T) {
	segments := []model.TranscriptSegment{
		{Text: "one"},
		{Text: "two"},
		{Text: "three"},
	}
	require.Equal(t, "one two three", Concat(segments))
	require.Equal(t, "", Concat(nil))
}
