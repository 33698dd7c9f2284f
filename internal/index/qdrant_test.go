package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tubetalk/tubetalk/internal/model"
	"github.com/tubetalk/tubetalk/internal/pkg/errs"
)

type qdrantCall struct {
	method string
	path   string
	body   map[string]interface{}
}

func newQdrantTestServer(t *testing.T, handler func(call qdrantCall, w http.ResponseWriter)) (*httptest.Server, func() []qdrantCall) {
	t.Helper()
	var mu sync.Mutex
	var calls []qdrantCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := qdrantCall{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&call.body)
		}
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()
		handler(call, w)
	}))
	return srv, func() []qdrantCall {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}
}

func TestQdrantReplace(t *testing.T) {
	srv, getCalls := newQdrantTestServer(t, func(call qdrantCall, w http.ResponseWriter) {
		if call.method == http.MethodDelete {
			// first load, nothing to drop yet
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
	})
	defer srv.Close()

	idx, err := New(Config{Type: "qdrant", Data: map[string]interface{}{"url": srv.URL}}, Deps{})
	require.NoError(t, err)

	items := []Item{
		{ID: "v1:0", Vector: []float32{1, 0}, Chunk: model.Chunk{VideoID: "v1", Seq: 0, Text: "alpha"}},
		{ID: "v1:1", Vector: []float32{0, 1}, Chunk: model.Chunk{VideoID: "v1", Seq: 1, Text: "beta"}},
	}
	require.NoError(t, idx.Replace(context.Background(), "v1", items))

	calls := getCalls()
	require.Len(t, calls, 3)
	require.Equal(t, http.MethodDelete, calls[0].method)
	require.Equal(t, "/collections/v1", calls[0].path)
	require.Equal(t, http.MethodPut, calls[1].method)
	require.Equal(t, "/collections/v1", calls[1].path)
	require.Equal(t, http.MethodPut, calls[2].method)
	require.Equal(t, "/collections/v1/points", calls[2].path)

	points, ok := calls[2].body["points"].([]interface{})
	require.True(t, ok)
	require.Len(t, points, 2)
	first := points[0].(map[string]interface{})
	wantID := uuid.NewSHA1(qdrantIDNamespace, []byte("v1:0")).String()
	require.Equal(t, wantID, first["id"], "point ids must be stable across reloads")
	payload := first["payload"].(map[string]interface{})
	require.Equal(t, "alpha", payload["text"])
	require.Equal(t, float64(0), payload["seq"])
}

func TestQdrantReplaceEmpty(t *testing.T) {
	idx, err := New(Config{Type: "qdrant", Data: map[string]interface{}{"url": "http://127.0.0.1:1"}}, Deps{})
	require.NoError(t, err)
	require.ErrorIs(t, idx.Replace(context.Background(), "v1", nil), errs.ErrInvalid)
}

func TestQdrantQuery(t *testing.T) {
	srv, _ := newQdrantTestServer(t, func(call qdrantCall, w http.ResponseWriter) {
		require.Equal(t, "/collections/v1/points/search", call.path)
		require.Equal(t, float64(4), call.body["limit"])
		require.Equal(t, true, call.body["with_payload"])
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.95,"payload":{"video_id":"v1","seq":1,"text":"closer","start":10,"end":20}},
			{"score":0.90,"payload":{"video_id":"v1","seq":0,"text":"farther","start":0,"end":12}}
		]}`))
	})
	defer srv.Close()

	idx, err := New(Config{Type: "qdrant", Data: map[string]interface{}{"url": srv.URL}}, Deps{})
	require.NoError(t, err)

	hits, err := idx.Query(context.Background(), "v1", []float32{1, 0}, 4)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, model.ScoredChunk{
		Chunk: model.Chunk{VideoID: "v1", Seq: 1, Text: "closer", Start: 10, End: 20},
		Score: 0.95,
	}, hits[0])
}

func TestQdrantQueryUnknownCollection(t *testing.T) {
	srv, _ := newQdrantTestServer(t, func(call qdrantCall, w http.ResponseWriter) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	idx, err := New(Config{Type: "qdrant", Data: map[string]interface{}{"url": srv.URL}}, Deps{})
	require.NoError(t, err)

	_, err = idx.Query(context.Background(), "missing", []float32{1, 0}, 4)
	require.ErrorIs(t, err, errs.ErrCollectionNotFound)

	exists, err := idx.Exists(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestQdrantSendsAPIKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		_, _ = w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	idx, err := New(Config{Type: "qdrant", Data: map[string]interface{}{"url": srv.URL, "api_key": "secret"}}, Deps{})
	require.NoError(t, err)

	exists, err := idx.Exists(context.Background(), "v1")
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, "secret", gotKey)
}
