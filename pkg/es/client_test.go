package es

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bents-assistant-go/internal/config"
	"bents-assistant-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(config.ElasticsearchConfig{Addresses: srv.URL})
	require.NoError(t, err)
	return client
}

func TestKNNSearchParsesHits(t *testing.T) {
	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/transcripts-bents/_search"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_score":0.92,"_source":{"chunk_id":"Router Basics_chunk_0","title":"Router Basics","url":"https://youtu.be/r","text_content":"set the depth"}},
			{"_score":0.81,"_source":{"chunk_id":"Router Basics_chunk_1","title":"Router Basics","text_content":"climb cut"}}
		]}}`))
	})

	chunks, err := client.KNNSearch(context.Background(), "transcripts-bents", []float32{0.1, 0.2}, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, model.TranscriptChunk{
		Text: "set the depth", Title: "Router Basics", SourceURL: "https://youtu.be/r",
		ChunkID: "Router Basics_chunk_0", Score: 0.92,
	}, chunks[0])
	assert.Empty(t, chunks[1].SourceURL)

	knn := body["knn"].(map[string]interface{})
	assert.EqualValues(t, 2, knn["k"])
	assert.EqualValues(t, 50, knn["num_candidates"])
	assert.EqualValues(t, 2, body["size"])
}

func TestKNNSearchErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
	})

	_, err := client.KNNSearch(context.Background(), "transcripts-missing", []float32{1}, 3)
	assert.Error(t, err)
}

func TestEnsureIndexCreatesMissingIndex(t *testing.T) {
	var created string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			created = r.URL.Path
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		}
	})

	require.NoError(t, client.EnsureIndex(context.Background(), "transcripts-bents", 8))
	assert.Equal(t, "/transcripts-bents", created)
}

func TestEnsureIndexSkipsExistingIndex(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, client.EnsureIndex(context.Background(), "transcripts-bents", 8))
}

func TestDocumentIDIsStable(t *testing.T) {
	a := DocumentID("transcripts-bents", "Shop Tour / 2024_chunk_0")
	assert.Equal(t, a, DocumentID("transcripts-bents", "Shop Tour / 2024_chunk_0"))
	assert.NotEqual(t, a, DocumentID("transcripts-bents", "Shop Tour / 2024_chunk_1"))
	assert.NotContains(t, a, "/")
}
