package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longtime/assistant/internal/log"
)

// embedServer runs a fake OpenAI-compatible /embeddings endpoint that
// returns vecs in the given index order.
func embedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeEmbeddings(t *testing.T, w http.ResponseWriter, indexed map[int][]float32) {
	t.Helper()

	type datum struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	var data []datum
	for i, v := range indexed {
		data = append(data, datum{Index: i, Embedding: v})
	}
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
}

func TestClientEmbed(t *testing.T) {
	t.Parallel()

	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		assert.Equal(t, []string{"hello"}, req.Input)

		writeEmbeddings(t, w, map[int][]float32{0: {0.1, 0.2, 0.3}})
	})

	client := NewClient(Config{BaseURL: srv.URL, Model: "all-minilm", APIKey: "secret"}, log.NewNop())

	vec, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestClientEmbedBatchOrdersByIndex(t *testing.T) {
	t.Parallel()

	// The server answers out of order; the client must realign by index.
	srv := embedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeEmbeddings(t, w, map[int][]float32{
			1: {2, 2},
			0: {1, 1},
			2: {3, 3},
		})
	})

	client := NewClient(Config{BaseURL: srv.URL, Model: "m"}, log.NewNop())

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{1, 1}, vecs[0])
	assert.Equal(t, []float32{2, 2}, vecs[1])
	assert.Equal(t, []float32{3, 3}, vecs[2])
}

func TestClientEmbedBatchEmptyInput(t *testing.T) {
	t.Parallel()

	client := NewClient(Config{BaseURL: "http://unused.invalid", Model: "m"}, log.NewNop())

	vecs, err := client.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestClientEmbedErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "server error status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model loading", http.StatusServiceUnavailable)
			},
			wantErr: "status 503",
		},
		{
			name: "vector count mismatch",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeEmbeddings(t, w, map[int][]float32{0: {1}, 1: {2}})
			},
			wantErr: "2 vectors for 1 inputs",
		},
		{
			name: "empty vector",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeEmbeddings(t, w, map[int][]float32{0: {}})
			},
			wantErr: "empty vector",
		},
		{
			name: "out of range index",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeEmbeddings(t, w, map[int][]float32{5: {1, 2}})
			},
			wantErr: "out-of-range index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := embedServer(t, tt.handler)
			client := NewClient(Config{BaseURL: srv.URL, Model: "m"}, log.NewNop())

			_, err := client.Embed(context.Background(), "text")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
