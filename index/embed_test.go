package index

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// letterVector embeds text as normalized letter counts.
func letterVector(text string) []float32 {
	v := make([]float32, 27)
	v[26] = 1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

type embedServer struct {
	*httptest.Server
	requests atomic.Int32
	inputs   atomic.Int32
}

func newEmbedServer(t *testing.T) *embedServer {
	t.Helper()
	s := &embedServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.requests.Add(1)
		s.inputs.Add(int32(len(req.Input)))

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		// Answer out of order to exercise index mapping.
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			data[i] = item{Object: "embedding", Embedding: letterVector(req.Input[j]), Index: j}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
	t.Cleanup(s.Close)
	return s
}

func TestEmbedBatch(t *testing.T) {
	srv := newEmbedServer(t)
	e := NewEmbedder(srv.URL, "test-key", "test-model")
	assert.Equal(t, "test-model", e.Model())

	vectors, err := e.EmbedBatch(context.Background(), []string{"abc", "zzz"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, letterVector("abc"), vectors[0])
	assert.Equal(t, letterVector("zzz"), vectors[1])

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, letterVector("hello"), vec)
}

func TestEmbedBatchEmpty(t *testing.T) {
	e := NewEmbedder("http://localhost:0", "test-key", "test-model")
	result, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestEmbedAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"auth"}}`))
	}))
	defer srv.Close()

	_, err := NewEmbedder(srv.URL, "k", "m").Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "embedding API error")
}
