package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, dim int) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := New(Config{
		IndexHost:  srv.URL,
		APIKey:     "test-key",
		Dimensions: dim,
		BatchSize:  2,
	})
	return client, srv
}

func statsHandler(dim, total int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"dimension":        dim,
			"totalVectorCount": total,
			"namespaces": map[string]interface{}{
				"__default__": map[string]int{"vectorCount": total},
			},
		})
	}
}

func TestConnect_VerifiesDimension(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/describe_index_stats", statsHandler(384, 10))
	client, _ := newTestClient(t, mux, 384)

	require.NoError(t, client.Connect(context.Background()))
	assert.True(t, client.Connected())
}

func TestConnect_DimensionMismatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/describe_index_stats", statsHandler(1536, 10))
	client, _ := newTestClient(t, mux, 384)

	err := client.Connect(context.Background())
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.False(t, client.Connected())
}

func TestUpsert_BeforeConnect(t *testing.T) {
	client := New(Config{IndexHost: "http://localhost:1", APIKey: "k"})
	_, err := client.Upsert(context.Background(), []Vector{{ID: "a"}})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestUpsert_Batches(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/describe_index_stats", statsHandler(2, 0))
	mux.HandleFunc("/vectors/upsert", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "test-key", r.Header.Get("Api-Key"))
		var body struct {
			Vectors   []Vector `json:"vectors"`
			Namespace string   `json:"namespace"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.LessOrEqual(t, len(body.Vectors), 2)
		assert.Equal(t, DefaultNamespace, body.Namespace)
		w.WriteHeader(http.StatusOK)
	})
	client, _ := newTestClient(t, mux, 2)
	require.NoError(t, client.Connect(context.Background()))

	vectors := []Vector{
		{ID: "p_chunk_0", Values: []float32{1, 0}},
		{ID: "p_chunk_1", Values: []float32{0, 1}},
		{ID: "p_chunk_2", Values: []float32{1, 1}},
	}
	res, err := client.Upsert(context.Background(), vectors)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Upserted)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestUpsert_ContinuesPastFailedBatch(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/describe_index_stats", statsHandler(2, 0))
	mux.HandleFunc("/vectors/upsert", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	client, _ := newTestClient(t, mux, 2)
	require.NoError(t, client.Connect(context.Background()))

	vectors := []Vector{
		{ID: "a", Values: []float32{1, 0}},
		{ID: "b", Values: []float32{0, 1}},
		{ID: "c", Values: []float32{1, 1}},
	}
	res, err := client.Upsert(context.Background(), vectors)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
	assert.Equal(t, 2, res.Failed)
}

func TestQuery_ReturnsMatches(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/describe_index_stats", statsHandler(2, 2))
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Vector          []float32              `json:"vector"`
			TopK            int                    `json:"topK"`
			IncludeMetadata bool                   `json:"includeMetadata"`
			Filter          map[string]interface{} `json:"filter"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 5, body.TopK)
		assert.True(t, body.IncludeMetadata)
		assert.Equal(t, "2301.04567", body.Filter["paper_id"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"matches": []Match{
				{ID: "2301.04567_chunk_0", Score: 0.92, Metadata: map[string]interface{}{"title": "T"}},
			},
		})
	})
	client, _ := newTestClient(t, mux, 2)
	require.NoError(t, client.Connect(context.Background()))

	matches, err := client.Query(context.Background(), []float32{1, 0}, 5, map[string]interface{}{"paper_id": "2301.04567"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "2301.04567_chunk_0", matches[0].ID)
	assert.InDelta(t, 0.92, matches[0].Score, 1e-9)
}

func TestDescribeStats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/describe_index_stats", statsHandler(384, 1234))
	client, _ := newTestClient(t, mux, 384)
	require.NoError(t, client.Connect(context.Background()))

	stats, err := client.DescribeStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 384, stats.Dimension)
	assert.Equal(t, 1234, stats.TotalVectorCount)
	assert.Equal(t, 1234, stats.Namespaces[DefaultNamespace])
}

func TestDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/describe_index_stats", statsHandler(2, 1))
	mux.HandleFunc("/vectors/delete", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs []string `json:"ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"a", "b"}, body.IDs)
		w.WriteHeader(http.StatusOK)
	})
	client, _ := newTestClient(t, mux, 2)
	require.NoError(t, client.Connect(context.Background()))

	assert.NoError(t, client.Delete(context.Background(), []string{"a", "b"}))
}
