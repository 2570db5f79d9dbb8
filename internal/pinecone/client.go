// Package pinecone is a minimal data-plane client for a Pinecone-compatible
// vector store. Only the operations the synchronizer and retriever need are
// implemented.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultUpsertBatchSize bounds one upsert request.
	DefaultUpsertBatchSize = 100
	// DefaultNamespace is the index default namespace.
	DefaultNamespace = "__default__"
)

var (
	// ErrNotConnected is returned when the client is used before Connect.
	ErrNotConnected = errors.New("pinecone client not connected")
	// ErrDimensionMismatch is returned when the index dimension disagrees
	// with the configured embedding dimension.
	ErrDimensionMismatch = errors.New("index dimension mismatch")
)

// Vector is one upsert record.
type Vector struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Match is one query hit. Values is populated only by QueryWithValues.
type Match struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Values   []float32              `json:"values,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Stats describes the index.
type Stats struct {
	Dimension        int
	TotalVectorCount int
	Namespaces       map[string]int
}

// UpsertResult reports how many vectors landed. Failed batches are logged
// and skipped rather than aborting the run.
type UpsertResult struct {
	Upserted int
	Failed   int
}

type Config struct {
	IndexHost  string
	APIKey     string
	Namespace  string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
}

// Client talks to one Pinecone index over its data-plane REST API.
type Client struct {
	host      string
	apiKey    string
	namespace string
	dim       int
	batchSize int
	http      *http.Client
	connected bool
}

func New(cfg Config) *Client {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultUpsertBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		host:      strings.TrimRight(cfg.IndexHost, "/"),
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		dim:       cfg.Dimensions,
		batchSize: cfg.BatchSize,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

// Connect verifies the index is reachable and that its dimension matches
// the configured embedding dimension.
func (c *Client) Connect(ctx context.Context) error {
	stats, err := c.describeStats(ctx)
	if err != nil {
		return fmt.Errorf("describe index: %w", err)
	}
	if c.dim > 0 && stats.Dimension != c.dim {
		return fmt.Errorf("%w: index has %d, expected %d", ErrDimensionMismatch, stats.Dimension, c.dim)
	}
	c.connected = true
	return nil
}

// Connected reports whether Connect has succeeded.
func (c *Client) Connected() bool {
	return c.connected
}

// Upsert writes vectors in batches. A failing batch is skipped and counted
// so one bad batch does not lose the rest of the run.
func (c *Client) Upsert(ctx context.Context, vectors []Vector) (UpsertResult, error) {
	if !c.connected {
		return UpsertResult{}, ErrNotConnected
	}

	var res UpsertResult
	for start := 0; start < len(vectors); start += c.batchSize {
		end := start + c.batchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		batch := vectors[start:end]

		body := map[string]interface{}{
			"vectors":   batch,
			"namespace": c.namespace,
		}
		if err := c.post(ctx, "/vectors/upsert", body, nil); err != nil {
			log.Printf("pinecone: upsert batch %d-%d failed: %v", start, end, err)
			res.Failed += len(batch)
			continue
		}
		res.Upserted += len(batch)
	}
	return res, nil
}

// Query searches the index. filter is a Pinecone metadata filter expression
// and may be nil.
func (c *Client) Query(ctx context.Context, vector []float32, topK int, filter map[string]interface{}) ([]Match, error) {
	return c.query(ctx, vector, topK, filter, false)
}

// QueryWithValues is Query with the stored vector values included in each
// match. Used to rebuild the local index from the remote store.
func (c *Client) QueryWithValues(ctx context.Context, vector []float32, topK int, filter map[string]interface{}) ([]Match, error) {
	return c.query(ctx, vector, topK, filter, true)
}

func (c *Client) query(ctx context.Context, vector []float32, topK int, filter map[string]interface{}, includeValues bool) ([]Match, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}

	body := map[string]interface{}{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
		"includeValues":   includeValues,
		"namespace":       c.namespace,
	}
	if filter != nil {
		body["filter"] = filter
	}

	var out struct {
		Matches []Match `json:"matches"`
	}
	if err := c.post(ctx, "/query", body, &out); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return out.Matches, nil
}

// Delete removes vectors by id.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if !c.connected {
		return ErrNotConnected
	}
	body := map[string]interface{}{
		"ids":       ids,
		"namespace": c.namespace,
	}
	if err := c.post(ctx, "/vectors/delete", body, nil); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// DescribeStats returns index statistics.
func (c *Client) DescribeStats(ctx context.Context) (Stats, error) {
	if !c.connected {
		return Stats{}, ErrNotConnected
	}
	return c.describeStats(ctx)
}

func (c *Client) describeStats(ctx context.Context) (Stats, error) {
	var out struct {
		Dimension        int `json:"dimension"`
		TotalVectorCount int `json:"totalVectorCount"`
		Namespaces       map[string]struct {
			VectorCount int `json:"vectorCount"`
		} `json:"namespaces"`
	}
	if err := c.post(ctx, "/describe_index_stats", map[string]interface{}{}, &out); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Dimension:        out.Dimension,
		TotalVectorCount: out.TotalVectorCount,
		Namespaces:       make(map[string]int, len(out.Namespaces)),
	}
	for name, ns := range out.Namespaces {
		stats.Namespaces[name] = ns.VectorCount
	}
	return stats, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
