package index

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// HNSWConfig holds the graph construction and search parameters.
type HNSWConfig struct {
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultHNSWConfig mirrors the defaults used for the production index.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfConstruction: 200, EfSearch: 50}
}

// HNSW is an approximate inner-product index over a hierarchical
// navigable-small-world graph. Recall is tunable via EfSearch.
type HNSW struct {
	mu  sync.RWMutex
	dim int
	cfg HNSWConfig
	ml  float64

	vectors   [][]float32
	metas     []Metadata
	levels    []int
	neighbors [][][]int32 // node -> layer -> neighbor ids

	entry    int
	maxLevel int
	rng      *rand.Rand
}

// NewHNSW creates an empty HNSW index for vectors of the given dimension.
func NewHNSW(dim int, cfg HNSWConfig) *HNSW {
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = 200
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = 50
	}
	return &HNSW{
		dim:   dim,
		cfg:   cfg,
		ml:    1.0 / math.Log(float64(cfg.M)),
		entry: -1,
		rng:   rand.New(rand.NewSource(42)),
	}
}

// Add inserts vectors and their metadata into the graph.
func (h *HNSW) Add(vectors [][]float32, metas []Metadata) error {
	if len(vectors) != len(metas) {
		return fmt.Errorf("%w: %d vectors, %d metadata records", ErrMetadataSkew, len(vectors), len(metas))
	}
	for _, v := range vectors {
		if len(v) != h.dim {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), h.dim)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range vectors {
		h.insert(vectors[i], metas[i])
	}
	return nil
}

func (h *HNSW) insert(vec []float32, meta Metadata) {
	id := len(h.vectors)
	level := int(math.Floor(-math.Log(h.rng.Float64()) * h.ml))

	h.vectors = append(h.vectors, vec)
	h.metas = append(h.metas, meta)
	h.levels = append(h.levels, level)
	layers := make([][]int32, level+1)
	h.neighbors = append(h.neighbors, layers)

	if h.entry < 0 {
		h.entry = id
		h.maxLevel = level
		return
	}

	curr := h.entry
	for l := h.maxLevel; l > level; l-- {
		curr = h.greedyClosest(vec, curr, l)
	}

	top := level
	if h.maxLevel < top {
		top = h.maxLevel
	}
	for l := top; l >= 0; l-- {
		cands := h.searchLayer(vec, []int{curr}, h.cfg.EfConstruction, l)
		m := h.cfg.M
		if len(cands) < m {
			m = len(cands)
		}
		for _, c := range cands[:m] {
			h.link(id, c.id, l)
			h.link(c.id, id, l)
		}
		if len(cands) > 0 {
			curr = cands[0].id
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = id
	}
}

// link adds dst to src's neighbor list at the given layer, pruning to the
// layer's degree cap by keeping the closest neighbors.
func (h *HNSW) link(src, dst int, layer int) {
	maxDeg := h.cfg.M
	if layer == 0 {
		maxDeg = 2 * h.cfg.M
	}

	nbrs := h.neighbors[src][layer]
	for _, n := range nbrs {
		if int(n) == dst {
			return
		}
	}
	nbrs = append(nbrs, int32(dst))
	if len(nbrs) > maxDeg {
		// Evict the farthest neighbor from src.
		worst, worstScore := -1, float32(math.MaxFloat32)
		for i, n := range nbrs {
			s := dot(h.vectors[src], h.vectors[n])
			if s < worstScore {
				worst, worstScore = i, s
			}
		}
		nbrs[worst] = nbrs[len(nbrs)-1]
		nbrs = nbrs[:len(nbrs)-1]
	}
	h.neighbors[src][layer] = nbrs
}

func (h *HNSW) greedyClosest(q []float32, start, layer int) int {
	curr := start
	currScore := dot(q, h.vectors[curr])
	for {
		improved := false
		for _, n := range h.neighbors[curr][layer] {
			if s := dot(q, h.vectors[n]); s > currScore {
				curr, currScore = int(n), s
				improved = true
			}
		}
		if !improved {
			return curr
		}
	}
}

type scored struct {
	id    int
	score float32
}

// searchLayer runs a best-first beam of width ef over one layer, returning
// candidates sorted best first.
func (h *HNSW) searchLayer(q []float32, entries []int, ef, layer int) []scored {
	visited := make(map[int]struct{}, ef*2)
	cand := &maxScoreHeap{}
	result := &minScoreHeap{}
	heap.Init(cand)
	heap.Init(result)

	for _, e := range entries {
		if _, ok := visited[e]; ok {
			continue
		}
		visited[e] = struct{}{}
		s := scored{e, dot(q, h.vectors[e])}
		heap.Push(cand, s)
		heap.Push(result, s)
	}

	for cand.Len() > 0 {
		c := heap.Pop(cand).(scored)
		if result.Len() >= ef && c.score < (*result)[0].score {
			break
		}
		for _, n := range h.neighbors[c.id][layer] {
			id := int(n)
			if _, ok := visited[id]; ok {
				continue
			}
			visited[id] = struct{}{}
			s := scored{id, dot(q, h.vectors[id])}
			if result.Len() < ef || s.score > (*result)[0].score {
				heap.Push(cand, s)
				heap.Push(result, s)
				if result.Len() > ef {
					heap.Pop(result)
				}
			}
		}
	}

	out := make([]scored, result.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(result).(scored)
	}
	return out
}

// Search returns the k nearest vectors by inner product, best first.
func (h *HNSW) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != h.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), h.dim)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.entry < 0 {
		return nil, ErrNotInitialized
	}
	if k <= 0 {
		return nil, nil
	}

	curr := h.entry
	for l := h.maxLevel; l > 0; l-- {
		curr = h.greedyClosest(query, curr, l)
	}

	ef := h.cfg.EfSearch
	if ef < k {
		ef = k
	}
	cands := h.searchLayer(query, []int{curr}, ef, 0)
	if len(cands) > k {
		cands = cands[:k]
	}

	hits := make([]Hit, len(cands))
	for i, c := range cands {
		hits[i] = Hit{Position: c.id, Score: c.score, Meta: h.metas[c.id]}
	}
	return hits, nil
}

// Len reports the number of stored vectors.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vectors)
}

// Dimensions reports the vector dimension.
func (h *HNSW) Dimensions() int {
	return h.dim
}

// maxScoreHeap pops the highest score first.
type maxScoreHeap []scored

func (h maxScoreHeap) Len() int            { return len(h) }
func (h maxScoreHeap) Less(i, j int) bool  { return h[i].score > h[j].score }
func (h maxScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxScoreHeap) Push(x interface{}) { *h = append(*h, x.(scored)) }
func (h *maxScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// minScoreHeap pops the lowest score first.
type minScoreHeap []scored

func (h minScoreHeap) Len() int            { return len(h) }
func (h minScoreHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h minScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minScoreHeap) Push(x interface{}) { *h = append(*h, x.(scored)) }
func (h *minScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
