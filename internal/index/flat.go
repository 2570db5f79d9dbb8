package index

import (
	"container/heap"
	"fmt"
	"sync"
)

// Flat is an exact inner-product index. Every search scans all vectors, so
// recall is perfect and build cost is zero.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
	metas   []Metadata
}

// NewFlat creates an empty flat index for vectors of the given dimension.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Add appends vectors and their metadata, keeping positions aligned.
func (f *Flat) Add(vectors [][]float32, metas []Metadata) error {
	if len(vectors) != len(metas) {
		return fmt.Errorf("%w: %d vectors, %d metadata records", ErrMetadataSkew, len(vectors), len(metas))
	}
	for _, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), f.dim)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = append(f.vectors, vectors...)
	f.metas = append(f.metas, metas...)
	return nil
}

// Search returns the k nearest vectors by inner product, best first.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), f.dim)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vectors) == 0 {
		return nil, ErrNotInitialized
	}
	if k <= 0 {
		return nil, nil
	}
	if k > len(f.vectors) {
		k = len(f.vectors)
	}

	h := &hitHeap{}
	heap.Init(h)
	for i, v := range f.vectors {
		score := dot(query, v)
		if h.Len() < k {
			heap.Push(h, Hit{Position: i, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = Hit{Position: i, Score: score}
			heap.Fix(h, 0)
		}
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(h).(Hit)
	}
	for i := range hits {
		hits[i].Meta = f.metas[hits[i].Position]
	}
	return hits, nil
}

// Len reports the number of stored vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimensions reports the vector dimension.
func (f *Flat) Dimensions() int {
	return f.dim
}

// hitHeap is a min-heap by Score so the worst of the current top-k sits at
// the root and can be evicted cheaply.
type hitHeap []Hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
