package sentiment

import (
	"math"
	"sync"
	"time"
)

// VectorEntry is one stored embedding plus the sentiment it produced.
type VectorEntry struct {
	ArticleID string
	Vector    []float64
	Result    Result
	Symbol    string
	Title     string
	AddedAt   time.Time
}

// VectorStore is an in-memory embedding index keyed by article ID.
// Lookups are linear cosine scans; entry counts stay small enough
// (hundreds) that this beats index maintenance.
type VectorStore struct {
	mu      sync.RWMutex
	entries map[string]VectorEntry
}

// NewVectorStore creates an empty vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{entries: make(map[string]VectorEntry)}
}

// Add stores an entry, normalizing its vector first.
func (s *VectorStore) Add(entry VectorEntry) {
	entry.Vector = normalize(entry.Vector)
	s.mu.Lock()
	s.entries[entry.ArticleID] = entry
	s.mu.Unlock()
}

// Nearest returns the most similar stored entry and its cosine
// similarity. ok is false when the store is empty or no entry shares
// the vector dimension. Entries older than ttl are skipped when ttl is
// positive.
func (s *VectorStore) Nearest(vector []float64, ttl time.Duration, now time.Time) (VectorEntry, float64, bool) {
	query := normalize(vector)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best    VectorEntry
		bestSim = math.Inf(-1)
		found   bool
	)
	for _, e := range s.entries {
		if ttl > 0 && now.Sub(e.AddedAt) > ttl {
			continue
		}
		if len(e.Vector) != len(query) {
			continue
		}
		sim := dot(query, e.Vector)
		if sim > bestSim {
			bestSim = sim
			best = e
			found = true
		}
	}
	return best, bestSim, found
}

// Len returns the number of stored entries.
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries.
func (s *VectorStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]VectorEntry)
	s.mu.Unlock()
}

// normalize returns the L2-normalized copy of v. A zero vector is
// returned unchanged.
func normalize(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// dot computes the inner product of two equal-length vectors. With
// both normalized this is the cosine similarity.
func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
