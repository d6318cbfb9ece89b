// Package observability provides logging setup and run statistics for validation runs.
package observability

import (
	"sort"
	"sync"
	"time"
)

// RunStats tracks how much data a validation run has checked, per index.
// It is safe for concurrent use by parallel file validators.
type RunStats struct {
	mu      sync.Mutex
	started time.Time
	indexes map[int64]*IndexStats
}

// IndexStats holds counters for a single index.
type IndexStats struct {
	IndexID int64
	Files   int64
	Batches int64
	Rows    int64
}

// NewRunStats creates an empty statistics tracker.
func NewRunStats() *RunStats {
	return &RunStats{
		started: time.Now(),
		indexes: make(map[int64]*IndexStats),
	}
}

// RecordFile records one fully validated file of an index.
func (r *RunStats) RecordFile(indexID int64, batches, rows int64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.indexes[indexID]
	if !ok {
		s = &IndexStats{IndexID: indexID}
		r.indexes[indexID] = s
	}
	s.Files++
	s.Batches += batches
	s.Rows += rows
}

// Index returns a copy of the counters for one index.
func (r *RunStats) Index(indexID int64) IndexStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.indexes[indexID]; ok {
		return *s
	}
	return IndexStats{IndexID: indexID}
}

// Snapshot returns per-index counters ordered by index ID.
func (r *RunStats) Snapshot() []IndexStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]IndexStats, 0, len(r.indexes))
	for _, s := range r.indexes {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IndexID < out[j].IndexID
	})
	return out
}

// Totals sums the counters over all indexes.
func (r *RunStats) Totals() IndexStats {
	var t IndexStats
	for _, s := range r.Snapshot() {
		t.Files += s.Files
		t.Batches += s.Batches
		t.Rows += s.Rows
	}
	return t
}

// Elapsed returns the time since the tracker was created.
func (r *RunStats) Elapsed() time.Duration {
	return time.Since(r.started)
}
