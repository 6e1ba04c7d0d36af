// Package metrics accumulates decision counts and latency for operational
// visibility. All updates are atomic increments, safe under concurrent
// writers; counters only decrease via an explicit Reset.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/caremesh-ai/rampart/pkg/threat"
)

// Registry accumulates pipeline outcomes.
type Registry struct {
	total     atomic.Int64
	allows    atomic.Int64
	blocks    atomic.Int64
	deceives  atomic.Int64
	monitors  atomic.Int64
	escalates atomic.Int64

	latencyTotal atomic.Int64 // nanoseconds
	latencyCount atomic.Int64
}

// Snapshot is a read-only aggregate of the registry at one point in time.
type Snapshot struct {
	Total      int64                   `json:"total"`
	ByAction   map[threat.Action]int64 `json:"by_action"`
	BlockRate  float64                 `json:"block_rate"`
	AvgLatency time.Duration           `json:"avg_latency_ns"`
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Record counts one decision and its latency.
func (r *Registry) Record(action threat.Action, latency time.Duration) {
	r.total.Add(1)
	switch action {
	case threat.ActionAllow:
		r.allows.Add(1)
	case threat.ActionBlock:
		r.blocks.Add(1)
	case threat.ActionDeceive:
		r.deceives.Add(1)
	case threat.ActionMonitor:
		r.monitors.Add(1)
	case threat.ActionEscalate:
		r.escalates.Add(1)
	}
	r.latencyTotal.Add(int64(latency))
	r.latencyCount.Add(1)
}

// Snapshot returns the current aggregates. Values are read individually,
// so a snapshot taken under concurrent writes is approximately consistent;
// no cross-counter ordering is guaranteed or needed.
func (r *Registry) Snapshot() Snapshot {
	total := r.total.Load()
	blocks := r.blocks.Load()

	snap := Snapshot{
		Total: total,
		ByAction: map[threat.Action]int64{
			threat.ActionAllow:    r.allows.Load(),
			threat.ActionBlock:    blocks,
			threat.ActionDeceive:  r.deceives.Load(),
			threat.ActionMonitor:  r.monitors.Load(),
			threat.ActionEscalate: r.escalates.Load(),
		},
	}
	if total > 0 {
		snap.BlockRate = float64(blocks) / float64(total)
	}
	if n := r.latencyCount.Load(); n > 0 {
		snap.AvgLatency = time.Duration(r.latencyTotal.Load() / n)
	}
	return snap
}

// Reset zeroes every counter. The only path by which counts decrease.
func (r *Registry) Reset() {
	r.total.Store(0)
	r.allows.Store(0)
	r.blocks.Store(0)
	r.deceives.Store(0)
	r.monitors.Store(0)
	r.escalates.Store(0)
	r.latencyTotal.Store(0)
	r.latencyCount.Store(0)
}
