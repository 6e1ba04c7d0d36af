package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/caremesh-ai/rampart/pkg/threat"
)

func TestRecordAndSnapshot(t *testing.T) {
	r := NewRegistry()

	r.Record(threat.ActionAllow, 10*time.Millisecond)
	r.Record(threat.ActionAllow, 20*time.Millisecond)
	r.Record(threat.ActionBlock, 30*time.Millisecond)
	r.Record(threat.ActionDeceive, 40*time.Millisecond)
	r.Record(threat.ActionMonitor, 10*time.Millisecond)
	r.Record(threat.ActionEscalate, 10*time.Millisecond)

	snap := r.Snapshot()
	if snap.Total != 6 {
		t.Errorf("expected 6 total, got %d", snap.Total)
	}
	if snap.ByAction[threat.ActionAllow] != 2 {
		t.Errorf("expected 2 allows, got %d", snap.ByAction[threat.ActionAllow])
	}
	if snap.ByAction[threat.ActionBlock] != 1 {
		t.Errorf("expected 1 block, got %d", snap.ByAction[threat.ActionBlock])
	}
	wantRate := 1.0 / 6.0
	if diff := snap.BlockRate - wantRate; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected block rate %f, got %f", wantRate, snap.BlockRate)
	}
	if snap.AvgLatency != 20*time.Millisecond {
		t.Errorf("expected avg latency 20ms, got %v", snap.AvgLatency)
	}
}

func TestEmptySnapshot(t *testing.T) {
	snap := NewRegistry().Snapshot()
	if snap.Total != 0 || snap.BlockRate != 0 || snap.AvgLatency != 0 {
		t.Fatalf("empty registry should snapshot to zeros, got %+v", snap)
	}
}

func TestReset(t *testing.T) {
	r := NewRegistry()
	r.Record(threat.ActionBlock, time.Millisecond)
	r.Reset()

	snap := r.Snapshot()
	if snap.Total != 0 || snap.ByAction[threat.ActionBlock] != 0 || snap.AvgLatency != 0 {
		t.Fatalf("reset should zero all counters, got %+v", snap)
	}
}

func TestConcurrentRecording(t *testing.T) {
	r := NewRegistry()

	const workers = 8
	const perWorker = 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				r.Record(threat.ActionAllow, time.Millisecond)
				r.Record(threat.ActionBlock, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := r.Snapshot()
	if snap.Total != workers*perWorker*2 {
		t.Fatalf("lost updates: expected %d, got %d", workers*perWorker*2, snap.Total)
	}
	if snap.BlockRate != 0.5 {
		t.Fatalf("expected block rate 0.5, got %f", snap.BlockRate)
	}
}
