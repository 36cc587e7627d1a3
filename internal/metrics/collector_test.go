package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCollectorRecordItem(t *testing.T) {
	c := NewCollector()
	c.RecordItem("mesh", 100*time.Millisecond)
	c.RecordItem("mesh", 300*time.Millisecond)
	c.RecordItem("curvature", 50*time.Millisecond)

	snap := c.Snapshot()

	mesh, ok := snap.Stages["mesh"]
	if !ok {
		t.Fatal("expected mesh stage in snapshot")
	}
	if mesh.Count != 2 {
		t.Errorf("mesh count = %d, want 2", mesh.Count)
	}
	if mesh.MinTimeMs != 100 || mesh.MaxTimeMs != 300 {
		t.Errorf("mesh min/max = %d/%d, want 100/300", mesh.MinTimeMs, mesh.MaxTimeMs)
	}
	if mesh.AvgTimeMs != 200 {
		t.Errorf("mesh avg = %v, want 200", mesh.AvgTimeMs)
	}

	if _, ok := snap.Stages["distance"]; ok {
		t.Error("unrecorded stage should be omitted from snapshot")
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordItem("mesh", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := c.Snapshot().Stages["mesh"].Count; got != 800 {
		t.Errorf("count = %d, want 800", got)
	}
}
