package tracker

import (
	"sync"
	"testing"
)

func TestTracker(t *testing.T) {
	tr := New()
	op := "arm"

	stats := tr.Snapshot()
	if len(stats) != 0 {
		t.Errorf("Expected empty stats, got %d", len(stats))
	}

	tr.TrackSuccess(op)
	tr.TrackFailure(op)
	tr.TrackTimeout(op)
	tr.TrackRejected(op)
	tr.Track(op, true)
	tr.Track(op, false)

	stats = tr.Snapshot()
	s, ok := stats[op]
	if !ok {
		t.Fatalf("Expected stats for %s", op)
	}

	if s.Success != 2 {
		t.Errorf("Expected 2 Success, got %d", s.Success)
	}
	if s.Failures != 2 {
		t.Errorf("Expected 2 Failures, got %d", s.Failures)
	}
	if s.Timeouts != 1 {
		t.Errorf("Expected 1 Timeout, got %d", s.Timeouts)
	}
	if s.Rejected != 1 {
		t.Errorf("Expected 1 Rejected, got %d", s.Rejected)
	}
}

func TestResetKeepsOperations(t *testing.T) {
	tr := New()
	tr.TrackSuccess("land")

	tr.Reset()

	s, ok := tr.Snapshot()["land"]
	if !ok {
		t.Fatal("operation should still exist after reset")
	}
	if s.Success != 0 {
		t.Errorf("Success should be 0 after reset, got %d", s.Success)
	}
}

func TestConcurrentTracking(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.TrackSuccess("goto")
		}()
	}
	wg.Wait()

	if got := tr.Snapshot()["goto"].Success; got != 50 {
		t.Errorf("Expected 50, got %d", got)
	}
}
