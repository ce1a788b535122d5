package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trashinator/internal/service"
)

type fakeCloser struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCloser) CloseStale() (service.CloseResult, error) {
	f.calls.Add(1)
	return service.CloseResult{Completed: 1}, f.err
}

type fakeStats struct {
	calls atomic.Int32
	err   error
}

func (f *fakeStats) Recompute() (service.SiteSummary, error) {
	f.calls.Add(1)
	return service.SiteSummary{PeriodCount: 3}, f.err
}

func TestSweepRecomputesEvenWhenCloseFails(t *testing.T) {
	closeErr := errors.New("database is locked")
	closer := &fakeCloser{err: closeErr}
	stats := &fakeStats{}

	if err := Sweep(closer, stats); !errors.Is(err, closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if stats.calls.Load() != 1 {
		t.Fatalf("expected recompute after failed close, got %d calls", stats.calls.Load())
	}
}

func TestSweepReturnsRecomputeError(t *testing.T) {
	recomputeErr := errors.New("boom")
	if err := Sweep(&fakeCloser{}, &fakeStats{err: recomputeErr}); !errors.Is(err, recomputeErr) {
		t.Fatalf("expected recompute error, got %v", err)
	}
}

func TestRunPeriodCloserRunsUntilCancelled(t *testing.T) {
	closer := &fakeCloser{}
	stats := &fakeStats{}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go RunPeriodCloser(ctx, closer, stats, 5*time.Millisecond, &wg)

	deadline := time.Now().Add(2 * time.Second)
	for closer.calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected at least 3 sweeps, got %d", closer.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	wg.Wait()

	after := closer.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if closer.calls.Load() != after {
		t.Fatal("expected no sweeps after cancellation")
	}
	if stats.calls.Load() < 3 {
		t.Fatalf("expected recompute on every sweep, got %d", stats.calls.Load())
	}
}
