package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestMapRunsAllUnits(t *testing.T) {
	units := []int{1, 2, 3, 4, 5}

	outcomes := Map(context.Background(), units, 3, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})

	if len(outcomes) != len(units) {
		t.Fatalf("Expected %d outcomes, got %d", len(units), len(outcomes))
	}
	for i, out := range outcomes {
		if !out.Started {
			t.Errorf("Unit %d never started", units[i])
		}
		if out.Unit != units[i] {
			t.Errorf("Outcome %d out of order: got unit %d, want %d", i, out.Unit, units[i])
		}
		if out.Value != units[i]*units[i] {
			t.Errorf("Unit %d: got %d, want %d", units[i], out.Value, units[i]*units[i])
		}
	}
}

func TestMapEmptyInput(t *testing.T) {
	outcomes := Map(context.Background(), nil, 4, func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	if len(outcomes) != 0 {
		t.Fatalf("Expected no outcomes, got %d", len(outcomes))
	}
}

func TestMapBoundsConcurrency(t *testing.T) {
	var active, peak int64
	units := make([]int, 32)

	gate := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		Map(context.Background(), units, 3, func(_ context.Context, _ int) (struct{}, error) {
			n := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			<-gate
			atomic.AddInt64(&active, -1)
			return struct{}{}, nil
		})
	}()

	close(gate)
	<-done

	if p := atomic.LoadInt64(&peak); p > 3 {
		t.Errorf("Expected at most 3 concurrent workers, observed %d", p)
	}
}

func TestMapCollectsErrors(t *testing.T) {
	boom := errors.New("boom")
	units := []int{1, 2, 3}

	outcomes := Map(context.Background(), units, 2, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})

	var failed int
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
			if !errors.Is(out.Err, boom) {
				t.Errorf("Unexpected error: %v", out.Err)
			}
			if !out.Started {
				t.Error("Failed unit should still count as started")
			}
		}
	}
	if failed != 1 {
		t.Errorf("Expected 1 failed unit, got %d", failed)
	}
}

func TestMapKeepsCompletedResultsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	units := []int{0, 1, 2, 3}

	// One worker processes units in order; the first unit cancels the
	// context before returning, so the rest must drain unstarted.
	outcomes := Map(ctx, units, 1, func(_ context.Context, n int) (int, error) {
		if n == 0 {
			cancel()
		}
		return n * 10, nil
	})

	if len(outcomes) != len(units) {
		t.Fatalf("Expected %d outcomes, got %d", len(units), len(outcomes))
	}
	if !outcomes[0].Started || outcomes[0].Value != 0 {
		t.Errorf("Completed unit should be kept: %+v", outcomes[0])
	}
	for _, out := range outcomes[1:] {
		if out.Started {
			t.Errorf("Unit %d started after cancellation", out.Unit)
		}
		if !errors.Is(out.Err, context.Canceled) {
			t.Errorf("Unit %d: expected context.Canceled, got %v", out.Unit, out.Err)
		}
	}
}
