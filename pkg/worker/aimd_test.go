package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAIMDThrottleHalves(t *testing.T) {
	gov := NewAIMD(16, 2, 64)

	gov.Feedback(50*time.Millisecond, true)
	if got := gov.Limit(); got != 8 {
		t.Errorf("Expected limit 8 after throttle, got %d", got)
	}

	gov.lastChange = time.Now().Add(-time.Second)
	gov.Feedback(50*time.Millisecond, true)
	if got := gov.Limit(); got != 4 {
		t.Errorf("Expected limit 4 after second throttle, got %d", got)
	}
}

func TestAIMDRespectsFloor(t *testing.T) {
	gov := NewAIMD(4, 3, 64)

	for i := 0; i < 5; i++ {
		gov.lastChange = time.Now().Add(-time.Second)
		gov.Feedback(50*time.Millisecond, true)
	}
	if got := gov.Limit(); got != 3 {
		t.Errorf("Expected limit clamped to 3, got %d", got)
	}
}

func TestAIMDGrowsOnFastCompletions(t *testing.T) {
	gov := NewAIMD(4, 1, 6)

	for i := 0; i < 4; i++ {
		gov.lastChange = time.Now().Add(-time.Second)
		gov.Feedback(10*time.Millisecond, false)
	}
	if got := gov.Limit(); got != 6 {
		t.Errorf("Expected limit capped at 6, got %d", got)
	}
}

func TestAIMDSlowCompletionHoldsSteady(t *testing.T) {
	gov := NewAIMD(4, 1, 64)

	gov.lastChange = time.Now().Add(-time.Second)
	gov.Feedback(2*time.Second, false)
	if got := gov.Limit(); got != 4 {
		t.Errorf("Expected limit unchanged at 4, got %d", got)
	}
}

func TestAIMDDampensRapidChanges(t *testing.T) {
	gov := NewAIMD(16, 1, 64)

	gov.Feedback(50*time.Millisecond, true)
	// Second signal lands inside the dampening window and must be ignored.
	gov.Feedback(50*time.Millisecond, true)
	if got := gov.Limit(); got != 8 {
		t.Errorf("Expected dampened limit 8, got %d", got)
	}
}

func TestNewAIMDClampsStart(t *testing.T) {
	if got := NewAIMD(100, 2, 10).Limit(); got != 10 {
		t.Errorf("Expected start clamped to max 10, got %d", got)
	}
	if got := NewAIMD(1, 4, 10).Limit(); got != 4 {
		t.Errorf("Expected start clamped to min 4, got %d", got)
	}
}

func TestMapAdaptiveCompletesAllUnits(t *testing.T) {
	gov := NewAIMD(4, 1, 4)
	units := []int{1, 2, 3, 4, 5, 6, 7, 8}
	throttleErr := errors.New("rate exceeded")

	outcomes := MapAdaptive(context.Background(), units, gov, func(err error) bool {
		return errors.Is(err, throttleErr)
	}, func(_ context.Context, n int) (int, error) {
		if n == 3 {
			return 0, throttleErr
		}
		return n * 2, nil
	})

	if len(outcomes) != len(units) {
		t.Fatalf("Expected %d outcomes, got %d", len(units), len(outcomes))
	}
	for _, out := range outcomes {
		if !out.Started {
			t.Errorf("Unit %d never started", out.Unit)
		}
	}
	if got := gov.Limit(); got > 4 {
		t.Errorf("Limit must never exceed max: %d", got)
	}
}
