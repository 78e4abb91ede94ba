package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassOf(t *testing.T) {
	base := errors.New("api refused")

	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"classified fault", New(PermissionDenied, "DescribeInstances", base), PermissionDenied},
		{"wrapped fault", fmt.Errorf("region us-east-1: %w", New(Throttled, "GetMetricStatistics", base)), Throttled},
		{"bare error defaults to transient", base, Transient},
		{"nested class wins", New(NotFound, "DescribeVolumes", New(Throttled, "inner", base)), NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Throttled) || !Retryable(Transient) {
		t.Error("Throttled and Transient must be retryable")
	}
	for _, class := range []Class{PermissionDenied, RegionNotEnabled, NotFound, Unsupported} {
		if Retryable(class) {
			t.Errorf("%v must not be retryable", class)
		}
	}
}

func TestFaultError(t *testing.T) {
	f := New(RegionNotEnabled, "DescribeDBInstances", errors.New("opt-in required"))
	msg := f.Error()
	if msg != "DescribeDBInstances: region-not-enabled: opt-in required" {
		t.Errorf("Unexpected message: %s", msg)
	}

	if !errors.Is(f, f.Err) {
		t.Error("Fault must unwrap to its cause")
	}
}

func TestRetryRecoversFromThrottle(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return New(Throttled, "ListBuckets", errors.New("slow down"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected recovery, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsOnPermissionDenied(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return New(PermissionDenied, "DescribeInstances", errors.New("no"))
	})

	if ClassOf(err) != PermissionDenied {
		t.Fatalf("Expected PermissionDenied, got %v", err)
	}
	if calls != 1 {
		t.Errorf("PermissionDenied must not retry, got %d calls", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return New(Transient, "GetCostAndUsage", errors.New("504"))
	})

	if ClassOf(err) != Transient {
		t.Fatalf("Expected Transient after exhaustion, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	policy := RetryPolicy{Attempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(context.Context) error {
			calls++
			return New(Throttled, "ListFunctions", errors.New("rate"))
		})
	}()

	cancel()
	select {
	case err := <-done:
		if calls != 1 {
			t.Errorf("Expected 1 call before cancellation, got %d", calls)
		}
		if ClassOf(err) != Throttled {
			t.Errorf("Expected the last observed error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not honor cancellation")
	}
}
