package worker

import (
	"context"
	"sync"
	"time"
)

// AIMD adjusts the in-flight call ceiling using additive-increase /
// multiplicative-decrease. Throttle responses halve the limit; fast
// completions grow it by a fixed step. Changes within the dampening window
// are ignored to avoid oscillation.
type AIMD struct {
	mu         sync.Mutex
	limit      int
	min        int
	max        int
	step       int
	fastUnder  time.Duration
	lastChange time.Time
}

// NewAIMD returns a governor starting at start workers, clamped to [min, max].
func NewAIMD(start, min, max int) *AIMD {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	if start < min {
		start = min
	}
	if start > max {
		start = max
	}
	return &AIMD{
		limit:     start,
		min:       min,
		max:       max,
		step:      2,
		fastUnder: 250 * time.Millisecond,
	}
}

// Limit returns the current worker ceiling.
func (a *AIMD) Limit() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.limit
}

// Max returns the configured upper bound.
func (a *AIMD) Max() int {
	return a.max
}

// Feedback records one completed call. A throttled call halves the limit;
// a call faster than the healthy-latency bar raises it by one step.
func (a *AIMD) Feedback(latency time.Duration, throttled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if now.Sub(a.lastChange) < 100*time.Millisecond {
		return
	}

	if throttled {
		a.limit /= 2
		if a.limit < a.min {
			a.limit = a.min
		}
		a.lastChange = now
		return
	}

	if latency < a.fastUnder {
		a.limit += a.step
		if a.limit > a.max {
			a.limit = a.max
		}
		a.lastChange = now
	}
}

// MapAdaptive is Map with the worker ceiling governed by gov instead of a
// fixed limit. throttled reports whether a unit error was a rate-limit
// response; it feeds the governor together with the observed latency.
// Workers whose ordinal is above the current ceiling pause before taking
// their next unit, so a halved limit takes effect without killing workers.
func MapAdaptive[T, R any](ctx context.Context, units []T, gov *AIMD, throttled func(error) bool, fn func(context.Context, T) (R, error)) []Outcome[T, R] {
	outcomes := make([]Outcome[T, R], len(units))
	if len(units) == 0 {
		return outcomes
	}

	type indexed struct {
		idx int
		out Outcome[T, R]
	}
	jobs := make(chan int)
	results := make(chan indexed)

	for w := 0; w < gov.Max(); w++ {
		go func(ordinal int) {
			for {
				// Pause before taking a unit so a lowered ceiling never
				// strands one inside a sleeping worker.
				for ordinal >= gov.Limit() && ctx.Err() == nil {
					time.Sleep(20 * time.Millisecond)
				}
				idx, ok := <-jobs
				if !ok {
					return
				}
				if err := ctx.Err(); err != nil {
					results <- indexed{idx, Outcome[T, R]{Unit: units[idx], Err: err}}
					continue
				}
				start := time.Now()
				v, err := fn(ctx, units[idx])
				gov.Feedback(time.Since(start), err != nil && throttled(err))
				results <- indexed{idx, Outcome[T, R]{Unit: units[idx], Value: v, Err: err, Started: true}}
			}
		}(w)
	}

	go func() {
		for i := range units {
			jobs <- i
		}
		close(jobs)
	}()

	for range units {
		r := <-results
		outcomes[r.idx] = r.out
	}
	return outcomes
}
