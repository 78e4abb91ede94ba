// Package worker provides the bounded fan-out primitives the audit engine
// runs discovery and metric collection on.
package worker

import "context"

// Outcome pairs one input unit with the result of running it. Exactly one
// Outcome exists per unit; units never started because the context was
// canceled carry Started=false and the context error.
type Outcome[T, R any] struct {
	Unit    T
	Value   R
	Err     error
	Started bool
}

// Map runs fn over units with at most limit concurrent workers and returns
// one outcome per unit, in input order. Outcomes are collected on the
// caller's goroutine, so fn never needs to synchronize writes to shared
// state. A canceled context stops new units from starting; outcomes already
// produced are kept.
func Map[T, R any](ctx context.Context, units []T, limit int, fn func(context.Context, T) (R, error)) []Outcome[T, R] {
	outcomes := make([]Outcome[T, R], len(units))
	if len(units) == 0 {
		return outcomes
	}
	if limit <= 0 {
		limit = 1
	}
	if limit > len(units) {
		limit = len(units)
	}

	type indexed struct {
		idx int
		out Outcome[T, R]
	}
	jobs := make(chan int)
	results := make(chan indexed)

	for w := 0; w < limit; w++ {
		go func() {
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results <- indexed{idx, Outcome[T, R]{Unit: units[idx], Err: err}}
					continue
				}
				v, err := fn(ctx, units[idx])
				results <- indexed{idx, Outcome[T, R]{Unit: units[idx], Value: v, Err: err, Started: true}}
			}
		}()
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
