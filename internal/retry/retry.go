// Package retry runs an operation a bounded number of times and reports how
// it ended as a tagged outcome, so callers can tell "gave up after N faults"
// apart from "the thing is not there".
package retry

import (
	"context"
	"time"
)

// Outcome classifies a single attempt, and the final result of a run
type Outcome int

const (
	// Success ends the run with a value
	Success Outcome = iota
	// Transient is a fault (transport, bad status, bad body); wait the backoff and try again
	Transient
	// Absent means the response was fine but the wanted content was missing;
	// try again right away while attempts remain
	Absent
	// Permanent ends the run without a value and without further attempts
	Permanent
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Transient:
		return "transient"
	case Absent:
		return "absent"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Policy bounds a run
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Sleep waits between attempts; nil means a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// Result is what Do returns. Outcome is the outcome of the last attempt made.
type Result[T any] struct {
	Value    T
	Outcome  Outcome
	Attempts int
	Err      error
}

// OK reports whether the run ended in Success
func (r Result[T]) OK() bool {
	return r.Outcome == Success
}

// Func is one attempt. attempt starts at 1.
type Func[T any] func(ctx context.Context, attempt int) (T, Outcome, error)

// Do calls fn until it succeeds, reports Permanent, or runs out of attempts.
// Transient attempts are followed by the backoff unless they were the last one.
// A cancelled context stops the run with a Transient outcome and ctx.Err().
func Do[T any](ctx context.Context, p Policy, fn Func[T]) Result[T] {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var res Result[T]
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Outcome, res.Err = Transient, err
			return res
		}

		value, outcome, err := fn(ctx, attempt)
		res.Attempts = attempt
		res.Outcome = outcome
		res.Err = err

		switch outcome {
		case Success:
			res.Value = value
			return res
		case Permanent:
			return res
		case Transient:
			if attempt < maxAttempts {
				if err := sleep(ctx, p.Backoff); err != nil {
					res.Err = err
					return res
				}
			}
		}
	}
	return res
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
