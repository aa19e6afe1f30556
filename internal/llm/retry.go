package llm

import (
	"context"
	"math/rand"
	"time"
)

// RetryPreset bounds the attempts of a translation call and defines
// the wait before each retry. Attempt numbering starts at 1; the delay
// function receives the number of the attempt that just failed.
type RetryPreset struct {
	Name        string
	MaxAttempts int
	Delay       func(failedAttempt int) time.Duration
}

const aggressiveDelayCap = 10 * time.Second

// PresetFor maps a configured retry mode to its preset:
//
//	0 — none: a single attempt
//	1 — fixed-delay: one retry after a constant wait
//	2 — exponential backoff: up to 5 attempts, 1s doubling
//	3 — aggressive with jitter: up to 8 attempts, capped backoff
//
// Modes above 3 clamp to the aggressive preset, matching how bare
// retry integers from a login string are interpreted.
func PresetFor(mode int) RetryPreset {
	switch {
	case mode <= 0:
		return RetryPreset{
			Name:        "none",
			MaxAttempts: 1,
			Delay:       func(int) time.Duration { return 0 },
		}
	case mode == 1:
		return RetryPreset{
			Name:        "fixed-delay",
			MaxAttempts: 2,
			Delay:       func(int) time.Duration { return time.Second },
		}
	case mode == 2:
		return RetryPreset{
			Name:        "backoff",
			MaxAttempts: 5,
			Delay: func(failed int) time.Duration {
				return time.Second << (failed - 1)
			},
		}
	default:
		return RetryPreset{
			Name:        "aggressive",
			MaxAttempts: 8,
			Delay: func(failed int) time.Duration {
				d := time.Second << (failed - 1)
				if d > aggressiveDelayCap {
					d = aggressiveDelayCap
				}
				// up to 25% jitter to spread concurrent retries
				jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
				return d + jitter
			},
		}
	}
}

// sleep waits for d or until the context is done, whichever comes
// first. A timed wait, never a busy loop.
func sleep(ctx context.Context, d time.Duration) error {
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
