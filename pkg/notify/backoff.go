package notify

import "time"

// BackoffConfig parameterizes the retry delay schedule.
type BackoffConfig struct {
	Base time.Duration
	Max  time.Duration
}

// BackoffDelay computes the delay before retry number attempt (0-based):
// min(base * 2^attempt + jitter*base/2, max). jitter must be in [0, 1);
// the caller supplies it so the schedule stays a pure, testable function.
func BackoffDelay(cfg BackoffConfig, attempt int, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := cfg.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.Max {
			delay = cfg.Max
			break
		}
	}

	delay += time.Duration(jitter * float64(cfg.Base) / 2)
	if delay > cfg.Max {
		delay = cfg.Max
	}
	return delay
}
