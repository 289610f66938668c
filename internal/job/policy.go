package job

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"amequeue/internal/config"
)

// Policy holds the retry and polling parameters of a job.
type Policy struct {
	SubmitRetries     int
	SubmitRetryDelay  time.Duration
	AbortRetries      int
	AbortRetryDelay   time.Duration
	PollInterval      time.Duration
	ErrorStateTimeout time.Duration
}

// DefaultPolicy returns ten submit retries and three abort retries one second
// apart, one second polling and a fifteen second error-state timeout.
func DefaultPolicy() Policy {
	cfg := config.Default()
	return PolicyFromConfig(cfg.JobPolicy())
}

// PolicyFromConfig converts the configured job section.
func PolicyFromConfig(p config.JobPolicy) Policy {
	return Policy{
		SubmitRetries:     p.SubmitRetries,
		SubmitRetryDelay:  p.SubmitRetryDelay,
		AbortRetries:      p.AbortRetries,
		AbortRetryDelay:   p.AbortRetryDelay,
		PollInterval:      p.PollInterval,
		ErrorStateTimeout: p.ErrorStateTimeout,
	}
}

// retrier hands out fixed delays. A bounded retrier stops after limit
// retries; an unbounded one never stops.
type retrier struct {
	policy backoff.BackOff
	limit  int
	used   int
}

func newBoundedRetrier(limit int, delay time.Duration) *retrier {
	if limit < 0 {
		limit = 0
	}
	return &retrier{
		policy: backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(limit)),
		limit:  limit,
	}
}

func newUnboundedRetrier(delay time.Duration) *retrier {
	return &retrier{policy: backoff.NewConstantBackOff(delay), limit: -1}
}

// next returns the delay before the following attempt, or false once the
// retries are spent.
func (r *retrier) next() (time.Duration, bool) {
	delay := r.policy.NextBackOff()
	if delay == backoff.Stop {
		return 0, false
	}
	r.used++
	return delay, true
}

// remaining reports retries left; -1 means unlimited.
func (r *retrier) remaining() int {
	if r.limit < 0 {
		return -1
	}
	return r.limit - r.used
}
