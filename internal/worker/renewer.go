package worker

import (
	"context"
	"errors"
	"time"

	"github.com/aws-samples/htc-grid-agent/internal/logger"
	"github.com/aws-samples/htc-grid-agent/internal/metrics"
	"github.com/aws-samples/htc-grid-agent/internal/store"
)

// renewStore is the subset of *store.Client the Renewer needs.
type renewStore interface {
	Renew(ctx context.Context, taskID, owner string, heartbeatExpiration int64) error
}

// Renewer keeps a claimed task's lease ahead of wall clock for as long as
// its execution is running (spec §4.D). Grounded on the teacher's
// heartbeat.go ticker-loop-with-stop-channel shape, generalized from a
// worker-liveness ping into the claim-contract's lease renewal.
type Renewer struct {
	store        renewStore
	ttl          *TTLGenerator
	pullInterval time.Duration
	backoff      throttleBackoff
	now          func() time.Time
}

// throttleBackoff is the subset of store.ThrottleBackoff the renewer uses;
// named distinctly to keep the dependency narrow and mockable.
type throttleBackoff interface {
	Next(attempt int) time.Duration
}

// NewRenewer builds a Renewer. backoff may be nil to use
// store.DefaultThrottleBackoff.
func NewRenewer(s renewStore, ttl *TTLGenerator, pullInterval time.Duration, backoff throttleBackoff) *Renewer {
	if backoff == nil {
		backoff = store.DefaultThrottleBackoff
	}
	return &Renewer{
		store:        s,
		ttl:          ttl,
		pullInterval: pullInterval,
		backoff:      backoff,
		now:          time.Now,
	}
}

// Run executes the renewal loop until done is closed/readable (the
// execution_done one-shot latch) or the context is cancelled. Returns true
// when done fires or ctx is cancelled (including in the middle of a
// throttled retry), false if renewal failed for a non-throttling reason
// (the lease is lost; the watchdog will reclaim - spec §4.D step 4).
func (r *Renewer) Run(ctx context.Context, taskID, owner string, done <-chan struct{}) bool {
	log := logger.WithTask(taskID)

	for {
		select {
		case <-done:
			return true
		case <-ctx.Done():
			return true
		default:
		}

		if r.ttl.ShouldRefresh(r.now(), r.pullInterval) {
			if !r.renewWithThrottleRetry(ctx, taskID, owner, done) {
				return false
			}
		}

		select {
		case <-done:
			return true
		case <-ctx.Done():
			return true
		case <-time.After(r.pullInterval):
		}
	}
}

// renewWithThrottleRetry issues the conditional renewal, retrying
// indefinitely on throttling (regenerating the TTL on every attempt so a
// slow update still lands a valid lease - spec §4.D rationale). Returns
// false only on a non-throttling failure.
func (r *Renewer) renewWithThrottleRetry(ctx context.Context, taskID, owner string, done <-chan struct{}) bool {
	attempt := 0
	for {
		attempt++
		expiresAt := r.ttl.GenerateNext(r.now()).NextExpirationAt

		err := r.store.Renew(ctx, taskID, owner, expiresAt)
		if err == nil {
			return true
		}

		if errors.Is(err, store.ErrThrottled) {
			logger.Warn().Str("task_id", taskID).Int("attempt", attempt).Msg("lease renewal throttled, retrying")
			select {
			case <-done:
				return true
			case <-ctx.Done():
				return true
			case <-time.After(r.backoff.Next(attempt)):
			}
			continue
		}

		metrics.RecordUpdateTTLFailed()
		logger.Error().Err(err).Str("task_id", taskID).Msg("lease renewal failed, lease lost")
		return false
	}
}
