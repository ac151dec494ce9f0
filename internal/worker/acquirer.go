package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/aws-samples/htc-grid-agent/internal/logger"
	"github.com/aws-samples/htc-grid-agent/internal/metrics"
	"github.com/aws-samples/htc-grid-agent/internal/queue"
	"github.com/aws-samples/htc-grid-agent/internal/status"
	"github.com/aws-samples/htc-grid-agent/internal/store"
	"github.com/aws-samples/htc-grid-agent/internal/task"
)

// queueClient is the subset of *queue.Client the Acquirer needs.
type queueClient interface {
	Receive(ctx context.Context) (*queue.Message, error)
	ExtendVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error
	Delete(ctx context.Context, receiptHandle string) error
}

// claimStore is the subset of *store.Client the Acquirer needs.
type claimStore interface {
	Claim(ctx context.Context, taskID, owner string, heartbeatExpiration int64) error
	Read(ctx context.Context, taskID string) (*status.Row, error)
}

// Acquirer implements try_acquire() from spec §4.B: pull one message,
// attempt the claim conditional write, reconcile cancellation on a lost
// claim.
type Acquirer struct {
	queue             queueClient
	store             claimStore
	selfID            string
	visibilityTimeout time.Duration
	ttl               *TTLGenerator
	now               func() time.Time
	contentionSleep   func() time.Duration
}

// NewAcquirer builds an Acquirer for selfID, extending a successful
// claim's queue visibility by visibilityTimeout.
func NewAcquirer(q queueClient, s claimStore, selfID string, visibilityTimeout time.Duration, ttl *TTLGenerator) *Acquirer {
	return &Acquirer{
		queue:             q,
		store:             s,
		selfID:            selfID,
		visibilityTimeout: visibilityTimeout,
		ttl:               ttl,
		now:               time.Now,
		contentionSleep:   defaultContentionSleep,
	}
}

func defaultContentionSleep() time.Duration {
	return time.Duration(1+rand.Intn(3)) * time.Second
}

// TryAcquire implements spec §4.B steps 1-8. Returns (nil, nil) when there
// is no task to run this iteration (empty poll, lost claim, or a
// cancelled row reconciled away). A non-nil error is fatal to the
// Supervisor's iteration.
func (a *Acquirer) TryAcquire(ctx context.Context) (*task.Task, error) {
	msg, err := a.queue.Receive(ctx)
	if errors.Is(err, queue.ErrNoMessage) {
		metrics.RecordNoMessages()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquirer: receive: %w", err)
	}

	t, err := task.FromMessageBody(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("acquirer: decode message: %w", err)
	}
	t.Stamp(task.StageAcquiredFromQueue, a.now().UnixMilli())
	t.SQSHandleID = msg.ReceiptHandle

	expiresAt := a.ttl.GenerateNext(a.now()).NextExpirationAt

	claimErr := a.store.Claim(ctx, t.TaskID, a.selfID, expiresAt)
	if claimErr == nil {
		if err := a.queue.ExtendVisibility(ctx, t.SQSHandleID, a.visibilityTimeout); err != nil {
			return nil, fmt.Errorf("acquirer: extend visibility: %w", err)
		}
		t.Stamp(task.StageAcquiredInStore, a.now().UnixMilli())
		metrics.RecordSuccessfulAcquire()
		return t, nil
	}

	if !errors.Is(claimErr, store.ErrConditionFailed) {
		return nil, fmt.Errorf("acquirer: claim: %w", claimErr)
	}

	metrics.RecordFailedToClaim()

	row, readErr := a.store.Read(ctx, t.TaskID)
	if readErr == nil && row.TaskStatus.IsCancelled() {
		if err := a.queue.Delete(ctx, t.SQSHandleID); err != nil {
			return nil, fmt.Errorf("acquirer: delete cancelled message: %w", err)
		}
		logger.Info().Str("task_id", t.TaskID).Msg("task already cancelled, message deleted")
		return nil, nil
	}

	time.Sleep(a.contentionSleep())
	return nil, nil
}
