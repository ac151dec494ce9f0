package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aws-samples/htc-grid-agent/internal/artifact"
	"github.com/aws-samples/htc-grid-agent/internal/logger"
	"github.com/aws-samples/htc-grid-agent/internal/metrics"
	"github.com/aws-samples/htc-grid-agent/internal/store"
	"github.com/aws-samples/htc-grid-agent/internal/task"
)

// committerStore is the subset of *store.Client the Committer needs.
type committerStore interface {
	Finish(ctx context.Context, taskID, owner string, completedAt int64) error
}

// committerQueue is the subset of *queue.Client the Committer needs.
type committerQueue interface {
	Delete(ctx context.Context, receiptHandle string) error
}

// Committer implements commit() from spec §4.E: persist stdout, mark the
// row finished with throttling-aware retry, delete the queue message only
// on a successful completion write.
type Committer struct {
	store     committerStore
	artifacts artifact.Store
	queue     committerQueue
	selfID    string
	backoff   throttleBackoff
	now       func() time.Time
}

// NewCommitter builds a Committer. backoff may be nil to use
// store.DefaultThrottleBackoff.
func NewCommitter(s committerStore, artifacts artifact.Store, q committerQueue, selfID string, backoff throttleBackoff) *Committer {
	if backoff == nil {
		backoff = store.DefaultThrottleBackoff
	}
	return &Committer{store: s, artifacts: artifacts, queue: q, selfID: selfID, backoff: backoff, now: time.Now}
}

// Commit persists the stdout artifact, then attempts the completion write.
// acquiredAt is the timestamp used to compute agent_total_time_ms.
func (c *Committer) Commit(ctx context.Context, t *task.Task, result *ExecutionResult, acquiredAt time.Time) error {
	if err := c.persistStdout(ctx, t, result); err != nil {
		return err
	}
	t.Stamp(task.StageArtifactDelivered, c.now().UnixMilli())

	if err := c.finishWithThrottleRetry(ctx, t); err != nil {
		return err
	}

	metrics.RecordAgentTotalTimeMS(float64(c.now().Sub(acquiredAt).Milliseconds()))
	return nil
}

// persistStdout implements spec §4.E step 1: base64-encode an in-memory
// payload before putting it; otherwise put the named stdout file directly.
func (c *Committer) persistStdout(ctx context.Context, t *task.Task, result *ExecutionResult) error {
	if result.StdoutBytes != nil {
		encoded := make([]byte, base64.StdEncoding.EncodedLen(len(result.StdoutBytes)))
		base64.StdEncoding.Encode(encoded, result.StdoutBytes)
		if err := c.artifacts.Put(ctx, t.TaskID, encoded); err != nil {
			return fmt.Errorf("committer: persist stdout bytes: %w", err)
		}
		return nil
	}

	if err := c.artifacts.PutFile(ctx, t.TaskID, result.StdoutFile); err != nil {
		return fmt.Errorf("committer: persist stdout file: %w", err)
	}
	return nil
}

// finishWithThrottleRetry issues the processing-X -> finished conditional
// write, retrying indefinitely on throttling. A condition-violation (the
// watchdog already reclaimed the task) is not an error to the caller: the
// queue message is deliberately left undeleted so it gets redelivered to
// whoever owns the row now (spec §4.E step 3, "why no queue-delete on
// commit failure").
func (c *Committer) finishWithThrottleRetry(ctx context.Context, t *task.Task) error {
	attempt := 0
	for {
		attempt++
		err := c.store.Finish(ctx, t.TaskID, c.selfID, c.now().Unix())
		if err == nil {
			metrics.RecordSetFinishedSucceeded()
			if err := c.queue.Delete(ctx, t.SQSHandleID); err != nil {
				return fmt.Errorf("committer: delete message: %w", err)
			}
			return nil
		}

		if errors.Is(err, store.ErrThrottled) {
			logger.Warn().Str("task_id", t.TaskID).Int("attempt", attempt).Msg("completion write throttled, retrying")
			time.Sleep(c.backoff.Next(attempt))
			continue
		}

		if errors.Is(err, store.ErrConditionFailed) {
			metrics.RecordSetFinishedFailed()
			logger.Info().Str("task_id", t.TaskID).Msg("completion write rejected, task reclaimed elsewhere")
			return nil
		}

		return fmt.Errorf("committer: finish: %w", err)
	}
}
