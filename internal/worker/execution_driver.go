package worker

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aws-samples/htc-grid-agent/internal/logger"
	"github.com/aws-samples/htc-grid-agent/internal/metrics"
	"github.com/aws-samples/htc-grid-agent/internal/runtime"
	"github.com/aws-samples/htc-grid-agent/internal/task"
)

// ExecutionResult is the common result shape both driver variants produce
// (spec §4.C: "{ retcode?, stdout? }"). Exactly one of StdoutFile and
// StdoutBytes is set, except when BootstrapFailed, in which case neither
// is and the caller must not commit via the normal completion path.
type ExecutionResult struct {
	StdoutFile      string
	StdoutBytes     []byte
	BootstrapFailed bool
}

// Driver runs a claimed task to completion. Execute must close done when
// the task finishes (or fails), exactly once - the one-shot latch the
// Lease Renewer waits on (spec §4.C cooperative scheduling contract).
type Driver interface {
	Execute(ctx context.Context, t *task.Task, done chan<- struct{}) (*ExecutionResult, error)
}

// LocalDriver is variant C1: a local subprocess, stdout/stderr redirected
// to per-task files, liveness polled at pullInterval.
type LocalDriver struct {
	workDir      string
	pullInterval time.Duration
	tracer       *Tracer
	now          func() time.Time
}

// NewLocalDriver builds a LocalDriver writing per-task log files under
// workDir. tracer may be nil to disable tracing.
func NewLocalDriver(workDir string, pullInterval time.Duration, tracer *Tracer) *LocalDriver {
	if tracer == nil {
		tracer = NewTracer(false)
	}
	return &LocalDriver{workDir: workDir, pullInterval: pullInterval, tracer: tracer, now: time.Now}
}

// Execute spawns worker_arguments[0..2] as a child process. The renewer
// runs concurrently in its own goroutine; this driver's poll loop exists to
// mirror the source's liveness-check cadence rather than to yield a
// single-threaded runtime.
func (d *LocalDriver) Execute(ctx context.Context, t *task.Task, done chan<- struct{}) (*ExecutionResult, error) {
	defer close(done)

	span := d.tracer.StartSpan(t.TaskID, "sub-process-1")
	defer span.EndSpan()

	args := t.WorkerArguments
	if len(args) > 3 {
		args = args[:3]
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("execution driver: task %q has no worker_arguments", t.TaskID)
	}

	stdoutPath := filepath.Join(d.workDir, fmt.Sprintf("stdout-%s.log", t.TaskID))
	stderrPath := filepath.Join(d.workDir, fmt.Sprintf("stderr-%s.log", t.TaskID))

	stdoutF, err := os.Create(stdoutPath)
	if err != nil {
		return nil, fmt.Errorf("execution driver: create %q: %w", stdoutPath, err)
	}
	defer stdoutF.Close()

	stderrF, err := os.Create(stderrPath)
	if err != nil {
		return nil, fmt.Errorf("execution driver: create %q: %w", stderrPath, err)
	}
	defer stderrF.Close()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = stdoutF
	cmd.Stderr = stderrF

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("execution driver: start %q: %w", args[0], err)
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	ticker := time.NewTicker(d.pullInterval)
	defer ticker.Stop()

	log := logger.WithTask(t.TaskID)
	for {
		select {
		case waitErr := <-exited:
			if waitErr != nil {
				log.Warn().Err(waitErr).Msg("subprocess exited with error")
			}
			t.Stamp(task.StageUserCodeFinished, d.now().UnixMilli())
			return &ExecutionResult{StdoutFile: stdoutPath}, nil
		case <-ticker.C:
			log.Debug().Msg("subprocess still running")
		}
	}
}

// definitionStore is the subset of artifact.Store the RemoteDriver needs to
// resolve an externalized task_definition.
type definitionStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// RemoteDriver is variant C2: a synchronous invoke against the remote
// function runtime.
type RemoteDriver struct {
	runtime         *runtime.Client
	artifacts       definitionStore
	externalStorage bool
	tracer          *Tracer
	now             func() time.Time
}

// NewRemoteDriver builds a RemoteDriver against an already-constructed
// runtime client. When externalStorage is true, the payload is fetched
// from artifacts under externalizedInputKey(task_id) before every invoke
// and the message's inline task_definition is not used (spec §3/§6).
// tracer may be nil to disable tracing.
func NewRemoteDriver(rt *runtime.Client, artifacts definitionStore, externalStorage bool, tracer *Tracer) *RemoteDriver {
	if tracer == nil {
		tracer = NewTracer(false)
	}
	return &RemoteDriver{runtime: rt, artifacts: artifacts, externalStorage: externalStorage, tracer: tracer, now: time.Now}
}

// Execute resolves t.TaskDefinition, submits it, and awaits the
// synchronous response. The Go SDK call is a blocking network round trip
// on the caller's goroutine; the Supervisor runs the renewer on a separate
// goroutine, so the call never blocks it.
func (d *RemoteDriver) Execute(ctx context.Context, t *task.Task, done chan<- struct{}) (*ExecutionResult, error) {
	defer close(done)

	definition, err := d.resolveTaskDefinition(ctx, t)
	if err != nil {
		return nil, err
	}

	span := d.tracer.StartSpan(t.TaskID, "lambda")
	start := d.now()
	result, err := d.runtime.Invoke(ctx, definition)
	span.EndSpan()
	if err != nil {
		return nil, fmt.Errorf("execution driver: invoke: %w", err)
	}

	if result.BootstrapFailed {
		metrics.RecordBootstrapFailure()
		return &ExecutionResult{BootstrapFailed: true}, nil
	}

	metrics.RecordTaskExecTimeMS(float64(d.now().Sub(start).Milliseconds()))
	t.Stamp(task.StageUserCodeFinished, d.now().UnixMilli())
	return &ExecutionResult{StdoutBytes: result.Payload}, nil
}

// externalizedInputKey namespaces the artifact-store key an externalized
// task_definition is fetched from, keeping it distinct from the plain
// task_id key persistStdout later writes the run's output artifact under -
// the two must never collide on the same object.
func externalizedInputKey(taskID string) string {
	return "input-" + taskID
}

// resolveTaskDefinition implements prepare_arguments_for_execution: when
// payloads are externalized, the payload is fetched from the artifact store
// under externalizedInputKey(t.TaskID) and base64-decoded before
// submission; t.TaskDefinition is not read in that case. Otherwise the
// inline t.TaskDefinition is returned as is.
func (d *RemoteDriver) resolveTaskDefinition(ctx context.Context, t *task.Task) ([]byte, error) {
	span := d.tracer.StartSpan(t.TaskID, "encoding")
	defer span.EndSpan()

	if !d.externalStorage {
		return t.TaskDefinition, nil
	}

	encoded, err := d.artifacts.Get(ctx, externalizedInputKey(t.TaskID))
	if err != nil {
		return nil, fmt.Errorf("execution driver: fetch externalized task_definition: %w", err)
	}

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(decoded, encoded)
	if err != nil {
		return nil, fmt.Errorf("execution driver: decode externalized task_definition: %w", err)
	}
	return decoded[:n], nil
}
