package worker

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aws-samples/htc-grid-agent/internal/logger"
)

// stopper is the subset of *runtime.Client the Supervisor needs for its
// best-effort shutdown call; nil-able so a LocalDriver-mode Supervisor can
// skip it entirely.
type stopper interface {
	Stop(ctx context.Context) error
}

// Supervisor is the Lifecycle Supervisor from spec §4.A: acquire -> run
// (execution driver and lease renewer racing cooperatively) -> commit, on
// an idle-backoff loop, with a single graceful shutdown flag checked only
// between iterations so an in-flight task always runs to completion.
type Supervisor struct {
	acquirer  *Acquirer
	driver    Driver
	renewer   *Renewer
	committer *Committer
	stop      stopper
	tracer    *Tracer

	podID               string
	emptyQueueBackoff   time.Duration
	startupJitterMaxSec int

	killNow int32
	now     func() time.Time
}

// NewSupervisor wires the four lifecycle components together. stop may be
// nil when running in local execution mode, where there is no remote
// runtime to shut down. tracer may be nil to disable tracing.
func NewSupervisor(acquirer *Acquirer, driver Driver, renewer *Renewer, committer *Committer, stop stopper, tracer *Tracer, podID string, emptyQueueBackoff time.Duration, startupJitterMaxSec int) *Supervisor {
	if tracer == nil {
		tracer = NewTracer(false)
	}
	return &Supervisor{
		acquirer:            acquirer,
		driver:              driver,
		renewer:             renewer,
		committer:           committer,
		stop:                stop,
		tracer:              tracer,
		podID:               podID,
		emptyQueueBackoff:   emptyQueueBackoff,
		startupJitterMaxSec: startupJitterMaxSec,
		now:                 time.Now,
	}
}

// Run blocks until SIGTERM/SIGINT is received, running the acquire/execute/
// commit loop to exhaustion first. It always returns nil; fatal per-task
// errors are logged and terminate the process directly (spec §4.A/§7
// fatal-error policy), since there is no supervisor above this one to
// hand the failure to.
func (s *Supervisor) Run(ctx context.Context) error {
	log := logger.WithPod(s.podID)

	s.startupJitter(log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received, finishing in-flight task before exit")
		atomic.StoreInt32(&s.killNow, 1)
	}()

	for atomic.LoadInt32(&s.killNow) == 0 {
		s.iterate(ctx, log)
	}

	if s.stop != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.stop.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("failed stopping remote runtime")
		} else {
			log.Info().Msg("remote runtime stopped")
		}
	}

	return nil
}

// startupJitter sleeps a random 1..startupJitterMaxSec seconds before the
// first acquire iteration, spreading a fleet's cold-start polling load
// (grounded on the source's unconditional rand_delay sleep at import
// time). Clients built before Run, such as the queue client's URL lookup,
// are not delayed by it.
func (s *Supervisor) startupJitter(log zerolog.Logger) {
	if s.startupJitterMaxSec <= 0 {
		return
	}
	delay := time.Duration(rand.Intn(s.startupJitterMaxSec)+1) * time.Second
	log.Info().Dur("delay", delay).Msg("startup jitter sleep")
	time.Sleep(delay)
}

// iterate runs one pass of the outer loop: try to acquire a task, and if
// one was claimed, drive it to completion; otherwise back off.
func (s *Supervisor) iterate(ctx context.Context, log zerolog.Logger) {
	acquiredAt := s.now()

	t, err := s.acquirer.TryAcquire(ctx)
	if err != nil {
		log.Error().Err(err).Msg("fatal error acquiring task")
		os.Exit(1)
	}

	if t == nil {
		s.idleBackoff(log)
		return
	}

	taskLog := logger.WithTask(t.TaskID)
	taskLog.Info().Msg("acquired task")

	runSpan := s.tracer.StartSpan(t.TaskID, "run_task")
	defer runSpan.EndSpan()

	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if !s.renewer.Run(ctx, t.TaskID, s.acquirer.selfID, done) {
			taskLog.Warn().Msg("lease lost mid-execution, watchdog will reclaim")
		}
	}()

	result, err := s.driver.Execute(ctx, t, done)
	wg.Wait()

	if err != nil {
		taskLog.Error().Err(err).Msg("fatal error executing task")
		os.Exit(1)
	}

	if result.BootstrapFailed {
		taskLog.Error().Msg("remote bootstrap failure, task abandoned without committing")
		return
	}

	if err := s.committer.Commit(ctx, t, result, acquiredAt); err != nil {
		taskLog.Error().Err(err).Msg("fatal error committing task")
		os.Exit(1)
	}

	taskLog.Info().Msg("task committed")
}

// idleBackoff sleeps a uniform random duration in [backoff, 2*backoff)
// before the next poll, per spec §4.A's no-task idle policy.
func (s *Supervisor) idleBackoff(log zerolog.Logger) {
	lo := s.emptyQueueBackoff
	delay := lo + time.Duration(rand.Float64()*float64(lo))
	log.Debug().Dur("delay", delay).Msg("no task available, backing off")
	time.Sleep(delay)
}
