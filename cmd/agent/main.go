// Command agent is the long-running pod process that pulls one task at a
// time off the queue, claims it in the metadata store, drives it to
// completion (locally or via a remote invoke), and commits the result.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aws-samples/htc-grid-agent/internal/artifact"
	"github.com/aws-samples/htc-grid-agent/internal/config"
	"github.com/aws-samples/htc-grid-agent/internal/logger"
	"github.com/aws-samples/htc-grid-agent/internal/queue"
	"github.com/aws-samples/htc-grid-agent/internal/runtime"
	"github.com/aws-samples/htc-grid-agent/internal/store"
	"github.com/aws-samples/htc-grid-agent/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(envOr("LOG_LEVEL", "info"), os.Getenv("ENV") != "production")
	log := logger.WithPod(cfg.PodID)
	log.Info().Msg("starting agent")

	if cfg.MetricsEnabled {
		go serveMetrics(log)
	}

	ctx := context.Background()

	queueClient, err := queue.NewClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build queue client")
	}

	storeClient, err := store.NewClient(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build store client")
	}

	artifactStore, err := artifact.NewStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build artifact store")
	}

	ttl := worker.NewTTLGenerator(cfg.TaskTTLRefreshInterval, cfg.TaskTTLExpirationOffset)

	acquirer := worker.NewAcquirer(queueClient, storeClient, cfg.PodID, cfg.AgentSQSVisibilityTimeout, ttl)
	renewer := worker.NewRenewer(storeClient, ttl, cfg.WorkProcStatusPullInterval, store.DefaultThrottleBackoff)
	committer := worker.NewCommitter(storeClient, artifactStore, queueClient, cfg.PodID, store.DefaultThrottleBackoff)

	tracer := worker.NewTracer(cfg.EnableXRay)

	driver, stop := buildDriver(ctx, cfg, artifactStore, tracer, log)

	supervisor := worker.NewSupervisor(acquirer, driver, renewer, committer, stop, tracer, cfg.PodID, cfg.EmptyTaskQueueBackoff, cfg.StartupJitterMaxSec)

	if err := supervisor.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("supervisor exited with error")
	}
}

// stopper mirrors worker.stopper so main doesn't need to export that type
// just to name it here.
type stopper interface {
	Stop(ctx context.Context) error
}

// buildDriver selects the C1 local-subprocess or C2 remote-invoke
// Execution Driver variant per cfg.ExecutionMode. The returned stopper is
// non-nil only for the remote variant, which owns a runtime client that
// needs a shutdown call. The remote variant also gets the artifact store
// and cfg.TaskInputViaExternalStorage so it can resolve an externalized
// task_definition before invoking (spec §3/§6). Both variants share tracer
// so the sub-process-1/lambda/encoding spans honor cfg.EnableXRay.
func buildDriver(ctx context.Context, cfg *config.Config, artifacts artifact.Store, tracer *worker.Tracer, log zerolog.Logger) (worker.Driver, stopper) {
	switch cfg.ExecutionMode {
	case "remote":
		rt, err := runtime.NewClient(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build runtime client")
		}
		return worker.NewRemoteDriver(rt, artifacts, cfg.TaskInputViaExternalStorage, tracer), rt
	default:
		return worker.NewLocalDriver(".", cfg.WorkProcStatusPullInterval, tracer), nil
	}
}

func serveMetrics(log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":9090", mux); err != nil {
		log.Error().Err(err).Msg("metrics server exited")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
