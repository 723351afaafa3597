package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkovalenko/document-pipeline/internal/bootstrap"
	"github.com/dkovalenko/document-pipeline/internal/config"
	"github.com/dkovalenko/document-pipeline/internal/observability/logging"
	"github.com/dkovalenko/document-pipeline/internal/observability/metrics"
)

const processTimeout = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipelineMetrics := metrics.NewPipelineMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, pipelineMetrics)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsHandler(pipelineMetrics),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentProcess(ctx, func(handlerCtx context.Context, documentID int64) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, processTimeout)
		defer cancel()

		doc, err := app.Docs.GetByID(processCtx, documentID)
		if err != nil {
			return err
		}
		pipelineMetrics.ObserveQueueLag("worker", time.Since(doc.CreatedAt))

		pipelineMetrics.StartRun()
		defer pipelineMetrics.FinishRun()

		start := time.Now()
		runErr := app.Pipeline.RunPipeline(processCtx, documentID, app.Storage.Path(doc.Location))
		pipelineMetrics.FinishStage("worker", "pipeline", time.Since(start), runErr)
		return runErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func metricsHandler(m *metrics.PipelineMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
