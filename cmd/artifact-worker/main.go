// Command artifact-worker renders and pins certificate PDFs requested over Kafka.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/blockchain"
	certdb "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/db"
	certificates "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/service"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/template"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/worker"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/config"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/database"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/kafka"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/metrics"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func main() {
	log := logger.NewLogger("artifact-worker")
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	if !cfg.Kafka.Enabled {
		log.Fatal("CONFIG", "artifact-worker needs KAFKA_ENABLED=true")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	m := metrics.New()

	store, err := storage.New(cfg.Storage, m, log)
	if err != nil {
		log.Fatal("STORAGE", err.Error())
	}

	// Rendering only reads the chain mode recorded on each certificate, so no live dial is needed.
	chain := blockchain.NewSimulation(log)

	certSvc := certificates.NewService(&certdb.DB{Bun: bunDB}, chain, store, log,
		certificates.WithRenderer(template.NewCertificatePDFGenerator(cfg.Artifact.FontPath)),
		certificates.WithMetrics(m),
		certificates.WithPublicBaseURL(cfg.Server.PublicBaseURL),
	)
	runner := worker.NewRunner(certSvc, cfg.Artifact.MaxAttempts, m, log)

	r := chi.NewRouter()
	r.Handle("/metrics", m.Handler())
	metricsSrv := &http.Server{Addr: cfg.Artifact.WorkerPort, Handler: r, ReadTimeout: 10 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP", fmt.Sprintf("Metrics server error: %v", err))
		}
	}()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.ArtifactRequested, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	log.Info("APP", fmt.Sprintf("🚀 Artifact worker consuming %s", cfg.Kafka.Topics.ArtifactRequested))
	if err := consumer.Start(ctx, runner.HandleMessage); err != nil {
		log.Error("KAFKA", fmt.Sprintf("Consumer stopped: %v", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("APP", "✅ Artifact worker shutdown complete")
}
