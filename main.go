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

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/analytics"
	analytics_api "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/analytics/api"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/archive"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/attendance/attendance_api"
	attendancedb "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/attendance/db"
	attendance "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/attendance/service"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/auth"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/blockchain"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/certificate_api"
	certdb "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/db"
	certificates "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/service"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/template"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/worker"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/config"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/database"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/database/migrations"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/kafka"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/metrics"
	registrationdb "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/db"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/qrtoken"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/registration_api"
	registration "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/service"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/server"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/signer"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/sse"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/storage"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.Enabled() {
		log.Warn("REDIS", "REDIS_ADDR not set, signer lock is process-local")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func healthCheck(db *bun.DB, chain blockchain.Client, cfg *config.Config) server.HealthCheck {
	return func(ctx context.Context) (map[string]string, error) {
		components := map[string]string{
			"chain":   chain.Mode(),
			"storage": cfg.Storage.Driver,
			"queue":   cfg.Artifact.Queue,
		}
		if err := db.PingContext(ctx); err != nil {
			components["database"] = "down"
			return components, fmt.Errorf("database: %w", err)
		}
		components["database"] = "up"
		return components, nil
	}
}

func main() {
	log := logger.NewLogger("certificate-service")
	defer log.Close()

	log.Info("APP", "Starting Certificate Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(cfg.Database.DSN, cfg.Database.MigrationsDir, log)
		if err := runner.Up(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		if err := runner.Close(); err != nil {
			log.Warn("MIGRATE", err.Error())
		}
	}

	m := metrics.New()

	var locker signer.Locker = signer.NewLocalLock()
	if rdb := connectRedis(ctx, cfg.Redis, log); rdb != nil {
		defer rdb.Close()
		locker = signer.NewRedisLock(rdb, cfg.Redis.SignerTTL, log)
	}

	var publisher kafka.Publisher = kafka.NopPublisher{}
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		publisher = kafka.NewProducer(cfg.Kafka.Brokers, log)
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "KAFKA_ENABLED is false, domain events are not published")
	}
	defer publisher.Close()

	tokens, err := qrtoken.NewSigner(cfg.Registration.QRSecretKey)
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	chain, err := blockchain.New(ctx, cfg.Chain, log)
	if err != nil {
		log.Fatal("CHAIN", err.Error())
	}
	defer chain.Close()

	store, err := storage.New(cfg.Storage, m, log)
	if err != nil {
		log.Fatal("STORAGE", err.Error())
	}

	runs, err := archive.New(ctx, cfg.Mongo, log)
	if err != nil {
		log.Error("ARCHIVE", fmt.Sprintf("Mint run archive unavailable, falling back to memory: %v", err))
		runs = archive.NewMemory()
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runs.Close(closeCtx)
	}()

	feed := sse.NewAttendanceFeed()
	regSvc := registration.NewService(&registrationdb.DB{Bun: bunDB}, tokens, cfg.Registration.TokenTTL, cfg.Registration.QRSize, log)
	attSvc := attendance.NewService(&attendancedb.DB{Bun: bunDB}, tokens, publisher, cfg.Kafka.Topics.AttendanceRecorded, feed, m, log)
	certSvc := certificates.NewService(&certdb.DB{Bun: bunDB}, chain, store, log,
		certificates.WithSignerLock(locker),
		certificates.WithArchive(runs),
		certificates.WithPublisher(publisher, cfg.Kafka.Topics.CertificateIssued),
		certificates.WithRenderer(template.NewCertificatePDFGenerator(cfg.Artifact.FontPath)),
		certificates.WithMetrics(m),
		certificates.WithPublicBaseURL(cfg.Server.PublicBaseURL),
	)
	statsSvc := analytics.NewService(analytics.NewDB(bunDB), log)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var local *worker.LocalQueue
	if cfg.Artifact.Queue == "kafka" && cfg.Kafka.Enabled {
		certSvc.Artifacts = worker.NewKafkaQueue(publisher, cfg.Kafka.Topics.ArtifactRequested)
		log.Info("ARTIFACT", "Artifact jobs are handed to the artifact-worker through Kafka")
	} else {
		runner := worker.NewRunner(certSvc, cfg.Artifact.MaxAttempts, m, log)
		local = worker.NewLocalQueue(runner, cfg.Artifact.Workers, cfg.Artifact.BufferSize)
		local.Start(workerCtx)
		certSvc.Artifacts = local
		log.Info("ARTIFACT", fmt.Sprintf("Started %d in-process artifact workers", cfg.Artifact.Workers))
	}
	if n, err := certSvc.RequeueMissingArtifacts(ctx, cfg.Artifact.BufferSize); err != nil {
		log.Warn("ARTIFACT", fmt.Sprintf("Requeued %d certificates before failing: %v", n, err))
	} else if n > 0 {
		log.Info("ARTIFACT", fmt.Sprintf("Requeued %d certificates without a PDF", n))
	}

	var verifier auth.TokenVerifier
	if cfg.Auth.OIDCIssuer != "" {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", err.Error())
		}
		verifier = oidcVerifier
	}

	router := server.NewRouter(server.Options{
		Handlers: server.Handlers{
			Registration: registration_api.NewHandler(regSvc, log),
			Attendance:   attendance_api.NewHandler(attSvc, log),
			Certificate:  certificate_api.NewHandler(certSvc, log),
			Analytics:    analytics_api.NewHandler(statsSvc, log),
		},
		AdminAuth: auth.Admin(cfg.Auth, verifier, log),
		Metrics:   m,
		Logger:    log,
		Health:    healthCheck(bunDB, chain, cfg),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Certificate Service running on %s (chain: %s)", cfg.Server.Port, chain.Mode()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Certificate Service shutdown complete")
	}

	stopWorkers()
	if local != nil {
		local.Wait()
	}
}
