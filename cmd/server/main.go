package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/djamnbo/dnd-master-club/internal/config"
	"github.com/djamnbo/dnd-master-club/internal/dice"
	"github.com/djamnbo/dnd-master-club/internal/gm"
	"github.com/djamnbo/dnd-master-club/internal/lease"
	"github.com/djamnbo/dnd-master-club/internal/logger"
	"github.com/djamnbo/dnd-master-club/internal/narrator"
	"github.com/djamnbo/dnd-master-club/internal/session"
	"github.com/djamnbo/dnd-master-club/internal/store"
	firestorestore "github.com/djamnbo/dnd-master-club/internal/store/firestore"
	memorystore "github.com/djamnbo/dnd-master-club/internal/store/memory"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("starting session engine",
		zap.String("storeBackend", cfg.StoreBackend),
		zap.String("aiClientType", cfg.AIClientType))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	realtimeStore, err := buildStore(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize realtime store", zap.Error(err))
	}
	defer realtimeStore.Close()

	aiClient, err := narrator.New(narrator.Config{
		ClientType:          cfg.AIClientType,
		BaseURL:             cfg.AIBaseURL,
		APIKey:              cfg.AIAPIKey,
		Model:               cfg.AIModel,
		Timeout:             cfg.AITimeout,
		MaxCompletionTokens: cfg.AIMaxCompletionTokens,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize AI client", zap.Error(err))
	}

	orchestrator := gm.NewOrchestrator(aiClient,
		gm.NewPromptBuilder(cfg.AIModel, cfg.AIPromptTokenBudget, zapLogger), zapLogger)

	manager := session.NewManager(session.Deps{
		Store:        realtimeStore,
		Orchestrator: orchestrator,
		Lease:        buildLease(ctx, cfg, zapLogger),
		Roller:       dice.New(),
		Logger:       zapLogger,
	})
	defer manager.Shutdown()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: mux,
	}
	go func() {
		zapLogger.Info("metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("metrics server shutdown failed", zap.Error(err))
	}
}

// buildStore selects the realtime store backend from configuration. The
// memory backend exists for local development and tests.
func buildStore(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (store.RealtimeStore, error) {
	switch cfg.StoreBackend {
	case "memory":
		return memorystore.New(), nil
	case "firestore":
		return firestorestore.New(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile, zapLogger)
	default:
		return nil, errors.New("unknown STORE_BACKEND: " + cfg.StoreBackend)
	}
}

// buildLease returns a Redis-backed cross-process lease when Redis is
// configured, falling back to a process-local lease for single-instance
// deployments.
func buildLease(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) session.Lease {
	if cfg.RedisAddr == "" {
		zapLogger.Warn("REDIS_ADDR not set, orchestration lease is process-local")
		return session.NewLocalLease()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Warn("redis unreachable, orchestration lease is process-local", zap.Error(err))
		return session.NewLocalLease()
	}
	holder, _ := os.Hostname()
	if holder == "" {
		holder = uuid.NewString()
	}
	return lease.NewRedis(client, holder, cfg.LeaseTTL, zapLogger)
}
