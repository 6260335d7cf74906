package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Abhiram-Kasu/CrowdCue/internal/auth"
	"github.com/Abhiram-Kasu/CrowdCue/internal/config"
	"github.com/Abhiram-Kasu/CrowdCue/internal/database"
	"github.com/Abhiram-Kasu/CrowdCue/internal/logging"
	"github.com/Abhiram-Kasu/CrowdCue/internal/party"
	"github.com/Abhiram-Kasu/CrowdCue/internal/redis"
	"github.com/Abhiram-Kasu/CrowdCue/internal/server"
	"github.com/Abhiram-Kasu/CrowdCue/internal/stream"
)

func setupConfig() *config.Config {
	// .env is a development convenience; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, registry *stream.Registry) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// Close push sessions first so their handlers return, then stop
		// accepting connections.
		registry.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	eventLog := redis.NewEventLog(redisClient)
	partyRepo := database.NewPartyRepo(pool)
	userRepo := database.NewUserRepo(pool)

	cache := party.NewStateCache()
	engine := party.NewEngine(eventLog, partyRepo, cache, clock)

	tokens := auth.NewTokenService(cfg.JWTSecret, clock)
	registry := stream.NewRegistry(cfg.MaxSubscribersPerParty)

	srv := server.NewServer(cfg, engine, eventLog, userRepo, partyRepo, tokens, registry, pool, redisClient, clock)

	done := runGracefulShutdown(srv, registry)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
