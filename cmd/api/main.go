package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"hostpanel/internal/cache"
	"hostpanel/internal/config"
	"hostpanel/internal/database"
	"hostpanel/internal/handlers"
	"hostpanel/internal/log"
	"hostpanel/internal/repository"
	"hostpanel/internal/security"
	"hostpanel/internal/server"
	"hostpanel/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	var (
		admins  service.AdminStore
		dbPool  *pgxpool.Pool
		dbCheck handlers.HealthCheck
	)
	switch cfg.Credentials.Driver {
	case config.CredentialsDriverPostgres:
		dbPool, err = database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		admins = repository.NewAdminRepository(dbPool)
		dbCheck = dbPool.Ping
	default:
		logger.Warn().Msg("using in-memory credential store; admins are lost on restart")
		admins = repository.NewMemoryAdminRepository()
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, login throttling disabled")
		redisClient = nil
	}

	var cacheCheck handlers.HealthCheck
	if redisClient != nil {
		cacheCheck = cache.Ping(redisClient)
	}

	tokens := security.NewTokenService(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	throttle := service.NewLoginThrottle(redisClient, cfg.Security.LoginMaxAttempts, cfg.Security.LoginWindow)
	authService := service.NewAuthService(admins, tokens, throttle, logger)

	if b := cfg.Bootstrap; b.Username != "" {
		if _, err := authService.EnsureSuperAdmin(ctx, b.Username, b.Email, b.Password); err != nil {
			logger.Fatal().Err(err).Msg("bootstrap superadmin failed")
		}
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, authService, tokens, admins, dbCheck, cacheCheck)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if db != nil {
		db.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
