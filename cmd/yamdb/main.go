// cmd/yamdb/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	httpAPI "yamdb/internal/api"
	"yamdb/internal/clock"
	"yamdb/internal/config"
	"yamdb/internal/domain"
	grpcServer "yamdb/internal/grpc"
	"yamdb/internal/logging"
	"yamdb/internal/notify"
	"yamdb/internal/ratelimit"
	"yamdb/internal/service"
	"yamdb/internal/store"
	"yamdb/pkg/auth"
)

func main() {
	// Пока конфиг не прочитан, пишем в JSON на уровне info.
	bootLogger := logging.New(os.Stdout, slog.LevelInfo)
	cfg, err := config.Load(os.Getenv("YAMDB_CONFIG"), bootLogger)
	if err != nil {
		bootLogger.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.SlogLevel())

	if err := run(cfg, logger); err != nil {
		logger.Error("YaMDb service stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// --- Хранилище ---
	stores, db, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close database connection", slog.String("error", err.Error()))
			} else {
				logger.Info("Database connection closed.")
			}
		}()
	}

	// --- Redis (лимитер и очередь писем) ---
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis is not reachable yet", slog.String("addr", cfg.RedisAddr), slog.String("error", err.Error()))
		}
		defer redisClient.Close()
	}

	var limiter httpAPI.RateLimiter
	if cfg.RateLimitEnabled() {
		fw, err := ratelimit.NewFixedWindowLimiter(redisClient, "yamdb:ratelimit:auth", cfg.AuthRateLimitPerMinute, time.Minute, clock.System, logger)
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		limiter = fw
		logger.Info("Auth rate limiting enabled", slog.Int("perMinute", cfg.AuthRateLimitPerMinute))
	}

	var notifier notify.Notifier
	switch cfg.Notifier {
	case "redis":
		outbox, err := notify.NewRedisOutbox(redisClient, cfg.NotifyStream, cfg.FromEmail, logger)
		if err != nil {
			return fmt.Errorf("notifier: %w", err)
		}
		notifier = outbox
	default:
		notifier = notify.NewLogNotifier(cfg.FromEmail, logger)
	}

	// --- Токены ---
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return err
	}
	tokenManager, err := auth.NewTokenManager(cfg.JWTSecret, ttl, auth.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}
	codes, err := auth.NewCodeGenerator(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("code generator: %w", err)
	}
	tokens, err := service.NewTokenService(codes, tokenManager, stores.Users, logger)
	if err != nil {
		return err
	}
	logger.Info("Token service initialized.")

	// --- Сервисы ---
	validate := domain.NewValidator()
	identity := service.NewIdentityService(stores.Users, tokens, notifier, validate, clock.System, logger)
	catalog := service.NewCatalogService(stores.Catalog, validate, clock.System, logger)
	reviews := service.NewReviewEngine(stores.Catalog, stores.Reviews, validate, clock.System, logger)

	// --- gRPC ---
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen for gRPC on %s: %w", cfg.GRPCPort, err)
	}
	grpcSrv := grpc.NewServer()
	grpcServer.Register(grpcSrv, grpcServer.NewServer(identity, tokens, logger))
	reflection.Register(grpcSrv)

	go func() {
		logger.Info("YaMDb gRPC Service starting", slog.String("port", cfg.GRPCPort))
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("YaMDb gRPC Service Serve() failed", slog.String("error", err.Error()))
		}
	}()

	// --- HTTP ---
	handler := httpAPI.NewHTTPHandler(identity, tokens, catalog, reviews, limiter, logger)
	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      httpAPI.NewHTTPRouter(handler),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("YaMDb HTTP Service starting", slog.String("port", cfg.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("YaMDb HTTP Service ListenAndServe() failed", slog.String("error", err.Error()))
		}
	}()

	// Ожидание сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("YaMDb shutting down...")

	ctxHTTP, cancelHTTP := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelHTTP()
	if err := httpSrv.Shutdown(ctxHTTP); err != nil {
		logger.Error("HTTP Server Shutdown Failed", slog.String("error", err.Error()))
	} else {
		logger.Info("HTTP Server gracefully stopped.")
	}

	grpcSrv.GracefulStop()
	logger.Info("gRPC Service gracefully stopped.")
	return nil
}

// openStores returns the configured backend. db is nil for the memory driver.
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Stores, *sqlx.DB, error) {
	if cfg.Database.Driver == store.DriverMemory {
		logger.Warn("Using in-memory storage, data is lost on restart.")
		return store.NewMemoryStores(), nil, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := store.Open(connectCtx, cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		return store.Stores{}, nil, err
	}
	stores, err := store.NewSQLStores(db, logger)
	if err != nil {
		db.Close()
		return store.Stores{}, nil, err
	}
	return stores, db, nil
}
