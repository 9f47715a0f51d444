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

	"github.com/nulzo/content-gateway/cmd"
	"github.com/nulzo/content-gateway/internal/analytics"
	"github.com/nulzo/content-gateway/internal/cli"
	"github.com/nulzo/content-gateway/internal/config"
	"github.com/nulzo/content-gateway/internal/gateway"
	"github.com/nulzo/content-gateway/internal/platform/logger"
	"github.com/nulzo/content-gateway/internal/platform/otel"
	"github.com/nulzo/content-gateway/internal/server"
	"github.com/nulzo/content-gateway/internal/server/middleware"
	"github.com/nulzo/content-gateway/internal/store"
	"github.com/nulzo/content-gateway/internal/store/sqlite"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	// adapters register themselves in init()
	_ "github.com/nulzo/content-gateway/internal/llm/anthropic"
	_ "github.com/nulzo/content-gateway/internal/llm/bfl"
	_ "github.com/nulzo/content-gateway/internal/llm/google"
	_ "github.com/nulzo/content-gateway/internal/llm/openai"
	_ "github.com/nulzo/content-gateway/internal/llm/together"
)

func main() {
	logger.Initialize(logger.DefaultConfig())
	defer logger.Sync()

	fmt.Println(cli.Banner("content-gateway " + cmd.AppVersion))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	log := logger.Get()

	go func() {
		latest, outdated, err := cmd.CheckForUpdates(context.Background(), cmd.AppVersion, cmd.ReleasesURL)
		if err != nil {
			logger.Debug("Update check skipped", zap.Error(err))
			return
		}
		if outdated {
			logger.Warn(fmt.Sprintf("%s You are running an outdated version", cli.WarningSign()),
				zap.String("current", cmd.AppVersion),
				zap.String("latest", latest),
			)
		}
	}()

	shutdownTracer, err := otel.InitTracer(cfg.Tracing, logger.Component("otel"), os.Stdout)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo        store.Repository
		ingestor    analytics.Ingestor = analytics.NopIngestor{}
		analyticsSv analytics.Service
	)
	if cfg.Database.Enabled {
		repo, err = sqlite.NewSQLiteStorage(cfg.Database.DSN, logger.Component("store"))
		if err != nil {
			logger.Fatal("Failed to open database", zap.Error(err))
		}
		ingestor = analytics.NewIngestor(logger.Component("analytics"), repo)
		analyticsSv = analytics.NewService(repo)
	}
	ingestor.Start(context.Background())

	svc := gateway.NewService(logger.Component("gateway"), ingestor)
	gateway.BootstrapProviders(ctx, svc, cfg.Providers, logger.Component("bootstrap"))
	if err := svc.SetRoutes(cfg.Routes); err != nil {
		logger.Fatal("Invalid route configuration", zap.Error(err))
	}

	var limiter middleware.Limiter
	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		if cfg.Redis.Enabled {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err := redisClient.Ping(ctx).Err(); err != nil {
				log.Warn("Redis unreachable, rate limiting will fail open until it recovers", zap.Error(err))
			}
			// one fixed window per second holding the configured burst
			limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimit.Burst, time.Second)
		} else {
			limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		}
	}

	srv, err := server.New(cfg, logger.Component("http"), server.Deps{
		Service:   svc,
		Analytics: analyticsSv,
		Limiter:   limiter,
		Version:   cmd.AppVersion,
	})
	if err != nil {
		logger.Fatal("Failed to build HTTP server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info(fmt.Sprintf("%s Listening", cli.Arrow()), zap.String("addr", httpServer.Addr), zap.String("env", cfg.Server.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown did not complete", zap.Error(err))
	}

	// no more generations can be logged past this point
	ingestor.Stop()

	if repo != nil {
		if err := repo.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}

	log.Info(fmt.Sprintf("%s Stopped", cli.CheckMark()))
}
