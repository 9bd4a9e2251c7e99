package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"make-comics-server/config"
	"make-comics-server/logger"
	"make-comics-server/models"
	"make-comics-server/routers"
	"make-comics-server/routers/api"
	"make-comics-server/routers/middleware"
	"make-comics-server/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the yaml config file")
	flag.Parse()

	config.InitConfig(*configPath)
	cfg := config.AppConfig

	zlog, err := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding, OutputPath: cfg.Log.Output})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zap.ReplaceGlobals(zlog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	models.InitDB()
	zap.L().Info("Database initialized", zap.String("driver", cfg.Database.Driver))
	store := models.NewStore(models.GormDB)

	var limiter service.RateLimiter
	switch cfg.RateLimit.Backend {
	case "memory":
		limiter = service.NewMemoryLimiter(cfg.RateLimit.Window)
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			zap.L().Warn("Redis not reachable, free tier requests will fail until it is", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		limiter = service.NewRedisLimiter(rdb, cfg.RateLimit.Window)
	}
	zap.L().Info("Rate limiter initialized", zap.String("backend", cfg.RateLimit.Backend), zap.Duration("window", cfg.RateLimit.Window))

	storage := service.InitMinIO(ctx)

	queue := service.NewQueue(service.RedisClientOpt(), zlog)
	defer queue.Close()

	if cfg.Worker.Enabled {
		processor := service.NewProcessor(store, storage, nil, zlog)
		srv, err := processor.Start(service.RedisClientOpt(), cfg.Worker.Concurrency)
		if err != nil {
			zap.L().Fatal("Archive processor failed to start", zap.Error(err))
		}
		defer srv.Shutdown()
	}

	images := service.NewImageClient(cfg.AI.BaseURL, &http.Client{}, zlog)
	generator := service.NewGenerator(store, limiter, images, queue, storage, service.GeneratorConfig{
		DefaultAPIKey: cfg.AI.DefaultAPIKey,
		DefaultModel:  cfg.AI.DefaultModel,
		Timeout:       cfg.AI.Timeout,
	}, zlog)

	verifier, err := middleware.NewJWTVerifier(cfg.Auth.JWTSecret, zlog)
	if err != nil {
		zap.L().Fatal("JWT verifier init failed", zap.Error(err))
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(generator, store, storage, cfg.Storage.MaxUploadBytes, zlog)
	r := routers.InitRouter(handler, verifier, zlog, routers.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Metrics:        true,
	})

	httpSrv := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// generation can take up to the provider timeout
		WriteTimeout: cfg.AI.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		zap.L().Info("Server starting", zap.String("addr", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zap.L().Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := models.DB.Close(); err != nil {
		zap.L().Warn("Database close failed", zap.Error(err))
	}
}
