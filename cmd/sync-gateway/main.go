package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/norish-recipes/norish-caldav/internal/handler"
	"github.com/norish-recipes/norish-caldav/internal/middleware"
	"github.com/norish-recipes/norish-caldav/internal/repository"
	"github.com/norish-recipes/norish-caldav/internal/service"
	"github.com/norish-recipes/norish-caldav/pkg/cache"
	"github.com/norish-recipes/norish-caldav/pkg/config"
	"github.com/norish-recipes/norish-caldav/pkg/crypto"
	"github.com/norish-recipes/norish-caldav/pkg/database"
	"github.com/norish-recipes/norish-caldav/pkg/export"
	"github.com/norish-recipes/norish-caldav/pkg/jobs"
	"github.com/norish-recipes/norish-caldav/pkg/logger"
	corsmiddleware "github.com/norish-recipes/norish-caldav/pkg/middleware/cors"
	reqidmiddleware "github.com/norish-recipes/norish-caldav/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and events disabled", "error", err)
		redisClient = nil
	}

	encryptor, err := crypto.NewEncryptor(cfg.Crypto.EncryptionSecret)
	if err != nil {
		logr.Sugar().Fatalw("encryptor init failed", "error", err)
	}

	configRepo := repository.NewCalDAVConfigRepository(db, encryptor)
	statusRepo := repository.NewSyncStatusRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	publisher := repository.NewSyncEventPublisher(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	tokenSvc := service.NewTokenService(cfg.JWT)

	httpClient := &http.Client{Timeout: cfg.CalDAV.HTTPTimeout}
	factory := service.NewCalDAVClientFactory(httpClient, logr)

	var syncSvc *service.SyncService
	queue := jobs.NewQueue("caldav-resync", func(ctx context.Context, job jobs.Job) error {
		return syncSvc.HandleResyncJob(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Sync.ResyncWorkers,
		BufferSize: cfg.Sync.ResyncBuffer,
		Logger:     logr,
	})

	syncSvc = service.NewSyncService(configRepo, statusRepo, factory, publisher, metricsSvc, queue, cfg.CalDAV.AppBaseURL, logr)
	configSvc := service.NewConfigService(configRepo, nil, logr)
	statusSvc := service.NewStatusService(statusRepo, cacheRepo, export.NewCSVExporter(), export.NewPDFExporter(), cfg.Sync.SummaryCacheTTL, logr)
	syncSvc.SetSummaryInvalidator(statusSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metricsSvc.SetQueueDepth(queue.Depth())
			}
		}
	}()

	settingsHandler := handler.NewSettingsHandler(configSvc, syncSvc)
	syncHandler := handler.NewSyncHandler(syncSvc)
	statusHandler := handler.NewStatusHandler(statusSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, redisClient)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	api := r.Group(cfg.APIPrefix)
	api.GET("/health", metricsHandler.Health)
	api.GET("/ready", metricsHandler.Ready)
	api.GET("/metrics", metricsHandler.Prometheus)

	caldavRoutes := api.Group("/caldav", middleware.JWT(tokenSvc))
	caldavRoutes.GET("/settings", settingsHandler.Get)
	caldavRoutes.PUT("/settings", settingsHandler.Update)
	caldavRoutes.POST("/test-connection", settingsHandler.TestConnection)
	caldavRoutes.POST("/sync/items", syncHandler.SyncItem)
	caldavRoutes.DELETE("/sync/items/:itemId", syncHandler.DeleteItem)
	caldavRoutes.POST("/sync/resync", syncHandler.Resync)
	caldavRoutes.GET("/status", statusHandler.List)
	caldavRoutes.GET("/status/summary", statusHandler.Summary)
	caldavRoutes.GET("/status/export", statusHandler.Export)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown", "error", err)
	}
}
