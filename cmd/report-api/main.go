package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/alx-report/report-api/api/swagger"
	"github.com/alx-report/report-api/internal/handler"
	"github.com/alx-report/report-api/internal/middleware"
	"github.com/alx-report/report-api/internal/repository"
	"github.com/alx-report/report-api/internal/scheduler"
	"github.com/alx-report/report-api/internal/service"
	"github.com/alx-report/report-api/pkg/config"
	"github.com/alx-report/report-api/pkg/database"
	"github.com/alx-report/report-api/pkg/logger"
	corsmiddleware "github.com/alx-report/report-api/pkg/middleware/cors"
	reqidmiddleware "github.com/alx-report/report-api/pkg/middleware/requestid"
)

// @title ALX Report API
// @version 1.0.0
// @description Rate-limited course-completion reporting API with incremental sync
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metrics := service.NewMetricsService()

	reportingRepo := repository.NewReportingRepository(db)
	sourceRepo := repository.NewSourceRepository(db)
	syncStatusRepo := repository.NewSyncStatusRepository(db)
	cacheRepo := repository.NewCacheRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	requestLogRepo := repository.NewRequestLogRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	adminUserRepo := repository.NewAdminUserRepository(db)
	lockRepo := repository.NewSyncLockRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.DefaultTTL, logr, cfg.Cache.Enabled)
	settingsSvc := service.NewSettingsService(settingsRepo, validate, logr, cfg.Cache.DefaultTTL)
	limiterSvc := service.NewRateLimitService(requestLogRepo, cfg.API.RateLimitDaily, logr)
	authSvc := service.NewAuthService(tokenRepo, adminUserRepo, validate, logr, service.AuthConfig{
		JWTSecret:     cfg.JWT.Secret,
		JWTExpiration: cfg.JWT.Expiration,
		Issuer:        cfg.JWT.Issuer,
	})
	progressSvc := service.NewProgressService(reportingRepo, sourceRepo, syncStatusRepo, settingsSvc, cacheSvc, metrics, logr, service.ProgressConfig{
		MaxRecords:   cfg.API.MaxRecords,
		DefaultLimit: cfg.API.DefaultLimit,
	})
	syncSvc := service.NewSyncService(reportingRepo, sourceRepo, lockRepo, syncStatusRepo, settingsSvc, cacheSvc, metrics, logr, service.SyncEngineConfig{
		LookbackHours:  cfg.Sync.LookbackHours,
		MaxRunTime:     cfg.Sync.MaxRunTime,
		BatchSize:      cfg.Sync.BatchSize,
		LockStaleAfter: cfg.Sync.LockStaleAfter,
	})
	exportSvc := service.NewExportService(reportingRepo, sourceRepo, settingsSvc, logr, cfg.API.MaxRecords*10)

	progressHandler := handler.NewProgressHandler(progressSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	syncHandler := handler.NewSyncHandler(syncSvc, limiterSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		tokenGuard := middleware.APIToken(authSvc, limiterSvc, metrics)
		api.POST("/progress", tokenGuard, progressHandler.GetProgress)
		if cfg.API.AllowGetMethod {
			api.GET("/progress", tokenGuard, progressHandler.GetProgress)
		}

		api.POST("/auth/login", authHandler.Login)

		admin := api.Group("/admin", middleware.JWT(authSvc))
		{
			admin.GET("/me", authHandler.Me)
			admin.GET("/companies/:id/settings", settingsHandler.List)
			admin.PUT("/companies/:id/settings", settingsHandler.Update)
			admin.POST("/companies/:id/settings/copy", settingsHandler.Copy)
			admin.POST("/sync/run", syncHandler.Run)
			admin.POST("/sync/populate", syncHandler.Populate)
			admin.POST("/sync/cleanup", syncHandler.Cleanup)
			admin.GET("/sync/status", syncHandler.Status)
			admin.GET("/export/progress", exportHandler.Progress)
		}
	}

	jobs := scheduler.New(syncSvc, cacheSvc, limiterSvc, logr, cfg)
	if err := jobs.Start(); err != nil {
		logr.Sugar().Fatalw("failed to start scheduler", "error", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	jobs.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
