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

	_ "github.com/modoudou1/vaxcare-api/api/swagger"
	"github.com/modoudou1/vaxcare-api/internal/handler"
	"github.com/modoudou1/vaxcare-api/internal/middleware"
	"github.com/modoudou1/vaxcare-api/internal/repository"
	"github.com/modoudou1/vaxcare-api/internal/service"
	rediscache "github.com/modoudou1/vaxcare-api/pkg/cache"
	"github.com/modoudou1/vaxcare-api/pkg/config"
	"github.com/modoudou1/vaxcare-api/pkg/database"
	"github.com/modoudou1/vaxcare-api/pkg/logger"
	corsmiddleware "github.com/modoudou1/vaxcare-api/pkg/middleware/cors"
	reqidmiddleware "github.com/modoudou1/vaxcare-api/pkg/middleware/requestid"
	"github.com/modoudou1/vaxcare-api/pkg/storage"
)

// @title VaxCare API
// @version 1.0.0
// @description Vaccination-program management platform
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		// The platform degrades without redis: dashboards and facility
		// sets fall back to direct queries.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	facilityRepo := repository.NewFacilityRepository(db)
	regionRepo := repository.NewRegionRepository(db)
	childRepo := repository.NewChildRepository(db)
	stockRepo := repository.NewStockRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	scopeResolver := service.NewScopeResolver(facilityRepo, cacheRepo, cfg.Scopes.FacilitySetCacheTTL, logr)

	authSvc := service.NewAuthService(userRepo, facilityRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "vaxcare-api",
	})

	userSvc := service.NewUserService(userRepo, facilityRepo, regionRepo, scopeResolver, validate, logr, metricsSvc)
	facilitySvc := service.NewFacilityService(facilityRepo, regionRepo, userRepo, scopeResolver, validate, logr, metricsSvc)
	regionSvc := service.NewRegionService(regionRepo, userRepo, validate, logr, metricsSvc)
	childSvc := service.NewChildService(childRepo, scopeResolver, validate, logr, metricsSvc)
	stockSvc := service.NewStockService(stockRepo, facilityRepo, userRepo, scopeResolver, validate, logr, metricsSvc)
	dashboardSvc := service.NewDashboardService(userRepo, facilityRepo, regionRepo, childRepo, stockRepo, scopeResolver, cacheRepo, cfg.Dashboard.CacheTTL, logr, metricsSvc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportSvc = service.NewReportService(reportRepo, childRepo, stockRepo, scopeResolver, store, signer, validate, logr, metricsSvc, service.ReportConfig{
			WorkerConcurrency: cfg.Reports.WorkerConcurrency,
			WorkerRetries:     cfg.Reports.WorkerRetries,
			CleanupInterval:   cfg.Reports.CleanupInterval,
		})
		reportSvc.Start(ctx)
		defer reportSvc.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	facilityHandler := handler.NewFacilityHandler(facilitySvc)
	regionHandler := handler.NewRegionHandler(regionSvc)
	childHandler := handler.NewChildHandler(childSvc)
	stockHandler := handler.NewStockHandler(stockSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("")
		authed.Use(middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc), middleware.Actor())

	managed := protected.Group("")
	managed.Use(middleware.RequireRanked())
	{
		managed.GET("/users", userHandler.List)
		managed.POST("/users", userHandler.Create)
		managed.GET("/users/:id", userHandler.Get)
		managed.PUT("/users/:id", userHandler.Update)
		managed.DELETE("/users/:id", userHandler.Delete)

		managed.GET("/regions", regionHandler.List)
		managed.POST("/regions", regionHandler.Create)

		managed.GET("/facilities", facilityHandler.List)
		managed.POST("/facilities", facilityHandler.Create)
		managed.GET("/facilities/:id", facilityHandler.Get)
		managed.PUT("/facilities/:id", facilityHandler.Update)
		managed.DELETE("/facilities/:id", facilityHandler.Delete)

		managed.GET("/children", childHandler.List)
		managed.POST("/children", childHandler.Create)
		managed.GET("/children/:id", childHandler.Get)
		managed.PUT("/children/:id", childHandler.Update)
		managed.DELETE("/children/:id", childHandler.Delete)
		managed.POST("/children/:id/vaccinations", childHandler.RecordDose)
		managed.GET("/children/:id/vaccinations", childHandler.History)
		managed.GET("/children/:id/card", childHandler.Card)

		managed.GET("/stock", stockHandler.List)
		managed.PUT("/stock", stockHandler.Upsert)

		if cfg.Dashboard.Enabled {
			managed.GET("/dashboard/summary", dashboardHandler.Summary)
		}

		managed.GET("/system/metrics", metricsHandler.System)
	}

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc)
		managed.POST("/reports", reportHandler.Create)
		managed.GET("/reports/:id", reportHandler.Get)
		// Download authenticates through the signed token alone so the
		// URL can be handed to a browser.
		api.GET("/reports/download/:token", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
