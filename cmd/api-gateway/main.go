package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/keek-conecta/escuta-api/api/swagger"
	"github.com/keek-conecta/escuta-api/internal/handler"
	"github.com/keek-conecta/escuta-api/internal/middleware"
	"github.com/keek-conecta/escuta-api/internal/models"
	"github.com/keek-conecta/escuta-api/internal/repository"
	"github.com/keek-conecta/escuta-api/internal/service"
	"github.com/keek-conecta/escuta-api/pkg/cache"
	"github.com/keek-conecta/escuta-api/pkg/config"
	"github.com/keek-conecta/escuta-api/pkg/database"
	"github.com/keek-conecta/escuta-api/pkg/export"
	"github.com/keek-conecta/escuta-api/pkg/logger"
	corsmiddleware "github.com/keek-conecta/escuta-api/pkg/middleware/cors"
	reqidmiddleware "github.com/keek-conecta/escuta-api/pkg/middleware/requestid"
	"github.com/keek-conecta/escuta-api/pkg/storage"
)

// @title Escuta Cidada API
// @version 1.0.0
// @description Survey collection and dashboard analytics backend
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	telemetry := service.NewTelemetryService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheService := service.NewCacheService(cacheRepo, telemetry, cfg.Metrics.CacheTTL, logr, cfg.Metrics.CacheEnabled && redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	formRepo := repository.NewFormRepository(db)
	responseRepo := repository.NewFormResponseRepository(db)
	metricsRepo := repository.NewMetricsRepository(db)

	validate := validator.New()

	authService := service.NewAuthService(userRepo, projectRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
	})
	userService := service.NewUserService(userRepo, validate, logr)
	projectService := service.NewProjectService(projectRepo, logr)
	formService := service.NewFormService(formRepo, logr)

	responseService := service.NewFormResponseService(service.FormResponseServiceParams{
		Responses: responseRepo,
		Versions:  formRepo,
		Cache:     cacheService,
		Logger:    logr,
	})
	metricsService := service.NewResponseMetricsService(service.ResponseMetricsServiceParams{
		Store:     metricsRepo,
		Cache:     cacheService,
		Telemetry: telemetry,
		Logger:    logr,
		Config: service.ResponseMetricsServiceConfig{
			CacheTTL:              cfg.Metrics.CacheTTL,
			DefaultLimit:          cfg.Metrics.DefaultLimit,
			MaxLimit:              cfg.Metrics.MaxLimit,
			TopThemesLimit:        cfg.Metrics.TopThemesLimit,
			TopNeighborhoodsLimit: cfg.Metrics.TopNeighborhoodsLimit,
			DistributionLimit:     cfg.Metrics.DistributionLimit,
		},
	})
	powerbiService := service.NewPowerBIService(cfg.PowerBI, cacheService, logr)

	var exportService *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to init export storage", zap.Error(err))
		}
		exportService = service.NewExportService(service.ExportServiceParams{
			Responses: responseRepo,
			Metrics:   metricsService,
			Storage:   store,
			CSV:       export.NewCSVExporter(),
			PDF:       export.NewPDFExporter(),
			Logger:    logr,
			Config: service.ExportConfig{
				Enabled: true,
				MaxRows: cfg.Exports.MaxRows,
			},
		})
	}

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	projectHandler := handler.NewProjectHandler(projectService)
	formHandler := handler.NewFormHandler(formService)
	responseHandler := handler.NewResponseHandler(responseService)
	metricsHandler := handler.NewMetricsHandler(metricsService)
	powerbiHandler := handler.NewPowerBIHandler(powerbiService)
	telemetryHandler := handler.NewTelemetryHandler(telemetry)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Telemetry(telemetry))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", telemetryHandler.Health)
	r.GET("/ready", telemetryHandler.Health)
	r.GET("/metrics", telemetryHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	// Citizen submissions come from the public form widget and carry no token.
	api.POST("/responses", responseHandler.Create)
	api.PUT("/responses/:id", responseHandler.Update)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))
	{
		responses := protected.Group("/responses")
		responses.Use(middleware.ProjectAccess(models.AccessViewer))
		{
			responses.GET("", responseHandler.List)
			responses.GET("/opinions", responseHandler.Opinions)
			responses.GET("/field-exists", responseHandler.FieldExists)
			responses.GET("/:id", responseHandler.Get)
			responses.DELETE("/:id", middleware.ProjectAccess(models.AccessEditor), responseHandler.Delete)
		}

		metrics := protected.Group("/metrics")
		metrics.Use(middleware.ProjectAccess(models.AccessViewer))
		{
			metrics.GET("/timeseries", metricsHandler.TimeSeries)
			metrics.GET("/distribution", metricsHandler.Distribution)
			metrics.GET("/numberstats", metricsHandler.NumberStats)
			metrics.GET("/funnel", metricsHandler.StatusFunnel)
			metrics.GET("/report", metricsHandler.Report)
			metrics.GET("/summary", metricsHandler.Summary)
			metrics.GET("/filters", metricsHandler.FilterOptions)
		}

		projetos := protected.Group("/projetos")
		{
			projetos.GET("", projectHandler.List)
			projetos.GET("/search", projectHandler.Search)
			projetos.GET("/:id", projectHandler.Get)
			projetos.POST("", middleware.RequireRoles(models.RoleAdmin), projectHandler.Create)
			projetos.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), projectHandler.Update)
			projetos.POST("/:id/access", middleware.RequireRoles(models.RoleAdmin), projectHandler.Grant)
			projetos.DELETE("/:id/access/:userId", middleware.RequireRoles(models.RoleAdmin), projectHandler.Revoke)
		}

		forms := protected.Group("/forms")
		{
			forms.GET("", formHandler.ListByProject)
			forms.GET("/:id", formHandler.Get)
			forms.GET("/:id/versions", formHandler.ListVersions)
			forms.GET("/versions/:id", formHandler.GetVersion)
			forms.POST("", formHandler.Create)
			forms.PUT("/:id", formHandler.Update)
			forms.POST("/versions", formHandler.CreateVersion)
			forms.POST("/versions/:id/publish", formHandler.PublishVersion)
		}

		users := protected.Group("/users")
		{
			users.POST("/me/password", userHandler.ChangePassword)
			users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
			users.GET("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Get)
			users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
			users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
		}

		protected.GET("/powerbi/embed-token", powerbiHandler.EmbedToken)

		if exportService != nil {
			exportHandler := handler.NewExportHandler(exportService)
			exports := protected.Group("/exports")
			exports.Use(middleware.ProjectAccess(models.AccessViewer))
			{
				exports.POST("/responses", exportHandler.Responses)
				exports.POST("/report", exportHandler.Report)
				exports.GET("/:filename", exportHandler.Download)
			}
		}
	}

	if exportService != nil {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				exportService.Cleanup()
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
