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

	_ "github.com/noah-isme/lms-portal-api/api/swagger"
	"github.com/noah-isme/lms-portal-api/internal/handler"
	"github.com/noah-isme/lms-portal-api/internal/middleware"
	"github.com/noah-isme/lms-portal-api/internal/models"
	"github.com/noah-isme/lms-portal-api/internal/realtime"
	"github.com/noah-isme/lms-portal-api/internal/repository"
	"github.com/noah-isme/lms-portal-api/internal/service"
	"github.com/noah-isme/lms-portal-api/pkg/config"
	"github.com/noah-isme/lms-portal-api/pkg/database"
	"github.com/noah-isme/lms-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-portal-api/pkg/pdf"
	"github.com/noah-isme/lms-portal-api/pkg/storage"

	redisCache "github.com/noah-isme/lms-portal-api/pkg/cache"
)

// @title LMS Portal API
// @version 1.0.0
// @description Course portal with PDF slide decks, gated lecture sites and realtime slide sync
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	pageStore, err := storage.NewPageStore(cfg.Uploads.MaterialsDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init page store", "error", err)
	}
	if err := os.MkdirAll(cfg.Uploads.TempDir, 0o755); err != nil {
		logr.Sugar().Fatalw("failed to init upload temp dir", "error", err)
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()

	// repositories
	userRepo := repository.NewUserRepository(db)
	materialRepo := repository.NewMaterialRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	siteRepo := repository.NewSiteRepository(db)

	// optional redis-backed catalog cache
	var cacheService *service.CacheService
	if cfg.Catalog.CacheEnabled {
		redisClient, err := redisCache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Catalog.CacheTTL, logr, true)
		}
	}

	// realtime hub and conversion pipeline
	hub := realtime.NewHub(logr)
	rasterizer := pdf.NewRasterizer(pageStore, cfg.Uploads.RenderDPI, cfg.Uploads.PageRenderTimeout, logr)

	// services
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "lms-portal-api",
	})
	accessService := service.NewAccessService(materialRepo, siteRepo, logr)
	materialService := service.NewMaterialService(materialRepo, accessService, rasterizer, pageStore, hub, metricsService,
		service.MaterialServiceConfig{
			MaxFileSizeBytes:  cfg.Uploads.MaxFileSizeBytes,
			WorkerConcurrency: cfg.Uploads.WorkerConcurrency,
		}, validate, logr)
	courseService := service.NewCourseService(courseRepo, materialRepo, cacheService, cfg.Catalog.CacheTTL, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, logr)
	siteService := service.NewSiteService(siteRepo, accessService, validate, logr)
	userService := service.NewUserService(userRepo, validate, logr)
	var exportService *service.ExportService
	if cfg.Exports.Enabled {
		exportService = service.NewExportService(enrollmentRepo, courseRepo, nil, nil, logr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	materialService.Start(ctx)
	defer materialService.Stop()

	// handlers
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	materialHandler := handler.NewMaterialHandler(materialService, cfg.Uploads.TempDir, cfg.Uploads.MaxFileSizeBytes)
	courseHandler := handler.NewCourseHandler(courseService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService, exportService)
	siteHandler := handler.NewSiteHandler(siteService)
	wsHandler := handler.NewWSHandler(hub, authService, metricsService, cfg.Realtime, logr)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes

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
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
		auth.PUT("/password", middleware.JWT(authService), authHandler.ChangePassword)
	}

	api.GET("/ws", wsHandler.Serve)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	instructors := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleInstructor)
	admins := middleware.RequireRoles(models.RoleSuperAdmin)

	users := protected.Group("/users")
	{
		users.PUT("/me", userHandler.UpdateProfile)
		users.GET("", admins, userHandler.List)
		users.POST("", admins, userHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleSuperAdmin), middleware.AllowSelf), userHandler.Get)
		users.POST("/:id/approve", admins, userHandler.Approve)
		users.DELETE("/:id/approve", admins, userHandler.Withdraw)
		users.DELETE("/:id", admins, userHandler.Delete)
	}

	materials := protected.Group("/materials")
	{
		materials.POST("", instructors, materialHandler.Upload)
		materials.GET("", instructors, materialHandler.List)
		materials.GET("/:id", materialHandler.Get)
		materials.GET("/:id/pages/:page", materialHandler.Page)
		materials.PATCH("/:id", instructors, materialHandler.Update)
		materials.DELETE("/:id", instructors, materialHandler.Delete)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", courseHandler.Catalog)
		courses.GET("/mine", instructors, courseHandler.Mine)
		courses.POST("", instructors, courseHandler.Create)
		courses.GET("/:id", courseHandler.Get)
		courses.PUT("/:id", instructors, courseHandler.Update)
		courses.DELETE("/:id", instructors, courseHandler.Delete)
		courses.POST("/:id/materials", instructors, courseHandler.LinkMaterial)
		courses.DELETE("/:id/materials/:materialId", instructors, courseHandler.UnlinkMaterial)
		courses.POST("/:id/sites", instructors, courseHandler.LinkSite)
		courses.POST("/:id/enrollments", enrollmentHandler.Apply)
		courses.GET("/:id/enrollments", instructors, enrollmentHandler.ListForCourse)
		if exportService != nil {
			courses.GET("/:id/roster", instructors, enrollmentHandler.Roster)
		}
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("/mine", enrollmentHandler.Mine)
		enrollments.POST("/:id/approve", instructors, enrollmentHandler.Approve)
		enrollments.POST("/:id/reject", instructors, enrollmentHandler.Reject)
		enrollments.POST("/:id/revoke", instructors, enrollmentHandler.Revoke)
	}

	sites := protected.Group("/sites")
	{
		sites.POST("", instructors, siteHandler.Create)
		sites.GET("", instructors, siteHandler.List)
		sites.GET("/:slug/resolve", siteHandler.Resolve)
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

	logr.Sugar().Infow("server stopping")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}
