package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/clinrota/rotation-api/api/swagger"
	"github.com/clinrota/rotation-api/internal/handler"
	"github.com/clinrota/rotation-api/internal/middleware"
	"github.com/clinrota/rotation-api/internal/repository"
	"github.com/clinrota/rotation-api/internal/service"
	"github.com/clinrota/rotation-api/pkg/cache"
	"github.com/clinrota/rotation-api/pkg/config"
	"github.com/clinrota/rotation-api/pkg/database"
	"github.com/clinrota/rotation-api/pkg/logger"
	corsmiddleware "github.com/clinrota/rotation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/clinrota/rotation-api/pkg/middleware/requestid"
)

// @title Rotation Schedule API
// @version 1.0.0
// @description Instructor scheduling for clinical rotations
// @BasePath /api/v1
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Permissions.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, permission cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// Repositories.
	auditRepo := repository.NewAuditRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db, auditRepo)
	rotationRepo := repository.NewRotationRepository(db)
	serviceRepo := repository.NewServiceRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	weekRepo := repository.NewWeekRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	permissionSvc := service.NewPermissionService(rotationRepo, serviceRepo, assignmentRepo, cacheRepo, cfg.Permissions.CacheTTL, logr)
	scheduleSvc := service.NewScheduleService(assignmentRepo, permissionSvc, metricsSvc, nil, logr)
	auditSvc := service.NewAuditService(auditRepo, assignmentRepo, logr)
	accessSvc := service.NewAccessService(permissionSvc, logr)
	catalogSvc := service.NewCatalogService(serviceRepo, rotationRepo, instructorRepo, weekRepo)
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, accessSvc)
	permissionHandler := handler.NewPermissionHandler(permissionSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Docs.Enabled {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)

	authed.GET("/services", catalogHandler.ListServices)
	authed.GET("/services/editable", permissionHandler.EditableServices)
	authed.GET("/services/permissions", permissionHandler.PermissionMap)
	authed.GET("/services/:id/rotations", catalogHandler.ListServiceRotations)
	authed.GET("/services/:id/required-permission", permissionHandler.RequiredPermission)

	authed.GET("/rotations", catalogHandler.ListRotations)
	authed.GET("/rotations/:id/can-edit", permissionHandler.CanEditRotation)
	authed.GET("/rotations/:id/instructors", scheduleHandler.ListScheduled)
	authed.POST("/rotations/:id/instructors", scheduleHandler.Add)
	authed.POST("/rotations/:id/primary", scheduleHandler.Promote)
	authed.GET("/rotations/:id/weeks/:weekId/history", auditHandler.SlotHistory)

	authed.GET("/instructors", catalogHandler.ListInstructors)
	authed.GET("/instructors/:id", catalogHandler.GetInstructor)
	authed.GET("/instructors/:id/conflicts", scheduleHandler.Conflicts)

	authed.GET("/weeks", catalogHandler.ListWeeks)

	authed.DELETE("/assignments/:id", scheduleHandler.Remove)
	authed.GET("/assignments/:id/can-remove", scheduleHandler.CanRemove)
	authed.PATCH("/assignments/:id/primary", scheduleHandler.SetPrimary)
	authed.GET("/assignments/:id/can-edit-own", permissionHandler.CanEditOwnSlot)
	authed.GET("/assignments/:id/history", auditHandler.AssignmentHistory)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
