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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/codecampus-id/academy-api/api/swagger"
	"github.com/codecampus-id/academy-api/internal/handler"
	"github.com/codecampus-id/academy-api/internal/middleware"
	"github.com/codecampus-id/academy-api/internal/repository"
	"github.com/codecampus-id/academy-api/internal/service"
	"github.com/codecampus-id/academy-api/pkg/cache"
	"github.com/codecampus-id/academy-api/pkg/config"
	"github.com/codecampus-id/academy-api/pkg/database"
	"github.com/codecampus-id/academy-api/pkg/logger"
	corsmiddleware "github.com/codecampus-id/academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/codecampus-id/academy-api/pkg/middleware/requestid"
)

// @title Academy API
// @version 1.0.0
// @description Curriculum scheduling and progression engine
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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, schedule cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	classRepo := repository.NewClassRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	curriculumRepo := repository.NewCurriculumRepository(db)
	blockRepo := repository.NewClassBlockRepository(db)
	lessonRepo := repository.NewClassLessonRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT.Secret, logr)
	plannerSvc := service.NewSessionPlannerService(classRepo, sessionRepo, service.PlannerConfig{
		HorizonWeeks:     cfg.Scheduler.HorizonWeeks,
		CivilOffsetHours: cfg.Scheduler.CivilOffsetHours,
	}, validate, logr)
	journeySvc := service.NewJourneyService(progressRepo, curriculumRepo, enrollmentRepo, classRepo, logr)
	assignSvc := service.NewLessonAssignmentService(classRepo, sessionRepo, blockRepo, lessonRepo, curriculumRepo, journeySvc, logr)
	scheduleSvc := service.NewLessonScheduleService(classRepo, sessionRepo, curriculumRepo, cacheRepo, cfg.Scheduler.ScheduleCacheTTL, metricsSvc, logr)
	classSvc := service.NewClassService(classRepo, blockRepo, lessonRepo, sessionRepo, curriculumRepo, plannerSvc, assignSvc, journeySvc, scheduleSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, classRepo, blockRepo, journeySvc, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, lessonRepo, assignSvc, scheduleSvc, validate, logr)
	sweepSvc := service.NewSweepService(classRepo, plannerSvc, assignSvc, service.SweepConfig{
		Workers:    cfg.Sweep.Workers,
		BufferSize: cfg.Sweep.BufferSize,
		Interval:   time.Hour,
	}, metricsSvc, logr)

	classHandler := handler.NewClassHandler(classSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	schedulerHandler := handler.NewSchedulerHandler(plannerSvc, scheduleSvc, sweepSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, journeySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

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
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	{
		api.GET("/classes", classHandler.List)
		api.POST("/classes", classHandler.Create)
		api.GET("/classes/:id", classHandler.Detail)
		api.POST("/classes/:id/blocks", classHandler.CreateBlock)
		api.PATCH("/classes/:id/blocks/:blockId", classHandler.PatchBlock)
		api.DELETE("/classes/:id/blocks/:blockId", classHandler.DeleteBlock)
		api.POST("/classes/:id/blocks/:blockId/complete", classHandler.MarkBlockComplete)

		api.POST("/classes/:id/sessions/generate", schedulerHandler.GenerateSessions)
		api.POST("/classes/:id/sessions/ensure", schedulerHandler.EnsureSessions)
		api.GET("/classes/:id/schedule", schedulerHandler.Schedule)
		api.POST("/scheduler/sweep", schedulerHandler.SweepNow)

		api.PATCH("/sessions/:id/status", sessionHandler.PatchStatus)
		api.PATCH("/sessions/:id/time", sessionHandler.PatchTime)
		api.POST("/sessions/:id/substitute", sessionHandler.AssignSubstitute)

		api.POST("/classes/:id/enrollments", enrollmentHandler.Enroll)
		api.GET("/classes/:id/enrollments", enrollmentHandler.ListByClass)
		api.DELETE("/enrollments/:id", enrollmentHandler.Withdraw)
		api.GET("/coders/:coderId/levels/:levelId/journey", enrollmentHandler.Journey)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sweep.Enabled {
		sweepSvc.Start(ctx)
		defer sweepSvc.Stop()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
