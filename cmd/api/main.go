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

	_ "github.com/coachdesk/coachdesk-api/api/swagger"
	"github.com/coachdesk/coachdesk-api/internal/handler"
	"github.com/coachdesk/coachdesk-api/internal/middleware"
	"github.com/coachdesk/coachdesk-api/internal/models"
	"github.com/coachdesk/coachdesk-api/internal/repository"
	"github.com/coachdesk/coachdesk-api/internal/service"
	"github.com/coachdesk/coachdesk-api/pkg/cache"
	"github.com/coachdesk/coachdesk-api/pkg/config"
	"github.com/coachdesk/coachdesk-api/pkg/database"
	"github.com/coachdesk/coachdesk-api/pkg/jobs"
	"github.com/coachdesk/coachdesk-api/pkg/logger"
	corsmiddleware "github.com/coachdesk/coachdesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/coachdesk/coachdesk-api/pkg/middleware/requestid"
	"github.com/coachdesk/coachdesk-api/pkg/storage"
)

// @title CoachDesk API
// @version 1.0.0
// @description Fitness coaching management backend
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	workoutRepo := repository.NewWorkoutRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	reportRepo := repository.NewReportRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	eventSvc := service.NewEventService(eventRepo, attendanceRepo, userRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, eventRepo, userRepo, logr)
	workoutSvc := service.NewWorkoutService(workoutRepo, userRepo, validate, logr)
	evaluationSvc := service.NewEvaluationService(evaluationRepo, userRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(statsRepo, cacheRepo, logr, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})
	metricsSvc := service.NewMetricsService()

	fileStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	exportSvc := service.NewExportService(service.ExportServiceParams{
		Evaluations: evaluationRepo,
		Attendance:  attendanceRepo,
		Users:       userRepo,
		Events:      eventRepo,
		Storage:     fileStore,
		Signer:      signer,
		Logger:      logr,
		Config: service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		},
	})

	worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	reportSvc := service.NewReportService(reportRepo, queue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
		MaxRetries:      cfg.Reports.WorkerRetries,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	eventHandler := handler.NewEventHandler(eventSvc, attendanceSvc)
	workoutHandler := handler.NewWorkoutHandler(workoutSvc)
	evaluationHandler := handler.NewEvaluationHandler(evaluationSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := middleware.Auth(authSvc)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/register", auth, adminOnly, authHandler.Register)
		api.GET("/auth/verify", auth, authHandler.Verify)
		api.POST("/auth/change-password", auth, authHandler.ChangePassword)

		users := api.Group("/users", auth)
		{
			users.GET("", adminOnly, userHandler.List)
			users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
			users.PUT("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Update)
			users.PUT("/:id/role", adminOnly, userHandler.UpdateRole)
			users.DELETE("/:id", adminOnly, userHandler.Delete)
		}

		events := api.Group("/events", auth)
		{
			events.GET("", eventHandler.List)
			events.POST("", adminOnly, eventHandler.Create)
			events.GET("/:id", eventHandler.Get)
			events.PUT("/:id", adminOnly, eventHandler.Update)
			events.DELETE("/:id", adminOnly, eventHandler.Delete)

			events.PUT("/:id/attendance", eventHandler.SetAttendance)
			events.POST("/:id/attend", eventHandler.Attend)
			events.GET("/:id/attendance", adminOnly, eventHandler.ListAttendance)
			events.GET("/:id/attendance/summary", adminOnly, eventHandler.AttendanceSummary)
		}

		api.GET("/my/attendance", auth, eventHandler.MyAttendance)
		api.GET("/my/workouts", auth, workoutHandler.MyWorkouts)
		api.GET("/my/evaluations", auth, evaluationHandler.MyEvaluations)

		workouts := api.Group("/workouts", auth)
		{
			workouts.GET("", workoutHandler.List)
			workouts.POST("", adminOnly, workoutHandler.Create)
			workouts.GET("/:id", workoutHandler.Get)
			workouts.PUT("/:id", adminOnly, workoutHandler.Update)
			workouts.DELETE("/:id", adminOnly, workoutHandler.Delete)
		}

		evaluations := api.Group("/evaluations", auth)
		{
			evaluations.GET("", evaluationHandler.List)
			evaluations.POST("", adminOnly, evaluationHandler.Create)
			evaluations.GET("/:id", evaluationHandler.Get)
			evaluations.PUT("/:id", adminOnly, evaluationHandler.Update)
			evaluations.DELETE("/:id", adminOnly, evaluationHandler.Delete)
		}

		api.GET("/dashboard/admin", auth, adminOnly, dashboardHandler.Admin)
		api.GET("/dashboard/me", auth, dashboardHandler.Me)

		api.POST("/reports", auth, adminOnly, reportHandler.GenerateReport)
		api.GET("/reports/download/:token", reportHandler.DownloadReport)
		api.GET("/reports/:id", auth, reportHandler.ReportStatus)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
