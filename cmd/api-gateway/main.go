package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yishan1331/student-affairs-management/internal/handler"
	"github.com/yishan1331/student-affairs-management/internal/repository"
	"github.com/yishan1331/student-affairs-management/internal/service"
	"github.com/yishan1331/student-affairs-management/pkg/cache"
	"github.com/yishan1331/student-affairs-management/pkg/config"
	"github.com/yishan1331/student-affairs-management/pkg/database"
	"github.com/yishan1331/student-affairs-management/pkg/export"
	"github.com/yishan1331/student-affairs-management/pkg/jobs"
	"github.com/yishan1331/student-affairs-management/pkg/logger"
)

// @title Student Affairs Management API
// @version 1.0.0
// @description Course session scheduling and teacher salary computation
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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Salary.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, salary summary cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	app := buildApp(ctx, cfg, db, redisClient, logr)
	defer app.queue.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type application struct {
	router *gin.Engine
	queue  *jobs.Queue
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) *application {
	validate := validator.New()
	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Salary.SummaryCacheTTL, logr, redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sessionRepo := repository.NewCourseSessionRepository(db, metrics)
	tierRepo := repository.NewSalaryBaseRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	calculator := service.NewSalaryCalculator(courseRepo, tierRepo, metrics)
	sessionSvc := service.NewCourseSessionService(sessionRepo, courseRepo, calculator, cacheSvc, metrics,
		service.CourseSessionConfig{BatchMaxDays: cfg.Salary.BatchMaxDays}, validate, logr)
	summarySvc := service.NewSalarySummaryService(sessionRepo, cacheSvc, cfg.Salary.SummaryCacheTTL, validate, logr,
		export.NewCSVExporter(), export.NewPDFExporter())
	tierSvc := service.NewSalaryBaseService(tierRepo, sessionRepo, cacheSvc, validate, logr)

	worker := service.NewRecalculationWorker(sessionSvc, logr)
	queue := jobs.NewQueue("salary-recalculation", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Salary.WorkerConcurrency,
		MaxRetries: queueRetries(cfg.Salary.WorkerRetries),
		Logger:     logr,
	})
	queue.Start(ctx)
	scheduler := service.NewRecalculationScheduler(queue, logr)

	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	router := newRouter(cfg, logr, routeDeps{
		auth:        handler.NewAuthHandler(authSvc),
		sessions:    handler.NewCourseSessionHandler(sessionSvc, summarySvc, scheduler),
		salaryBases: handler.NewSalaryBaseHandler(tierSvc),
		metrics:     handler.NewMetricsHandler(metrics, checks),
		observer:    metrics,
		tokens:      authSvc,
		auditor:     userRepo,
	})

	return &application{router: router, queue: queue}
}

// queueRetries maps RECALC_WORKER_RETRIES onto the queue, where 0 would mean the
// queue default; an explicit 0 disables retries.
func queueRetries(configured int) int {
	if configured == 0 {
		return -1
	}
	return configured
}
