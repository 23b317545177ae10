package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/yishan1331/student-affairs-management/api/swagger"
	"github.com/yishan1331/student-affairs-management/internal/handler"
	"github.com/yishan1331/student-affairs-management/internal/middleware"
	"github.com/yishan1331/student-affairs-management/internal/models"
	"github.com/yishan1331/student-affairs-management/pkg/config"
	"github.com/yishan1331/student-affairs-management/pkg/logger"
	corsmiddleware "github.com/yishan1331/student-affairs-management/pkg/middleware/cors"
	reqidmiddleware "github.com/yishan1331/student-affairs-management/pkg/middleware/requestid"
)

type routeDeps struct {
	auth        *handler.AuthHandler
	sessions    *handler.CourseSessionHandler
	salaryBases *handler.SalaryBaseHandler
	metrics     *handler.MetricsHandler
	observer    middleware.RequestObserver
	tokens      middleware.TokenValidator
	auditor     middleware.AuditRecorder
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.observer))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	if !cfg.IsProduction() {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", deps.auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.tokens))
	secured.GET("/auth/me", deps.auth.Me)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(deps.auditor, logr, action, resource)
	}

	secured.GET("/system/metrics", admin, deps.metrics.Snapshot)

	tiers := secured.Group("/salary-bases")
	tiers.GET("", staff, deps.salaryBases.List)
	tiers.GET("/:id", staff, deps.salaryBases.Get)
	tiers.POST("", admin, audit(models.AuditActionSalaryBaseCreate, "salary_bases"), deps.salaryBases.Create)
	tiers.PUT("/:id", admin, audit(models.AuditActionSalaryBaseUpdate, "salary_bases"), deps.salaryBases.Update)
	tiers.DELETE("/:id", admin, audit(models.AuditActionSalaryBaseDelete, "salary_bases"), deps.salaryBases.Delete)

	sessions := secured.Group("/course-sessions")
	sessions.Use(middleware.WithResponseMeta())
	sessions.GET("", staff, deps.sessions.List)
	sessions.POST("/batch", admin, audit(models.AuditActionSessionBatch, "course_sessions"), deps.sessions.BatchGenerate)
	sessions.POST("/recalculate", admin, audit(models.AuditActionSalaryRecalculate, "course_sessions"), deps.sessions.Recalculate)
	sessions.GET("/recalculate/:job_id", admin, deps.sessions.RecalculationStatus)
	sessions.GET("/salary-summary", staff, deps.sessions.SalarySummary)
	sessions.GET("/salary-summary/export", admin, deps.sessions.ExportSalarySummary)
	sessions.GET("/:id", staff, deps.sessions.Get)
	sessions.POST("", admin, audit(models.AuditActionSessionCreate, "course_sessions"), deps.sessions.Create)
	sessions.PUT("/:id", staff, audit(models.AuditActionSessionUpdate, "course_sessions"), deps.sessions.Update)
	sessions.DELETE("/:id", admin, audit(models.AuditActionSessionDelete, "course_sessions"), deps.sessions.Delete)

	return r
}
