package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/projecthub-api/internal/middleware"
	"github.com/noah-isme/projecthub-api/pkg/config"
	"github.com/noah-isme/projecthub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/projecthub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/projecthub-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, a *app) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", a.metricsH.Health)
	r.GET("/ready", a.metricsH.Ready)
	r.GET("/metrics", a.metricsH.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", a.authH.Login)
	api.GET("/files/download/:id", a.files.SignedDownload)

	streams := api.Group("")
	streams.Use(middleware.StreamJWT(a.auth))
	streams.GET("/uploads/progress/ws", a.progress.Uploads)
	streams.GET("/files/:id/progress/ws", a.progress.File)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.auth))
	staff := middleware.RequireStaff()

	secured.GET("/auth/me", a.authH.Me)

	projects := secured.Group("/projects")
	projects.GET("", a.projects.List)
	projects.POST("", staff, a.projects.Create)
	projects.GET("/:id", a.projects.Get)
	projects.PUT("/:id", staff, a.projects.Update)
	projects.DELETE("/:id", staff, a.projects.Delete)
	projects.GET("/:id/milestones", a.milestones.List)
	projects.POST("/:id/milestones", staff, a.milestones.Create)
	projects.PUT("/:id/milestones/order", staff, a.milestones.Reorder)
	projects.GET("/:id/timeline", a.milestones.Timeline)
	projects.GET("/:id/timeline/export", a.milestones.ExportTimeline)

	milestones := secured.Group("/milestones")
	milestones.GET("/:id", a.milestones.Get)
	milestones.PUT("/:id", staff, a.milestones.Update)
	milestones.PATCH("/:id/status", a.milestones.UpdateStatus)
	milestones.DELETE("/:id", staff, a.milestones.Delete)

	files := secured.Group("/files")
	files.POST("", a.files.Upload)
	files.POST("/validate", a.files.Validate)
	files.GET("", a.files.List)
	files.GET("/:id", a.files.Get)
	files.GET("/:id/content", a.files.Content)
	files.GET("/:id/download-url", a.files.DownloadLink)
	files.DELETE("/:id", a.files.Delete)

	secured.GET("/system/metrics", staff, a.metricsH.Snapshot)

	return r
}
