package app

import (
	"assessment_backend/internal/config"
	"assessment_backend/internal/middleware"
	"assessment_backend/internal/model"
	"assessment_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	api := router.Group("/api")
	api.GET("/health", c.health.HealthCheck)

	// 学习者接口
	learner := api.Group("")
	learner.Use(middleware.AuthMiddleware(cfg))
	{
		learner.GET("/contents/:id", c.content.GetLearnerView)
		learner.POST("/contents/:id/attempts", c.attempt.StartAttempt)
		learner.GET("/contents/:id/attempts", c.attempt.ListAttempts)
		learner.GET("/contents/:id/eligibility", c.attempt.GetEligibility)

		learner.GET("/attempts/:id", c.attempt.GetAttempt)
		learner.GET("/attempts/:id/result", c.attempt.GetResult)
		learner.GET("/attempts/:id/timer", c.attempt.GetTimer)
		learner.PUT("/attempts/:id/responses", c.attempt.SaveResponses)
		learner.POST("/attempts/:id/submit", c.attempt.SubmitAttempt)
		learner.POST("/attempts/:id/files", c.attempt.UploadFile)
	}

	// 教师/管理员接口
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Teacher))
	{
		admin.POST("/contents", c.content.CreateContent)
		admin.GET("/contents", c.content.ListContents)
		admin.GET("/contents/:id", c.content.GetContent)
		admin.PUT("/contents/:id", c.content.UpdateContent)
		admin.GET("/contents/:id/attempts/pending-grading", c.grade.ListPendingGrading)
		admin.GET("/contents/:id/stats", c.grade.GetStats)
		admin.POST("/attempts/:id/grade", c.grade.GradeAttempt)
	}
}
