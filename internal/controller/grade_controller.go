package controller

import (
	"assessment_backend/internal/service"
	"assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GradeController struct {
	AttemptService *service.AttemptService
}

func NewGradeController(attemptService *service.AttemptService) *GradeController {
	return &GradeController{AttemptService: attemptService}
}

// @Summary 列出待人工评分的作业尝试
// @Tags 评分
// @Produce json
// @Security BearerAuth
// @Param id path string true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/admin/contents/{id}/attempts/pending-grading [get]
func (c *GradeController) ListPendingGrading(ctx *gin.Context) {
	attempts, err := c.AttemptService.ListPendingGrading(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

type gradeRequest struct {
	Grade    *float64 `json:"grade" binding:"required,min=0,max=100"`
	Feedback string   `json:"feedback" binding:"max=5000"`
}

// @Summary 教师对作业进行评分
// @Tags 评分
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Param body body gradeRequest true "grade 0-100, feedback"
// @Success 200 {object} util.Response
// @Router /api/admin/attempts/{id}/grade [post]
func (c *GradeController) GradeAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var req gradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.AttemptService.GradeSubmission(ctx.Request.Context(), ctx.Param("id"), user.UserID, *req.Grade, req.Feedback)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 内容的尝试统计
// @Tags 评分
// @Produce json
// @Security BearerAuth
// @Param id path string true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/admin/contents/{id}/stats [get]
func (c *GradeController) GetStats(ctx *gin.Context) {
	stats, err := c.AttemptService.GetAttemptStats(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}
