package controller

import (
	"assessment_backend/internal/service"
	"assessment_backend/internal/util"
	"encoding/json"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
	ContentService *service.ContentService
}

func NewAttemptController(attemptService *service.AttemptService, contentService *service.ContentService) *AttemptController {
	return &AttemptController{AttemptService: attemptService, ContentService: contentService}
}

// @Summary 开始一次新的尝试
// @Tags 尝试
// @Produce json
// @Security BearerAuth
// @Param id path string true "内容ID"
// @Success 201 {object} util.Response
// @Router /api/contents/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attempt, err := c.AttemptService.StartAttempt(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	content, err := c.ContentService.LearnerView(ctx.Request.Context(), attempt.ContentID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{
		"attempt": attempt,
		"content": content,
	})
}

// @Summary 获取当前用户在内容上的全部尝试
// @Tags 尝试
// @Produce json
// @Security BearerAuth
// @Param id path string true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/contents/{id}/attempts [get]
func (c *AttemptController) ListAttempts(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attempts, err := c.AttemptService.GetAttempts(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// @Summary 查询是否还能开始新的尝试
// @Tags 尝试
// @Produce json
// @Security BearerAuth
// @Param id path string true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/contents/{id}/eligibility [get]
func (c *AttemptController) GetEligibility(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	el, err := c.AttemptService.GetEligibility(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, el)
}

// @Summary 获取尝试详情
// @Tags 尝试
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attempt, err := c.AttemptService.GetAttempt(ctx.Request.Context(), ctx.Param("id"), user.UserID, user.IsStaff())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 获取尝试结果
// @Tags 尝试
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/result [get]
func (c *AttemptController) GetResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	res, err := c.AttemptService.GetResult(ctx.Request.Context(), ctx.Param("id"), user.UserID, user.IsStaff())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 获取剩余时间（仅供显示）
// @Tags 尝试
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/timer [get]
func (c *AttemptController) GetTimer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	timer, err := c.AttemptService.GetTimer(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, timer)
}

type saveResponsesRequest struct {
	Responses map[string]json.RawMessage `json:"responses" binding:"required"`
}

// @Summary 暂存作答
// @Tags 尝试
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Param body body saveResponsesRequest true "itemId -> response, null 清除"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/responses [put]
func (c *AttemptController) SaveResponses(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var req saveResponsesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	attempt, err := c.AttemptService.SaveResponses(ctx.Request.Context(), ctx.Param("id"), user.UserID, req.Responses)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"attemptId": attempt.ID,
		"responses": attempt.Responses,
	})
}

type submitRequest struct {
	Responses        map[string]json.RawMessage `json:"responses"`
	TimeSpentSeconds *int                       `json:"timeSpentSeconds" binding:"omitempty,min=0"`
	Text             string                     `json:"text" binding:"max=100000"`
}

// @Summary 提交尝试
// @Description 重复提交返回已保存的结果
// @Tags 尝试
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Param body body submitRequest true "作答、用时、作业文本"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	res, err := c.AttemptService.SubmitAttempt(ctx.Request.Context(), service.SubmitInput{
		AttemptID:        ctx.Param("id"),
		UserID:           user.UserID,
		Responses:        req.Responses,
		TimeSpentSeconds: req.TimeSpentSeconds,
		Text:             req.Text,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 上传作业附件
// @Tags 尝试
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "尝试ID"
// @Param file formData file true "作业文件"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/files [post]
func (c *AttemptController) UploadFile(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		util.BadRequest(ctx, "unreadable file")
		return
	}
	defer f.Close()

	sub, err := c.AttemptService.AttachSubmissionFile(ctx.Request.Context(), ctx.Param("id"), user.UserID,
		fh.Filename, fh.Size, f, fh.Header.Get("Content-Type"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}
