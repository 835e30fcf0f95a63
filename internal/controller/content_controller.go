package controller

import (
	"assessment_backend/internal/grading"
	"assessment_backend/internal/service"
	"assessment_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type ContentController struct {
	ContentService *service.ContentService
}

func NewContentController(contentService *service.ContentService) *ContentController {
	return &ContentController{ContentService: contentService}
}

// @Summary 创建测验/作业/互动内容
// @Tags 内容管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.ContentInput true "内容定义"
// @Success 201 {object} util.Response
// @Router /api/admin/contents [post]
func (c *ContentController) CreateContent(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var req service.ContentInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	content, err := c.ContentService.CreateContent(ctx.Request.Context(), &req, user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, content)
}

// @Summary 更新内容
// @Description 已开始的尝试仍按开始时的内容评分
// @Tags 内容管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "内容ID"
// @Param body body service.ContentInput true "内容定义"
// @Success 200 {object} util.Response
// @Router /api/admin/contents/{id} [put]
func (c *ContentController) UpdateContent(ctx *gin.Context) {
	var req service.ContentInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	content, err := c.ContentService.UpdateContent(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, content)
}

// @Summary 获取内容（含答案）
// @Tags 内容管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/admin/contents/{id} [get]
func (c *ContentController) GetContent(ctx *gin.Context) {
	content, err := c.ContentService.GetContent(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, content)
}

// @Summary 内容列表
// @Tags 内容管理
// @Produce json
// @Security BearerAuth
// @Param kind query string false "QUIZ / ASSIGNMENT / INTERACTIVE"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response
// @Router /api/admin/contents [get]
func (c *ContentController) ListContents(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	kind := grading.ContentKind(ctx.Query("kind"))
	if kind != "" && !kind.Valid() {
		util.BadRequest(ctx, "invalid kind")
		return
	}

	contents, total, err := c.ContentService.ListContents(ctx.Request.Context(), kind, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"items": contents,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// @Summary 学习者视图（不含答案）
// @Tags 内容
// @Produce json
// @Security BearerAuth
// @Param id path string true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/contents/{id} [get]
func (c *ContentController) GetLearnerView(ctx *gin.Context) {
	content, err := c.ContentService.LearnerView(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, content)
}
