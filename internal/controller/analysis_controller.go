package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/musama5293/NPI-Portal-sub001/internal/service"
	"github.com/musama5293/NPI-Portal-sub001/internal/util"
)

type AnalysisController struct {
	Service *service.AnalysisService
}

func NewAnalysisController(svc *service.AnalysisService) *AnalysisController {
	return &AnalysisController{Service: svc}
}

// @Summary 生成心理测评分析报告
// @Description 调用外部分析服务，同一测评同时只允许一个请求在途
// @Tags 分析
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response{data=service.AnalysisView}
// @Failure 409 {object} util.Response "分析进行中"
// @Failure 502 {object} util.Response{data=util.RemoteError} "分析服务返回错误"
// @Failure 503 {object} util.Response "分析服务不可达"
// @Failure 504 {object} util.Response "分析服务超时"
// @Router /api/assignments/{id}/analysis [post]
func (c *AnalysisController) Generate(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	view, err := c.Service.Generate(ctx.Request.Context(), id, util.GetUserFromContext(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, view)
}

// @Summary 获取已保存的分析报告
// @Tags 分析
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response{data=service.AnalysisView}
// @Failure 404 {object} util.Response
// @Router /api/assignments/{id}/analysis [get]
func (c *AnalysisController) Get(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	view, err := c.Service.Get(id, util.GetUserFromContext(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, view)
}
