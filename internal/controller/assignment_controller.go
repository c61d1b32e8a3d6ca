package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/musama5293/NPI-Portal-sub001/internal/repository"
	"github.com/musama5293/NPI-Portal-sub001/internal/service"
	"github.com/musama5293/NPI-Portal-sub001/internal/util"
)

type AssignmentController struct {
	Service       *service.AssignmentService
	LinkedService *service.LinkedService
}

func NewAssignmentController(svc *service.AssignmentService, linked *service.LinkedService) *AssignmentController {
	return &AssignmentController{Service: svc, LinkedService: linked}
}

// parseID 读取路径中的测评 id，非法时直接返回 400
func parseID(ctx *gin.Context) (uint, bool) {
	id, err := util.ParseUint(ctx.Param("id"))
	if err != nil || id == 0 {
		util.BadRequest(ctx, "invalid assignment id")
		return 0, false
	}
	return id, true
}

// @Summary 创建测评
// @Tags 测评
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateAssignmentRequest true "测评信息"
// @Success 201 {object} util.Response{data=model.Assignment}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response "测试或候选人不存在"
// @Failure 409 {object} util.Response "id 已被使用"
// @Router /api/assignments [post]
func (c *AssignmentController) Create(ctx *gin.Context) {
	var req model.CreateAssignmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	a, err := c.Service.Create(&req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, a)
}

// @Summary 批量创建测评
// @Description 每一项独立处理，单项失败不影响其他项；可同时为主管生成反馈表
// @Tags 测评
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.BatchAssignmentRequest true "批量测评"
// @Success 200 {object} util.Response{data=model.BatchResult}
// @Failure 400 {object} util.Response
// @Router /api/assignments/batch [post]
func (c *AssignmentController) CreateBatch(ctx *gin.Context) {
	var req model.BatchAssignmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.CreateBatch(req.Items)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 测评列表
// @Tags 测评
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Param status query string false "状态" Enums(pending, started, completed, expired)
// @Param testId query int false "测试ID"
// @Param candidateId query int false "候选人ID"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/assignments [get]
func (c *AssignmentController) List(ctx *gin.Context) {
	page, limit := util.ParsePage(ctx.Query("page"), ctx.Query("limit"))

	candidateID, err := util.ParseOptionalUint(ctx.Query("candidateId"))
	if err != nil {
		util.BadRequest(ctx, "invalid candidateId")
		return
	}
	testID, err := util.ParseOptionalUint(ctx.Query("testId"))
	if err != nil {
		util.BadRequest(ctx, "invalid testId")
		return
	}

	filter := repository.AssignmentFilter{
		CandidateID: candidateID,
		TestID:      testID,
		Status:      model.AssignmentStatus(ctx.Query("status")),
	}

	result, err := c.Service.List(filter, page, limit, util.GetUserFromContext(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 测评详情
// @Tags 测评
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response{data=model.AssignmentView}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/assignments/{id} [get]
func (c *AssignmentController) Get(ctx *gin.Context) {
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

// @Summary 删除未开始的测评
// @Tags 测评
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "测评已开始"
// @Failure 404 {object} util.Response
// @Router /api/assignments/{id} [delete]
func (c *AssignmentController) Delete(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	if err := c.Service.Delete(id); err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"id": id})
}

// @Summary 开始测评
// @Tags 作答
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response{data=model.Assignment}
// @Failure 400 {object} util.Response "不在作答时间窗口内"
// @Router /api/assignments/{id}/start [post]
func (c *AssignmentController) Start(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	a, err := c.Service.Start(id, util.GetUserFromContext(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, a)
}

// @Summary 获取题目与已保存答案
// @Description 非管理员看不到选项分值与正确答案
// @Tags 作答
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response{data=model.QuestionSheet}
// @Router /api/assignments/{id}/questions [get]
func (c *AssignmentController) GetQuestions(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	sheet, err := c.Service.GetQuestions(id, util.GetUserFromContext(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, sheet)
}

// @Summary 提交单题答案
// @Tags 作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Param body body model.SubmitAnswerRequest true "答案"
// @Success 200 {object} util.Response{data=model.AssignmentAnswer}
// @Router /api/assignments/{id}/answers [post]
func (c *AssignmentController) SubmitAnswer(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	answer, err := c.Service.SubmitAnswer(id, util.GetUserFromContext(ctx), &req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, answer)
}

// @Summary 记录作答行为事件
// @Tags 作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Param body body model.ActivityRequest true "行为事件"
// @Success 201 {object} util.Response{data=model.ActivityEvent}
// @Router /api/assignments/{id}/activity [post]
func (c *AssignmentController) LogActivity(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	var req model.ActivityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	event, err := c.Service.LogActivity(id, util.GetUserFromContext(ctx), &req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, event)
}

// @Summary 保存作答进度
// @Tags 作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Param body body model.ProgressRequest true "进度"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id}/progress [put]
func (c *AssignmentController) SaveProgress(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	var req model.ProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.SaveProgress(id, util.GetUserFromContext(ctx), &req); err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

// @Summary 管理员直接给出总分并完成测评
// @Tags 评分
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Param body body model.CompleteRequest true "总分"
// @Success 200 {object} util.Response{data=model.Assignment}
// @Router /api/assignments/{id}/complete [post]
func (c *AssignmentController) Complete(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	var req model.CompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	a, err := c.Service.CompleteSimple(id, req.Score)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, a)
}

// @Summary 交卷并汇总领域分数
// @Description 已完成的测评再次提交时直接返回已保存的分数
// @Tags 评分
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response{data=model.CompletionResult}
// @Router /api/assignments/{id}/submit [post]
func (c *AssignmentController) Submit(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	result, err := c.Service.CompleteWithAggregation(id, util.GetUserFromContext(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 按当前题目定义重新计算分数
// @Tags 评分
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response{data=model.CompletionResult}
// @Router /api/assignments/{id}/regenerate [post]
func (c *AssignmentController) Regenerate(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	result, err := c.Service.RegenerateScores(id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 分数明细与作答行为分析
// @Tags 评分
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response{data=service.DetailedScores}
// @Router /api/assignments/{id}/scores [get]
func (c *AssignmentController) GetScores(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	scores, err := c.Service.GetDetailedScores(id, util.GetUserFromContext(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, scores)
}

// @Summary 关联的反馈表或候选人测评
// @Tags 反馈表
// @Produce json
// @Security BearerAuth
// @Param id path int true "测评ID"
// @Success 200 {object} util.Response{data=model.LinkedAssignments}
// @Router /api/assignments/{id}/linked [get]
func (c *AssignmentController) GetLinked(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	linked, err := c.LinkedService.GetLinked(id, util.GetUserFromContext(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, linked)
}

// @Summary 主管的反馈表列表
// @Tags 反馈表
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.AssignmentView}
// @Router /api/supervisor/assignments [get]
func (c *AssignmentController) SupervisorAssignments(ctx *gin.Context) {
	list, err := c.Service.ListSupervisorAssignments(util.GetUserFromContext(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, list)
}

// @Summary 修复反馈表与候选人测评之间的双向关联
// @Tags 反馈表
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.ReconcileResult}
// @Router /api/admin/assignments/reconcile-links [post]
func (c *AssignmentController) ReconcileLinks(ctx *gin.Context) {
	result, err := c.LinkedService.ReconcileLinks()
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}
