package controller

import (
	"ai_interviewer_backend/internal/model"
	"ai_interviewer_backend/internal/service"
	"ai_interviewer_backend/internal/util"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type InterviewController struct {
	InterviewService *service.InterviewService
	SessionService   *service.SessionService
	CostService      *service.CostService
}

func NewInterviewController(interviewService *service.InterviewService, sessionService *service.SessionService, costService *service.CostService) *InterviewController {
	return &InterviewController{
		InterviewService: interviewService,
		SessionService:   sessionService,
		CostService:      costService,
	}
}

func interviewID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid interview id")
		return 0, false
	}
	return uint(id), true
}

// writeInterviewError 统一的管理侧错误映射
func writeInterviewError(ctx *gin.Context, err error) {
	var transitionErr *model.InvalidTransitionError
	switch {
	case errors.Is(err, util.ErrInterviewNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrDocumentsMissing):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrNoFocusAreas):
		util.Error(ctx, http.StatusBadGateway, err.Error())
	case errors.As(err, &transitionErr):
		util.Conflict(ctx, transitionErr.Error())
	case errors.Is(err, util.ErrTurnInProgress):
		util.Error(ctx, http.StatusTooManyRequests, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// Create godoc
// @Summary 创建面试
// @Description 创建DRAFT状态的面试，可指定题目数与起始难度
// @Tags 面试管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreateInterviewInput true "面试配置"
// @Success 201 {object} util.Response{data=model.Interview} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/interviews [post]
func (c *InterviewController) Create(ctx *gin.Context) {
	var input service.CreateInterviewInput
	if err := ctx.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		util.BadRequest(ctx, err.Error())
		return
	}

	interview, err := c.InterviewService.Create(input)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, interview)
}

// List godoc
// @Summary 面试列表
// @Tags 面试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/interviews [get]
func (c *InterviewController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	interviews, total, err := c.InterviewService.List(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  interviews,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// Get godoc
// @Summary 面试详情
// @Tags 面试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "面试ID"
// @Success 200 {object} util.Response{data=model.Interview} "成功"
// @Failure 404 {object} util.Response "不存在"
// @Router /api/interviews/{id} [get]
func (c *InterviewController) Get(ctx *gin.Context) {
	id, ok := interviewID(ctx)
	if !ok {
		return
	}

	interview, err := c.InterviewService.Get(id)
	if err != nil {
		writeInterviewError(ctx, err)
		return
	}
	util.Success(ctx, interview)
}

// Delete godoc
// @Summary 删除面试
// @Description 删除面试及其全部消息记录
// @Tags 面试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "面试ID"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "不存在"
// @Router /api/interviews/{id} [delete]
func (c *InterviewController) Delete(ctx *gin.Context) {
	id, ok := interviewID(ctx)
	if !ok {
		return
	}

	if err := c.InterviewService.Delete(id); err != nil {
		writeInterviewError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadDocument godoc
// @Summary 上传候选人材料
// @Description 上传简历/岗位描述/职位公告，仅DRAFT状态可上传
// @Tags 面试管理
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "面试ID"
// @Param   type formData string true "材料类型: resume | role | job_offering"
// @Param   file formData file true "txt/md/pdf文件"
// @Success 200 {object} util.Response{data=model.Interview} "成功"
// @Failure 400 {object} util.Response "格式不支持"
// @Failure 409 {object} util.Response "状态不允许上传"
// @Router /api/interviews/{id}/documents [post]
func (c *InterviewController) UploadDocument(ctx *gin.Context) {
	id, ok := interviewID(ctx)
	if !ok {
		return
	}

	docType := ctx.PostForm("type")
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	defer file.Close()

	interview, err := c.InterviewService.UploadDocument(ctx.Request.Context(), id, docType, file, header)
	if err != nil {
		var transitionErr *model.InvalidTransitionError
		if errors.As(err, &transitionErr) {
			util.Conflict(ctx, transitionErr.Error())
		} else if errors.Is(err, util.ErrInterviewNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, interview)
}

// AnalyzeMatch godoc
// @Summary 执行匹配分析
// @Description 分析简历与岗位匹配度并流转 DRAFT -> READY
// @Tags 面试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "面试ID"
// @Success 200 {object} util.Response{data=model.MatchAnalysis} "成功"
// @Failure 400 {object} util.Response "材料缺失"
// @Failure 409 {object} util.Response "状态不允许分析"
// @Router /api/interviews/{id}/analyze [post]
func (c *InterviewController) AnalyzeMatch(ctx *gin.Context) {
	id, ok := interviewID(ctx)
	if !ok {
		return
	}

	analysis, err := c.InterviewService.AnalyzeMatch(ctx.Request.Context(), id)
	if err != nil {
		writeInterviewError(ctx, err)
		return
	}
	util.Success(ctx, analysis)
}

// Assign godoc
// @Summary 指派候选人
// @Description 生成候选人访问令牌并流转 READY -> ASSIGNED
// @Tags 面试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "面试ID"
// @Success 200 {object} util.Response{data=service.AssignResult} "成功"
// @Failure 409 {object} util.Response "状态不允许指派"
// @Router /api/interviews/{id}/assign [post]
func (c *InterviewController) Assign(ctx *gin.Context) {
	id, ok := interviewID(ctx)
	if !ok {
		return
	}

	result, err := c.InterviewService.Assign(id)
	if err != nil {
		writeInterviewError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Complete godoc
// @Summary 主动完结面试
// @Description 编译最终报告并流转 IN_PROGRESS -> COMPLETED，幂等
// @Tags 面试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "面试ID"
// @Success 200 {object} util.Response{data=model.FinalReport} "成功"
// @Failure 409 {object} util.Response "状态不允许完结"
// @Failure 503 {object} util.Response "报告生成暂不可用"
// @Router /api/interviews/{id}/complete [post]
func (c *InterviewController) Complete(ctx *gin.Context) {
	id, ok := interviewID(ctx)
	if !ok {
		return
	}

	report, err := c.SessionService.CompleteSession(ctx.Request.Context(), id)
	if err != nil {
		var transitionErr *model.InvalidTransitionError
		switch {
		case errors.Is(err, util.ErrInterviewNotFound):
			util.NotFound(ctx)
		case errors.As(err, &transitionErr):
			util.Conflict(ctx, transitionErr.Error())
		default:
			util.Error(ctx, http.StatusServiceUnavailable, "report generation temporarily unavailable")
		}
		return
	}
	util.Success(ctx, report)
}

// Report godoc
// @Summary 获取最终报告
// @Tags 面试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "面试ID"
// @Success 200 {object} util.Response{data=model.FinalReport} "成功"
// @Failure 409 {object} util.Response "面试尚未完成"
// @Router /api/interviews/{id}/report [get]
func (c *InterviewController) Report(ctx *gin.Context) {
	id, ok := interviewID(ctx)
	if !ok {
		return
	}

	report, err := c.InterviewService.Report(id)
	if err != nil {
		writeInterviewError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// Transcript godoc
// @Summary 获取完整对话记录
// @Tags 面试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "面试ID"
// @Success 200 {object} util.Response{data=[]model.Message} "成功"
// @Router /api/interviews/{id}/transcript [get]
func (c *InterviewController) Transcript(ctx *gin.Context) {
	id, ok := interviewID(ctx)
	if !ok {
		return
	}

	msgs, err := c.SessionService.GetTranscript(ctx.Request.Context(), id)
	if err != nil {
		writeInterviewError(ctx, err)
		return
	}
	util.Success(ctx, msgs)
}

// Costs godoc
// @Summary 单场面试的模型调用成本
// @Tags 成本统计
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "面试ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/interviews/{id}/costs [get]
func (c *InterviewController) Costs(ctx *gin.Context) {
	id, ok := interviewID(ctx)
	if !ok {
		return
	}

	usages, totals, err := c.CostService.InterviewCosts(id)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": usages, "totals": totals})
}

// GlobalCosts godoc
// @Summary 全局模型调用成本合计
// @Tags 成本统计
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=repository.UsageTotals} "成功"
// @Router /api/costs [get]
func (c *InterviewController) GlobalCosts(ctx *gin.Context) {
	totals, err := c.CostService.GlobalCosts(ctx.Request.Context())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, totals)
}
