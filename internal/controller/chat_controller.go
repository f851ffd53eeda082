package controller

import (
	"ai_interviewer_backend/internal/model"
	"ai_interviewer_backend/internal/service"
	"ai_interviewer_backend/internal/util"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ChatController 候选人侧接口，凭一次性令牌访问，不走JWT认证
type ChatController struct {
	SessionService *service.SessionService
}

func NewChatController(sessionService *service.SessionService) *ChatController {
	return &ChatController{SessionService: sessionService}
}

// StartSession godoc
// @Summary 候选人开始面试
// @Description 校验面试链接令牌，返回开场白与第一道题
// @Tags 候选人会话
// @Produce  json
// @Param   token path string true "面试链接令牌"
// @Success 200 {object} util.Response{data=service.StartSessionResult} "成功"
// @Failure 404 {object} util.Response "链接无效"
// @Failure 410 {object} util.Response "链接已过期"
// @Failure 409 {object} util.Response "面试已开始或已结束"
// @Router /api/chat/start/{token} [post]
func (c *ChatController) StartSession(ctx *gin.Context) {
	token := ctx.Param("token")

	result, err := c.SessionService.StartSession(ctx.Request.Context(), token)
	if err != nil {
		var transitionErr *model.InvalidTransitionError
		switch {
		case errors.Is(err, util.ErrInvalidToken):
			util.Error(ctx, http.StatusNotFound, "This interview link is not valid.")
		case errors.Is(err, util.ErrTokenExpired):
			util.Error(ctx, http.StatusGone, "This interview link is no longer valid.")
		case errors.As(err, &transitionErr):
			util.Conflict(ctx, "This interview has already been started or completed.")
		case errors.Is(err, util.ErrTurnInProgress):
			util.Error(ctx, http.StatusTooManyRequests, "Please wait, your interview is being prepared.")
		default:
			util.Error(ctx, http.StatusServiceUnavailable, "We could not start your interview right now, please try again.")
		}
		return
	}
	util.Success(ctx, result)
}

type SubmitMessageRequest struct {
	Content   string           `json:"content" binding:"required"`
	Telemetry *model.Telemetry `json:"telemetry"`
}

// SubmitMessage godoc
// @Summary 候选人提交消息
// @Description 提交当前题目的回答，返回下一题或结束语
// @Tags 候选人会话
// @Accept  json
// @Produce  json
// @Param   id path int true "面试ID"
// @Param   body body SubmitMessageRequest true "消息内容与提交元数据"
// @Success 200 {object} util.Response{data=service.SubmitResult} "成功"
// @Failure 409 {object} util.Response "会话不在进行中"
// @Failure 429 {object} util.Response "上一条消息仍在处理"
// @Failure 503 {object} util.Response "评估暂不可用，请重新提交"
// @Router /api/chat/{id}/message [post]
func (c *ChatController) SubmitMessage(ctx *gin.Context) {
	id, ok := interviewID(ctx)
	if !ok {
		return
	}

	var req SubmitMessageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.SessionService.SubmitAnswer(ctx.Request.Context(), id, req.Content, req.Telemetry)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrInterviewNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrTurnInProgress):
			util.Error(ctx, http.StatusTooManyRequests, "Please wait, your previous message is still being processed.")
		case errors.Is(err, util.ErrSessionNotActive), errors.Is(err, util.ErrNoCurrentQuestion):
			util.Conflict(ctx, "This interview session is not accepting answers right now.")
		default:
			util.Error(ctx, http.StatusServiceUnavailable, "We could not process your answer, please resubmit it.")
		}
		return
	}
	util.Success(ctx, result)
}

// ChatMessageView 候选人可见的消息视图，不含评估字段
type ChatMessageView struct {
	Seq            int               `json:"seq"`
	Role           model.MessageRole `json:"role"`
	Content        string            `json:"content"`
	QuestionNumber int               `json:"questionNumber,omitempty"`
}

// Messages godoc
// @Summary 候选人查看对话记录
// @Description 返回会话消息，不含评分等内部字段
// @Tags 候选人会话
// @Produce  json
// @Param   id path int true "面试ID"
// @Success 200 {object} util.Response{data=[]ChatMessageView} "成功"
// @Router /api/chat/{id}/messages [get]
func (c *ChatController) Messages(ctx *gin.Context) {
	id, ok := interviewID(ctx)
	if !ok {
		return
	}

	msgs, err := c.SessionService.GetTranscript(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, util.ErrInterviewNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	views := make([]ChatMessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, ChatMessageView{
			Seq:            m.Seq,
			Role:           m.Role,
			Content:        m.Content,
			QuestionNumber: m.QuestionNumber,
		})
	}
	util.Success(ctx, views)
}
