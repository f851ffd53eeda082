package util

import "errors"

var (
	ErrInterviewNotFound = errors.New("interview not found")
	ErrEmailRegistered   = errors.New("该邮箱已被注册")

	// 候选人链接校验
	ErrInvalidToken = errors.New("invalid interview token")
	ErrTokenExpired = errors.New("interview link has expired")

	// 外部评估依赖在重试耗尽后仍不可用，调用方可安全重试整个提交
	ErrEvaluationUnavailable = errors.New("evaluation temporarily unavailable")

	// 同一会话存在未提交完成的回合
	ErrTurnInProgress = errors.New("a turn is already in progress for this session")

	ErrSessionNotActive  = errors.New("interview session is not in progress")
	ErrNoCurrentQuestion = errors.New("no outstanding question for this session")
	ErrDocumentsMissing  = errors.New("resume and role documents must be uploaded first")
	ErrNoFocusAreas      = errors.New("match analysis produced no focus areas")
)
