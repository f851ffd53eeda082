package service

import (
	"ai_interviewer_backend/internal/model"
	"ai_interviewer_backend/internal/util"
	"ai_interviewer_backend/pkg/logger"
	"context"
	"fmt"

	"go.uber.org/zap"
)

// AnswerEvaluator 回答评分的外部依赖抽象。
// 底层为LLM，结果不确定，契约只约束分数范围与结构。
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, interviewID uint, question, answer, rubric string) (*model.AnswerEvaluation, error)
}

type EvaluationService struct {
	ai *AIService
}

func NewEvaluationService(ai *AIService) *EvaluationService {
	return &EvaluationService{ai: ai}
}

const evaluationSystemPrompt = "You are an expert technical interviewer. You grade candidate answers fairly and consistently."

// Evaluate 评估单题回答。重试耗尽后返回ErrEvaluationUnavailable，
// 调用方不得在拿到分数前写入任何会话状态。
func (s *EvaluationService) Evaluate(ctx context.Context, interviewID uint, question, answer, rubric string) (*model.AnswerEvaluation, error) {
	prompt := fmt.Sprintf(`Evaluate the candidate's answer to an interview question.

Question:
%s

Candidate's answer:
%s

Grading rubric:
%s

Respond with a JSON object:
{"score": <integer 1-10>, "rationale": "<why this score>", "evidence": "<short quote from the answer>", "followup_hint": "<optional idea for the next question>"}`,
		question, answer, rubric)

	var eval model.AnswerEvaluation
	if err := s.ai.ChatJSON(ctx, "answer_evaluation", evaluationSystemPrompt, prompt, interviewID, &eval); err != nil {
		logger.Log.Error("answer evaluation unavailable",
			zap.Uint("interviewID", interviewID),
			zap.Error(err))
		return nil, util.ErrEvaluationUnavailable
	}

	if eval.Score < 1 || eval.Score > 10 {
		logger.Log.Error("answer evaluation out of range",
			zap.Uint("interviewID", interviewID),
			zap.Int("score", eval.Score))
		return nil, util.ErrEvaluationUnavailable
	}

	return &eval, nil
}

// MessageClassifier 候选人消息分类：回答、追问澄清还是跑题
type MessageClassifier interface {
	Classify(ctx context.Context, interviewID uint, question, message string) (*model.MessageClassification, error)
}

type ClassificationService struct {
	ai *AIService
}

func NewClassificationService(ai *AIService) *ClassificationService {
	return &ClassificationService{ai: ai}
}

// Classify 分类失败时按Answer处理，评分链路自身有重试兜底
func (s *ClassificationService) Classify(ctx context.Context, interviewID uint, question, message string) (*model.MessageClassification, error) {
	prompt := fmt.Sprintf(`Classify the candidate's message in relation to the current interview question.

Current question:
%s

Candidate's message:
%s

Types:
- "Answer": an attempt to answer the question
- "Clarification": asking to clarify or rephrase the question
- "OffTopic": unrelated to the question

Respond with a JSON object: {"type": "<Answer|Clarification|OffTopic>", "confidence": <0-1>}`,
		question, message)

	var cls model.MessageClassification
	if err := s.ai.ChatJSON(ctx, "message_classification", evaluationSystemPrompt, prompt, interviewID, &cls); err != nil {
		return nil, err
	}

	switch cls.Type {
	case model.ClassificationAnswer, model.ClassificationClarification, model.ClassificationOffTopic:
	default:
		cls.Type = model.ClassificationAnswer
	}
	return &cls, nil
}
