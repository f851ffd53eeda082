package service

import (
	"ai_interviewer_backend/internal/model"
	"context"
	"fmt"
	"strings"
)

// IntegrityJudge 可疑提交的诚信评估，尽力而为，失败不阻塞面试
type IntegrityJudge interface {
	Assess(ctx context.Context, interviewID uint, question, answer string, telemetry model.Telemetry, previousAnswers []string) (*model.IntegrityAssessment, error)
}

type IntegrityService struct {
	ai *AIService
}

func NewIntegrityService(ai *AIService) *IntegrityService {
	return &IntegrityService{ai: ai}
}

// 提交快于该阈值时触发诚信评估
const suspiciousResponseTimeMS = 5000

// Suspicious 判断本次提交是否需要诚信评估
func Suspicious(t model.Telemetry) bool {
	return t.PasteDetected || (t.ResponseTimeMS > 0 && t.ResponseTimeMS < suspiciousResponseTimeMS)
}

func (s *IntegrityService) Assess(ctx context.Context, interviewID uint, question, answer string, telemetry model.Telemetry, previousAnswers []string) (*model.IntegrityAssessment, error) {
	// 只带最近几条历史回答做风格比对
	if len(previousAnswers) > 3 {
		previousAnswers = previousAnswers[len(previousAnswers)-3:]
	}
	history := "No previous answers yet"
	if len(previousAnswers) > 0 {
		var b strings.Builder
		for i, ans := range previousAnswers {
			fmt.Fprintf(&b, "Answer %d: %s\n\n", i+1, ans)
		}
		history = b.String()
	}

	prompt := fmt.Sprintf(`Assess whether this interview answer may have been produced dishonestly (copied, AI-generated, or pasted from elsewhere).

Question:
%s

Answer:
%s

Response time: %d ms
Paste detected: %t

Previous answers for style comparison:
%s

Respond with a JSON object: {"cheat_certainty": <0-100>, "indicators": ["<indicator>", ...]}`,
		question, answer, telemetry.ResponseTimeMS, telemetry.PasteDetected, history)

	var assessment model.IntegrityAssessment
	if err := s.ai.ChatJSON(ctx, "integrity_judgment", "You are analyzing interview integrity.", prompt, interviewID, &assessment); err != nil {
		return nil, err
	}

	if assessment.CheatCertainty < 0 {
		assessment.CheatCertainty = 0
	}
	if assessment.CheatCertainty > 100 {
		assessment.CheatCertainty = 100
	}
	return &assessment, nil
}
