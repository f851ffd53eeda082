package service

import (
	"context"
	"fmt"
	"strings"
)

// NextFocusArea 按原始优先级顺序选择首个未覆盖的考察方向。
// 返回false表示全部方向已覆盖，这是面试结束的触发条件之一。
func NextFocusArea(all, covered []string) (string, bool) {
	coveredSet := make(map[string]bool, len(covered))
	for _, c := range covered {
		coveredSet[c] = true
	}
	for _, area := range all {
		if !coveredSet[area] {
			return area, true
		}
	}
	return "", false
}

// QuestionGenerator 下一题生成的外部依赖抽象，便于测试替换
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, interviewID uint, focusArea string, difficulty float64, history string, questionsAsked int) (string, error)
	GenerateIntroduction(ctx context.Context, interviewID uint, roleText string, targetQuestions int) (string, error)
}

type QuestionService struct {
	ai *AIService
}

func NewQuestionService(ai *AIService) *QuestionService {
	return &QuestionService{ai: ai}
}

const questionSystemPrompt = "You are an expert technical interviewer conducting a live chat interview."

func (s *QuestionService) GenerateQuestion(ctx context.Context, interviewID uint, focusArea string, difficulty float64, history string, questionsAsked int) (string, error) {
	if history == "" {
		history = "No previous questions yet."
	}

	prompt := fmt.Sprintf(`Generate the next interview question.

Focus area for this question: %s
Difficulty level (1=entry, 10=expert): %.1f
Questions asked so far: %d

Conversation so far:
%s

Requirements:
- Ask exactly one question targeting the focus area at the given difficulty.
- Do not repeat topics already covered in the conversation.
- Keep it concise and answerable in a chat message.
- Output only the question text, no preamble.`,
		focusArea, difficulty, questionsAsked, history)

	question, err := s.ai.Chat(ctx, "question_generation", questionSystemPrompt, prompt, interviewID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(question), nil
}

func (s *QuestionService) GenerateIntroduction(ctx context.Context, interviewID uint, roleText string, targetQuestions int) (string, error) {
	if roleText == "" {
		roleText = "the position"
	}

	prompt := fmt.Sprintf(`Write a short, friendly introduction message for a candidate starting a technical chat interview for the following role:

%s

Mention that the interview consists of about %d questions, that answers should be written in their own words, and wish them good luck. Output only the message.`,
		roleText, targetQuestions)

	intro, err := s.ai.Chat(ctx, "introduction", questionSystemPrompt, prompt, interviewID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(intro), nil
}
