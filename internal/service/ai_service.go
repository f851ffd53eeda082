package service

import (
	"ai_interviewer_backend/internal/config"
	"ai_interviewer_backend/pkg/logger"
	"ai_interviewer_backend/pkg/monitoring"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// UsageRecorder 模型调用的成本侧信道，可选注入，不影响调用结果
type UsageRecorder interface {
	RecordUsage(interviewID uint, agent, model string, promptTokens, completionTokens int)
}

type AIService struct {
	config config.AIConfig
	client *http.Client
	usage  UsageRecorder
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{
		config: cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func (s *AIService) SetUsageRecorder(r UsageRecorder) {
	s.usage = r
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []AIChatMessage `json:"messages"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// 从模型输出中提取JSON串，容忍```json围栏等前后缀
var jsonExpr = regexp.MustCompile(`(?s)\{.*\}`)

func (s *AIService) invoke(ctx context.Context, agent string, messages []AIChatMessage, interviewID uint) (string, error) {
	reqBody := ChatCompletionRequest{
		Model:    s.config.Model,
		Messages: messages,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	monitoring.LLMRequestDuration.WithLabelValues(agent).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	if result.Error != nil {
		return "", fmt.Errorf("AI API error: %s", result.Error.Message)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("AI returned no choices")
	}

	monitoring.LLMTokenCounter.WithLabelValues(agent, "prompt").Add(float64(result.Usage.PromptTokens))
	monitoring.LLMTokenCounter.WithLabelValues(agent, "completion").Add(float64(result.Usage.CompletionTokens))
	if s.usage != nil {
		s.usage.RecordUsage(interviewID, agent, s.config.Model, result.Usage.PromptTokens, result.Usage.CompletionTokens)
	}

	return result.Choices[0].Message.Content, nil
}

// Chat 带有界重试的同步调用。上下文取消后立即放弃，不再重试
func (s *AIService) Chat(ctx context.Context, agent, system, prompt string, interviewID uint) (string, error) {
	messages := []AIChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}

	var lastErr error
	backoff := s.config.RetryBackoff
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		content, err := s.invoke(ctx, agent, messages, interviewID)
		if err == nil {
			monitoring.LLMRequestCounter.WithLabelValues(agent, "success").Inc()
			return content, nil
		}
		lastErr = err
		monitoring.LLMRequestCounter.WithLabelValues(agent, "error").Inc()
		logger.Log.Warn("LLM call failed",
			zap.String("agent", agent),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < s.config.MaxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return "", fmt.Errorf("LLM call failed after %d attempts: %w", s.config.MaxRetries, lastErr)
}

// ChatJSON 调用并解析结构化输出。格式不合法与网络错误一样计入重试次数
func (s *AIService) ChatJSON(ctx context.Context, agent, system, prompt string, interviewID uint, out interface{}) error {
	messages := []AIChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}

	var lastErr error
	backoff := s.config.RetryBackoff
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		content, err := s.invoke(ctx, agent, messages, interviewID)
		if err == nil {
			raw := jsonExpr.FindString(content)
			if raw == "" {
				err = fmt.Errorf("no JSON object in LLM output")
			} else {
				err = json.Unmarshal([]byte(raw), out)
			}
		}
		if err == nil {
			monitoring.LLMRequestCounter.WithLabelValues(agent, "success").Inc()
			return nil
		}
		lastErr = err
		monitoring.LLMRequestCounter.WithLabelValues(agent, "error").Inc()
		logger.Log.Warn("LLM structured call failed",
			zap.String("agent", agent),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < s.config.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return fmt.Errorf("LLM call failed after %d attempts: %w", s.config.MaxRetries, lastErr)
}
