package service

import (
	"ai_interviewer_backend/internal/config"
	"ai_interviewer_backend/internal/model"
	"ai_interviewer_backend/internal/repository"
	"ai_interviewer_backend/pkg/logger"
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	costCacheKey = "ai_interviewer:llm_usage:global"
	costCacheTTL = time.Minute
)

// CostService 按调用记录LLM token用量与美元成本。
// 作为AIService的UsageRecorder注入，记录失败只打日志，绝不影响面试流程。
type CostService struct {
	Repo  *repository.LLMUsageRepository
	Redis *redis.Client // 可选，为nil时跳过缓存
	Cfg   config.AIConfig
}

func NewCostService(repo *repository.LLMUsageRepository, rdb *redis.Client, cfg config.AIConfig) *CostService {
	return &CostService{Repo: repo, Redis: rdb, Cfg: cfg}
}

// RecordUsage 实现UsageRecorder
func (s *CostService) RecordUsage(interviewID uint, agent, modelName string, promptTokens, completionTokens int) {
	cost := float64(promptTokens)/1000*s.Cfg.PromptPricePer1K +
		float64(completionTokens)/1000*s.Cfg.CompletionPricePer1K

	usage := &model.LLMUsage{
		InterviewID:      interviewID,
		Agent:            agent,
		Model:            modelName,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		CostUSD:          cost,
	}
	if err := s.Repo.Create(usage); err != nil {
		logger.Log.Warn("failed to record LLM usage",
			zap.Uint("interviewID", interviewID),
			zap.String("agent", agent),
			zap.Error(err))
		return
	}

	if s.Redis != nil {
		// 有新记录时让聚合缓存失效
		if err := s.Redis.Del(context.Background(), costCacheKey).Err(); err != nil {
			logger.Log.Warn("failed to invalidate usage cache", zap.Error(err))
		}
	}
}

// InterviewCosts 单场面试的用量明细与合计
func (s *CostService) InterviewCosts(interviewID uint) ([]model.LLMUsage, *repository.UsageTotals, error) {
	usages, err := s.Repo.ListByInterview(interviewID)
	if err != nil {
		return nil, nil, err
	}
	totals, err := s.Repo.TotalsByInterview(interviewID)
	if err != nil {
		return nil, nil, err
	}
	return usages, totals, nil
}

// GlobalCosts 全局用量合计，经Redis短暂缓存
func (s *CostService) GlobalCosts(ctx context.Context) (*repository.UsageTotals, error) {
	if s.Redis != nil {
		if cached, err := s.Redis.Get(ctx, costCacheKey).Result(); err == nil {
			var totals repository.UsageTotals
			if json.Unmarshal([]byte(cached), &totals) == nil {
				return &totals, nil
			}
		}
	}

	totals, err := s.Repo.GlobalTotals()
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if data, err := json.Marshal(totals); err == nil {
			if err := s.Redis.Set(ctx, costCacheKey, data, costCacheTTL).Err(); err != nil {
				logger.Log.Warn("failed to cache usage totals", zap.Error(err))
			}
		}
	}
	return totals, nil
}
