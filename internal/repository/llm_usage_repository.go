package repository

import (
	"ai_interviewer_backend/internal/model"

	"gorm.io/gorm"
)

type LLMUsageRepository struct {
	DB *gorm.DB
}

func NewLLMUsageRepository(db *gorm.DB) *LLMUsageRepository {
	return &LLMUsageRepository{DB: db}
}

func (r *LLMUsageRepository) Create(usage *model.LLMUsage) error {
	return r.DB.Create(usage).Error
}

func (r *LLMUsageRepository) ListByInterview(interviewID uint) ([]model.LLMUsage, error) {
	var usages []model.LLMUsage
	err := r.DB.Where("interview_id = ?", interviewID).Order("created_at asc").Find(&usages).Error
	return usages, err
}

type UsageTotals struct {
	Calls            int64   `json:"calls"`
	PromptTokens     int64   `json:"promptTokens"`
	CompletionTokens int64   `json:"completionTokens"`
	CostUSD          float64 `json:"costUsd"`
}

func (r *LLMUsageRepository) TotalsByInterview(interviewID uint) (*UsageTotals, error) {
	var totals UsageTotals
	err := r.DB.Model(&model.LLMUsage{}).
		Where("interview_id = ?", interviewID).
		Select("COUNT(*) as calls, COALESCE(SUM(prompt_tokens),0) as prompt_tokens, COALESCE(SUM(completion_tokens),0) as completion_tokens, COALESCE(SUM(cost_usd),0) as cost_usd").
		Scan(&totals).Error
	return &totals, err
}

func (r *LLMUsageRepository) GlobalTotals() (*UsageTotals, error) {
	var totals UsageTotals
	err := r.DB.Model(&model.LLMUsage{}).
		Select("COUNT(*) as calls, COALESCE(SUM(prompt_tokens),0) as prompt_tokens, COALESCE(SUM(completion_tokens),0) as completion_tokens, COALESCE(SUM(cost_usd),0) as cost_usd").
		Scan(&totals).Error
	return &totals, err
}
