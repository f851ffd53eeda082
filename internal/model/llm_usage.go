package model

// LLMUsage 每次模型调用的token与成本记录
type LLMUsage struct {
	BaseModel
	InterviewID      uint    `gorm:"index" json:"interviewId"`
	Agent            string  `gorm:"size:50;not null;index" json:"agent"`
	Model            string  `gorm:"size:100;not null" json:"model"`
	PromptTokens     int     `gorm:"default:0" json:"promptTokens"`
	CompletionTokens int     `gorm:"default:0" json:"completionTokens"`
	CostUSD          float64 `gorm:"default:0" json:"costUsd"`
}

func (LLMUsage) TableName() string {
	return "llm_usages"
}
