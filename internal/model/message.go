package model

import "encoding/json"

type MessageRole string

const (
	RoleInterviewer MessageRole = "interviewer"
	RoleCandidate   MessageRole = "candidate"
)

// swagger:model Message
type Message struct {
	BaseModel
	InterviewID uint `gorm:"index;not null;uniqueIndex:idx_interview_seq,priority:1" json:"interviewId"`

	// 会话内序号，从1开始连续递增，追加后不可变
	Seq int `gorm:"not null;uniqueIndex:idx_interview_seq,priority:2" json:"seq"`

	Role    MessageRole `gorm:"size:20;not null" json:"role"`
	Content string      `gorm:"type:text;not null" json:"content"`

	// 面试官消息的出题元数据
	QuestionNumber  int     `gorm:"default:0" json:"questionNumber,omitempty"`
	DifficultyLevel float64 `gorm:"default:0" json:"difficultyLevel,omitempty"`
	FocusArea       string  `gorm:"size:255" json:"focusArea,omitempty"`

	// 候选人消息的评估结果，创建时一次性写入
	AnswerQualityScore *int     `json:"answerQualityScore,omitempty"` // 1-10
	CheatCertainty     *float64 `json:"cheatCertainty,omitempty"`     // 0-100

	TelemetryJSON json.RawMessage `gorm:"type:json" json:"telemetry,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// Telemetry 解析提交元数据，缺失时返回零值
func (m *Message) Telemetry() Telemetry {
	var t Telemetry
	if len(m.TelemetryJSON) > 0 {
		json.Unmarshal(m.TelemetryJSON, &t)
	}
	return t
}

func (m *Message) SetTelemetry(t Telemetry) {
	data, _ := json.Marshal(t)
	m.TelemetryJSON = data
}
