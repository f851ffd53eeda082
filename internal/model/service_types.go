package model

// Telemetry 候选人端上报的提交元数据
type Telemetry struct {
	ResponseTimeMS int  `json:"response_time_ms"`
	PasteDetected  bool `json:"paste_detected"`
}

// MatchAnalysis 简历与岗位的匹配分析结果
type MatchAnalysis struct {
	MatchScore   int      `json:"match_score"`   // 1-10
	MatchSummary string   `json:"match_summary"` // 打分说明
	FocusAreas   []string `json:"focus_areas"`   // 面试重点考察方向，3-5个，按优先级排序
}

// AnswerEvaluation 单题回答的评估结果
type AnswerEvaluation struct {
	Score        int    `json:"score"`     // 1-10
	Rationale    string `json:"rationale"` // 打分理由
	Evidence     string `json:"evidence"`  // 回答原文中的支撑引用
	FollowupHint string `json:"followup_hint,omitempty"`
}

// MessageClassification 候选人消息分类结果
type MessageClassification struct {
	Type       string  `json:"type"` // Answer / Clarification / OffTopic
	Confidence float64 `json:"confidence"`
}

const (
	ClassificationAnswer        = "Answer"
	ClassificationClarification = "Clarification"
	ClassificationOffTopic      = "OffTopic"
)

// IntegrityAssessment 可疑提交的诚信评估（可选Agent输出）
type IntegrityAssessment struct {
	CheatCertainty float64  `json:"cheat_certainty"` // 0-100
	Indicators     []string `json:"indicators"`
}

type FlagSeverity string

const (
	SeverityLow    FlagSeverity = "low"
	SeverityMedium FlagSeverity = "medium"
	SeverityHigh   FlagSeverity = "high"
)

// IntegrityFlag 报告中的诚信标记，附带来源消息作为证据
type IntegrityFlag struct {
	Severity       FlagSeverity `json:"severity"`
	Description    string       `json:"description"`
	QuestionNumber int          `json:"question_number"`
	Seq            int          `json:"seq"` // 触发标记的transcript消息序号
	Evidence       string       `json:"evidence"`
}

// FinalReport 面试结束时一次性生成的最终报告
type FinalReport struct {
	InterviewScore      int             `json:"interview_score"` // 1-10
	Summary             string          `json:"summary"`
	Gaps                []string        `json:"gaps"`
	MeetingExpectations []string        `json:"meeting_expectations"`
	IntegrityFlags      []IntegrityFlag `json:"integrity_flags"`
}
