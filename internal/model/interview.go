package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type InterviewStatus string

const (
	StatusDraft      InterviewStatus = "DRAFT"       // 已创建，待上传材料
	StatusReady      InterviewStatus = "READY"       // 匹配分析完成
	StatusAssigned   InterviewStatus = "ASSIGNED"    // 候选人链接已生成
	StatusInProgress InterviewStatus = "IN_PROGRESS" // 候选人面试中
	StatusCompleted  InterviewStatus = "COMPLETED"   // 报告已生成，终态
)

// 状态只能沿此链路向前流转，不允许回退或跳跃
var statusOrder = []InterviewStatus{
	StatusDraft,
	StatusReady,
	StatusAssigned,
	StatusInProgress,
	StatusCompleted,
}

type InvalidTransitionError struct {
	From InterviewStatus
	To   InterviewStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid interview status transition from %s to %s", e.From, e.To)
}

func statusIndex(s InterviewStatus) int {
	for i, v := range statusOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// CanTransition 仅允许相邻的前向流转
func CanTransition(from, to InterviewStatus) bool {
	fi, ti := statusIndex(from), statusIndex(to)
	if fi < 0 || ti < 0 {
		return false
	}
	return ti == fi+1
}

// swagger:model Interview
type Interview struct {
	BaseModel
	Status InterviewStatus `gorm:"size:20;not null;default:'DRAFT';index" json:"status"`

	// 候选人材料
	ResumePath      string `gorm:"size:500" json:"resumePath,omitempty"`
	RolePath        string `gorm:"size:500" json:"rolePath,omitempty"`
	JobOfferingPath string `gorm:"size:500" json:"jobOfferingPath,omitempty"`

	// 匹配分析结果，流转到READY前写入
	MatchAnalysisJSON json.RawMessage `gorm:"type:json" json:"matchAnalysis,omitempty"`

	// 面试配置，创建后不再修改
	TargetQuestions int     `gorm:"not null;default:8" json:"targetQuestions"`
	DifficultyStart float64 `gorm:"not null;default:5" json:"difficultyStart"`

	// 面试进行中的可变状态，仅由会话服务写入
	CurrentDifficulty float64         `gorm:"not null;default:5" json:"currentDifficulty"`
	QuestionsAsked    int             `gorm:"not null;default:0" json:"questionsAsked"`
	CoveredAreasJSON  json.RawMessage `gorm:"type:json" json:"coveredAreas,omitempty"`
	IntroText         string          `gorm:"type:text" json:"introText,omitempty"`

	// 候选人访问令牌，ASSIGNED时一次性写入
	CandidateToken string     `gorm:"size:255;uniqueIndex" json:"candidateToken,omitempty"`
	TokenExpiresAt *time.Time `json:"tokenExpiresAt,omitempty"`

	// 最终报告，COMPLETED时一次性写入
	ReportJSON json.RawMessage `gorm:"type:json" json:"report,omitempty"`

	Messages []Message `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Interview) TableName() string {
	return "interviews"
}

// TransitionTo 校验并执行状态流转，非法流转返回 *InvalidTransitionError
func (i *Interview) TransitionTo(to InterviewStatus) error {
	if !CanTransition(i.Status, to) {
		return &InvalidTransitionError{From: i.Status, To: to}
	}
	i.Status = to
	return nil
}

// TokenExpired 判断候选人令牌是否已过期
func (i *Interview) TokenExpired(now time.Time) bool {
	return i.TokenExpiresAt != nil && now.After(*i.TokenExpiresAt)
}

// MatchAnalysis 解析匹配分析JSON，未分析时返回nil
func (i *Interview) MatchAnalysis() (*MatchAnalysis, error) {
	if len(i.MatchAnalysisJSON) == 0 {
		return nil, nil
	}
	var ma MatchAnalysis
	if err := json.Unmarshal(i.MatchAnalysisJSON, &ma); err != nil {
		return nil, err
	}
	return &ma, nil
}

// CoveredAreas 已出题覆盖的考察方向
func (i *Interview) CoveredAreas() []string {
	if len(i.CoveredAreasJSON) == 0 {
		return nil
	}
	var areas []string
	if err := json.Unmarshal(i.CoveredAreasJSON, &areas); err != nil {
		return nil
	}
	return areas
}

func (i *Interview) SetCoveredAreas(areas []string) {
	data, _ := json.Marshal(areas)
	i.CoveredAreasJSON = data
}

// Report 解析最终报告JSON，未完成时返回nil
func (i *Interview) Report() (*FinalReport, error) {
	if len(i.ReportJSON) == 0 {
		return nil, nil
	}
	var r FinalReport
	if err := json.Unmarshal(i.ReportJSON, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
