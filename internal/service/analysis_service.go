package service

import (
	"ai_interviewer_backend/internal/model"
	"ai_interviewer_backend/internal/util"
	"context"
	"fmt"
	"strings"
)

// DocumentAnalyzer 简历/岗位匹配分析的外部依赖抽象
type DocumentAnalyzer interface {
	AnalyzeMatch(ctx context.Context, interviewID uint, resumeText, roleText, jobOfferingText string) (*model.MatchAnalysis, error)
}

type AnalysisService struct {
	ai *AIService
}

func NewAnalysisService(ai *AIService) *AnalysisService {
	return &AnalysisService{ai: ai}
}

const analysisSystemPrompt = "You are an expert technical recruiter analyzing candidate-role fit."

// AnalyzeMatch 对比简历与岗位描述，产出匹配分与考察方向池
func (s *AnalysisService) AnalyzeMatch(ctx context.Context, interviewID uint, resumeText, roleText, jobOfferingText string) (*model.MatchAnalysis, error) {
	if strings.TrimSpace(resumeText) == "" || strings.TrimSpace(roleText) == "" {
		return nil, util.ErrDocumentsMissing
	}

	prompt := fmt.Sprintf(`Analyze how well the candidate's resume matches the role.

Resume:
%s

Role description:
%s

Job offering:
%s

Respond with a JSON object:
{"match_score": <integer 1-10>, "match_summary": "<why this score>", "focus_areas": ["<area to probe in the interview>", ...]}

List 3 to 5 focus areas, ordered from most to least important.`,
		resumeText, roleText, jobOfferingText)

	var ma model.MatchAnalysis
	if err := s.ai.ChatJSON(ctx, "document_analysis", analysisSystemPrompt, prompt, interviewID, &ma); err != nil {
		return nil, err
	}

	if ma.MatchScore < 1 {
		ma.MatchScore = 1
	}
	if ma.MatchScore > 10 {
		ma.MatchScore = 10
	}

	areas := make([]string, 0, len(ma.FocusAreas))
	for _, a := range ma.FocusAreas {
		if t := strings.TrimSpace(a); t != "" {
			areas = append(areas, t)
		}
	}
	if len(areas) == 0 {
		return nil, util.ErrNoFocusAreas
	}
	if len(areas) > 5 {
		areas = areas[:5]
	}
	ma.FocusAreas = areas

	return &ma, nil
}
