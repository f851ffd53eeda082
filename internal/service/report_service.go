package service

import (
	"ai_interviewer_backend/internal/model"
	"context"
	"fmt"
	"math"
	"strings"
)

// ReportNarrator 报告叙述文字的外部依赖，一次性调用，失败可重试
type ReportNarrator interface {
	Narrate(ctx context.Context, interviewID uint, match *model.MatchAnalysis, transcript []model.Message, overallScore int) (string, error)
}

// 诚信扫描阈值
const (
	pasteFlagMinAnswerLen = 280 // 粘贴+长回答视为高风险
	fastFlagMinAnswerLen  = 120 // 短回答不做速度判断
	fastFlagMSPerChar     = 40  // 低于每字符40ms视为不合理的快
	cheatCertaintyFlagMin = 70  // 诚信Agent置信度阈值

	// 方向平均分达到该值计为达标，否则计为差距项
	strengthScoreThreshold = 7.0
)

// ReportService 汇总transcript生成最终报告。
// 除叙述文字外完全确定：同一transcript与阈值必然产出同一报告。
type ReportService struct {
	narrator ReportNarrator
}

func NewReportService(narrator ReportNarrator) *ReportService {
	return &ReportService{narrator: narrator}
}

// Compile 生成最终报告。
// 总分取所有回答得分的算术平均，四舍五入到整数并收敛到[1,10]。
func (s *ReportService) Compile(ctx context.Context, interview *model.Interview, transcript []model.Message) (*model.FinalReport, error) {
	match, err := interview.MatchAnalysis()
	if err != nil {
		return nil, err
	}

	report := &model.FinalReport{
		InterviewScore:      s.overallScore(transcript),
		Gaps:                []string{},
		MeetingExpectations: []string{},
		IntegrityFlags:      s.scanIntegrity(transcript),
	}

	gaps, strengths := s.classifyFocusAreas(transcript)
	report.Gaps = gaps
	report.MeetingExpectations = strengths

	summary, err := s.narrator.Narrate(ctx, interview.ID, match, transcript, report.InterviewScore)
	if err != nil {
		return nil, err
	}
	report.Summary = summary

	return report, nil
}

func (s *ReportService) overallScore(transcript []model.Message) int {
	sum, n := 0, 0
	for _, m := range transcript {
		if m.Role == model.RoleCandidate && m.AnswerQualityScore != nil {
			sum += *m.AnswerQualityScore
			n++
		}
	}
	if n == 0 {
		return 1
	}
	score := int(math.Round(float64(sum) / float64(n)))
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

// classifyFocusAreas 按方向平均分划分达标项与差距项，顺序跟随出题顺序
func (s *ReportService) classifyFocusAreas(transcript []model.Message) (gaps, strengths []string) {
	gaps = []string{}
	strengths = []string{}

	// 题号到考察方向的映射来自面试官消息
	areaByQuestion := make(map[int]string)
	var areaOrder []string
	for _, m := range transcript {
		if m.Role == model.RoleInterviewer && m.QuestionNumber > 0 && m.FocusArea != "" {
			areaByQuestion[m.QuestionNumber] = m.FocusArea
			areaOrder = append(areaOrder, m.FocusArea)
		}
	}

	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, m := range transcript {
		if m.Role != model.RoleCandidate || m.AnswerQualityScore == nil {
			continue
		}
		area, ok := areaByQuestion[m.QuestionNumber]
		if !ok {
			continue
		}
		sums[area] += *m.AnswerQualityScore
		counts[area]++
	}

	for _, area := range areaOrder {
		n := counts[area]
		if n == 0 {
			continue
		}
		avg := float64(sums[area]) / float64(n)
		if avg >= strengthScoreThreshold {
			strengths = append(strengths, area)
		} else {
			gaps = append(gaps, area)
		}
	}
	return gaps, strengths
}

// scanIntegrity 扫描transcript中的可疑模式，每个标记都带来源消息作为证据
func (s *ReportService) scanIntegrity(transcript []model.Message) []model.IntegrityFlag {
	flags := []model.IntegrityFlag{}

	for _, m := range transcript {
		if m.Role != model.RoleCandidate {
			continue
		}
		t := m.Telemetry()
		answerLen := len(m.Content)

		if t.PasteDetected && answerLen > pasteFlagMinAnswerLen {
			flags = append(flags, model.IntegrityFlag{
				Severity:       model.SeverityHigh,
				Description:    fmt.Sprintf("Paste detected on a %d-character answer to question %d", answerLen, m.QuestionNumber),
				QuestionNumber: m.QuestionNumber,
				Seq:            m.Seq,
				Evidence:       excerpt(m.Content),
			})
		}

		if t.ResponseTimeMS > 0 && answerLen > fastFlagMinAnswerLen && t.ResponseTimeMS < answerLen*fastFlagMSPerChar {
			flags = append(flags, model.IntegrityFlag{
				Severity:       model.SeverityMedium,
				Description:    fmt.Sprintf("Answer to question %d submitted in %dms, implausibly fast for %d characters", m.QuestionNumber, t.ResponseTimeMS, answerLen),
				QuestionNumber: m.QuestionNumber,
				Seq:            m.Seq,
				Evidence:       excerpt(m.Content),
			})
		}

		if m.CheatCertainty != nil && *m.CheatCertainty >= cheatCertaintyFlagMin {
			flags = append(flags, model.IntegrityFlag{
				Severity:       model.SeverityHigh,
				Description:    fmt.Sprintf("Integrity assessment reported %.0f%% cheat certainty on question %d", *m.CheatCertainty, m.QuestionNumber),
				QuestionNumber: m.QuestionNumber,
				Seq:            m.Seq,
				Evidence:       excerpt(m.Content),
			})
		}
	}

	return flags
}

func excerpt(content string) string {
	const maxLen = 120
	content = strings.TrimSpace(content)
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "..."
}

// NarratorService 基于LLM的报告叙述实现
type NarratorService struct {
	ai *AIService
}

func NewNarratorService(ai *AIService) *NarratorService {
	return &NarratorService{ai: ai}
}

func (s *NarratorService) Narrate(ctx context.Context, interviewID uint, match *model.MatchAnalysis, transcript []model.Message, overallScore int) (string, error) {
	var b strings.Builder
	for _, m := range transcript {
		fmt.Fprintf(&b, "%s: %s\n\n", strings.ToUpper(string(m.Role)), m.Content)
	}

	matchStr := "not available"
	if match != nil {
		matchStr = fmt.Sprintf("Match score %d/10. %s Focus areas: %s",
			match.MatchScore, match.MatchSummary, strings.Join(match.FocusAreas, ", "))
	}

	prompt := fmt.Sprintf(`Write a concise performance summary (3-5 sentences) for this technical interview.

Pre-interview match analysis: %s

Overall interview score: %d/10

Transcript:
%s

Output only the summary paragraph.`, matchStr, overallScore, b.String())

	return s.ai.Chat(ctx, "report_generation", "You are an expert technical recruiter creating interview reports.", prompt, interviewID)
}
