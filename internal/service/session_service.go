package service

import (
	"ai_interviewer_backend/internal/config"
	"ai_interviewer_backend/internal/model"
	"ai_interviewer_backend/internal/util"
	"ai_interviewer_backend/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InterviewStore 会话服务需要的面试持久化操作
type InterviewStore interface {
	FindByID(id uint) (*model.Interview, error)
	FindByToken(token string) (*model.Interview, error)
	Save(interview *model.Interview) error
	SaveWithStatus(interview *model.Interview, from model.InterviewStatus) error
}

// MessageStore transcript只追加，不修改不删除
type MessageStore interface {
	Append(msg *model.Message) error
	ListByInterview(interviewID uint) ([]model.Message, error)
}

// ReportCompiler 终局报告编译
type ReportCompiler interface {
	Compile(ctx context.Context, interview *model.Interview, transcript []model.Message) (*model.FinalReport, error)
}

const closingMessage = "Thank you for completing the interview! Your responses have been recorded and will be reviewed by our team."

// SessionService 面试会话的状态机与回合编排。
// 面试的可变进度字段（当前难度、已出题数、已覆盖方向）只由本服务写入。
type SessionService struct {
	interviews InterviewStore
	messages   MessageStore
	evaluator  AnswerEvaluator
	generator  QuestionGenerator
	compiler   ReportCompiler
	classifier MessageClassifier // 可选
	integrity  IntegrityJudge    // 可选
	cfg        config.InterviewConfig

	// 会话级互斥：同一会话的回合严格串行，绝不允许两个回合交错
	locks sync.Map // interviewID -> *sync.Mutex
}

func NewSessionService(
	interviews InterviewStore,
	messages MessageStore,
	evaluator AnswerEvaluator,
	generator QuestionGenerator,
	compiler ReportCompiler,
	cfg config.InterviewConfig,
) *SessionService {
	return &SessionService{
		interviews: interviews,
		messages:   messages,
		evaluator:  evaluator,
		generator:  generator,
		compiler:   compiler,
		cfg:        cfg,
	}
}

// SetClassifier 注入消息分类Agent，未注入时所有消息按回答处理
func (s *SessionService) SetClassifier(c MessageClassifier) {
	s.classifier = c
}

// SetIntegrityJudge 注入诚信评估Agent，受配置开关控制
func (s *SessionService) SetIntegrityJudge(j IntegrityJudge) {
	s.integrity = j
}

func (s *SessionService) lockFor(interviewID uint) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(interviewID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

type StartSessionResult struct {
	InterviewID   uint   `json:"interviewId"`
	Introduction  string `json:"introduction"`
	FirstQuestion string `json:"firstQuestion"`
}

// StartSession 校验候选人令牌并开始会话：ASSIGNED -> IN_PROGRESS。
// 开场白保存在面试记录上，第一道题作为transcript的首条消息。
func (s *SessionService) StartSession(ctx context.Context, token string) (*StartSessionResult, error) {
	interview, err := s.interviews.FindByToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidToken
		}
		return nil, err
	}

	// 过期令牌不触发任何状态变化
	if interview.TokenExpired(time.Now()) {
		return nil, util.ErrTokenExpired
	}

	mu := s.lockFor(interview.ID)
	if !mu.TryLock() {
		return nil, util.ErrTurnInProgress
	}
	defer mu.Unlock()

	if err := interview.TransitionTo(model.StatusInProgress); err != nil {
		return nil, err
	}

	match, err := interview.MatchAnalysis()
	if err != nil {
		return nil, err
	}
	if match == nil || len(match.FocusAreas) == 0 {
		return nil, util.ErrNoFocusAreas
	}

	firstArea, _ := NextFocusArea(match.FocusAreas, nil)

	intro, err := s.generator.GenerateIntroduction(ctx, interview.ID, "", interview.TargetQuestions)
	if err != nil {
		return nil, err
	}

	firstQuestion, err := s.generator.GenerateQuestion(ctx, interview.ID, firstArea, interview.DifficultyStart, "", 0)
	if err != nil {
		return nil, err
	}

	interview.IntroText = intro
	interview.CurrentDifficulty = interview.DifficultyStart
	interview.QuestionsAsked = 1
	interview.SetCoveredAreas([]string{firstArea})

	if err := s.interviews.SaveWithStatus(interview, model.StatusAssigned); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 状态已被并发推进
			return nil, &model.InvalidTransitionError{From: model.StatusInProgress, To: model.StatusInProgress}
		}
		return nil, err
	}

	if err := s.messages.Append(&model.Message{
		InterviewID:     interview.ID,
		Role:            model.RoleInterviewer,
		Content:         firstQuestion,
		QuestionNumber:  1,
		DifficultyLevel: interview.DifficultyStart,
		FocusArea:       firstArea,
	}); err != nil {
		return nil, err
	}

	return &StartSessionResult{
		InterviewID:   interview.ID,
		Introduction:  intro,
		FirstQuestion: firstQuestion,
	}, nil
}

type SubmitResult struct {
	Response           string                  `json:"response"`
	SessionComplete    bool                    `json:"sessionComplete"`
	Evaluation         *model.AnswerEvaluation `json:"evaluation,omitempty"`
	Classification     string                  `json:"classification,omitempty"`
	NextQuestionNumber int                     `json:"nextQuestionNumber,omitempty"`
}

// SubmitAnswer 处理候选人对当前待答题目的提交。
// 评分成功并追加候选人消息后即为回合的不可回退点；在此之前的任何失败
// 都不落库，调用方可安全重试整个提交。
func (s *SessionService) SubmitAnswer(ctx context.Context, interviewID uint, content string, rawTelemetry *model.Telemetry) (*SubmitResult, error) {
	mu := s.lockFor(interviewID)
	if !mu.TryLock() {
		return nil, util.ErrTurnInProgress
	}
	defer mu.Unlock()

	interview, err := s.interviews.FindByID(interviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInterviewNotFound
		}
		return nil, err
	}

	if interview.Status != model.StatusInProgress {
		return nil, util.ErrSessionNotActive
	}

	msgs, err := s.messages.ListByInterview(interviewID)
	if err != nil {
		return nil, err
	}

	lastQuestion := lastQuestionOf(msgs)
	if lastQuestion == nil {
		return nil, util.ErrNoCurrentQuestion
	}

	// 当前题已答过：上一回合在出题或完结阶段失败，直接恢复推进
	if len(msgs) > 0 && msgs[len(msgs)-1].Role == model.RoleCandidate {
		return s.advance(ctx, interview, msgs, nil)
	}

	telemetry := NormalizeTelemetry(rawTelemetry)

	// 消息分类：澄清与跑题不占用题目，也不进入transcript
	if s.classifier != nil {
		cls, clsErr := s.classifier.Classify(ctx, interviewID, lastQuestion.Content, content)
		if clsErr != nil {
			logger.Log.Warn("message classification failed, treating as answer",
				zap.Uint("interviewID", interviewID), zap.Error(clsErr))
		} else if cls.Type == model.ClassificationClarification {
			return &SubmitResult{
				Response:       fmt.Sprintf("Let me clarify the question: %s\n\nPlease provide your answer when you're ready.", lastQuestion.Content),
				Classification: "clarification",
			}, nil
		} else if cls.Type == model.ClassificationOffTopic {
			return &SubmitResult{
				Response:       fmt.Sprintf("Let's stay focused on the current question: %s", lastQuestion.Content),
				Classification: "off_topic",
			}, nil
		}
	}

	rubric := fmt.Sprintf("Focus area: %s. Expected depth for difficulty %.1f on a 1-10 scale.",
		lastQuestion.FocusArea, lastQuestion.DifficultyLevel)

	evaluation, err := s.evaluator.Evaluate(ctx, interviewID, lastQuestion.Content, content, rubric)
	if err != nil {
		// 状态未变，候选人可重新提交
		return nil, err
	}

	var cheatCertainty *float64
	if s.cfg.IntegrityAgentEnabled && s.integrity != nil && Suspicious(telemetry) {
		assessment, intErr := s.integrity.Assess(ctx, interviewID, lastQuestion.Content, content, telemetry, previousAnswersOf(msgs))
		if intErr != nil {
			logger.Log.Warn("integrity assessment failed, continuing without it",
				zap.Uint("interviewID", interviewID), zap.Error(intErr))
		} else {
			cheatCertainty = &assessment.CheatCertainty
		}
	}

	candidateMsg := &model.Message{
		InterviewID:        interviewID,
		Role:               model.RoleCandidate,
		Content:            content,
		QuestionNumber:     lastQuestion.QuestionNumber,
		DifficultyLevel:    interview.CurrentDifficulty,
		AnswerQualityScore: &evaluation.Score,
		CheatCertainty:     cheatCertainty,
	}
	candidateMsg.SetTelemetry(telemetry)

	// 回合的不可回退点
	if err := s.messages.Append(candidateMsg); err != nil {
		return nil, err
	}
	msgs = append(msgs, *candidateMsg)

	interview.CurrentDifficulty = NextDifficulty(interview.CurrentDifficulty, evaluation.Score)

	result, err := s.advance(ctx, interview, msgs, evaluation)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// advance 在候选人消息已落库后推进会话：结束或出下一题
func (s *SessionService) advance(ctx context.Context, interview *model.Interview, msgs []model.Message, evaluation *model.AnswerEvaluation) (*SubmitResult, error) {
	match, err := interview.MatchAnalysis()
	if err != nil {
		return nil, err
	}
	if match == nil {
		match = &model.MatchAnalysis{}
	}

	nextArea, hasArea := NextFocusArea(match.FocusAreas, interview.CoveredAreas())
	countReached := interview.QuestionsAsked >= interview.TargetQuestions

	if countReached || !hasArea {
		if err := s.complete(ctx, interview, msgs); err != nil {
			// 已接受的回答必须保留，进度落库后会话停在IN_PROGRESS，完结可重试
			if saveErr := s.interviews.Save(interview); saveErr != nil {
				logger.Log.Error("failed to persist progression after completion failure",
					zap.Uint("interviewID", interview.ID), zap.Error(saveErr))
			}
			return nil, err
		}
		return &SubmitResult{
			Response:        closingMessage,
			SessionComplete: true,
			Evaluation:      evaluation,
		}, nil
	}

	question, err := s.generator.GenerateQuestion(ctx, interview.ID, nextArea, interview.CurrentDifficulty, historyOf(msgs), interview.QuestionsAsked)
	if err != nil {
		if saveErr := s.interviews.Save(interview); saveErr != nil {
			logger.Log.Error("failed to persist progression after generation failure",
				zap.Uint("interviewID", interview.ID), zap.Error(saveErr))
		}
		return nil, err
	}

	questionNumber := interview.QuestionsAsked + 1
	if err := s.messages.Append(&model.Message{
		InterviewID:     interview.ID,
		Role:            model.RoleInterviewer,
		Content:         question,
		QuestionNumber:  questionNumber,
		DifficultyLevel: interview.CurrentDifficulty,
		FocusArea:       nextArea,
	}); err != nil {
		return nil, err
	}

	interview.QuestionsAsked = questionNumber
	interview.SetCoveredAreas(append(interview.CoveredAreas(), nextArea))
	if err := s.interviews.Save(interview); err != nil {
		return nil, err
	}

	return &SubmitResult{
		Response:           question,
		SessionComplete:    false,
		Evaluation:         evaluation,
		NextQuestionNumber: questionNumber,
	}, nil
}

// complete 编译报告并流转到COMPLETED。
// 报告写入与状态流转通过单行条件更新一并提交：要么都生效要么都不生效。
func (s *SessionService) complete(ctx context.Context, interview *model.Interview, msgs []model.Message) error {
	report, err := s.compiler.Compile(ctx, interview, msgs)
	if err != nil {
		return err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	interview.ReportJSON = data

	if err := interview.TransitionTo(model.StatusCompleted); err != nil {
		return err
	}

	if err := s.interviews.SaveWithStatus(interview, model.StatusInProgress); err != nil {
		// 落库失败则回退内存状态，避免后续进度保存误写COMPLETED
		interview.Status = model.StatusInProgress
		interview.ReportJSON = nil
		return err
	}
	return nil
}

// GetTranscript 按序返回完整transcript
func (s *SessionService) GetTranscript(ctx context.Context, interviewID uint) ([]model.Message, error) {
	if _, err := s.interviews.FindByID(interviewID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInterviewNotFound
		}
		return nil, err
	}
	return s.messages.ListByInterview(interviewID)
}

// CompleteSession 主动完结会话。
// 幂等：已完结的会话直接返回存储的报告，不重新计算也不追加消息。
func (s *SessionService) CompleteSession(ctx context.Context, interviewID uint) (*model.FinalReport, error) {
	mu := s.lockFor(interviewID)
	mu.Lock()
	defer mu.Unlock()

	interview, err := s.interviews.FindByID(interviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInterviewNotFound
		}
		return nil, err
	}

	if interview.Status == model.StatusCompleted {
		return interview.Report()
	}

	if interview.Status != model.StatusInProgress {
		return nil, &model.InvalidTransitionError{From: interview.Status, To: model.StatusCompleted}
	}

	msgs, err := s.messages.ListByInterview(interviewID)
	if err != nil {
		return nil, err
	}

	if err := s.complete(ctx, interview, msgs); err != nil {
		return nil, err
	}

	return interview.Report()
}

func lastQuestionOf(msgs []model.Message) *model.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleInterviewer && msgs[i].QuestionNumber > 0 {
			return &msgs[i]
		}
	}
	return nil
}

func previousAnswersOf(msgs []model.Message) []string {
	var answers []string
	for _, m := range msgs {
		if m.Role == model.RoleCandidate {
			answers = append(answers, m.Content)
		}
	}
	return answers
}

func historyOf(msgs []model.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.Role)), m.Content)
	}
	return b.String()
}
