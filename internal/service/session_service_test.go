package service

import (
	"ai_interviewer_backend/internal/config"
	"ai_interviewer_backend/internal/model"
	"ai_interviewer_backend/internal/util"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ---- 内存版存储 ----

type fakeInterviewStore struct {
	mu   sync.Mutex
	byID map[uint]model.Interview
}

func newFakeInterviewStore() *fakeInterviewStore {
	return &fakeInterviewStore{byID: make(map[uint]model.Interview)}
}

func (s *fakeInterviewStore) put(iv model.Interview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[iv.ID] = iv
}

func (s *fakeInterviewStore) get(id uint) model.Interview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

func (s *fakeInterviewStore) FindByID(id uint) (*model.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := iv
	return &copied, nil
}

func (s *fakeInterviewStore) FindByToken(token string) (*model.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, iv := range s.byID {
		if iv.CandidateToken == token {
			copied := iv
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeInterviewStore) Save(interview *model.Interview) error {
	s.put(*interview)
	return nil
}

func (s *fakeInterviewStore) SaveWithStatus(interview *model.Interview, from model.InterviewStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[interview.ID]
	if !ok || stored.Status != from {
		return gorm.ErrRecordNotFound
	}
	s.byID[interview.ID] = *interview
	return nil
}

type fakeMessageStore struct {
	mu   sync.Mutex
	msgs map[uint][]model.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{msgs: make(map[uint][]model.Message)}
}

func (s *fakeMessageStore) Append(msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Seq = len(s.msgs[msg.InterviewID]) + 1
	s.msgs[msg.InterviewID] = append(s.msgs[msg.InterviewID], *msg)
	return nil
}

func (s *fakeMessageStore) ListByInterview(interviewID uint) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.msgs[interviewID]))
	copy(out, s.msgs[interviewID])
	return out, nil
}

// ---- Agent桩 ----

type stubEvaluator struct {
	mu     sync.Mutex
	scores []int
	calls  int
	err    error
}

func (s *stubEvaluator) Evaluate(ctx context.Context, interviewID uint, question, answer, rubric string) (*model.AnswerEvaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	score := s.scores[s.calls%len(s.scores)]
	s.calls++
	return &model.AnswerEvaluation{Score: score, Rationale: "rationale", Evidence: "evidence"}, nil
}

type stubGenerator struct {
	mu          sync.Mutex
	questionErr error
	calls       int
}

func (s *stubGenerator) GenerateQuestion(ctx context.Context, interviewID uint, focusArea string, difficulty float64, history string, questionsAsked int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.questionErr != nil {
		return "", s.questionErr
	}
	s.calls++
	return fmt.Sprintf("question about %s at %.1f", focusArea, difficulty), nil
}

func (s *stubGenerator) GenerateIntroduction(ctx context.Context, interviewID uint, roleText string, targetQuestions int) (string, error) {
	return "welcome to the interview", nil
}

type stubCompiler struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubCompiler) Compile(ctx context.Context, interview *model.Interview, transcript []model.Message) (*model.FinalReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.calls++
	return &model.FinalReport{InterviewScore: 7, Summary: "summary"}, nil
}

// ---- 装配 ----

type sessionFixture struct {
	interviews *fakeInterviewStore
	messages   *fakeMessageStore
	evaluator  *stubEvaluator
	generator  *stubGenerator
	compiler   *stubCompiler
	svc        *SessionService
}

func newSessionFixture(t *testing.T, targetQuestions int, areas []string) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		interviews: newFakeInterviewStore(),
		messages:   newFakeMessageStore(),
		evaluator:  &stubEvaluator{scores: []int{8}},
		generator:  &stubGenerator{},
		compiler:   &stubCompiler{},
	}
	f.svc = NewSessionService(f.interviews, f.messages, f.evaluator, f.generator, f.compiler, config.InterviewConfig{
		DefaultTargetQuestions: targetQuestions,
		DefaultDifficulty:      5,
		TokenTTLHours:          48,
	})

	match, err := json.Marshal(model.MatchAnalysis{MatchScore: 7, MatchSummary: "ok", FocusAreas: areas})
	require.NoError(t, err)

	expires := time.Now().Add(48 * time.Hour)
	f.interviews.put(model.Interview{
		BaseModel:         model.BaseModel{ID: 1},
		Status:            model.StatusAssigned,
		MatchAnalysisJSON: match,
		TargetQuestions:   targetQuestions,
		DifficultyStart:   5,
		CurrentDifficulty: 5,
		CandidateToken:    "tok-1",
		TokenExpiresAt:    &expires,
	})
	return f
}

func TestStartSession(t *testing.T) {
	t.Run("合法令牌开始会话", func(t *testing.T) {
		f := newSessionFixture(t, 3, []string{"Go并发", "系统设计", "数据库"})

		result, err := f.svc.StartSession(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.Equal(t, uint(1), result.InterviewID)
		assert.Equal(t, "welcome to the interview", result.Introduction)
		assert.Equal(t, "question about Go并发 at 5.0", result.FirstQuestion)

		iv := f.interviews.get(1)
		assert.Equal(t, model.StatusInProgress, iv.Status)
		assert.Equal(t, 1, iv.QuestionsAsked)
		assert.Equal(t, []string{"Go并发"}, iv.CoveredAreas())
		assert.Equal(t, "welcome to the interview", iv.IntroText)

		msgs, _ := f.messages.ListByInterview(1)
		require.Len(t, msgs, 1)
		assert.Equal(t, 1, msgs[0].Seq)
		assert.Equal(t, model.RoleInterviewer, msgs[0].Role)
		assert.Equal(t, 1, msgs[0].QuestionNumber)
		assert.Equal(t, "Go并发", msgs[0].FocusArea)
	})

	t.Run("无效令牌", func(t *testing.T) {
		f := newSessionFixture(t, 3, []string{"Go并发"})
		_, err := f.svc.StartSession(context.Background(), "nope")
		assert.ErrorIs(t, err, util.ErrInvalidToken)
	})

	t.Run("过期令牌不改变状态", func(t *testing.T) {
		f := newSessionFixture(t, 3, []string{"Go并发"})
		iv := f.interviews.get(1)
		expired := time.Now().Add(-time.Hour)
		iv.TokenExpiresAt = &expired
		f.interviews.put(iv)

		_, err := f.svc.StartSession(context.Background(), "tok-1")
		assert.ErrorIs(t, err, util.ErrTokenExpired)
		assert.Equal(t, model.StatusAssigned, f.interviews.get(1).Status)
	})

	t.Run("重复开始返回非法流转", func(t *testing.T) {
		f := newSessionFixture(t, 3, []string{"Go并发", "系统设计"})
		_, err := f.svc.StartSession(context.Background(), "tok-1")
		require.NoError(t, err)

		_, err = f.svc.StartSession(context.Background(), "tok-1")
		var transitionErr *model.InvalidTransitionError
		assert.ErrorAs(t, err, &transitionErr)
	})
}

func TestSubmitAnswerAdaptsDifficulty(t *testing.T) {
	f := newSessionFixture(t, 5, []string{"a1", "a2", "a3", "a4", "a5"})
	f.evaluator.scores = []int{8, 3}

	_, err := f.svc.StartSession(context.Background(), "tok-1")
	require.NoError(t, err)

	// 高分提高难度
	result, err := f.svc.SubmitAnswer(context.Background(), 1, "good answer", nil)
	require.NoError(t, err)
	assert.False(t, result.SessionComplete)
	assert.Equal(t, 8, result.Evaluation.Score)
	assert.Equal(t, 2, result.NextQuestionNumber)
	assert.Equal(t, "question about a2 at 5.5", result.Response)
	assert.InDelta(t, 5.5, f.interviews.get(1).CurrentDifficulty, 1e-9)

	// 低分降低难度
	result, err = f.svc.SubmitAnswer(context.Background(), 1, "weak answer", nil)
	require.NoError(t, err)
	assert.Equal(t, "question about a3 at 5.0", result.Response)
	assert.InDelta(t, 5.0, f.interviews.get(1).CurrentDifficulty, 1e-9)
}

func TestSessionCompletesOnQuestionCount(t *testing.T) {
	f := newSessionFixture(t, 2, []string{"a1", "a2", "a3"})

	_, err := f.svc.StartSession(context.Background(), "tok-1")
	require.NoError(t, err)

	result, err := f.svc.SubmitAnswer(context.Background(), 1, "answer one", nil)
	require.NoError(t, err)
	assert.False(t, result.SessionComplete)

	result, err = f.svc.SubmitAnswer(context.Background(), 1, "answer two", nil)
	require.NoError(t, err)
	assert.True(t, result.SessionComplete)
	assert.Equal(t, closingMessage, result.Response)

	iv := f.interviews.get(1)
	assert.Equal(t, model.StatusCompleted, iv.Status)
	report, err := iv.Report()
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 7, report.InterviewScore)
}

func TestSessionCompletesOnFocusAreaExhaustion(t *testing.T) {
	f := newSessionFixture(t, 10, []string{"a1", "a2", "a3"})

	_, err := f.svc.StartSession(context.Background(), "tok-1")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result, err := f.svc.SubmitAnswer(context.Background(), 1, "answer", nil)
		require.NoError(t, err)
		assert.False(t, result.SessionComplete)
	}

	result, err := f.svc.SubmitAnswer(context.Background(), 1, "answer", nil)
	require.NoError(t, err)
	assert.True(t, result.SessionComplete)

	iv := f.interviews.get(1)
	assert.Equal(t, model.StatusCompleted, iv.Status)
	assert.Equal(t, 3, iv.QuestionsAsked)
}

func TestTranscriptAlternatesAndSeqContiguous(t *testing.T) {
	f := newSessionFixture(t, 3, []string{"a1", "a2", "a3"})

	_, err := f.svc.StartSession(context.Background(), "tok-1")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.svc.SubmitAnswer(context.Background(), 1, "answer", nil)
		require.NoError(t, err)
	}

	msgs, err := f.svc.GetTranscript(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, msgs, 6)
	for i, m := range msgs {
		assert.Equal(t, i+1, m.Seq)
		if i%2 == 0 {
			assert.Equal(t, model.RoleInterviewer, m.Role)
		} else {
			assert.Equal(t, model.RoleCandidate, m.Role)
		}
	}
}

func TestSubmitAnswerEvaluationFailureLeavesStateUntouched(t *testing.T) {
	f := newSessionFixture(t, 3, []string{"a1", "a2"})

	_, err := f.svc.StartSession(context.Background(), "tok-1")
	require.NoError(t, err)
	before := f.interviews.get(1)

	f.evaluator.err = util.ErrEvaluationUnavailable
	_, err = f.svc.SubmitAnswer(context.Background(), 1, "answer", nil)
	assert.ErrorIs(t, err, util.ErrEvaluationUnavailable)

	after := f.interviews.get(1)
	assert.Equal(t, before.CurrentDifficulty, after.CurrentDifficulty)
	assert.Equal(t, before.QuestionsAsked, after.QuestionsAsked)

	msgs, _ := f.messages.ListByInterview(1)
	assert.Len(t, msgs, 1)

	// 评估恢复后可以重新提交同一回答
	f.evaluator.err = nil
	result, err := f.svc.SubmitAnswer(context.Background(), 1, "answer", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NextQuestionNumber)
}

func TestSubmitAnswerTurnInProgress(t *testing.T) {
	f := newSessionFixture(t, 3, []string{"a1", "a2"})

	_, err := f.svc.StartSession(context.Background(), "tok-1")
	require.NoError(t, err)

	mu := f.svc.lockFor(1)
	mu.Lock()
	defer mu.Unlock()

	_, err = f.svc.SubmitAnswer(context.Background(), 1, "answer", nil)
	assert.ErrorIs(t, err, util.ErrTurnInProgress)
}

func TestSubmitAnswerResumesAfterGenerationFailure(t *testing.T) {
	f := newSessionFixture(t, 3, []string{"a1", "a2"})

	_, err := f.svc.StartSession(context.Background(), "tok-1")
	require.NoError(t, err)

	genErr := errors.New("llm down")
	f.generator.questionErr = genErr
	_, err = f.svc.SubmitAnswer(context.Background(), 1, "answer", nil)
	assert.ErrorIs(t, err, genErr)

	// 回答已被接受
	msgs, _ := f.messages.ListByInterview(1)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleCandidate, msgs[1].Role)

	// 恢复后重试：直接出下一题，不重复评分
	f.generator.questionErr = nil
	evalCalls := f.evaluator.calls
	result, err := f.svc.SubmitAnswer(context.Background(), 1, "retry", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NextQuestionNumber)
	assert.Nil(t, result.Evaluation)
	assert.Equal(t, evalCalls, f.evaluator.calls)
}

func TestSubmitAnswerOnInactiveSession(t *testing.T) {
	f := newSessionFixture(t, 3, []string{"a1"})

	_, err := f.svc.SubmitAnswer(context.Background(), 1, "answer", nil)
	assert.ErrorIs(t, err, util.ErrSessionNotActive)

	_, err = f.svc.SubmitAnswer(context.Background(), 99, "answer", nil)
	assert.ErrorIs(t, err, util.ErrInterviewNotFound)
}

func TestCompleteSessionIdempotent(t *testing.T) {
	f := newSessionFixture(t, 1, []string{"a1"})

	_, err := f.svc.StartSession(context.Background(), "tok-1")
	require.NoError(t, err)
	_, err = f.svc.SubmitAnswer(context.Background(), 1, "answer", nil)
	require.NoError(t, err)
	require.Equal(t, 1, f.compiler.calls)

	report, err := f.svc.CompleteSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 7, report.InterviewScore)
	// 已完成的会话不再重新编译报告
	assert.Equal(t, 1, f.compiler.calls)
}

func TestCompleteSessionReportFailureKeepsInProgress(t *testing.T) {
	f := newSessionFixture(t, 1, []string{"a1"})

	_, err := f.svc.StartSession(context.Background(), "tok-1")
	require.NoError(t, err)

	compileErr := errors.New("narrator down")
	f.compiler.err = compileErr
	_, err = f.svc.SubmitAnswer(context.Background(), 1, "answer", nil)
	assert.ErrorIs(t, err, compileErr)

	iv := f.interviews.get(1)
	assert.Equal(t, model.StatusInProgress, iv.Status)
	assert.Empty(t, iv.ReportJSON)

	// 完结可重试
	f.compiler.err = nil
	report, err := f.svc.CompleteSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 7, report.InterviewScore)
	assert.Equal(t, model.StatusCompleted, f.interviews.get(1).Status)
}

type stubClassifier struct {
	classification string
}

func (s *stubClassifier) Classify(ctx context.Context, interviewID uint, question, message string) (*model.MessageClassification, error) {
	return &model.MessageClassification{Type: s.classification, Confidence: 0.9}, nil
}

func TestClassificationDeflections(t *testing.T) {
	testCases := []struct {
		name           string
		classification string
		wantContains   string
	}{
		{name: "澄清请求不消耗题目", classification: model.ClassificationClarification, wantContains: "Let me clarify"},
		{name: "跑题消息被拉回", classification: model.ClassificationOffTopic, wantContains: "stay focused"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSessionFixture(t, 3, []string{"a1", "a2"})
			f.svc.SetClassifier(&stubClassifier{classification: tc.classification})

			_, err := f.svc.StartSession(context.Background(), "tok-1")
			require.NoError(t, err)

			result, err := f.svc.SubmitAnswer(context.Background(), 1, "what do you mean?", nil)
			require.NoError(t, err)
			assert.False(t, result.SessionComplete)
			assert.Nil(t, result.Evaluation)
			assert.Contains(t, result.Response, tc.wantContains)

			// 不写入transcript，不改变进度
			msgs, _ := f.messages.ListByInterview(1)
			assert.Len(t, msgs, 1)
			assert.Equal(t, 1, f.interviews.get(1).QuestionsAsked)
		})
	}
}

type stubIntegrityJudge struct {
	certainty float64
	calls     int
}

func (s *stubIntegrityJudge) Assess(ctx context.Context, interviewID uint, question, answer string, telemetry model.Telemetry, previousAnswers []string) (*model.IntegrityAssessment, error) {
	s.calls++
	return &model.IntegrityAssessment{CheatCertainty: s.certainty}, nil
}

func TestIntegrityJudgeOnSuspiciousSubmission(t *testing.T) {
	f := newSessionFixture(t, 5, []string{"a1", "a2", "a3"})
	f.svc.cfg.IntegrityAgentEnabled = true
	judge := &stubIntegrityJudge{certainty: 80}
	f.svc.SetIntegrityJudge(judge)

	_, err := f.svc.StartSession(context.Background(), "tok-1")
	require.NoError(t, err)

	// 正常提交不触发
	_, err = f.svc.SubmitAnswer(context.Background(), 1, "answer", &model.Telemetry{ResponseTimeMS: 30000})
	require.NoError(t, err)
	assert.Equal(t, 0, judge.calls)

	// 粘贴触发评估并记录置信度
	_, err = f.svc.SubmitAnswer(context.Background(), 1, "pasted answer", &model.Telemetry{ResponseTimeMS: 30000, PasteDetected: true})
	require.NoError(t, err)
	assert.Equal(t, 1, judge.calls)

	msgs, _ := f.messages.ListByInterview(1)
	last := msgs[len(msgs)-2] // 最后一条候选人消息之后还有下一题
	require.Equal(t, model.RoleCandidate, last.Role)
	require.NotNil(t, last.CheatCertainty)
	assert.InDelta(t, 80, *last.CheatCertainty, 1e-9)
}
