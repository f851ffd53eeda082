package service

import (
	"ai_interviewer_backend/internal/config"
	"ai_interviewer_backend/internal/model"
	"ai_interviewer_backend/internal/repository"
	"ai_interviewer_backend/internal/util"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"
)

// 上传材料的类型
const (
	DocumentResume      = "resume"
	DocumentRole        = "role"
	DocumentJobOffering = "job_offering"
)

// InterviewService 面试的管理侧生命周期：创建、上传材料、匹配分析、指派候选人
type InterviewService struct {
	Repo      *repository.InterviewRepository
	Storage   *StorageService
	Analyzer  DocumentAnalyzer
	Extractor *util.DocumentExtractor
	Cfg       *config.Config
}

func NewInterviewService(repo *repository.InterviewRepository, storage *StorageService, analyzer DocumentAnalyzer, cfg *config.Config) *InterviewService {
	return &InterviewService{
		Repo:      repo,
		Storage:   storage,
		Analyzer:  analyzer,
		Extractor: util.NewDocumentExtractor(),
		Cfg:       cfg,
	}
}

type CreateInterviewInput struct {
	TargetQuestions int     `json:"targetQuestions"`
	DifficultyStart float64 `json:"difficultyStart"`
}

// Create 创建DRAFT状态的面试，未填写的配置取默认值
func (s *InterviewService) Create(input CreateInterviewInput) (*model.Interview, error) {
	target := input.TargetQuestions
	if target <= 0 {
		target = s.Cfg.Interview.DefaultTargetQuestions
	}
	difficulty := input.DifficultyStart
	if difficulty <= 0 {
		difficulty = s.Cfg.Interview.DefaultDifficulty
	}
	if difficulty < MinDifficulty {
		difficulty = MinDifficulty
	}
	if difficulty > MaxDifficulty {
		difficulty = MaxDifficulty
	}

	interview := &model.Interview{
		Status:            model.StatusDraft,
		TargetQuestions:   target,
		DifficultyStart:   difficulty,
		CurrentDifficulty: difficulty,
	}
	if err := s.Repo.Create(interview); err != nil {
		return nil, err
	}
	return interview, nil
}

func (s *InterviewService) Get(id uint) (*model.Interview, error) {
	interview, err := s.Repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInterviewNotFound
		}
		return nil, err
	}
	return interview, nil
}

func (s *InterviewService) List(page, limit int) ([]model.Interview, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.Repo.List(page, limit)
}

func (s *InterviewService) Delete(id uint) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return s.Repo.Delete(id)
}

// UploadDocument 上传候选人材料，仅DRAFT状态可上传
func (s *InterviewService) UploadDocument(ctx context.Context, id uint, docType string, file multipart.File, header *multipart.FileHeader) (*model.Interview, error) {
	interview, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if interview.Status != model.StatusDraft {
		return nil, &model.InvalidTransitionError{From: interview.Status, To: model.StatusDraft}
	}

	if !s.Extractor.IsSupportedFormat(header.Filename) {
		return nil, fmt.Errorf("unsupported document format: %s", filepath.Ext(header.Filename))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	key := fmt.Sprintf("interviews/%d/%s_%s%s", id, docType, model.GenerateUUID()[:8], ext)

	if _, err := s.Storage.Upload(ctx, key, file, header.Size, header.Header.Get("Content-Type")); err != nil {
		return nil, err
	}

	switch docType {
	case DocumentResume:
		interview.ResumePath = key
	case DocumentRole:
		interview.RolePath = key
	case DocumentJobOffering:
		interview.JobOfferingPath = key
	default:
		return nil, fmt.Errorf("unknown document type: %s", docType)
	}

	if err := s.Repo.Save(interview); err != nil {
		return nil, err
	}
	return interview, nil
}

func (s *InterviewService) documentText(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	rc, err := s.Storage.Download(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return s.Extractor.ExtractFromReader(rc, key)
}

// AnalyzeMatch 对已上传材料执行匹配分析并流转 DRAFT -> READY。
// 分析失败时不落库，面试停留在DRAFT可重试。
func (s *InterviewService) AnalyzeMatch(ctx context.Context, id uint) (*model.MatchAnalysis, error) {
	interview, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if interview.Status != model.StatusDraft {
		return nil, &model.InvalidTransitionError{From: interview.Status, To: model.StatusReady}
	}

	if interview.ResumePath == "" || interview.RolePath == "" {
		return nil, util.ErrDocumentsMissing
	}

	resumeText, err := s.documentText(ctx, interview.ResumePath)
	if err != nil {
		return nil, err
	}
	roleText, err := s.documentText(ctx, interview.RolePath)
	if err != nil {
		return nil, err
	}
	jobOfferingText, err := s.documentText(ctx, interview.JobOfferingPath)
	if err != nil {
		return nil, err
	}

	analysis, err := s.Analyzer.AnalyzeMatch(ctx, id, resumeText, roleText, jobOfferingText)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(analysis)
	if err != nil {
		return nil, err
	}
	interview.MatchAnalysisJSON = data

	if err := interview.TransitionTo(model.StatusReady); err != nil {
		return nil, err
	}
	if err := s.Repo.SaveWithStatus(interview, model.StatusDraft); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &model.InvalidTransitionError{From: interview.Status, To: model.StatusReady}
		}
		return nil, err
	}
	return analysis, nil
}

type AssignResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Assign 生成候选人访问令牌并流转 READY -> ASSIGNED
func (s *InterviewService) Assign(id uint) (*AssignResult, error) {
	interview, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if err := interview.TransitionTo(model.StatusAssigned); err != nil {
		return nil, err
	}

	token, err := generateCandidateToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().Add(time.Duration(s.Cfg.Interview.TokenTTLHours) * time.Hour)

	interview.CandidateToken = token
	interview.TokenExpiresAt = &expiresAt

	if err := s.Repo.SaveWithStatus(interview, model.StatusReady); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &model.InvalidTransitionError{From: model.StatusAssigned, To: model.StatusAssigned}
		}
		return nil, err
	}

	return &AssignResult{Token: token, ExpiresAt: expiresAt}, nil
}

// Report 获取最终报告，未完成的面试没有报告
func (s *InterviewService) Report(id uint) (*model.FinalReport, error) {
	interview, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if interview.Status != model.StatusCompleted {
		return nil, &model.InvalidTransitionError{From: interview.Status, To: model.StatusCompleted}
	}
	return interview.Report()
}

// generateCandidateToken 生成不可猜测的URL安全令牌
func generateCandidateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
