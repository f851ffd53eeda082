package repository

import (
	"ai_interviewer_backend/internal/model"

	"gorm.io/gorm"
)

type InterviewRepository struct {
	DB *gorm.DB
}

func NewInterviewRepository(db *gorm.DB) *InterviewRepository {
	return &InterviewRepository{DB: db}
}

func (r *InterviewRepository) Create(interview *model.Interview) error {
	return r.DB.Create(interview).Error
}

func (r *InterviewRepository) FindByID(id uint) (*model.Interview, error) {
	var iv model.Interview
	err := r.DB.First(&iv, id).Error
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

func (r *InterviewRepository) FindByToken(token string) (*model.Interview, error) {
	var iv model.Interview
	err := r.DB.Where("candidate_token = ?", token).First(&iv).Error
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

func (r *InterviewRepository) List(page, limit int) ([]model.Interview, int64, error) {
	var ivs []model.Interview
	var total int64
	query := r.DB.Model(&model.Interview{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&ivs).Error
	return ivs, total, err
}

// Save 全量保存，要求数据库中的状态仍等于fromStatus，防止并发下的状态被外部推进后覆盖
func (r *InterviewRepository) SaveWithStatus(interview *model.Interview, fromStatus model.InterviewStatus) error {
	res := r.DB.Model(&model.Interview{}).
		Where("id = ? AND status = ?", interview.ID, fromStatus).
		Select("*").
		Omit("id", "created_at").
		Updates(interview)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *InterviewRepository) Save(interview *model.Interview) error {
	return r.DB.Save(interview).Error
}

func (r *InterviewRepository) Delete(id uint) error {
	return r.DB.Select("Messages").Delete(&model.Interview{BaseModel: model.BaseModel{ID: id}}).Error
}
