package repository

import (
	"ai_interviewer_backend/internal/model"

	"gorm.io/gorm"
)

type MessageRepository struct {
	DB *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{DB: db}
}

// Append 在事务内分配连续序号并追加消息，消息一经写入不再修改
func (r *MessageRepository) Append(msg *model.Message) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var maxSeq int
		err := tx.Model(&model.Message{}).
			Where("interview_id = ?", msg.InterviewID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error
		if err != nil {
			return err
		}
		msg.Seq = maxSeq + 1
		return tx.Create(msg).Error
	})
}

func (r *MessageRepository) ListByInterview(interviewID uint) ([]model.Message, error) {
	var msgs []model.Message
	err := r.DB.Where("interview_id = ?", interviewID).Order("seq asc").Find(&msgs).Error
	return msgs, err
}
