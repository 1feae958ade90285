package repository

import (
	"github.com/user/moodflix/internal/model"
	"gorm.io/gorm"
)

type MoodRepository struct {
	db *gorm.DB
}

func NewMoodRepository(db *gorm.DB) *MoodRepository {
	return &MoodRepository{db: db}
}

// Create 记录心情
func (r *MoodRepository) Create(m *model.MoodEntry) error {
	return r.db.Create(m).Error
}

// Recent 最近的心情记录
func (r *MoodRepository) Recent(userID, limit int) ([]*model.MoodEntry, error) {
	var list []*model.MoodEntry
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
