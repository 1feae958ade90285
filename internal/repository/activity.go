package repository

import (
	"time"

	"github.com/user/moodflix/internal/model"
	"gorm.io/gorm"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create 记录一条活动
func (r *ActivityRepository) Create(a *model.Activity) error {
	if a.Category == "" {
		a.Category = model.ActivityCategory(a.Type)
	}
	return r.db.Create(a).Error
}

// ListByUser 按时间倒序分页获取
func (r *ActivityRepository) ListByUser(userID, limit, offset int) ([]*model.Activity, error) {
	var list []*model.Activity
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&list).Error
	return list, err
}

// CountByUser 用户活动总数
func (r *ActivityRepository) CountByUser(userID int) (int64, error) {
	var count int64
	err := r.db.Model(&model.Activity{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// DeleteOlderThan 删除指定天数之前的活动
func (r *ActivityRepository) DeleteOlderThan(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	res := r.db.Where("created_at < ?", cutoff).Delete(&model.Activity{})
	return res.RowsAffected, res.Error
}
