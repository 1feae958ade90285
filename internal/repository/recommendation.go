package repository

import (
	"errors"
	"time"

	"github.com/user/moodflix/internal/model"
	"gorm.io/gorm"
)

type RecommendationRepository struct {
	db *gorm.DB
}

func NewRecommendationRepository(db *gorm.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// Create 保存推荐结果
func (r *RecommendationRepository) Create(rec *model.Recommendation) error {
	return r.db.Create(rec).Error
}

// FindBySession 根据会话 ID 查找推荐（仅限本人）
func (r *RecommendationRepository) FindBySession(userID int, sessionID string) (*model.Recommendation, error) {
	var rec model.Recommendation
	err := r.db.Where("user_id = ? AND session_id = ?", userID, sessionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListActive 用户未过期的推荐
func (r *RecommendationRepository) ListActive(userID, limit int) ([]*model.Recommendation, error) {
	var list []*model.Recommendation
	err := r.db.Where("user_id = ? AND status = ? AND expires_at > ?", userID, model.RecommendationActive, time.Now()).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// ExpireOld 将过期的推荐标记为 expired
func (r *RecommendationRepository) ExpireOld() (int64, error) {
	res := r.db.Model(&model.Recommendation{}).
		Where("status = ? AND expires_at <= ?", model.RecommendationActive, time.Now()).
		Update("status", model.RecommendationExpired)
	return res.RowsAffected, res.Error
}
