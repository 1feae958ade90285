package model

import (
	"time"

	"gorm.io/datatypes"
)

// 推荐记录状态
const (
	RecommendationActive   = "active"
	RecommendationExpired  = "expired"
	RecommendationArchived = "archived"
)

// RecommendationTTL 推荐结果有效期
const RecommendationTTL = 24 * time.Hour

// Recommendation 一次推荐请求及其结果
type Recommendation struct {
	ID              int            `json:"id" gorm:"primaryKey"`
	UserID          int            `json:"user_id" gorm:"not null;index"`
	SessionID       string         `json:"session_id" gorm:"uniqueIndex"`
	Mood            string         `json:"mood"`
	Situation       string         `json:"situation"`
	TimeAvailable   string         `json:"time_available"`
	Movies          datatypes.JSON `json:"movies"`
	OverallAnalysis string         `json:"overall_analysis"`
	Algorithm       string         `json:"algorithm" gorm:"default:mood_based"`
	Source          string         `json:"source"`
	Status          string         `json:"status" gorm:"default:active;index"`
	ExpiresAt       time.Time      `json:"expires_at" gorm:"index"`
	CreatedAt       time.Time      `json:"created_at"`
}
