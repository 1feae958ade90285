package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// 常用活动类型
const (
	ActivityLogin                 = "login"
	ActivityLogout                = "logout"
	ActivitySignup                = "signup"
	ActivityMoodEntry             = "mood_entry"
	ActivityMovieSearch           = "movie_search"
	ActivityMovieView             = "movie_view"
	ActivityWatchlistAdd          = "watchlist_add"
	ActivityWatchlistRemove       = "watchlist_remove"
	ActivityWatchlistUpdate       = "watchlist_update"
	ActivityRecommendationRequest = "recommendation_request"
	ActivityProfileUpdate         = "profile_update"
)

// ActivityTypes 所有合法活动类型
var ActivityTypes = []string{
	"login", "logout", "signup",
	"mood_entry", "mood_update", "mood_delete",
	"movie_search", "movie_view", "movie_rate", "movie_review",
	"watchlist_add", "watchlist_remove", "watchlist_update",
	"recommendation_request", "recommendation_view", "recommendation_feedback",
	"profile_update", "settings_change",
	"share_movie", "share_profile",
	"friend_add", "friend_remove",
	"subscription_upgrade", "subscription_downgrade",
	"notification_read", "notification_click",
	"error_occurred", "support_request",
}

// Activity 用户活动日志（只追加）
type Activity struct {
	ID          int            `json:"id" gorm:"primaryKey"`
	UserID      int            `json:"user_id" gorm:"not null;index"`
	Type        string         `json:"type" gorm:"not null;index"`
	Category    string         `json:"category"`
	Description string         `json:"description" gorm:"not null"`
	Data        datatypes.JSON `json:"data"`
	MovieID     *int           `json:"movie_id"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
}

// ActivityCategory 根据活动类型推断分类
func ActivityCategory(activityType string) string {
	switch {
	case activityType == "login" || activityType == "logout" || activityType == "signup":
		return "authentication"
	case activityType == "settings_change":
		return "profile"
	case activityType == "error_occurred" || activityType == "support_request":
		return "system"
	}

	prefix, _, _ := strings.Cut(activityType, "_")
	switch prefix {
	case "mood", "movie", "watchlist", "recommendation", "profile", "notification":
		return prefix
	case "share", "friend":
		return "social"
	case "subscription":
		return "subscription"
	}
	return "system"
}
