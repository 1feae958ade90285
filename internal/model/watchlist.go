package model

import (
	"time"

	"github.com/lib/pq"
)

// 片单状态
const (
	StatusPending   = "pending"
	StatusWatching  = "watching"
	StatusCompleted = "completed"
	StatusAbandoned = "abandoned"
)

// WatchlistStatuses 所有合法状态
var WatchlistStatuses = []string{StatusPending, StatusWatching, StatusCompleted, StatusAbandoned}

// 优先级
var Priorities = []string{"low", "medium", "high", "urgent"}

// WatchlistItem 用户片单条目，(user_id, movie_id) 唯一
type WatchlistItem struct {
	ID                 int            `json:"id" gorm:"primaryKey"`
	UserID             int            `json:"user_id" gorm:"not null;uniqueIndex:idx_watchlist_user_movie;index:idx_watchlist_user_status"`
	MovieID            int            `json:"movie_id" gorm:"not null;uniqueIndex:idx_watchlist_user_movie"`
	Movie              *Movie         `json:"movie,omitempty" gorm:"foreignKey:MovieID"`
	Status             string         `json:"status" gorm:"default:pending;index:idx_watchlist_user_status"`
	Priority           string         `json:"priority" gorm:"default:medium"`
	UserRating         *int           `json:"user_rating"`
	Notes              string         `json:"notes"`
	WatchProgress      int            `json:"watch_progress"`
	Tags               pq.StringArray `json:"tags" gorm:"type:text[]"`
	Reminder           *time.Time     `json:"reminder"`
	MoodWhenAdded      string         `json:"mood_when_added"`
	SituationWhenAdded string         `json:"situation_when_added"`
	TimeAvailable      string         `json:"time_available"`
	Source             string         `json:"source" gorm:"default:manual"`
	AddedAt            time.Time      `json:"added_at"`
	CompletedAt        *time.Time     `json:"completed_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// TMDBID 条目对应的目录 ID
func (w *WatchlistItem) TMDBID() int {
	if w.Movie == nil {
		return 0
	}
	return w.Movie.TMDBID
}

// WatchlistStats 片单统计
type WatchlistStats struct {
	Total               int `json:"total"`
	Pending             int `json:"pending"`
	Watching            int `json:"watching"`
	Completed           int `json:"completed"`
	Abandoned           int `json:"abandoned"`
	CompletedPercentage int `json:"completedPercentage"`
}
