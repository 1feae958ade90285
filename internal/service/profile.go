package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/user/moodflix/internal/model"
	"github.com/user/moodflix/internal/repository"
	"github.com/user/moodflix/internal/utils"
)

// ErrUserNotFound 用户不存在
var ErrUserNotFound = errors.New("user not found")

// ProfileUser 个人资料头部信息
type ProfileUser struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Image       string    `json:"image,omitempty"`
	MemberSince time.Time `json:"memberSince"`
}

// ProfileNumbers 观影统计
type ProfileNumbers struct {
	MoviesWatched    int `json:"moviesWatched"`
	WatchlistCount   int `json:"watchlistCount"`
	MoodsTracked     int `json:"moodsTracked"`
	TotalWatchTime   int `json:"totalWatchTime"`
	MonthlyWatchTime int `json:"monthlyWatchTime"`
	WeeklyWatchTime  int `json:"weeklyWatchTime"`
	DailyAverage     int `json:"dailyAverage"`
}

// RecentMood 最近心情
type RecentMood struct {
	Mood    string    `json:"mood"`
	Date    time.Time `json:"date"`
	TimeAgo string    `json:"timeAgo"`
}

// GenreShare 类型占比
type GenreShare struct {
	Genre      string `json:"genre"`
	Percentage int    `json:"percentage"`
}

// RecentActivity 最近活动
type RecentActivity struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	TimeAgo     string    `json:"timeAgo"`
}

// ProfileStats 个人主页数据
type ProfileStats struct {
	User             ProfileUser      `json:"user"`
	Stats            ProfileNumbers   `json:"stats"`
	RecentMoods      []RecentMood     `json:"recentMoods"`
	FavoriteGenres   []GenreShare     `json:"favoriteGenres"`
	RecentActivities []RecentActivity `json:"recentActivities"`
}

type ProfileService struct {
	repos *repository.Repositories
}

func NewProfileService(repos *repository.Repositories) *ProfileService {
	return &ProfileService{repos: repos}
}

// ProfileCacheKey 个人统计缓存键
func ProfileCacheKey(userID int) string {
	return fmt.Sprintf("profile:stats:%d", userID)
}

// InvalidateStats 片单变化后清除统计缓存
func (s *ProfileService) InvalidateStats(userID int) {
	utils.CacheDelete(ProfileCacheKey(userID))
}

// Stats 汇总个人统计，结果缓存一分钟
func (s *ProfileService) Stats(userID int) (*ProfileStats, error) {
	key := ProfileCacheKey(userID)
	if cached, ok := utils.CacheGet(key); ok {
		return cached.(*ProfileStats), nil
	}

	user, err := s.repos.User.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	wl, err := s.repos.Watchlist.Stats(userID)
	if err != nil {
		return nil, err
	}
	moods, err := s.repos.Mood.Recent(userID, 10)
	if err != nil {
		return nil, err
	}
	activities, err := s.repos.Activity.ListByUser(userID, 10, 0)
	if err != nil {
		return nil, err
	}
	genreCounts, err := s.repos.Watchlist.GenreCounts(userID, 5)
	if err != nil {
		return nil, err
	}
	watchTime, err := s.repos.Watchlist.CompletedRuntime(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	stats := &ProfileStats{
		User: ProfileUser{
			Name:        user.DisplayName(),
			Email:       user.Email,
			Image:       user.Image,
			MemberSince: user.CreatedAt,
		},
		Stats:            BuildProfileNumbers(wl, len(moods), watchTime),
		RecentMoods:      make([]RecentMood, 0, len(moods)),
		FavoriteGenres:   GenreShares(genreCounts, wl.Total),
		RecentActivities: make([]RecentActivity, 0, len(activities)),
	}
	for _, m := range moods {
		stats.RecentMoods = append(stats.RecentMoods, RecentMood{Mood: m.Mood, Date: m.CreatedAt, TimeAgo: TimeAgo(m.CreatedAt, now)})
	}
	for _, a := range activities {
		stats.RecentActivities = append(stats.RecentActivities, RecentActivity{
			Type:        a.Type,
			Description: a.Description,
			Date:        a.CreatedAt,
			TimeAgo:     TimeAgo(a.CreatedAt, now),
		})
	}

	utils.CacheSet(key, stats, time.Minute)
	return stats, nil
}

// BuildProfileNumbers 由片单统计推算观影时长；本月按总时长的 30% 估算
func BuildProfileNumbers(wl *model.WatchlistStats, moodsTracked, totalWatchTime int) ProfileNumbers {
	monthly := int(math.Round(float64(totalWatchTime) * 0.3))
	return ProfileNumbers{
		MoviesWatched:    wl.Completed,
		WatchlistCount:   wl.Total,
		MoodsTracked:     moodsTracked,
		TotalWatchTime:   totalWatchTime,
		MonthlyWatchTime: monthly,
		WeeklyWatchTime:  int(math.Round(float64(monthly) / 4)),
		DailyAverage:     int(math.Round(float64(monthly) / 30)),
	}
}

// GenreShares 类型计数转为占片单总数的百分比
func GenreShares(counts []repository.GenreCount, total int) []GenreShare {
	shares := make([]GenreShare, 0, len(counts))
	for _, c := range counts {
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(c.Count) / float64(total) * 100))
		}
		shares = append(shares, GenreShare{Genre: c.Genre, Percentage: pct})
	}
	return shares
}

// TimeAgo 相对时间描述
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)
	days := int(diff.Hours() / 24)

	switch {
	case days == 0:
		hours := int(diff.Hours())
		if hours == 0 {
			return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
		}
		return fmt.Sprintf("%d hours ago", hours)
	case days == 1:
		return "1 day ago"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return plural(days/7, "week")
	default:
		return plural(days/30, "month")
	}
}

func plural(n int, unit string) string {
	if n > 1 {
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}
