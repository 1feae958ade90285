package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/user/moodflix/internal/model"
	"github.com/user/moodflix/internal/repository"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

// unknownTitle 缺少标题时的占位名称
const unknownTitle = "Unknown Title"

var (
	// ErrMovieNotFound 目录中没有该电影且请求未携带电影信息
	ErrMovieNotFound = errors.New("movie not found")
	// ErrItemNotFound 片单中没有该条目
	ErrItemNotFound = errors.New("watchlist item not found")
	// ErrInvalidUpdate 更新字段格式错误
	ErrInvalidUpdate = errors.New("invalid update")
)

// genreMapping 允许入库的类型名称
var genreMapping = map[string]string{
	"Action":          "Action",
	"Adventure":       "Adventure",
	"Animation":       "Animation",
	"Comedy":          "Comedy",
	"Crime":           "Crime",
	"Documentary":     "Documentary",
	"Drama":           "Drama",
	"Family":          "Family",
	"Fantasy":         "Fantasy",
	"Horror":          "Horror",
	"Mystery":         "Mystery",
	"Romance":         "Romance",
	"Science Fiction": "Sci-Fi",
	"Sci-Fi":          "Sci-Fi",
	"Thriller":        "Thriller",
	"War":             "War",
	"Western":         "Western",
}

// MovieData 客户端添加片单时附带的电影信息
type MovieData struct {
	Title        string          `json:"title"`
	Overview     string          `json:"overview"`
	PosterPath   string          `json:"poster_path"`
	BackdropPath string          `json:"backdrop_path"`
	ReleaseDate  string          `json:"release_date"`
	Runtime      int             `json:"runtime"`
	Genres       model.GenreList `json:"genres"`
	VoteAverage  float64         `json:"vote_average"`
	VoteCount    int             `json:"vote_count"`
	Popularity   float64         `json:"popularity"`
	Source       string          `json:"source"`
}

// WatchlistUpdate PATCH 允许修改的字段，nil 表示不修改
type WatchlistUpdate struct {
	Status             *string   `json:"status" binding:"omitempty,watchstatus"`
	UserRating         *int      `json:"userRating" binding:"omitempty,min=0,max=10"`
	Notes              *string   `json:"notes" binding:"omitempty,max=1000"`
	WatchProgress      *int      `json:"watchProgress" binding:"omitempty,min=0,max=100"`
	Priority           *string   `json:"priority" binding:"omitempty,priority"`
	Tags               *[]string `json:"tags"`
	Reminder           *string   `json:"reminder"`
	MoodWhenAdded      *string   `json:"moodWhenAdded" binding:"omitempty,mood"`
	SituationWhenAdded *string   `json:"situationWhenAdded" binding:"omitempty,situation"`
	TimeAvailable      *string   `json:"timeAvailable" binding:"omitempty,timeslot"`
}

// WatchlistStore 片单服务用到的条目存取方法
type WatchlistStore interface {
	ListByUser(userID int, status string) ([]*model.WatchlistItem, error)
	FindByTMDBID(userID, tmdbID int) (*model.WatchlistItem, error)
	Create(item *model.WatchlistItem) error
	Update(item *model.WatchlistItem, updates map[string]interface{}) error
	Delete(userID, id int) (bool, error)
	DeleteAll(userID int) (int64, error)
	Stats(userID int) (*model.WatchlistStats, error)
}

// MovieStore 电影缓存存取
type MovieStore interface {
	FindByTMDBID(tmdbID int) (*model.Movie, error)
	CreateIfAbsent(movie *model.Movie) (*model.Movie, error)
	Upsert(movie *model.Movie) error
}

// ActivityWriter 活动日志写入
type ActivityWriter interface {
	Create(a *model.Activity) error
}

// WatchlistStores 片单服务的存储依赖
type WatchlistStores struct {
	Watchlist  WatchlistStore
	Movies     MovieStore
	Activities ActivityWriter
}

type WatchlistService struct {
	stores WatchlistStores
	tmdb   MovieLookup
	group  singleflight.Group
}

// NewWatchlistService 使用数据库仓库创建服务；repos 为 nil 时只能做参数校验
func NewWatchlistService(repos *repository.Repositories, tmdb MovieLookup) *WatchlistService {
	var stores WatchlistStores
	if repos != nil {
		stores = WatchlistStores{
			Watchlist:  repos.Watchlist,
			Movies:     repos.Movie,
			Activities: repos.Activity,
		}
	}
	return NewWatchlistServiceWith(stores, tmdb)
}

// NewWatchlistServiceWith 使用指定存储创建服务
func NewWatchlistServiceWith(stores WatchlistStores, tmdb MovieLookup) *WatchlistService {
	return &WatchlistService{stores: stores, tmdb: tmdb}
}

// List 用户片单
func (s *WatchlistService) List(userID int, status string) ([]*model.WatchlistItem, error) {
	return s.stores.Watchlist.ListByUser(userID, status)
}

// Get 按目录 ID 获取条目
func (s *WatchlistService) Get(userID, tmdbID int) (*model.WatchlistItem, error) {
	item, err := s.stores.Watchlist.FindByTMDBID(userID, tmdbID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// Add 加入片单。已存在时返回已有条目和 repository.ErrAlreadyInWatchlist
func (s *WatchlistService) Add(ctx context.Context, userID, tmdbID int, data *MovieData) (*model.WatchlistItem, error) {
	movie, err := s.resolveMovie(ctx, tmdbID, data)
	if err != nil {
		return nil, err
	}

	existing, err := s.stores.Watchlist.FindByTMDBID(userID, tmdbID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, repository.ErrAlreadyInWatchlist
	}

	source := "manual"
	if data != nil && data.Source != "" {
		source = data.Source
	}

	item := &model.WatchlistItem{
		UserID:   userID,
		MovieID:  movie.ID,
		Status:   model.StatusPending,
		Priority: "medium",
		Source:   source,
		AddedAt:  time.Now(),
	}
	if err := s.stores.Watchlist.Create(item); err != nil {
		if errors.Is(err, repository.ErrAlreadyInWatchlist) {
			// 并发插入，返回胜出的那条
			existing, ferr := s.stores.Watchlist.FindByTMDBID(userID, tmdbID)
			if ferr != nil {
				return nil, fmt.Errorf("load existing watchlist item %d: %w", tmdbID, ferr)
			}
			return existing, err
		}
		return nil, err
	}
	item.Movie = movie

	s.track(userID, model.ActivityWatchlistAdd, fmt.Sprintf("Added %q to watchlist", movie.Title), &movie.ID, map[string]interface{}{
		"movieTitle": movie.Title,
		"tmdbId":     tmdbID,
		"source":     source,
	})

	return item, nil
}

// resolveMovie 查找本地电影缓存，不存在时用客户端数据或 TMDB 详情创建。
// 没有标题的客户端数据不可用，改查 TMDB；缓存中的占位记录拿到完整数据后会被刷新。
func (s *WatchlistService) resolveMovie(ctx context.Context, tmdbID int, data *MovieData) (*model.Movie, error) {
	if !data.usable() {
		data = nil
	}

	val, err, _ := s.group.Do(strconv.Itoa(tmdbID), func() (interface{}, error) {
		movie, err := s.stores.Movies.FindByTMDBID(tmdbID)
		if err != nil {
			return nil, err
		}
		if movie != nil && !isPlaceholderMovie(movie) {
			return movie, nil
		}

		fresh := data
		if fresh == nil {
			fresh = s.fetchMovieData(ctx, tmdbID)
		}

		if movie != nil {
			if fresh == nil {
				return movie, nil
			}
			return s.refreshMovie(movie, fresh), nil
		}
		if fresh == nil {
			return nil, ErrMovieNotFound
		}
		return s.stores.Movies.CreateIfAbsent(NewMovieFromData(tmdbID, fresh))
	})
	if err != nil {
		return nil, err
	}
	movie, _ := val.(*model.Movie)
	if movie == nil {
		return nil, ErrMovieNotFound
	}
	return movie, nil
}

// refreshMovie 用完整数据覆盖占位记录，失败时沿用旧记录
func (s *WatchlistService) refreshMovie(stale *model.Movie, data *MovieData) *model.Movie {
	updated := NewMovieFromData(stale.TMDBID, data)
	if err := s.stores.Movies.Upsert(updated); err != nil {
		log.Printf("[Watchlist] 刷新电影 %d 失败: %v", stale.TMDBID, err)
		return stale
	}
	if updated.ID == 0 {
		updated.ID = stale.ID
	}
	updated.CreatedAt = stale.CreatedAt
	return updated
}

// usable 至少要有标题才用来建电影缓存
func (d *MovieData) usable() bool {
	return d != nil && strings.TrimSpace(d.Title) != ""
}

// isPlaceholderMovie 以前由不完整数据创建的记录
func isPlaceholderMovie(m *model.Movie) bool {
	return strings.TrimSpace(m.Title) == "" || m.Title == unknownTitle
}

func (s *WatchlistService) fetchMovieData(ctx context.Context, tmdbID int) *MovieData {
	if s.tmdb == nil {
		return nil
	}
	details, err := s.tmdb.Details(ctx, tmdbID)
	if err != nil {
		log.Printf("[Watchlist] 从 TMDB 获取电影 %d 失败: %v", tmdbID, err)
		return nil
	}
	return &MovieData{
		Title:        details.Title,
		Overview:     details.Overview,
		PosterPath:   details.PosterPath,
		BackdropPath: details.BackdropPath,
		ReleaseDate:  details.ReleaseDate,
		Runtime:      details.Runtime,
		Genres:       details.GenreNames(),
		VoteAverage:  details.VoteAverage,
		VoteCount:    details.VoteCount,
		Popularity:   details.Popularity,
	}
}

// NewMovieFromData 用客户端数据构造电影，缺失字段使用默认值
func NewMovieFromData(tmdbID int, data *MovieData) *model.Movie {
	movie := &model.Movie{
		TMDBID:        tmdbID,
		Title:         orDefault(data.Title, unknownTitle),
		Overview:      orDefault(data.Overview, "No overview available"),
		PosterPath:    orDefault(data.PosterPath, PlaceholderImage),
		BackdropPath:  orDefault(data.BackdropPath, PlaceholderImage),
		ReleaseDate:   orDefault(data.ReleaseDate, time.Now().Format("2006-01-02")),
		Runtime:       data.Runtime,
		Genres:        MapGenres(data.Genres),
		VoteAverage:   data.VoteAverage,
		VoteCount:     data.VoteCount,
		Popularity:    data.Popularity,
		ContentRating: "PG-13",
		Status:        "Released",
	}
	if movie.Runtime <= 0 {
		movie.Runtime = 90
	}
	return movie
}

// MapGenres 过滤并规范化类型，最多 3 个，为空时默认 Drama
func MapGenres(genres []string) []string {
	mapped := make([]string, 0, 3)
	for _, g := range genres {
		if m, ok := genreMapping[g]; ok {
			mapped = append(mapped, m)
			if len(mapped) == 3 {
				break
			}
		}
	}
	if len(mapped) == 0 {
		return []string{"Drama"}
	}
	return mapped
}

// Update 修改条目，首次标记完成时写入完成时间
func (s *WatchlistService) Update(userID, tmdbID int, upd WatchlistUpdate) (*model.WatchlistItem, error) {
	item, err := s.Get(userID, tmdbID)
	if err != nil {
		return nil, err
	}

	updates, err := upd.toColumns(item)
	if err != nil {
		return nil, err
	}
	if err := s.stores.Watchlist.Update(item, updates); err != nil {
		return nil, err
	}

	if upd.Status != nil {
		s.track(userID, model.ActivityWatchlistUpdate,
			fmt.Sprintf("Marked %q as %s", item.Movie.Title, *upd.Status), &item.MovieID, nil)
	}

	return s.Get(userID, tmdbID)
}

// toColumns 转为数据库列更新
func (u WatchlistUpdate) toColumns(current *model.WatchlistItem) (map[string]interface{}, error) {
	cols := map[string]interface{}{}
	if u.Status != nil {
		cols["status"] = *u.Status
		if *u.Status == model.StatusCompleted && current.CompletedAt == nil {
			cols["completed_at"] = time.Now()
		}
	}
	if u.UserRating != nil {
		cols["user_rating"] = *u.UserRating
	}
	if u.Notes != nil {
		cols["notes"] = *u.Notes
	}
	if u.WatchProgress != nil {
		cols["watch_progress"] = *u.WatchProgress
	}
	if u.Priority != nil {
		cols["priority"] = *u.Priority
	}
	if u.Tags != nil {
		cols["tags"] = pq.StringArray(*u.Tags)
	}
	if u.Reminder != nil {
		if *u.Reminder == "" {
			cols["reminder"] = nil
		} else {
			t, err := time.Parse(time.RFC3339, *u.Reminder)
			if err != nil {
				return nil, fmt.Errorf("%w: reminder must be an RFC3339 timestamp", ErrInvalidUpdate)
			}
			cols["reminder"] = t
		}
	}
	if u.MoodWhenAdded != nil {
		cols["mood_when_added"] = *u.MoodWhenAdded
	}
	if u.SituationWhenAdded != nil {
		cols["situation_when_added"] = *u.SituationWhenAdded
	}
	if u.TimeAvailable != nil {
		cols["time_available"] = *u.TimeAvailable
	}
	return cols, nil
}

// Remove 删除单个条目
func (s *WatchlistService) Remove(userID, tmdbID int) error {
	item, err := s.Get(userID, tmdbID)
	if err != nil {
		return err
	}
	ok, err := s.stores.Watchlist.Delete(userID, item.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrItemNotFound
	}

	s.track(userID, model.ActivityWatchlistRemove, fmt.Sprintf("Removed %q from watchlist", item.Movie.Title), &item.MovieID, nil)
	return nil
}

// Clear 清空片单
func (s *WatchlistService) Clear(userID int) (int64, error) {
	n, err := s.stores.Watchlist.DeleteAll(userID)
	if err != nil {
		return 0, err
	}
	log.Printf("[Watchlist] 已删除用户 %d 的 %d 条片单", userID, n)
	return n, nil
}

// Stats 片单统计
func (s *WatchlistService) Stats(userID int) (*model.WatchlistStats, error) {
	return s.stores.Watchlist.Stats(userID)
}

// track 记录活动，失败不影响主流程
func (s *WatchlistService) track(userID int, typ, desc string, movieID *int, data map[string]interface{}) {
	if s.stores.Activities == nil {
		return
	}
	a := &model.Activity{
		UserID:      userID,
		Type:        typ,
		Description: desc,
		MovieID:     movieID,
	}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			a.Data = datatypes.JSON(b)
		}
	}
	if err := s.stores.Activities.Create(a); err != nil {
		log.Printf("[Watchlist] 记录活动失败: %v", err)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
