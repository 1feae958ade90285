// Package watchlist 是设备端的片单客户端：未登录时读写本地存储，
// 登录后直接调用服务端接口，并负责把本地片单一次性迁移到账号下。
package watchlist

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/user/moodflix/internal/model"
)

// ErrNotFound 片单中没有该电影
var ErrNotFound = errors.New("movie is not in the watchlist")

// 导出格式版本
const (
	LocalExportVersion  = "1.0"
	RemoteExportVersion = "2.0"
)

// Item 片单条目，本地与服务端统一用目录 ID 标识
type Item struct {
	TMDBID       int             `json:"tmdb_id"`
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
	Source       string          `json:"source,omitempty"`
	AddedAt      time.Time       `json:"added_at"`
	Watched      bool            `json:"watched"`
	WatchedAt    *time.Time      `json:"watched_at"`
	Status       string          `json:"status"`
}

// Export 导出内容
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Total      int       `json:"total"`
	Stats      Stats     `json:"stats"`
	Items      []Item    `json:"items"`
}

// Stats 与服务端 /api/watchlist/stats 相同的结构
type Stats = model.WatchlistStats

// Store 片单存储策略
type Store interface {
	List(ctx context.Context) ([]Item, error)
	// Add 按目录 ID 幂等：已存在时原地更新，不产生重复
	Add(ctx context.Context, item Item) (Item, error)
	Remove(ctx context.Context, tmdbID int) error
	// ToggleWatched completed 变为 pending，其余状态都变为 completed。
	// 只有 pending 与 completed 能连续切换两次回到原状态；
	// watching 或 abandoned 切换两次后是 pending。
	ToggleWatched(ctx context.Context, tmdbID int) (Item, error)
	Contains(ctx context.Context, tmdbID int) (bool, error)
	Stats(ctx context.Context) (Stats, error)
	Clear(ctx context.Context) error
	Export(ctx context.Context) (*Export, error)
}

// toggledStatus 已完成回到 pending，其余状态标记完成
func toggledStatus(status string) string {
	if status == model.StatusCompleted {
		return model.StatusPending
	}
	return model.StatusCompleted
}

// movieData 提交给服务端的电影信息。没有标题时不带电影字段，
// 由服务端按目录 ID 查询，只保留来源标记；来源也为空时返回 nil。
func (it Item) movieData(source string) map[string]interface{} {
	if source == "" {
		source = it.Source
	}
	if strings.TrimSpace(it.Title) == "" {
		if source == "" {
			return nil
		}
		return map[string]interface{}{"source": source}
	}
	genres := []string(it.Genres)
	if genres == nil {
		genres = []string{}
	}
	return map[string]interface{}{
		"title":         it.Title,
		"overview":      it.Overview,
		"poster_path":   it.PosterPath,
		"backdrop_path": it.BackdropPath,
		"release_date":  it.ReleaseDate,
		"runtime":       it.Runtime,
		"genres":        genres,
		"vote_average":  it.VoteAverage,
		"vote_count":    it.VoteCount,
		"popularity":    it.Popularity,
		"source":        source,
	}
}

// fromServer 服务端条目转为统一结构
func fromServer(w *model.WatchlistItem) Item {
	it := Item{
		Status:    w.Status,
		Source:    w.Source,
		AddedAt:   w.AddedAt,
		Watched:   w.Status == model.StatusCompleted,
		WatchedAt: w.CompletedAt,
	}
	if m := w.Movie; m != nil {
		it.TMDBID = m.TMDBID
		it.Title = m.Title
		it.Overview = m.Overview
		it.PosterPath = m.PosterPath
		it.BackdropPath = m.BackdropPath
		it.ReleaseDate = m.ReleaseDate
		it.Runtime = m.Runtime
		it.Genres = model.GenreList(m.Genres)
		it.VoteAverage = m.VoteAverage
		it.VoteCount = m.VoteCount
		it.Popularity = m.Popularity
	}
	return it
}
