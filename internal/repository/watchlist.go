package repository

import (
	"errors"
	"math"

	"github.com/user/moodflix/internal/model"
	"gorm.io/gorm"
)

// ErrAlreadyInWatchlist 片单中已存在该电影
var ErrAlreadyInWatchlist = errors.New("movie already in watchlist")

type WatchlistRepository struct {
	db *gorm.DB
}

func NewWatchlistRepository(db *gorm.DB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// ListByUser 获取用户片单，status 为空时返回全部
func (r *WatchlistRepository) ListByUser(userID int, status string) ([]*model.WatchlistItem, error) {
	var items []*model.WatchlistItem
	q := r.db.Preload("Movie").Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("added_at DESC").Find(&items).Error
	return items, err
}

// FindByTMDBID 按目录 ID 查找用户的片单条目
func (r *WatchlistRepository) FindByTMDBID(userID, tmdbID int) (*model.WatchlistItem, error) {
	var item model.WatchlistItem
	err := r.db.Preload("Movie").
		Joins("JOIN movies ON movies.id = watchlist_items.movie_id").
		Where("watchlist_items.user_id = ? AND movies.tmdb_id = ?", userID, tmdbID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Create 新增条目，违反 (user_id, movie_id) 唯一约束时返回 ErrAlreadyInWatchlist
func (r *WatchlistRepository) Create(item *model.WatchlistItem) error {
	err := r.db.Omit("Movie").Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyInWatchlist
	}
	return err
}

// Update 按字段更新条目
func (r *WatchlistRepository) Update(item *model.WatchlistItem, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(item).Omit("Movie").Updates(updates).Error
}

// Delete 删除单个条目，返回是否删除成功
func (r *WatchlistRepository) Delete(userID, id int) (bool, error) {
	res := r.db.Where("user_id = ? AND id = ?", userID, id).Delete(&model.WatchlistItem{})
	return res.RowsAffected > 0, res.Error
}

// DeleteAll 清空用户片单
func (r *WatchlistRepository) DeleteAll(userID int) (int64, error) {
	res := r.db.Where("user_id = ?", userID).Delete(&model.WatchlistItem{})
	return res.RowsAffected, res.Error
}

// Stats 按状态聚合统计
func (r *WatchlistRepository) Stats(userID int) (*model.WatchlistStats, error) {
	var row struct {
		Total     int
		Pending   int
		Watching  int
		Completed int
		Abandoned int
	}
	err := r.db.Model(&model.WatchlistItem{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN status = 'watching' THEN 1 ELSE 0 END), 0) AS watching,
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(CASE WHEN status = 'abandoned' THEN 1 ELSE 0 END), 0) AS abandoned`).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats := &model.WatchlistStats{
		Total:     row.Total,
		Pending:   row.Pending,
		Watching:  row.Watching,
		Completed: row.Completed,
		Abandoned: row.Abandoned,
	}
	stats.CompletedPercentage = CompletedPercentage(stats.Completed, stats.Total)
	return stats, nil
}

// CompletedPercentage 完成率（四舍五入到整数）
func CompletedPercentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// CompletedRuntime 已看完电影的总时长（分钟）
func (r *WatchlistRepository) CompletedRuntime(userID int) (int, error) {
	var total int
	err := r.db.Model(&model.WatchlistItem{}).
		Select("COALESCE(SUM(movies.runtime), 0)").
		Joins("JOIN movies ON movies.id = watchlist_items.movie_id").
		Where("watchlist_items.user_id = ? AND watchlist_items.status = ?", userID, model.StatusCompleted).
		Scan(&total).Error
	return total, err
}

// GenreCount 类型计数
type GenreCount struct {
	Genre string
	Count int
}

// GenreCounts 统计用户片单中各类型出现次数，按次数降序
func (r *WatchlistRepository) GenreCounts(userID, limit int) ([]GenreCount, error) {
	var counts []GenreCount
	err := r.db.Raw(`
		SELECT g.genre AS genre, COUNT(*) AS count
		FROM watchlist_items w
		JOIN movies m ON m.id = w.movie_id
		CROSS JOIN LATERAL unnest(m.genres) AS g(genre)
		WHERE w.user_id = ?
		GROUP BY g.genre
		ORDER BY count DESC, g.genre ASC
		LIMIT ?
	`, userID, limit).Scan(&counts).Error
	return counts, err
}
