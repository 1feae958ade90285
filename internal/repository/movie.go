package repository

import (
	"errors"

	"github.com/user/moodflix/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// FindByTMDBID 根据 TMDB ID 查找电影
func (r *MovieRepository) FindByTMDBID(tmdbID int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.Where("tmdb_id = ?", tmdbID).First(&movie).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// Upsert 创建或更新电影缓存
func (r *MovieRepository) Upsert(movie *model.Movie) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tmdb_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "original_title", "overview", "poster_path", "backdrop_path",
			"release_date", "runtime", "genres", "vote_average", "vote_count",
			"popularity", "updated_at",
		}),
	}).Create(movie).Error
}

// CreateIfAbsent 不存在时插入，已存在时返回库中记录
func (r *MovieRepository) CreateIfAbsent(movie *model.Movie) (*model.Movie, error) {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tmdb_id"}},
		DoNothing: true,
	}).Create(movie).Error
	if err != nil {
		return nil, err
	}
	if movie.ID != 0 {
		return movie, nil
	}
	return r.FindByTMDBID(movie.TMDBID)
}
