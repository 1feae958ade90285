package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Movie 电影元数据缓存，以 TMDB ID 为业务主键
type Movie struct {
	ID            int            `json:"id" gorm:"primaryKey"`
	TMDBID        int            `json:"tmdb_id" gorm:"uniqueIndex;not null"`
	Title         string         `json:"title" gorm:"not null"`
	OriginalTitle string         `json:"original_title"`
	Overview      string         `json:"overview"`
	PosterPath    string         `json:"poster_path"`
	BackdropPath  string         `json:"backdrop_path"`
	ReleaseDate   string         `json:"release_date"`
	Runtime       int            `json:"runtime"`
	Genres        pq.StringArray `json:"genres" gorm:"type:text[]"`
	VoteAverage   float64        `json:"vote_average"`
	VoteCount     int            `json:"vote_count"`
	Popularity    float64        `json:"popularity"`
	ContentRating string         `json:"content_rating"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"index"`
}

// Year 上映年份
func (m *Movie) Year() string {
	if len(m.ReleaseDate) >= 4 {
		return m.ReleaseDate[:4]
	}
	return ""
}

// GenreList 兼容两种类型格式：["Drama"] 或 [{"id":18,"name":"Drama"}]
type GenreList []string

// UnmarshalJSON 实现 json.Unmarshaler
func (g *GenreList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*g = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(GenreList, 0, len(raw))
	for _, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			if name != "" {
				out = append(out, name)
			}
			continue
		}

		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		if obj.Name != "" {
			out = append(out, obj.Name)
		}
	}

	*g = out
	return nil
}
