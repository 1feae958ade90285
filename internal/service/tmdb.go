package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/user/moodflix/internal/config"
	"github.com/user/moodflix/internal/utils"
	"golang.org/x/sync/singleflight"
)

// PlaceholderImage 缺少图片时使用的占位图
const PlaceholderImage = "/images/placeholder.svg"

// ErrTMDBNotConfigured 未配置 TMDB_API_KEY
var ErrTMDBNotConfigured = errors.New("TMDb API key is not configured")

// MoodGenres 心情到 TMDB 类型 ID 的映射
var MoodGenres = map[string][]int{
	"happy":       {35, 10751, 16},  // Comedy, Family, Animation
	"sad":         {18, 10749},      // Drama, Romance
	"excited":     {28, 12, 878},    // Action, Adventure, Science Fiction
	"relaxed":     {14, 16, 10751},  // Fantasy, Animation, Family
	"romantic":    {10749, 18},      // Romance, Drama
	"adventurous": {12, 28, 14},     // Adventure, Action, Fantasy
	"nostalgic":   {18, 36, 10402},  // Drama, History, Music
	"inspired":    {18, 99, 36},     // Drama, Documentary, History
}

// TMDBGenre 类型
type TMDBGenre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TMDBMovie TMDB 返回的电影（列表项与详情共用）
type TMDBMovie struct {
	ID            int             `json:"id"`
	Title         string          `json:"title"`
	OriginalTitle string          `json:"original_title"`
	Overview      string          `json:"overview"`
	PosterPath    string          `json:"poster_path"`
	BackdropPath  string          `json:"backdrop_path"`
	ReleaseDate   string          `json:"release_date"`
	VoteAverage   float64         `json:"vote_average"`
	VoteCount     int             `json:"vote_count"`
	Popularity    float64         `json:"popularity"`
	Adult         bool            `json:"adult"`
	Video         bool            `json:"video"`
	GenreIDs      []int           `json:"genre_ids"`
	Genres        []TMDBGenre     `json:"genres"`
	Runtime       int             `json:"runtime"`
	Budget        int64           `json:"budget"`
	Revenue       int64           `json:"revenue"`
	Status        string          `json:"status"`
	Tagline       string          `json:"tagline"`
	Credits       json.RawMessage `json:"credits,omitempty"`
	Videos        json.RawMessage `json:"videos,omitempty"`
	Similar       json.RawMessage `json:"similar,omitempty"`
}

// GenreNames 详情中的类型名称
func (m *TMDBMovie) GenreNames() []string {
	names := make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		names = append(names, g.Name)
	}
	return names
}

// TMDBPage 分页结果
type TMDBPage struct {
	Page         int         `json:"page"`
	TotalPages   int         `json:"total_pages"`
	TotalResults int         `json:"total_results"`
	Results      []TMDBMovie `json:"results"`
}

// MovieView 前端使用的电影结构
type MovieView struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"originalTitle"`
	Overview      string  `json:"overview"`
	Poster        string  `json:"poster"`
	Backdrop      string  `json:"backdrop"`
	ReleaseDate   string  `json:"releaseDate"`
	Year          *int    `json:"year"`
	Duration      *string `json:"duration"`
	Rating        float64 `json:"rating"`
	VoteCount     int     `json:"voteCount"`
	Genre         *string `json:"genre"`
	Popularity    float64 `json:"popularity"`
	Adult         bool    `json:"adult"`
	Video         bool    `json:"video"`
}

// MovieDetailView 电影详情
type MovieDetailView struct {
	MovieView
	Runtime int             `json:"runtime"`
	Budget  int64           `json:"budget"`
	Revenue int64           `json:"revenue"`
	Status  string          `json:"status"`
	Tagline string          `json:"tagline"`
	Genres  []TMDBGenre     `json:"genres"`
	Credits json.RawMessage `json:"credits,omitempty"`
	Videos  json.RawMessage `json:"videos,omitempty"`
	Similar json.RawMessage `json:"similar,omitempty"`
}

// PageView 分页结果
type PageView struct {
	Page         int         `json:"page"`
	TotalPages   int         `json:"totalPages"`
	TotalResults int         `json:"totalResults"`
	Results      []MovieView `json:"results"`
}

type TMDBService struct {
	config      config.TMDBConfig
	http        *utils.HTTPClient
	group       singleflight.Group
	searchCache *searchCache
}

func NewTMDBService(cfg config.TMDBConfig) *TMDBService {
	return &TMDBService{
		config:      cfg,
		http:        utils.NewHTTPClient(10 * time.Second),
		searchCache: newSearchCache(1000, time.Hour),
	}
}

// Configured 是否配置了 API Key
func (s *TMDBService) Configured() bool {
	return s.config.APIKey != ""
}

func (s *TMDBService) request(ctx context.Context, endpoint string, params url.Values, target interface{}) error {
	if s.config.APIKey == "" {
		return ErrTMDBNotConfigured
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", s.config.APIKey)
	params.Set("language", "en-US")

	u := strings.TrimRight(s.config.BaseURL, "/") + endpoint + "?" + params.Encode()
	if err := s.http.GetJSON(ctx, u, nil, target); err != nil {
		return fmt.Errorf("TMDb API error: %w", err)
	}
	return nil
}

// Search 按标题搜索，结果缓存一小时
func (s *TMDBService) Search(ctx context.Context, query string, page int) (*TMDBPage, error) {
	if cached, ok := s.searchCache.get(query, page); ok {
		return cached, nil
	}

	var result TMDBPage
	err := s.request(ctx, "/search/movie", url.Values{
		"query":         {query},
		"page":          {strconv.Itoa(pageOrFirst(page))},
		"include_adult": {"false"},
	}, &result)
	if err != nil {
		return nil, err
	}

	s.searchCache.put(query, page, &result)
	return &result, nil
}

// Details 电影详情（含 credits、videos、similar），同一 ID 并发请求合并
func (s *TMDBService) Details(ctx context.Context, id int) (*TMDBMovie, error) {
	key := fmt.Sprintf("tmdb:movie:%d", id)
	if cached, ok := utils.CacheGet(key); ok {
		return cached.(*TMDBMovie), nil
	}

	val, err, _ := s.group.Do(key, func() (interface{}, error) {
		var movie TMDBMovie
		if err := s.request(ctx, "/movie/"+strconv.Itoa(id), url.Values{
			"append_to_response": {"credits,videos,similar"},
		}, &movie); err != nil {
			return nil, err
		}
		utils.CacheSet(key, &movie, 6*time.Hour)
		return &movie, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*TMDBMovie), nil
}

// Popular 热门电影
func (s *TMDBService) Popular(ctx context.Context, page int) (*TMDBPage, error) {
	return s.cachedPage(ctx, "/movie/popular", url.Values{"page": {strconv.Itoa(pageOrFirst(page))}}, 30*time.Minute)
}

// TopRated 高分电影
func (s *TMDBService) TopRated(ctx context.Context, page int) (*TMDBPage, error) {
	return s.cachedPage(ctx, "/movie/top_rated", url.Values{"page": {strconv.Itoa(pageOrFirst(page))}}, time.Hour)
}

// ByGenre 按类型发现，genreIDs 可用 "|" 连接多个
func (s *TMDBService) ByGenre(ctx context.Context, genreIDs string, page int) (*TMDBPage, error) {
	return s.cachedPage(ctx, "/discover/movie", url.Values{
		"with_genres": {genreIDs},
		"page":        {strconv.Itoa(pageOrFirst(page))},
		"sort_by":     {"popularity.desc"},
	}, 30*time.Minute)
}

// ByMood 按心情推荐，未知心情默认喜剧
func (s *TMDBService) ByMood(ctx context.Context, mood string, page int) (*TMDBPage, error) {
	return s.cachedPage(ctx, "/discover/movie", url.Values{
		"with_genres":      {MoodGenreQuery(mood)},
		"page":             {strconv.Itoa(pageOrFirst(page))},
		"sort_by":          {"popularity.desc"},
		"vote_average.gte": {"6"},
	}, 30*time.Minute)
}

// Recommendations TMDB 基于某部电影的推荐
func (s *TMDBService) Recommendations(ctx context.Context, id, page int) (*TMDBPage, error) {
	return s.cachedPage(ctx, fmt.Sprintf("/movie/%d/recommendations", id), url.Values{"page": {strconv.Itoa(pageOrFirst(page))}}, time.Hour)
}

// Genres 全部电影类型
func (s *TMDBService) Genres(ctx context.Context) ([]TMDBGenre, error) {
	const key = "tmdb:genres"
	if cached, ok := utils.CacheGet(key); ok {
		return cached.([]TMDBGenre), nil
	}

	var result struct {
		Genres []TMDBGenre `json:"genres"`
	}
	if err := s.request(ctx, "/genre/movie/list", nil, &result); err != nil {
		return nil, err
	}
	utils.CacheSet(key, result.Genres, 24*time.Hour)
	return result.Genres, nil
}

func (s *TMDBService) cachedPage(ctx context.Context, endpoint string, params url.Values, ttl time.Duration) (*TMDBPage, error) {
	key := "tmdb:" + endpoint + "?" + params.Encode()
	if cached, ok := utils.CacheGet(key); ok {
		return cached.(*TMDBPage), nil
	}

	var result TMDBPage
	if err := s.request(ctx, endpoint, params, &result); err != nil {
		log.Printf("[TMDB] 请求 %s 失败: %v", endpoint, err)
		return nil, err
	}
	utils.CacheSet(key, &result, ttl)
	return &result, nil
}

// MoodGenreQuery 心情对应的 with_genres 参数
func MoodGenreQuery(mood string) string {
	ids, ok := MoodGenres[strings.ToLower(mood)]
	if !ok {
		ids = []int{35}
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "|")
}

// PosterURL 海报地址
func (s *TMDBService) PosterURL(path, size string) string {
	if size == "" {
		size = "w500"
	}
	return s.imageURL(path, size)
}

// BackdropURL 背景图地址
func (s *TMDBService) BackdropURL(path, size string) string {
	if size == "" {
		size = "original"
	}
	return s.imageURL(path, size)
}

func (s *TMDBService) imageURL(path, size string) string {
	if path == "" {
		return PlaceholderImage
	}
	// 本地或完整地址原样返回
	if strings.HasPrefix(path, "http") || strings.HasPrefix(path, "/images/") {
		return path
	}
	return strings.TrimRight(s.config.ImageBaseURL, "/") + "/" + size + path
}

// Transform 转换为前端结构
func (s *TMDBService) Transform(m TMDBMovie) MovieView {
	v := MovieView{
		ID:            m.ID,
		Title:         m.Title,
		OriginalTitle: m.OriginalTitle,
		Overview:      m.Overview,
		Poster:        s.PosterURL(m.PosterPath, ""),
		Backdrop:      s.BackdropURL(m.BackdropPath, ""),
		ReleaseDate:   m.ReleaseDate,
		Rating:        m.VoteAverage,
		VoteCount:     m.VoteCount,
		Popularity:    m.Popularity,
		Adult:         m.Adult,
		Video:         m.Video,
	}

	if len(m.ReleaseDate) >= 4 {
		if y, err := strconv.Atoi(m.ReleaseDate[:4]); err == nil {
			v.Year = &y
		}
	}
	if m.Runtime > 0 {
		d := fmt.Sprintf("%d min", m.Runtime)
		v.Duration = &d
	}
	if len(m.GenreIDs) > 0 {
		parts := make([]string, len(m.GenreIDs))
		for i, id := range m.GenreIDs {
			parts[i] = strconv.Itoa(id)
		}
		g := strings.Join(parts, ", ")
		v.Genre = &g
	}
	return v
}

// TransformPage 转换分页结果
func (s *TMDBService) TransformPage(p *TMDBPage) PageView {
	results := make([]MovieView, 0, len(p.Results))
	for _, m := range p.Results {
		results = append(results, s.Transform(m))
	}
	return PageView{
		Page:         p.Page,
		TotalPages:   p.TotalPages,
		TotalResults: p.TotalResults,
		Results:      results,
	}
}

// TransformDetails 转换详情
func (s *TMDBService) TransformDetails(m *TMDBMovie) MovieDetailView {
	return MovieDetailView{
		MovieView: s.Transform(*m),
		Runtime:   m.Runtime,
		Budget:    m.Budget,
		Revenue:   m.Revenue,
		Status:    m.Status,
		Tagline:   m.Tagline,
		Genres:    m.Genres,
		Credits:   m.Credits,
		Videos:    m.Videos,
		Similar:   m.Similar,
	}
}

func pageOrFirst(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
