package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/moodflix/internal/model"
	"github.com/user/moodflix/internal/repository"
	"github.com/user/moodflix/internal/utils"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// AISource 推荐来源标识
const AISource = "deepseek-via-openrouter"

var (
	// ErrInvalidAIResponse 模型返回的不是合法 JSON
	ErrInvalidAIResponse = errors.New("invalid AI response")
	// ErrInvalidStructure JSON 中缺少 recommendations 数组
	ErrInvalidStructure = errors.New("invalid response structure")
)

// ChatClient LLM 客户端
type ChatClient interface {
	Chat(ctx context.Context, req utils.ChatRequest) (string, error)
	Configured() bool
}

// MovieLookup 电影目录查询
type MovieLookup interface {
	Search(ctx context.Context, query string, page int) (*TMDBPage, error)
	Details(ctx context.Context, id int) (*TMDBMovie, error)
}

// RecommendRequest 用户偏好
type RecommendRequest struct {
	Mood      string `json:"mood" form:"mood"`
	Time      string `json:"time" form:"time"`
	Situation string `json:"situation" form:"situation"`
}

// Missing 缺失的必填字段
func (r RecommendRequest) Missing() bool {
	return strings.TrimSpace(r.Mood) == "" || strings.TrimSpace(r.Time) == "" || strings.TrimSpace(r.Situation) == ""
}

// AISuggestion 模型给出的一条推荐
type AISuggestion struct {
	Title        string `json:"title"`
	Reason       string `json:"reason"`
	Genre        string `json:"genre"`
	MoodMatch    string `json:"mood_match"`
	TimeSuitable string `json:"time_suitable"`
}

// AIResponse 模型返回的完整 JSON
type AIResponse struct {
	Recommendations []AISuggestion `json:"recommendations"`
	OverallAnalysis string         `json:"overall_analysis"`
}

// AIReasoning 推荐理由
type AIReasoning struct {
	Reason       string `json:"reason"`
	MoodMatch    string `json:"mood_match"`
	TimeSuitable string `json:"time_suitable"`
}

// RecommendedMovie 推荐结果与 TMDB 数据合并后的记录，查不到时 TMDB 字段为 null
type RecommendedMovie struct {
	AISuggestion
	TMDBID           *int        `json:"tmdb_id"`
	PosterPath       *string     `json:"poster_path"`
	BackdropPath     *string     `json:"backdrop_path"`
	ReleaseDate      *string     `json:"release_date"`
	VoteAverage      *float64    `json:"vote_average"`
	VoteCount        *int        `json:"vote_count"`
	Overview         *string     `json:"overview"`
	Runtime          *int        `json:"runtime"`
	Genres           []string    `json:"genres"`
	AIRecommendation AIReasoning `json:"ai_recommendation"`
	SearchConfidence float64     `json:"search_confidence"`
	Error            string      `json:"error,omitempty"`
}

// RecommendResult 接口返回的数据
type RecommendResult struct {
	Recommendations []RecommendedMovie `json:"recommendations"`
	OverallAnalysis string             `json:"overall_analysis"`
	UserPreferences RecommendRequest   `json:"user_preferences"`
	TotalResults    int                `json:"total_results"`
	AISource        string             `json:"ai_source"`
	TMDBIntegration bool               `json:"tmdb_integration"`
	SessionID       string             `json:"session_id,omitempty"`
}

// RecommendError 带 HTTP 语义的推荐失败
type RecommendError struct {
	Status  int
	Title   string
	Message string
	Raw     string
	Err     error
}

func (e *RecommendError) Error() string {
	return e.Title + ": " + e.Message
}

func (e *RecommendError) Unwrap() error { return e.Err }

type RecommendService struct {
	llm   ChatClient
	tmdb  MovieLookup
	model string
}

func NewRecommendService(llm ChatClient, tmdb MovieLookup, model string) *RecommendService {
	return &RecommendService{llm: llm, tmdb: tmdb, model: model}
}

// Recommend 调用 LLM 获取推荐并与 TMDB 交叉校验
func (s *RecommendService) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResult, error) {
	if !s.llm.Configured() {
		return nil, &RecommendError{
			Status:  http.StatusInternalServerError,
			Title:   "API key not configured",
			Message: "Please set OPENROUTER_API_KEY in your environment variables",
		}
	}

	raw, err := s.llm.Chat(ctx, utils.ChatRequest{
		Model:            s.model,
		Messages:         []utils.ChatMessage{{Role: "user", Content: BuildMoviePrompt(req.Mood, req.Time, req.Situation)}},
		Temperature:      0.7,
		MaxTokens:        1000,
		TopP:             0.9,
		FrequencyPenalty: 0.1,
		PresencePenalty:  0.1,
	})
	if err != nil {
		log.Printf("[Recommend] LLM 调用失败: %v", err)
		return nil, MapLLMError(err)
	}

	parsed, err := ParseAIResponse(raw)
	if err != nil {
		log.Printf("[Recommend] 解析模型输出失败: %v", err)
		re := &RecommendError{Status: http.StatusInternalServerError, Raw: raw, Err: err}
		if errors.Is(err, ErrInvalidStructure) {
			re.Title = "Invalid response structure"
			re.Message = "AI response does not contain recommendations array"
		} else {
			re.Title = "Invalid AI response"
			re.Message = "The AI returned an invalid response format"
		}
		return nil, re
	}

	movies := s.crossReference(ctx, parsed.Recommendations)

	return &RecommendResult{
		Recommendations: movies,
		OverallAnalysis: parsed.OverallAnalysis,
		UserPreferences: req,
		TotalResults:    len(movies),
		AISource:        AISource,
		TMDBIntegration: true,
	}, nil
}

// TestConnection 连通性测试
func (s *RecommendService) TestConnection(ctx context.Context) (string, error) {
	return s.llm.Chat(ctx, utils.ChatRequest{
		Model:     s.model,
		Messages:  []utils.ChatMessage{{Role: "user", Content: `Say "Hello, API is working!"`}},
		MaxTokens: 50,
	})
}

// Configured LLM 是否已配置
func (s *RecommendService) Configured() bool {
	return s.llm.Configured()
}

// crossReference 并发查询 TMDB，结果顺序与模型输出一致
func (s *RecommendService) crossReference(ctx context.Context, suggestions []AISuggestion) []RecommendedMovie {
	out := make([]RecommendedMovie, len(suggestions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, sug := range suggestions {
		g.Go(func() error {
			out[i] = s.lookup(gctx, sug)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (s *RecommendService) lookup(ctx context.Context, sug AISuggestion) RecommendedMovie {
	result, err := s.tmdb.Search(ctx, sug.Title, 1)
	if err != nil {
		log.Printf("[Recommend] 搜索 %q 失败: %v", sug.Title, err)
		m := placeholder(sug)
		m.Error = "Failed to fetch TMDb data"
		return m
	}
	if len(result.Results) == 0 {
		return placeholder(sug)
	}

	best := result.Results[0]
	details, err := s.tmdb.Details(ctx, best.ID)
	if err != nil {
		log.Printf("[Recommend] 获取 %d 详情失败: %v", best.ID, err)
		m := placeholder(sug)
		m.Error = "Failed to fetch TMDb data"
		return m
	}

	m := RecommendedMovie{
		AISuggestion:     sug,
		TMDBID:           &best.ID,
		PosterPath:       &best.PosterPath,
		BackdropPath:     &best.BackdropPath,
		ReleaseDate:      &best.ReleaseDate,
		VoteAverage:      &best.VoteAverage,
		VoteCount:        &best.VoteCount,
		Overview:         &best.Overview,
		Runtime:          &details.Runtime,
		Genres:           details.GenreNames(),
		AIRecommendation: reasoning(sug),
		SearchConfidence: SearchConfidence(sug.Title, best.Title),
	}
	return m
}

func placeholder(sug AISuggestion) RecommendedMovie {
	return RecommendedMovie{
		AISuggestion:     sug,
		Genres:           []string{sug.Genre},
		AIRecommendation: reasoning(sug),
	}
}

func reasoning(sug AISuggestion) AIReasoning {
	return AIReasoning{Reason: sug.Reason, MoodMatch: sug.MoodMatch, TimeSuitable: sug.TimeSuitable}
}

// BuildMoviePrompt 生成推荐提示词
func BuildMoviePrompt(mood, timeAvailable, situation string) string {
	return fmt.Sprintf(`You are an expert movie recommendation AI. Based on the user's preferences, suggest 5 specific movie titles that would be perfect for their situation.

User Preferences:
- Mood: %[1]s
- Time Available: %[2]s
- Situation: %[3]s

Please provide your response in the following JSON format:
{
  "recommendations": [
    {
      "title": "Exact Movie Title",
      "reason": "Brief explanation of why this movie fits their mood and situation",
      "genre": "Primary genre",
      "mood_match": "How it matches their mood",
      "time_suitable": "Why it works for their time constraint"
    }
  ],
  "overall_analysis": "Brief analysis of why these movies are perfect for their current state"
}

Focus on movies that:
1. Match the user's emotional state (%[1]s)
2. Can be enjoyed within their time constraint (%[2]s)
3. Are appropriate for their situation (%[3]s)
4. Are well-known and accessible
5. Have positive reviews and ratings

Return only the JSON response, no additional text.`, mood, timeAvailable, situation)
}

// ParseAIResponse 解析模型输出，允许外层包裹 markdown 代码块
func ParseAIResponse(raw string) (*AIResponse, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAIResponse, err)
	}

	recs, ok := fields["recommendations"]
	if !ok || !strings.HasPrefix(strings.TrimSpace(string(recs)), "[") {
		return nil, ErrInvalidStructure
	}

	var resp AIResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	return &resp, nil
}

// SearchConfidence 标题相似度（0-1）
func SearchConfidence(aiTitle, tmdbTitle string) float64 {
	if aiTitle == "" || tmdbTitle == "" {
		return 0
	}

	a := strings.ToLower(aiTitle)
	b := strings.ToLower(tmdbTitle)

	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.9
	}

	aWords := strings.Fields(a)
	bWords := strings.Fields(b)
	bSet := make(map[string]bool, len(bWords))
	for _, w := range bWords {
		bSet[w] = true
	}

	common := 0
	for _, w := range aWords {
		if bSet[w] {
			common++
		}
	}
	if common > 0 {
		return min(0.8, float64(common)/float64(max(len(aWords), len(bWords))))
	}
	return 0.3
}

// MapLLMError 将 LLM 错误映射为 HTTP 错误
func MapLLMError(err error) *RecommendError {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "API key"):
		return &RecommendError{Status: http.StatusUnauthorized, Title: "Authentication failed", Message: "Please check your OpenRouter API key", Err: err}
	case strings.Contains(msg, "rate limit"):
		return &RecommendError{Status: http.StatusTooManyRequests, Title: "Rate limit exceeded", Message: "Too many requests. Please try again later.", Err: err}
	case strings.Contains(msg, "insufficient credits"):
		return &RecommendError{Status: http.StatusPaymentRequired, Title: "Insufficient credits", Message: "Please add more credits to your OpenRouter account", Err: err}
	case errors.Is(err, utils.ErrEmptyCompletion):
		return &RecommendError{Status: http.StatusInternalServerError, Title: "Empty AI response", Message: "The AI returned an empty response. Please check your API key and try again.", Err: err}
	}
	return &RecommendError{Status: http.StatusInternalServerError, Title: "Internal server error", Message: "Something went wrong while processing your request", Err: err}
}

// RecommendationRecorder 记录登录用户的推荐历史
type RecommendationRecorder struct {
	repos *repository.Repositories
}

func NewRecommendationRecorder(repos *repository.Repositories) *RecommendationRecorder {
	return &RecommendationRecorder{repos: repos}
}

// Record 保存推荐结果、心情记录和活动，返回会话 ID；各步骤失败只记日志
func (r *RecommendationRecorder) Record(userID int, req RecommendRequest, result *RecommendResult) string {
	sessionID := uuid.NewString()

	movies, err := json.Marshal(result.Recommendations)
	if err != nil {
		log.Printf("[Recommend] 序列化推荐结果失败: %v", err)
		movies = []byte("[]")
	}

	now := time.Now()
	rec := &model.Recommendation{
		UserID:          userID,
		SessionID:       sessionID,
		Mood:            req.Mood,
		Situation:       req.Situation,
		TimeAvailable:   req.Time,
		Movies:          datatypes.JSON(movies),
		OverallAnalysis: result.OverallAnalysis,
		Algorithm:       "mood_based",
		Source:          AISource,
		Status:          model.RecommendationActive,
		ExpiresAt:       now.Add(model.RecommendationTTL),
	}
	if err := r.repos.Recommendation.Create(rec); err != nil {
		log.Printf("[Recommend] 保存推荐记录失败 (user %d): %v", userID, err)
	}

	if model.Contains(model.Moods, req.Mood) {
		if err := r.repos.Mood.Create(&model.MoodEntry{
			UserID:        userID,
			Mood:          req.Mood,
			Situation:     req.Situation,
			TimeAvailable: req.Time,
		}); err != nil {
			log.Printf("[Recommend] 保存心情记录失败 (user %d): %v", userID, err)
		}
	}

	data, _ := json.Marshal(map[string]interface{}{
		"mood":       req.Mood,
		"time":       req.Time,
		"situation":  req.Situation,
		"session_id": sessionID,
		"results":    result.TotalResults,
	})
	if err := r.repos.Activity.Create(&model.Activity{
		UserID:      userID,
		Type:        model.ActivityRecommendationRequest,
		Description: fmt.Sprintf("Requested recommendations for a %s mood", req.Mood),
		Data:        datatypes.JSON(data),
	}); err != nil {
		log.Printf("[Recommend] 记录活动失败 (user %d): %v", userID, err)
	}

	return sessionID
}
