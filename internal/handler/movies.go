package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/moodflix/internal/middleware"
	"github.com/user/moodflix/internal/model"
	"github.com/user/moodflix/internal/service"
	"github.com/user/moodflix/internal/utils"
)

// SearchMovies 按标题搜索
func (h *Handler) SearchMovies(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		utils.BadRequest(c, "Search query is required")
		return
	}

	page, err := h.TMDB.Search(c.Request.Context(), query, pageParam(c))
	if err != nil {
		h.tmdbError(c, err, "Failed to search movies")
		return
	}

	h.trackActivity(middleware.GetUserID(c), model.ActivityMovieSearch, fmt.Sprintf("Searched for %q", query), map[string]interface{}{
		"query":   query,
		"results": page.TotalResults,
	})
	utils.Success(c, h.TMDB.TransformPage(page))
}

// PopularMovies 热门电影
func (h *Handler) PopularMovies(c *gin.Context) {
	page, err := h.TMDB.Popular(c.Request.Context(), pageParam(c))
	if err != nil {
		h.tmdbError(c, err, "Failed to fetch popular movies")
		return
	}
	utils.Success(c, h.TMDB.TransformPage(page))
}

// MoodMovies 按心情发现
func (h *Handler) MoodMovies(c *gin.Context) {
	mood := strings.TrimSpace(c.Query("mood"))
	if mood == "" {
		utils.BadRequest(c, "Mood parameter is required")
		return
	}

	page, err := h.TMDB.ByMood(c.Request.Context(), mood, pageParam(c))
	if err != nil {
		h.tmdbError(c, err, "Failed to fetch movies by mood")
		return
	}

	view := h.TMDB.TransformPage(page)
	utils.Success(c, gin.H{
		"mood":         mood,
		"page":         view.Page,
		"totalPages":   view.TotalPages,
		"totalResults": view.TotalResults,
		"results":      view.Results,
	})
}

// MovieDetails 电影详情
func (h *Handler) MovieDetails(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		utils.BadRequest(c, "Invalid movie ID")
		return
	}

	movie, err := h.TMDB.Details(c.Request.Context(), id)
	if err != nil {
		var se *utils.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			utils.NotFound(c, "Movie not found")
			return
		}
		h.tmdbError(c, err, "Failed to fetch movie details")
		return
	}

	h.trackActivity(middleware.GetUserID(c), model.ActivityMovieView, fmt.Sprintf("Viewed %q", movie.Title), map[string]interface{}{
		"tmdbId": id,
	})
	utils.Success(c, h.TMDB.TransformDetails(movie))
}

func (h *Handler) tmdbError(c *gin.Context, err error, message string) {
	if errors.Is(err, service.ErrTMDBNotConfigured) {
		utils.InternalServerError(c, "TMDb API key not configured")
		return
	}
	log.Printf("[TMDB] %s: %v", message, err)
	utils.InternalServerError(c, message)
}

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	// TMDB 最多 500 页
	if page > 500 {
		return 500
	}
	return page
}
