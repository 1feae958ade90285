package handler

import (
	"errors"
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/moodflix/internal/model"
	"github.com/user/moodflix/internal/repository"
	"github.com/user/moodflix/internal/service"
	"github.com/user/moodflix/internal/utils"
)

type addWatchlistRequest struct {
	TMDBID    int                `json:"tmdbId" binding:"required,min=1"`
	MovieData *service.MovieData `json:"movieData"`
}

// GetWatchlist 用户片单，可按 status 过滤
func (h *Handler) GetWatchlist(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	status := c.Query("status")
	if status == "all" {
		status = ""
	}
	if status != "" && !model.Contains(model.WatchlistStatuses, status) {
		utils.BadRequest(c, "Invalid status filter")
		return
	}

	items, err := h.Watchlist.List(uid, status)
	if err != nil {
		log.Printf("[Watchlist] 查询片单失败 (user %d): %v", uid, err)
		utils.InternalServerError(c, "Failed to fetch watchlist")
		return
	}
	utils.Success(c, gin.H{"watchlist": items})
}

// AddToWatchlist 加入片单
func (h *Handler) AddToWatchlist(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	var req addWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "TMDb ID is required")
		return
	}

	item, err := h.Watchlist.Add(c.Request.Context(), uid, req.TMDBID, req.MovieData)
	switch {
	case errors.Is(err, repository.ErrAlreadyInWatchlist):
		utils.Conflict(c, "Movie already in watchlist", gin.H{"item": item})
		return
	case errors.Is(err, service.ErrMovieNotFound):
		utils.NotFound(c, "Movie not found")
		return
	case err != nil:
		log.Printf("[Watchlist] 添加 %d 失败 (user %d): %v", req.TMDBID, uid, err)
		utils.InternalServerError(c, "Failed to add to watchlist")
		return
	}

	h.Profile.InvalidateStats(uid)
	utils.Created(c, "Added to watchlist", gin.H{"item": item})
}

// ClearWatchlist 清空片单
func (h *Handler) ClearWatchlist(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	n, err := h.Watchlist.Clear(uid)
	if err != nil {
		log.Printf("[Watchlist] 清空失败 (user %d): %v", uid, err)
		utils.InternalServerError(c, "Failed to clear watchlist")
		return
	}

	h.Profile.InvalidateStats(uid)
	utils.SuccessWithMessage(c, "Watchlist cleared", gin.H{"deletedCount": n})
}

// WatchlistStats 片单统计
func (h *Handler) WatchlistStats(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	stats, err := h.Watchlist.Stats(uid)
	if err != nil {
		log.Printf("[Watchlist] 统计失败 (user %d): %v", uid, err)
		utils.InternalServerError(c, "Failed to fetch watchlist stats")
		return
	}
	utils.Success(c, stats)
}

// GetWatchlistItem 单个条目
func (h *Handler) GetWatchlistItem(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	tmdbID, ok := tmdbIDParam(c)
	if !ok {
		return
	}

	item, err := h.Watchlist.Get(uid, tmdbID)
	if err != nil {
		h.watchlistError(c, err, "Failed to fetch watchlist item")
		return
	}
	utils.Success(c, gin.H{"item": item})
}

// UpdateWatchlistItem 修改状态、评分、备注等
func (h *Handler) UpdateWatchlistItem(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	tmdbID, ok := tmdbIDParam(c)
	if !ok {
		return
	}

	var upd service.WatchlistUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		utils.BadRequest(c, validationMessage(err))
		return
	}

	item, err := h.Watchlist.Update(uid, tmdbID, upd)
	if err != nil {
		h.watchlistError(c, err, "Failed to update watchlist item")
		return
	}

	h.Profile.InvalidateStats(uid)
	utils.SuccessWithMessage(c, "Watchlist item updated", gin.H{"item": item})
}

// RemoveWatchlistItem 从片单移除
func (h *Handler) RemoveWatchlistItem(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	tmdbID, ok := tmdbIDParam(c)
	if !ok {
		return
	}

	if err := h.Watchlist.Remove(uid, tmdbID); err != nil {
		h.watchlistError(c, err, "Failed to remove from watchlist")
		return
	}

	h.Profile.InvalidateStats(uid)
	utils.SuccessWithMessage(c, "Removed from watchlist", nil)
}

func (h *Handler) watchlistError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		utils.NotFound(c, "Watchlist item not found")
	case errors.Is(err, service.ErrInvalidUpdate):
		utils.BadRequest(c, err.Error())
	default:
		log.Printf("[Watchlist] %s: %v", fallback, err)
		utils.InternalServerError(c, fallback)
	}
}

func tmdbIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("tmdbId"))
	if err != nil || id <= 0 {
		utils.BadRequest(c, "Invalid TMDb ID")
		return 0, false
	}
	return id, true
}
