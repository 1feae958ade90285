package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/moodflix/internal/model"
	"github.com/user/moodflix/internal/service"
	"github.com/user/moodflix/internal/utils"
	"gorm.io/datatypes"
)

type createActivityRequest struct {
	Type        string          `json:"type"`
	Description string          `json:"description"`
	MovieID     *int            `json:"movieId"`
	MovieTitle  string          `json:"movieTitle"`
	Data        json.RawMessage `json:"data"`
}

type createMoodRequest struct {
	Mood          string `json:"mood" binding:"required,mood"`
	Intensity     int    `json:"intensity" binding:"omitempty,min=1,max=10"`
	Situation     string `json:"situation" binding:"omitempty,situation"`
	TimeAvailable string `json:"timeAvailable" binding:"omitempty,timeslot"`
	Notes         string `json:"notes" binding:"max=500"`
}

// ListActivities 活动列表，limit 默认 20
func (h *Handler) ListActivities(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	limit := intQuery(c, "limit", 20)
	if limit == 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	skip := intQuery(c, "skip", 0)

	activities, err := h.Repos.Activity.ListByUser(uid, limit, skip)
	if err != nil {
		log.Printf("[Activity] 查询失败 (user %d): %v", uid, err)
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, gin.H{"activities": activities, "limit": limit, "skip": skip})
}

// CreateActivity 记录活动
func (h *Handler) CreateActivity(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	var req createActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Type) == "" || strings.TrimSpace(req.Description) == "" {
		utils.BadRequest(c, "Type and description are required")
		return
	}
	if !model.Contains(model.ActivityTypes, req.Type) {
		utils.BadRequest(c, "Invalid activity type")
		return
	}

	a := &model.Activity{
		UserID:      uid,
		Type:        req.Type,
		Description: req.Description,
		MovieID:     req.MovieID,
	}
	if data := activityData(req); data != nil {
		a.Data = data
	}
	if err := h.Repos.Activity.Create(a); err != nil {
		log.Printf("[Activity] 创建失败 (user %d): %v", uid, err)
		utils.InternalServerError(c, "")
		return
	}
	utils.Created(c, "Activity created successfully", gin.H{"activity": a})
}

// activityData 合并客户端 data 与 movieTitle
func activityData(req createActivityRequest) datatypes.JSON {
	data := map[string]interface{}{}
	if len(req.Data) > 0 {
		_ = json.Unmarshal(req.Data, &data)
	}
	if req.MovieTitle != "" {
		data["movieTitle"] = req.MovieTitle
	}
	if len(data) == 0 {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// ListMoods 最近的心情记录
func (h *Handler) ListMoods(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	limit := intQuery(c, "limit", 10)
	if limit == 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	moods, err := h.Repos.Mood.Recent(uid, limit)
	if err != nil {
		log.Printf("[Mood] 查询失败 (user %d): %v", uid, err)
		utils.InternalServerError(c, "")
		return
	}
	utils.Success(c, gin.H{"moods": moods})
}

// CreateMood 记录心情
func (h *Handler) CreateMood(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	var req createMoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, validationMessage(err))
		return
	}
	if req.Intensity == 0 {
		req.Intensity = 5
	}

	entry := &model.MoodEntry{
		UserID:        uid,
		Mood:          req.Mood,
		Intensity:     req.Intensity,
		Situation:     req.Situation,
		TimeAvailable: req.TimeAvailable,
		Notes:         req.Notes,
	}
	if err := h.Repos.Mood.Create(entry); err != nil {
		log.Printf("[Mood] 创建失败 (user %d): %v", uid, err)
		utils.InternalServerError(c, "")
		return
	}

	h.trackActivity(uid, model.ActivityMoodEntry, fmt.Sprintf("Feeling %s", req.Mood), map[string]interface{}{
		"mood":      req.Mood,
		"intensity": req.Intensity,
	})
	h.Profile.InvalidateStats(uid)
	utils.Created(c, "Mood recorded", gin.H{"mood": entry})
}

// ProfileStats 个人统计
func (h *Handler) ProfileStats(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}

	stats, err := h.Profile.Stats(uid)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			utils.NotFound(c, "User not found")
			return
		}
		log.Printf("[Profile] 统计失败 (user %d): %v", uid, err)
		utils.InternalServerError(c, "Failed to fetch profile stats")
		return
	}
	utils.Success(c, stats)
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
