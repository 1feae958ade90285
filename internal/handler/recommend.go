package handler

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/user/moodflix/internal/middleware"
	"github.com/user/moodflix/internal/service"
	"github.com/user/moodflix/internal/utils"
)

// PostRecommend 根据心情、时长、场景生成推荐
func (h *Handler) PostRecommend(c *gin.Context) {
	var req service.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request body")
		return
	}
	h.recommend(c, req)
}

// GetRecommend 查询参数版本；不带参数时做连通性测试
func (h *Handler) GetRecommend(c *gin.Context) {
	var req service.RecommendRequest
	_ = c.ShouldBindQuery(&req)

	if req.Mood == "" && req.Time == "" && req.Situation == "" {
		h.testConnection(c)
		return
	}
	h.recommend(c, req)
}

func (h *Handler) recommend(c *gin.Context, req service.RecommendRequest) {
	if req.Missing() {
		utils.BadRequest(c, "Missing required fields: mood, time, situation")
		return
	}

	result, err := h.Recommend.Recommend(c.Request.Context(), req)
	if err != nil {
		writeRecommendError(c, err)
		return
	}

	if uid := middleware.GetUserID(c); uid > 0 {
		result.SessionID = h.Recorder.Record(uid, req, result)
		h.Profile.InvalidateStats(uid)
	}
	utils.Success(c, result)
}

func (h *Handler) testConnection(c *gin.Context) {
	if !h.Recommend.Configured() {
		utils.InternalServerError(c, "API key not configured")
		return
	}

	reply, err := h.Recommend.TestConnection(c.Request.Context())
	if err != nil {
		writeRecommendError(c, service.MapLLMError(err))
		return
	}
	utils.SuccessWithMessage(c, "API connection successful", gin.H{
		"response": reply,
		"model":    h.Config.OpenRouter.Model,
	})
}

func writeRecommendError(c *gin.Context, err error) {
	var re *service.RecommendError
	if !errors.As(err, &re) {
		log.Printf("[Recommend] 未知错误: %v", err)
		utils.InternalServerError(c, "")
		return
	}

	log.Printf("[Recommend] %s: %v", re.Title, re.Err)
	data := gin.H{"details": re.Message}
	if re.Raw != "" {
		data["raw"] = re.Raw
	}
	utils.ErrorWithData(c, re.Status, re.Title, data)
}
