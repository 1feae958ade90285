package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/user/moodflix/internal/config"
	"github.com/user/moodflix/internal/middleware"
	"github.com/user/moodflix/internal/model"
	"github.com/user/moodflix/internal/repository"
	"github.com/user/moodflix/internal/service"
	"github.com/user/moodflix/internal/utils"
	"gorm.io/datatypes"
)

// sessionUserKey Session 中保存用户信息的键
const sessionUserKey = "userinfo"

// Handler HTTP 处理器
type Handler struct {
	Repos     *repository.Repositories
	Config    *config.Config
	TMDB      *service.TMDBService
	Recommend *service.RecommendService
	Recorder  *service.RecommendationRecorder
	Watchlist *service.WatchlistService
	Profile   *service.ProfileService
	OAuth     *service.GoogleOAuthService
}

// NewHandler 创建处理器
func NewHandler(repos *repository.Repositories, cfg *config.Config) *Handler {
	tmdb := service.NewTMDBService(cfg.TMDB)
	llm := utils.NewOpenRouterClient(cfg.OpenRouter.APIKey, cfg.OpenRouter.BaseURL, cfg.SiteUrl, cfg.SiteName)

	return &Handler{
		Repos:     repos,
		Config:    cfg,
		TMDB:      tmdb,
		Recommend: service.NewRecommendService(llm, tmdb, cfg.OpenRouter.Model),
		Recorder:  service.NewRecommendationRecorder(repos),
		Watchlist: service.NewWatchlistService(repos, tmdb),
		Profile:   service.NewProfileService(repos),
		OAuth:     service.NewGoogleOAuthService(cfg.Google),
	}
}

// RenderData 统一封装公共渲染数据
func (h *Handler) RenderData(c *gin.Context, data gin.H) gin.H {
	res := gin.H{
		"SiteName":      h.Config.SiteName,
		"SiteUrl":       h.Config.SiteUrl,
		"Path":          c.Request.URL.Path,
		"GoogleEnabled": h.OAuth.Enabled(),
		"ActiveMenu":    activeMenu(c.Request.URL.Path),
	}

	if su, ok := sessionUser(c); ok && middleware.GetUserID(c) == su.ID {
		res["UserInfo"] = su
	}

	for k, v := range data {
		res[k] = v
	}
	return res
}

func activeMenu(path string) string {
	switch path {
	case "/":
		return "home"
	case "/results":
		return "results"
	case "/watchlist":
		return "watchlist"
	case "/profile":
		return "profile"
	default:
		return ""
	}
}

func sessionUser(c *gin.Context) (model.SessionUser, bool) {
	su, ok := sessions.Default(c).Get(sessionUserKey).(model.SessionUser)
	return su, ok
}

// ==================== 页面 ====================

// Home 首页（Hero + 推荐表单）
func (h *Handler) Home(c *gin.Context) {
	c.HTML(http.StatusOK, "home.html", h.RenderData(c, gin.H{
		"Title":      h.Config.SiteName + " - Movies for your mood",
		"Moods":      model.Moods,
		"Situations": model.Situations,
		"TimeSlots":  model.TimeSlots,
	}))
}

// Results 推荐结果页，数据由前端调用 /api/recommend 获取
func (h *Handler) Results(c *gin.Context) {
	req := service.RecommendRequest{
		Mood:      c.Query("mood"),
		Time:      c.Query("time"),
		Situation: c.Query("situation"),
	}
	if req.Missing() {
		c.Redirect(http.StatusFound, "/")
		return
	}

	c.HTML(http.StatusOK, "results.html", h.RenderData(c, gin.H{
		"Title":   "Your recommendations - " + h.Config.SiteName,
		"Request": req,
	}))
}

// WatchlistPage 片单页
func (h *Handler) WatchlistPage(c *gin.Context) {
	c.HTML(http.StatusOK, "watchlist.html", h.RenderData(c, gin.H{
		"Title":    "My Watchlist - " + h.Config.SiteName,
		"Statuses": model.WatchlistStatuses,
	}))
}

// ProfilePage 个人主页
func (h *Handler) ProfilePage(c *gin.Context) {
	stats, err := h.Profile.Stats(middleware.GetUserID(c))
	if err != nil {
		log.Printf("[Profile] 加载个人统计失败: %v", err)
	}

	c.HTML(http.StatusOK, "profile.html", h.RenderData(c, gin.H{
		"Title":   "Profile - " + h.Config.SiteName,
		"Profile": stats,
	}))
}

// NotFound 404 页面；API 路径返回 JSON
func (h *Handler) NotFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		utils.NotFound(c, "Route not found")
		return
	}
	c.HTML(http.StatusNotFound, "404.html", h.RenderData(c, gin.H{
		"Title": "Page not found - " + h.Config.SiteName,
	}))
}

// ==================== 工具 ====================

// requireUser 取当前用户 ID，未登录时写入 401
func requireUser(c *gin.Context) (int, bool) {
	uid := middleware.GetUserID(c)
	if uid == 0 {
		utils.Unauthorized(c, "Unauthorized")
		return 0, false
	}
	return uid, true
}

// trackActivity 记录用户活动，失败只记日志
func (h *Handler) trackActivity(userID int, typ, desc string, data map[string]interface{}) {
	if userID == 0 || h.Repos == nil {
		return
	}
	a := &model.Activity{UserID: userID, Type: typ, Description: desc}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			a.Data = datatypes.JSON(b)
		}
	}
	if err := h.Repos.Activity.Create(a); err != nil {
		log.Printf("[Activity] 记录 %s 失败 (user %d): %v", typ, userID, err)
	}
}
