package router

import (
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"github.com/user/moodflix/internal/handler"
	"github.com/user/moodflix/internal/middleware"
)

// RegisterRoutes 注册所有路由；limiter 可为 nil
func RegisterRoutes(r *gin.Engine, h *handler.Handler, limiter *middleware.RateLimiter) {
	handler.RegisterValidators()

	secret := h.Config.AppSecret
	requireAuth := middleware.RequireAuth(secret)
	optionalAuth := middleware.OptionalAuth(secret)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== 页面 ====================
	r.GET("/", optionalAuth, h.Home)
	r.GET("/results", optionalAuth, h.Results)
	r.GET("/login", optionalAuth, h.LoginPage)
	r.GET("/register", optionalAuth, h.RegisterPage)
	r.GET("/watchlist", requireAuth, h.WatchlistPage)
	r.GET("/profile", requireAuth, h.ProfilePage)

	// ==================== Google 登录 ====================
	google := r.Group("/auth/google")
	{
		google.GET("/login", h.GoogleLogin)
		google.GET("/callback", h.GoogleCallback)
	}

	// ==================== JSON API ====================
	api := r.Group("/api")
	api.Use(optionalAuth)
	{
		auth := api.Group("/auth")
		auth.GET("/session", h.Session)
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)

		movies := api.Group("/movies")
		movies.GET("/search", h.SearchMovies)
		movies.GET("/popular", h.PopularMovies)
		movies.GET("/mood", h.MoodMovies)
		movies.GET("/:id", h.MovieDetails)

		recommend := api.Group("/recommend")
		if limiter != nil {
			recommend.Use(limiter.Handler())
		}
		recommend.GET("", h.GetRecommend)
		recommend.POST("", h.PostRecommend)
	}

	// 需要登录的 API
	user := r.Group("/api")
	user.Use(requireAuth)
	{
		wl := user.Group("/watchlist")
		wl.GET("", h.GetWatchlist)
		wl.POST("", h.AddToWatchlist)
		wl.DELETE("", h.ClearWatchlist)
		wl.GET("/stats", h.WatchlistStats)
		wl.GET("/:tmdbId", h.GetWatchlistItem)
		wl.PATCH("/:tmdbId", h.UpdateWatchlistItem)
		wl.DELETE("/:tmdbId", h.RemoveWatchlistItem)

		user.GET("/profile/stats", h.ProfileStats)
		user.GET("/activity", h.ListActivities)
		user.POST("/activity", h.CreateActivity)
		user.GET("/moods", h.ListMoods)
		user.POST("/moods", h.CreateMood)
	}

	r.NoRoute(optionalAuth, h.NotFound)
}

// LoadTemplates 使用 multitemplate 加载模板，解决模板继承问题
func LoadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}

	partials, err := filepath.Glob(templatesDir + "/partials/*.html")
	if err != nil {
		panic(err)
	}

	assemble := func(view string) []string {
		files := make([]string, 0, len(layouts)+len(partials)+1)
		files = append(files, layouts...)
		files = append(files, partials...)
		files = append(files, view)
		return files
	}

	pages := []string{
		"home", "results", "watchlist", "profile",
		"login", "register", "404",
	}

	for _, page := range pages {
		viewPath := templatesDir + "/pages/" + page + ".html"
		r.AddFromFilesFuncs(page+".html", FuncMap(), assemble(viewPath)...)
	}

	return r
}

// FuncMap 模板函数
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"dict": func(values ...interface{}) (map[string]interface{}, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"default": func(defaultValue, value interface{}) interface{} {
			switch v := value.(type) {
			case string:
				if v == "" {
					return defaultValue
				}
			case int:
				if v == 0 {
					return defaultValue
				}
			case nil:
				return defaultValue
			}
			return value
		},
		"title": func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
		"minutes": func(v string) string {
			d, err := time.ParseDuration(v + "m")
			if err != nil {
				return v
			}
			if d >= time.Hour {
				h := int(d.Hours())
				if m := int(d.Minutes()) % 60; m > 0 {
					return fmt.Sprintf("%dh %dm", h, m)
				}
				if h == 1 {
					return "1 hour"
				}
				return fmt.Sprintf("%d hours", h)
			}
			return fmt.Sprintf("%d minutes", int(d.Minutes()))
		},
		"year": func() int {
			return time.Now().Year()
		},
	}
}
