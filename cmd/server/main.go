package main

import (
	"context"
	"encoding/gob"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata" // 确保在精简镜像中也能识别时区

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/user/moodflix/internal/config"
	"github.com/user/moodflix/internal/handler"
	"github.com/user/moodflix/internal/middleware"
	"github.com/user/moodflix/internal/model"
	"github.com/user/moodflix/internal/repository"
	"github.com/user/moodflix/internal/router"
	"github.com/user/moodflix/internal/service"
	"github.com/user/moodflix/internal/utils"
)

func main() {
	// 注册 Session 模型
	gob.Register(model.SessionUser{})

	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用系统环境变量")
	}

	cfg := config.Load()

	db, err := repository.InitDB(cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	repos := repository.NewRepositories(db)
	utils.InitCache()

	if !cfg.IsProduction() {
		if cfg.TMDB.APIKey == "" {
			log.Println("[Config] 未设置 TMDB_API_KEY，电影相关接口将返回错误")
		}
		if cfg.OpenRouter.APIKey == "" {
			log.Println("[Config] 未设置 OPENROUTER_API_KEY，推荐接口不可用")
		}
	}

	// 推荐接口限流，Redis 不可用时不限流
	var limiter *middleware.RateLimiter
	if cfg.Redis.Addr != "" {
		rdb, err := middleware.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Printf("[Redis] %v，推荐接口不限流", err)
		} else {
			defer rdb.Close()
			limiter = middleware.NewRateLimiter(rdb, "recommend", cfg.RecommendRateLimit, time.Minute)
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	store := cookie.NewStore([]byte(cfg.AppSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.IsProduction() && strings.HasPrefix(cfg.SiteUrl, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("moodflix_session", store))

	r.HTMLRender = router.LoadTemplates("./web/templates")
	r.Static("/static", "./web/static")
	r.StaticFile("/images/placeholder.svg", "./web/static/images/placeholder.svg")

	r.Use(middleware.Logger())
	r.Use(middleware.Security())
	r.Use(middleware.CORS(cfg.SiteUrl))

	h := handler.NewHandler(repos, cfg)

	cleanupSvc := service.NewCleanupService(repos)
	cleanupSvc.Start()
	defer cleanupSvc.Stop()

	router.RegisterRoutes(r, h, limiter)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
		// 推荐接口需要等待 LLM 和 TMDB，写超时放宽
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("服务器启动于 http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("服务器强制关闭:", err)
	}

	log.Println("服务器已退出")
}
