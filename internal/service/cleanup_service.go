package service

import (
	"log"
	"time"

	"github.com/user/moodflix/internal/repository"
)

// activityRetentionDays 活动日志保留天数
const activityRetentionDays = 180

// CleanupService 清理服务
type CleanupService struct {
	repos *repository.Repositories
	stop  chan struct{}
}

// NewCleanupService 创建清理服务
func NewCleanupService(repos *repository.Repositories) *CleanupService {
	return &CleanupService{repos: repos, stop: make(chan struct{})}
}

// Start 启动定时清理任务
func (s *CleanupService) Start() {
	// 推荐结果 24 小时过期，按小时检查
	ticker := time.NewTicker(time.Hour)

	// 启动时先运行一次
	go s.runCleanup()

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runCleanup()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop 停止定时任务
func (s *CleanupService) Stop() {
	close(s.stop)
}

func (s *CleanupService) runCleanup() {
	log.Println("[CleanupService] 开始清理过期数据...")

	// 1. 过期推荐标记为 expired
	expired, err := s.repos.Recommendation.ExpireOld()
	if err != nil {
		log.Printf("[CleanupService] 标记过期推荐失败: %v", err)
	} else if expired > 0 {
		log.Printf("[CleanupService] 已将 %d 条推荐标记为过期", expired)
	}

	// 2. 清理过旧的活动日志
	deleted, err := s.repos.Activity.DeleteOlderThan(activityRetentionDays)
	if err != nil {
		log.Printf("[CleanupService] 清理活动日志失败: %v", err)
	} else if deleted > 0 {
		log.Printf("[CleanupService] 已清理 %d 条超过 %d 天的活动日志", deleted, activityRetentionDays)
	}
}
