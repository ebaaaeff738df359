package service

import (
	"os"
	"path/filepath"
	"time"

	"media-fetch/app/config"
	"media-fetch/app/logger"
	"media-fetch/app/model"

	"github.com/robfig/cron/v3"
)

// CleanupService 残留文件清理器。请求者轮询超时后才完成的任务会留下
// 无人认领的文件与状态条目，这里定期把超龄的下载产物连同其跟踪状态
// 一并清掉。
type CleanupService struct {
	cfg       *config.Config
	logger    *logger.Logger
	tracker   *StatusTracker
	downloads *DownloadService
	cron      *cron.Cron
}

// NewCleanupService 创建清理服务
func NewCleanupService(cfg *config.Config, log *logger.Logger, tracker *StatusTracker, downloads *DownloadService) *CleanupService {
	return &CleanupService{
		cfg:       cfg,
		logger:    log,
		tracker:   tracker,
		downloads: downloads,
	}
}

// Start 按配置的 cron 表达式启动定期清理
func (s *CleanupService) Start() error {
	if !s.cfg.Cleanup.Enabled {
		s.logger.Infof("残留清理器未启用")
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.Cleanup.Schedule, func() {
		s.RunOnce()
	}); err != nil {
		return err
	}
	s.cron.Start()

	s.logger.Infof("残留清理器已启动: schedule=%s, max_age=%dm",
		s.cfg.Cleanup.Schedule, s.cfg.Cleanup.MaxAgeMinutes)
	return nil
}

// Stop 停止定期清理
func (s *CleanupService) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunOnce 执行一轮清理，返回删除的文件数。正在被工作者处理的请求者
// 的文件不会被碰。
func (s *CleanupService) RunOnce() int {
	entries, err := os.ReadDir(s.cfg.Download.Dir)
	if err != nil {
		s.logger.Errorf("读取下载目录失败: %v", err)
		return 0
	}

	var currentUserID int64 = -1
	if job := s.downloads.Current(); job != nil {
		currentUserID = job.UserID
	}

	maxAge := s.cfg.Cleanup.MaxAgeDuration()
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		userID, ok := model.UserIDFromFileName(entry.Name())
		if !ok || userID == currentUserID {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) < maxAge {
			continue
		}

		path := filepath.Join(s.cfg.Download.Dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warnf("删除残留文件失败: %s, %v", path, err)
			continue
		}
		s.tracker.Clear(userID)
		removed++
		s.logger.Infof("已清理残留文件: %s (UserID=%d)", entry.Name(), userID)
	}

	if removed > 0 {
		s.logger.Infof("本轮清理了 %d 个残留文件", removed)
	}
	return removed
}
