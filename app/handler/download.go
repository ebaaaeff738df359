package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"media-fetch/app/config"
	"media-fetch/app/logger"
	"media-fetch/app/model"
	"media-fetch/app/service"

	"github.com/gin-gonic/gin"
)

// DownloadHandler 下载请求编排：闸门检查、入队、轮询状态直到就绪或超时
type DownloadHandler struct {
	cfg       *config.Config
	logger    *logger.Logger
	downloads *service.DownloadService
	tracker   *service.StatusTracker
	usage     *service.UsageService
}

// NewDownloadHandler 创建下载处理器
func NewDownloadHandler(
	cfg *config.Config,
	log *logger.Logger,
	downloads *service.DownloadService,
	tracker *service.StatusTracker,
	usage *service.UsageService,
) *DownloadHandler {
	return &DownloadHandler{
		cfg:       cfg,
		logger:    log,
		downloads: downloads,
		tracker:   tracker,
		usage:     usage,
	}
}

// downloadRequest POST /download/ 的表单参数
type downloadRequest struct {
	URL       string `form:"url" binding:"required"`
	Platform  string `form:"platform" binding:"required"`
	UserID    int64  `form:"user_id" binding:"required"`
	AudioOnly bool   `form:"audio_only"`
}

// Download 处理下载请求。任务入队后每秒轮询一次状态，直到出错、
// 文件就绪或超时。单工作者意味着处理器可能阻塞整个轮询窗口，
// 调用方本来就预期下载是长操作。
func (h *DownloadHandler) Download(c *gin.Context) {
	var req downloadRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request parameters."})
		return
	}

	platform := model.Platform(req.Platform)
	if !platform.Valid() {
		c.JSON(http.StatusOK, gin.H{"message": "Unsupported platform."})
		return
	}

	// 受限平台先过用量闸门，拒绝时不入队
	if decision := h.usage.Check(req.UserID, platform, time.Now().UTC()); !decision.Allowed {
		c.JSON(http.StatusOK, gin.H{"message": decision.Message})
		return
	}

	job := model.NewJob(req.URL, platform, req.UserID, req.AudioOnly)
	h.downloads.Submit(job)

	ticker := time.NewTicker(h.cfg.Download.PollIntervalDuration())
	defer ticker.Stop()
	deadline := time.Now().Add(h.cfg.Download.WaitTimeoutDuration())

	for time.Now().Before(deadline) {
		st := h.tracker.Get(req.UserID)

		if st.Error != "" {
			c.JSON(http.StatusOK, gin.H{"message": st.Error})
			return
		}

		// 文件路径只有在文件真实存在时才算就绪
		if st.FilePath != "" {
			if _, err := os.Stat(st.FilePath); err == nil {
				// 成功后记账；记账与检查之间的竞态按原始设计保留
				if err := h.usage.Record(req.UserID, platform, time.Now().UTC()); err != nil {
					h.logger.Errorf("用量记账失败: UserID=%d, %v", req.UserID, err)
				}
				c.JSON(http.StatusOK, gin.H{
					"file_url": "/downloaded/" + filepath.Base(st.FilePath),
				})
				return
			}
		}

		select {
		case <-ticker.C:
		case <-c.Request.Context().Done():
			// 客户端已断开，停止轮询；已入队的任务不会被取消
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Failed to download or timeout."})
}
