package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-fetch/app/config"
	"media-fetch/app/logger"
	"media-fetch/app/model"
	"media-fetch/app/service"

	"github.com/gin-gonic/gin"
)

// FileHandler 结果文件送达：按文件名提供下载，送达后延迟删除文件
// 并清除对应请求者的跟踪状态
type FileHandler struct {
	cfg     *config.Config
	logger  *logger.Logger
	tracker *service.StatusTracker
}

// NewFileHandler 创建文件处理器
func NewFileHandler(cfg *config.Config, log *logger.Logger, tracker *service.StatusTracker) *FileHandler {
	return &FileHandler{
		cfg:     cfg,
		logger:  log,
		tracker: tracker,
	}
}

// Serve GET /downloaded/:filename。mp3 按 audio/mpeg 发送，其余按
// video/mp4；传输结束后异步等待缓冲期再删除文件，避免慢客户端
// 传输中途文件被删。
func (h *FileHandler) Serve(c *gin.Context) {
	// 只取 basename，杜绝路径穿越
	filename := filepath.Base(c.Param("filename"))
	path := filepath.Join(h.cfg.Download.Dir, filename)

	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	contentType := "video/mp4"
	if strings.EqualFold(filepath.Ext(filename), ".mp3") {
		contentType = "audio/mpeg"
	}
	c.Header("Content-Type", contentType)
	c.FileAttachment(path, filename)

	go h.cleanupAfterSend(path)
}

// cleanupAfterSend 送达后的收尾：缓冲期过后删除文件，并按文件名
// 还原请求者 ID 清除其状态条目
func (h *FileHandler) cleanupAfterSend(path string) {
	time.Sleep(h.cfg.Download.DeleteGraceDuration())

	if err := os.Remove(path); err != nil {
		h.logger.Warnf("删除已送达文件失败: %s, %v", path, err)
		return
	}

	if userID, ok := model.UserIDFromFileName(path); ok {
		h.tracker.Clear(userID)
	}
	h.logger.Infof("已送达并删除: %s", filepath.Base(path))
}
