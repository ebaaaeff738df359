package handler

import (
	"net/http"
	"strconv"

	"media-fetch/app/database"
	"media-fetch/app/logger"
	"media-fetch/app/model"
	"media-fetch/app/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler 管理接口：队列状态、下载历史、用量查询与手动清理
type AdminHandler struct {
	logger    *logger.Logger
	downloads *service.DownloadService
	usage     *service.UsageService
	cleanup   *service.CleanupService
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(log *logger.Logger, downloads *service.DownloadService, usage *service.UsageService, cleanup *service.CleanupService) *AdminHandler {
	return &AdminHandler{
		logger:    log,
		downloads: downloads,
		usage:     usage,
		cleanup:   cleanup,
	}
}

// 创建成功响应
func (h *AdminHandler) success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// 创建错误响应
func (h *AdminHandler) error(c *gin.Context, statusCode int, errorCode int, message string) {
	c.JSON(statusCode, ApiResponse{
		Code:    errorCode,
		Message: message,
	})
}

// QueueStatus GET /api/admin/queue 队列长度与当前任务
func (h *AdminHandler) QueueStatus(c *gin.Context) {
	var current gin.H
	if job := h.downloads.Current(); job != nil {
		current = gin.H{
			"job_id":     job.ID,
			"user_id":    job.UserID,
			"platform":   job.Platform,
			"audio_only": job.AudioOnly,
			"created_at": job.CreatedAt,
		}
	}

	h.success(c, gin.H{
		"pending": h.downloads.QueueLen(),
		"current": current,
	}, "获取队列状态成功")
}

// History GET /api/admin/history 分页查询下载历史
func (h *AdminHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	query := database.GetDB().Model(&model.DownloadHistory{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var entries []model.DownloadHistory
	if err := query.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&entries).Error; err != nil {
		h.error(c, http.StatusInternalServerError, 500, "查询下载历史失败: "+err.Error())
		return
	}

	h.success(c, gin.H{
		"list":  entries,
		"total": total,
		"page":  page,
		"size":  size,
	}, "获取下载历史成功")
}

// Usage GET /api/admin/usage/:user_id 查询请求者的用量记录
func (h *AdminHandler) Usage(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		h.error(c, http.StatusBadRequest, 400, "无效的用户ID")
		return
	}

	record, err := h.usage.GetRecord(userID)
	if err != nil {
		h.error(c, http.StatusInternalServerError, 500, "查询用量记录失败: "+err.Error())
		return
	}

	h.success(c, record, "获取用量记录成功")
}

// RunCleanup POST /api/admin/cleanup 立即执行一轮残留清理
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	removed := h.cleanup.RunOnce()
	h.success(c, gin.H{"removed": removed}, "清理完成")
}
