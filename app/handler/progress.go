package handler

import (
	"net/http"
	"strconv"
	"time"

	"media-fetch/app/logger"
	"media-fetch/app/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ProgressHandler 进度查询：HTTP 轮询与 WebSocket 推送两种形式
type ProgressHandler struct {
	logger   *logger.Logger
	tracker  *service.StatusTracker
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewProgressHandler 创建进度处理器
func NewProgressHandler(log *logger.Logger, tracker *service.StatusTracker, interval time.Duration) *ProgressHandler {
	return &ProgressHandler{
		logger:   log,
		tracker:  tracker,
		interval: interval,
		upgrader: websocket.Upgrader{
			// 进度数据不敏感，放开跨域
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Progress GET /progress/:user_id，没有记录时返回 percent 0
func (h *ProgressHandler) Progress(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"percent": 0, "error": "Invalid user id."})
		return
	}

	st := h.tracker.Get(userID)
	if st.Error != "" {
		c.JSON(http.StatusOK, gin.H{"percent": 0, "error": st.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"percent": st.Percent})
}

// ProgressWS GET /ws/progress/:user_id，每个轮询间隔推送一次进度，
// 任务出错或到达 100% 后关闭连接
func (h *ProgressHandler) ProgressWS(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"percent": 0, "error": "Invalid user id."})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		st := h.tracker.Get(userID)

		payload := gin.H{"percent": st.Percent}
		if st.Error != "" {
			payload = gin.H{"percent": 0, "error": st.Error}
		}
		if err := conn.WriteJSON(payload); err != nil {
			return
		}

		// 终态：出错或完成
		if st.Error != "" || st.Percent >= 100 {
			return
		}

		select {
		case <-ticker.C:
		case <-c.Request.Context().Done():
			return
		}
	}
}
