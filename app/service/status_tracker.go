package service

import (
	"strconv"
	"sync"
	"time"

	"media-fetch/app/model"

	gocache "github.com/patrickmn/go-cache"
)

// StatusTracker 按请求者 ID 跟踪下载进度、错误与结果文件路径。
// 工作者是唯一写入方，HTTP 轮询方并发读取；条目带 TTL，请求者
// 放弃轮询后残留的状态会自动过期。
type StatusTracker struct {
	mu sync.Mutex
	c  *gocache.Cache
}

// NewStatusTracker 创建状态跟踪器，ttl 为孤儿条目的存活时长
func NewStatusTracker(ttl time.Duration) *StatusTracker {
	return &StatusTracker{
		c: gocache.New(ttl, 2*ttl),
	}
}

func statusKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Begin 在任务开始时重置请求者的状态：进度 0、无错误、无文件路径
func (t *StatusTracker) Begin(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.c.SetDefault(statusKey(userID), model.JobStatus{})
}

// SetPercent 更新进度。收敛到 [0,100]，活跃任务的进度单调不减，
// 低于当前值的上报会被忽略。
func (t *StatusTracker) SetPercent(userID int64, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.get(userID)
	if percent < st.Percent {
		return
	}
	st.Percent = percent
	t.c.SetDefault(statusKey(userID), st)
}

// Fail 记录失败：错误信息落盘，进度重置为 0
func (t *StatusTracker) Fail(userID int64, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.get(userID)
	st.Percent = 0
	st.Error = message
	t.c.SetDefault(statusKey(userID), st)
}

// SetFilePath 记录结果文件路径，只在文件真实落盘后调用
func (t *StatusTracker) SetFilePath(userID int64, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.get(userID)
	st.FilePath = path
	t.c.SetDefault(statusKey(userID), st)
}

// Get 读取请求者状态，没有记录时返回零值（percent 0）
func (t *StatusTracker) Get(userID int64) model.JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(userID)
}

// Clear 文件送达后清除请求者的状态
func (t *StatusTracker) Clear(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.c.Delete(statusKey(userID))
}

func (t *StatusTracker) get(userID int64) model.JobStatus {
	if v, ok := t.c.Get(statusKey(userID)); ok {
		return v.(model.JobStatus)
	}
	return model.JobStatus{}
}
