package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Job 一次下载请求。入队后不可变，由下载工作者恰好消费一次，不做持久化。
// ID 仅用于日志与历史记录关联，对外状态仍然按 UserID 跟踪。
type Job struct {
	ID        string
	URL       string
	Platform  Platform
	UserID    int64
	AudioOnly bool
	CreatedAt time.Time
}

// NewJob 创建下载任务
func NewJob(url string, platform Platform, userID int64, audioOnly bool) Job {
	return Job{
		ID:        uuid.New().String(),
		URL:       url,
		Platform:  platform,
		UserID:    userID,
		AudioOnly: audioOnly,
		CreatedAt: time.Now(),
	}
}

// OutputTemplate 按请求者生成确定的输出模板，扩展名由提取引擎决定。
// 同一请求者的两次任务会使用同一模板，后者可能覆盖前者的文件，
// 这是按请求者单飞假设下接受的风险。
func (j Job) OutputTemplate(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("video_%d.%%(ext)s", j.UserID))
}

// fileNameRe 从结果文件名中还原请求者 ID
var fileNameRe = regexp.MustCompile(`^video_(\d+)\.`)

// UserIDFromFileName 解析结果文件名中的请求者 ID
func UserIDFromFileName(name string) (int64, bool) {
	m := fileNameRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
