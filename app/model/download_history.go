package model

import "time"

// 历史记录状态常量
const (
	HistoryStatusSuccess = "success" // 下载成功
	HistoryStatusFailed  = "failed"  // 两次尝试均失败
)

// DownloadHistory 每个已结束任务的历史记录，供管理接口查询
type DownloadHistory struct {
	ID         uint      `json:"id" gorm:"primarykey"`
	JobID      string    `json:"job_id" gorm:"size:36;index"`
	UserID     int64     `json:"user_id" gorm:"index"`
	Platform   string    `json:"platform" gorm:"size:20"`
	URL        string    `json:"url" gorm:"type:text"`
	AudioOnly  bool      `json:"audio_only"`
	Status     string    `json:"status" gorm:"size:20;index"`
	Error      string    `json:"error" gorm:"type:text"`
	FilePath   string    `json:"file_path"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 指定表名
func (DownloadHistory) TableName() string {
	return "download_history"
}
