package model

// JobStatus 按请求者 ID 跟踪的下载状态。
// 任务开始时重置（进度 0、无错误），下载过程中进度单调不减，
// 文件送达后整条记录被清除。
type JobStatus struct {
	Percent  int    `json:"percent"`
	Error    string `json:"error,omitempty"`
	FilePath string `json:"-"`
}
