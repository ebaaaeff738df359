package extractor

import "context"

// 进度事件状态
const (
	StatusDownloading = "downloading"
	StatusFinished    = "finished"
)

// ProgressEvent 提取引擎在传输过程中回调的进度事件。
// Percent 是引擎输出的原始百分比字符串，可能带终端色码，由调用方解析。
type ProgressEvent struct {
	Status  string
	Percent string
}

// ProgressFunc 进度回调
type ProgressFunc func(ProgressEvent)

// Request 一次提取任务的全部参数
type Request struct {
	URL            string
	OutputTemplate string       // 输出模板，扩展名占位符由引擎填充
	AudioOnly      bool         // 仅提取音频并转码为 mp3
	MergeFormats   bool         // ffmpeg 可用时分别取最优音视频再合并
	CookieFile     string       // 为空时不带 Cookie
	OnProgress     ProgressFunc // 可为 nil
}

// Result 提取结果
type Result struct {
	FilePath string // 最终落盘的文件路径
}

// Engine 外部提取引擎的能力抽象：给定 URL 与选项，产出本地文件或失败
type Engine interface {
	Download(ctx context.Context, req Request) (*Result, error)
}
