package service

import (
	"context"
	"sync"
	"time"

	"media-fetch/app/config"
	"media-fetch/app/logger"
	"media-fetch/app/model"
	"media-fetch/app/utils/extractor"
	"media-fetch/app/utils/urlhelper"

	"gorm.io/gorm"
)

// FailureMessage 两次提取尝试均失败时面向用户的统一消息。
// 真实原因只记录在日志与历史表中，不回传给用户。
const FailureMessage = "Wrong platform or video not found."

// CookieSource 提供平台 Cookie 文件路径，文件不存在时返回空串
type CookieSource interface {
	CookiePath(p model.Platform) string
}

// DownloadService 下载服务：无界 FIFO 队列加单个后台工作者。
// 全系统同一时刻最多下载一个任务，任务严格按入队顺序处理。
type DownloadService struct {
	cfg     *config.Config
	logger  *logger.Logger
	db      *gorm.DB
	queue   *JobQueue
	tracker *StatusTracker
	engine  extractor.Engine
	cookies CookieSource

	mergeFormats bool

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	current *model.Job
	running bool
}

// NewDownloadService 创建下载服务。db 可为 nil（不写历史记录）。
func NewDownloadService(
	cfg *config.Config,
	log *logger.Logger,
	db *gorm.DB,
	tracker *StatusTracker,
	engine extractor.Engine,
	cookies CookieSource,
) *DownloadService {
	ctx, cancel := context.WithCancel(context.Background())

	mergeFormats := extractor.FFmpegAvailable()
	if mergeFormats {
		log.Infof("检测到 ffmpeg，启用最优音视频合并模式")
	} else {
		log.Warnf("未检测到 ffmpeg，回退到单文件格式模式")
	}

	return &DownloadService{
		cfg:          cfg,
		logger:       log,
		db:           db,
		queue:        NewJobQueue(),
		tracker:      tracker,
		engine:       engine,
		cookies:      cookies,
		mergeFormats: mergeFormats,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start 启动后台工作者
func (s *DownloadService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	s.wg.Add(1)
	go s.worker()
	s.logger.Infof("下载工作者已启动")
}

// Stop 停止后台工作者。已入队的任务不会被取消，只是不再被处理。
func (s *DownloadService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.queue.Close()
	s.wg.Wait()
	s.logger.Infof("下载工作者已停止")
}

// Submit 接收一个新任务入队。不做去重，同一请求者的并发任务会互相
// 覆盖对方按请求者跟踪的状态。
func (s *DownloadService) Submit(job model.Job) {
	s.queue.Enqueue(job)
	s.logger.Infof("任务已入队: JobID=%s, UserID=%d, Platform=%s", job.ID, job.UserID, job.Platform)
}

// QueueLen 当前排队任务数
func (s *DownloadService) QueueLen() int {
	return s.queue.Len()
}

// Current 正在处理的任务，空闲时返回 nil
func (s *DownloadService) Current() *model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	job := *s.current
	return &job
}

// worker 单消费者循环，任何任务失败都不会中断循环
func (s *DownloadService) worker() {
	defer s.wg.Done()

	for {
		job, ok := s.queue.Dequeue(s.ctx)
		if !ok {
			return
		}
		s.process(job)
	}
}

// process 处理单个任务：重置状态，先不带 Cookie 尝试，失败后带平台
// Cookie 重试一次，仍失败则记录统一错误消息
func (s *DownloadService) process(job model.Job) {
	s.mu.Lock()
	s.current = &job
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
	}()

	s.tracker.Begin(job.UserID)
	start := time.Now()

	req := extractor.Request{
		URL:            s.shapeURL(job),
		OutputTemplate: job.OutputTemplate(s.cfg.Download.Dir),
		AudioOnly:      job.AudioOnly && job.Platform == model.PlatformYouTube,
		MergeFormats:   s.mergeFormats,
		OnProgress: func(ev extractor.ProgressEvent) {
			switch ev.Status {
			case extractor.StatusDownloading:
				s.tracker.SetPercent(job.UserID, extractor.ParsePercent(ev.Percent))
			case extractor.StatusFinished:
				s.tracker.SetPercent(job.UserID, 100)
			}
		},
	}

	s.logger.Infof("开始下载: JobID=%s, UserID=%d, Platform=%s, AudioOnly=%v",
		job.ID, job.UserID, job.Platform, req.AudioOnly)

	result, err := s.engine.Download(s.ctx, req)
	if err != nil {
		s.logger.Warnf("无 Cookie 尝试失败: JobID=%s, %v", job.ID, err)

		// 带 Cookie 重试。文件不存在时 CookieFile 为空串，重试本身照常进行
		req.CookieFile = s.cookies.CookiePath(job.Platform)
		result, err = s.engine.Download(s.ctx, req)
	}

	if err != nil {
		s.logger.Errorf("下载失败: JobID=%s, UserID=%d, %v", job.ID, job.UserID, err)
		s.tracker.Fail(job.UserID, FailureMessage)
		s.writeHistory(job, model.HistoryStatusFailed, err.Error(), "", time.Since(start))
		return
	}

	s.tracker.SetFilePath(job.UserID, result.FilePath)
	s.logger.Infof("下载完成: JobID=%s, UserID=%d, 文件=%s, 耗时=%.1fs",
		job.ID, job.UserID, result.FilePath, time.Since(start).Seconds())
	s.writeHistory(job, model.HistoryStatusSuccess, "", result.FilePath, time.Since(start))
}

// shapeURL 提交前的 URL 整形：先展开已知短链，再按平台清理参数
func (s *DownloadService) shapeURL(job model.Job) string {
	rawURL := job.URL
	if urlhelper.ShouldResolve(rawURL) {
		resolved := urlhelper.ResolveRedirects(rawURL, 10*time.Second)
		if resolved != rawURL {
			s.logger.Debugf("短链已展开: %s -> %s", rawURL, resolved)
			rawURL = resolved
		}
	}
	return urlhelper.Normalize(rawURL, job.Platform)
}

// writeHistory 写入历史记录，没有数据库时跳过
func (s *DownloadService) writeHistory(job model.Job, status, errMsg, path string, dur time.Duration) {
	if s.db == nil {
		return
	}

	entry := model.DownloadHistory{
		JobID:      job.ID,
		UserID:     job.UserID,
		Platform:   string(job.Platform),
		URL:        job.URL,
		AudioOnly:  job.AudioOnly,
		Status:     status,
		Error:      errMsg,
		FilePath:   path,
		DurationMS: dur.Milliseconds(),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		s.logger.Errorf("写入下载历史失败: JobID=%s, %v", job.ID, err)
	}
}
