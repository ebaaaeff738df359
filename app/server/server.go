package server

import (
	"context"
	"net/http"

	"media-fetch/app/config"
	"media-fetch/app/database"
	"media-fetch/app/filewatcher"
	"media-fetch/app/handler"
	"media-fetch/app/logger"
	"media-fetch/app/middleware"
	"media-fetch/app/service"
	"media-fetch/app/utils/extractor"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器及其附属后台服务
type Server struct {
	Config *config.Config
	Logger *logger.Logger

	gin  *gin.Engine
	http *http.Server

	tracker       *service.StatusTracker
	downloads     *service.DownloadService
	cleanup       *service.CleanupService
	cookieWatcher *filewatcher.CookieWatcher
}

// New 创建一个新的 Server 实例
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	router := gin.Default()

	cookieWatcher, err := filewatcher.New(cfg.Download.Dir, log)
	if err != nil {
		return nil, err
	}

	tracker := service.NewStatusTracker(cfg.Cleanup.MaxAgeDuration() * 2)
	engine := extractor.NewYtDlp(cfg.Download.YtDlpPath, log)
	downloads := service.NewDownloadService(cfg, log, database.GetDB(), tracker, engine, cookieWatcher)
	cleanup := service.NewCleanupService(cfg, log, tracker, downloads)

	s := &Server{
		Config: cfg,
		Logger: log,
		gin:    router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		tracker:       tracker,
		downloads:     downloads,
		cleanup:       cleanup,
		cookieWatcher: cookieWatcher,
	}

	s.setupRoutes()
	return s, nil
}

// Start 启动后台服务与 HTTP 监听
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)

	if err := s.cookieWatcher.Start(); err != nil {
		s.Logger.Warnf("启动 Cookie 文件监控失败: %v", err)
	}
	s.downloads.Start()
	if err := s.cleanup.Start(); err != nil {
		s.Logger.Warnf("启动残留清理器失败: %v", err)
	}

	return s.http.ListenAndServe()
}

// Shutdown 停止后台服务并关闭 HTTP 监听
func (s *Server) Shutdown(ctx context.Context) error {
	s.cleanup.Stop()
	s.downloads.Stop()
	s.cookieWatcher.Stop()

	if err := database.Close(); err != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", err)
	}
	return s.http.Shutdown(ctx)
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	usage := service.NewUsageService(database.GetDB(), s.Logger, s.Config.Limit)

	downloadHandler := handler.NewDownloadHandler(s.Config, s.Logger, s.downloads, s.tracker, usage)
	progressHandler := handler.NewProgressHandler(s.Logger, s.tracker, s.Config.Download.PollIntervalDuration())
	fileHandler := handler.NewFileHandler(s.Config, s.Logger, s.tracker)
	authHandler := handler.NewAuthHandler(s.Config)
	adminHandler := handler.NewAdminHandler(s.Logger, s.downloads, usage, s.cleanup)

	// 面向下载客户端的公开接口，保持历史路径与 JSON 形状
	s.gin.GET("/", func(c *gin.Context) {
		c.File("index.html")
	})
	s.gin.POST("/download/", downloadHandler.Download)
	s.gin.GET("/progress/:user_id", progressHandler.Progress)
	s.gin.GET("/ws/progress/:user_id", progressHandler.ProgressWS)
	s.gin.GET("/downloaded/:filename", fileHandler.Serve)

	// 管理接口
	api := s.gin.Group("/api")
	api.POST("/auth/login", authHandler.Login)

	admin := api.Group("/admin")
	admin.Use(middleware.JWTAuth(s.Config))
	{
		admin.GET("/queue", adminHandler.QueueStatus)
		admin.GET("/history", adminHandler.History)
		admin.GET("/usage/:user_id", adminHandler.Usage)
		admin.POST("/cleanup", adminHandler.RunCleanup)
	}
}
