package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-fetch/app/config"
	"media-fetch/app/logger"
	"media-fetch/app/model"
	"media-fetch/app/service"
	"media-fetch/app/utils/extractor"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeEngine 可编程的提取引擎替身
type fakeEngine struct {
	download func(ctx context.Context, req extractor.Request) (*extractor.Result, error)
}

func (f *fakeEngine) Download(ctx context.Context, req extractor.Request) (*extractor.Result, error) {
	return f.download(ctx, req)
}

// fakeCookies 没有任何 Cookie 文件
type fakeCookies struct{}

func (fakeCookies) CookiePath(model.Platform) string { return "" }

// writingEngine 模拟一次成功提取：把文件落盘并上报完成
func writingEngine() *fakeEngine {
	return &fakeEngine{download: func(_ context.Context, req extractor.Request) (*extractor.Result, error) {
		path := strings.ReplaceAll(req.OutputTemplate, "%(ext)s", "mp4")
		if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
			return nil, err
		}
		if req.OnProgress != nil {
			req.OnProgress(extractor.ProgressEvent{Status: extractor.StatusFinished})
		}
		return &extractor.Result{FilePath: path}, nil
	}}
}

type handlerEnv struct {
	router  *gin.Engine
	cfg     *config.Config
	tracker *service.StatusTracker
	usage   *service.UsageService
	dir     string
}

func newHandlerEnv(t *testing.T, engine extractor.Engine) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := &config.Config{
		Download: config.DownloadConfig{
			Dir:          dir,
			WaitTimeout:  3,
			PollInterval: 1,
			DeleteGrace:  1,
		},
		Limit: config.LimitConfig{
			DailyLimit:      10,
			CooldownMinutes: 10,
		},
		Cleanup: config.CleanupConfig{MaxAgeMinutes: 30},
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "handler_test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.UsageRecord{}))

	log := logger.NewNop()
	tracker := service.NewStatusTracker(time.Hour)
	usage := service.NewUsageService(db, log, cfg.Limit)
	downloads := service.NewDownloadService(cfg, log, nil, tracker, engine, fakeCookies{})
	downloads.Start()
	t.Cleanup(downloads.Stop)

	downloadHandler := NewDownloadHandler(cfg, log, downloads, tracker, usage)
	progressHandler := NewProgressHandler(log, tracker, 50*time.Millisecond)
	fileHandler := NewFileHandler(cfg, log, tracker)

	router := gin.New()
	router.POST("/download/", downloadHandler.Download)
	router.GET("/progress/:user_id", progressHandler.Progress)
	router.GET("/ws/progress/:user_id", progressHandler.ProgressWS)
	router.GET("/downloaded/:filename", fileHandler.Serve)

	return &handlerEnv{router: router, cfg: cfg, tracker: tracker, usage: usage, dir: dir}
}

func (e *handlerEnv) postDownload(form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/download/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestDownload_SuccessReturnsFileURL(t *testing.T) {
	env := newHandlerEnv(t, writingEngine())

	w := env.postDownload(url.Values{
		"url":      {"https://twitter.com/x/status/1"},
		"platform": {"twitter"},
		"user_id":  {"42"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "/downloaded/video_42.mp4", body["file_url"])
	assert.FileExists(t, filepath.Join(env.dir, "video_42.mp4"))
}

func TestDownload_MissingParamsRejected(t *testing.T) {
	env := newHandlerEnv(t, writingEngine())

	w := env.postDownload(url.Values{"url": {"https://twitter.com/x"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request parameters.", decodeBody(t, w)["message"])
}

func TestDownload_UnsupportedPlatform(t *testing.T) {
	env := newHandlerEnv(t, writingEngine())

	w := env.postDownload(url.Values{
		"url":      {"https://vimeo.com/123"},
		"platform": {"vimeo"},
		"user_id":  {"42"},
	})

	// 与历史行为一致：业务拒绝也走 200
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Unsupported platform.", decodeBody(t, w)["message"])
}

func TestDownload_ExtractionFailureReturnsGenericMessage(t *testing.T) {
	env := newHandlerEnv(t, &fakeEngine{download: func(context.Context, extractor.Request) (*extractor.Result, error) {
		return nil, errors.New("yt-dlp: HTTP 404")
	}})

	w := env.postDownload(url.Values{
		"url":      {"https://twitter.com/x/status/404"},
		"platform": {"twitter"},
		"user_id":  {"42"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.FailureMessage, decodeBody(t, w)["message"])
}

func TestDownload_TimeoutMessage(t *testing.T) {
	env := newHandlerEnv(t, &fakeEngine{download: func(ctx context.Context, _ extractor.Request) (*extractor.Result, error) {
		select {
		case <-time.After(10 * time.Second):
		case <-ctx.Done():
		}
		return nil, errors.New("interrupted")
	}})
	env.cfg.Download.WaitTimeout = 2

	w := env.postDownload(url.Values{
		"url":      {"https://twitter.com/x/status/1"},
		"platform": {"twitter"},
		"user_id":  {"42"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Failed to download or timeout.", decodeBody(t, w)["message"])
}

func TestDownload_InstagramCooldownAfterSuccess(t *testing.T) {
	env := newHandlerEnv(t, writingEngine())

	form := url.Values{
		"url":      {"https://instagram.com/reel/x"},
		"platform": {"instagram"},
		"user_id":  {"42"},
	}

	first := env.postDownload(form)
	require.Equal(t, http.StatusOK, first.Code)
	require.Contains(t, decodeBody(t, first), "file_url")

	// 成功记账后立刻再来一单，落进冷却期
	second := env.postDownload(form)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "Wait 10 minutes before next download.", decodeBody(t, second)["message"])
}

func TestDownload_InstagramDailyLimit(t *testing.T) {
	env := newHandlerEnv(t, writingEngine())

	// 直接把今天的账记满
	now := time.Now().UTC()
	for i := 0; i < 10; i++ {
		require.NoError(t, env.usage.Record(42, model.PlatformInstagram, now))
	}

	w := env.postDownload(url.Values{
		"url":      {"https://instagram.com/reel/x"},
		"platform": {"instagram"},
		"user_id":  {"42"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Daily limit reached (10 videos). Try again tomorrow.",
		decodeBody(t, w)["message"])
}

func TestProgress_DefaultZero(t *testing.T) {
	env := newHandlerEnv(t, writingEngine())

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/progress/42", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["percent"])
	assert.NotContains(t, body, "error")
}

func TestProgress_ReportsPercentAndError(t *testing.T) {
	env := newHandlerEnv(t, writingEngine())
	env.tracker.Begin(42)
	env.tracker.SetPercent(42, 55)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/progress/42", nil))
	assert.Equal(t, float64(55), decodeBody(t, w)["percent"])

	env.tracker.Fail(42, service.FailureMessage)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/progress/42", nil))
	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["percent"])
	assert.Equal(t, service.FailureMessage, body["error"])
}

func TestProgress_InvalidUserID(t *testing.T) {
	env := newHandlerEnv(t, writingEngine())

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/progress/abc", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProgressWS_ClosesAtCompletion(t *testing.T) {
	env := newHandlerEnv(t, writingEngine())
	env.tracker.Begin(42)
	env.tracker.SetPercent(42, 100)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/progress/42"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var payload map[string]any
	require.NoError(t, conn.ReadJSON(&payload))
	assert.Equal(t, float64(100), payload["percent"])

	// 终态之后服务端关闭连接
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.Error(t, conn.ReadJSON(&payload))
}

func TestServe_UnknownFileReturns404(t *testing.T) {
	env := newHandlerEnv(t, writingEngine())

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/downloaded/video_42.mp4", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "File not found", decodeBody(t, w)["error"])
}

func TestServe_DeliversThenDeletes(t *testing.T) {
	env := newHandlerEnv(t, writingEngine())

	path := filepath.Join(env.dir, "video_42.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video-bytes"), 0644))
	env.tracker.SetFilePath(42, path)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/downloaded/video_42.mp4", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "video_42.mp4")
	assert.Equal(t, "video-bytes", w.Body.String())

	// 缓冲期过后文件被删，状态条目一并清除
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err) && env.tracker.Get(42).FilePath == ""
	}, 3*time.Second, 50*time.Millisecond)
}

func TestServe_Mp3GetsAudioContentType(t *testing.T) {
	env := newHandlerEnv(t, writingEngine())

	path := filepath.Join(env.dir, "video_42.mp3")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0644))

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/downloaded/video_42.mp3", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
}
