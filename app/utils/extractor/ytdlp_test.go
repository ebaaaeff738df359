package extractor

import (
	"testing"

	"media-fetch/app/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestRequest() Request {
	return Request{
		URL:            "https://youtube.com/watch?v=x",
		OutputTemplate: "/tmp/video_42.%(ext)s",
	}
}

func TestBuildArgs_DefaultSingleFormat(t *testing.T) {
	y := NewYtDlp("yt-dlp", logger.NewNop())

	args := y.buildArgs(buildTestRequest())

	assert.Contains(t, args, "--newline")
	assert.Contains(t, args, "--no-playlist")
	assert.Contains(t, args, "--no-colors")
	// ffmpeg 不可用时只请求单个已合流的格式
	assertFlagValue(t, args, "-f", "best")
	assert.NotContains(t, args, "--cookies")
	assert.Equal(t, "https://youtube.com/watch?v=x", args[len(args)-1])
}

func TestBuildArgs_MergeFormats(t *testing.T) {
	y := NewYtDlp("yt-dlp", logger.NewNop())
	req := buildTestRequest()
	req.MergeFormats = true

	args := y.buildArgs(req)

	assertFlagValue(t, args, "-f", "bestvideo+bestaudio/best")
}

func TestBuildArgs_AudioOnly(t *testing.T) {
	y := NewYtDlp("yt-dlp", logger.NewNop())
	req := buildTestRequest()
	req.AudioOnly = true
	req.MergeFormats = true // 音频模式优先于合并模式

	args := y.buildArgs(req)

	assertFlagValue(t, args, "-f", "bestaudio/best")
	assert.Contains(t, args, "-x")
	assertFlagValue(t, args, "--audio-format", "mp3")
	assertFlagValue(t, args, "--audio-quality", "192K")
}

func TestBuildArgs_WithCookies(t *testing.T) {
	y := NewYtDlp("yt-dlp", logger.NewNop())
	req := buildTestRequest()
	req.CookieFile = "insta_cookies.txt"

	args := y.buildArgs(req)

	assertFlagValue(t, args, "--cookies", "insta_cookies.txt")
}

func TestProgressLineParsing(t *testing.T) {
	m := progressLineRe.FindStringSubmatch("[download]  42.5% of 10.00MiB at 1.00MiB/s ETA 00:05")
	require.NotNil(t, m)
	assert.Equal(t, "42.5%", m[1])

	assert.Nil(t, progressLineRe.FindStringSubmatch("[info] Downloading format"))
}

func TestDestinationLineParsing(t *testing.T) {
	m := destinationRe.FindStringSubmatch("[download] Destination: /srv/dl/video_42.mp4")
	require.NotNil(t, m)
	assert.Equal(t, "/srv/dl/video_42.mp4", m[1])

	m = destinationRe.FindStringSubmatch("[ExtractAudio] Destination: /srv/dl/video_42.mp3")
	require.NotNil(t, m)
	assert.Equal(t, "/srv/dl/video_42.mp3", m[1])

	m = mergeRe.FindStringSubmatch(`[Merger] Merging formats into "/srv/dl/video_42.mp4"`)
	require.NotNil(t, m)
	assert.Equal(t, "/srv/dl/video_42.mp4", m[1])
}

// assertFlagValue 断言参数列表中 flag 的取值
func assertFlagValue(t *testing.T, args []string, flag, want string) {
	t.Helper()
	for i, a := range args {
		if a == flag {
			require.Less(t, i+1, len(args), "%s 缺少取值", flag)
			assert.Equal(t, want, args[i+1])
			return
		}
	}
	t.Fatalf("参数中没有 %s", flag)
}
