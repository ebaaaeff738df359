package extractor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"media-fetch/app/logger"
)

var (
	// progressLineRe yt-dlp 传输行，如 "[download]  42.5% of 10.00MiB at ..."
	progressLineRe = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?%)`)
	// destinationRe 目标文件行，下载与音频抽取阶段都会出现
	destinationRe = regexp.MustCompile(`^\[(?:download|ExtractAudio)\] Destination: (.+)$`)
	// mergeRe ffmpeg 合并输出行
	mergeRe = regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"$`)
	// alreadyRe 文件已存在时 yt-dlp 的提示行
	alreadyRe = regexp.MustCompile(`^\[download\] (.+) has already been downloaded`)
)

// YtDlp 基于本地 yt-dlp 可执行文件的提取引擎实现
type YtDlp struct {
	binPath string
	logger  *logger.Logger
}

// NewYtDlp 创建 yt-dlp 引擎。binPath 为空时优先使用工作目录下的可执行文件，
// 否则按 PATH 查找。
func NewYtDlp(binPath string, log *logger.Logger) *YtDlp {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if binPath == "yt-dlp" {
		if _, err := os.Stat("./yt-dlp"); err == nil {
			binPath = "./yt-dlp"
		}
	}
	return &YtDlp{binPath: binPath, logger: log}
}

// FFmpegAvailable 探测宿主机上是否存在 ffmpeg。
// 不可用时引擎只能请求单个已合流的格式，而不是分别取最优音视频再合并。
func FFmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// Download 执行一次提取。逐行扫描 yt-dlp 输出：进度行转为回调事件，
// 目标文件行用于确定最终路径；进程正常退出后补发 finished 事件。
func (y *YtDlp) Download(ctx context.Context, req Request) (*Result, error) {
	cmd := exec.CommandContext(ctx, y.binPath, y.buildArgs(req)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("创建输出管道失败: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("启动 yt-dlp 失败: %w", err)
	}

	var dest string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := StripANSI(scanner.Text())

		if m := progressLineRe.FindStringSubmatch(line); m != nil {
			if req.OnProgress != nil {
				req.OnProgress(ProgressEvent{Status: StatusDownloading, Percent: m[1]})
			}
			continue
		}
		if m := destinationRe.FindStringSubmatch(line); m != nil {
			dest = m[1]
			continue
		}
		if m := mergeRe.FindStringSubmatch(line); m != nil {
			dest = m[1]
			continue
		}
		if m := alreadyRe.FindStringSubmatch(line); m != nil {
			dest = m[1]
		}
	}

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("yt-dlp 执行失败: %w, stderr: %s", err, tail(stderr.String(), 512))
	}

	path, err := y.resolveResultPath(req, dest)
	if err != nil {
		return nil, err
	}

	if req.OnProgress != nil {
		req.OnProgress(ProgressEvent{Status: StatusFinished})
	}
	return &Result{FilePath: path}, nil
}

// buildArgs 把请求翻译为 yt-dlp 命令行参数
func (y *YtDlp) buildArgs(req Request) []string {
	args := []string{
		"--newline",
		"--no-playlist",
		"--no-colors",
		"-o", req.OutputTemplate,
	}

	if req.AudioOnly {
		args = append(args,
			"-f", "bestaudio/best",
			"-x",
			"--audio-format", "mp3",
			"--audio-quality", "192K",
		)
	} else if req.MergeFormats {
		args = append(args, "-f", "bestvideo+bestaudio/best")
	} else {
		args = append(args, "-f", "best")
	}

	if req.CookieFile != "" {
		args = append(args, "--cookies", req.CookieFile)
	}

	return append(args, req.URL)
}

// resolveResultPath 确定最终文件路径。优先使用输出中捕获的目标行；
// 音频抽取会把扩展名改写为 mp3；兜底按输出模板通配查找。
func (y *YtDlp) resolveResultPath(req Request, dest string) (string, error) {
	if req.AudioOnly {
		// 转码后的 mp3 路径可以由模板确定
		p := strings.ReplaceAll(req.OutputTemplate, "%(ext)s", "mp3")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if dest != "" {
		if _, err := os.Stat(dest); err == nil {
			return dest, nil
		}
	}

	pattern := strings.ReplaceAll(req.OutputTemplate, "%(ext)s", "*")
	matches, err := filepath.Glob(pattern)
	if err == nil && len(matches) > 0 {
		return matches[0], nil
	}

	return "", fmt.Errorf("未找到下载结果文件: %s", pattern)
}

// tail 截取字符串结尾部分，避免把完整 stderr 塞进错误信息
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
