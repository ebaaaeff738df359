package filewatcher

import (
	"os"
	"path/filepath"
	"sync"

	"media-fetch/app/logger"
	"media-fetch/app/model"

	"github.com/fsnotify/fsnotify"
)

// CookieWatcher 监控下载目录中各平台 Cookie 文件的存在状态。
// Cookie 文件可以在运行期间被放入或移除，带 Cookie 的重试只在文件
// 当前存在时才会附带 --cookies。
type CookieWatcher struct {
	dir     string
	logger  *logger.Logger
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	present map[string]bool // Cookie 文件名 -> 是否存在

	done chan struct{}
	wg   sync.WaitGroup
}

// New 创建 Cookie 文件监控器并做一次初始扫描
func New(dir string, log *logger.Logger) (*CookieWatcher, error) {
	w := &CookieWatcher{
		dir:     dir,
		logger:  log,
		present: make(map[string]bool),
		done:    make(chan struct{}),
	}

	for _, p := range model.AllPlatforms {
		name := p.CookieFile()
		_, err := os.Stat(filepath.Join(dir, name))
		w.present[name] = err == nil
		if err == nil {
			log.Infof("检测到 %s 平台的 Cookie 文件: %s", p, name)
		}
	}

	return w, nil
}

// Start 启动目录监控
func (w *CookieWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	w.wg.Add(1)
	go w.loop()

	w.logger.Infof("Cookie 文件监控已启动: %s", w.dir)
	return nil
}

// Stop 停止监控
func (w *CookieWatcher) Stop() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()
}

func (w *CookieWatcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("Cookie 文件监控出错: %v", err)
		}
	}
}

func (w *CookieWatcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, tracked := w.present[name]; !tracked {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		if !w.present[name] {
			w.logger.Infof("Cookie 文件已就绪: %s", name)
		}
		w.present[name] = true
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		if w.present[name] {
			w.logger.Infof("Cookie 文件已移除: %s", name)
		}
		w.present[name] = false
	}
}

// CookiePath 平台 Cookie 文件存在时返回完整路径，否则返回空串
func (w *CookieWatcher) CookiePath(p model.Platform) string {
	name := p.CookieFile()
	if name == "" {
		return ""
	}

	w.mu.RLock()
	ok := w.present[name]
	w.mu.RUnlock()
	if !ok {
		return ""
	}
	return filepath.Join(w.dir, name)
}
