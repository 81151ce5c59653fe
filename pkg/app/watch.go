package app

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zurustar/espg/pkg/compiler"
	"github.com/zurustar/espg/pkg/compiler/config"
)

// 保存時に連続して届くイベントをまとめる待ち時間
const rebuildDelay = 200 * time.Millisecond

// watch 最初にビルドし、その後は設定ファイルとアセットフォルダの変更ごとに再ビルドする
// ビルドの失敗はログに出して監視を続ける
func (app *Application) watch(ctx context.Context) error {
	w := &watcher{
		source: app.config.Path,
		delay:  rebuildDelay,
		build:  app.build,
		log:    app.log,
	}
	return w.run(ctx)
}

// watcher はビルドを1つずつ順に実行する
type watcher struct {
	source string
	delay  time.Duration
	build  func(ctx context.Context) (*compiler.Result, error)
	log    *slog.Logger

	fsw      *fsnotify.Watcher
	assetDir string
	output   string
}

func (w *watcher) run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	w.fsw = fsw

	// エディタは一時ファイルを置き換えて保存するので、ファイルではなくディレクトリを監視する
	if err := fsw.Add(filepath.Dir(w.source)); err != nil {
		return err
	}

	w.rebuild(ctx)
	w.log.Info("Watching for changes", "source", w.source, "assets", w.assetDir)

	// 最初のイベントまでは止めておく
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Stopped watching")
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("Change detected", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.delay)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error", "error", err)

		case <-timer.C:
			w.rebuild(ctx)
		}
	}
}

// rebuild はビルドし、設定で変わったかもしれないアセットフォルダを監視し直す
func (w *watcher) rebuild(ctx context.Context) {
	res, err := w.build(ctx)
	if err != nil {
		w.log.Error("Build failed", "error", err)
		if w.assetDir == "" {
			w.watchAssets(filepath.Join(filepath.Dir(w.source), config.DefaultAssetFolder))
		}
		return
	}
	w.output = res.Output
	w.watchAssets(res.Config.AssetFolder)
}

func (w *watcher) watchAssets(dir string) {
	if dir == w.assetDir {
		return
	}
	if w.assetDir != "" && w.assetDir != filepath.Dir(w.source) {
		if err := w.fsw.Remove(w.assetDir); err != nil {
			w.log.Debug("Could not unwatch asset folder", "path", w.assetDir, "error", err)
		}
	}
	if err := w.fsw.Add(dir); err != nil {
		// フォルダがまだ無い場合は次のビルドで再試行する
		if !errors.Is(err, fs.ErrNotExist) {
			w.log.Warn("Could not watch asset folder", "path", dir, "error", err)
		}
		w.assetDir = ""
		return
	}
	w.assetDir = dir
}

// relevant はイベントが再ビルドの対象かどうかを返す
// 出力ファイルとその書き込み用一時ファイルは対象外
func (w *watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(ev.Name)
	if w.output != "" {
		if name == filepath.Clean(w.output) {
			return false
		}
		if strings.HasPrefix(filepath.Base(name), "."+filepath.Base(w.output)+".") {
			return false
		}
	}

	dir := filepath.Dir(name)
	if w.assetDir != "" && dir == filepath.Clean(w.assetDir) {
		return true
	}
	return name == filepath.Clean(w.source)
}
