package packer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher rebuilds single files of a source tree as they change.
type Watcher struct {
	src, dst string
	opts     Options
	log      *zap.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher watches every directory under src. Directories created later
// are picked up as their Create events arrive.
func NewWatcher(src, dst string, opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{src: src, dst: dst, opts: opts, log: opts.log(), watcher: fw}
	if err := w.addTree(src); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(p)
		}
		return nil
	})
}

// Run handles events until ctx is done or the watcher is closed. onBuild,
// if set, is called after every rebuild attempt.
func (w *Watcher) Run(ctx context.Context, onBuild func(Job, error)) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.handle(event.Name, onBuild)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(name string, onBuild func(Job, error)) {
	info, err := os.Stat(name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if err := w.addTree(name); err != nil {
			w.log.Warn("failed to watch directory", zap.String("dir", name), zap.Error(err))
		}
		jobs, err := ScanTree(name)
		if err != nil {
			return
		}
		prefix, _ := filepath.Rel(w.src, name)
		for _, job := range jobs {
			job.Rel = filepath.ToSlash(filepath.Join(prefix, job.Rel))
			w.build(job, onBuild)
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}
	rel, err := filepath.Rel(w.src, name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	w.build(Job{Rel: rel, Seal: ShouldSeal(rel)}, onBuild)
}

func (w *Watcher) build(job Job, onBuild func(Job, error)) {
	_, err := buildOne(w.src, w.dst, job, w.opts)
	if err != nil {
		w.log.Warn("rebuild failed", zap.String("file", job.Rel), zap.Error(err))
	} else {
		w.log.Info("rebuilt", zap.String("file", job.Rel), zap.Bool("sealed", job.Seal))
	}
	if onBuild != nil {
		onBuild(job, err)
	}
}

// Close stops watching without waiting for Run to return.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
