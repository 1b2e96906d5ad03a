// Package pipeline turns raw watcher events into save triggers.
package pipeline

import (
	"kbsync/internal/ignore"
	"kbsync/internal/logger"
	"kbsync/internal/model"
	"kbsync/internal/snapshot"
	"kbsync/internal/util"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Filter drops events for paths a save would not sync. The project's
// ignore rules are reread whenever the ignore file itself changes.
type Filter struct {
	fs   afero.Fs
	root string

	mu    sync.RWMutex
	rules *ignore.Matcher
}

func NewFilter(fs afero.Fs, root string) *Filter {
	f := &Filter{fs: fs, root: root}
	f.reload()
	return f
}

func (f *Filter) reload() {
	b, err := afero.ReadFile(f.fs, filepath.Join(f.root, ignore.FileName))
	if err != nil {
		logger.Log.Debug("no ignore rules, using defaults", zap.Error(err))
		b = []byte(ignore.DefaultRules)
	}

	rules := ignore.Parse(string(b))

	f.mu.Lock()
	f.rules = rules
	f.mu.Unlock()
}

// Skip reports whether the absolute path is outside the synced set.
func (f *Filter) Skip(path string, isDir bool) bool {
	rel, ok := f.rel(path)
	if !ok {
		return true
	}
	if rel == "" {
		return false
	}

	if rel == snapshot.FileName || strings.HasSuffix(rel, util.TempSuffix) {
		return true
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.rules.ShouldIgnore(rel, isDir)
}

func (f *Filter) rel(path string) (string, bool) {
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", true
	}

	return filepath.ToSlash(rel), true
}

func (f *Filter) Run(inCh <-chan model.FileEvent) <-chan model.FileEvent {
	outCh := make(chan model.FileEvent, cap(inCh))

	go func() {
		defer close(outCh)

		for event := range inCh {
			if rel, ok := f.rel(event.Path); ok && rel == ignore.FileName {
				f.reload()
			}

			isDir, _ := afero.IsDir(f.fs, event.Path)
			if f.Skip(event.Path, isDir) {
				continue
			}
			outCh <- event
		}
	}()

	return outCh
}
