package syncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"kbsync/internal/ignore"
	"kbsync/internal/metrics"
	"kbsync/internal/model"
	"kbsync/internal/snapshot"
	"kbsync/internal/util"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// LocalScan resets the item map and fills the local side from a recursive
// walk of the project root. The root and its ignore file are created when
// missing.
func (p *Project) LocalScan(ctx context.Context) error {
	start := time.Now()

	p.mu.Lock()
	p.items = make(map[string]*Item)
	p.mu.Unlock()

	if err := p.ensureRoot(); err != nil {
		return err
	}

	if err := p.loadIgnore(); err != nil {
		return err
	}

	if err := p.walk(ctx, ""); err != nil {
		return err
	}

	took := time.Since(start)
	metrics.ObserveScan("local", took)
	p.emit(Event{Kind: EventScanDone, Side: "local", Items: len(p.itemMap()), Duration: took})
	return nil
}

func (p *Project) ensureRoot() error {
	info, err := p.sides.fs.Stat(p.localRoot)
	if errors.Is(err, fs.ErrNotExist) {
		if err := p.sides.fs.MkdirAll(p.localRoot, 0755); err != nil {
			return fmt.Errorf("failed to create project root: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat project root: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootIsFile, p.localRoot)
	}
	return nil
}

func (p *Project) loadIgnore() error {
	name := filepath.Join(p.localRoot, ignore.FileName)

	info, err := p.sides.fs.Stat(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := afero.WriteFile(p.sides.fs, name, []byte(ignore.DefaultRules), 0644); err != nil {
			return fmt.Errorf("failed to create ignore file: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to stat ignore file: %w", err)
	case info.IsDir():
		return fmt.Errorf("%w: %s", ErrIgnoreFileIsDir, name)
	}

	b, err := afero.ReadFile(p.sides.fs, name)
	if err != nil {
		return fmt.Errorf("failed to read ignore file: %w", err)
	}

	p.ignore = ignore.Parse(string(b))
	return nil
}

// walk visits rel depth-first. Failures below the root are logged and the
// entry is skipped.
func (p *Project) walk(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(p.localRoot, filepath.FromSlash(rel))
	entries, err := afero.ReadDir(p.sides.fs, dir)
	if err != nil {
		if rel == "" {
			return fmt.Errorf("failed to read project root: %w", err)
		}
		p.warn("skipping unreadable directory", rel, err)
		return nil
	}

	for _, e := range entries {
		child := path.Join(rel, e.Name())
		if p.skip(child, e.IsDir()) {
			continue
		}

		it := p.item(child)
		st, err := model.LocalState(p.sides.fs, it.localPath, child)
		if err != nil {
			p.warn("skipping unreadable entry", child, err)
			continue
		}
		it.Local = st

		if st.Kind == model.KindDir {
			if err := p.walk(ctx, child); err != nil {
				return err
			}
		}
	}

	return nil
}

// skip reports whether rel is outside the synced set: the cache file,
// an unfinished download, or a path ignored by the project's rules.
func (p *Project) skip(rel string, isDir bool) bool {
	if rel == snapshot.FileName || strings.HasSuffix(rel, util.TempSuffix) {
		return true
	}

	return p.ignore.ShouldIgnore(rel, isDir)
}

func (p *Project) warn(msg, rel string, err error) {
	p.log.Warn(msg, zap.String("path", rel), zap.Error(err))
	p.emit(Event{Kind: EventWarning, Message: msg, Path: rel, Err: err})
}
