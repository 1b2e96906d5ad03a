package syncer

import (
	"context"
	"fmt"
	"kbsync/internal/disk"
	"kbsync/internal/metrics"
	"kbsync/internal/model"
	"path"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// CloudScan fills the cloud side of the item map by listing folders in
// waves: every folder of one depth is listed concurrently, and the
// directories found become the next wave. A missing project root means the
// cloud side is empty. Any other listing failure aborts the scan.
func (p *Project) CloudScan(ctx context.Context) error {
	start := time.Now()

	scanned := map[string]bool{"": true}
	pending := []string{""}

	for len(pending) > 0 {
		found, err := p.scanWave(ctx, pending)
		if err != nil {
			return err
		}

		pending = nil
		for _, rel := range found {
			if !scanned[rel] {
				scanned[rel] = true
				pending = append(pending, rel)
			}
		}
	}

	took := time.Since(start)
	metrics.ObserveScan("cloud", took)
	p.emit(Event{Kind: EventScanDone, Side: "cloud", Items: len(p.itemMap()), Duration: took})
	return nil
}

// scanWave lists every folder concurrently and returns the subdirectories
// found, sorted.
func (p *Project) scanWave(ctx context.Context, folders []string) ([]string, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(min(p.threads, len(folders)))

	var mu sync.Mutex
	var found []string

	for _, folder := range folders {
		g.Go(func() error {
			dirs, err := p.scanFolder(ctx, folder)
			if err != nil {
				return err
			}

			mu.Lock()
			found = append(found, dirs...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.Sort(found)
	return found, nil
}

func (p *Project) scanFolder(ctx context.Context, rel string) ([]string, error) {
	resources, err := p.sides.remote.List(ctx, p.cloudRoot.Join(rel))
	if err != nil {
		if rel == "" && disk.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCloudScan, p.cloudRoot.Join(rel), err)
	}

	var dirs []string
	for _, r := range resources {
		child := path.Join(rel, r.Name)
		if p.skip(child, r.IsDir()) {
			continue
		}

		st := cloudState(child, r)
		p.item(child).Cloud = st

		if st.Kind == model.KindDir {
			dirs = append(dirs, child)
		}
	}

	return dirs, nil
}

func cloudState(rel string, r disk.Resource) model.ItemState {
	if r.IsDir() {
		return model.DirState(rel, r.Modified)
	}

	return model.FileState(rel, r.MD5, r.Size, r.Modified)
}
