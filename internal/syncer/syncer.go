// Package syncer reconciles one project's local tree with its cloud tree.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"kbsync/internal/disk"
	"kbsync/internal/executor"
	"kbsync/internal/ignore"
	"kbsync/internal/logger"
	"kbsync/internal/metrics"
	"kbsync/internal/model"
	"kbsync/internal/snapshot"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	ErrRootIsFile      = errors.New("project root is occupied by a file")
	ErrIgnoreFileIsDir = errors.New("ignore file path is occupied by a directory")
	ErrCloudScan       = errors.New("cloud scan failed")
)

// Remote is the part of the cloud client the syncer drives.
type Remote interface {
	List(ctx context.Context, p disk.Path) ([]disk.Resource, error)
	CreateDir(ctx context.Context, p disk.Path) error
	Remove(ctx context.Context, p disk.Path) error
	Upload(ctx context.Context, fs afero.Fs, localPath string, p disk.Path) error
	Download(ctx context.Context, p disk.Path, fs afero.Fs, localPath string) error
}

type sides struct {
	fs     afero.Fs
	remote Remote
}

type Options struct {
	Fs      afero.Fs
	Threads int
	Sink    Sink
	Logger  *zap.Logger
}

// Project maps <base>/<category>/<name> on disk to <cloudBase>/<category>/<name>.
// Its item map is rebuilt by every scan; a Project must not be used by two
// operations at once.
type Project struct {
	Category string
	Name     string

	localRoot string
	cloudRoot disk.Path
	sides     sides
	threads   int
	sink      Sink
	log       *zap.Logger

	ignore *ignore.Matcher

	mu    sync.Mutex
	items map[string]*Item
}

func NewProject(basePath string, cloudBase disk.Path, category, name string, remote Remote, opts Options) (*Project, error) {
	root, err := filepath.Abs(filepath.Join(basePath, category, name))
	if err != nil {
		return nil, fmt.Errorf("invalid project path: %w", err)
	}

	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Threads < 1 {
		opts.Threads = executor.DefaultLimit
	}
	if opts.Sink == nil {
		opts.Sink = Discard
	}
	if opts.Logger == nil {
		opts.Logger = logger.Log
	}

	return &Project{
		Category:  category,
		Name:      name,
		localRoot: root,
		cloudRoot: cloudBase.Join(category, name),
		sides:     sides{fs: opts.Fs, remote: remote},
		threads:   opts.Threads,
		sink:      opts.Sink,
		log:       opts.Logger.Named("syncer").With(zap.String("project", category+"/"+name)),
		items:     make(map[string]*Item),
	}, nil
}

func (p *Project) String() string {
	return p.Category + "/" + p.Name
}

func (p *Project) LocalRoot() string {
	return p.localRoot
}

func (p *Project) CloudRoot() disk.Path {
	return p.cloudRoot
}

// Items returns the scanned items in path order.
func (p *Project) Items() []*Item {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Item, 0, len(p.items))
	for _, it := range p.items {
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b *Item) int { return strings.Compare(a.Rel, b.Rel) })
	return out
}

// item returns the item for rel, creating an absent/absent one if needed.
func (p *Project) item(rel string) *Item {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, ok := p.items[rel]
	if !ok {
		it = p.newItem(rel)
		p.items[rel] = it
	}
	return it
}

func (p *Project) emit(e Event) {
	e.Project = p.String()
	p.sink(e)
}

// Save makes the cloud tree match the local tree. The snapshot cache is
// written from the local scan before the cloud is looked at.
func (p *Project) Save(ctx context.Context) (*Report, error) {
	if err := p.LocalScan(ctx); err != nil {
		return nil, err
	}

	if err := snapshot.Save(p.sides.fs, p.localRoot, p.snapshot()); err != nil {
		p.log.Warn("failed to write cache", zap.Error(err))
		p.emit(Event{Kind: EventWarning, Message: "cache not written", Path: snapshot.FileName, Err: err})
	}

	if err := p.CloudScan(ctx); err != nil {
		return nil, err
	}

	return p.execute(ctx, SavePlan(Classify(p.itemMap())))
}

// Load makes the local tree match the cloud tree.
func (p *Project) Load(ctx context.Context) (*Report, error) {
	if err := p.LocalScan(ctx); err != nil {
		return nil, err
	}

	if err := p.CloudScan(ctx); err != nil {
		return nil, err
	}

	return p.execute(ctx, LoadPlan(Classify(p.itemMap())))
}

type StatusReport struct {
	Baseline *snapshot.Cache
	Current  *snapshot.Cache
	Diff     snapshot.Diff
}

// Status diffs a fresh local scan against the cache written by the last
// save. It never contacts the cloud.
func (p *Project) Status(ctx context.Context) (*StatusReport, error) {
	baseline, err := snapshot.Load(p.sides.fs, p.localRoot)
	if err != nil {
		return nil, err
	}

	if err := p.LocalScan(ctx); err != nil {
		return nil, err
	}

	current := p.snapshot()
	return &StatusReport{
		Baseline: baseline,
		Current:  current,
		Diff:     snapshot.Compare(baseline, current),
	}, nil
}

func (p *Project) snapshot() *snapshot.Cache {
	items := p.Items()
	states := make([]model.ItemState, 0, len(items))
	for _, it := range items {
		states = append(states, it.Local)
	}

	return snapshot.Build(p.localRoot, p.cloudRoot.String(), states, time.Now())
}

func (p *Project) itemMap() map[string]*Item {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.items
}

type StepReport struct {
	Action Action
	Total  int
	Failed int
}

type Report struct {
	Items int
	Steps []StepReport
}

func (r *Report) Total() int {
	n := 0
	for _, s := range r.Steps {
		n += s.Total
	}
	return n
}

func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		n += s.Failed
	}
	return n
}

func (p *Project) execute(ctx context.Context, plan Plan) (*Report, error) {
	report := &Report{Items: len(p.itemMap())}
	p.emit(Event{Kind: EventPlan, Items: report.Items, Pending: plan.Len()})

	for _, step := range plan {
		res := executor.Run(ctx, step.Items,
			func(it *Item) string { return it.cloudPath.String() },
			func(ctx context.Context, it *Item) error {
				err := step.Action.apply(ctx, it)
				metrics.RecordAction(string(step.Action), err == nil)
				p.emit(Event{Kind: EventAction, Action: step.Action, Path: it.Rel, Err: err})
				return err
			},
			executor.Options{
				Limit: p.threads,
				Every: p.threads,
				Progress: func(done, total int) {
					p.emit(Event{Kind: EventProgress, Action: step.Action, Done: done, Total: total})
				},
			})

		report.Steps = append(report.Steps, StepReport{Action: step.Action, Total: res.Total, Failed: res.Failed})

		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	return report, nil
}
