package syncer

import (
	"context"
	"fmt"
	"kbsync/internal/disk"
	"kbsync/internal/model"
	"kbsync/internal/util"
	"path/filepath"
	"time"
)

// Item pairs the local and cloud state of one project-relative path.
// Only the worker handling an item touches it while actions run.
type Item struct {
	Rel   string
	Local model.ItemState
	Cloud model.ItemState

	localPath string
	cloudPath disk.Path
	sides     *sides
}

func (p *Project) newItem(rel string) *Item {
	return &Item{
		Rel:       rel,
		Local:     model.Absent(rel),
		Cloud:     model.Absent(rel),
		localPath: filepath.Join(p.localRoot, filepath.FromSlash(rel)),
		cloudPath: p.cloudRoot.Join(rel),
		sides:     &p.sides,
	}
}

func (it *Item) LocalPath() string {
	return it.localPath
}

func (it *Item) CloudPath() disk.Path {
	return it.cloudPath
}

func (it *Item) String() string {
	return fmt.Sprintf("%s (%s/%s)", it.Rel, it.Local.Kind, it.Cloud.Kind)
}

func (it *Item) RemoveCloud(ctx context.Context) error {
	if err := it.sides.remote.Remove(ctx, it.cloudPath); err != nil {
		return err
	}

	it.Cloud = model.Absent(it.Rel)
	return nil
}

func (it *Item) CreateCloudDir(ctx context.Context) error {
	if err := it.sides.remote.CreateDir(ctx, it.cloudPath); err != nil {
		return err
	}

	it.Cloud = model.DirState(it.Rel, time.Now())
	return nil
}

func (it *Item) Upload(ctx context.Context) error {
	if err := it.sides.remote.Upload(ctx, it.sides.fs, it.localPath, it.cloudPath); err != nil {
		return err
	}

	it.Cloud = it.Local
	return nil
}

// RemoveLocal deletes the file or tree at the item's local path. A path
// that is already gone counts as removed.
func (it *Item) RemoveLocal(context.Context) error {
	if err := util.RemoveAllIfExists(it.sides.fs, it.localPath); err != nil {
		return err
	}

	it.Local = model.Absent(it.Rel)
	return nil
}

func (it *Item) CreateLocalDir(context.Context) error {
	if err := it.sides.fs.MkdirAll(it.localPath, 0755); err != nil {
		return fmt.Errorf("failed to create dir %s: %w", it.localPath, err)
	}

	st, err := model.LocalState(it.sides.fs, it.localPath, it.Rel)
	if err != nil {
		return err
	}

	it.Local = st
	return nil
}

func (it *Item) Download(ctx context.Context) error {
	if err := it.sides.remote.Download(ctx, it.cloudPath, it.sides.fs, it.localPath); err != nil {
		return err
	}

	it.Local = it.Cloud
	return nil
}

// Action is one kind of per-item mutation run by the executor.
type Action string

const (
	ActionRemoveCloud    Action = "remove_cloud"
	ActionCreateCloudDir Action = "create_cloud_dir"
	ActionUpload         Action = "upload"
	ActionRemoveLocal    Action = "remove_local"
	ActionCreateLocalDir Action = "create_local_dir"
	ActionDownload       Action = "download"
)

func (a Action) apply(ctx context.Context, it *Item) error {
	switch a {
	case ActionRemoveCloud:
		return it.RemoveCloud(ctx)
	case ActionCreateCloudDir:
		return it.CreateCloudDir(ctx)
	case ActionUpload:
		return it.Upload(ctx)
	case ActionRemoveLocal:
		return it.RemoveLocal(ctx)
	case ActionCreateLocalDir:
		return it.CreateLocalDir(ctx)
	case ActionDownload:
		return it.Download(ctx)
	default:
		return fmt.Errorf("unknown action %q", a)
	}
}
