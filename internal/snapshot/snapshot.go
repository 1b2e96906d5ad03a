// Package snapshot persists the last saved local tree of a project and
// diffs a fresh scan against it.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"kbsync/internal/model"
	"kbsync/internal/util"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/afero"
)

// FileName is the cache file kept at the root of every project.
const FileName = ".project_cache.json"

const Version = "1.0"

var ErrNoBaseline = errors.New("no baseline, run save first")

type ProjectInfo struct {
	LocalPath    string    `json:"local_path"`
	CloudPath    string    `json:"cloud_path"`
	LastUpdated  time.Time `json:"last_updated"`
	CacheVersion string    `json:"cache_version"`
}

type Statistics struct {
	TotalFiles       int   `json:"total_files"`
	TotalDirectories int   `json:"total_directories"`
	TotalSize        int64 `json:"total_size"`
}

type Cache struct {
	ProjectInfo ProjectInfo                `json:"project_info"`
	Files       map[string]model.ItemState `json:"files"`
	Dirs        map[string]model.ItemState `json:"dirs"`
	Statistics  Statistics                 `json:"statistics"`
}

// Build records the file and directory states; absent entries are skipped.
func Build(localPath, cloudPath string, states []model.ItemState, now time.Time) *Cache {
	c := &Cache{
		ProjectInfo: ProjectInfo{
			LocalPath:    localPath,
			CloudPath:    cloudPath,
			LastUpdated:  now,
			CacheVersion: Version,
		},
		Files: make(map[string]model.ItemState),
		Dirs:  make(map[string]model.ItemState),
	}

	for _, st := range states {
		switch st.Kind {
		case model.KindFile:
			c.Files[st.Path] = st
			c.Statistics.TotalSize += st.Size
		case model.KindDir:
			c.Dirs[st.Path] = st
		}
	}

	c.Statistics.TotalFiles = len(c.Files)
	c.Statistics.TotalDirectories = len(c.Dirs)
	return c
}

func Save(fs afero.Fs, projectDir string, c *Cache) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	if _, err := util.AtomicWrite(fs, filepath.Join(projectDir, FileName), bytes.NewReader(b)); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}

	return nil
}

// Load reads the cache of projectDir. A missing or unreadable cache is
// reported as ErrNoBaseline.
func Load(fs afero.Fs, projectDir string) (*Cache, error) {
	b, err := afero.ReadFile(fs, filepath.Join(projectDir, FileName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBaseline, err)
	}

	var c Cache
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: corrupt cache: %v", ErrNoBaseline, err)
	}

	if c.Files == nil {
		c.Files = make(map[string]model.ItemState)
	}
	if c.Dirs == nil {
		c.Dirs = make(map[string]model.ItemState)
	}

	return &c, nil
}

// Diff lists, in lexical order, how a current tree differs from a baseline.
type Diff struct {
	NewFiles     []string
	RemovedFiles []string
	NewDirs      []string
	RemovedDirs  []string
	ChangedFiles []string
}

func (d Diff) InSync() bool {
	return len(d.NewFiles) == 0 && len(d.RemovedFiles) == 0 &&
		len(d.NewDirs) == 0 && len(d.RemovedDirs) == 0 && len(d.ChangedFiles) == 0
}

func Compare(baseline, current *Cache) Diff {
	var d Diff

	d.NewFiles = missingFrom(current.Files, baseline.Files)
	d.RemovedFiles = missingFrom(baseline.Files, current.Files)
	d.NewDirs = missingFrom(current.Dirs, baseline.Dirs)
	d.RemovedDirs = missingFrom(baseline.Dirs, current.Dirs)

	for p, cur := range current.Files {
		if old, ok := baseline.Files[p]; ok && old.MD5 != cur.MD5 {
			d.ChangedFiles = append(d.ChangedFiles, p)
		}
	}
	slices.Sort(d.ChangedFiles)

	return d
}

// missingFrom returns the keys of a that b lacks.
func missingFrom(a, b map[string]model.ItemState) []string {
	var out []string
	for p := range a {
		if _, ok := b[p]; !ok {
			out = append(out, p)
		}
	}

	slices.Sort(out)
	return out
}
