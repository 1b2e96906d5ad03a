package snapshot

import (
	"kbsync/internal/model"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func states() []model.ItemState {
	return []model.ItemState{
		model.FileState("a.txt", "h1", 10, now),
		model.FileState("docs/b.md", "h2", 32, now),
		model.DirState("docs", now),
		model.Absent("gone"),
	}
}

func TestBuild(t *testing.T) {
	c := Build("/base/Cat/Proj", "app:/Cat/Proj", states(), now)

	assert.Len(t, c.Files, 2)
	assert.Len(t, c.Dirs, 1)
	assert.Equal(t, Statistics{TotalFiles: 2, TotalDirectories: 1, TotalSize: 42}, c.Statistics)
	assert.Equal(t, Version, c.ProjectInfo.CacheVersion)
}

func TestSaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := Build("/p", "app:/C/P", states(), now)

	require.NoError(t, Save(fs, "/p", c))

	loaded, err := Load(fs, "/p")
	require.NoError(t, err)
	assert.Equal(t, c.Statistics, loaded.Statistics)
	assert.Equal(t, "h2", loaded.Files["docs/b.md"].MD5)
	assert.Equal(t, model.KindDir, loaded.Dirs["docs"].Kind)
	assert.True(t, loaded.ProjectInfo.LastUpdated.Equal(now))

	raw, err := afero.ReadFile(fs, "/p/"+FileName)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"total_directories": 1`)
	assert.Contains(t, string(raw), `"type": "file"`)
}

func TestLoadMissingOrCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Load(fs, "/p")
	assert.ErrorIs(t, err, ErrNoBaseline)

	require.NoError(t, afero.WriteFile(fs, "/p/"+FileName, []byte("{not json"), 0644))
	_, err = Load(fs, "/p")
	assert.ErrorIs(t, err, ErrNoBaseline)
}

func TestCompare(t *testing.T) {
	baseline := Build("/p", "app:/p", states(), now)
	assert.True(t, Compare(baseline, baseline).InSync())

	current := Build("/p", "app:/p", []model.ItemState{
		model.FileState("a.txt", "h1-changed", 11, now),
		model.FileState("new.txt", "h3", 1, now),
		model.DirState("assets", now),
	}, now)

	d := Compare(baseline, current)
	assert.False(t, d.InSync())
	assert.Equal(t, []string{"new.txt"}, d.NewFiles)
	assert.Equal(t, []string{"docs/b.md"}, d.RemovedFiles)
	assert.Equal(t, []string{"assets"}, d.NewDirs)
	assert.Equal(t, []string{"docs"}, d.RemovedDirs)
	assert.Equal(t, []string{"a.txt"}, d.ChangedFiles)
}
