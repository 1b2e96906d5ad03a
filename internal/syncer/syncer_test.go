package syncer

import (
	"context"
	"errors"
	"kbsync/internal/disk"
	"kbsync/internal/fakedisk"
	"kbsync/internal/ignore"
	"kbsync/internal/model"
	"kbsync/internal/snapshot"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBase  = "/base"
	testCloud = "app:/work/notes"
)

type testEnv struct {
	client *disk.Client
	srv    *fakedisk.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	srv := fakedisk.NewServer("token")
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &testEnv{
		client: disk.New(disk.Config{
			APIURL:     ts.URL + fakedisk.APIPrefix,
			Token:      "token",
			HTTPClient: ts.Client(),
		}),
		srv: srv,
	}
}

func (e *testEnv) project(t *testing.T, fs afero.Fs, rec *Recorder) *Project {
	t.Helper()

	opts := Options{Fs: fs, Threads: 4}
	if rec != nil {
		opts.Sink = rec.Sink
	}

	p, err := NewProject(testBase, disk.ParsePath("app:/"), "work", "notes", e.client, opts)
	require.NoError(t, err)
	return p
}

func writeLocal(t *testing.T, fs afero.Fs, rel, data string) {
	t.Helper()

	name := filepath.Join(testBase, "work", "notes", filepath.FromSlash(rel))
	require.NoError(t, fs.MkdirAll(filepath.Dir(name), 0755))
	require.NoError(t, afero.WriteFile(fs, name, []byte(data), 0644))
}

func localPath(rel string) string {
	return filepath.Join(testBase, "work", "notes", filepath.FromSlash(rel))
}

func actions(rec *Recorder) []Event {
	var out []Event
	for _, e := range rec.Events() {
		if e.Kind == EventAction {
			out = append(out, e)
		}
	}
	return out
}

func TestNewProjectPaths(t *testing.T) {
	p, err := NewProject(testBase, disk.ParsePath("app:/"), "work", "notes", nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, "/base/work/notes", p.LocalRoot())
	assert.Equal(t, testCloud, p.CloudRoot().String())
	assert.Equal(t, "work/notes", p.String())
}

func TestSaveUploadsOnlyChangedFiles(t *testing.T) {
	env := newTestEnv(t)
	fs := afero.NewMemMapFs()

	writeLocal(t, fs, ignore.FileName, ignore.DefaultRules)
	writeLocal(t, fs, "a.txt", "same")
	writeLocal(t, fs, "b.txt", "same")
	env.srv.Store().WriteFile(testCloud+"/"+ignore.FileName, []byte(ignore.DefaultRules))
	env.srv.Store().WriteFile(testCloud+"/a.txt", []byte("same"))

	rec := &Recorder{}
	report, err := env.project(t, fs, rec).Save(context.Background())
	require.NoError(t, err)

	acts := actions(rec)
	require.Len(t, acts, 1)
	assert.Equal(t, ActionUpload, acts[0].Action)
	assert.Equal(t, "b.txt", acts[0].Path)
	assert.NoError(t, acts[0].Err)
	assert.Equal(t, 1, report.Total())
	assert.Zero(t, report.Failed())

	data, ok := env.srv.Store().ReadFile(testCloud + "/b.txt")
	require.True(t, ok)
	assert.Equal(t, "same", string(data))
}

func TestLoadCreatesDirBeforeDownload(t *testing.T) {
	env := newTestEnv(t)
	env.srv.Store().WriteFile(testCloud+"/"+ignore.FileName, []byte(ignore.DefaultRules))
	env.srv.Store().WriteFile(testCloud+"/docs/old.md", []byte("# old"))

	fs := afero.NewMemMapFs()
	rec := &Recorder{}
	_, err := env.project(t, fs, rec).Load(context.Background())
	require.NoError(t, err)

	acts := actions(rec)
	require.Len(t, acts, 2)
	assert.Equal(t, ActionCreateLocalDir, acts[0].Action)
	assert.Equal(t, "docs", acts[0].Path)
	assert.Equal(t, ActionDownload, acts[1].Action)
	assert.Equal(t, "docs/old.md", acts[1].Path)

	data, err := afero.ReadFile(fs, localPath("docs/old.md"))
	require.NoError(t, err)
	assert.Equal(t, "# old", string(data))
}

func TestSaveTwiceIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	fs := afero.NewMemMapFs()
	writeLocal(t, fs, "a.txt", "alpha")
	writeLocal(t, fs, "docs/b.md", "beta")
	writeLocal(t, fs, "docs/deep/c.md", "gamma")
	require.NoError(t, fs.MkdirAll(localPath("empty"), 0755))

	p := env.project(t, fs, nil)
	first, err := p.Save(context.Background())
	require.NoError(t, err)
	assert.Positive(t, first.Total())
	assert.Zero(t, first.Failed())

	second, err := p.Save(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Total())
	assert.Zero(t, Classify(p.itemMap()).Len())
}

func TestSaveThenLoadReproducesTree(t *testing.T) {
	env := newTestEnv(t)
	src := afero.NewMemMapFs()
	writeLocal(t, src, "a.txt", "alpha")
	writeLocal(t, src, "docs/b.md", "beta")
	writeLocal(t, src, "docs/deep/c.md", "gamma")
	writeLocal(t, src, ".git/HEAD", "ref")
	require.NoError(t, src.MkdirAll(localPath("empty"), 0755))

	_, err := env.project(t, src, nil).Save(context.Background())
	require.NoError(t, err)
	assert.False(t, env.srv.Store().Exists(testCloud+"/.git"))
	assert.False(t, env.srv.Store().Exists(testCloud+"/"+snapshot.FileName))

	dst := afero.NewMemMapFs()
	report, err := env.project(t, dst, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Failed())

	for _, rel := range []string{"a.txt", "docs/b.md", "docs/deep/c.md", ignore.FileName} {
		want, err := model.HashFile(src, localPath(rel))
		require.NoError(t, err)
		got, err := model.HashFile(dst, localPath(rel))
		require.NoError(t, err, rel)
		assert.Equal(t, want, got, rel)
	}

	for _, rel := range []string{"docs", "docs/deep", "empty"} {
		ok, err := afero.IsDir(dst, localPath(rel))
		require.NoError(t, err)
		assert.True(t, ok, rel)
	}
}

func TestSaveReplacesTypeChanges(t *testing.T) {
	env := newTestEnv(t)
	env.srv.Store().WriteFile(testCloud+"/x", []byte("was a file"))
	env.srv.Store().WriteFile(testCloud+"/y/inner.txt", []byte("was a dir"))
	env.srv.Store().WriteFile(testCloud+"/gone.txt", []byte("stale"))

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(localPath("x"), 0755))
	writeLocal(t, fs, "y", "now a file")

	_, err := env.project(t, fs, nil).Save(context.Background())
	require.NoError(t, err)

	store := env.srv.Store()
	assert.True(t, store.IsDir(testCloud+"/x"))
	data, ok := store.ReadFile(testCloud + "/y")
	require.True(t, ok)
	assert.Equal(t, "now a file", string(data))
	assert.False(t, store.Exists(testCloud+"/gone.txt"))
}

func TestLoadRemovesStaleLocalEntries(t *testing.T) {
	env := newTestEnv(t)
	env.srv.Store().WriteFile(testCloud+"/"+ignore.FileName, []byte(ignore.DefaultRules))
	env.srv.Store().WriteFile(testCloud+"/keep.txt", []byte("cloud"))

	fs := afero.NewMemMapFs()
	writeLocal(t, fs, "keep.txt", "local")
	writeLocal(t, fs, "stale/inner.txt", "x")

	_, err := env.project(t, fs, nil).Load(context.Background())
	require.NoError(t, err)

	exists, err := afero.Exists(fs, localPath("stale"))
	require.NoError(t, err)
	assert.False(t, exists)

	data, err := afero.ReadFile(fs, localPath("keep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "cloud", string(data))
}

func TestSaveSkipsIgnoredPaths(t *testing.T) {
	env := newTestEnv(t)
	fs := afero.NewMemMapFs()
	writeLocal(t, fs, ignore.FileName, "build/\n*.log\n!keep.log\n")
	writeLocal(t, fs, "build/out.bin", "bin")
	writeLocal(t, fs, "run.log", "log")
	writeLocal(t, fs, "keep.log", "keep")
	writeLocal(t, fs, "src/main.go", "package main")

	_, err := env.project(t, fs, nil).Save(context.Background())
	require.NoError(t, err)

	store := env.srv.Store()
	assert.False(t, store.Exists(testCloud+"/build"))
	assert.False(t, store.Exists(testCloud+"/run.log"))
	assert.True(t, store.Exists(testCloud+"/keep.log"))
	assert.True(t, store.Exists(testCloud+"/src/main.go"))
}

func TestLocalScanCreatesRootAndIgnoreFile(t *testing.T) {
	env := newTestEnv(t)
	fs := afero.NewMemMapFs()

	p := env.project(t, fs, nil)
	require.NoError(t, p.LocalScan(context.Background()))

	data, err := afero.ReadFile(fs, localPath(ignore.FileName))
	require.NoError(t, err)
	assert.Equal(t, ignore.DefaultRules, string(data))

	items := p.Items()
	require.Len(t, items, 1)
	assert.Equal(t, ignore.FileName, items[0].Rel)
	assert.Equal(t, model.KindFile, items[0].Local.Kind)
	assert.Equal(t, model.KindEmpty, items[0].Cloud.Kind)
}

func TestLocalScanRootIsFile(t *testing.T) {
	env := newTestEnv(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/base/work/notes", []byte("oops"), 0644))

	_, err := env.project(t, fs, nil).Save(context.Background())
	assert.ErrorIs(t, err, ErrRootIsFile)
	assert.Empty(t, env.srv.Calls())
}

func TestLocalScanIgnoreFileIsDir(t *testing.T) {
	env := newTestEnv(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(localPath(ignore.FileName), 0755))

	_, err := env.project(t, fs, nil).Load(context.Background())
	assert.ErrorIs(t, err, ErrIgnoreFileIsDir)
}

func TestCloudScanFailureAborts(t *testing.T) {
	env := newTestEnv(t)
	env.srv.Inject(fakedisk.Fault{Method: http.MethodGet, Path: fakedisk.APIPrefix, Status: http.StatusForbidden})

	fs := afero.NewMemMapFs()
	writeLocal(t, fs, "a.txt", "alpha")

	rec := &Recorder{}
	_, err := env.project(t, fs, rec).Save(context.Background())
	assert.ErrorIs(t, err, ErrCloudScan)

	status, ok := errors.AsType[*disk.StatusError](err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, status.Code)

	assert.Empty(t, actions(rec))
	assert.False(t, env.srv.Store().Exists(testCloud+"/a.txt"))
}

func TestSaveCountsFailedItems(t *testing.T) {
	env := newTestEnv(t)
	env.srv.Inject(fakedisk.Fault{Method: http.MethodGet, Path: fakedisk.APIPrefix + "/upload", Status: http.StatusForbidden})

	fs := afero.NewMemMapFs()
	writeLocal(t, fs, ignore.FileName, ignore.DefaultRules)
	env.srv.Store().WriteFile(testCloud+"/"+ignore.FileName, []byte(ignore.DefaultRules))
	writeLocal(t, fs, "a.txt", "alpha")
	writeLocal(t, fs, "b.txt", "beta")

	rec := &Recorder{}
	report, err := env.project(t, fs, rec).Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total())
	assert.Equal(t, 1, report.Failed())

	var failed int
	for _, e := range actions(rec) {
		if e.Err != nil {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	fs := afero.NewMemMapFs()
	writeLocal(t, fs, "a.txt", "alpha")
	writeLocal(t, fs, "b.txt", "beta")
	writeLocal(t, fs, "old/c.txt", "gamma")

	p := env.project(t, fs, nil)

	_, err := p.Status(context.Background())
	require.ErrorIs(t, err, snapshot.ErrNoBaseline)

	_, err = p.Save(context.Background())
	require.NoError(t, err)
	env.srv.ResetCalls()

	st, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Diff.InSync())

	writeLocal(t, fs, "a.txt", "changed")
	writeLocal(t, fs, "new/d.txt", "delta")
	require.NoError(t, fs.RemoveAll(localPath("old")))

	st, err = p.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, st.Diff.ChangedFiles)
	assert.Equal(t, []string{"new/d.txt"}, st.Diff.NewFiles)
	assert.Equal(t, []string{"old/c.txt"}, st.Diff.RemovedFiles)
	assert.Equal(t, []string{"new"}, st.Diff.NewDirs)
	assert.Equal(t, []string{"old"}, st.Diff.RemovedDirs)
	assert.False(t, st.Diff.InSync())

	assert.Empty(t, env.srv.Calls())
}

func TestEventsReportScansAndPlan(t *testing.T) {
	env := newTestEnv(t)
	fs := afero.NewMemMapFs()
	writeLocal(t, fs, "a.txt", "alpha")

	rec := &Recorder{}
	_, err := env.project(t, fs, rec).Save(context.Background())
	require.NoError(t, err)

	var sides []string
	var plan *Event
	for _, e := range rec.Events() {
		assert.Equal(t, "work/notes", e.Project)
		switch e.Kind {
		case EventScanDone:
			sides = append(sides, e.Side)
		case EventPlan:
			plan = &e
		}
	}

	assert.Equal(t, []string{"local", "cloud"}, sides)
	require.NotNil(t, plan)
	assert.Equal(t, 2, plan.Items)
	assert.Equal(t, 2, plan.Pending)
}
