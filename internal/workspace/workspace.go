// Package workspace discovers the categories and projects under the base
// directory and in the cloud, and turns a command line into sync targets.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"kbsync/internal/disk"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

const all = "all"

var ErrUsage = errors.New("invalid arguments")

type Lister interface {
	List(ctx context.Context, p disk.Path) ([]disk.Resource, error)
}

type Workspace struct {
	fs        afero.Fs
	base      string
	cloudBase disk.Path
	remote    Lister
}

func New(fs afero.Fs, basePath string, cloudBase disk.Path, remote Lister) (*Workspace, error) {
	base, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}

	return &Workspace{fs: fs, base: base, cloudBase: cloudBase, remote: remote}, nil
}

func (w *Workspace) Base() string {
	return w.base
}

func (w *Workspace) LocalCategories() ([]string, error) {
	return w.localDirs(w.base)
}

func (w *Workspace) LocalProjects(category string) ([]string, error) {
	return w.localDirs(filepath.Join(w.base, category))
}

// localDirs lists the sorted subdirectory names of dir. A missing dir has
// none.
func (w *Workspace) localDirs(dir string) ([]string, error) {
	ok, err := afero.DirExists(w.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !ok {
		return nil, nil
	}

	entries, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (w *Workspace) CloudCategories(ctx context.Context) ([]string, error) {
	return w.cloudDirs(ctx, w.cloudBase)
}

func (w *Workspace) CloudProjects(ctx context.Context, category string) ([]string, error) {
	return w.cloudDirs(ctx, w.cloudBase.Join(category))
}

func (w *Workspace) cloudDirs(ctx context.Context, p disk.Path) ([]string, error) {
	resources, err := w.remote.List(ctx, p)
	if disk.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p, err)
	}

	var names []string
	for _, r := range resources {
		if r.IsDir() {
			names = append(names, r.Name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Entry is one project and where it exists.
type Entry struct {
	Category string
	Project  string
	Local    bool
	Cloud    bool
}

func (e Entry) Marks() string {
	var marks []string
	if e.Local {
		marks = append(marks, "local")
	}
	if e.Cloud {
		marks = append(marks, "cloud")
	}
	return strings.Join(marks, "/")
}

type Category struct {
	Name     string
	Projects []Entry
}

// Entries returns every category found locally or in the cloud with the
// projects of each, both in name order.
func (w *Workspace) Entries(ctx context.Context) ([]Category, error) {
	local, err := w.LocalCategories()
	if err != nil {
		return nil, err
	}

	cloud, err := w.CloudCategories(ctx)
	if err != nil {
		return nil, err
	}

	var out []Category
	for _, name := range union(local, cloud) {
		projects, err := w.projects(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, Category{Name: name, Projects: projects})
	}

	return out, nil
}

func (w *Workspace) projects(ctx context.Context, category string) ([]Entry, error) {
	local, err := w.LocalProjects(category)
	if err != nil {
		return nil, err
	}

	cloud, err := w.CloudProjects(ctx, category)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, name := range union(local, cloud) {
		out = append(out, Entry{
			Category: category,
			Project:  name,
			Local:    slices.Contains(local, name),
			Cloud:    slices.Contains(cloud, name),
		})
	}
	return out, nil
}

func union(a, b []string) []string {
	out := slices.Concat(a, b)
	slices.Sort(out)
	return slices.Compact(out)
}

type Level int

const (
	LevelOutside Level = iota
	LevelBase
	LevelCategory
	LevelProject
)

func (l Level) String() string {
	switch l {
	case LevelBase:
		return "base"
	case LevelCategory:
		return "category"
	case LevelProject:
		return "project"
	default:
		return "outside"
	}
}

type Context struct {
	Level    Level
	Category string
	Project  string
}

// Context places cwd relative to the base directory. Anywhere below a
// project directory counts as that project.
func (w *Workspace) Context(cwd string) Context {
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return Context{Level: LevelOutside}
	}

	rel, err := filepath.Rel(w.base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Context{Level: LevelOutside}
	}

	if rel == "." {
		return Context{Level: LevelBase}
	}

	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) == 1 {
		return Context{Level: LevelCategory, Category: parts[0]}
	}

	return Context{Level: LevelProject, Category: parts[0], Project: parts[1]}
}

type Target struct {
	Category string
	Project  string
}

func (t Target) String() string {
	return t.Category + "/" + t.Project
}

// Resolve selects the projects a save, load or status run from cwd with
// args applies to:
//
//	inside a project, no args        that project
//	inside a category, "all"         every project of the category
//	inside a category, "<project>"   that project of the category
//	"all all"                        every project everywhere
//	"<category> all"                 every project of the category
//	"<category> <project>"           that project
//
// Any other combination is ErrUsage, as is an argument that is not a single
// path element.
func (w *Workspace) Resolve(ctx context.Context, cwd string, args []string) ([]Target, error) {
	for _, arg := range args {
		if !validName(arg) {
			return nil, fmt.Errorf("%w: invalid name %q", ErrUsage, arg)
		}
	}

	here := w.Context(cwd)

	switch {
	case here.Level == LevelProject && len(args) == 0:
		return []Target{{here.Category, here.Project}}, nil

	case here.Level == LevelCategory && len(args) == 1:
		if args[0] == all {
			return w.categoryTargets(ctx, here.Category)
		}
		return []Target{{here.Category, args[0]}}, nil

	case len(args) == 2:
		cat, proj := args[0], args[1]
		switch {
		case cat == all && proj == all:
			return w.allTargets(ctx)
		case cat != all && proj == all:
			return w.categoryTargets(ctx, cat)
		case cat != all:
			return []Target{{cat, proj}}, nil
		}
	}

	return nil, ErrUsage
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func (w *Workspace) categoryTargets(ctx context.Context, category string) ([]Target, error) {
	projects, err := w.projects(ctx, category)
	if err != nil {
		return nil, err
	}

	targets := make([]Target, 0, len(projects))
	for _, p := range projects {
		targets = append(targets, Target{p.Category, p.Project})
	}
	return targets, nil
}

func (w *Workspace) allTargets(ctx context.Context) ([]Target, error) {
	cats, err := w.Entries(ctx)
	if err != nil {
		return nil, err
	}

	var targets []Target
	for _, c := range cats {
		for _, p := range c.Projects {
			targets = append(targets, Target{p.Category, p.Project})
		}
	}
	return targets, nil
}

// LocalExists reports whether the target's project directory exists.
func (w *Workspace) LocalExists(t Target) bool {
	ok, err := afero.DirExists(w.fs, filepath.Join(w.base, t.Category, t.Project))
	return err == nil && ok
}
