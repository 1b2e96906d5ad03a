package syncer

import (
	"kbsync/internal/model"
	"slices"
	"strings"
)

// Matrix files every out-of-sync item under its (local kind, cloud kind)
// cell. Items whose sides match are in no cell.
type Matrix [3][3][]*Item

type Cell struct {
	Local model.Kind
	Cloud model.Kind
}

func (m *Matrix) At(c Cell) []*Item {
	return m[c.Local][c.Cloud]
}

func (m *Matrix) Len() int {
	n := 0
	for _, l := range model.Kinds {
		for _, c := range model.Kinds {
			n += len(m[l][c])
		}
	}
	return n
}

// Classify builds the matrix from a scanned item map.
func Classify(items map[string]*Item) *Matrix {
	var m Matrix

	for _, it := range items {
		if it.Local.Matches(it.Cloud) {
			continue
		}
		m[it.Local.Kind][it.Cloud.Kind] = append(m[it.Local.Kind][it.Cloud.Kind], it)
	}

	for _, l := range model.Kinds {
		for _, c := range model.Kinds {
			slices.SortFunc(m[l][c], func(a, b *Item) int { return strings.Compare(a.Rel, b.Rel) })
		}
	}

	return &m
}

// Step is one executor batch: a single action over the items of some cells.
type Step struct {
	Action Action
	Items  []*Item
}

type Plan []Step

func (p Plan) Len() int {
	n := 0
	for _, s := range p {
		n += len(s.Items)
	}
	return n
}

type recipe struct {
	action Action
	cells  []Cell
}

const (
	kEmpty = model.KindEmpty
	kFile  = model.KindFile
	kDir   = model.KindDir
)

// Stale entries are cleared before directories are created and before any
// content moves, since a path cannot hold a file and a directory at once.
var saveRecipe = []recipe{
	{ActionRemoveCloud, []Cell{{kEmpty, kFile}, {kEmpty, kDir}, {kFile, kDir}, {kDir, kFile}}},
	{ActionCreateCloudDir, []Cell{{kDir, kEmpty}, {kDir, kFile}}},
	{ActionUpload, []Cell{{kFile, kEmpty}, {kFile, kDir}, {kFile, kFile}}},
}

var loadRecipe = []recipe{
	{ActionRemoveLocal, []Cell{{kFile, kEmpty}, {kFile, kDir}, {kDir, kEmpty}, {kDir, kFile}}},
	{ActionCreateLocalDir, []Cell{{kEmpty, kDir}, {kFile, kDir}}},
	{ActionDownload, []Cell{{kEmpty, kFile}, {kDir, kFile}, {kFile, kFile}}},
}

// SavePlan makes the cloud match local.
func SavePlan(m *Matrix) Plan {
	return m.plan(saveRecipe)
}

// LoadPlan makes local match the cloud.
func LoadPlan(m *Matrix) Plan {
	return m.plan(loadRecipe)
}

func (m *Matrix) plan(steps []recipe) Plan {
	plan := make(Plan, 0, len(steps))
	for _, r := range steps {
		step := Step{Action: r.action}
		for _, c := range r.cells {
			step.Items = append(step.Items, m.At(c)...)
		}
		plan = append(plan, step)
	}
	return plan
}
