package disk

import (
	"path"
	"strings"
)

// Path is a normalized cloud resource path such as "app:/Docs/notes/a.md".
// The optional scheme prefix ("app:", "disk:") is kept verbatim.
type Path struct {
	scheme string
	path   string
}

func ParsePath(s string) Path {
	var scheme string
	if i := strings.Index(s, ":/"); i > 0 && !strings.Contains(s[:i], "/") {
		scheme, s = s[:i+1], s[i+1:]
	}

	return Path{scheme: scheme, path: path.Clean("/" + s)}
}

func (p Path) String() string {
	return p.scheme + p.path
}

func (p Path) Join(elem ...string) Path {
	return Path{scheme: p.scheme, path: path.Join(append([]string{p.path}, elem...)...)}
}

func (p Path) Parent() Path {
	return Path{scheme: p.scheme, path: path.Dir(p.path)}
}

func (p Path) Base() string {
	return path.Base(p.path)
}

func (p Path) IsRoot() bool {
	return p.path == "/"
}

// Rel returns target relative to p, or false when target is not below p.
func (p Path) Rel(target Path) (string, bool) {
	if p.scheme != target.scheme {
		return "", false
	}

	if p.path == target.path {
		return "", true
	}

	prefix := p.path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	rel, ok := strings.CutPrefix(target.path, prefix)
	return rel, ok
}
