package fakedisk

import (
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

type entry struct {
	dir      bool
	data     []byte
	md5      string
	modified time.Time
}

// Store is the in-memory resource tree behind Server. Keys are normalized
// paths including the scheme; every scheme root exists implicitly.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

func normalize(p string) string {
	var scheme string
	if i := strings.Index(p, ":/"); i > 0 && !strings.Contains(p[:i], "/") {
		scheme, p = p[:i+1], p[i+1:]
	}

	return scheme + path.Clean("/"+p)
}

func split(p string) (scheme, rest string) {
	if i := strings.Index(p, ":/"); i > 0 && !strings.Contains(p[:i], "/") {
		return p[:i+1], p[i+1:]
	}
	return "", p
}

func isRoot(p string) bool {
	_, rest := split(p)
	return rest == "/"
}

func parentOf(p string) string {
	scheme, rest := split(p)
	return scheme + path.Dir(rest)
}

func under(p, root string) bool {
	if isRoot(root) {
		scheme, _ := split(root)
		return strings.HasPrefix(p, scheme+"/") && p != root
	}
	return strings.HasPrefix(p, root+"/")
}

func (s *Store) stat(p string) (*entry, bool) {
	if isRoot(p) {
		return &entry{dir: true}, true
	}

	e, ok := s.entries[p]
	return e, ok
}

// MkdirAll creates p and any missing parents.
func (s *Store) MkdirAll(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mkdirAll(normalize(p))
}

func (s *Store) mkdirAll(p string) {
	for cur := p; !isRoot(cur); cur = parentOf(cur) {
		if _, ok := s.entries[cur]; ok {
			return
		}
		s.entries[cur] = &entry{dir: true, modified: s.now()}
	}
}

// WriteFile stores data at p, creating parents as needed.
func (s *Store) WriteFile(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p = normalize(p)
	s.mkdirAll(parentOf(p))
	s.entries[p] = newFile(data, s.now())
}

func (s *Store) ReadFile(p string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.stat(normalize(p))
	if !ok || e.dir {
		return nil, false
	}

	return append([]byte(nil), e.data...), true
}

func (s *Store) IsDir(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.stat(normalize(p))
	return ok && e.dir
}

func (s *Store) Exists(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.stat(normalize(p))
	return ok
}

// Paths lists every stored path in lexical order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	return paths
}

func newFile(data []byte, modified time.Time) *entry {
	sum := md5.Sum(data)
	return &entry{
		data:     append([]byte(nil), data...),
		md5:      hex.EncodeToString(sum[:]),
		modified: modified,
	}
}

func (s *Store) lookup(p string) (resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.stat(p)
	if !ok {
		return resource{}, false
	}

	return toResource(p, e), true
}

func (s *Store) children(p string) []resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []resource
	for key, e := range s.entries {
		if under(key, p) && parentOf(key) == p {
			items = append(items, toResource(key, e))
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

func (s *Store) mkdir(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stat(p); ok {
		return http.StatusConflict
	}

	if parent, ok := s.stat(parentOf(p)); !ok || !parent.dir {
		return http.StatusConflict
	}

	s.entries[p] = &entry{dir: true, modified: s.now()}
	return http.StatusCreated
}

func (s *Store) remove(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isRoot(p) {
		return http.StatusForbidden
	}

	if _, ok := s.entries[p]; !ok {
		return http.StatusNotFound
	}

	for key := range s.entries {
		if key == p || under(key, p) {
			delete(s.entries, key)
		}
	}

	return http.StatusNoContent
}

// canPut reports the status an upload link request for p would get.
func (s *Store) canPut(p string, overwrite bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if parent, ok := s.stat(parentOf(p)); !ok || !parent.dir {
		return http.StatusConflict
	}

	if e, ok := s.stat(p); ok && (e.dir || !overwrite) {
		return http.StatusConflict
	}

	return http.StatusOK
}

func (s *Store) put(p string, data []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parent, ok := s.stat(parentOf(p)); !ok || !parent.dir {
		return http.StatusConflict
	}

	if e, ok := s.stat(p); ok && e.dir {
		return http.StatusConflict
	}

	s.entries[p] = newFile(data, s.now())
	return http.StatusCreated
}

func (s *Store) relocate(from, to string, overwrite, keepSource bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.entries[from]
	if !ok {
		return http.StatusNotFound
	}

	if from == to || under(to, from) {
		return http.StatusConflict
	}

	if _, exists := s.stat(to); exists {
		if !overwrite {
			return http.StatusConflict
		}
		for key := range s.entries {
			if key == to || under(key, to) {
				delete(s.entries, key)
			}
		}
	}

	if parent, ok := s.stat(parentOf(to)); !ok || !parent.dir {
		return http.StatusConflict
	}

	moved := map[string]*entry{to: src}
	for key, e := range s.entries {
		if under(key, from) {
			moved[to+strings.TrimPrefix(key, from)] = e
		}
	}

	if !keepSource {
		for key := range s.entries {
			if key == from || under(key, from) {
				delete(s.entries, key)
			}
		}
	}

	for key, e := range moved {
		cp := *e
		cp.data = append([]byte(nil), e.data...)
		s.entries[key] = &cp
	}

	return http.StatusCreated
}

func toResource(p string, e *entry) resource {
	_, rest := split(p)

	r := resource{
		Name:     path.Base(rest),
		Path:     p,
		Type:     "file",
		Modified: e.modified,
	}

	if e.dir {
		r.Type = "dir"
		return r
	}

	r.Size = int64(len(e.data))
	r.MD5 = e.md5
	return r
}
