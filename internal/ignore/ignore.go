// Package ignore evaluates .syncignore rules against project-relative paths.
package ignore

import (
	"regexp"
	"strings"
)

// FileName is the rule file kept at the root of every project.
const FileName = ".syncignore"

// DefaultRules is written to a project that has no rule file yet.
const DefaultRules = ".git\n"

type Rule struct {
	Pattern string
	Negate  bool
	DirOnly bool
	Literal bool

	re *regexp.Regexp
}

// Matcher holds an ordered rule list. It is immutable after Parse and safe
// for concurrent use by scan workers.
type Matcher struct {
	rules []Rule
}

func Parse(text string) *Matcher {
	m := &Matcher{}

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		negate := strings.HasPrefix(line, "!")
		if negate {
			line = line[1:]
		}
		line = strings.TrimPrefix(line, "/")

		rule := Rule{
			Negate:  negate,
			DirOnly: strings.HasSuffix(line, "/"),
			Literal: !strings.ContainsAny(line, "*?["),
			Pattern: strings.TrimSuffix(line, "/"),
		}
		if !rule.Literal {
			rule.re = compile(rule.Pattern)
		}

		m.rules = append(m.rules, rule)
	}

	return m
}

func (m *Matcher) Rules() []Rule {
	return append([]Rule(nil), m.rules...)
}

// ShouldIgnore reports whether relPath is excluded. Every rule is evaluated
// in file order and the last one that matches decides.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	if m == nil || len(m.rules) == 0 || relPath == "" {
		return false
	}

	p := strings.TrimLeft(strings.ReplaceAll(relPath, `\`, "/"), "/")

	ignored := false
	for _, rule := range m.rules {
		candidate := p
		if rule.DirOnly && !isDir {
			// A directory rule never matches a file's own path, so a file
			// named like the rule stays included. It reaches a file only
			// through its parent, which lets "!dir/file" re-include one.
			candidate = dir(p)
			if candidate == "" {
				continue
			}
		}

		if rule.matches(candidate) {
			ignored = !rule.Negate
		}
	}

	return ignored
}

func (r Rule) matches(p string) bool {
	if r.Literal || r.re == nil {
		return p == r.Pattern || strings.HasPrefix(p, r.Pattern+"/")
	}

	if r.re.MatchString(p) || r.re.MatchString(base(p)) {
		return true
	}

	// An intermediate directory may match, e.g. "node_*" for "node_modules/x/y.js".
	parts := strings.Split(p, "/")
	for i := range parts {
		if r.re.MatchString(strings.Join(parts[:i+1], "/")) {
			return true
		}
	}

	return false
}

func dir(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}

	return ""
}

func base(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}

	return p
}
