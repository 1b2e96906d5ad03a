package ignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSkipsCommentsAndBlanks(t *testing.T) {
	m := Parse("# comment\n\n  \n/.git\nbuild/\n!*.keep\n")

	rules := m.Rules()
	assert.Len(t, rules, 3)

	assert.Equal(t, Rule{Pattern: ".git", Literal: true}, stripRe(rules[0]))
	assert.Equal(t, Rule{Pattern: "build", DirOnly: true, Literal: true}, stripRe(rules[1]))
	assert.Equal(t, Rule{Pattern: "*.keep", Negate: true}, stripRe(rules[2]))
}

func TestShouldIgnore(t *testing.T) {
	tests := []struct {
		name  string
		rules string
		path  string
		isDir bool
		want  bool
	}{
		{"no rules", "", "a.txt", false, false},
		{"empty path", ".git", "", true, false},
		{"literal exact", ".git", ".git", true, true},
		{"literal prefix", ".git", ".git/objects/ab", false, true},
		{"literal is not substring", ".git", ".gitignore", false, false},
		{"leading slash stripped", "/out", "out/a.bin", false, true},
		{"backslash normalized", "out", `out\a.bin`, false, true},
		{"glob basename", "*.log", "logs/app/x.log", false, true},
		{"glob no match", "*.log", "logs/app/x.txt", false, false},
		{"glob star crosses slash", "docs/*", "docs/a/b.md", false, true},
		{"glob ancestor", "node_*", "web/node_modules/x/y.js", false, false},
		{"glob ancestor from root", "node_*", "node_modules/x/y.js", false, true},
		{"question mark", "v?", "v1/a", false, true},
		{"char class", "[ab].txt", "b.txt", false, true},
		{"negated char class", "[!ab].txt", "b.txt", false, false},
		{"dir rule on dir", "build/", "build", true, true},
		{"dir rule on same-named file", "build/", "build", false, false},
		{"dir rule on child file", "build/", "build/x.txt", false, true},
		{"glob dir rule on file", "*.tmp/", "a.tmp", false, false},
		{"glob dir rule on child", "*.tmp/", "a.tmp/b", false, true},
		{"negation wins last", "build/\n!build/keep.txt", "build/keep.txt", false, false},
		{"negation leaves siblings", "build/\n!build/keep.txt", "build/x.txt", false, true},
		{"later rule re-ignores", "*.txt\n!a.txt\na.txt", "a.txt", false, true},
		{"order matters", "!a.txt\n*.txt", "a.txt", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.rules).ShouldIgnore(tt.path, tt.isDir))
		})
	}
}

func TestShouldIgnoreIsPure(t *testing.T) {
	m := Parse("build/\n!build/keep.txt\n*.o")

	for range 3 {
		assert.False(t, m.ShouldIgnore("build/keep.txt", false))
		assert.True(t, m.ShouldIgnore("build/x.txt", false))
		assert.True(t, m.ShouldIgnore("src/main.o", false))
		assert.False(t, m.ShouldIgnore("src/main.c", false))
	}
}

func TestNilMatcher(t *testing.T) {
	var m *Matcher
	assert.False(t, m.ShouldIgnore("anything", false))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"*.go", `(?s)^.*\.go$`},
		{"a**b", `(?s)^a.*b$`},
		{"?x", `(?s)^.x$`},
		{"[!a-c]", `(?s)^[^a-c]$`},
		{"[^a]", `(?s)^[\^a]$`},
		{"[unclosed", `(?s)^\[unclosed$`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, translate(tt.pattern), tt.pattern)
	}
}

func stripRe(r Rule) Rule {
	r.re = nil
	return r
}
