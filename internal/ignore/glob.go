package ignore

import (
	"regexp"
	"strings"
)

// compile turns a shell glob into an anchored regexp. Unlike path.Match a
// star also crosses "/", so "docs/*" covers everything below docs.
func compile(pattern string) *regexp.Regexp {
	re, err := regexp.Compile(translate(pattern))
	if err != nil {
		return regexp.MustCompile("^" + regexp.QuoteMeta(pattern) + "$")
	}

	return re
}

func translate(pattern string) string {
	runes := []rune(pattern)
	n := len(runes)

	var b strings.Builder
	b.WriteString("(?s)^")

	for i := 0; i < n; i++ {
		c := runes[i]
		switch c {
		case '*':
			for i+1 < n && runes[i+1] == '*' {
				i++
			}
			b.WriteString(".*")

		case '?':
			b.WriteString(".")

		case '[':
			j := i + 1
			if j < n && runes[j] == '!' {
				j++
			}
			if j < n && runes[j] == ']' {
				j++
			}
			for j < n && runes[j] != ']' {
				j++
			}

			if j >= n {
				b.WriteString(`\[`)
				continue
			}

			class := strings.ReplaceAll(string(runes[i+1:j]), `\`, `\\`)
			switch {
			case strings.HasPrefix(class, "!"):
				class = "^" + class[1:]
			case strings.HasPrefix(class, "^"):
				class = `\` + class
			}

			b.WriteString("[" + class + "]")
			i = j

		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString("$")
	return b.String()
}
