package news

import (
	"strings"
	"unicode/utf8"
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// StripHTML removes markup, decodes the common HTML entities and collapses
// whitespace. A '<' without a later '>' is literal text.
func StripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for {
		start := strings.IndexByte(s, '<')
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], '>')
		if end < 0 {
			break
		}
		b.WriteString(s[:start])
		s = s[start+end+1:]
	}
	b.WriteString(s)

	return strings.Join(strings.Fields(entityReplacer.Replace(b.String())), " ")
}

// Truncate cuts s to limit runes and appends Ellipsis when it was longer.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + Ellipsis
}
