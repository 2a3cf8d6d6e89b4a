package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var substitutions = map[rune]string{
	'ı': "i",
	'‘': "'",
	'’': "'",
	'“': "\"",
	'”': "\"",
	'–': "-",
	'—': "-",
	'…': "...",
}

// Normalize maps text to printable ASCII so it can be stored in
// ASCII-constrained backends. Known typographic runes get an ASCII
// equivalent, every other non-ASCII rune becomes "?".
func Normalize(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
			continue
		}
		if sub, ok := substitutions[r]; ok {
			b.WriteString(sub)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}

// Truncate shortens s to at most max runes, ending in "..." when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= 3 {
		return string(runes[:max])
	}
	return strings.TrimRightFunc(string(runes[:max-3]), isSpace) + "..."
}

// Clip shortens s to at most max runes without adding a suffix.
func Clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

var (
	spaceRun    = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankLineRe = regexp.MustCompile(`\n{3,}`)
)

// CleanPostBody trims each line, collapses runs of spaces and squeezes
// consecutive blank lines to one.
func CleanPostBody(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLineRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}
