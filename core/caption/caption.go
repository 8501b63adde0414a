// Package caption formats the text published alongside each book and parses
// it back out of channel messages.
//
// A caption looks like:
//
//	标题：三体
//	类型：#sci_fi
//	简介：...
package caption

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLength is the longest caption the channel accepts, in characters.
const MaxLength = 1024

var (
	titleLine    = regexp.MustCompile(`(?m)^标题[:：][ \t]*(.+)$`)
	categoryLine = regexp.MustCompile(`(?m)^类型[:：][ \t]*(.+)$`)
)

// Fields are the parts of a caption.
type Fields struct {
	Title    string
	Category string
	Intro    string
}

// Format renders f, truncating the result to MaxLength characters.
func Format(f Fields) string {
	var b strings.Builder
	b.WriteString("标题：")
	b.WriteString(f.Title)
	if c := NormalizeCategory(f.Category); c != "" {
		b.WriteString("\n类型：#")
		b.WriteString(c)
	}
	if f.Intro != "" {
		b.WriteString("\n简介：")
		b.WriteString(f.Intro)
	}
	return Truncate(b.String(), MaxLength)
}

// Parse extracts the title and category from a message text. ok is false
// when the text carries no title line.
func Parse(text string) (f Fields, ok bool) {
	m := titleLine.FindStringSubmatch(text)
	if m == nil {
		return f, false
	}
	f.Title = strings.TrimSpace(m[1])
	if f.Title == "" {
		return f, false
	}
	if c := categoryLine.FindStringSubmatch(text); c != nil {
		f.Category = NormalizeCategory(c[1])
	}
	return f, true
}

// NormalizeCategory strips hashtag prefixes and surrounding space and
// replaces dashes with underscores so the category works as a hashtag.
func NormalizeCategory(c string) string {
	c = strings.TrimSpace(c)
	c = strings.TrimLeft(c, "#")
	return strings.ReplaceAll(strings.TrimSpace(c), "-", "_")
}

// Truncate shortens s to at most n characters, ending with "..." when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}
