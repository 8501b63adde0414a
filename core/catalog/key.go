package catalog

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// BookExtension is the only file extension the scanner picks up.
const BookExtension = ".epub"

// NormalizeKey converts a title or file stem to its identity key:
// NFKC-normalized, case-folded, with underscores, dashes and whitespace
// treated as separators, every other non letter/digit dropped and separator
// runs collapsed to a single space.
func NormalizeKey(s string) string {
	// cases.Caser is stateful, so one per call.
	s = cases.Fold().String(norm.NFKC.String(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '_' || r == '-':
			pendingSpace = true
		}
	}
	return b.String()
}

// Stem returns the file name without directory and extension.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// KeyFromFilename derives the identity key of a file name ("A.epub" -> "a").
func KeyFromFilename(name string) string {
	return NormalizeKey(Stem(name))
}

// IsBookFile reports whether name looks like a publishable book.
func IsBookFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), BookExtension)
}
