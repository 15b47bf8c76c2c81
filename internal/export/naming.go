package export

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	titleRun     = regexp.MustCompile(`[\s()]+`)
	unsafeChars  = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// SessionTitle names an upload: the single file name, or a batch label.
func SessionTitle(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return fmt.Sprintf("Batch Upload (%d files)", len(names))
	}
}

// BaseName derives the artifact prefix from a session title.
func BaseName(title string) string {
	base := titleRun.ReplaceAllString(title, "_")
	base = strings.Replace(base, ".pdf", "", 1)
	if base == "" {
		return "extracted"
	}
	return base
}

// Sanitize keeps ASCII letters, digits, '-' and '_'.
func Sanitize(s string) string { return unsafeChars.ReplaceAllString(s, "_") }

// Slug is the image-name form of a group key: whitespace runs become '_',
// anything Sanitize would replace is replaced, and the result is lowercased.
func Slug(s string) string {
	return strings.ToLower(Sanitize(whitespaceRe.ReplaceAllString(s, "_")))
}
