package table

// clean.go handles the messy reality of spreadsheet-exported cells:
// Excel formula prefixes (="value"), stray surrounding quotes, and
// leading/trailing whitespace.

import (
	"regexp"
	"strings"
)

// specialCharRegex matches characters outside letters, digits,
// whitespace and hyphens. Titles containing these tend to fuzzy-match
// poorly, so they are surfaced as a diagnostic before matching.
var specialCharRegex = regexp.MustCompile(`[^\w\s\-]`)

// CleanCell strips common CSV artifacts from a cell value.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// CleanHeader normalizes a header cell. Headers get the same artifact
// cleanup as data cells; case is preserved since column lookup is
// case-insensitive anyway.
func CleanHeader(s string) string {
	return CleanCell(s)
}

// ContainsSpecialChars reports whether text holds characters outside
// the word/space/hyphen set.
func ContainsSpecialChars(text string) bool {
	return specialCharRegex.MatchString(text)
}

// SpecialCharValues returns the distinct values of the named column that
// contain special characters. A missing column yields nil; this is a
// diagnostic, not a precondition.
func (t *Table) SpecialCharValues(column string) []string {
	var out []string
	for _, v := range t.DistinctValues(column) {
		if ContainsSpecialChars(v) {
			out = append(out, v)
		}
	}
	return out
}
