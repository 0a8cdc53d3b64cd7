// Package match classifies human-entered titles against a noisy
// inventory title list using approximate string similarity.
package match

// Ratio returns a normalized edit-distance similarity between two
// strings on a 0-100 scale; identical strings score 100. No case or
// whitespace normalization is applied: exports are matched as-is, and
// character noise is reported upstream as a diagnostic instead.
func Ratio(a, b string) int {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 && lb == 0 {
		return 100
	}
	dist := levenshtein(a, b)
	return int(float64(la+lb-dist) / float64(la+lb) * 100.0)
}

// levenshtein computes the edit distance between two strings using a
// single-row dynamic programming table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n, m := len(ra), len(rb)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}

	row := make([]int, m+1)
	for j := 0; j <= m; j++ {
		row[j] = j
	}

	for i := 1; i <= n; i++ {
		prev := i
		var val int
		for j := 1; j <= m; j++ {
			if ra[i-1] == rb[j-1] {
				val = row[j-1]
			} else {
				val = min3(row[j-1]+1, prev+1, row[j]+1)
			}
			row[j-1] = prev
			prev = val
		}
		row[m] = prev
	}
	return row[m]
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
