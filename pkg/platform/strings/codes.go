// Package strings normalises short identifier-like strings such as feature codes.
package strings

import (
	"strings"
)

// NormalizeCode trims whitespace and lowercases a code so "  Housing " and
// "housing" compare equal.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// DedupeCodes normalises every code, drops blanks and keeps the first
// occurrence of each. Order is preserved.
//
//	DedupeCodes([]string{"  Loans ", "tours", "LOANS", ""})
//	// Returns: []string{"loans", "tours"}
func DedupeCodes(codes []string) []string {
	if len(codes) == 0 {
		return codes
	}

	seen := make(map[string]struct{}, len(codes))
	result := make([]string, 0, len(codes))
	for _, c := range codes {
		normalized := NormalizeCode(c)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}
