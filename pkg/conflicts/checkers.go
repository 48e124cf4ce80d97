package conflicts

import (
	"fmt"
	"strings"

	"github.com/mentorstack/mentor-engine/pkg/models"
)

// exclusiveChoiceChecker builds the Checker used by every current category:
// more than maxChoices distinct canonical technologies within the category is
// a conflict. Values matching the same keyword collapse into one choice, so
// "PostgreSQL 15" and "postgres" never conflict with each other.
func exclusiveChoiceChecker(r *rule, maxChoices int, severity models.Severity) Checker {
	return func(values []string) []models.ConflictInfo {
		seen := make(map[string]bool)
		var canonical []string // insertion order
		var raw []string
		for _, v := range values {
			name, ok := canonicalMatch(r.vocab, v)
			if !ok {
				continue
			}
			if !seen[name] {
				seen[name] = true
				canonical = append(canonical, name)
			}
			raw = append(raw, v)
		}

		if len(canonical) <= maxChoices {
			return nil
		}

		return []models.ConflictInfo{{
			Category:    r.category,
			Values:      raw,
			Severity:    severity,
			Explanation: fmt.Sprintf("%d incompatible choices in %s: %s", len(canonical), r.category, strings.Join(canonical, ", ")),
		}}
	}
}

// canonicalMatch finds the canonical technology name for a free-text value.
// Matching is case-insensitive and boundary-aware: "go" matches "Go 1.25"
// but not "Django". When several keywords match, the longest wins so
// "javascript" beats "java".
func canonicalMatch(vocab map[string]string, value string) (string, bool) {
	lowered := strings.ToLower(value)

	bestLen := 0
	var best string
	for keyword, name := range vocab {
		if !containsWord(lowered, keyword) {
			continue
		}
		if len(keyword) > bestLen || (len(keyword) == bestLen && name < best) {
			bestLen = len(keyword)
			best = name
		}
	}
	return best, bestLen > 0
}

// containsWord reports whether s contains keyword delimited by non-alphanumeric
// boundaries.
func containsWord(s, keyword string) bool {
	for start := 0; ; {
		idx := strings.Index(s[start:], keyword)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(keyword)

		leftOK := idx == 0 || !isAlnum(s[idx-1])
		rightOK := end == len(s) || !isAlnum(s[end])
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
	}
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}
