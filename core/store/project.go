package store

import (
	"fmt"
	"strings"
)

// GlobalProjectID is the sentinel used for governance token metrics whose
// projectId is empty or missing.
const GlobalProjectID = "global"

// MaxProjectIDLength caps a normalized projectId.
const MaxProjectIDLength = 128

// NormalizeProjectID trims, lowercases, truncates to MaxProjectIDLength
// bytes, and validates raw, returning an error if the result is empty,
// contains a character outside [a-z0-9._-], or does not start with an
// alphanumeric character.
// NormalizeProjectID is idempotent: NormalizeProjectID(NormalizeProjectID(x)) == NormalizeProjectID(x).
func NormalizeProjectID(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("store: %w: projectId", ErrEmptyField)
	}
	if len(s) > MaxProjectIDLength {
		s = s[:MaxProjectIDLength]
	}
	if !isAlphanumeric(rune(s[0])) {
		return "", fmt.Errorf("store: projectId must start with an alphanumeric character")
	}
	for _, r := range s {
		if !isAlphanumeric(r) && r != '.' && r != '_' && r != '-' {
			return "", fmt.Errorf("store: projectId contains invalid character %q", r)
		}
	}
	return s, nil
}

// NormalizeTokenMetricProjectID is like NormalizeProjectID but maps an
// empty projectId to GlobalProjectID instead of failing, matching the
// normalization rule for governance token metrics.
func NormalizeTokenMetricProjectID(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return GlobalProjectID, nil
	}
	return NormalizeProjectID(raw)
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
