package util

import "strings"

// NormalizePhone canonicalizes a caller number into an E.164-like form so
// records from both feeds compare equal. A raw value that already carries a
// leading plus keeps its digits as-is; 11-digit numbers starting with 1 and
// 10-digit numbers are assumed North American. Returns "" when the input
// carries no digits, which excludes the record from matching.
func NormalizePhone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	hasPlus := strings.HasPrefix(trimmed, "+")
	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return ""
	}

	s := digits.String()
	switch {
	case hasPlus:
		return "+" + s
	case len(s) == 11 && s[0] == '1':
		return "+" + s
	case len(s) == 10:
		return "+1" + s
	default:
		return "+" + s
	}
}
