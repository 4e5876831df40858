package service

import "strings"

// mask keeps the first and last four runes of a secret
func mask(secret string) string {
	r := []rune(secret)
	switch {
	case len(r) == 0:
		return ""
	case len(r) <= 8:
		return strings.Repeat("*", len(r))
	default:
		return string(r[:4]) + "…" + string(r[len(r)-4:])
	}
}
