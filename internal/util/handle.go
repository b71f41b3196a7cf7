package util

import "strings"

var farcasterSuffixes = []string{".base.eth", ".eth", ".farcaster", ".warpcast"}

// NormalizeHandle strips leading @s and all whitespace, and lowercases.
func NormalizeHandle(raw string) string {
	h := strings.TrimLeft(strings.TrimSpace(raw), "@")
	h = whitespace.ReplaceAllString(h, "")
	return strings.ToLower(h)
}

// NormalizeFarcasterHandle also drops a single ENS-style suffix and trailing dots.
func NormalizeFarcasterHandle(raw string) string {
	h := NormalizeHandle(raw)
	for _, suf := range farcasterSuffixes {
		if strings.HasSuffix(h, suf) {
			h = strings.TrimSuffix(h, suf)
			break
		}
	}
	return strings.TrimRight(h, ".")
}
