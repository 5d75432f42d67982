package utils

import (
	"strings"
	"unicode"
)

// SanitizeLogMessage strips non-printable runes from user-controlled values
// before they reach the log.
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == 10 || r == 9 {
			sb.WriteRune(r)
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SanitizeLogIdentity truncates and sanitizes an identity reference.
func SanitizeLogIdentity(identity string) string {
	if len(identity) > 50 {
		identity = identity[:50] + "..."
	}
	return SanitizeLogMessage(identity)
}
