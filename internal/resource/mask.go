package resource

import "strings"

const maskPrefix = "****"

// MaskSecret hides all but the last four characters of long secrets and
// everything of short ones.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskPrefix
	}
	return maskPrefix + s[len(s)-4:]
}

// KeepSecret resolves a write-back of a masked secret: an empty or masked
// incoming value keeps the stored one.
func KeepSecret(incoming, stored string) string {
	if incoming == "" || (strings.HasPrefix(incoming, maskPrefix) && incoming == MaskSecret(stored)) {
		return stored
	}
	return incoming
}
