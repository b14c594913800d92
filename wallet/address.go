package wallet

import (
	"regexp"
	"strings"
)

// Host runtimes decorate addresses in non-production sessions, e.g.
// "0x1a2b...3c4d (Dev Mode)". The decoration must never reach the backend
// or duplicate users get created for the same underlying address.
var devModeDecoration = regexp.MustCompile(`(?i)\s*\(dev\s*mode\)\s*`)

// NormalizeAddress lower-cases an address, strips host decoration text and
// trims whitespace. It is idempotent, and every backend lookup or create
// call must use the normalized form.
func NormalizeAddress(address string) string {
	normalized := strings.ToLower(address)
	normalized = devModeDecoration.ReplaceAllString(normalized, "")
	return strings.TrimSpace(normalized)
}
