package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a fresh random id in the given namespace,
// e.g. NewID("node") -> "node:3f2a...".
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + ":" + hex.EncodeToString(bytes)
}
