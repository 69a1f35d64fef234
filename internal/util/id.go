package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random 128-bit identifier, optionally prefixed
// ("cvs_..." for canvases, "ver_..." for version tokens, "tx_..." for
// server-minted transactions).
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
