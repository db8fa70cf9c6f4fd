// Package ident generates and validates the identifiers used as storage
// keys for chat sessions.
package ident

import (
	"crypto/rand"
	"encoding/base64"
)

// MaxLen is the longest identifier accepted anywhere in the system.
// Identifiers double as file names, so the bound is load-bearing.
const MaxLen = 64

// New returns a fresh 43-character identifier: 32 bytes of CSPRNG output
// encoded with URL-safe, unpadded base64. The result always passes Valid.
//
// A failing randomness source is not a recoverable per-call condition, so
// New panics instead of returning an error.
func New() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("ident: crypto/rand unavailable: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// Valid reports whether id is safe to use as a storage key: non-empty, at
// most MaxLen characters, alphabet limited to [A-Za-z0-9_-]. Anything else
// must be rejected before it reaches the persistence layer.
func Valid(id string) bool {
	if len(id) == 0 || len(id) > MaxLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
