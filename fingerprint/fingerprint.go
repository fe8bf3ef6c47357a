// Package fingerprint identifies logically identical mutating requests.
//
// A fingerprint is either "principal:key" for a client-supplied idempotency
// key, or the hex SHA-256 of "principal:path:canonicalBody". Both forms are
// scoped by principal, so callers never share records.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Compute hashes principal, path and the canonical form of body.
// Bodies that differ only in key order or whitespace yield the same value.
func Compute(principal, path string, body []byte) (string, error) {
	canonical, err := Canonicalize(body)
	if err != nil {
		return "", err
	}
	return hash(principal, path, canonical), nil
}

// ForRequest returns explicitKey bound to principal when it is non-empty,
// otherwise Compute. The body must be valid JSON either way; explicitKey only
// replaces the hash.
func ForRequest(explicitKey, principal, path string, body []byte) (string, error) {
	canonical, err := Canonicalize(body)
	if err != nil {
		return "", err
	}
	if explicitKey != "" {
		return principal + ":" + explicitKey, nil
	}
	return hash(principal, path, canonical), nil
}

func hash(principal, path string, canonical []byte) string {
	h := sha256.New()
	h.Write([]byte(principal))
	h.Write([]byte{':'})
	h.Write([]byte(path))
	h.Write([]byte{':'})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}
