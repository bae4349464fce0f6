// Package checksum computes the content digests stored alongside notes and images.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Size is the length of a hex-encoded digest.
const Size = sha256.Size * 2

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumString returns the digest of the UTF-8 encoding of s.
func SumString(s string) string {
	return Sum([]byte(s))
}

// SumReader streams r through SHA-256 and returns the digest and byte count.
func SumReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Valid reports whether s looks like a digest produced by Sum.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
