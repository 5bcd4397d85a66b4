// Package checksum computes content digests used for tamper detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// chunkSize bounds memory use when hashing large database files.
const chunkSize = 64 * 1024

// FileSHA256 streams the file at path through SHA-256 and returns the hex
// digest. Hashing is best-effort verification, so callers are expected to log
// the returned error rather than abort on it.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - controlled backup artifact path
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
