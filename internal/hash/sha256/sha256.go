// Package sha256 computes artifact digests.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Hasher implements scrape.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashFile streams the file at path through SHA-256. Used for artifacts the
// browser or the audio extractor wrote directly to disk.
func (h *Hasher) HashFile(path string) (string, int64, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the storage layout
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	digest := sha256.New()
	n, err := io.Copy(digest, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(digest.Sum(nil)), n, nil
}
