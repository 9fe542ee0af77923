// Package build implements the incremental build pipeline: content
// fingerprinting, the persistent build cache, the bounded task queue, and
// the worker pool that turns build units into published pages.
package build

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"sort"

	"github.com/arcadeforge/arcadeforge/internal/content"
)

// Fingerprint computes the cache identity of one game page. It covers the
// sanitized record fields, the template version, and the content of every
// referenced asset. Each field is length-framed so adjacent fields cannot
// collide ("ab"+"c" vs "a"+"bc"), and asset hashes are sorted so map
// iteration order never leaks into the digest.
func Fingerprint(record *content.GameRecord, templateVersion string, assetHashes []string) string {
	h := sha256.New()

	writeFramed(h, []byte(templateVersion))
	for _, field := range record.Fields() {
		writeFramed(h, []byte(field))
	}

	sorted := make([]string, len(assetHashes))
	copy(sorted, assetHashes)
	sort.Strings(sorted)
	for _, ah := range sorted {
		writeFramed(h, []byte(ah))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// HashFile returns the content hash of a file on disk. Asset fingerprints
// use content, not modification times, so touching a file without changing
// it stays a cache hit.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeFramed(w io.Writer, b []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(b)))
	w.Write(length[:])
	w.Write(b)
}
