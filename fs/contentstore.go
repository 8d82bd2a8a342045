// Package fs provides a filesystem-backed content-addressable store for
// compressed aggregate chunk content.
package fs

import (
	"bytes"
	"compress/gzip"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/docchunk"
)

// Ensure ContentStore implements docchunk.ContentStore at compile time.
var _ docchunk.ContentStore = (*ContentStore)(nil)

// ContentStore stores gzip-compressed content under a base directory.
// File names are derived from the xxHash of the key, so keys of any shape
// map to safe paths. Writes go to a temporary file and are renamed into
// place so readers never observe partial content.
type ContentStore struct {
	baseDir string
}

// NewContentStore creates a ContentStore rooted at baseDir, creating the
// directory if needed.
func NewContentStore(baseDir string) (*ContentStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &ContentStore{baseDir: baseDir}, nil
}

func (s *ContentStore) path(key string) string {
	h := xxhash.Sum64String(key)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(h >> (56 - 8*i))
	}
	return filepath.Join(s.baseDir, hex.EncodeToString(b)+".gz")
}

// Save stores content under the given key, replacing any previous value.
func (s *ContentStore) Save(key string, content []byte) error {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(content); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.baseDir, "content-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), s.path(key))
}

// Load retrieves content by key.
func (s *ContentStore) Load(key string) ([]byte, error) {
	f, err := os.Open(s.path(key))
	if os.IsNotExist(err) {
		return nil, docchunk.Errorf(docchunk.ENOTFOUND, "content for key %q not found", key)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// Delete removes content by key. Deleting a missing key is not an error.
func (s *ContentStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
