// ABOUTME: Raw access to datastore JSON files
// ABOUTME: Maps logical keys to files under the datastore root

package datastore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Keys of the stored documents
const (
	KeyDraftVersion      = "draft_version"
	KeyDatastoreVersions = "datastore_versions"
	metadataAllPrefix    = "metadata_all__"
)

// ErrKeyNotFound is returned by a Reader when no document exists for a key
var ErrKeyNotFound = errors.New("datastore: key not found")

// Reader returns the raw JSON bytes stored under a key
type Reader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// MetadataAllKey returns the key of the metadata-all document for a file key
func MetadataAllKey(fileKey string) string {
	return metadataAllPrefix + fileKey
}

// FileReader reads documents from {root}/datastore/{key}.json
type FileReader struct {
	dir string
}

// NewFileReader creates a reader rooted at the datastore root directory
func NewFileReader(root string) *FileReader {
	return &FileReader{dir: filepath.Join(root, "datastore")}
}

// Dir returns the directory holding the documents
func (fr *FileReader) Dir() string {
	return fr.dir
}

// Path returns the file path of key
func (fr *FileReader) Path(key string) string {
	return filepath.Join(fr.dir, key+".json")
}

// Read implements Reader
func (fr *FileReader) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}

	data, err := os.ReadFile(fr.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// KeyForPath returns the key of a document file, or false for other files
func KeyForPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".json") {
		return "", false
	}
	key := strings.TrimSuffix(base, ".json")
	return key, validKey(key)
}

// validKey rejects keys that could escape the datastore directory
func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, `/\`) && !strings.Contains(key, "..")
}
