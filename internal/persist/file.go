package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// DocumentVersion is the version written into every collection file.
// Files are readable when their major version matches.
const DocumentVersion = "1.0.0"

// ErrIncompatibleVersion is returned for collection files of another major version.
var ErrIncompatibleVersion = errors.New("incompatible document version")

// Compile-time check that FileBackend implements Backend.
var _ Backend = (*FileBackend)(nil)

// Document is the on-disk shape of one collection file.
type Document struct {
	Version    string `yaml:"version"`
	Collection string `yaml:"collection"`
	Items      []Item `yaml:"items"`
}

// FileBackend stores each collection as <dir>/<collection>.yaml.
// Writes go to a temporary file that is renamed into place, so a failed
// write leaves the previous file intact.
type FileBackend struct {
	dir     string
	mu      sync.Mutex
	version *semver.Version
}

// NewFileBackend creates a backend rooted at dir, creating it if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrap("open", dir, err)
	}

	return &FileBackend{dir: dir, version: semver.MustParse(DocumentVersion)}, nil
}

// Dir returns the backend's root directory.
func (f *FileBackend) Dir() string {
	return f.dir
}

// GetAll implements Backend.
func (f *FileBackend) GetAll(ctx context.Context, collection string) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("get", collection, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load(collection)
	if err != nil {
		return nil, wrap("get", collection, err)
	}

	return doc.Items, nil
}

// ReplaceAll implements Backend.
func (f *FileBackend) ReplaceAll(ctx context.Context, collection string, items []Item) error {
	if err := ctx.Err(); err != nil {
		return wrap("replace", collection, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return wrap("replace", collection, f.store(collection, CloneItems(items)))
}

// Upsert implements Backend.
func (f *FileBackend) Upsert(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return wrap("upsert", collection, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load(collection)
	if err != nil {
		return wrap("upsert", collection, err)
	}

	return wrap("upsert", collection, f.store(collection, merge(doc.Items, id, fields)))
}

func (f *FileBackend) path(collection string) string {
	return filepath.Join(f.dir, collection+".yaml")
}

func (f *FileBackend) load(collection string) (*Document, error) {
	path := f.path(collection)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Document{Version: DocumentVersion, Collection: collection}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := f.checkVersion(doc.Version); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return doc, nil
}

func (f *FileBackend) checkVersion(raw string) error {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrIncompatibleVersion, raw, err)
	}

	if v.Major() != f.version.Major() {
		return fmt.Errorf("%w: file is %s, supported is %d.x", ErrIncompatibleVersion, v, f.version.Major())
	}

	return nil
}

func (f *FileBackend) store(collection string, items []Item) error {
	if items == nil {
		items = []Item{}
	}

	data, err := MarshalDocument(&Document{
		Version:    DocumentVersion,
		Collection: collection,
		Items:      items,
	})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+collection+"-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, f.path(collection)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", f.path(collection), err)
	}

	return nil
}

// ParseDocument parses YAML data into a Document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse collection YAML: %w", err)
	}

	if doc.Version == "" {
		doc.Version = DocumentVersion
	}

	return &doc, nil
}

// MarshalDocument serializes a Document to YAML.
func MarshalDocument(doc *Document) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collection: %w", err)
	}

	return data, nil
}
