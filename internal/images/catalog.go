package images

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const pngExtension = ".png"

var (
	// ErrImageNotFound indicates the requested image is not a file in the catalog directory.
	ErrImageNotFound = errors.New("images: image not found")
	// ErrInvalidImageName indicates a name that is empty or escapes the catalog directory.
	ErrInvalidImageName = errors.New("images: invalid image name")

	errMissingDirectory = errors.New("images: directory required")
)

// Catalog reads token images from a local directory.
type Catalog struct {
	dir string
}

// NewCatalog returns a Catalog rooted at dir. The directory is read on each call.
func NewCatalog(dir string) (*Catalog, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, errMissingDirectory
	}
	return &Catalog{dir: trimmed}, nil
}

// Dir returns the catalog directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// ListPNG returns the names of regular files ending in .png, sorted.
func (c *Catalog) ListPNG() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("images: read %s: %w", c.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), pngExtension) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Open opens the named image for reading. Names must refer to a file
// directly inside the catalog directory.
func (c *Catalog) Open(name string) (io.ReadCloser, error) {
	path, err := c.resolve(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("images: open %s: %w", name, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("images: stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}
	return file, nil
}

func (c *Catalog) resolve(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed != filepath.Base(trimmed) || trimmed == "." || trimmed == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidImageName, name)
	}
	return filepath.Join(c.dir, trimmed), nil
}
