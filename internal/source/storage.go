package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// ErrInvalidPath is returned for locators that escape the storage root.
var ErrInvalidPath = errors.New("invalid storage path")

// StorageSource reads files from a filesystem rooted at a base directory.
type StorageSource struct {
	fs afero.Fs
}

// NewStorageSource serves files below baseDir on the OS filesystem.
func NewStorageSource(baseDir string) *StorageSource {
	return NewStorageSourceFs(afero.NewBasePathFs(afero.NewOsFs(), baseDir))
}

// NewStorageSourceFs serves files from an arbitrary afero filesystem.
func NewStorageSourceFs(fsys afero.Fs) *StorageSource {
	return &StorageSource{fs: fsys}
}

// Read returns the file at locator, a slash separated path relative to
// the storage root.
func (s *StorageSource) Read(ctx context.Context, locator string) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := cleanPath(locator)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: %s: %w", locator, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("storage: reading %s: %w", locator, err)
	}
	return &Blob{Data: data, ContentType: mime.TypeByExtension(path.Ext(name))}, nil
}

func cleanPath(locator string) (string, error) {
	p := strings.ReplaceAll(strings.TrimSpace(locator), "\\", "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, locator)
		}
	}
	return path.Clean("/" + p), nil
}
