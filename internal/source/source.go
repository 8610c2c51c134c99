// Package source provides the byte sources an image pipeline reads from:
// remote HTTP locations and the local storage directory.
package source

import (
	"context"
	"mime"
	"strings"
)

// Blob is the raw content read from a source.
type Blob struct {
	Data []byte
	// ContentType is the media type reported by the source, if any.
	ContentType string
}

// Reader reads the bytes behind a locator.
type Reader interface {
	Read(ctx context.Context, locator string) (*Blob, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context, locator string) (*Blob, error)

// Read calls f(ctx, locator).
func (f ReaderFunc) Read(ctx context.Context, locator string) (*Blob, error) {
	return f(ctx, locator)
}

// IsRemote reports whether locator names a network resource.
func IsRemote(locator string) bool {
	return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
}

// ExtensionFromContentType returns the subtype of an image media type,
// e.g. "jpeg" for "image/jpeg; charset=binary". It returns "" for
// anything that is not image/*.
func ExtensionFromContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	mediaType = strings.ToLower(mediaType)
	sub, ok := strings.CutPrefix(mediaType, "image/")
	if !ok {
		return ""
	}
	return sub
}
