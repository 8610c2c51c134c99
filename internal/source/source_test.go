package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionFromContentType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"image/jpeg", "jpeg"},
		{"image/png; charset=binary", "png"},
		{"IMAGE/WEBP", "webp"},
		{"image/avif;q=0.9", "avif"},
		{"text/html", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtensionFromContentType(tt.in))
		})
	}
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("http://example.com/a.png"))
	assert.True(t, IsRemote("https://example.com/a.png"))
	assert.False(t, IsRemote("iVBORw0KGgo="))
	assert.False(t, IsRemote("photos/a.png"))
}

func TestReaderFunc(t *testing.T) {
	r := ReaderFunc(func(_ context.Context, locator string) (*Blob, error) {
		return &Blob{Data: []byte(locator)}, nil
	})

	blob, err := r.Read(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), blob.Data)
}
