package imaging

import "strings"

// Format identifies an image encoding. The zero value is an unknown format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatGIF  Format = "gif"
	// Decode-only formats. Encoding them falls back to JPEG.
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

var formatAliases = map[string]Format{
	"jpeg": FormatJPEG,
	"jpg":  FormatJPEG,
	"png":  FormatPNG,
	"webp": FormatWebP,
	"avif": FormatAVIF,
	"gif":  FormatGIF,
	"bmp":  FormatBMP,
	"tif":  FormatTIFF,
	"tiff": FormatTIFF,
}

// ParseFormat maps an extension or MIME subtype ("jpg", ".PNG", "webp") to
// a Format. ok is false when the name is not recognised.
func ParseFormat(name string) (Format, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, ".")
	f, ok := formatAliases[name]
	return f, ok
}

// ExtensionOf returns the lowercase extension of a file path or URL path,
// without the dot. Query strings and fragments are ignored.
func ExtensionOf(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	i := strings.LastIndexByte(path, '.')
	if i < 0 || i < strings.LastIndexByte(path, '/') {
		return ""
	}
	return strings.ToLower(path[i+1:])
}

// MIMEType returns the Content-Type for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatAVIF:
		return "image/avif"
	case FormatGIF:
		return "image/gif"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

func (f Format) String() string { return string(f) }
