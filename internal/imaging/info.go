package imaging

import "image"

// ImageInfo contains metadata about a decoded image.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the working format, e.g. "png" or "jpeg".
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha reports whether any pixel is not fully opaque.
	HasAlpha bool `json:"has_alpha"`

	// Grayscale reports a single-channel raster.
	Grayscale bool `json:"grayscale"`

	// SizeBytes is the size of the bytes the image was loaded from.
	SizeBytes int `json:"size_bytes"`
}

// Describe extracts metadata from a loaded state.
//
// Color depth is reported from the Go raster type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
//
// Decoded states hold *image.NRGBA, so depth is "8-bit" unless the caller
// built the state from a 16-bit raster directly.
func Describe(s *ImageState) *ImageInfo {
	info := &ImageInfo{
		Width:      s.Width(),
		Height:     s.Height(),
		Format:     s.Format.String(),
		ColorDepth: "8-bit",
		SizeBytes:  s.OriginalSize,
	}
	switch img := s.Pixels.(type) {
	case *image.Gray:
		info.Grayscale = true
	case *image.Gray16:
		info.Grayscale = true
		info.ColorDepth = "16-bit"
	case *image.RGBA64, *image.NRGBA64:
		info.ColorDepth = "16-bit"
		info.HasAlpha = !img.(interface{ Opaque() bool }).Opaque()
	case interface{ Opaque() bool }:
		info.HasAlpha = !img.Opaque()
	}
	return info
}
