package imaging

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// DiffNotComputed is the DiffScore sentinel for "not computed" or "not applicable".
const DiffNotComputed = -1.0

// ImageState is the in-flight image threaded through a pipeline run.
//
// Encoded, when non-empty, is always the exact encoding of Pixels in Format.
// Every method that replaces Pixels clears it.
type ImageState struct {
	// Pixels is the working raster: *image.NRGBA after decode, *image.Gray
	// after Grayscale.
	Pixels image.Image

	// OriginalPixels is the raster as decoded by Load, kept for Diff.
	OriginalPixels image.Image

	// Encoded caches the compressed form of Pixels.
	Encoded []byte

	// Format is the working extension and, after Optim, the output encoding.
	Format Format

	// OriginalSize is the byte length fetched by Load; 0 without a Load.
	OriginalSize int

	// DiffScore is DSSIM x 1000 against OriginalPixels, or DiffNotComputed.
	DiffScore float64

	// Source holds the raw GIF stream as loaded so animations can be
	// re-emitted frame by frame. It is nil for every other format.
	Source []byte
}

// NewState returns an empty state with no diff score.
func NewState() *ImageState {
	return &ImageState{DiffScore: DiffNotComputed}
}

// HasPixels reports whether a raster has been loaded.
func (s *ImageState) HasPixels() bool {
	return s != nil && s.Pixels != nil
}

// Bounds returns the working raster bounds, or an empty rectangle.
func (s *ImageState) Bounds() image.Rectangle {
	if !s.HasPixels() {
		return image.Rectangle{}
	}
	return s.Pixels.Bounds()
}

// Width returns the working raster width.
func (s *ImageState) Width() int { return s.Bounds().Dx() }

// Height returns the working raster height.
func (s *ImageState) Height() int { return s.Bounds().Dy() }

// SetPixels replaces the working raster and drops the cached encoding.
func (s *ImageState) SetPixels(img image.Image) {
	s.Pixels = img
	s.Encoded = nil
}

// Clone returns a deep copy whose rasters can be read independently of s.
func (s *ImageState) Clone() *ImageState {
	c := &ImageState{
		Format:       s.Format,
		OriginalSize: s.OriginalSize,
		DiffScore:    s.DiffScore,
	}
	if s.Pixels != nil {
		c.Pixels = cloneRaster(s.Pixels)
	}
	if s.OriginalPixels != nil {
		c.OriginalPixels = cloneRaster(s.OriginalPixels)
	}
	if s.Encoded != nil {
		c.Encoded = append([]byte(nil), s.Encoded...)
	}
	if s.Source != nil {
		c.Source = append([]byte(nil), s.Source...)
	}
	return c
}

// cloneRaster copies img, keeping grayscale rasters single-channel.
func cloneRaster(img image.Image) image.Image {
	if g, ok := img.(*image.Gray); ok {
		out := image.NewGray(g.Rect)
		draw.Draw(out, out.Rect, g, g.Rect.Min, draw.Src)
		return out
	}
	return imaging.Clone(img)
}
