package imaging

import (
	"image"
	"strings"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// ResizeDimensions computes the target size for a resize request.
//
// Parameters:
//   - srcW, srcH: Current raster dimensions.
//   - width, height: Requested dimensions. Zero means "derive from the other
//     dimension and the source aspect ratio".
//
// Returns:
//   - w, h: The target dimensions.
//   - ok: False when both requested dimensions are zero, meaning no resize.
//
// The missing dimension uses integer arithmetic, known*otherTarget/otherKnown,
// and is clamped to at least 1.
func ResizeDimensions(srcW, srcH, width, height int) (w, h int, ok bool) {
	if width == 0 && height == 0 {
		return 0, 0, false
	}
	w, h = width, height
	if w == 0 && srcH > 0 {
		w = srcW * height / srcH
	}
	if h == 0 && srcW > 0 {
		h = srcH * width / srcW
	}
	return max(w, 1), max(h, 1), true
}

// Resize scales img with a Lanczos filter. Both-zero requests return img
// unchanged.
func Resize(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	w, h, ok := ResizeDimensions(b.Dx(), b.Dy(), width, height)
	if !ok {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// Crop extracts the rectangle anchored at (x, y). The rectangle is clipped
// to the image bounds; callers validate bounds beforehand.
func Crop(img image.Image, x, y, width, height int) image.Image {
	origin := img.Bounds().Min
	return imaging.Crop(img, image.Rect(x, y, x+width, y+height).Add(origin))
}

// Grayscale converts img to a single-channel luminance raster. bild
// computes the luminance into an RGBA image with equal channels; the red
// channel is copied out.
func Grayscale(img image.Image) *image.Gray {
	rgba := effect.Grayscale(img)
	g := image.NewGray(rgba.Rect)
	for y := 0; y < rgba.Rect.Dy(); y++ {
		src := rgba.Pix[y*rgba.Stride:]
		dst := g.Pix[y*g.Stride:]
		for x := 0; x < rgba.Rect.Dx(); x++ {
			dst[x] = src[x*4]
		}
	}
	return g
}

// Position is one of nine overlay anchors.
type Position int

const (
	BottomRight Position = iota
	TopLeft
	Top
	TopRight
	Left
	Center
	Right
	BottomLeft
	Bottom
)

var positionNames = map[string]Position{
	"top-left":     TopLeft,
	"lefttop":      TopLeft,
	"top":          Top,
	"top-right":    TopRight,
	"righttop":     TopRight,
	"left":         Left,
	"center":       Center,
	"right":        Right,
	"bottom-left":  BottomLeft,
	"leftbottom":   BottomLeft,
	"bottom":       Bottom,
	"bottom-right": BottomRight,
	"rightbottom":  BottomRight,
}

// ParsePosition accepts "top-left" style names as well as the compact
// "leftTop" form. Anything else, including "", is BottomRight.
func ParsePosition(name string) Position {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "_", "-")
	if p, ok := positionNames[key]; ok {
		return p
	}
	return BottomRight
}

func (p Position) String() string {
	switch p {
	case TopLeft:
		return "top-left"
	case Top:
		return "top"
	case TopRight:
		return "top-right"
	case Left:
		return "left"
	case Center:
		return "center"
	case Right:
		return "right"
	case BottomLeft:
		return "bottom-left"
	case Bottom:
		return "bottom"
	default:
		return "bottom-right"
	}
}

// Anchor returns the top-left point at which an overlay of size inner is
// placed inside a canvas of size outer, before margins. Centered axes use
// (outer-inner)>>1.
func (p Position) Anchor(outer, inner image.Point) image.Point {
	left, midX, right := 0, (outer.X-inner.X)>>1, outer.X-inner.X
	top, midY, bottom := 0, (outer.Y-inner.Y)>>1, outer.Y-inner.Y

	switch p {
	case TopLeft:
		return image.Pt(left, top)
	case Top:
		return image.Pt(midX, top)
	case TopRight:
		return image.Pt(right, top)
	case Left:
		return image.Pt(left, midY)
	case Center:
		return image.Pt(midX, midY)
	case Right:
		return image.Pt(right, midY)
	case BottomLeft:
		return image.Pt(left, bottom)
	case Bottom:
		return image.Pt(midX, bottom)
	default:
		return image.Pt(right, bottom)
	}
}

// Overlay composites mark onto img at the anchor for pos shifted by the
// margins. Parts falling outside the canvas are clipped.
func Overlay(img, mark image.Image, pos Position, marginLeft, marginTop int) *image.NRGBA {
	ib, mb := img.Bounds(), mark.Bounds()
	at := pos.Anchor(ib.Size(), mb.Size()).Add(image.Pt(marginLeft, marginTop))
	return imaging.Overlay(img, mark, at, 1.0)
}
