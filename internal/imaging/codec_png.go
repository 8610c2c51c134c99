package imaging

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
)

type pngCodec struct{}

func (pngCodec) Decode(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}

// Encode reduces the raster to a palette sized by quality and writes it
// with maximum deflate effort.
func (pngCodec) Encode(img image.Image, opts EncodeOptions) ([]byte, error) {
	paletted, err := palettize(img, paletteSize(opts.Quality))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, paletted); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// paletteSize maps quality 0-100 onto 16-256 colours.
func paletteSize(quality int) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	return 16 + quality*240/100
}

// palettize quantizes img to at most n colours and dithers it onto the
// resulting palette.
func palettize(img image.Image, n int) (*image.Paletted, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, errEmptyImage("quantize")
	}
	q := MedianCut{MaxColors: n}
	palette := q.Quantize(nil, img)
	if len(palette) == 0 {
		return nil, errEmptyImage("quantize")
	}
	out := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette)
	draw.FloydSteinberg.Draw(out, out.Rect, img, b.Min)
	return out, nil
}
