package imaging

import (
	"bytes"
	"image"

	"github.com/chai2010/webp"
	xwebp "golang.org/x/image/webp"
)

type webpCodec struct{}

func (webpCodec) Decode(data []byte) (image.Image, error) {
	return xwebp.Decode(bytes.NewReader(data))
}

// Encode writes lossless WebP at quality 100 and lossy WebP otherwise.
func (webpCodec) Encode(img image.Image, opts EncodeOptions) ([]byte, error) {
	if img.Bounds().Empty() {
		return nil, errEmptyImage("webp")
	}
	var buf bytes.Buffer
	q := clampQuality(opts.Quality)
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: q == 100, Quality: float32(q)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
