package imaging

import (
	"bytes"
	"image"

	"github.com/gen2brain/avif"
)

type avifCodec struct{}

func (avifCodec) Decode(data []byte) (image.Image, error) {
	return avif.Decode(bytes.NewReader(data))
}

func (avifCodec) Encode(img image.Image, opts EncodeOptions) ([]byte, error) {
	if img.Bounds().Empty() {
		return nil, errEmptyImage("avif")
	}
	speed := opts.Speed
	if speed < 0 {
		speed = 0
	}
	if speed > 10 {
		speed = 10
	}
	q := clampQuality(opts.Quality)
	var buf bytes.Buffer
	err := avif.Encode(&buf, img, avif.Options{
		Quality:           q,
		QualityAlpha:      q,
		Speed:             speed,
		ChromaSubsampling: image.YCbCrSubsampleRatio420,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
