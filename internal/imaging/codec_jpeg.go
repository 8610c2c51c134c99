package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/jpegli"
)

type jpegCodec struct{}

func (jpegCodec) Decode(data []byte) (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(data))
}

func (jpegCodec) Encode(img image.Image, opts EncodeOptions) ([]byte, error) {
	if img.Bounds().Empty() {
		return nil, errEmptyImage("jpeg")
	}
	var buf bytes.Buffer
	err := jpegli.Encode(&buf, flattenAlpha(img), &jpegli.EncodingOptions{
		Quality:           clampQuality(opts.Quality),
		ChromaSubsampling: image.YCbCrSubsampleRatio420,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// flattenAlpha composites translucent rasters onto white, since JPEG has
// no alpha channel.
func flattenAlpha(img image.Image) image.Image {
	if _, ok := img.(*image.Gray); ok {
		return img
	}
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
