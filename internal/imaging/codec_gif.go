package imaging

import (
	"bytes"
	"image"
	"image/gif"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

type gifCodec struct{}

func (gifCodec) Decode(data []byte) (image.Image, error) {
	return gif.Decode(bytes.NewReader(data))
}

// Encode re-emits every frame of opts.Source with infinite looping. Without
// a source stream the raster is written as a single frame.
func (gifCodec) Encode(img image.Image, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if len(opts.Source) > 0 {
		anim, err := gif.DecodeAll(bytes.NewReader(opts.Source))
		if err != nil {
			return nil, err
		}
		anim.LoopCount = 0
		if err := gif.EncodeAll(&buf, anim); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	paletted, err := palettize(img, 256)
	if err != nil {
		return nil, err
	}
	anim := &gif.GIF{
		Image:     []*image.Paletted{paletted},
		Delay:     []int{0},
		LoopCount: 0,
	}
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type bmpDecoder struct{}

func (bmpDecoder) Decode(data []byte) (image.Image, error) {
	return bmp.Decode(bytes.NewReader(data))
}

type tiffDecoder struct{}

func (tiffDecoder) Decode(data []byte) (image.Image, error) {
	return tiff.Decode(bytes.NewReader(data))
}
