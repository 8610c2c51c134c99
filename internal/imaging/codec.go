package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// DefaultQuality and DefaultSpeed are used when a state is materialised
// without an explicit Optim.
const (
	DefaultQuality = 80
	DefaultSpeed   = 3
)

// EncodeOptions carries the knobs a codec may honour.
type EncodeOptions struct {
	// Quality is 0-100. For WebP, 100 selects lossless mode.
	Quality int
	// Speed is 0-10, lower is slower and smaller. Only AVIF reads it.
	Speed int
	// Source is the raw stream of an untouched animated image. Frame based
	// encoders re-emit it instead of the raster.
	Source []byte
}

// Decoder turns encoded bytes into a raster.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// Encoder turns a raster into encoded bytes.
type Encoder interface {
	Encode(img image.Image, opts EncodeOptions) ([]byte, error)
}

// Codec is a format adapter that can both decode and encode.
type Codec interface {
	Decoder
	Encoder
}

// Registry maps formats to their adapters. Formats without an encoder
// are written as JPEG.
type Registry struct {
	decoders map[Format]Decoder
	encoders map[Format]Encoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[Format]Decoder),
		encoders: make(map[Format]Encoder),
	}
}

// DefaultRegistry returns a registry with every built-in adapter.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(FormatJPEG, jpegCodec{})
	r.Register(FormatPNG, pngCodec{})
	r.Register(FormatWebP, webpCodec{})
	r.Register(FormatAVIF, avifCodec{})
	r.Register(FormatGIF, gifCodec{})
	r.RegisterDecoder(FormatBMP, bmpDecoder{})
	r.RegisterDecoder(FormatTIFF, tiffDecoder{})
	return r
}

// Register installs c as both decoder and encoder for f.
func (r *Registry) Register(f Format, c Codec) {
	r.decoders[f] = c
	r.encoders[f] = c
}

// RegisterDecoder installs a decode-only adapter for f.
func (r *Registry) RegisterDecoder(f Format, d Decoder) {
	r.decoders[f] = d
}

// EncoderFor resolves a target name to the format that will actually be
// written and its encoder. Unknown or decode-only targets resolve to JPEG.
func (r *Registry) EncoderFor(target string) (Format, Encoder) {
	if f, ok := ParseFormat(target); ok {
		if enc, ok := r.encoders[f]; ok {
			return f, enc
		}
	}
	return FormatJPEG, r.encoders[FormatJPEG]
}

// DecodeRaster decodes data with the decoder selected by ext and normalises
// the result to *image.NRGBA.
func (r *Registry) DecodeRaster(data []byte, ext string) (image.Image, Format, error) {
	f, ok := ParseFormat(ext)
	if !ok {
		return nil, "", Errorf(KindUnsupportedFormat, "decode", "no decoder for extension %q", ext)
	}
	dec, ok := r.decoders[f]
	if !ok {
		return nil, "", Errorf(KindUnsupportedFormat, "decode", "no decoder for format %s", f)
	}
	img, err := dec.Decode(data)
	if err != nil {
		return nil, "", NewError(KindDecode, string(f), err)
	}
	return imaging.Clone(img), f, nil
}

// Decode builds a fresh state from encoded bytes. The fetched bytes become
// the cached encoding and the size baseline.
func (r *Registry) Decode(data []byte, ext string) (*ImageState, error) {
	img, f, err := r.DecodeRaster(data, ext)
	if err != nil {
		return nil, err
	}
	s := NewState()
	s.Pixels = img
	// Operations replace Pixels rather than writing into it, so the
	// snapshot can share the raster.
	s.OriginalPixels = img
	s.Encoded = data
	s.Format = f
	s.OriginalSize = len(data)
	if f == FormatGIF {
		s.Source = data
	}
	return s, nil
}

// Encode writes s in the target format and returns the bytes together with
// the format actually produced.
func (r *Registry) Encode(s *ImageState, target string, opts EncodeOptions) ([]byte, Format, error) {
	if !s.HasPixels() {
		return nil, "", Errorf(KindParamsInvalid, "encode", "no image loaded")
	}
	f, enc := r.EncoderFor(target)
	if enc == nil {
		return nil, "", Errorf(KindUnsupportedFormat, "encode", "no encoder for %s", f)
	}
	if f == FormatGIF && s.Source != nil && len(s.Encoded) > 0 {
		opts.Source = s.Source
	}
	data, err := enc.Encode(s.Pixels, opts)
	if err != nil {
		return nil, "", NewError(KindEncode, string(f), err)
	}
	if len(data) == 0 {
		return nil, "", Errorf(KindEncode, string(f), "encoder produced no data")
	}
	return data, f, nil
}

// Buffer returns the cached encoding of s, encoding it in its current
// format first when nothing is cached.
func (r *Registry) Buffer(s *ImageState, quality, speed int) ([]byte, error) {
	if len(s.Encoded) > 0 {
		return s.Encoded, nil
	}
	data, f, err := r.Encode(s, string(s.Format), EncodeOptions{Quality: quality, Speed: speed})
	if err != nil {
		return nil, err
	}
	s.Encoded = data
	s.Format = f
	return data, nil
}

func clampQuality(q int) int {
	switch {
	case q < 1:
		return 1
	case q > 100:
		return 100
	}
	return q
}

func errEmptyImage(op string) error {
	return fmt.Errorf("%s: empty image", op)
}
