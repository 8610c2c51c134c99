package pipeline

import (
	"fmt"

	"github.com/ironsheep/image-optim/internal/imaging"
)

// OpKind names an operation.
type OpKind string

const (
	KindLoad      OpKind = "load"
	KindResize    OpKind = "resize"
	KindCrop      OpKind = "crop"
	KindGrayscale OpKind = "grayscale"
	KindWatermark OpKind = "watermark"
	KindOptim     OpKind = "optim"
	KindDiff      OpKind = "diff"
)

// Operation is one step of a pipeline run. The set is closed: only the
// types in this file implement it.
type Operation interface {
	Kind() OpKind
	validate() error
}

// Load replaces the state with a decoded image. A Locator starting with
// http:// or https:// is fetched, in which case a response Content-Type of
// image/* overrides Extension. Any other Locator is base64 data, optionally
// wrapped in a data: URI.
type Load struct {
	Locator   string
	Extension string
}

// Resize scales the raster. A zero dimension is derived from the other one
// and the aspect ratio; both zero is a no-op.
type Resize struct {
	Width, Height uint32
}

// Crop keeps the Width x Height rectangle anchored at (X, Y). Bounds are the
// caller's responsibility.
type Crop struct {
	X, Y, Width, Height uint32
}

// Grayscale converts the raster to single-channel luminance.
type Grayscale struct{}

// Watermark composites the image at Locator onto the raster.
type Watermark struct {
	Locator    string
	Position   imaging.Position
	MarginLeft int32
	MarginTop  int32
}

// Optim encodes the raster. An empty Format keeps the current format and
// unknown formats encode as JPEG. Negative Quality or Speed select the
// executor defaults.
type Optim struct {
	Format  string
	Quality int
	Speed   int
}

// Diff scores the raster against the loaded original.
type Diff struct{}

func (Load) Kind() OpKind      { return KindLoad }
func (Resize) Kind() OpKind    { return KindResize }
func (Crop) Kind() OpKind      { return KindCrop }
func (Grayscale) Kind() OpKind { return KindGrayscale }
func (Watermark) Kind() OpKind { return KindWatermark }
func (Optim) Kind() OpKind     { return KindOptim }
func (Diff) Kind() OpKind      { return KindDiff }

func (o Load) validate() error {
	if o.Locator == "" {
		return fmt.Errorf("load: locator is required")
	}
	return nil
}

func (Resize) validate() error { return nil }

func (o Crop) validate() error {
	if o.Width == 0 || o.Height == 0 {
		return fmt.Errorf("crop: width and height must be positive")
	}
	return nil
}

func (Grayscale) validate() error { return nil }

func (o Watermark) validate() error {
	if o.Locator == "" {
		return fmt.Errorf("watermark: locator is required")
	}
	return nil
}

func (o Optim) validate() error {
	if o.Quality > 100 {
		return fmt.Errorf("optim: quality %d exceeds 100", o.Quality)
	}
	if o.Speed > 10 {
		return fmt.Errorf("optim: speed %d exceeds 10", o.Speed)
	}
	return nil
}

func (Diff) validate() error { return nil }

// Validate checks an operation list before it runs. loaded reports whether
// the run starts from a state that already holds an image; otherwise the
// first operation must be a Load.
func Validate(ops []Operation, loaded bool) error {
	if len(ops) == 0 {
		return imaging.Errorf(imaging.KindParamsInvalid, "pipeline", "no operations")
	}
	for i, op := range ops {
		if op == nil {
			return imaging.Errorf(imaging.KindParamsInvalid, "pipeline", "operation %d is nil", i)
		}
		if err := op.validate(); err != nil {
			return imaging.NewError(imaging.KindParamsInvalid, string(op.Kind()), err)
		}
	}
	if !loaded && ops[0].Kind() != KindLoad {
		return imaging.Errorf(imaging.KindParamsInvalid, "pipeline", "first operation must be load, got %s", ops[0].Kind())
	}
	return nil
}

// reshapes reports whether op changes geometry or content in a way that
// makes a perceptual diff meaningless.
func reshapes(op Operation) bool {
	switch op.(type) {
	case Resize, Crop, Watermark:
		return true
	}
	return false
}
