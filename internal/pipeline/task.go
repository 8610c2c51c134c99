package pipeline

import (
	"github.com/ironsheep/image-optim/internal/imaging"
)

// ImageTask is the parameter set of an optimise request against an image
// that is already loaded.
type ImageTask struct {
	OutputType string
	// Quality and Speed are negative for "use the default".
	Quality int
	Speed   int
	// Accept is the client's Accept header, consulted for "auto".
	Accept string

	Width  uint32
	Height uint32

	Watermark  string
	Position   string
	MarginLeft int32
	MarginTop  int32

	CropX      uint32
	CropY      uint32
	CropWidth  uint32
	CropHeight uint32
}

// NewImageTask returns a task with default quality and speed that keeps
// the current format.
func NewImageTask() ImageTask {
	return ImageTask{Quality: -1, Speed: -1}
}

// Plan is the operation list built from an ImageTask.
type Plan struct {
	Operations []Operation
	// OutputType is the resolved output format.
	OutputType string
	// Private marks responses that depend on the Accept header.
	Private bool
}

func (t ImageTask) hasCrop() bool {
	return t.CropX != 0 || t.CropY != 0 || t.CropWidth != 0 || t.CropHeight != 0
}

// Plan builds the operations for st in the order watermark, crop, resize,
// optim and diff. Diff is only added when the image keeps its geometry and
// content. Crop rectangles outside the image are rejected.
func (t ImageTask) Plan(st *imaging.ImageState, preferred []string) (*Plan, error) {
	if st == nil || !st.HasPixels() {
		return nil, imaging.Errorf(imaging.KindParamsInvalid, "task", "no image loaded")
	}
	var ops []Operation
	if t.Watermark != "" {
		ops = append(ops, Watermark{
			Locator:    t.Watermark,
			Position:   imaging.ParsePosition(t.Position),
			MarginLeft: t.MarginLeft,
			MarginTop:  t.MarginTop,
		})
	}
	if t.hasCrop() {
		if t.CropWidth == 0 || t.CropHeight == 0 {
			return nil, imaging.Errorf(imaging.KindParamsInvalid, "crop", "width and height must be positive")
		}
		w, h := uint64(st.Width()), uint64(st.Height())
		if uint64(t.CropX)+uint64(t.CropWidth) > w || uint64(t.CropY)+uint64(t.CropHeight) > h {
			return nil, imaging.Errorf(imaging.KindParamsInvalid, "crop",
				"rectangle %dx%d+%d+%d exceeds image %dx%d", t.CropWidth, t.CropHeight, t.CropX, t.CropY, w, h)
		}
		ops = append(ops, Crop{X: t.CropX, Y: t.CropY, Width: t.CropWidth, Height: t.CropHeight})
	}
	if t.Width != 0 || t.Height != 0 {
		ops = append(ops, Resize{Width: t.Width, Height: t.Height})
	}
	diffable := len(ops) == 0

	output, private := ResolveOutputType(t.OutputType, t.Accept, preferred, string(st.Format))
	ops = append(ops, Optim{Format: output, Quality: t.Quality, Speed: t.Speed})
	if diffable {
		ops = append(ops, Diff{})
	}
	if err := Validate(ops, true); err != nil {
		return nil, err
	}
	if output == "" {
		output = string(st.Format)
	}
	return &Plan{Operations: ops, OutputType: output, Private: private}, nil
}
