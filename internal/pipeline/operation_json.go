package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ironsheep/image-optim/internal/imaging"
)

// Spec is the JSON form of an operation:
//
//	{"type": "resize", "width": 200}
//	{"type": "watermark", "locator": "https://...", "position": "center"}
//	{"type": "optim", "format": "webp", "quality": 75}
type Spec struct {
	Type       string `json:"type"`
	Locator    string `json:"locator,omitempty"`
	Extension  string `json:"extension,omitempty"`
	X          uint32 `json:"x,omitempty"`
	Y          uint32 `json:"y,omitempty"`
	Width      uint32 `json:"width,omitempty"`
	Height     uint32 `json:"height,omitempty"`
	Position   string `json:"position,omitempty"`
	MarginLeft int32  `json:"margin_left,omitempty"`
	MarginTop  int32  `json:"margin_top,omitempty"`
	Format     string `json:"format,omitempty"`
	Quality    *int   `json:"quality,omitempty"`
	Speed      *int   `json:"speed,omitempty"`
}

// Operation converts the spec into its typed operation.
func (s Spec) Operation() (Operation, error) {
	switch OpKind(strings.ToLower(strings.TrimSpace(s.Type))) {
	case KindLoad:
		return Load{Locator: s.Locator, Extension: s.Extension}, nil
	case KindResize:
		return Resize{Width: s.Width, Height: s.Height}, nil
	case KindCrop:
		return Crop{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}, nil
	case KindGrayscale:
		return Grayscale{}, nil
	case KindWatermark:
		return Watermark{
			Locator:    s.Locator,
			Position:   imaging.ParsePosition(s.Position),
			MarginLeft: s.MarginLeft,
			MarginTop:  s.MarginTop,
		}, nil
	case KindOptim:
		o := Optim{Format: s.Format, Quality: -1, Speed: -1}
		if s.Quality != nil {
			o.Quality = *s.Quality
		}
		if s.Speed != nil {
			o.Speed = *s.Speed
		}
		return o, nil
	case KindDiff:
		return Diff{}, nil
	default:
		return nil, imaging.Errorf(imaging.KindParamsInvalid, "pipeline", "unknown operation type %q", s.Type)
	}
}

// Operations converts a list of specs, failing on the first bad entry.
func Operations(specs []Spec) ([]Operation, error) {
	ops := make([]Operation, 0, len(specs))
	for i, s := range specs {
		op, err := s.Operation()
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// DecodeOperations parses a JSON array of specs.
func DecodeOperations(data []byte) ([]Operation, error) {
	var specs []Spec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, imaging.NewError(imaging.KindParamsInvalid, "pipeline", err)
	}
	return Operations(specs)
}
