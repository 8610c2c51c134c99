package pipeline

import (
	"context"

	"github.com/ironsheep/image-optim/internal/imaging"
)

// Result is the outcome of a run in the shape responses need.
type Result struct {
	Data   []byte
	Format imaging.Format
	// Ratio is len(Data) as a percentage of the loaded size.
	Ratio     int
	DiffScore float64
	// Private marks output negotiated from the Accept header.
	Private bool
	Width   int
	Height  int
}

// Loader produces the state an ImageTask works on.
type Loader func(ctx context.Context) (*imaging.ImageState, error)

// LocatorLoader returns a Loader running a Load operation.
func (e *Executor) LocatorLoader(locator, ext string) Loader {
	return func(ctx context.Context) (*imaging.ImageState, error) {
		return e.Run(ctx, []Operation{Load{Locator: locator, Extension: ext}})
	}
}

// Result materialises the bytes of st.
func (e *Executor) Result(st *imaging.ImageState) (*Result, error) {
	data, err := e.Buffer(st)
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:      data,
		Format:    st.Format,
		Ratio:     SizeRatio(len(data), st.OriginalSize),
		DiffScore: st.DiffScore,
		Width:     st.Width(),
		Height:    st.Height(),
	}, nil
}

// Process loads an image, plans task against it and runs the plan, all on
// the pool.
func (r *Runner) Process(ctx context.Context, load Loader, task ImageTask, preferred []string) (*Result, error) {
	var plan *Plan
	st, err := r.Do(ctx, func(ctx context.Context) (*imaging.ImageState, error) {
		st, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if plan, err = task.Plan(st, preferred); err != nil {
			return nil, err
		}
		return r.runAndEncode(ctx, st, plan.Operations)
	})
	if err != nil {
		return nil, err
	}
	res, err := r.exec.Result(st)
	if err != nil {
		return nil, err
	}
	res.Private = plan.Private
	return res, nil
}

// Execute runs an operation list on the pool and materialises the result.
func (r *Runner) Execute(ctx context.Context, ops []Operation) (*Result, error) {
	st, err := r.Do(ctx, func(ctx context.Context) (*imaging.ImageState, error) {
		return r.runAndEncode(ctx, nil, ops)
	})
	if err != nil {
		return nil, err
	}
	return r.exec.Result(st)
}

// runAndEncode also encodes on the worker when the operations ended
// without an Optim.
func (r *Runner) runAndEncode(ctx context.Context, st *imaging.ImageState, ops []Operation) (*imaging.ImageState, error) {
	st, err := r.exec.RunWith(ctx, st, ops)
	if err != nil {
		return nil, err
	}
	if _, err := r.exec.Buffer(st); err != nil {
		return nil, err
	}
	return st, nil
}
