package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/ironsheep/image-optim/internal/config"
	"github.com/ironsheep/image-optim/internal/imaging"
	"github.com/ironsheep/image-optim/internal/pipeline"
	"github.com/ironsheep/image-optim/internal/source"
)

// ImageHandler serves the optimisation endpoints.
type ImageHandler struct {
	runner  *pipeline.Runner
	storage source.Reader
	optim   config.OptimConfig
	logger  *slog.Logger
}

// NewImageHandler creates an image handler. storage serves the file
// parameter of GET /images/optim and may be nil to disable that route's
// lookups.
func NewImageHandler(runner *pipeline.Runner, storage source.Reader, optim config.OptimConfig, logger *slog.Logger) *ImageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageHandler{runner: runner, storage: storage, optim: optim, logger: logger}
}

// RegisterChiRoutes registers the routes answering with raw image bytes.
func (h *ImageHandler) RegisterChiRoutes(r chi.Router) {
	r.Get("/images/optim", h.GetOptimImage)
	r.Get("/optim-images/preview", h.PreviewOptimImage)
}

// Register registers the JSON routes with the API.
func (h *ImageHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "optimImage",
		Method:      http.MethodPost,
		Path:        "/optim-images",
		Summary:     "Optimise an image",
		Description: "Loads an inline base64 or remote image, re-encodes it and reports the size ratio and perceptual difference.",
		Tags:        []string{"Images"},
	}, h.OptimImage)

	huma.Register(api, huma.Operation{
		OperationID: "runPipeline",
		Method:      http.MethodPost,
		Path:        "/pipelines",
		Summary:     "Run an operation pipeline",
		Description: "Runs an ordered list of operations starting with load and returns the encoded result.",
		Tags:        []string{"Images"},
	}, h.RunPipeline)
}

// GetOptimImage optimises a file from storage.
func (h *ImageHandler) GetOptimImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	file := q.Get("file")
	if file == "" {
		WriteError(w, r, imaging.Errorf(imaging.KindParamsInvalid, "query", "file is required"))
		return
	}
	if h.storage == nil {
		WriteError(w, r, imaging.Errorf(imaging.KindParamsInvalid, "query", "storage is not configured"))
		return
	}
	task, err := parseTask(q, r.Header.Get("Accept"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	exec := h.runner.Executor()
	load := func(ctx context.Context) (*imaging.ImageState, error) {
		return exec.LoadFrom(ctx, h.storage, file, "")
	}
	h.serveImage(w, r, load, task)
}

// PreviewOptimImage optimises the inline or remote image in the data
// parameter.
func (h *ImageHandler) PreviewOptimImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := q.Get("data")
	if data == "" {
		WriteError(w, r, imaging.Errorf(imaging.KindParamsInvalid, "query", "data is required"))
		return
	}
	task, err := parseTask(q, r.Header.Get("Accept"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.serveImage(w, r, h.runner.Executor().LocatorLoader(data, q.Get("data_type")), task)
}

func (h *ImageHandler) serveImage(w http.ResponseWriter, r *http.Request, load pipeline.Loader, task pipeline.ImageTask) {
	res, err := h.runner.Process(r.Context(), load, task, h.optim.AutoOutputTypes)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteImage(w, res, h.optim)
}

// OptimImageInput is the input of POST /optim-images.
type OptimImageInput struct {
	Accept string `header:"Accept"`
	Body   struct {
		Data       string `json:"data" minLength:"1" doc:"Base64 image data, a data: URI or an http(s) URL"`
		DataType   string `json:"dataType,omitempty" doc:"Extension hint such as png or jpeg"`
		OutputType string `json:"outputType,omitempty" doc:"Target format, or auto to negotiate from Accept"`
		Quality    *int   `json:"quality,omitempty" minimum:"0" maximum:"100"`
		Speed      *int   `json:"speed,omitempty" minimum:"0" maximum:"10"`
	}
}

// PipelineInput is the input of POST /pipelines.
type PipelineInput struct {
	Body struct {
		Operations []pipeline.Spec `json:"operations" minItems:"1"`
	}
}

// ImageResult is the JSON form of an optimised image.
type ImageResult struct {
	Data       string  `json:"data" doc:"Base64 encoded output"`
	OutputType string  `json:"outputType"`
	Ratio      int     `json:"ratio" doc:"Output size as a percentage of the input size"`
	Diff       float64 `json:"diff" doc:"DSSIM x 1000 against the input, -1 when not computed"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// ImageOutput is the output of the JSON image routes.
type ImageOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         ImageResult
}

// OptimImage handles POST /optim-images.
func (h *ImageHandler) OptimImage(ctx context.Context, input *OptimImageInput) (*ImageOutput, error) {
	task := pipeline.NewImageTask()
	task.OutputType = input.Body.OutputType
	task.Accept = input.Accept
	if input.Body.Quality != nil {
		task.Quality = *input.Body.Quality
	}
	if input.Body.Speed != nil {
		task.Speed = *input.Body.Speed
	}

	load := h.runner.Executor().LocatorLoader(input.Body.Data, input.Body.DataType)
	res, err := h.runner.Process(ctx, load, task, h.optim.AutoOutputTypes)
	if err != nil {
		return nil, h.apiError(ctx, err)
	}
	return h.imageOutput(res), nil
}

// RunPipeline handles POST /pipelines.
func (h *ImageHandler) RunPipeline(ctx context.Context, input *PipelineInput) (*ImageOutput, error) {
	ops, err := pipeline.Operations(input.Body.Operations)
	if err != nil {
		return nil, h.apiError(ctx, err)
	}
	res, err := h.runner.Execute(ctx, ops)
	if err != nil {
		return nil, h.apiError(ctx, err)
	}
	return h.imageOutput(res), nil
}

func (h *ImageHandler) imageOutput(res *pipeline.Result) *ImageOutput {
	return &ImageOutput{
		CacheControl: "no-cache",
		Body: ImageResult{
			Data:       base64.StdEncoding.EncodeToString(res.Data),
			OutputType: res.Format.String(),
			Ratio:      res.Ratio,
			Diff:       res.DiffScore,
			Width:      res.Width,
			Height:     res.Height,
		},
	}
}

func (h *ImageHandler) apiError(ctx context.Context, err error) error {
	status, category := StatusFor(err)
	h.logger.WarnContext(ctx, "request failed",
		slog.Int("status", status),
		slog.String("category", category),
		slog.String("error", err.Error()),
	)
	return huma.NewError(status, err.Error())
}

// parseTask reads the optimisation parameters of the GET routes.
func parseTask(q url.Values, accept string) (pipeline.ImageTask, error) {
	task := pipeline.NewImageTask()
	task.OutputType = q.Get("output_type")
	task.Accept = accept
	task.Watermark = q.Get("watermark")
	task.Position = q.Get("position")

	var err error
	ints := []struct {
		name string
		dst  *int
		max  int
	}{
		{"quality", &task.Quality, 100},
		{"speed", &task.Speed, 10},
	}
	for _, p := range ints {
		if err = parseOptionalInt(q, p.name, 0, p.max, p.dst); err != nil {
			return task, err
		}
	}

	uints := []struct {
		name string
		dst  *uint32
	}{
		{"width", &task.Width},
		{"height", &task.Height},
		{"crop_x", &task.CropX},
		{"crop_y", &task.CropY},
		{"crop_width", &task.CropWidth},
		{"crop_height", &task.CropHeight},
	}
	for _, p := range uints {
		if err = parseUint32(q, p.name, p.dst); err != nil {
			return task, err
		}
	}

	margins := []struct {
		name string
		dst  *int32
	}{
		{"margin_left", &task.MarginLeft},
		{"margin_top", &task.MarginTop},
	}
	for _, p := range margins {
		if err = parseInt32(q, p.name, p.dst); err != nil {
			return task, err
		}
	}
	return task, nil
}

func parseOptionalInt(q url.Values, name string, lo, hi int, dst *int) error {
	raw := q.Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return imaging.Errorf(imaging.KindParamsInvalid, "query", "%s must be an integer in [%d, %d]", name, lo, hi)
	}
	*dst = v
	return nil
}

func parseUint32(q url.Values, name string, dst *uint32) error {
	raw := q.Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return imaging.NewError(imaging.KindParamsInvalid, "query", fmt.Errorf("%s: %w", name, err))
	}
	*dst = uint32(v)
	return nil
}

func parseInt32(q url.Values, name string, dst *int32) error {
	raw := q.Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return imaging.NewError(imaging.KindParamsInvalid, "query", fmt.Errorf("%s: %w", name, err))
	}
	*dst = int32(v)
	return nil
}
