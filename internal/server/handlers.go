package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/spf13/afero"

	"github.com/ironsheep/image-optim/internal/imaging"
	"github.com/ironsheep/image-optim/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_info", "image_optim").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000
// whose data carries the error message and category.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed",
			slog.String("tool", params.Name),
			slog.String("error", err.Error()),
		)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", toolErrorData(err))
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	case "image_info":
		return s.handleImageInfo(ctx, args)
	case "image_optim":
		return s.handleImageOptim(ctx, args)
	case "image_pipeline":
		return s.handleImagePipeline(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

func toolErrorData(err error) map[string]string {
	data := map[string]string{"message": err.Error()}
	if kind, ok := imaging.KindOf(err); ok {
		data["category"] = string(kind)
	} else if errors.Is(err, context.DeadlineExceeded) {
		data["category"] = "timeout"
	}
	return data
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type sourceArgs struct {
	Path   string `json:"path"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// loader resolves the image a tool call refers to.
func (s *Server) loader(a sourceArgs) (pipeline.Loader, error) {
	exec := s.runner.Executor()
	switch {
	case a.Path != "":
		return func(ctx context.Context) (*imaging.ImageState, error) {
			return exec.LoadFrom(ctx, s.files, a.Path, a.Type)
		}, nil
	case a.Source != "":
		return exec.LocatorLoader(a.Source, a.Type), nil
	default:
		return nil, imaging.Errorf(imaging.KindParamsInvalid, "tool", "path or source is required")
	}
}

// === Image Information ===

func (s *Server) handleImageInfo(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sourceArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	load, err := s.loader(a)
	if err != nil {
		return nil, err
	}
	st, err := s.runner.Do(ctx, load)
	if err != nil {
		return nil, err
	}
	return imaging.Describe(st), nil
}

// === Optimisation ===

// optimResult is returned by image_optim and image_pipeline.
type optimResult struct {
	OutputType string  `json:"output_type"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	SizeBytes  int     `json:"size_bytes"`
	Ratio      int     `json:"ratio"`
	Diff       float64 `json:"diff"`
	Private    bool    `json:"cache_private,omitempty"`
	OutputPath string  `json:"output_path,omitempty"`
	Data       string  `json:"data,omitempty"`
}

type cropArgs struct {
	X      uint32 `json:"x"`
	Y      uint32 `json:"y"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

type imageOptimArgs struct {
	sourceArgs
	OutputType string    `json:"output_type"`
	Accept     string    `json:"accept"`
	Quality    *int      `json:"quality"`
	Speed      *int      `json:"speed"`
	Width      uint32    `json:"width"`
	Height     uint32    `json:"height"`
	Crop       *cropArgs `json:"crop"`
	Watermark  string    `json:"watermark"`
	Position   string    `json:"position"`
	MarginLeft int32     `json:"margin_left"`
	MarginTop  int32     `json:"margin_top"`
	OutputPath string    `json:"output_path"`
}

func (a imageOptimArgs) task() pipeline.ImageTask {
	task := pipeline.NewImageTask()
	task.OutputType = a.OutputType
	task.Accept = a.Accept
	if a.Quality != nil {
		task.Quality = *a.Quality
	}
	if a.Speed != nil {
		task.Speed = *a.Speed
	}
	task.Width, task.Height = a.Width, a.Height
	if a.Crop != nil {
		task.CropX, task.CropY = a.Crop.X, a.Crop.Y
		task.CropWidth, task.CropHeight = a.Crop.Width, a.Crop.Height
	}
	task.Watermark = a.Watermark
	task.Position = a.Position
	task.MarginLeft, task.MarginTop = a.MarginLeft, a.MarginTop
	return task
}

func (s *Server) handleImageOptim(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageOptimArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Quality != nil && (*a.Quality < 0 || *a.Quality > 100) {
		return nil, imaging.Errorf(imaging.KindParamsInvalid, "image_optim", "quality must be in [0, 100]")
	}
	if a.Speed != nil && (*a.Speed < 0 || *a.Speed > 10) {
		return nil, imaging.Errorf(imaging.KindParamsInvalid, "image_optim", "speed must be in [0, 10]")
	}
	load, err := s.loader(a.sourceArgs)
	if err != nil {
		return nil, err
	}
	res, err := s.runner.Process(ctx, load, a.task(), s.preferred)
	if err != nil {
		return nil, err
	}
	return s.result(res, a.OutputPath)
}

type imagePipelineArgs struct {
	Operations []pipeline.Spec `json:"operations"`
	OutputPath string          `json:"output_path"`
}

func (s *Server) handleImagePipeline(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imagePipelineArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	ops, err := pipeline.Operations(a.Operations)
	if err != nil {
		return nil, err
	}
	res, err := s.runner.Execute(ctx, ops)
	if err != nil {
		return nil, err
	}
	return s.result(res, a.OutputPath)
}

// result shapes a pipeline result, writing it to outputPath when given.
func (s *Server) result(res *pipeline.Result, outputPath string) (*optimResult, error) {
	out := &optimResult{
		OutputType: res.Format.String(),
		Width:      res.Width,
		Height:     res.Height,
		SizeBytes:  len(res.Data),
		Ratio:      res.Ratio,
		Diff:       res.DiffScore,
		Private:    res.Private,
	}
	if outputPath == "" {
		out.Data = base64.StdEncoding.EncodeToString(res.Data)
		return out, nil
	}
	if err := s.fs.MkdirAll(path.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, outputPath, res.Data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write output: %w", err)
	}
	out.OutputPath = outputPath
	return out, nil
}
