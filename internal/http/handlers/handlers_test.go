package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-optim/internal/config"
	"github.com/ironsheep/image-optim/internal/imaging"
	"github.com/ironsheep/image-optim/internal/pipeline"
	"github.com/ironsheep/image-optim/internal/source"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testOptimConfig() config.OptimConfig {
	return config.OptimConfig{
		Quality:         80,
		Speed:           3,
		MaxAge:          time.Hour,
		AutoOutputTypes: []string{"avif", "webp"},
	}
}

// newTestRouter wires an image handler over an in-memory storage holding
// photos/a.png (60x40).
func newTestRouter(t *testing.T) (*chi.Mux, []byte) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	data := testPNG(t, 60, 40)
	require.NoError(t, afero.WriteFile(fsys, "/photos/a.png", data, 0o644))

	exec := pipeline.New(pipeline.DefaultConfig(), nil, nil, nil)
	runner := pipeline.NewRunner(exec, 2, time.Minute)
	t.Cleanup(runner.Stop)

	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("test", "1.0.0"))
	h := NewImageHandler(runner, source.NewStorageSourceFs(fsys), testOptimConfig(), nil)
	h.RegisterChiRoutes(router)
	h.Register(api)
	return router, data
}

func get(router http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetOptimImage(t *testing.T) {
	router, original := newTestRouter(t)

	rec := get(router, "/images/optim?file=photos/a.png&output_type=jpeg&quality=70", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, fmt.Sprint(100*rec.Body.Len()/len(original)), rec.Header().Get(HeaderRatio))
	assert.NotEmpty(t, rec.Header().Get(HeaderDiff))
	assert.NotEqual(t, "-1.00", rec.Header().Get(HeaderDiff))

	img, _, err := image.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(60, 40), img.Bounds().Size())
}

func TestGetOptimImageResizeSkipsDiff(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := get(router, "/images/optim?file=photos/a.png&width=30&output_type=png", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "-1.00", rec.Header().Get(HeaderDiff))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(30, 20), img.Bounds().Size())
}

func TestGetOptimImageAuto(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := get(router, "/images/optim?file=photos/a.png&output_type=auto", http.Header{
		"Accept": {"image/webp,image/*;q=0.8"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
	assert.Equal(t, "private, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "Accept", rec.Header().Get("Vary"))
}

func TestGetOptimImageErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name     string
		target   string
		status   int
		category string
	}{
		{name: "missing file", target: "/images/optim", status: http.StatusBadRequest, category: "params_invalid"},
		{name: "unknown file", target: "/images/optim?file=nope.png", status: http.StatusNotFound, category: "not_found"},
		{name: "traversal", target: "/images/optim?file=../etc/passwd", status: http.StatusBadRequest, category: "params_invalid"},
		{name: "bad quality", target: "/images/optim?file=photos/a.png&quality=abc", status: http.StatusBadRequest, category: "params_invalid"},
		{name: "quality out of range", target: "/images/optim?file=photos/a.png&quality=101", status: http.StatusBadRequest, category: "params_invalid"},
		{name: "crop outside image", target: "/images/optim?file=photos/a.png&crop_x=50&crop_y=0&crop_width=20&crop_height=10", status: http.StatusBadRequest, category: "params_invalid"},
		{name: "missing preview data", target: "/optim-images/preview", status: http.StatusBadRequest, category: "params_invalid"},
		{name: "bad preview data", target: "/optim-images/preview?data=%21%21", status: http.StatusBadRequest, category: "base64_decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(router, tt.target, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
			assert.Equal(t, tt.category, decodeError(t, rec).Category)
		})
	}
}

func TestPreviewOptimImage(t *testing.T) {
	router, _ := newTestRouter(t)
	data := base64.StdEncoding.EncodeToString(testPNG(t, 16, 16))

	rec := get(router, "/optim-images/preview?data_type=png&output_type=webp&data="+url.QueryEscape(data), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
}

func postJSON(router http.Handler, target string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestOptimImageJSON(t *testing.T) {
	router, _ := newTestRouter(t)
	data := base64.StdEncoding.EncodeToString(testPNG(t, 24, 12))

	rec := postJSON(router, "/optim-images", map[string]any{
		"data":       data,
		"dataType":   "png",
		"outputType": "jpeg",
		"quality":    60,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out ImageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "jpeg", out.OutputType)
	assert.Equal(t, 24, out.Width)
	assert.Equal(t, 12, out.Height)
	assert.GreaterOrEqual(t, out.Diff, 0.0)

	raw, err := base64.StdEncoding.DecodeString(out.Data)
	require.NoError(t, err)
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestRunPipelineJSON(t *testing.T) {
	router, _ := newTestRouter(t)
	data := base64.StdEncoding.EncodeToString(testPNG(t, 40, 40))

	rec := postJSON(router, "/pipelines", map[string]any{
		"operations": []map[string]any{
			{"type": "load", "locator": data, "extension": "png"},
			{"type": "crop", "x": 10, "y": 10, "width": 20, "height": 20},
			{"type": "grayscale"},
			{"type": "optim", "format": "png", "quality": 50},
			{"type": "diff"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out ImageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "png", out.OutputType)
	assert.Equal(t, 20, out.Width)
	assert.Equal(t, -1.0, out.Diff)
}

func TestRunPipelineErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postJSON(router, "/pipelines", map[string]any{
		"operations": []map[string]any{{"type": "sharpen"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = postJSON(router, "/pipelines", map[string]any{
		"operations": []map[string]any{{"type": "resize", "width": 10}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"params", imaging.Errorf(imaging.KindParamsInvalid, "x", "bad"), http.StatusBadRequest},
		{"base64", imaging.Errorf(imaging.KindBase64Decode, "x", "bad"), http.StatusBadRequest},
		{"unsupported", imaging.Errorf(imaging.KindUnsupportedFormat, "x", "bad"), http.StatusBadRequest},
		{"decode", imaging.Errorf(imaging.KindDecode, "x", "bad"), http.StatusBadRequest},
		{"network", imaging.Errorf(imaging.KindNetwork, "x", "bad"), http.StatusBadGateway},
		{"encode", imaging.Errorf(imaging.KindEncode, "x", "bad"), http.StatusInternalServerError},
		{"timeout", context.DeadlineExceeded, http.StatusRequestTimeout},
		{"fetch timeout", imaging.NewError(imaging.KindNetwork, "load", context.DeadlineExceeded), http.StatusRequestTimeout},
		{"missing file", fmt.Errorf("storage: %w", fs.ErrNotExist), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestPing(t *testing.T) {
	stopping := false
	router := chi.NewRouter()
	NewPingHandler(func() bool { return stopping }).RegisterChiRoutes(router)

	rec := get(router, "/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	stopping = true
	rec = get(router, "/ping", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "stopping"))
}
