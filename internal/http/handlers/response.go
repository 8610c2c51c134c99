// Package handlers provides the HTTP handlers of the image service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ironsheep/image-optim/internal/config"
	"github.com/ironsheep/image-optim/internal/imaging"
	"github.com/ironsheep/image-optim/internal/observability"
	"github.com/ironsheep/image-optim/internal/pipeline"
	"github.com/ironsheep/image-optim/internal/source"
)

// Response headers carrying optimisation diagnostics.
const (
	HeaderDiff  = "X-Dssim-Diff"
	HeaderRatio = "X-Ratio"
)

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Message  string `json:"message"`
	Category string `json:"category"`
}

// StatusFor maps a processing error to an HTTP status and error category.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, "timeout"
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, source.ErrInvalidPath):
		return http.StatusBadRequest, string(imaging.KindParamsInvalid)
	}

	kind, ok := imaging.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, "internal"
	}
	switch kind {
	case imaging.KindNetwork:
		return http.StatusBadGateway, string(kind)
	case imaging.KindEncode:
		return http.StatusInternalServerError, string(kind)
	default:
		return http.StatusBadRequest, string(kind)
	}
}

// WriteError writes err as a JSON error that must not be cached.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, category := StatusFor(err)
	logger := observability.LoggerFromContext(r.Context())
	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request failed",
		slog.Int("status", status),
		slog.String("category", category),
		slog.String("error", err.Error()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Message: err.Error(), Category: category})
}

// WriteImage writes the encoded image with caching and diagnostic headers.
func WriteImage(w http.ResponseWriter, res *pipeline.Result, optim config.OptimConfig) {
	h := w.Header()
	h.Set("Content-Type", res.Format.MIMEType())
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	h.Set("Cache-Control", optim.CacheControl(res.Private))
	if res.Private {
		h.Add("Vary", "Accept")
	}
	h.Set(HeaderDiff, strconv.FormatFloat(res.DiffScore, 'f', 2, 64))
	h.Set(HeaderRatio, strconv.Itoa(res.Ratio))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}
