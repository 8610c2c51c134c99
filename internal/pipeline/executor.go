// Package pipeline runs ordered image operations over an ImageState.
//
// A run starts with Load, applies geometry and content operations, encodes
// once with Optim and may finish with Diff. Operations are applied in order
// and the first failure aborts the run.
package pipeline

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ironsheep/image-optim/internal/imaging"
	"github.com/ironsheep/image-optim/internal/observability"
	"github.com/ironsheep/image-optim/internal/source"
)

// defaultExtension is assumed when neither the locator, the caller nor the
// content itself names a format.
const defaultExtension = "jpeg"

// Config holds the read-only settings of an Executor.
type Config struct {
	// Quality and Speed replace negative Optim values.
	Quality int
	Speed   int

	// DisableDiff turns every Diff into a no-op.
	DisableDiff bool

	// Codecs defaults to imaging.DefaultRegistry.
	Codecs *imaging.Registry
}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{Quality: imaging.DefaultQuality, Speed: imaging.DefaultSpeed}
}

// Executor runs operation lists. It is safe for concurrent use; the only
// state shared between runs is the watermark cache.
type Executor struct {
	cfg        Config
	codecs     *imaging.Registry
	fetcher    source.Reader
	watermarks *WatermarkCache
	logger     *slog.Logger
}

// New creates an executor. fetcher serves http(s) locators; a nil fetcher
// rejects them with a network error. A nil cache gets a private cache of
// imaging.DefaultCacheSize entries.
func New(cfg Config, fetcher source.Reader, watermarks *WatermarkCache, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = observability.WithComponent(logger, "pipeline")
	if cfg.Codecs == nil {
		cfg.Codecs = imaging.DefaultRegistry()
	}
	if cfg.Quality <= 0 {
		cfg.Quality = imaging.DefaultQuality
	}
	if cfg.Speed < 0 {
		cfg.Speed = imaging.DefaultSpeed
	}
	if watermarks == nil {
		watermarks = NewWatermarkCache(imaging.DefaultCacheSize, logger)
	}
	return &Executor{
		cfg:        cfg,
		codecs:     cfg.Codecs,
		fetcher:    fetcher,
		watermarks: watermarks,
		logger:     logger,
	}
}

// Config returns the resolved configuration.
func (e *Executor) Config() Config { return e.cfg }

// Codecs returns the registry the executor encodes with.
func (e *Executor) Codecs() *imaging.Registry { return e.codecs }

// Watermarks returns the watermark source cache.
func (e *Executor) Watermarks() *WatermarkCache { return e.watermarks }

// Run executes ops on a fresh state. The first operation must be Load.
func (e *Executor) Run(ctx context.Context, ops []Operation) (*imaging.ImageState, error) {
	return e.RunWith(ctx, imaging.NewState(), ops)
}

// RunWith executes ops on st, which is updated in place and returned. The
// context is checked between operations; an operation already started runs
// to completion.
func (e *Executor) RunWith(ctx context.Context, st *imaging.ImageState, ops []Operation) (*imaging.ImageState, error) {
	if st == nil {
		st = imaging.NewState()
	}
	if err := Validate(ops, st.HasPixels()); err != nil {
		return nil, err
	}

	r := &run{
		exec:     e,
		state:    st,
		wantDiff: !e.cfg.DisableDiff && containsKind(ops, KindDiff),
	}
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.apply(ctx, op); err != nil {
			return nil, err
		}
		if reshapes(op) {
			r.reshaped = true
		}
	}
	return st, nil
}

// Buffer returns the encoded bytes of st, encoding in the current format at
// the default quality if no Optim ran.
func (e *Executor) Buffer(st *imaging.ImageState) ([]byte, error) {
	return e.codecs.Buffer(st, e.cfg.Quality, e.cfg.Speed)
}

// SizeRatio is the encoded size as a percentage of the loaded size. It is
// 100 when nothing was loaded.
func SizeRatio(encoded, original int) int {
	if original <= 0 {
		return 100
	}
	return 100 * encoded / original
}

// run carries the per-run bookkeeping.
type run struct {
	exec  *Executor
	state *imaging.ImageState

	// wantDiff is set when the list contains a Diff and diffing is enabled,
	// so Optim keeps a decoded copy of its output.
	wantDiff bool
	// reshaped records that Resize, Crop or Watermark already ran.
	reshaped bool
}

func (r *run) apply(ctx context.Context, op Operation) (err error) {
	defer observability.TimedOperation(ctx, r.exec.logger, string(op.Kind()), &err)()

	st := r.state
	switch o := op.(type) {
	case Load:
		loaded, err := r.exec.load(ctx, o.Locator, o.Extension)
		if err != nil {
			return err
		}
		*st = *loaded
	case Resize:
		st.SetPixels(imaging.Resize(st.Pixels, int(o.Width), int(o.Height)))
	case Crop:
		st.SetPixels(imaging.Crop(st.Pixels, int(o.X), int(o.Y), int(o.Width), int(o.Height)))
	case Grayscale:
		st.SetPixels(imaging.Grayscale(st.Pixels))
	case Watermark:
		mark, err := r.exec.watermarks.Get(ctx, o.Locator, r.exec.loadWatermark)
		if err != nil {
			return err
		}
		st.SetPixels(imaging.Overlay(st.Pixels, mark.Pixels, o.Position, int(o.MarginLeft), int(o.MarginTop)))
	case Optim:
		return r.optim(o)
	case Diff:
		return r.diff()
	default:
		return imaging.Errorf(imaging.KindParamsInvalid, "pipeline", "unsupported operation %T", op)
	}
	return nil
}

func (r *run) optim(o Optim) error {
	st := r.state
	if !st.HasPixels() {
		return imaging.Errorf(imaging.KindParamsInvalid, "optim", "no image loaded")
	}
	quality, speed := o.Quality, o.Speed
	if quality < 0 {
		quality = r.exec.cfg.Quality
	}
	if speed < 0 {
		speed = r.exec.cfg.Speed
	}
	target := o.Format
	if target == "" {
		target = string(st.Format)
	}

	data, f, err := r.exec.codecs.Encode(st, target, imaging.EncodeOptions{Quality: quality, Speed: speed})
	if err != nil {
		return err
	}

	baseline := len(st.Encoded)
	if f == st.Format && baseline > 0 && len(data) >= baseline {
		r.exec.logger.Debug("kept existing encoding",
			slog.String("format", string(f)),
			slog.Int("size", baseline),
			slog.Int("candidate_size", len(data)),
		)
		return nil
	}

	st.Encoded = data
	st.Format = f
	if f != imaging.FormatGIF {
		// Only the loaded animation is re-emitted from raw bytes.
		st.Source = nil
	}
	if r.wantDiff && f != imaging.FormatGIF {
		img, _, err := r.exec.codecs.DecodeRaster(data, string(f))
		if err != nil {
			return err
		}
		st.Pixels = img
	}
	return nil
}

func (r *run) diff() error {
	st := r.state
	st.DiffScore = imaging.DiffNotComputed
	if r.exec.cfg.DisableDiff || r.reshaped || st.Format == imaging.FormatGIF {
		return nil
	}
	if st.OriginalPixels == nil || !st.HasPixels() {
		return nil
	}
	if st.OriginalPixels.Bounds().Size() != st.Pixels.Bounds().Size() {
		return nil
	}
	score, err := imaging.DSSIM(st.OriginalPixels, st.Pixels)
	if err != nil {
		r.exec.logger.Debug("diff skipped", slog.String("error", err.Error()))
		return nil
	}
	st.DiffScore = score * 1000
	return nil
}

// load fetches or base64-decodes locator and decodes it into a new state.
func (e *Executor) load(ctx context.Context, locator, ext string) (*imaging.ImageState, error) {
	if source.IsRemote(locator) {
		if e.fetcher == nil {
			return nil, imaging.Errorf(imaging.KindNetwork, "load", "remote sources are disabled")
		}
		blob, err := e.fetcher.Read(ctx, locator)
		if err != nil {
			return nil, imaging.NewError(imaging.KindNetwork, "load", err)
		}
		return e.decodeBlob(blob, locator, ext)
	}

	data, mediaExt, err := decodeInline(locator)
	if err != nil {
		return nil, imaging.NewError(imaging.KindBase64Decode, "load", err)
	}
	if ext == "" {
		ext = mediaExt
	}
	return e.decodeBlob(&source.Blob{Data: data}, "", ext)
}

// LoadFrom reads locator from r and decodes it. Read errors are returned
// unchanged so callers can tell a missing file from a broken one.
func (e *Executor) LoadFrom(ctx context.Context, r source.Reader, locator, ext string) (*imaging.ImageState, error) {
	blob, err := r.Read(ctx, locator)
	if err != nil {
		return nil, err
	}
	return e.decodeBlob(blob, locator, ext)
}

// decodeBlob resolves the extension, preferring an image/* content type,
// then the caller's hint, the locator path and finally the content itself.
func (e *Executor) decodeBlob(blob *source.Blob, locator, ext string) (*imaging.ImageState, error) {
	if sub := source.ExtensionFromContentType(blob.ContentType); sub != "" {
		ext = sub
	}
	if ext == "" {
		ext = imaging.ExtensionOf(locator)
	}
	if ext == "" {
		ext = sniffExtension(blob.Data)
	}
	if ext == "" {
		ext = defaultExtension
	}
	return e.codecs.Decode(blob.Data, ext)
}

// sniffExtension recognises the formats http.DetectContentType knows plus
// AVIF, whose ISO-BMFF header carries an "avif" or "avis" brand.
func sniffExtension(data []byte) string {
	if len(data) >= 12 && string(data[4:8]) == "ftyp" {
		if brand := string(data[8:12]); brand == "avif" || brand == "avis" {
			return "avif"
		}
	}
	return source.ExtensionFromContentType(http.DetectContentType(data))
}

func (e *Executor) loadWatermark(ctx context.Context, locator string) (*imaging.ImageState, error) {
	return e.load(ctx, locator, "")
}

// decodeInline decodes base64 data, optionally wrapped as
// data:image/png;base64,.... The media subtype is returned when present.
func decodeInline(locator string) ([]byte, string, error) {
	payload := strings.TrimSpace(locator)
	var ext string
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if found {
			ext = source.ExtensionFromContentType(strings.TrimSuffix(header, ";base64"))
			payload = body
		}
	}
	// Query strings turn '+' into ' '.
	payload = strings.ReplaceAll(payload, " ", "+")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Unpadded input is common in query strings.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
			return raw, ext, nil
		}
		return nil, "", err
	}
	return data, ext, nil
}

func containsKind(ops []Operation, kind OpKind) bool {
	for _, op := range ops {
		if op.Kind() == kind {
			return true
		}
	}
	return false
}
