package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-optim/internal/imaging"
	"github.com/ironsheep/image-optim/internal/source"
)

func TestRunResizeThenOptim(t *testing.T) {
	exec := newTestExecutor(DefaultConfig())
	src := encodeJPEG(t, gradient(100, 50))

	st, err := exec.Run(context.Background(), []Operation{
		Load{Locator: b64(src), Extension: "jpeg"},
		Resize{Width: 200},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, st.Width())
	assert.Equal(t, 100, st.Height())
	assert.Empty(t, st.Encoded, "resize must clear the cached encoding")

	st, err = exec.RunWith(context.Background(), st, []Operation{Optim{Format: "jpeg", Quality: 80, Speed: -1}})
	require.NoError(t, err)
	assert.NotEmpty(t, st.Encoded)
	assert.Equal(t, imaging.FormatJPEG, st.Format)
	assert.Equal(t, len(src), st.OriginalSize)

	img, _, err := exec.Codecs().DecodeRaster(st.Encoded, "jpeg")
	require.NoError(t, err)
	assert.Equal(t, image.Pt(200, 100), img.Bounds().Size())
}

func TestRunCropSkipsDiff(t *testing.T) {
	exec := newTestExecutor(DefaultConfig())
	src := encodePNG(t, gradient(500, 500))

	st, err := exec.Run(context.Background(), []Operation{
		Load{Locator: b64(src), Extension: "png"},
		Crop{X: 100, Y: 100, Width: 200, Height: 200},
		Optim{Format: "webp", Quality: 75, Speed: -1},
		Diff{},
	})
	require.NoError(t, err)
	assert.Equal(t, imaging.FormatWebP, st.Format)
	assert.Equal(t, 200, st.Width())
	assert.Equal(t, 200, st.Height())
	assert.Equal(t, imaging.DiffNotComputed, st.DiffScore)
}

func TestRunPNGDeterministic(t *testing.T) {
	exec := newTestExecutor(DefaultConfig())
	src := b64(encodePNG(t, gradient(64, 48)))
	ops := []Operation{
		Load{Locator: src, Extension: "png"},
		Grayscale{},
		Optim{Format: "png", Quality: 0, Speed: -1},
	}

	first, err := exec.Run(context.Background(), ops)
	require.NoError(t, err)
	second, err := exec.Run(context.Background(), ops)
	require.NoError(t, err)

	require.NotEmpty(t, first.Encoded)
	assert.True(t, bytes.Equal(first.Encoded, second.Encoded), "png output differs between identical runs")
}

func TestOptimNeverGrowsSameFormat(t *testing.T) {
	exec := newTestExecutor(DefaultConfig())

	for _, q := range []int{0, 50, 100} {
		src := encodePNG(t, gradient(80, 80))
		st, err := exec.Run(context.Background(), []Operation{
			Load{Locator: b64(src), Extension: "png"},
			Optim{Format: "png", Quality: q, Speed: -1},
		})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(st.Encoded), len(src), "quality %d", q)
		if len(st.Encoded) == len(src) {
			assert.Equal(t, src, st.Encoded, "kept bytes must be the original")
		}
	}
}

func TestOptimKeepsSmallerOriginal(t *testing.T) {
	exec := newTestExecutor(DefaultConfig())
	// Fake a baseline that no encoder can beat.
	st, err := exec.Run(context.Background(), []Operation{
		Load{Locator: b64(encodePNG(t, gradient(40, 40))), Extension: "png"},
	})
	require.NoError(t, err)
	tiny := []byte{1, 2, 3}
	st.Encoded = tiny

	st, err = exec.RunWith(context.Background(), st, []Operation{Optim{Format: "png", Quality: 100, Speed: -1}})
	require.NoError(t, err)
	assert.Equal(t, tiny, st.Encoded)
	assert.Equal(t, imaging.FormatPNG, st.Format)
}

func TestOptimFormatChangeAlwaysReplaces(t *testing.T) {
	exec := newTestExecutor(DefaultConfig())
	st, err := exec.Run(context.Background(), []Operation{
		Load{Locator: b64(encodePNG(t, solid(16, 16, color.NRGBA{R: 200, A: 255}))), Extension: "png"},
		Optim{Format: "jpeg", Quality: 100, Speed: -1},
	})
	require.NoError(t, err)
	assert.Equal(t, imaging.FormatJPEG, st.Format)
	_, f, err := exec.Codecs().DecodeRaster(st.Encoded, "jpeg")
	require.NoError(t, err)
	assert.Equal(t, imaging.FormatJPEG, f)
}

func TestOptimUnknownFormatFallsBackToJPEG(t *testing.T) {
	exec := newTestExecutor(DefaultConfig())
	st, err := exec.Run(context.Background(), []Operation{
		Load{Locator: b64(encodePNG(t, gradient(20, 20))), Extension: "png"},
		Optim{Format: "heic", Quality: -1, Speed: -1},
	})
	require.NoError(t, err)
	assert.Equal(t, imaging.FormatJPEG, st.Format)
}

func TestDiffGate(t *testing.T) {
	src := b64(encodePNG(t, gradient(48, 48)))
	load := Load{Locator: src, Extension: "png"}
	optim := Optim{Format: "jpeg", Quality: 60, Speed: -1}

	tests := []struct {
		name     string
		cfg      Config
		ops      []Operation
		computed bool
	}{
		{name: "plain optim", cfg: DefaultConfig(), ops: []Operation{load, optim, Diff{}}, computed: true},
		{name: "grayscale keeps geometry", cfg: DefaultConfig(), ops: []Operation{load, Grayscale{}, optim, Diff{}}, computed: true},
		{name: "disabled", cfg: Config{DisableDiff: true}, ops: []Operation{load, optim, Diff{}}},
		{name: "after resize", cfg: DefaultConfig(), ops: []Operation{load, Resize{Width: 24}, optim, Diff{}}},
		{name: "after identity resize", cfg: DefaultConfig(), ops: []Operation{load, Resize{Width: 48}, optim, Diff{}}},
		{name: "after crop", cfg: DefaultConfig(), ops: []Operation{load, Crop{Width: 48, Height: 48}, optim, Diff{}}},
		{name: "after watermark", cfg: DefaultConfig(), ops: []Operation{load, Watermark{Locator: src}, optim, Diff{}}},
		{name: "gif output", cfg: DefaultConfig(), ops: []Operation{load, Optim{Format: "gif", Quality: -1, Speed: -1}, Diff{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newTestExecutor(tt.cfg)
			st, err := exec.Run(context.Background(), tt.ops)
			require.NoError(t, err)
			if tt.computed {
				assert.GreaterOrEqual(t, st.DiffScore, 0.0)
				return
			}
			assert.Equal(t, imaging.DiffNotComputed, st.DiffScore)
		})
	}
}

func TestDiffIdenticalIsZero(t *testing.T) {
	exec := newTestExecutor(DefaultConfig())
	st, err := exec.Run(context.Background(), []Operation{
		Load{Locator: b64(encodePNG(t, gradient(32, 32))), Extension: "png"},
		Diff{},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, st.DiffScore, 1e-9)
}

func TestLoadRemoteUsesContentType(t *testing.T) {
	data := encodePNG(t, gradient(10, 10))
	var seen string
	fetcher := source.ReaderFunc(func(_ context.Context, locator string) (*source.Blob, error) {
		seen = locator
		return &source.Blob{Data: data, ContentType: "image/png"}, nil
	})
	exec := New(DefaultConfig(), fetcher, nil, nil)

	st, err := exec.Run(context.Background(), []Operation{
		Load{Locator: "https://cdn.example.com/a.jpg", Extension: "jpeg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.jpg", seen)
	assert.Equal(t, imaging.FormatPNG, st.Format)
	assert.Equal(t, len(data), st.OriginalSize)
	assert.NotNil(t, st.OriginalPixels)
}

func TestLoadRemoteExtensionFromPath(t *testing.T) {
	data := encodePNG(t, gradient(10, 10))
	fetcher := source.ReaderFunc(func(context.Context, string) (*source.Blob, error) {
		return &source.Blob{Data: data}, nil
	})
	exec := New(DefaultConfig(), fetcher, nil, nil)

	st, err := exec.Run(context.Background(), []Operation{Load{Locator: "http://example.com/x/logo.png?v=2"}})
	require.NoError(t, err)
	assert.Equal(t, imaging.FormatPNG, st.Format)
}

func TestLoadErrors(t *testing.T) {
	failing := source.ReaderFunc(func(context.Context, string) (*source.Blob, error) {
		return nil, errors.New("connection refused")
	})

	tests := []struct {
		name    string
		fetcher source.Reader
		load    Load
		kind    imaging.Kind
	}{
		{name: "bad base64", load: Load{Locator: "!!not base64!!", Extension: "png"}, kind: imaging.KindBase64Decode},
		{name: "no fetcher", load: Load{Locator: "https://example.com/a.png"}, kind: imaging.KindNetwork},
		{name: "fetch failure", fetcher: failing, load: Load{Locator: "https://example.com/a.png"}, kind: imaging.KindNetwork},
		{name: "unknown extension", load: Load{Locator: b64([]byte("data")), Extension: "psd"}, kind: imaging.KindUnsupportedFormat},
		{name: "corrupt image", load: Load{Locator: b64([]byte("not a png")), Extension: "png"}, kind: imaging.KindDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := New(DefaultConfig(), tt.fetcher, nil, nil)
			_, err := exec.Run(context.Background(), []Operation{tt.load})
			require.Error(t, err)
			kind, ok := imaging.KindOf(err)
			require.True(t, ok, "error %v has no kind", err)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestLoadSniffsFormat(t *testing.T) {
	exec := newTestExecutor(DefaultConfig())
	st, err := exec.Run(context.Background(), []Operation{Load{Locator: b64(encodePNG(t, gradient(5, 5)))}})
	require.NoError(t, err)
	assert.Equal(t, imaging.FormatPNG, st.Format)
}

func TestLoadDataURI(t *testing.T) {
	exec := newTestExecutor(DefaultConfig())
	uri := "data:image/png;base64," + b64(encodePNG(t, gradient(12, 6)))

	st, err := exec.Run(context.Background(), []Operation{Load{Locator: uri}})
	require.NoError(t, err)
	assert.Equal(t, imaging.FormatPNG, st.Format)
	assert.Equal(t, 12, st.Width())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	exec := newTestExecutor(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Run(ctx, []Operation{Load{Locator: b64(encodePNG(t, gradient(4, 4))), Extension: "png"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBufferWithoutOptim(t *testing.T) {
	exec := newTestExecutor(DefaultConfig())
	st, err := exec.Run(context.Background(), []Operation{
		Load{Locator: b64(encodePNG(t, gradient(16, 16))), Extension: "png"},
		Grayscale{},
	})
	require.NoError(t, err)
	require.Empty(t, st.Encoded)

	data, err := exec.Buffer(st)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, imaging.FormatPNG, st.Format)
}

func TestSizeRatio(t *testing.T) {
	assert.Equal(t, 50, SizeRatio(500, 1000))
	assert.Equal(t, 100, SizeRatio(10, 0))
	assert.Equal(t, 33, SizeRatio(1, 3))
}

func TestSniffExtension(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", encodePNG(t, solid(4, 4, color.NRGBA{A: 255})), "png"},
		{"jpeg", encodeJPEG(t, solid(4, 4, color.NRGBA{A: 255})), "jpeg"},
		{"avif brand", append([]byte{0, 0, 0, 0x1c}, []byte("ftypavif\x00\x00\x00\x00")...), "avif"},
		{"avis brand", append([]byte{0, 0, 0, 0x1c}, []byte("ftypavis\x00\x00\x00\x00")...), "avif"},
		{"text", []byte("hello"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sniffExtension(tt.data))
		})
	}
}
