package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// SSIM stabilisers for a dynamic range of 1.
const (
	ssimC1 = 0.01 * 0.01
	ssimC2 = 0.03 * 0.03
)

// Lightness dominates perceived structure; chroma channels count for less.
var labWeights = [3]float64{4, 1, 1}

// gaussian7 is a normalised 7-tap kernel with sigma 1.5.
var gaussian7 = func() []float64 {
	const sigma = 1.5
	k := make([]float64, 7)
	var sum float64
	for i := range k {
		d := float64(i - 3)
		k[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}()

// DSSIM returns the structural dissimilarity of two equally sized rasters,
// computed as 1/SSIM - 1 over L*a*b* planes. Identical images score 0.
// Translucent pixels are composited onto white first.
func DSSIM(a, b image.Image) (float64, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, fmt.Errorf("dssim: size mismatch %dx%d vs %dx%d", ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}
	if ab.Empty() {
		return 0, errEmptyImage("dssim")
	}

	pa, pb := labPlanes(a), labPlanes(b)
	w, h := ab.Dx(), ab.Dy()

	var ssim, weights float64
	for ch := 0; ch < 3; ch++ {
		ssim += labWeights[ch] * channelSSIM(pa[ch], pb[ch], w, h)
		weights += labWeights[ch]
	}
	ssim /= weights
	if ssim <= 0 {
		return math.Inf(1), nil
	}
	return math.Max(0, 1/ssim-1), nil
}

func labPlanes(img image.Image) [3][]float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	planes := [3][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			alpha := float64(c.A) / 255
			white := 1 - alpha
			l, la, lb := colorful.Color{
				R: float64(c.R)/255*alpha + white,
				G: float64(c.G)/255*alpha + white,
				B: float64(c.B)/255*alpha + white,
			}.Lab()
			planes[0][i], planes[1][i], planes[2][i] = l, la, lb
			i++
		}
	}
	return planes
}

func channelSSIM(x, y []float64, w, h int) float64 {
	n := len(x)
	xx, yy, xy := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := range x {
		xx[i] = x[i] * x[i]
		yy[i] = y[i] * y[i]
		xy[i] = x[i] * y[i]
	}
	mx, my := blur(x, w, h), blur(y, w, h)
	sxx, syy, sxy := blur(xx, w, h), blur(yy, w, h), blur(xy, w, h)

	var sum float64
	for i := 0; i < n; i++ {
		mu := mx[i] * my[i]
		vx := sxx[i] - mx[i]*mx[i]
		vy := syy[i] - my[i]*my[i]
		cov := sxy[i] - mu
		sum += ((2*mu + ssimC1) * (2*cov + ssimC2)) /
			((mx[i]*mx[i] + my[i]*my[i] + ssimC1) * (vx + vy + ssimC2))
	}
	return sum / float64(n)
}

// blur applies the separable gaussian with clamped edges.
func blur(src []float64, w, h int) []float64 {
	tmp := make([]float64, len(src))
	out := make([]float64, len(src))
	r := len(gaussian7) / 2
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			var acc float64
			for k, kv := range gaussian7 {
				sx := min(max(x+k-r, 0), w-1)
				acc += src[row+sx] * kv
			}
			tmp[row+x] = acc
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k, kv := range gaussian7 {
				sy := min(max(y+k-r, 0), h-1)
				acc += tmp[sy*w+x] * kv
			}
			out[y*w+x] = acc
		}
	}
	return out
}
