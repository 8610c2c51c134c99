package imaging

import (
	"image"
	"image/color"
	"sort"
)

// MedianCut is a deterministic median-cut colour quantizer. It satisfies
// draw.Quantizer, so it can also back gif.Options.Quantizer.
//
// Colours are histogrammed at 5 bits per channel (alpha included) and the
// histogram is walked in key order, so identical input always produces an
// identical palette.
type MedianCut struct {
	// MaxColors caps the palette size; values outside 2..256 are clamped.
	MaxColors int
}

type colorBin struct {
	key        uint32
	r, g, b, a uint64
	count      uint64
}

// channel returns the mean value of channel ch (0=R 1=G 2=B 3=A).
func (c *colorBin) channel(ch int) uint64 {
	switch ch {
	case 0:
		return c.r / c.count
	case 1:
		return c.g / c.count
	case 2:
		return c.b / c.count
	default:
		return c.a / c.count
	}
}

type colorBox struct {
	bins []*colorBin
}

// widest returns the channel with the largest spread and that spread.
func (b colorBox) widest() (int, uint64) {
	best, bestRange := 0, uint64(0)
	for ch := 0; ch < 4; ch++ {
		lo, hi := uint64(255), uint64(0)
		for _, bin := range b.bins {
			v := bin.channel(ch)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi >= lo && hi-lo > bestRange {
			best, bestRange = ch, hi-lo
		}
	}
	return best, bestRange
}

// split cuts the box at the population median of its widest channel.
func (b colorBox) split() (colorBox, colorBox) {
	ch, _ := b.widest()
	sort.SliceStable(b.bins, func(i, j int) bool {
		vi, vj := b.bins[i].channel(ch), b.bins[j].channel(ch)
		if vi != vj {
			return vi < vj
		}
		return b.bins[i].key < b.bins[j].key
	})
	var total uint64
	for _, bin := range b.bins {
		total += bin.count
	}
	var acc uint64
	cut := 1
	for i, bin := range b.bins {
		acc += bin.count
		if acc*2 >= total {
			cut = i + 1
			break
		}
	}
	if cut >= len(b.bins) {
		cut = len(b.bins) - 1
	}
	return colorBox{bins: b.bins[:cut]}, colorBox{bins: b.bins[cut:]}
}

func (b colorBox) average() color.NRGBA {
	var r, g, bl, a, n uint64
	for _, bin := range b.bins {
		r += bin.r
		g += bin.g
		bl += bin.b
		a += bin.a
		n += bin.count
	}
	return color.NRGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(bl / n), A: uint8(a / n)}
}

// Quantize appends up to MaxColors-len(p) colours representative of m to p.
func (q MedianCut) Quantize(p color.Palette, m image.Image) color.Palette {
	limit := q.MaxColors
	if limit < 2 {
		limit = 2
	}
	if limit > 256 {
		limit = 256
	}
	limit -= len(p)
	if limit <= 0 {
		return p
	}

	bins := histogram(m)
	if len(bins) == 0 {
		return p
	}

	boxes := []colorBox{{bins: bins}}
	for len(boxes) < limit {
		idx, bestRange := -1, uint64(0)
		for i, box := range boxes {
			if len(box.bins) < 2 {
				continue
			}
			if _, rng := box.widest(); idx < 0 || rng > bestRange {
				idx, bestRange = i, rng
			}
		}
		if idx < 0 {
			break
		}
		left, right := boxes[idx].split()
		boxes[idx] = left
		boxes = append(boxes, right)
	}

	for _, box := range boxes {
		p = append(p, box.average())
	}
	return p
}

func histogram(m image.Image) []*colorBin {
	b := m.Bounds()
	index := make(map[uint32]*colorBin)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
			key := uint32(c.R>>3)<<15 | uint32(c.G>>3)<<10 | uint32(c.B>>3)<<5 | uint32(c.A>>3)
			bin, ok := index[key]
			if !ok {
				bin = &colorBin{key: key}
				index[key] = bin
			}
			bin.r += uint64(c.R)
			bin.g += uint64(c.G)
			bin.b += uint64(c.B)
			bin.a += uint64(c.A)
			bin.count++
		}
	}
	bins := make([]*colorBin, 0, len(index))
	for _, bin := range index {
		bins = append(bins, bin)
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].key < bins[j].key })
	return bins
}
