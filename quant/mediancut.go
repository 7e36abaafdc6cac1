package quant

import (
	"image"
	"sort"
)

// MedianCut reduces an image to GrayLevels values by clustering the intensity
// histogram with a one-dimensional median cut. The zero value is not usable;
// call NewMedianCut.
type MedianCut struct {
	GrayLevels int
}

// NewMedianCut returns a MedianCut producing the given number of gray levels.
// Levels below 2 are raised to 2, levels above 256 lowered to 256.
func NewMedianCut(levels int) *MedianCut {
	if levels < 2 {
		levels = 2
	}
	if levels > 256 {
		levels = 256
	}
	return &MedianCut{GrayLevels: levels}
}

func (q *MedianCut) Levels() int {
	return q.GrayLevels
}

// grayBox is a contiguous, occupied range of the intensity histogram. lo and
// hi are always occupied bins; count and sum cover every pixel in the range.
type grayBox struct {
	lo, hi int
	count  int
	sum    int
}

type histogram [256]int

// shrink builds a box over [lo, hi] trimmed to its occupied bounds.
func (h *histogram) shrink(lo, hi int) grayBox {
	for lo <= hi && h[lo] == 0 {
		lo++
	}
	for hi >= lo && h[hi] == 0 {
		hi--
	}
	box := grayBox{lo: lo, hi: hi}
	for v := lo; v <= hi; v++ {
		box.count += h[v]
		box.sum += v * h[v]
	}
	return box
}

// split cuts the box at its population median. Both halves are non-empty:
// the left half always keeps lo and the right half always keeps hi.
func (b grayBox) split(h *histogram) (grayBox, grayBox) {
	half := b.count / 2
	accumulated := 0
	median := b.lo
	for v := b.lo; v < b.hi; v++ {
		accumulated += h[v]
		median = v
		if accumulated >= half {
			break
		}
	}
	return h.shrink(b.lo, median), h.shrink(median+1, b.hi)
}

// Quantize clusters src into at most GrayLevels boxes and maps every pixel
// onto the even GrayLevels ramp. Box selection, splitting, and slot
// assignment are all integer arithmetic over the histogram, so the result is
// deterministic for identical input.
func (q *MedianCut) Quantize(src *image.Gray) *image.Paletted {
	bounds := src.Bounds()

	var hist histogram
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[src.Pix[src.PixOffset(x, y)]]++
		}
	}

	root := hist.shrink(0, 255)
	if root.count == 0 {
		return image.NewPaletted(bounds, Ramp(q.GrayLevels))
	}

	boxes := []grayBox{root}
	for len(boxes) < q.GrayLevels {
		// Split the widest box that still spans more than one occupied bin.
		// Ties go to the first candidate in slice order.
		widest := -1
		for i, box := range boxes {
			if box.hi <= box.lo {
				continue
			}
			if widest < 0 || box.hi-box.lo > boxes[widest].hi-boxes[widest].lo {
				widest = i
			}
		}
		if widest < 0 {
			break
		}
		left, right := boxes[widest].split(&hist)
		boxes[widest] = left
		boxes = append(boxes, right)
	}
	sort.Slice(boxes, func(i, j int) bool { return boxes[i].lo < boxes[j].lo })

	// Pin each box to the ramp slot nearest its mean intensity. Slots must
	// stay strictly increasing so distinct boxes keep distinct output levels;
	// collisions push later boxes up, then an overflow pass pulls them back
	// under the ramp ceiling.
	slots := make([]int, len(boxes))
	for i, box := range boxes {
		mean := box.sum / box.count
		slots[i] = (mean*(q.GrayLevels-1) + 128) / 255
	}
	for i := 1; i < len(slots); i++ {
		if slots[i] <= slots[i-1] {
			slots[i] = slots[i-1] + 1
		}
	}
	if len(slots) > 0 && slots[len(slots)-1] > q.GrayLevels-1 {
		slots[len(slots)-1] = q.GrayLevels - 1
	}
	for i := len(slots) - 2; i >= 0; i-- {
		if slots[i] >= slots[i+1] {
			slots[i] = slots[i+1] - 1
		}
	}

	var lut [256]uint8
	for i, box := range boxes {
		for v := box.lo; v <= box.hi; v++ {
			lut[v] = uint8(slots[i])
		}
	}

	dst := image.NewPaletted(bounds, Ramp(q.GrayLevels))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Pix[dst.PixOffset(x, y)] = lut[src.Pix[src.PixOffset(x, y)]]
		}
	}
	return dst
}
