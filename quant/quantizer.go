package quant

import (
	"image"
	"image/color"
)

// Quantizer reduces an 8-bit grayscale image to a limited set of gray levels.
type Quantizer interface {
	// Quantize consumes src, possibly mutating its pixels in place, and
	// returns a paletted image over the evenly spaced ramp returned by
	// Ramp(Levels()).
	Quantize(src *image.Gray) *image.Paletted

	// Levels returns the number of gray levels in the output.
	Levels() int
}

// Ramp returns an evenly spaced grayscale palette: entry i holds intensity
// i*255/(levels-1).
func Ramp(levels int) color.Palette {
	palette := make(color.Palette, levels)
	for i := 0; i < levels; i++ {
		palette[i] = color.Gray{Y: uint8(i * 255 / (levels - 1))}
	}
	return palette
}

// clampByte bounds v to [0, 255] and truncates the fraction.
func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
