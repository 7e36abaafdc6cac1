package quant

import (
	"image"
	"math"
)

// Diffuser reduces an image to GrayLevels values with Floyd-Steinberg error
// diffusion. The zero value is not usable; call NewDiffuser.
type Diffuser struct {
	GrayLevels int
}

// NewDiffuser returns a Diffuser producing the given number of gray levels.
// Levels below 2 are raised to 2.
func NewDiffuser(levels int) *Diffuser {
	if levels < 2 {
		levels = 2
	}
	return &Diffuser{GrayLevels: levels}
}

func (d *Diffuser) Levels() int {
	return d.GrayLevels
}

// Quantize dithers src in place, then returns the result as a paletted image
// over Ramp(GrayLevels). After the pass every pixel of src holds one of the
// GrayLevels quantization levels.
func (d *Diffuser) Quantize(src *image.Gray) *image.Paletted {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	step := 255.0 / float64(d.GrayLevels-1)

	at := func(x, y int) int {
		return src.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := at(x, y)
			oldValue := float64(src.Pix[i])
			newValue := math.Round(oldValue/step) * step
			src.Pix[i] = clampByte(newValue)

			residual := oldValue - newValue

			if x+1 < width {
				j := at(x+1, y)
				src.Pix[j] = clampByte(float64(src.Pix[j]) + residual*7/16)
			}
			if y+1 < height {
				if x > 0 {
					j := at(x-1, y+1)
					src.Pix[j] = clampByte(float64(src.Pix[j]) + residual*3/16)
				}
				j := at(x, y+1)
				src.Pix[j] = clampByte(float64(src.Pix[j]) + residual*5/16)
				if x+1 < width {
					j = at(x+1, y+1)
					src.Pix[j] = clampByte(float64(src.Pix[j]) + residual*1/16)
				}
			}
		}
	}

	return palettedFromRamp(src, d.GrayLevels)
}

// palettedFromRamp indexes an image whose pixels already sit on the
// levels-entry ramp. Each pixel maps to the nearest ramp entry, which is exact
// for dithered output.
func palettedFromRamp(src *image.Gray, levels int) *image.Paletted {
	bounds := src.Bounds()
	step := 255.0 / float64(levels-1)
	dst := image.NewPaletted(bounds, Ramp(levels))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			value := src.Pix[src.PixOffset(x, y)]
			dst.Pix[dst.PixOffset(x, y)] = uint8(math.Round(float64(value) / step))
		}
	}
	return dst
}
