// Package convert turns individual raster assets into reduced-level
// grayscale PNGs.
package convert

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/graypress/graypress"
	"github.com/graypress/graypress/quant"
)

// rasterExtensions are the supported input formats, lowercased.
var rasterExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// IsRasterPath reports whether the path has a supported raster extension.
// The comparison is case-insensitive.
func IsRasterPath(p string) bool {
	return rasterExtensions[strings.ToLower(filepath.Ext(p))]
}

// Converter converts one source image at a time using the configured
// quantization strategy.
type Converter struct {
	Quantizer quant.Quantizer
}

// Convert decodes the image at sourcePath, flattens it to single-channel
// grayscale, reduces it with the quantizer, and writes the result as a PNG
// at a sibling path with the same stem. When the source extension differs
// from the normalized ".png" the source file is deleted; an already-PNG
// source is overwritten in place. Returns the path of the converted file.
func (c *Converter) Convert(sourcePath string) (string, error) {
	file, err := os.Open(sourcePath)
	if err != nil {
		return "", graypress.ErrImageDecode.Wrap(err)
	}
	src, _, err := image.Decode(file)
	file.Close()
	if err != nil {
		return "", graypress.ErrImageDecode.WithMessage(
			fmt.Sprintf("%s: %s", filepath.Base(sourcePath), err))
	}

	// Flattening into a fresh Gray raster discards the color channels along
	// with any embedded color profile or ancillary metadata.
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, src, bounds.Min, draw.Src)

	reduced := c.Quantizer.Quantize(gray)

	ext := filepath.Ext(sourcePath)
	newPath := strings.TrimSuffix(sourcePath, ext) + ".png"

	out, err := os.Create(newPath)
	if err != nil {
		return "", graypress.ErrImageEncode.Wrap(err)
	}
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(out, reduced); err != nil {
		out.Close()
		return "", graypress.ErrImageEncode.Wrap(err)
	}
	if err := out.Close(); err != nil {
		return "", graypress.ErrImageEncode.Wrap(err)
	}

	if strings.ToLower(ext) != ".png" {
		if err := os.Remove(sourcePath); err != nil {
			return "", graypress.ErrImageEncode.Wrap(err)
		}
	}
	return newPath, nil
}

// Info describes a source image without decoding its pixels. Used for
// verbose diagnostics.
type Info struct {
	Format string
	Width  int
	Height int
	Bytes  int64
}

func (i Info) String() string {
	return fmt.Sprintf(
		"%s %dx%d (%.1f KB)", strings.ToUpper(i.Format), i.Width, i.Height,
		float64(i.Bytes)/1024)
}

// Describe reads the header of the image at sourcePath.
func Describe(sourcePath string) (Info, error) {
	stat, err := os.Stat(sourcePath)
	if err != nil {
		return Info{}, graypress.ErrImageDecode.Wrap(err)
	}
	file, err := os.Open(sourcePath)
	if err != nil {
		return Info{}, graypress.ErrImageDecode.Wrap(err)
	}
	defer file.Close()

	config, format, err := image.DecodeConfig(file)
	if err != nil {
		return Info{}, graypress.ErrImageDecode.Wrap(err)
	}
	return Info{
		Format: format,
		Width:  config.Width,
		Height: config.Height,
		Bytes:  stat.Size(),
	}, nil
}
