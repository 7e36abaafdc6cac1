// Package testing provides helpers for building fixture e-book archives and
// fixture raster images in tests.
package testing

import (
	"archive/zip"
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Entry is one file of a fixture archive.
type Entry struct {
	Name string
	Data []byte
	// Stored entries are written without compression, the way the reserved
	// mimetype entry must be.
	Stored bool
}

// BuildArchive writes a zip archive holding the given entries, in order, to
// path. It is guaranteed to either succeed or fail the test and abort.
func BuildArchive(t *testing.T, path string, entries []Entry) {
	t.Helper()

	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)
	for _, entry := range entries {
		method := zip.Deflate
		if entry.Stored {
			method = zip.Store
		}
		w, err := archive.CreateHeader(&zip.FileHeader{
			Name:   entry.Name,
			Method: method,
		})
		require.NoErrorf(t, err, "failed to add archive entry %q", entry.Name)
		_, err = w.Write(entry.Data)
		require.NoErrorf(t, err, "failed to write archive entry %q", entry.Name)
	}
	require.NoError(t, archive.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// GradientGray builds a grayscale raster whose intensity sweeps horizontally.
func GradientGray(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Pix[img.PixOffset(x, y)] = uint8(x * 255 / (width - 1))
		}
	}
	return img
}

// GradientPNG returns a PNG-encoded grayscale gradient.
func GradientPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, GradientGray(width, height)))
	return buf.Bytes()
}

// GradientJPEG returns a JPEG-encoded grayscale gradient.
func GradientJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	err := jpeg.Encode(&buf, GradientGray(width, height), &jpeg.Options{Quality: 90})
	require.NoError(t, err)
	return buf.Bytes()
}
