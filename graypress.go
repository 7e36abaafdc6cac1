// Package graypress defines the shared types for recompressing the raster
// images inside zip-based e-book containers.
//
// An archive run extracts the container into a scratch directory, converts
// every PNG/JPEG asset to a low bit-depth grayscale PNG, rewrites each
// HTML/CSS/manifest reference to the renamed assets, and repacks the container
// with the reserved mimetype entry stored first and uncompressed. The actual
// work happens in the subpackages: quant holds the bit-depth reduction
// strategies, convert the per-image conversion, rewrite the reference
// dialects, and pipeline the archive state machine that drives them.
package graypress

// Stage identifies a phase of an archive-processing run.
type Stage int

const (
	StageExtract Stage = iota
	StageConvert
	StageRewrite
	StageRepack
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageExtract:
		return "extract"
	case StageConvert:
		return "convert"
	case StageRewrite:
		return "rewrite"
	case StageRepack:
		return "repack"
	case StageDone:
		return "done"
	}
	return "unknown"
}

// Event is a progress notification emitted during an archive-processing run.
// Events carry human-readable diagnostics; per-image and per-file skips are
// reported here as well as on ProcessResult.Warnings.
type Event struct {
	// Archive is the base name of the input archive being processed.
	Archive string
	Stage   Stage
	Message string
}

// EventFunc consumes progress events. A nil EventFunc disables reporting.
type EventFunc func(Event)

// ProcessResult summarizes one archive-processing run.
type ProcessResult struct {
	Success      bool
	OriginalSize int64
	NewSize      int64

	// Warnings aggregates all non-fatal skips of the run (failed image
	// conversions, unrewritable content files). Nil when nothing was skipped.
	Warnings error
}

// DeltaPercent returns the size change as a percentage of the original size,
// truncated toward zero. Positive values are a reduction, negative an increase.
func (r ProcessResult) DeltaPercent() int {
	if r.OriginalSize == 0 {
		return 0
	}
	return int((r.OriginalSize - r.NewSize) * 100 / r.OriginalSize)
}
