// Package pipeline drives a whole archive through extraction, image
// conversion, reference rewriting, and repacking.
//
// The run is a linear state machine with no back edges: extract into a fresh
// scratch directory, convert every raster asset into a reduced grayscale PNG
// while building the rename plan, apply the plan to every markup, style, and
// manifest file, then rebuild the container with the reserved mimetype entry
// first and uncompressed. Per-image and per-file problems are skipped,
// reported as events, and collected on the result; only archive-level
// failures abort the run. The scratch directory is removed on every exit
// path.
package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/graypress/graypress"
	"github.com/graypress/graypress/convert"
	"github.com/graypress/graypress/quant"
	"github.com/graypress/graypress/rewrite"
)

// Pipeline processes archives one at a time. It carries no per-run state, so
// a single Pipeline may be reused across sequential runs.
type Pipeline struct {
	Quantizer quant.Quantizer

	// OnEvent receives progress events; nil disables reporting.
	OnEvent graypress.EventFunc

	// Verbose adds per-image decode metadata to the event stream.
	Verbose bool
}

func New(quantizer quant.Quantizer) *Pipeline {
	return &Pipeline{Quantizer: quantizer}
}

func (p *Pipeline) emit(archive string, stage graypress.Stage, format string, args ...any) {
	if p.OnEvent == nil {
		return
	}
	p.OnEvent(graypress.Event{
		Archive: archive,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
	})
}

// ProcessArchive recompresses the images of the archive at inputPath and
// writes the repacked result, named after the input's stem with an .epub
// extension, into outputDir (created when missing).
func (p *Pipeline) ProcessArchive(inputPath, outputDir string) (graypress.ProcessResult, error) {
	result := graypress.ProcessResult{}
	archiveName := filepath.Base(inputPath)

	if p.Quantizer == nil {
		return result, graypress.ErrInvalidArgument.WithMessage("no quantizer configured")
	}

	stat, err := os.Stat(inputPath)
	if err != nil {
		return result, graypress.ErrArchiveRead.Wrap(err)
	}
	result.OriginalSize = stat.Size()

	scratch, err := os.MkdirTemp("", "graypress-*")
	if err != nil {
		return result, graypress.ErrArchiveRead.Wrap(err)
	}
	defer os.RemoveAll(scratch)

	p.emit(archiveName, graypress.StageExtract, "extracting archive")
	if err := ExtractArchive(inputPath, scratch); err != nil {
		return result, err
	}

	p.emit(archiveName, graypress.StageConvert, "processing images")
	mapping, warnings := p.convertImages(archiveName, scratch)

	if mapping.Len() == 0 {
		p.emit(archiveName, graypress.StageConvert, "no images found")
	} else {
		p.emit(archiveName, graypress.StageRewrite, "updating file references")
		warnings = p.rewriteReferences(archiveName, scratch, mapping, warnings)
	}

	p.emit(archiveName, graypress.StageRepack, "repackaging archive")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, graypress.ErrArchiveWrite.Wrap(err)
	}
	stem := strings.TrimSuffix(archiveName, filepath.Ext(archiveName))
	outputPath := filepath.Join(outputDir, stem+".epub")

	out, err := os.Create(outputPath)
	if err != nil {
		return result, graypress.ErrArchiveWrite.Wrap(err)
	}
	if err := WriteArchive(out, scratch); err != nil {
		out.Close()
		return result, err
	}
	if err := out.Close(); err != nil {
		return result, graypress.ErrArchiveWrite.Wrap(err)
	}

	outStat, err := os.Stat(outputPath)
	if err != nil {
		return result, graypress.ErrArchiveWrite.Wrap(err)
	}
	result.NewSize = outStat.Size()
	result.Success = true
	result.Warnings = warnings.ErrorOrNil()

	p.emit(archiveName, graypress.StageDone, "created %s", outputPath)
	return result, nil
}

// convertImages walks the scratch tree, converts every supported raster
// asset, and returns the rename plan. Conversion failures skip the image:
// they are reported and excluded from the plan, never fatal.
func (p *Pipeline) convertImages(
	archiveName, scratch string,
) (*rewrite.Mapping, *multierror.Error) {
	mapping := rewrite.NewMapping()
	var warnings *multierror.Error

	// Enumerate first: conversion renames files inside the directories
	// being walked, and generated outputs must not be re-visited.
	var sources []string
	filepath.WalkDir(scratch, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && convert.IsRasterPath(path) {
			sources = append(sources, path)
		}
		return nil
	})

	converter := convert.Converter{Quantizer: p.Quantizer}
	for _, source := range sources {
		relOld, err := filepath.Rel(scratch, source)
		if err != nil {
			warnings = multierror.Append(warnings, err)
			continue
		}
		relOld = filepath.ToSlash(relOld)

		if p.Verbose {
			if info, err := convert.Describe(source); err == nil {
				p.emit(archiveName, graypress.StageConvert, "%s: %s", relOld, info)
			}
		}

		newPath, err := converter.Convert(source)
		if err != nil {
			warnings = multierror.Append(warnings, err)
			p.emit(archiveName, graypress.StageConvert, "skipped %s: %s", relOld, err)
			continue
		}

		relNew, err := filepath.Rel(scratch, newPath)
		if err != nil {
			warnings = multierror.Append(warnings, err)
			continue
		}
		relNew = filepath.ToSlash(relNew)

		if err := mapping.Add(relOld, relNew); err != nil {
			warnings = multierror.Append(warnings, err)
			continue
		}
		p.emit(archiveName, graypress.StageConvert, "converted %s -> %s",
			relOld, filepath.Base(relNew))

		if p.Verbose {
			if stat, err := os.Stat(newPath); err == nil {
				p.emit(archiveName, graypress.StageConvert, "%s: %.1f KB",
					relNew, float64(stat.Size())/1024)
			}
		}
	}
	return mapping, warnings
}

// rewriteReferences applies the rename plan to every markup, style, and
// manifest file under the scratch tree. Files with zero matches are left
// untouched; unreadable, unwritable, or unparsable files are skipped and
// reported.
func (p *Pipeline) rewriteReferences(
	archiveName, scratch string, mapping *rewrite.Mapping, warnings *multierror.Error,
) *multierror.Error {
	filepath.WalkDir(scratch, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}

		var apply func([]byte) ([]byte, bool, error)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".htm", ".html", ".xhtml":
			apply = func(content []byte) ([]byte, bool, error) {
				out, changed := rewrite.RewriteHTML(content, mapping)
				return out, changed, nil
			}
		case ".css":
			apply = func(content []byte) ([]byte, bool, error) {
				out, changed := rewrite.RewriteCSS(content, mapping)
				return out, changed, nil
			}
		case ".opf":
			apply = func(content []byte) ([]byte, bool, error) {
				return rewrite.RewriteManifest(content, mapping)
			}
		default:
			return nil
		}

		rel, relErr := filepath.Rel(scratch, path)
		if relErr != nil {
			rel = path
		}

		content, err := os.ReadFile(path)
		if err != nil {
			warnings = multierror.Append(warnings, graypress.ErrReferenceIO.Wrap(err))
			p.emit(archiveName, graypress.StageRewrite, "skipped %s: %s", rel, err)
			return nil
		}

		updated, changed, err := apply(content)
		if err != nil {
			warnings = multierror.Append(warnings, err)
			p.emit(archiveName, graypress.StageRewrite, "skipped %s: %s", rel, err)
			return nil
		}
		if !changed {
			return nil
		}

		if err := os.WriteFile(path, updated, 0o644); err != nil {
			warnings = multierror.Append(warnings, graypress.ErrReferenceIO.Wrap(err))
			p.emit(archiveName, graypress.StageRewrite, "skipped %s: %s", rel, err)
			return nil
		}
		p.emit(archiveName, graypress.StageRewrite, "updated %s", rel)
		return nil
	})
	return warnings
}
