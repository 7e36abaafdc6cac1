package pipeline

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/graypress/graypress"
)

// MimetypeEntry is the reserved archive entry. Readers only recognize the
// container when this entry comes first and is stored without compression.
const MimetypeEntry = "mimetype"

// ExtractArchive unpacks the zip archive at sourcePath into destDir, which
// must already exist. Entry names are sanitized; an entry that would land
// outside destDir fails the whole extraction.
func ExtractArchive(sourcePath, destDir string) error {
	reader, err := zip.OpenReader(sourcePath)
	if err != nil {
		return graypress.ErrArchiveRead.Wrap(err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		target, ok := securePath(destDir, entry.Name)
		if !ok {
			return graypress.ErrArchiveRead.WithMessage(
				"entry escapes the archive root: " + entry.Name)
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return graypress.ErrArchiveRead.Wrap(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return graypress.ErrArchiveRead.Wrap(err)
		}
		if err := extractEntry(entry, target); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(entry *zip.File, target string) error {
	in, err := entry.Open()
	if err != nil {
		return graypress.ErrArchiveRead.Wrap(err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return graypress.ErrArchiveRead.Wrap(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return graypress.ErrArchiveRead.Wrap(err)
	}
	if err := out.Close(); err != nil {
		return graypress.ErrArchiveRead.Wrap(err)
	}
	return nil
}

// securePath resolves an archive entry name below root. Absolute names and
// names that climb out via ".." are rejected.
func securePath(root, name string) (string, bool) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", false
	}
	return filepath.Join(root, clean), true
}

// WriteArchive serializes the tree rooted at rootDir into w as a zip archive.
// The reserved mimetype entry is written first and stored uncompressed when
// present (its absence is not an error); every other file follows in
// filesystem traversal order, deflated at the highest compression level. The
// archives are repacked once and read many times, so the speed difference
// against the default level doesn't matter.
func WriteArchive(w io.Writer, rootDir string) error {
	archive := zip.NewWriter(w)
	archive.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	mimetype, err := os.ReadFile(filepath.Join(rootDir, MimetypeEntry))
	if err == nil {
		entry, err := archive.CreateHeader(&zip.FileHeader{
			Name:   MimetypeEntry,
			Method: zip.Store,
		})
		if err != nil {
			return graypress.ErrArchiveWrite.Wrap(err)
		}
		if _, err := entry.Write(mimetype); err != nil {
			return graypress.ErrArchiveWrite.Wrap(err)
		}
	}

	err = filepath.WalkDir(rootDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(rootDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == MimetypeEntry {
			return nil
		}

		entry, err := archive.Create(rel)
		if err != nil {
			return err
		}
		in, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(entry, in)
		in.Close()
		return err
	})
	if err != nil {
		return graypress.ErrArchiveWrite.Wrap(err)
	}

	if err := archive.Close(); err != nil {
		return graypress.ErrArchiveWrite.Wrap(err)
	}
	return nil
}
