package pipeline_test

import (
	"archive/zip"
	"bytes"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graypress/graypress"
	"github.com/graypress/graypress/pipeline"
	"github.com/graypress/graypress/quant"
	gptest "github.com/graypress/graypress/testing"
)

const fixtureOPF = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uid">
  <manifest>
    <item id="cover" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="fig" href="images/fig.png" media-type="image/png"/>
    <item id="page" href="text/ch01.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
  </manifest>
  <spine><itemref idref="page"/></spine>
</package>
`

const fixtureXHTML = `<html><body>
<img src="../images/cover.jpg"/>
<img src="../images/fig.png"/>
</body></html>
`

const fixtureCSS = `body { background: url('../images/cover.jpg'); }
`

func fixtureEntries(t *testing.T) []gptest.Entry {
	t.Helper()
	return []gptest.Entry{
		{Name: "mimetype", Data: []byte("application/epub+zip"), Stored: true},
		{Name: "OEBPS/content.opf", Data: []byte(fixtureOPF)},
		{Name: "OEBPS/text/ch01.xhtml", Data: []byte(fixtureXHTML)},
		{Name: "OEBPS/style.css", Data: []byte(fixtureCSS)},
		{Name: "OEBPS/images/cover.jpg", Data: gptest.GradientJPEG(t, 64, 48)},
		{Name: "OEBPS/images/fig.png", Data: gptest.GradientPNG(t, 32, 32)},
	}
}

// readArchive loads every entry of the zip at path into a map keyed by entry
// name.
func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()
	reader, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer reader.Close()

	contents := map[string][]byte{}
	for _, entry := range reader.File {
		f, err := entry.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		f.Close()
		require.NoError(t, err)
		contents[entry.Name] = data
	}
	return contents
}

func TestProcessArchiveFullRun(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "book.epub")
	gptest.BuildArchive(t, inputPath, fixtureEntries(t))
	outputDir := filepath.Join(dir, "out")

	var events []graypress.Event
	p := pipeline.New(quant.NewDiffuser(4))
	p.OnEvent = func(e graypress.Event) { events = append(events, e) }

	result, err := p.ProcessArchive(inputPath, outputDir)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NoError(t, result.Warnings)
	assert.Positive(t, result.OriginalSize)
	assert.Positive(t, result.NewSize)

	outputPath := filepath.Join(outputDir, "book.epub")
	require.FileExists(t, outputPath)

	// The reserved entry leads the archive uncompressed.
	reader, err := zip.OpenReader(outputPath)
	require.NoError(t, err)
	require.NotEmpty(t, reader.File)
	assert.Equal(t, "mimetype", reader.File[0].Name)
	assert.EqualValues(t, zip.Store, reader.File[0].Method)
	reader.Close()

	contents := readArchive(t, outputPath)
	assert.NotContains(t, contents, "OEBPS/images/cover.jpg",
		"converted JPEG source must be gone")
	require.Contains(t, contents, "OEBPS/images/cover.png")
	require.Contains(t, contents, "OEBPS/images/fig.png")

	// Both images are now 2-bit grayscale PNGs.
	for _, name := range []string{"OEBPS/images/cover.png", "OEBPS/images/fig.png"} {
		decoded, err := png.Decode(bytes.NewReader(contents[name]))
		require.NoErrorf(t, err, "%s does not decode", name)
		paletted, ok := decoded.(*image.Paletted)
		require.Truef(t, ok, "%s is not paletted", name)
		assert.Len(t, paletted.Palette, 4)
	}

	// Every dialect picked up the rename.
	xhtml := string(contents["OEBPS/text/ch01.xhtml"])
	assert.Contains(t, xhtml, `src="../images/cover.png"`)
	assert.NotContains(t, xhtml, "cover.jpg")
	assert.Contains(t, xhtml, `src="../images/fig.png"`)

	css := string(contents["OEBPS/style.css"])
	assert.Contains(t, css, `url("../images/cover.png")`)
	assert.NotContains(t, css, "cover.jpg")

	opf := string(contents["OEBPS/content.opf"])
	assert.Contains(t, opf, `href="images/cover.png"`)
	assert.NotContains(t, opf, `media-type="image/jpeg"`)
	assert.Contains(t, opf, `href="text/ch01.xhtml"`)

	// Stages arrive in state-machine order.
	var stages []graypress.Stage
	for _, e := range events {
		if len(stages) == 0 || stages[len(stages)-1] != e.Stage {
			stages = append(stages, e.Stage)
		}
	}
	assert.Equal(t, []graypress.Stage{
		graypress.StageExtract,
		graypress.StageConvert,
		graypress.StageRewrite,
		graypress.StageRepack,
		graypress.StageDone,
	}, stages)
}

func TestProcessArchiveDeterministicOutputEntries(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "book.epub")
	gptest.BuildArchive(t, inputPath, fixtureEntries(t))

	p := pipeline.New(quant.NewMedianCut(16))
	_, err := p.ProcessArchive(inputPath, filepath.Join(dir, "out1"))
	require.NoError(t, err)
	_, err = p.ProcessArchive(inputPath, filepath.Join(dir, "out2"))
	require.NoError(t, err)

	first := readArchive(t, filepath.Join(dir, "out1", "book.epub"))
	second := readArchive(t, filepath.Join(dir, "out2", "book.epub"))
	require.Equal(t, len(first), len(second))
	for name, data := range first {
		assert.Equalf(t, data, second[name], "entry %s differs between runs", name)
	}
}

func TestProcessArchiveNoImages(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "plain.epub")
	gptest.BuildArchive(t, inputPath, []gptest.Entry{
		{Name: "mimetype", Data: []byte("application/epub+zip"), Stored: true},
		{Name: "OEBPS/text/ch01.xhtml", Data: []byte(fixtureXHTML)},
	})

	var messages []string
	p := pipeline.New(quant.NewDiffuser(4))
	p.OnEvent = func(e graypress.Event) { messages = append(messages, e.Message) }

	result, err := p.ProcessArchive(inputPath, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, messages, "no images found")

	// With nothing converted, every file round-trips byte for byte.
	contents := readArchive(t, filepath.Join(dir, "out", "plain.epub"))
	assert.Equal(t, "application/epub+zip", string(contents["mimetype"]))
	assert.Equal(t, fixtureXHTML, string(contents["OEBPS/text/ch01.xhtml"]))
}

func TestProcessArchiveMissingReservedEntry(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "nomime.epub")
	gptest.BuildArchive(t, inputPath, []gptest.Entry{
		{Name: "OEBPS/text/ch01.xhtml", Data: []byte("<html/>")},
	})

	p := pipeline.New(quant.NewDiffuser(4))
	result, err := p.ProcessArchive(inputPath, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.True(t, result.Success)

	contents := readArchive(t, filepath.Join(dir, "out", "nomime.epub"))
	assert.NotContains(t, contents, "mimetype",
		"a missing reserved entry must simply stay absent")
	assert.Contains(t, contents, "OEBPS/text/ch01.xhtml")
}

func TestProcessArchiveCorruptImageIsSkipped(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "book.epub")
	entries := fixtureEntries(t)
	entries = append(entries, gptest.Entry{
		Name: "OEBPS/images/broken.jpg",
		Data: []byte("definitely not a JPEG"),
	})
	gptest.BuildArchive(t, inputPath, entries)

	p := pipeline.New(quant.NewDiffuser(4))
	result, err := p.ProcessArchive(inputPath, filepath.Join(dir, "out"))
	require.NoError(t, err, "a bad image must not abort the run")
	assert.True(t, result.Success)
	assert.ErrorIs(t, result.Warnings, graypress.ErrImageDecode)

	contents := readArchive(t, filepath.Join(dir, "out", "book.epub"))
	assert.Equal(t, "definitely not a JPEG", string(contents["OEBPS/images/broken.jpg"]),
		"the unconvertible image must survive unchanged")
	assert.Contains(t, contents, "OEBPS/images/cover.png",
		"other images still convert")
}

func TestProcessArchiveAllConversionsSkippedRoundTrips(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "book.epub")
	input := []gptest.Entry{
		{Name: "mimetype", Data: []byte("application/epub+zip"), Stored: true},
		{Name: "OEBPS/content.opf", Data: []byte(fixtureOPF)},
		{Name: "OEBPS/text/ch01.xhtml", Data: []byte(fixtureXHTML)},
		{Name: "OEBPS/images/cover.jpg", Data: []byte("broken beyond repair")},
	}
	gptest.BuildArchive(t, inputPath, input)

	p := pipeline.New(quant.NewDiffuser(4))
	result, err := p.ProcessArchive(inputPath, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.True(t, result.Success)

	contents := readArchive(t, filepath.Join(dir, "out", "book.epub"))
	require.Len(t, contents, len(input))
	for _, entry := range input {
		assert.Equalf(t, string(entry.Data), string(contents[entry.Name]),
			"entry %s must round-trip byte for byte", entry.Name)
	}
}

func TestProcessArchiveInvalidInput(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		p := pipeline.New(quant.NewDiffuser(4))
		_, err := p.ProcessArchive(filepath.Join(dir, "absent.epub"), dir)
		assert.ErrorIs(t, err, graypress.ErrArchiveRead)
	})

	t.Run("nil quantizer", func(t *testing.T) {
		p := pipeline.Pipeline{}
		_, err := p.ProcessArchive(filepath.Join(dir, "whatever.epub"), dir)
		assert.ErrorIs(t, err, graypress.ErrInvalidArgument)
	})

	t.Run("not an archive", func(t *testing.T) {
		inputPath := filepath.Join(dir, "bogus.epub")
		require.NoError(t, os.WriteFile(inputPath, []byte("plain text"), 0o644))

		p := pipeline.New(quant.NewDiffuser(4))
		result, err := p.ProcessArchive(inputPath, filepath.Join(dir, "out"))
		assert.ErrorIs(t, err, graypress.ErrArchiveRead)
		assert.False(t, result.Success)
	})
}

func TestProcessArchiveVerboseEmitsImageMetadata(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "book.epub")
	gptest.BuildArchive(t, inputPath, fixtureEntries(t))

	var messages []string
	p := pipeline.New(quant.NewDiffuser(4))
	p.Verbose = true
	p.OnEvent = func(e graypress.Event) { messages = append(messages, e.Message) }

	_, err := p.ProcessArchive(inputPath, filepath.Join(dir, "out"))
	require.NoError(t, err)

	joined := strings.Join(messages, "\n")
	assert.Contains(t, joined, "JPEG 64x48", "verbose runs describe each source image")
}

func TestDeltaPercentTruncatesTowardZero(t *testing.T) {
	assert.Equal(t, 19,
		graypress.ProcessResult{OriginalSize: 1000, NewSize: 801}.DeltaPercent())
	assert.Equal(t, -19,
		graypress.ProcessResult{OriginalSize: 1000, NewSize: 1199}.DeltaPercent())
	assert.Equal(t, 0, graypress.ProcessResult{}.DeltaPercent())
}
