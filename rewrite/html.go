package rewrite

import (
	"bytes"
	"path"
	"regexp"
)

// HTML attribute names that carry image references. xlink:href covers SVG
// cover wrappers, which are common in EPUB front matter.
const htmlRefAttrs = `(src|xlink:href)`

// RewriteHTML replaces renamed image filenames inside attribute references.
// Only the final path segment of the attribute value is matched and replaced;
// the directory prefix and the quoting style are preserved. The boolean
// reports whether the content changed.
func RewriteHTML(content []byte, mapping *Mapping) ([]byte, bool) {
	out := content
	for _, rename := range mapping.Renames() {
		oldName := path.Base(rename.Old)
		newName := path.Base(rename.New)

		for _, quote := range []string{`"`, `'`} {
			pattern := regexp.MustCompile(
				htmlRefAttrs + `=` + quote +
					`((?:[^` + quote + `]*/)?)` + regexp.QuoteMeta(oldName) +
					quote)
			out = pattern.ReplaceAll(out, []byte(`${1}=`+quote+`${2}`+newName+quote))
		}
	}
	return out, !bytes.Equal(out, content)
}
