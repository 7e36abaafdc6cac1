package rewrite

import (
	"bytes"
	"path"
	"regexp"
)

// RewriteCSS replaces renamed image filenames inside url() references. All
// three url() forms are matched (double-quoted, single-quoted, unquoted) and
// rewritten references are normalized to the double-quoted form. The boolean
// reports whether the content changed.
func RewriteCSS(content []byte, mapping *Mapping) ([]byte, bool) {
	out := content
	for _, rename := range mapping.Renames() {
		oldName := path.Base(rename.Old)
		newName := path.Base(rename.New)

		pattern := regexp.MustCompile(
			`url\(\s*["']?((?:[^"')]*/)?)` + regexp.QuoteMeta(oldName) + `["']?\s*\)`)
		out = pattern.ReplaceAll(out, []byte(`url("${1}`+newName+`")`))
	}
	return out, !bytes.Equal(out, content)
}
