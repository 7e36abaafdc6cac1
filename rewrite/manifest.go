package rewrite

import (
	"path"

	"github.com/beevik/etree"
	"github.com/graypress/graypress"
)

const (
	jpegMediaType = "image/jpeg"
	pngMediaType  = "image/png"
)

// RewriteManifest updates the OPF package manifest. Items whose href ends in
// a renamed filename get the filename part of their href replaced, and a
// legacy image/jpeg media-type is retargeted to image/png. The document is
// parsed and serialized with etree, so declarations, attribute order, and
// untouched elements survive the round trip. The boolean reports whether the
// content changed.
func RewriteManifest(content []byte, mapping *Mapping) ([]byte, bool, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, false, graypress.ErrManifestParse.Wrap(err)
	}

	// Prefixed documents first, then the unqualified form used by packages
	// that declare opf as the default namespace (or none at all).
	manifest := doc.FindElement("//opf:manifest")
	if manifest == nil {
		manifest = doc.FindElement("//manifest")
	}
	if manifest == nil {
		return nil, false, graypress.ErrManifestParse.WithMessage("no manifest element")
	}

	items := manifest.FindElements(".//opf:item")
	if len(items) == 0 {
		items = manifest.FindElements(".//item")
	}

	changed := false
	for _, item := range items {
		href := item.SelectAttrValue("href", "")
		if href == "" {
			continue
		}
		for _, rename := range mapping.Renames() {
			oldName := path.Base(rename.Old)
			if path.Base(href) != oldName {
				continue
			}

			newHref := href[:len(href)-len(oldName)] + path.Base(rename.New)
			if newHref != href {
				item.CreateAttr("href", newHref)
				changed = true
			}
			if item.SelectAttrValue("media-type", "") == jpegMediaType {
				item.CreateAttr("media-type", pngMediaType)
				changed = true
			}
			break
		}
	}

	if !changed {
		return content, false, nil
	}
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, false, graypress.ErrManifestParse.Wrap(err)
	}
	return out, true, nil
}
