// Package rewrite patches textual and structured references to renamed image
// assets across the three dialects found in an e-book container: HTML/XHTML
// attribute references, CSS url() references, and the OPF manifest's typed
// item entries.
//
// All dialects match by the final path segment of a reference, not by full
// relative path, so "images/cover.jpg", "./images/cover.jpg",
// "../images/cover.jpg" and a bare "cover.jpg" all resolve to the same
// rename. The flip side is that two differently-located assets sharing a
// basename both match a single rename entry; callers are expected to keep
// image filenames unique within one archive.
//
// Every rewriter is idempotent: the rename plan is keyed by old filenames
// only, so running a rewriter over its own output changes nothing.
package rewrite
