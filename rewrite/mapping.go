package rewrite

import (
	"github.com/graypress/graypress"
)

// Rename is one entry of the rename plan. Both paths are slash-separated and
// relative to the archive extraction root.
type Rename struct {
	Old string
	New string
}

// Mapping is an ordered rename plan. It is built incrementally while images
// are converted and consumed read-only by the dialect rewriters. Old paths
// are unique: one source image converts to exactly one destination.
type Mapping struct {
	renames []Rename
	byOld   map[string]int
}

func NewMapping() *Mapping {
	return &Mapping{byOld: make(map[string]int)}
}

// Add appends a rename to the plan. Registering the same old path twice is
// an error.
func (m *Mapping) Add(oldPath, newPath string) error {
	if _, exists := m.byOld[oldPath]; exists {
		return graypress.ErrDuplicateRename.WithMessage(oldPath)
	}
	m.byOld[oldPath] = len(m.renames)
	m.renames = append(m.renames, Rename{Old: oldPath, New: newPath})
	return nil
}

func (m *Mapping) Len() int {
	return len(m.renames)
}

// Renames returns the plan in insertion order. The returned slice is shared;
// callers must not modify it.
func (m *Mapping) Renames() []Rename {
	return m.renames
}
