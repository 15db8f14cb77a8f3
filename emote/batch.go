package emote

import (
	"golang.org/x/net/html"
)

// Occurrence is a single appearance of emote reference in a page.
type Occurrence struct {
	// Region is content block the reference was found in.
	Region *html.Node
	// Anchor is link element to rewrite.
	Anchor *html.Node
	// Raw is link target exactly as written in the document.
	Raw string
}

// Batch collects occurrences of a single scan pass keyed by canonical name.
// Names keep order of their first appearance, occurrences of each name keep
// order of encounter. Batch is never shared between passes.
type Batch struct {
	names       []Name
	occurrences map[Name][]Occurrence
	count       int
}

// NewBatch returns empty batch for a single pass.
func NewBatch() *Batch {
	return &Batch{occurrences: make(map[Name][]Occurrence)}
}

// Add canonicalizes occurrence target and appends occurrence to its name
// entry. Returns false if target is not a valid reference, in which case
// batch is not modified.
func (b *Batch) Add(o Occurrence) (Name, bool) {
	name, ok := Canonical(o.Raw)
	if !ok {
		return "", false
	}
	if _, exists := b.occurrences[name]; !exists {
		b.names = append(b.names, name)
	}
	b.occurrences[name] = append(b.occurrences[name], o)
	b.count++
	return name, true
}

// Names returns distinct names in order of first appearance.
func (b *Batch) Names() []Name {
	out := make([]Name, len(b.names))
	copy(out, b.names)
	return out
}

// Occurrences returns all occurrences of the name.
func (b *Batch) Occurrences(name Name) []Occurrence {
	return b.occurrences[name]
}

// Len returns number of distinct names.
func (b *Batch) Len() int {
	return len(b.names)
}

// Count returns number of occurrences.
func (b *Batch) Count() int {
	return b.count
}
