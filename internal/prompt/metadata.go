// Package prompt builds the outgoing side of the loop protocol: context
// metadata, the seeded system turn, and the per-iteration user turn.
package prompt

import (
	"fmt"
	"unicode/utf8"

	"replnerd/internal/types"
)

// ContextMetadata captures the shape and chunk sizes of a loop context.
// Built once per context, immutable, a pure snapshot of the input.
type ContextMetadata struct {
	Lengths     []int
	TotalLength int
	Kind        types.ContextKind
}

// Describe measures a context: one length entry per logical chunk (the
// whole text for scalar-text, one per element for ordered-list, one per
// value for keyed-map in entry order). Non-text chunks are measured by
// their serialized-text length. An empty list yields a single zero entry.
// Lengths count runes, matching how the model sees indexable characters.
func Describe(c types.Context) (ContextMetadata, error) {
	switch c.Kind() {
	case types.ContextText:
		n := utf8.RuneCountInString(c.Text())
		return ContextMetadata{Lengths: []int{n}, TotalLength: n, Kind: types.ContextText}, nil

	case types.ContextList:
		elems := c.Elements()
		if len(elems) == 0 {
			return ContextMetadata{Lengths: []int{0}, TotalLength: 0, Kind: types.ContextList}, nil
		}
		lengths := make([]int, len(elems))
		total := 0
		for i, elem := range elems {
			n := utf8.RuneCountInString(elem.Serialize())
			lengths[i] = n
			total += n
		}
		return ContextMetadata{Lengths: lengths, TotalLength: total, Kind: types.ContextList}, nil

	case types.ContextMap:
		entries := c.Entries()
		lengths := make([]int, len(entries))
		total := 0
		for i, entry := range entries {
			n := utf8.RuneCountInString(entry.Value.Serialize())
			lengths[i] = n
			total += n
		}
		return ContextMetadata{Lengths: lengths, TotalLength: total, Kind: types.ContextMap}, nil
	}

	return ContextMetadata{}, fmt.Errorf("describe: %w", types.ErrInvalidContext)
}
