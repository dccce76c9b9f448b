package types

import (
	"encoding/json"
	"errors"
)

// ErrInvalidContext reports a context value that is none of the three
// declared shapes. Callers construct contexts through the functions below,
// so this only surfaces for a zero Context.
var ErrInvalidContext = errors.New("context is not text, an ordered list, or a keyed map")

// ContextKind enumerates the shapes of loop input context.
type ContextKind int

const (
	ContextInvalid ContextKind = iota
	ContextText
	ContextList
	ContextMap
)

// String returns the kind name used in metadata sentences and logs.
func (k ContextKind) String() string {
	switch k {
	case ContextText:
		return "scalar-text"
	case ContextList:
		return "ordered-list"
	case ContextMap:
		return "keyed-map"
	}
	return "invalid"
}

// MapEntry is one key/value pair of a keyed-map context. Entries keep the
// order they were supplied in, unlike a plain Go map.
type MapEntry struct {
	Key   string
	Value Value
}

// Context is the tagged variant over the three context shapes the loop
// accepts: a single block of text, an ordered list of values, or a keyed
// collection of values. The zero Context is the invalid shape.
type Context struct {
	kind    ContextKind
	text    string
	list    []Value
	entries []MapEntry
}

// TextContext wraps a single block of text.
func TextContext(text string) Context {
	return Context{kind: ContextText, text: text}
}

// ListContext wraps an ordered list of values.
func ListContext(elems ...Value) Context {
	return Context{kind: ContextList, list: elems}
}

// TextListContext wraps an ordered list of plain strings.
func TextListContext(elems []string) Context {
	values := make([]Value, len(elems))
	for i, e := range elems {
		values[i] = Text(e)
	}
	return Context{kind: ContextList, list: values}
}

// MapContext wraps an ordered sequence of key/value entries.
func MapContext(entries ...MapEntry) Context {
	return Context{kind: ContextMap, entries: entries}
}

// Kind reports which variant the context holds.
func (c Context) Kind() ContextKind {
	return c.kind
}

// Text returns the scalar text, or "" for the other shapes.
func (c Context) Text() string {
	return c.text
}

// Elements returns the list elements, or nil for the other shapes.
func (c Context) Elements() []Value {
	return c.list
}

// Entries returns the map entries in supplied order, or nil for the other
// shapes.
func (c Context) Entries() []MapEntry {
	return c.entries
}

// Serialize renders the whole context as one block of text: scalar text
// verbatim, lists and maps in their JSON form (map keys sorted).
func (c Context) Serialize() string {
	switch c.kind {
	case ContextText:
		return c.text
	case ContextList:
		out := make([]any, len(c.list))
		for i, elem := range c.list {
			out[i] = elem.toAny()
		}
		data, _ := json.Marshal(out)
		return string(data)
	case ContextMap:
		out := make(map[string]any, len(c.entries))
		for _, entry := range c.entries {
			out[entry.Key] = entry.Value.toAny()
		}
		data, _ := json.Marshal(out)
		return string(data)
	}
	return ""
}
