package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueKind enumerates the shapes a REPL environment value can take.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindText
	KindNumber
	KindBool
	KindSequence
	KindMap
)

// String returns the kind name used in logs and errors.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindSequence:
		return "sequence"
	case KindMap:
		return "map"
	}
	return "unknown"
}

// Value is a tagged variant over the serializable value shapes the loop
// exchanges with the execution environment. The zero Value is null.
type Value struct {
	kind ValueKind
	text string
	num  float64
	b    bool
	seq  []Value
	obj  map[string]Value
}

// Null returns the null value.
func Null() Value {
	return Value{kind: KindNull}
}

// Text wraps a string value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Number wraps a numeric value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Bool wraps a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Sequence wraps an ordered list of values.
func Sequence(elems ...Value) Value {
	return Value{kind: KindSequence, seq: elems}
}

// MapValue wraps a keyed collection of values. Serialization orders keys
// alphabetically, so output is deterministic regardless of insertion order.
func MapValue(entries map[string]Value) Value {
	return Value{kind: KindMap, obj: entries}
}

// Kind reports which variant the value holds.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Serialize renders the value as answer text: text verbatim, every other
// kind in its JSON form. The result round-trips through a JSON decoder
// (except top-level text, which is returned raw by contract).
func (v Value) Serialize() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return formatNumber(v.num)
	case KindSequence, KindMap:
		data, err := json.Marshal(v.toAny())
		if err != nil {
			// Only non-finite numbers are unencodable.
			return fmt.Sprintf("%v", v.toAny())
		}
		return string(data)
	}
	return ""
}

func (v Value) toAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindText:
		return v.text
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, elem := range v.seq {
			out[i] = elem.toAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.obj))
		for key, elem := range v.obj {
			out[key] = elem.toAny()
		}
		return out
	}
	return nil
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// FromGo classifies an arbitrary Go value into the variant by round-tripping
// it through JSON. Structs become maps, all numerics become numbers. Values
// JSON cannot express (funcs, channels, cycles) are an error, never a silent
// miscomputation.
func FromGo(x any) (Value, error) {
	if x == nil {
		return Null(), nil
	}
	data, err := json.Marshal(x)
	if err != nil {
		return Value{}, fmt.Errorf("value is not serializable: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return Value{}, fmt.Errorf("value does not round-trip: %w", err)
	}
	return fromDecoded(decoded), nil
}

func fromDecoded(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case string:
		return Text(t)
	case float64:
		return Number(t)
	case bool:
		return Bool(t)
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			elems[i] = fromDecoded(e)
		}
		return Sequence(elems...)
	case map[string]any:
		entries := make(map[string]Value, len(t))
		for key, e := range t {
			entries[key] = fromDecoded(e)
		}
		return MapValue(entries)
	}
	return Null()
}
