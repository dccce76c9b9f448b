package types

import "testing"

func TestContextKinds(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want ContextKind
	}{
		{"text", TextContext("abc"), ContextText},
		{"list", ListContext(Text("a")), ContextList},
		{"empty list", ListContext(), ContextList},
		{"map", MapContext(MapEntry{Key: "k", Value: Text("v")}), ContextMap},
		{"zero value is invalid", Context{}, ContextInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContextSerialize(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want string
	}{
		{"text verbatim", TextContext("raw text, not quoted"), "raw text, not quoted"},
		{"list", TextListContext([]string{"ab", "cde"}), `["ab","cde"]`},
		{"list of mixed values", ListContext(Number(1), Text("x")), `[1,"x"]`},
		{"map sorted keys", MapContext(
			MapEntry{Key: "b", Value: Number(2)},
			MapEntry{Key: "a", Value: Number(1)},
		), `{"a":1,"b":2}`},
		{"invalid", Context{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.Serialize(); got != tt.want {
				t.Errorf("Serialize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContextKindString(t *testing.T) {
	if got := ContextText.String(); got != "scalar-text" {
		t.Errorf("ContextText.String() = %q, want %q", got, "scalar-text")
	}
	if got := ContextList.String(); got != "ordered-list" {
		t.Errorf("ContextList.String() = %q, want %q", got, "ordered-list")
	}
	if got := ContextMap.String(); got != "keyed-map" {
		t.Errorf("ContextMap.String() = %q, want %q", got, "keyed-map")
	}
	if got := ContextInvalid.String(); got != "invalid" {
		t.Errorf("ContextInvalid.String() = %q, want %q", got, "invalid")
	}
}

func TestMapEntriesPreserveOrder(t *testing.T) {
	ctx := MapContext(
		MapEntry{Key: "zeta", Value: Text("1")},
		MapEntry{Key: "alpha", Value: Text("22")},
	)
	entries := ctx.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Key != "zeta" || entries[1].Key != "alpha" {
		t.Errorf("entry order = [%s, %s], want [zeta, alpha]", entries[0].Key, entries[1].Key)
	}
}
