package protocol

import (
	"regexp"
	"strings"

	"replnerd/internal/types"
)

// Environment is the variable table consulted when a termination marker
// names a REPL variable rather than carrying a literal. Implemented by the
// execution sandbox; read-only here.
type Environment interface {
	Lookup(name string) (types.Value, bool)
}

// Marker forms in precedence order. Arguments never span lines.
var (
	finalVarPattern    = regexp.MustCompile(`FINAL_VAR\((.*?)\)`)
	finalDoublePattern = regexp.MustCompile(`FINAL\("(.*?)"\)`)
	finalSinglePattern = regexp.MustCompile(`FINAL\('(.*?)'\)`)
	finalRawPattern    = regexp.MustCompile(`FINAL\((.*?)\)`)
)

// ResolveFinalAnswer scans responseText for a termination marker and
// resolves its value. The first marker form below that matches anywhere in
// the text wins, regardless of textual position:
//
//  1. FINAL_VAR(name): name is trimmed, one matching pair of surrounding
//     quotes is stripped, and the result is looked up in env. Text values
//     return unchanged, every other kind returns its serialized form.
//  2. FINAL("text"): double-quoted literal, contents verbatim.
//  3. FINAL('text'): single-quoted literal, contents verbatim.
//  4. FINAL(raw): everything up to the first ')', verbatim. A raw argument
//     with nested parentheses is truncated at that first ')'; only the
//     quoted forms carry parentheses safely.
//
// The false return covers both "no marker present" and "FINAL_VAR named a
// variable the environment does not hold"; callers see one absent signal.
func ResolveFinalAnswer(responseText string, env Environment) (string, bool) {
	if m := finalVarPattern.FindStringSubmatch(responseText); m != nil {
		name := unquote(strings.TrimSpace(m[1]))
		if env == nil {
			return "", false
		}
		value, ok := env.Lookup(name)
		if !ok {
			return "", false
		}
		return value.Serialize(), true
	}
	if m := finalDoublePattern.FindStringSubmatch(responseText); m != nil {
		return m[1], true
	}
	if m := finalSinglePattern.FindStringSubmatch(responseText); m != nil {
		return m[1], true
	}
	if m := finalRawPattern.FindStringSubmatch(responseText); m != nil {
		return m[1], true
	}
	return "", false
}

// unquote strips one matching pair of surrounding single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
