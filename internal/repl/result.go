// Package repl provides the sandboxed interpreter that runs model-authored
// code blocks. State persists across executions within a run, so variables
// assigned by one block are visible to later blocks and to the answer
// resolver.
package repl

import (
	"strings"
	"time"
)

// Result captures one execution: captured streams, the value of the final
// expression, and the error if evaluation failed.
type Result struct {
	Stdout   string
	Stderr   string
	Value    string
	Err      error
	Duration time.Duration
}

// Output renders the result the way it is reported back to the model.
func (r Result) Output() string {
	var parts []string
	if out := strings.TrimRight(r.Stdout, "\n"); out != "" {
		parts = append(parts, out)
	}
	if errOut := strings.TrimRight(r.Stderr, "\n"); errOut != "" {
		parts = append(parts, errOut)
	}
	if r.Value != "" {
		parts = append(parts, r.Value)
	}
	if r.Err != nil {
		parts = append(parts, "error: "+r.Err.Error())
	}
	if len(parts) == 0 {
		return "(no output)"
	}
	return strings.Join(parts, "\n")
}
