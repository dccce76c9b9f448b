// Package protocol implements the textual wire format between the model
// and the orchestrator: extraction of fenced executable blocks from
// response text, and resolution of FINAL / FINAL_VAR termination markers.
package protocol

import "regexp"

// A directive block opens with a line of ```repl (trailing blanks allowed),
// carries at least one line of content, and closes with a line that is
// exactly ```. Non-greedy, so each fence pair yields one block.
var directivePattern = regexp.MustCompile("(?m)^```repl[ \t]*\n([\\s\\S]*?)\n```$")

// ExtractDirectives returns the body of every repl-tagged fenced block in
// responseText, in source order, line breaks preserved verbatim. Fences
// tagged with any other label are ignored. No match yields nil, never an
// error. The scan is stateless: repeated calls on the same text return
// identical results.
func ExtractDirectives(responseText string) []string {
	matches := directivePattern.FindAllStringSubmatch(responseText, -1)
	if len(matches) == 0 {
		return nil
	}
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, m[1])
	}
	return blocks
}
