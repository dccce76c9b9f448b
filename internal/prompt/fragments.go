package prompt

import (
	"fmt"
	"strconv"
	"strings"
)

// User turns are assembled from small fragments keyed by the recognized
// options, so each piece is testable on its own.

const exploreFragment = "You have not explored the context yet. Start by writing code in a ```repl block to check its size and preview its structure."

const historyNoteFragment = "Your previous REPL interactions appear above. Use what you have already learned before running more code."

const continueFragment = "Continue working toward the answer. Write ```repl code to analyze the context further, or finish with FINAL(\"answer\") or FINAL_VAR(variable) on its own line."

func iterationFragment(iteration int) string {
	if iteration == 0 {
		return exploreFragment
	}
	return historyNoteFragment
}

func baseFragment(rootPrompt string) string {
	if rootPrompt == "" {
		return continueFragment
	}
	return fmt.Sprintf("Your task is to answer the following query about the loaded context:\n%q\nWrite ```repl code to analyze the context, or finish with FINAL(\"answer\") or FINAL_VAR(variable) on its own line.", rootPrompt)
}

func contextNotice(contextCount int) string {
	if contextCount <= 1 {
		return ""
	}
	return fmt.Sprintf("Note: %d contexts are loaded, available as the variables context_0 through context_%d.", contextCount, contextCount-1)
}

func historyNotice(historyCount int) string {
	switch {
	case historyCount <= 0:
		return ""
	case historyCount == 1:
		return "A prior conversation history is loaded in the variable history_0."
	default:
		return fmt.Sprintf("%d prior conversation histories are loaded, available as the variables history_0 through history_%d.", historyCount, historyCount-1)
	}
}

// metadataSentence renders the deterministic assistant-voice description of
// a context: its kind, total size, and chunk lengths. Length lists over
// maxShownLengths entries are cut with an explicit remainder so one huge
// context cannot blow out the prompt.
const maxShownLengths = 100

func metadataSentence(meta ContextMetadata) string {
	return fmt.Sprintf(
		"I see the context metadata: kind %s, total length %d characters, chunk lengths [%s]. I will explore the context in the REPL before answering.",
		meta.Kind, meta.TotalLength, formatLengths(meta.Lengths),
	)
}

func formatLengths(lengths []int) string {
	shown := lengths
	var suffix string
	if len(lengths) > maxShownLengths {
		shown = lengths[:maxShownLengths]
		suffix = fmt.Sprintf(", ... [%d others]", len(lengths)-maxShownLengths)
	}
	parts := make([]string, len(shown))
	for i, n := range shown {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ") + suffix
}
