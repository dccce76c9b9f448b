package prompt

import (
	"strings"

	"replnerd/internal/types"
)

// Options selects the phrasing of one user turn. Pure configuration; the
// zero value means iteration 0, a single context, no histories, no quoted
// task.
type Options struct {
	// RootPrompt is the original task. When present the turn quotes it;
	// when empty the turn carries a generic continue instruction.
	RootPrompt string
	// Iteration is the zero-based loop counter.
	Iteration int
	// ContextCount is the number of loaded context variables.
	ContextCount int
	// HistoryCount is the number of loaded conversation histories.
	HistoryCount int
}

// BuildSystemTurn seeds a conversation: a system message carrying
// systemPrompt verbatim, then an assistant message carrying the metadata
// sentence for the loaded context. Always exactly two messages.
func BuildSystemTurn(systemPrompt string, meta ContextMetadata) []types.Message {
	return []types.Message{
		types.SystemMessage(systemPrompt),
		types.AssistantMessage(metadataSentence(meta)),
	}
}

// BuildUserTurn composes the next user message from its fragments:
// iteration guidance, the base instruction (quoting the task when present),
// then the optional multi-context and history notices, in that order.
// Deterministic for identical options.
func BuildUserTurn(opts Options) types.Message {
	fragments := []string{
		iterationFragment(opts.Iteration),
		baseFragment(opts.RootPrompt),
	}
	if notice := contextNotice(opts.ContextCount); notice != "" {
		fragments = append(fragments, notice)
	}
	if notice := historyNotice(opts.HistoryCount); notice != "" {
		fragments = append(fragments, notice)
	}
	return types.UserMessage(strings.Join(fragments, "\n\n"))
}
