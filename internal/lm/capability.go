// Package lm declares the language-model capability collaborator: the
// only way the Atomic Detector and RDD engine reach a language model.
// The core never opens an HTTP socket itself (spec.md Non-goals); a
// concrete Capability is wired in by the process that embeds this
// module.
package lm

import "context"

// Format tells the capability which output shape the caller expects
// back, so a single invoke method can serve both free-text reasoning
// and structured sub-task lists.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Capability is the single collaborator interface the core consumes
// for every language-model call.
type Capability interface {
	// Invoke sends prompt (with systemPrompt as the system message) to
	// the logical task named by logicalTaskName — e.g. "decomposition",
	// "atomic_detection" — at the given temperature, and returns the raw
	// response text in the requested format.
	Invoke(ctx context.Context, logicalTaskName, prompt, systemPrompt string, temperature float64, format Format) (string, error)
}
