// Package answer synthesizes natural-language answers from retrieved
// context passages.
package answer

import (
	"context"
	"errors"
	"strings"
)

// FallbackAnswer is returned whenever no usable context survives retrieval
// and decryption.
const FallbackAnswer = "I don't have enough information to answer that."

// Sentinel errors for answer synthesis.
var (
	// ErrInvalidConfig indicates invalid synthesizer configuration.
	ErrInvalidConfig = errors.New("invalid answer config")

	// ErrSynthesisFailed indicates the language model call failed.
	ErrSynthesisFailed = errors.New("answer synthesis failed")
)

// Synthesizer produces an answer to a question given context passages.
type Synthesizer interface {
	// Synthesize answers the question from the given passages. Passages are
	// plaintext documents already scoped to the asking tenant.
	Synthesize(ctx context.Context, question string, passages []string) (string, error)
}

// BuildPrompt assembles the generation prompt from the question and
// passages.
func BuildPrompt(question string, passages []string) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the provided context.\n\ncontext:\n")
	for _, p := range passages {
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString("\nquestion: ")
	b.WriteString(question)
	return b.String()
}
