package answer

import "github.com/kailas-cloud/recall/internal/domain/chunk"

// Kind distinguishes a generated answer from the degraded fallback.
type Kind string

const (
	// Generated means the answer generator produced the text.
	Generated Kind = "generated"
	// Fallback means the generator was unavailable and the text lists sources instead.
	Fallback Kind = "fallback"
)

// Answer is the outcome of asking a question over the user's content.
type Answer struct {
	kind    Kind
	text    string
	sources []chunk.Source
	reason  string
}

// NewGenerated creates a successful answer.
func NewGenerated(text string, sources []chunk.Source) Answer {
	return Answer{kind: Generated, text: text, sources: sources}
}

// NewFallback creates a degraded answer. reason records why generation was skipped.
func NewFallback(text string, sources []chunk.Source, reason string) Answer {
	return Answer{kind: Fallback, text: text, sources: sources, reason: reason}
}

// Kind returns which variant this answer is.
func (a *Answer) Kind() Kind { return a.kind }

// Text returns the answer text.
func (a *Answer) Text() string { return a.text }

// Sources returns the provenance of the context used.
func (a *Answer) Sources() []chunk.Source { return a.sources }

// Reason returns why the fallback was used (empty for generated answers).
func (a *Answer) Reason() string { return a.reason }

// IsFallback reports whether generation was skipped.
func (a *Answer) IsFallback() bool { return a.kind == Fallback }
