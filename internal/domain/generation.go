package domain

import "context"

// Passage is one piece of assembled context handed to the answer generator.
type Passage struct {
	Title string
	Text  string
}

// Generator produces a natural-language answer from a question and its context.
type Generator interface {
	Generate(ctx context.Context, question string, passages []Passage) (string, error)
}
