package strategy

// Strategy names a retrieval method contributing a ranked list.
type Strategy string

// Strategy constants.
const (
	// Vector ranks chunks by cosine similarity to the query embedding.
	Vector Strategy = "vector"
	// Lexical ranks chunks by BM25 relevance of the query keywords.
	Lexical Strategy = "lexical"
	// Temporal restricts both candidate pools to a content-time range.
	Temporal Strategy = "temporal"
)

// IsValid checks if the strategy is one of the supported values.
func (s Strategy) IsValid() bool {
	return s == Vector || s == Lexical || s == Temporal
}

// Ranked reports whether the strategy produces a ranked list for fusion.
func (s Strategy) Ranked() bool {
	return s == Vector || s == Lexical
}
