package db

// TagFilter matches documents whose TAG field equals Value.
type TagFilter struct {
	Field string
	Value string
}

// NumericRange matches Min <= field < Max (or <= Max when MaxInclusive).
type NumericRange struct {
	Field        string
	Min          float64
	Max          float64
	MaxInclusive bool
}

// Filter is a conjunction of pre-filter conditions.
type Filter struct {
	Tags   []TagFilter
	Ranges []NumericRange
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool { return len(f.Tags) == 0 && len(f.Ranges) == 0 }

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Filter       Filter
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 text search. Terms are OR-ed.
type TextQuery struct {
	IndexName    string
	Field        string
	Terms        []string
	Filter       Filter
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
