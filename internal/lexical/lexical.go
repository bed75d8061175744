// Package lexical turns text into normalized terms shared by indexing and querying.
package lexical

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Common stop words excluded from signatures and query keywords.
var stopWords = map[string]bool{
	"a": true, "about": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "can": true, "did": true, "do": true, "does": true,
	"for": true, "from": true, "had": true, "has": true, "have": true, "how": true,
	"i": true, "if": true, "in": true, "into": true, "is": true, "it": true, "its": true,
	"me": true, "my": true, "no": true, "not": true, "of": true, "on": true, "or": true,
	"our": true, "so": true, "such": true, "that": true, "the": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true, "this": true,
	"to": true, "was": true, "we": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "why": true, "will": true, "with": true,
	"you": true, "your": true,
}

// IsStopWord reports whether the lowercase term is ignored.
func IsStopWord(term string) bool { return stopWords[term] }

// Tokenize lowercases text and splits it on anything that is not a letter or digit.
// Stop words and single letters are dropped; single digits are kept.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if stopWords[f] {
			continue
		}
		if utf8.RuneCountInString(f) == 1 {
			r, _ := utf8.DecodeRuneInString(f)
			if !unicode.IsDigit(r) {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

// Signature is the term-frequency multiset of a chunk.
type Signature map[string]int

// NewSignature computes the signature of text.
func NewSignature(text string) Signature {
	sig := make(Signature)
	for _, t := range Tokenize(text) {
		sig[t]++
	}
	return sig
}

// Len returns the total number of terms.
func (s Signature) Len() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}

// Encode renders the signature as a space-separated term stream in sorted order,
// repeating each term by its frequency. Full-text engines re-derive the same
// frequencies from it.
func (s Signature) Encode() string {
	terms := make([]string, 0, len(s))
	for t := range s {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	var b strings.Builder
	for _, t := range terms {
		for i := 0; i < s[t]; i++ {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(t)
		}
	}
	return b.String()
}

// Decode parses an encoded signature.
func Decode(encoded string) Signature {
	sig := make(Signature)
	for _, t := range strings.Fields(encoded) {
		sig[t]++
	}
	return sig
}

// Keywords returns the distinct terms of text in first-seen order.
func Keywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range Tokenize(text) {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// BM25 parameters.
const (
	BM25K1 = 1.2
	BM25B  = 0.75
)

// Corpus holds the collection statistics BM25 needs.
type Corpus struct {
	Docs    int
	AvgLen  float64
	DocFreq map[string]int
}

// BM25 scores a signature against query keywords.
func (c Corpus) BM25(keywords []string, sig Signature) float64 {
	if c.Docs == 0 || len(sig) == 0 {
		return 0
	}
	docLen := float64(sig.Len())
	avg := c.AvgLen
	if avg <= 0 {
		avg = docLen
	}
	var score float64
	for _, kw := range keywords {
		tf := float64(sig[kw])
		if tf == 0 {
			continue
		}
		df := float64(c.DocFreq[kw])
		idf := math.Log(1 + (float64(c.Docs)-df+0.5)/(df+0.5))
		norm := tf + BM25K1*(1-BM25B+BM25B*docLen/avg)
		score += idf * tf * (BM25K1 + 1) / norm
	}
	return score
}
