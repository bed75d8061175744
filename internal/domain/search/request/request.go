package request

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
)

// Query limits.
const (
	// MaxQueryLength is the maximum allowed query length in characters.
	MaxQueryLength = 4096
	MaxMaxChunks   = 100
)

// Request is a validated retrieval query.
type Request struct {
	ownerID   string
	text      string
	maxChunks int
	rng       *temporal.Range
}

// New validates and normalizes query parameters.
// maxChunks <= 0 means "use the configured default". An explicit range overrides
// any temporal phrase found in the text.
func New(ownerID, text string, maxChunks int, rng *temporal.Range) (Request, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Request{}, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Request{}, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidInput, MaxQueryLength)
	}
	if maxChunks < 0 {
		maxChunks = 0
	}
	if maxChunks > MaxMaxChunks {
		maxChunks = MaxMaxChunks
	}
	return Request{ownerID: ownerID, text: text, maxChunks: maxChunks, rng: rng}, nil
}

// OwnerID returns the user whose content is searched.
func (r *Request) OwnerID() string { return r.ownerID }

// Text returns the natural-language query.
func (r *Request) Text() string { return r.text }

// MaxChunks returns the requested context size (0 = default).
func (r *Request) MaxChunks() int { return r.maxChunks }

// Range returns the explicit temporal constraint, nil when absent.
func (r *Request) Range() *temporal.Range { return r.rng }
