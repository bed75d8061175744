package chunk

import (
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/recall/internal/domain/document"
)

// Source is the provenance of a chunk, denormalized from its document.
type Source struct {
	DocumentID  string
	Title       string
	ContentType document.ContentType
	ContentTime time.Time
	SourceURL   string
}

// SourceOf extracts chunk provenance from a document.
func SourceOf(d *document.Document) Source {
	meta := d.Metadata()
	return Source{
		DocumentID:  d.ID(),
		Title:       d.DisplayTitle(),
		ContentType: d.ContentType(),
		ContentTime: d.ContentTime(),
		SourceURL:   meta.SourceURL,
	}
}

// Chunk is a contiguous span of a document's text, the unit of indexing and retrieval.
// It refers to its document by ID only.
type Chunk struct {
	ownerID   string
	index     int
	start     int
	end       int
	text      string
	vector    []float32
	signature map[string]int
	source    Source
}

// New creates a chunk of the document described by src.
// start and end are character offsets into the document text.
func New(ownerID string, src Source, index, start, end int, text string) Chunk {
	return Chunk{ownerID: ownerID, source: src, index: index, start: start, end: end, text: text}
}

// Reconstruct creates a Chunk from storage, vector and signature included.
func Reconstruct(
	ownerID string, src Source, index, start, end int, text string,
	vector []float32, signature map[string]int,
) Chunk {
	return Chunk{
		ownerID: ownerID, source: src, index: index, start: start, end: end,
		text: text, vector: vector, signature: signature,
	}
}

// Key builds the chunk identity from its document ID and sequence index.
func Key(documentID string, index int) string {
	return documentID + ":" + strconv.Itoa(index)
}

// ParseKey splits a chunk identity into document ID and index.
func ParseKey(key string) (string, int, bool) {
	i := strings.LastIndexByte(key, ':')
	if i <= 0 {
		return "", 0, false
	}
	idx, err := strconv.Atoi(key[i+1:])
	if err != nil || idx < 0 {
		return "", 0, false
	}
	return key[:i], idx, true
}

// ID returns the chunk identity.
func (c *Chunk) ID() string { return Key(c.source.DocumentID, c.index) }

// DocumentID returns the owning document's ID.
func (c *Chunk) DocumentID() string { return c.source.DocumentID }

// OwnerID returns the owning user.
func (c *Chunk) OwnerID() string { return c.ownerID }

// Index returns the 0-based sequence index within the document.
func (c *Chunk) Index() int { return c.index }

// Start returns the inclusive character offset.
func (c *Chunk) Start() int { return c.start }

// End returns the exclusive character offset.
func (c *Chunk) End() int { return c.end }

// Len returns the character count.
func (c *Chunk) Len() int { return c.end - c.start }

// Text returns the chunk text.
func (c *Chunk) Text() string { return c.text }

// Vector returns the embedding vector.
func (c *Chunk) Vector() []float32 { return c.vector }

// Signature returns the lexical term frequencies.
func (c *Chunk) Signature() map[string]int { return c.signature }

// Source returns provenance.
func (c *Chunk) Source() Source { return c.source }

// SetVector sets the vector in place (mutation).
func (c *Chunk) SetVector(v []float32) { c.vector = v }

// SetSignature sets the lexical signature in place (mutation).
func (c *Chunk) SetSignature(sig map[string]int) { c.signature = sig }
