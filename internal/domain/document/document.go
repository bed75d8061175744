package document

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kailas-cloud/recall/internal/domain"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxTextSize is the maximum normalized text size in bytes.
const MaxTextSize = 4 << 20 // 4MB

// maxTitleRunes bounds the title derived from text when metadata carries none.
const maxTitleRunes = 80

// ContentType is the kind of source the text was extracted from.
type ContentType string

// Content type constants.
const (
	TypeDocument ContentType = "document"
	TypeAudio    ContentType = "audio"
	TypeWeb      ContentType = "web"
	TypeImage    ContentType = "image"
	TypeText     ContentType = "text"
)

// IsValid checks if the content type is one of the supported values.
func (t ContentType) IsValid() bool {
	switch t {
	case TypeDocument, TypeAudio, TypeWeb, TypeImage, TypeText:
		return true
	}
	return false
}

// Metadata is descriptive information supplied by the content processor.
type Metadata struct {
	Title     string
	Author    string
	Tags      []string
	SourceURL string
}

// Document is the ingested document aggregate (immutable value object).
type Document struct {
	id          string
	ownerID     string
	contentType ContentType
	text        string
	contentTime time.Time
	ingestedAt  time.Time
	metadata    Metadata
	chunkCount  int
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars. Text: non-empty, max 4MB, valid UTF-8.
func New(
	id, ownerID string, contentType ContentType, text string,
	contentTime time.Time, meta Metadata,
) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("%w: document ID is required", domain.ErrInvalidInput)
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("%w: document ID too long (max 256)", domain.ErrInvalidInput)
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf(
			"%w: document ID must be alphanumeric with underscores and hyphens", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(ownerID) == "" {
		return Document{}, fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	if contentType == "" {
		contentType = TypeText
	}
	if !contentType.IsValid() {
		return Document{}, fmt.Errorf("%w: unknown content type %q", domain.ErrInvalidInput, contentType)
	}
	if strings.TrimSpace(text) == "" {
		return Document{}, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}
	if len(text) > MaxTextSize {
		return Document{}, fmt.Errorf("%w: text too large (max %d bytes)", domain.ErrInvalidInput, MaxTextSize)
	}
	if !utf8.ValidString(text) {
		return Document{}, fmt.Errorf("%w: text is not valid UTF-8", domain.ErrInvalidInput)
	}

	return Document{
		id:          id,
		ownerID:     ownerID,
		contentType: contentType,
		text:        text,
		contentTime: contentTime,
		metadata:    cloneMetadata(meta),
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id, ownerID string, contentType ContentType, text string,
	contentTime, ingestedAt time.Time, meta Metadata, chunkCount int,
) Document {
	return Document{
		id: id, ownerID: ownerID, contentType: contentType, text: text,
		contentTime: contentTime, ingestedAt: ingestedAt, metadata: meta, chunkCount: chunkCount,
	}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// OwnerID returns the owning user.
func (d *Document) OwnerID() string { return d.ownerID }

// ContentType returns the source kind.
func (d *Document) ContentType() ContentType { return d.contentType }

// Text returns the normalized document text.
func (d *Document) Text() string { return d.text }

// ContentTime returns when the content was created or captured.
func (d *Document) ContentTime() time.Time { return d.contentTime }

// IngestedAt returns when the document was indexed.
func (d *Document) IngestedAt() time.Time { return d.ingestedAt }

// Metadata returns a copy of the descriptive metadata.
func (d *Document) Metadata() Metadata { return cloneMetadata(d.metadata) }

// ChunkCount returns the number of indexed chunks.
func (d *Document) ChunkCount() int { return d.chunkCount }

// DisplayTitle returns the metadata title, falling back to the source URL,
// then to the beginning of the text, then to the ID.
func (d *Document) DisplayTitle() string {
	if t := strings.TrimSpace(d.metadata.Title); t != "" {
		return t
	}
	if d.metadata.SourceURL != "" {
		return d.metadata.SourceURL
	}
	if line := firstLine(d.text); line != "" {
		return line
	}
	return d.id
}

// Indexed returns a copy stamped with ingestion time and chunk count.
// A zero content time defaults to the ingestion time.
func (d *Document) Indexed(at time.Time, chunkCount int) Document {
	c := *d
	c.metadata = cloneMetadata(d.metadata)
	c.ingestedAt = at
	c.chunkCount = chunkCount
	if c.contentTime.IsZero() {
		c.contentTime = at
	}
	if strings.TrimSpace(c.metadata.Title) == "" {
		c.metadata.Title = d.DisplayTitle()
	}
	return c
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	if utf8.RuneCountInString(text) <= maxTitleRunes {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:maxTitleRunes])) + "…"
}

func cloneMetadata(m Metadata) Metadata {
	if m.Tags != nil {
		m.Tags = append([]string(nil), m.Tags...)
	}
	return m
}
