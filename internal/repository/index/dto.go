package index

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/document"
	"github.com/kailas-cloud/recall/internal/lexical"
)

// Hash field names. Fields prefixed with "__" are engine-internal.
const (
	fieldOwner       = "owner"
	fieldDocID       = "doc_id"
	fieldContentType = "content_type"
	fieldTitle       = "title"
	fieldAuthor      = "author"
	fieldTags        = "tags"
	fieldSourceURL   = "source_url"
	fieldContentTS   = "content_ts"
	fieldIngestedAt  = "ingested_at"
	fieldChunkCount  = "chunk_count"
	fieldChunkIdx    = "chunk_idx"
	fieldStart       = "start"
	fieldEnd         = "end"
	fieldText        = "__text"
	fieldLexical     = "__lexical"
	fieldVector      = "__vector"
)

// chunkReturnFields are fetched by searches. The vector stays on the server.
var chunkReturnFields = []string{
	fieldOwner, fieldDocID, fieldContentType, fieldChunkIdx, fieldContentTS,
	fieldStart, fieldEnd, fieldText, fieldLexical, fieldTitle, fieldSourceURL,
}

func buildDocFields(doc *document.Document) map[string]string {
	meta := doc.Metadata()
	tags := meta.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags) // []string always marshals
	return map[string]string{
		fieldOwner:       doc.OwnerID(),
		fieldContentType: string(doc.ContentType()),
		fieldTitle:       meta.Title,
		fieldAuthor:      meta.Author,
		fieldTags:        string(tagsJSON),
		fieldSourceURL:   meta.SourceURL,
		fieldContentTS:   formatMillis(doc.ContentTime()),
		fieldIngestedAt:  formatMillis(doc.IngestedAt()),
		fieldChunkCount:  strconv.Itoa(doc.ChunkCount()),
		fieldText:        doc.Text(),
	}
}

func parseDocFields(id string, m map[string]string) document.Document {
	var tags []string
	if raw := m[fieldTags]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &tags)
	}
	n, _ := strconv.Atoi(m[fieldChunkCount])
	return document.Reconstruct(
		id, m[fieldOwner], document.ContentType(m[fieldContentType]), m[fieldText],
		parseMillis(m[fieldContentTS]), parseMillis(m[fieldIngestedAt]),
		document.Metadata{
			Title:     m[fieldTitle],
			Author:    m[fieldAuthor],
			Tags:      tags,
			SourceURL: m[fieldSourceURL],
		},
		n,
	)
}

func buildChunkFields(c *chunk.Chunk) map[string]string {
	src := c.Source()
	return map[string]string{
		fieldOwner:       c.OwnerID(),
		fieldDocID:       src.DocumentID,
		fieldContentType: string(src.ContentType),
		fieldTitle:       src.Title,
		fieldSourceURL:   src.SourceURL,
		fieldContentTS:   formatMillis(src.ContentTime),
		fieldChunkIdx:    strconv.Itoa(c.Index()),
		fieldStart:       strconv.Itoa(c.Start()),
		fieldEnd:         strconv.Itoa(c.End()),
		fieldText:        c.Text(),
		fieldLexical:     lexical.Signature(c.Signature()).Encode(),
		fieldVector:      vectorToBytes(c.Vector()),
	}
}

func parseChunkFields(m map[string]string) chunk.Chunk {
	idx, _ := strconv.Atoi(m[fieldChunkIdx])
	start, _ := strconv.Atoi(m[fieldStart])
	end, _ := strconv.Atoi(m[fieldEnd])
	src := chunk.Source{
		DocumentID:  m[fieldDocID],
		Title:       m[fieldTitle],
		ContentType: document.ContentType(m[fieldContentType]),
		ContentTime: parseMillis(m[fieldContentTS]),
		SourceURL:   m[fieldSourceURL],
	}
	var vec []float32
	if raw, ok := m[fieldVector]; ok {
		vec = bytesToVector(raw)
	}
	return chunk.Reconstruct(m[fieldOwner], src, idx, start, end, m[fieldText],
		vec, lexical.Decode(m[fieldLexical]))
}

func formatMillis(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
