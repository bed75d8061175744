package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/document"
	"github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// Input is a document handed over by a content processor.
type Input struct {
	ID          string // generated when empty
	OwnerID     string
	ContentType document.ContentType
	Text        string
	ContentTime time.Time
	Metadata    document.Metadata
}

// Service ingests, re-indexes and deletes documents.
type Service struct {
	repo    Repository
	chunker Chunker
	writer  *Writer
	locker  Locker
	newID   func() string
	logger  *zap.Logger
}

// New creates an ingestion service.
func New(repo Repository, ch Chunker, w *Writer, locker Locker, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		chunker: ch,
		writer:  w,
		locker:  locker,
		newID:   uuid.NewString,
		logger:  logger,
	}
}

// Ingest indexes a new document or replaces one the owner already has under the same ID.
func (s *Service) Ingest(ctx context.Context, in Input) (document.Document, error) {
	if in.ID == "" {
		in.ID = s.newID()
	}
	return s.index(ctx, in, false)
}

// Reindex replaces an existing document's text and chunk set.
func (s *Service) Reindex(ctx context.Context, in Input) (document.Document, error) {
	return s.index(ctx, in, true)
}

func (s *Service) index(ctx context.Context, in Input, mustExist bool) (document.Document, error) {
	doc, err := document.New(in.ID, in.OwnerID, in.ContentType, in.Text, in.ContentTime, in.Metadata)
	if err != nil {
		return document.Document{}, err
	}

	log := logger.FromContextOr(ctx, s.logger).With(
		zap.String("owner_id", doc.OwnerID()),
		zap.String("document_id", doc.ID()),
	)

	unlock, err := s.locker.Lock(ctx, doc.ID())
	if err != nil {
		metrics.IndexFailuresTotal.WithLabelValues("lock").Inc()
		return document.Document{}, fmt.Errorf("lock document: %w", err)
	}
	defer unlock()

	owner, err := s.repo.OwnerOf(ctx, doc.ID())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if mustExist {
			return document.Document{}, fmt.Errorf("document %s: %w", doc.ID(), domain.ErrNotFound)
		}
	case err != nil:
		return document.Document{}, fmt.Errorf("check owner: %w", err)
	case owner != doc.OwnerID():
		if mustExist {
			return document.Document{}, fmt.Errorf("document %s: %w", doc.ID(), domain.ErrNotFound)
		}
		return document.Document{}, fmt.Errorf("document %s: %w", doc.ID(), domain.ErrConflict)
	}

	spans := s.chunker.Chunk(doc.Text())
	indexed, err := s.writer.Index(ctx, &doc, spans)
	if err != nil {
		log.Warn("Document not indexed", zap.Error(err))
		return document.Document{}, fmt.Errorf("index document: %w", err)
	}

	log.Info("Document indexed",
		zap.Int("chunks", indexed.ChunkCount()),
		zap.Int("chars", len([]rune(doc.Text()))),
	)
	return indexed, nil
}

// Get returns an owner's document.
func (s *Service) Get(ctx context.Context, ownerID, id string) (document.Document, error) {
	doc, err := s.repo.GetDocument(ctx, ownerID, id)
	if err != nil {
		return document.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Delete removes the document and all its chunks before returning.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("lock document: %w", err)
	}
	defer unlock()

	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	logger.FromContextOr(ctx, s.logger).Info("Document deleted",
		zap.String("owner_id", ownerID),
		zap.String("document_id", id),
	)
	return nil
}
