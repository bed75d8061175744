package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound signals a missing document or an owner mismatch.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a document ID already taken by another owner.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput signals a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfig signals invalid chunking or retrieval parameters.
	ErrConfig = errors.New("invalid configuration")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrEmbedding is the root of every embedding failure.
	ErrEmbedding = errors.New("embedding failed")
	// ErrEmbeddingTransient signals a retryable provider failure (429, 5xx, network).
	ErrEmbeddingTransient = errors.New("embedding temporarily unavailable")
	// ErrEmbeddingRejected signals that the provider refused the content.
	ErrEmbeddingRejected = errors.New("embedding rejected")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")

	// ErrIndexWrite signals that the index store could not persist a document.
	ErrIndexWrite = errors.New("index write failed")

	// ErrStrategyTimeout signals a retrieval strategy that ran out of time.
	ErrStrategyTimeout = errors.New("strategy timed out")
	// ErrStrategyFailed signals a retrieval strategy that returned an error.
	ErrStrategyFailed = errors.New("strategy failed")
	// ErrQueryUnavailable signals that every ranked strategy failed.
	ErrQueryUnavailable = errors.New("query unavailable")

	// ErrTemporalAmbiguous signals a temporal phrase that could not be resolved.
	ErrTemporalAmbiguous = errors.New("temporal phrase ambiguous")

	// ErrGenerationFailed signals an answer generator failure.
	ErrGenerationFailed = errors.New("answer generation failed")
)

// ConfigError describes a single invalid parameter.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfig.Error(), e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// NewConfigError creates a configuration error for the given field.
func NewConfigError(field, reason string) error {
	return &ConfigError{Field: field, Reason: reason}
}

// EmbeddingError wraps a provider failure and tells whether it is worth retrying.
type EmbeddingError struct {
	Transient bool
	Err       error
}

func (e *EmbeddingError) Error() string {
	kind := "rejected"
	if e.Transient {
		kind = "transient"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", ErrEmbedding.Error(), kind)
	}
	return fmt.Sprintf("%s (%s): %v", ErrEmbedding.Error(), kind, e.Err)
}

// Unwrap exposes the embedding sentinels alongside the cause.
func (e *EmbeddingError) Unwrap() []error {
	errs := []error{ErrEmbedding}
	if e.Transient {
		errs = append(errs, ErrEmbeddingTransient)
	} else {
		errs = append(errs, ErrEmbeddingRejected)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewTransientEmbeddingError marks err as retryable.
func NewTransientEmbeddingError(err error) error {
	return &EmbeddingError{Transient: true, Err: err}
}

// NewRejectedEmbeddingError marks err as permanent for the given content.
func NewRejectedEmbeddingError(err error) error {
	return &EmbeddingError{Transient: false, Err: err}
}

// IndexWriteError is returned when a document could not be persisted after retries.
type IndexWriteError struct {
	DocumentID string
	Attempts   int
	Err        error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("%s: document %s after %d attempts: %v",
		ErrIndexWrite.Error(), e.DocumentID, e.Attempts, e.Err)
}

func (e *IndexWriteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIndexWrite}
	}
	return []error{ErrIndexWrite, e.Err}
}

// StrategyError records a retrieval strategy that contributed nothing.
type StrategyError struct {
	Strategy string
	Elapsed  time.Duration
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s after %s: %v", e.Strategy, e.Elapsed, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// Timeout reports whether the strategy ran out of time rather than failing outright.
func (e *StrategyError) Timeout() bool { return errors.Is(e.Err, ErrStrategyTimeout) }
