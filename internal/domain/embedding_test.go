package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = text
	return s.result, s.err
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "passage: ")

	result, err := emb.Embed(context.Background(), "meeting notes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "passage: meeting notes" {
		t.Errorf("expected prepended text, got %q", inner.got)
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewInstructionEmbedder(&stubEmbedder{err: innerErr}, "query: ")

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestDimensionGuard(t *testing.T) {
	tests := []struct {
		name    string
		dims    int
		vec     []float32
		wantErr bool
	}{
		{"match", 3, []float32{1, 2, 3}, false},
		{"mismatch", 4, []float32{1, 2, 3}, true},
		{"disabled", 0, []float32{1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewDimensionGuard(&stubEmbedder{result: EmbeddingResult{Embedding: tt.vec}}, tt.dims)
			_, err := g.Embed(context.Background(), "x")
			if tt.wantErr {
				if !errors.Is(err, ErrVectorDimMismatch) {
					t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEmbeddingError_Classification(t *testing.T) {
	cause := errors.New("503 from upstream")

	transient := NewTransientEmbeddingError(cause)
	if !errors.Is(transient, ErrEmbedding) || !errors.Is(transient, ErrEmbeddingTransient) {
		t.Errorf("transient error should match ErrEmbedding and ErrEmbeddingTransient: %v", transient)
	}
	if errors.Is(transient, ErrEmbeddingRejected) {
		t.Error("transient error must not match ErrEmbeddingRejected")
	}
	if !errors.Is(transient, cause) {
		t.Error("cause lost")
	}

	rejected := NewRejectedEmbeddingError(cause)
	if !errors.Is(rejected, ErrEmbeddingRejected) || errors.Is(rejected, ErrEmbeddingTransient) {
		t.Errorf("rejected classification wrong: %v", rejected)
	}
}

func TestIndexWriteError(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&IndexWriteError{DocumentID: "d1", Attempts: 3, Err: cause})

	if !errors.Is(err, ErrIndexWrite) {
		t.Error("expected ErrIndexWrite")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause")
	}
	var iw *IndexWriteError
	if !errors.As(err, &iw) || iw.Attempts != 3 {
		t.Errorf("errors.As failed: %v", err)
	}
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("chunking.overlap", "must be smaller than size")
	if !errors.Is(err, ErrConfig) {
		t.Error("expected ErrConfig")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "chunking.overlap" {
		t.Errorf("errors.As failed: %v", err)
	}
}

func TestStrategyError_Timeout(t *testing.T) {
	timeout := &StrategyError{Strategy: "vector", Err: ErrStrategyTimeout}
	if !timeout.Timeout() {
		t.Error("expected timeout")
	}
	failed := &StrategyError{Strategy: "lexical", Err: errors.New("boom")}
	if failed.Timeout() {
		t.Error("expected plain failure")
	}
}
