package request

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
)

func TestNew_Valid(t *testing.T) {
	r, err := temporal.New(time.Unix(0, 0), time.Unix(100, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, err := New("owner", "  what did we decide  ", 5, &r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Text() != "what did we decide" {
		t.Errorf("Text() = %q", req.Text())
	}
	if req.MaxChunks() != 5 || req.OwnerID() != "owner" || req.Range() == nil {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestNew_ClampsMaxChunks(t *testing.T) {
	req, _ := New("o", "q", 1000, nil)
	if req.MaxChunks() != MaxMaxChunks {
		t.Errorf("MaxChunks() = %d, want %d", req.MaxChunks(), MaxMaxChunks)
	}
	req, _ = New("o", "q", -3, nil)
	if req.MaxChunks() != 0 {
		t.Errorf("MaxChunks() = %d, want 0", req.MaxChunks())
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name, owner, text string
	}{
		{"no owner", "", "q"},
		{"no text", "o", "   "},
		{"too long", "o", strings.Repeat("a", MaxQueryLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.owner, tt.text, 0, nil); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
