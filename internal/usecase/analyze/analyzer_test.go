package analyze

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
)

// fixed evaluation instant: Wednesday, 2024-05-15 14:30 UTC
var now = time.Date(2024, 5, 15, 14, 30, 0, 0, time.UTC)

func newTestAnalyzer() *Analyzer {
	return New(func() time.Time { return now })
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAnalyze_TemporalPhrases(t *testing.T) {
	tests := []struct {
		name  string
		query string
		start time.Time
		end   time.Time
	}{
		{"between iso", "notes between 2024-01-01 and 2024-02-01", day(2024, 1, 1), day(2024, 2, 1)},
		{"between long", "Between January 5, 2024 and March 1, 2024 meetings", day(2024, 1, 5), day(2024, 3, 1)},
		{"before short month", "receipts before Feb 3, 2024", time.Unix(0, 0).UTC(), day(2024, 2, 3)},
		{"before day first", "before 2 March 2024", time.Unix(0, 0).UTC(), day(2024, 3, 2)},
		{"in past month", "what happened in March", day(2024, 3, 1), day(2024, 4, 1)},
		{"in current month", "plans in May", day(2024, 5, 1), day(2024, 6, 1)},
		{"in future month means last year", "trip in August", day(2023, 8, 1), day(2023, 9, 1)},
		{"in december rolls over", "gifts in december", day(2023, 12, 1), day(2024, 1, 1)},
		{"yesterday", "what did I read yesterday", day(2024, 5, 14), day(2024, 5, 15)},
		{"last week", "budget decisions last week", now.Add(-7 * 24 * time.Hour), now},
		{"last month", "LAST MONTH invoices", now.Add(-30 * 24 * time.Hour), now},
		{"this year", "books this year", day(2024, 1, 1), now},
	}
	a := newTestAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(tt.query, nil)
			if got.Dropped != nil {
				t.Fatalf("unexpected drop: %v", got.Dropped)
			}
			if got.Range == nil {
				t.Fatal("expected a range")
			}
			if !got.Range.Start().Equal(tt.start) || !got.Range.End().Equal(tt.end) {
				t.Errorf("range = %s, want [%s, %s)", got.Range, tt.start, tt.end)
			}
		})
	}
}

func TestAnalyze_LastWeekBoundaries(t *testing.T) {
	got := newTestAnalyzer().Analyze("what did we decide about the budget last week", nil)
	if got.Range == nil {
		t.Fatal("expected a range")
	}
	if got.Range.Contains(now.Add(-10 * 24 * time.Hour)) {
		t.Error("T-10d must be excluded")
	}
	if !got.Range.Contains(now.Add(-2 * 24 * time.Hour)) {
		t.Error("T-2d must be included")
	}
	if got.Range.Contains(now) {
		t.Error("range end is exclusive")
	}
}

func TestAnalyze_FirstRuleWins(t *testing.T) {
	got := newTestAnalyzer().Analyze("between 2024-01-01 and 2024-01-10 or yesterday", nil)
	if got.Range == nil || !got.Range.Start().Equal(day(2024, 1, 1)) {
		t.Fatalf("expected between rule to win, got %v", got.Range)
	}
}

func TestAnalyze_AmbiguousDropped(t *testing.T) {
	tests := []string{
		"between 2024-03-10 and 2024-03-01", // inverted
		"before 2024-02-30",                // no such day
		"between Smarch 3, 2024 and May 1, 2024",
	}
	a := newTestAnalyzer()
	for _, q := range tests {
		got := a.Analyze(q, nil)
		if got.Range != nil {
			t.Errorf("%q: expected no range, got %s", q, got.Range)
		}
		if !errors.Is(got.Dropped, domain.ErrTemporalAmbiguous) {
			t.Errorf("%q: expected ErrTemporalAmbiguous, got %v", q, got.Dropped)
		}
	}
}

func TestAnalyze_NoTemporalPhrase(t *testing.T) {
	got := newTestAnalyzer().Analyze("Budget review for the Budget", nil)
	if got.Range != nil || got.Phrase != "" {
		t.Errorf("unexpected temporal result: %+v", got)
	}
	if !slices.Equal(got.Keywords, []string{"budget", "review"}) {
		t.Errorf("keywords = %v", got.Keywords)
	}
}

func TestAnalyze_TemporalWordsLeaveKeywords(t *testing.T) {
	got := newTestAnalyzer().Analyze("What did we decide about the budget last week?", nil)
	if !slices.Equal(got.Keywords, []string{"decide", "budget"}) {
		t.Errorf("keywords = %v", got.Keywords)
	}
	if got.Phrase != "last week" {
		t.Errorf("phrase = %q", got.Phrase)
	}
}

func TestAnalyze_ExplicitRangeOverrides(t *testing.T) {
	explicit, err := temporal.New(day(2020, 1, 1), day(2021, 1, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := newTestAnalyzer().Analyze("budget last week", &explicit)
	if got.Range == nil || !got.Range.Start().Equal(day(2020, 1, 1)) {
		t.Fatalf("explicit range ignored: %v", got.Range)
	}
	if !slices.Equal(got.Keywords, []string{"budget"}) {
		t.Errorf("keywords = %v", got.Keywords)
	}
}
