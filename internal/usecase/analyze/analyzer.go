// Package analyze extracts lexical keywords and an optional temporal constraint from a query.
package analyze

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
	"github.com/kailas-cloud/recall/internal/lexical"
)

// Analysis is the structured form of a query.
type Analysis struct {
	Raw      string
	Keywords []string
	// Range is nil when the query carries no usable temporal constraint.
	Range *temporal.Range
	// Phrase is the temporal phrase found in the text, empty if none.
	Phrase string
	// Dropped is set when a temporal phrase was found but could not be resolved.
	Dropped error
}

const datePattern = `(\d{4}-\d{1,2}-\d{1,2}|[a-z]+\.?\s+\d{1,2},?\s+\d{4}|\d{1,2}\s+[a-z]+\.?\s+\d{4})`

var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
}

type resolver func(m []string, now time.Time) (temporal.Range, error)

type rule struct {
	re      *regexp.Regexp
	resolve resolver
}

// rules are tried in order; the first match wins.
var rules = []rule{
	{regexp.MustCompile(`\bbetween\s+` + datePattern + `\s+and\s+` + datePattern), resolveBetween},
	{regexp.MustCompile(`\bbefore\s+` + datePattern), resolveBefore},
	{regexp.MustCompile(`\bin\s+(january|february|march|april|may|june|july|august|september|october|november|december)\b`), resolveMonth},
	{regexp.MustCompile(`\byesterday\b`), resolveYesterday},
	{regexp.MustCompile(`\blast\s+week\b`), resolveLast(7 * 24 * time.Hour)},
	{regexp.MustCompile(`\blast\s+month\b`), resolveLast(30 * 24 * time.Hour)},
	{regexp.MustCompile(`\bthis\s+year\b`), resolveThisYear},
}

// Analyzer turns query text into an Analysis relative to an injected clock.
type Analyzer struct {
	now func() time.Time
}

// New creates an analyzer. A nil clock uses time.Now.
func New(now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{now: now}
}

// Analyze extracts keywords and the temporal range. An explicit range replaces
// whatever the text implies; the temporal phrase is still kept out of the keywords.
func (a *Analyzer) Analyze(text string, explicit *temporal.Range) Analysis {
	out := Analysis{Raw: text}
	lower := strings.ToLower(text)
	rest := lower

	for _, r := range rules {
		loc := r.re.FindStringSubmatchIndex(lower)
		if loc == nil {
			continue
		}
		m := submatches(lower, loc)
		out.Phrase = m[0]
		rest = lower[:loc[0]] + " " + lower[loc[1]:]

		rng, err := r.resolve(m, a.now())
		if err != nil {
			out.Dropped = fmt.Errorf("%w: %q: %w", domain.ErrTemporalAmbiguous, m[0], err)
		} else {
			out.Range = &rng
		}
		break
	}

	if explicit != nil {
		rng := *explicit
		out.Range = &rng
		out.Dropped = nil
	}
	out.Keywords = lexical.Keywords(rest)
	return out
}

func submatches(s string, loc []int) []string {
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return m
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, ".", "")), " ")
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func resolveBetween(m []string, now time.Time) (temporal.Range, error) {
	from, err := parseDate(m[1], now.Location())
	if err != nil {
		return temporal.Range{}, err
	}
	to, err := parseDate(m[2], now.Location())
	if err != nil {
		return temporal.Range{}, err
	}
	return temporal.New(from, to)
}

func resolveBefore(m []string, now time.Time) (temporal.Range, error) {
	to, err := parseDate(m[1], now.Location())
	if err != nil {
		return temporal.Range{}, err
	}
	return temporal.New(time.Unix(0, 0).In(now.Location()), to)
}

// resolveMonth picks the most recent occurrence of the month that has already begun.
func resolveMonth(m []string, now time.Time) (temporal.Range, error) {
	month := monthNames[m[1]]
	year := now.Year()
	if month > now.Month() {
		year--
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	return temporal.New(start, start.AddDate(0, 1, 0))
}

func resolveYesterday(_ []string, now time.Time) (temporal.Range, error) {
	today := startOfDay(now)
	return temporal.New(today.AddDate(0, 0, -1), today)
}

func resolveLast(d time.Duration) resolver {
	return func(_ []string, now time.Time) (temporal.Range, error) {
		return temporal.New(now.Add(-d), now)
	}
}

func resolveThisYear(_ []string, now time.Time) (temporal.Range, error) {
	return temporal.New(time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), now)
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
