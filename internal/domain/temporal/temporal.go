package temporal

import (
	"fmt"
	"time"
)

// Range is a half-open time interval [Start, End).
type Range struct {
	start time.Time
	end   time.Time
}

// New validates and creates a Range. End must be strictly after Start.
func New(start, end time.Time) (Range, error) {
	if !end.After(start) {
		return Range{}, fmt.Errorf("range end %s must be after start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Range{start: start, end: end}, nil
}

// Start returns the inclusive lower bound.
func (r Range) Start() time.Time { return r.start }

// End returns the exclusive upper bound.
func (r Range) End() time.Time { return r.end }

// Contains reports whether t falls inside [Start, End).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.start) && t.Before(r.end)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.start.Format(time.RFC3339), r.end.Format(time.RFC3339))
}
