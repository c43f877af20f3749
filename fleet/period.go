package fleet

// =============================================================================
// PERIOD - Closed day interval covered by a rent
// =============================================================================

// Period is the closed interval [Start, End]. A rent ending on day X and
// another starting on day X share day X.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod returns the period [start, end] or a validation error when
// either bound is missing or start is after end.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate reports a malformed period.
func (p Period) Validate() error {
	if p.Start.IsZero() {
		return &ValidationError{Kind: KindRent, Field: "rent_date", Reason: "is required"}
	}
	if p.End.IsZero() {
		return &ValidationError{Kind: KindRent, Field: "due_date", Reason: "is required"}
	}
	if p.Start.After(p.End) {
		return &ValidationError{Kind: KindRent, Field: "rent_date", Reason: "must not be after due_date", Err: ErrInvalidPeriod}
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps reports whether [a,b] and [c,d] share a day: a <= d and c <= b.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Days returns the number of days in the period, both ends included.
func (p Period) Days() int {
	if p.Start.After(p.End) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
