package domain

import "time"

// Period is a symbolic date range resolved relative to "now"
type Period string

const (
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
	PeriodCustom  Period = "custom"
)

// Valid reports whether p is one of the known periods
func (p Period) Valid() bool {
	switch p {
	case PeriodMonth, PeriodQuarter, PeriodYear, PeriodCustom:
		return true
	}
	return false
}

// Window is a half-open [Start, End) time range
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Empty reports whether the window covers no instant
func (w Window) Empty() bool {
	return !w.Start.Before(w.End)
}

// Intersect returns the overlap of two windows. The result may be Empty.
func (w Window) Intersect(o Window) Window {
	out := w
	if o.Start.After(out.Start) {
		out.Start = o.Start
	}
	if o.End.Before(out.End) {
		out.End = o.End
	}
	return out
}
