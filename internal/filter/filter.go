package filter

import (
	"time"

	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
)

// DateLayout is the wire format of window bounds
const DateLayout = "2006-01-02"

// Window is a closed interval of calendar dates. Both ends are inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates and normalizes a date window. Only the date component of start and end is kept.
func NewWindow(start, end time.Time) (Window, error) {
	if start.IsZero() || end.IsZero() {
		return Window{}, utils.NewInputError("INVALID_WINDOW", "window bounds are required")
	}
	w := Window{Start: civilDate(start), End: civilDate(end)}
	if w.End.Before(w.Start) {
		return Window{}, utils.NewInputError("INVALID_WINDOW",
			"end date %s is before start date %s", w.End.Format(DateLayout), w.Start.Format(DateLayout))
	}
	return w, nil
}

// ParseWindow parses YYYY-MM-DD bounds
func ParseWindow(start, end string) (Window, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return Window{}, utils.NewInputError("INVALID_DATE", "malformed start date %q", start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return Window{}, utils.NewInputError("INVALID_DATE", "malformed end date %q", end)
	}
	return NewWindow(s, e)
}

// MustWindow panics on an invalid window. Intended for defaults and tests.
func MustWindow(start, end string) Window {
	w, err := ParseWindow(start, end)
	if err != nil {
		panic(err)
	}
	return w
}

// Contains reports whether the date of ts, read in ts's own location, falls inside the window
func (w Window) Contains(ts time.Time) bool {
	d := civilDate(ts)
	return !d.Before(w.Start) && !d.After(w.End)
}

// QueryBounds returns the instant range used for upstream range scans.
// It is padded by a day on each side since timestamps are matched on their local date afterwards.
func (w Window) QueryBounds() (time.Time, time.Time) {
	return w.Start.AddDate(0, 0, -1), w.End.AddDate(0, 0, 2)
}

func (w Window) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}

// civilDate drops the clock and the zone, keeping the calendar date as seen in t's location
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsFinal reports whether a raw status pair marks a completed transfer
func IsFinal(status, simplifiedStatus string) bool {
	return status == models.StatusExecuted && simplifiedStatus == models.SimplifiedStatusReceived
}

// TouchesChain reports whether the transfer starts or ends on chain
func TouchesChain(t *models.NormalizedTransfer, chain string) bool {
	return t.MatchesFilter(&models.ChainFilter{Chain: chain})
}

// Apply keeps the transfers that touch chain and fall inside the window.
// The input is not modified and the result never aliases it.
func Apply(transfers []models.NormalizedTransfer, chain string, w Window) []models.NormalizedTransfer {
	out := make([]models.NormalizedTransfer, 0, len(transfers))
	for i := range transfers {
		t := &transfers[i]
		if !TouchesChain(t, chain) || !w.Contains(t.Timestamp) {
			continue
		}
		out = append(out, *t)
	}
	return out
}
