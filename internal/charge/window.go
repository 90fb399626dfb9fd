package charge

import (
	"math"
	"time"

	"github.com/nightcharge/nightcharge/internal/config"
)

// Window is a daily local-time interval during which grid power is assumed
// cheap. A window with end < start spans midnight.
type Window struct {
	startHour, startMin int
	endHour, endMin     int
	StartHHMM           string
	EndHHMM             string
}

func NewWindow(start, end string) (Window, error) {
	st, err := config.ParseWallClock(start)
	if err != nil {
		return Window{}, err
	}
	et, err := config.ParseWallClock(end)
	if err != nil {
		return Window{}, err
	}
	return Window{
		startHour: st.Hour(), startMin: st.Minute(),
		endHour: et.Hour(), endMin: et.Minute(),
		StartHHMM: start, EndHHMM: end,
	}, nil
}

// Bounds returns the window occurrence that contains now, or the next
// occurrence if now is outside any. An overnight window that opened yesterday
// evening is still the active occurrence this morning.
func (w Window) Bounds(now time.Time) (time.Time, time.Time) {
	year, month, day := now.Date()
	start := time.Date(year, month, day, w.startHour, w.startMin, 0, 0, now.Location())
	end := time.Date(year, month, day, w.endHour, w.endMin, 0, 0, now.Location())
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}

	// an overnight occurrence anchored to yesterday may still be open
	prevStart := start.AddDate(0, 0, -1)
	prevEnd := end.AddDate(0, 0, -1)
	if !now.Before(prevStart) && !now.After(prevEnd) {
		return prevStart, prevEnd
	}

	// otherwise roll forward to the next occurrence
	if now.After(end) {
		start = start.AddDate(0, 0, 1)
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// Contains reports whether now falls inside the active window occurrence.
func (w Window) Contains(now time.Time) bool {
	start, end := w.Bounds(now)
	return !now.Before(start) && !now.After(end)
}

// Rate computes the constant power setpoint in watts needed to clear
// deficitKWh before the window closes. A 1-hour safety margin is subtracted
// from the remaining time, but only while at least 1 hour would remain:
// a nearly-closed window uses its raw remainder instead of being silently
// discarded. Returns 0 when there is no usable time left.
func (w Window) Rate(deficitKWh float64, now time.Time) int {
	if deficitKWh <= 0 {
		return 0
	}

	start, end := w.Bounds(now)
	from := start
	if now.After(start) {
		from = now
	}

	remainingHours := end.Sub(from).Hours() - 1
	if remainingHours < 1 {
		remainingHours = end.Sub(from).Hours()
	}
	if remainingHours <= 0 {
		return 0
	}

	rate := math.Round(deficitKWh * 1000.0 / remainingHours)
	if rate < 0 {
		return 0
	}
	return int(rate)
}
