package charge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWindow(t *testing.T, start, end string) Window {
	w, err := NewWindow(start, end)
	require.NoError(t, err)
	return w
}

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestNewWindowRejectsBadFormat(t *testing.T) {
	_, err := NewWindow("23:00", "6am")
	assert.Error(t, err)
	_, err = NewWindow("25:00", "06:00")
	assert.Error(t, err)
}

func TestOvernightWindowSpansMidnight(t *testing.T) {
	w := mustWindow(t, "23:00", "06:00")

	start, end := w.Bounds(at(22, 0))
	assert.Equal(t, at(23, 0), start)
	// end < start is always interpreted as crossing midnight, never inverted
	assert.Equal(t, at(6, 0).AddDate(0, 0, 1), end)
	assert.True(t, end.After(start))
}

func TestWindowActiveOccurrenceFromYesterday(t *testing.T) {
	w := mustWindow(t, "23:00", "06:00")

	// at 05:45 the window that opened yesterday evening is still active
	start, end := w.Bounds(at(5, 45))
	assert.Equal(t, at(23, 0).AddDate(0, 0, -1), start)
	assert.Equal(t, at(6, 0), end)
	assert.True(t, w.Contains(at(5, 45)))
}

func TestWindowRollsToNextOccurrence(t *testing.T) {
	w := mustWindow(t, "23:00", "06:00")

	// mid-morning: both bounds roll to tonight's occurrence
	start, end := w.Bounds(at(10, 0))
	assert.Equal(t, at(23, 0), start)
	assert.Equal(t, at(6, 0).AddDate(0, 0, 1), end)
	assert.False(t, w.Contains(at(10, 0)))
}

func TestWindowContains(t *testing.T) {
	w := mustWindow(t, "23:00", "06:00")

	assert.True(t, w.Contains(at(23, 0)))
	assert.True(t, w.Contains(at(23, 30)))
	assert.True(t, w.Contains(at(2, 0)))
	assert.False(t, w.Contains(at(12, 0)))
	assert.False(t, w.Contains(at(22, 59)))
}

func TestRateZeroDeficit(t *testing.T) {
	w := mustWindow(t, "23:00", "06:00")
	assert.Equal(t, 0, w.Rate(0, at(23, 30)))
	assert.Equal(t, 0, w.Rate(-2.5, at(23, 30)))
}

func TestRateAtWindowEnd(t *testing.T) {
	w := mustWindow(t, "23:00", "06:00")
	// no usable time left at the very end of the window
	assert.Equal(t, 0, w.Rate(3.0, at(6, 0)))
}

func TestRateWithSafetyMargin(t *testing.T) {
	w := mustWindow(t, "23:00", "06:00")
	// 6.5h remaining, minus 1h margin: round(3000/5.5) = 545
	assert.Equal(t, 545, w.Rate(3.0, at(23, 30)))
}

func TestRateDropsMarginNearWindowClose(t *testing.T) {
	w := mustWindow(t, "23:00", "06:00")
	// 0.25h raw remaining is under 1h, so the margin is dropped:
	// round(3000/0.25) = 12000 (max-rate clamping happens downstream)
	assert.Equal(t, 12000, w.Rate(3.0, at(5, 45)))
}

func TestRateBeforeWindowUsesFullInterval(t *testing.T) {
	w := mustWindow(t, "23:00", "06:00")
	// full 7h window, minus 1h margin: round(6000/6) = 1000
	assert.Equal(t, 1000, w.Rate(6.0, at(20, 0)))
}

func TestRateSameDayWindow(t *testing.T) {
	w := mustWindow(t, "01:00", "05:00")
	// inside: 3h remaining, minus margin 1h: round(4000/2) = 2000
	assert.Equal(t, 2000, w.Rate(4.0, at(2, 0)))
}
