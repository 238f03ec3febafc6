package domain

import "time"

// Window is a lookback duration used to select a comparison snapshot.
type Window struct {
	Name     string
	Duration time.Duration
	Days     int64 // divisor for average daily rate, 0 if the window has no rate
}

// Lookback windows.
var (
	Window24h = Window{Name: "24h", Duration: 24 * time.Hour}
	Window7d  = Window{Name: "7d", Duration: 7 * 24 * time.Hour, Days: 7}
	Window30d = Window{Name: "30d", Duration: 30 * 24 * time.Hour, Days: 30}
)

// Windows lists all lookback windows in ascending order.
var Windows = []Window{Window24h, Window7d, Window30d}

// Boundary returns the inclusive lower bound of the window ending at t.
func (w Window) Boundary(t time.Time) time.Time {
	return t.Add(-w.Duration)
}
