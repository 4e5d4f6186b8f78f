package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Window is a fixed rate-limit window
type Window string

// Supported windows
const (
	WindowSecond Window = "second"
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
	WindowDay    Window = "day"
)

// Windows lists the windows in checking order, shortest first
var Windows = []Window{WindowSecond, WindowMinute, WindowHour, WindowDay}

// Duration returns the window length
func (w Window) Duration() time.Duration {
	switch w {
	case WindowSecond:
		return time.Second
	case WindowMinute:
		return time.Minute
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Limits holds the maximum request counts per window. A zero value for a
// window disables that window.
type Limits struct {
	PerSecond int
	PerMinute int
	PerHour   int
	PerDay    int
}

// forWindow returns the configured limit for a window
func (l Limits) forWindow(w Window) int {
	switch w {
	case WindowSecond:
		return l.PerSecond
	case WindowMinute:
		return l.PerMinute
	case WindowHour:
		return l.PerHour
	case WindowDay:
		return l.PerDay
	default:
		return 0
	}
}

// HeaderInfo carries the tightest observed limit state across all checked
// windows, for reporting back to the client.
type HeaderInfo struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Merge folds another observation in, keeping the tightest remaining count.
// A zero observation (no windows checked) is ignored.
func (h *HeaderInfo) Merge(other HeaderInfo) {
	if other.Limit == 0 {
		return
	}
	if h.Limit == 0 || other.Remaining < h.Remaining {
		*h = other
	}
}

// Apply writes the standard rate-limit headers
func (h HeaderInfo) Apply(w http.ResponseWriter) {
	if h.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(h.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(h.Reset.Unix(), 10))
}
