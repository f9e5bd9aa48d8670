package audio

import (
	"strconv"
	"time"
)

// Window is one chunk boundary, half-open: [Start, End).
type Window struct {
	Index int
	Start time.Duration
	End   time.Duration
}

// Span converts the window into an encoder span.
func (w Window) Span() Span {
	return Span{Start: w.Start, Length: w.End - w.Start}
}

// Name returns "<stem>_<start>-<end>.<ext>" with boundaries in seconds.
// Whole seconds print without a fractional part.
func (w Window) Name(stem, ext string) string {
	return stem + "_" + formatSeconds(w.Start) + "-" + formatSeconds(w.End) + "." + ext
}

// Plan splits total into consecutive windows of length window starting at 0.
// The final window is shorter when total is not a multiple of window.
func Plan(total, window time.Duration) []Window {
	if total <= 0 || window <= 0 {
		return nil
	}
	count := int((total + window - 1) / window)
	windows := make([]Window, 0, count)
	for i := 0; i < count; i++ {
		start := time.Duration(i) * window
		end := start + window
		if end > total {
			end = total
		}
		windows = append(windows, Window{Index: i, Start: start, End: end})
	}
	return windows
}

func formatSeconds(d time.Duration) string {
	ms := d.Round(time.Millisecond).Milliseconds()
	return strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
}
