package detector

import "time"

const (
	metricsWindow        = 5 * time.Minute
	authFailureWindow    = 5 * time.Minute
	trafficHistoryWindow = 10 * time.Minute
	trafficRateWindow    = 60 * time.Second
	trafficBaselineSize  = 5
)

type requestSample struct {
	at        time.Time
	duration  time.Duration
	isError   bool
	errorType string
}

type authFailure struct {
	at          time.Time
	failureType string
}

type trafficSample struct {
	at    time.Time
	count int
}

// requestWindow holds request outcomes for the trailing metrics window, oldest first.
type requestWindow struct {
	samples []requestSample
}

func (w *requestWindow) add(s requestSample) {
	w.samples = append(w.samples, s)
}

// prune drops samples older than the window. A sample exactly at the cutoff is kept.
func (w *requestWindow) prune(now time.Time) {
	cutoff := now.Add(-metricsWindow)
	drop := 0
	for _, s := range w.samples {
		if !s.at.Before(cutoff) {
			break
		}
		drop++
	}
	if drop > 0 {
		w.samples = append(w.samples[:0:0], w.samples[drop:]...)
	}
}

func (w *requestWindow) len() int {
	return len(w.samples)
}

func (w *requestWindow) errors() int {
	n := 0
	for _, s := range w.samples {
		if s.isError {
			n++
		}
	}
	return n
}

// errorsSince counts errors strictly after since.
func (w *requestWindow) errorsSince(since time.Time) int {
	n := 0
	for _, s := range w.samples {
		if s.isError && s.at.After(since) {
			n++
		}
	}
	return n
}

// countSince counts requests strictly after since.
func (w *requestWindow) countSince(since time.Time) int {
	n := 0
	for _, s := range w.samples {
		if s.at.After(since) {
			n++
		}
	}
	return n
}

// lastSuccesses returns up to n most recent non-error samples, oldest first.
func (w *requestWindow) lastSuccesses(n int) []requestSample {
	out := make([]requestSample, 0, n)
	for i := len(w.samples) - 1; i >= 0 && len(out) < n; i-- {
		if !w.samples[i].isError {
			out = append(out, w.samples[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// averageMillis is the mean duration in milliseconds, 0 when empty.
func (w *requestWindow) averageMillis() float64 {
	if len(w.samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range w.samples {
		total += s.duration
	}
	return float64(total.Milliseconds()) / float64(len(w.samples))
}

// trafficHistory keeps per-check request counts and freezes a baseline rate
// once enough samples have been seen.
type trafficHistory struct {
	samples     []trafficSample
	baseline    float64
	baselineSet bool
}

func (h *trafficHistory) add(now time.Time, count int) {
	h.samples = append(h.samples, trafficSample{at: now, count: count})

	cutoff := now.Add(-trafficHistoryWindow)
	drop := 0
	for _, s := range h.samples {
		if s.at.After(cutoff) {
			break
		}
		drop++
	}
	h.samples = h.samples[drop:]

	if !h.baselineSet && len(h.samples) >= trafficBaselineSize {
		var sum float64
		for _, s := range h.samples {
			sum += rate(s.count)
		}
		h.baseline = sum / float64(len(h.samples))
		h.baselineSet = true
	}
}

// rate converts a trailing-minute request count into requests per second.
func rate(count int) float64 {
	return float64(count) / trafficRateWindow.Seconds()
}
