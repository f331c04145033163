package detector

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const lagSamples = 10

// LagSource reports scheduler delay as a rolling average.
type LagSource interface {
	// Lag returns the average delay and false while no sample exists yet.
	Lag() (time.Duration, bool)
}

// DriftSampler measures how late a periodic timer fires compared to its
// interval. The average over the last ten ticks approximates scheduler lag.
type DriftSampler struct {
	clock    clock.Clock
	interval time.Duration

	mu      sync.Mutex
	samples [lagSamples]time.Duration
	next    int
	filled  int
}

// NewDriftSampler creates a sampler ticking every interval.
func NewDriftSampler(clk clock.Clock, interval time.Duration) *DriftSampler {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &DriftSampler{clock: clk, interval: interval}
}

// Run samples drift until ctx is done.
func (s *DriftSampler) Run(ctx context.Context) {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	last := s.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.clock.Now()
			s.observe(now.Sub(last) - s.interval)
			last = now
		}
	}
}

func (s *DriftSampler) observe(drift time.Duration) {
	if drift < 0 {
		drift = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples[s.next] = drift
	s.next = (s.next + 1) % lagSamples
	if s.filled < lagSamples {
		s.filled++
	}
}

// Lag implements LagSource.
func (s *DriftSampler) Lag() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filled == 0 {
		return 0, false
	}
	var total time.Duration
	for i := 0; i < s.filled; i++ {
		total += s.samples[i]
	}
	return total / time.Duration(s.filled), true
}
