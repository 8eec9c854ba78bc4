// Package traffic keeps sliding windows of request outcomes and derives service health.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a finished data request.
type Outcome int

const (
	// Success is any answered request, including caller errors such as 400 and 404.
	Success Outcome = iota
	// Error is a request that failed because the upstream was unavailable (503).
	Error
	// Denied is a request rejected by the inbound rate limiter (429).
	Denied
)

// Status is the health verdict.
type Status string

const (
	StatusHealthy      Status = "healthy"
	StatusDegraded     Status = "degraded"
	StatusShuttingDown Status = "shutting-down"
)

// Config controls the health computation.
type Config struct {
	// Window is the sliding window evaluated for health.
	Window time.Duration
	// ErrorRatePct marks the service degraded when errors/(successes+errors) reaches it.
	ErrorRatePct int
	// MinRequests is the fewest successes+errors needed before the rate is trusted.
	MinRequests int
}

// DefaultConfig returns a 60s window, 50% error rate and 10 request minimum.
func DefaultConfig() Config {
	return Config{Window: time.Minute, ErrorRatePct: 50, MinRequests: 10}
}

// Snapshot is the window summary reported by health.
type Snapshot struct {
	Requests int `json:"requests"`
	Errors   int `json:"errors"`
	Denied   int `json:"denied"`
}

// Tracker maintains sliding windows of outcome timestamps. The zero value is not usable;
// call NewTracker.
type Tracker struct {
	mu        sync.Mutex
	cfg       Config
	retention time.Duration
	now       func() time.Time
	times     [3][]time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns a Tracker that keeps outcomes for the longer of cfg.Window and 5 minutes.
func NewTracker(cfg Config, opts ...Option) *Tracker {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.ErrorRatePct <= 0 {
		cfg.ErrorRatePct = def.ErrorRatePct
	}
	if cfg.MinRequests < 0 {
		cfg.MinRequests = 0
	}
	t := &Tracker{cfg: cfg, retention: 5 * time.Minute, now: time.Now}
	if cfg.Window > t.retention {
		t.retention = cfg.Window
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends one outcome at the current time.
func (t *Tracker) Record(o Outcome) {
	if o < Success || o > Denied {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.times[o] = append(t.times[o], now)
	t.pruneLocked(now)
}

// RequestCount returns the number of outcomes (success + error + denied) within window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	n := 0
	for _, times := range t.times {
		n += countSince(times, cutoff)
	}
	return n
}

// DenialCount returns the number of rate-limit denials within window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.times[Denied], t.now().Add(-window))
}

// ErrorRate returns (errorCount, totalCount) within window. Denials are excluded from total.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errors = countSince(t.times[Error], cutoff)
	return errors, errors + countSince(t.times[Success], cutoff)
}

// Snapshot summarizes the configured window.
func (t *Tracker) Snapshot() Snapshot {
	errs, _ := t.ErrorRate(t.cfg.Window)
	return Snapshot{
		Requests: t.RequestCount(t.cfg.Window),
		Errors:   errs,
		Denied:   t.DenialCount(t.cfg.Window),
	}
}

// Health returns StatusDegraded when the window holds at least MinRequests successes+errors
// and the error rate reaches ErrorRatePct, otherwise StatusHealthy.
func (t *Tracker) Health() Status {
	errs, total := t.ErrorRate(t.cfg.Window)
	if total == 0 || total < t.cfg.MinRequests {
		return StatusHealthy
	}
	if errs*100 >= t.cfg.ErrorRatePct*total {
		return StatusDegraded
	}
	return StatusHealthy
}

// Window is the configured health window.
func (t *Tracker) Window() time.Duration { return t.cfg.Window }

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.times {
		t.times[i] = nil
	}
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than the retention period. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.retention)
	for k := range t.times {
		times := t.times[k]
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			t.times[k] = append(times[:0], times[i:]...)
		}
	}
}
