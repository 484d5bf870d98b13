package ingest

import (
	"sync"
	"time"
)

// rollingWindowSize is the default window size for both the
// inter-arrival and per-sync-duration rolling windows.
const rollingWindowSize = 10

// batteryCacheTTL is how long a single "on battery" check is trusted
// before re-querying the host.
const batteryCacheTTL = 60 * time.Second

// BatteryStatusFunc reports whether the host is currently running on
// battery power. Supplied by the embedder (platform-specific), defaults
// to "never on battery" when nil.
type BatteryStatusFunc func() bool

// sparsityController recomputes the adaptive sparsity factor S from two
// rolling windows of recent inter-arrival times and sync durations.
// Guarded by a single mutex, since this state is touched from both the
// watcher's event loop and its periodic sweep.
type sparsityController struct {
	mu sync.Mutex

	sparsityFactor float64
	arrivals       []time.Duration
	syncDurations  []time.Duration
	lastEventAt    time.Time

	onBattery     BatteryStatusFunc
	batteryCached bool
	batteryAt     time.Time
}

// newSparsityController builds a controller with the given sparsity_factor
// (config-driven multiplier on p/q).
func newSparsityController(sparsityFactor float64, onBattery BatteryStatusFunc) *sparsityController {
	if sparsityFactor <= 0 {
		sparsityFactor = 1.0
	}
	return &sparsityController{sparsityFactor: sparsityFactor, onBattery: onBattery}
}

// RecordArrival notes a newly eligible pending-file event, ignoring
// inter-arrivals over 60s.
func (c *sparsityController) RecordArrival(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lastEventAt.IsZero() {
		gap := at.Sub(c.lastEventAt)
		if gap <= 60*time.Second {
			c.arrivals = pushWindow(c.arrivals, gap, rollingWindowSize)
		}
	}
	c.lastEventAt = at
}

// RecordSync notes a completed sweep/sync duration.
func (c *sparsityController) RecordSync(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncDurations = pushWindow(c.syncDurations, d, rollingWindowSize)
}

// S recomputes the sparsity divisor: S ← max(1, ceil(sparsity_factor *
// p/q)), doubled if the host reports running on battery.
func (c *sparsityController) S() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := rateFromDurations(c.arrivals)
	q := rateFromDurations(c.syncDurations)

	var s float64 = 1
	if q > 0 {
		s = c.sparsityFactor * p / q
	}
	n := int(ceilPositive(s))
	if n < 1 {
		n = 1
	}
	if c.isOnBattery() {
		n *= 2
	}
	return n
}

func (c *sparsityController) isOnBattery() bool {
	if c.onBattery == nil {
		return false
	}
	if time.Since(c.batteryAt) < batteryCacheTTL {
		return c.batteryCached
	}
	c.batteryCached = c.onBattery()
	c.batteryAt = time.Now()
	return c.batteryCached
}

func pushWindow(window []time.Duration, v time.Duration, size int) []time.Duration {
	window = append(window, v)
	if len(window) > size {
		window = window[len(window)-size:]
	}
	return window
}

// rateFromDurations returns events-per-second implied by the mean
// duration in the window.
func rateFromDurations(window []time.Duration) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range window {
		sum += d
	}
	mean := sum / time.Duration(len(window))
	if mean <= 0 {
		return 0
	}
	return float64(time.Second) / float64(mean)
}

func ceilPositive(v float64) float64 {
	i := float64(int64(v))
	if v > i {
		return i + 1
	}
	return i
}
