package generator

import (
	"math/rand"
	"sync"
	"time"
)

// RateLimiter spaces generated lines at a nominal interval with optional jitter
type RateLimiter struct {
	mu            sync.Mutex
	interval      time.Duration
	jitterPercent float64
	random        *rand.Rand
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(interval time.Duration, jitterPercent float64) *RateLimiter {
	return &RateLimiter{
		interval:      interval,
		jitterPercent: jitterPercent,
		random:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextInterval returns the duration to wait before the next line
func (r *RateLimiter) NextInterval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.interval <= 0 {
		return 3 * time.Second
	}

	// Apply jitter if configured
	if r.jitterPercent > 0 {
		// Random value between -jitter% and +jitter%
		jitterFactor := (r.random.Float64()*2 - 1) * (r.jitterPercent / 100)
		jitterAmount := time.Duration(float64(r.interval) * jitterFactor)
		return r.interval + jitterAmount
	}

	return r.interval
}

// SetInterval updates the nominal interval
func (r *RateLimiter) SetInterval(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interval = interval
}

// SetJitterPercent updates the jitter percentage
func (r *RateLimiter) SetJitterPercent(jp float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jitterPercent = jp
}

// Ticker creates a channel that sends at the configured rate with jitter
type Ticker struct {
	limiter *RateLimiter
	C       chan time.Time
	done    chan struct{}
	once    sync.Once
}

// NewTicker creates a new ticker that fires at the rate limiter's interval
func NewTicker(limiter *RateLimiter) *Ticker {
	t := &Ticker{
		limiter: limiter,
		C:       make(chan time.Time, 1),
		done:    make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Ticker) run() {
	for {
		timer := time.NewTimer(t.limiter.NextInterval())
		select {
		case now := <-timer.C:
			select {
			case t.C <- now:
			default:
				// Channel full, skip this tick
			}
		case <-t.done:
			timer.Stop()
			return
		}
	}
}

// Stop stops the ticker. It is safe to call more than once.
func (t *Ticker) Stop() {
	t.once.Do(func() { close(t.done) })
}
