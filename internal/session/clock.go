// Package session holds the per-terminal session state: the refresh clock
// that drives fetch cycles and the persisted login token.
package session

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ClockConfig sets the clock cadences. Zero values use the defaults.
type ClockConfig struct {
	Interval      time.Duration // fetch cycle period, default 60s
	CountdownTick time.Duration // countdown step, default 1s
	CountdownFrom int           // countdown reset value, default 60
}

func (c ClockConfig) withDefaults() ClockConfig {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.CountdownTick <= 0 {
		c.CountdownTick = time.Second
	}
	if c.CountdownFrom <= 0 {
		c.CountdownFrom = 60
	}
	return c
}

// Clock fires a fetch cycle immediately on Start and then every Interval,
// and runs an independent display countdown. At most one pair of loops runs
// at a time.
//
// Each cycle runs on its own goroutine so a slow fetch never delays the next
// tick and a cycle may call Stop itself.
type Clock struct {
	cfg         ClockConfig
	onCycle     func()
	onCountdown func(int)
	logger      *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
	count   atomic.Int64
	cycles  atomic.Int64
}

// NewClock creates an idle clock. onCountdown may be nil.
func NewClock(cfg ClockConfig, onCycle func(), onCountdown func(int), logger *slog.Logger) *Clock {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	c := &Clock{
		cfg:         cfg,
		onCycle:     onCycle,
		onCountdown: onCountdown,
		logger:      logger,
	}
	c.count.Store(int64(cfg.CountdownFrom))
	return c
}

// Start launches the fetch and countdown loops. A running clock is stopped
// first, so Start never leaves two schedules alive.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	stop := make(chan struct{})
	c.stop = stop
	c.count.Store(int64(c.cfg.CountdownFrom))
	c.running.Store(true)

	c.wg.Add(2)
	go c.fetchLoop(stop)
	go c.countdownLoop(stop)

	c.logger.Debug("clock started", "interval", c.cfg.Interval)
}

// Stop halts both loops and returns once they have exited; no cycle is
// fired after Stop returns. Cycles already dispatched keep running. Stop on
// an idle clock is a no-op.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Clock) stopLocked() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	c.stop = nil
	c.wg.Wait()
	c.running.Store(false)
	c.logger.Debug("clock stopped")
}

// Running reports whether the loops are active.
func (c *Clock) Running() bool { return c.running.Load() }

// Countdown returns the seconds shown until the next refresh.
func (c *Clock) Countdown() int { return int(c.count.Load()) }

// Cycles returns how many cycles have been dispatched since creation.
func (c *Clock) Cycles() int64 { return c.cycles.Load() }

func (c *Clock) fire() {
	c.cycles.Add(1)
	go c.onCycle()
}

func (c *Clock) fetchLoop(stop <-chan struct{}) {
	defer c.wg.Done()

	c.fire()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Stop may race with the tick; stop wins.
			select {
			case <-stop:
				return
			default:
			}
			c.fire()
		}
	}
}

func (c *Clock) countdownLoop(stop <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.CountdownTick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n := c.count.Add(-1)
			if c.onCountdown != nil {
				c.onCountdown(int(n))
			}
			if n <= 0 {
				c.count.Store(int64(c.cfg.CountdownFrom))
			}
		}
	}
}
