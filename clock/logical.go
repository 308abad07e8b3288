package clock

import "time"

// Logical is the game's elapsed-time counter
// It advances only by simulation delta-time, never by wall clock,
// and holds still while paused
type Logical struct {
	elapsed time.Duration
	paused  bool

	// Cumulative dt dropped while paused, for diagnostics
	pausedFor time.Duration
}

// NewLogical creates a clock at zero
func NewLogical() *Logical {
	return &Logical{}
}

// Advance adds dt unless paused, returning the dt actually applied
func (c *Logical) Advance(dt time.Duration) time.Duration {
	if dt <= 0 {
		return 0
	}
	if c.paused {
		c.pausedFor += dt
		return 0
	}
	c.elapsed += dt
	return dt
}

// Now returns elapsed logical time
func (c *Logical) Now() time.Duration {
	return c.elapsed
}

// Set restores elapsed time, used when resuming a saved session
func (c *Logical) Set(elapsed time.Duration) {
	c.elapsed = elapsed
}

// Pause stops advancement
func (c *Logical) Pause() {
	c.paused = true
}

// Resume continues advancement
func (c *Logical) Resume() {
	c.paused = false
}

// IsPaused returns current pause state
func (c *Logical) IsPaused() bool {
	return c.paused
}

// PausedFor returns the total dt discarded while paused
func (c *Logical) PausedFor() time.Duration {
	return c.pausedFor
}
