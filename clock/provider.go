package clock

import "time"

// Provider supplies wall-clock readings used for budget accounting
type Provider interface {
	Now() time.Time
}

// MonotonicProvider reads the real system time with its monotonic component
// Used for frame and task cost measurement, never for game time
type MonotonicProvider struct{}

// NewMonotonicProvider creates a real-time provider
func NewMonotonicProvider() *MonotonicProvider {
	return &MonotonicProvider{}
}

// Now returns the current time with monotonic clock reading
func (p *MonotonicProvider) Now() time.Time {
	return time.Now()
}
