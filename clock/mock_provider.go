package clock

import (
	"sync"
	"time"
)

// MockProvider is a controllable Provider for tests
// With a non-zero step every Now() call also moves time forward,
// which models cost accounting around code that does not touch the clock itself
type MockProvider struct {
	mu          sync.Mutex
	currentTime time.Time
	step        time.Duration
}

// NewMockProvider creates a mock provider frozen at startTime
func NewMockProvider(startTime time.Time) *MockProvider {
	return &MockProvider{
		currentTime: startTime,
	}
}

// Now returns the mocked time, then applies the auto step
func (m *MockProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.currentTime
	m.currentTime = m.currentTime.Add(m.step)
	return now
}

// SetTime sets the current time
func (m *MockProvider) SetTime(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
}

// Advance moves time forward by d
func (m *MockProvider) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

// SetStep makes each Now() call advance time by d; zero freezes the clock again
func (m *MockProvider) SetStep(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.step = d
}
