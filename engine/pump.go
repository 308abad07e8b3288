package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/sixty-below/clock"
)

// FrameCallback receives the display time of the frame being fired
type FrameCallback func(now time.Time)

// FramePump holds at most one armed frame callback and fires it on the display cadence
// A callback that wants the next frame must Request again, which the loop does first thing
type FramePump struct {
	mu    sync.Mutex
	armed FrameCallback
	log   logrus.FieldLogger
}

// NewFramePump creates a pump with nothing armed
func NewFramePump(log logrus.FieldLogger) *FramePump {
	return &FramePump{log: log.WithField("component", "pump")}
}

// Request arms cb for the next Fire; false when a callback is already armed
func (p *FramePump) Request(cb FrameCallback) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.armed != nil {
		return false
	}
	p.armed = cb
	return true
}

// Cancel disarms the pending callback
func (p *FramePump) Cancel() {
	p.mu.Lock()
	p.armed = nil
	p.mu.Unlock()
}

// Armed reports whether a callback waits for the next Fire
func (p *FramePump) Armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.armed != nil
}

// Fire disarms and runs the pending callback, reporting whether one ran
// A panic in the callback is logged and swallowed so the pump keeps going
func (p *FramePump) Fire(now time.Time) bool {
	p.mu.Lock()
	cb := p.armed
	p.armed = nil
	p.mu.Unlock()

	if cb == nil {
		return false
	}
	if err := fire(cb, now); err != nil {
		p.log.WithError(err).Error("frame callback failed")
	}
	return true
}

func fire(cb FrameCallback, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	cb(now)
	return nil
}

// Run fires the pump every interval until ctx is cancelled
// Ticks missed while a frame overran are dropped by the ticker, not queued
func (p *FramePump) Run(ctx context.Context, interval time.Duration, clk clock.Provider) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Fire(clk.Now())
		}
	}
}
