package engine

import (
	"fmt"
	"time"

	"github.com/lixenwraith/sixty-below/constant"
)

// Budget is the per-phase frame time allowance
type Budget struct {
	Update time.Duration
	Render time.Duration
	Micro  time.Duration
}

// BudgetFromMillis builds a budget from whole-millisecond settings
func BudgetFromMillis(updateMs, renderMs, microMs int) Budget {
	return Budget{
		Update: time.Duration(updateMs) * time.Millisecond,
		Render: time.Duration(renderMs) * time.Millisecond,
		Micro:  time.Duration(microMs) * time.Millisecond,
	}
}

// DefaultBudget is 3ms update, 4ms render, 5ms microtasks
func DefaultBudget() Budget {
	return BudgetFromMillis(constant.BudgetUpdateMs, constant.BudgetRenderMs, constant.BudgetMicrotaskMs)
}

// Total is the frame ceiling handed to the microtask phase before subtracting spent time
func (b Budget) Total() time.Duration {
	return b.Update + b.Render + b.Micro
}

// Validate rejects non-positive phase budgets
func (b Budget) Validate() error {
	if b.Update <= 0 || b.Render <= 0 || b.Micro <= 0 {
		return fmt.Errorf("frame budget phases must be positive: %+v", b)
	}
	return nil
}

// ClampDelta applies the frame gap policy to a raw frame delta
// Negative deltas (clock skew) become zero, gaps beyond MaxFrameGap become one
// nominal frame, and anything above MaxFrameDelta is clamped to it
func ClampDelta(dt time.Duration) time.Duration {
	switch {
	case dt < 0:
		return 0
	case dt > constant.MaxFrameGap:
		return constant.NominalFrame
	case dt > constant.MaxFrameDelta:
		return constant.MaxFrameDelta
	default:
		return dt
	}
}
