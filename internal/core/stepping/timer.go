package stepping

import "time"

// DefaultMaxStepsPerFrame bounds catch-up after a long stall.
const DefaultMaxStepsPerFrame = 10

// Timer turns variable real frame times into a count of fixed steps.
type Timer struct {
	delta       time.Duration
	accumulator time.Duration
	multiplier  float64
	maxSteps    int
}

func NewTimer(tickrate uint32) *Timer {
	return &Timer{
		delta:      TickDuration(tickrate),
		multiplier: 1,
		maxSteps:   DefaultMaxStepsPerFrame,
	}
}

// TickDuration is the wall-clock length of one step at tickrate.
func TickDuration(tickrate uint32) time.Duration {
	if tickrate == 0 {
		return 0
	}
	return time.Second / time.Duration(tickrate)
}

func (t *Timer) Delta() time.Duration { return t.delta }

// SetSpeedMultiplier scales real time, e.g. 4 to fast-forward a replay.
func (t *Timer) SetSpeedMultiplier(m float64) {
	if m < 0 {
		m = 0
	}
	t.multiplier = m
}

func (t *Timer) SpeedMultiplier() float64 { return t.multiplier }

// SetMaxStepsPerFrame bounds ExtractSteps. Zero or less removes the bound.
func (t *Timer) SetMaxStepsPerFrame(n int) { t.maxSteps = n }

func (t *Timer) Advance(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	if t.multiplier == 1 {
		t.accumulator += elapsed
		return
	}
	t.accumulator += time.Duration(float64(elapsed) * t.multiplier)
}

// ExtractSteps consumes whole steps from the accumulator. When the backlog
// exceeds the per-frame bound the excess time is dropped.
func (t *Timer) ExtractSteps() int {
	if t.delta <= 0 {
		return 0
	}
	n := int(t.accumulator / t.delta)
	if t.maxSteps > 0 && n > t.maxSteps {
		n = t.maxSteps
		t.accumulator = 0
		return n
	}
	t.accumulator -= time.Duration(n) * t.delta
	return n
}

// Alpha is the fraction of a step left in the accumulator, for interpolation.
func (t *Timer) Alpha() float64 {
	if t.delta <= 0 {
		return 0
	}
	return float64(t.accumulator) / float64(t.delta)
}

func (t *Timer) Reset() { t.accumulator = 0 }
