package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func bodies(n int) []Body {
	out := make([]Body, n)
	for i := range out {
		out[i] = Body{
			Pos:      Vec2{X: float64(i), Y: float64(-i)},
			Accel:    Vec2{X: 0.5 + float64(i)/7, Y: -0.25},
			Damping:  0.8,
			MaxSpeed: 12,
		}
	}
	return out
}

func TestEulerParallelMatchesSerial(t *testing.T) {
	bounds := Rect{Min: Vec2{X: -50, Y: -50}, Max: Vec2{X: 50, Y: 50}}
	serial := bodies(257)
	parallel := bodies(257)

	for step := 0; step < 200; step++ {
		Euler{Workers: 1}.Step(serial, 1.0/60, bounds)
		Euler{Workers: 8}.Step(parallel, 1.0/60, bounds)
	}
	assert.Equal(t, serial, parallel)
}

func TestEulerClampsToBounds(t *testing.T) {
	bounds := Rect{Max: Vec2{X: 1, Y: 1}}
	b := []Body{{Pos: Vec2{X: 0.5, Y: 0.5}, Vel: Vec2{X: 100, Y: 0}, Damping: 1}}

	Euler{}.Step(b, 1, bounds)

	assert.Equal(t, Vec2{X: 1, Y: 0.5}, b[0].Pos)
	assert.Zero(t, b[0].Vel.X)
}

func TestEulerLimitsSpeed(t *testing.T) {
	bounds := Rect{Min: Vec2{X: -1e6, Y: -1e6}, Max: Vec2{X: 1e6, Y: 1e6}}
	b := []Body{{Accel: Vec2{X: 1000}, Damping: 1, MaxSpeed: 5}}

	Euler{}.Step(b, 1, bounds)

	assert.InDelta(t, 5, b[0].Vel.Len(), 1e-12)
}
