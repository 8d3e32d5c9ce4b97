package physics

import "github.com/zeusync/lockstep/pkg/concurrent"

// Body is the integrator's view of a moving object.
type Body struct {
	Pos      Vec2
	Vel      Vec2
	Accel    Vec2
	Damping  float64 // fraction of velocity kept per second, in [0, 1]
	MaxSpeed float64
}

// Integrator advances bodies by a fixed dt. It must be a pure function of its
// inputs.
type Integrator interface {
	Step(bodies []Body, dt float64, bounds Rect)
}

// Euler is a semi-implicit Euler integrator. Bodies are independent of each
// other, so they are split across Workers goroutines and joined before Step
// returns.
type Euler struct {
	Workers int
	// MinParallel is the body count below which Step runs on the caller goroutine.
	MinParallel int
}

func (e Euler) Step(bodies []Body, dt float64, bounds Rect) {
	workers := e.Workers
	if len(bodies) < e.MinParallel {
		workers = 1
	}
	concurrent.ForEachChunk(len(bodies), workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			integrate(&bodies[i], dt, bounds)
		}
	})
}

func integrate(b *Body, dt float64, bounds Rect) {
	b.Vel = b.Vel.AddScaled(b.Accel, dt)
	if b.Damping < 1 {
		// linear approximation of damping^dt, good enough at fixed small dt
		keep := 1 - float64((1-b.Damping)*dt)
		b.Vel = b.Vel.Scale(keep)
	}
	if b.MaxSpeed > 0 {
		if s := b.Vel.Len(); s > b.MaxSpeed {
			b.Vel = b.Vel.Scale(b.MaxSpeed / s)
		}
	}
	next := b.Pos.AddScaled(b.Vel, dt)
	clamped := bounds.Clamp(next)
	if clamped.X != next.X {
		b.Vel.X = 0
	}
	if clamped.Y != next.Y {
		b.Vel.Y = 0
	}
	b.Pos = clamped
}
