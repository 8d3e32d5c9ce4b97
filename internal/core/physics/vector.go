package physics

import "math"

// Vec2 is a 2D vector. Every arithmetic result is forced through an explicit
// float64 conversion so the compiler cannot fuse multiply and add, which keeps
// results identical across architectures.
type Vec2 struct{ X, Y float64 }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

func (v Vec2) Scale(s float64) Vec2 { return Vec2{X: float64(v.X * s), Y: float64(v.Y * s)} }

// AddScaled returns v + o*s.
func (v Vec2) AddScaled(o Vec2, s float64) Vec2 {
	return Vec2{X: v.X + float64(o.X*s), Y: v.Y + float64(o.Y*s)}
}

func (v Vec2) Dot(o Vec2) float64 { return float64(v.X*o.X) + float64(v.Y*o.Y) }

func (v Vec2) Len() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vec2) Normalized() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / l, Y: v.Y / l}
}

// Distance2 is the squared distance between two points.
func Distance2(a, b Vec2) float64 {
	d := b.Sub(a)
	return d.Dot(d)
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	Min, Max Vec2
}

func (r Rect) Clamp(p Vec2) Vec2 {
	return Vec2{X: math.Min(math.Max(p.X, r.Min.X), r.Max.X), Y: math.Min(math.Max(p.Y, r.Min.Y), r.Max.Y)}
}

func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}
