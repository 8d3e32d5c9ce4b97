// Package cosmos is the deterministic simulation world.
//
// State is split into two halves. Significant state (entity slots and their
// components, mode state, the step counter and the RNG) is everything needed
// to reproduce the world bit for bit; it is what gets serialized, hashed and
// compared. Solvable state (the spatial grid and physics body handles) is a
// cache derived from significant state and can be rebuilt at any time with
// Reinfer.
//
// The world only moves forward through Advance, one fixed delta per call. The
// step counter is the only clock.
package cosmos
