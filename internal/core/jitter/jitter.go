// Package jitter buffers the input a server receives from one client and
// decides, once per tick, how much of it the next step consumes.
package jitter

import (
	"time"

	"github.com/zeusync/lockstep/internal/core/entropy"
)

// Settings are chosen by each client and validated by the server.
type Settings struct {
	BufferAtLeastSteps        uint32 `yaml:"buffer_at_least_steps" env:"STEPS"`
	BufferAtLeastMs           uint32 `yaml:"buffer_at_least_ms" env:"MS"`
	MaxCommandsToSquashAtOnce uint8  `yaml:"max_commands_to_squash_at_once" env:"MAX_SQUASH"`
}

func DefaultSettings() Settings {
	return Settings{
		BufferAtLeastSteps:        2,
		BufferAtLeastMs:           0,
		MaxCommandsToSquashAtOnce: 255,
	}
}

// Threshold is the backlog at which the buffer starts squashing.
func (s Settings) Threshold(tick time.Duration) int {
	steps := int(s.BufferAtLeastSteps)
	if tick > 0 {
		fromMs := int(time.Duration(s.BufferAtLeastMs) * time.Millisecond / tick)
		steps = max(steps, fromMs)
	}
	return steps
}

func (s Settings) squashLimit() int {
	return max(int(s.MaxCommandsToSquashAtOnce), 1)
}

// Buffer is a FIFO of entropies received from one client.
type Buffer struct {
	Settings Settings
	pending  []entropy.LocalEntropy
}

func NewBuffer(s Settings) *Buffer {
	return &Buffer{Settings: s}
}

func (b *Buffer) Push(e entropy.LocalEntropy) {
	b.pending = append(b.pending, e)
}

// Len is the number of entropies waiting to be consumed.
func (b *Buffer) Len() int { return len(b.pending) }

// Exceeds reports whether the backlog is above limit.
func (b *Buffer) Exceeds(limit int) bool { return len(b.pending) > limit }

func (b *Buffer) Clear() { b.pending = b.pending[:0] }

// Consume returns the contribution for this tick and how many buffered
// entropies it used:
//   - nothing buffered yields an empty entropy;
//   - a backlog below the threshold yields the oldest entropy;
//   - otherwise up to MaxCommandsToSquashAtOnce oldest entropies are merged.
func (b *Buffer) Consume(tick time.Duration) (entropy.LocalEntropy, uint8) {
	pending := len(b.pending)
	if pending == 0 {
		return entropy.LocalEntropy{}, 0
	}

	n := 1
	if pending >= b.Settings.Threshold(tick) {
		n = min(pending, b.Settings.squashLimit())
	}

	out := b.pending[0]
	if n > 1 {
		out = out.Clone()
	}
	for _, e := range b.pending[1:n] {
		out.Merge(e)
	}
	clear(b.pending[:n])
	b.pending = b.pending[n:]
	if len(b.pending) == 0 {
		b.pending = nil
	}
	return out, uint8(n)
}
