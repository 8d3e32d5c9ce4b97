// Package stepping bridges variable frame times to fixed simulation steps
// and records or replays the input of those steps.
package stepping

import (
	"time"

	"github.com/zeusync/lockstep/internal/core/entropy"
)

type Mode uint8

const (
	Live Mode = iota
	Recording
	Replaying
)

func (m Mode) String() string {
	switch m {
	case Live:
		return "live"
	case Recording:
		return "recording"
	case Replaying:
		return "replaying"
	}
	return "unknown"
}

// Step is one fixed step to simulate and its input.
type Step struct {
	Index   uint64
	Entropy entropy.LocalEntropy
}

// Unpacker turns frames of wall-clock time and input into steps.
type Unpacker struct {
	tickrate uint32
	timer    *Timer
	mode     Mode
	next     uint64
	pending  entropy.LocalEntropy
	session  *Session
}

// NewUnpacker starts emitting steps at index start.
func NewUnpacker(tickrate uint32, start uint64) *Unpacker {
	return &Unpacker{tickrate: tickrate, timer: NewTimer(tickrate), next: start}
}

func (u *Unpacker) Timer() *Timer { return u.timer }

func (u *Unpacker) Mode() Mode { return u.mode }

// Next is the index of the next step to be emitted.
func (u *Unpacker) Next() uint64 { return u.next }

// Control adds a frame's input. Input collected over several frames without
// a step is merged and fed to the next emitted step. Input is ignored while
// replaying.
func (u *Unpacker) Control(e entropy.LocalEntropy) {
	if u.mode == Replaying {
		return
	}
	u.pending.Merge(e)
}

// StartRecording begins a new session at the next step.
func (u *Unpacker) StartRecording() {
	u.mode = Recording
	u.session = &Session{
		Tickrate: u.tickrate,
		Start:    u.next,
	}
}

// StopRecording returns the recorded session and switches back to live input.
func (u *Unpacker) StopRecording() *Session {
	if u.mode != Recording {
		return nil
	}
	s := u.session
	s.Length = u.next - s.Start
	u.session = nil
	u.mode = Live
	return s
}

// Replay re-emits s from its first step. Live input is discarded until the
// session is exhausted, after which the unpacker returns to live mode.
func (u *Unpacker) Replay(s *Session) {
	if s.Length == 0 {
		return
	}
	u.mode = Replaying
	u.session = s
	u.next = s.Start
	u.pending = entropy.LocalEntropy{}
	u.timer.Reset()
}

// Unpack advances the clock by elapsed and returns the steps that are due.
func (u *Unpacker) Unpack(elapsed time.Duration) []Step {
	u.timer.Advance(elapsed)
	n := u.timer.ExtractSteps()
	if n == 0 {
		return nil
	}

	steps := make([]Step, 0, n)
	fed := false
	for i := 0; i < n; i++ {
		step := Step{Index: u.next}
		switch u.mode {
		case Replaying:
			step.Entropy = u.session.At(u.next)
		default:
			if !fed {
				step.Entropy = u.pending
				u.pending = entropy.LocalEntropy{}
				fed = true
			}
			if u.mode == Recording && !step.Entropy.IsEmpty() {
				u.session.Records = append(u.session.Records, Record{Step: u.next, Entropy: step.Entropy.Clone()})
			}
		}
		steps = append(steps, step)
		u.next++

		// The rest of the frame continues live.
		if u.mode == Replaying && u.next >= u.session.End() {
			u.mode = Live
			u.session = nil
		}
	}
	return steps
}
