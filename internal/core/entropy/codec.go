package entropy

import (
	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/pkg/encoding"
)

var (
	ErrMalformed   = errors.New("entropy: malformed data")
	ErrPlayerOrder = errors.New("entropy: player entries not in ascending order")
)

const (
	localHasIntents uint8 = 1 << iota
	localHasMotions
	localHasMode
)

// MarshalTo writes e. An empty entropy takes exactly one byte.
func (e LocalEntropy) MarshalTo(w *encoding.Writer) {
	var flags uint8
	if len(e.Intents) > 0 {
		flags |= localHasIntents
	}
	if !e.Motions.IsZero() {
		flags |= localHasMotions
	}
	if e.Mode != nil {
		flags |= localHasMode
	}
	w.U8(flags)

	if flags&localHasIntents != 0 {
		w.Uvarint(uint64(len(e.Intents)))
		for _, i := range e.Intents {
			w.U8(uint8(i.Type))
			w.U8(uint8(i.Change))
		}
	}
	if flags&localHasMotions != 0 {
		for _, m := range e.Motions {
			w.Varint(int64(m.X))
			w.Varint(int64(m.Y))
		}
	}
	if flags&localHasMode != 0 {
		writeModeCommand(w, e.Mode)
	}
}

func (e *LocalEntropy) UnmarshalFrom(r *encoding.Reader) error {
	*e = LocalEntropy{}
	flags := r.U8()
	if flags&^(localHasIntents|localHasMotions|localHasMode) != 0 {
		r.Fail(errors.Wrapf(ErrMalformed, "local entropy flags %#x", flags))
		return r.Err()
	}

	if flags&localHasIntents != 0 {
		// each intent takes two bytes
		n := r.Uvarint()
		if n == 0 || n > uint64(r.Remaining()/2) {
			r.Fail(errors.Wrapf(ErrMalformed, "intent count %d", n))
			return r.Err()
		}
		e.Intents = make([]Intent, n)
		for k := range e.Intents {
			in := Intent{Type: IntentType(r.U8()), Change: IntentChange(r.U8())}
			if r.Err() == nil && !in.valid() {
				r.Fail(errors.Wrapf(ErrMalformed, "intent %d/%d", in.Type, in.Change))
			}
			e.Intents[k] = in
		}
	}
	if flags&localHasMotions != 0 {
		for k := range e.Motions {
			e.Motions[k] = Motion{X: readInt32(r), Y: readInt32(r)}
		}
	}
	if flags&localHasMode != 0 {
		e.Mode = readModeCommand(r)
	}
	return r.Err()
}

func readInt32(r *encoding.Reader) int32 {
	v := r.Varint()
	if v < -1<<31 || v > 1<<31-1 {
		r.Fail(errors.Wrapf(ErrMalformed, "value %d overflows int32", v))
		return 0
	}
	return int32(v)
}

const (
	generalHasAdded uint8 = 1 << iota
	generalHasRemoved
	generalHasSpecial
)

func (g GeneralEntropy) MarshalTo(w *encoding.Writer) {
	var flags uint8
	if g.AddedPlayer.IsSet() {
		flags |= generalHasAdded
	}
	if g.RemovedPlayer.IsSet() {
		flags |= generalHasRemoved
	}
	if g.Special != nil {
		flags |= generalHasSpecial
	}
	w.U8(flags)

	if flags&generalHasAdded != 0 {
		w.U32(uint32(g.AddedPlayer.ID))
		w.String(g.AddedPlayer.Name)
		w.U8(uint8(g.AddedPlayer.Faction))
	}
	if flags&generalHasRemoved != 0 {
		w.U32(uint32(g.RemovedPlayer))
	}
	if flags&generalHasSpecial != 0 {
		writeGeneralCommand(w, g.Special)
	}
}

func (g *GeneralEntropy) UnmarshalFrom(r *encoding.Reader) error {
	*g = GeneralEntropy{}
	flags := r.U8()
	if flags&^(generalHasAdded|generalHasRemoved|generalHasSpecial) != 0 {
		r.Fail(errors.Wrapf(ErrMalformed, "general entropy flags %#x", flags))
		return r.Err()
	}
	if flags&generalHasAdded != 0 {
		g.AddedPlayer.ID = PlayerID(r.U32())
		g.AddedPlayer.Name = r.String()
		g.AddedPlayer.Faction = Faction(r.U8())
		if r.Err() == nil && (!g.AddedPlayer.IsSet() || !g.AddedPlayer.Faction.Valid()) {
			r.Fail(errors.Wrap(ErrMalformed, "added player"))
		}
	}
	if flags&generalHasRemoved != 0 {
		g.RemovedPlayer = PlayerID(r.U32())
		if r.Err() == nil && !g.RemovedPlayer.IsSet() {
			r.Fail(errors.Wrap(ErrMalformed, "removed player"))
		}
	}
	if flags&generalHasSpecial != 0 {
		g.Special = readGeneralCommand(r)
	}
	return r.Err()
}

// Step entropy section flags. Bits 0..3 are left to enclosing packets so a
// packet header and these flags can share one byte.
const (
	StepHasPlayers uint8 = 1 << (iota + 4)
	StepHasGeneral

	stepFlagsMask = StepHasPlayers | StepHasGeneral
)

// Flags reports which sections MarshalBody will write.
func (s StepEntropy) Flags() uint8 {
	var flags uint8
	if len(s.Players) > 0 {
		flags |= StepHasPlayers
	}
	if !s.General.IsEmpty() {
		flags |= StepHasGeneral
	}
	return flags
}

// MarshalBody writes the sections announced by Flags without the flags byte.
func (s StepEntropy) MarshalBody(w *encoding.Writer) {
	if len(s.Players) > 0 {
		w.Uvarint(uint64(len(s.Players)))
		for _, p := range s.Players {
			w.U32(uint32(p.Player))
			p.Entropy.MarshalTo(w)
		}
	}
	if !s.General.IsEmpty() {
		s.General.MarshalTo(w)
	}
}

// UnmarshalBody reads the sections announced by flags.
func (s *StepEntropy) UnmarshalBody(r *encoding.Reader, flags uint8) error {
	*s = StepEntropy{}
	if flags&StepHasPlayers != 0 {
		// a player entry takes at least five bytes
		n := r.Uvarint()
		if n == 0 || n > uint64(r.Remaining()/5) {
			r.Fail(errors.Wrapf(ErrMalformed, "player count %d", n))
			return r.Err()
		}
		s.Players = make([]PlayerEntropy, n)
		for k := range s.Players {
			id := PlayerID(r.U32())
			if r.Err() == nil && (!id.IsSet() || (k > 0 && id <= s.Players[k-1].Player)) {
				r.Fail(errors.Wrapf(ErrPlayerOrder, "player %d at %d", id, k))
			}
			s.Players[k].Player = id
			if err := s.Players[k].Entropy.UnmarshalFrom(r); err != nil {
				return err
			}
		}
	}
	if flags&StepHasGeneral != 0 {
		if err := s.General.UnmarshalFrom(r); err != nil {
			return err
		}
	}
	return r.Err()
}

// MarshalTo writes the flags byte and body. An empty step takes one byte.
func (s StepEntropy) MarshalTo(w *encoding.Writer) {
	w.U8(s.Flags())
	s.MarshalBody(w)
}

func (s *StepEntropy) UnmarshalFrom(r *encoding.Reader) error {
	flags := r.U8()
	if r.Err() == nil && flags&^stepFlagsMask != 0 {
		r.Fail(errors.Wrapf(ErrMalformed, "step entropy flags %#x", flags))
	}
	if err := r.Err(); err != nil {
		return err
	}
	return s.UnmarshalBody(r, flags)
}
