package cosmos

import (
	"bytes"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/physics"
	"github.com/zeusync/lockstep/pkg/encoding"
	"github.com/zeusync/lockstep/pkg/generic"
)

const significantVersion uint8 = 1

const (
	slotAlive uint8 = 1 << iota
	slotTransform
	slotMovement
	slotHealth
	slotInventory
	slotShooter
)

func writeVec(w *encoding.Writer, v physics.Vec2) {
	w.F64(v.X)
	w.F64(v.Y)
}

func readVec(r *encoding.Reader) physics.Vec2 {
	return physics.Vec2{X: r.F64(), Y: r.F64()}
}

func writeID(w *encoding.Writer, id EntityID) {
	w.U32(id.Index)
	w.U32(id.Generation)
}

func readID(r *encoding.Reader) EntityID {
	return EntityID{Index: r.U32(), Generation: r.U32()}
}

var writers = generic.NewPool(func() *encoding.Writer { return encoding.NewWriter(4096) }, (*encoding.Writer).Reset)

// AppendSignificant appends the canonical encoding of significant state.
func (c *Cosmos) AppendSignificant(dst []byte) []byte {
	w := writers.Get()
	defer writers.Put(w)
	c.writeSignificant(w)
	return append(dst, w.Bytes()...)
}

// SignificantBytes returns the canonical encoding of significant state.
// Two worlds are in sync exactly when these bytes are equal.
func (c *Cosmos) SignificantBytes() []byte {
	w := encoding.NewWriter(256 + 64*len(c.sig.entities))
	c.writeSignificant(w)
	return w.Bytes()
}

// StateHash is a 32-bit digest of significant state.
func (c *Cosmos) StateHash() uint32 {
	w := writers.Get()
	defer writers.Put(w)
	c.writeSignificant(w)
	return uint32(xxhash.Sum64(w.Bytes()))
}

func (c *Cosmos) writeSignificant(w *encoding.Writer) {
	s := &c.sig
	w.U8(significantVersion)

	w.U64(s.meta.Step)
	w.U32(s.meta.Tickrate)
	w.U64(s.meta.Seed)
	writeVec(w, s.meta.Bounds.Min)
	writeVec(w, s.meta.Bounds.Max)
	w.U64(s.rng.state)

	w.Uvarint(uint64(len(s.entities)))
	for i := range s.entities {
		writeEntity(w, &s.entities[i])
	}
	w.Uvarint(uint64(len(s.free)))
	for _, idx := range s.free {
		w.U32(idx)
	}

	m := &s.mode
	w.Uvarint(uint64(len(m.Players)))
	for _, p := range m.Players {
		w.U32(uint32(p.ID))
		w.String(p.Name)
		w.U8(uint8(p.Faction))
		writeID(w, p.Entity)
		w.Varint(int64(p.Score))
		w.U32(p.Kills)
		w.U32(p.Deaths)
		w.Varint(int64(p.Credits))
		w.U64(p.RespawnAt)
	}
	w.U32(m.Round)
	w.U64(m.RoundStep)
	w.Bool(m.Paused)
	w.Uvarint(uint64(len(m.Rules)))
	for _, r := range m.Rules {
		w.U16(uint16(r.ID))
		w.Varint(int64(r.Value))
	}
}

func writeEntity(w *encoding.Writer, e *entity) {
	w.U32(e.generation)
	if !e.alive {
		w.U8(0)
		return
	}
	flags := slotAlive
	if e.transform != nil {
		flags |= slotTransform
	}
	if e.movement != nil {
		flags |= slotMovement
	}
	if e.health != nil {
		flags |= slotHealth
	}
	if e.inventory != nil {
		flags |= slotInventory
	}
	if e.shooter != nil {
		flags |= slotShooter
	}
	w.U8(flags)
	w.U32(uint32(e.owner))

	if e.transform != nil {
		writeVec(w, e.transform.Pos)
	}
	if e.movement != nil {
		w.U16(e.movement.Held)
		writeVec(w, e.movement.Aim)
		writeVec(w, e.movement.Vel)
	}
	if e.health != nil {
		w.Varint(int64(e.health.Value))
		w.Varint(int64(e.health.Max))
	}
	if e.inventory != nil {
		w.Uvarint(uint64(len(e.inventory.Items)))
		for _, it := range e.inventory.Items {
			w.U16(uint16(it))
		}
	}
	if e.shooter != nil {
		w.U64(e.shooter.ReadyAt)
	}
}

func readInt32(r *encoding.Reader) int32 {
	v := r.Varint()
	if v < -1<<31 || v > 1<<31-1 {
		r.Fail(errors.Wrapf(ErrBadSnapshot, "value %d overflows int32", v))
		return 0
	}
	return int32(v)
}

func readEntity(r *encoding.Reader) entity {
	e := entity{generation: r.U32()}
	flags := r.U8()
	if flags == 0 {
		return e
	}
	if flags&slotAlive == 0 || flags >= slotShooter<<1 {
		r.Fail(errors.Wrapf(ErrBadSnapshot, "entity flags %#x", flags))
		return e
	}
	e.alive = true
	e.owner = entropy.PlayerID(r.U32())
	if flags&slotTransform != 0 {
		e.transform = &Transform{Pos: readVec(r)}
	}
	if flags&slotMovement != 0 {
		e.movement = &Movement{Held: r.U16(), Aim: readVec(r), Vel: readVec(r)}
	}
	if flags&slotHealth != 0 {
		e.health = &Health{Value: readInt32(r), Max: readInt32(r)}
	}
	if flags&slotInventory != 0 {
		n := r.Uvarint()
		if n > uint64(r.Remaining()/2) {
			r.Fail(errors.Wrapf(ErrBadSnapshot, "inventory size %d", n))
			return e
		}
		e.inventory = &Inventory{}
		if n > 0 {
			e.inventory.Items = make([]entropy.ItemID, n)
		}
		for i := range e.inventory.Items {
			e.inventory.Items[i] = entropy.ItemID(r.U16())
		}
	}
	if flags&slotShooter != 0 {
		e.shooter = &Shooter{ReadyAt: r.U64()}
	}
	if r.Err() == nil && e.generation == 0 {
		r.Fail(errors.Wrap(ErrBadSnapshot, "live entity with generation 0"))
	}
	return e
}

func readSignificant(r *encoding.Reader) (significant, error) {
	var s significant
	if v := r.U8(); r.Err() == nil && v != significantVersion {
		return s, errors.Wrapf(ErrSnapshotVersion, "version %d", v)
	}

	s.meta.Step = r.U64()
	s.meta.Tickrate = r.U32()
	s.meta.Seed = r.U64()
	s.meta.Bounds.Min = readVec(r)
	s.meta.Bounds.Max = readVec(r)
	s.rng.state = r.U64()
	if r.Err() == nil && s.meta.Tickrate == 0 {
		return s, ErrInvalidTickrate
	}

	// an entity slot takes at least five bytes
	n := r.Uvarint()
	if n > uint64(r.Remaining()/5) {
		r.Fail(errors.Wrapf(ErrBadSnapshot, "entity count %d", n))
	}
	if r.Err() == nil && n > 0 {
		s.entities = make([]entity, n)
		for i := range s.entities {
			s.entities[i] = readEntity(r)
		}
	}

	nf := r.Uvarint()
	if nf > uint64(len(s.entities)) {
		r.Fail(errors.Wrapf(ErrBadSnapshot, "free list size %d", nf))
	}
	if r.Err() == nil && nf > 0 {
		s.free = make([]uint32, nf)
		for i := range s.free {
			idx := r.U32()
			if r.Err() == nil && (int(idx) >= len(s.entities) || s.entities[idx].alive) {
				r.Fail(errors.Wrapf(ErrBadSnapshot, "free slot %d", idx))
			}
			s.free[i] = idx
		}
	}

	np := r.Uvarint()
	if np > uint64(r.Remaining()/8) {
		r.Fail(errors.Wrapf(ErrBadSnapshot, "player count %d", np))
	}
	if r.Err() == nil && np > 0 {
		s.mode.Players = make([]PlayerState, np)
		for i := range s.mode.Players {
			p := &s.mode.Players[i]
			p.ID = entropy.PlayerID(r.U32())
			p.Name = r.String()
			p.Faction = entropy.Faction(r.U8())
			p.Entity = readID(r)
			p.Score = readInt32(r)
			p.Kills = r.U32()
			p.Deaths = r.U32()
			p.Credits = readInt32(r)
			p.RespawnAt = r.U64()
			if r.Err() == nil && (!p.ID.IsSet() || (i > 0 && p.ID <= s.mode.Players[i-1].ID) || !p.Faction.Valid()) {
				r.Fail(errors.Wrapf(ErrBadSnapshot, "player %d", p.ID))
			}
		}
	}
	s.mode.Round = r.U32()
	s.mode.RoundStep = r.U64()
	s.mode.Paused = r.Bool()

	nr := r.Uvarint()
	if nr > uint64(r.Remaining()/3) {
		r.Fail(errors.Wrapf(ErrBadSnapshot, "rule count %d", nr))
	}
	if r.Err() == nil && nr > 0 {
		s.mode.Rules = make([]Rule, nr)
		for i := range s.mode.Rules {
			s.mode.Rules[i] = Rule{ID: entropy.RuleID(r.U16()), Value: readInt32(r)}
			if r.Err() == nil && i > 0 && s.mode.Rules[i].ID <= s.mode.Rules[i-1].ID {
				r.Fail(errors.Wrap(ErrBadSnapshot, "rules out of order"))
			}
		}
	}
	return s, r.Err()
}

// FromSignificant rebuilds a world from bytes produced by SignificantBytes.
// Solvable state is inferred from scratch. A nil integrator selects the default.
func FromSignificant(data []byte, integrator physics.Integrator) (*Cosmos, error) {
	r := encoding.NewReader(data)
	sig, err := readSignificant(r)
	if err != nil {
		return nil, errors.Wrap(err, "read significant state")
	}
	if r.Remaining() != 0 {
		return nil, errors.Wrapf(encoding.ErrTrailingBytes, "%d bytes after significant state", r.Remaining())
	}
	if integrator == nil {
		integrator = physics.Euler{MinParallel: 256}
	}
	c := &Cosmos{sig: sig, integrator: integrator}
	c.Reinfer()
	return c, nil
}

var snapshotMagic = [4]byte{'L', 'S', 'S', 'N'}

// SaveSnapshot writes an lz4-compressed snapshot of significant state.
func (c *Cosmos) SaveSnapshot(w io.Writer) error {
	if _, err := w.Write(snapshotMagic[:]); err != nil {
		return errors.Wrap(err, "write snapshot magic")
	}
	zw := lz4.NewWriter(w)
	if _, err := zw.Write(c.SignificantBytes()); err != nil {
		return errors.Wrap(err, "compress snapshot")
	}
	return errors.Wrap(zw.Close(), "flush snapshot")
}

// LoadSnapshot reads a snapshot written by SaveSnapshot.
func LoadSnapshot(r io.Reader, integrator physics.Integrator) (*Cosmos, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, errors.Wrap(err, "read snapshot magic")
	}
	if magic != snapshotMagic {
		return nil, ErrSnapshotMagic
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(lz4.NewReader(r)); err != nil {
		return nil, errors.Wrap(err, "decompress snapshot")
	}
	return FromSignificant(buf.Bytes(), integrator)
}

// CompressedSnapshot returns SaveSnapshot's output as a byte slice.
func (c *Cosmos) CompressedSnapshot() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.SaveSnapshot(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
