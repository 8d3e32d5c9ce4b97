package protocol

import (
	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/pkg/encoding"
)

const (
	packetHasHash uint8 = 1 << iota
	packetReinference

	packetFlagsMask = packetHasHash | packetReinference | entropy.StepHasPlayers | entropy.StepHasGeneral
)

// StepPacket is broadcast once per server tick. Consumed is the number of
// the receiving client's own entropies that went into this step, so it
// differs per recipient while everything else is shared.
type StepPacket struct {
	Consumed    uint8
	HasHash     bool
	Hash        uint32
	Reinference bool
	Entropy     entropy.StepEntropy
}

func (*StepPacket) Type() MessageType { return MsgServerStep }

// MarshalTo writes the packet. Packet and entropy flags share one byte, so
// an empty packet takes two bytes and a hash adds four.
func (p *StepPacket) MarshalTo(w *encoding.Writer) {
	w.U8(p.Consumed)
	flags := p.Entropy.Flags()
	if p.HasHash {
		flags |= packetHasHash
	}
	if p.Reinference {
		flags |= packetReinference
	}
	w.U8(flags)
	if p.HasHash {
		w.U32(p.Hash)
	}
	p.Entropy.MarshalBody(w)
}

func (p *StepPacket) UnmarshalFrom(r *encoding.Reader) error {
	*p = StepPacket{}
	p.Consumed = r.U8()
	flags := r.U8()
	if err := r.Err(); err != nil {
		return err
	}
	if flags&^packetFlagsMask != 0 {
		return errors.Wrapf(ErrMalformed, "step packet flags %#x", flags)
	}
	p.HasHash = flags&packetHasHash != 0
	p.Reinference = flags&packetReinference != 0
	if p.HasHash {
		p.Hash = r.U32()
	}
	return p.Entropy.UnmarshalBody(r, flags)
}

// EncodeStep frames a step packet for one recipient. The shared part is
// encoded once by the caller and only the consumed byte differs.
func EncodeStep(shared []byte, consumed uint8) []byte {
	frame := make([]byte, len(shared))
	copy(frame, shared)
	frame[1] = consumed
	return frame
}
