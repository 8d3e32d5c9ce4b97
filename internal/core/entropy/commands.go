package entropy

import (
	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/pkg/encoding"
)

var ErrUnknownVariant = errors.New("entropy: unknown variant tag")

// ModeCommand is a one-shot player command interpreted by the game mode.
// Implementations are TeamChoice and ItemPurchase.
type ModeCommand interface {
	modeCommandTag() uint8
	marshalBody(w *encoding.Writer)
}

const (
	tagTeamChoice   uint8 = 1
	tagItemPurchase uint8 = 2
)

type TeamChoice struct {
	Faction Faction
}

type ItemPurchase struct {
	Item ItemID
}

func (TeamChoice) modeCommandTag() uint8   { return tagTeamChoice }
func (ItemPurchase) modeCommandTag() uint8 { return tagItemPurchase }

func (c TeamChoice) marshalBody(w *encoding.Writer)   { w.U8(uint8(c.Faction)) }
func (c ItemPurchase) marshalBody(w *encoding.Writer) { w.U16(uint16(c.Item)) }

func writeModeCommand(w *encoding.Writer, c ModeCommand) {
	w.U8(c.modeCommandTag())
	c.marshalBody(w)
}

func readModeCommand(r *encoding.Reader) ModeCommand {
	switch tag := r.U8(); tag {
	case tagTeamChoice:
		f := Faction(r.U8())
		if !f.Valid() {
			r.Fail(errors.Wrapf(ErrMalformed, "faction %d", f))
			return nil
		}
		return TeamChoice{Faction: f}
	case tagItemPurchase:
		return ItemPurchase{Item: ItemID(r.U16())}
	default:
		r.Fail(errors.Wrapf(ErrUnknownVariant, "mode command %d", tag))
		return nil
	}
}

// GeneralCommand is an admin-level command applied to the whole match.
// Implementations are MatchCommand and RulesChange.
type GeneralCommand interface {
	generalCommandTag() uint8
	marshalBody(w *encoding.Writer)
}

const (
	tagMatchCommand uint8 = 1
	tagRulesChange  uint8 = 2
)

type MatchCommandKind uint8

const (
	MatchRestart MatchCommandKind = iota
	MatchPause
	MatchResume

	numMatchCommandKinds
)

func (k MatchCommandKind) String() string {
	switch k {
	case MatchRestart:
		return "restart"
	case MatchPause:
		return "pause"
	case MatchResume:
		return "resume"
	}
	return "unknown"
}

type MatchCommand struct {
	Kind MatchCommandKind
}

type RulesChange struct {
	Rule  RuleID
	Value int32
}

func (MatchCommand) generalCommandTag() uint8 { return tagMatchCommand }
func (RulesChange) generalCommandTag() uint8  { return tagRulesChange }

func (c MatchCommand) marshalBody(w *encoding.Writer) { w.U8(uint8(c.Kind)) }

func (c RulesChange) marshalBody(w *encoding.Writer) {
	w.U16(uint16(c.Rule))
	w.Varint(int64(c.Value))
}

func writeGeneralCommand(w *encoding.Writer, c GeneralCommand) {
	w.U8(c.generalCommandTag())
	c.marshalBody(w)
}

func readGeneralCommand(r *encoding.Reader) GeneralCommand {
	switch tag := r.U8(); tag {
	case tagMatchCommand:
		k := MatchCommandKind(r.U8())
		if k >= numMatchCommandKinds {
			r.Fail(errors.Wrapf(ErrMalformed, "match command kind %d", k))
			return nil
		}
		return MatchCommand{Kind: k}
	case tagRulesChange:
		rule := RuleID(r.U16())
		v := r.Varint()
		if v < -1<<31 || v > 1<<31-1 {
			r.Fail(errors.Wrapf(ErrMalformed, "rule value %d", v))
			return nil
		}
		return RulesChange{Rule: rule, Value: int32(v)}
	default:
		r.Fail(errors.Wrapf(ErrUnknownVariant, "general command %d", tag))
		return nil
	}
}
