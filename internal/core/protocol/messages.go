package protocol

import (
	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/jitter"
	"github.com/zeusync/lockstep/pkg/encoding"
	"github.com/zeusync/lockstep/pkg/generic"
)

// Version is bumped on every incompatible change of the wire format.
const Version uint16 = 1

// MaxFrameSize bounds a single frame on any transport.
const MaxFrameSize = 4 << 20

type MessageType uint8

const (
	MsgClientHello MessageType = iota + 1
	MsgClientEntropy
	MsgClientResync
	MsgClientRcon
	MsgServerWelcome
	MsgServerSnapshot
	MsgServerStep
	MsgServerKick
	MsgServerChat
	MsgServerRcon
)

func (t MessageType) String() string {
	switch t {
	case MsgClientHello:
		return "client_hello"
	case MsgClientEntropy:
		return "client_entropy"
	case MsgClientResync:
		return "client_resync"
	case MsgClientRcon:
		return "client_rcon"
	case MsgServerWelcome:
		return "server_welcome"
	case MsgServerSnapshot:
		return "server_snapshot"
	case MsgServerStep:
		return "server_step"
	case MsgServerKick:
		return "server_kick"
	case MsgServerChat:
		return "server_chat"
	case MsgServerRcon:
		return "server_rcon"
	}
	return "unknown"
}

// Message is anything that travels in a frame.
type Message interface {
	Type() MessageType
	encoding.Marshaler
	encoding.Unmarshaler
}

// ClientHello is the first message of every client.
type ClientHello struct {
	Version  uint16
	Nickname string
	Faction  entropy.Faction
	Jitter   jitter.Settings
	// Token is checked by the server's authenticator, if any.
	Token string
}

func (*ClientHello) Type() MessageType { return MsgClientHello }

func (m *ClientHello) MarshalTo(w *encoding.Writer) {
	w.U16(m.Version)
	w.String(m.Nickname)
	w.U8(uint8(m.Faction))
	w.U32(m.Jitter.BufferAtLeastSteps)
	w.U32(m.Jitter.BufferAtLeastMs)
	w.U8(m.Jitter.MaxCommandsToSquashAtOnce)
	w.String(m.Token)
}

func (m *ClientHello) UnmarshalFrom(r *encoding.Reader) error {
	m.Version = r.U16()
	m.Nickname = r.String()
	m.Faction = entropy.Faction(r.U8())
	m.Jitter.BufferAtLeastSteps = r.U32()
	m.Jitter.BufferAtLeastMs = r.U32()
	m.Jitter.MaxCommandsToSquashAtOnce = r.U8()
	m.Token = r.String()
	if r.Err() == nil && !m.Faction.Valid() {
		return errors.Wrapf(ErrMalformed, "faction %d", m.Faction)
	}
	return r.Err()
}

// ClientEntropy carries one step worth of a client's input.
type ClientEntropy struct {
	Entropy entropy.LocalEntropy
}

func (*ClientEntropy) Type() MessageType { return MsgClientEntropy }

func (m *ClientEntropy) MarshalTo(w *encoding.Writer) { m.Entropy.MarshalTo(w) }

func (m *ClientEntropy) UnmarshalFrom(r *encoding.Reader) error { return m.Entropy.UnmarshalFrom(r) }

// ClientResync asks for a fresh snapshot after a state hash mismatch.
type ClientResync struct {
	Step uint64
}

func (*ClientResync) Type() MessageType { return MsgClientResync }

func (m *ClientResync) MarshalTo(w *encoding.Writer) { w.U64(m.Step) }

func (m *ClientResync) UnmarshalFrom(r *encoding.Reader) error {
	m.Step = r.U64()
	return r.Err()
}

// ClientRcon and ServerRcon wrap an opaque admin payload.
type ClientRcon struct {
	Payload []byte
}

func (*ClientRcon) Type() MessageType { return MsgClientRcon }

func (m *ClientRcon) MarshalTo(w *encoding.Writer) { w.Raw(m.Payload) }

func (m *ClientRcon) UnmarshalFrom(r *encoding.Reader) error {
	m.Payload = append([]byte(nil), r.Rest()...)
	return r.Err()
}

type ServerRcon struct {
	Payload []byte
}

func (*ServerRcon) Type() MessageType { return MsgServerRcon }

func (m *ServerRcon) MarshalTo(w *encoding.Writer) { w.Raw(m.Payload) }

func (m *ServerRcon) UnmarshalFrom(r *encoding.Reader) error {
	m.Payload = append([]byte(nil), r.Rest()...)
	return r.Err()
}

// ServerWelcome assigns the client its player id.
type ServerWelcome struct {
	Player         entropy.PlayerID
	Tickrate       uint32
	StateHashEvery uint32
}

func (*ServerWelcome) Type() MessageType { return MsgServerWelcome }

func (m *ServerWelcome) MarshalTo(w *encoding.Writer) {
	w.U32(uint32(m.Player))
	w.U32(m.Tickrate)
	w.U32(m.StateHashEvery)
}

func (m *ServerWelcome) UnmarshalFrom(r *encoding.Reader) error {
	m.Player = entropy.PlayerID(r.U32())
	m.Tickrate = r.U32()
	m.StateHashEvery = r.U32()
	return r.Err()
}

// ServerSnapshot is a compressed snapshot of significant state taken right
// before the step packet of the same step is broadcast.
type ServerSnapshot struct {
	Step uint64
	Data []byte
}

func (*ServerSnapshot) Type() MessageType { return MsgServerSnapshot }

func (m *ServerSnapshot) MarshalTo(w *encoding.Writer) {
	w.U64(m.Step)
	w.Raw(m.Data)
}

func (m *ServerSnapshot) UnmarshalFrom(r *encoding.Reader) error {
	m.Step = r.U64()
	m.Data = append([]byte(nil), r.Rest()...)
	return r.Err()
}

// ServerKick is the last message a kicked client receives.
type ServerKick struct {
	Reason string
}

func (*ServerKick) Type() MessageType { return MsgServerKick }

func (m *ServerKick) MarshalTo(w *encoding.Writer) { w.String(m.Reason) }

func (m *ServerKick) UnmarshalFrom(r *encoding.Reader) error {
	m.Reason = r.String()
	return r.Err()
}

type ChatKind uint8

const (
	ChatPlain ChatKind = iota
	ChatKickNotice
	ChatServerNotice
)

// ServerChat is shown to players. Kick notices name the kicked player in
// Subject.
type ServerChat struct {
	Kind    ChatKind
	Author  entropy.PlayerID
	Subject entropy.PlayerID
	Text    string
}

func (*ServerChat) Type() MessageType { return MsgServerChat }

func (m *ServerChat) MarshalTo(w *encoding.Writer) {
	w.U8(uint8(m.Kind))
	w.U32(uint32(m.Author))
	w.U32(uint32(m.Subject))
	w.String(m.Text)
}

func (m *ServerChat) UnmarshalFrom(r *encoding.Reader) error {
	m.Kind = ChatKind(r.U8())
	m.Author = entropy.PlayerID(r.U32())
	m.Subject = entropy.PlayerID(r.U32())
	m.Text = r.String()
	return r.Err()
}

// Encode frames m as its type byte followed by its body.
func Encode(m Message) []byte {
	w := writers.Get()
	defer writers.Put(w)
	w.U8(uint8(m.Type()))
	m.MarshalTo(w)
	return append([]byte(nil), w.Bytes()...)
}

var writers = generic.NewPool(func() *encoding.Writer { return encoding.NewWriter(256) }, (*encoding.Writer).Reset)

func newMessage(t MessageType) Message {
	switch t {
	case MsgClientHello:
		return &ClientHello{}
	case MsgClientEntropy:
		return &ClientEntropy{}
	case MsgClientResync:
		return &ClientResync{}
	case MsgClientRcon:
		return &ClientRcon{}
	case MsgServerWelcome:
		return &ServerWelcome{}
	case MsgServerSnapshot:
		return &ServerSnapshot{}
	case MsgServerStep:
		return &StepPacket{}
	case MsgServerKick:
		return &ServerKick{}
	case MsgServerChat:
		return &ServerChat{}
	case MsgServerRcon:
		return &ServerRcon{}
	}
	return nil
}

// Decode parses a frame. Any error means the frame should be dropped.
func Decode(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}
	if len(frame) > MaxFrameSize {
		return nil, errors.Wrapf(ErrMessageTooLarge, "%d bytes", len(frame))
	}
	m := newMessage(MessageType(frame[0]))
	if m == nil {
		return nil, errors.Wrapf(ErrUnknownMessage, "type %d", frame[0])
	}
	if err := encoding.Unmarshal(frame[1:], m); err != nil {
		return nil, errors.Wrapf(err, "decode %s", m.Type())
	}
	return m, nil
}
