package stepping

import (
	"bytes"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/pkg/encoding"
)

var (
	ErrNotASession      = errors.New("stepping: not a recorded session")
	ErrSessionVersion   = errors.New("stepping: unsupported session version")
	ErrSessionMalformed = errors.New("stepping: malformed session records")
)

var sessionMagic = [4]byte{'L', 'S', 'R', 'S'}

const sessionVersion uint8 = 1

// Record is the local entropy that was fed to one step.
type Record struct {
	Step    uint64
	Entropy entropy.LocalEntropy
}

// Session is a recorded input stream. Steps in [Start, Start+Length) without
// a record had empty input.
type Session struct {
	Tickrate uint32
	Start    uint64
	Length   uint64
	Records  []Record // ascending by Step
}

// End is the index of the first step after the session.
func (s *Session) End() uint64 { return s.Start + s.Length }

// At returns the recorded input of step or an empty entropy.
func (s *Session) At(step uint64) entropy.LocalEntropy {
	lo, hi := 0, len(s.Records)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.Records[mid].Step < step {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(s.Records) && s.Records[lo].Step == step {
		return s.Records[lo].Entropy
	}
	return entropy.LocalEntropy{}
}

func (s *Session) marshalRecords(w *encoding.Writer) {
	w.Uvarint(uint64(len(s.Records)))
	prev := s.Start
	for _, r := range s.Records {
		w.Uvarint(r.Step - prev)
		r.Entropy.MarshalTo(w)
		prev = r.Step
	}
}

func (s *Session) unmarshalRecords(r *encoding.Reader) error {
	n := r.Uvarint()
	// every record takes at least two bytes
	if n > uint64(r.Remaining()/2) {
		return errors.Wrapf(ErrSessionMalformed, "record count %d", n)
	}
	s.Records = make([]Record, 0, n)
	prev := s.Start
	for i := uint64(0); i < n; i++ {
		step := prev + r.Uvarint()
		if i > 0 && step == prev {
			return errors.Wrapf(ErrSessionMalformed, "duplicate step %d", step)
		}
		var e entropy.LocalEntropy
		if err := e.UnmarshalFrom(r); err != nil {
			return errors.Wrapf(err, "record %d", i)
		}
		if step >= s.End() {
			return errors.Wrapf(ErrSessionMalformed, "step %d past end %d", step, s.End())
		}
		s.Records = append(s.Records, Record{Step: step, Entropy: e})
		prev = step
	}
	return r.Err()
}

// Save writes the header uncompressed followed by lz4-compressed records.
func (s *Session) Save(w io.Writer) error {
	head := encoding.NewWriter(32)
	head.Raw(sessionMagic[:])
	head.U8(sessionVersion)
	head.U32(s.Tickrate)
	head.U64(s.Start)
	head.U64(s.Length)
	if _, err := w.Write(head.Bytes()); err != nil {
		return errors.Wrap(err, "write session header")
	}

	body := encoding.NewWriter(64 * len(s.Records))
	s.marshalRecords(body)
	zw := lz4.NewWriter(w)
	if _, err := zw.Write(body.Bytes()); err != nil {
		return errors.Wrap(err, "compress session records")
	}
	return errors.Wrap(zw.Close(), "flush session records")
}

const sessionHeaderSize = 4 + 1 + 4 + 8 + 8

func LoadSession(rd io.Reader) (*Session, error) {
	var head [sessionHeaderSize]byte
	if _, err := io.ReadFull(rd, head[:]); err != nil {
		return nil, errors.Wrap(err, "read session header")
	}
	if [4]byte(head[:4]) != sessionMagic {
		return nil, ErrNotASession
	}
	r := encoding.NewReader(head[4:])
	if v := r.U8(); v != sessionVersion {
		return nil, errors.Wrapf(ErrSessionVersion, "version %d", v)
	}
	s := &Session{Tickrate: r.U32(), Start: r.U64(), Length: r.U64()}

	var body bytes.Buffer
	if _, err := body.ReadFrom(lz4.NewReader(rd)); err != nil {
		return nil, errors.Wrap(err, "decompress session records")
	}
	br := encoding.NewReader(body.Bytes())
	if err := s.unmarshalRecords(br); err != nil {
		return nil, err
	}
	if br.Remaining() != 0 {
		return nil, errors.Wrapf(encoding.ErrTrailingBytes, "%d bytes after records", br.Remaining())
	}
	return s, nil
}

func (s *Session) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create session file")
	}
	if err = s.Save(f); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close session file")
}

func LoadSessionFile(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open session file")
	}
	defer f.Close()
	return LoadSession(f)
}
