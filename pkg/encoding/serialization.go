package encoding

import "github.com/pkg/errors"

var (
	ErrTruncated     = errors.New("encoding: unexpected end of data")
	ErrTrailingBytes = errors.New("encoding: trailing bytes after value")
	ErrOverflow      = errors.New("encoding: varint overflows 64 bits")
	ErrTooLarge      = errors.New("encoding: length prefix exceeds remaining data")
)

// Marshaler appends its binary form to a Writer.
type Marshaler interface {
	MarshalTo(w *Writer)
}

// Unmarshaler restores itself from a Reader.
type Unmarshaler interface {
	UnmarshalFrom(r *Reader) error
}

// Marshal encodes m into a fresh byte slice.
func Marshal(m Marshaler) []byte {
	w := NewWriter(64)
	m.MarshalTo(w)
	return w.Bytes()
}

// Unmarshal decodes data into u and requires the whole input to be consumed.
func Unmarshal(data []byte, u Unmarshaler) error {
	r := NewReader(data)
	if err := u.UnmarshalFrom(r); err != nil {
		return err
	}
	if err := r.Err(); err != nil {
		return err
	}
	if r.Remaining() != 0 {
		return errors.Wrapf(ErrTrailingBytes, "%d bytes left", r.Remaining())
	}
	return nil
}
