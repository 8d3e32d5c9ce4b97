package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderPrimitives(t *testing.T) {
	w := NewWriter(0)
	w.U8(7)
	w.Bool(true)
	w.U16(0xBEEF)
	w.U32(0xDEADBEEF)
	w.U64(1 << 60)
	w.Uvarint(300)
	w.Varint(-42)
	w.F32(1.5)
	w.F64(-0.25)
	w.String("hello")
	w.Bytes8([]byte{1, 2, 3})

	r := NewReader(w.Bytes())
	assert.Equal(t, uint8(7), r.U8())
	assert.True(t, r.Bool())
	assert.Equal(t, uint16(0xBEEF), r.U16())
	assert.Equal(t, uint32(0xDEADBEEF), r.U32())
	assert.Equal(t, uint64(1<<60), r.U64())
	assert.Equal(t, uint64(300), r.Uvarint())
	assert.Equal(t, int64(-42), r.Varint())
	assert.Equal(t, float32(1.5), r.F32())
	assert.Equal(t, -0.25, r.F64())
	assert.Equal(t, "hello", r.String())
	assert.Equal(t, []byte{1, 2, 3}, r.Bytes8())
	require.NoError(t, r.Err())
	assert.Zero(t, r.Remaining())
}

func TestReaderTruncationIsSticky(t *testing.T) {
	r := NewReader([]byte{1, 2})
	assert.Zero(t, r.U32())
	require.ErrorIs(t, r.Err(), ErrTruncated)
	assert.Zero(t, r.U8())
	require.ErrorIs(t, r.Err(), ErrTruncated)
}

func TestReaderRejectsOversizedLength(t *testing.T) {
	w := NewWriter(0)
	w.Uvarint(1000)
	w.U8(1)
	r := NewReader(w.Bytes())
	assert.Empty(t, r.String())
	require.ErrorIs(t, r.Err(), ErrTooLarge)
}

type pair struct{ a, b uint32 }

func (p *pair) MarshalTo(w *Writer) {
	w.U32(p.a)
	w.U32(p.b)
}

func (p *pair) UnmarshalFrom(r *Reader) error {
	p.a = r.U32()
	p.b = r.U32()
	return r.Err()
}

func TestUnmarshalRejectsTrailingBytes(t *testing.T) {
	data := append(Marshal(&pair{a: 1, b: 2}), 0xFF)

	var p pair
	err := Unmarshal(data, &p)
	require.ErrorIs(t, err, ErrTrailingBytes)

	require.NoError(t, Unmarshal(data[:8], &p))
	assert.Equal(t, pair{a: 1, b: 2}, p)
}
