package log

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelInfo, ParseLevel("whatever"))
}

func TestFieldConversion(t *testing.T) {
	fields := toZapFields(
		Step(12),
		Player(uint32(7)),
		Client("abc"),
		Uint8("u8", 3),
		Uint16("u16", 4),
		Int("n", 5),
		Error(errors.New("boom")),
	)
	assert.Equal(t, zap.Uint64("step", 12), fields[0])
	assert.Equal(t, zap.Uint32("player", 7), fields[1])
	assert.Equal(t, zap.String("client", "abc"), fields[2])
	assert.Equal(t, zap.Uint8("u8", 3), fields[3])
	assert.Equal(t, zap.Uint16("u16", 4), fields[4])
	assert.Equal(t, zap.Int("n", 5), fields[5])
	assert.Equal(t, "error", fields[6].Key)
}

func TestLevels(t *testing.T) {
	l := New(LevelWarn)
	assert.Equal(t, LevelWarn, l.Level())
	assert.False(t, l.Enabled(LevelInfo))
	assert.True(t, l.Enabled(LevelError))

	n := Nop()
	n.Info("discarded", Step(1))
	n.With(Client("x")).Debug("discarded")
}

func TestSetLevelReachesDerivedLoggers(t *testing.T) {
	l := New(LevelInfo)
	child := l.With(Client("abc")).(*Logger)
	assert.False(t, child.Enabled(LevelDebug))

	l.SetLevel(ParseLevel("debug"))
	assert.Equal(t, LevelDebug, child.Level())
	assert.True(t, child.Enabled(LevelDebug))
	assert.Equal(t, "debug", child.Level().String())
}
