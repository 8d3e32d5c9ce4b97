package log

import "time"

// Log is the structured logger every subsystem receives from its owner.
type Log interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	With(fields ...Field) Log
}

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "unknown"
}

// ParseLevel maps a level name from configuration to a Level.
func ParseLevel(name string) Level {
	switch name {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

type Field struct {
	Key   string
	Type  FieldType
	Value any
}

// FieldType selects the zap encoder used for Value.
type FieldType uint8

const (
	UnknownType FieldType = iota
	BoolType
	DurationType
	Float64Type
	IntType
	StringType
	TimeType
	Uint64Type
	Uint32Type
	Uint16Type
	Uint8Type
	ErrorType
)

func Any(key string, val any) Field { return Field{Key: key, Type: UnknownType, Value: val} }

func Bool(key string, val bool) Field { return Field{Key: key, Type: BoolType, Value: val} }

func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Type: DurationType, Value: val}
}

func Float64(key string, val float64) Field { return Field{Key: key, Type: Float64Type, Value: val} }

func Int(key string, val int) Field { return Field{Key: key, Type: IntType, Value: val} }

func String(key string, val string) Field { return Field{Key: key, Type: StringType, Value: val} }

func Time(key string, val time.Time) Field { return Field{Key: key, Type: TimeType, Value: val} }

func Uint64(key string, val uint64) Field { return Field{Key: key, Type: Uint64Type, Value: val} }

func Uint32(key string, val uint32) Field { return Field{Key: key, Type: Uint32Type, Value: val} }

func Uint16(key string, val uint16) Field { return Field{Key: key, Type: Uint16Type, Value: val} }

func Uint8(key string, val uint8) Field { return Field{Key: key, Type: Uint8Type, Value: val} }

// Error logs err under the "error" key.
func Error(err error) Field { return Field{Key: "error", Type: ErrorType, Value: err} }

// Step tags an entry with a simulation step.
func Step(step uint64) Field { return Uint64("step", step) }

// Player tags an entry with a player id.
func Player[T ~uint32](id T) Field { return Uint32("player", uint32(id)) }

// Client tags an entry with a connection id.
func Client(id string) Field { return String("client", id) }
