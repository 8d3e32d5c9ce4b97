package entropy

// IntentType is a discrete, button-like action.
type IntentType uint8

const (
	IntentMoveUp IntentType = iota
	IntentMoveDown
	IntentMoveLeft
	IntentMoveRight
	IntentSprint
	IntentShoot
	IntentUse

	NumIntentTypes
)

// IntentChange is the edge of a button transition.
type IntentChange uint8

const (
	Pressed IntentChange = iota
	Released
)

type Intent struct {
	Type   IntentType
	Change IntentChange
}

func Press(t IntentType) Intent   { return Intent{Type: t, Change: Pressed} }
func Release(t IntentType) Intent { return Intent{Type: t, Change: Released} }

func (i Intent) valid() bool {
	return i.Type < NumIntentTypes && (i.Change == Pressed || i.Change == Released)
}

// MotionType names a continuous input axis.
type MotionType uint8

const (
	MotionCrosshair MotionType = iota

	NumMotionTypes
)

// Motion is a relative change on a two dimensional axis.
type Motion struct {
	X, Y int32
}

func (m Motion) Add(o Motion) Motion {
	return Motion{X: m.X + o.X, Y: m.Y + o.Y}
}

func (m Motion) IsZero() bool { return m.X == 0 && m.Y == 0 }

// Motions holds one accumulated Motion per MotionType.
type Motions [NumMotionTypes]Motion

func (m *Motions) Add(o Motions) {
	for i := range m {
		m[i] = m[i].Add(o[i])
	}
}

func (m Motions) IsZero() bool {
	for _, v := range m {
		if !v.IsZero() {
			return false
		}
	}
	return true
}
