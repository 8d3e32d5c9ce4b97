package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/lockstep/pkg/encoding"
)

func sample(x int32, intents ...Intent) LocalEntropy {
	e := LocalEntropy{Intents: intents}
	e.Motions[MotionCrosshair] = Motion{X: x, Y: -x}
	return e
}

func TestMergeAppendsIntentsAndSumsMotions(t *testing.T) {
	a := sample(3, Press(IntentShoot))
	b := sample(4, Release(IntentShoot))
	b.Mode = TeamChoice{Faction: FactionRed}
	c := LocalEntropy{Mode: ItemPurchase{Item: 7}}

	a.Merge(b)
	a.Merge(c)

	assert.Equal(t, []Intent{Press(IntentShoot), Release(IntentShoot)}, a.Intents)
	assert.Equal(t, Motion{X: 7, Y: -7}, a.Motions[MotionCrosshair])
	assert.Equal(t, ItemPurchase{Item: 7}, a.Mode)
}

func TestMergeEmptyIsIdentity(t *testing.T) {
	cases := []LocalEntropy{
		{},
		sample(1, Press(IntentMoveUp)),
		{Mode: TeamChoice{Faction: FactionBlue}},
	}
	for _, e := range cases {
		merged := e.Clone()
		merged.Merge(LocalEntropy{})
		assert.True(t, merged.Equal(e))
	}
}

func TestSquashIsAssociative(t *testing.T) {
	a := sample(1, Press(IntentMoveLeft))
	b := sample(2)
	c := sample(5, Release(IntentMoveLeft), Press(IntentUse))

	left := Squash(Squash(a, b), c)
	right := Squash(a, Squash(b, c))
	assert.True(t, left.Equal(right))
	assert.Len(t, left.Intents, 3)
}

func TestStepEntropyKeepsAscendingOrder(t *testing.T) {
	var s StepEntropy
	s.Accept(9, sample(1))
	s.Accept(2, sample(2))
	s.Accept(5, sample(3))
	s.Accept(7, LocalEntropy{})
	s.Accept(NoPlayer, sample(4))
	s.Accept(2, sample(10))

	var order []PlayerID
	s.Each(func(id PlayerID, _ LocalEntropy) { order = append(order, id) })
	assert.Equal(t, []PlayerID{2, 5, 9}, order)

	e, ok := s.Get(2)
	require.True(t, ok)
	assert.Equal(t, Motion{X: 12, Y: -12}, e.Motions[MotionCrosshair])

	_, ok = s.Get(7)
	assert.False(t, ok)
}

func TestLocalEntropyRoundTrip(t *testing.T) {
	cases := map[string]LocalEntropy{
		"empty":         {},
		"single intent": {Intents: []Intent{Press(IntentShoot)}},
		"motion only":   sample(-1000),
		"mode only":     {Mode: ItemPurchase{Item: 513}},
		"everything": {
			Intents: []Intent{Press(IntentSprint), Release(IntentSprint), Press(IntentMoveDown)},
			Motions: Motions{{X: 1 << 30, Y: -(1 << 30)}},
			Mode:    TeamChoice{Faction: FactionSpectator},
		},
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			var out LocalEntropy
			require.NoError(t, encoding.Unmarshal(encoding.Marshal(e), &out))
			assert.True(t, out.Equal(e))
		})
	}
}

func TestEmptyLocalEntropyIsOneByte(t *testing.T) {
	assert.Len(t, encoding.Marshal(LocalEntropy{}), 1)
	assert.Len(t, encoding.Marshal(StepEntropy{}), 1)
}

func TestStepEntropyRoundTrip(t *testing.T) {
	var s StepEntropy
	s.Accept(1, sample(1, Press(IntentMoveUp)))
	s.Accept(40, LocalEntropy{Mode: TeamChoice{Faction: FactionBlue}})
	s.Accept(3, sample(-8))
	s.General = GeneralEntropy{
		AddedPlayer:   AddPlayer{ID: 41, Name: "newcomer", Faction: FactionRed},
		RemovedPlayer: 3,
		Special:       RulesChange{Rule: 2, Value: -15},
	}

	var out StepEntropy
	require.NoError(t, encoding.Unmarshal(encoding.Marshal(s), &out))
	assert.True(t, out.Equal(s))

	s.General.Special = MatchCommand{Kind: MatchPause}
	require.NoError(t, encoding.Unmarshal(encoding.Marshal(s), &out))
	assert.True(t, out.Equal(s))
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	t.Run("truncated", func(t *testing.T) {
		data := encoding.Marshal(sample(5, Press(IntentShoot)))
		var out LocalEntropy
		err := encoding.Unmarshal(data[:len(data)-1], &out)
		require.ErrorIs(t, err, encoding.ErrTruncated)
	})

	t.Run("unknown mode tag", func(t *testing.T) {
		var out LocalEntropy
		err := encoding.Unmarshal([]byte{localHasMode, 99}, &out)
		require.ErrorIs(t, err, ErrUnknownVariant)
	})

	t.Run("invalid intent", func(t *testing.T) {
		var out LocalEntropy
		err := encoding.Unmarshal([]byte{localHasIntents, 1, byte(NumIntentTypes), 0}, &out)
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("descending players", func(t *testing.T) {
		w := encoding.NewWriter(0)
		w.U8(StepHasPlayers)
		w.Uvarint(2)
		w.U32(5)
		LocalEntropy{}.MarshalTo(w)
		w.U32(4)
		LocalEntropy{}.MarshalTo(w)

		var out StepEntropy
		err := encoding.Unmarshal(w.Bytes(), &out)
		require.ErrorIs(t, err, ErrPlayerOrder)
	})
}
