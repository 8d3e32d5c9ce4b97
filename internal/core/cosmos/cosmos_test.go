package cosmos

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/physics"
)

func newWorld(t *testing.T) *Cosmos {
	t.Helper()
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	return c
}

func advance(t *testing.T, c *Cosmos, in entropy.StepEntropy) Messages {
	t.Helper()
	msgs, err := c.Advance(in)
	require.NoError(t, err)
	return msgs
}

func addPlayer(id entropy.PlayerID, faction entropy.Faction) entropy.StepEntropy {
	return entropy.StepEntropy{General: entropy.GeneralEntropy{
		AddedPlayer: entropy.AddPlayer{ID: id, Name: "p" + id.String(), Faction: faction},
	}}
}

func randomLocal(rnd *rand.Rand) entropy.LocalEntropy {
	var e entropy.LocalEntropy
	for i := rnd.Intn(3); i > 0; i-- {
		in := entropy.Intent{
			Type:   entropy.IntentType(rnd.Intn(int(entropy.NumIntentTypes))),
			Change: entropy.IntentChange(rnd.Intn(2)),
		}
		e.Intents = append(e.Intents, in)
	}
	if rnd.Intn(2) == 0 {
		e.Motions[entropy.MotionCrosshair] = entropy.Motion{X: int32(rnd.Intn(801) - 400), Y: int32(rnd.Intn(801) - 400)}
	}
	switch rnd.Intn(40) {
	case 0:
		e.Mode = entropy.TeamChoice{Faction: entropy.Faction(rnd.Intn(3))}
	case 1:
		e.Mode = entropy.ItemPurchase{Item: entropy.ItemID(rnd.Intn(4))}
	}
	return e
}

// randomSession produces a reproducible stream of step entropies with joins,
// leaves, admin commands and player input.
func randomSession(seed int64, steps int) []entropy.StepEntropy {
	rnd := rand.New(rand.NewSource(seed))
	out := make([]entropy.StepEntropy, steps)
	for i := range out {
		var s entropy.StepEntropy
		switch {
		case i < 6:
			s.General.AddedPlayer = entropy.AddPlayer{ID: entropy.PlayerID(i + 1), Name: "bot", Faction: entropy.Faction(1 + i%2)}
		case rnd.Intn(150) == 0:
			s.General.RemovedPlayer = entropy.PlayerID(1 + rnd.Intn(6))
		case rnd.Intn(200) == 0:
			s.General.Special = entropy.RulesChange{Rule: RuleMoveSpeed, Value: int32(4 + rnd.Intn(6))}
		case rnd.Intn(400) == 0:
			s.General.Special = entropy.MatchCommand{Kind: entropy.MatchRestart}
		}
		for id := entropy.PlayerID(1); id <= 8; id++ {
			s.Accept(id, randomLocal(rnd))
		}
		out[i] = s
	}
	return out
}

func TestAdvanceIsDeterministicAcrossInstances(t *testing.T) {
	session := randomSession(42, 600)
	worlds := []*Cosmos{newWorld(t), newWorld(t), newWorld(t)}
	worlds[2].integrator = physics.Euler{Workers: 4}

	for step, in := range session {
		for _, w := range worlds {
			advance(t, w, in)
		}
		ref := worlds[0].SignificantBytes()
		for i, w := range worlds[1:] {
			require.Truef(t, bytes.Equal(ref, w.SignificantBytes()), "world %d diverged at step %d", i+1, step)
		}
	}
	assert.Equal(t, uint64(600), worlds[0].Step())
	assert.NotZero(t, worlds[0].EntityCount())
}

func TestTimeIsDerivedFromStepCounter(t *testing.T) {
	c := newWorld(t)
	for i := 0; i < 90; i++ {
		advance(t, c, entropy.StepEntropy{})
	}
	assert.Equal(t, 1.5, c.Time())
	assert.Equal(t, 1.0/60, c.Delta())
}

func TestDanglingReferencesAreNoOps(t *testing.T) {
	a := newWorld(t)
	b := newWorld(t)
	advance(t, a, addPlayer(1, entropy.FactionRed))
	advance(t, b, addPlayer(1, entropy.FactionRed))

	var stale entropy.StepEntropy
	stale.Accept(99, entropy.LocalEntropy{Intents: []entropy.Intent{entropy.Press(entropy.IntentShoot)}})
	stale.General.RemovedPlayer = 77

	msgs := advance(t, a, stale)
	advance(t, b, entropy.StepEntropy{})

	assert.Empty(t, msgs)
	assert.True(t, a.Equal(b))
}

func TestAddingExistingPlayerIsIgnored(t *testing.T) {
	c := newWorld(t)
	advance(t, c, addPlayer(3, entropy.FactionBlue))
	before := c.Players()

	msgs := advance(t, c, addPlayer(3, entropy.FactionRed))

	assert.Empty(t, msgs)
	assert.Equal(t, before, c.Players())
}

func TestSquashedInputMatchesStepwiseWhenPaused(t *testing.T) {
	a := newWorld(t)
	b := newWorld(t)
	setup := addPlayer(1, entropy.FactionRed)
	setup.General.Special = entropy.MatchCommand{Kind: entropy.MatchPause}
	advance(t, a, setup)
	advance(t, b, setup)

	inputs := []entropy.LocalEntropy{
		{Intents: []entropy.Intent{entropy.Press(entropy.IntentMoveUp)}, Motions: entropy.Motions{{X: 150, Y: -25}}},
		{Motions: entropy.Motions{{X: -50, Y: 75}}},
		{Intents: []entropy.Intent{entropy.Release(entropy.IntentMoveUp), entropy.Press(entropy.IntentSprint)}, Mode: entropy.ItemPurchase{Item: ItemMedkit}},
	}

	for _, in := range inputs {
		var s entropy.StepEntropy
		s.Accept(1, in)
		advance(t, a, s)
	}

	var squashed entropy.StepEntropy
	squashed.Accept(1, entropy.Squash(inputs...))
	advance(t, b, squashed)
	advance(t, b, entropy.StepEntropy{})
	advance(t, b, entropy.StepEntropy{})

	assert.True(t, a.Equal(b))
}

func TestReinferDoesNotChangeFutureState(t *testing.T) {
	session := randomSession(7, 300)
	plain := newWorld(t)
	reinferred := newWorld(t)

	for i, in := range session {
		advance(t, plain, in)
		if i%3 == 0 {
			reinferred.Reinfer()
		}
		advance(t, reinferred, in)
		require.Truef(t, plain.Equal(reinferred), "step %d", i)
	}
}

func TestSignificantRoundTripContinuesIdentically(t *testing.T) {
	session := randomSession(99, 400)
	original := newWorld(t)
	for _, in := range session[:200] {
		advance(t, original, in)
	}

	restored, err := FromSignificant(original.SignificantBytes(), nil)
	require.NoError(t, err)
	require.True(t, original.Equal(restored))
	assert.Equal(t, original.StateHash(), restored.StateHash())

	for _, in := range session[200:] {
		advance(t, original, in)
		advance(t, restored, in)
	}
	assert.True(t, original.Equal(restored))
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	c := newWorld(t)
	for _, in := range randomSession(5, 50) {
		advance(t, c, in)
	}

	var buf bytes.Buffer
	require.NoError(t, c.SaveSnapshot(&buf))
	loaded, err := LoadSnapshot(&buf, nil)
	require.NoError(t, err)
	assert.True(t, c.Equal(loaded))

	_, err = LoadSnapshot(bytes.NewReader([]byte("nope, not a snapshot")), nil)
	require.ErrorIs(t, err, ErrSnapshotMagic)
}

func TestFromSignificantRejectsCorruptData(t *testing.T) {
	c := newWorld(t)
	advance(t, c, addPlayer(1, entropy.FactionRed))
	data := c.SignificantBytes()

	_, err := FromSignificant(data[:len(data)-3], nil)
	require.Error(t, err)

	bad := append([]byte(nil), data...)
	bad[0] = 9
	_, err = FromSignificant(bad, nil)
	require.ErrorIs(t, err, ErrSnapshotVersion)
}

type panickingIntegrator struct{}

func (panickingIntegrator) Step([]physics.Body, float64, physics.Rect) { panic("integrator blew up") }

func TestFailedStepRollsBack(t *testing.T) {
	c := newWorld(t)
	advance(t, c, addPlayer(1, entropy.FactionRed))
	before := c.SignificantBytes()

	c.integrator = panickingIntegrator{}
	var in entropy.StepEntropy
	in.Accept(1, entropy.LocalEntropy{Intents: []entropy.Intent{entropy.Press(entropy.IntentMoveLeft)}})
	msgs, err := c.Advance(in)

	require.ErrorIs(t, err, ErrStepRolledBack)
	assert.Nil(t, msgs)
	assert.Equal(t, before, c.SignificantBytes())
}

func TestStaleEntityIDDoesNotResolve(t *testing.T) {
	c := newWorld(t)
	advance(t, c, addPlayer(1, entropy.FactionRed))
	p, ok := c.Player(1)
	require.True(t, ok)
	old := p.Entity
	require.True(t, Has[Transform](c, old))

	var s entropy.StepEntropy
	s.Accept(1, entropy.LocalEntropy{Mode: entropy.TeamChoice{Faction: entropy.FactionBlue}})
	advance(t, c, s)

	p, _ = c.Player(1)
	assert.Equal(t, old.Index, p.Entity.Index)
	assert.Equal(t, old.Generation+1, p.Entity.Generation)
	assert.False(t, Has[Transform](c, old))
	assert.False(t, c.Entity(old).Alive())
	_, ok = Get[Health](c, old)
	assert.False(t, ok)
	assert.True(t, c.Entity(p.Entity).Alive())
}

func TestShotDamagesEnemyInBlastRadius(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bounds = physics.Rect{Min: physics.Vec2{X: -5, Y: -5}, Max: physics.Vec2{X: 5, Y: 5}}
	c, err := New(cfg)
	require.NoError(t, err)

	join := addPlayer(1, entropy.FactionRed)
	advance(t, c, join)
	advance(t, c, addPlayer(2, entropy.FactionBlue))

	shooter, _ := c.Player(1)
	victim, _ := c.Player(2)
	from, _ := c.Entity(shooter.Entity).Position()
	to, _ := c.Entity(victim.Entity).Position()
	delta := to.Sub(from)

	var aim entropy.StepEntropy
	aim.Accept(1, entropy.LocalEntropy{Motions: entropy.Motions{{X: int32(delta.X * 100), Y: int32(delta.Y * 100)}}})
	advance(t, c, aim)

	var fire entropy.StepEntropy
	fire.Accept(1, entropy.LocalEntropy{Intents: []entropy.Intent{entropy.Press(entropy.IntentShoot), entropy.Release(entropy.IntentShoot)}})
	msgs := advance(t, c, fire)

	var damaged []Damaged
	for _, m := range msgs {
		if d, ok := m.(Damaged); ok {
			damaged = append(damaged, d)
		}
	}
	require.Len(t, damaged, 1)
	assert.Equal(t, victim.Entity, damaged[0].Victim)
	assert.Equal(t, int32(75), damaged[0].Remaining)

	// cooldown blocks an immediate second shot
	msgs = advance(t, c, fire)
	for _, m := range msgs {
		assert.NotEqual(t, "combat.shot", m.Kind())
	}
}

func TestMatchCommandsAndRules(t *testing.T) {
	c := newWorld(t)
	advance(t, c, addPlayer(1, entropy.FactionRed))

	msgs := advance(t, c, entropy.StepEntropy{General: entropy.GeneralEntropy{Special: entropy.MatchCommand{Kind: entropy.MatchPause}}})
	require.Len(t, msgs, 1)
	assert.IsType(t, MatchPaused{}, msgs[0])
	assert.True(t, c.Paused())

	roundStep := c.sig.mode.RoundStep
	advance(t, c, entropy.StepEntropy{})
	assert.Equal(t, roundStep, c.sig.mode.RoundStep)

	msgs = advance(t, c, entropy.StepEntropy{General: entropy.GeneralEntropy{Special: entropy.RulesChange{Rule: RuleShotDamage, Value: 50}}})
	assert.Equal(t, Messages{RuleChanged{Rule: RuleShotDamage, Value: 50}}, msgs)
	assert.Equal(t, int32(50), c.Rule(RuleShotDamage))

	// back to default drops the override
	advance(t, c, entropy.StepEntropy{General: entropy.GeneralEntropy{Special: entropy.RulesChange{Rule: RuleShotDamage, Value: 25}}})
	assert.Empty(t, c.sig.mode.Rules)

	msgs = advance(t, c, entropy.StepEntropy{General: entropy.GeneralEntropy{Special: entropy.MatchCommand{Kind: entropy.MatchRestart}}})
	require.NotEmpty(t, msgs)
	assert.Equal(t, MatchRestarted{Round: 1}, msgs[0])
	assert.False(t, c.Paused())
}

func TestPurchaseAndUseItems(t *testing.T) {
	c := newWorld(t)
	advance(t, c, addPlayer(1, entropy.FactionRed))

	var buy entropy.StepEntropy
	buy.Accept(1, entropy.LocalEntropy{Mode: entropy.ItemPurchase{Item: ItemMedkit}})
	msgs := advance(t, c, buy)
	assert.Equal(t, Messages{ItemPurchased{Player: 1, Item: ItemMedkit}}, msgs)

	p, _ := c.Player(1)
	assert.Equal(t, int32(10), p.Credits)
	inv, ok := c.Entity(p.Entity).Inventory()
	require.True(t, ok)
	assert.Equal(t, 1, inv.Count(ItemMedkit))

	// not enough credits left
	assert.Empty(t, advance(t, c, buy))

	// full health, so the medkit is kept
	var use entropy.StepEntropy
	use.Accept(1, entropy.LocalEntropy{Intents: []entropy.Intent{entropy.Press(entropy.IntentUse)}})
	assert.Empty(t, advance(t, c, use))
}

func TestNearReturnsSortedIDsWithinRadius(t *testing.T) {
	c := newWorld(t)
	for id := entropy.PlayerID(1); id <= 20; id++ {
		advance(t, c, addPlayer(id, entropy.FactionRed))
	}
	ids := c.Near(physics.Vec2{}, 200)
	require.Len(t, ids, 20)
	for i := 1; i < len(ids); i++ {
		assert.True(t, ids[i-1].less(ids[i]))
	}
}
