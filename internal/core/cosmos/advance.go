package cosmos

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/physics"
)

const (
	// crosshair motion is in hundredths of a world unit
	aimUnit     = 100.0
	maxAim      = 24.0
	turnRate    = 12.0
	sprintRatio = 1.5
	bootsBonus  = 0.25
	maxBoots    = 2
)

// Advance applies one step of entropy and moves the world forward by one
// fixed delta. References to players or entities that no longer exist are
// ignored. If the step cannot complete, the world is restored to its state
// before the call and ErrStepRolledBack is returned.
func (c *Cosmos) Advance(in entropy.StepEntropy) (msgs Messages, err error) {
	backup := c.sig.clone()
	defer func() {
		if r := recover(); r != nil {
			c.sig = backup
			c.Reinfer()
			msgs = nil
			err = errors.Wrapf(ErrStepRolledBack, "step %d: %v", backup.meta.Step, r)
		}
	}()

	var out Messages
	emit := func(m Message) { out = append(out, m) }

	c.applyGeneral(in.General, emit)
	in.Each(func(id entropy.PlayerID, e entropy.LocalEntropy) {
		c.applyPlayer(id, e, emit)
	})
	if !c.sig.mode.Paused {
		c.respawn(emit)
		c.integrate()
		c.sig.mode.RoundStep++
	}
	c.sig.meta.Step++
	return out, nil
}

func (c *Cosmos) applyGeneral(g entropy.GeneralEntropy, emit func(Message)) {
	mode := &c.sig.mode
	if id := g.RemovedPlayer; id.IsSet() {
		if p := mode.player(id); p != nil {
			c.despawn(p.Entity)
			mode.removePlayer(id)
			emit(PlayerLeft{Player: id})
		}
	}
	if a := g.AddedPlayer; a.IsSet() && mode.player(a.ID) == nil {
		p := mode.addPlayer(PlayerState{
			ID:      a.ID,
			Name:    a.Name,
			Faction: a.Faction,
			Credits: mode.rule(RuleStartingCredits),
		})
		emit(PlayerJoined{Player: a.ID, Name: a.Name, Faction: a.Faction})
		c.spawnCharacter(p, emit)
	}

	switch cmd := g.Special.(type) {
	case nil:
	case entropy.MatchCommand:
		c.applyMatchCommand(cmd, emit)
	case entropy.RulesChange:
		mode.setRule(cmd.Rule, cmd.Value)
		emit(RuleChanged{Rule: cmd.Rule, Value: cmd.Value})
	default:
		panic(fmt.Sprintf("unhandled general command %T", cmd))
	}
}

func (c *Cosmos) applyMatchCommand(cmd entropy.MatchCommand, emit func(Message)) {
	mode := &c.sig.mode
	switch cmd.Kind {
	case entropy.MatchRestart:
		mode.Round++
		mode.RoundStep = 0
		mode.Paused = false
		emit(MatchRestarted{Round: mode.Round})
		for i := range mode.Players {
			p := &mode.Players[i]
			c.despawn(p.Entity)
			p.Entity = EntityID{}
			p.Score, p.Kills, p.Deaths, p.RespawnAt = 0, 0, 0, 0
			p.Credits = mode.rule(RuleStartingCredits)
			c.spawnCharacter(p, emit)
		}
	case entropy.MatchPause:
		if !mode.Paused {
			mode.Paused = true
			emit(MatchPaused{})
		}
	case entropy.MatchResume:
		if mode.Paused {
			mode.Paused = false
			emit(MatchResumed{})
		}
	}
}

func (c *Cosmos) applyPlayer(id entropy.PlayerID, e entropy.LocalEntropy, emit func(Message)) {
	p := c.sig.mode.player(id)
	if p == nil {
		return
	}

	switch cmd := e.Mode.(type) {
	case nil:
	case entropy.TeamChoice:
		if cmd.Faction != p.Faction {
			c.despawn(p.Entity)
			p.Entity = EntityID{}
			p.Faction = cmd.Faction
			emit(TeamChanged{Player: id, Faction: cmd.Faction})
			c.spawnCharacter(p, emit)
		}
	case entropy.ItemPurchase:
		c.purchase(p, cmd.Item, emit)
	default:
		panic(fmt.Sprintf("unhandled mode command %T", cmd))
	}

	ent := c.sig.lookup(p.Entity)
	if ent == nil || ent.movement == nil {
		return
	}
	for _, in := range e.Intents {
		ent.movement.apply(in)
		if in.Change != entropy.Pressed || c.sig.mode.Paused {
			continue
		}
		switch in.Type {
		case entropy.IntentShoot:
			c.shoot(p, emit)
		case entropy.IntentUse:
			c.useItem(p, emit)
		}
	}
	if m := e.Motions[entropy.MotionCrosshair]; !m.IsZero() {
		aim := ent.movement.Aim.Add(physics.Vec2{X: float64(m.X) / aimUnit, Y: float64(m.Y) / aimUnit})
		if l := aim.Len(); l > maxAim {
			aim = aim.Scale(maxAim / l)
		}
		ent.movement.Aim = aim
	}
}

func (c *Cosmos) purchase(p *PlayerState, item entropy.ItemID, emit func(Message)) {
	price, ok := itemPrices[item]
	if !ok || p.Credits < price {
		return
	}
	ent := c.sig.lookup(p.Entity)
	if ent == nil || ent.inventory == nil {
		return
	}
	if item == ItemBoots && ent.inventory.Count(ItemBoots) >= maxBoots {
		return
	}
	p.Credits -= price
	ent.inventory.Items = append(ent.inventory.Items, item)
	if item == ItemArmor && ent.health != nil {
		ent.health.Max += 25
		ent.health.Value += 25
	}
	emit(ItemPurchased{Player: p.ID, Item: item})
}

func (c *Cosmos) useItem(p *PlayerState, emit func(Message)) {
	ent := c.sig.lookup(p.Entity)
	if ent == nil || ent.inventory == nil || ent.health == nil {
		return
	}
	if ent.health.Value >= ent.health.Max || !ent.inventory.take(ItemMedkit) {
		return
	}
	ent.health.Value = ent.health.Max
	emit(ItemUsed{Player: p.ID, Item: ItemMedkit})
}

func (c *Cosmos) randomPoint() physics.Vec2 {
	b := c.sig.meta.Bounds
	w := b.Max.X - b.Min.X
	h := b.Max.Y - b.Min.Y
	return physics.Vec2{X: b.Min.X + float64(c.sig.rng.unit()*w), Y: b.Min.Y + float64(c.sig.rng.unit()*h)}
}

func (c *Cosmos) spawnCharacter(p *PlayerState, emit func(Message)) {
	if p.Faction == entropy.FactionSpectator || c.sig.lookup(p.Entity) != nil {
		return
	}
	maxHealth := c.sig.mode.rule(RuleMaxHealth)
	pos := c.randomPoint()
	id := c.sig.create(entity{
		owner:     p.ID,
		transform: &Transform{Pos: pos},
		movement:  &Movement{},
		health:    &Health{Value: maxHealth, Max: maxHealth},
		inventory: &Inventory{},
		shooter:   &Shooter{},
	})
	p.Entity = id
	c.solv.track(id, c.sig.lookup(id))
	emit(Spawned{Player: p.ID, Entity: id, Pos: pos})
}

func (c *Cosmos) despawn(id EntityID) {
	e := c.sig.lookup(id)
	if e == nil {
		return
	}
	c.solv.untrack(id, e)
	c.sig.destroy(id)
}

func (c *Cosmos) respawn(emit func(Message)) {
	step := c.sig.meta.Step
	for i := range c.sig.mode.Players {
		p := &c.sig.mode.Players[i]
		if !p.Entity.IsSet() && p.RespawnAt <= step {
			c.spawnCharacter(p, emit)
		}
	}
}

// integrate moves every body by one fixed delta. Bodies are loaded from
// significant state, so the body cache layout never influences the result.
func (c *Cosmos) integrate() {
	dt := c.Delta()
	baseSpeed := float64(c.sig.mode.rule(RuleMoveSpeed))

	for h, id := range c.solv.owners {
		e := c.sig.lookup(id)
		m := e.movement
		var dir physics.Vec2
		if m.holds(entropy.IntentMoveUp) {
			dir.Y--
		}
		if m.holds(entropy.IntentMoveDown) {
			dir.Y++
		}
		if m.holds(entropy.IntentMoveLeft) {
			dir.X--
		}
		if m.holds(entropy.IntentMoveRight) {
			dir.X++
		}
		speed := baseSpeed
		if m.holds(entropy.IntentSprint) {
			speed = float64(speed * sprintRatio)
		}
		if e.inventory != nil {
			speed = float64(speed * (1 + float64(bootsBonus*float64(e.inventory.Count(ItemBoots)))))
		}
		target := dir.Normalized().Scale(speed)
		c.solv.bodies[h] = physics.Body{
			Pos:      e.transform.Pos,
			Vel:      m.Vel,
			Accel:    target.Sub(m.Vel).Scale(turnRate),
			Damping:  1,
			MaxSpeed: speed,
		}
	}

	c.integrator.Step(c.solv.bodies, dt, c.sig.meta.Bounds)

	for h, id := range c.solv.owners {
		e := c.sig.lookup(id)
		b := c.solv.bodies[h]
		c.solv.move(id, e.transform.Pos, b.Pos)
		e.transform.Pos = b.Pos
		e.movement.Vel = b.Vel
	}
}
