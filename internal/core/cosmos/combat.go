package cosmos

import (
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/physics"
)

const (
	shotRange   = 16.0
	blastRadius = 2.5
)

func (c *Cosmos) shoot(p *PlayerState, emit func(Message)) {
	ent := c.sig.lookup(p.Entity)
	if ent == nil || ent.shooter == nil || ent.transform == nil {
		return
	}
	step := c.sig.meta.Step
	if ent.shooter.ReadyAt > step {
		return
	}
	ent.shooter.ReadyAt = step + uint64(max(c.sig.mode.rule(RuleShotCooldownSteps), 0))

	aim := physics.Vec2{X: 1}
	reach := shotRange
	if ent.movement != nil && ent.movement.Aim != (physics.Vec2{}) {
		aim = ent.movement.Aim.Normalized()
		reach = min(ent.movement.Aim.Len(), shotRange)
	}
	target := ent.transform.Pos.AddScaled(aim, reach)
	emit(ShotFired{Player: p.ID, Entity: p.Entity, Target: target})

	damage := c.sig.mode.rule(RuleShotDamage)
	friendlyFire := c.sig.mode.rule(RuleFriendlyFire) != 0
	for _, victimID := range c.Near(target, blastRadius) {
		if victimID == p.Entity {
			continue
		}
		victim := c.sig.lookup(victimID)
		if victim == nil || victim.health == nil {
			continue
		}
		owner := c.sig.mode.player(victim.owner)
		if !friendlyFire && owner != nil && owner.Faction == p.Faction {
			continue
		}
		victim.health.Value -= damage
		emit(Damaged{Victim: victimID, Attacker: p.ID, Amount: damage, Remaining: max(victim.health.Value, 0)})
		if victim.health.Value <= 0 {
			c.kill(victimID, owner, p, emit)
		}
	}
}

func (c *Cosmos) kill(id EntityID, victim, killer *PlayerState, emit func(Message)) {
	c.despawn(id)
	var victimID entropy.PlayerID
	if victim != nil {
		victimID = victim.ID
		victim.Entity = EntityID{}
		victim.Deaths++
		victim.RespawnAt = c.sig.meta.Step + uint64(max(c.sig.mode.rule(RuleRespawnSteps), 0))
	}
	if victim == nil || victim.Faction != killer.Faction {
		killer.Kills++
		killer.Score++
		killer.Credits += c.sig.mode.rule(RuleKillReward)
	} else {
		killer.Score--
	}
	emit(Died{Victim: id, Player: victimID, Killer: killer.ID})
}
