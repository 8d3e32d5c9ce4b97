package cosmos

import (
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/physics"
)

// Message describes something that happened during a step. Messages are for
// presentation and logging only and never feed back into the simulation.
type Message interface {
	Kind() string
}

type Messages []Message

type PlayerJoined struct {
	Player  entropy.PlayerID
	Name    string
	Faction entropy.Faction
}

type PlayerLeft struct {
	Player entropy.PlayerID
}

type TeamChanged struct {
	Player  entropy.PlayerID
	Faction entropy.Faction
}

type Spawned struct {
	Player entropy.PlayerID
	Entity EntityID
	Pos    physics.Vec2
}

type ShotFired struct {
	Player entropy.PlayerID
	Entity EntityID
	Target physics.Vec2
}

type Damaged struct {
	Victim    EntityID
	Attacker  entropy.PlayerID
	Amount    int32
	Remaining int32
}

type Died struct {
	Victim EntityID
	Player entropy.PlayerID
	Killer entropy.PlayerID
}

type ItemPurchased struct {
	Player entropy.PlayerID
	Item   entropy.ItemID
}

type ItemUsed struct {
	Player entropy.PlayerID
	Item   entropy.ItemID
}

type MatchRestarted struct {
	Round uint32
}

type MatchPaused struct{}

type MatchResumed struct{}

type RuleChanged struct {
	Rule  entropy.RuleID
	Value int32
}

func (PlayerJoined) Kind() string   { return "player.joined" }
func (PlayerLeft) Kind() string     { return "player.left" }
func (TeamChanged) Kind() string    { return "player.team_changed" }
func (Spawned) Kind() string        { return "entity.spawned" }
func (ShotFired) Kind() string      { return "combat.shot" }
func (Damaged) Kind() string        { return "combat.damaged" }
func (Died) Kind() string           { return "combat.died" }
func (ItemPurchased) Kind() string  { return "item.purchased" }
func (ItemUsed) Kind() string       { return "item.used" }
func (MatchRestarted) Kind() string { return "match.restarted" }
func (MatchPaused) Kind() string    { return "match.paused" }
func (MatchResumed) Kind() string   { return "match.resumed" }
func (RuleChanged) Kind() string    { return "match.rule_changed" }
