package cosmos

import (
	"slices"
	"sort"

	"github.com/zeusync/lockstep/internal/core/entropy"
)

// PlayerState is the mode's record of one player. It survives the death of
// the player's character.
type PlayerState struct {
	ID        entropy.PlayerID
	Name      string
	Faction   entropy.Faction
	Entity    EntityID
	Score     int32
	Kills     uint32
	Deaths    uint32
	Credits   int32
	RespawnAt uint64
}

type Rule struct {
	ID    entropy.RuleID
	Value int32
}

const (
	RuleMoveSpeed entropy.RuleID = iota + 1
	RuleShotDamage
	RuleShotCooldownSteps
	RuleRespawnSteps
	RuleFriendlyFire
	RuleMaxHealth
	RuleKillReward
	RuleStartingCredits
)

var defaultRules = map[entropy.RuleID]int32{
	RuleMoveSpeed:         6,
	RuleShotDamage:        25,
	RuleShotCooldownSteps: 20,
	RuleRespawnSteps:      120,
	RuleFriendlyFire:      0,
	RuleMaxHealth:         100,
	RuleKillReward:        20,
	RuleStartingCredits:   40,
}

// DefaultRule returns the value a rule has until it is changed.
func DefaultRule(id entropy.RuleID) (int32, bool) {
	v, ok := defaultRules[id]
	return v, ok
}

const (
	ItemMedkit entropy.ItemID = iota + 1
	ItemArmor
	ItemBoots
)

var itemPrices = map[entropy.ItemID]int32{
	ItemMedkit: 30,
	ItemArmor:  50,
	ItemBoots:  35,
}

func ItemPrice(id entropy.ItemID) (int32, bool) {
	p, ok := itemPrices[id]
	return p, ok
}

// ModeState is the game mode's significant state.
type ModeState struct {
	Players   []PlayerState // ascending by ID
	Round     uint32
	RoundStep uint64
	Paused    bool
	Rules     []Rule // ascending by ID, only values that differ from the defaults
}

func (m *ModeState) clone() ModeState {
	out := *m
	out.Players = slices.Clone(m.Players)
	out.Rules = slices.Clone(m.Rules)
	return out
}

func (m *ModeState) player(id entropy.PlayerID) *PlayerState {
	i := sort.Search(len(m.Players), func(i int) bool { return m.Players[i].ID >= id })
	if i < len(m.Players) && m.Players[i].ID == id {
		return &m.Players[i]
	}
	return nil
}

func (m *ModeState) addPlayer(p PlayerState) *PlayerState {
	i := sort.Search(len(m.Players), func(i int) bool { return m.Players[i].ID >= p.ID })
	m.Players = slices.Insert(m.Players, i, p)
	return &m.Players[i]
}

func (m *ModeState) removePlayer(id entropy.PlayerID) {
	m.Players = slices.DeleteFunc(m.Players, func(p PlayerState) bool { return p.ID == id })
}

func (m *ModeState) rule(id entropy.RuleID) int32 {
	i := sort.Search(len(m.Rules), func(i int) bool { return m.Rules[i].ID >= id })
	if i < len(m.Rules) && m.Rules[i].ID == id {
		return m.Rules[i].Value
	}
	return defaultRules[id]
}

func (m *ModeState) setRule(id entropy.RuleID, v int32) {
	i := sort.Search(len(m.Rules), func(i int) bool { return m.Rules[i].ID >= id })
	found := i < len(m.Rules) && m.Rules[i].ID == id
	if def, ok := defaultRules[id]; ok && def == v {
		if found {
			m.Rules = slices.Delete(m.Rules, i, i+1)
		}
		return
	}
	if found {
		m.Rules[i].Value = v
		return
	}
	m.Rules = slices.Insert(m.Rules, i, Rule{ID: id, Value: v})
}
