package entropy

import (
	"math"
	"strconv"
)

// PlayerID identifies a player for the lifetime of a session. Zero is unset.
type PlayerID uint32

const (
	NoPlayer PlayerID = 0
	// MachineAdmin authors commands issued by the server or through rcon.
	MachineAdmin PlayerID = math.MaxUint32
)

func (id PlayerID) IsSet() bool { return id != NoPlayer }

func (id PlayerID) String() string {
	switch id {
	case NoPlayer:
		return "none"
	case MachineAdmin:
		return "admin"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// Faction a player fights for.
type Faction uint8

const (
	FactionSpectator Faction = iota
	FactionRed
	FactionBlue

	numFactions
)

func (f Faction) Valid() bool { return f < numFactions }

func (f Faction) String() string {
	switch f {
	case FactionSpectator:
		return "spectator"
	case FactionRed:
		return "red"
	case FactionBlue:
		return "blue"
	}
	return "faction(" + strconv.Itoa(int(f)) + ")"
}

// ItemID indexes the item catalog of the running match.
type ItemID uint16

// RuleID indexes a tunable match rule.
type RuleID uint16
