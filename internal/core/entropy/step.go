package entropy

import (
	"slices"
	"sort"
)

// AddPlayer introduces a player into the match.
type AddPlayer struct {
	ID      PlayerID
	Name    string
	Faction Faction
}

func (a AddPlayer) IsSet() bool { return a.ID.IsSet() }

// GeneralEntropy holds the commands of a step that no player's timing
// is responsible for. At most one addition and one removal happen per step.
type GeneralEntropy struct {
	AddedPlayer   AddPlayer
	RemovedPlayer PlayerID
	Special       GeneralCommand
}

func (g GeneralEntropy) IsEmpty() bool {
	return !g.AddedPlayer.IsSet() && !g.RemovedPlayer.IsSet() && g.Special == nil
}

// PopulationChanged reports whether applying g adds or removes a player.
func (g GeneralEntropy) PopulationChanged() bool {
	return g.AddedPlayer.IsSet() || g.RemovedPlayer.IsSet()
}

type PlayerEntropy struct {
	Player  PlayerID
	Entropy LocalEntropy
}

// StepEntropy is the complete input of one simulation step.
// Players is kept sorted by strictly ascending PlayerID.
type StepEntropy struct {
	Players []PlayerEntropy
	General GeneralEntropy
}

func (s *StepEntropy) search(id PlayerID) (int, bool) {
	i := sort.Search(len(s.Players), func(i int) bool { return s.Players[i].Player >= id })
	return i, i < len(s.Players) && s.Players[i].Player == id
}

// Accept records e as the input of player id. Empty entropies are dropped and
// a second contribution for the same player is merged into the first.
func (s *StepEntropy) Accept(id PlayerID, e LocalEntropy) {
	if !id.IsSet() || e.IsEmpty() {
		return
	}
	i, found := s.search(id)
	if found {
		s.Players[i].Entropy.Merge(e)
		return
	}
	s.Players = slices.Insert(s.Players, i, PlayerEntropy{Player: id, Entropy: e})
}

func (s StepEntropy) Get(id PlayerID) (LocalEntropy, bool) {
	i, found := s.search(id)
	if !found {
		return LocalEntropy{}, false
	}
	return s.Players[i].Entropy, true
}

// Each visits player entropies in ascending PlayerID order.
func (s StepEntropy) Each(fn func(PlayerID, LocalEntropy)) {
	for _, p := range s.Players {
		fn(p.Player, p.Entropy)
	}
}

func (s StepEntropy) IsEmpty() bool {
	return len(s.Players) == 0 && s.General.IsEmpty()
}

func (s StepEntropy) Equal(o StepEntropy) bool {
	if s.General != o.General || len(s.Players) != len(o.Players) {
		return false
	}
	for i := range s.Players {
		if s.Players[i].Player != o.Players[i].Player || !s.Players[i].Entropy.Equal(o.Players[i].Entropy) {
			return false
		}
	}
	return true
}

func (s StepEntropy) Clone() StepEntropy {
	out := StepEntropy{General: s.General}
	if len(s.Players) > 0 {
		out.Players = make([]PlayerEntropy, len(s.Players))
		for i, p := range s.Players {
			out.Players[i] = PlayerEntropy{Player: p.Player, Entropy: p.Entropy.Clone()}
		}
	}
	return out
}
