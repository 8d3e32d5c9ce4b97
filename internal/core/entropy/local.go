package entropy

import "slices"

// LocalEntropy is one player's input for one step.
type LocalEntropy struct {
	Intents []Intent
	Motions Motions
	Mode    ModeCommand
}

// Merge folds other into e. Intents append in order so that edges inside the
// merged window survive, motions are summed and a later mode command replaces
// an earlier one.
func (e *LocalEntropy) Merge(other LocalEntropy) {
	if len(other.Intents) > 0 {
		e.Intents = append(e.Intents, other.Intents...)
	}
	e.Motions.Add(other.Motions)
	if other.Mode != nil {
		e.Mode = other.Mode
	}
}

func (e LocalEntropy) IsEmpty() bool {
	return len(e.Intents) == 0 && e.Motions.IsZero() && e.Mode == nil
}

func (e LocalEntropy) Equal(o LocalEntropy) bool {
	return slices.Equal(e.Intents, o.Intents) && e.Motions == o.Motions && e.Mode == o.Mode
}

// Clone returns a copy that shares no memory with e.
func (e LocalEntropy) Clone() LocalEntropy {
	out := e
	out.Intents = slices.Clone(e.Intents)
	return out
}

// Squash merges entries in order into a single entropy.
func Squash(entries ...LocalEntropy) LocalEntropy {
	var out LocalEntropy
	for _, e := range entries {
		out.Merge(e)
	}
	return out
}
