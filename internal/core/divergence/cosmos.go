package divergence

import (
	"github.com/zeusync/lockstep/internal/core/cosmos"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/stepping"
)

// World runs a cosmos under the harness.
type World struct{ *cosmos.Cosmos }

func (w World) Advance(e entropy.StepEntropy) error {
	_, err := w.Cosmos.Advance(e)
	return err
}

// Worlds creates n fresh worlds from the same configuration.
func Worlds(n int, cfg cosmos.Config) ([]World, error) {
	out := make([]World, n)
	for i := range out {
		c, err := cosmos.New(cfg)
		if err != nil {
			return nil, err
		}
		out[i] = World{c}
	}
	return out, nil
}

// Replay feeds a recorded session as the input of one player. The player
// joins on the first step.
func Replay(s *stepping.Session, player entropy.AddPlayer) func() (entropy.StepEntropy, bool) {
	step := s.Start
	return func() (entropy.StepEntropy, bool) {
		if step >= s.End() {
			return entropy.StepEntropy{}, false
		}
		var out entropy.StepEntropy
		if step == s.Start {
			out.General.AddedPlayer = player
		}
		out.Accept(player.ID, s.At(step).Clone())
		step++
		return out, true
	}
}
