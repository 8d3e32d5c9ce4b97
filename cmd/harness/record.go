package main

import (
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeusync/lockstep/internal/core/cosmos"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/stepping"
)

type recordOptions struct {
	steps    uint64
	tickrate uint32
	seed     uint64
}

func newRecordCommand(logger log.Log) *cobra.Command {
	var opts recordOptions
	cmd := &cobra.Command{
		Use:   "record <session>",
		Short: "Record a session of generated input at irregular frame times",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			session := recordSession(opts)
			if err := session.SaveFile(args[0]); err != nil {
				return err
			}
			logger.Info("session recorded",
				log.String("file", args[0]),
				log.Uint64("steps", session.Length),
				log.Int("records", len(session.Records)))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&opts.steps, "steps", 600, "number of steps to record")
	cmd.Flags().Uint32Var(&opts.tickrate, "tickrate", cosmos.DefaultTickrate, "steps per second")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 7, "input generator seed")
	return cmd
}

// recordSession drives an unpacker with frames of 5 to 35 ms, so some
// steps merge input of several frames and some frames produce no step.
func recordSession(opts recordOptions) *stepping.Session {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	u := stepping.NewUnpacker(opts.tickrate, 0)
	u.StartRecording()
	held := map[entropy.IntentType]bool{}

	for u.Next() < opts.steps {
		var e entropy.LocalEntropy
		if rng.IntN(4) == 0 {
			t := entropy.IntentType(rng.IntN(int(entropy.NumIntentTypes)))
			if held[t] {
				e.Intents = append(e.Intents, entropy.Release(t))
			} else {
				e.Intents = append(e.Intents, entropy.Press(t))
			}
			held[t] = !held[t]
		}
		e.Motions[entropy.MotionCrosshair] = entropy.Motion{X: rng.Int32N(21) - 10, Y: rng.Int32N(21) - 10}
		if rng.IntN(200) == 0 {
			e.Mode = entropy.TeamChoice{Faction: entropy.Faction(1 + rng.IntN(2))}
		}
		u.Control(e)
		u.Unpack(time.Duration(5+rng.IntN(31)) * time.Millisecond)
	}
	session := u.StopRecording()
	if session.Length > opts.steps {
		session.Length = opts.steps
		for len(session.Records) > 0 && session.Records[len(session.Records)-1].Step >= opts.steps {
			session.Records = session.Records[:len(session.Records)-1]
		}
	}
	return session
}
