package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/zeusync/lockstep/internal/core/cosmos"
	"github.com/zeusync/lockstep/internal/core/divergence"
	"github.com/zeusync/lockstep/internal/core/entropy"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/stepping"
)

var errDiverged = errors.New("clones diverged")

type runOptions struct {
	clones int
	seed   uint64
}

func newRunCommand(logger log.Log) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <session>",
		Short: "Replay a session on several clones and report the first divergence",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSession(logger, args[0], opts)
		},
	}
	cmd.Flags().IntVarP(&opts.clones, "clones", "n", 4, "number of worlds to compare")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "world seed")
	return cmd
}

func runSession(logger log.Log, path string, opts runOptions) error {
	session, err := stepping.LoadSessionFile(path)
	if err != nil {
		return err
	}
	cfg := cosmos.DefaultConfig()
	cfg.Tickrate = session.Tickrate
	cfg.Seed = opts.seed
	worlds, err := divergence.Worlds(opts.clones, cfg)
	if err != nil {
		return err
	}
	h, err := divergence.New(worlds...)
	if err != nil {
		return err
	}

	logger.Info("replaying session",
		log.String("file", path),
		log.Int("clones", opts.clones),
		log.Uint64("steps", session.Length),
		log.Int("records", len(session.Records)))

	player := entropy.AddPlayer{ID: 1, Name: "recorded", Faction: entropy.FactionRed}
	report, err := h.Run(divergence.Replay(session, player))
	if err != nil {
		return err
	}
	if report.Diverged {
		logger.Error("clones diverged", log.Int("clone", report.Clone), log.Step(report.Step))
		return errors.Wrapf(errDiverged, "clone %d at step %d", report.Clone, report.Step)
	}
	logger.Info("clones agree",
		log.Step(worlds[0].Step()),
		log.Uint32("state_hash", worlds[0].StateHash()),
		log.Int("entities", worlds[0].EntityCount()))
	return nil
}
