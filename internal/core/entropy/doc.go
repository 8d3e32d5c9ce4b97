// Package entropy models the per-step input fed to the simulation.
//
// A LocalEntropy is one player's contribution for one step: edge-triggered
// intents, accumulated motions and an optional one-shot mode command.
// A StepEntropy aggregates every player's LocalEntropy for one step, keyed in
// ascending PlayerID order, plus the GeneralEntropy (player joins and leaves,
// admin commands) that is not attributable to any single player.
//
// Every type here has a compact binary form. Sum types are encoded as a
// one-byte variant tag followed by the variant's content.
package entropy
