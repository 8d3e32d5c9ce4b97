package rcon

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeusync/lockstep/internal/core/cosmos"
	"github.com/zeusync/lockstep/internal/core/entropy"
)

type Command string

const (
	CmdRestartMatch Command = "restart_match"
	CmdPause        Command = "pause"
	CmdResume       Command = "resume"
	CmdSetRule      Command = "set_rule"
	CmdKick         Command = "kick"
	CmdShutdown     Command = "shutdown"
	CmdRuntimeInfo  Command = "runtime_info"
)

// Request is what an admin client sends inside protocol.ClientRcon.
type Request struct {
	Command  Command `msgpack:"command"`
	Password string  `msgpack:"password,omitempty"`
	Rule     uint16  `msgpack:"rule,omitempty"`
	Value    int32   `msgpack:"value,omitempty"`
	Player   uint32  `msgpack:"player,omitempty"`
	Reason   string  `msgpack:"reason,omitempty"`
}

type RuntimeInfo struct {
	Step          uint64 `msgpack:"step"`
	Tickrate      uint32 `msgpack:"tickrate"`
	Round         uint32 `msgpack:"round"`
	Paused        bool   `msgpack:"paused"`
	Players       int    `msgpack:"players"`
	Clients       int    `msgpack:"clients"`
	UptimeSeconds int64  `msgpack:"uptime_seconds"`
}

// Response answers every request that passed the rate limiter.
type Response struct {
	OK    bool         `msgpack:"ok"`
	Error string       `msgpack:"error,omitempty"`
	Info  *RuntimeInfo `msgpack:"info,omitempty"`
}

func EncodeRequest(r Request) ([]byte, error) {
	return msgpack.Marshal(&r)
}

func DecodeRequest(data []byte) (Request, error) {
	var r Request
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return Request{}, errors.Wrap(ErrBadPayload, err.Error())
	}
	return r, nil
}

func EncodeResponse(r Response) ([]byte, error) {
	return msgpack.Marshal(&r)
}

func DecodeResponse(data []byte) (Response, error) {
	var r Response
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return Response{}, errors.Wrap(ErrBadPayload, err.Error())
	}
	return r, nil
}

// Action is what the server does for an authorized request. General is
// queued into the next step's general entropy; the other fields are
// handled outside the simulation.
type Action struct {
	General    entropy.GeneralCommand
	Kick       entropy.PlayerID
	KickReason string
	Shutdown   bool
	Info       bool
	// Notice completes "<nickname> <notice>." in the chat.
	Notice string
}

// Resolve maps a request to an action. Basic access covers match control,
// rules and runtime info; kicking and shutting down need master access.
func (r Request) Resolve(level Level) (Action, error) {
	if level == LevelDenied {
		return Action{}, ErrDenied
	}
	switch r.Command {
	case CmdRestartMatch:
		return Action{General: entropy.MatchCommand{Kind: entropy.MatchRestart}, Notice: "restarted the match"}, nil
	case CmdPause:
		return Action{General: entropy.MatchCommand{Kind: entropy.MatchPause}, Notice: "paused the match"}, nil
	case CmdResume:
		return Action{General: entropy.MatchCommand{Kind: entropy.MatchResume}, Notice: "resumed the match"}, nil
	case CmdSetRule:
		id := entropy.RuleID(r.Rule)
		if _, ok := cosmos.DefaultRule(id); !ok {
			return Action{}, errors.Wrapf(ErrUnknownRule, "rule %d", r.Rule)
		}
		return Action{General: entropy.RulesChange{Rule: id, Value: r.Value}, Notice: "changed the rules"}, nil
	case CmdRuntimeInfo:
		return Action{Info: true}, nil
	case CmdKick, CmdShutdown:
		if level < LevelMaster {
			return Action{}, errors.Wrapf(ErrUnauthorized, "%s", r.Command)
		}
		if r.Command == CmdShutdown {
			return Action{Shutdown: true}, nil
		}
		target := entropy.PlayerID(r.Player)
		if !target.IsSet() {
			return Action{}, errors.Wrapf(ErrNoTarget, "%s", r.Command)
		}
		return Action{Kick: target, KickReason: r.Reason}, nil
	}
	return Action{}, errors.Wrapf(ErrUnknownCommand, "%q", r.Command)
}
