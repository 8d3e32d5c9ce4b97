package rcon

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/lockstep/internal/core/cosmos"
	"github.com/zeusync/lockstep/internal/core/entropy"
)

func TestSafeEqual(t *testing.T) {
	assert.True(t, SafeEqual("secret", "secret"))
	assert.False(t, SafeEqual("secre", "secret"))
	assert.False(t, SafeEqual("secret!", "secret"))
	assert.False(t, SafeEqual("", ""))
	assert.False(t, SafeEqual("anything", ""))
}

func TestAuthorize(t *testing.T) {
	remote := &net.TCPAddr{IP: net.ParseIP("203.0.113.7"), Port: 1}
	internal := &net.UDPAddr{IP: net.ParseIP("192.168.1.20"), Port: 1}
	loopback := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}

	p := Policy{Password: "basic", MasterPassword: "master"}
	assert.Equal(t, LevelMaster, p.Authorize("master", remote))
	assert.Equal(t, LevelBasic, p.Authorize("basic", remote))
	assert.Equal(t, LevelDenied, p.Authorize("nope", remote))
	assert.Equal(t, LevelDenied, p.Authorize("", loopback))

	p.AutoAuthorizeLoopback = true
	assert.Equal(t, LevelMaster, p.Authorize("", loopback))
	assert.Equal(t, LevelDenied, p.Authorize("", internal))

	p.AutoAuthorizeInternal = true
	assert.Equal(t, LevelMaster, p.Authorize("", internal))

	onlyBasic := Policy{Password: "basic"}
	assert.Equal(t, LevelMaster, onlyBasic.Authorize("basic", remote))

	disabled := Policy{}
	assert.Equal(t, LevelDenied, disabled.Authorize("", remote))
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name  string
		req   Request
		level Level
		want  Action
		err   error
	}{
		{"restart", Request{Command: CmdRestartMatch}, LevelBasic,
			Action{General: entropy.MatchCommand{Kind: entropy.MatchRestart}, Notice: "restarted the match"}, nil},
		{"pause", Request{Command: CmdPause}, LevelMaster,
			Action{General: entropy.MatchCommand{Kind: entropy.MatchPause}, Notice: "paused the match"}, nil},
		{"set rule", Request{Command: CmdSetRule, Rule: uint16(cosmos.RuleShotDamage), Value: 50}, LevelBasic,
			Action{General: entropy.RulesChange{Rule: cosmos.RuleShotDamage, Value: 50}, Notice: "changed the rules"}, nil},
		{"unknown rule", Request{Command: CmdSetRule, Rule: 999}, LevelMaster, Action{}, ErrUnknownRule},
		{"info", Request{Command: CmdRuntimeInfo}, LevelBasic, Action{Info: true}, nil},
		{"kick basic", Request{Command: CmdKick, Player: 2}, LevelBasic, Action{}, ErrUnauthorized},
		{"kick", Request{Command: CmdKick, Player: 2, Reason: "afk"}, LevelMaster, Action{Kick: 2, KickReason: "afk"}, nil},
		{"kick nobody", Request{Command: CmdKick}, LevelMaster, Action{}, ErrNoTarget},
		{"shutdown", Request{Command: CmdShutdown}, LevelMaster, Action{Shutdown: true}, nil},
		{"denied", Request{Command: CmdPause}, LevelDenied, Action{}, ErrDenied},
		{"unknown", Request{Command: "reboot"}, LevelMaster, Action{}, ErrUnknownCommand},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.req.Resolve(tc.level)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPayloads(t *testing.T) {
	data, err := EncodeRequest(Request{Command: CmdSetRule, Password: "pw", Rule: 2, Value: -3})
	require.NoError(t, err)
	req, err := DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, Request{Command: CmdSetRule, Password: "pw", Rule: 2, Value: -3}, req)

	data, err = EncodeResponse(Response{OK: true, Info: &RuntimeInfo{Step: 10, Players: 2}})
	require.NoError(t, err)
	resp, err := DecodeResponse(data)
	require.NoError(t, err)
	require.NotNil(t, resp.Info)
	assert.Equal(t, uint64(10), resp.Info.Step)

	_, err = DecodeRequest([]byte{0xc1})
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestGate(t *testing.T) {
	g := NewGate(0, 3)
	for range 3 {
		assert.True(t, g.Allow("a"))
	}
	assert.False(t, g.Allow("a"))
	assert.True(t, g.Allow("b"))

	g.Forget("a")
	assert.True(t, g.Allow("a"))
}
