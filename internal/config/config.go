// Package config holds the server variables. Values come from the defaults,
// then an optional YAML file, then LOCKSTEP_* environment variables.
package config

import (
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/core/jitter"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "LOCKSTEP_"

// MaxKickLinger caps how long a kicked client is kept to flush its notice.
const MaxKickLinger = 15 * time.Second

var ErrInvalid = errors.New("invalid server vars")

// ServerVars are the public server settings.
type ServerVars struct {
	Tickrate           uint32  `yaml:"tickrate" env:"TICKRATE"`
	SendStateHashEvery uint32  `yaml:"send_state_hash_every" env:"STATE_HASH_EVERY"`
	Seed               uint64  `yaml:"seed" env:"SEED"`
	WorldHalfExtent    float64 `yaml:"world_half_extent" env:"WORLD_HALF_EXTENT"`

	MaxClients                int           `yaml:"max_clients" env:"MAX_CLIENTS"`
	MaxBufferedClientCommands uint32        `yaml:"max_buffered_client_commands" env:"MAX_BUFFERED_CLIENT_COMMANDS"`
	MaxKickLinger             time.Duration `yaml:"max_kick_linger" env:"MAX_KICK_LINGER"`
	NetworkTimeout            time.Duration `yaml:"network_timeout" env:"NETWORK_TIMEOUT"`
	// AuthTimeout is how long a client may play before its token is
	// verified. Zero disables the requirement.
	AuthTimeout time.Duration `yaml:"auth_timeout" env:"AUTH_TIMEOUT"`
	AuthTokens  []string      `yaml:"auth_tokens,omitempty" env:"AUTH_TOKENS" envSeparator:","`

	// Jitter caps what clients may request.
	Jitter jitter.Settings `yaml:"jitter" envPrefix:"JITTER_"`

	WebsocketAddr string `yaml:"websocket_addr" env:"WEBSOCKET_ADDR"`
	QuicAddr      string `yaml:"quic_addr" env:"QUIC_ADDR"`

	AutoAuthorizeLoopbackForRcon bool `yaml:"auto_authorize_loopback_for_rcon" env:"RCON_AUTO_LOOPBACK"`
	AutoAuthorizeInternalForRcon bool `yaml:"auto_authorize_internal_for_rcon" env:"RCON_AUTO_INTERNAL"`

	AutosaveEverySteps uint64 `yaml:"autosave_every_steps" env:"AUTOSAVE_EVERY_STEPS"`
	SnapshotDB         string `yaml:"snapshot_db" env:"SNAPSHOT_DB"`
	KeepSnapshots      int    `yaml:"keep_snapshots" env:"KEEP_SNAPSHOTS"`

	UserDir  string `yaml:"user_dir" env:"USER_DIR"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// PrivateVars never leave the process and are read from the environment only.
type PrivateVars struct {
	RconPassword       string `env:"RCON_PASSWORD"`
	MasterRconPassword string `env:"MASTER_RCON_PASSWORD"`
}

func Default() ServerVars {
	return ServerVars{
		Tickrate:                     60,
		SendStateHashEvery:           30,
		Seed:                         1,
		WorldHalfExtent:              64,
		MaxClients:                   32,
		MaxBufferedClientCommands:    1000,
		MaxKickLinger:                2 * time.Second,
		NetworkTimeout:               5 * time.Second,
		Jitter:                       jitter.DefaultSettings(),
		WebsocketAddr:                ":8412",
		AutoAuthorizeLoopbackForRcon: true,
		AutosaveEverySteps:           0,
		SnapshotDB:                   "snapshots.db",
		KeepSnapshots:                20,
		UserDir:                      "user",
		LogLevel:                     "info",
	}
}

func (v ServerVars) Validate() error {
	switch {
	case v.Tickrate == 0:
		return errors.Wrap(ErrInvalid, "tickrate must be positive")
	case v.SendStateHashEvery == 0:
		return errors.Wrap(ErrInvalid, "send_state_hash_every must be positive")
	case v.WorldHalfExtent <= 0:
		return errors.Wrap(ErrInvalid, "world_half_extent must be positive")
	case v.MaxClients <= 0:
		return errors.Wrap(ErrInvalid, "max_clients must be positive")
	case v.MaxBufferedClientCommands == 0:
		return errors.Wrap(ErrInvalid, "max_buffered_client_commands must be positive")
	case v.MaxKickLinger < 0:
		return errors.Wrap(ErrInvalid, "max_kick_linger must not be negative")
	case v.NetworkTimeout <= 0:
		return errors.Wrap(ErrInvalid, "network_timeout must be positive")
	case v.WebsocketAddr == "" && v.QuicAddr == "":
		return errors.Wrap(ErrInvalid, "at least one listen address is required")
	case v.AutosaveEverySteps > 0 && v.SnapshotDB == "":
		return errors.Wrap(ErrInvalid, "autosave needs snapshot_db")
	}
	return nil
}

// TickDuration is the wall clock length of one step.
func (v ServerVars) TickDuration() time.Duration {
	return time.Second / time.Duration(v.Tickrate)
}

// KickLinger is MaxKickLinger clamped to [0, 15s].
func (v ServerVars) KickLinger() time.Duration {
	return min(max(v.MaxKickLinger, 0), MaxKickLinger)
}

// LoadYAML decodes vars from r on top of the defaults.
func LoadYAML(r io.Reader) (ServerVars, error) {
	v := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return ServerVars{}, errors.Wrap(err, "decode server vars")
	}
	return v, nil
}

// Load reads path if it is not empty, applies environment overrides and
// validates the result.
func Load(path string) (ServerVars, error) {
	v := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return ServerVars{}, errors.Wrapf(err, "open %s", path)
		}
		v, err = LoadYAML(f)
		_ = f.Close()
		if err != nil {
			return ServerVars{}, err
		}
	}
	if err := env.ParseWithOptions(&v, env.Options{Prefix: EnvPrefix}); err != nil {
		return ServerVars{}, errors.Wrap(err, "parse env")
	}
	if err := v.Validate(); err != nil {
		return ServerVars{}, err
	}
	return v, nil
}

// Save writes vars as YAML in the form LoadYAML reads.
func Save(w io.Writer, v ServerVars) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode server vars")
	}
	return enc.Close()
}

func LoadPrivate() (PrivateVars, error) {
	var p PrivateVars
	if err := env.Parse(&p); err != nil {
		return PrivateVars{}, errors.Wrap(err, "parse private vars")
	}
	return p, nil
}
