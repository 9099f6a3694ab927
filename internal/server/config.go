package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/cardroomlabs/cardroom/internal/engine"
)

// Config is the complete server configuration, loaded from HCL.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Rooms  []RoomSettings `hcl:"room,block"`
	Bots   []BotSettings  `hcl:"bot,block"`
}

// ServerSettings holds process-level configuration.
type ServerSettings struct {
	Address         string `hcl:"address,optional"`
	Port            int    `hcl:"port,optional"`
	LogLevel        string `hcl:"log_level,optional"`
	DatabasePath    string `hcl:"database_path,optional"`
	ReplayDir       string `hcl:"replay_dir,optional"`
	ActionTimeoutMs int    `hcl:"action_timeout_ms,optional"`
	HandDelayMs     int    `hcl:"hand_delay_ms,optional"`
	MinReadyPlayers int    `hcl:"min_ready_players,optional"`
}

// RoomSettings declares one room created at startup.
type RoomSettings struct {
	Name                string `hcl:"name,label"`
	GameType            string `hcl:"game_type,optional"`
	SmallBlind          int    `hcl:"small_blind"`
	BigBlind            int    `hcl:"big_blind"`
	MaxPlayers          int    `hcl:"max_players,optional"`
	StartingStack       int    `hcl:"starting_stack,optional"`
	SpectatorVisibility string `hcl:"spectator_visibility,optional"`
}

// BotSettings declares an in-process bot seated at startup.
type BotSettings struct {
	Name     string   `hcl:"name,label"`
	Strategy string   `hcl:"strategy,optional"`
	Rooms    []string `hcl:"rooms,optional"`
}

// DefaultConfig is what a missing config file yields: one cash room
// and no bots.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:         "localhost",
			Port:            8080,
			LogLevel:        "info",
			DatabasePath:    "cardroom.db",
			ReplayDir:       "replays",
			ActionTimeoutMs: 30000,
			HandDelayMs:     3000,
			MinReadyPlayers: 2,
		},
		Rooms: []RoomSettings{{
			Name:                "main",
			GameType:            string(engine.GameTypeCash),
			SmallBlind:          5,
			BigBlind:            10,
			MaxPlayers:          6,
			StartingStack:       1000,
			SpectatorVisibility: string(engine.VisibilityShowdown),
		}},
	}
}

// LoadConfig parses the HCL file at path, falling back to defaults
// when the file does not exist.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse config: %s", diags.Error())
	}
	var cfg Config
	if diags = gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("decode config: %s", diags.Error())
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig().Server
	if c.Server.Address == "" {
		c.Server.Address = def.Address
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Port
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = def.LogLevel
	}
	if c.Server.DatabasePath == "" {
		c.Server.DatabasePath = def.DatabasePath
	}
	if c.Server.ReplayDir == "" {
		c.Server.ReplayDir = def.ReplayDir
	}
	if c.Server.ActionTimeoutMs == 0 {
		c.Server.ActionTimeoutMs = def.ActionTimeoutMs
	}
	if c.Server.HandDelayMs == 0 {
		c.Server.HandDelayMs = def.HandDelayMs
	}
	if c.Server.MinReadyPlayers == 0 {
		c.Server.MinReadyPlayers = def.MinReadyPlayers
	}
	for i := range c.Rooms {
		r := &c.Rooms[i]
		if r.GameType == "" {
			r.GameType = string(engine.GameTypeCash)
		}
		if r.MaxPlayers == 0 {
			r.MaxPlayers = 6
		}
		if r.StartingStack == 0 {
			r.StartingStack = r.BigBlind * 100
		}
		if r.SpectatorVisibility == "" {
			r.SpectatorVisibility = string(engine.VisibilityShowdown)
		}
	}
	for i := range c.Bots {
		if c.Bots[i].Strategy == "" {
			c.Bots[i].Strategy = "call"
		}
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if len(c.Rooms) == 0 {
		return fmt.Errorf("at least one room must be configured")
	}
	for _, r := range c.Rooms {
		if r.SmallBlind <= 0 {
			return fmt.Errorf("room %s: small blind must be positive", r.Name)
		}
		if r.BigBlind <= r.SmallBlind {
			return fmt.Errorf("room %s: big blind must exceed small blind", r.Name)
		}
		if r.MaxPlayers < 2 || r.MaxPlayers > 10 {
			return fmt.Errorf("room %s: max players must be 2-10", r.Name)
		}
		if r.StartingStack < r.BigBlind {
			return fmt.Errorf("room %s: starting stack below one big blind", r.Name)
		}
		switch engine.GameType(r.GameType) {
		case engine.GameTypeCash, engine.GameTypeTournament:
		default:
			return fmt.Errorf("room %s: unknown game type %q", r.Name, r.GameType)
		}
		switch engine.Visibility(r.SpectatorVisibility) {
		case engine.VisibilityImmediate, engine.VisibilityDelayed, engine.VisibilityShowdown:
		default:
			return fmt.Errorf("room %s: unknown spectator visibility %q", r.Name, r.SpectatorVisibility)
		}
	}
	for _, b := range c.Bots {
		if b.Strategy != "call" {
			return fmt.Errorf("bot %s: unknown strategy %q", b.Name, b.Strategy)
		}
	}
	return nil
}

// ListenAddress is the host:port the HTTP server binds.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// ActionTimeout converts the configured timeout to a duration.
func (c *Config) ActionTimeout() time.Duration {
	return time.Duration(c.Server.ActionTimeoutMs) * time.Millisecond
}

// HandDelay is the pause between HAND_END and the next hand.
func (c *Config) HandDelay() time.Duration {
	return time.Duration(c.Server.HandDelayMs) * time.Millisecond
}
