// Package config loads the cardroom HCL configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/store"
)

// Config is the complete file.
type Config struct {
	Server *ServerSettings `hcl:"server,block"`
	Store  *StoreSettings  `hcl:"store,block"`
	Tables []TableConfig   `hcl:"table,block"`
}

// ServerSettings configures the websocket listener and logging.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// StoreSettings selects where balances live.
type StoreSettings struct {
	Driver string `hcl:"driver,optional"`
	DSN    string `hcl:"dsn,optional"`
}

// TableConfig is one table block. Unset attributes take the house defaults.
type TableConfig struct {
	Name         string  `hcl:"name,label"`
	Variant      string  `hcl:"variant"`
	MinBet       int64   `hcl:"min_bet,optional"`
	MinBuyIn     int64   `hcl:"min_buy_in,optional"`
	MaxBuyIn     int64   `hcl:"max_buy_in,optional"`
	MaxSeats     int     `hcl:"max_seats,optional"`
	MinSeats     int     `hcl:"min_seats,optional"`
	Decks        int     `hcl:"decks,optional"`
	ReshuffleAt  *int    `hcl:"reshuffle_at,optional"`
	TaxRate      float64 `hcl:"tax_rate,optional"`
	MaxSplits    *int    `hcl:"max_splits,optional"`
	BetTimeout   string  `hcl:"bet_timeout,optional"`
	TurnTimeout  string  `hcl:"turn_timeout,optional"`
	HandDelay    string  `hcl:"hand_delay,optional"`
	StopWhenIdle *bool   `hcl:"stop_when_idle,optional"`
	Evaluator    string  `hcl:"evaluator,optional"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{
		Tables: []TableConfig{
			{Name: "blackjack-1", Variant: string(game.Blackjack)},
			{Name: "holdem-1", Variant: string(game.Holdem)},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads filename. A missing file gives the defaults.
func Load(filename string) (*Config, error) {
	src, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return Parse(src, filename)
}

// Parse decodes and validates an HCL document.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Store == nil {
		c.Store = &StoreSettings{}
	}
	if c.Store.Driver == "" {
		c.Store.Driver = store.DriverSQLite
	}
	if c.Store.DSN == "" && c.Store.Driver == store.DriverSQLite {
		c.Store.DSN = "cardroom.db"
	}
}

// Validate checks the file describes something that can run.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	switch c.Store.Driver {
	case store.DriverMemory, store.DriverSQLite:
	case store.DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store: postgres needs a dsn")
		}
	default:
		return fmt.Errorf("store: %w: %q", store.ErrUnknownDriver, c.Store.Driver)
	}

	seen := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if seen[t.Name] {
			return fmt.Errorf("table %s: defined twice", t.Name)
		}
		seen[t.Name] = true
		if _, err := t.Game(); err != nil {
			return err
		}
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.Server.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Game converts the block into a table config.
func (t TableConfig) Game() (game.Config, error) {
	cfg := game.DefaultConfig(t.Name, game.Variant(t.Variant))
	if t.MinBet != 0 {
		cfg.Table.MinBet = t.MinBet
	}
	if t.MinBuyIn != 0 {
		cfg.Table.MinBuyIn = t.MinBuyIn
	}
	if t.MaxBuyIn != 0 {
		cfg.Table.MaxBuyIn = t.MaxBuyIn
	}
	if t.MaxSeats != 0 {
		cfg.Table.MaxSeats = t.MaxSeats
	}
	if t.MinSeats != 0 {
		cfg.Table.MinSeats = t.MinSeats
	}
	if t.Decks != 0 && cfg.Variant == game.Blackjack {
		cfg.Table.Decks = t.Decks
		// Keep the default threshold proportional to the shoe.
		cfg.Table.ReshuffleAt = 13 * t.Decks
	} else if t.Decks != 0 {
		cfg.Table.Decks = t.Decks
	}
	if t.ReshuffleAt != nil {
		cfg.Table.ReshuffleAt = *t.ReshuffleAt
	}
	if t.MaxSplits != nil {
		cfg.MaxSplits = *t.MaxSplits
	}
	if t.StopWhenIdle != nil {
		cfg.StopWhenIdle = *t.StopWhenIdle
	}
	cfg.TaxRate = t.TaxRate
	cfg.Evaluator = t.Evaluator

	for _, d := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"bet_timeout", t.BetTimeout, &cfg.BetTimeout},
		{"turn_timeout", t.TurnTimeout, &cfg.TurnTimeout},
		{"hand_delay", t.HandDelay, &cfg.HandDelay},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return game.Config{}, fmt.Errorf("table %s: %s: %w", t.Name, d.name, err)
		}
		*d.dst = parsed
	}

	if err := cfg.Validate(); err != nil {
		return game.Config{}, err
	}
	return cfg, nil
}

// GameConfigs converts every table block.
func (c *Config) GameConfigs() ([]game.Config, error) {
	out := make([]game.Config, 0, len(c.Tables))
	for _, t := range c.Tables {
		cfg, err := t.Game()
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// Table returns the block with the given name.
func (c *Config) Table(name string) (TableConfig, bool) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableConfig{}, false
}
