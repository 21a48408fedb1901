package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/lox/cardroom/internal/table"
)

// Variant names a game a table can run.
type Variant string

const (
	Blackjack Variant = "blackjack"
	Holdem    Variant = "holdem"
)

var ErrUnknownVariant = errors.New("unknown variant")

// Config describes one table.
type Config struct {
	ID      string
	Variant Variant
	Table   table.Config

	TaxRate   float64
	MaxSplits int

	BetTimeout  time.Duration
	TurnTimeout time.Duration
	HandDelay   time.Duration

	// StopWhenIdle stops a blackjack table when a hand gets no bets.
	StopWhenIdle bool

	// Evaluator selects the hold'em hand evaluator by name.
	Evaluator string
}

// DefaultConfig returns a table config with the house defaults filled in.
func DefaultConfig(id string, variant Variant) Config {
	cfg := Config{
		ID:      id,
		Variant: variant,
		Table: table.Config{
			MinBet:      10,
			MinBuyIn:    100,
			MaxBuyIn:    1000,
			MaxSeats:    6,
			MinSeats:    1,
			Decks:       6,
			ReshuffleAt: 78,
		},
		MaxSplits:    3,
		BetTimeout:   20 * time.Second,
		TurnTimeout:  30 * time.Second,
		HandDelay:    3 * time.Second,
		StopWhenIdle: true,
	}
	if variant == Holdem {
		// A fresh deck every hand.
		cfg.Table.MinSeats = 2
		cfg.Table.Decks = 1
		cfg.Table.ReshuffleAt = 51
	}
	return cfg
}

// Validate checks the config can run.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("table id is required")
	}
	switch c.Variant {
	case Blackjack:
	case Holdem:
		if c.Table.MinSeats < 2 {
			return fmt.Errorf("%s: hold'em needs at least two seats to deal", c.ID)
		}
		if c.Table.Decks != 1 {
			return fmt.Errorf("%s: hold'em deals from a single deck", c.ID)
		}
		if c.Table.MaxSeats > 10 {
			return fmt.Errorf("%s: hold'em seats at most ten players", c.ID)
		}
		if need := 2*c.Table.MaxSeats + 5; c.Table.ReshuffleAt < need {
			return fmt.Errorf("%s: reshuffle threshold %d below the %d cards a full hand needs", c.ID, c.Table.ReshuffleAt, need)
		}
	default:
		return fmt.Errorf("%s: %w: %q", c.ID, ErrUnknownVariant, c.Variant)
	}
	if err := c.Table.Validate(); err != nil {
		return fmt.Errorf("%s: %w", c.ID, err)
	}
	switch {
	case c.TaxRate < 0 || c.TaxRate >= 1:
		return fmt.Errorf("%s: tax rate %v outside [0, 1)", c.ID, c.TaxRate)
	case c.MaxSplits < 0:
		return fmt.Errorf("%s: max splits must not be negative", c.ID)
	case c.BetTimeout <= 0 || c.TurnTimeout <= 0:
		return fmt.Errorf("%s: timeouts must be positive", c.ID)
	case c.HandDelay < 0:
		return fmt.Errorf("%s: hand delay must not be negative", c.ID)
	}
	return nil
}

// Action is a player command as it arrives from a transport. Type is a
// variant action name, or "bet" for a blackjack wager.
type Action struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount,omitempty"`
}
