package game

import (
	"errors"

	"github.com/lox/cardroom/internal/blackjack"
	"github.com/lox/cardroom/internal/cards"
	"github.com/lox/cardroom/internal/holdem"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/table"
)

var (
	ErrStopped       = errors.New("table stopped")
	ErrUnknownAction = errors.New("unknown action")
	ErrNoAutobet     = errors.New("autobet not supported for this variant")
	ErrUnknownTable  = errors.New("unknown table")
)

// ReasonCode maps an error to the short code sent to clients.
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, blackjack.ErrInvalidBet), errors.Is(err, holdem.ErrInvalidBet):
		return "invalid_bet"
	case errors.Is(err, blackjack.ErrInvalidAction), errors.Is(err, holdem.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, ErrUnknownAction):
		return "unknown_action"
	case errors.Is(err, ErrNoAutobet):
		return "unsupported"
	case errors.Is(err, ledger.ErrInsufficientStack):
		return "insufficient_stack"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrPersistence):
		return "persistence_failure"
	case errors.Is(err, table.ErrTableFull):
		return "table_full"
	case errors.Is(err, table.ErrAlreadySeated):
		return "already_seated"
	case errors.Is(err, table.ErrTableStopping), errors.Is(err, ErrStopped):
		return "table_stopping"
	case errors.Is(err, table.ErrNotSeated):
		return "not_seated"
	case errors.Is(err, cards.ErrDeckExhausted):
		return "deck_exhausted"
	case errors.Is(err, ErrUnknownTable):
		return "unknown_table"
	default:
		return "internal"
	}
}

// rejection reports whether err is a player mistake that leaves the table
// untouched, as opposed to a fault that must stop the table.
func rejection(err error) bool {
	return errors.Is(err, blackjack.ErrInvalidBet) ||
		errors.Is(err, holdem.ErrInvalidBet) ||
		errors.Is(err, blackjack.ErrInvalidAction) ||
		errors.Is(err, holdem.ErrInvalidAction) ||
		errors.Is(err, ErrUnknownAction) ||
		errors.Is(err, ledger.ErrInsufficientStack)
}
