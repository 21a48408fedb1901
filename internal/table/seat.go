package table

import (
	"github.com/lox/cardroom/internal/cards"
	"github.com/lox/cardroom/internal/ledger"
)

// Bets tracks a seat's wagers for the current hand.
type Bets struct {
	Base      int64 // blackjack base wager, hold'em contribution this street
	Total     int64 // everything committed this hand
	Insurance int64
}

// Status holds the per-hand flags of a seat.
type Status struct {
	Folded   bool
	AllIn    bool
	Removed  bool
	Acting   bool
	Moved    bool
	NewEntry bool
}

// Seat is a player seated at a table.
type Seat struct {
	ID     string
	Stack  *ledger.Stack
	Bets   Bets
	Status Status
	Hands  [][]cards.Card
}

func newSeat(id string) *Seat {
	return &Seat{ID: id, Stack: ledger.NewStack(id)}
}

// Reset clears everything but the stack before a new hand.
func (s *Seat) Reset() {
	s.Bets = Bets{}
	s.Status = Status{}
	s.Hands = nil
}

// Chips returns the seat's stack size.
func (s *Seat) Chips() int64 {
	return s.Stack.Chips()
}
