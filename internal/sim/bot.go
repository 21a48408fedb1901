// Package sim plays tables with bots for load and conservation testing.
package sim

import (
	rand "math/rand/v2"
	"slices"

	"github.com/lox/cardroom/internal/game"
)

// RandBot makes uniform random legal decisions.
type RandBot struct {
	id     string
	rng    *rand.Rand
	minBet int64
}

// NewRandBot creates a bot that plays as seat id.
func NewRandBot(id string, rng *rand.Rand, minBet int64) *RandBot {
	return &RandBot{id: id, rng: rng, minBet: minBet}
}

// Decide picks an action from the view as the bot's seat sees it. It
// reports false when the bot has nothing to do.
func (b *RandBot) Decide(v game.View) (game.Action, bool) {
	if len(v.Legal) == 0 {
		return game.Action{}, false
	}
	seat, ok := b.seat(v)
	if !ok {
		return game.Action{}, false
	}

	pick := v.Legal[b.rng.IntN(len(v.Legal))]
	a := game.Action{Type: pick}
	switch {
	case pick == "bet" && v.Variant == game.Blackjack:
		a.Amount = b.between(b.minBet, min(seat.Stack, 5*b.minBet))
	case pick == "bet":
		a.Amount = b.between(b.minBet, min(seat.Stack, 4*b.minBet))
	case pick == "raise":
		// Raises name the street total to raise to.
		a.Amount = b.between(v.MinRaiseTo, min(seat.Stack+seat.Bet, 2*v.MinRaiseTo))
	}
	return a, true
}

// Fallback is the action taken when a decision is rejected.
func (b *RandBot) Fallback(v game.View) game.Action {
	switch {
	case slices.Contains(v.Legal, "bet") && v.Variant == game.Blackjack:
		return game.Action{Type: "bet", Amount: b.minBet}
	case slices.Contains(v.Legal, "stand"):
		return game.Action{Type: "stand"}
	case slices.Contains(v.Legal, "check"):
		return game.Action{Type: "check"}
	default:
		return game.Action{Type: "fold"}
	}
}

func (b *RandBot) seat(v game.View) (game.SeatView, bool) {
	for _, s := range v.Seats {
		if s.ID == b.id {
			return s, true
		}
	}
	return game.SeatView{}, false
}

func (b *RandBot) between(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + b.rng.Int64N(hi-lo+1)
}
