package blackjack

import "github.com/lox/cardroom/internal/cards"

// Value returns the best total for a blackjack hand and whether an ace is
// still being counted as eleven.
func Value(cs []cards.Card) (total int, soft bool) {
	aces := 0
	for _, c := range cs {
		switch {
		case c.Rank == cards.Ace:
			aces++
			total++
		case c.Rank >= cards.Ten:
			total += 10
		default:
			total += int(c.Rank)
		}
	}
	if aces > 0 && total+10 <= 21 {
		return total + 10, true
	}
	return total, false
}

// IsBlackjack reports whether cs is a two-card 21.
func IsBlackjack(cs []cards.Card) bool {
	if len(cs) != 2 {
		return false
	}
	v, _ := Value(cs)
	return v == 21
}

// handState is the bookkeeping for one hand-index of a player. The cards
// themselves live on the seat.
type handState struct {
	bet      int64
	doubled  bool
	splitAce bool
	split    bool
	touched  bool
	done     bool
}
