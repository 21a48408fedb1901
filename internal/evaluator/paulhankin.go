package evaluator

import (
	"fmt"

	"github.com/lox/cardroom/internal/cards"
	"github.com/paulhankin/poker"
)

// Hankin adapts github.com/paulhankin/poker. It only ranks seven cards,
// which is every Hold'em showdown once the board is run out.
type Hankin struct{}

func (Hankin) Evaluate(cs []cards.Card) (Rank, error) {
	if len(cs) != 7 {
		return Rank{}, fmt.Errorf("%w: %d cards", ErrUnsupportedHand, len(cs))
	}
	var hand [7]poker.Card
	for i, c := range cs {
		pc, err := hankinCard(c)
		if err != nil {
			return Rank{}, err
		}
		hand[i] = pc
	}
	name, err := poker.Describe(hand[:])
	if err != nil {
		return Rank{}, fmt.Errorf("describe %s: %w", cards.Codes(cs), err)
	}
	return Rank{Value: int64(poker.Eval7(&hand)), Name: name}, nil
}

func (Hankin) BestOf(ranks []Rank) []Rank {
	return bestOf(ranks)
}

// hankinCard maps a card onto paulhankin's encoding: suits club, diamond,
// heart, spade as 0-3 and ranks 1-13 with the ace as 1.
func hankinCard(c cards.Card) (poker.Card, error) {
	var suit uint8
	switch c.Suit {
	case cards.Clubs:
		suit = 0
	case cards.Diamonds:
		suit = 1
	case cards.Hearts:
		suit = 2
	case cards.Spades:
		suit = 3
	}
	rank := uint8(c.Rank)
	if c.Rank == cards.Ace {
		rank = 1
	}
	pc, err := poker.MakeCard(poker.Suit(suit), poker.Rank(rank))
	if err != nil {
		return pc, fmt.Errorf("convert %s: %w", c, err)
	}
	return pc, nil
}
