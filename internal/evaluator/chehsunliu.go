package evaluator

import (
	"fmt"

	"github.com/chehsunliu/poker"
	"github.com/lox/cardroom/internal/cards"
)

// worstChehsunliuRank is one past the weakest of the 7462 distinct ranks.
// chehsunliu ranks 1 as the best hand, so values are flipped to make higher
// mean stronger.
const worstChehsunliuRank = 7463

// Chehsunliu adapts github.com/chehsunliu/poker. It ranks 5 to 7 cards.
type Chehsunliu struct{}

func (Chehsunliu) Evaluate(cs []cards.Card) (Rank, error) {
	if len(cs) < 5 || len(cs) > 7 {
		return Rank{}, fmt.Errorf("%w: %d cards", ErrUnsupportedHand, len(cs))
	}
	pc := make([]poker.Card, len(cs))
	for i, c := range cs {
		pc[i] = poker.NewCard(c.String())
	}
	r := poker.Evaluate(pc)
	return Rank{
		Value: int64(worstChehsunliuRank - r),
		Name:  poker.RankString(r),
	}, nil
}

func (Chehsunliu) BestOf(ranks []Rank) []Rank {
	return bestOf(ranks)
}
