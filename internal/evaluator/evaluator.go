// Package evaluator ranks poker hands for showdown.
//
// The engine treats hand ranking as an external collaborator. This package
// defines the contract the Hold'em round consumes and adapts two third-party
// evaluators to it.
package evaluator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lox/cardroom/internal/cards"
)

// ErrUnsupportedHand is returned for card counts an evaluator cannot rank.
var ErrUnsupportedHand = errors.New("unsupported hand size")

// Rank is a totally ordered hand strength. A higher Value is a stronger hand.
// Values are only comparable between ranks produced by the same Evaluator.
type Rank struct {
	Value int64
	Name  string
}

// Compare returns -1, 0 or 1 as r is weaker than, equal to or stronger than o.
func (r Rank) Compare(o Rank) int {
	switch {
	case r.Value < o.Value:
		return -1
	case r.Value > o.Value:
		return 1
	default:
		return 0
	}
}

// Evaluator ranks a set of cards.
type Evaluator interface {
	// Evaluate returns the rank of the best five-card hand within cs.
	Evaluate(cs []cards.Card) (Rank, error)
	// BestOf returns the subset of ranks tied for best.
	BestOf(ranks []Rank) []Rank
}

// New returns the evaluator registered under name. An empty name selects
// the default.
func New(name string) (Evaluator, error) {
	switch name {
	case "", "chehsunliu":
		return Chehsunliu{}, nil
	case "paulhankin":
		return Hankin{}, nil
	default:
		return nil, fmt.Errorf("unknown evaluator %q", name)
	}
}

// Names lists the available evaluators.
func Names() []string {
	return []string{"chehsunliu", "paulhankin"}
}

func bestOf(ranks []Rank) []Rank {
	if len(ranks) == 0 {
		return nil
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Compare(best) > 0 {
			best = r
		}
	}
	var out []Rank
	for _, r := range ranks {
		if r.Compare(best) == 0 {
			out = append(out, r)
		}
	}
	return out
}

// Winners returns the indices of ranks tied for best, in ascending order.
func Winners(e Evaluator, ranks []Rank) []int {
	best := e.BestOf(ranks)
	if len(best) == 0 {
		return nil
	}
	var idx []int
	for i, r := range ranks {
		if r.Compare(best[0]) == 0 {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	return idx
}
