package holdem

import (
	"slices"
)

// Pot is a main or side pot and the seats that can win it.
type Pot struct {
	Amount   int64
	Eligible []string
}

// Contribution is what one seat put in over the whole hand.
type Contribution struct {
	Seat   string
	Amount int64
	AllIn  bool
	Folded bool
}

// BuildPots splits contributions into layered pots. Each all-in amount caps
// a layer; every seat pays into a layer up to that cap and only unfolded
// seats that reached it are eligible. Chips above the highest all-in form a
// top pot for the seats that put them in. A layer nobody can win (everyone
// who reached it folded) is merged into the layer below.
func BuildPots(contribs []Contribution) []Pot {
	var levels []int64
	for _, c := range contribs {
		if c.AllIn && c.Amount > 0 && !slices.Contains(levels, c.Amount) {
			levels = append(levels, c.Amount)
		}
	}
	slices.Sort(levels)

	var top int64
	for _, c := range contribs {
		top = max(top, c.Amount)
	}
	if len(levels) == 0 || levels[len(levels)-1] < top {
		levels = append(levels, top)
	}

	var pots []Pot
	var prev int64
	for _, level := range levels {
		pot := Pot{}
		for _, c := range contribs {
			pot.Amount += min(c.Amount, level) - min(c.Amount, prev)
			if !c.Folded && c.Amount >= level {
				pot.Eligible = append(pot.Eligible, c.Seat)
			}
		}
		prev = level
		if pot.Amount == 0 {
			continue
		}
		if len(pot.Eligible) == 0 && len(pots) > 0 {
			pots[len(pots)-1].Amount += pot.Amount
			continue
		}
		pots = append(pots, pot)
	}
	return pots
}

// Total sums the pots.
func Total(pots []Pot) int64 {
	var n int64
	for _, p := range pots {
		n += p.Amount
	}
	return n
}
