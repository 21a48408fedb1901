package holdem

import (
	"fmt"

	"github.com/lox/cardroom/internal/cards"
	"github.com/lox/cardroom/internal/evaluator"
)

// PotResult records who won a pot.
type PotResult struct {
	Pot
	Winners []string
	Share   int64
}

// Result is the settlement of a hand.
type Result struct {
	Board       []cards.Card
	Pots        []PotResult
	Payouts     map[string]int64
	Ranks       map[string]evaluator.Rank
	Uncontested bool
}

func (r *Round) awardUncontested() error {
	var winner string
	for _, s := range r.ring {
		if r.contesting(s) {
			winner = s.ID
		}
	}
	pots := r.Pots()
	total := Total(pots)

	res := &Result{
		Board:       r.Board(),
		Payouts:     map[string]int64{},
		Uncontested: true,
	}
	if winner != "" {
		if err := r.ledger.Deposit(r.active[winner].Stack, total); err != nil {
			return err
		}
		res.Payouts[winner] = total
		res.Pots = []PotResult{{Pot: Pot{Amount: total, Eligible: []string{winner}}, Winners: []string{winner}, Share: total}}
	}
	r.finish(res)
	return nil
}

func (r *Round) showdown() error {
	res := &Result{
		Board:   r.Board(),
		Payouts: map[string]int64{},
		Ranks:   map[string]evaluator.Rank{},
	}
	for _, s := range r.ring {
		if !r.contesting(s) {
			continue
		}
		hand := append(append([]cards.Card(nil), s.Hands[0]...), r.board...)
		rank, err := r.eval.Evaluate(hand)
		if err != nil {
			return fmt.Errorf("evaluate %s: %w", s.ID, err)
		}
		res.Ranks[s.ID] = rank
	}

	for _, pot := range r.Pots() {
		eligible := pot.Eligible
		if len(eligible) == 0 {
			for id := range res.Ranks {
				eligible = append(eligible, id)
			}
		}
		winners := r.potWinners(eligible, res.Ranks)
		share := pot.Amount / int64(len(winners))
		rem := pot.Amount % int64(len(winners))
		for i, id := range winners {
			amt := share
			if int64(i) < rem {
				amt++
			}
			res.Payouts[id] += amt
		}
		res.Pots = append(res.Pots, PotResult{Pot: pot, Winners: winners, Share: share})
	}

	for id, amt := range res.Payouts {
		if err := r.ledger.Deposit(r.active[id].Stack, amt); err != nil {
			return err
		}
	}
	r.finish(res)
	return nil
}

// potWinners returns the best hands among eligible, ordered clockwise from
// the seat after the button so odd chips go to the earliest of them.
func (r *Round) potWinners(eligible []string, ranks map[string]evaluator.Rank) []string {
	var ids []string
	var rs []evaluator.Rank
	for i := range r.ring {
		s := r.ring[(r.button+1+i)%len(r.ring)]
		for _, id := range eligible {
			if id == s.ID {
				ids = append(ids, id)
				rs = append(rs, ranks[id])
			}
		}
	}
	var out []string
	for _, i := range evaluator.Winners(r.eval, rs) {
		out = append(out, ids[i])
	}
	return out
}

func (r *Round) finish(res *Result) {
	r.result = res
	r.phase = Complete
	r.current = -1
	r.version++
}

// Abort returns every chip committed this hand to the seat that put it in.
// Seats that already left forfeit theirs.
func (r *Round) Abort() error {
	if r.Finished() {
		return nil
	}
	for _, s := range r.ring {
		if _, ok := r.active[s.ID]; !ok || s.Bets.Total == 0 {
			continue
		}
		if err := r.ledger.Deposit(s.Stack, s.Bets.Total); err != nil {
			return err
		}
		s.Bets.Total = 0
		s.Bets.Base = 0
	}
	r.phase = Complete
	r.current = -1
	r.version++
	return nil
}
