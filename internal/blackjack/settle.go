package blackjack

import "github.com/lox/cardroom/internal/cards"

// Outcome is how a single hand finished against the dealer.
type Outcome int

const (
	Lose Outcome = iota
	Push
	Win
	Natural
	Bust
)

func (o Outcome) String() string {
	return [...]string{"lose", "push", "win", "blackjack", "bust"}[o]
}

// HandResult is the settlement of one hand-index.
type HandResult struct {
	Seat    string
	Index   int
	Cards   []cards.Card
	Value   int
	Bet     int64
	Outcome Outcome
	Payout  int64
}

// PlayerResult totals a player's hand.
type PlayerResult struct {
	Wagered   int64
	Insurance int64
	Paid      int64
	Tax       int64
	Net       int64
}

// Result is the full settlement of a round. Paid amounts are after tax,
// so across all players Wagered - Paid equals HouseNet.
type Result struct {
	Dealer      []cards.Card
	DealerValue int
	Hands       []HandResult
	Players     map[string]PlayerResult
	HouseNet    int64
	TaxWithheld int64
}

func outcome(hc []cards.Card, split bool, dealer []cards.Card) Outcome {
	v, _ := Value(hc)
	if v > 21 {
		return Bust
	}
	natural := !split && IsBlackjack(hc)
	dealerNatural := IsBlackjack(dealer)
	dv, _ := Value(dealer)

	switch {
	case natural && dealerNatural:
		return Push
	case natural:
		return Natural
	case dealerNatural:
		return Lose
	case dv > 21, v > dv:
		return Win
	case v == dv:
		return Push
	default:
		return Lose
	}
}

func payout(o Outcome, bet int64) int64 {
	switch o {
	case Natural:
		return bet*2 + bet/2
	case Win:
		return bet * 2
	case Push:
		return bet
	}
	return 0
}

func (r *Round) settle() error {
	res := &Result{
		Dealer:  append([]cards.Card(nil), r.dealer...),
		Players: make(map[string]PlayerResult),
	}
	res.DealerValue, _ = Value(r.dealer)
	dealerNatural := IsBlackjack(r.dealer)

	for _, p := range r.players {
		if !p.bet {
			continue
		}
		pr := PlayerResult{Wagered: p.seat.Bets.Total, Insurance: p.seat.Bets.Insurance}
		if p.left {
			res.HouseNet += pr.Wagered
			continue
		}

		var gross int64
		for i, h := range p.hands {
			hc := p.seat.Hands[i]
			o := outcome(hc, h.split, r.dealer)
			pay := payout(o, h.bet)
			v, _ := Value(hc)
			res.Hands = append(res.Hands, HandResult{
				Seat:    p.seat.ID,
				Index:   i,
				Cards:   append([]cards.Card(nil), hc...),
				Value:   v,
				Bet:     h.bet,
				Outcome: o,
				Payout:  pay,
			})
			gross += pay
		}
		if p.insured && dealerNatural {
			gross += 3 * p.seat.Bets.Insurance
		}

		pr.Tax = tax(gross-pr.Wagered, r.cfg.TaxRate)
		pr.Paid = gross - pr.Tax
		pr.Net = pr.Paid - pr.Wagered
		if err := r.ledger.Deposit(p.seat.Stack, pr.Paid); err != nil {
			return err
		}
		p.settled = true

		res.Players[p.seat.ID] = pr
		res.HouseNet += pr.Wagered - pr.Paid
		res.TaxWithheld += pr.Tax
	}

	r.result = res
	r.phase = Settlement
	r.version++
	return nil
}
