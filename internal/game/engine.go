package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/lox/cardroom/internal/blackjack"
	"github.com/lox/cardroom/internal/cards"
	"github.com/lox/cardroom/internal/evaluator"
	"github.com/lox/cardroom/internal/holdem"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/table"
)

// stamp identifies the decision a timer was armed for.
type stamp struct {
	Hand    int
	Phase   string
	Seat    string
	Version int
}

// engine adapts a variant's round to the controller.
type engine interface {
	start() error
	submit(seat string, a Action) (bool, error)
	join(seat *table.Seat)
	leave(seat string) error
	// pending describes the decision being waited on and how long to wait.
	pending() (stamp, time.Duration, bool)
	expire(st stamp) error
	finished() bool
	cancelled() bool
	abort() error
	// fill adds round state to v. seats line up with v.Seats.
	fill(v *View, seats []*table.Seat)
	outcome() *Outcome
}

type blackjackEngine struct {
	round    *blackjack.Round
	cfg      Config
	autobets map[string]*autobet
}

type autobet struct {
	amount int64
	hands  int
}

func newBlackjackEngine(cfg Config, l *ledger.Ledger, deck *cards.Deck, seats []*table.Seat, autobets map[string]*autobet) *blackjackEngine {
	rules := blackjack.Config{MinBet: cfg.Table.MinBet, MaxSplits: cfg.MaxSplits, TaxRate: cfg.TaxRate}
	return &blackjackEngine{
		round:    blackjack.New(rules, l, deck, seats),
		cfg:      cfg,
		autobets: autobets,
	}
}

func (e *blackjackEngine) start() error {
	for id := range e.autobets {
		e.applyAutobet(id)
	}
	return e.maybeDeal()
}

// applyAutobet places a standing bet for id. A bet the stack can no longer
// cover cancels the instruction.
func (e *blackjackEngine) applyAutobet(id string) {
	ab, ok := e.autobets[id]
	if !ok || e.round.HasBet(id) {
		return
	}
	if err := e.round.PlaceBet(id, ab.amount); err != nil {
		if errors.Is(err, ledger.ErrInsufficientStack) {
			delete(e.autobets, id)
		}
		return
	}
	ab.hands--
	if ab.hands <= 0 {
		delete(e.autobets, id)
	}
}

func (e *blackjackEngine) maybeDeal() error {
	if !e.round.BettingComplete() {
		return nil
	}
	_, err := e.round.CloseBetting()
	return err
}

func (e *blackjackEngine) submit(seat string, a Action) (bool, error) {
	if a.Type == "bet" {
		if err := e.round.PlaceBet(seat, a.Amount); err != nil {
			if errors.Is(err, blackjack.ErrInvalidAction) {
				return false, nil
			}
			return false, err
		}
		return true, e.maybeDeal()
	}
	act, err := blackjack.ParseAction(a.Type)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
	return e.round.Act(seat, act)
}

func (e *blackjackEngine) join(seat *table.Seat) {
	e.round.AddLate(seat)
	e.applyAutobet(seat.ID)
}

func (e *blackjackEngine) leave(seat string) error {
	if err := e.round.Leave(seat); err != nil {
		return err
	}
	if e.round.Phase() == blackjack.AwaitingBets {
		return e.maybeDeal()
	}
	return nil
}

func (e *blackjackEngine) pending() (stamp, time.Duration, bool) {
	st := e.round.Stamp()
	out := stamp{Phase: st.Phase.String(), Seat: st.Seat, Version: st.Version}
	switch st.Phase {
	case blackjack.AwaitingBets:
		// One window per hand. Bets and late joins do not extend it.
		out.Version = 0
		return out, e.cfg.BetTimeout, true
	case blackjack.PlayerTurns:
		return out, e.cfg.TurnTimeout, true
	}
	return stamp{}, 0, false
}

func (e *blackjackEngine) expire(st stamp) error {
	switch e.round.Phase() {
	case blackjack.AwaitingBets:
		_, err := e.round.CloseBetting()
		return err
	case blackjack.PlayerTurns:
		_, err := e.round.Expire(blackjack.Stamp{Phase: blackjack.PlayerTurns, Seat: st.Seat, Version: st.Version})
		return err
	}
	return nil
}

func (e *blackjackEngine) finished() bool  { return e.round.Finished() }
func (e *blackjackEngine) cancelled() bool { return e.round.Phase() == blackjack.Cancelled }
func (e *blackjackEngine) abort() error    { return e.round.Abort() }

func (e *blackjackEngine) fill(v *View, seats []*table.Seat) {
	v.Phase = e.round.Phase().String()
	v.Dealer = cards.Codes(e.round.Dealer())
	v.DealerValue, _ = blackjack.Value(e.round.Dealer())
	if id, hand, ok := e.round.Current(); ok {
		v.Turn, v.TurnHand = id, hand
	}
	for i, seat := range seats {
		for _, h := range seat.Hands {
			val, _ := blackjack.Value(h)
			v.Seats[i].Values = append(v.Seats[i].Values, val)
		}
	}
	if v.Phase == blackjack.AwaitingBets.String() {
		// Everyone still to bet may do so.
		for _, sv := range v.Seats {
			if !e.round.HasBet(sv.ID) {
				v.setLegal(sv.ID, []string{"bet"})
			}
		}
		return
	}
	if v.Turn != "" {
		var legal []string
		for _, a := range e.round.Legal(v.Turn) {
			legal = append(legal, a.String())
		}
		v.setLegal(v.Turn, legal)
	}
}

func (e *blackjackEngine) outcome() *Outcome {
	if e.round.Phase() == blackjack.Cancelled {
		return &Outcome{Cancelled: true}
	}
	res := e.round.Result()
	if res == nil {
		return nil
	}
	o := &Outcome{
		Payouts:     make(map[string]int64, len(res.Players)),
		Results:     make(map[string]string),
		HouseNet:    res.HouseNet,
		TaxWithheld: res.TaxWithheld,
	}
	for id, pr := range res.Players {
		o.Payouts[id] = pr.Paid
	}
	for _, h := range res.Hands {
		key := fmt.Sprintf("%s/%d", h.Seat, h.Index)
		o.Results[key] = h.Outcome.String()
	}
	return o
}

type holdemEngine struct {
	round *holdem.Round
	cfg   Config
}

func newHoldemEngine(cfg Config, l *ledger.Ledger, deck *cards.Deck, eval evaluator.Evaluator, seats []*table.Seat, button string) (*holdemEngine, error) {
	r, err := holdem.New(holdem.Config{MinBet: cfg.Table.MinBet}, l, deck, eval, seats, button)
	if err != nil {
		return nil, err
	}
	return &holdemEngine{round: r, cfg: cfg}, nil
}

func (e *holdemEngine) start() error { return e.round.Start() }

func (e *holdemEngine) submit(seat string, a Action) (bool, error) {
	act, err := holdem.ParseAction(a.Type)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
	return e.round.Act(seat, act, a.Amount)
}

// Seats that sit down mid-hand wait for the next deal.
func (e *holdemEngine) join(*table.Seat) {}

func (e *holdemEngine) leave(seat string) error { return e.round.Leave(seat) }

func (e *holdemEngine) pending() (stamp, time.Duration, bool) {
	st := e.round.Stamp()
	if st.Seat == "" {
		return stamp{}, 0, false
	}
	return stamp{Phase: st.Phase.String(), Seat: st.Seat, Version: st.Version}, e.cfg.TurnTimeout, true
}

func (e *holdemEngine) expire(st stamp) error {
	cur := e.round.Stamp()
	if cur.Phase.String() != st.Phase {
		return nil
	}
	_, err := e.round.Expire(holdem.Stamp{Phase: cur.Phase, Seat: st.Seat, Version: st.Version})
	return err
}

func (e *holdemEngine) finished() bool  { return e.round.Finished() }
func (e *holdemEngine) cancelled() bool { return false }
func (e *holdemEngine) abort() error    { return e.round.Abort() }

func (e *holdemEngine) fill(v *View, _ []*table.Seat) {
	v.Phase = e.round.Phase().String()
	v.Button = e.round.Button()
	v.Board = cards.Codes(e.round.Board())
	for _, p := range e.round.Pots() {
		v.Pots = append(v.Pots, PotView{Amount: p.Amount, Eligible: p.Eligible})
	}
	if id, ok := e.round.Current(); ok {
		v.Turn = id
		v.MinRaiseTo = e.round.MinRaiseTo()
		var legal []string
		for _, a := range e.round.Legal(id) {
			legal = append(legal, a.String())
		}
		v.setLegal(id, legal)
		v.setToCall(id, e.round.ToCall(id))
	}

	// Hole cards are private until a contested showdown.
	res := e.round.Result()
	shown := res != nil && !res.Uncontested
	for i := range v.Seats {
		sv := &v.Seats[i]
		if !shown || sv.Folded {
			v.setHands(sv.ID, sv.Hands)
			sv.Hands = nil
		}
	}
}

func (e *holdemEngine) outcome() *Outcome {
	res := e.round.Result()
	if res == nil {
		return nil
	}
	o := &Outcome{Payouts: res.Payouts, Results: make(map[string]string)}
	for id, rank := range res.Ranks {
		o.Results[id] = rank.Name
	}
	return o
}
