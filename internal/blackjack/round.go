// Package blackjack runs a single blackjack hand against the house:
// collecting bets, dealing, player turns, the dealer's draw and settlement.
//
// A Round is not safe for concurrent use. The game controller drives it from
// a single goroutine.
package blackjack

import (
	"errors"
	"fmt"
	"math"

	"github.com/lox/cardroom/internal/cards"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/table"
)

var (
	ErrInvalidBet    = errors.New("invalid bet")
	ErrInvalidAction = errors.New("invalid action")
)

// Phase is the stage of a round.
type Phase int

const (
	AwaitingBets Phase = iota
	PlayerTurns
	DealerTurn
	Settlement
	Cancelled
)

func (p Phase) String() string {
	return [...]string{"awaiting_bets", "player_turns", "dealer_turn", "settlement", "cancelled"}[p]
}

// Action is a player decision on their current hand.
type Action int

const (
	Stand Action = iota
	Hit
	Double
	Split
	Insurance
)

func (a Action) String() string {
	return [...]string{"stand", "hit", "double", "split", "insurance"}[a]
}

// ParseAction converts a wire name to an Action.
func ParseAction(s string) (Action, error) {
	for a := Stand; a <= Insurance; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Config holds the rules of a blackjack table.
type Config struct {
	MinBet    int64
	MaxSplits int
	TaxRate   float64
}

// Stamp identifies the decision a timeout was armed for.
type Stamp struct {
	Phase   Phase
	Seat    string
	Version int
}

type player struct {
	seat    *table.Seat
	hands   []*handState
	bet     bool
	insured bool
	late    bool
	left    bool
	settled bool
}

// Round is one blackjack hand.
type Round struct {
	cfg    Config
	ledger *ledger.Ledger
	deck   *cards.Deck

	phase   Phase
	players []*player
	byID    map[string]*player
	dealer  []cards.Card

	turn    int
	handIdx int
	version int

	result *Result
}

// New starts a round in the betting phase for the given seats.
func New(cfg Config, l *ledger.Ledger, deck *cards.Deck, seats []*table.Seat) *Round {
	r := &Round{
		cfg:    cfg,
		ledger: l,
		deck:   deck,
		byID:   make(map[string]*player, len(seats)),
	}
	for _, s := range seats {
		r.add(s, s.Status.NewEntry)
	}
	return r
}

func (r *Round) add(s *table.Seat, late bool) {
	if _, ok := r.byID[s.ID]; ok {
		return
	}
	p := &player{seat: s, late: late}
	r.players = append(r.players, p)
	r.byID[s.ID] = p
}

// AddLate lets a player who sat down during betting place a bet without
// holding up the table. It has no effect after the cards are dealt.
func (r *Round) AddLate(s *table.Seat) {
	if r.phase != AwaitingBets {
		return
	}
	r.add(s, true)
	r.version++
}

// Phase returns the current phase.
func (r *Round) Phase() Phase { return r.phase }

// Version changes every time the round state changes.
func (r *Round) Version() int { return r.version }

// PlaceBet records a player's wager for this hand.
func (r *Round) PlaceBet(id string, amount int64) error {
	if r.phase != AwaitingBets {
		return fmt.Errorf("%w: betting closed", ErrInvalidAction)
	}
	p, ok := r.byID[id]
	if !ok || p.left {
		return fmt.Errorf("%w: %s not in round", ErrInvalidAction, id)
	}
	if p.bet {
		return fmt.Errorf("%w: %s already bet", ErrInvalidAction, id)
	}
	if amount < r.cfg.MinBet {
		return fmt.Errorf("%w: %d below minimum %d", ErrInvalidBet, amount, r.cfg.MinBet)
	}
	if err := r.ledger.Withdraw(p.seat.Stack, amount); err != nil {
		return err
	}
	p.bet = true
	p.seat.Bets.Base = amount
	p.seat.Bets.Total += amount
	r.version++
	return nil
}

// Bettors returns the players with a bet placed, in seating order.
func (r *Round) Bettors() []string {
	var ids []string
	for _, p := range r.players {
		if p.bet && !p.left {
			ids = append(ids, p.seat.ID)
		}
	}
	return ids
}

// HasBet reports whether id has placed a bet.
func (r *Round) HasBet(id string) bool {
	p, ok := r.byID[id]
	return ok && p.bet
}

// BettingComplete reports whether every player the table waits on has bet.
// Late arrivals are not waited on.
func (r *Round) BettingComplete() bool {
	if r.phase != AwaitingBets {
		return false
	}
	for _, p := range r.players {
		if !p.late && !p.left && !p.bet {
			return false
		}
	}
	return true
}

// CloseBetting deals to everyone who bet. With no bets the round is
// cancelled and CloseBetting reports false.
func (r *Round) CloseBetting() (bool, error) {
	if r.phase != AwaitingBets {
		return false, fmt.Errorf("%w: betting already closed", ErrInvalidAction)
	}

	var live []*player
	for _, p := range r.players {
		if p.bet && !p.left {
			live = append(live, p)
		}
	}
	r.version++
	if len(live) == 0 {
		r.phase = Cancelled
		return false, nil
	}

	if r.deck.Remaining() < 2*len(live)+2 {
		return false, fmt.Errorf("deal %d players: %w", len(live), cards.ErrDeckExhausted)
	}
	for _, p := range live {
		p.seat.Hands = [][]cards.Card{nil}
		p.hands = []*handState{{bet: p.seat.Bets.Base}}
	}
	for range 2 {
		for _, p := range live {
			c, err := r.deck.DrawOne()
			if err != nil {
				return false, err
			}
			p.seat.Hands[0] = append(p.seat.Hands[0], c)
		}
		c, err := r.deck.DrawOne()
		if err != nil {
			return false, err
		}
		r.dealer = append(r.dealer, c)
	}
	for _, p := range live {
		if v, _ := Value(p.seat.Hands[0]); v == 21 {
			p.hands[0].done = true
		}
	}

	r.phase = PlayerTurns
	r.turn, r.handIdx = 0, 0
	return true, r.advance()
}

// Current returns whose decision the round is waiting on.
func (r *Round) Current() (id string, hand int, ok bool) {
	if r.phase != PlayerTurns || r.turn >= len(r.players) {
		return "", 0, false
	}
	return r.players[r.turn].seat.ID, r.handIdx, true
}

// Stamp identifies the pending decision for timeouts.
func (r *Round) Stamp() Stamp {
	id, _, _ := r.Current()
	return Stamp{Phase: r.phase, Seat: id, Version: r.version}
}

// Legal returns the actions id may take right now. It is empty when it is
// not id's turn.
func (r *Round) Legal(id string) []Action {
	cur, idx, ok := r.Current()
	if !ok || cur != id {
		return nil
	}
	p := r.players[r.turn]
	h := p.hands[idx]
	hc := p.seat.Hands[idx]
	stack := p.seat.Chips()

	legal := []Action{Stand}
	if !(h.splitAce && len(hc) == 2) {
		legal = append(legal, Hit)
	}
	if len(hc) == 2 && !h.touched && stack >= h.bet {
		legal = append(legal, Double)
	}
	if len(hc) == 2 && hc[0].Rank == hc[1].Rank && len(p.hands)-1 < r.cfg.MaxSplits && stack >= h.bet {
		legal = append(legal, Split)
	}
	if len(r.dealer) > 0 && r.dealer[0].IsAce() && !p.insured && stack >= p.seat.Bets.Base/2 && p.seat.Bets.Base/2 > 0 {
		legal = append(legal, Insurance)
	}
	return legal
}

func (r *Round) isLegal(id string, a Action) bool {
	for _, l := range r.Legal(id) {
		if l == a {
			return true
		}
	}
	return false
}

// Act applies a decision for id. Actions that are not legal for the current
// hand, including ones from a player whose turn it is not, are ignored and
// reported as not applied.
func (r *Round) Act(id string, a Action) (bool, error) {
	if !r.isLegal(id, a) {
		return false, nil
	}
	p := r.players[r.turn]
	if p.seat.Status.Acting {
		return false, nil
	}
	p.seat.Status.Acting = true
	defer func() { p.seat.Status.Acting = false }()

	h := p.hands[r.handIdx]
	switch a {
	case Stand:
		h.done = true

	case Hit:
		c, err := r.deck.DrawOne()
		if err != nil {
			return false, err
		}
		p.seat.Hands[r.handIdx] = append(p.seat.Hands[r.handIdx], c)
		h.touched = true

	case Double:
		c, err := r.deck.DrawOne()
		if err != nil {
			return false, err
		}
		if err := r.ledger.Withdraw(p.seat.Stack, h.bet); err != nil {
			return false, err
		}
		p.seat.Bets.Total += h.bet
		h.bet *= 2
		h.doubled = true
		h.touched = true
		p.seat.Hands[r.handIdx] = append(p.seat.Hands[r.handIdx], c)
		h.done = true

	case Split:
		if r.deck.Remaining() < 2 {
			return false, fmt.Errorf("split: %w", cards.ErrDeckExhausted)
		}
		if err := r.ledger.Withdraw(p.seat.Stack, h.bet); err != nil {
			return false, err
		}
		p.seat.Bets.Total += h.bet
		hc := p.seat.Hands[r.handIdx]
		aces := hc[0].IsAce()
		drawn, err := r.deck.Draw(2)
		if err != nil {
			return false, err
		}
		p.seat.Hands[r.handIdx] = []cards.Card{hc[0], drawn[0]}
		p.seat.Hands = append(p.seat.Hands, []cards.Card{hc[1], drawn[1]})
		*h = handState{bet: h.bet, split: true, splitAce: aces}
		p.hands = append(p.hands, &handState{bet: h.bet, split: true, splitAce: aces})

	case Insurance:
		wager := p.seat.Bets.Base / 2
		if err := r.ledger.Withdraw(p.seat.Stack, wager); err != nil {
			return false, err
		}
		p.insured = true
		p.seat.Bets.Insurance = wager
		p.seat.Bets.Total += wager
	}

	if v, _ := Value(p.seat.Hands[r.handIdx]); v >= 21 {
		h.done = true
	}
	r.version++
	return true, r.advance()
}

// Expire handles a turn timeout by standing the pending hand. Stale stamps
// are ignored.
func (r *Round) Expire(s Stamp) (bool, error) {
	if s != r.Stamp() || r.phase != PlayerTurns {
		return false, nil
	}
	return r.Act(s.Seat, Stand)
}

// Leave takes a player out of the round. A bet placed before the deal is
// returned to the stack. Once cards are out the player's wagers are
// forfeited to the house.
func (r *Round) Leave(id string) error {
	p, ok := r.byID[id]
	if !ok || p.left {
		return nil
	}
	p.left = true
	r.version++

	switch r.phase {
	case AwaitingBets:
		if p.bet {
			if err := r.ledger.Deposit(p.seat.Stack, p.seat.Bets.Base); err != nil {
				return err
			}
			p.bet = false
			p.seat.Bets = table.Bets{}
		}
		return nil
	case PlayerTurns:
		for _, h := range p.hands {
			h.done = true
		}
		return r.advance()
	}
	return nil
}

// advance moves to the next hand needing a decision, running the dealer and
// settling once nobody is left to act.
func (r *Round) advance() error {
	if r.phase != PlayerTurns {
		return nil
	}
	for r.turn < len(r.players) {
		p := r.players[r.turn]
		if p.bet && !p.left {
			for r.handIdx < len(p.hands) {
				h := p.hands[r.handIdx]
				if v, _ := Value(p.seat.Hands[r.handIdx]); v >= 21 {
					h.done = true
				}
				if !h.done {
					return nil
				}
				r.handIdx++
			}
		}
		r.turn++
		r.handIdx = 0
	}
	return r.playDealer()
}

func (r *Round) playDealer() error {
	r.phase = DealerTurn
	r.version++

	if r.anyLiveHand() {
		for {
			v, _ := Value(r.dealer)
			if v >= 17 {
				break
			}
			c, err := r.deck.DrawOne()
			if err != nil {
				return err
			}
			r.dealer = append(r.dealer, c)
		}
	}
	return r.settle()
}

func (r *Round) anyLiveHand() bool {
	for _, p := range r.players {
		if !p.bet || p.left {
			continue
		}
		for _, hc := range p.seat.Hands {
			if v, _ := Value(hc); v <= 21 {
				return true
			}
		}
	}
	return false
}

// Dealer returns the dealer's cards. Until the dealer plays only the up
// card is visible.
func (r *Round) Dealer() []cards.Card {
	if len(r.dealer) == 0 {
		return nil
	}
	if r.phase == PlayerTurns {
		return r.dealer[:1]
	}
	return append([]cards.Card(nil), r.dealer...)
}

// Finished reports whether the round has settled or been cancelled.
func (r *Round) Finished() bool {
	return r.phase == Settlement || r.phase == Cancelled
}

// Result returns the settlement once the round has finished.
func (r *Round) Result() *Result { return r.result }

// Abort returns every outstanding wager to its stack and cancels the round.
// Players who already left or were paid out are skipped.
func (r *Round) Abort() error {
	if r.Finished() {
		return nil
	}
	var errs []error
	for _, p := range r.players {
		if p.left || p.settled || p.seat.Status.Removed {
			continue
		}
		stake := p.seat.Bets.Total
		if stake == 0 {
			continue
		}
		if err := r.ledger.Deposit(p.seat.Stack, stake); err != nil {
			errs = append(errs, err)
			continue
		}
		p.seat.Bets = table.Bets{}
	}
	r.phase = Cancelled
	r.version++
	return errors.Join(errs...)
}

func tax(net int64, rate float64) int64 {
	if net <= 0 || rate <= 0 {
		return 0
	}
	return int64(math.Floor(float64(net) * rate))
}
