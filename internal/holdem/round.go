// Package holdem runs a single hand of no-limit Texas Hold'em: blinds,
// four betting streets, side pots and showdown.
//
// A Round is not safe for concurrent use. The game controller drives it from
// a single goroutine.
package holdem

import (
	"errors"
	"fmt"

	"github.com/lox/cardroom/internal/cards"
	"github.com/lox/cardroom/internal/evaluator"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/table"
)

var (
	ErrInvalidBet     = errors.New("invalid bet")
	ErrInvalidAction  = errors.New("invalid action")
	ErrNotEnoughSeats = errors.New("not enough seats")
)

// Phase is the stage of a hand.
type Phase int

const (
	Blinds Phase = iota
	Preflop
	Flop
	Turn
	River
	Showdown
	Complete
)

func (p Phase) String() string {
	return [...]string{"blinds", "preflop", "flop", "turn", "river", "showdown", "complete"}[p]
}

// Action is a betting decision.
type Action int

const (
	Fold Action = iota
	Check
	Call
	Bet
	Raise
	AllIn
)

func (a Action) String() string {
	return [...]string{"fold", "check", "call", "bet", "raise", "allin"}[a]
}

// ParseAction converts a wire name to an Action.
func ParseAction(s string) (Action, error) {
	for a := Fold; a <= AllIn; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Config holds the stakes. The small blind is half the minimum bet and the
// big blind the full minimum bet.
type Config struct {
	MinBet int64
}

// Stamp identifies the decision a timeout was armed for.
type Stamp struct {
	Phase   Phase
	Seat    string
	Version int
}

// Round is one hand of hold'em.
type Round struct {
	cfg    Config
	ledger *ledger.Ledger
	deck   *cards.Deck
	eval   evaluator.Evaluator

	ring   []*table.Seat
	active map[string]*table.Seat
	dead   map[string]int64
	button int

	phase     Phase
	board     []cards.Card
	maxBet    int64
	lastRaise int64
	current   int
	version   int

	result *Result
}

// New sets up a hand for seats in seating order with the button on
// buttonID. If buttonID is not seated the button goes to the first seat.
func New(cfg Config, l *ledger.Ledger, deck *cards.Deck, eval evaluator.Evaluator, seats []*table.Seat, buttonID string) (*Round, error) {
	if len(seats) < 2 {
		return nil, fmt.Errorf("%w: have %d", ErrNotEnoughSeats, len(seats))
	}
	r := &Round{
		cfg:     cfg,
		ledger:  l,
		deck:    deck,
		eval:    eval,
		ring:    append([]*table.Seat(nil), seats...),
		active:  make(map[string]*table.Seat, len(seats)),
		dead:    make(map[string]int64),
		current: -1,
	}
	for i, s := range seats {
		r.active[s.ID] = s
		if s.ID == buttonID {
			r.button = i
		}
	}
	return r, nil
}

// Start posts the blinds, deals hole cards and opens preflop betting.
func (r *Round) Start() error {
	if r.phase != Blinds {
		return fmt.Errorf("%w: already started", ErrInvalidAction)
	}
	if need := 2*len(r.ring) + 5; r.deck.Remaining() < need {
		return fmt.Errorf("need %d cards, have %d: %w", need, r.deck.Remaining(), cards.ErrDeckExhausted)
	}

	sb := r.next(r.button)
	bb := r.next(sb)
	if err := r.post(r.ring[sb], r.cfg.MinBet/2); err != nil {
		return err
	}
	if err := r.post(r.ring[bb], r.cfg.MinBet); err != nil {
		return err
	}
	r.lastRaise = r.cfg.MinBet

	for _, s := range r.ring {
		hole, err := r.deck.Draw(2)
		if err != nil {
			return err
		}
		s.Hands = [][]cards.Card{hole}
	}

	r.phase = Preflop
	r.version++
	r.current = bb
	return r.afterAction()
}

func (r *Round) post(s *table.Seat, blind int64) error {
	amount := min(blind, s.Chips())
	if err := r.commit(s, amount); err != nil {
		return err
	}
	r.maxBet = max(r.maxBet, s.Bets.Base)
	return nil
}

func (r *Round) commit(s *table.Seat, amount int64) error {
	if err := r.ledger.Withdraw(s.Stack, amount); err != nil {
		return err
	}
	s.Bets.Base += amount
	s.Bets.Total += amount
	if s.Chips() == 0 {
		s.Status.AllIn = true
	}
	return nil
}

// next returns the ring index after i, whether or not that seat is active.
func (r *Round) next(i int) int {
	return (i + 1) % len(r.ring)
}

func (r *Round) contesting(s *table.Seat) bool {
	_, ok := r.active[s.ID]
	return ok && !s.Status.Folded
}

func (r *Round) canAct(s *table.Seat) bool {
	return r.contesting(s) && !s.Status.AllIn
}

func (r *Round) pending(s *table.Seat) bool {
	return r.canAct(s) && (!s.Status.Moved || s.Bets.Base < r.maxBet)
}

// Phase returns the current phase.
func (r *Round) Phase() Phase { return r.phase }

// Version changes every time the round state changes.
func (r *Round) Version() int { return r.version }

// Button returns the seat holding the dealer button.
func (r *Round) Button() string { return r.ring[r.button].ID }

// Board returns the community cards dealt so far.
func (r *Round) Board() []cards.Card { return append([]cards.Card(nil), r.board...) }

// MaxBet returns the largest street contribution.
func (r *Round) MaxBet() int64 { return r.maxBet }

// Finished reports whether the hand is over.
func (r *Round) Finished() bool { return r.phase == Complete }

// Result returns the settlement once the hand is complete.
func (r *Round) Result() *Result { return r.result }

// Current returns the seat whose turn it is.
func (r *Round) Current() (string, bool) {
	if r.phase < Preflop || r.phase > River || r.current < 0 {
		return "", false
	}
	return r.ring[r.current].ID, true
}

// Stamp identifies the pending decision for timeouts.
func (r *Round) Stamp() Stamp {
	id, _ := r.Current()
	return Stamp{Phase: r.phase, Seat: id, Version: r.version}
}

// ToCall returns how much id needs to match the current bet.
func (r *Round) ToCall(id string) int64 {
	s, ok := r.active[id]
	if !ok {
		return 0
	}
	return max(0, r.maxBet-s.Bets.Base)
}

// MinRaiseTo returns the smallest legal raise target.
func (r *Round) MinRaiseTo() int64 {
	return r.maxBet + r.lastRaise
}

// Pots returns the pots as they stand.
func (r *Round) Pots() []Pot {
	return BuildPots(r.contributions())
}

func (r *Round) contributions() []Contribution {
	out := make([]Contribution, 0, len(r.ring))
	for _, s := range r.ring {
		if amt, ok := r.dead[s.ID]; ok {
			out = append(out, Contribution{Seat: s.ID, Amount: amt, Folded: true})
			continue
		}
		out = append(out, Contribution{
			Seat:   s.ID,
			Amount: s.Bets.Total,
			AllIn:  s.Status.AllIn,
			Folded: s.Status.Folded,
		})
	}
	return out
}

// Legal returns the actions id may take now. It is empty when it is not
// id's turn.
func (r *Round) Legal(id string) []Action {
	cur, ok := r.Current()
	if !ok || cur != id {
		return nil
	}
	s := r.ring[r.current]
	stack := s.Chips()
	toCall := r.maxBet - s.Bets.Base

	legal := []Action{Fold}
	if toCall <= 0 {
		legal = append(legal, Check)
	} else if stack > 0 {
		legal = append(legal, Call)
	}
	if r.maxBet == 0 && stack >= r.cfg.MinBet {
		legal = append(legal, Bet)
	}
	if r.maxBet > 0 && stack+s.Bets.Base >= r.maxBet+r.lastRaise && r.opponentCanRespond(s) {
		legal = append(legal, Raise)
	}
	if stack > 0 {
		legal = append(legal, AllIn)
	}
	return legal
}

// opponentCanRespond reports whether some other seat still has chips behind
// the current bet, so a raise could be called.
func (r *Round) opponentCanRespond(self *table.Seat) bool {
	for _, o := range r.ring {
		if o != self && r.canAct(o) && o.Chips()+o.Bets.Base > r.maxBet {
			return true
		}
	}
	return false
}

func (r *Round) isLegal(id string, a Action) bool {
	for _, l := range r.Legal(id) {
		if l == a {
			return true
		}
	}
	return false
}

// Act applies a decision. For Bet the amount is the bet size and for Raise
// it is the total the seat raises to; zero picks the minimum. Actions that
// are not legal now are ignored and reported as not applied. An amount
// outside the allowed range returns ErrInvalidBet.
func (r *Round) Act(id string, a Action, amount int64) (bool, error) {
	if !r.isLegal(id, a) {
		return false, nil
	}
	s := r.ring[r.current]
	if s.Status.Acting {
		return false, nil
	}
	s.Status.Acting = true
	defer func() { s.Status.Acting = false }()

	stack := s.Chips()
	switch a {
	case Fold:
		s.Status.Folded = true

	case Check:

	case Call:
		if err := r.commit(s, min(r.maxBet-s.Bets.Base, stack)); err != nil {
			return false, err
		}

	case Bet:
		if amount == 0 {
			amount = r.cfg.MinBet
		}
		if amount < r.cfg.MinBet || amount > stack {
			return false, fmt.Errorf("%w: bet %d outside [%d, %d]", ErrInvalidBet, amount, r.cfg.MinBet, stack)
		}
		if err := r.commit(s, amount); err != nil {
			return false, err
		}
		r.raiseTo(s, s.Bets.Base)

	case Raise:
		if amount == 0 {
			amount = r.MinRaiseTo()
		}
		if amount < r.MinRaiseTo() || amount-s.Bets.Base > stack {
			return false, fmt.Errorf("%w: raise to %d outside [%d, %d]", ErrInvalidBet, amount, r.MinRaiseTo(), stack+s.Bets.Base)
		}
		if err := r.commit(s, amount-s.Bets.Base); err != nil {
			return false, err
		}
		r.raiseTo(s, amount)

	case AllIn:
		if err := r.commit(s, stack); err != nil {
			return false, err
		}
		if s.Bets.Base > r.maxBet {
			r.raiseTo(s, s.Bets.Base)
		}
	}

	s.Status.Moved = true
	r.version++
	return true, r.afterAction()
}

// raiseTo moves the street bet to target. Only a full raise reopens the
// minimum raise size; any increase makes every other seat act again.
func (r *Round) raiseTo(s *table.Seat, target int64) {
	if by := target - r.maxBet; by >= r.lastRaise {
		r.lastRaise = by
	}
	r.maxBet = target
	for _, o := range r.ring {
		if o != s {
			o.Status.Moved = false
		}
	}
}

// Expire handles a turn timeout: check when possible, otherwise fold.
// Stale stamps are ignored.
func (r *Round) Expire(st Stamp) (bool, error) {
	if st != r.Stamp() || st.Seat == "" {
		return false, nil
	}
	if r.isLegal(st.Seat, Check) {
		return r.Act(st.Seat, Check, 0)
	}
	return r.Act(st.Seat, Fold, 0)
}

// Leave folds id out of the hand. Chips already committed stay in the pots.
func (r *Round) Leave(id string) error {
	s, ok := r.active[id]
	if !ok || r.Finished() {
		return nil
	}
	wasCurrent := r.current >= 0 && r.ring[r.current] == s
	s.Status.Folded = true
	r.dead[id] = s.Bets.Total
	delete(r.active, id)
	r.version++

	if r.phase == Blinds {
		return nil
	}
	if wasCurrent {
		return r.afterAction()
	}
	if r.unfolded() <= 1 {
		return r.awardUncontested()
	}
	return nil
}

func (r *Round) unfolded() int {
	n := 0
	for _, s := range r.ring {
		if r.contesting(s) {
			n++
		}
	}
	return n
}

// afterAction finds the next seat to act, closing streets and dealing the
// board as needed.
func (r *Round) afterAction() error {
	if r.unfolded() <= 1 {
		return r.awardUncontested()
	}
	for {
		// With at most one seat able to bet and nobody short, the board
		// runs out without further decisions.
		if r.actors() > 1 || !r.matched() {
			if i, ok := r.nextPending(r.current); ok {
				r.current = i
				return nil
			}
		}
		if err := r.closeStreet(); err != nil {
			return err
		}
		if r.phase == Showdown {
			return r.showdown()
		}
		// Start the new street from the button.
		r.current = r.button
	}
}

func (r *Round) nextPending(from int) (int, bool) {
	i := from
	for range r.ring {
		i = r.next(i)
		if r.pending(r.ring[i]) {
			return i, true
		}
	}
	return -1, false
}

func (r *Round) closeStreet() error {
	for _, s := range r.ring {
		s.Bets.Base = 0
		s.Status.Moved = false
	}
	r.maxBet = 0
	r.lastRaise = r.cfg.MinBet
	r.version++

	deal := 0
	switch r.phase {
	case Preflop:
		r.phase, deal = Flop, 3
	case Flop:
		r.phase, deal = Turn, 1
	case Turn:
		r.phase, deal = River, 1
	case River:
		r.phase = Showdown
		return nil
	}
	drawn, err := r.deck.Draw(deal)
	if err != nil {
		return err
	}
	r.board = append(r.board, drawn...)
	return nil
}

func (r *Round) matched() bool {
	for _, s := range r.ring {
		if r.canAct(s) && s.Bets.Base < r.maxBet {
			return false
		}
	}
	return true
}

func (r *Round) actors() int {
	n := 0
	for _, s := range r.ring {
		if r.canAct(s) {
			n++
		}
	}
	return n
}
