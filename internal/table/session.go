// Package table manages the players seated at a table, their stacks and the
// deck that hands are dealt from.
package table

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/cardroom/internal/cards"
	"github.com/lox/cardroom/internal/ledger"
)

var (
	ErrTableFull     = errors.New("table full")
	ErrAlreadySeated = errors.New("already seated")
	ErrTableStopping = errors.New("table stopping")
	ErrNotSeated     = errors.New("not seated")
	ErrInvalidConfig = errors.New("invalid table config")
)

// Config holds the limits of a table.
type Config struct {
	MinBet      int64
	MinBuyIn    int64
	MaxBuyIn    int64
	MaxSeats    int
	MinSeats    int
	Decks       int
	ReshuffleAt int
}

// Validate checks the limits are internally consistent.
func (c Config) Validate() error {
	switch {
	case c.MinBet <= 0:
		return fmt.Errorf("%w: min bet must be positive", ErrInvalidConfig)
	case c.MinBuyIn < c.MinBet:
		return fmt.Errorf("%w: min buy-in %d below min bet %d", ErrInvalidConfig, c.MinBuyIn, c.MinBet)
	case c.MaxBuyIn < c.MinBuyIn:
		return fmt.Errorf("%w: max buy-in %d below min buy-in %d", ErrInvalidConfig, c.MaxBuyIn, c.MinBuyIn)
	case c.MaxSeats < 1:
		return fmt.Errorf("%w: max seats must be positive", ErrInvalidConfig)
	case c.MinSeats < 1 || c.MinSeats > c.MaxSeats:
		return fmt.Errorf("%w: min seats %d outside [1, %d]", ErrInvalidConfig, c.MinSeats, c.MaxSeats)
	case c.Decks < 1:
		return fmt.Errorf("%w: decks must be positive", ErrInvalidConfig)
	case c.ReshuffleAt < 0 || c.ReshuffleAt >= 52*c.Decks:
		return fmt.Errorf("%w: reshuffle threshold %d outside [0, %d)", ErrInvalidConfig, c.ReshuffleAt, 52*c.Decks)
	}
	return nil
}

// Option configures a Session.
type Option func(*Session)

// WithRand sets the random source used to shuffle new decks.
func WithRand(rng *rand.Rand) Option {
	return func(s *Session) { s.rng = rng }
}

// WithDeckFactory replaces how fresh decks are built.
func WithDeckFactory(f func() *cards.Deck) Option {
	return func(s *Session) { s.newDeck = f }
}

// Session owns the seats, the deck and the hand counter of one table.
//
// Seat membership is guarded by the session mutex so joins can commit from
// the caller's goroutine. Per-hand seat fields are only touched by whoever
// drives the hands.
type Session struct {
	cfg     Config
	ledger  *ledger.Ledger
	logger  *log.Logger
	rng     *rand.Rand
	newDeck func() *cards.Deck

	mu       sync.Mutex
	seats    []*Seat
	pending  map[string]chan struct{}
	deck     *cards.Deck
	hand     int
	playing  bool
	stopping bool
}

// NewSession creates an empty table.
func NewSession(cfg Config, l *ledger.Ledger, logger *log.Logger, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:     cfg,
		ledger:  l,
		logger:  logger,
		pending: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.newDeck == nil {
		s.newDeck = func() *cards.Deck { return cards.NewDeck(s.rng, cfg.Decks) }
	}
	s.deck = s.newDeck()
	return s, nil
}

// Config returns the table limits.
func (s *Session) Config() Config { return s.cfg }

// Ledger returns the ledger stacks are settled through.
func (s *Session) Ledger() *ledger.Ledger { return s.ledger }

// AddPlayer buys a player in and seats them. The requested amount is
// clamped to the table's buy-in range and to the player's balance.
//
// The seat is reserved while the ledger runs, so capacity and duplicate
// checks see it, but it only joins the seat list once the buy-in commits.
func (s *Session) AddPlayer(ctx context.Context, id string, requested int64) (*Seat, error) {
	s.mu.Lock()
	switch {
	case s.stopping:
		s.mu.Unlock()
		return nil, ErrTableStopping
	case s.indexLocked(id) >= 0 || s.pending[id] != nil:
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadySeated, id)
	case len(s.seats)+len(s.pending) >= s.cfg.MaxSeats:
		s.mu.Unlock()
		return nil, ErrTableFull
	}
	done := make(chan struct{})
	s.pending[id] = done
	s.mu.Unlock()

	seat, err := s.buyIn(ctx, id, requested)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	close(done)
	if err != nil {
		return nil, err
	}
	if s.stopping {
		// Stop is waiting on us and will not see this seat, so refund here.
		if _, rerr := s.ledger.RefundAll(ctx, seat.Stack); rerr != nil {
			return nil, errors.Join(ErrTableStopping, rerr)
		}
		return nil, ErrTableStopping
	}
	seat.Status.NewEntry = s.playing
	s.seats = append(s.seats, seat)
	s.logger.Info("Player seated", "player", id, "stack", seat.Chips(), "seats", len(s.seats))
	return seat, nil
}

func (s *Session) buyIn(ctx context.Context, id string, requested int64) (*Seat, error) {
	balance, err := s.ledger.Balance(ctx, id)
	if err != nil {
		return nil, err
	}
	amount := s.normalize(requested, balance)
	if amount < s.cfg.MinBuyIn {
		return nil, fmt.Errorf("%w: balance %d below min buy-in %d", ledger.ErrInsufficientBalance, balance, s.cfg.MinBuyIn)
	}

	seat := newSeat(id)
	if err := s.ledger.BuyIn(ctx, seat.Stack, amount); err != nil {
		return nil, err
	}
	return seat, nil
}

func (s *Session) normalize(requested, balance int64) int64 {
	amount := requested
	if amount <= 0 || amount > s.cfg.MaxBuyIn {
		amount = s.cfg.MaxBuyIn
	}
	if amount < s.cfg.MinBuyIn {
		amount = s.cfg.MinBuyIn
	}
	return min(amount, balance)
}

// RemovePlayer refunds a player's stack and removes the seat. It reports
// whether the seat existed and whether the table is now below its minimum
// size. Removing an absent player is a no-op.
func (s *Session) RemovePlayer(ctx context.Context, id string) (removed, belowMin bool, err error) {
	s.mu.Lock()
	done := s.pending[id]
	s.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return false, false, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false, len(s.seats) < s.cfg.MinSeats, nil
	}
	seat := s.seats[i]
	if err := s.releaseLocked(ctx, seat); err != nil {
		return false, false, err
	}
	s.seats = append(s.seats[:i], s.seats[i+1:]...)
	s.logger.Info("Player removed", "player", id, "seats", len(s.seats))
	return true, len(s.seats) < s.cfg.MinSeats, nil
}

func (s *Session) releaseLocked(ctx context.Context, seat *Seat) error {
	amount, err := s.ledger.RefundAll(ctx, seat.Stack)
	if err != nil {
		return err
	}
	seat.Status.Removed = true
	s.logger.Debug("Stack refunded", "player", seat.ID, "amount", amount)
	return nil
}

// Hand describes a freshly started hand.
type Hand struct {
	Number  int
	Seats   []*Seat
	Evicted []string
}

// NextHand prepares the table for a new hand. Seats are reset, players who
// can no longer cover the minimum bet are refunded and removed, and the deck
// is replaced when it has run low.
func (s *Session) NextHand(ctx context.Context) (Hand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return Hand{}, ErrTableStopping
	}

	var evicted []string
	var errs []error
	kept := s.seats[:0]
	for _, seat := range s.seats {
		seat.Reset()
		if seat.Chips() >= s.cfg.MinBet {
			kept = append(kept, seat)
			continue
		}
		if err := s.releaseLocked(ctx, seat); err != nil {
			errs = append(errs, err)
			kept = append(kept, seat)
			continue
		}
		evicted = append(evicted, seat.ID)
	}
	clear(s.seats[len(kept):])
	s.seats = kept
	if len(evicted) > 0 {
		s.logger.Info("Evicted short stacks", "players", evicted)
	}

	if s.deck.Remaining() < s.cfg.ReshuffleAt {
		s.logger.Debug("Replacing deck", "remaining", s.deck.Remaining(), "threshold", s.cfg.ReshuffleAt)
		s.deck = s.newDeck()
	}

	s.hand++
	s.playing = true
	return Hand{
		Number:  s.hand,
		Seats:   append([]*Seat(nil), s.seats...),
		Evicted: evicted,
	}, errors.Join(errs...)
}

// EndHand marks the table as between hands. Seats joined during the hand
// stop being new entries.
func (s *Session) EndHand() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	for _, seat := range s.seats {
		seat.Status.NewEntry = false
	}
}

// Stop refuses new players, waits for in-flight buy-ins and refunds every
// seat. Calling it again is harmless.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	waits := make([]chan struct{}, 0, len(s.pending))
	for _, done := range s.pending {
		waits = append(waits, done)
	}
	s.mu.Unlock()

	for _, done := range waits {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	kept := s.seats[:0]
	for _, seat := range s.seats {
		if err := s.releaseLocked(ctx, seat); err != nil {
			errs = append(errs, fmt.Errorf("refund %s: %w", seat.ID, err))
			kept = append(kept, seat)
		}
	}
	clear(s.seats[len(kept):])
	s.seats = kept
	s.playing = false
	return errors.Join(errs...)
}

// Seats returns a snapshot of the seat list in seating order.
func (s *Session) Seats() []*Seat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Seat(nil), s.seats...)
}

// Seat looks up a seated player.
func (s *Session) Seat(id string) (*Seat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.seats[i], true
	}
	return nil, false
}

// Len returns the number of committed seats.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seats)
}

// Deck returns the current deck.
func (s *Session) Deck() *cards.Deck {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deck
}

// HandNumber returns how many hands have been started.
func (s *Session) HandNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hand
}

// Stopping reports whether Stop has been called.
func (s *Session) Stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

// Playing reports whether a hand is in progress.
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Session) indexLocked(id string) int {
	for i, seat := range s.seats {
		if seat.ID == id {
			return i
		}
	}
	return -1
}
