// Package game runs tables. A Controller owns one table session and the hand
// in progress, and serializes every change to them through a single
// goroutine.
package game

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/cardroom/internal/blackjack"
	"github.com/lox/cardroom/internal/cards"
	"github.com/lox/cardroom/internal/evaluator"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/table"
)

const phaseNextHand = "next_hand"

// Notifier is told about every state change. Errors are logged and
// otherwise ignored.
type Notifier interface {
	StateChanged(tableID string, v View) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for timeouts.
func WithClock(clock quartz.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithNotifier sets where state changes are published.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithRand sets the random source decks are shuffled with.
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) { c.rng = rng }
}

// WithDeckFactory overrides how the table builds decks.
func WithDeckFactory(f func() *cards.Deck) Option {
	return func(c *Controller) { c.newDeck = f }
}

// Controller runs one table.
type Controller struct {
	cfg      Config
	session  *table.Session
	ledger   *ledger.Ledger
	eval     evaluator.Evaluator
	clock    quartz.Clock
	notifier Notifier
	rng      *rand.Rand
	newDeck  func() *cards.Deck
	logger   *log.Logger

	inbox chan func()
	done  chan struct{}

	// Owned by the run goroutine.
	engine        engine
	handID        string
	button        string
	lastOrder     []string
	autobets      map[string]*autobet
	timer         *quartz.Timer
	armed         stamp
	deadline      time.Time
	stopAfterHand bool
	stopped       bool
	stopErr       error
}

// New creates a table and starts its controller.
func New(cfg Config, l *ledger.Ledger, logger *log.Logger, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:      cfg,
		ledger:   l,
		clock:    quartz.NewReal(),
		logger:   logger.WithPrefix("table").With("table", cfg.ID),
		inbox:    make(chan func(), 64),
		done:     make(chan struct{}),
		autobets: make(map[string]*autobet),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Variant == Holdem {
		eval, err := evaluator.New(cfg.Evaluator)
		if err != nil {
			return nil, err
		}
		c.eval = eval
	}

	sessionOpts := []table.Option{table.WithRand(c.rng)}
	if c.newDeck != nil {
		sessionOpts = append(sessionOpts, table.WithDeckFactory(c.newDeck))
	}
	session, err := table.NewSession(cfg.Table, l, c.logger, sessionOpts...)
	if err != nil {
		return nil, err
	}
	c.session = session

	go c.run()
	c.logger.Info("Table opened", "variant", cfg.Variant, "min_bet", cfg.Table.MinBet, "seats", cfg.Table.MaxSeats)
	return c, nil
}

// ID returns the table id.
func (c *Controller) ID() string { return c.cfg.ID }

// Config returns the table configuration.
func (c *Controller) Config() Config { return c.cfg }

// Done is closed once the table has stopped.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Err returns the error from stopping the table, if any. It is only
// meaningful after Done is closed.
func (c *Controller) Err() error {
	select {
	case <-c.done:
		return c.stopErr
	default:
		return nil
	}
}

func (c *Controller) run() {
	defer close(c.done)
	for fn := range c.inbox {
		c.exec(fn)
		if c.stopped {
			return
		}
	}
}

// exec runs a command, turning a panic into a contained table failure.
func (c *Controller) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.fatal(fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
}

// do runs fn on the controller goroutine and waits for it.
func (c *Controller) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		fn()
		close(finished)
	}
	select {
	case c.inbox <- cmd:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-c.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting. Used from timer callbacks.
func (c *Controller) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.done:
	}
}

// Join buys a player in and seats them. The buy-in runs on the caller's
// goroutine so a slow balance store never blocks play at the table.
func (c *Controller) Join(ctx context.Context, id string, buyIn int64) error {
	seat, err := c.session.AddPlayer(ctx, id, buyIn)
	if err != nil {
		return err
	}
	var joinErr error
	if err := c.do(context.WithoutCancel(ctx), func() { joinErr = c.joined(seat) }); err != nil {
		// Stop refunds every committed seat.
		return table.ErrTableStopping
	}
	return joinErr
}

func (c *Controller) joined(seat *table.Seat) error {
	// A Leave that raced the buy-in has already refunded and removed the seat.
	if s, ok := c.session.Seat(seat.ID); !ok || s != seat {
		return fmt.Errorf("%w: %s left during buy-in", table.ErrNotSeated, seat.ID)
	}
	c.logger.Info("Player joined", "player", seat.ID, "stack", seat.Chips())
	if c.running() {
		c.engine.join(seat)
		c.afterChange()
		return nil
	}
	c.scheduleHand()
	c.notify()
	return nil
}

// Leave refunds a player and removes them from the table. A player in the
// middle of a hand is folded out of it first.
func (c *Controller) Leave(ctx context.Context, id string) error {
	var err error
	if doErr := c.do(ctx, func() { err = c.leave(ctx, id) }); doErr != nil {
		return doErr
	}
	return err
}

func (c *Controller) leave(ctx context.Context, id string) error {
	delete(c.autobets, id)
	wasRunning := c.running()
	if wasRunning {
		if err := c.engine.leave(id); err != nil {
			c.fatal(err)
			return err
		}
	}
	removed, belowMin, err := c.session.RemovePlayer(ctx, id)
	if err != nil {
		c.logger.Error("Refund failed", "player", id, "error", err)
		return err
	}
	if !removed {
		return nil
	}
	c.logger.Info("Player left", "player", id, "seats", c.session.Len())

	if wasRunning {
		if belowMin {
			c.stopAfterHand = true
		}
		c.afterChange()
		return nil
	}
	if belowMin {
		c.shutdown("not enough players")
		return nil
	}
	c.notify()
	return nil
}

// Submit applies a player action. Actions that are not legal right now are
// ignored and report false with no error. Funds and sizing problems are
// returned as errors and leave the table unchanged.
func (c *Controller) Submit(ctx context.Context, id string, a Action) (bool, error) {
	var applied bool
	var err error
	if doErr := c.do(ctx, func() { applied, err = c.submit(id, a) }); doErr != nil {
		return false, doErr
	}
	return applied, err
}

func (c *Controller) submit(id string, a Action) (bool, error) {
	if _, ok := c.session.Seat(id); !ok {
		return false, fmt.Errorf("%w: %s", table.ErrNotSeated, id)
	}
	if !c.running() {
		return false, nil
	}
	applied, err := c.engine.submit(id, a)
	if err != nil {
		if errors.Is(err, blackjack.ErrInvalidAction) {
			return false, nil
		}
		if rejection(err) {
			c.logger.Debug("Action rejected", "player", id, "action", a.Type, "reason", ReasonCode(err))
			return false, err
		}
		c.fatal(err)
		return false, err
	}
	if applied {
		c.logger.Debug("Action applied", "player", id, "action", a.Type, "amount", a.Amount)
		c.afterChange()
	}
	return applied, nil
}

// SetAutobet places amount for id on each of the next hands. Zero hands
// cancels the instruction. Only blackjack tables take standing bets.
func (c *Controller) SetAutobet(ctx context.Context, id string, amount int64, hands int) error {
	if c.cfg.Variant != Blackjack {
		return ErrNoAutobet
	}
	var err error
	if doErr := c.do(ctx, func() { err = c.setAutobet(id, amount, hands) }); doErr != nil {
		return doErr
	}
	return err
}

func (c *Controller) setAutobet(id string, amount int64, hands int) error {
	if _, ok := c.session.Seat(id); !ok {
		return fmt.Errorf("%w: %s", table.ErrNotSeated, id)
	}
	if hands <= 0 {
		delete(c.autobets, id)
		return nil
	}
	if amount < c.cfg.Table.MinBet {
		return fmt.Errorf("%w: autobet %d below minimum %d", blackjack.ErrInvalidBet, amount, c.cfg.Table.MinBet)
	}
	c.autobets[id] = &autobet{amount: amount, hands: hands}

	if bj, ok := c.engine.(*blackjackEngine); ok && c.running() && bj.round.Phase() == blackjack.AwaitingBets {
		bj.applyAutobet(id)
		if err := bj.maybeDeal(); err != nil {
			c.fatal(err)
			return err
		}
		c.afterChange()
	}
	return nil
}

// Stop ends the hand in progress, refunds every seat and stops the table.
func (c *Controller) Stop(ctx context.Context) error {
	err := c.do(ctx, func() { c.shutdown("stop requested") })
	if err != nil && !errors.Is(err, ErrStopped) {
		return err
	}
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.stopErr
}

// View returns the spectator view of the table.
func (c *Controller) View(ctx context.Context) (View, error) {
	return c.ViewFor(ctx, "")
}

// ViewFor returns the table as seat sees it.
func (c *Controller) ViewFor(ctx context.Context, seat string) (View, error) {
	var v View
	if err := c.do(ctx, func() { v = c.view().For(seat) }); err != nil {
		return View{}, err
	}
	return v, nil
}

func (c *Controller) running() bool {
	return c.engine != nil && !c.engine.finished()
}

func (c *Controller) scheduleHand() {
	if c.stopped || c.running() || c.armed.Phase == phaseNextHand {
		return
	}
	if c.session.Len() < c.cfg.Table.MinSeats {
		return
	}
	c.arm(stamp{Hand: c.session.HandNumber() + 1, Phase: phaseNextHand}, c.cfg.HandDelay)
}

func (c *Controller) startHand() {
	hand, err := c.session.NextHand(context.Background())
	if errors.Is(err, table.ErrTableStopping) {
		return
	}
	if err != nil {
		c.logger.Error("Eviction refund failed", "error", err)
	}
	if len(hand.Seats) < c.cfg.Table.MinSeats {
		c.session.EndHand()
		c.shutdown("not enough players")
		return
	}

	c.handID = uuid.NewString()
	deck := c.session.Deck()
	var e engine
	switch c.cfg.Variant {
	case Blackjack:
		e = newBlackjackEngine(c.cfg, c.ledger, deck, hand.Seats, c.autobets)
	case Holdem:
		he, err := newHoldemEngine(c.cfg, c.ledger, deck, c.eval, hand.Seats, c.nextButton(hand.Seats))
		if err != nil {
			c.fatal(err)
			return
		}
		c.button = he.round.Button()
		e = he
	}
	c.engine = e
	c.lastOrder = c.lastOrder[:0]
	for _, s := range hand.Seats {
		c.lastOrder = append(c.lastOrder, s.ID)
	}

	c.logger.Info("Hand started", "hand", hand.Number, "hand_id", c.handID, "seats", len(hand.Seats), "deck", deck.Remaining())
	if err := e.start(); err != nil {
		c.fatal(err)
		return
	}
	c.afterChange()
}

// nextButton moves the button one seat clockwise from where it was last
// hand, skipping seats that have since left.
func (c *Controller) nextButton(seats []*table.Seat) string {
	seated := make(map[string]bool, len(seats))
	for _, s := range seats {
		seated[s.ID] = true
	}
	prev := -1
	for i, id := range c.lastOrder {
		if id == c.button {
			prev = i
		}
	}
	if prev >= 0 {
		for k := 1; k <= len(c.lastOrder); k++ {
			if id := c.lastOrder[(prev+k)%len(c.lastOrder)]; seated[id] {
				return id
			}
		}
	}
	return seats[0].ID
}

// afterChange settles a finished hand or re-arms the decision timer, then
// publishes the new state.
func (c *Controller) afterChange() {
	if c.engine == nil {
		c.notify()
		return
	}
	if c.engine.finished() {
		c.finishHand()
		return
	}
	if st, d, ok := c.engine.pending(); ok {
		st.Hand = c.session.HandNumber()
		if st != c.armed {
			c.arm(st, d)
		}
	} else {
		c.disarm()
	}
	c.notify()
}

func (c *Controller) finishHand() {
	c.disarm()
	cancelled := c.engine.cancelled()
	if out := c.engine.outcome(); out != nil && !out.Cancelled {
		c.logger.Info("Hand finished", "hand", c.session.HandNumber(), "hand_id", c.handID, "payouts", out.Payouts)
	} else {
		c.logger.Info("Hand cancelled", "hand", c.session.HandNumber(), "hand_id", c.handID)
	}

	for _, s := range c.session.Seats() {
		if s.Chips() >= c.cfg.Table.MinBet {
			continue
		}
		if _, _, err := c.session.RemovePlayer(context.Background(), s.ID); err != nil {
			c.logger.Error("Refund failed", "player", s.ID, "error", err)
		}
		delete(c.autobets, s.ID)
	}
	c.session.EndHand()
	c.notify()

	switch {
	case cancelled && c.cfg.StopWhenIdle:
		c.shutdown("no bets placed")
	case c.stopAfterHand || c.session.Len() < c.cfg.Table.MinSeats:
		c.shutdown("not enough players")
	default:
		c.scheduleHand()
	}
}

func (c *Controller) arm(st stamp, d time.Duration) {
	c.disarm()
	c.armed = st
	c.deadline = c.clock.Now().Add(d)
	c.timer = c.clock.AfterFunc(d, func() {
		c.post(func() { c.fire(st) })
	}, "table", st.Phase)
}

func (c *Controller) disarm() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = nil
	c.armed = stamp{}
	c.deadline = time.Time{}
}

func (c *Controller) fire(st stamp) {
	if st != c.armed {
		c.logger.Debug("Stale timer ignored", "phase", st.Phase, "seat", st.Seat)
		return
	}
	c.timer = nil
	c.armed = stamp{}
	c.deadline = time.Time{}

	if st.Phase == phaseNextHand {
		c.startHand()
		return
	}
	if !c.running() {
		return
	}
	c.logger.Info("Decision timed out", "phase", st.Phase, "seat", st.Seat)
	if err := c.engine.expire(st); err != nil {
		c.fatal(err)
		return
	}
	c.afterChange()
}

// fatal aborts the hand in progress and stops the table. Chips in play go
// back to their stacks and every stack is refunded.
func (c *Controller) fatal(err error) {
	c.logger.Error("Table failed", "error", err, "fatal", errors.Is(err, cards.ErrDeckExhausted))
	c.shutdown("fatal error")
	if c.stopErr == nil {
		c.stopErr = err
	} else {
		c.stopErr = errors.Join(err, c.stopErr)
	}
}

func (c *Controller) shutdown(reason string) {
	if c.stopped {
		return
	}
	c.disarm()

	var errs []error
	if c.running() {
		if err := c.abortHand(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.session.Stop(context.Background()); err != nil {
		errs = append(errs, err)
	}
	c.stopped = true
	c.stopErr = errors.Join(errs...)
	c.logger.Info("Table stopped", "reason", reason, "hands", c.session.HandNumber())
	c.notify()
}

func (c *Controller) abortHand() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("abort: panic: %v", r)
		}
	}()
	return c.engine.abort()
}

func (c *Controller) notify() {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.StateChanged(c.cfg.ID, c.view()); err != nil {
		c.logger.Warn("State notification failed", "error", err)
	}
}

func (c *Controller) view() View {
	seats := c.session.Seats()
	v := View{
		TableID:  c.cfg.ID,
		Variant:  c.cfg.Variant,
		HandID:   c.handID,
		Hand:     c.session.HandNumber(),
		Phase:    "waiting",
		Stopped:  c.stopped,
		Deadline: c.deadline,
		Seats:    make([]SeatView, len(seats)),
	}
	for i, s := range seats {
		sv := SeatView{
			ID:        s.ID,
			Stack:     s.Chips(),
			Bet:       s.Bets.Base,
			Committed: s.Bets.Total,
			Insurance: s.Bets.Insurance,
			Folded:    s.Status.Folded,
			AllIn:     s.Status.AllIn,
			NewEntry:  s.Status.NewEntry,
		}
		for _, h := range s.Hands {
			sv.Hands = append(sv.Hands, cards.Codes(h))
		}
		v.Seats[i] = sv
	}
	if c.engine != nil {
		c.engine.fill(&v, seats)
		v.Outcome = c.engine.outcome()
	}
	if c.stopped {
		v.Phase = "stopped"
	}
	return v
}
