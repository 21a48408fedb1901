package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/blackjack"
	"github.com/lox/cardroom/internal/cards"
	"github.com/lox/cardroom/internal/holdem"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/lox/cardroom/internal/store"
	"github.com/lox/cardroom/internal/table"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	clock *quartz.Mock
	mem   *store.Memory
	c     *Controller
}

func newFixture(t *testing.T, cfg Config, balances map[string]int64, opts ...Option) *fixture {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	mem := store.NewMemory(balances)
	clock := quartz.NewMock(t)
	opts = append([]Option{WithClock(clock), WithRand(randutil.New(1))}, opts...)
	c, err := New(cfg, ledger.New(mem, testLogger()), testLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Stop(context.Background()) })

	return &fixture{t: t, ctx: ctx, clock: clock, mem: mem, c: c}
}

// advance fires the next armed timer and waits for the controller to
// process it.
func (f *fixture) advance() {
	f.t.Helper()
	_, w := f.clock.AdvanceNext()
	w.MustWait(f.ctx)
	_, err := f.c.View(f.ctx)
	if !errors.Is(err, ErrStopped) {
		require.NoError(f.t, err)
	}
}

func (f *fixture) view(seat string) View {
	f.t.Helper()
	v, err := f.c.ViewFor(f.ctx, seat)
	require.NoError(f.t, err)
	return v
}

func (f *fixture) join(id string, buyIn int64) {
	f.t.Helper()
	require.NoError(f.t, f.c.Join(f.ctx, id, buyIn))
}

func (f *fixture) submit(id, action string, amount int64) bool {
	f.t.Helper()
	ok, err := f.c.Submit(f.ctx, id, Action{Type: action, Amount: amount})
	require.NoError(f.t, err)
	return ok
}

func (f *fixture) waitDone() {
	f.t.Helper()
	select {
	case <-f.c.Done():
	case <-f.ctx.Done():
		f.t.Fatal("table did not stop")
	}
}

func (f *fixture) balance(id string) int64 {
	f.t.Helper()
	b, err := f.mem.GetBalance(f.ctx, id)
	require.NoError(f.t, err)
	return b
}

func blackjackConfig() Config {
	cfg := DefaultConfig("bj", Blackjack)
	cfg.Table.MaxSeats = 4
	cfg.Table.Decks = 1
	cfg.Table.ReshuffleAt = 0
	cfg.HandDelay = time.Second
	cfg.BetTimeout = 10 * time.Second
	cfg.TurnTimeout = 5 * time.Second
	return cfg
}

func holdemConfig() Config {
	cfg := DefaultConfig("he", Holdem)
	cfg.Table.MaxSeats = 4
	cfg.Table.Decks = 1
	cfg.Table.ReshuffleAt = 20
	cfg.HandDelay = time.Second
	cfg.TurnTimeout = 5 * time.Second
	return cfg
}

func orderedDeck(deck string) Option {
	return WithDeckFactory(func() *cards.Deck {
		return cards.NewOrderedDeck(cards.MustParseCards(deck))
	})
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	l := ledger.New(store.NewMemory(nil), testLogger())

	cfg := DefaultConfig("he", Holdem)
	cfg.Table.MinSeats = 1
	_, err := New(cfg, l, testLogger())
	assert.Error(t, err)

	cfg = DefaultConfig("x", Variant("baccarat"))
	_, err = New(cfg, l, testLogger())
	assert.ErrorIs(t, err, ErrUnknownVariant)

	cfg = DefaultConfig("bj", Blackjack)
	cfg.TaxRate = 1
	_, err = New(cfg, l, testLogger())
	assert.Error(t, err)
}

func TestBlackjackHandSettles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, blackjackConfig(), map[string]int64{"alice": 1000})
	f.join("alice", 500)

	v := f.view("alice")
	assert.Equal(t, "waiting", v.Phase)
	require.Len(t, v.Seats, 1)
	assert.Equal(t, int64(500), v.Seats[0].Stack)
	assert.Equal(t, int64(500), f.balance("alice"))

	f.advance()
	v = f.view("alice")
	assert.Equal(t, "awaiting_bets", v.Phase)
	assert.Equal(t, 1, v.Hand)
	assert.NotEmpty(t, v.HandID)
	assert.Equal(t, []string{"bet"}, v.Legal)
	assert.Empty(t, f.view("").Legal, "spectators get no actions")

	assert.True(t, f.submit("alice", "bet", 100))
	for range 20 {
		v = f.view("alice")
		if v.Turn != "alice" {
			break
		}
		assert.Contains(t, v.Legal, "stand")
		f.submit("alice", "stand", 0)
	}
	v = f.view("alice")
	assert.Equal(t, "settlement", v.Phase)
	require.NotNil(t, v.Outcome)
	assert.Contains(t, v.Outcome.Results, "alice/0")
	houseNet := v.Outcome.HouseNet

	require.NoError(t, f.c.Stop(f.ctx))
	assert.Equal(t, int64(1000), f.balance("alice")+houseNet, "chips are conserved with the house")
}

func TestBlackjackTurnTimeoutStands(t *testing.T) {
	t.Parallel()

	// Player 5s 6h, dealer 9d 8c, then a 2c for the hit.
	f := newFixture(t, blackjackConfig(), map[string]int64{"alice": 1000}, orderedDeck("5s 9d 6h 8c 2c"))
	f.join("alice", 500)
	f.advance()
	require.True(t, f.submit("alice", "bet", 100))

	v := f.view("alice")
	require.Equal(t, "player_turns", v.Phase)
	assert.Equal(t, "alice", v.Turn)
	assert.WithinDuration(t, f.clock.Now().Add(5*time.Second), v.Deadline, 0)
	assert.Equal(t, []string{"9d"}, v.Dealer, "hole card hidden during play")

	f.clock.Advance(3 * time.Second).MustWait(f.ctx)
	require.True(t, f.submit("alice", "hit", 0))

	// The first deadline has passed but the hit re-armed the timer.
	f.clock.Advance(3 * time.Second).MustWait(f.ctx)
	v = f.view("alice")
	assert.Equal(t, "alice", v.Turn)
	assert.Equal(t, []int{13}, v.Seats[0].Values)

	f.advance()
	v = f.view("alice")
	assert.Equal(t, "settlement", v.Phase)
	assert.Equal(t, []string{"9d", "8c"}, v.Dealer)
	assert.Equal(t, 17, v.DealerValue)
	require.NotNil(t, v.Outcome)
	assert.Equal(t, "lose", v.Outcome.Results["alice/0"])
	assert.Equal(t, int64(400), v.Seats[0].Stack)
}

func TestStaleTimerIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t, blackjackConfig(), map[string]int64{"alice": 1000}, orderedDeck("5s 9d 6h 8c 2c"))
	f.join("alice", 500)
	f.advance()
	require.True(t, f.submit("alice", "bet", 100))

	stale := stamp{Hand: 1, Phase: blackjack.PlayerTurns.String(), Seat: "alice", Version: 99}
	require.NoError(t, f.c.do(f.ctx, func() { f.c.fire(stale) }))

	v := f.view("alice")
	assert.Equal(t, "alice", v.Turn, "a stale timer must not act")
	assert.Len(t, v.Seats[0].Hands[0], 2)
}

func TestBetTimeoutWithNoBetsStopsIdleTable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, blackjackConfig(), map[string]int64{"alice": 1000, "bob": 1000})
	f.join("alice", 500)
	f.advance()
	require.Equal(t, "awaiting_bets", f.view("").Phase)

	f.advance()
	f.waitDone()
	assert.NoError(t, f.c.Err())
	assert.Equal(t, int64(1000), f.balance("alice"))

	_, err := f.c.View(f.ctx)
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, f.c.Join(f.ctx, "bob", 100), table.ErrTableStopping)
}

func TestBetTimeoutWithNoBetsKeepsTableOpen(t *testing.T) {
	t.Parallel()

	cfg := blackjackConfig()
	cfg.StopWhenIdle = false
	f := newFixture(t, cfg, map[string]int64{"alice": 1000})
	f.join("alice", 500)
	f.advance()
	f.advance()

	v := f.view("")
	assert.Equal(t, "cancelled", v.Phase)
	require.NotNil(t, v.Outcome)
	assert.True(t, v.Outcome.Cancelled)
	assert.False(t, v.Stopped)

	f.advance()
	v = f.view("")
	assert.Equal(t, 2, v.Hand)
	assert.Equal(t, "awaiting_bets", v.Phase)
}

func TestBetTimeoutDealsPlacedBets(t *testing.T) {
	t.Parallel()

	f := newFixture(t, blackjackConfig(), map[string]int64{"alice": 1000, "bob": 1000})
	f.join("alice", 500)
	f.join("bob", 500)
	f.advance()
	require.True(t, f.submit("alice", "bet", 50))
	assert.Equal(t, "awaiting_bets", f.view("").Phase, "bob has not bet yet")

	f.advance()
	v := f.view("")
	assert.NotEqual(t, "awaiting_bets", v.Phase)
	for _, sv := range v.Seats {
		if sv.ID == "bob" {
			assert.Empty(t, sv.Hands, "bob sat the hand out")
		}
	}
}

func TestBlackjackDeckExhaustedStopsTable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, blackjackConfig(), map[string]int64{"alice": 1000}, orderedDeck("5s 9d 6h"))
	f.join("alice", 500)
	f.advance()

	_, err := f.c.Submit(f.ctx, "alice", Action{Type: "bet", Amount: 100})
	require.ErrorIs(t, err, cards.ErrDeckExhausted)
	assert.Equal(t, "deck_exhausted", ReasonCode(err))

	f.waitDone()
	assert.ErrorIs(t, f.c.Err(), cards.ErrDeckExhausted)
	assert.Equal(t, int64(1000), f.balance("alice"), "bet and stack refunded")
}

func TestBlackjackRejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t, blackjackConfig(), map[string]int64{"alice": 1000})
	f.join("alice", 200)

	ok, err := f.c.Submit(f.ctx, "alice", Action{Type: "bet", Amount: 50})
	assert.NoError(t, err)
	assert.False(t, ok, "no hand running yet")

	f.advance()
	_, err = f.c.Submit(f.ctx, "ghost", Action{Type: "bet", Amount: 50})
	assert.ErrorIs(t, err, table.ErrNotSeated)

	_, err = f.c.Submit(f.ctx, "alice", Action{Type: "bet", Amount: 5})
	assert.ErrorIs(t, err, blackjack.ErrInvalidBet)

	_, err = f.c.Submit(f.ctx, "alice", Action{Type: "bet", Amount: 500})
	assert.ErrorIs(t, err, ledger.ErrInsufficientStack)

	_, err = f.c.Submit(f.ctx, "alice", Action{Type: "surrender"})
	assert.ErrorIs(t, err, ErrUnknownAction)

	ok, err = f.c.Submit(f.ctx, "alice", Action{Type: "hit"})
	assert.NoError(t, err)
	assert.False(t, ok, "hit is not legal while betting")

	assert.Equal(t, int64(200), f.view("").Seats[0].Stack)
}

func TestAutobet(t *testing.T) {
	t.Parallel()

	f := newFixture(t, blackjackConfig(), map[string]int64{"alice": 1000})
	f.join("alice", 500)

	assert.ErrorIs(t, f.c.SetAutobet(f.ctx, "ghost", 50, 1), table.ErrNotSeated)
	assert.ErrorIs(t, f.c.SetAutobet(f.ctx, "alice", 5, 1), blackjack.ErrInvalidBet)
	require.NoError(t, f.c.SetAutobet(f.ctx, "alice", 50, 1))

	f.advance()
	v := f.view("alice")
	assert.NotEqual(t, "awaiting_bets", v.Phase, "the standing bet dealt the hand")
	assert.Equal(t, int64(50), v.Seats[0].Bet)

	for range 20 {
		if f.view("alice").Turn != "alice" {
			break
		}
		f.submit("alice", "stand", 0)
	}
	require.Equal(t, "settlement", f.view("").Phase)

	f.advance()
	v = f.view("alice")
	assert.Equal(t, 2, v.Hand)
	assert.Equal(t, "awaiting_bets", v.Phase, "the instruction covered one hand")
	assert.Zero(t, v.Seats[0].Bet)
}

func TestAutobetUnsupportedForHoldem(t *testing.T) {
	t.Parallel()

	f := newFixture(t, holdemConfig(), map[string]int64{"a": 1000})
	f.join("a", 500)
	err := f.c.SetAutobet(f.ctx, "a", 50, 1)
	assert.ErrorIs(t, err, ErrNoAutobet)
	assert.Equal(t, "unsupported", ReasonCode(err))
}

func TestHoldemFoldRotatesButton(t *testing.T) {
	t.Parallel()

	f := newFixture(t, holdemConfig(), map[string]int64{"a": 1000, "b": 1000})
	f.join("a", 1000)
	f.join("b", 1000)
	f.advance()

	v := f.view("b")
	require.Equal(t, "preflop", v.Phase)
	assert.Equal(t, "a", v.Button)
	assert.Equal(t, "b", v.Turn, "the small blind acts first heads-up")
	assert.Equal(t, int64(5), v.ToCall)
	assert.Equal(t, int64(20), v.MinRaiseTo)
	assert.Equal(t, []string{"fold", "call", "raise", "allin"}, v.Legal)

	va := f.view("a")
	assert.Empty(t, va.Legal)
	for _, sv := range va.Seats {
		if sv.ID == "a" {
			require.Len(t, sv.Hands, 1)
			assert.Len(t, sv.Hands[0], 2)
		} else {
			assert.Empty(t, sv.Hands, "opponent hole cards are hidden")
		}
	}
	for _, sv := range f.view("").Seats {
		assert.Empty(t, sv.Hands)
	}

	ok, err := f.c.Submit(f.ctx, "a", Action{Type: "check"})
	assert.NoError(t, err)
	assert.False(t, ok, "not a's turn")

	_, err = f.c.Submit(f.ctx, "b", Action{Type: "raise", Amount: 15})
	assert.ErrorIs(t, err, holdem.ErrInvalidBet)

	require.True(t, f.submit("b", "fold", 0))
	v = f.view("")
	assert.Equal(t, "complete", v.Phase)
	require.NotNil(t, v.Outcome)
	assert.Equal(t, map[string]int64{"a": 15}, v.Outcome.Payouts)
	stacks := map[string]int64{}
	for _, sv := range v.Seats {
		stacks[sv.ID] = sv.Stack
	}
	assert.Equal(t, map[string]int64{"a": 1005, "b": 995}, stacks)

	f.advance()
	v = f.view("")
	assert.Equal(t, 2, v.Hand)
	assert.Equal(t, "b", v.Button)
	assert.Equal(t, "a", v.Turn)

	// b leaving forfeits the big blind and leaves a alone at the table.
	require.NoError(t, f.c.Leave(f.ctx, "b"))
	f.waitDone()
	assert.Equal(t, int64(1015), f.balance("a"))
	assert.Equal(t, int64(985), f.balance("b"))
}

func TestHoldemTimeoutFolds(t *testing.T) {
	t.Parallel()

	f := newFixture(t, holdemConfig(), map[string]int64{"a": 1000, "b": 1000})
	f.join("a", 500)
	f.join("b", 500)
	f.advance()

	v := f.view("")
	require.Equal(t, "b", v.Turn)
	assert.WithinDuration(t, f.clock.Now().Add(5*time.Second), v.Deadline, 0)

	f.advance()
	v = f.view("")
	assert.Equal(t, "complete", v.Phase, "facing a bet, a timeout folds")
	require.NotNil(t, v.Outcome)
	assert.Equal(t, map[string]int64{"a": 15}, v.Outcome.Payouts)
}

func TestHoldemTimeoutChecks(t *testing.T) {
	t.Parallel()

	f := newFixture(t, holdemConfig(), map[string]int64{"a": 1000, "b": 1000})
	f.join("a", 500)
	f.join("b", 500)
	f.advance()

	require.True(t, f.submit("b", "call", 0))
	v := f.view("")
	require.Equal(t, "a", v.Turn)

	f.advance()
	v = f.view("")
	assert.Equal(t, "flop", v.Phase, "the big blind checks when the timer runs out")
	assert.Len(t, v.Board, 3)
}

func TestLeaveBeforeHandShutsDownBelowMinimum(t *testing.T) {
	t.Parallel()

	f := newFixture(t, holdemConfig(), map[string]int64{"a": 1000, "b": 1000})
	f.join("a", 500)
	f.join("b", 500)
	require.NoError(t, f.c.Leave(f.ctx, "b"))
	f.waitDone()
	assert.Equal(t, int64(1000), f.balance("a"))
	assert.Equal(t, int64(1000), f.balance("b"))
}

func TestLeaveIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, blackjackConfig(), map[string]int64{"alice": 1000, "bob": 1000})
	f.join("alice", 500)
	f.join("bob", 500)
	require.NoError(t, f.c.Leave(f.ctx, "bob"))
	require.NoError(t, f.c.Leave(f.ctx, "bob"))
	assert.Len(t, f.view("").Seats, 1)
	assert.Equal(t, int64(1000), f.balance("bob"))
}

func TestStopRefundsEveryone(t *testing.T) {
	t.Parallel()

	balances := map[string]int64{"a": 1000, "b": 1000, "c": 1000}
	f := newFixture(t, holdemConfig(), balances)
	for id := range balances {
		f.join(id, 400)
	}
	f.advance()
	v := f.view("")
	require.Equal(t, "preflop", v.Phase)
	require.True(t, f.submit(v.Turn, "call", 0))

	require.NoError(t, f.c.Stop(f.ctx))
	assert.Equal(t, int64(3000), f.mem.Total())
	for id := range balances {
		assert.Equal(t, int64(1000), f.balance(id))
	}

	_, err := f.c.Submit(f.ctx, "a", Action{Type: "fold"})
	assert.ErrorIs(t, err, ErrStopped)
	assert.NoError(t, f.c.Stop(f.ctx), "stopping twice is fine")
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	t.Parallel()

	balances := map[string]int64{}
	for i := range 10 {
		balances[fmt.Sprintf("p%d", i)] = 1000
	}
	f := newFixture(t, blackjackConfig(), balances)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		seated int
		full   int
	)
	for id := range balances {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.c.Join(f.ctx, id, 300)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				seated++
			case errors.Is(err, table.ErrTableFull):
				full++
			default:
				t.Errorf("join %s: %v", id, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, seated)
	assert.Equal(t, 6, full)
	assert.Equal(t, int64(10000-4*300), f.mem.Total())

	require.NoError(t, f.c.Stop(f.ctx))
	assert.Equal(t, int64(10000), f.mem.Total())
}

type recorder struct {
	mu    sync.Mutex
	views []View
	fail  bool
}

func (r *recorder) StateChanged(_ string, v View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
	if r.fail {
		return errors.New("subscriber gone")
	}
	return nil
}

func (r *recorder) last() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1]
}

func TestNotifierSeesEveryChange(t *testing.T) {
	t.Parallel()

	rec := &recorder{fail: true}
	f := newFixture(t, holdemConfig(), map[string]int64{"a": 1000, "b": 1000}, WithNotifier(rec))
	f.join("a", 500)
	f.join("b", 500)
	f.advance()

	v := rec.last()
	assert.Equal(t, "preflop", v.Phase)
	assert.Empty(t, v.Seats[0].Hands, "private cards are held back until For")
	mine := v.For(v.Seats[0].ID)
	assert.Len(t, mine.Seats[0].Hands, 1)
	assert.Empty(t, mine.Seats[1].Hands)

	require.True(t, f.submit("b", "fold", 0))
	assert.Equal(t, "complete", rec.last().Phase, "a failing notifier does not stop the table")

	require.NoError(t, f.c.Stop(f.ctx))
	assert.True(t, rec.last().Stopped)
	assert.Equal(t, "stopped", rec.last().Phase)
}

func TestViewForClonesOutcome(t *testing.T) {
	t.Parallel()

	v := View{Outcome: &Outcome{Payouts: map[string]int64{"a": 10}}}
	out := v.For("a")
	out.Outcome.Payouts["a"] = 99
	assert.Equal(t, int64(10), v.Outcome.Payouts["a"])
}

func TestReasonCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		code string
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", blackjack.ErrInvalidBet), "invalid_bet"},
		{holdem.ErrInvalidBet, "invalid_bet"},
		{holdem.ErrInvalidAction, "invalid_action"},
		{ErrUnknownAction, "unknown_action"},
		{ledger.ErrInsufficientStack, "insufficient_stack"},
		{ledger.ErrInsufficientBalance, "insufficient_balance"},
		{ledger.ErrPersistence, "persistence_failure"},
		{table.ErrTableFull, "table_full"},
		{table.ErrAlreadySeated, "already_seated"},
		{ErrStopped, "table_stopping"},
		{table.ErrNotSeated, "not_seated"},
		{cards.ErrDeckExhausted, "deck_exhausted"},
		{fmt.Errorf("%w: nope", ErrUnknownTable), "unknown_table"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, ReasonCode(tt.err), "%v", tt.err)
	}
}

// gatedStore holds the first balance write for one account until released.
type gatedStore struct {
	*store.Memory
	id      string
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) SetBalance(ctx context.Context, id string, balance int64) error {
	if id == g.id {
		first := false
		g.once.Do(func() { first = true })
		if first {
			close(g.entered)
			<-g.release
		}
	}
	return g.Memory.SetBalance(ctx, id, balance)
}

func TestLeaveDuringBuyIn(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	gs := &gatedStore{
		Memory:  store.NewMemory(map[string]int64{"alice": 1000, "bob": 1000}),
		id:      "alice",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	clock := quartz.NewMock(t)
	c, err := New(blackjackConfig(), ledger.New(gs, testLogger()), testLogger(),
		WithClock(clock), WithRand(randutil.New(1)), orderedDeck("5s 9d 6h 8c 2c 3d 4h"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	f := &fixture{t: t, ctx: ctx, clock: clock, mem: gs.Memory, c: c}

	f.join("bob", 500)
	f.advance()
	require.Equal(t, "awaiting_bets", f.view("").Phase)

	joinErr := make(chan error, 1)
	go func() { joinErr <- c.Join(ctx, "alice", 500) }()
	<-gs.entered

	leaveErr := make(chan error, 1)
	go func() { leaveErr <- c.Leave(ctx, "alice") }()

	// The controller is busy once the leave is waiting on the buy-in.
	require.Eventually(t, func() bool {
		pctx, pcancel := context.WithTimeout(ctx, 5*time.Millisecond)
		defer pcancel()
		_, err := c.View(pctx)
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)

	close(gs.release)
	require.NoError(t, <-leaveErr)
	require.ErrorIs(t, <-joinErr, table.ErrNotSeated)

	v := f.view("")
	require.Len(t, v.Seats, 1)
	assert.Equal(t, "bob", v.Seats[0].ID)
	assert.Equal(t, int64(1000), f.balance("alice"))

	// The hand plays on with only the seat the session still has.
	f.submit("bob", "bet", 10)
	v = f.view("bob")
	assert.Equal(t, "player_turns", v.Phase)
	assert.Equal(t, "bob", v.Turn)
}
