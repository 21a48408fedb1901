package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/lox/cardroom/internal/store"
)

// Config describes a simulation run.
type Config struct {
	Table    game.Config
	Players  int
	Hands    int
	Bankroll int64
	BuyIn    int64
	Seed     int64
	Timeout  time.Duration
}

// Report summarises a run.
type Report struct {
	Variant     game.Variant
	Players     int
	Hands       int
	Before      int64
	After       int64
	HouseNet    int64
	TaxWithheld int64
	Balances    map[string]int64
	Elapsed     time.Duration
}

// Conserved reports whether every chip is accounted for between the
// players and the house.
func (r *Report) Conserved() bool {
	return r.Before == r.After+r.HouseNet
}

// observer records every hand outcome and wakes the driver on each change.
type observer struct {
	mu       sync.Mutex
	latest   game.View
	outcomes map[string]*game.Outcome
	wake     chan struct{}
}

func newObserver() *observer {
	return &observer{
		outcomes: make(map[string]*game.Outcome),
		wake:     make(chan struct{}, 1),
	}
}

func (o *observer) StateChanged(_ string, v game.View) error {
	o.mu.Lock()
	o.latest = v
	if v.Outcome != nil && !v.Outcome.Cancelled && v.HandID != "" {
		o.outcomes[v.HandID] = v.Outcome
	}
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

func (o *observer) view() game.View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latest
}

// Run seats cfg.Players bots at a fresh table backed by an in-memory store
// and plays until cfg.Hands hands have finished or the table stops.
func Run(ctx context.Context, cfg Config, logger *log.Logger) (*Report, error) {
	if cfg.Players < 1 || cfg.Hands < 1 {
		return nil, fmt.Errorf("need at least one player and one hand")
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	logger = logger.WithPrefix("sim")
	start := time.Now()

	balances := make(map[string]int64, cfg.Players)
	ids := make([]string, cfg.Players)
	for i := range ids {
		ids[i] = fmt.Sprintf("bot-%d", i+1)
		balances[ids[i]] = cfg.Bankroll
	}
	mem := store.NewMemory(balances)
	before := mem.Total()

	tcfg := cfg.Table
	tcfg.HandDelay = 0
	if tcfg.Table.MaxSeats < cfg.Players {
		tcfg.Table.MaxSeats = cfg.Players
	}

	if cfg.Players < tcfg.Table.MinSeats {
		return nil, fmt.Errorf("%s needs at least %d players", tcfg.Variant, tcfg.Table.MinSeats)
	}

	src := randutil.NewSource(cfg.Seed)
	obs := newObserver()
	c, err := game.New(tcfg, ledger.New(mem, logger), logger, game.WithNotifier(obs), game.WithRand(src.Derive()))
	if err != nil {
		return nil, err
	}

	bots := make(map[string]*RandBot, len(ids))
	for _, id := range ids {
		bots[id] = NewRandBot(id, src.Derive(), tcfg.Table.MinBet)
		if err := c.Join(ctx, id, cfg.BuyIn); err != nil {
			_ = c.Stop(context.Background())
			return nil, fmt.Errorf("seat %s: %w", id, err)
		}
	}
	logger.Info("Simulation started", "variant", tcfg.Variant, "players", cfg.Players, "hands", cfg.Hands, "seed", cfg.Seed)

	runErr := drive(ctx, c, obs, bots, cfg.Hands, logger)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}

	report := &Report{
		Variant:  tcfg.Variant,
		Players:  cfg.Players,
		Before:   before,
		After:    mem.Total(),
		Balances: mem.Snapshot(),
		Elapsed:  time.Since(start),
	}
	obs.mu.Lock()
	report.Hands = len(obs.outcomes)
	for _, o := range obs.outcomes {
		report.HouseNet += o.HouseNet
		report.TaxWithheld += o.TaxWithheld
	}
	obs.mu.Unlock()

	logger.Info("Simulation finished", "hands", report.Hands, "house_net", report.HouseNet, "conserved", report.Conserved())
	return report, runErr
}

func drive(ctx context.Context, c *game.Controller, obs *observer, bots map[string]*RandBot, hands int, logger *log.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.Done():
			return nil
		case <-obs.wake:
		}

		v := obs.view()
		if v.Stopped || v.Hand > hands {
			return nil
		}
		for _, id := range actors(v) {
			bot, ok := bots[id]
			if !ok {
				continue
			}
			seen := v.For(id)
			a, ok := bot.Decide(seen)
			if !ok {
				continue
			}
			_, err := c.Submit(ctx, id, a)
			if err == nil {
				continue
			}
			if errors.Is(err, game.ErrStopped) {
				return nil
			}
			switch game.ReasonCode(err) {
			case "invalid_bet", "insufficient_stack", "invalid_action", "unknown_action":
				logger.Debug("Decision rejected", "bot", id, "action", a.Type, "amount", a.Amount, "error", err)
				if _, err := c.Submit(ctx, id, bot.Fallback(seen)); err != nil && !errors.Is(err, game.ErrStopped) {
					return err
				}
			default:
				return err
			}
		}
	}
}

// actors lists the seats that can act on v.
func actors(v game.View) []string {
	if v.Variant == game.Blackjack && v.Phase == "awaiting_bets" {
		var out []string
		for _, s := range v.Seats {
			if len(v.For(s.ID).Legal) > 0 {
				out = append(out, s.ID)
			}
		}
		return out
	}
	if v.Turn != "" {
		return []string{v.Turn}
	}
	return nil
}
