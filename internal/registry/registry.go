// Package registry tracks the tables a process is running and owns their
// lifetimes.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/ledger"
)

var (
	ErrUnknownTable = game.ErrUnknownTable
	ErrTableExists  = errors.New("table already open")
	ErrClosed       = errors.New("registry closed")
)

// Summary is a lightweight description of an open table.
type Summary struct {
	ID       string       `json:"id"`
	Variant  game.Variant `json:"variant"`
	MinBet   int64        `json:"min_bet"`
	MinBuyIn int64        `json:"min_buy_in"`
	MaxBuyIn int64        `json:"max_buy_in"`
	MaxSeats int          `json:"max_seats"`
}

// Registry maps table ids to running controllers. Tables that stop on their
// own are dropped from it.
type Registry struct {
	ledger *ledger.Ledger
	logger *log.Logger
	opts   []game.Option

	mu     sync.RWMutex
	tables map[string]*game.Controller
	kept   map[string]kept
	closed bool
	wg     sync.WaitGroup
}

type kept struct {
	cfg  game.Config
	opts []game.Option
}

// New creates an empty registry. opts are applied to every table it opens.
func New(l *ledger.Ledger, logger *log.Logger, opts ...game.Option) *Registry {
	return &Registry{
		ledger: l,
		logger: logger.WithPrefix("registry"),
		opts:   opts,
		tables: make(map[string]*game.Controller),
		kept:   make(map[string]kept),
	}
}

// Open starts a table. extra options are applied after the registry's own.
func (r *Registry) Open(cfg game.Config, extra ...game.Option) (*game.Controller, error) {
	return r.open(cfg, extra, false)
}

// Keep starts a table that is reopened with the same settings whenever it
// stops on its own. Close and Shutdown end it for good.
func (r *Registry) Keep(cfg game.Config, extra ...game.Option) (*game.Controller, error) {
	return r.open(cfg, extra, true)
}

func (r *Registry) open(cfg game.Config, extra []game.Option, keep bool) (*game.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if _, ok := r.tables[cfg.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, cfg.ID)
	}
	opts := append(slices.Clone(r.opts), extra...)
	c, err := game.New(cfg, r.ledger, r.logger, opts...)
	if err != nil {
		return nil, err
	}
	r.tables[cfg.ID] = c
	if keep {
		r.kept[cfg.ID] = kept{cfg: cfg, opts: extra}
	}

	r.wg.Add(1)
	go r.watch(c)

	r.logger.Info("Opened table", "table", cfg.ID, "variant", cfg.Variant)
	return c, nil
}

func (r *Registry) watch(c *game.Controller) {
	defer r.wg.Done()
	<-c.Done()

	r.mu.Lock()
	if r.tables[c.ID()] == c {
		delete(r.tables, c.ID())
	}
	k, reopen := r.kept[c.ID()]
	reopen = reopen && !r.closed
	r.mu.Unlock()

	if err := c.Err(); err != nil {
		r.logger.Warn("Table stopped with error", "table", c.ID(), "error", err)
	} else {
		r.logger.Info("Table removed", "table", c.ID())
	}
	if !reopen {
		return
	}
	if _, err := r.open(k.cfg, k.opts, true); err != nil && !errors.Is(err, ErrClosed) {
		r.logger.Error("Failed to reopen table", "table", c.ID(), "error", err)
	}
}

// Get returns the running table with the given id.
func (r *Registry) Get(id string) (*game.Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, id)
	}
	return c, nil
}

// List describes every running table, ordered by id.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	out := make([]Summary, 0, len(r.tables))
	for _, c := range r.tables {
		cfg := c.Config()
		out = append(out, Summary{
			ID:       cfg.ID,
			Variant:  cfg.Variant,
			MinBet:   cfg.Table.MinBet,
			MinBuyIn: cfg.Table.MinBuyIn,
			MaxBuyIn: cfg.Table.MaxBuyIn,
			MaxSeats: cfg.Table.MaxSeats,
		})
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Close stops one table, refunding every seat.
func (r *Registry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.kept, id)
	r.mu.Unlock()

	c, err := r.Get(id)
	if err != nil {
		return err
	}
	err = c.Stop(ctx)

	r.mu.Lock()
	if r.tables[id] == c {
		delete(r.tables, id)
	}
	r.mu.Unlock()
	return err
}

// Shutdown stops every table in parallel and refuses further opens.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	tables := make([]*game.Controller, 0, len(r.tables))
	for _, c := range r.tables {
		tables = append(tables, c)
	}
	r.mu.Unlock()

	r.logger.Info("Shutting down tables", "count", len(tables))

	var g errgroup.Group
	for _, c := range tables {
		g.Go(func() error {
			if err := c.Stop(ctx); err != nil {
				return fmt.Errorf("stop %s: %w", c.ID(), err)
			}
			return nil
		})
	}
	err := g.Wait()

	watched := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(watched)
	}()
	select {
	case <-watched:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}
