package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/cardroom/cmd/cardroom/shared"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/lox/cardroom/internal/registry"
	"github.com/lox/cardroom/internal/store"
	"github.com/lox/cardroom/internal/transport"
)

// ServeCmd runs every configured table behind the websocket server.
type ServeCmd struct {
	Addr string `help:"Listen address, overriding the config file"`
	Seed *int64 `help:"Deterministic RNG seed for shuffles (optional)"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, logger, err := cli.load()
	if err != nil {
		return err
	}
	ctx := shared.SetupSignalHandler(logger)

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	games, err := cfg.GameConfigs()
	if err != nil {
		return err
	}

	seed := randutil.Seed(c.Seed)
	logger.Info("Using seed", "seed", seed)
	src := randutil.NewSource(seed)

	addr := cfg.Server.Address
	if c.Addr != "" {
		addr = c.Addr
	}
	srv := transport.NewServer(addr, nil, logger)
	reg := registry.New(ledger.New(st, logger), logger, game.WithNotifier(srv))
	srv.SetDirectory(reg)

	for _, gc := range games {
		if _, err := reg.Keep(gc, game.WithRand(src.Derive())); err != nil {
			_ = reg.Shutdown(context.Background())
			return err
		}
	}
	logger.Info("Starting cardroom", "address", addr, "store", cfg.Store.Driver, "tables", len(games))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return reg.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
