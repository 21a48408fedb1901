package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/lox/cardroom/internal/store"
)

// BalanceCmd groups the account administration commands.
type BalanceCmd struct {
	Get  BalanceGetCmd  `cmd:"" help:"Print an account balance"`
	Set  BalanceSetCmd  `cmd:"" help:"Overwrite an account balance"`
	List BalanceListCmd `cmd:"" help:"Print every account"`
}

type BalanceGetCmd struct {
	Account string `arg:"" help:"Account id"`
}

func (c *BalanceGetCmd) Run(cli *CLI) error {
	return withStore(cli, func(ctx context.Context, st store.Store) error {
		balance, err := st.GetBalance(ctx, c.Account)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s\t%d\n", c.Account, balance)
		return nil
	})
}

type BalanceSetCmd struct {
	Account string `arg:"" help:"Account id"`
	Amount  int64  `arg:"" help:"New balance"`
}

func (c *BalanceSetCmd) Run(cli *CLI) error {
	if c.Amount < 0 {
		return errors.New("balance must not be negative")
	}
	return withStore(cli, func(ctx context.Context, st store.Store) error {
		if err := st.SetBalance(ctx, c.Account, c.Amount); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s\t%d\n", c.Account, c.Amount)
		return nil
	})
}

type BalanceListCmd struct{}

func (c *BalanceListCmd) Run(cli *CLI) error {
	return withStore(cli, func(ctx context.Context, st store.Store) error {
		lister, ok := st.(interface {
			Accounts(context.Context) (map[string]int64, error)
		})
		if !ok {
			return errors.New("the configured store cannot list accounts")
		}
		accounts, err := lister.Accounts(ctx)
		if err != nil {
			return err
		}
		for _, id := range slices.Sorted(maps.Keys(accounts)) {
			fmt.Fprintf(os.Stdout, "%s\t%d\n", id, accounts[id])
		}
		return nil
	})
}

func withStore(cli *CLI, fn func(context.Context, store.Store) error) error {
	cfg, logger, err := cli.load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	logger.Debug("Opened store", "driver", cfg.Store.Driver)
	return fn(ctx, st)
}
