package main

import (
	"fmt"
	"os"
)

// TablesCmd prints the tables the config file would open.
type TablesCmd struct{}

func (c *TablesCmd) Run(cli *CLI) error {
	cfg, _, err := cli.load()
	if err != nil {
		return err
	}
	games, err := cfg.GameConfigs()
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, headerStyle.Render(fmt.Sprintf("%-14s %-10s %8s %16s %6s", "TABLE", "VARIANT", "MIN BET", "BUY-IN", "SEATS")))
	for _, g := range games {
		fmt.Fprintf(os.Stdout, "%-14s %-10s %8d %7d-%-8d %6d\n",
			g.ID, g.Variant, g.Table.MinBet, g.Table.MinBuyIn, g.Table.MaxBuyIn, g.Table.MaxSeats)
	}
	return nil
}
