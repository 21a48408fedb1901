package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/cardroom/cmd/cardroom/shared"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/lox/cardroom/internal/sim"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Width(14)

	winStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("10"))

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))
)

// SimulateCmd plays bots at a throwaway table and reports where the chips
// went.
type SimulateCmd struct {
	Variant  string        `default:"blackjack" enum:"blackjack,holdem" help:"Game to play (blackjack, holdem)"`
	Table    string        `help:"Copy settings from this configured table instead of the defaults"`
	Players  int           `default:"4" help:"Number of bots"`
	Hands    int           `default:"100" help:"Hands to play"`
	Bankroll int64         `default:"10000" help:"Starting balance per bot"`
	BuyIn    int64         `default:"1000" help:"Buy-in per bot"`
	Tax      float64       `help:"Tax rate on blackjack winnings"`
	Seed     *int64        `help:"Deterministic RNG seed (optional)"`
	Timeout  time.Duration `default:"2m" help:"Give up after this long"`
}

func (c *SimulateCmd) Run(cli *CLI) error {
	cfg, logger, err := cli.load()
	if err != nil {
		return err
	}

	table := game.DefaultConfig("sim", game.Variant(c.Variant))
	if c.Table != "" {
		tc, ok := cfg.Table(c.Table)
		if !ok {
			return fmt.Errorf("%w: %s", game.ErrUnknownTable, c.Table)
		}
		if table, err = tc.Game(); err != nil {
			return err
		}
	}
	if c.Tax > 0 {
		table.TaxRate = c.Tax
	}

	seed := randutil.Seed(c.Seed)
	ctx := shared.SetupSignalHandler(logger)
	report, err := sim.Run(ctx, sim.Config{
		Table:    table,
		Players:  c.Players,
		Hands:    c.Hands,
		Bankroll: c.Bankroll,
		BuyIn:    c.BuyIn,
		Seed:     seed,
		Timeout:  c.Timeout,
	}, logger)
	if report != nil {
		fmt.Fprintln(os.Stdout, renderReport(report, seed))
	}
	if err != nil && err != context.Canceled {
		return err
	}
	if report != nil && !report.Conserved() {
		return fmt.Errorf("chip conservation violated: before %d, after %d, house %d", report.Before, report.After, report.HouseNet)
	}
	return nil
}

func renderReport(r *sim.Report, seed int64) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s simulation", r.Variant)))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	row("Seed", fmt.Sprint(seed))
	row("Players", fmt.Sprint(r.Players))
	row("Hands", fmt.Sprint(r.Hands))
	row("Elapsed", r.Elapsed.Round(time.Millisecond).String())
	row("Chips before", fmt.Sprint(r.Before))
	row("Chips after", fmt.Sprint(r.After))
	row("House net", signed(r.HouseNet))
	if r.TaxWithheld > 0 {
		row("Tax withheld", fmt.Sprint(r.TaxWithheld))
	}
	if r.Conserved() {
		row("Conserved", okStyle.Render("yes"))
	} else {
		row("Conserved", failStyle.Render("NO"))
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Balances"))
	b.WriteString("\n")
	start := r.Before / int64(max(r.Players, 1))
	for _, id := range slices.Sorted(maps.Keys(r.Balances)) {
		row(id, fmt.Sprintf("%d (%s)", r.Balances[id], signed(r.Balances[id]-start)))
	}
	return b.String()
}

func signed(n int64) string {
	switch {
	case n > 0:
		return winStyle.Render(fmt.Sprintf("+%d", n))
	case n < 0:
		return lossStyle.Render(fmt.Sprint(n))
	default:
		return "0"
	}
}
