package main

import (
	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/lox/cardroom/cmd/cardroom/shared"
	"github.com/lox/cardroom/internal/config"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version   kong.VersionFlag `short:"v" help:"Show version"`
	Config    string           `short:"c" default:"cardroom.hcl" type:"path" help:"Path to the HCL config file"`
	Debug     bool             `help:"Enable debug logging"`
	LogFormat string           `enum:"text,json" default:"text" help:"Log output format (text, json)"`

	Serve    ServeCmd    `cmd:"" help:"Run the websocket server and the configured tables"`
	Simulate SimulateCmd `cmd:"" help:"Play bots against each other on an in-memory table"`
	Balance  BalanceCmd  `cmd:"" help:"Inspect or adjust account balances in the configured store"`
	Tables   TablesCmd   `cmd:"" help:"List the configured tables"`
}

// load reads the config file and builds a logger from it.
func (c *CLI) load() (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, nil, err
	}
	return cfg, c.logger(cfg.Level()), nil
}

func (c *CLI) logger(level log.Level) *log.Logger {
	if c.LogFormat == "json" {
		return shared.SetupStructuredLogger(c.Debug, level)
	}
	return shared.SetupLogger(c.Debug, level)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("cardroom"),
		kong.Description("Multiplayer blackjack and hold'em tables over websockets"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
