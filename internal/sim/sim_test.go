package sim

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/randutil"
)

func quiet() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestRunConservesChips(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		variant game.Variant
		players int
		tax     float64
	}{
		{"blackjack", game.Blackjack, 3, 0},
		{"blackjack with tax", game.Blackjack, 2, 0.1},
		{"holdem", game.Holdem, 4, 0},
		{"holdem heads-up", game.Holdem, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			table := game.DefaultConfig("sim", tt.variant)
			table.TaxRate = tt.tax

			report, err := Run(context.Background(), Config{
				Table:    table,
				Players:  tt.players,
				Hands:    25,
				Bankroll: 2000,
				BuyIn:    500,
				Seed:     7,
				Timeout:  30 * time.Second,
			}, quiet())
			require.NoError(t, err)

			assert.Equal(t, int64(tt.players)*2000, report.Before)
			assert.True(t, report.Conserved(), "before %d after %d house %d", report.Before, report.After, report.HouseNet)
			assert.Positive(t, report.Hands)
			assert.LessOrEqual(t, report.Hands, 25)
			assert.Len(t, report.Balances, tt.players)
			if tt.variant == game.Holdem {
				assert.Zero(t, report.HouseNet)
			}
		})
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), Config{Table: game.DefaultConfig("sim", game.Holdem), Players: 1, Hands: 5, Bankroll: 1000, BuyIn: 500}, quiet())
	assert.Error(t, err)

	_, err = Run(context.Background(), Config{Table: game.DefaultConfig("sim", game.Blackjack), Players: 2}, quiet())
	assert.Error(t, err)
}

func TestRandBotPicksLegalActions(t *testing.T) {
	t.Parallel()

	bot := NewRandBot("a", randutil.New(3), 10)
	v := game.View{
		Variant:    game.Holdem,
		Seats:      []game.SeatView{{ID: "a", Stack: 100, Bet: 10}},
		Legal:      []string{"fold", "call", "raise", "allin"},
		MinRaiseTo: 40,
	}
	for range 200 {
		a, ok := bot.Decide(v)
		require.True(t, ok)
		assert.Contains(t, v.Legal, a.Type)
		if a.Type == "raise" {
			assert.GreaterOrEqual(t, a.Amount, int64(40))
			assert.LessOrEqual(t, a.Amount, int64(80))
		}
	}

	bj := game.View{Variant: game.Blackjack, Seats: []game.SeatView{{ID: "a", Stack: 30}}, Legal: []string{"bet"}}
	for range 50 {
		a, ok := bot.Decide(bj)
		require.True(t, ok)
		assert.GreaterOrEqual(t, a.Amount, int64(10))
		assert.LessOrEqual(t, a.Amount, int64(30))
	}

	_, ok := bot.Decide(game.View{Seats: v.Seats})
	assert.False(t, ok, "nothing to do")

	assert.Equal(t, "check", bot.Fallback(game.View{Legal: []string{"fold", "check"}}).Type)
	assert.Equal(t, "stand", bot.Fallback(game.View{Legal: []string{"stand", "hit"}}).Type)
	assert.Equal(t, "fold", bot.Fallback(game.View{Legal: []string{"fold", "call"}}).Type)
	assert.Equal(t, game.Action{Type: "bet", Amount: 10}, bot.Fallback(bj))
}
