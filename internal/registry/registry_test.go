package registry

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/store"
)

func newRegistry(t *testing.T, balances map[string]int64) (*Registry, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(balances)
	logger := log.NewWithOptions(io.Discard, log.Options{})
	r := New(ledger.New(mem, logger), logger, game.WithClock(quartz.NewMock(t)))
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })
	return r, mem
}

func TestOpenGetList(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t, nil)

	_, err := r.Open(game.DefaultConfig("holdem-1", game.Holdem))
	require.NoError(t, err)
	bj, err := r.Open(game.DefaultConfig("blackjack-1", game.Blackjack))
	require.NoError(t, err)

	_, err = r.Open(game.DefaultConfig("blackjack-1", game.Blackjack))
	assert.ErrorIs(t, err, ErrTableExists)

	got, err := r.Get("blackjack-1")
	require.NoError(t, err)
	assert.Same(t, bj, got)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownTable)
	assert.Equal(t, "unknown_table", game.ReasonCode(err))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "blackjack-1", list[0].ID)
	assert.Equal(t, game.Blackjack, list[0].Variant)
	assert.Equal(t, "holdem-1", list[1].ID)
	assert.Equal(t, int64(10), list[1].MinBet)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	r, _ := newRegistry(t, nil)

	cfg := game.DefaultConfig("bad", game.Blackjack)
	cfg.Table.MaxSeats = 0
	_, err := r.Open(cfg)
	assert.Error(t, err)
	assert.Empty(t, r.List())
}

func TestCloseRefundsSeats(t *testing.T) {
	t.Parallel()
	r, mem := newRegistry(t, map[string]int64{"alice": 1000})
	ctx := context.Background()

	c, err := r.Open(game.DefaultConfig("bj", game.Blackjack))
	require.NoError(t, err)
	require.NoError(t, c.Join(ctx, "alice", 300))
	assert.Equal(t, int64(700), mem.Total())

	require.NoError(t, r.Close(ctx, "bj"))
	assert.Equal(t, int64(1000), mem.Total())
	_, err = r.Get("bj")
	assert.ErrorIs(t, err, ErrUnknownTable)
	assert.ErrorIs(t, r.Close(ctx, "bj"), ErrUnknownTable)
}

func TestSelfStoppedTableIsDropped(t *testing.T) {
	t.Parallel()
	r, mem := newRegistry(t, map[string]int64{"a": 1000, "b": 1000})
	ctx := context.Background()

	c, err := r.Open(game.DefaultConfig("he", game.Holdem))
	require.NoError(t, err)
	require.NoError(t, c.Join(ctx, "a", 500))
	require.NoError(t, c.Join(ctx, "b", 500))

	// Dropping below the minimum seat count stops the table.
	require.NoError(t, c.Leave(ctx, "b"))
	assert.Eventually(t, func() bool {
		_, err := r.Get("he")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2000), mem.Total())

	// The id can be reused once the old table is gone.
	_, err = r.Open(game.DefaultConfig("he", game.Holdem))
	assert.NoError(t, err)
}

func TestShutdownStopsEveryTable(t *testing.T) {
	t.Parallel()
	r, mem := newRegistry(t, map[string]int64{"a": 1000, "b": 1000, "c": 1000})
	ctx := context.Background()

	ids := []string{"t1", "t2", "t3"}
	players := []string{"a", "b", "c"}
	var tables []*game.Controller
	for i, id := range ids {
		c, err := r.Open(game.DefaultConfig(id, game.Blackjack))
		require.NoError(t, err)
		require.NoError(t, c.Join(ctx, players[i], 250))
		tables = append(tables, c)
	}
	assert.Equal(t, int64(3000-3*250), mem.Total())

	require.NoError(t, r.Shutdown(ctx))
	assert.Equal(t, int64(3000), mem.Total())
	assert.Empty(t, r.List())
	for _, c := range tables {
		select {
		case <-c.Done():
		default:
			t.Fatalf("table %s still running", c.ID())
		}
	}

	_, err := r.Open(game.DefaultConfig("late", game.Blackjack))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestKeptTableReopens(t *testing.T) {
	t.Parallel()
	r, mem := newRegistry(t, map[string]int64{"a": 1000, "b": 1000})
	ctx := context.Background()

	first, err := r.Keep(game.DefaultConfig("he", game.Holdem))
	require.NoError(t, err)
	require.NoError(t, first.Join(ctx, "a", 500))
	require.NoError(t, first.Join(ctx, "b", 500))
	require.NoError(t, first.Leave(ctx, "b"))
	<-first.Done()

	var second *game.Controller
	assert.Eventually(t, func() bool {
		c, err := r.Get("he")
		if err != nil {
			return false
		}
		second = c
		return c != first
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2000), mem.Total())

	require.NoError(t, second.Join(ctx, "a", 200))
	require.NoError(t, r.Close(ctx, "he"))
	<-second.Done()
	_, err = r.Get("he")
	assert.ErrorIs(t, err, ErrUnknownTable, "closed tables stay closed")
	assert.Equal(t, int64(2000), mem.Total())
}
