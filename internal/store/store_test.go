package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := NewMemory(map[string]int64{"alice": 100})
	b, err := m.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), b)

	b, err = m.GetBalance(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, b)

	require.NoError(t, m.SetBalance(ctx, "bob", 250))
	assert.Equal(t, int64(350), m.Total())
	assert.Equal(t, map[string]int64{"alice": 100, "bob": 250}, m.Snapshot())
}

func TestSQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, path := range []string{":memory:", filepath.Join(t.TempDir(), "nested", "cardroom.db")} {
		t.Run(path, func(t *testing.T) {
			s, err := OpenSQLite(ctx, path)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })

			b, err := s.GetBalance(ctx, "alice")
			require.NoError(t, err)
			assert.Zero(t, b, "missing account reads as zero")

			require.NoError(t, s.SetBalance(ctx, "alice", 500))
			require.NoError(t, s.SetBalance(ctx, "alice", 320))
			require.NoError(t, s.SetBalance(ctx, "bob", 10))

			b, err = s.GetBalance(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, int64(320), b)

			accounts, err := s.Accounts(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]int64{"alice": 320, "bob": 10}, accounts)
		})
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := Open(ctx, DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	assert.IsType(t, &SQL{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "mongo", "")
	require.ErrorIs(t, err, ErrUnknownDriver)

	_, err = OpenSQLite(ctx, "  ")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	t.Parallel()

	pg := &SQL{postgres: true}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &SQL{}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}
