package cards

import (
	"testing"

	"github.com/lox/cardroom/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeckHasEveryCardPerDeck(t *testing.T) {
	for _, decks := range []int{1, 2, 6} {
		d := NewDeck(randutil.New(1), decks)
		assert.Equal(t, 52*decks, d.Size())
		assert.Equal(t, 52*decks, d.Remaining())
		assert.Equal(t, decks, d.Decks())

		counts := map[Card]int{}
		all, err := d.Draw(d.Remaining())
		require.NoError(t, err)
		for _, c := range all {
			counts[c]++
		}
		assert.Len(t, counts, 52)
		for c, n := range counts {
			assert.Equal(t, decks, n, "card %s", c)
		}
	}
}

func TestDrawWithoutReplacement(t *testing.T) {
	d := NewDeck(randutil.New(99), 1)
	seen := map[Card]bool{}
	for d.Remaining() > 0 {
		n := min(5, d.Remaining())
		drawn, err := d.Draw(n)
		require.NoError(t, err)
		for _, c := range drawn {
			require.False(t, seen[c], "card %s drawn twice", c)
			seen[c] = true
		}
	}
	assert.Len(t, seen, 52)
}

func TestDrawExhausted(t *testing.T) {
	d := NewDeck(randutil.New(3), 1)
	_, err := d.Draw(50)
	require.NoError(t, err)

	_, err = d.Draw(3)
	require.ErrorIs(t, err, ErrDeckExhausted)
	assert.Equal(t, 2, d.Remaining(), "failed draw must not remove cards")

	_, err = d.Draw(2)
	require.NoError(t, err)
	_, err = d.DrawOne()
	require.ErrorIs(t, err, ErrDeckExhausted)
}

func TestShuffleIsSeeded(t *testing.T) {
	a, _ := NewDeck(randutil.New(5), 1).Draw(10)
	b, _ := NewDeck(randutil.New(5), 1).Draw(10)
	c, _ := NewDeck(randutil.New(6), 1).Draw(10)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestOrderedDeckDealsFromTop(t *testing.T) {
	d := NewOrderedDeck(MustParseCards("AsKdQh"))
	d.Shuffle()
	got, err := d.Draw(2)
	require.NoError(t, err)
	assert.Equal(t, "As Kd", Codes(got)[0]+" "+Codes(got)[1])
	c, err := d.DrawOne()
	require.NoError(t, err)
	assert.Equal(t, "Qh", c.String())
}
