package cards

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
)

// ErrDeckExhausted is returned when more cards are requested than remain.
var ErrDeckExhausted = errors.New("deck exhausted")

// Deck is a pack of one or more standard 52-card decks.
//
// A deck built with a random source draws from random positions. A deck
// built with NewOrderedDeck has no random source and deals from the top in
// order, which lets tests replay a fixed sequence of cards.
type Deck struct {
	cards []Card
	decks int
	size  int
	rng   *rand.Rand
}

// NewDeck builds and shuffles a pack of the given number of decks.
func NewDeck(rng *rand.Rand, decks int) *Deck {
	if decks < 1 {
		decks = 1
	}
	d := &Deck{
		cards: make([]Card, 0, 52*decks),
		decks: decks,
		rng:   rng,
	}
	for range decks {
		for suit := Spades; suit <= Clubs; suit++ {
			for rank := Two; rank <= Ace; rank++ {
				d.cards = append(d.cards, NewCard(rank, suit))
			}
		}
	}
	d.size = len(d.cards)
	d.Shuffle()
	return d
}

// NewOrderedDeck returns a deck that deals the given cards in order.
func NewOrderedDeck(cs []Card) *Deck {
	d := &Deck{
		cards: make([]Card, len(cs)),
		decks: 1,
		size:  len(cs),
	}
	copy(d.cards, cs)
	return d
}

// Shuffle randomizes the order of the remaining cards using Fisher-Yates.
func (d *Deck) Shuffle() {
	if d.rng == nil {
		return
	}
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw removes and returns n cards.
func (d *Deck) Draw(n int) ([]Card, error) {
	if n < 0 || n > len(d.cards) {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrDeckExhausted, n, len(d.cards))
	}
	out := make([]Card, n)
	for i := range n {
		out[i] = d.take()
	}
	return out, nil
}

// DrawOne removes and returns a single card.
func (d *Deck) DrawOne() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrDeckExhausted
	}
	return d.take(), nil
}

func (d *Deck) take() Card {
	if d.rng == nil {
		c := d.cards[0]
		d.cards = d.cards[1:]
		return c
	}
	i := d.rng.IntN(len(d.cards))
	c := d.cards[i]
	last := len(d.cards) - 1
	d.cards[i] = d.cards[last]
	d.cards = d.cards[:last]
	return c
}

// Remaining returns the number of cards left in the deck
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// Size returns the number of cards the deck was built with.
func (d *Deck) Size() int {
	return d.size
}

// Decks returns how many 52-card decks make up the pack.
func (d *Deck) Decks() int {
	return d.decks
}
