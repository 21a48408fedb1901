package cards

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidCard is returned when a card code cannot be parsed.
var ErrInvalidCard = errors.New("invalid card")

// Suit represents a card suit
type Suit uint8

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

const suitChars = "shdc"

// String returns the single-letter code of a suit
func (s Suit) String() string {
	if int(s) < len(suitChars) {
		return suitChars[s : s+1]
	}
	return "?"
}

// Rank represents a card rank
type Rank uint8

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

const rankChars = "23456789TJQKA"

// String returns the single-character code of a rank
func (r Rank) String() string {
	if r >= Two && r <= Ace {
		i := int(r - Two)
		return rankChars[i : i+1]
	}
	return "?"
}

// Card is an immutable rank and suit pair.
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a new card
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// String returns the two-character code of the card, e.g. "As" or "Td".
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// IsAce returns true if the card is an Ace
func (c Card) IsAce() bool {
	return c.Rank == Ace
}

// ParseCard parses a two-character card code. Parsing is case insensitive.
func ParseCard(code string) (Card, error) {
	if len(code) != 2 {
		return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, code)
	}
	r := strings.IndexByte(rankChars, byte(unicode.ToUpper(rune(code[0]))))
	if r < 0 {
		return Card{}, fmt.Errorf("%w: bad rank in %q", ErrInvalidCard, code)
	}
	s := strings.IndexByte(suitChars, byte(unicode.ToLower(rune(code[1]))))
	if s < 0 {
		return Card{}, fmt.Errorf("%w: bad suit in %q", ErrInvalidCard, code)
	}
	return Card{Rank: Two + Rank(r), Suit: Suit(s)}, nil
}

// ParseCards parses a run of card codes such as "AsKd" or "As Kd Qc".
func ParseCards(s string) ([]Card, error) {
	s = strings.Join(strings.Fields(s), "")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %q", ErrInvalidCard, s)
	}
	out := make([]Card, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		c, err := ParseCard(s[i : i+2])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// MustParseCards is like ParseCards but panics on error. Intended for tests.
func MustParseCards(s string) []Card {
	cs, err := ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cs
}

// Codes renders cards as their two-character codes.
func Codes(cs []Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}
