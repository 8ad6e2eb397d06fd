package models

import (
	"fmt"
	"strings"
)

// Suit is a playing card suit
type Suit string

const (
	SuitSpades   Suit = "S"
	SuitHearts   Suit = "H"
	SuitDiamonds Suit = "D"
	SuitClubs    Suit = "C"
)

// Suits lists the four suits in deal order
var Suits = []Suit{SuitSpades, SuitHearts, SuitDiamonds, SuitClubs}

// Card is a playing card. Rank runs 1 (ace) to 13 (king).
type Card struct {
	Rank int  `json:"rank"`
	Suit Suit `json:"suit"`
}

// String renders the card as e.g. "AS", "10H", "KC"
func (c Card) String() string {
	switch c.Rank {
	case 1:
		return "A" + string(c.Suit)
	case 11:
		return "J" + string(c.Suit)
	case 12:
		return "Q" + string(c.Suit)
	case 13:
		return "K" + string(c.Suit)
	default:
		return fmt.Sprintf("%d%s", c.Rank, c.Suit)
	}
}

// Value is the blackjack value of the card with aces counted as 11
func (c Card) Value() int {
	switch {
	case c.Rank == 1:
		return 11
	case c.Rank >= 10:
		return 10
	default:
		return c.Rank
	}
}

// HandValue totals a blackjack hand, demoting aces from 11 to 1 while the hand is over 21
func HandValue(hand []Card) int {
	total, aces := 0, 0
	for _, c := range hand {
		total += c.Value()
		if c.Rank == 1 {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// IsBust reports whether the hand is over 21
func IsBust(hand []Card) bool {
	return HandValue(hand) > 21
}

// IsNatural reports a two-card 21
func IsNatural(hand []Card) bool {
	return len(hand) == 2 && HandValue(hand) == 21
}

// FormatHand renders a hand as space separated cards
func FormatHand(hand []Card) string {
	parts := make([]string, len(hand))
	for i, c := range hand {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
