package deck

import (
	"encoding/json"
	"fmt"
)

// Suit represents a card suit
type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

// String returns the symbol for a suit
func (s Suit) String() string {
	switch s {
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	default:
		return "?"
	}
}

// Name returns the full name of a suit
func (s Suit) Name() string {
	switch s {
	case Hearts:
		return "Hearts"
	case Diamonds:
		return "Diamonds"
	case Clubs:
		return "Clubs"
	case Spades:
		return "Spades"
	default:
		return "Unknown"
	}
}

// ParseSuit converts a suit name or symbol back to a Suit
func ParseSuit(s string) (Suit, error) {
	switch s {
	case "Hearts", "♥":
		return Hearts, nil
	case "Diamonds", "♦":
		return Diamonds, nil
	case "Clubs", "♣":
		return Clubs, nil
	case "Spades", "♠":
		return Spades, nil
	default:
		return 0, fmt.Errorf("invalid suit %q", s)
	}
}

// Rank represents a card rank. Aces are low: the claim rotation runs
// Ace, 2, ..., King and wraps back to Ace.
type Rank int

const (
	Ace Rank = iota + 1
	Two
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
)

// String returns the short form of a rank ("A", "2", ..., "10", "J")
func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	default:
		if r >= Two && r <= Ten {
			return fmt.Sprintf("%d", int(r))
		}
		return "?"
	}
}

// Name returns the display name of a rank ("Ace", "2", ..., "10", "Jack")
func (r Rank) Name() string {
	switch r {
	case Ace:
		return "Ace"
	case Jack:
		return "Jack"
	case Queen:
		return "Queen"
	case King:
		return "King"
	default:
		if r >= Two && r <= Ten {
			return fmt.Sprintf("%d", int(r))
		}
		return "Unknown"
	}
}

// Plural returns the plural display name of a rank ("Aces", "2s", "Kings")
func (r Rank) Plural() string {
	return r.Name() + "s"
}

// Next returns the rank that follows in the claim rotation, wrapping
// King back around to Ace.
func (r Rank) Next() Rank {
	if r == King {
		return Ace
	}
	return r + 1
}

// Valid reports whether the rank is within Ace..King
func (r Rank) Valid() bool {
	return r >= Ace && r <= King
}

// ParseRank converts a rank name or short form back to a Rank
func ParseRank(s string) (Rank, error) {
	switch s {
	case "Ace", "A":
		return Ace, nil
	case "Jack", "J":
		return Jack, nil
	case "Queen", "Q":
		return Queen, nil
	case "King", "K":
		return King, nil
	}
	for r := Two; r <= Ten; r++ {
		if s == r.Name() {
			return r, nil
		}
	}
	return 0, fmt.Errorf("invalid rank %q", s)
}

// Card represents a playing card. Cards are immutable values; two
// cards are equal when their suit and rank match.
type Card struct {
	Suit Suit
	Rank Rank
}

// NewCard creates a new card
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// AceOfSpades is the card whose holder opens the game.
var AceOfSpades = Card{Suit: Spades, Rank: Ace}

// String returns the compact form of a card ("A♠", "10♥")
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Name returns the long form of a card ("Ace of Spades")
func (c Card) Name() string {
	return fmt.Sprintf("%s of %s", c.Rank.Name(), c.Suit.Name())
}

type cardJSON struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

// MarshalJSON encodes the card with readable rank and suit names so
// event payloads are self-describing on the wire.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardJSON{Rank: c.Rank.Name(), Suit: c.Suit.Name()})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (c *Card) UnmarshalJSON(data []byte) error {
	var cj cardJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	rank, err := ParseRank(cj.Rank)
	if err != nil {
		return err
	}
	suit, err := ParseSuit(cj.Suit)
	if err != nil {
		return err
	}
	c.Rank = rank
	c.Suit = suit
	return nil
}

// CountByRank tallies how many cards of each rank appear in the slice
func CountByRank(cards []Card) map[Rank]int {
	counts := make(map[Rank]int)
	for _, c := range cards {
		counts[c.Rank]++
	}
	return counts
}

// ClaimString formats an announced play for display ("2 Aces", "1 King")
func ClaimString(count int, rank Rank) string {
	if count == 1 {
		return fmt.Sprintf("1 %s", rank.Name())
	}
	return fmt.Sprintf("%d %s", count, rank.Plural())
}

// FormatCards renders a group of cards compactly ("A♠ 7♥ 7♦")
func FormatCards(cards []Card) string {
	out := ""
	for i, c := range cards {
		if i > 0 {
			out += " "
		}
		out += c.String()
	}
	return out
}
