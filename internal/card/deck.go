package card

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// baseNames are the card families dealt into generated decks.
var baseNames = []string{
	"Fireball",
	"Ice Blast",
	"Thunder Strike",
	"Heal Wave",
	"Shadow Bolt",
	"Light Heal",
	"Flame Slash",
	"Frost Shield",
}

// Deck is an unordered draw pile. Draws pick a uniformly random card.
type Deck struct {
	cards []Card
}

// NewDeck builds a deck from cards. The slice is copied.
func NewDeck(cards []Card) *Deck {
	d := &Deck{cards: make([]Card, len(cards))}
	copy(d.cards, cards)
	return d
}

// Len returns the number of cards left.
func (d *Deck) Len() int {
	if d == nil {
		return 0
	}
	return len(d.cards)
}

// Add puts cards back into the pile.
func (d *Deck) Add(cards ...Card) {
	d.cards = append(d.cards, cards...)
}

// Cards returns a copy of the remaining cards.
func (d *Deck) Cards() []Card {
	if d == nil {
		return nil
	}
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// DrawRandom removes and returns a uniformly chosen card. ok is false when the
// deck is empty.
func (d *Deck) DrawRandom(rng *rand.Rand) (Card, bool) {
	if d.Len() == 0 {
		return Card{}, false
	}
	i := rng.Intn(len(d.cards))
	c := d.cards[i]
	last := len(d.cards) - 1
	d.cards[i] = d.cards[last]
	d.cards = d.cards[:last]
	return c, true
}

// Generator deals random spell decks.
type Generator struct {
	rng   *rand.Rand
	newID func() string
}

// NewGenerator returns a generator drawing from rng. Card ids are random UUIDs.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{
		rng:   rng,
		newID: func() string { return uuid.NewString() },
	}
}

// RandomDeck deals n cards. Each card is either a damage or a heal spell with
// cost, attack and heal values between 1 and 5.
func (g *Generator) RandomDeck(n int) *Deck {
	cards := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		cards = append(cards, g.randomCard(i))
	}
	return &Deck{cards: cards}
}

func (g *Generator) randomCard(i int) Card {
	base := baseNames[g.rng.Intn(len(baseNames))]
	c := Card{
		ID:   g.newID(),
		Name: fmt.Sprintf("%s #%d", base, i),
		Cost: g.rng.Intn(5) + 1,
		Type: "Spell",
	}
	if g.rng.Intn(2) == 0 {
		c.Attack = g.rng.Intn(5) + 1
		c.Effect = fmt.Sprintf("Deal %d damage", c.Attack)
	} else {
		c.HealValue = g.rng.Intn(5) + 1
		c.Effect = fmt.Sprintf("Heal %d health", c.HealValue)
	}
	return c
}
