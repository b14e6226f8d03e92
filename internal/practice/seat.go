package practice

import (
	"fmt"
	"math/rand"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/config"
	"github.com/spellclash/spellclash-go/internal/mana"
	"github.com/spellclash/spellclash-go/internal/protocol"
)

// seat is one side of a server-side match
type seat struct {
	id        string
	name      string
	health    int
	maxHealth int
	mana      mana.Pool
	hand      []card.Card
	field     []card.Card
	deck      *card.Deck
}

func newSeat(id, name string, health, maxHealth, curMana, maxMana int, deck *card.Deck) *seat {
	return &seat{
		id:        id,
		name:      name,
		health:    health,
		maxHealth: maxHealth,
		mana:      mana.NewPool(curMana, maxMana),
		hand:      []card.Card{},
		field:     []card.Card{},
		deck:      deck,
	}
}

func (s *seat) draw(rng *rand.Rand, n int) {
	for i := 0; i < n; i++ {
		c, ok := s.deck.DrawRandom(rng)
		if !ok {
			return
		}
		s.hand = append(s.hand, c)
	}
}

// startTurn grows and refills mana and draws one card
func (s *seat) startTurn(rules config.RulesConfig, rng *rand.Rand) {
	s.mana.Grow(rules.ManaGrowth, rules.ManaCap)
	s.draw(rng, 1)
}

// play moves cardID from hand to field and pays for it
func (s *seat) play(cardID string) (card.Card, error) {
	i := card.IndexByID(s.hand, cardID)
	if i < 0 {
		return card.Card{}, fmt.Errorf("card %s is not in your hand", cardID)
	}
	c := s.hand[i]
	if !s.mana.Spend(c.Cost) {
		return card.Card{}, fmt.Errorf("not enough mana: %s costs %d, you have %d", c.Name, c.Cost, s.mana.Current)
	}
	s.hand = append(s.hand[:i:i], s.hand[i+1:]...)
	s.field = append(s.field, c)
	return c, nil
}

// resolve applies c played by s against other
func (s *seat) resolve(c card.Card, other *seat) {
	o := card.Resolve(c, true)
	s.health += o.PlayerDelta
	other.health += o.OpponentDelta
}

func (s *seat) playerState(withHand bool) *protocol.ServerPlayerState {
	ps := &protocol.ServerPlayerState{
		PlayerID:   s.id,
		PlayerName: s.name,
		Health:     s.health,
		MaxHealth:  s.maxHealth,
		Mana:       s.mana.Current,
		MaxMana:    s.mana.Max,
		HandCount:  len(s.hand),
		DeckSize:   s.deck.Len(),
		Field:      serverCards(s.field),
	}
	if withHand {
		ps.Hand = serverCards(s.hand)
	}
	return ps
}

func serverCard(c card.Card) *protocol.ServerCard {
	return &protocol.ServerCard{
		ID:       c.ID,
		Name:     c.Name,
		Cost:     c.Cost,
		Attack:   c.Attack,
		Value:    c.HealValue,
		Effect:   c.Effect,
		CardType: c.Type,
	}
}

// serverCards never returns nil so that empty lists reach the client as []
func serverCards(cards []card.Card) []*protocol.ServerCard {
	out := make([]*protocol.ServerCard, 0, len(cards))
	for _, c := range cards {
		out = append(out, serverCard(c))
	}
	return out
}
