package state

import "github.com/spellclash/spellclash-go/internal/card"

// Snapshot is a consistent copy of a Session for readers outside the event loop.
type Snapshot struct {
	Mode       Mode
	PlayerID   string
	OpponentID string
	RoomID     string
	InRoom     bool
	Players    map[string]string

	PlayerHealth   int
	OpponentHealth int
	MaxHealth      int

	PlayerMana      int
	PlayerMaxMana   int
	OpponentMana    int
	OpponentMaxMana int

	LocalTurn   bool
	GameStarted bool

	PlayerHand        []card.Card
	OpponentHand      []card.Card
	OpponentHandCount int
	PlayerField       []card.Card
	OpponentField     []card.Card
	PlayerDeckSize    int
	OpponentDeckSize  int

	Epoch uint64
}

// Snapshot copies the session.
func (s *Session) Snapshot() Snapshot {
	players := make(map[string]string, len(s.Players))
	for id, name := range s.Players {
		players[id] = name
	}
	return Snapshot{
		Mode:              s.Mode,
		PlayerID:          s.PlayerID,
		OpponentID:        s.OpponentID,
		RoomID:            s.RoomID,
		InRoom:            s.InRoom,
		Players:           players,
		PlayerHealth:      s.PlayerHealth,
		OpponentHealth:    s.OpponentHealth,
		MaxHealth:         s.MaxHealth,
		PlayerMana:        s.PlayerMana.Current,
		PlayerMaxMana:     s.PlayerMana.Max,
		OpponentMana:      s.OpponentMana.Current,
		OpponentMaxMana:   s.OpponentMana.Max,
		LocalTurn:         s.LocalTurn,
		GameStarted:       s.GameStarted,
		PlayerHand:        cloneCards(s.PlayerHand),
		OpponentHand:      cloneCards(s.OpponentHand),
		OpponentHandCount: s.OpponentHandCount,
		PlayerField:       cloneCards(s.PlayerField),
		OpponentField:     cloneCards(s.OpponentField),
		PlayerDeckSize:    s.PlayerDeck.Len(),
		OpponentDeckSize:  s.OpponentDeck.Len(),
		Epoch:             s.Epoch,
	}
}

// PlayerDefeated reports whether the local player's health is exhausted.
func (s Snapshot) PlayerDefeated() bool {
	return s.PlayerHealth <= 0
}

// OpponentDefeated reports whether the opponent's health is exhausted.
func (s Snapshot) OpponentDefeated() bool {
	return s.OpponentHealth <= 0
}

// GameOver is derived from health; it is never stored.
func (s Snapshot) GameOver() bool {
	return s.PlayerDefeated() || s.OpponentDefeated()
}

func cloneCards(cards []card.Card) []card.Card {
	if cards == nil {
		return nil
	}
	out := make([]card.Card, len(cards))
	copy(out, cards)
	return out
}
