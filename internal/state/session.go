package state

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/config"
	"github.com/spellclash/spellclash-go/internal/convert"
	"github.com/spellclash/spellclash-go/internal/mana"
)

var (
	// ErrDeckExhausted is returned when drawing from an empty deck.
	ErrDeckExhausted = errors.New("deck exhausted")
	// ErrCardNotInHand is returned when a card id is not in the expected hand.
	ErrCardNotInHand = errors.New("card not in hand")
)

// Mode is the kind of session being played.
type Mode int

const (
	ModeOfflineSolo Mode = iota
	ModeOnlineSoloAI
	ModeOnlineRoom
)

func (m Mode) String() string {
	switch m {
	case ModeOfflineSolo:
		return "OFFLINE_SOLO"
	case ModeOnlineSoloAI:
		return "ONLINE_SOLO_AI"
	case ModeOnlineRoom:
		return "ONLINE_ROOM"
	default:
		return "UNKNOWN"
	}
}

// Online reports whether the mode is driven by a server.
func (m Mode) Online() bool {
	return m == ModeOnlineSoloAI || m == ModeOnlineRoom
}

// ParseMode accepts the String form or the short names offline, ai and room.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "offline", "offline_solo":
		return ModeOfflineSolo, nil
	case "ai", "online_ai", "online_solo_ai":
		return ModeOnlineSoloAI, nil
	case "room", "online_room":
		return ModeOnlineRoom, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// Side names the local player or the opponent.
type Side int

const (
	SideLocal Side = iota
	SideOpponent
)

func (s Side) String() string {
	if s == SideLocal {
		return "LOCAL"
	}
	return "OPPONENT"
}

// Session is the mutable state of one match. It is not safe for concurrent
// use; the session controller confines it to its event loop.
type Session struct {
	Mode       Mode
	PlayerID   string
	OpponentID string
	RoomID     string
	InRoom     bool
	// Players maps room player ids to display names.
	Players map[string]string

	PlayerHealth   int
	OpponentHealth int
	MaxHealth      int

	PlayerMana   mana.Pool
	OpponentMana mana.Pool

	LocalTurn   bool
	GameStarted bool

	PlayerHand        []card.Card
	OpponentHand      []card.Card
	OpponentHandCount int
	PlayerField       []card.Card
	OpponentField     []card.Card
	PlayerDeck        *card.Deck
	OpponentDeck      *card.Deck

	// Epoch changes on every reset. Deferred work remembers the epoch it was
	// scheduled under and is dropped when it no longer matches.
	Epoch uint64

	conv   *convert.Converter
	logger *zap.Logger
}

// New creates an empty session in offline mode.
func New(conv *convert.Converter, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if conv == nil {
		conv = convert.NewConverter(nil, logger)
	}
	s := &Session{conv: conv, logger: logger}
	s.Reset(ModeOfflineSolo, config.ModeDefaults{})
	return s
}

// Reset clears every collection and applies the starting values for mode.
// The local player id survives a reset; room membership does not.
func (s *Session) Reset(mode Mode, d config.ModeDefaults) {
	s.Mode = mode
	s.OpponentID = ""
	s.RoomID = ""
	s.InRoom = false
	s.Players = make(map[string]string)

	s.PlayerHealth = d.PlayerHealth
	s.OpponentHealth = d.OpponentHealth
	s.MaxHealth = d.MaxHealth
	s.PlayerMana = mana.NewPool(d.PlayerMana, d.PlayerMaxMana)
	s.OpponentMana = mana.NewPool(d.OpponentMana, d.OpponentMaxMana)

	s.LocalTurn = true
	s.GameStarted = false

	s.PlayerHand = nil
	s.OpponentHand = nil
	s.OpponentHandCount = 0
	s.PlayerField = nil
	s.OpponentField = nil
	s.PlayerDeck = card.NewDeck(nil)
	s.OpponentDeck = card.NewDeck(nil)

	s.Epoch++
}

// EnterRoom records room membership. An empty id leaves the session out of any room.
func (s *Session) EnterRoom(roomID string) {
	if roomID == "" {
		s.logger.Warn("ignoring room membership without room id")
		return
	}
	s.RoomID = roomID
	s.InRoom = true
}

// ExitRoom clears room membership and the opponent identity.
func (s *Session) ExitRoom() {
	s.RoomID = ""
	s.InRoom = false
	s.OpponentID = ""
	s.Players = make(map[string]string)
}

// Hand returns the hand of side.
func (s *Session) Hand(side Side) []card.Card {
	if side == SideLocal {
		return s.PlayerHand
	}
	return s.OpponentHand
}

// Mana returns the pool of side.
func (s *Session) Mana(side Side) *mana.Pool {
	if side == SideLocal {
		return &s.PlayerMana
	}
	return &s.OpponentMana
}

// IsTurnOf reports whether side owns the current turn.
func (s *Session) IsTurnOf(side Side) bool {
	return s.LocalTurn == (side == SideLocal)
}

// FindInHand looks up a card by id in the hand of side.
func (s *Session) FindInHand(side Side, id string) (card.Card, bool) {
	hand := s.Hand(side)
	if i := card.IndexByID(hand, id); i >= 0 {
		return hand[i], true
	}
	return card.Card{}, false
}

// DrawOne moves a uniformly random card from the deck of side into its hand.
func (s *Session) DrawOne(side Side, rng *rand.Rand) (card.Card, error) {
	deck := s.PlayerDeck
	if side == SideOpponent {
		deck = s.OpponentDeck
	}
	c, ok := deck.DrawRandom(rng)
	if !ok {
		return card.Card{}, ErrDeckExhausted
	}
	s.setHand(side, append(s.Hand(side), c))
	return c, nil
}

// RemoveFromHand takes the card with id out of the hand of side.
func (s *Session) RemoveFromHand(side Side, id string) (card.Card, error) {
	hand := s.Hand(side)
	i := card.IndexByID(hand, id)
	if i < 0 {
		return card.Card{}, fmt.Errorf("%w: %s", ErrCardNotInHand, id)
	}
	c := hand[i]
	next := make([]card.Card, 0, len(hand)-1)
	next = append(next, hand[:i]...)
	next = append(next, hand[i+1:]...)
	s.setHand(side, next)
	return c, nil
}

// AddToField puts c on the field of side. A copy still in the hand is removed
// so that no id is in a hand and on the matching field at once.
func (s *Session) AddToField(side Side, c card.Card) {
	if card.ContainsID(s.Hand(side), c.ID) {
		_, _ = s.RemoveFromHand(side, c.ID)
	}
	if side == SideLocal {
		if !card.ContainsID(s.PlayerField, c.ID) {
			s.PlayerField = append(s.PlayerField, c)
		}
		return
	}
	if !card.ContainsID(s.OpponentField, c.ID) {
		s.OpponentField = append(s.OpponentField, c)
	}
}

// ApplyOutcome adds a resolved card outcome to the health totals.
func (s *Session) ApplyOutcome(o card.Outcome) {
	s.PlayerHealth += o.PlayerDelta
	s.OpponentHealth += o.OpponentDelta
}

func (s *Session) setHand(side Side, hand []card.Card) {
	if side == SideLocal {
		s.PlayerHand = hand
		return
	}
	s.OpponentHand = hand
	if s.Mode == ModeOfflineSolo {
		s.OpponentHandCount = len(hand)
	}
}
