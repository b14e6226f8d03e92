package present

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/event"
	"github.com/spellclash/spellclash-go/internal/state"
)

// Console writes events and boards as plain text.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	logger *zap.Logger
	board  bool
}

// NewConsole writes to w. When showBoard is set every state change prints the board.
func NewConsole(w io.Writer, showBoard bool, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{w: w, logger: logger, board: showBoard}
}

// Handle is an event.Listener.
func (c *Console) Handle(e event.Event) {
	if e.Type == event.StateChanged {
		if c.board && e.Snapshot != nil {
			c.Board(*e.Snapshot)
		}
		return
	}
	line := Describe(e)
	if line == "" {
		return
	}
	c.printf("%s\n", line)
}

// Describe renders e as one line. Events without a textual form return "".
func Describe(e event.Event) string {
	switch e.Type {
	case event.CardPlayed, event.RemoteCardPlayed, event.CardConfirmed:
		who := "Opponent"
		if e.Local {
			who = "You"
		}
		if e.Card == nil {
			return fmt.Sprintf("%s played a card", who)
		}
		verb := "played"
		if e.Type == event.CardConfirmed {
			verb = "resolved"
		}
		return fmt.Sprintf("%s %s %s (%s)", who, verb, e.Card.Name, e.Card.Effect)
	case event.CardDrawn:
		if e.Local && e.Card != nil {
			return fmt.Sprintf("You drew %s", e.Card.Name)
		}
		return ""
	case event.CommandRejected:
		return fmt.Sprintf("Rejected [%s]: %s", e.Reason, e.Message)
	case event.GameOver:
		result := "Defeat"
		if e.Won {
			result = "Victory"
		}
		return fmt.Sprintf("*** %s *** %s", result, e.Message)
	case event.ScreenChanged:
		return fmt.Sprintf("-- %s --", strings.ToLower(string(e.Screen)))
	case event.RoomCreated, event.RoomJoined:
		return fmt.Sprintf("Room %s (you are %s) %s", e.RoomID, e.PlayerID, e.Message)
	case event.TurnStarted, event.TurnEnded:
		return ""
	default:
		if e.Message == "" {
			return ""
		}
		return e.Message
	}
}

// Board prints a snapshot.
func (c *Console) Board(s state.Snapshot) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", s.Mode)
	if s.InRoom {
		fmt.Fprintf(&b, " room %s", s.RoomID)
	}
	turn := "opponent's turn"
	if s.LocalTurn {
		turn = "your turn"
	}
	fmt.Fprintf(&b, " %s\n", turn)
	fmt.Fprintf(&b, "  Opponent  HP %d  mana %d/%d  hand %d  field %s\n",
		s.OpponentHealth, s.OpponentMana, s.OpponentMaxMana, opponentHandSize(s), names(s.OpponentField))
	fmt.Fprintf(&b, "  You       HP %d/%d  mana %d/%d  deck %d  field %s\n",
		s.PlayerHealth, s.MaxHealth, s.PlayerMana, s.PlayerMaxMana, s.PlayerDeckSize, names(s.PlayerField))
	for i, cd := range s.PlayerHand {
		mark := " "
		if cd.Cost <= s.PlayerMana {
			mark = "*"
		}
		fmt.Fprintf(&b, "  %s%2d. %-20s cost %d  %s\n", mark, i+1, cd.Name, cd.Cost, cd.Effect)
	}
	if len(s.Players) > 0 {
		ids := make([]string, 0, len(s.Players))
		for id := range s.Players {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			parts = append(parts, s.Players[id])
		}
		fmt.Fprintf(&b, "  players: %s\n", strings.Join(parts, ", "))
	}
	c.printf("%s", b.String())
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, format, args...); err != nil {
		c.logger.Warn("failed to write to console", zap.Error(err))
	}
}

func opponentHandSize(s state.Snapshot) int {
	if s.OpponentHand != nil {
		return len(s.OpponentHand)
	}
	return s.OpponentHandCount
}

func names(cards []card.Card) string {
	if len(cards) == 0 {
		return "-"
	}
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Name)
	}
	return strings.Join(out, ", ")
}
