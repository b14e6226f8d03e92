package state

import (
	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/mana"
	"github.com/spellclash/spellclash-go/internal/protocol"
)

// ApplyGameStart seeds the session from the server's initial snapshot. Hands
// and fields start empty and are then filled from whatever the snapshot carries.
func (s *Session) ApplyGameStart(gs protocol.ServerGameState) {
	if gs.PlayerID != "" {
		s.PlayerID = gs.PlayerID
	}
	s.PlayerHand = nil
	s.PlayerField = nil
	s.OpponentHand = nil
	s.OpponentField = nil
	s.OpponentHandCount = 0

	s.MergeGameState(gs)
	if gs.GameStarted == nil {
		s.GameStarted = true
	}
}

// MergeGameState overwrites every field present in gs. Card lists are replaced
// wholesale. The opponent is read from the ai* fields against the server AI and
// from opponentState in a room.
func (s *Session) MergeGameState(gs protocol.ServerGameState) {
	if gs.PlayerID != "" && s.PlayerID == "" {
		s.PlayerID = gs.PlayerID
	}
	if gs.MaxHealth != nil {
		s.MaxHealth = *gs.MaxHealth
	}
	if gs.PlayerHealth != nil {
		s.PlayerHealth = *gs.PlayerHealth
	}
	s.mergePool(&s.PlayerMana, gs.PlayerMana, gs.PlayerMaxMana)
	if gs.PlayerHand != nil {
		s.PlayerHand = s.conv.Cards(gs.PlayerHand)
	}
	if gs.PlayerField != nil {
		s.PlayerField = s.conv.Cards(gs.PlayerField)
	}

	switch s.Mode {
	case ModeOnlineRoom:
		s.mergeRoomOpponent(gs.OpponentState)
	default:
		s.mergeAIOpponent(gs)
	}

	if gs.IsPlayerTurn != nil {
		s.LocalTurn = *gs.IsPlayerTurn
	}
	if gs.GameStarted != nil {
		s.GameStarted = *gs.GameStarted
	}
	s.enforcePartition()

	s.logger.Debug("merged game state",
		zap.Int("player_health", s.PlayerHealth),
		zap.Int("opponent_health", s.OpponentHealth),
		zap.Bool("local_turn", s.LocalTurn),
	)
}

func (s *Session) mergeAIOpponent(gs protocol.ServerGameState) {
	if gs.AIHealth != nil {
		s.OpponentHealth = *gs.AIHealth
	}
	s.mergePool(&s.OpponentMana, gs.AIMana, gs.AIMaxMana)
	if gs.AIHandCount != nil {
		s.OpponentHandCount = *gs.AIHandCount
	}
	if gs.AIField != nil {
		s.OpponentField = s.conv.Cards(gs.AIField)
	}
}

func (s *Session) mergeRoomOpponent(opp *protocol.ServerPlayerState) {
	if opp == nil {
		s.logger.Warn("room snapshot without opponent state, clearing opponent")
		s.clearOpponent()
		return
	}
	if opp.PlayerID != "" {
		s.OpponentID = opp.PlayerID
	}
	s.OpponentHealth = opp.Health
	s.OpponentMana.Set(opp.Mana, opp.MaxMana)
	s.OpponentHandCount = opp.HandCount
	if opp.Field != nil {
		s.OpponentField = s.conv.Cards(opp.Field)
	}
}

// MergeRoomState applies a roomUpdate. The session is forced into room mode and
// self.playerId becomes the authoritative local id.
func (s *Session) MergeRoomState(rs protocol.ServerRoomState) {
	if s.Mode != ModeOnlineRoom {
		s.logger.Info("room update received, switching to room mode",
			zap.Stringer("previous_mode", s.Mode),
		)
		s.Mode = ModeOnlineRoom
	}
	s.EnterRoom(rs.RoomID)
	s.GameStarted = rs.GameStarted
	if rs.Players != nil {
		s.Players = make(map[string]string, len(rs.Players))
		for id, name := range rs.Players {
			s.Players[id] = name
		}
	}

	if self := rs.Self; self != nil {
		if self.PlayerID != "" {
			s.PlayerID = self.PlayerID
		}
		s.PlayerHealth = self.Health
		if self.MaxHealth > 0 {
			s.MaxHealth = self.MaxHealth
		} else {
			s.MaxHealth = self.Health
		}
		s.PlayerMana.Set(self.Mana, self.MaxMana)
		s.PlayerHand = s.conv.Cards(self.Hand)
		s.PlayerField = s.conv.Cards(self.Field)
	} else {
		s.logger.Warn("room snapshot without self state, clearing hand and field",
			zap.String("room_id", rs.RoomID),
		)
		s.PlayerHand = []card.Card{}
		s.PlayerField = []card.Card{}
	}

	s.LocalTurn = rs.CurrentPlayerID != "" && s.PlayerID != "" && rs.CurrentPlayerID == s.PlayerID

	if rs.Opponent != nil {
		s.OpponentID = rs.Opponent.PlayerID
		s.OpponentHealth = rs.Opponent.Health
		s.OpponentMana.Set(rs.Opponent.Mana, rs.Opponent.MaxMana)
		s.OpponentHandCount = rs.Opponent.HandCount
		s.OpponentField = s.conv.Cards(rs.Opponent.Field)
	} else {
		s.logger.Warn("room snapshot without opponent state, clearing opponent",
			zap.String("room_id", rs.RoomID),
		)
		s.clearOpponent()
	}
	s.enforcePartition()
}

func (s *Session) clearOpponent() {
	s.OpponentID = ""
	s.OpponentHealth = 0
	s.OpponentMana.Set(0, 0)
	s.OpponentHandCount = 0
	s.OpponentHand = nil
	s.OpponentField = []card.Card{}
}

// enforcePartition drops field cards from hands. Server snapshots are trusted,
// but a card reported in both places is treated as played.
func (s *Session) enforcePartition() {
	for _, c := range s.PlayerField {
		if card.ContainsID(s.PlayerHand, c.ID) {
			s.logger.Warn("card reported in hand and on field", zap.String("card_id", c.ID))
			_, _ = s.RemoveFromHand(SideLocal, c.ID)
		}
	}
	for _, c := range s.OpponentField {
		if card.ContainsID(s.OpponentHand, c.ID) {
			_, _ = s.RemoveFromHand(SideOpponent, c.ID)
		}
	}
}

// mergePool overwrites the values present in a snapshot, clamping the result.
func (s *Session) mergePool(p *mana.Pool, cur, max *int) {
	if cur == nil && max == nil {
		return
	}
	nextMax := p.Max
	if max != nil {
		nextMax = *max
	}
	nextCur := p.Current
	if cur != nil {
		nextCur = *cur
	}
	if cur != nil && nextCur > nextMax {
		s.logger.Warn("server mana above max, clamping",
			zap.Int("mana", nextCur),
			zap.Int("max_mana", nextMax),
		)
	}
	p.Set(nextCur, nextMax)
}
