package session

import (
	"errors"

	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/card"
	"github.com/spellclash/spellclash-go/internal/event"
	"github.com/spellclash/spellclash-go/internal/protocol"
	"github.com/spellclash/spellclash-go/internal/state"
)

// route dispatches one inbound frame. It runs on the loop.
func (c *Controller) route(raw []byte) {
	msg, err := protocol.Decode(raw)
	if errors.Is(err, protocol.ErrUnknownMessage) {
		c.logger.Warn("ignoring unknown message", zap.Error(err))
		return
	}
	if err != nil {
		c.logger.Error("failed to decode message", zap.Error(err), zap.ByteString("raw", raw))
		return
	}
	c.logger.Debug("message received", zap.String("type", string(msg.MessageType())))

	switch m := msg.(type) {
	case protocol.GameStart:
		c.handleGameStart(m.State)
	case protocol.GameStateUpdate:
		c.handleGameState(m.State)
	case protocol.RoomUpdate:
		c.handleRoomUpdate(m.Room)
	case protocol.AIActionMessage:
		c.handleAIAction(m.Action)
	case protocol.OpponentPlayCardMessage:
		c.handleOpponentPlay(m.Play)
	case protocol.PlayerActionMessage:
		c.handlePlayerAction(m.Result)
	case protocol.RoomResponse:
		c.handleRoomResponse(m)
	}
}

func (c *Controller) handleGameStart(gs protocol.ServerGameState) {
	if !c.session.Mode.Online() {
		c.logger.Warn("ignoring gameStart in offline mode")
		return
	}
	c.session.ApplyGameStart(gs)
	c.logger.Info("game started",
		zap.String("player_id", c.session.PlayerID),
		zap.Bool("local_turn", c.session.LocalTurn),
	)
	c.setScreen(event.ScreenGame)
	c.arbiter.ProcessServerState(gs.GameOver, gs.Winner, c.session.Mode, c.session.PlayerID)
}

func (c *Controller) handleGameState(gs protocol.ServerGameState) {
	if !c.session.Mode.Online() {
		c.logger.Warn("ignoring gameStateUpdate in offline mode")
		return
	}
	c.session.MergeGameState(gs)
	c.arbiter.ProcessServerState(gs.GameOver, gs.Winner, c.session.Mode, c.session.PlayerID)
}

func (c *Controller) handleRoomUpdate(rs protocol.ServerRoomState) {
	c.session.MergeRoomState(rs)
	if rs.Message != "" {
		e := event.New(event.RoomStatus, rs.Message)
		e.RoomID = c.session.RoomID
		c.bus.Publish(e)
	}

	switch {
	case rs.GameStarted && !rs.GameOver:
		c.setScreen(event.ScreenGame)
	case c.session.InRoom && !rs.GameStarted:
		c.setScreen(event.ScreenLobby)
	}
	c.arbiter.ProcessRoomState(rs.GameOver, rs.WinnerID, c.session.PlayerID)
}

// handleAIAction animates a card the server AI already played. The state it
// changed arrives with the next snapshot.
func (c *Controller) handleAIAction(a protocol.AIAction) {
	if a.ActionType != "playCard" {
		c.logger.Debug("ignoring ai action", zap.String("action_type", a.ActionType))
		return
	}
	cd, ok := c.conv.Card(a.Card)
	if !ok {
		return
	}
	c.remotePlay(cd, "AI played "+cd.Name)
}

func (c *Controller) handleOpponentPlay(p protocol.OpponentPlayCard) {
	cd, ok := c.conv.Card(p.Card)
	if !ok {
		return
	}
	who := p.PlayerName
	if who == "" {
		who = "Opponent"
	}
	c.remotePlay(cd, who+" played "+cd.Name)
}

func (c *Controller) remotePlay(cd card.Card, message string) {
	c.bus.Publish(event.New(event.RemoteCardPlayed, message).WithCard(cd, false))
	if c.animator != nil {
		c.animator.AnimatePlay(nil, cd, false, func() {})
	}
}

// handlePlayerAction confirms or refuses a card this client asked to play.
func (c *Controller) handlePlayerAction(r protocol.PlayerActionResult) {
	handle := c.pending[r.CardID]
	delete(c.pending, r.CardID)

	if !r.Success {
		msg := r.Message
		if msg == "" {
			msg = "Action refused by server"
		}
		c.logger.Info("server refused action",
			zap.String("action", r.Action),
			zap.String("card_id", r.CardID),
			zap.String("message", msg),
		)
		e := event.New(event.CommandRejected, msg)
		e.Reason = "SERVER_REFUSED"
		c.bus.Publish(e)
		return
	}

	cd, ok := c.session.FindInHand(state.SideLocal, r.CardID)
	if !ok {
		for _, f := range c.session.PlayerField {
			if f.ID == r.CardID {
				cd, ok = f, true
				break
			}
		}
	}
	if !ok {
		cd = card.Card{ID: r.CardID}
	}
	c.bus.Publish(event.New(event.CardConfirmed, r.Message).WithCard(cd, true))
	if c.animator != nil && handle != nil {
		c.animator.AnimatePlay(handle, cd, true, func() {})
	}
}
