package session

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spellclash/spellclash-go/internal/event"
	"github.com/spellclash/spellclash-go/internal/protocol"
	"github.com/spellclash/spellclash-go/internal/state"
	"github.com/spellclash/spellclash-go/internal/turn"
)

// CreateRoom asks the room server for a new room.
func (c *Controller) CreateRoom(ctx context.Context, playerName string) error {
	return c.do(ctx, true, func() error {
		if err := c.requireRoomConn(); err != nil {
			return err
		}
		return c.sendRoom(ctx, protocol.CreateRoom(playerName))
	})
}

// JoinRoom asks to join roomID. Blank ids are refused locally.
func (c *Controller) JoinRoom(ctx context.Context, roomID, playerName string) error {
	return c.do(ctx, true, func() error {
		roomID = strings.TrimSpace(roomID)
		if roomID == "" {
			return c.proc.Reject(turn.ReasonInvalidRoom, "room id is empty")
		}
		if err := c.requireRoomConn(); err != nil {
			return err
		}
		return c.sendRoom(ctx, protocol.JoinRoom(roomID, playerName))
	})
}

// LeaveRoom leaves the current room and abandons any game-over sequence.
func (c *Controller) LeaveRoom(ctx context.Context) error {
	return c.do(ctx, true, func() error {
		s := c.session
		if !s.InRoom {
			return c.proc.Reject(turn.ReasonNotInRoom, "not in a room")
		}
		if c.conn == nil {
			return c.proc.Reject(turn.ReasonNotConnected, "no server connection")
		}
		c.arbiter.Reset()
		return c.sendRoom(ctx, protocol.LeaveRoom(s.RoomID, s.PlayerID))
	})
}

func (c *Controller) requireRoomConn() error {
	if c.session.Mode != state.ModeOnlineRoom {
		return c.proc.Reject(turn.ReasonWrongMode, "rooms need %s mode, session is %s", state.ModeOnlineRoom, c.session.Mode)
	}
	if c.conn == nil {
		return c.proc.Reject(turn.ReasonNotConnected, "no server connection")
	}
	return nil
}

func (c *Controller) sendRoom(ctx context.Context, env protocol.Envelope) error {
	if err := c.conn.Send(ctx, env); err != nil {
		c.logger.Error("failed to send room request", zap.String("type", string(env.Type)), zap.Error(err))
		return err
	}
	c.logger.Debug("room request sent", zap.String("type", string(env.Type)))
	return nil
}

func (c *Controller) handleRoomResponse(r protocol.RoomResponse) {
	s := c.session
	switch r.Kind {
	case protocol.TypeRoomCreated, protocol.TypeRoomJoined:
		s.EnterRoom(r.RoomID)
		if r.PlayerID != "" {
			s.PlayerID = r.PlayerID
		}
		kind := event.RoomCreated
		if r.Kind == protocol.TypeRoomJoined {
			kind = event.RoomJoined
		}
		c.logger.Info("room membership changed",
			zap.String("kind", string(r.Kind)),
			zap.String("room_id", s.RoomID),
			zap.String("player_id", s.PlayerID),
		)
		e := event.New(kind, r.Message)
		e.RoomID = s.RoomID
		e.PlayerID = s.PlayerID
		c.bus.Publish(e)
		if s.InRoom && !s.GameStarted {
			c.setScreen(event.ScreenLobby)
		}

	case protocol.TypeLeftRoom:
		previous := s.RoomID
		s.ExitRoom()
		s.GameStarted = false
		c.arbiter.Reset()
		c.logger.Info("left room", zap.String("room_id", previous))
		e := event.New(event.RoomLeft, r.Message)
		e.RoomID = previous
		c.bus.Publish(e)
		c.setScreen(event.ScreenLobby)

	case protocol.TypeError:
		c.logger.Warn("server error", zap.String("message", r.Message))
		e := event.New(event.ServerError, r.Message)
		e.RoomID = r.RoomID
		c.bus.Publish(e)
	}
}
