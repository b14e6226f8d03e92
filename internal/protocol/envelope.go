package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType is the envelope discriminator.
type MessageType string

// Client to server.
const (
	TypePlayCard   MessageType = "playCard"
	TypeEndTurn    MessageType = "endTurn"
	TypeCreateRoom MessageType = "createRoom"
	TypeJoinRoom   MessageType = "joinRoom"
	TypeLeaveRoom  MessageType = "leaveRoom"
)

// Server to client.
const (
	TypeGameStart        MessageType = "gameStart"
	TypeGameStateUpdate  MessageType = "gameStateUpdate"
	TypeRoomUpdate       MessageType = "roomUpdate"
	TypeAIAction         MessageType = "aiAction"
	TypeOpponentPlayCard MessageType = "opponentPlayCard"
	TypePlayerAction     MessageType = "playerAction"
	TypeRoomCreated      MessageType = "roomCreated"
	TypeRoomJoined       MessageType = "roomJoined"
	TypeLeftRoom         MessageType = "leftRoom"
	TypeError            MessageType = "error"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Type     MessageType     `json:"type"`
	Data     json.RawMessage `json:"data,omitempty"`
	RoomID   string          `json:"roomId,omitempty"`
	PlayerID string          `json:"playerId,omitempty"`
	CardID   string          `json:"cardId,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// WithData returns a copy of e carrying v marshalled as data.
func (e Envelope) WithData(v any) (Envelope, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return e, fmt.Errorf("failed to marshal %s data: %w", e.Type, err)
	}
	e.Data = raw
	return e, nil
}

// Encode marshals an envelope for the wire.
func Encode(e Envelope) ([]byte, error) {
	if e.Type == "" {
		return nil, fmt.Errorf("envelope without type")
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.Type, err)
	}
	return b, nil
}

// PlayCard asks the server to play cardID. roomID is empty outside rooms.
func PlayCard(cardID, roomID, playerID string) Envelope {
	return Envelope{Type: TypePlayCard, CardID: cardID, RoomID: roomID, PlayerID: playerID}
}

// EndTurn asks the server to pass the turn.
func EndTurn(roomID, playerID string) Envelope {
	return Envelope{Type: TypeEndTurn, RoomID: roomID, PlayerID: playerID}
}

// CreateRoom asks for a new room. The player name travels in playerId.
func CreateRoom(playerName string) Envelope {
	return Envelope{Type: TypeCreateRoom, PlayerID: playerName}
}

// JoinRoom asks to join roomID. The player name travels in playerId.
func JoinRoom(roomID, playerName string) Envelope {
	return Envelope{Type: TypeJoinRoom, RoomID: roomID, PlayerID: playerName}
}

// LeaveRoom asks to leave roomID.
func LeaveRoom(roomID, playerID string) Envelope {
	return Envelope{Type: TypeLeaveRoom, RoomID: roomID, PlayerID: playerID}
}
