package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMessage is returned by Decode for envelope types this client does not handle.
var ErrUnknownMessage = errors.New("unknown message type")

// Message is one decoded inbound frame. The concrete types are
//
//	GameStart, GameStateUpdate, RoomUpdate, AIActionMessage,
//	OpponentPlayCardMessage, PlayerActionMessage, RoomResponse
type Message interface {
	MessageType() MessageType
}

// GameStart seeds a session.
type GameStart struct{ State ServerGameState }

// GameStateUpdate carries a full or partial snapshot.
type GameStateUpdate struct{ State ServerGameState }

// RoomUpdate carries the room view for this client.
type RoomUpdate struct{ Room ServerRoomState }

// AIActionMessage wraps an aiAction push.
type AIActionMessage struct{ Action AIAction }

// OpponentPlayCardMessage wraps an opponentPlayCard push.
type OpponentPlayCardMessage struct{ Play OpponentPlayCard }

// PlayerActionMessage wraps a playerAction push.
type PlayerActionMessage struct{ Result PlayerActionResult }

func (GameStart) MessageType() MessageType               { return TypeGameStart }
func (GameStateUpdate) MessageType() MessageType         { return TypeGameStateUpdate }
func (RoomUpdate) MessageType() MessageType              { return TypeRoomUpdate }
func (AIActionMessage) MessageType() MessageType         { return TypeAIAction }
func (OpponentPlayCardMessage) MessageType() MessageType { return TypeOpponentPlayCard }
func (PlayerActionMessage) MessageType() MessageType     { return TypePlayerAction }
func (r RoomResponse) MessageType() MessageType          { return r.Kind }

// Decode parses a raw frame into its Message. Frames with an unrecognised type
// return ErrUnknownMessage together with the parsed envelope type in the error text.
func Decode(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return DecodeEnvelope(env)
}

// DecodeEnvelope interprets the data of an already parsed envelope.
func DecodeEnvelope(env Envelope) (Message, error) {
	switch env.Type {
	case TypeGameStart:
		var m GameStart
		if err := decodeData(env, &m.State); err != nil {
			return nil, err
		}
		return m, nil
	case TypeGameStateUpdate:
		var m GameStateUpdate
		if err := decodeData(env, &m.State); err != nil {
			return nil, err
		}
		return m, nil
	case TypeRoomUpdate:
		var m RoomUpdate
		if err := decodeData(env, &m.Room); err != nil {
			return nil, err
		}
		if m.Room.RoomID == "" {
			m.Room.RoomID = env.RoomID
		}
		return m, nil
	case TypeAIAction:
		var m AIActionMessage
		if err := decodeData(env, &m.Action); err != nil {
			return nil, err
		}
		return m, nil
	case TypeOpponentPlayCard:
		var m OpponentPlayCardMessage
		if err := decodeData(env, &m.Play); err != nil {
			return nil, err
		}
		return m, nil
	case TypePlayerAction:
		var m PlayerActionMessage
		if err := decodeData(env, &m.Result); err != nil {
			return nil, err
		}
		if m.Result.CardID == "" {
			m.Result.CardID = env.CardID
		}
		return m, nil
	case TypeRoomCreated, TypeRoomJoined, TypeLeftRoom, TypeError:
		return decodeRoomResponse(env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}

func decodeData(env Envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", env.Type, err)
	}
	return nil
}

func decodeRoomResponse(env Envelope) (RoomResponse, error) {
	resp := RoomResponse{
		Kind:     env.Type,
		RoomID:   env.RoomID,
		PlayerID: env.PlayerID,
		Message:  env.Message,
	}
	var data roomResponseData
	// data is advisory for room responses; a scalar or malformed object is ignored
	if len(env.Data) > 0 && json.Unmarshal(env.Data, &data) == nil {
		if data.Message != "" {
			resp.Message = data.Message
		}
		resp.PlayerName = data.PlayerName
	}
	return resp, nil
}
