package network

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	MsgTypeHeartbeat = 1

	// client -> server
	MsgTypeJoinRoom     = 101
	MsgTypeLeaveRoom    = 102
	MsgTypeWatchRoom    = 103
	MsgTypeStartGame    = 201
	MsgTypeSubmitAnswer = 202
	MsgTypeVoteFunny    = 203
	MsgTypeResetRoom    = 204

	// server -> client
	MsgTypeRoomState = 301
	MsgTypeJoined    = 302
	MsgTypeAck       = 303
	// MsgTypeAccessToken carries a room's new token to its players after a
	// reset.
	MsgTypeAccessToken = 304
	MsgTypeError       = 400
)

// MaxPayload is the largest body a frame length field can describe.
const MaxPayload = 1<<16 - 1

var (
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrMalformedPacket = errors.New("malformed packet")
)

// JoinRequest asks to join a room as a player. An empty room ID means the
// default room.
type JoinRequest struct {
	RoomID      string `json:"room_id,omitempty"`
	DisplayName string `json:"display_name"`
}

// WatchRequest subscribes a connection to a room's state without joining.
type WatchRequest struct {
	RoomID string `json:"room_id,omitempty"`
}

// TokenRequest carries only the room access token (start, reset).
type TokenRequest struct {
	AccessToken string `json:"access_token"`
}

type AnswerRequest struct {
	AccessToken string `json:"access_token"`
	PlayerID    string `json:"player_id"`
	ChoiceIndex int    `json:"choice_index"`
}

type VoteRequest struct {
	AccessToken string `json:"access_token"`
	PlayerID    string `json:"player_id"`
}

// JoinedReply answers a successful join.
type JoinedReply struct {
	RoomID      string `json:"room_id"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	AccessToken string `json:"access_token"`
}

// TokenReply replaces the access token a player joined with.
type TokenReply struct {
	RoomID      string `json:"room_id"`
	AccessToken string `json:"access_token"`
}

// AckReply confirms a request that has no other payload.
type AckReply struct {
	Request uint16 `json:"request"`
}

// ErrorReply reports a failed request. The client stays where it is.
type ErrorReply struct {
	Request uint16 `json:"request"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode marshals a payload for Send.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
	}
	return data, nil
}

// Decode unmarshals a packet body into v.
func Decode(p *Packet, v any) error {
	if err := json.Unmarshal(p.Data, v); err != nil {
		return fmt.Errorf("%w: message %d: %v", ErrMalformedPacket, p.MsgID, err)
	}
	return nil
}
