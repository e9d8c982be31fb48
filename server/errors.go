package server

import (
	"errors"

	"github.com/wfunc/triviaserver/network"
	"github.com/wfunc/triviaserver/room"
)

var (
	ErrNotInRoom      = errors.New("not in a room")
	ErrRateLimited    = errors.New("too many messages")
	ErrUnknownMessage = errors.New("unknown message type")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{room.ErrWrongPhase, "WRONG_PHASE"},
	{room.ErrInvalidTransition, "INVALID_TRANSITION"},
	{room.ErrRoomFull, "ROOM_FULL"},
	{room.ErrNotEnoughPlayers, "NOT_ENOUGH_PLAYERS"},
	{room.ErrNameTaken, "NAME_TAKEN"},
	{room.ErrInvalidName, "INVALID_NAME"},
	{room.ErrAlreadyJoined, "ALREADY_JOINED"},
	{room.ErrPlayerEliminated, "PLAYER_ELIMINATED"},
	{room.ErrAlreadyAnswered, "ALREADY_ANSWERED"},
	{room.ErrInvalidChoice, "INVALID_CHOICE"},
	{room.ErrUnauthorized, "UNAUTHORIZED"},
	{room.ErrPlayerNotFound, "PLAYER_NOT_FOUND"},
	{room.ErrNoQuestions, "NO_QUESTIONS"},
	{room.ErrRoomClosed, "ROOM_CLOSED"},
	{room.ErrRoomNotFound, "ROOM_NOT_FOUND"},
	{room.ErrTooManyRooms, "TOO_MANY_ROOMS"},
	{ErrNotInRoom, "NOT_IN_ROOM"},
	{ErrRateLimited, "RATE_LIMITED"},
	{ErrUnknownMessage, "UNKNOWN_MESSAGE"},
	{network.ErrMalformedPacket, "BAD_REQUEST"},
	{network.ErrPayloadTooLarge, "BAD_REQUEST"},
}

// ErrorCode maps an operation error to the code sent to clients.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}
