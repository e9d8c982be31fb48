package room

import (
	"errors"

	"github.com/wfunc/triviaserver/state"
)

// Domain errors returned to the caller of a room operation. They are all
// recoverable: the room stays consistent after any of them.
var (
	ErrWrongPhase        = errors.New("operation not allowed in current phase")
	ErrInvalidTransition = state.ErrTransitionNotAllowed
	ErrRoomFull          = errors.New("room is full")
	ErrNotEnoughPlayers  = errors.New("not enough players")
	ErrNameTaken         = errors.New("name already taken")
	ErrInvalidName       = errors.New("invalid display name")
	ErrAlreadyJoined     = errors.New("connection already joined")
	ErrPlayerEliminated  = errors.New("player is eliminated")
	ErrAlreadyAnswered   = errors.New("player already answered")
	ErrInvalidChoice     = errors.New("invalid choice")
	ErrUnauthorized      = errors.New("invalid access token")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrNoQuestions       = errors.New("no questions available")
	ErrRoomClosed        = errors.New("room closed")
	ErrRoomExists        = errors.New("room already exists")
	ErrRoomNotFound      = errors.New("room not found")
	ErrTooManyRooms      = errors.New("too many rooms")
)
