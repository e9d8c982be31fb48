package room

import (
	"context"

	"github.com/wfunc/triviaserver/models"
	"github.com/wfunc/triviaserver/state"
)

// Broadcaster defines the interface for broadcasting messages to a room.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
}

// PlayerBroadcaster is implemented by broadcasters that can reach only the
// players of a room. Rotated access tokens go out through it; watchers never
// receive them.
type PlayerBroadcaster interface {
	BroadcastToPlayers(roomID string, msgID uint16, data []byte) error
}

// ResultsSink persists round and game outcomes. Calls are made from a
// background goroutine; errors are logged and never reach the game.
type ResultsSink interface {
	CreateGame(ctx context.Context, playerCount, maxRounds int) (string, error)
	RecordRound(ctx context.Context, round models.RoundResult) error
	RecordPlayerAnswer(ctx context.Context, answer models.PlayerAnswer) error
	CompleteGame(ctx context.Context, summary models.GameSummary) error
}

// Metrics receives room level events.
type Metrics interface {
	ObserveTransition(from, to state.Phase)
	IncAnswers()
	IncOnlinePlayers()
	DecOnlinePlayers()
}

type nopMetrics struct{}

func (nopMetrics) ObserveTransition(from, to state.Phase) {}
func (nopMetrics) IncAnswers()                            {}
func (nopMetrics) IncOnlinePlayers()                      {}
func (nopMetrics) DecOnlinePlayers()                      {}
