package room

import (
	"context"
	"time"

	"github.com/wfunc/triviaserver/logger"
	"github.com/wfunc/triviaserver/models"
)

const (
	recorderQueueSize = 128
	recorderTimeout   = 5 * time.Second
)

// recorder writes results to the sink in submission order on its own
// goroutine, so a slow or failing store never holds up the phase timers.
// Games are addressed by a room-local key until the sink hands back its ID.
type recorder struct {
	roomID  string
	sink    ResultsSink
	jobs    chan func(ctx context.Context)
	done    chan struct{}
	gameIDs map[string]string // game key -> sink ID; recorder goroutine only
}

func newRecorder(roomID string, sink ResultsSink) *recorder {
	rec := &recorder{
		roomID:  roomID,
		sink:    sink,
		jobs:    make(chan func(ctx context.Context), recorderQueueSize),
		done:    make(chan struct{}),
		gameIDs: make(map[string]string),
	}
	go rec.run()
	return rec
}

func (rec *recorder) run() {
	defer close(rec.done)
	for job := range rec.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
		job(ctx)
		cancel()
	}
}

// stop drains queued jobs. Must only be called once no more jobs are
// submitted.
func (rec *recorder) stop() {
	close(rec.jobs)
	<-rec.done
}

func (rec *recorder) submit(job func(ctx context.Context)) {
	if rec.sink == nil {
		return
	}
	select {
	case rec.jobs <- job:
	default:
		logger.Log.Warnw("results queue full, dropping record", "room", rec.roomID)
	}
}

func (rec *recorder) createGame(key string, playerCount, maxRounds int) {
	rec.submit(func(ctx context.Context) {
		id, err := rec.sink.CreateGame(ctx, playerCount, maxRounds)
		if err != nil {
			logger.Log.Errorw("create game record failed", "room", rec.roomID, "error", err)
			return
		}
		rec.gameIDs[key] = id
	})
}

func (rec *recorder) recordRound(key string, round models.RoundResult, answers []models.PlayerAnswer) {
	rec.submit(func(ctx context.Context) {
		id, ok := rec.gameIDs[key]
		if !ok {
			logger.Log.Warnw("no game record for round", "room", rec.roomID, "round", round.RoundNumber)
			return
		}
		round.GameID = id
		if err := rec.sink.RecordRound(ctx, round); err != nil {
			logger.Log.Errorw("record round failed", "room", rec.roomID, "round", round.RoundNumber, "error", err)
		}
		for _, a := range answers {
			a.GameID = id
			if err := rec.sink.RecordPlayerAnswer(ctx, a); err != nil {
				logger.Log.Errorw("record answer failed", "room", rec.roomID, "player", a.PlayerName, "error", err)
			}
		}
	})
}

func (rec *recorder) completeGame(key string, summary models.GameSummary) {
	rec.submit(func(ctx context.Context) {
		id, ok := rec.gameIDs[key]
		if !ok {
			return
		}
		delete(rec.gameIDs, key)
		summary.GameID = id
		if err := rec.sink.CompleteGame(ctx, summary); err != nil {
			logger.Log.Errorw("complete game failed", "room", rec.roomID, "error", err)
		}
	})
}
