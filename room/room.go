// room/room.go
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/triviaserver/logger"
	"github.com/wfunc/triviaserver/network"
	"github.com/wfunc/triviaserver/question"
	"github.com/wfunc/triviaserver/state"
	"github.com/wfunc/triviaserver/timer"
)

// Timer names. Each phase owns at most one of them.
const (
	TimerAskingTimeout = "asking-timeout"
	TimerReveal        = "reveal"
	TimerRoundEnd      = "round-end"
	TimerNextRound     = "next-round"
	TimerAutoReset     = "auto-reset"
)

// Player is a participant identified by a stable ID and reachable through
// the connection it joined with.
type Player struct {
	ID          string
	DisplayName string
	JoinedAt    time.Time
	Connection  string
}

// Answer is a recorded submission.
type Answer struct {
	ChoiceIndex int
	SubmittedAt time.Time
}

// JoinResult is returned to a player that joined successfully. The access
// token is needed for every privileged call.
type JoinResult struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	AccessToken string `json:"access_token"`
}

// Deps are the collaborators a room talks to. Only Timers is required.
type Deps struct {
	Questions   question.Source
	Results     ResultsSink
	Broadcaster Broadcaster
	Metrics     Metrics
	Timers      *timer.TimerManager
	Clock       func() time.Time
}

// Room owns the authoritative state of one game. Every operation, including
// timer callbacks, runs on a single worker goroutine in FIFO order; all
// fields below the queue are touched only from that goroutine.
type Room struct {
	ID        string
	CreatedAt time.Time

	config      Config
	questions   question.Source
	broadcaster Broadcaster
	metrics     Metrics
	now         func() time.Time
	recorder    *recorder

	machine   *state.BaseStateMachine
	timers    *timer.Set
	ops       chan func()
	snapshots chan publication
	closeChan chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	accessToken  string
	players      map[string]*Player // connection -> player
	names        map[string]string  // playerID -> display name, kept after removal
	scores       map[string]int
	lives        map[string]int
	eliminated   map[string]bool
	questionPool []question.Question
	roundIndex   int
	current      *question.Question
	askedAt      time.Time
	answers      map[string]Answer
	funnyVotes   map[string]bool
	lastRound    *roundOutcome
	winner       *PlayerView

	gameKey       string
	gameStartedAt time.Time

	// rotatedToken is set by reset and handed to the next publication.
	rotatedToken string
	// retired rooms are about to be closed by the manager and take no
	// new players.
	retired bool
}

// publication is one unit of work for the publisher: a snapshot and, after a
// reset, the token the remaining players need from now on.
type publication struct {
	snap  Snapshot
	token string
}

// NewRoom creates a room in LOBBY and starts its worker.
func NewRoom(id string, cfg Config, deps Deps) *Room {
	r := &Room{
		ID:          id,
		config:      cfg,
		questions:   deps.Questions,
		broadcaster: deps.Broadcaster,
		metrics:     deps.Metrics,
		now:         deps.Clock,
		ops:         make(chan func(), 256),
		snapshots:   make(chan publication, 1),
		closeChan:   make(chan struct{}),
		done:        make(chan struct{}),
		players:     make(map[string]*Player),
		names:       make(map[string]string),
		scores:      make(map[string]int),
		lives:       make(map[string]int),
		eliminated:  make(map[string]bool),
		answers:     make(map[string]Answer),
		funnyVotes:  make(map[string]bool),
		accessToken: uuid.NewString(),
	}
	if r.metrics == nil {
		r.metrics = nopMetrics{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.CreatedAt = r.now()
	r.recorder = newRecorder(id, deps.Results)
	r.timers = timer.NewSet(deps.Timers, r.post)

	machine, err := state.NewBaseStateMachine(state.PhaseLobby, r.phaseStates()...)
	if err != nil {
		// phaseStates always covers every phase
		panic(err)
	}
	if err := machine.AddTransitions(state.DefaultTransitions); err != nil {
		panic(err)
	}
	r.machine = machine

	go r.loop()
	go r.publishLoop()
	return r
}

// --- serialized execution ---

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case op := <-r.ops:
			op()
		case <-r.closeChan:
			return
		}
	}
}

// post queues fn without waiting for it. Timer callbacks arrive here.
func (r *Room) post(fn func()) {
	select {
	case r.ops <- fn:
	case <-r.closeChan:
	}
}

// do runs fn on the worker and waits for its result.
func (r *Room) do(fn func() error) error {
	result := make(chan error, 1)
	select {
	case r.ops <- func() { result <- fn() }:
	case <-r.closeChan:
		return ErrRoomClosed
	}
	select {
	case err := <-result:
		return err
	case <-r.closeChan:
		return ErrRoomClosed
	}
}

// mutate runs fn on the worker and publishes a snapshot when it succeeds.
func (r *Room) mutate(fn func() error) error {
	return r.do(func() error {
		if err := fn(); err != nil {
			return err
		}
		r.publish()
		return nil
	})
}

// schedule arms a named timer whose callback runs on the worker and is
// followed by a snapshot.
func (r *Room) schedule(name string, delay time.Duration, fn func()) {
	r.timers.Schedule(name, delay, func() {
		fn()
		r.publish()
	})
}

// Close stops the worker and every pending timer. The room rejects further
// operations with ErrRoomClosed.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		r.timers.CancelAll()
		close(r.closeChan)
		<-r.done
		r.recorder.stop()
	})
}

// --- publishing ---

func (r *Room) publish() {
	pub := publication{snap: r.snapshot(), token: r.rotatedToken}
	r.rotatedToken = ""
	// Keep only the newest snapshot if the publisher is behind. A rotated
	// token from a dropped publication is carried over unless a newer one
	// replaces it.
	select {
	case r.snapshots <- pub:
	default:
		select {
		case old := <-r.snapshots:
			if pub.token == "" {
				pub.token = old.token
			}
		default:
		}
		r.snapshots <- pub
	}
}

func (r *Room) publishLoop() {
	for {
		select {
		case pub := <-r.snapshots:
			if r.broadcaster == nil {
				continue
			}
			if pub.token != "" {
				r.sendToken(pub.token)
			}
			data, err := json.Marshal(pub.snap)
			if err != nil {
				logger.Log.Errorw("marshal snapshot failed", "room", r.ID, "error", err)
				continue
			}
			if err := r.broadcaster.BroadcastToRoom(r.ID, network.MsgTypeRoomState, data); err != nil {
				logger.Log.Warnw("broadcast snapshot failed", "room", r.ID, "error", err)
			}
		case <-r.closeChan:
			return
		}
	}
}

// sendToken gives the players still in the room the token that replaced the
// one they joined with.
func (r *Room) sendToken(token string) {
	pb, ok := r.broadcaster.(PlayerBroadcaster)
	if !ok {
		return
	}
	data, err := network.Encode(network.TokenReply{RoomID: r.ID, AccessToken: token})
	if err != nil {
		logger.Log.Errorw("encode token failed", "room", r.ID, "error", err)
		return
	}
	if err := pb.BroadcastToPlayers(r.ID, network.MsgTypeAccessToken, data); err != nil {
		logger.Log.Warnw("send rotated token failed", "room", r.ID, "error", err)
	}
}

// --- public operations ---

// Join adds a player under connection. Only allowed in LOBBY.
func (r *Room) Join(connection, displayName string) (JoinResult, error) {
	var res JoinResult
	err := r.mutate(func() error {
		name := strings.TrimSpace(displayName)
		if name == "" {
			return ErrInvalidName
		}
		if r.retired {
			return ErrRoomClosed
		}
		if phase := r.machine.Phase(); phase != state.PhaseLobby {
			return fmt.Errorf("%w: cannot join during %s", ErrWrongPhase, phase)
		}
		if _, ok := r.players[connection]; ok {
			return ErrAlreadyJoined
		}
		if len(r.players) >= r.config.MaxPlayers {
			return fmt.Errorf("%w: %d/%d", ErrRoomFull, len(r.players), r.config.MaxPlayers)
		}
		for _, p := range r.players {
			if strings.EqualFold(p.DisplayName, name) {
				return fmt.Errorf("%w: %s", ErrNameTaken, name)
			}
		}

		p := &Player{
			ID:          uuid.NewString(),
			DisplayName: name,
			JoinedAt:    r.now(),
			Connection:  connection,
		}
		r.players[connection] = p
		r.names[p.ID] = name
		r.scores[p.ID] = 0
		r.lives[p.ID] = r.config.MaxLives
		r.metrics.IncOnlinePlayers()

		logger.Log.Infow("player joined", "room", r.ID, "player", p.ID, "name", name)
		res = JoinResult{PlayerID: p.ID, DisplayName: name, AccessToken: r.accessToken}
		return nil
	})
	return res, err
}

// Remove drops the player attached to connection. An emptied room resets.
func (r *Room) Remove(connection string) error {
	return r.mutate(func() error {
		p, ok := r.players[connection]
		if !ok {
			return ErrPlayerNotFound
		}
		delete(r.players, connection)
		r.metrics.DecOnlinePlayers()
		logger.Log.Infow("player left", "room", r.ID, "player", p.ID, "phase", r.machine.Phase())

		if len(r.players) == 0 {
			r.reset()
		}
		return nil
	})
}

// Start loads a question pack if needed and opens the first question.
func (r *Room) Start(token string) error {
	return r.mutate(func() error {
		if err := r.authorize(token); err != nil {
			return err
		}
		if phase := r.machine.Phase(); phase != state.PhaseLobby {
			return fmt.Errorf("%w: cannot start during %s", ErrWrongPhase, phase)
		}
		if len(r.players) < 1 {
			return ErrNotEnoughPlayers
		}
		if len(r.questionPool) == 0 {
			if err := r.loadQuestionPack(); err != nil {
				return err
			}
		}
		if !r.advanceQuestion() {
			return ErrNoQuestions
		}

		r.gameKey = uuid.NewString()
		r.gameStartedAt = r.now()
		r.recorder.createGame(r.gameKey, len(r.players), r.config.MaxRounds)

		logger.Log.Infow("game started", "room", r.ID, "players", len(r.players), "questions", len(r.questionPool))
		return r.transition(state.PhaseAsking)
	})
}

// SubmitAnswer records a player's choice for the current question. The
// submission that completes the round, and only that one, locks answers.
func (r *Room) SubmitAnswer(token, playerID string, choiceIndex int) error {
	return r.mutate(func() error {
		if err := r.authorize(token); err != nil {
			return err
		}
		if phase := r.machine.Phase(); phase != state.PhaseAsking {
			return fmt.Errorf("%w: cannot answer during %s", ErrWrongPhase, phase)
		}
		if r.playerByID(playerID) == nil {
			return ErrPlayerNotFound
		}
		if r.eliminated[playerID] {
			return ErrPlayerEliminated
		}
		if choiceIndex < 0 || choiceIndex >= question.OptionCount {
			return fmt.Errorf("%w: %d", ErrInvalidChoice, choiceIndex)
		}
		if _, ok := r.answers[playerID]; ok {
			return ErrAlreadyAnswered
		}

		r.answers[playerID] = Answer{ChoiceIndex: choiceIndex, SubmittedAt: r.now()}
		r.metrics.IncAnswers()

		if r.allAnswered() {
			// Answers are serialized, so this cannot race; a failure here is a
			// defect and must not fail a valid submission.
			if err := r.transition(state.PhaseAnswersLocked); err != nil {
				logger.Log.Errorw("lock answers failed", "room", r.ID, "error", err)
			}
		}
		return nil
	})
}

// VoteFunny flags the current question as funny for a player. Repeated votes
// are ignored.
func (r *Room) VoteFunny(token, playerID string) error {
	return r.mutate(func() error {
		if err := r.authorize(token); err != nil {
			return err
		}
		switch phase := r.machine.Phase(); phase {
		case state.PhaseAsking, state.PhaseAnswersLocked, state.PhaseReveal, state.PhaseRoundEnd:
		default:
			return fmt.Errorf("%w: cannot vote during %s", ErrWrongPhase, phase)
		}
		if r.playerByID(playerID) == nil {
			return ErrPlayerNotFound
		}
		r.funnyVotes[playerID] = true
		return nil
	})
}

// Reset returns the room to LOBBY from any phase and rotates the token.
func (r *Room) Reset(token string) error {
	return r.mutate(func() error {
		if err := r.authorize(token); err != nil {
			return err
		}
		r.reset()
		return nil
	})
}

// ForceReset resets without a token. It is meant for operators.
func (r *Room) ForceReset() error {
	return r.mutate(func() error {
		r.reset()
		return nil
	})
}

// Snapshot returns the viewer state after all queued operations.
func (r *Room) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := r.do(func() error {
		snap = r.snapshot()
		return nil
	})
	return snap, err
}

// retire marks an empty room as closing so no player can join it any more.
// It reports false when the room still has players.
func (r *Room) retire() bool {
	empty := false
	err := r.do(func() error {
		if len(r.players) == 0 {
			r.retired = true
			empty = true
		}
		return nil
	})
	return empty || errors.Is(err, ErrRoomClosed)
}

// Phase returns the current phase.
func (r *Room) Phase() state.Phase {
	return r.machine.Phase()
}

// --- internals (worker only) ---

func (r *Room) authorize(token string) error {
	if token == "" || token != r.accessToken {
		return ErrUnauthorized
	}
	return nil
}

// transition changes phase and reports metrics. Entry side effects run
// before it returns.
func (r *Room) transition(to state.Phase) error {
	from := r.machine.Phase()
	if err := r.machine.ChangeState(to); err != nil {
		return err
	}
	r.metrics.ObserveTransition(from, to)
	logger.Log.Debugw("phase changed", "room", r.ID, "from", from, "to", to)
	return nil
}

// transitionFromTimer is used by timer callbacks, which have no caller to
// report to.
func (r *Room) transitionFromTimer(to state.Phase) {
	if err := r.transition(to); err != nil {
		logger.Log.Warnw("timer transition dropped", "room", r.ID, "to", to, "error", err)
	}
}

func (r *Room) reset() {
	r.timers.CancelAll()
	from := r.machine.Phase()
	// A game cut short still gets closed off in the results.
	r.completeGame()
	r.machine.Reset(state.PhaseLobby)

	r.questionPool = nil
	r.roundIndex = 0
	r.current = nil
	r.answers = make(map[string]Answer)
	r.funnyVotes = make(map[string]bool)
	r.eliminated = make(map[string]bool)
	r.lastRound = nil
	r.winner = nil
	r.gameKey = ""

	r.scores = make(map[string]int, len(r.players))
	r.lives = make(map[string]int, len(r.players))
	r.names = make(map[string]string, len(r.players))
	for _, p := range r.players {
		r.scores[p.ID] = 0
		r.lives[p.ID] = r.config.MaxLives
		r.names[p.ID] = p.DisplayName
	}

	r.accessToken = uuid.NewString()
	if len(r.players) > 0 {
		r.rotatedToken = r.accessToken
	}
	if from != state.PhaseLobby {
		r.metrics.ObserveTransition(from, state.PhaseLobby)
	}
	logger.Log.Infow("room reset", "room", r.ID, "from", from, "players", len(r.players))
}

func (r *Room) playerByID(playerID string) *Player {
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// activePlayers counts connected players that are not eliminated.
func (r *Room) activePlayers() int {
	n := 0
	for _, p := range r.players {
		if !r.eliminated[p.ID] {
			n++
		}
	}
	return n
}

// allAnswered reports whether every connected, non-eliminated player has an
// answer recorded. Disconnected players do not count.
func (r *Room) allAnswered() bool {
	active, answered := 0, 0
	for _, p := range r.players {
		if r.eliminated[p.ID] {
			continue
		}
		active++
		if _, ok := r.answers[p.ID]; ok {
			answered++
		}
	}
	return active > 0 && answered == active
}

func (r *Room) loadQuestionPack() error {
	if r.questions == nil {
		return ErrNoQuestions
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.sourceTimeout())
	defer cancel()

	pack, err := r.questions.FetchPack(ctx, r.config.MaxRounds, r.config.TypeMix)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoQuestions, err)
	}
	if len(pack) == 0 {
		return ErrNoQuestions
	}
	if len(pack) > r.config.MaxRounds {
		pack = pack[:r.config.MaxRounds]
	}
	r.questionPool = pack
	return nil
}

// advanceQuestion serves the next question of the pool. It returns false
// when the pool is exhausted.
func (r *Room) advanceQuestion() bool {
	if r.roundIndex >= len(r.questionPool) {
		return false
	}
	q := r.questionPool[r.roundIndex]
	r.current = &q
	r.roundIndex++
	r.answers = make(map[string]Answer)
	r.funnyVotes = make(map[string]bool)
	r.lastRound = nil

	if r.questions != nil {
		go func(src question.Source, id string) {
			ctx, cancel := context.WithTimeout(context.Background(), r.sourceTimeout())
			defer cancel()
			if err := src.MarkUsed(ctx, id); err != nil {
				logger.Log.Warnw("mark question used failed", "room", r.ID, "question", id, "error", err)
			}
		}(r.questions, q.ID)
	}
	return true
}

func (r *Room) sourceTimeout() time.Duration {
	if r.config.SourceTimeout > 0 {
		return r.config.SourceTimeout
	}
	return 5 * time.Second
}
