package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/triviaserver/logger"
	"github.com/wfunc/triviaserver/network"
	"github.com/wfunc/triviaserver/room"
	triviaserver_rpc "github.com/wfunc/triviaserver/rpc"
	"github.com/wfunc/triviaserver/session"
	"golang.org/x/time/rate"
)

// Metrics is what the server reports about connections and messages.
type Metrics interface {
	IncSessions()
	DecSessions()
	IncMessagesReceived(result string)
	ObserveMessageLatency(duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) IncSessions()                        {}
func (nopMetrics) DecSessions()                        {}
func (nopMetrics) IncMessagesReceived(string)          {}
func (nopMetrics) ObserveMessageLatency(time.Duration) {}

// Options configures the websocket front end.
type Options struct {
	Addr string
	// MessageRate and MessageBurst bound inbound messages per session. A zero
	// rate disables limiting.
	MessageRate  float64
	MessageBurst int
	// Heartbeat closes sessions silent for twice this long. Zero disables it.
	Heartbeat time.Duration
	// RPC is started and stopped with the server when set.
	RPC     *triviaserver_rpc.Server
	Metrics Metrics
}

type GameServer struct {
	opts           Options
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	metrics        Metrics
	httpServer     *http.Server
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
	wg             sync.WaitGroup
}

func NewGameServer(opts Options, rooms *room.Manager, sessions *session.Manager) *GameServer {
	s := &GameServer{
		opts:           opts,
		roomManager:    rooms,
		sessionManager: sessions,
		metrics:        opts.Metrics,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	return s
}

// Handler serves the websocket endpoint and a health check.
func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *GameServer) Start() error {
	if s.opts.RPC != nil {
		go s.opts.RPC.Start()
	}

	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Log.Infof("Game server listening on %s", s.opts.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes every session and waits for
// their handlers to finish.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		if s.opts.RPC != nil {
			s.opts.RPC.Stop()
		}
		if s.httpServer != nil {
			err = s.httpServer.Shutdown(ctx)
		}
		for _, sess := range s.sessionManager.All() {
			sess.Close()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
	})
	return err
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.shutdownChan:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConnection(network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(wsConn network.Connection) {
	var limiter *rate.Limiter
	if s.opts.MessageRate > 0 {
		burst := s.opts.MessageBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.opts.MessageRate), burst)
	}
	sess := session.NewSession(uuid.New().String(), wsConn, limiter)
	if s.opts.Heartbeat > 0 {
		wsConn.SetHeartbeat(s.opts.Heartbeat)
	}
	s.sessionManager.Add(sess)
	s.metrics.IncSessions()

	logger.Log.Infow("connection opened", "remote", wsConn.RemoteAddr().String(), "session", sess.GetID())

	defer func() {
		logger.Log.Infow("connection closed", "remote", wsConn.RemoteAddr().String(), "session", sess.GetID())
		s.leave(sess)
		s.sessionManager.Remove(sess.GetID())
		s.metrics.DecSessions()
		wsConn.Close()
	}()

	for {
		packet, err := wsConn.ReadPacket()
		if err != nil {
			return
		}
		s.handlePacket(sess, packet)
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	started := time.Now()
	sess.Touch()

	if packet.MsgID == network.MsgTypeHeartbeat {
		_ = sess.Send(network.MsgTypeHeartbeat, nil)
		return
	}

	result := "ok"
	if !sess.Allow() {
		result = "limited"
		s.replyError(sess, packet.MsgID, ErrRateLimited)
	} else if err := s.dispatch(sess, packet); err != nil {
		result = "error"
		s.replyError(sess, packet.MsgID, err)
	}
	s.metrics.IncMessagesReceived(result)
	s.metrics.ObserveMessageLatency(time.Since(started))
}

func (s *GameServer) dispatch(sess *session.Session, packet *network.Packet) error {
	switch packet.MsgID {
	case network.MsgTypeJoinRoom:
		return s.handleJoinRoom(sess, packet)
	case network.MsgTypeWatchRoom:
		return s.handleWatchRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		if s.leave(sess) == "" {
			return ErrNotInRoom
		}
		return s.ack(sess, packet.MsgID)
	case network.MsgTypeStartGame:
		return s.withToken(sess, packet, func(r *room.Room, token string) error {
			return r.Start(token)
		})
	case network.MsgTypeResetRoom:
		return s.withToken(sess, packet, func(r *room.Room, token string) error {
			return r.Reset(token)
		})
	case network.MsgTypeSubmitAnswer:
		return s.handleSubmitAnswer(sess, packet)
	case network.MsgTypeVoteFunny:
		return s.handleVoteFunny(sess, packet)
	default:
		logger.Log.Debugw("unknown message type", "session", sess.GetID(), "msg", packet.MsgID)
		return ErrUnknownMessage
	}
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) error {
	var req network.JoinRequest
	if err := network.Decode(packet, &req); err != nil {
		return err
	}
	if sess.Role() == session.RolePlayer {
		return room.ErrAlreadyJoined
	}
	roomID := roomIDOrDefault(req.RoomID)
	return s.enterRoom(roomID, func(r *room.Room) error {
		res, err := r.Join(sess.GetID(), req.DisplayName)
		if err != nil {
			return err
		}
		// A watcher that joins stops watching its old room.
		sess.Bind(roomID, res.PlayerID, session.RolePlayer)
		logger.Log.Infow("session joined room", "session", sess.GetID(), "room", roomID, "player", res.PlayerID)

		if err := s.send(sess, network.MsgTypeJoined, network.JoinedReply{
			RoomID:      roomID,
			PlayerID:    res.PlayerID,
			DisplayName: res.DisplayName,
			AccessToken: res.AccessToken,
		}); err != nil {
			return err
		}
		return s.sendSnapshot(sess, r)
	})
}

func (s *GameServer) handleWatchRoom(sess *session.Session, packet *network.Packet) error {
	var req network.WatchRequest
	if err := network.Decode(packet, &req); err != nil {
		return err
	}
	if sess.Role() == session.RolePlayer {
		return room.ErrAlreadyJoined
	}
	roomID := roomIDOrDefault(req.RoomID)
	if old := sess.RoomID(); old != "" && old != roomID {
		s.leave(sess)
	}
	return s.enterRoom(roomID, func(r *room.Room) error {
		sess.Bind(roomID, "", session.RoleWatcher)
		return s.sendSnapshot(sess, r)
	})
}

// enterRoom runs enter on the room called id, creating it if needed. A room
// reclaimed between lookup and use is looked up once more.
func (s *GameServer) enterRoom(id string, enter func(r *room.Room) error) error {
	for attempt := 0; ; attempt++ {
		r, err := s.roomManager.GetOrCreateRoom(id)
		if err != nil {
			return err
		}
		err = enter(r)
		if errors.Is(err, room.ErrRoomClosed) && attempt == 0 {
			continue
		}
		return err
	}
}

func (s *GameServer) handleSubmitAnswer(sess *session.Session, packet *network.Packet) error {
	var req network.AnswerRequest
	if err := network.Decode(packet, &req); err != nil {
		return err
	}
	r, playerID, err := s.playerRoom(sess, req.PlayerID)
	if err != nil {
		return err
	}
	if err := r.SubmitAnswer(req.AccessToken, playerID, req.ChoiceIndex); err != nil {
		return err
	}
	return s.ack(sess, packet.MsgID)
}

func (s *GameServer) handleVoteFunny(sess *session.Session, packet *network.Packet) error {
	var req network.VoteRequest
	if err := network.Decode(packet, &req); err != nil {
		return err
	}
	r, playerID, err := s.playerRoom(sess, req.PlayerID)
	if err != nil {
		return err
	}
	if err := r.VoteFunny(req.AccessToken, playerID); err != nil {
		return err
	}
	return s.ack(sess, packet.MsgID)
}

// withToken decodes a token-only request and runs op on the session's room.
// Watchers may issue these, which lets a host screen start and reset games.
func (s *GameServer) withToken(sess *session.Session, packet *network.Packet, op func(r *room.Room, token string) error) error {
	var req network.TokenRequest
	if err := network.Decode(packet, &req); err != nil {
		return err
	}
	r, err := s.currentRoom(sess)
	if err != nil {
		return err
	}
	if err := op(r, req.AccessToken); err != nil {
		return err
	}
	return s.ack(sess, packet.MsgID)
}

func (s *GameServer) currentRoom(sess *session.Session) (*room.Room, error) {
	roomID := sess.RoomID()
	if roomID == "" {
		return nil, ErrNotInRoom
	}
	r, ok := s.roomManager.GetRoom(roomID)
	if !ok {
		return nil, room.ErrRoomNotFound
	}
	return r, nil
}

// playerRoom resolves the acting player. A session only ever acts as the
// player it joined as.
func (s *GameServer) playerRoom(sess *session.Session, claimed string) (*room.Room, string, error) {
	if sess.Role() != session.RolePlayer {
		return nil, "", ErrNotInRoom
	}
	playerID := sess.PlayerID()
	if claimed != "" && claimed != playerID {
		return nil, "", room.ErrUnauthorized
	}
	r, err := s.currentRoom(sess)
	if err != nil {
		return nil, "", err
	}
	return r, playerID, nil
}

// leave detaches the session from its room, removing its player. It returns
// the room that was left, empty when there was none.
func (s *GameServer) leave(sess *session.Session) string {
	roomID, role := sess.Unbind()
	if roomID == "" {
		return ""
	}
	if role == session.RolePlayer {
		if r, ok := s.roomManager.GetRoom(roomID); ok {
			if err := r.Remove(sess.GetID()); err != nil && !errors.Is(err, room.ErrRoomClosed) {
				logger.Log.Warnw("remove player failed", "room", roomID, "session", sess.GetID(), "error", err)
			}
		}
	}
	s.roomManager.ReclaimIfIdle(roomID, func() bool {
		return len(s.sessionManager.GetByRoomID(roomID)) > 0
	})
	return roomID
}

func (s *GameServer) sendSnapshot(sess *session.Session, r *room.Room) error {
	snap, err := r.Snapshot()
	if err != nil {
		return err
	}
	return s.send(sess, network.MsgTypeRoomState, snap)
}

func (s *GameServer) ack(sess *session.Session, request uint16) error {
	return s.send(sess, network.MsgTypeAck, network.AckReply{Request: request})
}

func (s *GameServer) send(sess *session.Session, msgID uint16, v any) error {
	data, err := network.Encode(v)
	if err != nil {
		return err
	}
	return sess.Send(msgID, data)
}

func (s *GameServer) replyError(sess *session.Session, request uint16, err error) {
	reply := network.ErrorReply{Request: request, Code: ErrorCode(err), Message: err.Error()}
	data, mErr := json.Marshal(reply)
	if mErr != nil {
		return
	}
	if sErr := sess.Send(network.MsgTypeError, data); sErr != nil {
		logger.Log.Debugw("error reply failed", "session", sess.GetID(), "error", sErr)
	}
}

func roomIDOrDefault(id string) string {
	if id == "" {
		return room.DefaultRoomID
	}
	return id
}
