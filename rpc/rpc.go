package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/triviaserver/logger"
	"github.com/wfunc/triviaserver/models"
	"github.com/wfunc/triviaserver/room"
	"github.com/wfunc/triviaserver/services"
)

// ServiceName is the name AdminService methods are registered under.
const ServiceName = "AdminService"

const callTimeout = 10 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and serves the given admin service.
func NewServer(addr string, admin *AdminService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(ServiceName, admin); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr is the address actually bound.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operator actions over net/rpc.
type AdminService struct {
	rooms     *room.Manager
	questions *services.QuestionService
	policy    services.RetirePolicy
}

// NewAdminService creates the admin service. questions may be nil when no
// database is configured.
func NewAdminService(rooms *room.Manager, questions *services.QuestionService, policy services.RetirePolicy) *AdminService {
	return &AdminService{rooms: rooms, questions: questions, policy: policy}
}

type ListRoomsArgs struct {
	// Phase keeps only rooms in that phase when set.
	Phase string
}

type ListRoomsReply struct {
	Rooms []room.Info
}

// ListRooms describes every room.
func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, info := range a.rooms.List() {
		if args.Phase != "" && string(info.Phase) != args.Phase {
			continue
		}
		reply.Rooms = append(reply.Rooms, info)
	}
	return nil
}

type ResetRoomArgs struct {
	RoomID string
}

type ResetRoomReply struct {
	Phase string
}

// ResetRoom returns a room to the lobby without its access token.
func (a *AdminService) ResetRoom(args *ResetRoomArgs, reply *ResetRoomReply) error {
	r, ok := a.rooms.GetRoom(args.RoomID)
	if !ok {
		return room.ErrRoomNotFound
	}
	if err := r.ForceReset(); err != nil {
		return err
	}
	logger.Log.Infow("room reset by operator", "room", args.RoomID)
	reply.Phase = string(r.Phase())
	return nil
}

type QuestionStatsArgs struct {
	// Kind keeps only questions of that kind when set.
	Kind string
}

type QuestionStatsReply struct {
	Stats []models.QuestionStats
}

func (a *AdminService) QuestionStats(args *QuestionStatsArgs, reply *QuestionStatsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	stats, err := a.questions.QuestionStats(ctx)
	if err != nil {
		return err
	}
	for _, st := range stats {
		if args.Kind != "" && st.Kind != args.Kind {
			continue
		}
		reply.Stats = append(reply.Stats, st)
	}
	return nil
}

type RetireQuestionsArgs struct {
	// DryRun only reports what would be retired.
	DryRun bool
}

type RetireQuestionsReply struct {
	Report services.RetireReport
}

// RetireQuestions runs the retirement job now.
func (a *AdminService) RetireQuestions(args *RetireQuestionsArgs, reply *RetireQuestionsReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	var (
		report services.RetireReport
		err    error
	)
	if args.DryRun {
		report, err = a.questions.PreviewRetirement(ctx, a.policy)
	} else {
		report, err = a.questions.RetirePoorQuestions(ctx, a.policy)
	}
	if err != nil {
		return err
	}
	reply.Report = report
	return nil
}
