package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/triviaserver/broadcast"
	"github.com/wfunc/triviaserver/config"
	"github.com/wfunc/triviaserver/logger"
	"github.com/wfunc/triviaserver/monitor"
	"github.com/wfunc/triviaserver/persistence"
	"github.com/wfunc/triviaserver/question"
	"github.com/wfunc/triviaserver/room"
	triviaserver_rpc "github.com/wfunc/triviaserver/rpc"
	"github.com/wfunc/triviaserver/server"
	"github.com/wfunc/triviaserver/services"
	"github.com/wfunc/triviaserver/session"
	"github.com/wfunc/triviaserver/timer"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	deps := room.Deps{}
	var db persistence.Database
	switch cfg.Database.Driver {
	case "gorm", "pq":
		db, err = openDatabase(cfg.Database)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		logger.Log.Info("Database connection successful.")
		seedDatabase(ctx, db, cfg.Database.QuestionPack)
		deps.Questions = db
		deps.Results = db
	default:
		src, err := question.LoadMemorySource(cfg.Database.QuestionPack, time.Now().UnixNano())
		if err != nil {
			logger.Log.Fatalf("Failed to load question pack: %v", err)
		}
		deps.Questions = src
		logger.Log.Infow("Using in-memory questions, results are not persisted", "pack", cfg.Database.QuestionPack)
	}

	// Metrics
	mon := monitor.NewMonitor("trivia")
	mon.StartServer(cfg.Server.MetricsAddress)

	// Rooms
	timers := timer.NewTimerManager()
	defer timers.Stop()
	sessions := session.NewManager()

	deps.Timers = timers
	deps.Broadcaster = broadcast.NewRoomBroadcaster(sessions)
	deps.Metrics = mon
	rooms := room.NewRoomManager(room.ConfigFrom(cfg.Game), deps, mon)
	defer rooms.CloseAll()
	rooms.SetMaxRooms(cfg.Server.MaxRooms)
	if _, err := rooms.GetOrCreateRoom(room.DefaultRoomID); err != nil {
		logger.Log.Fatalf("Failed to create default room: %v", err)
	}

	// Question learning and admin RPC
	var store services.QuestionStore
	if db != nil {
		store = db
	}
	questionService := services.NewQuestionService(store)
	policy := services.PolicyFrom(cfg.Learning)
	if store != nil {
		go questionService.Run(ctx, cfg.Learning.Interval, policy)
	}

	rpcServer, err := triviaserver_rpc.NewServer(cfg.Server.RPCAddress,
		triviaserver_rpc.NewAdminService(rooms, questionService, policy))
	if err != nil {
		logger.Log.Fatalf("Failed to start RPC server: %v", err)
	}

	// Initialize Game Server
	gameServer := server.NewGameServer(server.Options{
		Addr:         cfg.Server.HTTPAddress,
		MessageRate:  cfg.Server.MessageRate,
		MessageBurst: cfg.Server.MessageBurst,
		Heartbeat:    cfg.Server.Heartbeat,
		RPC:          rpcServer,
		Metrics:      mon,
	}, rooms, sessions)

	go func() {
		<-ctx.Done()
		logger.Log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gameServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warnw("game server shutdown", "error", err)
		}
		if err := mon.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warnw("monitor shutdown", "error", err)
		}
	}()

	// Start Server
	logger.Log.Infof("Starting trivia server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}

func openDatabase(dc config.DatabaseConfig) (persistence.Database, error) {
	pg := dc.Postgres
	if dc.Driver == "pq" {
		return persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	}
	return persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
}

// seedDatabase adds the pack's new questions to the bank. Existing ones are
// left alone.
func seedDatabase(ctx context.Context, db persistence.Database, path string) {
	if path == "" {
		return
	}
	questions, err := question.LoadPack(path)
	if err != nil {
		logger.Log.Warnw("question pack not seeded", "path", path, "error", err)
		return
	}
	added, err := db.SeedQuestions(ctx, questions)
	if err != nil {
		logger.Log.Errorw("seeding questions failed", "path", path, "error", err)
		return
	}
	logger.Log.Infow("question pack seeded", "path", path, "added", added, "total", len(questions))
}
