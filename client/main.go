package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/wfunc/triviaserver/logger"
	"github.com/wfunc/triviaserver/network"
	"github.com/wfunc/triviaserver/room"
)

const help = `commands:
  start          start the game
  a <0-3>        answer the current question
  vote           vote the current question funny
  reset          return the room to the lobby
  leave          leave the room
  quit           exit`

// identity is what the server told us when we joined.
type identity struct {
	mutex    sync.Mutex
	playerID string
	token    string
}

func (id *identity) set(reply network.JoinedReply) {
	id.mutex.Lock()
	defer id.mutex.Unlock()
	id.playerID = reply.PlayerID
	id.token = reply.AccessToken
}

func (id *identity) setToken(token string) {
	id.mutex.Lock()
	defer id.mutex.Unlock()
	id.token = token
}

func (id *identity) get() (playerID, token string) {
	id.mutex.Lock()
	defer id.mutex.Unlock()
	return id.playerID, id.token
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	roomID := flag.String("room", "", "room to join, empty for the default room")
	name := flag.String("name", "", "display name")
	watch := flag.Bool("watch", false, "watch the room instead of playing")
	token := flag.String("token", "", "room access token, for watchers that start or reset games")
	flag.Parse()

	logger.Init("warn")
	defer logger.Sync()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Log.Fatalf("Dial failed: %v", err)
	}
	conn := network.NewWSConnection(ws)
	defer conn.Close()

	me := &identity{token: *token}
	done := make(chan struct{})
	go readLoop(conn, me, done)

	in := bufio.NewScanner(os.Stdin)
	if *watch {
		err = send(conn, network.MsgTypeWatchRoom, network.WatchRequest{RoomID: *roomID})
	} else {
		if *name == "" {
			fmt.Print("name: ")
			if in.Scan() {
				*name = strings.TrimSpace(in.Text())
			}
		}
		err = send(conn, network.MsgTypeJoinRoom, network.JoinRequest{RoomID: *roomID, DisplayName: *name})
	}
	if err != nil {
		logger.Log.Fatalf("Write failed: %v", err)
	}
	fmt.Println(help)

	lines := make(chan string)
	go func() {
		for in.Scan() {
			lines <- strings.TrimSpace(in.Text())
		}
		close(lines)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			return
		case line, ok := <-lines:
			if !ok || line == "quit" {
				return
			}
			if err := runCommand(conn, me, line); err != nil {
				fmt.Println("!", err)
			}
		}
	}
}

func runCommand(conn network.Connection, me *identity, line string) error {
	playerID, token := me.get()
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "start":
		return send(conn, network.MsgTypeStartGame, network.TokenRequest{AccessToken: token})
	case "reset":
		return send(conn, network.MsgTypeResetRoom, network.TokenRequest{AccessToken: token})
	case "vote":
		return send(conn, network.MsgTypeVoteFunny, network.VoteRequest{AccessToken: token, PlayerID: playerID})
	case "leave":
		return send(conn, network.MsgTypeLeaveRoom, struct{}{})
	case "a":
		if len(fields) != 2 {
			return fmt.Errorf("usage: a <0-3>")
		}
		choice, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("bad choice %q", fields[1])
		}
		return send(conn, network.MsgTypeSubmitAnswer, network.AnswerRequest{AccessToken: token, PlayerID: playerID, ChoiceIndex: choice})
	default:
		fmt.Println(help)
		return nil
	}
}

func readLoop(conn network.Connection, me *identity, done chan<- struct{}) {
	defer close(done)
	for {
		packet, err := conn.ReadPacket()
		if err != nil {
			fmt.Println("disconnected:", err)
			return
		}
		switch packet.MsgID {
		case network.MsgTypeJoined:
			var reply network.JoinedReply
			if err := network.Decode(packet, &reply); err != nil {
				logger.Log.Warnw("bad joined reply", "error", err)
				continue
			}
			me.set(reply)
			fmt.Printf("joined %s as %s\n", reply.RoomID, reply.DisplayName)
		case network.MsgTypeAccessToken:
			var reply network.TokenReply
			if err := network.Decode(packet, &reply); err != nil {
				logger.Log.Warnw("bad token reply", "error", err)
				continue
			}
			me.setToken(reply.AccessToken)
			fmt.Println("room reset, new access token")
		case network.MsgTypeRoomState:
			var snap room.Snapshot
			if err := network.Decode(packet, &snap); err != nil {
				logger.Log.Warnw("bad room state", "error", err)
				continue
			}
			render(snap)
		case network.MsgTypeError:
			var reply network.ErrorReply
			if err := network.Decode(packet, &reply); err == nil {
				fmt.Printf("! %s: %s\n", reply.Code, reply.Message)
			}
		case network.MsgTypeAck:
		default:
			logger.Log.Debugw("unhandled message", "msg", packet.MsgID)
		}
	}
}

func render(snap room.Snapshot) {
	fmt.Printf("\n== %s  round %d/%d ==\n", snap.Phase, snap.RoundNumber, snap.MaxRounds)
	if snap.Question != nil {
		// Question arrives as a generic map; re-decode the fields we print.
		var q struct {
			Prompt       string   `json:"prompt"`
			Options      []string `json:"options"`
			CorrectIndex *int     `json:"correct_index"`
			Explanation  string   `json:"explanation"`
		}
		if data, err := json.Marshal(snap.Question); err == nil && json.Unmarshal(data, &q) == nil {
			fmt.Println(q.Prompt)
			for i, opt := range q.Options {
				mark := " "
				if q.CorrectIndex != nil && *q.CorrectIndex == i {
					mark = "*"
				}
				fmt.Printf(" %s%d) %s\n", mark, i, opt)
			}
			if q.Explanation != "" {
				fmt.Println("  ", q.Explanation)
			}
		}
	}
	for _, p := range snap.Players {
		status := ""
		if p.IsEliminated {
			status = " (out)"
		} else if p.HasAnsweredThisRound != nil && *p.HasAnsweredThisRound {
			status = " (answered)"
		}
		fmt.Printf("  %-16s %5d pts  %d lives%s\n", p.Name, p.Score, p.Lives, status)
	}
	if snap.Winner != nil {
		fmt.Printf("winner: %s with %d\n", snap.Winner.Name, snap.Winner.Score)
	}
}

func send(conn network.Connection, msgID uint16, v any) error {
	data, err := network.Encode(v)
	if err != nil {
		return err
	}
	return conn.Send(msgID, data)
}
