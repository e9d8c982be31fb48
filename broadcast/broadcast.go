// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/triviaserver/logger"
	"github.com/wfunc/triviaserver/session"
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
}

// SessionSource is what the broadcaster needs from the session manager.
type SessionSource interface {
	GetByRoomID(roomID string) []*session.Session
	All() []*session.Session
}

// 基于房间的广播器. Players and watchers bound to a room both receive its
// messages.
type RoomBroadcaster struct {
	sessions SessionSource
}

func NewRoomBroadcaster(sessions SessionSource) *RoomBroadcaster {
	return &RoomBroadcaster{sessions: sessions}
}

// BroadcastToRoom sends to every session in the room. A failed send is logged
// and skipped; the reader side notices the broken connection and cleans up.
func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	sessions := b.sessions.GetByRoomID(roomID)
	if len(sessions) == 0 {
		return nil
	}
	for _, s := range sessions {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Debugw("broadcast send failed", "room", roomID, "session", s.ID, "error", err)
			continue
		}
	}
	return nil
}

// BroadcastToPlayers sends only to the sessions that joined the room as
// players.
func (b *RoomBroadcaster) BroadcastToPlayers(roomID string, msgID uint16, data []byte) error {
	for _, s := range b.sessions.GetByRoomID(roomID) {
		if s.Role() != session.RolePlayer {
			continue
		}
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Debugw("player send failed", "room", roomID, "session", s.ID, "error", err)
		}
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, s := range b.sessions.All() {
		if err := s.Send(msgID, data); err != nil {
			continue
		}
	}
	return nil
}
