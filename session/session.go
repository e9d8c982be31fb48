// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/triviaserver/network"
	"golang.org/x/time/rate"
)

// Role says what a session is doing in its room.
type Role int

const (
	RoleNone Role = iota
	RolePlayer
	RoleWatcher
)

type Session struct {
	ID         string
	Conn       network.Connection
	CreatedAt  time.Time
	limiter    *rate.Limiter
	mutex      sync.RWMutex
	roomID     string
	playerID   string
	role       Role
	lastActive time.Time
	data       map[string]interface{} // 自定义数据
}

// NewSession wraps conn. A nil limiter allows every message.
func NewSession(id string, conn network.Connection, limiter *rate.Limiter) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		limiter:    limiter,
		lastActive: now,
		data:       make(map[string]interface{}),
	}
}

func (s *Session) Set(key string, value interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data[key] = value
}

func (s *Session) Get(key string) interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.data[key]
}

// Bind attaches the session to a room. playerID is empty for watchers.
func (s *Session) Bind(roomID, playerID string, role Role) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomID = roomID
	s.playerID = playerID
	s.role = role
}

// Unbind detaches the session from its room and returns the room it left.
func (s *Session) Unbind() (roomID string, role Role) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	roomID, role = s.roomID, s.role
	s.roomID, s.playerID, s.role = "", "", RoleNone
	return roomID, role
}

func (s *Session) RoomID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomID
}

func (s *Session) PlayerID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.playerID
}

func (s *Session) Role() Role {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.role
}

// Allow reports whether another inbound message fits the rate limit.
func (s *Session) Allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// Touch records inbound activity.
func (s *Session) Touch() {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) Send(msgID uint16, data []byte) error {
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// GetByRoomID returns every session bound to roomID, players and watchers.
func (m *Manager) GetByRoomID(roomID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.RoomID() == roomID {
			result = append(result, session)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// All returns a copy of every session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}
