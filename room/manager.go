package room

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wfunc/triviaserver/logger"
	"github.com/wfunc/triviaserver/state"
)

// DefaultRoomID is the room clients land in when they do not name one.
const DefaultRoomID = "default"

// RoomGauge receives the number of live rooms.
type RoomGauge interface {
	SetActiveRooms(count int)
}

// Info is a short description of a room for listings.
type Info struct {
	ID      string      `json:"id"`
	Phase   state.Phase `json:"phase"`
	Players int         `json:"players"`
}

// Manager 管理所有房间
type Manager struct {
	rooms    map[string]*Room
	mutex    sync.RWMutex
	config   Config
	deps     Deps
	gauge    RoomGauge
	maxRooms int
}

// NewRoomManager 创建一个新的房间管理器. Every room it creates shares cfg
// and deps.
func NewRoomManager(cfg Config, deps Deps, gauge RoomGauge) *Manager {
	return &Manager{
		rooms:  make(map[string]*Room),
		config: cfg,
		deps:   deps,
		gauge:  gauge,
	}
}

// SetMaxRooms caps how many rooms may exist at once. Zero means no cap.
func (m *Manager) SetMaxRooms(n int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.maxRooms = n
}

// CreateRoom 创建一个新房间并添加到管理器
func (m *Manager) CreateRoom(id string) (*Room, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.rooms[id]; exists {
		return nil, ErrRoomExists
	}
	return m.createLocked(id)
}

// GetOrCreateRoom returns the room called id, creating it when missing.
func (m *Manager) GetOrCreateRoom(id string) (*Room, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		return room, nil
	}
	return m.createLocked(id)
}

func (m *Manager) createLocked(id string) (*Room, error) {
	if m.maxRooms > 0 && len(m.rooms) >= m.maxRooms {
		return nil, fmt.Errorf("%w: %d", ErrTooManyRooms, m.maxRooms)
	}
	room := NewRoom(id, m.config, m.deps)
	m.rooms[id] = room
	m.updateGauge()
	logger.Log.Infow("room created", "room", id)
	return room, nil
}

// ReclaimIfIdle removes the room called id when it has no players and
// inUse reports nothing else depends on it. The default room is never
// reclaimed.
func (m *Manager) ReclaimIfIdle(id string, inUse func() bool) bool {
	if id == DefaultRoomID {
		return false
	}
	m.mutex.Lock()
	room, exists := m.rooms[id]
	if !exists || (inUse != nil && inUse()) || !room.retire() {
		m.mutex.Unlock()
		return false
	}
	delete(m.rooms, id)
	m.updateGauge()
	m.mutex.Unlock()

	room.Close()
	logger.Log.Infow("idle room reclaimed", "room", id)
	return true
}

// RemoveRoom 从管理器中移除并关闭一个房间
func (m *Manager) RemoveRoom(id string) bool {
	m.mutex.Lock()
	room, exists := m.rooms[id]
	if exists {
		delete(m.rooms, id)
		m.updateGauge()
	}
	m.mutex.Unlock()

	if exists {
		room.Close()
		logger.Log.Infow("room removed", "room", id)
	}
	return exists
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// List describes every room, ordered by ID.
func (m *Manager) List() []Info {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mutex.RUnlock()

	infos := make([]Info, 0, len(rooms))
	for _, room := range rooms {
		snap, err := room.Snapshot()
		if err != nil {
			continue
		}
		infos = append(infos, Info{ID: room.ID, Phase: snap.Phase, Players: len(snap.Players)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Count returns the number of rooms.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// CloseAll closes and forgets every room.
func (m *Manager) CloseAll() {
	m.mutex.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.updateGauge()
	m.mutex.Unlock()

	for _, room := range rooms {
		room.Close()
	}
}

func (m *Manager) updateGauge() {
	if m.gauge != nil {
		m.gauge.SetActiveRooms(len(m.rooms))
	}
}
