package room

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/triviaserver/state"
	"github.com/wfunc/triviaserver/timer"
)

type gaugeRecorder struct {
	mu   sync.Mutex
	last int
}

func (g *gaugeRecorder) SetActiveRooms(count int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = count
}

func newTestManager(t *testing.T, gauge RoomGauge) *Manager {
	t.Helper()
	tm := timer.NewTimerManager()
	t.Cleanup(tm.Stop)
	m := NewRoomManager(manualConfig(), Deps{Timers: tm}, gauge)
	t.Cleanup(m.CloseAll)
	return m
}

func TestManager_CreateGetRemove(t *testing.T) {
	gauge := &gaugeRecorder{}
	m := newTestManager(t, gauge)

	r, err := m.CreateRoom("room1")
	require.NoError(t, err)
	assert.Equal(t, "room1", r.ID)
	assert.Equal(t, 1, gauge.last)

	_, err = m.CreateRoom("room1")
	assert.ErrorIs(t, err, ErrRoomExists)

	got, ok := m.GetRoom("room1")
	assert.True(t, ok)
	assert.Same(t, r, got)

	assert.True(t, m.RemoveRoom("room1"))
	assert.False(t, m.RemoveRoom("room1"))
	_, ok = m.GetRoom("room1")
	assert.False(t, ok)
	assert.Equal(t, 0, gauge.last)

	_, err = r.Snapshot()
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestManager_GetOrCreateRoom(t *testing.T) {
	m := newTestManager(t, nil)

	a, err := m.GetOrCreateRoom(DefaultRoomID)
	require.NoError(t, err)
	b, err := m.GetOrCreateRoom(DefaultRoomID)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Count())
}

func TestManager_RoomsAreIndependent(t *testing.T) {
	m := newTestManager(t, nil)

	a, err := m.GetOrCreateRoom("a")
	require.NoError(t, err)
	b, err := m.GetOrCreateRoom("b")
	require.NoError(t, err)

	res, err := a.Join("conn-1", "Alice")
	require.NoError(t, err)
	_, err = b.Join("conn-1", "Alice")
	require.NoError(t, err, "same connection and name are fine in another room")

	require.NoError(t, a.Start(res.AccessToken))
	assert.ErrorIs(t, b.Start(res.AccessToken), ErrUnauthorized)

	assert.Equal(t, []Info{
		{ID: "a", Phase: state.PhaseAsking, Players: 1},
		{ID: "b", Phase: state.PhaseLobby, Players: 1},
	}, m.List())
}

func TestManager_CloseAll(t *testing.T) {
	gauge := &gaugeRecorder{}
	m := newTestManager(t, gauge)
	_, err := m.GetOrCreateRoom("a")
	require.NoError(t, err)
	_, err = m.GetOrCreateRoom("b")
	require.NoError(t, err)
	assert.Equal(t, 2, gauge.last)

	m.CloseAll()
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, 0, gauge.last)
	assert.Empty(t, m.List())
}

func TestManager_MaxRooms(t *testing.T) {
	m := newTestManager(t, nil)
	m.SetMaxRooms(2)

	_, err := m.GetOrCreateRoom(DefaultRoomID)
	require.NoError(t, err)
	_, err = m.GetOrCreateRoom("a")
	require.NoError(t, err)

	_, err = m.GetOrCreateRoom("b")
	assert.ErrorIs(t, err, ErrTooManyRooms)
	_, err = m.CreateRoom("b")
	assert.ErrorIs(t, err, ErrTooManyRooms)

	// Existing rooms are still handed out at the cap.
	_, err = m.GetOrCreateRoom("a")
	assert.NoError(t, err)
	assert.Equal(t, 2, m.Count())
}

func TestManager_ReclaimIfIdle(t *testing.T) {
	gauge := &gaugeRecorder{}
	m := newTestManager(t, gauge)

	def, err := m.GetOrCreateRoom(DefaultRoomID)
	require.NoError(t, err)
	r, err := m.GetOrCreateRoom("party")
	require.NoError(t, err)
	_, err = r.Join("conn-1", "Alice")
	require.NoError(t, err)

	assert.False(t, m.ReclaimIfIdle("party", nil), "room with players")
	require.NoError(t, r.Remove("conn-1"))
	assert.False(t, m.ReclaimIfIdle("party", func() bool { return true }), "room still watched")
	assert.False(t, m.ReclaimIfIdle(DefaultRoomID, nil))
	assert.False(t, m.ReclaimIfIdle("missing", nil))

	assert.True(t, m.ReclaimIfIdle("party", func() bool { return false }))
	_, ok := m.GetRoom("party")
	assert.False(t, ok)
	assert.Equal(t, 1, gauge.last)

	_, err = r.Join("conn-2", "Bob")
	assert.ErrorIs(t, err, ErrRoomClosed)
	_, err = def.Snapshot()
	assert.NoError(t, err)
}
