package broadcast

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/triviaserver/network"
	"github.com/wfunc/triviaserver/session"
)

type recordingConn struct {
	mu   sync.Mutex
	sent []uint16
	fail bool
}

func (c *recordingConn) Send(msgID uint16, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.sent = append(c.sent, msgID)
	return nil
}
func (c *recordingConn) Close() error                         { return nil }
func (c *recordingConn) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (c *recordingConn) SetHeartbeat(interval time.Duration)  {}
func (c *recordingConn) ReadPacket() (*network.Packet, error) { return nil, nil }

func TestRoomBroadcaster_BroadcastToRoom(t *testing.T) {
	sessions := session.NewManager()
	player, watcher, broken, elsewhere := &recordingConn{}, &recordingConn{}, &recordingConn{fail: true}, &recordingConn{}

	add := func(id string, conn *recordingConn, roomID string, role session.Role) {
		s := session.NewSession(id, conn, nil)
		s.Bind(roomID, "", role)
		sessions.Add(s)
	}
	add("s1", player, "default", session.RolePlayer)
	add("s2", watcher, "default", session.RoleWatcher)
	add("s3", broken, "default", session.RolePlayer)
	add("s4", elsewhere, "other", session.RolePlayer)

	b := NewRoomBroadcaster(sessions)
	require.NoError(t, b.BroadcastToRoom("default", network.MsgTypeRoomState, []byte("{}")))

	assert.Equal(t, []uint16{network.MsgTypeRoomState}, player.sent)
	assert.Equal(t, []uint16{network.MsgTypeRoomState}, watcher.sent)
	assert.Empty(t, elsewhere.sent)

	require.NoError(t, b.BroadcastToRoom("empty", network.MsgTypeRoomState, nil))

	require.NoError(t, b.BroadcastToAll(network.MsgTypeHeartbeat, nil))
	assert.Equal(t, []uint16{network.MsgTypeHeartbeat}, elsewhere.sent)
}

func TestRoomBroadcaster_BroadcastToPlayers(t *testing.T) {
	sessions := session.NewManager()
	player, watcher := &recordingConn{}, &recordingConn{}

	p := session.NewSession("p", player, nil)
	p.Bind("default", "player-1", session.RolePlayer)
	sessions.Add(p)
	w := session.NewSession("w", watcher, nil)
	w.Bind("default", "", session.RoleWatcher)
	sessions.Add(w)

	b := NewRoomBroadcaster(sessions)
	require.NoError(t, b.BroadcastToPlayers("default", network.MsgTypeAccessToken, []byte("{}")))

	assert.Equal(t, []uint16{network.MsgTypeAccessToken}, player.sent)
	assert.Empty(t, watcher.sent)
}
