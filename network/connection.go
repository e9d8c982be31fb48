// network/connection.go
package network

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Packet struct {
	MsgID  uint16
	Data   []byte
	Length uint16
}

type Connection interface {
	Send(msgID uint16, data []byte) error
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
	ReadPacket() (*Packet, error)
}

type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	heartbeat time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

// EncodePacket 封包: 2字节消息ID + 2字节数据长度 + 数据
func EncodePacket(msgID uint16, data []byte) ([]byte, error) {
	if len(data) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
	}
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)
	return packet, nil
}

// DecodePacket 拆包
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) < 4 {
		return nil, io.ErrShortBuffer
	}

	msgID := binary.BigEndian.Uint16(data[0:2])
	length := binary.BigEndian.Uint16(data[2:4])

	if len(data) < int(4+length) {
		return nil, io.ErrShortBuffer
	}

	return &Packet{
		MsgID:  msgID,
		Length: length,
		Data:   data[4 : 4+length],
	}, nil
}

func (c *WSConnection) Send(msgID uint16, data []byte) error {
	packet, err := EncodePacket(msgID, data)
	if err != nil {
		return err
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	if c.heartbeat > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.heartbeat))
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, packet)
}

// ReadPacket blocks for the next frame. Every frame read, heartbeats
// included, pushes the read deadline forward.
func (c *WSConnection) ReadPacket() (*Packet, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if c.heartbeat > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
	}
	return DecodePacket(data)
}

func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.heartbeat = interval
	c.conn.SetReadDeadline(time.Now().Add(interval * 2))
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
