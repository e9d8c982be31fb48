package network

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePacket(t *testing.T) {
	raw, err := EncodePacket(MsgTypeSubmitAnswer, []byte(`{"choice_index":2}`))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 202, 0, 18}, raw[:4])

	p, err := DecodePacket(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(MsgTypeSubmitAnswer), p.MsgID)
	assert.Equal(t, uint16(18), p.Length)

	var req AnswerRequest
	require.NoError(t, Decode(p, &req))
	assert.Equal(t, 2, req.ChoiceIndex)
}

func TestDecodePacket_Short(t *testing.T) {
	_, err := DecodePacket([]byte{0, 1})
	assert.ErrorIs(t, err, io.ErrShortBuffer)

	// Header claims more data than the frame holds.
	_, err = DecodePacket([]byte{0, 1, 0, 9, 'x'})
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestEncodePacket_TooLarge(t *testing.T) {
	_, err := EncodePacket(MsgTypeRoomState, bytes.Repeat([]byte("a"), MaxPayload+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = Encode(strings.Repeat("a", MaxPayload))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestDecode_Malformed(t *testing.T) {
	var req JoinRequest
	err := Decode(&Packet{MsgID: MsgTypeJoinRoom, Data: []byte("{")}, &req)
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestWSConnection_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewWSConnection(ws)
		defer conn.Close()
		conn.SetHeartbeat(time.Second)
		for {
			p, err := conn.ReadPacket()
			if err != nil {
				return
			}
			if err := conn.Send(p.MsgID+1, p.Data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	client := NewWSConnection(ws)
	defer client.Close()

	body, err := Encode(JoinRequest{DisplayName: "Alice"})
	require.NoError(t, err)
	require.NoError(t, client.Send(MsgTypeJoinRoom, body))

	p, err := client.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, uint16(MsgTypeJoinRoom+1), p.MsgID)

	var echoed JoinRequest
	require.NoError(t, Decode(p, &echoed))
	assert.Equal(t, "Alice", echoed.DisplayName)
}
