package transport

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"browser-bridge/protocol"
)

func dialWS(t *testing.T, s *WSServer) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Dial returns as soon as the client sees 101; give the handler a
	// moment to store the connection.
	require.Eventually(t, func() bool { return s.current() != nil }, time.Second, time.Millisecond)
	return conn
}

func TestWSServerNoPeer(t *testing.T) {
	s, err := ListenWS("127.0.0.1:0", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// Without an attached extension the channel looks closed, which the
	// bridge treats as "disconnected, retry later".
	_, err = s.Read(make([]byte, 4))
	assert.Equal(t, io.EOF, err)

	_, err = s.Write([]byte("frame"))
	assert.ErrorIs(t, err, ErrNoPeer)
}

func TestWSServerRoundTrip(t *testing.T) {
	s, err := ListenWS("127.0.0.1:0", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	conn := dialWS(t, s)

	// Extension → bridge: a binary message carrying one frame.
	frame, err := protocol.Encode(map[string]any{"method": "ping"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	msg, err := protocol.ReadFrame(s)
	require.NoError(t, err)
	assert.Equal(t, "ping", msg.Method)

	// Bridge → extension.
	out, err := protocol.Encode(map[string]any{"id": 1, "method": "tabs/list", "params": map[string]any{}})
	require.NoError(t, err)
	n, err := s.Write(out)
	require.NoError(t, err)
	require.Equal(t, len(out), n)

	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)

	echo, err := protocol.ReadFrame(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, echo.ID)
	assert.Equal(t, "tabs/list", echo.Method)
}

func TestWSServerPeerGone(t *testing.T) {
	s, err := ListenWS("127.0.0.1:0", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	conn := dialWS(t, s)
	conn.Close()

	// The dead websocket surfaces as end of stream, the same disconnect
	// signal the stdio pipe gives.
	buf := make([]byte, 4)
	require.Eventually(t, func() bool {
		_, err := s.Read(buf)
		return err == io.EOF
	}, time.Second, 10*time.Millisecond)
}
