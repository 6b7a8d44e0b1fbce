package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNoPeer is returned on writes while no extension is attached.
var ErrNoPeer = errors.New("transport: no websocket peer attached")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The extension connects from an extension origin, not from our own
	// host, so origin checking is disabled. The server only listens on
	// loopback.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSServer accepts a single extension connection over WebSocket and presents
// it as a Channel. Frames are carried in binary messages; Read exposes the
// concatenation of message payloads as one byte stream, so the frame codec
// on top is identical to the stdio path.
//
// While no extension is attached, Read returns io.EOF. The bridge's reader
// loop treats that as a disconnect and retries after its backoff delay, so
// attachment is picked up on the next attempt. A second extension connecting
// displaces the first; there is only ever one peer.
type WSServer struct {
	logger   *zap.Logger
	server   *http.Server
	listener net.Listener

	mu   sync.Mutex
	conn *websocket.Conn

	// In-progress message state, owned by the single reader goroutine.
	// readerConn remembers which connection reader belongs to, so a
	// reconnect never resumes a dead connection's half-read message.
	reader     io.Reader
	readerConn *websocket.Conn
}

// ListenWS starts a WebSocket endpoint at ws://<addr>/ws and returns the
// channel backed by whichever extension is currently attached.
func ListenWS(addr string, logger *zap.Logger) (*WSServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	s := &WSServer{logger: logger, listener: listener}

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/ws", s.handleUpgrade)
	s.server = &http.Server{
		Handler:     httpMux,
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("websocket server stopped", zap.Error(err))
		}
	}()

	return s, nil
}

// Addr returns the bound listen address, useful when listening on port 0.
func (s *WSServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *WSServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		// One peer at a time; the newer connection wins.
		s.conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("extension attached", zap.String("remote", r.RemoteAddr))
}

func (s *WSServer) current() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// detach clears conn if it is still the active connection.
func (s *WSServer) detach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
	s.logger.Info("extension detached")
}

// Read implements Channel. Only the bridge's reader goroutine calls it.
func (s *WSServer) Read(p []byte) (int, error) {
	conn := s.current()
	if conn == nil {
		return 0, io.EOF
	}
	if s.readerConn != conn {
		s.reader = nil
		s.readerConn = conn
	}

	for {
		if s.reader == nil {
			_, r, err := conn.NextReader()
			if err != nil {
				// Any read failure means this websocket is done for;
				// surface it as a clean end of stream.
				s.detach(conn)
				return 0, io.EOF
			}
			s.reader = r
		}

		n, err := s.reader.Read(p)
		if err == io.EOF {
			// End of one websocket message, not of the stream.
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write implements Channel. The bridge serializes calls and always hands
// over a single whole frame, which maps to one binary message.
func (s *WSServer) Write(p []byte) (int, error) {
	conn := s.current()
	if conn == nil {
		return 0, ErrNoPeer
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		s.detach(conn)
		return 0, err
	}
	return len(p), nil
}

// Close shuts down the listener and drops the attached extension.
func (s *WSServer) Close() error {
	if conn := s.current(); conn != nil {
		conn.Close()
	}
	return s.server.Close()
}
