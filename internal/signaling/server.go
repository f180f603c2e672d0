package signaling

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/1ureka/webrtc-task/internal/util"
)

// Path is the WebSocket endpoint served by Server.
const Path = "/ws"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the initiator-side WebSocket server. It accepts exactly one
// responder presenting the right PIN.
type Server struct {
	pin      string
	mux      *http.ServeMux
	listener net.Listener
	connCh   chan *websocket.Conn
}

// NewServer creates a new signaling server with the given PIN for authentication.
func NewServer(pin string) *Server {
	s := &Server{
		pin:    pin,
		mux:    http.NewServeMux(),
		connCh: make(chan *websocket.Conn, 1),
	}
	s.mux.HandleFunc(Path, s.handleWS)
	return s
}

// Start begins listening on addr (":0" picks a random port). Returns the
// assigned port number.
func (s *Server) Start(addr string) (int, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to start WS server: %w", err)
	}
	s.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port

	go func() {
		_ = http.Serve(listener, s)
	}()

	return port, nil
}

// ServeHTTP serves the signaling endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	if subtle.ConstantTimeCompare([]byte(pin), []byte(s.pin)) != 1 {
		util.LogWarning("rejected signaling client %s: invalid PIN", r.RemoteAddr)
		http.Error(w, "Invalid PIN", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// Only accept the first client.
	select {
	case s.connCh <- conn:
	default:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"))
		conn.Close()
	}
}

// WaitForClient blocks until a client connects or context is cancelled.
func (s *Server) WaitForClient(ctx context.Context) (*websocket.Conn, error) {
	select {
	case conn := <-s.connCh:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts down the listener, preventing new connections.
func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
}
