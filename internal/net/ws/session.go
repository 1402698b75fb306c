// Package ws bridges websocket connections to room actors. A session owns
// the read side of one connection; the room goroutine drives the write side
// through the Conn interface.
package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/starspacegroup/starspace-server/internal/net/proto"
	"github.com/starspacegroup/starspace-server/internal/room"
	"github.com/starspacegroup/starspace-server/internal/telemetry"
)

const (
	writeWait       = 5 * time.Second
	maxMessageBytes = 4096

	// Inbound flood guard. A well-behaved client sends at most one input per
	// tick plus occasional commands; anything past this is dropped.
	inboundPerSecond = 60
	inboundBurst     = 120
)

var errSessionClosed = errors.New("session closed")

// Session is one live websocket binding. Writes are serialized under a mutex
// because the room goroutine and the join handshake both send frames.
type Session struct {
	conn     *websocket.Conn
	playerID string
	logger   telemetry.Logger

	mu     sync.Mutex
	closed bool
}

// Send writes one frame with a bounded deadline. Implements room.Conn.
func (s *Session) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close tears down the underlying connection. Implements room.Conn.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// Serve joins the room and pumps inbound frames until the connection drops.
// Blocks for the lifetime of the connection.
func Serve(rm *room.Room, conn *websocket.Conn, playerID, name string, logger telemetry.Logger) {
	sess := &Session{conn: conn, playerID: playerID, logger: logger}

	welcome, err := rm.Join(playerID, name, sess)
	if err != nil {
		refuse(sess, err)
		return
	}
	if err := sess.Send(welcome); err != nil {
		rm.Detach(playerID, sess)
		sess.Close()
		return
	}

	conn.SetReadLimit(maxMessageBytes)
	limiter := rate.NewLimiter(inboundPerSecond, inboundBurst)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			rm.Detach(playerID, sess)
			sess.Close()
			return
		}
		if !limiter.Allow() {
			logger.Printf("ws: dropping flooded message from %s in %s", playerID, rm.Code())
			continue
		}
		msg, err := proto.DecodeClient(payload)
		if err != nil {
			logger.Printf("ws: discarding malformed message from %s: %v", playerID, err)
			continue
		}
		rm.HandleMessage(playerID, msg)
	}
}

// refuse reports a join failure on the raw connection and closes it.
func refuse(sess *Session, err error) {
	code := proto.ErrCodeBadRequest
	switch {
	case errors.Is(err, room.ErrRoomFull):
		code = proto.ErrCodeRoomFull
	case errors.Is(err, room.ErrRoomEnded):
		code = proto.ErrCodeRoomEnded
	}
	if data, encErr := proto.Encode(proto.ErrorMessage{Type: "error", Code: code, Message: err.Error()}); encErr == nil {
		sess.Send(data)
	}
	sess.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
	sess.Close()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades /ws requests and hands them to the matching room. Query
// parameters: id (required), name (optional), room (optional; empty allocates
// a fresh room).
func Handler(mgr *room.Manager, logger telemetry.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID := r.URL.Query().Get("id")
		if playerID == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = playerID
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("ws: upgrade failed for %s: %v", playerID, err)
			return
		}

		rm := mgr.GetOrCreate(r.URL.Query().Get("room"))
		Serve(rm, conn, playerID, name, logger)
	}
}
