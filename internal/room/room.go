// Package room hosts the authoritative per-room simulation actor. One Room
// owns the canonical world state for one game room; all mutation happens on
// the room goroutine, which consumes an inbox of staged session messages and
// a fixed-rate ticker. Message handlers stage intents, the next tick
// integrates them, so no locks guard the world itself.
package room

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/starspacegroup/starspace-server/internal/checkpoint"
	"github.com/starspacegroup/starspace-server/internal/directory"
	"github.com/starspacegroup/starspace-server/internal/game"
	"github.com/starspacegroup/starspace-server/internal/net/proto"
	"github.com/starspacegroup/starspace-server/internal/telemetry"
	"github.com/starspacegroup/starspace-server/logging"
)

// Phase is the room lifecycle state.
type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhasePlaying Phase = "playing"
	PhaseEnded   Phase = "ended"
)

const (
	maintenanceEveryTicks = 60 // room-stats, all-dead check, checkpoint
	fullSnapshotEvery     = 3
	eventLogCapacity      = 512
	inboxCapacity         = 256

	// A lobby whose last connection has been gone this long is abandoned:
	// ended and handed to the manager for pruning, so unused room codes do
	// not pin goroutines forever.
	lobbyAbandonAfter = 30 * time.Second
)

// Join/lifecycle errors surfaced to the transport layer.
var (
	ErrRoomFull  = errors.New("room is full")
	ErrRoomEnded = errors.New("room has ended")
)

// Conn abstracts one client connection. The websocket session implements it;
// tests use an in-memory fake.
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Deps carries the room's injected collaborators.
type Deps struct {
	Logger   telemetry.Logger
	Metrics  telemetry.Metrics
	Store    checkpoint.Store
	Notifier directory.Notifier
	Now      func() time.Time
	// Targets is the precomputed puzzle target geometry for this room.
	Targets []game.TargetPoint
}

// Room is the per-room actor.
type Room struct {
	code  string
	cfg   game.Config
	world *game.World
	deps  Deps

	eventLog *logging.Ring

	inbox chan any
	quit  chan struct{}

	phase        Phase
	hostID       string
	private      bool
	startedAt    time.Time
	endReason    string
	ended        bool
	allDeadSince uint64

	sessions map[string]Conn
	staged   map[string]*game.InputCommand
	pending  []game.Command

	// emptySince marks when the lobby last lost its final session; zero
	// while any session is attached.
	emptySince time.Time

	// idle is true while the room is ended with no sessions; the manager
	// prunes idle rooms. Written on the room goroutine, read anywhere.
	idle atomic.Bool
}

type joinRequest struct {
	playerID string
	name     string
	conn     Conn
	reply    chan joinResult
}

type joinResult struct {
	welcome []byte
	err     error
}

type clientMessage struct {
	playerID string
	msg      proto.ClientMessage
}

type detachRequest struct {
	playerID string
	conn     Conn
}

// New creates a room, restoring any prior checkpoint so a rehydrated process
// resumes exactly where it left off. A checkpoint flagged ended keeps the
// room ended instead of resurrecting it.
func New(code string, cfg game.Config, deps Deps) *Room {
	cfg = cfg.Normalized()
	if deps.Logger == nil {
		deps.Logger = telemetry.Nop()
	}
	if deps.Store == nil {
		deps.Store = checkpoint.NewMemoryStore()
	}
	if deps.Notifier == nil {
		deps.Notifier = directory.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ring := logging.NewRing(eventLogCapacity)
	publisher := logging.Fanout(ring, logging.NewConsoleSink(nil, logging.SeverityWarn))

	r := &Room{
		code:     code,
		cfg:      cfg,
		deps:     deps,
		eventLog: ring,
		inbox:    make(chan any, inboxCapacity),
		quit:     make(chan struct{}),
		phase:    PhaseLobby,
		sessions: make(map[string]Conn),
		staged:   make(map[string]*game.InputCommand),
	}
	r.world = game.NewWorld(cfg, game.TargetPositions(deps.Targets), publisher, deps.Logger, deps.Metrics)
	r.restore()
	r.markIdle()
	return r
}

// Idle reports whether the room is ended with no sessions attached.
func (r *Room) Idle() bool { return r.idle.Load() }

func (r *Room) markIdle() {
	r.idle.Store(r.phase == PhaseEnded && len(r.sessions) == 0)
}

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// Run is the actor loop. It exits when Terminate drains the room.
func (r *Room) Run() {
	ticker := time.NewTicker(r.cfg.TickInterval())
	defer ticker.Stop()

	last := r.deps.Now()
	for {
		select {
		case <-r.quit:
			return
		case msg := <-r.inbox:
			r.handleInbox(msg)
		case <-ticker.C:
			now := r.deps.Now()
			dt := now.Sub(last).Seconds()
			last = now
			r.tick(now, dt)
			r.reapAbandonedLobby(now)
			r.markIdle()
		}
	}
}

// Join binds a connection to a player id, creating the player entity on
// first join. Called from transport goroutines; the actual work happens on
// the room goroutine.
func (r *Room) Join(playerID, name string, conn Conn) ([]byte, error) {
	req := joinRequest{playerID: playerID, name: name, conn: conn, reply: make(chan joinResult, 1)}
	select {
	case r.inbox <- req:
	case <-r.quit:
		return nil, ErrRoomEnded
	}
	select {
	case res := <-req.reply:
		return res.welcome, res.err
	case <-r.quit:
		return nil, ErrRoomEnded
	}
}

// HandleMessage stages one decoded client message for the room goroutine.
// Messages arriving faster than the inbox drains are dropped; the client's
// next input supersedes them anyway.
func (r *Room) HandleMessage(playerID string, msg proto.ClientMessage) {
	select {
	case r.inbox <- clientMessage{playerID: playerID, msg: msg}:
	case <-r.quit:
	default:
		r.deps.Logger.Printf("room %s: inbox full, dropping %T from %s", r.code, msg, playerID)
	}
}

// Detach reports a transport-level connection loss. The player entity is
// retained for rejoin; only the session binding goes away.
func (r *Room) Detach(playerID string, conn Conn) {
	select {
	case r.inbox <- detachRequest{playerID: playerID, conn: conn}:
	case <-r.quit:
	}
}

// Terminate ends the actor: notifies clients, archives or deletes the
// checkpoint, and stops the goroutine.
func (r *Room) Terminate() {
	select {
	case r.inbox <- terminateRequest{}:
		<-r.quit
	case <-r.quit:
	}
}

type terminateRequest struct{}

func (r *Room) handleInbox(msg any) {
	switch m := msg.(type) {
	case joinRequest:
		m.reply <- r.handleJoin(m)
	case clientMessage:
		r.dispatch(m.playerID, m.msg)
	case detachRequest:
		r.handleDetach(m.playerID, m.conn)
	case terminateRequest:
		r.handleTerminate()
	}
	r.markIdle()
}

func (r *Room) handleJoin(req joinRequest) joinResult {
	if r.phase == PhaseEnded {
		return joinResult{err: ErrRoomEnded}
	}
	_, returning := r.world.Player(req.playerID)
	if !returning && r.world.PlayerCount() >= r.cfg.MaxPlayers {
		return joinResult{err: ErrRoomFull}
	}

	// At most one active session per player id: a new join evicts the old
	// connection rather than allowing two controllers of one ship.
	if old, ok := r.sessions[req.playerID]; ok {
		r.sendTo(old, proto.ErrorMessage{
			Type:    "error",
			Code:    proto.ErrCodeDuplicateSession,
			Message: "another session took control of this player",
		})
		old.Close()
	}
	r.sessions[req.playerID] = req.conn

	player := r.world.AddPlayer(req.playerID, req.name)
	if r.hostID == "" {
		r.hostID = req.playerID
	}

	r.broadcastExcept(req.playerID, proto.PlayerJoined{Type: "player-joined", PlayerID: player.ID, Name: player.Name})
	r.notifyDirectory()
	if r.phase == PhaseLobby {
		r.broadcast(r.lobbyState())
	}

	view := r.world.ViewFor(req.playerID, true)
	welcome := proto.Welcome{
		Type:     "welcome",
		PlayerID: req.playerID,
		RoomCode: r.code,
		State:    r.snapshotFromView(view),
	}
	data, err := proto.Encode(welcome)
	if err != nil {
		return joinResult{err: fmt.Errorf("encode welcome: %w", err)}
	}
	return joinResult{welcome: data}
}

func (r *Room) handleDetach(playerID string, conn Conn) {
	current, ok := r.sessions[playerID]
	if !ok || current != conn {
		// A newer session already replaced this connection.
		return
	}
	delete(r.sessions, playerID)
	delete(r.staged, playerID)
	r.broadcast(proto.PlayerLeft{Type: "player-left", PlayerID: playerID})

	// The room survives a voluntary disconnect while others are alive; it
	// only ends when the last connection closes with nobody left alive.
	if len(r.sessions) == 0 && r.phase == PhasePlaying && !r.world.AnyPlayerAlive() {
		r.endRoom("All players left or eliminated")
	}
}

func (r *Room) handleTerminate() {
	r.broadcast(proto.RoomTerminated{Type: "room-terminated"})
	for id, conn := range r.sessions {
		conn.Close()
		delete(r.sessions, id)
	}
	if r.ended {
		// Archived and idle: the checkpoint is no longer needed.
		if err := r.deps.Store.Delete(context.Background(), r.checkpointKey()); err != nil {
			r.deps.Logger.Printf("room %s: checkpoint delete failed: %v", r.code, err)
		}
		r.deps.Notifier.Delete(context.Background(), r.code)
	} else {
		r.writeCheckpoint()
	}
	close(r.quit)
}
