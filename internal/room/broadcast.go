package room

import (
	"github.com/starspacegroup/starspace-server/internal/game"
	"github.com/starspacegroup/starspace-server/internal/net/proto"
)

// broadcastState sends each connected player their radius-filtered view.
// Players and lasers go out every tick; the slower entity types every
// fullSnapshotEvery ticks.
func (r *Room) broadcastState() {
	full := r.world.Tick()%fullSnapshotEvery == 0
	for playerID, conn := range r.sessions {
		view := r.world.ViewFor(playerID, full)
		msg := proto.State{Type: "state", WorldSnapshot: r.snapshotFromView(view)}
		if !r.sendTo(conn, msg) {
			r.dropSession(playerID, conn)
		}
	}
}

func (r *Room) snapshotFromView(view game.View) proto.WorldSnapshot {
	return proto.WorldSnapshot{
		Tick:           r.world.Tick(),
		Players:        view.Players,
		Lasers:         view.Lasers,
		Asteroids:      view.Asteroids,
		Npcs:           view.Npcs,
		PowerUps:       view.PowerUps,
		PuzzleNodes:    view.Nodes,
		PuzzleProgress: r.world.PuzzleProgress(),
		PuzzleSolved:   r.world.PuzzleSolved(),
		Wave:           r.world.Wave(),
	}
}

// broadcast sends a message to every connected session.
func (r *Room) broadcast(msg any) {
	for playerID, conn := range r.sessions {
		if !r.sendTo(conn, msg) {
			r.dropSession(playerID, conn)
		}
	}
}

// broadcastExcept sends to every session but one.
func (r *Room) broadcastExcept(skipID string, msg any) {
	for playerID, conn := range r.sessions {
		if playerID == skipID {
			continue
		}
		if !r.sendTo(conn, msg) {
			r.dropSession(playerID, conn)
		}
	}
}

func (r *Room) sendToPlayer(playerID string, msg any) {
	conn, ok := r.sessions[playerID]
	if !ok {
		return
	}
	if !r.sendTo(conn, msg) {
		r.dropSession(playerID, conn)
	}
}

func (r *Room) sendTo(conn Conn, msg any) bool {
	data, err := proto.Encode(msg)
	if err != nil {
		r.deps.Logger.Printf("room %s: encode %T failed: %v", r.code, msg, err)
		return true // encoding bug, not a dead connection
	}
	if err := conn.Send(data); err != nil {
		return false
	}
	return true
}

// dropSession removes a session whose transport failed mid-broadcast. The
// player entity stays for rejoin, mirroring handleDetach.
func (r *Room) dropSession(playerID string, conn Conn) {
	if current, ok := r.sessions[playerID]; !ok || current != conn {
		return
	}
	conn.Close()
	delete(r.sessions, playerID)
	delete(r.staged, playerID)
	r.deps.Logger.Printf("room %s: dropped unresponsive session for %s", r.code, playerID)
}
