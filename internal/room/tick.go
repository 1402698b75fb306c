package room

import (
	"context"
	"time"

	"github.com/starspacegroup/starspace-server/internal/checkpoint"
	"github.com/starspacegroup/starspace-server/internal/directory"
	"github.com/starspacegroup/starspace-server/internal/game"
	"github.com/starspacegroup/starspace-server/internal/net/proto"
)

// tick advances the simulation one step and broadcasts the results. It only
// runs while the room is playing; the lobby and ended phases idle.
func (r *Room) tick(now time.Time, dt float64) {
	if r.phase != PhasePlaying {
		return
	}

	commands := make([]game.Command, 0, len(r.staged)+len(r.pending))
	for playerID, input := range r.staged {
		commands = append(commands, game.Command{ActorID: playerID, Type: game.CommandInput, Input: input})
	}
	commands = append(commands, r.pending...)
	r.pending = r.pending[:0]

	r.world.Step(now, dt, commands)
	r.relayEvents()
	r.checkAllDead()
	if r.phase != PhasePlaying {
		return
	}

	r.broadcastState()
	if r.world.Tick()%maintenanceEveryTicks == 0 {
		r.sendRoomStats()
		r.writeCheckpointAsync()
	}
}

// relayEvents translates the world's per-tick gameplay events into outbound
// messages.
func (r *Room) relayEvents() {
	for _, ev := range r.world.DrainEvents() {
		switch ev.Type {
		case game.EventPlayerHit:
			r.broadcast(proto.PlayerHit{Type: "player-hit", PlayerID: ev.ActorID, SourceID: ev.TargetID, Amount: ev.Amount})
		case game.EventPlayerRespawn:
			r.broadcast(proto.PlayerRespawn{Type: "player-respawn", PlayerID: ev.ActorID})
		case game.EventPowerUpCollected:
			r.broadcast(proto.PowerUpCollected{Type: "power-up-collected", PlayerID: ev.ActorID, PowerUpID: ev.TargetID, Kind: ev.Text})
		case game.EventNpcConverted:
			r.broadcast(proto.NpcConverted{Type: "npc-converted", NpcID: ev.ActorID})
		case game.EventHint:
			r.broadcast(proto.Hint{Type: "hint", NpcID: ev.ActorID, NodeID: ev.TargetID, Text: ev.Text})
		case game.EventWaveAdvanced, game.EventNodeConnected:
			// Carried by the state broadcast; no dedicated message.
		}
	}
}

// checkAllDead ends the room once every player has been dead through the
// grace window. The window gives a respawning wave-clear moment a chance to
// settle before declaring the room lost.
func (r *Room) checkAllDead() {
	if r.world.PlayerCount() == 0 || r.world.AnyPlayerAlive() {
		r.allDeadSince = 0
		return
	}
	if r.allDeadSince == 0 {
		r.allDeadSince = r.world.Tick()
		return
	}
	grace := r.cfg.TicksFor(2.0)
	if r.world.Tick()-r.allDeadSince >= grace {
		r.endRoom("All players eliminated")
	}
}

// reapAbandonedLobby ends a lobby whose sessions have all been gone for the
// abandonment window. A rejoin before the window elapses resets it.
func (r *Room) reapAbandonedLobby(now time.Time) {
	if r.phase != PhaseLobby || len(r.sessions) > 0 {
		r.emptySince = time.Time{}
		return
	}
	if r.emptySince.IsZero() {
		r.emptySince = now
		return
	}
	if now.Sub(r.emptySince) >= lobbyAbandonAfter {
		r.endRoom("Lobby abandoned")
	}
}

// endRoom transitions the room to ended: final payload, directory archive,
// and a checkpoint carrying the ended flag so a rehydrated process does not
// resurrect the room.
func (r *Room) endRoom(reason string) {
	if r.phase == PhaseEnded {
		return
	}
	r.phase = PhaseEnded
	r.ended = true
	r.endReason = reason

	duration := 0.0
	if !r.startedAt.IsZero() {
		duration = r.deps.Now().Sub(r.startedAt).Seconds()
	}
	r.broadcast(proto.RoomEnded{
		Type:                "room-ended",
		Reason:              reason,
		DurationSeconds:     duration,
		FinalWave:           r.world.Wave(),
		FinalPuzzleProgress: r.world.PuzzleProgress(),
		Players:             r.world.PlayersSummary(),
		EventLog:            r.eventLog.Entries(),
	})
	r.deps.Notifier.Archive(context.Background(), r.code)
	r.writeCheckpointAsync()
	r.deps.Logger.Printf("room %s ended: %s", r.code, reason)
}

func (r *Room) sendRoomStats() {
	stats := proto.RoomStats{
		Type:           "room-stats",
		Tick:           r.world.Tick(),
		Wave:           r.world.Wave(),
		PuzzleProgress: r.world.PuzzleProgress(),
		Players:        r.world.PlayersSummary(),
	}
	for playerID := range r.sessions {
		p, ok := r.world.Player(playerID)
		if ok && p.Alive() {
			continue
		}
		r.sendToPlayer(playerID, stats)
	}
}

func (r *Room) notifyDirectory() {
	r.deps.Notifier.Upsert(context.Background(), directory.RoomSummary{
		Code:        r.code,
		HostID:      r.hostID,
		Private:     r.private,
		Phase:       string(r.phase),
		PlayerCount: r.world.PlayerCount(),
		MaxPlayers:  r.cfg.MaxPlayers,
		Wave:        r.world.Wave(),
	})
}

func (r *Room) lobbyState() proto.LobbyState {
	names := make([]string, 0, len(r.world.PlayersSummary()))
	for _, p := range r.world.PlayersSummary() {
		names = append(names, p.Name)
	}
	return proto.LobbyState{
		Type:      "lobby-state",
		RoomCode:  r.code,
		HostID:    r.hostID,
		IsPrivate: r.private,
		Players:   names,
	}
}

// checkpointRecord is the durable image of a room.
type checkpointRecord struct {
	Phase     string        `msgpack:"phase"`
	Ended     bool          `msgpack:"ended"`
	EndReason string        `msgpack:"endReason"`
	HostID    string        `msgpack:"hostId"`
	Private   bool          `msgpack:"private"`
	StartedAt time.Time     `msgpack:"startedAt"`
	World     game.Snapshot `msgpack:"world"`
}

func (r *Room) checkpointKey() string { return "room:" + r.code }

func (r *Room) buildCheckpoint() checkpointRecord {
	return checkpointRecord{
		Phase:     string(r.phase),
		Ended:     r.ended,
		EndReason: r.endReason,
		HostID:    r.hostID,
		Private:   r.private,
		StartedAt: r.startedAt,
		World:     r.world.Capture(),
	}
}

// writeCheckpointAsync encodes on the room goroutine (the world must not be
// read concurrently) but performs the store write off-loop so a slow store
// never blocks the next tick.
func (r *Room) writeCheckpointAsync() {
	blob, err := checkpoint.Encode(r.buildCheckpoint())
	if err != nil {
		r.deps.Logger.Printf("room %s: checkpoint encode failed: %v", r.code, err)
		return
	}
	go func() {
		if err := r.deps.Store.Put(context.Background(), r.checkpointKey(), blob); err != nil {
			r.deps.Logger.Printf("room %s: checkpoint write failed: %v", r.code, err)
		}
	}()
}

// writeCheckpoint is the synchronous variant used during teardown.
func (r *Room) writeCheckpoint() {
	blob, err := checkpoint.Encode(r.buildCheckpoint())
	if err != nil {
		r.deps.Logger.Printf("room %s: checkpoint encode failed: %v", r.code, err)
		return
	}
	if err := r.deps.Store.Put(context.Background(), r.checkpointKey(), blob); err != nil {
		r.deps.Logger.Printf("room %s: checkpoint write failed: %v", r.code, err)
	}
}

// restore rehydrates the room from a prior checkpoint, if any.
func (r *Room) restore() {
	blob, ok, err := r.deps.Store.Get(context.Background(), r.checkpointKey())
	if err != nil {
		r.deps.Logger.Printf("room %s: checkpoint read failed: %v", r.code, err)
		return
	}
	if !ok {
		return
	}
	var rec checkpointRecord
	if err := checkpoint.Decode(blob, &rec); err != nil {
		r.deps.Logger.Printf("room %s: checkpoint decode failed, starting fresh: %v", r.code, err)
		return
	}
	r.phase = Phase(rec.Phase)
	r.ended = rec.Ended
	r.endReason = rec.EndReason
	r.hostID = rec.HostID
	r.private = rec.Private
	r.startedAt = rec.StartedAt
	if rec.Ended {
		r.phase = PhaseEnded
	}
	r.world.Restore(rec.World)
	r.deps.Logger.Printf("room %s: restored at tick %d (phase %s)", r.code, r.world.Tick(), r.phase)
}
