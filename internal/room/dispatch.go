package room

import (
	"github.com/starspacegroup/starspace-server/internal/game"
	"github.com/starspacegroup/starspace-server/internal/net/proto"
)

// dispatch routes one decoded client message. The switch is exhaustive over
// the proto union; a message type added to proto without a case here is a
// bug caught by TestDispatchCoversAllClientMessages.
func (r *Room) dispatch(playerID string, msg proto.ClientMessage) {
	switch m := msg.(type) {
	case proto.Join:
		// Joins arrive through Room.Join, never the message path.
		r.deps.Logger.Printf("room %s: stray join message from %s ignored", r.code, playerID)
	case proto.Input:
		r.stageInput(playerID, m)
	case proto.Fire:
		r.stageFire(playerID, m)
	case proto.Interact:
		r.stageInteract(playerID, m)
	case proto.Chat:
		r.handleChat(playerID, m)
	case proto.Leave:
		r.handleLeave(playerID)
	case proto.RespawnRequest:
		r.world.RespawnPlayer(playerID)
	case proto.SetPrivacy:
		r.handleSetPrivacy(playerID, m)
	case proto.StartGame:
		r.handleStartGame(playerID)
	}
}

// stageInput keeps only the latest input per player; the next tick
// integrates it. Inputs persist across ticks so a ship keeps its heading
// between client packets.
func (r *Room) stageInput(playerID string, m proto.Input) {
	if _, ok := r.sessions[playerID]; !ok {
		return
	}
	r.staged[playerID] = &game.InputCommand{
		Seq:     m.Tick,
		Thrust:  m.Thrust,
		Brake:   m.Brake,
		RotateZ: m.RotateZ,
		Vel:     m.Vel,
	}
}

func (r *Room) stageFire(playerID string, m proto.Fire) {
	if _, ok := r.sessions[playerID]; !ok {
		return
	}
	r.pending = append(r.pending, game.Command{
		ActorID: playerID,
		Type:    game.CommandFire,
		Fire:    &game.FireCommand{Seq: m.Tick, Dir: m.Dir},
	})
}

func (r *Room) stageInteract(playerID string, m proto.Interact) {
	if _, ok := r.sessions[playerID]; !ok {
		return
	}
	r.pending = append(r.pending, game.Command{
		ActorID: playerID,
		Type:    game.CommandInteract,
		Interact: &game.InteractCommand{
			TargetID:   m.TargetID,
			TargetType: m.TargetType,
			Action:     m.Action,
			Pos:        m.Position,
		},
	})
}

func (r *Room) handleChat(playerID string, m proto.Chat) {
	if m.Text == "" {
		return
	}
	name := playerID
	if p, ok := r.world.Player(playerID); ok {
		name = p.Name
	}
	r.broadcast(proto.ChatBroadcast{Type: "chat-broadcast", PlayerID: playerID, Name: name, Text: m.Text})
}

// handleLeave removes the player for good: entity, session, and staged
// intents all go, and a departing host hands the room to another session.
func (r *Room) handleLeave(playerID string) {
	conn, hadSession := r.sessions[playerID]
	delete(r.sessions, playerID)
	delete(r.staged, playerID)
	r.world.RemovePlayer(playerID)

	if playerID == r.hostID {
		r.hostID = ""
		for id := range r.sessions {
			r.hostID = id
			break
		}
	}

	r.broadcast(proto.PlayerLeft{Type: "player-left", PlayerID: playerID})
	r.notifyDirectory()
	if r.phase == PhaseLobby {
		r.broadcast(r.lobbyState())
	}
	if hadSession {
		conn.Close()
	}

	if len(r.sessions) == 0 && r.phase == PhasePlaying && !r.world.AnyPlayerAlive() {
		r.endRoom("All players left or eliminated")
	}
}

func (r *Room) handleSetPrivacy(playerID string, m proto.SetPrivacy) {
	if playerID != r.hostID {
		r.sendToPlayer(playerID, proto.ErrorMessage{Type: "error", Code: proto.ErrCodeNotHost, Message: "only the host can change privacy"})
		return
	}
	r.private = m.IsPrivate
	r.notifyDirectory()
	if r.phase == PhaseLobby {
		r.broadcast(r.lobbyState())
	}
}

func (r *Room) handleStartGame(playerID string) {
	if playerID != r.hostID {
		r.sendToPlayer(playerID, proto.ErrorMessage{Type: "error", Code: proto.ErrCodeNotHost, Message: "only the host can start the game"})
		return
	}
	if r.phase != PhaseLobby {
		return
	}
	r.phase = PhasePlaying
	r.startedAt = r.deps.Now()
	r.notifyDirectory()
	r.deps.Logger.Printf("room %s: game started by %s", r.code, playerID)
}
