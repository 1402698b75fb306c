package game

import "github.com/starspacegroup/starspace-server/internal/sphere"

// CommandType enumerates the staged intents consumed by the next tick.
type CommandType string

const (
	CommandInput    CommandType = "Input"
	CommandFire     CommandType = "Fire"
	CommandInteract CommandType = "Interact"
)

// Command carries one staged intent for an actor. Message handlers stage
// commands; the tick loop consumes them, so the world itself never sees
// concurrent mutation.
type Command struct {
	ActorID  string
	Type     CommandType
	Input    *InputCommand
	Fire     *FireCommand
	Interact *InteractCommand
}

// InputCommand is the client's steering intent. The server integrates
// movement from the declared world-space velocity itself; the client never
// dictates a position.
type InputCommand struct {
	Seq     uint64
	Thrust  bool
	Brake   bool
	RotateZ float64
	Vel     sphere.Vec3
}

// FireCommand requests a laser in the given world-space direction.
type FireCommand struct {
	Seq uint64
	Dir sphere.Vec3
}

// InteractCommand targets an entity by weak reference. Unknown or already
// resolved targets are ignored silently.
type InteractCommand struct {
	TargetID   string
	TargetType string
	Action     string
	Pos        *sphere.Vec3
}

// EventType names a per-tick world occurrence the room relays to clients.
type EventType string

const (
	EventPlayerHit        EventType = "player-hit"
	EventPlayerRespawn    EventType = "player-respawn"
	EventPowerUpCollected EventType = "power-up-collected"
	EventNpcConverted     EventType = "npc-converted"
	EventHint             EventType = "hint"
	EventWaveAdvanced     EventType = "wave-advanced"
	EventNodeConnected    EventType = "node-connected"
)

// Event is a gameplay occurrence drained by the room after each Step and
// translated into outbound protocol messages.
type Event struct {
	Type     EventType
	ActorID  string
	TargetID string
	Text     string
	Amount   float64
}
