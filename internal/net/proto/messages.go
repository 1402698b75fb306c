// Package proto defines the websocket wire messages. Inbound payloads are
// decoded into a closed set of message types so dispatch is an exhaustive
// switch rather than string comparisons scattered through handlers.
package proto

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/starspacegroup/starspace-server/internal/game"
	"github.com/starspacegroup/starspace-server/internal/sphere"
	"github.com/starspacegroup/starspace-server/logging"
)

// ErrUnknownType marks an inbound message whose type tag is not recognized.
var ErrUnknownType = errors.New("unknown message type")

// ClientMessage is the closed union of inbound messages.
type ClientMessage interface {
	clientMessage()
}

// Join binds an authenticated user to a room (creating the player entity on
// first join).
type Join struct {
	ID       string
	Username string
	RoomCode string
}

// Input carries the client's steering intent for one predicted tick.
type Input struct {
	Tick    uint64
	Thrust  bool
	Brake   bool
	RotateZ float64
	Vel     sphere.Vec3
}

// Fire requests a laser along a world-space direction.
type Fire struct {
	Tick uint64
	Dir  sphere.Vec3
}

// Interact targets an entity by id.
type Interact struct {
	TargetID   string
	TargetType string
	Action     string
	Position   *sphere.Vec3
}

// Chat relays a text line to the room.
type Chat struct {
	Text string
}

// Leave removes the player entity outright, unlike a transport disconnect
// which retains it for rejoin.
type Leave struct{}

// RespawnRequest asks to revive a dead player.
type RespawnRequest struct{}

// SetPrivacy toggles room discoverability (host only).
type SetPrivacy struct {
	IsPrivate bool
}

// StartGame moves the room from lobby to playing (host only).
type StartGame struct{}

func (Join) clientMessage()           {}
func (Input) clientMessage()          {}
func (Fire) clientMessage()           {}
func (Interact) clientMessage()       {}
func (Chat) clientMessage()           {}
func (Leave) clientMessage()          {}
func (RespawnRequest) clientMessage() {}
func (SetPrivacy) clientMessage()     {}
func (StartGame) clientMessage()      {}

type clientEnvelope struct {
	Type string `json:"type"`

	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	RoomCode string `json:"roomCode,omitempty"`

	Tick    uint64  `json:"tick,omitempty"`
	Thrust  bool    `json:"thrust,omitempty"`
	Brake   bool    `json:"brake,omitempty"`
	RotateZ float64 `json:"rotateZ,omitempty"`
	VelX    float64 `json:"velX,omitempty"`
	VelY    float64 `json:"velY,omitempty"`
	VelZ    float64 `json:"velZ,omitempty"`

	DirX float64 `json:"dirX,omitempty"`
	DirY float64 `json:"dirY,omitempty"`
	DirZ float64 `json:"dirZ,omitempty"`

	TargetID   string       `json:"targetId,omitempty"`
	TargetType string       `json:"targetType,omitempty"`
	Action     string       `json:"action,omitempty"`
	Position   *sphere.Vec3 `json:"position,omitempty"`

	Text string `json:"text,omitempty"`

	IsPrivate *bool `json:"isPrivate,omitempty"`
}

// DecodeClient parses one inbound payload into its typed message. Payloads
// with an unrecognized type tag return ErrUnknownType; malformed JSON
// returns the underlying decode error. Callers drop both with a warning.
func DecodeClient(data []byte) (ClientMessage, error) {
	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode client message: %w", err)
	}
	switch env.Type {
	case "join":
		return Join{ID: env.ID, Username: env.Username, RoomCode: env.RoomCode}, nil
	case "input":
		return Input{
			Tick:    env.Tick,
			Thrust:  env.Thrust,
			Brake:   env.Brake,
			RotateZ: env.RotateZ,
			Vel:     sphere.Vec3{X: env.VelX, Y: env.VelY, Z: env.VelZ},
		}, nil
	case "fire":
		return Fire{Tick: env.Tick, Dir: sphere.Vec3{X: env.DirX, Y: env.DirY, Z: env.DirZ}}, nil
	case "interact":
		return Interact{
			TargetID:   env.TargetID,
			TargetType: env.TargetType,
			Action:     env.Action,
			Position:   env.Position,
		}, nil
	case "chat":
		return Chat{Text: env.Text}, nil
	case "leave":
		return Leave{}, nil
	case "respawn-request":
		return RespawnRequest{}, nil
	case "set-privacy":
		private := false
		if env.IsPrivate != nil {
			private = *env.IsPrivate
		}
		return SetPrivacy{IsPrivate: private}, nil
	case "start-game":
		return StartGame{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// WorldSnapshot is the state payload shared by welcome and state messages.
// Absent entity slices mean "unchanged since the last full snapshot".
type WorldSnapshot struct {
	Tick           uint64            `json:"tick"`
	Players        []game.Player     `json:"players,omitempty"`
	Lasers         []game.Laser      `json:"lasers,omitempty"`
	Asteroids      []game.Asteroid   `json:"asteroids,omitempty"`
	Npcs           []game.Npc        `json:"npcs,omitempty"`
	PowerUps       []game.PowerUp    `json:"powerUps,omitempty"`
	PuzzleNodes    []game.PuzzleNode `json:"puzzleNodes,omitempty"`
	PuzzleProgress float64           `json:"puzzleProgress"`
	PuzzleSolved   bool              `json:"puzzleSolved"`
	Wave           int               `json:"wave"`
}

// Welcome is the join handshake reply.
type Welcome struct {
	Type     string        `json:"type"`
	PlayerID string        `json:"playerId"`
	RoomCode string        `json:"roomCode"`
	State    WorldSnapshot `json:"state"`
}

// State is the per-tick broadcast.
type State struct {
	Type string `json:"type"`
	WorldSnapshot
}

// PlayerJoined announces a new or returning player.
type PlayerJoined struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// PlayerLeft announces a departed player.
type PlayerLeft struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

// PlayerHit reports damage to a player.
type PlayerHit struct {
	Type     string  `json:"type"`
	PlayerID string  `json:"playerId"`
	SourceID string  `json:"sourceId,omitempty"`
	Amount   float64 `json:"amount"`
}

// PlayerRespawn reports a completed respawn.
type PlayerRespawn struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

// PowerUpCollected reports a pickup.
type PowerUpCollected struct {
	Type      string `json:"type"`
	PlayerID  string `json:"playerId"`
	PowerUpID string `json:"powerUpId"`
	Kind      string `json:"kind"`
}

// NpcConverted reports a hostile turned ally.
type NpcConverted struct {
	Type  string `json:"type"`
	NpcID string `json:"npcId"`
}

// Hint carries a puzzle hint from a converted ally.
type Hint struct {
	Type   string `json:"type"`
	NpcID  string `json:"npcId"`
	NodeID string `json:"nodeId"`
	Text   string `json:"text"`
}

// ChatBroadcast relays a chat line.
type ChatBroadcast struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Text     string `json:"text"`
}

// RoomStats is the periodic digest sent to dead or disconnected players.
type RoomStats struct {
	Type           string        `json:"type"`
	Tick           uint64        `json:"tick"`
	Wave           int           `json:"wave"`
	PuzzleProgress float64       `json:"puzzleProgress"`
	Players        []game.Player `json:"players"`
}

// RoomEnded is the final payload broadcast when a room ends.
type RoomEnded struct {
	Type                string             `json:"type"`
	Reason              string             `json:"reason"`
	DurationSeconds     float64            `json:"duration"`
	FinalWave           int                `json:"finalWave"`
	FinalPuzzleProgress float64            `json:"finalPuzzleProgress"`
	Players             []game.Player      `json:"players"`
	EventLog            []logging.LogEntry `json:"eventLog"`
}

// RoomTerminated tells clients the room process is going away.
type RoomTerminated struct {
	Type string `json:"type"`
}

// LobbyState describes the pre-game lobby.
type LobbyState struct {
	Type      string   `json:"type"`
	RoomCode  string   `json:"roomCode"`
	HostID    string   `json:"hostId"`
	IsPrivate bool     `json:"isPrivate"`
	Players   []string `json:"players"`
}

// ErrorMessage reports a request-level failure.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes surfaced to clients.
const (
	ErrCodeDuplicateSession = "duplicate-session"
	ErrCodeRoomFull         = "room-full"
	ErrCodeRoomEnded        = "room-ended"
	ErrCodeNotHost          = "not-host"
	ErrCodeBadRequest       = "bad-request"
)

// Encode marshals an outbound message with the hot-path JSON encoder.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}
