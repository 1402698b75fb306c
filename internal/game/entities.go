package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/starspacegroup/starspace-server/internal/sphere"
)

// Player is a human-controlled ship on the sphere surface. The entity is
// retained across disconnects so a rejoining session resumes where it left
// off; only an explicit leave or room teardown removes it.
type Player struct {
	ID        string      `json:"id" msgpack:"id"`
	Name      string      `json:"name" msgpack:"name"`
	Pos       sphere.Vec3 `json:"pos" msgpack:"pos"`
	Vel       sphere.Vec3 `json:"vel" msgpack:"vel"`
	Facing    float64     `json:"facing" msgpack:"facing"`
	Health    float64     `json:"health" msgpack:"health"`
	MaxHealth float64     `json:"maxHealth" msgpack:"maxHealth"`
	Score     int         `json:"score" msgpack:"score"`
	Speed     float64     `json:"speed" msgpack:"speed"`

	// Tick deadlines; zero means inactive.
	ShootCooldownUntil uint64 `json:"-" msgpack:"shootCooldownUntil"`
	InvincibleUntil    uint64 `json:"invincibleUntil,omitempty" msgpack:"invincibleUntil"`
	SpeedBoostUntil    uint64 `json:"-" msgpack:"speedBoostUntil"`
	MultishotUntil     uint64 `json:"-" msgpack:"multishotUntil"`
	ShieldUntil        uint64 `json:"shieldUntil,omitempty" msgpack:"shieldUntil"`

	// LastInputSeq echoes the most recently integrated input sequence so the
	// client can reconcile its prediction buffer.
	LastInputSeq uint64 `json:"lastInputSeq" msgpack:"lastInputSeq"`
}

// Alive reports whether the player currently has health remaining.
func (p *Player) Alive() bool { return p != nil && p.Health > 0 }

// Asteroid drifts along the tangent plane and spins. Destroyed slots are
// refilled by the respawn pass.
type Asteroid struct {
	ID            string      `json:"id" msgpack:"id"`
	Pos           sphere.Vec3 `json:"pos" msgpack:"pos"`
	VelEast       float64     `json:"velEast" msgpack:"velEast"`
	VelNorth      float64     `json:"velNorth" msgpack:"velNorth"`
	Rotation      float64     `json:"rotation" msgpack:"rotation"`
	RotationSpeed float64     `json:"rotationSpeed" msgpack:"rotationSpeed"`
	Radius        float64     `json:"radius" msgpack:"radius"`
	Health        float64     `json:"health" msgpack:"health"`
	MaxHealth     float64     `json:"maxHealth" msgpack:"maxHealth"`
	Destroyed     bool        `json:"destroyed,omitempty" msgpack:"destroyed"`
}

// NpcState is the three-stage ally-conversion lifecycle.
type NpcState uint8

const (
	NpcHostile NpcState = iota
	NpcConverting
	NpcConverted
)

// String implements fmt.Stringer for logs and wire payloads.
func (s NpcState) String() string {
	switch s {
	case NpcHostile:
		return "hostile"
	case NpcConverting:
		return "converting"
	case NpcConverted:
		return "converted"
	default:
		return fmt.Sprintf("npc-state-%d", uint8(s))
	}
}

// MarshalJSON encodes the state as its string name.
func (s NpcState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Npc is a ship that starts hostile and can be converted into a puzzle ally.
// TargetNodeID is a weak reference resolved through the world's node index;
// it is re-resolved whenever the referenced node is gone or already locked.
type Npc struct {
	ID                 string      `json:"id" msgpack:"id"`
	Pos                sphere.Vec3 `json:"pos" msgpack:"pos"`
	VelEast            float64     `json:"velEast" msgpack:"velEast"`
	VelNorth           float64     `json:"velNorth" msgpack:"velNorth"`
	Facing             float64     `json:"facing" msgpack:"facing"`
	Radius             float64     `json:"radius" msgpack:"radius"`
	Health             float64     `json:"health" msgpack:"health"`
	State              NpcState    `json:"state" msgpack:"state"`
	ConversionProgress float64     `json:"conversionProgress,omitempty" msgpack:"conversionProgress"`
	TargetNodeID       string      `json:"targetNodeId,omitempty" msgpack:"targetNodeId"`
	Destroyed          bool        `json:"destroyed,omitempty" msgpack:"destroyed"`

	ShootCooldownUntil uint64  `json:"-" msgpack:"shootCooldownUntil"`
	NextHintTick       uint64  `json:"-" msgpack:"nextHintTick"`
	OrbitAngle         float64 `json:"-" msgpack:"orbitAngle"`
}

// LaserOwnerKind distinguishes player fire from hostile fire.
type LaserOwnerKind string

const (
	LaserOwnerPlayer LaserOwnerKind = "player"
	LaserOwnerNpc    LaserOwnerKind = "npc"
)

// Laser is a projectile whose direction is kept tangent to the sphere via
// parallel transport every tick. OwnerID is a weak reference; the owner may
// be gone by the time the laser lands.
type Laser struct {
	ID        string         `json:"id" msgpack:"id"`
	OwnerID   string         `json:"ownerId" msgpack:"ownerId"`
	OwnerKind LaserOwnerKind `json:"ownerKind" msgpack:"ownerKind"`
	Pos       sphere.Vec3    `json:"pos" msgpack:"pos"`
	Dir       sphere.Vec3    `json:"dir" msgpack:"dir"`
	Speed     float64        `json:"speed" msgpack:"speed"`
	Life      float64        `json:"life" msgpack:"life"`
	Radius    float64        `json:"radius" msgpack:"radius"`
}

// PuzzleNode lives at an interior radius and must be pushed to its target
// position. Once Connected it is frozen in place.
type PuzzleNode struct {
	ID        string      `json:"id" msgpack:"id"`
	Pos       sphere.Vec3 `json:"pos" msgpack:"pos"`
	Target    sphere.Vec3 `json:"target" msgpack:"target"`
	Radius    float64     `json:"radius" msgpack:"radius"`
	Connected bool        `json:"connected" msgpack:"connected"`
	Wave      int         `json:"wave" msgpack:"wave"`
	Color     string      `json:"color" msgpack:"color"`
}

// PowerUpType enumerates pickup effects.
type PowerUpType string

const (
	PowerUpHealth    PowerUpType = "health"
	PowerUpSpeed     PowerUpType = "speed"
	PowerUpMultishot PowerUpType = "multishot"
	PowerUpShield    PowerUpType = "shield"
)

var powerUpTypes = []PowerUpType{PowerUpHealth, PowerUpSpeed, PowerUpMultishot, PowerUpShield}

// PowerUp sits on the surface until collected, then respawns elsewhere.
type PowerUp struct {
	ID        string      `json:"id" msgpack:"id"`
	Pos       sphere.Vec3 `json:"pos" msgpack:"pos"`
	Type      PowerUpType `json:"type" msgpack:"type"`
	Radius    float64     `json:"radius" msgpack:"radius"`
	Collected bool        `json:"collected,omitempty" msgpack:"collected"`
}

func newEntityID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
