package game

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/starspacegroup/starspace-server/internal/sphere"
	"github.com/starspacegroup/starspace-server/internal/telemetry"
	"github.com/starspacegroup/starspace-server/logging"
)

var nodeColors = []string{"amber", "cyan", "violet", "emerald", "rose", "gold"}

// World owns the authoritative simulation state for one room. All mutation
// happens on the room goroutine: message handlers stage commands and the
// tick loop consumes them, so no locking is required here.
type World struct {
	cfg       Config
	rng       *rand.Rand
	publisher logging.Publisher
	logger    telemetry.Logger
	metrics   telemetry.Metrics

	tick           uint64
	wave           int
	puzzleProgress float64
	puzzleSolved   bool

	players   map[string]*Player
	npcs      map[string]*Npc
	nodes     map[string]*PuzzleNode
	nodeOrder []string
	asteroids []*Asteroid
	lasers    []*Laser
	powerUps  []*PowerUp

	events []Event
}

// NewWorld constructs a world with seeded entity pools and the first wave of
// puzzle nodes. targets supplies the precomputed puzzle target geometry; a
// nil or short list is padded with random interior points.
func NewWorld(cfg Config, targets []sphere.Vec3, publisher logging.Publisher, logger telemetry.Logger, metrics telemetry.Metrics) *World {
	cfg = cfg.Normalized()
	if publisher == nil {
		publisher = logging.NopPublisher{}
	}
	if logger == nil {
		logger = telemetry.Nop()
	}

	w := &World{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		wave:      1,
		players:   make(map[string]*Player),
		npcs:      make(map[string]*Npc),
		nodes:     make(map[string]*PuzzleNode),
	}

	for i := 0; i < cfg.AsteroidTarget; i++ {
		w.asteroids = append(w.asteroids, w.spawnAsteroid())
	}
	for i := 0; i < cfg.NpcTarget; i++ {
		npc := w.spawnNpc()
		w.npcs[npc.ID] = npc
	}
	for i := 0; i < cfg.PowerUpTarget; i++ {
		w.powerUps = append(w.powerUps, w.spawnPowerUp())
	}
	w.spawnNodes(targets)
	w.recomputeProgress()
	return w
}

// Config returns the normalized configuration the world runs with.
func (w *World) Config() Config { return w.cfg }

// Tick returns the current tick counter.
func (w *World) Tick() uint64 { return w.tick }

// Wave returns the current wave number.
func (w *World) Wave() int { return w.wave }

// PuzzleProgress returns the puzzle completion percentage.
func (w *World) PuzzleProgress() float64 { return w.puzzleProgress }

// PuzzleSolved reports whether every revealed node is locked.
func (w *World) PuzzleSolved() bool { return w.puzzleSolved }

// Player resolves a player by id.
func (w *World) Player(id string) (*Player, bool) {
	p, ok := w.players[id]
	return p, ok
}

// PlayerCount returns the number of retained player entities.
func (w *World) PlayerCount() int { return len(w.players) }

// AnyPlayerAlive reports whether at least one player has health remaining.
func (w *World) AnyPlayerAlive() bool {
	for _, p := range w.players {
		if p.Alive() {
			return true
		}
	}
	return false
}

// AddPlayer creates (or revives the retained entity for) the given player id
// and returns it.
func (w *World) AddPlayer(id, name string) *Player {
	if existing, ok := w.players[id]; ok {
		if name != "" {
			existing.Name = name
		}
		return existing
	}
	p := &Player{
		ID:        id,
		Name:      name,
		Pos:       sphere.RandomOnSphere(w.rng, w.cfg.SphereRadius),
		Health:    playerMaxHealth,
		MaxHealth: playerMaxHealth,
		Speed:     basePlayerSpeed,
	}
	w.players[id] = p
	w.publish(logging.Event{
		Type:     "player-joined",
		Actor:    logging.EntityRef{ID: id, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityInfo,
		Message:  name + " joined",
	})
	return p
}

// RemovePlayer deletes a player entity outright (explicit leave, not a mere
// transport disconnect).
func (w *World) RemovePlayer(id string) {
	if _, ok := w.players[id]; !ok {
		return
	}
	delete(w.players, id)
	w.publish(logging.Event{
		Type:     "player-left",
		Actor:    logging.EntityRef{ID: id, Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityInfo,
	})
}

// RespawnPlayer restores a dead player at a fresh position. It refuses while
// no other player is alive so a doomed room cannot limp on through one
// endlessly respawning player.
func (w *World) RespawnPlayer(id string) bool {
	p, ok := w.players[id]
	if !ok || p.Alive() {
		return false
	}
	otherAlive := false
	for oid, other := range w.players {
		if oid != id && other.Alive() {
			otherAlive = true
			break
		}
	}
	if !otherAlive {
		return false
	}
	p.Health = p.MaxHealth
	p.Pos = sphere.RandomOnSphere(w.rng, w.cfg.SphereRadius)
	p.Vel = sphere.Vec3{}
	p.InvincibleUntil = w.tick + w.cfg.TicksFor(invincibilitySeconds)
	w.queueEvent(Event{Type: EventPlayerRespawn, ActorID: id})
	return true
}

// DrainEvents returns and clears the per-tick gameplay events.
func (w *World) DrainEvents() []Event {
	if len(w.events) == 0 {
		return nil
	}
	out := w.events
	w.events = nil
	return out
}

func (w *World) queueEvent(ev Event) {
	w.events = append(w.events, ev)
}

func (w *World) publish(ev logging.Event) {
	ev.Tick = w.tick
	ev.Time = time.Now()
	w.publisher.Publish(context.Background(), ev)
}

func (w *World) addMetric(key string, delta uint64) {
	if w.metrics != nil {
		w.metrics.Add(key, delta)
	}
}

func (w *World) spawnAsteroid() *Asteroid {
	radius := asteroidMinRadius + w.rng.Float64()*(asteroidMaxRadius-asteroidMinRadius)
	return &Asteroid{
		ID:            newEntityID("ast"),
		Pos:           sphere.RandomOnSphere(w.rng, w.cfg.SphereRadius),
		VelEast:       (w.rng.Float64()*2 - 1) * 3,
		VelNorth:      (w.rng.Float64()*2 - 1) * 3,
		Rotation:      w.rng.Float64() * 2 * math.Pi,
		RotationSpeed: (w.rng.Float64()*2 - 1) * 1.5,
		Radius:        radius,
		Health:        asteroidMaxHealth,
		MaxHealth:     asteroidMaxHealth,
	}
}

func (w *World) spawnNpc() *Npc {
	return &Npc{
		ID:     newEntityID("npc"),
		Pos:    sphere.RandomOnSphere(w.rng, w.cfg.SphereRadius),
		Radius: npcRadius,
		Health: 30,
		State:  NpcHostile,
	}
}

func (w *World) spawnPowerUp() *PowerUp {
	return &PowerUp{
		ID:     newEntityID("pwr"),
		Pos:    sphere.RandomOnSphere(w.rng, w.cfg.SphereRadius),
		Type:   powerUpTypes[w.rng.Intn(len(powerUpTypes))],
		Radius: powerUpRadius,
	}
}

// spawnNodes creates the current wave's puzzle nodes. Target positions come
// from the precomputed projection when available; missing entries are padded
// with random interior points so a short list never under-fills a wave.
func (w *World) spawnNodes(targets []sphere.Vec3) {
	interior := w.cfg.SphereRadius * nodeInteriorFraction
	for i := 0; i < w.cfg.NodesPerWave; i++ {
		var target sphere.Vec3
		if i < len(targets) {
			target = sphere.ProjectToSphere(targets[i], interior)
		} else {
			target = sphere.RandomOnSphere(w.rng, interior)
		}
		node := &PuzzleNode{
			ID:     newEntityID("node"),
			Pos:    sphere.RandomOnSphere(w.rng, interior),
			Target: target,
			Radius: nodeRadius,
			Wave:   w.wave,
			Color:  nodeColors[i%len(nodeColors)],
		}
		w.nodes[node.ID] = node
		w.nodeOrder = append(w.nodeOrder, node.ID)
	}
}

// nodesInOrder iterates nodes in creation order for stable snapshots.
func (w *World) nodesInOrder() []*PuzzleNode {
	out := make([]*PuzzleNode, 0, len(w.nodeOrder))
	for _, id := range w.nodeOrder {
		if node, ok := w.nodes[id]; ok {
			out = append(out, node)
		}
	}
	return out
}

// randomSafePoint picks a point dmin–dmax away from origin, retrying a few
// times to avoid landing next to a hostile NPC. After the retry budget the
// last candidate is accepted; a crowded sphere should not deadlock a
// teleport.
func (w *World) randomSafePoint(origin sphere.Vec3, dmin, dmax float64) sphere.Vec3 {
	var candidate sphere.Vec3
	for attempt := 0; attempt < teleportRetries; attempt++ {
		dist := dmin + w.rng.Float64()*(dmax-dmin)
		angle := w.rng.Float64() * 2 * math.Pi
		candidate = sphere.MoveOnSurface(origin, math.Cos(angle)*dist, math.Sin(angle)*dist, w.cfg.SphereRadius)
		safe := true
		for _, npc := range w.npcs {
			if npc.Destroyed || npc.State != NpcHostile {
				continue
			}
			if sphere.ChordDistance(candidate, npc.Pos) < teleportSafeDistance {
				safe = false
				break
			}
		}
		if safe {
			return candidate
		}
	}
	return candidate
}
