package game

import (
	"math"

	"github.com/starspacegroup/starspace-server/internal/sphere"
	"github.com/starspacegroup/starspace-server/logging"
)

// stepNpcs advances every NPC through its three-stage lifecycle:
// hostile pursuit, the conversion animation, and converted orbit-and-hint
// duty around a claimed puzzle node.
func (w *World) stepNpcs(dt float64) {
	for _, npc := range w.npcs {
		if npc.Destroyed {
			continue
		}
		switch npc.State {
		case NpcHostile:
			w.stepHostile(npc, dt)
		case NpcConverting:
			w.stepConverting(npc, dt)
		case NpcConverted:
			w.stepConverted(npc, dt)
		}
	}
}

func (w *World) stepHostile(npc *Npc, dt float64) {
	target := w.nearestLivingPlayer(npc.Pos)
	if target == nil {
		return
	}

	dist := sphere.ChordDistance(npc.Pos, target.Pos)
	toward := sphere.ParallelTransport(target.Pos.Sub(npc.Pos), npc.Pos)

	var heading sphere.Vec3
	if dist > npcCircleRange {
		heading = toward
	} else {
		// Close in: circle perpendicular to the approach vector.
		normal := npc.Pos.Normalize()
		heading = normal.Cross(toward).Normalize()
	}
	npc.Pos = npc.Pos.Add(heading.Scale(npcSpeed * dt))
	sphere.ProjectToSphereInPlace(&npc.Pos, w.cfg.SphereRadius)
	npc.Facing = math.Atan2(heading.Y, heading.X)

	if dist < npcFireRange && w.tick >= npc.ShootCooldownUntil {
		dir := sphere.ParallelTransport(target.Pos.Sub(npc.Pos), npc.Pos)
		w.spawnLaser(npc.ID, LaserOwnerNpc, npc.Pos, dir)
		npc.ShootCooldownUntil = w.tick + w.cfg.TicksFor(npcShootCooldownSec)
	}
}

func (w *World) stepConverting(npc *Npc, dt float64) {
	// Spin in place while the conversion animation plays out.
	npc.Facing = math.Mod(npc.Facing+6*dt, 2*math.Pi)
	npc.ConversionProgress += conversionRate * dt
	if npc.ConversionProgress < 1 {
		return
	}
	npc.ConversionProgress = 1
	npc.State = NpcConverted
	npc.TargetNodeID = ""
	w.retargetAlly(npc)
	w.scheduleHint(npc)
	w.queueEvent(Event{Type: EventNpcConverted, ActorID: npc.ID})
	w.publish(logging.Event{
		Type:     "npc-converted",
		Actor:    logging.EntityRef{ID: npc.ID, Kind: logging.EntityKindNpc},
		Severity: logging.SeverityInfo,
	})
}

func (w *World) stepConverted(npc *Npc, dt float64) {
	node := w.allyTarget(npc)
	if node == nil {
		// Nothing left to solve; drift in a slow orbit where we are.
		npc.OrbitAngle += 0.5 * dt
		return
	}

	anchor := sphere.ProjectToSphere(node.Pos, w.cfg.SphereRadius)
	dist := sphere.ChordDistance(npc.Pos, anchor)
	if dist > orbitDistance+2 {
		toward := sphere.ParallelTransport(anchor.Sub(npc.Pos), npc.Pos)
		npc.Pos = npc.Pos.Add(toward.Scale(npcSpeed * dt))
		sphere.ProjectToSphereInPlace(&npc.Pos, w.cfg.SphereRadius)
		npc.Facing = math.Atan2(toward.Y, toward.X)
		return
	}

	// Orbit the point above the node.
	npc.OrbitAngle = math.Mod(npc.OrbitAngle+1.2*dt, 2*math.Pi)
	east, north, _ := sphere.TangentFrame(anchor)
	offset := east.Scale(math.Cos(npc.OrbitAngle) * orbitDistance).
		Add(north.Scale(math.Sin(npc.OrbitAngle) * orbitDistance))
	npc.Pos = sphere.ProjectToSphere(anchor.Add(offset), w.cfg.SphereRadius)

	if w.tick >= npc.NextHintTick {
		w.emitHint(npc, node)
		w.nudgeNode(node, allyNudgeFactor, npc.ID)
		w.scheduleHint(npc)
	}
}

// allyTarget resolves the NPC's claimed node, re-resolving when the weak
// reference has gone stale (node connected or removed). Returns nil only
// when every revealed node is already connected.
func (w *World) allyTarget(npc *Npc) *PuzzleNode {
	if npc.TargetNodeID != "" {
		if node, ok := w.nodes[npc.TargetNodeID]; ok && !node.Connected {
			return node
		}
		npc.TargetNodeID = ""
	}
	w.retargetAlly(npc)
	if npc.TargetNodeID == "" {
		return nil
	}
	return w.nodes[npc.TargetNodeID]
}

// retargetAlly picks the nearest unconnected node, preferring nodes no other
// converted NPC has claimed. Only once every unconnected node has a claimant
// does it fall back to sharing, so allies spread across the puzzle instead
// of piling onto the closest node.
func (w *World) retargetAlly(npc *Npc) {
	claimed := make(map[string]bool)
	for _, other := range w.npcs {
		if other.ID == npc.ID || other.Destroyed || other.State != NpcConverted {
			continue
		}
		if other.TargetNodeID != "" {
			claimed[other.TargetNodeID] = true
		}
	}

	best := ""
	bestShared := ""
	bestDist := math.MaxFloat64
	bestSharedDist := math.MaxFloat64
	for _, id := range w.nodeOrder {
		node, ok := w.nodes[id]
		if !ok || node.Connected {
			continue
		}
		// The node sits at an interior radius; compare through the central
		// angle so surface and interior points are commensurable.
		d := sphere.AngularDistance(npc.Pos, node.Pos)
		if claimed[id] {
			if d < bestSharedDist {
				bestSharedDist = d
				bestShared = id
			}
			continue
		}
		if d < bestDist {
			bestDist = d
			best = id
		}
	}

	if best != "" {
		npc.TargetNodeID = best
	} else {
		npc.TargetNodeID = bestShared
	}
}

func (w *World) scheduleHint(npc *Npc) {
	interval := hintMinIntervalSeconds + w.rng.Float64()*(hintMaxIntervalSeconds-hintMinIntervalSeconds)
	npc.NextHintTick = w.tick + w.cfg.TicksFor(interval)
}

func (w *World) nearestLivingPlayer(pos sphere.Vec3) *Player {
	var nearest *Player
	best := math.MaxFloat64
	for _, p := range w.players {
		if !p.Alive() {
			continue
		}
		if d := sphere.ChordDistance(pos, p.Pos); d < best {
			best = d
			nearest = p
		}
	}
	return nearest
}
