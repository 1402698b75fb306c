package game

import (
	"math"
	"time"

	"github.com/starspacegroup/starspace-server/internal/sphere"
)

// Step advances the world by one tick: integrate staged player commands,
// advance asteroids, NPCs, and lasers, resolve collisions, expire timed
// effects, refill entity pools, and recompute puzzle progress.
//
// Each phase runs behind a recover wrapper so one faulty entity cannot
// freeze the room; a panic is logged and the remaining phases still run.
func (w *World) Step(now time.Time, dt float64, commands []Command) {
	w.tick++

	if dt <= 0 {
		dt = 1.0 / float64(w.cfg.TickRate)
	}
	// Clamp the integration window after a stall so physics cannot explode
	// through a single huge step.
	if limit := w.cfg.MaxStepSeconds(); dt > limit {
		dt = limit
	}

	w.runPhase("commands", func() { w.applyCommands(commands, dt) })
	w.runPhase("asteroids", func() { w.stepAsteroids(dt) })
	w.runPhase("npcs", func() { w.stepNpcs(dt) })
	w.runPhase("lasers", func() { w.stepLasers(dt) })
	w.runPhase("collisions", func() { w.resolveCollisions() })
	w.runPhase("effects", func() { w.expireTimedEffects() })
	w.runPhase("respawns", func() { w.refillPools() })
	w.runPhase("puzzle", func() { w.recomputeProgress() })
}

func (w *World) runPhase(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Printf("tick %d: %s phase panicked: %v", w.tick, name, r)
			w.addMetric("tick_phase_panics", 1)
		}
	}()
	fn()
}

func (w *World) applyCommands(commands []Command, dt float64) {
	for i := range commands {
		cmd := &commands[i]
		player, ok := w.players[cmd.ActorID]
		if !ok {
			continue
		}
		switch cmd.Type {
		case CommandInput:
			if cmd.Input != nil {
				w.integrateInput(player, cmd.Input, dt)
			}
		case CommandFire:
			if cmd.Fire != nil {
				w.firePlayerLaser(player, cmd.Fire)
			}
		case CommandInteract:
			if cmd.Interact != nil {
				w.applyInteract(player, cmd.Interact)
			}
		}
	}
}

// integrateInput moves a player from their declared world-space velocity.
// The velocity is a steering intent only: it is clamped to twice the
// player's speed and integrated server-side, never trusted as a position.
// Thrust adds acceleration along the current facing before the clamp, so a
// thrusting cheater still tops out at the same bound.
func (w *World) integrateInput(p *Player, input *InputCommand, dt float64) {
	if !p.Alive() {
		return
	}

	vel := input.Vel
	if input.Thrust {
		east, north, _ := sphere.TangentFrame(p.Pos)
		heading := east.Scale(math.Cos(p.Facing)).Add(north.Scale(math.Sin(p.Facing)))
		vel = vel.Add(heading.Scale(thrustAccel * dt))
	}
	if speed := vel.Norm(); speed > p.Speed*velocityClampFactor {
		vel = vel.Scale(p.Speed * velocityClampFactor / speed)
	}
	if input.Brake {
		vel = vel.Scale(0.5)
	}

	p.Vel = vel
	p.Pos = p.Pos.Add(vel.Scale(dt))
	sphere.ProjectToSphereInPlace(&p.Pos, w.cfg.SphereRadius)

	p.Facing = math.Mod(p.Facing+input.RotateZ*dt, 2*math.Pi)
	if p.Facing < 0 {
		p.Facing += 2 * math.Pi
	}
	if input.Seq > p.LastInputSeq {
		p.LastInputSeq = input.Seq
	}
}

func (w *World) firePlayerLaser(p *Player, fire *FireCommand) {
	if !p.Alive() || w.tick < p.ShootCooldownUntil {
		return
	}
	dir := sphere.ParallelTransport(fire.Dir, p.Pos)
	p.ShootCooldownUntil = w.tick + w.cfg.TicksFor(playerShootCooldownSec)
	if fire.Seq > p.LastInputSeq {
		p.LastInputSeq = fire.Seq
	}

	w.spawnLaser(p.ID, LaserOwnerPlayer, p.Pos, dir)
	if w.tick < p.MultishotUntil {
		const spread = 0.35
		_, _, normal := sphere.TangentFrame(p.Pos)
		w.spawnLaser(p.ID, LaserOwnerPlayer, p.Pos, rotateAboutAxis(dir, normal, spread))
		w.spawnLaser(p.ID, LaserOwnerPlayer, p.Pos, rotateAboutAxis(dir, normal, -spread))
	}
}

func (w *World) spawnLaser(ownerID string, kind LaserOwnerKind, pos, dir sphere.Vec3) {
	w.lasers = append(w.lasers, &Laser{
		ID:        newEntityID("lsr"),
		OwnerID:   ownerID,
		OwnerKind: kind,
		Pos:       pos,
		Dir:       dir,
		Speed:     laserSpeed,
		Life:      laserLifeSeconds,
		Radius:    laserRadius,
	})
}

// rotateAboutAxis rotates v around the unit axis by angle (Rodrigues).
func rotateAboutAxis(v, axis sphere.Vec3, angle float64) sphere.Vec3 {
	cos, sin := math.Cos(angle), math.Sin(angle)
	return v.Scale(cos).
		Add(axis.Cross(v).Scale(sin)).
		Add(axis.Scale(axis.Dot(v) * (1 - cos)))
}

// applyInteract handles explicit interaction requests. References to missing
// or already resolved targets are ignored silently rather than erroring.
func (w *World) applyInteract(p *Player, cmd *InteractCommand) {
	if !p.Alive() {
		return
	}
	switch cmd.TargetType {
	case "node":
		node, ok := w.nodes[cmd.TargetID]
		if !ok || node.Connected {
			return
		}
		surface := sphere.ProjectToSphere(node.Pos, w.cfg.SphereRadius)
		if sphere.ChordDistance(p.Pos, surface) > node.Radius+nodeReachBonus {
			return
		}
		w.nudgeNode(node, nodeNudgeFactor, p.ID)
	}
}

func (w *World) stepAsteroids(dt float64) {
	for _, a := range w.asteroids {
		if a.Destroyed {
			continue
		}
		a.Pos = sphere.MoveOnSurface(a.Pos, a.VelEast*dt, a.VelNorth*dt, w.cfg.SphereRadius)
		a.Rotation = math.Mod(a.Rotation+a.RotationSpeed*dt, 2*math.Pi)
	}
}

func (w *World) stepLasers(dt float64) {
	alive := w.lasers[:0]
	for _, l := range w.lasers {
		l.Life -= dt
		if l.Life <= 0 {
			continue
		}
		l.Pos = l.Pos.Add(l.Dir.Scale(l.Speed * dt))
		sphere.ProjectToSphereInPlace(&l.Pos, w.cfg.SphereRadius)
		l.Dir = sphere.ParallelTransport(l.Dir, l.Pos)
		alive = append(alive, l)
	}
	w.lasers = alive
}

// expireTimedEffects reverts power-up effects whose deadline tick passed.
// Deadlines live on the player record, so they survive checkpoints and do
// not leak timers across rejoins.
func (w *World) expireTimedEffects() {
	for _, p := range w.players {
		if p.SpeedBoostUntil != 0 && w.tick >= p.SpeedBoostUntil {
			p.Speed = basePlayerSpeed
			p.SpeedBoostUntil = 0
		}
		if p.MultishotUntil != 0 && w.tick >= p.MultishotUntil {
			p.MultishotUntil = 0
		}
		if p.ShieldUntil != 0 && w.tick >= p.ShieldUntil {
			p.ShieldUntil = 0
		}
	}
}

// refillPools replaces destroyed asteroids and NPCs and relocates collected
// power-ups so the pools stay at their target counts.
func (w *World) refillPools() {
	liveAsteroids := w.asteroids[:0]
	for _, a := range w.asteroids {
		if !a.Destroyed {
			liveAsteroids = append(liveAsteroids, a)
		}
	}
	w.asteroids = liveAsteroids
	for len(w.asteroids) < w.cfg.AsteroidTarget {
		w.asteroids = append(w.asteroids, w.spawnAsteroid())
	}

	for id, npc := range w.npcs {
		if npc.Destroyed {
			delete(w.npcs, id)
		}
	}
	for len(w.npcs) < w.cfg.NpcTarget {
		npc := w.spawnNpc()
		w.npcs[npc.ID] = npc
	}

	for i, pu := range w.powerUps {
		if pu.Collected {
			w.powerUps[i] = w.spawnPowerUp()
		}
	}
	for len(w.powerUps) < w.cfg.PowerUpTarget {
		w.powerUps = append(w.powerUps, w.spawnPowerUp())
	}
}
