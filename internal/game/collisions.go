package game

import (
	"fmt"

	"github.com/starspacegroup/starspace-server/internal/sphere"
	"github.com/starspacegroup/starspace-server/logging"
)

// resolveCollisions runs the stateless per-tick interaction pass. Entity
// counts are room-sized, so the O(players × entities) sweep stays cheap.
// Rules are order-insensitive within a tick except that a laser is consumed
// by its first hit and skipped for the remaining checks.
func (w *World) resolveCollisions() {
	for _, p := range w.players {
		if !p.Alive() {
			continue
		}
		w.collidePowerUps(p)
		w.collideNodes(p)
		w.collideHostiles(p)
	}
	w.collideLasers()
}

func (w *World) collidePowerUps(p *Player) {
	for _, pu := range w.powerUps {
		if pu.Collected {
			continue
		}
		if sphere.ChordDistance(p.Pos, pu.Pos) >= 1+pu.Radius {
			continue
		}
		pu.Collected = true
		w.applyPowerUp(p, pu.Type)
		w.queueEvent(Event{Type: EventPowerUpCollected, ActorID: p.ID, TargetID: pu.ID, Text: string(pu.Type)})
	}
}

func (w *World) applyPowerUp(p *Player, kind PowerUpType) {
	switch kind {
	case PowerUpHealth:
		p.Health += healthPickupAmount
		if p.Health > p.MaxHealth {
			p.Health = p.MaxHealth
		}
	case PowerUpSpeed:
		p.Speed = basePlayerSpeed * speedBoostFactor
		p.SpeedBoostUntil = w.tick + w.cfg.TicksFor(speedBoostSeconds)
	case PowerUpMultishot:
		p.MultishotUntil = w.tick + w.cfg.TicksFor(multishotSeconds)
	case PowerUpShield:
		p.ShieldUntil = w.tick + w.cfg.TicksFor(shieldSeconds)
	}
}

// collideNodes nudges unconnected puzzle nodes a player flies over. The node
// lives at an interior radius, so proximity is judged against its surface
// projection.
func (w *World) collideNodes(p *Player) {
	for _, id := range w.nodeOrder {
		node, ok := w.nodes[id]
		if !ok || node.Connected {
			continue
		}
		surface := sphere.ProjectToSphere(node.Pos, w.cfg.SphereRadius)
		if sphere.ChordDistance(p.Pos, surface) >= node.Radius+nodeReachBonus {
			continue
		}
		w.nudgeNode(node, nodeNudgeFactor, p.ID)
	}
}

// collideHostiles applies contact damage and the escape teleport.
func (w *World) collideHostiles(p *Player) {
	for _, npc := range w.npcs {
		if npc.Destroyed || npc.State != NpcHostile {
			continue
		}
		if sphere.ChordDistance(p.Pos, npc.Pos) >= 1+npc.Radius {
			continue
		}
		if w.tick < p.InvincibleUntil {
			continue
		}
		if w.tick >= p.ShieldUntil {
			w.damagePlayer(p, contactDamage, npc.ID)
		}
		// Displace even when shielded so the player cannot camp inside a
		// hostile's hitbox.
		p.Pos = w.randomSafePoint(p.Pos, teleportMinDistance, teleportMaxDistance)
		p.InvincibleUntil = w.tick + w.cfg.TicksFor(invincibilitySeconds)
		break
	}
}

func (w *World) damagePlayer(p *Player, amount float64, sourceID string) {
	p.Health -= amount
	if p.Health < 0 {
		p.Health = 0
	}
	w.queueEvent(Event{Type: EventPlayerHit, ActorID: p.ID, TargetID: sourceID, Amount: amount})
	if !p.Alive() {
		w.publish(logging.Event{
			Type:     "player-died",
			Actor:    logging.EntityRef{ID: p.ID, Kind: logging.EntityKindPlayer},
			Severity: logging.SeverityInfo,
			Message:  fmt.Sprintf("%s was destroyed", p.Name),
		})
	}
}

// collideLasers resolves projectile hits. Each laser lands at most one
// destructive hit per tick: the first matching target consumes it.
func (w *World) collideLasers() {
	surviving := w.lasers[:0]
	for _, l := range w.lasers {
		if !w.laserHits(l) {
			surviving = append(surviving, l)
		}
	}
	w.lasers = surviving
}

func (w *World) laserHits(l *Laser) bool {
	switch l.OwnerKind {
	case LaserOwnerPlayer:
		for _, npc := range w.npcs {
			if npc.Destroyed || npc.State != NpcHostile {
				continue
			}
			if sphere.ChordDistance(l.Pos, npc.Pos) >= l.Radius+npc.Radius+1.0 {
				continue
			}
			// A hit begins conversion instead of destroying the ship.
			npc.State = NpcConverting
			npc.ConversionProgress = 0.01
			if shooter, ok := w.players[l.OwnerID]; ok {
				shooter.Score += 25
			}
			return true
		}
		for _, a := range w.asteroids {
			if a.Destroyed {
				continue
			}
			if sphere.ChordDistance(l.Pos, a.Pos) >= l.Radius+a.Radius+1.0 {
				continue
			}
			a.Health -= asteroidLaserDamage
			if a.Health <= 0 {
				a.Destroyed = true
				if shooter, ok := w.players[l.OwnerID]; ok {
					shooter.Score += 10
				}
			}
			return true
		}
	case LaserOwnerNpc:
		for _, p := range w.players {
			if !p.Alive() {
				continue
			}
			if sphere.ChordDistance(l.Pos, p.Pos) >= l.Radius+1.0+1.0 {
				continue
			}
			if w.tick >= p.InvincibleUntil && w.tick >= p.ShieldUntil {
				w.damagePlayer(p, npcLaserDamage, l.OwnerID)
			}
			return true
		}
	}
	return false
}
