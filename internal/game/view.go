package game

import "github.com/starspacegroup/starspace-server/internal/sphere"

// View is a per-player filtered copy of the world used for one broadcast.
// Entities beyond the sync radius from the viewer are omitted to bound
// bandwidth. Players and lasers fill every tick; the remaining entity types
// only when full is requested (every few ticks).
type View struct {
	Players   []Player
	Lasers    []Laser
	Asteroids []Asteroid
	Npcs      []Npc
	PowerUps  []PowerUp
	Nodes     []PuzzleNode
}

// ViewFor builds the filtered snapshot for the given viewer. The viewer's
// own entity is always included regardless of radius. An unknown viewer id
// yields a spectator view centered nowhere, containing everything (used for
// room-stats to dead or disconnected players).
func (w *World) ViewFor(viewerID string, full bool) View {
	viewer, hasViewer := w.players[viewerID]
	radius := w.cfg.SyncRadius

	within := func(pos sphere.Vec3) bool {
		if !hasViewer {
			return true
		}
		return sphere.ChordDistance(viewer.Pos, pos) <= radius
	}

	var view View
	for _, p := range w.players {
		if p.ID == viewerID || within(p.Pos) {
			view.Players = append(view.Players, *p)
		}
	}
	for _, l := range w.lasers {
		if within(l.Pos) {
			view.Lasers = append(view.Lasers, *l)
		}
	}
	if !full {
		return view
	}
	for _, a := range w.asteroids {
		if !a.Destroyed && within(a.Pos) {
			view.Asteroids = append(view.Asteroids, *a)
		}
	}
	for _, npc := range w.npcs {
		if !npc.Destroyed && within(npc.Pos) {
			view.Npcs = append(view.Npcs, *npc)
		}
	}
	for _, pu := range w.powerUps {
		if !pu.Collected && within(pu.Pos) {
			view.PowerUps = append(view.PowerUps, *pu)
		}
	}
	for _, node := range w.nodesInOrder() {
		surface := sphere.ProjectToSphere(node.Pos, w.cfg.SphereRadius)
		if within(surface) {
			view.Nodes = append(view.Nodes, *node)
		}
	}
	return view
}

// PlayersSummary returns a copy of every player entity, for end-of-room
// reporting and spectator stats.
func (w *World) PlayersSummary() []Player {
	out := make([]Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, *p)
	}
	return out
}
