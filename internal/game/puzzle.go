package game

import (
	"fmt"
	"math"

	"github.com/starspacegroup/starspace-server/internal/sphere"
	"github.com/starspacegroup/starspace-server/logging"
)

// nudgeNode moves an unconnected node a fraction of the way toward its
// target and locks it once it lands close enough. Connected nodes are
// frozen; callers must not nudge them.
func (w *World) nudgeNode(node *PuzzleNode, fraction float64, actorID string) {
	if node.Connected {
		return
	}
	node.Pos = node.Pos.Add(node.Target.Sub(node.Pos).Scale(fraction))
	if sphere.ChordDistance(node.Pos, node.Target) >= nodeLockDistance {
		return
	}
	node.Pos = node.Target
	node.Connected = true
	w.queueEvent(Event{Type: EventNodeConnected, ActorID: actorID, TargetID: node.ID})

	connected := w.connectedNodeCount()
	if connected%milestoneEveryConnected == 0 {
		w.publish(logging.Event{
			Type:     "puzzle-milestone",
			Actor:    logging.EntityRef{ID: node.ID, Kind: logging.EntityKindNode},
			Severity: logging.SeverityInfo,
			Message:  fmt.Sprintf("%d of %d nodes connected", connected, len(w.nodes)),
		})
	}
	w.recomputeProgress()
}

// recomputeProgress derives puzzle progress from the connected-node count.
// Progress is always recomputed from scratch, never drifted incrementally.
func (w *World) recomputeProgress() {
	total := len(w.nodes)
	if total == 0 {
		w.puzzleProgress = 0
		return
	}
	connected := w.connectedNodeCount()
	w.puzzleProgress = 100 * float64(connected) / float64(total)

	if !w.puzzleSolved && connected == total {
		w.puzzleSolved = true
		w.wave++
		w.publish(logging.Event{
			Type:     "wave-advanced",
			Actor:    logging.EntityRef{Kind: logging.EntityKindRoom},
			Severity: logging.SeverityInfo,
			Message:  fmt.Sprintf("wave %d complete", w.wave-1),
		})
		w.queueEvent(Event{Type: EventWaveAdvanced, Amount: float64(w.wave)})
	}
}

func (w *World) connectedNodeCount() int {
	connected := 0
	for _, node := range w.nodes {
		if node.Connected {
			connected++
		}
	}
	return connected
}

// emitHint queues one hint about the node's remaining displacement. The
// templates are deliberately redundant and noisy: a rotating pool keeps
// hints useful without turning any single one into a solver.
func (w *World) emitHint(npc *Npc, node *PuzzleNode) {
	var text string
	switch w.rng.Intn(4) {
	case 0:
		text = w.directionalHint(node)
	case 1:
		text = distanceHint(node)
	case 2:
		text = fmt.Sprintf("overall alignment at %.0f%%", w.puzzleProgress)
	default:
		text = w.neighborHint(node)
	}
	w.queueEvent(Event{Type: EventHint, ActorID: npc.ID, TargetID: node.ID, Text: text})
}

func (w *World) directionalHint(node *PuzzleNode) string {
	east, north, _ := sphere.TangentFrame(node.Pos)
	delta := node.Target.Sub(node.Pos)
	de := delta.Dot(east)
	dn := delta.Dot(north)

	ew := "east"
	if de < 0 {
		ew = "west"
	}
	ns := "north"
	if dn < 0 {
		ns = "south"
	}
	if math.Abs(de) > 2*math.Abs(dn) {
		return fmt.Sprintf("the %s node wants to drift %s", node.Color, ew)
	}
	if math.Abs(dn) > 2*math.Abs(de) {
		return fmt.Sprintf("the %s node wants to drift %s", node.Color, ns)
	}
	return fmt.Sprintf("the %s node wants to drift %s-%s", node.Color, ns, ew)
}

func distanceHint(node *PuzzleNode) string {
	remaining := sphere.ChordDistance(node.Pos, node.Target)
	span := sphere.ChordDistance(sphere.Vec3{}, node.Target) // target radius as a rough scale
	if span < 1 {
		span = 1
	}
	pct := 100 * (1 - remaining/(2*span))
	if pct < 0 {
		pct = 0
	}
	return fmt.Sprintf("the %s node is about %.0f%% of the way home", node.Color, pct)
}

func (w *World) neighborHint(node *PuzzleNode) string {
	nearby := 0
	for _, id := range w.nodeOrder {
		other, ok := w.nodes[id]
		if !ok || other.ID == node.ID || !other.Connected {
			continue
		}
		if sphere.AngularDistance(node.Pos, other.Pos) < math.Pi/4 {
			nearby++
		}
	}
	if nearby == 0 {
		return fmt.Sprintf("the %s node has no locked neighbors yet", node.Color)
	}
	return fmt.Sprintf("the %s node has %d locked neighbors nearby", node.Color, nearby)
}
