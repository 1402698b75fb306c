package game

// Snapshot is the serializable image of a world, written to the checkpoint
// store periodically and on graceful shutdown, and read back to resume an
// in-progress room after a process restart.
type Snapshot struct {
	Tick           uint64       `msgpack:"tick" json:"tick"`
	Wave           int          `msgpack:"wave" json:"wave"`
	PuzzleProgress float64      `msgpack:"puzzleProgress" json:"puzzleProgress"`
	PuzzleSolved   bool         `msgpack:"puzzleSolved" json:"puzzleSolved"`
	Players        []Player     `msgpack:"players" json:"players"`
	Asteroids      []Asteroid   `msgpack:"asteroids" json:"asteroids"`
	Npcs           []Npc        `msgpack:"npcs" json:"npcs"`
	PowerUps       []PowerUp    `msgpack:"powerUps" json:"powerUps"`
	Nodes          []PuzzleNode `msgpack:"nodes" json:"nodes"`
	NodeOrder      []string     `msgpack:"nodeOrder" json:"nodeOrder"`
}

// Capture copies the persistable world state into a Snapshot. Lasers are
// deliberately omitted: they live under two seconds and are cheaper to drop
// than to restore.
func (w *World) Capture() Snapshot {
	snap := Snapshot{
		Tick:           w.tick,
		Wave:           w.wave,
		PuzzleProgress: w.puzzleProgress,
		PuzzleSolved:   w.puzzleSolved,
		NodeOrder:      append([]string(nil), w.nodeOrder...),
	}
	for _, id := range w.nodeOrder {
		if node, ok := w.nodes[id]; ok {
			snap.Nodes = append(snap.Nodes, *node)
		}
	}
	for _, p := range w.players {
		snap.Players = append(snap.Players, *p)
	}
	for _, npc := range w.npcs {
		snap.Npcs = append(snap.Npcs, *npc)
	}
	for _, a := range w.asteroids {
		snap.Asteroids = append(snap.Asteroids, *a)
	}
	for _, pu := range w.powerUps {
		snap.PowerUps = append(snap.PowerUps, *pu)
	}
	return snap
}

// Restore replaces the world's entity state with a checkpoint image.
// Converted NPCs whose target node reference went stale are re-resolved so
// invariant (4) holds immediately after a restart.
func (w *World) Restore(snap Snapshot) {
	w.tick = snap.Tick
	w.wave = snap.Wave
	w.puzzleSolved = snap.PuzzleSolved

	w.players = make(map[string]*Player, len(snap.Players))
	for i := range snap.Players {
		p := snap.Players[i]
		w.players[p.ID] = &p
	}

	w.nodes = make(map[string]*PuzzleNode, len(snap.Nodes))
	w.nodeOrder = w.nodeOrder[:0]
	for i := range snap.Nodes {
		node := snap.Nodes[i]
		w.nodes[node.ID] = &node
		w.nodeOrder = append(w.nodeOrder, node.ID)
	}

	w.npcs = make(map[string]*Npc, len(snap.Npcs))
	for i := range snap.Npcs {
		npc := snap.Npcs[i]
		w.npcs[npc.ID] = &npc
	}
	for _, npc := range w.npcs {
		if npc.State != NpcConverted {
			continue
		}
		if node, ok := w.nodes[npc.TargetNodeID]; !ok || node == nil || node.Connected {
			npc.TargetNodeID = ""
			w.retargetAlly(npc)
		}
	}

	w.asteroids = w.asteroids[:0]
	for i := range snap.Asteroids {
		a := snap.Asteroids[i]
		w.asteroids = append(w.asteroids, &a)
	}

	w.powerUps = w.powerUps[:0]
	for i := range snap.PowerUps {
		pu := snap.PowerUps[i]
		w.powerUps = append(w.powerUps, &pu)
	}

	w.lasers = nil
	w.recomputeProgress()
}
