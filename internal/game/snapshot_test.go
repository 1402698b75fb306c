package game

import (
	"testing"

	"github.com/starspacegroup/starspace-server/internal/sphere"
)

func TestSnapshotRoundTrip(t *testing.T) {
	cfg := testConfig(71)
	cfg.AsteroidTarget = 5
	cfg.NpcTarget = 3
	cfg.PowerUpTarget = 2
	w := newTestWorld(t, cfg)
	p := w.AddPlayer("p1", "Pilot")
	p.Score = 120
	p.Health = 60
	stepTicks(w, 25, nil)

	snap := w.Capture()

	restored := NewWorld(cfg, nil, nil, nil, nil)
	restored.Restore(snap)

	if restored.Tick() != w.Tick() {
		t.Fatalf("tick = %d, want %d", restored.Tick(), w.Tick())
	}
	if restored.Wave() != w.Wave() {
		t.Fatalf("wave = %d, want %d", restored.Wave(), w.Wave())
	}
	if restored.PuzzleProgress() != w.PuzzleProgress() {
		t.Fatalf("progress = %.3f, want %.3f", restored.PuzzleProgress(), w.PuzzleProgress())
	}
	got, ok := restored.Player("p1")
	if !ok {
		t.Fatal("player missing after restore")
	}
	if got.Score != 120 || got.Health != 60 {
		t.Fatalf("player state lost: score=%d health=%.1f", got.Score, got.Health)
	}
	if len(restored.npcs) != len(w.npcs) {
		t.Fatalf("npc count = %d, want %d", len(restored.npcs), len(w.npcs))
	}
	if len(restored.nodeOrder) != len(w.nodeOrder) {
		t.Fatalf("node order length = %d, want %d", len(restored.nodeOrder), len(w.nodeOrder))
	}
}

func TestRestoreReResolvesStaleAllyTarget(t *testing.T) {
	w := newTestWorld(t, testConfig(72))
	npc := w.spawnNpc()
	npc.State = NpcConverted
	npc.TargetNodeID = "node-that-no-longer-exists"
	w.npcs[npc.ID] = npc

	snap := w.Capture()
	restored := newTestWorld(t, testConfig(72))
	restored.Restore(snap)

	var ally *Npc
	for _, n := range restored.npcs {
		if n.State == NpcConverted {
			ally = n
		}
	}
	if ally == nil {
		t.Fatal("converted npc missing after restore")
	}
	if ally.TargetNodeID == "node-that-no-longer-exists" {
		t.Fatal("stale target reference survived restore")
	}
	if ally.TargetNodeID == "" {
		t.Fatal("ally target not re-resolved despite unconnected nodes remaining")
	}
}

func TestRestoreDropsLasers(t *testing.T) {
	w := newTestWorld(t, testConfig(73))
	placePlayer(w, "p1")
	w.spawnLaser("p1", LaserOwnerPlayer, w.players["p1"].Pos, sphere.Vec3{Z: 1})

	snap := w.Capture()
	restored := newTestWorld(t, testConfig(73))
	restored.Restore(snap)
	if len(restored.lasers) != 0 {
		t.Fatalf("lasers should not survive a restore, got %d", len(restored.lasers))
	}
}
