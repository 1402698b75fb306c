package game

import (
	"math"
	"testing"
	"time"

	"github.com/starspacegroup/starspace-server/internal/sphere"
)

func TestMaxStepSecondsTracksTickRate(t *testing.T) {
	cases := []struct {
		rate int
		want float64
	}{
		{20, 0.15},
		{10, 0.3},
		{60, 0.05},
	}
	for _, tc := range cases {
		cfg := Config{TickRate: tc.rate}.Normalized()
		if got := cfg.MaxStepSeconds(); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("MaxStepSeconds at rate %d = %v, want %v", tc.rate, got, tc.want)
		}
	}
}

func TestStepClampsDeltaAtConfiguredRate(t *testing.T) {
	cfg := testConfig(11)
	cfg.TickRate = 10
	w := newTestWorld(t, cfg)
	p := w.AddPlayer("p1", "Laggy")
	// Put the player where a +X velocity is purely tangential.
	p.Pos = sphere.Vec3{Z: cfg.SphereRadius}
	start := p.Pos

	// A 5 s stall must integrate as three tick intervals (0.3 s at 10 Hz),
	// not as five seconds of travel.
	w.Step(time.Unix(0, 0), 5.0, []Command{{
		ActorID: "p1",
		Type:    CommandInput,
		Input:   &InputCommand{Vel: sphere.Vec3{X: 10}},
	}})

	want := 10 * cfg.MaxStepSeconds()
	got := sphere.ChordDistance(start, p.Pos)
	if math.Abs(got-want) > want*0.01 {
		t.Fatalf("displacement = %.4f, want clamped %.4f", got, want)
	}
}

func TestTicksForRoundsUp(t *testing.T) {
	cfg := Config{TickRate: 20}.Normalized()
	cases := []struct {
		seconds float64
		want    uint64
	}{
		{0.0, 1},
		{0.01, 1},
		{0.25, 5},
		{0.26, 6},
		{2.0, 40},
	}
	for _, tc := range cases {
		if got := cfg.TicksFor(tc.seconds); got != tc.want {
			t.Errorf("TicksFor(%v) = %d, want %d", tc.seconds, got, tc.want)
		}
	}
}
