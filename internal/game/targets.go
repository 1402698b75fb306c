package game

import "github.com/starspacegroup/starspace-server/internal/sphere"

// TargetPoint is one precomputed puzzle target from the external root-system
// projection: a solved-state position plus the wave it belongs to.
type TargetPoint struct {
	Pos  sphere.Vec3 `json:"pos" msgpack:"pos"`
	Wave int         `json:"wave" msgpack:"wave"`
}

// TargetPositions extracts the wave-1 positions from a target list, in
// order. Later waves are revealed by the content service, not this core.
func TargetPositions(targets []TargetPoint) []sphere.Vec3 {
	if len(targets) == 0 {
		return nil
	}
	out := make([]sphere.Vec3, 0, len(targets))
	for _, t := range targets {
		if t.Wave <= 1 {
			out = append(out, t.Pos)
		}
	}
	return out
}
