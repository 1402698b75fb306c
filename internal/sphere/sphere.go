// Package sphere provides the manifold math for entities constrained to the
// surface of a sphere: projection, tangent-frame construction, geodesic
// displacement, and parallel transport of direction vectors.
//
// Every function is deterministic and side-effect-free except the explicitly
// named in-place variants used in hot loops.
package sphere

import (
	"math"
	"math/rand"
)

// Vec3 is a 3D vector in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross returns the cross product v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns v scaled to unit length, or the zero vector if v is
// degenerate.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n < 1e-12 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

const epsilon = 1e-12

// ProjectToSphere rescales p to magnitude r. A near-zero input cannot be
// projected meaningfully and falls back to the canonical pole (0, r, 0).
func ProjectToSphere(p Vec3, r float64) Vec3 {
	n := p.Norm()
	if n < epsilon {
		return Vec3{Y: r}
	}
	return p.Scale(r / n)
}

// ProjectToSphereInPlace is the allocation-free variant of ProjectToSphere
// for per-tick hot loops.
func ProjectToSphereInPlace(p *Vec3, r float64) {
	n := p.Norm()
	if n < epsilon {
		p.X, p.Y, p.Z = 0, r, 0
		return
	}
	s := r / n
	p.X *= s
	p.Y *= s
	p.Z *= s
}

// TangentFrame returns an orthonormal (east, north, normal) basis at a surface
// point. The reference "up" is +Y, blending smoothly to +Z as the point nears
// either Y pole so the frame does not flip discontinuously at the poles.
func TangentFrame(p Vec3) (east, north, normal Vec3) {
	normal = p.Normalize()
	if normal == (Vec3{}) {
		normal = Vec3{Y: 1}
	}

	// Blend the reference vector between 0.9 and 0.999 of |y|/|p| so the
	// singularity at the exact pole is never reached.
	absY := math.Abs(normal.Y)
	ref := Vec3{Y: 1}
	switch {
	case absY >= 0.999:
		ref = Vec3{Z: 1}
	case absY > 0.9:
		t := (absY - 0.9) / (0.999 - 0.9)
		ref = Vec3{Y: 1 - t, Z: t}.Normalize()
	}

	east = ref.Cross(normal).Normalize()
	if east == (Vec3{}) {
		east = Vec3{X: 1}
	}
	north = normal.Cross(east).Normalize()
	return east, north, normal
}

// MoveOnSurface displaces a surface point along its local tangent plane by
// dEast and dNorth, then reprojects the result back onto the sphere of
// radius r.
func MoveOnSurface(p Vec3, dEast, dNorth, r float64) Vec3 {
	east, north, _ := TangentFrame(p)
	moved := p.Add(east.Scale(dEast)).Add(north.Scale(dNorth))
	return ProjectToSphere(moved, r)
}

// ChordDistance returns the straight-line Euclidean distance between a and b.
// Proximity checks use chord rather than arc length: for nearby points the
// two agree closely and the chord is far cheaper.
func ChordDistance(a, b Vec3) float64 {
	return a.Sub(b).Norm()
}

// AngularDistance returns the central angle in radians between the rays to a
// and b. Use this when comparing points at different radii, e.g. a surface
// entity against an interior puzzle node.
func AngularDistance(a, b Vec3) float64 {
	an := a.Normalize()
	bn := b.Normalize()
	d := an.Dot(bn)
	if d > 1 {
		d = 1
	} else if d < -1 {
		d = -1
	}
	return math.Acos(d)
}

// ParallelTransport adjusts a tangent direction vector for a new anchor
// point: the component along the new surface normal is removed and the
// remainder renormalized. This keeps travel directions geodesically
// consistent instead of letting them decay near the poles. A direction that
// collapses onto the normal falls back to an arbitrary tangent.
func ParallelTransport(dir, newPos Vec3) Vec3 {
	normal := newPos.Normalize()
	tangent := dir.Sub(normal.Scale(dir.Dot(normal)))
	out := tangent.Normalize()
	if out == (Vec3{}) {
		east, _, _ := TangentFrame(newPos)
		return east
	}
	return out
}

// RandomOnSphere returns a uniformly distributed point on the sphere of
// radius r.
func RandomOnSphere(rng *rand.Rand, r float64) Vec3 {
	// Marsaglia rejection sampling keeps the distribution uniform.
	for {
		v := Vec3{
			X: rng.Float64()*2 - 1,
			Y: rng.Float64()*2 - 1,
			Z: rng.Float64()*2 - 1,
		}
		n := v.Norm()
		if n > epsilon && n <= 1 {
			return v.Scale(r / n)
		}
	}
}
