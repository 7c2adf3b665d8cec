// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// support.go implements the support-function framework GJK/EPA build on:
// given a direction, return the shape's farthest point along that
// direction, in three modes that control how the convex radius is
// handled.

package phy

import "github.com/gazed/physics/math/lin"

// SupportMode selects how a shape's support function treats its convex
// radius: Include bakes the radius into the returned point (used
// for most primitive-vs-primitive tests), Exclude shrinks the geometry by
// the scaled convex radius so GJK can operate on a strict interior (used
// for EPA/manifold generation, paired with addConvexRadiusSupport to add
// the radius back afterwards), Default picks whichever behaviour the
// shape considers natural (spheres/capsules: Include, since their convex
// radius IS the shape).
type SupportMode int

const (
	SupportDefault SupportMode = iota
	SupportInclude
	SupportExclude
)

// Support is an allocation-free support-function object bound to one
// shape instance. GetSupport must not allocate.
type Support interface {
	GetSupport(direction *lin.V3, out *lin.V3) *lin.V3
	ConvexRadius() float64
}

// ----------------------------------------------------------------------------
// sphere support

type sphereSupport struct {
	radius float64
	mode   SupportMode
}

func newSphereSupport(r float64, mode SupportMode) Support { return &sphereSupport{radius: r, mode: mode} }

func (s *sphereSupport) ConvexRadius() float64 {
	if s.mode == SupportExclude {
		return s.radius
	}
	return 0
}

func (s *sphereSupport) GetSupport(dir, out *lin.V3) *lin.V3 {
	if s.mode == SupportExclude {
		out.SetS(0, 0, 0)
		return out
	}
	l := dir.Len()
	if l < lin.Epsilon {
		out.SetS(s.radius, 0, 0)
		return out
	}
	out.Scale(dir, s.radius/l)
	return out
}

// ----------------------------------------------------------------------------
// box support

type boxSupport struct {
	half lin.V3
	mode SupportMode
}

func newBoxSupport(half lin.V3, mode SupportMode) Support { return &boxSupport{half: half, mode: mode} }

func (b *boxSupport) ConvexRadius() float64 {
	if b.mode == SupportExclude {
		return defaultConvexRadius
	}
	return 0
}

func (b *boxSupport) GetSupport(dir, out *lin.V3) *lin.V3 {
	h := b.half
	r := 0.0
	if b.mode == SupportExclude {
		r = defaultConvexRadius
	}
	out.SetS(signf(dir.X)*(h.X-r), signf(dir.Y)*(h.Y-r), signf(dir.Z)*(h.Z-r))
	return out
}

// ----------------------------------------------------------------------------
// capsule support (segment of length 2*halfHeight along Y, radius r)

type capsuleSupport struct {
	halfHeight, radius float64
	mode               SupportMode
}

func newCapsuleSupport(halfHeight, radius float64, mode SupportMode) Support {
	return &capsuleSupport{halfHeight: halfHeight, radius: radius, mode: mode}
}

func (c *capsuleSupport) ConvexRadius() float64 {
	if c.mode == SupportExclude {
		return c.radius
	}
	return 0
}

func (c *capsuleSupport) GetSupport(dir, out *lin.V3) *lin.V3 {
	y := c.halfHeight
	if dir.Y < 0 {
		y = -y
	}
	if c.mode == SupportExclude {
		out.SetS(0, y, 0)
		return out
	}
	l := dir.Len()
	if l < lin.Epsilon {
		out.SetS(0, y+c.radius, 0)
		return out
	}
	out.Scale(dir, c.radius/l)
	out.Y += y
	return out
}

// ----------------------------------------------------------------------------
// cylinder support (axis Y, half-height h, radius r)

type cylinderSupport struct {
	halfHeight, radius float64
	mode               SupportMode
}

func newCylinderSupport(halfHeight, radius float64, mode SupportMode) Support {
	return &cylinderSupport{halfHeight: halfHeight, radius: radius, mode: mode}
}

func (c *cylinderSupport) ConvexRadius() float64 {
	if c.mode == SupportExclude {
		return defaultConvexRadius
	}
	return 0
}

func (c *cylinderSupport) GetSupport(dir, out *lin.V3) *lin.V3 {
	r := c.radius
	h := c.halfHeight
	if c.mode == SupportExclude {
		r -= defaultConvexRadius
		h -= defaultConvexRadius
		if r < 0 {
			r = 0
		}
		if h < 0 {
			h = 0
		}
	}
	sy := h
	if dir.Y < 0 {
		sy = -h
	}
	sxz := sqrt(dir.X*dir.X + dir.Z*dir.Z)
	if sxz < lin.Epsilon {
		out.SetS(r, sy, 0)
		return out
	}
	out.SetS(dir.X*r/sxz, sy, dir.Z*r/sxz)
	return out
}

// ----------------------------------------------------------------------------
// polygon support: over a supporting face sampled from clipping

type polygonSupport struct {
	verts []lin.V3
}

func newPolygonSupport(face *Face) Support { return &polygonSupport{verts: face.Vertices} }

func (p *polygonSupport) ConvexRadius() float64 { return 0 }

func (p *polygonSupport) GetSupport(dir, out *lin.V3) *lin.V3 {
	best := 0
	bestDot := -lin.Large
	for i, v := range p.verts {
		d := v.Dot(dir)
		if d > bestDot {
			bestDot, best = d, i
		}
	}
	out.SetS(p.verts[best].GetS())
	return out
}

// ----------------------------------------------------------------------------
// triangle support: one face of a triangle mesh

type triangleSupport struct {
	a, b, c lin.V3
}

func newTriangleSupport(a, b, c lin.V3) Support { return &triangleSupport{a: a, b: b, c: c} }

func (t *triangleSupport) ConvexRadius() float64 { return 0 }

func (t *triangleSupport) GetSupport(dir, out *lin.V3) *lin.V3 {
	best := &t.a
	bestDot := t.a.Dot(dir)
	if d := t.b.Dot(dir); d > bestDot {
		bestDot, best = d, &t.b
	}
	if d := t.c.Dot(dir); d > bestDot {
		best = &t.c
	}
	out.SetS(best.GetS())
	return out
}

// ----------------------------------------------------------------------------
// transformed support: rotation + translation wrapper over an inner
// support, built on a quaternion pose. A matrix-pose variant is
// intentionally omitted; nothing in this engine needs non-rigid shears.

type transformedSupport struct {
	inner Support
	pose  *lin.T
	v0    lin.V3 // scratch
}

func newTransformedSupport(inner Support, pose *lin.T) Support {
	return &transformedSupport{inner: inner, pose: pose}
}

func (t *transformedSupport) ConvexRadius() float64 { return t.inner.ConvexRadius() }

func (t *transformedSupport) GetSupport(dir, out *lin.V3) *lin.V3 {
	// rotate direction into local space (rotation only: direction has no
	// translation component), query the inner support there, then map the
	// result back into world space with the full transform.
	lx, ly, lz := rotateInverse(t.pose, dir)
	t.v0.SetS(lx, ly, lz)
	t.inner.GetSupport(&t.v0, out)
	wx, wy, wz := t.pose.AppS(out.X, out.Y, out.Z)
	out.SetS(wx, wy, wz)
	return out
}

func rotateInverse(pose *lin.T, dir *lin.V3) (float64, float64, float64) {
	ix, iy, iz := -pose.Rot.X, -pose.Rot.Y, -pose.Rot.Z
	return lin.MultSQ(dir.X, dir.Y, dir.Z, &lin.Q{X: ix, Y: iy, Z: iz, W: pose.Rot.W})
}

// ----------------------------------------------------------------------------
// add-convex-radius support: pairs with an Exclude-mode inner support to
// report the excluded amount as a separately-tracked radius rather than
// baking it back into the point (GJK/EPA work on the shrunk core and add
// the combined radius to the separation distance instead).

type addConvexRadiusSupport struct {
	inner  Support
	radius float64
}

func newAddConvexRadiusSupport(inner Support, radius float64) Support {
	return &addConvexRadiusSupport{inner: inner, radius: radius}
}

func (a *addConvexRadiusSupport) ConvexRadius() float64 { return a.radius }

func (a *addConvexRadiusSupport) GetSupport(dir, out *lin.V3) *lin.V3 {
	return a.inner.GetSupport(dir, out)
}

// ----------------------------------------------------------------------------
// Minkowski-difference support: supportA(d) - supportB(-d). This is the
// core building block GJK iterates on.

type minkowskiSupport struct {
	a, b   Support
	negDir lin.V3
	pa, pb lin.V3
}

func newMinkowskiSupport(a, b Support) *minkowskiSupport { return &minkowskiSupport{a: a, b: b} }

// Get writes the Minkowski-difference support point for dir into out, and
// also returns the two witness points (on A and B respectively) so the
// caller can recover contact points once GJK/EPA converge.
func (m *minkowskiSupport) Get(dir, out *lin.V3) (witnessA, witnessB *lin.V3) {
	m.a.GetSupport(dir, &m.pa)
	m.negDir.Scale(dir, -1)
	m.b.GetSupport(&m.negDir, &m.pb)
	out.Sub(&m.pa, &m.pb)
	return &m.pa, &m.pb
}
