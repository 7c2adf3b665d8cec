// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// query.go is the public read-only query surface: castRay, castShape,
// collidePoint, collideShape. All four share the broadphase's QueryBox walk
// (broadphase.go) and, for shape-vs-shape queries, the same narrowphase
// dispatch table a running step uses (dispatch.go/clip.go), generalised from
// the teacher's caster.go rayCastAlgorithms map of per-shape-pair cast
// functions to this package's single GJK/EPA/clipping pipeline plus each
// Shape's own local-space CastRay/CollidePoint.
package phy

import "github.com/gazed/physics/math/lin"

// QueryFilter narrows which bodies a query may hit: Group/Mask mirror
// RigidBody's own collision filter (a query behaves like an extra body
// asking "what would I hit"), and Predicate, if set, is consulted last for
// any per-body logic a group/mask pair can't express.
type QueryFilter struct {
	Group     uint32
	Mask      uint32
	Predicate func(BodyID) bool
}

func (f *QueryFilter) admits(b *RigidBody) bool {
	if f == nil {
		return true
	}
	if f.Mask != 0 && f.Mask&b.Group == 0 {
		return false
	}
	if f.Predicate != nil && !f.Predicate(b.ID) {
		return false
	}
	return true
}

// RayCastHit is one ray/body intersection: Fraction is the point along
// [0,1] of the queried ray where the hit occurred (distance = maxDistance *
// Fraction), matching the teacher's castRayPlane/castRaySphere "closest
// contact point" convention generalised to a caller-supplied collector.
type RayCastHit struct {
	Body        BodyID
	Fraction    float64
	SubShapeID  uint32
	Point       lin.V3
}

// RayCastCollector receives hits as castRay walks candidate bodies.
// ShouldEarlyOut lets the walk stop once a collector no longer cares about
// further, deeper hits (e.g. AnyHit stops at the first one).
type RayCastCollector interface {
	AddHit(hit RayCastHit)
	ShouldEarlyOut() bool
}

// baseCollector tracks the standard earlyOutFraction every built-in
// collector narrows as it accepts hits. The queries in this file do not
// read it: every candidate still runs its shape test.
type baseCollector struct{ EarlyOutFraction float64 }

func newBaseCollector() baseCollector { return baseCollector{EarlyOutFraction: 1} }

// AnyRayCastHitCollector accepts the first hit found and stops.
type AnyRayCastHitCollector struct {
	baseCollector
	Hit   RayCastHit
	Found bool
}

func NewAnyRayCastHitCollector() *AnyRayCastHitCollector {
	return &AnyRayCastHitCollector{baseCollector: newBaseCollector()}
}
func (c *AnyRayCastHitCollector) AddHit(hit RayCastHit) {
	if !c.Found {
		c.Hit, c.Found = hit, true
		c.EarlyOutFraction = hit.Fraction
	}
}
func (c *AnyRayCastHitCollector) ShouldEarlyOut() bool { return c.Found }

// ClosestRayCastHitCollector keeps only the nearest hit.
type ClosestRayCastHitCollector struct {
	baseCollector
	Hit   RayCastHit
	Found bool
}

func NewClosestRayCastHitCollector() *ClosestRayCastHitCollector {
	return &ClosestRayCastHitCollector{baseCollector: newBaseCollector()}
}
func (c *ClosestRayCastHitCollector) AddHit(hit RayCastHit) {
	if !c.Found || hit.Fraction < c.Hit.Fraction {
		c.Hit, c.Found = hit, true
		c.EarlyOutFraction = hit.Fraction
	}
}
func (c *ClosestRayCastHitCollector) ShouldEarlyOut() bool { return false }

// AllRayCastHitsCollector keeps every hit, unsorted (callers that want
// closest-first should sort by Fraction themselves).
type AllRayCastHitsCollector struct {
	baseCollector
	Hits []RayCastHit
}

func NewAllRayCastHitsCollector() *AllRayCastHitsCollector {
	return &AllRayCastHitsCollector{baseCollector: newBaseCollector()}
}
func (c *AllRayCastHitsCollector) AddHit(hit RayCastHit) { c.Hits = append(c.Hits, hit) }
func (c *AllRayCastHitsCollector) ShouldEarlyOut() bool  { return false }

// CastRay walks every body whose broadphase-layer tree overlaps the ray's
// swept AABB and reports hits to collector, converting origin/direction
// into each candidate's local space before calling its Shape.CastRay.
func CastRay(world *World, collector RayCastCollector, origin, direction lin.V3, maxDistance float64, filter *QueryFilter) {
	if collector == nil || maxDistance <= 0 {
		return
	}
	delta := lin.V3{X: direction.X * maxDistance, Y: direction.Y * maxDistance, Z: direction.Z * maxDistance}

	var sweep Abox
	sweep.Sx, sweep.Sy, sweep.Sz = origin.X, origin.Y, origin.Z
	sweep.Lx, sweep.Ly, sweep.Lz = origin.X, origin.Y, origin.Z
	sweep.ExpandSwept(delta.GetS())
	sweep.Expand(lin.Epsilon)

	for _, idx := range world.broadphase.QueryBox(&sweep) {
		if collector.ShouldEarlyOut() {
			return
		}
		b := world.bodies[idx]
		if b == nil || b.Shape == nil || !filter.admits(b) {
			continue
		}
		lox, loy, loz := b.Pose.InvS(origin.GetS())
		ldx, ldy, ldz := rotateInverse(&b.Pose, &delta)
		localOrigin := lin.V3{X: lox, Y: loy, Z: loz}
		localDelta := lin.V3{X: ldx, Y: ldy, Z: ldz}
		hit, fraction, sub := b.Shape.CastRay(&localOrigin, &localDelta, 1)
		if !hit {
			continue
		}
		point := lin.V3{
			X: origin.X + delta.X*fraction,
			Y: origin.Y + delta.Y*fraction,
			Z: origin.Z + delta.Z*fraction,
		}
		collector.AddHit(RayCastHit{Body: b.ID, Fraction: fraction, SubShapeID: sub, Point: point})
	}
}

// ShapeCastHit is one shape-cast contact: Fraction is where along the swept
// displacement the moving shape first touches a world body.
type ShapeCastHit struct {
	Body     BodyID
	Fraction float64
}

// ShapeCastCollector receives hits as CastShape walks candidate bodies.
type ShapeCastCollector interface {
	AddHit(hit ShapeCastHit)
	ShouldEarlyOut() bool
}

// ClosestShapeCastHitCollector keeps only the nearest hit, the usual case
// for a character controller's move-and-slide shape cast.
type ClosestShapeCastHitCollector struct {
	baseCollector
	Hit   ShapeCastHit
	Found bool
}

func NewClosestShapeCastHitCollector() *ClosestShapeCastHitCollector {
	return &ClosestShapeCastHitCollector{baseCollector: newBaseCollector()}
}
func (c *ClosestShapeCastHitCollector) AddHit(hit ShapeCastHit) {
	if !c.Found || hit.Fraction < c.Hit.Fraction {
		c.Hit, c.Found = hit, true
		c.EarlyOutFraction = hit.Fraction
	}
}
func (c *ClosestShapeCastHitCollector) ShouldEarlyOut() bool { return false }

// AllShapeCastHitsCollector keeps every hit found.
type AllShapeCastHitsCollector struct {
	baseCollector
	Hits []ShapeCastHit
}

func NewAllShapeCastHitsCollector() *AllShapeCastHitsCollector {
	return &AllShapeCastHitsCollector{baseCollector: newBaseCollector()}
}
func (c *AllShapeCastHitsCollector) AddHit(hit ShapeCastHit) { c.Hits = append(c.Hits, hit) }
func (c *AllShapeCastHitsCollector) ShouldEarlyOut() bool    { return false }

// castBody wraps shape/pos/quat into a throwaway RigidBody so query shapes
// (not yet, or never, part of the world) can reuse the exact same collide
// machinery (genericConvexCollide, castShapeVsShape) a live body uses.
func castBody(shape Shape, pos lin.V3, rot lin.Q) *RigidBody {
	b := NewRigidBody()
	b.SetShape(shape, 1, false)
	b.Pose.Loc.Set(&pos)
	b.Pose.Rot.Set(&rot)
	b.index = invalidIndex
	return b
}

// CastShape sweeps shape from pos along delta (a full displacement, not a
// unit direction) and reports the earliest fraction at which it overlaps
// each candidate world body, reusing ccd.go's castShapeVsShape bisection.
func CastShape(world *World, collector ShapeCastCollector, shape Shape, pos lin.V3, rot lin.Q, delta lin.V3, filter *QueryFilter) {
	if collector == nil {
		return
	}
	a := castBody(shape, pos, rot)

	var sweep Abox
	a.Shape.Aabb(&a.Pose, &sweep, 0)
	sweep.ExpandSwept(delta.GetS())

	for _, idx := range world.broadphase.QueryBox(&sweep) {
		if collector.ShouldEarlyOut() {
			return
		}
		b := world.bodies[idx]
		if b == nil || b.Shape == nil || !filter.admits(b) {
			continue
		}
		fraction, ok := castShapeVsShape(a, b, pos, delta, 1)
		if !ok {
			continue
		}
		collector.AddHit(ShapeCastHit{Body: b.ID, Fraction: fraction})
	}
}

// CollidePointHit is one body a point query lands inside.
type CollidePointHit struct{ Body BodyID }

// CollidePointCollector receives hits as CollidePoint walks candidate bodies.
type CollidePointCollector interface {
	AddHit(hit CollidePointHit)
	ShouldEarlyOut() bool
}

// AllCollidePointHitsCollector keeps every body the point lands inside.
type AllCollidePointHitsCollector struct {
	baseCollector
	Hits []CollidePointHit
}

func NewAllCollidePointHitsCollector() *AllCollidePointHitsCollector {
	return &AllCollidePointHitsCollector{baseCollector: newBaseCollector()}
}
func (c *AllCollidePointHitsCollector) AddHit(hit CollidePointHit) { c.Hits = append(c.Hits, hit) }
func (c *AllCollidePointHitsCollector) ShouldEarlyOut() bool       { return false }

// CollidePoint reports every body (passing filter) whose shape contains
// point, via collector.
func CollidePoint(world *World, collector CollidePointCollector, point lin.V3, filter *QueryFilter) {
	if collector == nil {
		return
	}
	var box Abox
	box.Sx, box.Sy, box.Sz = point.X, point.Y, point.Z
	box.Lx, box.Ly, box.Lz = point.X, point.Y, point.Z
	box.Expand(lin.Epsilon)

	for _, idx := range world.broadphase.QueryBox(&box) {
		if collector.ShouldEarlyOut() {
			return
		}
		b := world.bodies[idx]
		if b == nil || b.Shape == nil || !filter.admits(b) {
			continue
		}
		lx, ly, lz := b.Pose.InvS(point.GetS())
		local := lin.V3{X: lx, Y: ly, Z: lz}
		if b.Shape.CollidePoint(&local) {
			collector.AddHit(CollidePointHit{Body: b.ID})
		}
	}
}

// CollideShapeHit is one manifold a stationary collideShape query found
// against a world body.
type CollideShapeHit struct {
	Body     BodyID
	Manifold *Manifold
}

// CollideShapeCollector receives hits as CollideShape walks candidate bodies.
type CollideShapeCollector interface {
	AddHit(hit CollideShapeHit)
	ShouldEarlyOut() bool
}

// AllCollideShapeHitsCollector keeps every overlap found.
type AllCollideShapeHitsCollector struct {
	baseCollector
	Hits []CollideShapeHit
}

func NewAllCollideShapeHitsCollector() *AllCollideShapeHitsCollector {
	return &AllCollideShapeHitsCollector{baseCollector: newBaseCollector()}
}
func (c *AllCollideShapeHitsCollector) AddHit(hit CollideShapeHit) { c.Hits = append(c.Hits, hit) }
func (c *AllCollideShapeHitsCollector) ShouldEarlyOut() bool       { return false }

// CollideShape tests shape at (pos, rot) against every broadphase candidate
// and reports the ones that actually overlap (a real GJK/EPA/clip manifold,
// not just a broadphase AABB hit) to collector.
func CollideShape(world *World, collector CollideShapeCollector, shape Shape, pos lin.V3, rot lin.Q, filter *QueryFilter) {
	if collector == nil {
		return
	}
	a := castBody(shape, pos, rot)
	var box Abox
	a.Shape.Aabb(&a.Pose, &box, 0)

	for _, idx := range world.broadphase.QueryBox(&box) {
		if collector.ShouldEarlyOut() {
			return
		}
		b := world.bodies[idx]
		if b == nil || b.Shape == nil || !filter.admits(b) {
			continue
		}
		fn := collideTable[a.Shape.Type()][b.Shape.Type()]
		if fn == nil {
			continue
		}
		var m Manifold
		if !fn(a, b, &m) {
			continue
		}
		mCopy := m
		collector.AddHit(CollideShapeHit{Body: b.ID, Manifold: &mCopy})
	}
}
