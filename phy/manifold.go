// Copyright © 2024 Galvanized Logic Inc.

// manifold.go is the ContactManifold data model plus the greedy
// point-reduction and multi-manifold accumulation pipeline: up to 64 raw
// contact points are generated during clipping and reduced down to at
// most 4 before being handed to the contact cache and solver.
package phy

import "github.com/gazed/physics/math/lin"

// maxManifoldPoints is the post-reduction cap.
const maxManifoldPoints = 4

// maxRawManifoldPoints is the pre-reduction cap the clipping stage fills
// before reduce runs.
const maxRawManifoldPoints = 64

// maxAccumulatedManifolds bounds how many distinct-normal manifolds the
// collector keeps for a single body pair in one step.
const maxAccumulatedManifolds = 32

// ManifoldPoint is one contact point, stored relative to Manifold.Base to
// preserve precision far from the origin.
type ManifoldPoint struct {
	PointA, PointB           lin.V3 // relative to Base, world axes.
	Depth                    float64
	SubShapeIDA, SubShapeIDB uint32
}

// Manifold is the geometric result of one body pair at one time step
//. Points is pre-reduction while the clipping stage is filling it,
// and post-reduction (<=4) once the narrowphase hands it to the contact
// cache / solver.
type Manifold struct {
	BodyA, BodyB bodyIndex
	Base         lin.V3 // shape-A world position, origin for relative points.
	Normal       lin.V3 // points from A to B.
	Points       []ManifoldPoint
	MaterialA    uint32
	MaterialB    uint32
}

// Reset clears m for reuse from a pool without releasing Points' backing array.
func (m *Manifold) Reset() {
	m.Points = m.Points[:0]
	m.Normal = lin.V3{}
}

// AddPoint appends a raw (pre-reduction) contact point, clamped at
// maxRawManifoldPoints: the clipping stage must never overrun this since
// it is the accumulation ceiling.
func (m *Manifold) AddPoint(worldA, worldB lin.V3, depth float64, subA, subB uint32) {
	if len(m.Points) >= maxRawManifoldPoints {
		return
	}
	m.Points = append(m.Points, ManifoldPoint{
		PointA: *lin.NewV3().Sub(&worldA, &m.Base),
		PointB: *lin.NewV3().Sub(&worldB, &m.Base),
		Depth:  depth, SubShapeIDA: subA, SubShapeIDB: subB,
	})
}

// worldA/worldB recover the absolute world-space contact points of point i.
func (m *Manifold) worldA(i int) lin.V3 {
	p := m.Points[i].PointA
	return *lin.NewV3().Add(&p, &m.Base)
}
func (m *Manifold) worldB(i int) lin.V3 {
	p := m.Points[i].PointB
	return *lin.NewV3().Add(&p, &m.Base)
}

// reduce implements the deterministic greedy selection of:
// pick the deepest-weighted point, then the point maximising in-plane
// distance from it, then the two points furthest to either side of the
// 1-2 edge. Output order is [p1, p3, p2, p4] so the resulting quad winds
// consistently. A no-op when len(Points) <= maxManifoldPoints ( round-
// trip law "Manifold pruning: pruning a manifold with <=4 points is a
// no-op").
func (m *Manifold) reduce() {
	n := len(m.Points)
	if n <= maxManifoldPoints {
		return
	}
	// project points into the contact plane (perpendicular to Normal) for
	// in-plane distance comparisons.
	var tangent, bitangent lin.V3
	m.Normal.Plane(&tangent, &bitangent)
	project := func(i int) (float64, float64) {
		p := m.Points[i].PointA
		return p.Dot(&tangent), p.Dot(&bitangent)
	}

	weight := func(i int) float64 {
		return m.Points[i].Depth * m.Points[i].Depth
	}

	// point 1: maximum depth-weighted magnitude from the plane origin.
	p1 := 0
	best := -lin.Large
	for i := 0; i < n; i++ {
		x, y := project(i)
		score := (x*x + y*y) * weight(i)
		if score > best {
			best, p1 = score, i
		}
	}
	x1, y1 := project(p1)

	// point 2: maximum depth-weighted distance from point 1.
	p2 := p1
	best = -lin.Large
	for i := 0; i < n; i++ {
		if i == p1 {
			continue
		}
		x, y := project(i)
		dx, dy := x-x1, y-y1
		score := (dx*dx + dy*dy) * weight(i)
		if score > best {
			best, p2 = score, i
		}
	}
	x2, y2 := project(p2)

	// edge 1-2 direction in the plane; points 3/4 are the furthest on
	// either side of it.
	ex, ey := x2-x1, y2-y1
	p3, p4 := -1, -1
	bestPos, bestNeg := -lin.Large, -lin.Large
	for i := 0; i < n; i++ {
		if i == p1 || i == p2 {
			continue
		}
		x, y := project(i)
		side := (x-x1)*ey - (y-y1)*ex
		if side >= 0 {
			if side > bestPos {
				bestPos, p3 = side, i
			}
		} else {
			if -side > bestNeg {
				bestNeg, p4 = -side, i
			}
		}
	}
	order := make([]int, 0, 4)
	order = append(order, p1)
	if p3 >= 0 {
		order = append(order, p3)
	}
	order = append(order, p2)
	if p4 >= 0 {
		order = append(order, p4)
	}
	reduced := make([]ManifoldPoint, len(order))
	for i, idx := range order {
		reduced[i] = m.Points[idx]
	}
	m.Points = reduced
}

// manifoldAccumulator implements multi-manifold accumulation: a single
// pair may generate up to maxAccumulatedManifolds manifolds
// whose normals agree within normalCosMaxDelta; new hits merge
// into an existing manifold or create a new one, and the shallowest is
// replaced when the buffer is full and the new hit is deeper.
type manifoldAccumulator struct {
	manifolds            []*Manifold
	normalCosMaxDelta     float64
}

func newManifoldAccumulator(normalCosMaxDelta float64) *manifoldAccumulator {
	return &manifoldAccumulator{normalCosMaxDelta: normalCosMaxDelta}
}

// Add merges hit into an existing manifold with a compatible normal, or
// starts a new one, evicting the shallowest when full.
func (acc *manifoldAccumulator) Add(hit *Manifold) {
	maxDepth := func(m *Manifold) float64 {
		d := 0.0
		for _, p := range m.Points {
			if p.Depth > d {
				d = p.Depth
			}
		}
		return d
	}
	for _, existing := range acc.manifolds {
		if existing.Normal.Dot(&hit.Normal) >= acc.normalCosMaxDelta {
			existing.Normal.Add(&existing.Normal, &hit.Normal).Unit()
			for i := range hit.Points {
				p := hit.Points[i]
				existing.AddPoint(hit.worldA(i), hit.worldB(i), p.Depth, p.SubShapeIDA, p.SubShapeIDB)
			}
			return
		}
	}
	if len(acc.manifolds) < maxAccumulatedManifolds {
		acc.manifolds = append(acc.manifolds, hit)
		return
	}
	shallowestIdx, shallowestDepth := 0, lin.Large
	for i, m := range acc.manifolds {
		d := maxDepth(m)
		if d < shallowestDepth {
			shallowestDepth, shallowestIdx = d, i
		}
	}
	if maxDepth(hit) > shallowestDepth {
		acc.manifolds[shallowestIdx] = hit
	}
}

// Finish prunes every accumulated manifold to <= maxManifoldPoints and
// returns them.
func (acc *manifoldAccumulator) Finish() []*Manifold {
	for _, m := range acc.manifolds {
		m.reduce()
	}
	return acc.manifolds
}
