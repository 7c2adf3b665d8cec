// Copyright © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// convexhull.go builds a convex-hull shape from a vertex cloud. Mass
// properties use a per-vertex point-mass inertia tensor, diagonalised with
// gonum's symmetric eigendecomposition (see mass.go), since a hull's raw
// inertia tensor is not diagonal in general.

package phy

import "github.com/gazed/physics/math/lin"

// hullFace is a planar polygon of the hull boundary, vertices ordered
// counter-clockwise as seen from outside.
type hullFace struct {
	indices []int
	normal  lin.V3
}

type convexHullShape struct {
	verts    []lin.V3
	faces    []hullFace
	centre   lin.V3
	inner    float64 // inner radius: min distance from centre to any face plane
	mass     float64
	invInert lin.V3
	volume   float64
}

// NewConvexHull builds a convex hull shape from a set of triangulated faces
// over the given vertex cloud. faceIdx holds, per face, the vertex indices
// of a planar boundary loop, already reduced from the raw triangulation:
// callers needing hull computation from a raw triangle soup should first
// merge coplanar triangles into boundary loops themselves.
func NewConvexHull(verts []lin.V3, faceIdx [][]int) Shape {
	h := &convexHullShape{verts: verts}
	for _, idx := range faceIdx {
		n := faceNormal(verts, idx)
		h.faces = append(h.faces, hullFace{indices: idx, normal: n})
	}
	h.computeVolumeAndCentre()
	h.computeInnerRadius()
	return h
}

func faceNormal(verts []lin.V3, idx []int) lin.V3 {
	if len(idx) < 3 {
		return lin.V3{}
	}
	a, b, c := verts[idx[0]], verts[idx[1]], verts[idx[2]]
	e1, e2 := lin.NewV3(), lin.NewV3()
	e1.Sub(&b, &a)
	e2.Sub(&c, &a)
	n := lin.NewV3().Cross(e1, e2)
	n.Unit()
	return *n
}

// computeVolumeAndCentre decomposes the hull into tetrahedra from an
// interior reference point (the vertex centroid) to each face triangle,
// summing signed volumes and volume-weighted centroids: the standard
// approach for arbitrary (non-tetrahedral) convex polyhedra.
func (h *convexHullShape) computeVolumeAndCentre() {
	ref := lin.NewV3()
	for i := range h.verts {
		ref.Add(ref, &h.verts[i])
	}
	if len(h.verts) > 0 {
		ref.Scale(ref, 1/float64(len(h.verts)))
	}
	var vol float64
	centroid := lin.NewV3()
	for _, f := range h.faces {
		for i := 1; i+1 < len(f.indices); i++ {
			a, b, c := h.verts[f.indices[0]], h.verts[f.indices[i]], h.verts[f.indices[i+1]]
			ab, ac := lin.NewV3(), lin.NewV3()
			ab.Sub(&a, ref)
			ac.Sub(&b, ref)
			ad := lin.NewV3().Sub(&c, ref)
			cr := lin.NewV3().Cross(ab, ac)
			tetVol := cr.Dot(ad) / 6.0
			vol += tetVol
			cx := (ref.X + a.X + b.X + c.X) * 0.25
			cy := (ref.Y + a.Y + b.Y + c.Y) * 0.25
			cz := (ref.Z + a.Z + b.Z + c.Z) * 0.25
			centroid.X += tetVol * cx
			centroid.Y += tetVol * cy
			centroid.Z += tetVol * cz
		}
	}
	if vol < 0 {
		vol = -vol
	}
	h.volume = vol
	if vol > lin.Epsilon {
		centroid.Scale(centroid, 1/vol)
	} else {
		centroid.Set(ref)
	}
	h.centre = *centroid
}

func (h *convexHullShape) computeInnerRadius() {
	best := lin.Large
	for _, f := range h.faces {
		d := f.normal.Dot(&h.verts[f.indices[0]]) - f.normal.Dot(&h.centre)
		if d < best {
			best = d
		}
	}
	if best == lin.Large {
		best = 0
	}
	h.inner = best
}

func (h *convexHullShape) Type() ShapeType       { return ConvexHullShape }
func (h *convexHullShape) Volume() float64       { return h.volume }
func (h *convexHullShape) InnerRadius() float64  { return h.inner }
func (h *convexHullShape) CentreOfMass() *lin.V3 { return lin.NewV3S(h.centre.GetS()) }

func (h *convexHullShape) Aabb(t *lin.T, ab *Abox, margin float64) *Abox {
	first := true
	for i := range h.verts {
		wx, wy, wz := t.AppS(h.verts[i].GetS())
		if first {
			ab.Sx, ab.Sy, ab.Sz = wx, wy, wz
			ab.Lx, ab.Ly, ab.Lz = wx, wy, wz
			first = false
			continue
		}
		ab.Sx, ab.Sy, ab.Sz = minf(ab.Sx, wx), minf(ab.Sy, wy), minf(ab.Sz, wz)
		ab.Lx, ab.Ly, ab.Lz = maxf(ab.Lx, wx), maxf(ab.Ly, wy), maxf(ab.Lz, wz)
	}
	ab.Expand(margin)
	return ab
}

func (h *convexHullShape) ComputeMassProperties(m float64, byDensity bool) (float64, *lin.V3) {
	mass := m
	if byDensity {
		mass = m * h.volume
	}
	invI := diagonalizeInertia(h.verts, h.centre, mass)
	return mass, invI
}

func (h *convexHullShape) CastRay(o, d *lin.V3, maxFraction float64) (bool, float64, uint32) {
	// slab-test against each face plane (hull is the intersection of half-spaces).
	tmin, tmax := 0.0, maxFraction
	for _, f := range h.faces {
		p := &h.verts[f.indices[0]]
		denom := f.normal.Dot(d)
		num := f.normal.Dot(lin.NewV3().Sub(p, o))
		if lin.AeqZ(denom) {
			if num < 0 {
				return false, 0, 0
			}
			continue
		}
		t := num / denom
		if denom < 0 {
			tmin = maxf(tmin, t)
		} else {
			tmax = minf(tmax, t)
		}
		if tmin > tmax {
			return false, 0, 0
		}
	}
	return true, tmin, 0
}

func (h *convexHullShape) CollidePoint(p *lin.V3) bool {
	for _, f := range h.faces {
		d := f.normal.Dot(lin.NewV3().Sub(p, &h.verts[f.indices[0]]))
		if d > lin.Epsilon {
			return false
		}
	}
	return true
}

func (h *convexHullShape) GetSurfaceNormal(sub uint32, p *lin.V3) *lin.V3 {
	if int(sub) < len(h.faces) {
		n := h.faces[sub].normal
		return &n
	}
	return lin.NewV3()
}

func (h *convexHullShape) GetSupportingFace(dir *lin.V3) (*Face, bool) {
	best := -1
	bestDot := -lin.Large
	for i, f := range h.faces {
		d := f.normal.Dot(dir)
		if d > bestDot {
			bestDot, best = d, i
		}
	}
	if best < 0 {
		return nil, false
	}
	f := h.faces[best]
	verts := make([]lin.V3, len(f.indices))
	for i, idx := range f.indices {
		verts[i] = h.verts[idx]
	}
	return &Face{Vertices: verts, Normal: f.normal}, true
}

func (h *convexHullShape) CreateSupportPool(mode SupportMode) Support {
	return &hullSupport{verts: h.verts, mode: mode}
}

type hullSupport struct {
	verts []lin.V3
	mode  SupportMode
}

func (s *hullSupport) ConvexRadius() float64 {
	if s.mode == SupportExclude {
		return defaultConvexRadius
	}
	return 0
}

func (s *hullSupport) GetSupport(dir, out *lin.V3) *lin.V3 {
	best := 0
	bestDot := -lin.Large
	for i := range s.verts {
		d := s.verts[i].Dot(dir)
		if d > bestDot {
			bestDot, best = d, i
		}
	}
	out.SetS(s.verts[best].GetS())
	if s.mode == SupportExclude {
		l := dir.Len()
		if l > lin.Epsilon {
			out.X -= dir.X / l * defaultConvexRadius
			out.Y -= dir.Y / l * defaultConvexRadius
			out.Z -= dir.Z / l * defaultConvexRadius
		}
	}
	return out
}
