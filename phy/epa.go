// Copyright © 2024 Galvanized Logic Inc.

// epa.go implements the Expanding Polytope Algorithm that recovers a
// penetration normal and depth from a GJK simplex already known to
// enclose the origin. Expands and reclassifies the polytope's faces
// iteratively; on non-convergence it reports failure (ok=false) rather
// than panicking, and the caller degrades to a one-point manifold.
package phy

import "github.com/gazed/physics/math/lin"

type epaFace struct {
	a, b, c int // indices into the polytope vertex slice.
	normal  lin.V3
	dist    float64 // distance from the face plane to the origin.
}

type epaEdge struct{ a, b int }

const epaMaxIterations = 64
const epaEpsilon = 1e-4

// epaExpand runs EPA starting from a GJK simplex known to contain the
// origin. On success it reports the separating normal (pointing from A to
// B) and penetration depth. On failure (degenerate polytope, non-
// convergence) it reports ok=false so the caller falls back to a
// conservative one-point manifold built from the last support direction.
func epaExpand(mk *minkowskiSupport, simplex gjkSimplex) (normal lin.V3, depth float64, ok bool) {
	poly := []gjkVertex{simplex.v[0], simplex.v[1], simplex.v[2], simplex.v[3]}
	faces := []epaFace{
		{a: 0, b: 1, c: 2}, {a: 0, b: 2, c: 3}, {a: 0, b: 3, c: 1}, {a: 1, b: 2, c: 3},
	}
	for i := range faces {
		n, d, good := faceNormalAndDistance(&faces[i], poly)
		if !good {
			return normal, 0, false
		}
		faces[i].normal, faces[i].dist = n, d
	}

	var edges []epaEdge
	for iter := 0; iter < epaMaxIterations; iter++ {
		closest := closestFace(faces)
		if closest < 0 {
			return normal, 0, false
		}
		searchDir := faces[closest].normal
		var support lin.V3
		wa, wb := mk.Get(&searchDir, &support)
		d := searchDir.Dot(&support)
		if d-faces[closest].dist < epaEpsilon {
			return faces[closest].normal, faces[closest].dist, true
		}

		newIndex := len(poly)
		poly = append(poly, gjkVertex{p: support, onA: *wa, onB: *wb})

		edges = edges[:0]
		for i := 0; i < len(faces); i++ {
			centroid := faceCentroid(&faces[i], poly)
			toSupport := lin.NewV3().Sub(&support, &centroid)
			if faces[i].normal.Dot(toSupport) > 0 {
				edges = addUniqueEdge(edges, epaEdge{faces[i].a, faces[i].b})
				edges = addUniqueEdge(edges, epaEdge{faces[i].b, faces[i].c})
				edges = addUniqueEdge(edges, epaEdge{faces[i].c, faces[i].a})
				faces = append(faces[:i], faces[i+1:]...)
				i--
			}
		}
		if len(edges) == 0 {
			return normal, 0, false
		}
		for _, e := range edges {
			nf := epaFace{a: e.a, b: e.b, c: newIndex}
			n, d, good := faceNormalAndDistance(&nf, poly)
			if !good {
				continue
			}
			nf.normal, nf.dist = n, d
			faces = append(faces, nf)
		}
	}
	return normal, 0, false
}

func faceCentroid(f *epaFace, poly []gjkVertex) lin.V3 {
	var c lin.V3
	c.Add(&poly[f.a].p, &poly[f.b].p).Add(&c, &poly[f.c].p)
	c.Scale(&c, 1.0/3.0)
	return c
}

// faceNormalAndDistance computes the outward-facing (away from the
// polytope interior) unit normal of a face and its plane distance to the
// origin, flipping the winding if the stored indices produced an inward
// normal. Returns good=false for a degenerate (zero-area) face.
func faceNormalAndDistance(f *epaFace, poly []gjkVertex) (lin.V3, float64, bool) {
	a, b, c := poly[f.a].p, poly[f.b].p, poly[f.c].p
	ab := lin.NewV3().Sub(&b, &a)
	ac := lin.NewV3().Sub(&c, &a)
	n := lin.NewV3().Cross(ab, ac)
	if n.AeqZ() {
		return lin.V3{}, 0, false
	}
	n.Unit()
	dist := n.Dot(&a)
	if dist < 0 {
		n.Scale(n, -1)
		dist = -dist
	}
	return *n, dist, true
}

func closestFace(faces []epaFace) int {
	best, bestDist := -1, lin.Large
	for i := range faces {
		if faces[i].dist < bestDist {
			bestDist, best = faces[i].dist, i
		}
	}
	return best
}

func addUniqueEdge(edges []epaEdge, e epaEdge) []epaEdge {
	for i, existing := range edges {
		if (existing.a == e.a && existing.b == e.b) || (existing.a == e.b && existing.b == e.a) {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return append(edges, e)
}
