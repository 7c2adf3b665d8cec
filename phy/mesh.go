// Copyright © 2024 Galvanized Logic Inc.

// mesh.go is the narrowphase's mesh-vs-convex routine: unlike every other
// built-in pair, a triangle mesh has no single support function (its
// CreateSupportPool deliberately returns nil, see shape.go), so it never
// goes through genericConvexCollide. Instead this file walks the
// candidate triangles under the convex body's swept AABB, runs GJK/EPA/
// clipping per triangle exactly as genericConvexCollide does for a whole
// shape pair, and applies the internal-edge-removal filter described in
// spec §4.3 before merging survivors into the pair's manifold.
package phy

import (
	"sort"

	"github.com/gazed/physics/math/lin"
)

// faceHitCosThreshold is "within 1 degree of the face normal", matching
// spec's internal-edge removal wording.
const faceHitCosThreshold = 0.9998477 // cos(1deg)

func worldPointT(pose *lin.T, v lin.V3) lin.V3 {
	x, y, z := pose.AppS(v.GetS())
	return lin.V3{X: x, Y: y, Z: z}
}

func worldNormalT(pose *lin.T, v lin.V3) lin.V3 {
	x, y, z := pose.AppR(v.GetS())
	return lin.V3{X: x, Y: y, Z: z}
}

// triOnePointManifold is onePointManifold's mesh-triangle counterpart:
// the triangle's own support stands in for a.Shape.CreateSupportPool,
// which is nil for a whole mesh.
func triOnePointManifold(verts [3]lin.V3, b *RigidBody, normal *lin.V3, depth float64, out *Manifold) {
	triSup := newTriangleSupport(verts[0], verts[1], verts[2])
	var pa lin.V3
	dirA := *lin.NewV3().Scale(normal, -1)
	triSup.GetSupport(&dirA, &pa)

	var pb lin.V3
	if supB := b.Shape.CreateSupportPool(SupportInclude); supB != nil {
		dirB := localDirection(b, normal)
		supB.GetSupport(&dirB, &pb)
		wbx, wby, wbz := b.Pose.AppS(pb.GetS())
		pb = lin.V3{X: wbx, Y: wby, Z: wbz}
	} else {
		pb = *b.worldCentreOfMass()
	}
	out.Base = pa
	out.Normal = *normal
	out.AddPoint(pa, pb, depth, 0, 0)
}

// triHit is one triangle's raw GJK/EPA result, before the internal-edge
// filter decides whether it survives.
type triHit struct {
	tri             int
	verts           [3]lin.V3
	normal          lin.V3
	depth           float64
	faceWorldNormal lin.V3
}

func maxPointDepth(m *Manifold) float64 {
	d := 0.0
	for _, p := range m.Points {
		if p.Depth > d {
			d = p.Depth
		}
	}
	return d
}

// collideMeshVsConvex is dispatch.go's routing target for every
// (TriangleMeshShape, t) cell: a is the mesh body, b the convex body.
// Candidate triangles are culled against b's margined world AABB, each
// survivor runs GJK/EPA/clipping independently, and the internal-edge
// removal filter then decides which per-triangle hits are real contacts
// versus ghost hits on an internal edge/vertex shared by a coplanar
// neighbour: a hit whose normal lands within faceHitCosThreshold of its
// own triangle's face normal is a face hit and passes straight through,
// voiding that triangle's three vertices; every other hit is buffered
// and, once every triangle has been tested, forwarded only if none of
// its three vertices were voided by a face hit. Surviving hits are
// merged by manifoldAccumulator and the deepest resulting manifold is
// returned (this package's collide signature carries one manifold per
// pair, so a mesh pair that happens to straddle two non-coplanar
// surfaces still reports its single deepest contact group).
func collideMeshVsConvex(a, b *RigidBody, out *Manifold) bool {
	mesh, ok := a.Shape.(*triangleMeshShape)
	if !ok {
		return false
	}
	supB := b.Shape.CreateSupportPool(SupportExclude)
	if supB == nil {
		return false
	}
	tB := newTransformedSupport(supB, &b.Pose)

	var convexBox Abox
	b.Shape.Aabb(&b.Pose, &convexBox, npTolerances.maxContactDistance())

	edgeRemoval := a.EnhancedEdgeRemoval() || b.EnhancedEdgeRemoval()

	voided := make([]bool, len(mesh.verts))
	var faceHits, edgeHits []triHit

	for ti, tri := range mesh.tris {
		wa := worldPointT(&a.Pose, mesh.verts[tri.a])
		wb := worldPointT(&a.Pose, mesh.verts[tri.b])
		wc := worldPointT(&a.Pose, mesh.verts[tri.c])

		var triBox Abox
		triBox.Sx, triBox.Sy, triBox.Sz = minf(wa.X, minf(wb.X, wc.X)), minf(wa.Y, minf(wb.Y, wc.Y)), minf(wa.Z, minf(wb.Z, wc.Z))
		triBox.Lx, triBox.Ly, triBox.Lz = maxf(wa.X, maxf(wb.X, wc.X)), maxf(wa.Y, maxf(wb.Y, wc.Y)), maxf(wa.Z, maxf(wb.Z, wc.Z))
		if !triBox.Overlaps(&convexBox) {
			continue
		}

		triSup := newTriangleSupport(wa, wb, wc)
		mk := newMinkowskiSupport(triSup, tB)
		hit, simplex := gjkIntersect(mk)
		if !hit {
			continue
		}

		faceWorldNormal := worldNormalT(&a.Pose, tri.normal)

		normal, depth, okEPA := epaExpand(mk, simplex)
		if !okEPA {
			logDebug("phy: EPA did not converge for mesh triangle %d vs body %d, degrading to one-point manifold", ti, b.index)
			v := simplex.v[0]
			normal = *lin.NewV3().Sub(&v.onB, &v.onA).Unit()
			depth = v.p.Len()
		} else {
			depth += supB.ConvexRadius()
		}

		h := triHit{tri: ti, verts: [3]lin.V3{wa, wb, wc}, normal: normal, depth: depth, faceWorldNormal: faceWorldNormal}
		isFace := normal.Dot(&faceWorldNormal) >= faceHitCosThreshold
		if !edgeRemoval || isFace {
			faceHits = append(faceHits, h)
			voided[tri.a], voided[tri.b], voided[tri.c] = true, true, true
		} else {
			edgeHits = append(edgeHits, h)
		}
	}

	if len(faceHits) == 0 && len(edgeHits) == 0 {
		return false
	}

	if edgeRemoval {
		sort.Slice(edgeHits, func(i, j int) bool { return edgeHits[i].depth > edgeHits[j].depth })
	}
	forwarded := append([]triHit{}, faceHits...)
	for _, h := range edgeHits {
		tri := mesh.tris[h.tri]
		if voided[tri.a] || voided[tri.b] || voided[tri.c] {
			continue // closest feature already voided by a face hit.
		}
		forwarded = append(forwarded, h)
	}
	if len(forwarded) == 0 {
		return false
	}

	acc := newManifoldAccumulator(npTolerances.NormalCosMaxDelta)
	for _, h := range forwarded {
		cand := &Manifold{BodyA: a.index, BodyB: b.index}
		dirB := localDirection(b, &h.normal)
		faceB, okB := b.Shape.GetSupportingFace(&dirB)
		built := false
		if okB && len(faceB.Vertices) >= 2 {
			worldFaceB := localToWorldFace(b, faceB)
			altNormalWorld := worldFaceNormal(b, faceB)
			built = clipFacePair(h.verts[:], h.faceWorldNormal, worldFaceB, altNormalWorld, h.normal, cand)
		}
		if !built {
			triOnePointManifold(h.verts, b, &h.normal, h.depth, cand)
		}
		cand.Normal = h.normal
		acc.Add(cand)
	}

	merged := acc.Finish()
	if len(merged) == 0 {
		return false
	}
	deepest, deepestDepth := merged[0], maxPointDepth(merged[0])
	for _, m := range merged[1:] {
		if d := maxPointDepth(m); d > deepestDepth {
			deepest, deepestDepth = m, d
		}
	}
	*out = *deepest
	out.BodyA, out.BodyB = a.index, b.index
	return true
}
