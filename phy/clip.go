// Copyright © 2024 Galvanized Logic Inc.

// clip.go ties GJK/EPA together with Sutherland-Hodgman polygon clipping
// to build contact manifolds, and implements the internal-edge removal
// filter for triangle-mesh and compound surfaces.
package phy

import "github.com/gazed/physics/math/lin"

// clipPlane is a half-space "keep if (origin-v)*n < 0" used by
// sutherlandHodgman.
type clipPlane struct {
	normal, point lin.V3
}

func pointInPlane(p *clipPlane, v lin.V3) bool {
	d := -p.normal.Dot(&p.point)
	return v.Dot(&p.normal)+d >= 0
}

func planeEdgeIntersection(p *clipPlane, start, end lin.V3, out *lin.V3) bool {
	ab := lin.NewV3().Sub(&end, &start)
	denom := p.normal.Dot(ab)
	if absf(denom) <= lin.Epsilon {
		return false
	}
	d := -p.normal.Dot(&p.point)
	pco := lin.NewV3().Scale(&p.normal, -d)
	fac := -p.normal.Dot(lin.NewV3().Sub(&start, pco)) / denom
	fac = maxf(0, minf(1, fac))
	out.Add(&start, ab.Scale(ab, fac))
	return true
}

// sutherlandHodgman clips input against each of clipPlanes in turn. When
// removeOnly is true, points outside any plane are dropped instead of
// being projected onto it: used for the final reference-plane pass
//.
func sutherlandHodgman(input []lin.V3, planes []clipPlane, removeOnly bool) []lin.V3 {
	if len(planes) == 0 {
		return input
	}
	cur := append([]lin.V3{}, input...)
	for pi := range planes {
		if len(cur) == 0 {
			break
		}
		plane := &planes[pi]
		var out []lin.V3
		start := cur[len(cur)-1]
		for _, end := range cur {
			startIn, endIn := pointInPlane(plane, start), pointInPlane(plane, end)
			switch {
			case removeOnly:
				if endIn {
					out = append(out, end)
				}
			case startIn && endIn:
				out = append(out, end)
			case startIn && !endIn:
				var hit lin.V3
				if planeEdgeIntersection(plane, start, end, &hit) {
					out = append(out, hit)
				}
			case !startIn && endIn:
				var hit lin.V3
				if planeEdgeIntersection(plane, start, end, &hit) {
					out = append(out, hit)
				}
				out = append(out, end)
			}
			start = end
		}
		cur = out
	}
	return cur
}

// localDirection rotates world-space dir into body's local frame (no
// translation: direction only).
func localDirection(b *RigidBody, dir *lin.V3) lin.V3 {
	x, y, z := rotateInverse(&b.Pose, dir)
	return lin.V3{X: x, Y: y, Z: z}
}

func localToWorldFace(b *RigidBody, face *Face) []lin.V3 {
	verts := make([]lin.V3, len(face.Vertices))
	for i, v := range face.Vertices {
		wx, wy, wz := b.Pose.AppS(v.GetS())
		verts[i] = lin.V3{X: wx, Y: wy, Z: wz}
	}
	return verts
}

func worldFaceNormal(b *RigidBody, face *Face) lin.V3 {
	nx, ny, nz := b.Pose.AppR(face.Normal.GetS())
	return lin.V3{X: nx, Y: ny, Z: nz}
}

// maxContactDistance bounds how far beyond the reference plane a clipped
// incident point may lie and still count as a contact.
// Narrowphase tolerances are engine-wide for the lifetime of a step;
// world.go sets npTolerances before running the narrowphase pass each
// step (the engine steps cooperatively and single-threaded, so a
// package-level scratch value is safe and avoids threading settings
// through every collide func signature).
var npTolerances = NarrowphaseTolerances{
	SpeculativeContactDistance: 0.02,
	ManifoldTolerance:          0.002,
	NormalCosMaxDelta:          0.984807753, // cos(10deg)
}

// NarrowphaseTolerances configures the distance/angle thresholds the
// clipping and manifold-accumulation stages use.
type NarrowphaseTolerances struct {
	SpeculativeContactDistance float64
	ManifoldTolerance          float64
	NormalCosMaxDelta          float64 // multi-manifold merge threshold.
}

func (t NarrowphaseTolerances) maxContactDistance() float64 {
	return t.SpeculativeContactDistance + t.ManifoldTolerance
}

// genericConvexCollide is the single narrowphase routine every built-in
// convex shape pair routes through (dispatch.go): GJK detects overlap,
// EPA recovers the penetration axis, and the clipping stage turns that
// axis into a contact manifold by sampling and clipping each side's
// supporting face. Falls back to a one-point manifold when either side
// has no supporting face (sphere, capsule caps) or clipping yields
// nothing.
func genericConvexCollide(a, b *RigidBody, out *Manifold) bool {
	supA := a.Shape.CreateSupportPool(SupportExclude)
	supB := b.Shape.CreateSupportPool(SupportExclude)
	if supA == nil || supB == nil {
		return false
	}
	tA := newTransformedSupport(supA, &a.Pose)
	tB := newTransformedSupport(supB, &b.Pose)
	mk := newMinkowskiSupport(tA, tB)

	hit, simplex := gjkIntersect(mk)
	if !hit {
		return false
	}
	normal, depth, ok := epaExpand(mk, simplex)
	if !ok {
		// EPA failed to converge: degrade to a one-point manifold using
		// the last simplex vertex as the best-known support.
		logDebug("phy: EPA did not converge for bodies %d/%d, degrading to one-point manifold", a.index, b.index)
		v := simplex.v[0]
		out.BodyA, out.BodyB = a.index, b.index
		out.Base = v.onA
		out.Normal = *lin.NewV3().Sub(&v.onB, &v.onA).Unit()
		out.AddPoint(v.onA, v.onB, v.p.Len(), 0, 0)
		return true
	}
	depth += supA.ConvexRadius() + supB.ConvexRadius()

	out.BodyA, out.BodyB = a.index, b.index

	dirA := localDirection(a, lin.NewV3().Scale(&normal, -1))
	negNormal := localDirection(b, &normal)
	faceA, okA := a.Shape.GetSupportingFace(&dirA)
	faceB, okB := b.Shape.GetSupportingFace(&negNormal)

	if !okA || !okB || len(faceA.Vertices) < 2 || len(faceB.Vertices) < 2 {
		onePointManifold(a, b, &normal, depth, out)
		return true
	}

	worldFaceA := localToWorldFace(a, faceA)
	worldFaceB := localToWorldFace(b, faceB)
	refNormalWorld := worldFaceNormal(a, faceA)
	altNormalWorld := worldFaceNormal(b, faceB)

	if !clipFacePair(worldFaceA, refNormalWorld, worldFaceB, altNormalWorld, normal, out) {
		onePointManifold(a, b, &normal, depth, out)
		return true
	}
	out.Normal = normal
	return true
}

// clipFacePair clips faceB (the incident face, world-space vertices)
// against faceA's side planes (world-space vertices + normal) or vice
// versa, whichever face is more antiparallel to normal becomes the
// reference; the other is the incident face. Appends surviving
// points onto out (setting out.Base to the first clipped point) and
// reports whether clipping produced any point within
// maxContactDistance; a false result means the caller should fall back
// to a one-point manifold. out.Normal is left for the caller to set.
func clipFacePair(worldFaceA []lin.V3, normalA lin.V3, worldFaceB []lin.V3, normalB lin.V3, normal lin.V3, out *Manifold) bool {
	refIsA := normalA.Dot(lin.NewV3().Scale(&normal, -1)) >= normalB.Dot(&normal)

	var refWorldVerts, incWorldVerts []lin.V3
	var refWorldNormal lin.V3
	if refIsA {
		refWorldVerts, incWorldVerts, refWorldNormal = worldFaceA, worldFaceB, normalA
	} else {
		refWorldVerts, incWorldVerts, refWorldNormal = worldFaceB, worldFaceA, normalB
	}

	boundary := buildBoundaryPlanesWorld(refWorldVerts, refWorldNormal)
	clipped := sutherlandHodgman(incWorldVerts, boundary, false)
	refPlane := clipPlane{normal: *lin.NewV3().Scale(&refWorldNormal, -1), point: refWorldVerts[0]}
	clipped = sutherlandHodgman(clipped, []clipPlane{refPlane}, true)

	if len(clipped) == 0 {
		return false
	}

	out.Base = clipped[0]
	maxDist := npTolerances.maxContactDistance()
	for _, p := range clipped {
		closest := projectOntoPlane(p, refWorldVerts[0], refWorldNormal)
		diff := lin.NewV3().Sub(&p, &closest)
		penetration := diff.Dot(&refWorldNormal)
		if refIsA {
			penetration = -penetration
		}
		if -penetration > maxDist {
			continue // beyond maxContactDistance.
		}
		var worldA, worldB lin.V3
		if refIsA {
			worldA = closest
			worldB = p
		} else {
			worldA = p
			worldB = closest
		}
		out.AddPoint(worldA, worldB, -penetration, 0, 0)
	}
	return len(out.Points) > 0
}

func projectOntoPlane(p, planePoint, planeNormal lin.V3) lin.V3 {
	d := planeNormal.Dot(lin.NewV3().Sub(&p, &planePoint))
	off := lin.NewV3().Scale(&planeNormal, d)
	return *lin.NewV3().Sub(&p, off)
}

func buildBoundaryPlanesWorld(verts []lin.V3, normal lin.V3) []clipPlane {
	n := len(verts)
	if n < 3 {
		return nil
	}
	planes := make([]clipPlane, 0, n)
	for i := 0; i < n; i++ {
		a, b := verts[i], verts[(i+1)%n]
		edge := lin.NewV3().Sub(&b, &a)
		side := lin.NewV3().Cross(edge, &normal)
		side.Unit()
		planes = append(planes, clipPlane{normal: *side.Neg(side), point: a})
	}
	return planes
}

// onePointManifold builds the primitive fallback manifold: the deepest
// witness points along normal, used whenever clipping cannot produce a
// face-based manifold.
func onePointManifold(a, b *RigidBody, normal *lin.V3, depth float64, out *Manifold) {
	var supA, supB Support
	supA = a.Shape.CreateSupportPool(SupportInclude)
	supB = b.Shape.CreateSupportPool(SupportInclude)
	var pa, pb lin.V3
	if supA != nil {
		dirA := localDirection(a, lin.NewV3().Scale(normal, -1))
		supA.GetSupport(&dirA, &pa)
		wax, way, waz := a.Pose.AppS(pa.GetS())
		pa = lin.V3{X: wax, Y: way, Z: waz}
	} else {
		pa = *a.worldCentreOfMass()
	}
	if supB != nil {
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
