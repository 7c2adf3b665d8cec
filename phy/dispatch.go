// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// dispatch.go is the narrowphase's (typeA, typeB) routing table. Every
// builtin convex shape pair routes through the single GJK/EPA/clipping
// pipeline (gjk.go, epa.go, clip.go), so the table's cells mostly all
// point at the same genericConvexCollide entry. The table still exists
// because it is how user shapes registered via RegisterShape plug in
// their own collide func without the narrowphase knowing their concrete
// type.
package phy

// collide computes the contact manifold between two bodies' shapes (in
// their current world transforms), appending points into a reused
// manifold. It reports the contact normal pointing from a to b.
type collide func(a, b *RigidBody, out *Manifold) bool

var collideTable [][]collide

func init() {
	growCollideTable(int(NumBuiltinShapes))
	for i := range collideTable {
		for j := range collideTable[i] {
			collideTable[i][j] = genericConvexCollide
		}
	}
	// non-convex / non-volume shapes never reach GJK.
	for t := ShapeType(0); t < NumBuiltinShapes; t++ {
		collideTable[PlaneShape][t] = genericConvexCollide
		collideTable[t][PlaneShape] = genericConvexCollide
		collideTable[EmptyShape][t] = noCollide
		collideTable[t][EmptyShape] = noCollide
	}
	collideTable[TriangleMeshShape][TriangleMeshShape] = noCollide

	// a mesh has no single support function (CreateSupportPool is always
	// nil, shape.go), so genericConvexCollide bails on it immediately;
	// route every mesh-vs-convex cell through the dedicated per-triangle
	// routine instead (mesh.go).
	for t := ShapeType(0); t < NumBuiltinShapes; t++ {
		if t == TriangleMeshShape || t == EmptyShape {
			continue
		}
		collideTable[TriangleMeshShape][t] = collideMeshVsConvex
		collideTable[t][TriangleMeshShape] = ReversedCollideShapeVsShape(collideMeshVsConvex)
	}
}

// growCollideTable resizes collideTable to n*n, preserving existing
// entries, and is called both at package init and whenever RegisterShape
// reserves a new ShapeType so the table always covers every registered
// pair. Newly exposed cells default to genericConvexCollide; a registered
// shape whose geometry genuinely can't go through GJK/EPA (e.g. another
// non-volume primitive) should override its row/column with
// RegisterCollideFn after registering.
func growCollideTable(n int) {
	grown := make([][]collide, n)
	for i := range grown {
		grown[i] = make([]collide, n)
		for j := range grown[i] {
			if i < len(collideTable) && j < len(collideTable[i]) {
				grown[i][j] = collideTable[i][j]
			} else {
				grown[i][j] = genericConvexCollide
			}
		}
	}
	collideTable = grown
}

// RegisterCollideFn installs fn as the narrowphase routine for the
// (a, b) shape-type pair. Callers registering an asymmetric pair must
// also call RegisterCollideFn for the reversed pair, typically via
// ReversedCollideShapeVsShape.
func RegisterCollideFn(a, b ShapeType, fn collide) {
	growCollideTable(maxInt(int(a), int(b)) + 1)
	collideTable[a][b] = fn
}

// ReversedCollideShapeVsShape wraps fn (written for the (b, a) ordering)
// so it can also serve the (a, b) cell: it swaps the two bodies, runs fn,
// then swaps the manifold's bodies, points and sub-shape ids back and
// flips its normal so it points from a to b.
func ReversedCollideShapeVsShape(fn collide) collide {
	return func(a, b *RigidBody, out *Manifold) bool {
		if !fn(b, a, out) {
			return false
		}
		out.BodyA, out.BodyB = out.BodyB, out.BodyA
		out.Normal.Scale(&out.Normal, -1)
		for i := range out.Points {
			out.Points[i].PointA, out.Points[i].PointB = out.Points[i].PointB, out.Points[i].PointA
			out.Points[i].SubShapeIDA, out.Points[i].SubShapeIDB = out.Points[i].SubShapeIDB, out.Points[i].SubShapeIDA
		}
		return true
	}
}

func noCollide(a, b *RigidBody, out *Manifold) bool { return false }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
