// Copyright © 2024 Galvanized Logic Inc.

// gjk.go implements the Gilbert-Johnson-Keerthi separation algorithm used
// by the narrowphase to detect overlap between two convex supports
// before handing a penetrating pair to EPA. Each simplex vertex carries
// the two shapes' witness points alongside it so epa.go and clip.go
// never need a second Minkowski-difference pass.
package phy

import "github.com/gazed/physics/math/lin"

// gjkVertex is one vertex of the evolving simplex: the Minkowski-
// difference point plus the witness points on A and B it was generated
// from.
type gjkVertex struct {
	p, onA, onB lin.V3
}

// gjkSimplex holds up to 4 vertices, a (index 0) always being the most
// recently added, the order doSimplex relies on.
type gjkSimplex struct {
	v   [4]gjkVertex
	num int
}

func tripleCross(a, b, c lin.V3) lin.V3 {
	var tc lin.V3
	tc.Cross(&a, &b)
	tc.Cross(&tc, &c)
	return tc
}

func pushSimplex(s *gjkSimplex, vert gjkVertex) {
	switch s.num {
	case 1:
		s.v[1] = s.v[0]
	case 2:
		s.v[2] = s.v[1]
		s.v[1] = s.v[0]
	case 3:
		s.v[3] = s.v[2]
		s.v[2] = s.v[1]
		s.v[1] = s.v[0]
	}
	s.v[0] = vert
	if s.num < 4 {
		s.num++
	}
}

// doSimplex2 handles the line-segment case ( GJK simplex reduction).
func doSimplex2(s *gjkSimplex, direction *lin.V3) bool {
	a, b := s.v[0], s.v[1]
	ao := lin.NewV3().Neg(&a.p)
	ab := lin.NewV3().Sub(&b.p, &a.p)
	if ab.Dot(ao) >= 0 {
		s.v[0], s.v[1] = a, b
		s.num = 2
		*direction = tripleCross(*ab, *ao, *ab)
	} else {
		s.v[0] = a
		s.num = 1
		*direction = *ao
	}
	return false
}

// doSimplex3 handles the triangle case.
func doSimplex3(s *gjkSimplex, direction *lin.V3) bool {
	a, b, c := s.v[0], s.v[1], s.v[2]
	ao := lin.NewV3().Neg(&a.p)
	ab := lin.NewV3().Sub(&b.p, &a.p)
	ac := lin.NewV3().Sub(&c.p, &a.p)
	abc := lin.NewV3().Cross(ab, ac)

	if lin.NewV3().Cross(abc, ac).Dot(ao) >= 0 {
		if ac.Dot(ao) >= 0 {
			s.v[0], s.v[1] = a, c
			s.num = 2
			*direction = tripleCross(*ac, *ao, *ac)
		} else if ab.Dot(ao) >= 0 {
			s.v[0], s.v[1] = a, b
			s.num = 2
			*direction = tripleCross(*ab, *ao, *ab)
		} else {
			s.v[0] = a
			s.num = 1
			*direction = *ao
		}
		return false
	}
	if lin.NewV3().Cross(ab, abc).Dot(ao) >= 0 {
		if ab.Dot(ao) >= 0 {
			s.v[0], s.v[1] = a, b
			s.num = 2
			*direction = tripleCross(*ab, *ao, *ab)
		} else {
			s.v[0] = a
			s.num = 1
			*direction = *ao
		}
		return false
	}
	if abc.Dot(ao) >= 0 {
		s.v[0], s.v[1], s.v[2] = a, b, c
		s.num = 3
		*direction = *abc
	} else {
		s.v[0], s.v[1], s.v[2] = a, c, b
		s.num = 3
		*direction = *abc.Neg(abc)
	}
	return false
}

// doSimplex4 handles the tetrahedron case; returns true once the origin
// is enclosed (overlap detected).
func doSimplex4(s *gjkSimplex, direction *lin.V3) bool {
	a, b, c, d := s.v[0], s.v[1], s.v[2], s.v[3]
	ao := lin.NewV3().Neg(&a.p)
	ab := lin.NewV3().Sub(&b.p, &a.p)
	ac := lin.NewV3().Sub(&c.p, &a.p)
	ad := lin.NewV3().Sub(&d.p, &a.p)
	abc := lin.NewV3().Cross(ab, ac)
	acd := lin.NewV3().Cross(ac, ad)
	adb := lin.NewV3().Cross(ad, ab)

	onABC := abc.Dot(ao) >= 0
	onACD := acd.Dot(ao) >= 0
	onADB := adb.Dot(ao) >= 0

	switch {
	case !onABC && !onACD && !onADB:
		return true // origin enclosed by all three faces: intersection.
	case onABC && !onACD && !onADB:
		s.v[0], s.v[1], s.v[2] = a, b, c
		s.num = 3
		return doSimplex3(s, direction)
	case !onABC && onACD && !onADB:
		s.v[0], s.v[1], s.v[2] = a, c, d
		s.num = 3
		return doSimplex3(s, direction)
	case !onABC && !onACD && onADB:
		s.v[0], s.v[1], s.v[2] = a, d, b
		s.num = 3
		return doSimplex3(s, direction)
	default:
		// ambiguous (two+ faces report outside): fall back to the ABC
		// face and its triangle subroutine.
		s.v[0], s.v[1], s.v[2] = a, b, c
		s.num = 3
		return doSimplex3(s, direction)
	}
}

func doSimplex(s *gjkSimplex, direction *lin.V3) bool {
	switch s.num {
	case 2:
		return doSimplex2(s, direction)
	case 3:
		return doSimplex3(s, direction)
	case 4:
		return doSimplex4(s, direction)
	}
	return false
}

// gjkMaxIterations bounds the support iteration ( "GJK non-convergence"
// degrades to a conservative fallback rather than looping forever).
const gjkMaxIterations = 64

// gjkIntersect runs GJK over the given Minkowski-difference support,
// reporting whether the two shapes overlap and, if so, the terminating
// simplex for epa.go to expand into a polytope.
func gjkIntersect(mk *minkowskiSupport) (intersects bool, simplex gjkSimplex) {
	var dir lin.V3
	var p lin.V3
	wa, wb := mk.Get(lin.NewV3S(0, 0, 1), &p)
	simplex.v[0] = gjkVertex{p: p, onA: *wa, onB: *wb}
	simplex.num = 1
	dir.Scale(&p, -1)
	if dir.AeqZ() {
		dir = lin.V3{X: 1}
	}

	for i := 0; i < gjkMaxIterations; i++ {
		wa, wb = mk.Get(&dir, &p)
		if p.Dot(&dir) < 0 {
			return false, simplex
		}
		pushSimplex(&simplex, gjkVertex{p: p, onA: *wa, onB: *wb})
		if doSimplex(&simplex, &dir) {
			return true, simplex
		}
		if dir.AeqZ() {
			// degenerate direction: treat as touching/overlap boundary.
			return true, simplex
		}
	}
	return false, simplex
}
