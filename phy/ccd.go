// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// ccd.go runs the continuous-collision pipeline for bodies flagged
// LinearCast: a swept-AABB broadphase query, a conservative shape cast
// against each candidate, time-of-impact sorting, and a single
// Gauss-Seidel impulse resolution pass built from the same
// axisConstraintPart rows the discrete solver uses.
package phy

import (
	"sort"

	"github.com/gazed/physics/math/lin"
)

// ccdSweepSamples/ccdBisectIterations bound castShapeVsShape's search:
// a coarse linear scan to bracket the first overlapping sample,
// followed by bisection to tighten it. 20 bisection halvings resolve
// the fraction to better than one part in a million of the swept
// distance.
const (
	ccdSweepSamples     = 16
	ccdBisectIterations = 20
)

// CCDBody is one step's linear-cast record for a single fast body.
// Pooled in ccdState across steps.
type CCDBody struct {
	Body          bodyIndex
	DeltaPosition lin.V3 // LinearVel * dt, the full step's displacement.
	origin        lin.V3 // body's position before this step's sweep.

	HasHit       bool
	HitBody      bodyIndex
	Fraction     float64 // [0,1] along DeltaPosition, earliest overlap found.
	SafeFraction float64 // Fraction pulled back by the penetration-slop allowance.

	Point, Normal lin.V3 // world space, valid only when HasHit.
	thresholdSq   float64

	resolved bool // cleared every step; set once resolveCCD has moved this body.
}

// ccdState is the world's per-step CCD pool, reusing its backing array
// across steps to stay allocation-bounded.
type ccdState struct {
	pool []CCDBody
}

func newCCDState() *ccdState { return &ccdState{} }

// collectCCDBodies scans bodyList for linear-cast dynamic bodies whose
// predicted displacement this step exceeds linearCastThreshold times
// the shape's inner radius. Bodies under threshold fall back to
// ordinary discrete position integration and get ccdSlot reset to -1.
func collectCCDBodies(bodyList []*RigidBody, settings *WorldSettings, dt float64, state *ccdState) []*CCDBody {
	n := 0
	for _, b := range bodyList {
		if b.Motion == Dynamic && b.Quality == LinearCast && !b.IsSleeping() {
			n++
		}
	}
	state.pool = state.pool[:0]
	if cap(state.pool) < n {
		state.pool = make([]CCDBody, 0, n)
	}
	out := make([]*CCDBody, 0, n)
	for i, b := range bodyList {
		if b == nil {
			continue
		}
		if b.Motion != Dynamic || b.Quality != LinearCast || b.IsSleeping() || b.Shape == nil {
			b.ccdSlot = -1
			continue
		}
		delta := lin.V3{X: b.LinearVel.X * dt, Y: b.LinearVel.Y * dt, Z: b.LinearVel.Z * dt}
		threshold := settings.LinearCastThreshold * b.Shape.InnerRadius()
		if delta.Dot(&delta) <= threshold*threshold {
			b.ccdSlot = -1
			continue
		}
		state.pool = append(state.pool, CCDBody{
			Body: bodyIndex(i), DeltaPosition: delta, origin: *b.Pose.Loc,
			thresholdSq: threshold * threshold,
		})
		cb := &state.pool[len(state.pool)-1]
		b.ccdSlot = len(out)
		out = append(out, cb)
	}
	return out
}

// findEarliestHit walks the swept AABB through the broadphase and
// keeps the smallest castShapeVsShape fraction across every candidate:
// the broadphase query is the ray-vs-expanded-AABB early-out, the
// shape cast is the precise test.
func findEarliestHit(cb *CCDBody, bodyList []*RigidBody, bp *Broadphase, settings *WorldSettings) {
	a := bodyList[cb.Body]
	var sweep Abox
	a.Shape.Aabb(&a.Pose, &sweep, 0)
	sweep.ExpandSwept(cb.DeltaPosition.GetS())
	candidates := bp.QueryBox(&sweep)

	best := 1.0
	found := false
	for _, bi := range candidates {
		if bi == cb.Body {
			continue
		}
		b := bodyList[bi]
		if b.IsSensor() || b.Shape == nil {
			continue
		}
		fraction, ok := castShapeVsShape(a, b, cb.origin, cb.DeltaPosition, best)
		if ok && fraction < best {
			best = fraction
			cb.HitBody = bi
			found = true
		}
	}
	cb.HasHit = found
	if found {
		cb.Fraction = best
		cb.SafeFraction = maxf(0, best-settings.LinearCastMaxPenetration)
	}
}

// castShapeVsShape finds the earliest fraction in (0, maxFraction] at
// which translating a by fraction*delta (from origin) first overlaps
// b: a coarse linear scan brackets the first overlapping sample, then
// bisection tightens it. This reuses the narrowphase's own GJK overlap
// test (genericConvexCollide) rather than a closed-form
// conservative-advancement separating-distance solve, at the cost of a
// fixed sample/bisection budget instead of a convergence-driven one.
func castShapeVsShape(a, b *RigidBody, origin, delta lin.V3, maxFraction float64) (fraction float64, ok bool) {
	saved := *a.Pose.Loc
	defer a.Pose.Loc.Set(&saved)

	var scratch Manifold
	atFraction := func(f float64) bool {
		a.Pose.Loc.SetS(origin.X+delta.X*f, origin.Y+delta.Y*f, origin.Z+delta.Z*f)
		scratch.Reset()
		return genericConvexCollide(a, b, &scratch)
	}

	step := maxFraction / ccdSweepSamples
	prev := 0.0
	hit := false
	for i := 1; i <= ccdSweepSamples; i++ {
		f := float64(i) * step
		if atFraction(f) {
			hit = true
			break
		}
		prev = f
	}
	if !hit {
		return 0, false
	}
	lo, hi := prev, prev+step
	for i := 0; i < ccdBisectIterations; i++ {
		mid := (lo + hi) * 0.5
		if atFraction(mid) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi, true
}

// resolveCCD sorts the step's CCD bodies by hit fraction (ties broken
// by body index), invalidates a hit a faster-resolving responder has
// already moved clear of, applies one Gauss-Seidel impulse pass per
// surviving contact by reusing buildContactConstraints' row setup with
// impulses forced to zero (CCD contacts are never warm-started), and
// leaves every CCD-slotted body at its resolved position: SafeFraction
// of DeltaPosition on a hit, the full DeltaPosition otherwise. Returns
// the manifolds formed this step.
func resolveCCD(list []*CCDBody, bodyList []*RigidBody, cache *contactCache, settings *WorldSettings, dt float64, step uint64) []*Manifold {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Fraction != list[j].Fraction {
			return list[i].Fraction < list[j].Fraction
		}
		return list[i].Body < list[j].Body
	})

	byBody := make(map[bodyIndex]*CCDBody, len(list))
	for _, cb := range list {
		byBody[cb.Body] = cb
	}

	var manifolds []*Manifold
	for _, cb := range list {
		if cb.resolved {
			continue
		}
		if cb.HasHit {
			if peer, isCCD := byBody[cb.HitBody]; isCCD && peer.HasHit && peer.Fraction < cb.Fraction {
				cb.HasHit = false // the responder already moved past this encounter.
			}
		}

		a := bodyList[cb.Body]
		if !cb.HasHit {
			a.Pose.Loc.SetS(cb.origin.X+cb.DeltaPosition.X, cb.origin.Y+cb.DeltaPosition.Y, cb.origin.Z+cb.DeltaPosition.Z)
			cb.resolved = true
			continue
		}

		b := bodyList[cb.HitBody]
		a.Pose.Loc.SetS(
			cb.origin.X+cb.DeltaPosition.X*cb.SafeFraction,
			cb.origin.Y+cb.DeltaPosition.Y*cb.SafeFraction,
			cb.origin.Z+cb.DeltaPosition.Z*cb.SafeFraction,
		)

		m := &Manifold{}
		if genericConvexCollide(a, b, m) {
			sa, sb := newSolverBody(a), newSolverBody(b)
			bodyOf := map[bodyIndex]*solverBody{a.index: sa, b.index: sb}
			for _, cc := range buildContactConstraints(m, bodyOf, bodyList, cache, settings, dt, step) {
				cc.normal.impulse, cc.tangent1.impulse, cc.tangent2.impulse = 0, 0, 0
				cc.cache.IsCCD = true
				cc.solveVelocity()
				cc.saveImpulses()
			}
			sa.finish()
			sb.finish()
			cb.Point, cb.Normal = m.worldA(0), m.Normal
			manifolds = append(manifolds, m)
		}
		cb.resolved = true

		if peer, isCCD := byBody[cb.HitBody]; isCCD && !peer.resolved {
			// the responder is itself a CCD body: carry it to the same
			// time fraction rather than letting its own independent
			// sweep (found against a different, now-stale, candidate set)
			// resolve it a second time.
			peer.Point, peer.SafeFraction = cb.Point, cb.SafeFraction
			b.Pose.Loc.SetS(
				peer.origin.X+peer.DeltaPosition.X*cb.SafeFraction,
				peer.origin.Y+peer.DeltaPosition.Y*cb.SafeFraction,
				peer.origin.Z+peer.DeltaPosition.Z*cb.SafeFraction,
			)
			peer.resolved = true
		}
	}
	return manifolds
}

// runCCD drives one step's continuous-collision pass: collect bodies
// whose displacement outruns their shape's inner radius, broadphase-
// sweep each for candidates, shape-cast against every candidate to
// find the earliest time of impact, then resolve the sorted hit list.
// Every linear-cast body ends the call at its final resolved position;
// bodies under the CCD threshold are untouched (their position
// integration already ran as ordinary discrete bodies). Called
// between velocity integration and the position-correction pass.
func runCCD(bodyList []*RigidBody, bp *Broadphase, settings *WorldSettings, dt float64, state *ccdState, cache *contactCache, step uint64) []*Manifold {
	list := collectCCDBodies(bodyList, settings, dt, state)
	if len(list) == 0 {
		return nil
	}
	for _, cb := range list {
		findEarliestHit(cb, bodyList, bp, settings)
	}
	manifolds := resolveCCD(list, bodyList, cache, settings, dt, step)
	for _, cb := range list {
		bodyList[cb.Body].ccdSlot = -1
	}
	return manifolds
}
