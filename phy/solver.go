// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.
//
// solver.go is a un-optimized, scaled-down, golang version of the Bullet
// physics bullet-2.81-rev2613/src/BulletDynamics/ConstraintSolver/
// btSequentialImpulseConstraintSolver.(cpp/h) which has the following
// license:
//
// Bullet Continuous Collision Detection and Physics Library
// Copyright (c) 2003-2006 Erwin Coumans  http://continuousphysics.com/Bullet/
//
// This software is provided 'as-is', without any express or implied
// warranty.  In no event will the authors be held liable for any damages
// arising from the use of this software.
// Permission is granted to anyone to use this software for any purpose,
// including commercial applications, and to alter it and redistribute it
// freely, subject to the following restrictions:
// 1. The origin of this software must not be misrepresented; you must not
//    claim that you wrote the original software. If you use this software
//    in a product, an acknowledgment in the product documentation would be
//    appreciated but is not required.
// 2. Altered source versions must be plainly marked as such, and must not be
//    misrepresented as being the original software.
// 3. This notice may not be removed or altered from any source distribution.

// solver.go runs sequential-impulse (projected Gauss-Seidel) resolution
// of contact constraints, one island at a time. Two axis-constraint-part
// kinds participate: the normal constraint enforcing non-penetration and
// two tangent friction constraints linked to it via a running friction
// bound. Velocity and position correction are solved as two independent
// passes over the same constraint set: velocity against each body's
// real linear/angular velocity, position against a pseudo-velocity pair
// that only ever feeds the position integrator, so Baumgarte correction
// never leaks energy into the real velocity.
package phy

import "github.com/gazed/physics/math/lin"

// solverBody is a per-island, per-step wrapper around a RigidBody giving
// the iterative passes a place to accumulate velocity and pseudo-velocity
// corrections without touching the body until the island finishes.
type solverBody struct {
	body *RigidBody

	invMass     float64
	invInertiaW lin.M3

	linVel lin.V3 // working copy of real linear velocity.
	angVel lin.V3

	pushVel lin.V3 // split-impulse pseudo-velocities: position-only.
	turnVel lin.V3
}

func newSolverBody(b *RigidBody) *solverBody {
	return &solverBody{
		body:        b,
		invMass:     b.InvMass,
		invInertiaW: b.invInertiaW,
		linVel:      b.LinearVel,
		angVel:      b.AngularVel,
	}
}

// finish writes the solved velocity back to the body. pushVel/turnVel
// stay on the solverBody itself: the integrator reads them directly to
// fold the position correction into this step's pose update without
// disturbing LinearVel/AngularVel.
func (sb *solverBody) finish() {
	sb.body.LinearVel = sb.linVel
	sb.body.AngularVel = sb.angVel
}

// velocityAt returns the body's velocity at a point offset r from its
// centre of mass: v + ω×r.
func (sb *solverBody) velocityAt(r *lin.V3) lin.V3 {
	var wxr lin.V3
	wxr.Cross(&sb.angVel, r)
	var out lin.V3
	out.Add(&sb.linVel, &wxr)
	return out
}

func (sb *solverBody) pseudoVelocityAt(r *lin.V3) lin.V3 {
	var wxr lin.V3
	wxr.Cross(&sb.turnVel, r)
	var out lin.V3
	out.Add(&sb.pushVel, &wxr)
	return out
}

// axisConstraintPart is one scalar constraint row along a single
// direction: a contact normal, a friction tangent, or (once constraint.go
// builds joints on top of this) a single joint axis. Isolating the row
// this way is what lets contact and joint constraints share one
// Gauss-Seidel loop.
type axisConstraintPart struct {
	bodyA, bodyB *solverBody
	rA, rB       lin.V3 // contact point offset from each body's COM.
	axis         lin.V3
	angularA     lin.V3 // invInertiaW_A * (rA × axis), precomputed once.
	angularB     lin.V3
	effMass      float64 // 1 / (invMassA+invMassB+axis·(angularA×rA)+axis·(angularB×rB)).

	impulse    float64
	lowerLimit float64
	upperLimit float64
}

// newAxisConstraintPart computes the effective mass for a single-axis
// constraint row and returns it ready to solve; effMass is zero (row
// skipped) when both bodies are infinitely massive.
func newAxisConstraintPart(bodyA, bodyB *solverBody, rA, rB, axis lin.V3) axisConstraintPart {
	p := axisConstraintPart{bodyA: bodyA, bodyB: bodyB, rA: rA, rB: rB, axis: axis}

	var torqueA, torqueB lin.V3
	torqueA.Cross(&rA, &axis)
	torqueB.Cross(&rB, &axis)
	p.angularA.MultMv(&bodyA.invInertiaW, &torqueA)
	p.angularB.MultMv(&bodyB.invInertiaW, &torqueB)

	var crossA, crossB lin.V3
	crossA.Cross(&p.angularA, &rA)
	crossB.Cross(&p.angularB, &rB)
	denom := bodyA.invMass + bodyB.invMass + axis.Dot(&crossA) + axis.Dot(&crossB)
	if denom > lin.Epsilon {
		p.effMass = 1 / denom
	}
	return p
}

// relativeVelocity returns (vB - vA)·axis at the contact point, using the
// real velocity pair.
func (p *axisConstraintPart) relativeVelocity() float64 {
	va := p.bodyA.velocityAt(&p.rA)
	vb := p.bodyB.velocityAt(&p.rB)
	var rel lin.V3
	rel.Sub(&vb, &va)
	return rel.Dot(&p.axis)
}

func (p *axisConstraintPart) relativePseudoVelocity() float64 {
	va := p.bodyA.pseudoVelocityAt(&p.rA)
	vb := p.bodyB.pseudoVelocityAt(&p.rB)
	var rel lin.V3
	rel.Sub(&vb, &va)
	return rel.Dot(&p.axis)
}

// solveVelocity drives relativeVelocity() toward target (clamped between
// lowerLimit/upperLimit on accumulated impulse) and reports the signed
// impulse it applied this call, so callers can detect convergence.
func (p *axisConstraintPart) solveVelocity(target float64) float64 {
	if p.effMass == 0 {
		return 0
	}
	vn := p.relativeVelocity()
	deltaImpulse := (target - vn) * p.effMass
	newImpulse := p.impulse + deltaImpulse
	if newImpulse < p.lowerLimit {
		newImpulse = p.lowerLimit
	} else if newImpulse > p.upperLimit {
		newImpulse = p.upperLimit
	}
	applied := newImpulse - p.impulse
	p.impulse = newImpulse
	p.applyVelocityImpulse(applied)
	return applied
}

func (p *axisConstraintPart) applyVelocityImpulse(magnitude float64) {
	if magnitude == 0 {
		return
	}
	var linImpulse lin.V3
	linImpulse.Scale(&p.axis, magnitude)

	if p.bodyA.invMass > 0 {
		var dv lin.V3
		dv.Scale(&linImpulse, -p.bodyA.invMass)
		dv = p.bodyA.body.maskLinear(dv)
		p.bodyA.linVel.Add(&p.bodyA.linVel, &dv)
		var dw lin.V3
		dw.Scale(&p.angularA, -magnitude)
		dw = p.bodyA.body.maskAngular(dw)
		p.bodyA.angVel.Add(&p.bodyA.angVel, &dw)
	}
	if p.bodyB.invMass > 0 {
		var dv lin.V3
		dv.Scale(&linImpulse, p.bodyB.invMass)
		dv = p.bodyB.body.maskLinear(dv)
		p.bodyB.linVel.Add(&p.bodyB.linVel, &dv)
		var dw lin.V3
		dw.Scale(&p.angularB, magnitude)
		dw = p.bodyB.body.maskAngular(dw)
		p.bodyB.angVel.Add(&p.bodyB.angVel, &dw)
	}
}

// solvePosition is solveVelocity's pseudo-velocity counterpart, used by
// the split-impulse position pass; it never touches real velocity.
func (p *axisConstraintPart) solvePosition(target float64) float64 {
	if p.effMass == 0 {
		return 0
	}
	vn := p.relativePseudoVelocity()
	deltaImpulse := (target - vn) * p.effMass
	newImpulse := p.impulse + deltaImpulse
	if newImpulse < 0 {
		newImpulse = 0
	}
	applied := newImpulse - p.impulse
	p.impulse = newImpulse
	if applied == 0 {
		return 0
	}
	var linImpulse lin.V3
	linImpulse.Scale(&p.axis, applied)
	if p.bodyA.invMass > 0 {
		var dv lin.V3
		dv.Scale(&linImpulse, -p.bodyA.invMass)
		dv = p.bodyA.body.maskLinear(dv)
		p.bodyA.pushVel.Add(&p.bodyA.pushVel, &dv)
		var dw lin.V3
		dw.Scale(&p.angularA, -applied)
		dw = p.bodyA.body.maskAngular(dw)
		p.bodyA.turnVel.Add(&p.bodyA.turnVel, &dw)
	}
	if p.bodyB.invMass > 0 {
		var dv lin.V3
		dv.Scale(&linImpulse, p.bodyB.invMass)
		dv = p.bodyB.body.maskLinear(dv)
		p.bodyB.pushVel.Add(&p.bodyB.pushVel, &dv)
		var dw lin.V3
		dw.Scale(&p.angularB, applied)
		dw = p.bodyB.body.maskAngular(dw)
		p.bodyB.turnVel.Add(&p.bodyB.turnVel, &dw)
	}
	return applied
}

// contactConstraint is one manifold point's full set of rows: a normal
// constraint plus two tangent friction constraints whose bound tracks
// the normal's accumulated impulse.
type contactConstraint struct {
	key ContactKey

	normal    axisConstraintPart
	tangent1  axisConstraintPart
	tangent2  axisConstraintPart
	friction  float64

	// bias targets, computed once at setup from this step's Δt.
	velocityBias float64 // real-velocity pass target (speculative + restitution).
	positionBias float64 // pseudo-velocity pass target (Baumgarte).

	cache *CachedContact
}

// buildContactConstraints converts one reduced manifold into one
// contactConstraint per point, pulling/creating the matching CachedContact
// so warm-started impulses and the processed-flag sweep stay in sync.
func buildContactConstraints(m *Manifold, bodyOf map[bodyIndex]*solverBody, bodyList []*RigidBody, cache *contactCache, settings *WorldSettings, dt float64, step uint64) []*contactConstraint {
	out := make([]*contactConstraint, 0, len(m.Points))
	sa, ok := bodyOf[m.BodyA]
	if !ok {
		return out
	}
	sb, ok := bodyOf[m.BodyB]
	if !ok {
		return out
	}

	comA := bodyList[m.BodyA].worldCentreOfMass()
	comB := bodyList[m.BodyB].worldCentreOfMass()
	mat := combineMaterial(bodyList[m.BodyA].Material, bodyList[m.BodyB].Material)

	var tangent1, tangent2 lin.V3
	m.Normal.Plane(&tangent1, &tangent2)

	for i := range m.Points {
		pt := &m.Points[i]
		worldA := m.worldA(i)
		worldB := m.worldB(i)
		var mid lin.V3
		mid.Add(&worldA, &worldB)
		mid.Scale(&mid, 0.5)

		var rA, rB lin.V3
		rA.Sub(&mid, comA)
		rB.Sub(&mid, comB)

		ordA, ordB, swapped := orderBodies(bodyList, m.BodyA, m.BodyB)
		subA, subB := pt.SubShapeIDA, pt.SubShapeIDB
		if swapped {
			subA, subB = subB, subA
		}
		key := ContactKey{BodyA: ordA, BodyB: ordB, SubShapeIDA: subA, SubShapeIDB: subB}
		entry, created := cache.getOrCreate(key, step)

		cc := &contactConstraint{key: key, friction: mat.Friction, cache: entry}
		cc.normal = newAxisConstraintPart(sa, sb, rA, rB, m.Normal)
		cc.normal.lowerLimit = 0
		cc.normal.upperLimit = lin.Large
		cc.tangent1 = newAxisConstraintPart(sa, sb, rA, rB, tangent1)
		cc.tangent2 = newAxisConstraintPart(sa, sb, rA, rB, tangent2)

		separation := -pt.Depth
		vn0 := cc.normal.relativeVelocity()
		restitutionBias := 0.0
		if vn0 < -settings.MinRestitutionVelocity {
			restitutionBias = -mat.Restitution * vn0
		}
		if separation > 0 {
			cc.velocityBias = maxf(separation/dt, restitutionBias)
		} else {
			cc.velocityBias = restitutionBias
		}
		if pt.Depth > settings.PenetrationSlop {
			cc.positionBias = settings.Baumgarte / dt * (pt.Depth - settings.PenetrationSlop)
		}

		if !created && !entry.IsCCD {
			cc.normal.impulse = entry.NormalImpulse
			cc.tangent1.impulse = entry.TangentImpulse1
			cc.tangent2.impulse = entry.TangentImpulse2
		}
		out = append(out, cc)
	}
	return out
}

// warmStart re-applies the persisted impulses from last step before the
// first velocity iteration, scaled by scale: UpdateWorld computes this
// once per step as dtCurrent/dtPrevious (0 on the very first step, so a
// cold start never over-applies a stale impulse) and threads it down
// through solveIslandVelocity.
func (cc *contactConstraint) warmStart(scale float64) {
	cc.normal.applyVelocityImpulse(cc.normal.impulse * scale)
	cc.tangent1.applyVelocityImpulse(cc.tangent1.impulse * scale)
	cc.tangent2.applyVelocityImpulse(cc.tangent2.impulse * scale)
}

// solveVelocity runs one Gauss-Seidel pass: normal first (so friction's
// bound reflects this iteration's normal impulse), then both friction
// rows clamped to the Coulomb cone. Returns the sum of the three rows'
// absolute impulse deltas, for early-termination.
func (cc *contactConstraint) solveVelocity() float64 {
	applied := cc.normal.solveVelocity(cc.velocityBias)
	bound := cc.friction * cc.normal.impulse
	cc.tangent1.lowerLimit, cc.tangent1.upperLimit = -bound, bound
	cc.tangent2.lowerLimit, cc.tangent2.upperLimit = -bound, bound
	a1 := cc.tangent1.solveVelocity(0)
	a2 := cc.tangent2.solveVelocity(0)
	return absf(applied) + absf(a1) + absf(a2)
}

func (cc *contactConstraint) solvePosition() float64 {
	return absf(cc.normal.solvePosition(cc.positionBias))
}

// saveImpulses persists this step's accumulated impulses into the
// contact cache so next step's warmStart has something to read.
func (cc *contactConstraint) saveImpulses() {
	cc.cache.NormalImpulse = cc.normal.impulse
	cc.cache.TangentImpulse1 = cc.tangent1.impulse
	cc.cache.TangentImpulse2 = cc.tangent2.impulse
}

// combineMaterial resolves two bodies' Material into the single
// friction/restitution pair a contact between them uses.
func combineMaterial(a, b Material) Material {
	return Material{
		Friction:    combineScalar(a.FrictionCombine, a.Friction, b.Friction),
		Restitution: combineScalar(a.RestitutionCombine, a.Restitution, b.Restitution),
	}
}

func combineScalar(mode CombineMode, a, b float64) float64 {
	switch mode {
	case CombineMin:
		return minf(a, b)
	case CombineMax:
		return maxf(a, b)
	case CombineMultiply:
		return a * b
	default:
		return (a + b) * 0.5
	}
}

// solveIslandVelocity runs the velocity pass for one island: warm-start
// every contact constraint once, then NumVelocitySteps Gauss-Seidel
// sweeps. Called once per step, after buildContactConstraints for every
// manifold touching this island.
func solveIslandVelocity(constraints []*contactConstraint, steps int, warmStartScale float64) {
	for _, cc := range constraints {
		cc.warmStart(warmStartScale)
	}
	for i := 0; i < steps; i++ {
		moved := 0.0
		for _, cc := range constraints {
			moved += cc.solveVelocity()
		}
		if moved < lin.Epsilon {
			break
		}
	}
	for _, cc := range constraints {
		cc.saveImpulses()
	}
}

// solveIslandPosition runs the split-impulse position-correction pass:
// the same constraints solved against each body's pseudo-velocity pair,
// which the caller folds into this step's position integration but never
// into LinearVel/AngularVel. Stops early once an iteration applies no
// further impulse.
func solveIslandPosition(constraints []*contactConstraint, steps int) {
	for i := 0; i < steps; i++ {
		moved := 0.0
		for _, cc := range constraints {
			moved += cc.solvePosition()
		}
		if moved < lin.Epsilon {
			break
		}
	}
}
