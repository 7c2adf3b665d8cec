// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// constraint.go defines UserConstraint, the tagged variant over the eight
// joint kinds (point, distance, hinge, fixed, slider, cone, swing-twist,
// 6-DOF). Every variant is assembled from the same two row primitives
// solver.go already defines for contacts: axisConstraintPart for a
// linear (point-to-point) row and angularConstraintPart, this file's
// rotation-only counterpart, for a pure alignment/twist row. joints.go
// holds the per-variant row assembly; this file holds the shared type,
// the impulse-warm-start bookkeeping, and the per-step solve loop that
// world.go drives alongside the contact solver.
package phy

import "github.com/gazed/physics/math/lin"

// ConstraintKind selects which joint variant a UserConstraint implements.
type ConstraintKind int

const (
	ConstraintPoint ConstraintKind = iota
	ConstraintDistance
	ConstraintHinge
	ConstraintFixed
	ConstraintSlider
	ConstraintCone
	ConstraintSwingTwist
	ConstraintSixDOF
)

// Space selects whether a constraint's anchor points and axes are given
// in each body's local frame or directly in world space.
type Space int

const (
	Local Space = iota
	WorldSpace
)

// MotorState selects how a constraint's motor, if any, drives its free
// axis: off, toward a target velocity, or toward a target position.
type MotorState int

const (
	MotorOff MotorState = iota
	MotorVelocity
	MotorPosition
)

// MotorSettings configures a constraint's motor along its free axis.
// MaxForce is a torque for rotational axes and a force for linear axes;
// the solver converts it to a per-step impulse limit via MaxForce*dt.
type MotorSettings struct {
	State          MotorState
	TargetVelocity float64
	TargetPosition float64
	MaxForce       float64
}

// SpringSettings softens an otherwise rigid axis into a damped spring,
// following the Baumgarte-style soft-constraint formulation: Frequency
// and Damping fold into the row's effective mass and bias target rather
// than a literal Hookean force.
type SpringSettings struct {
	Enabled   bool
	Frequency float64
	Damping   float64
}

// LimitSettings bounds a constrained axis to [Min, Max]; the solver only
// applies a correcting impulse once the axis value falls outside that
// range, clamped one-sided so the joint can freely move back inside it.
type LimitSettings struct {
	Enabled bool
	Min     float64
	Max     float64
}

// AxisConfig is one independent channel of a 6-DOF constraint: a limit,
// an optional motor, and an optional spring, all sharing one axis.
type AxisConfig struct {
	Limit  LimitSettings
	Motor  MotorSettings
	Spring SpringSettings
}

// ConstraintSettings is the immutable description a UserConstraint is
// built from. Anchor points and axes are interpreted per Space: Local
// values are in each body's own frame, WorldSpace values are absolute.
type ConstraintSettings struct {
	Kind ConstraintKind

	BodyA, BodyB bodyIndex
	Space        Space

	PointA, PointB lin.V3 // anchors; both should coincide once satisfied.
	AxisA, AxisB   lin.V3 // primary axis (must be unit length): hinge/slider axis, cone/twist axis.

	DistanceLimit LimitSettings // ConstraintDistance.
	Limit         LimitSettings // hinge angle / slider offset / cone half-angle.
	TwistLimit    LimitSettings // ConstraintSwingTwist only.

	Spring SpringSettings
	Motor  MotorSettings

	Linear  [3]AxisConfig // ConstraintSixDOF translation along A's anchor frame.
	Angular [3]AxisConfig // ConstraintSixDOF rotation about A's anchor frame.
}

// UserConstraint is a live joint between two bodies. Created via the
// per-variant factories in joints.go, destroyed explicitly; disabling it
// removes it from the solver without losing its settings.
type UserConstraint struct {
	ID ConstraintID
	ConstraintSettings

	enabled bool

	linRows    []axisConstraintPart
	linTargets []float64
	linImpulse []float64 // warm-start cache, indexed like linRows.

	angRows    []angularConstraintPart
	angTargets []float64
	angImpulse []float64
}

func newUserConstraint(settings ConstraintSettings) *UserConstraint {
	return &UserConstraint{ID: newConstraintID(), ConstraintSettings: settings, enabled: true}
}

func (c *UserConstraint) Enabled() bool    { return c.enabled }
func (c *UserConstraint) SetEnabled(v bool) { c.enabled = v }

// bodyPair reports the two bodies this constraint couples, for island
// union-find (see buildIslands' constraintPairs parameter).
func (c *UserConstraint) bodyPair() [2]bodyIndex { return [2]bodyIndex{c.BodyA, c.BodyB} }

// SetMotorState switches the constraint's primary-axis motor off, or
// onto target-velocity or target-position drive.
func (c *UserConstraint) SetMotorState(state MotorState) { c.Motor.State = state }

// SetTargetVelocity sets the primary motor's target velocity (angular,
// rad/s, for rotational joints; linear, m/s, for ConstraintSlider).
func (c *UserConstraint) SetTargetVelocity(v float64) { c.Motor.TargetVelocity = v }

// SetTargetPosition sets the primary motor's target position (radians
// for rotational joints, metres for ConstraintSlider).
func (c *UserConstraint) SetTargetPosition(p float64) { c.Motor.TargetPosition = p }

// SetMaxMotorForce sets the motor's torque (rotational) or force
// (linear) limit.
func (c *UserConstraint) SetMaxMotorForce(f float64) { c.Motor.MaxForce = f }

// angularConstraintPart is a pure-rotation counterpart to solver.go's
// axisConstraintPart: it constrains (ωB - ωA)·axis without any linear
// coupling, for joint rows that align or lock orientation rather than
// pinning a shared point (hinge axis alignment, fixed-orientation lock,
// cone swing limit, motors and limits on a rotational axis).
type angularConstraintPart struct {
	bodyA, bodyB *solverBody
	axis         lin.V3
	effMass      float64

	impulse    float64
	lowerLimit float64
	upperLimit float64
}

func newAngularConstraintPart(bodyA, bodyB *solverBody, axis lin.V3) angularConstraintPart {
	p := angularConstraintPart{bodyA: bodyA, bodyB: bodyB, axis: axis, lowerLimit: -lin.Large, upperLimit: lin.Large}
	var iaxisA, iaxisB lin.V3
	iaxisA.MultMv(&bodyA.invInertiaW, &axis)
	iaxisB.MultMv(&bodyB.invInertiaW, &axis)
	denom := axis.Dot(&iaxisA) + axis.Dot(&iaxisB)
	if denom > lin.Epsilon {
		p.effMass = 1 / denom
	}
	return p
}

func (p *angularConstraintPart) relativeVelocity() float64 {
	var rel lin.V3
	rel.Sub(&p.bodyB.angVel, &p.bodyA.angVel)
	return rel.Dot(&p.axis)
}

func (p *angularConstraintPart) solveVelocity(target float64) float64 {
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

func (p *angularConstraintPart) applyVelocityImpulse(magnitude float64) {
	if magnitude == 0 {
		return
	}
	var torque lin.V3
	torque.Scale(&p.axis, magnitude)
	if p.bodyA.invMass > 0 {
		var neg, dw lin.V3
		neg.Scale(&torque, -1)
		dw.MultMv(&p.bodyA.invInertiaW, &neg)
		dw = p.bodyA.body.maskAngular(dw)
		p.bodyA.angVel.Add(&p.bodyA.angVel, &dw)
	}
	if p.bodyB.invMass > 0 {
		var dw lin.V3
		dw.MultMv(&p.bodyB.invInertiaW, &torque)
		dw = p.bodyB.body.maskAngular(dw)
		p.bodyB.angVel.Add(&p.bodyB.angVel, &dw)
	}
}

// setup rebuilds this constraint's rows from the current body poses,
// carrying over last step's accumulated impulses for warm-starting.
// Returns false (nothing to solve) when either body is missing from
// bodyOf, which happens when a body sleeps or one endpoint is static and
// outside this island's active set.
func (c *UserConstraint) setup(bodyOf map[bodyIndex]*solverBody, bodyList []*RigidBody, settings *WorldSettings, dt float64) bool {
	sa, ok := bodyOf[c.BodyA]
	if !ok {
		return false
	}
	sb, ok := bodyOf[c.BodyB]
	if !ok {
		return false
	}

	oldLin, oldLinImpulse := c.linRows, c.linImpulse
	oldAng, oldAngImpulse := c.angRows, c.angImpulse
	c.linRows, c.linTargets, c.linImpulse = nil, nil, nil
	c.angRows, c.angTargets, c.angImpulse = nil, nil, nil

	switch c.Kind {
	case ConstraintPoint:
		c.setupPoint(sa, sb, bodyList, settings, dt)
	case ConstraintDistance:
		c.setupDistance(sa, sb, bodyList, settings, dt)
	case ConstraintHinge:
		c.setupHinge(sa, sb, bodyList, settings, dt)
	case ConstraintFixed:
		c.setupFixed(sa, sb, bodyList, settings, dt)
	case ConstraintSlider:
		c.setupSlider(sa, sb, bodyList, settings, dt)
	case ConstraintCone:
		c.setupCone(sa, sb, bodyList, settings, dt)
	case ConstraintSwingTwist:
		c.setupSwingTwist(sa, sb, bodyList, settings, dt)
	case ConstraintSixDOF:
		c.setupSixDOF(sa, sb, bodyList, settings, dt)
	}

	if len(oldLin) == len(c.linRows) {
		for i := range c.linRows {
			c.linRows[i].impulse = oldLinImpulse[i]
		}
	}
	if len(oldAng) == len(c.angRows) {
		for i := range c.angRows {
			c.angRows[i].impulse = oldAngImpulse[i]
		}
	}
	return true
}

func (c *UserConstraint) addLinear(p axisConstraintPart, target float64) {
	c.linRows = append(c.linRows, p)
	c.linTargets = append(c.linTargets, target)
	c.linImpulse = append(c.linImpulse, 0)
}

func (c *UserConstraint) addAngular(p angularConstraintPart, target float64) {
	c.angRows = append(c.angRows, p)
	c.angTargets = append(c.angTargets, target)
	c.angImpulse = append(c.angImpulse, 0)
}

// warmStart re-applies last step's accumulated impulses before the
// first velocity iteration, scaled by scale (dtCurrent/dtPrevious,
// computed once per step by UpdateWorld and passed down through
// solveIslandConstraints), the same rule contactConstraint.warmStart
// applies.
func (c *UserConstraint) warmStart(scale float64) {
	for i := range c.linRows {
		c.linRows[i].applyVelocityImpulse(c.linRows[i].impulse * scale)
	}
	for i := range c.angRows {
		c.angRows[i].applyVelocityImpulse(c.angRows[i].impulse * scale)
	}
}

// solveVelocity runs one Gauss-Seidel sweep over every row and returns
// the total impulse magnitude applied, for the island loop's
// early-termination check.
func (c *UserConstraint) solveVelocity() float64 {
	total := 0.0
	for i := range c.linRows {
		total += absf(c.linRows[i].solveVelocity(c.linTargets[i]))
	}
	for i := range c.angRows {
		total += absf(c.angRows[i].solveVelocity(c.angTargets[i]))
	}
	return total
}

// saveImpulses persists this step's accumulated row impulses for next
// step's warmStart.
func (c *UserConstraint) saveImpulses() {
	for i := range c.linRows {
		c.linImpulse[i] = c.linRows[i].impulse
	}
	for i := range c.angRows {
		c.angImpulse[i] = c.angRows[i].impulse
	}
}

// solveIslandConstraints runs the user-constraint pass for one island,
// after its contact constraints have already been solved: warm-start
// every joint once, then NumVelocitySteps Gauss-Seidel sweeps, matching
// solveIslandVelocity's contact loop.
// Disabled constraints must be filtered out by the caller before this
// is reached: every constraint passed in is warm-started and solved.
func solveIslandConstraints(constraints []*UserConstraint, steps int, warmStartScale float64) {
	for _, c := range constraints {
		c.warmStart(warmStartScale)
	}
	for i := 0; i < steps; i++ {
		moved := 0.0
		for _, c := range constraints {
			moved += c.solveVelocity()
		}
		if moved < lin.Epsilon {
			break
		}
	}
	for _, c := range constraints {
		c.saveImpulses()
	}
}

// The newXConstraint factories below build a UserConstraint from its
// variant-specific parameters; World wraps each one with a public
// BodyID-based entry point (resolving BodyID to the current bodyIndex)
// so callers never see the dense pool index directly.

func newPointConstraint(bodyA, bodyB bodyIndex, pointA, pointB lin.V3, space Space) *UserConstraint {
	return newUserConstraint(ConstraintSettings{
		Kind: ConstraintPoint, BodyA: bodyA, BodyB: bodyB,
		PointA: pointA, PointB: pointB, Space: space,
	})
}

func newDistanceConstraint(bodyA, bodyB bodyIndex, pointA, pointB lin.V3, space Space, limit LimitSettings) *UserConstraint {
	return newUserConstraint(ConstraintSettings{
		Kind: ConstraintDistance, BodyA: bodyA, BodyB: bodyB,
		PointA: pointA, PointB: pointB, Space: space, DistanceLimit: limit,
	})
}

func newHingeConstraint(bodyA, bodyB bodyIndex, pointA, pointB, axisA, axisB lin.V3, space Space, limit LimitSettings, spring SpringSettings, motor MotorSettings) *UserConstraint {
	return newUserConstraint(ConstraintSettings{
		Kind: ConstraintHinge, BodyA: bodyA, BodyB: bodyB,
		PointA: pointA, PointB: pointB, AxisA: axisA, AxisB: axisB, Space: space,
		Limit: limit, Spring: spring, Motor: motor,
	})
}

func newFixedConstraint(bodyA, bodyB bodyIndex, pointA, pointB, axisA, axisB lin.V3, space Space) *UserConstraint {
	return newUserConstraint(ConstraintSettings{
		Kind: ConstraintFixed, BodyA: bodyA, BodyB: bodyB,
		PointA: pointA, PointB: pointB, AxisA: axisA, AxisB: axisB, Space: space,
	})
}

func newSliderConstraint(bodyA, bodyB bodyIndex, pointA, pointB, axisA, axisB lin.V3, space Space, limit LimitSettings, spring SpringSettings, motor MotorSettings) *UserConstraint {
	return newUserConstraint(ConstraintSettings{
		Kind: ConstraintSlider, BodyA: bodyA, BodyB: bodyB,
		PointA: pointA, PointB: pointB, AxisA: axisA, AxisB: axisB, Space: space,
		Limit: limit, Spring: spring, Motor: motor,
	})
}

func newConeConstraint(bodyA, bodyB bodyIndex, pointA, pointB, axisA, axisB lin.V3, space Space, halfAngle float64) *UserConstraint {
	return newUserConstraint(ConstraintSettings{
		Kind: ConstraintCone, BodyA: bodyA, BodyB: bodyB,
		PointA: pointA, PointB: pointB, AxisA: axisA, AxisB: axisB, Space: space,
		Limit: LimitSettings{Enabled: true, Min: 0, Max: halfAngle},
	})
}

func newSwingTwistConstraint(bodyA, bodyB bodyIndex, pointA, pointB, axisA, axisB lin.V3, space Space, swingHalfAngle float64, twistLimit LimitSettings, motor MotorSettings) *UserConstraint {
	return newUserConstraint(ConstraintSettings{
		Kind: ConstraintSwingTwist, BodyA: bodyA, BodyB: bodyB,
		PointA: pointA, PointB: pointB, AxisA: axisA, AxisB: axisB, Space: space,
		Limit:      LimitSettings{Enabled: true, Min: 0, Max: swingHalfAngle},
		TwistLimit: twistLimit, Motor: motor,
	})
}

func newSixDOFConstraint(bodyA, bodyB bodyIndex, pointA, pointB, axisA, axisB lin.V3, space Space, linear, angular [3]AxisConfig) *UserConstraint {
	return newUserConstraint(ConstraintSettings{
		Kind: ConstraintSixDOF, BodyA: bodyA, BodyB: bodyB,
		PointA: pointA, PointB: pointB, AxisA: axisA, AxisB: axisB, Space: space,
		Linear: linear, Angular: angular,
	})
}
