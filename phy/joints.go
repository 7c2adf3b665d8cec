// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// joints.go assembles each ConstraintKind's row set from the shared
// axisConstraintPart/angularConstraintPart primitives constraint.go
// defines. Point-to-point coupling always uses three linear rows along
// world X/Y/Z (addPointRows); orientation coupling uses the classic
// perpendicular-vector trick: two angular rows keep a primary axis
// parallel across both bodies, and a third locks the remaining twist
// about it. Motors and limits reuse the same row types with a clamped
// impulse range instead of an unbounded one; springs reuse them again
// with the row's effective mass and bias softened by frequency/damping.
package phy

import (
	"math"

	"github.com/gazed/physics/math/lin"
)

func worldVec(pose *lin.T, local lin.V3) lin.V3 {
	x, y, z := pose.AppR(local.X, local.Y, local.Z)
	return lin.V3{X: x, Y: y, Z: z}
}

func worldPt(pose *lin.T, local lin.V3) lin.V3 {
	x, y, z := pose.AppS(local.X, local.Y, local.Z)
	return lin.V3{X: x, Y: y, Z: z}
}

func (c *UserConstraint) anchorWorld(a, b *RigidBody) (wA, wB lin.V3) {
	if c.Space == WorldSpace {
		return c.PointA, c.PointB
	}
	return worldPt(&a.Pose, c.PointA), worldPt(&b.Pose, c.PointB)
}

func (c *UserConstraint) axisWorld(a, b *RigidBody) (axA, axB lin.V3) {
	if c.Space == WorldSpace {
		return c.AxisA, c.AxisB
	}
	return worldVec(&a.Pose, c.AxisA), worldVec(&b.Pose, c.AxisB)
}

// twistVectors returns each body's reference vector for measuring
// rotation about the constraint's primary axis: the same deterministic
// perpendicular is taken from AxisA and AxisB's local components, so if
// both were given as the same numeric triple (the normal way to build a
// hinge/slider axis) the two vectors start out aligned and track the
// relative rotation accumulated since creation.
func (c *UserConstraint) twistVectors(a, b *RigidBody) (t1A, t1B lin.V3) {
	var localA1, localA2, localB1, localB2 lin.V3
	axisA, axisB := c.AxisA, c.AxisB
	axisA.Plane(&localA1, &localA2)
	axisB.Plane(&localB1, &localB2)
	if c.Space == WorldSpace {
		return localA1, localB1
	}
	return worldVec(&a.Pose, localA1), worldVec(&b.Pose, localB1)
}

// signedAngle returns the angle from t1 to t2 about axis, assuming both
// are perpendicular to the unit axis.
func signedAngle(axis, t1, t2 lin.V3) float64 {
	var cr lin.V3
	cr.Cross(&t1, &t2)
	return math.Atan2(cr.Dot(&axis), t1.Dot(&t2))
}

// limitBounds returns the one-sided impulse range and bias target for
// keeping value inside [min, max]; active is false when value is
// already inside the range, meaning no row is needed this step.
func limitBounds(value, min, max, baumgarte, dt float64) (lower, upper, target float64, active bool) {
	if value > max {
		return -lin.Large, 0, -(baumgarte / dt) * (value - max), true
	}
	if value < min {
		return 0, lin.Large, -(baumgarte / dt) * (value - min), true
	}
	return 0, 0, 0, false
}

// springSoften turns a spring's (frequency, damping) into a softened
// effective mass and bias target for the row it's attached to, using the
// standard CFM/ERP soft-constraint formulation: stiffer constraints
// approach the rigid-row limit as frequency grows and damping keeps the
// response from oscillating.
func springSoften(effMass, freq, damping, dt, c float64) (softMass, bias float64) {
	if effMass == 0 || freq <= 0 {
		return effMass, 0
	}
	omega := 2 * math.Pi * freq
	k := omega * omega / effMass
	cDamp := 2 * damping * omega / effMass
	gamma := 1 / (dt * (cDamp + dt*k))
	beta := dt * k * gamma
	softMass = 1 / (1/effMass + gamma)
	bias = (beta / dt) * c
	return softMass, bias
}

// addPointRows adds three linear rows pinning wA and wB together, one
// per world axis; used by every variant whose anchors must coincide.
func (c *UserConstraint) addPointRows(sa, sb *solverBody, comA, comB, wA, wB lin.V3, baumgarte, dt float64) {
	var rA, rB, errC lin.V3
	rA.Sub(&wA, &comA)
	rB.Sub(&wB, &comB)
	errC.Sub(&wB, &wA)
	axes := [3]lin.V3{{X: 1}, {Y: 1}, {Z: 1}}
	for _, axis := range axes {
		row := newAxisConstraintPart(sa, sb, rA, rB, axis)
		row.lowerLimit, row.upperLimit = -lin.Large, lin.Large
		target := -(baumgarte / dt) * errC.Dot(&axis)
		c.addLinear(row, target)
	}
}

// addAxisAlignRows adds two angular rows that keep axisA and axisB
// parallel, leaving rotation about that shared axis free.
func (c *UserConstraint) addAxisAlignRows(sa, sb *solverBody, axisA, axisB lin.V3, baumgarte, dt float64) {
	var t1, t2 lin.V3
	axisA.Plane(&t1, &t2)
	target1 := -(baumgarte / dt) * axisB.Dot(&t1)
	target2 := -(baumgarte / dt) * axisB.Dot(&t2)
	c.addAngular(newAngularConstraintPart(sa, sb, t1), target1)
	c.addAngular(newAngularConstraintPart(sa, sb, t2), target2)
}

// addTwistLockRow adds one angular row locking rotation about axis,
// using each body's own twist-reference vector to detect the relative
// twist that's accumulated since the constraint was created.
func (c *UserConstraint) addTwistLockRow(sa, sb *solverBody, axis, t1A, t1B lin.V3, baumgarte, dt float64) {
	var cr lin.V3
	cr.Cross(&t1A, &t1B)
	target := -(baumgarte / dt) * cr.Dot(&axis)
	c.addAngular(newAngularConstraintPart(sa, sb, axis), target)
}

func (c *UserConstraint) addAngularLimit(sa, sb *solverBody, axis lin.V3, value float64, limit LimitSettings, baumgarte, dt float64) {
	if !limit.Enabled {
		return
	}
	lower, upper, target, active := limitBounds(value, limit.Min, limit.Max, baumgarte, dt)
	if !active {
		return
	}
	row := newAngularConstraintPart(sa, sb, axis)
	row.lowerLimit, row.upperLimit = lower, upper
	c.addAngular(row, target)
}

func (c *UserConstraint) addAngularMotor(sa, sb *solverBody, axis lin.V3, value float64, motor MotorSettings, dt float64) {
	if motor.State == MotorOff {
		return
	}
	row := newAngularConstraintPart(sa, sb, axis)
	bound := motor.MaxForce * dt
	row.lowerLimit, row.upperLimit = -bound, bound
	target := motor.TargetVelocity
	if motor.State == MotorPosition {
		target = (motor.TargetPosition - value) / dt
	}
	c.addAngular(row, target)
}

func (c *UserConstraint) addAngularSpring(sa, sb *solverBody, axis lin.V3, value float64, spring SpringSettings, dt float64) {
	if !spring.Enabled {
		return
	}
	row := newAngularConstraintPart(sa, sb, axis)
	if row.effMass == 0 {
		return
	}
	soft, bias := springSoften(row.effMass, spring.Frequency, spring.Damping, dt, value)
	row.effMass = soft
	row.lowerLimit, row.upperLimit = -lin.Large, lin.Large
	c.addAngular(row, bias)
}

func (c *UserConstraint) addLinearLimit(sa, sb *solverBody, rA, rB, axis lin.V3, value float64, limit LimitSettings, baumgarte, dt float64) {
	if !limit.Enabled {
		return
	}
	lower, upper, target, active := limitBounds(value, limit.Min, limit.Max, baumgarte, dt)
	if !active {
		return
	}
	row := newAxisConstraintPart(sa, sb, rA, rB, axis)
	row.lowerLimit, row.upperLimit = lower, upper
	c.addLinear(row, target)
}

func (c *UserConstraint) addLinearMotor(sa, sb *solverBody, rA, rB, axis lin.V3, value float64, motor MotorSettings, dt float64) {
	if motor.State == MotorOff {
		return
	}
	row := newAxisConstraintPart(sa, sb, rA, rB, axis)
	bound := motor.MaxForce * dt
	row.lowerLimit, row.upperLimit = -bound, bound
	target := motor.TargetVelocity
	if motor.State == MotorPosition {
		target = (motor.TargetPosition - value) / dt
	}
	c.addLinear(row, target)
}

func (c *UserConstraint) addLinearSpring(sa, sb *solverBody, rA, rB, axis lin.V3, value float64, spring SpringSettings, dt float64) {
	if !spring.Enabled {
		return
	}
	row := newAxisConstraintPart(sa, sb, rA, rB, axis)
	if row.effMass == 0 {
		return
	}
	soft, bias := springSoften(row.effMass, spring.Frequency, spring.Damping, dt, value)
	row.effMass = soft
	row.lowerLimit, row.upperLimit = -lin.Large, lin.Large
	c.addLinear(row, bias)
}

// setupPoint: ball-and-socket. Three linear rows, full rotational freedom.
func (c *UserConstraint) setupPoint(sa, sb *solverBody, bodyList []*RigidBody, settings *WorldSettings, dt float64) {
	a, b := bodyList[c.BodyA], bodyList[c.BodyB]
	comA, comB := *a.worldCentreOfMass(), *b.worldCentreOfMass()
	wA, wB := c.anchorWorld(a, b)
	c.addPointRows(sa, sb, comA, comB, wA, wB, settings.Baumgarte, dt)
}

// setupDistance: anchors kept within [DistanceLimit.Min, Max] of each
// other along the line between them; a rigid rod when Min == Max.
func (c *UserConstraint) setupDistance(sa, sb *solverBody, bodyList []*RigidBody, settings *WorldSettings, dt float64) {
	a, b := bodyList[c.BodyA], bodyList[c.BodyB]
	comA, comB := *a.worldCentreOfMass(), *b.worldCentreOfMass()
	wA, wB := c.anchorWorld(a, b)
	var d lin.V3
	d.Sub(&wB, &wA)
	dist := d.Len()
	axis := lin.V3{X: 1}
	if dist > lin.Epsilon {
		d.Unit()
		axis = d
	}
	var rA, rB lin.V3
	rA.Sub(&wA, &comA)
	rB.Sub(&wB, &comB)

	if c.DistanceLimit.Min >= c.DistanceLimit.Max-lin.Epsilon {
		row := newAxisConstraintPart(sa, sb, rA, rB, axis)
		row.lowerLimit, row.upperLimit = -lin.Large, lin.Large
		target := -(settings.Baumgarte / dt) * (dist - c.DistanceLimit.Max)
		c.addLinear(row, target)
		return
	}
	c.addLinearLimit(sa, sb, rA, rB, axis, dist, c.DistanceLimit, settings.Baumgarte, dt)
}

// setupHinge: coincident anchors, one free rotation axis, optional
// angle limit, motor, and spring about that axis.
func (c *UserConstraint) setupHinge(sa, sb *solverBody, bodyList []*RigidBody, settings *WorldSettings, dt float64) {
	a, b := bodyList[c.BodyA], bodyList[c.BodyB]
	comA, comB := *a.worldCentreOfMass(), *b.worldCentreOfMass()
	wA, wB := c.anchorWorld(a, b)
	c.addPointRows(sa, sb, comA, comB, wA, wB, settings.Baumgarte, dt)

	axisA, axisB := c.axisWorld(a, b)
	c.addAxisAlignRows(sa, sb, axisA, axisB, settings.Baumgarte, dt)

	t1A, t1B := c.twistVectors(a, b)
	angle := signedAngle(axisA, t1A, t1B)
	if c.Motor.State != MotorOff {
		c.addAngularMotor(sa, sb, axisA, angle, c.Motor, dt)
	} else if c.Spring.Enabled {
		c.addAngularSpring(sa, sb, axisA, angle, c.Spring, dt)
	}
	c.addAngularLimit(sa, sb, axisA, angle, c.Limit, settings.Baumgarte, dt)
}

// setupFixed: coincident anchors and fully locked relative orientation
// (a weld joint).
func (c *UserConstraint) setupFixed(sa, sb *solverBody, bodyList []*RigidBody, settings *WorldSettings, dt float64) {
	a, b := bodyList[c.BodyA], bodyList[c.BodyB]
	comA, comB := *a.worldCentreOfMass(), *b.worldCentreOfMass()
	wA, wB := c.anchorWorld(a, b)
	c.addPointRows(sa, sb, comA, comB, wA, wB, settings.Baumgarte, dt)

	axisA, axisB := c.axisWorld(a, b)
	c.addAxisAlignRows(sa, sb, axisA, axisB, settings.Baumgarte, dt)
	t1A, t1B := c.twistVectors(a, b)
	c.addTwistLockRow(sa, sb, axisA, t1A, t1B, settings.Baumgarte, dt)
}

// setupSlider: free translation along AxisA, locked perpendicular
// translation and full orientation lock, with optional limit/motor/
// spring along the slide axis.
func (c *UserConstraint) setupSlider(sa, sb *solverBody, bodyList []*RigidBody, settings *WorldSettings, dt float64) {
	a, b := bodyList[c.BodyA], bodyList[c.BodyB]
	comA, comB := *a.worldCentreOfMass(), *b.worldCentreOfMass()
	wA, wB := c.anchorWorld(a, b)
	axisA, axisB := c.axisWorld(a, b)

	var rA, rB, errC lin.V3
	rA.Sub(&wA, &comA)
	rB.Sub(&wB, &comB)
	errC.Sub(&wB, &wA)

	var t1, t2 lin.V3
	axisA.Plane(&t1, &t2)
	for _, axis := range [2]lin.V3{t1, t2} {
		row := newAxisConstraintPart(sa, sb, rA, rB, axis)
		row.lowerLimit, row.upperLimit = -lin.Large, lin.Large
		target := -(settings.Baumgarte / dt) * errC.Dot(&axis)
		c.addLinear(row, target)
	}

	c.addAxisAlignRows(sa, sb, axisA, axisB, settings.Baumgarte, dt)
	t1A, t1B := c.twistVectors(a, b)
	c.addTwistLockRow(sa, sb, axisA, t1A, t1B, settings.Baumgarte, dt)

	offset := errC.Dot(&axisA)
	if c.Motor.State != MotorOff {
		c.addLinearMotor(sa, sb, rA, rB, axisA, offset, c.Motor, dt)
	} else if c.Spring.Enabled {
		c.addLinearSpring(sa, sb, rA, rB, axisA, offset, c.Spring, dt)
	}
	c.addLinearLimit(sa, sb, rA, rB, axisA, offset, c.Limit, settings.Baumgarte, dt)
}

// setupCone: coincident anchors, free rotation inside a symmetric cone
// of half-angle Limit.Max around AxisA, free twist inside the cone.
func (c *UserConstraint) setupCone(sa, sb *solverBody, bodyList []*RigidBody, settings *WorldSettings, dt float64) {
	a, b := bodyList[c.BodyA], bodyList[c.BodyB]
	comA, comB := *a.worldCentreOfMass(), *b.worldCentreOfMass()
	wA, wB := c.anchorWorld(a, b)
	c.addPointRows(sa, sb, comA, comB, wA, wB, settings.Baumgarte, dt)

	axisA, axisB := c.axisWorld(a, b)
	swing := math.Acos(clampUnit(axisA.Dot(&axisB)))
	var swingAxis lin.V3
	swingAxis.Cross(&axisA, &axisB)
	swingAxis.Unit()
	c.addAngularLimit(sa, sb, swingAxis, swing, c.Limit, settings.Baumgarte, dt)
}

// setupSwingTwist: coincident anchors, a swing cone like setupCone plus
// an independent twist limit (and optional twist motor) about AxisA.
func (c *UserConstraint) setupSwingTwist(sa, sb *solverBody, bodyList []*RigidBody, settings *WorldSettings, dt float64) {
	a, b := bodyList[c.BodyA], bodyList[c.BodyB]
	comA, comB := *a.worldCentreOfMass(), *b.worldCentreOfMass()
	wA, wB := c.anchorWorld(a, b)
	c.addPointRows(sa, sb, comA, comB, wA, wB, settings.Baumgarte, dt)

	axisA, axisB := c.axisWorld(a, b)
	swing := math.Acos(clampUnit(axisA.Dot(&axisB)))
	var swingAxis lin.V3
	swingAxis.Cross(&axisA, &axisB)
	swingAxis.Unit()
	c.addAngularLimit(sa, sb, swingAxis, swing, c.Limit, settings.Baumgarte, dt)

	t1A, t1B := c.twistVectors(a, b)
	twist := signedAngle(axisA, t1A, t1B)
	if c.Motor.State != MotorOff {
		c.addAngularMotor(sa, sb, axisA, twist, c.Motor, dt)
	}
	c.addAngularLimit(sa, sb, axisA, twist, c.TwistLimit, settings.Baumgarte, dt)
}

// setupSixDOF: coincident anchors, each of the six axes (3 translation
// along AxisA's frame, 3 rotation about the same frame) independently
// limited, motored, or sprung per Linear[i]/Angular[i].
func (c *UserConstraint) setupSixDOF(sa, sb *solverBody, bodyList []*RigidBody, settings *WorldSettings, dt float64) {
	a, b := bodyList[c.BodyA], bodyList[c.BodyB]
	comA, comB := *a.worldCentreOfMass(), *b.worldCentreOfMass()
	wA, wB := c.anchorWorld(a, b)
	axisA, axisB := c.axisWorld(a, b)

	var rA, rB, errC lin.V3
	rA.Sub(&wA, &comA)
	rB.Sub(&wB, &comB)
	errC.Sub(&wB, &wA)

	var t1, t2 lin.V3
	axisA.Plane(&t1, &t2)
	linAxes := [3]lin.V3{axisA, t1, t2}
	for i, axis := range linAxes {
		cfg := c.Linear[i]
		value := errC.Dot(&axis)
		switch {
		case cfg.Motor.State != MotorOff:
			c.addLinearMotor(sa, sb, rA, rB, axis, value, cfg.Motor, dt)
		case cfg.Spring.Enabled:
			c.addLinearSpring(sa, sb, rA, rB, axis, value, cfg.Spring, dt)
		case cfg.Limit.Enabled && cfg.Limit.Min >= cfg.Limit.Max-lin.Epsilon:
			row := newAxisConstraintPart(sa, sb, rA, rB, axis)
			row.lowerLimit, row.upperLimit = -lin.Large, lin.Large
			c.addLinear(row, -(settings.Baumgarte/dt)*(value-cfg.Limit.Max))
		default:
			c.addLinearLimit(sa, sb, rA, rB, axis, value, cfg.Limit, settings.Baumgarte, dt)
		}
	}

	t1A, t1B := c.twistVectors(a, b)
	angAxes := [3]lin.V3{axisA, t1, t2}
	angValues := [3]float64{signedAngle(axisA, t1A, t1B), axisB.Dot(&t1), axisB.Dot(&t2)}
	for i, axis := range angAxes {
		cfg := c.Angular[i]
		value := angValues[i]
		switch {
		case cfg.Motor.State != MotorOff:
			c.addAngularMotor(sa, sb, axis, value, cfg.Motor, dt)
		case cfg.Spring.Enabled:
			c.addAngularSpring(sa, sb, axis, value, cfg.Spring, dt)
		default:
			c.addAngularLimit(sa, sb, axis, value, cfg.Limit, settings.Baumgarte, dt)
		}
	}
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
