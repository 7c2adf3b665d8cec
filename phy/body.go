// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// body.go is the RigidBody data model: identity, pose, motion, material,
// and the layer/flags bookkeeping the broadphase and solver key off of.
// Field layout (imass, lvel/avel, iit/iitw, friction/restitution) is
// generalised to the motion-type and allowed-DOF model the
// narrowphase/solver pipeline needs.
package phy

import "github.com/gazed/physics/math/lin"

// MotionType classifies how a body participates in simulation.
type MotionType int

const (
	// Static bodies have zero inverse mass/inertia, never move, and never
	// appear in islands except as a pinned endpoint.
	Static MotionType = iota
	// Kinematic bodies move under externally-set velocity but ignore
	// forces and never sleep.
	Kinematic
	// Dynamic bodies integrate forces, participate in islands, and sleep.
	Dynamic
)

// MotionQuality selects the collision-integration strategy for a dynamic
// body: Discrete steps position then detects collisions at the new pose
// (cheap, can tunnel through thin geometry at high speed); LinearCast
// sweeps the body's shape along its linear displacement and stops at the
// first time of impact.
type MotionQuality int

const (
	Discrete MotionQuality = iota
	LinearCast
)

// DOF bits select which translation/rotation axes a body's motion may
// use; the solver zeroes constraint contributions along disallowed axes.
type DOF uint8

const (
	DOFTransX DOF = 1 << iota
	DOFTransY
	DOFTransZ
	DOFRotX
	DOFRotY
	DOFRotZ
	DOFAll = DOFTransX | DOFTransY | DOFTransZ | DOFRotX | DOFRotY | DOFRotZ
)

// CombineMode selects how two bodies' friction/restitution are combined
// into a single contact value.
type CombineMode int

const (
	CombineAverage CombineMode = iota
	CombineMin
	CombineMax
	CombineMultiply
)

// Material holds the surface properties a contact between two bodies
// combines.
type Material struct {
	Friction           float64
	Restitution        float64
	FrictionCombine    CombineMode
	RestitutionCombine CombineMode
}

// bodyFlags bit-packs the per-body booleans (sensor, sleeping, manifold
// reduction, enhanced edge removal) alongside identity/pose/motion/material.
// DOF locks are kept separately in RigidBody.AllowedDOF.
type bodyFlags uint8

const (
	flagSensor bodyFlags = 1 << iota
	flagSleeping
	flagEnhancedEdgeRemoval
	flagUseManifoldReduction
)

// RigidBody is a single simulated object: identity, pose, motion,
// material, and broadphase routing data. Created explicitly via
// World.CreateBody; destroyed only outside of listener callbacks (the
// pending-commands buffer in pending.go enforces this during a step).
type RigidBody struct {
	ID    BodyID
	index bodyIndex // dense pool slot, drives deterministic ordering.

	Shape Shape
	Pose  lin.T // position + orientation.
	com   lin.V3 // centre-of-mass offset in local space, cached from Shape.

	Motion        MotionType
	Quality       MotionQuality
	AllowedDOF    DOF
	LinearVel     lin.V3
	AngularVel    lin.V3
	force         lin.V3 // accumulated this step, cleared after integration.
	torque        lin.V3
	InvMass       float64
	InvInertia    lin.V3 // local-space principal inverse inertia.
	invInertiaW   lin.M3 // world-space inverse inertia, recomputed per step.
	LinearDamping float64
	AngularDamping float64
	GravityFactor float64
	MaxLinearVel  float64 // <=0 means unclamped.
	MaxAngularVel float64

	Material Material
	Layer    BroadphaseLayer
	Group    uint32
	Mask     uint32

	flags bodyFlags

	constraints []ConstraintID

	sleepTimer float64 // seconds spent below the sleep velocity threshold.
	island     int     // union-find root index, valid only during a step.

	ccdSlot int // index into the world's per-frame CCD list, -1 if none.
	aabb    Abox
}

// NewRigidBody constructs a body at the identity pose with Dynamic motion
// and no shape; callers finish setup with SetShape (and by setting the
// Material field) before adding it to a World.
func NewRigidBody() *RigidBody {
	b := &RigidBody{
		ID:             newBodyID(),
		Pose:           lin.T{Loc: lin.NewV3(), Rot: lin.NewQI()},
		Motion:         Dynamic,
		AllowedDOF:     DOFAll,
		GravityFactor:  1,
		MaxLinearVel:   -1,
		MaxAngularVel:  -1,
		Material:       Material{Friction: 0.2, Restitution: 0},
		ccdSlot:        -1,
		invInertiaW:    lin.M3{Xx: 1, Yy: 1, Zz: 1},
	}
	return b
}

// SetShape assigns shape to the body and recomputes its mass properties
// from it (massOrDensity is a density when byDensity is true, a fixed
// mass otherwise).
func (b *RigidBody) SetShape(shape Shape, massOrDensity float64, byDensity bool) *RigidBody {
	b.Shape = shape
	b.com = *shape.CentreOfMass()
	if b.Motion == Static {
		b.InvMass, b.InvInertia = 0, lin.V3{}
		return b
	}
	mass, invI := shape.ComputeMassProperties(massOrDensity, byDensity)
	if mass > lin.Epsilon {
		b.InvMass = 1 / mass
	} else {
		b.InvMass = 0
	}
	b.InvInertia = *invI
	return b
}

// IsStatic, IsKinematic, IsDynamic classify motion type for call sites
// that only care about one case (broadphase layer assignment, island
// membership, sleep eligibility).
func (b *RigidBody) IsStatic() bool    { return b.Motion == Static }
func (b *RigidBody) IsKinematic() bool { return b.Motion == Kinematic }
func (b *RigidBody) IsDynamic() bool   { return b.Motion == Dynamic }

func (b *RigidBody) IsSensor() bool       { return b.flags&flagSensor != 0 }
func (b *RigidBody) SetSensor(v bool)     { b.setFlag(flagSensor, v) }
func (b *RigidBody) IsSleeping() bool     { return b.flags&flagSleeping != 0 }
func (b *RigidBody) setSleeping(v bool)   { b.setFlag(flagSleeping, v) }
func (b *RigidBody) EnhancedEdgeRemoval() bool { return b.flags&flagEnhancedEdgeRemoval != 0 }
func (b *RigidBody) SetEnhancedEdgeRemoval(v bool) { b.setFlag(flagEnhancedEdgeRemoval, v) }
func (b *RigidBody) UseManifoldReduction() bool { return b.flags&flagUseManifoldReduction != 0 }
func (b *RigidBody) SetUseManifoldReduction(v bool) { b.setFlag(flagUseManifoldReduction, v) }

func (b *RigidBody) setFlag(f bodyFlags, v bool) {
	if v {
		b.flags |= f
	} else {
		b.flags &^= f
	}
}

// AddForce/AddTorque accumulate world-space force/torque applied at the
// centre of mass; cleared to zero every step after integration.
func (b *RigidBody) AddForce(x, y, z float64)  { b.force.X += x; b.force.Y += y; b.force.Z += z }
func (b *RigidBody) AddTorque(x, y, z float64) { b.torque.X += x; b.torque.Y += y; b.torque.Z += z }

// AddImpulse applies an instantaneous linear impulse at the centre of mass.
func (b *RigidBody) AddImpulse(x, y, z float64) {
	if b.InvMass <= 0 {
		return
	}
	b.LinearVel.X += x * b.InvMass
	b.LinearVel.Y += y * b.InvMass
	b.LinearVel.Z += z * b.InvMass
}

// clearForces resets the per-step force/torque accumulators; called once
// per step after integration.
func (b *RigidBody) clearForces() {
	b.force.SetS(0, 0, 0)
	b.torque.SetS(0, 0, 0)
}

// updateWorldInertia recomputes the world-space inverse inertia tensor
// R·Iinv·Rᵀ from the current orientation; called once per step before
// the solver needs it for the effective-mass computation.
func (b *RigidBody) updateWorldInertia() {
	var r lin.M3
	r.SetQ(b.Pose.Rot)
	var diag lin.M3
	diag.Xx, diag.Yy, diag.Zz = b.InvInertia.X, b.InvInertia.Y, b.InvInertia.Z
	var t lin.M3
	t.Transpose(&r)
	var tmp lin.M3
	tmp.Mult(&r, &diag)
	b.invInertiaW.Mult(&tmp, &t)
}

// worldCentreOfMass returns the body's centre of mass in world space.
func (b *RigidBody) worldCentreOfMass() *lin.V3 {
	wx, wy, wz := b.Pose.AppS(b.com.GetS())
	return lin.NewV3S(wx, wy, wz)
}

// maskLinear zeroes the components of a world-space linear quantity
// (velocity, impulse) along translation axes AllowedDOF disallows. The
// mask is applied in body-local space since DOF locks are meant relative
// to the body's own frame, not the world's.
func (b *RigidBody) maskLinear(v lin.V3) lin.V3 {
	if b.AllowedDOF == DOFAll {
		return v
	}
	lx, ly, lz := rotateInverse(&b.Pose, &v)
	if b.AllowedDOF&DOFTransX == 0 {
		lx = 0
	}
	if b.AllowedDOF&DOFTransY == 0 {
		ly = 0
	}
	if b.AllowedDOF&DOFTransZ == 0 {
		lz = 0
	}
	wx, wy, wz := b.Pose.AppR(lx, ly, lz)
	return lin.V3{X: wx, Y: wy, Z: wz}
}

// maskAngular is maskLinear's rotation-axis counterpart.
func (b *RigidBody) maskAngular(v lin.V3) lin.V3 {
	if b.AllowedDOF == DOFAll {
		return v
	}
	lx, ly, lz := rotateInverse(&b.Pose, &v)
	if b.AllowedDOF&DOFRotX == 0 {
		lx = 0
	}
	if b.AllowedDOF&DOFRotY == 0 {
		ly = 0
	}
	if b.AllowedDOF&DOFRotZ == 0 {
		lz = 0
	}
	wx, wy, wz := b.Pose.AppR(lx, ly, lz)
	return lin.V3{X: wx, Y: wy, Z: wz}
}
