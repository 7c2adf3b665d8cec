// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// world.go is the engine's single entry point: World owns the body pool,
// the user-constraint registry, the broadphase, the contact cache, and
// the per-step CCD pool, and UpdateWorld drives all of it through one
// step in the fixed order every other file in this package was written
// to support: integrate forces, broadphase, narrowphase, solve, integrate
// positions, CCD, position-correct, refresh bounds, sleep, clear forces.
package phy

import "github.com/gazed/physics/math/lin"

// World owns every live body, constraint, and per-step cache the solver
// needs. Bodies and constraints are stored in dense, reused pools indexed
// by bodyIndex; BodyID/ConstraintID are the externally-stable handles
// that survive a slot being reused.
type World struct {
	Settings *WorldSettings

	bodies []*RigidBody // nil holes mark freed slots (island.go's dynamic() already tolerates this).
	byID   map[BodyID]bodyIndex
	free   []bodyIndex

	constraints   []*UserConstraint
	constraintIdx map[ConstraintID]int

	broadphase *Broadphase
	cache      *contactCache

	step     uint64
	prevDt   float64
	stepping bool

	pending *PendingCommands
}

// NewWorld builds a World from settings (nil uses settingsDefaults),
// wiring the broadphase's speculative margin from the narrowphase
// tolerances and applying every DisableCollision call settings recorded.
func NewWorld(settings *WorldSettings) *World {
	if settings == nil {
		settings = NewWorldSettings()
	}
	if settings.DebugLogger != nil {
		activeDebugLogger = settings.DebugLogger
	}
	w := &World{
		Settings:      settings,
		byID:          map[BodyID]bodyIndex{},
		constraintIdx: map[ConstraintID]int{},
		broadphase:    NewBroadphase(settings.Narrowphase.SpeculativeContactDistance),
		cache:         newContactCache(),
		pending:       newPendingCommands(),
	}
	for _, pair := range settings.disabledPairs {
		w.broadphase.DisableLayerPair(pair[0], pair[1])
	}
	return w
}

// Body looks up a live body by its stable id.
func (w *World) Body(id BodyID) (*RigidBody, bool) {
	idx, ok := w.byID[id]
	if !ok {
		return nil, false
	}
	return w.bodies[idx], true
}

// Bodies returns the dense body pool, nil holes and all; callers that
// need only live bodies should skip nils themselves (matching every
// internal iterator in this package).
func (w *World) Bodies() []*RigidBody { return w.bodies }

// CreateBody adds b (already configured via NewRigidBody/SetShape/etc.)
// to the world and returns its stable id, which b.ID already holds.
// Called from inside a Listener callback, the body joins the pool once
// UpdateWorld returns instead of racing the step in progress.
func (w *World) CreateBody(b *RigidBody) BodyID {
	if w.stepping {
		w.pending.queueCreateBody(b)
		return b.ID
	}
	w.addBody(b)
	return b.ID
}

// RemoveBody detaches a body from the broadphase, drops any cached
// contacts and constraints touching it, and frees its pool slot.
func (w *World) RemoveBody(id BodyID) {
	if w.stepping {
		w.pending.queueRemoveBody(id)
		return
	}
	w.removeBodyByID(id)
}

func (w *World) addBody(b *RigidBody) {
	var idx bodyIndex
	if n := len(w.free); n > 0 {
		idx = w.free[n-1]
		w.free = w.free[:n-1]
		w.bodies[idx] = b
	} else {
		idx = bodyIndex(len(w.bodies))
		w.bodies = append(w.bodies, b)
	}
	b.index = idx
	w.byID[b.ID] = idx
	if b.Shape != nil {
		var tight Abox
		b.Shape.Aabb(&b.Pose, &tight, 0)
		b.aabb = tight
		w.broadphase.Add(idx, b.Layer, tight)
	}
}

func (w *World) removeBodyByID(id BodyID) {
	idx, ok := w.byID[id]
	if !ok {
		return
	}
	b := w.bodies[idx]
	if b == nil {
		return
	}
	if b.Shape != nil {
		w.broadphase.Remove(idx, b.Layer)
	}
	w.removeCachedContactsFor(idx)
	w.removeConstraintsTouching(idx)
	delete(w.byID, id)
	w.bodies[idx] = nil
	w.free = append(w.free, idx)
}

func (w *World) removeCachedContactsFor(idx bodyIndex) {
	for k := range w.cache.entries {
		if k.BodyA == idx || k.BodyB == idx {
			delete(w.cache.entries, k)
		}
	}
}

func (w *World) removeConstraintsTouching(idx bodyIndex) {
	for i := 0; i < len(w.constraints); {
		c := w.constraints[i]
		if c.BodyA == idx || c.BodyB == idx {
			w.removeConstraintAt(i)
			continue
		}
		i++
	}
}

func (w *World) removeConstraintAt(i int) {
	c := w.constraints[i]
	last := len(w.constraints) - 1
	w.constraints[i] = w.constraints[last]
	w.constraints[last] = nil
	w.constraints = w.constraints[:last]
	if i < len(w.constraints) {
		w.constraintIdx[w.constraints[i].ID] = i
	}
	delete(w.constraintIdx, c.ID)
}

// createConstraint allocates id up front so the caller always gets a
// stable handle back, then either queues the actual creation (mid-step)
// or performs it immediately.
func (w *World) createConstraint(settings ConstraintSettings, a, b BodyID) (ConstraintID, error) {
	if _, ok := w.byID[a]; !ok {
		return ConstraintID{}, ErrBodyNotFound
	}
	if _, ok := w.byID[b]; !ok {
		return ConstraintID{}, ErrBodyNotFound
	}
	id := newConstraintID()
	if w.stepping {
		w.pending.queueCreateConstraint(id, settings, a, b)
		return id, nil
	}
	return w.createConstraintByID(id, settings, a, b)
}

// createConstraintByID resolves a/b to their current bodyIndex and
// dispatches to the matching joints.go factory, then stamps the result
// with id (the handle already promised to the caller) before
// registering it.
func (w *World) createConstraintByID(id ConstraintID, settings ConstraintSettings, a, b BodyID) (ConstraintID, error) {
	ai, ok := w.byID[a]
	if !ok {
		return ConstraintID{}, ErrBodyNotFound
	}
	bi, ok := w.byID[b]
	if !ok {
		return ConstraintID{}, ErrBodyNotFound
	}

	var uc *UserConstraint
	switch settings.Kind {
	case ConstraintPoint:
		uc = newPointConstraint(ai, bi, settings.PointA, settings.PointB, settings.Space)
	case ConstraintDistance:
		uc = newDistanceConstraint(ai, bi, settings.PointA, settings.PointB, settings.Space, settings.DistanceLimit)
	case ConstraintHinge:
		uc = newHingeConstraint(ai, bi, settings.PointA, settings.PointB, settings.AxisA, settings.AxisB, settings.Space, settings.Limit, settings.Spring, settings.Motor)
	case ConstraintFixed:
		uc = newFixedConstraint(ai, bi, settings.PointA, settings.PointB, settings.AxisA, settings.AxisB, settings.Space)
	case ConstraintSlider:
		uc = newSliderConstraint(ai, bi, settings.PointA, settings.PointB, settings.AxisA, settings.AxisB, settings.Space, settings.Limit, settings.Spring, settings.Motor)
	case ConstraintCone:
		uc = newConeConstraint(ai, bi, settings.PointA, settings.PointB, settings.AxisA, settings.AxisB, settings.Space, settings.Limit.Max)
	case ConstraintSwingTwist:
		uc = newSwingTwistConstraint(ai, bi, settings.PointA, settings.PointB, settings.AxisA, settings.AxisB, settings.Space, settings.Limit.Max, settings.TwistLimit, settings.Motor)
	case ConstraintSixDOF:
		uc = newSixDOFConstraint(ai, bi, settings.PointA, settings.PointB, settings.AxisA, settings.AxisB, settings.Space, settings.Linear, settings.Angular)
	default:
		return ConstraintID{}, ErrUnknownConstraintKind
	}
	uc.ID = id
	w.constraintIdx[id] = len(w.constraints)
	w.constraints = append(w.constraints, uc)
	return id, nil
}

// RemoveConstraint removes a live user constraint, or queues the removal
// if called mid-step.
func (w *World) RemoveConstraint(id ConstraintID) {
	if w.stepping {
		w.pending.queueRemoveConstraint(id)
		return
	}
	w.removeConstraintByID(id)
}

func (w *World) removeConstraintByID(id ConstraintID) {
	i, ok := w.constraintIdx[id]
	if !ok {
		return
	}
	w.removeConstraintAt(i)
}

// CreatePointConstraint pins a and b together at a single shared point.
func (w *World) CreatePointConstraint(a, b BodyID, pointA, pointB lin.V3, space Space) (ConstraintID, error) {
	return w.createConstraint(ConstraintSettings{Kind: ConstraintPoint, PointA: pointA, PointB: pointB, Space: space}, a, b)
}

// CreateDistanceConstraint holds a and b within a (optionally limited)
// distance range of one another.
func (w *World) CreateDistanceConstraint(a, b BodyID, pointA, pointB lin.V3, space Space, limit LimitSettings) (ConstraintID, error) {
	return w.createConstraint(ConstraintSettings{Kind: ConstraintDistance, PointA: pointA, PointB: pointB, Space: space, DistanceLimit: limit}, a, b)
}

// CreateHingeConstraint constrains a and b to rotate about a shared axis.
func (w *World) CreateHingeConstraint(a, b BodyID, pointA, pointB, axisA, axisB lin.V3, space Space, limit LimitSettings, spring SpringSettings, motor MotorSettings) (ConstraintID, error) {
	return w.createConstraint(ConstraintSettings{
		Kind: ConstraintHinge, PointA: pointA, PointB: pointB, AxisA: axisA, AxisB: axisB, Space: space,
		Limit: limit, Spring: spring, Motor: motor,
	}, a, b)
}

// CreateFixedConstraint welds a and b together: no relative translation
// or rotation.
func (w *World) CreateFixedConstraint(a, b BodyID, pointA, pointB, axisA, axisB lin.V3, space Space) (ConstraintID, error) {
	return w.createConstraint(ConstraintSettings{
		Kind: ConstraintFixed, PointA: pointA, PointB: pointB, AxisA: axisA, AxisB: axisB, Space: space,
	}, a, b)
}

// CreateSliderConstraint constrains a and b to translate along a shared
// axis.
func (w *World) CreateSliderConstraint(a, b BodyID, pointA, pointB, axisA, axisB lin.V3, space Space, limit LimitSettings, spring SpringSettings, motor MotorSettings) (ConstraintID, error) {
	return w.createConstraint(ConstraintSettings{
		Kind: ConstraintSlider, PointA: pointA, PointB: pointB, AxisA: axisA, AxisB: axisB, Space: space,
		Limit: limit, Spring: spring, Motor: motor,
	}, a, b)
}

// CreateConeConstraint limits b's axis to a symmetric half-angle cone
// around a's axis, both anchored at a shared point.
func (w *World) CreateConeConstraint(a, b BodyID, pointA, pointB, axisA, axisB lin.V3, space Space, halfAngle float64) (ConstraintID, error) {
	return w.createConstraint(ConstraintSettings{
		Kind: ConstraintCone, PointA: pointA, PointB: pointB, AxisA: axisA, AxisB: axisB, Space: space,
		Limit: LimitSettings{Enabled: true, Min: 0, Max: halfAngle},
	}, a, b)
}

// CreateSwingTwistConstraint is a cone constraint plus an independent
// twist-angle limit about the shared axis, the shoulder/hip joint shape.
func (w *World) CreateSwingTwistConstraint(a, b BodyID, pointA, pointB, axisA, axisB lin.V3, space Space, swingHalfAngle float64, twistLimit LimitSettings, motor MotorSettings) (ConstraintID, error) {
	return w.createConstraint(ConstraintSettings{
		Kind: ConstraintSwingTwist, PointA: pointA, PointB: pointB, AxisA: axisA, AxisB: axisB, Space: space,
		Limit: LimitSettings{Enabled: true, Min: 0, Max: swingHalfAngle}, TwistLimit: twistLimit, Motor: motor,
	}, a, b)
}

// CreateSixDOFConstraint is the fully general joint: independent
// limit/motor/spring configuration per translation and rotation axis.
func (w *World) CreateSixDOFConstraint(a, b BodyID, pointA, pointB, axisA, axisB lin.V3, space Space, linear, angular [3]AxisConfig) (ConstraintID, error) {
	return w.createConstraint(ConstraintSettings{
		Kind: ConstraintSixDOF, PointA: pointA, PointB: pointB, AxisA: axisA, AxisB: axisB, Space: space,
		Linear: linear, Angular: angular,
	}, a, b)
}

// ApplyPending drains lifecycle intents a Listener queued mid-step. Call
// once after UpdateWorld returns; never called while a step is running.
func (w *World) ApplyPending() { w.pending.apply(w) }

// shouldCollide applies the group/mask filter and the layer interaction
// matrix's static/static short-circuit: two bodies may only generate a
// contact if each one's Mask admits the other's Group, and at least one
// side is non-static (two immovable bodies never need a contact).
func shouldCollide(a, b *RigidBody) bool {
	if a.IsStatic() && b.IsStatic() {
		return false
	}
	if a.Mask != 0 && a.Mask&b.Group == 0 {
		return false
	}
	if b.Mask != 0 && b.Mask&a.Group == 0 {
		return false
	}
	return true
}

// UpdateWorld advances world by dt, invoking listener's hooks at the
// points the per-step order calls for. listener may be nil (treated as
// BaseListener{}). Returns ErrNegativeTimestep for dt<0 and
// ErrStepInProgress if called re-entrantly from a Listener callback.
func UpdateWorld(world *World, listener Listener, dt float64) error {
	if dt < 0 {
		return ErrNegativeTimestep
	}
	if world.stepping {
		return ErrStepInProgress
	}
	if listener == nil {
		listener = BaseListener{}
	}
	w := world
	w.stepping = true
	defer func() { w.stepping = false }()
	w.step++
	npTolerances = w.Settings.Narrowphase

	// step 1: clear per-step state.
	w.cache.clearProcessed()

	// step 2: integrate forces into velocities.
	w.integrateVelocities(dt)

	// step 3: broadphase.
	pairs := w.broadphase.FindPairs()

	// step 4/5: narrowphase, manifold->constraint build, stale sweep.
	manifolds := w.narrowphase(pairs, listener)

	// step 6: islands, warm-started velocity solve.
	warmStartScale := 0.0
	if w.prevDt > lin.Epsilon {
		warmStartScale = dt / w.prevDt
	}
	var islands []Island
	var islandConstraints []islandContacts
	if dt > 0 {
		islands = w.propagateWakeAndBuildIslands(pairs)
		islandConstraints = w.solveVelocity(islands, manifolds, warmStartScale, dt)
	}

	// step 7: integrate velocities into positions; CCD bodies only get
	// their orientation integrated here, position deferred to step 8.
	ccdList := collectCCDBodies(w.bodies, w.Settings, dt, &ccdState{})
	w.integratePositions(dt, ccdList)

	// step 8: continuous collision for linear-cast bodies.
	for _, cb := range ccdList {
		findEarliestHit(cb, w.bodies, w.broadphase, w.Settings)
	}
	ccdManifolds := resolveCCD(ccdList, w.bodies, w.cache, w.Settings, dt, w.step)
	for _, cb := range ccdList {
		w.bodies[cb.Body].ccdSlot = -1
	}
	w.fireCCDListeners(ccdManifolds, listener)

	// step 9: split-impulse position-correction pass, same islands.
	for _, ic := range islandConstraints {
		solveIslandPosition(ic.contacts, w.Settings.NumPositionSteps)
	}

	// step 10: fold position-pass pushVel/turnVel into the pose, recompute
	// AABBs, push fresh bounds into the broadphase.
	w.finishPositionCorrection(islandConstraints, dt)
	w.refreshBroadphase()

	// step 11: per-island sleep check.
	w.updateSleep(islands, dt)

	// step 12: clear forces.
	w.clearForces()

	w.prevDt = dt
	return nil
}

// integrateVelocities is step 2: F=ma into v, damping, clamp, DOF lock.
// Only awake dynamic bodies integrate; kinematic bodies keep whatever
// velocity the caller set, static bodies never move.
func (w *World) integrateVelocities(dt float64) {
	g := w.Settings.Gravity
	for _, b := range w.bodies {
		if b == nil || !b.IsDynamic() || b.IsSleeping() {
			continue
		}
		b.updateWorldInertia()

		if b.InvMass > 0 {
			ax := b.force.X * b.InvMass
			ay := b.force.Y * b.InvMass
			az := b.force.Z * b.InvMass
			if w.Settings.GravityEnabled {
				ax += g.X * b.GravityFactor
				ay += g.Y * b.GravityFactor
				az += g.Z * b.GravityFactor
			}
			b.LinearVel.X += ax * dt
			b.LinearVel.Y += ay * dt
			b.LinearVel.Z += az * dt

			var angAccel lin.V3
			angAccel.MultMv(&b.invInertiaW, &b.torque)
			b.AngularVel.X += angAccel.X * dt
			b.AngularVel.Y += angAccel.Y * dt
			b.AngularVel.Z += angAccel.Z * dt
		}

		ld := maxf(0, 1-b.LinearDamping*dt)
		ad := maxf(0, 1-b.AngularDamping*dt)
		b.LinearVel.Scale(&b.LinearVel, ld)
		b.AngularVel.Scale(&b.AngularVel, ad)

		if b.MaxLinearVel > 0 {
			if n := b.LinearVel.Len(); n > b.MaxLinearVel {
				b.LinearVel.Scale(&b.LinearVel, b.MaxLinearVel/n)
			}
		}
		if b.MaxAngularVel > 0 {
			if n := b.AngularVel.Len(); n > b.MaxAngularVel {
				b.AngularVel.Scale(&b.AngularVel, b.MaxAngularVel/n)
			}
		}

		b.LinearVel = b.maskLinear(b.LinearVel)
		b.AngularVel = b.maskAngular(b.AngularVel)
	}
}

// islandContacts is one island's contact-constraint row set, kept around
// between the velocity pass (step 6) and the position pass (step 9)
// since both operate on the identical solverBody/contactConstraint
// instances.
type islandContacts struct {
	bodyOf   map[bodyIndex]*solverBody
	contacts []*contactConstraint
}

// narrowphase runs steps 4 and 5: per candidate pair, validate with the
// listener, run the dispatch-table collide func, validate the resulting
// manifold, build/persist cached contacts, and fire added/persisted
// callbacks; afterwards sweep any contact not touched this step and fire
// removed. Returns, per body pair touched by a surviving manifold, the
// raw manifold list so step 6 can build constraints once islands exist.
func (w *World) narrowphase(pairs []BroadPair, listener Listener) []*Manifold {
	var manifolds []*Manifold
	for _, p := range pairs {
		a, b := w.bodies[p.A], w.bodies[p.B]
		if a == nil || b == nil || a.IsSensor() && b.IsSensor() {
			continue
		}
		if !shouldCollide(a, b) {
			continue
		}
		if !listener.OnBodyPairValidate(a.ID, b.ID) {
			continue
		}
		fn := collideTable[a.Shape.Type()][b.Shape.Type()]
		if fn == nil {
			continue
		}
		var m Manifold
		if !fn(a, b, &m) {
			continue
		}

		result := listener.OnContactValidate(a.ID, b.ID, m.Base, &m)
		if result == RejectContact || result == RejectAllContactsForPair {
			continue
		}

		ordA, ordB, swapped := orderBodies(w.bodies, m.BodyA, m.BodyB)
		oa, ob := w.bodies[ordA], w.bodies[ordB]
		_ = swapped
		cs := defaultContactSettings(combineMaterial(a.Material, b.Material))
		cached := false
		for i := range m.Points {
			subA, subB := m.Points[i].SubShapeIDA, m.Points[i].SubShapeIDB
			if swapped {
				subA, subB = subB, subA
			}
			key := ContactKey{BodyA: ordA, BodyB: ordB, SubShapeIDA: subA, SubShapeIDB: subB}
			entry, created := w.cache.getOrCreate(key, w.step)
			_ = entry
			if created {
				listener.OnContactAdded(oa.ID, ob.ID, &m, &cs)
			} else {
				listener.OnContactPersisted(oa.ID, ob.ID, &m, &cs)
			}
			cached = true
		}
		if !cached {
			continue
		}
		if cs.IsSensor {
			continue
		}
		if (a.IsDynamic() && a.IsSleeping()) || (b.IsDynamic() && b.IsSleeping()) {
			if a.IsDynamic() {
				a.setSleeping(false)
				a.sleepTimer = 0
			}
			if b.IsDynamic() {
				b.setSleeping(false)
				b.sleepTimer = 0
			}
		}
		mCopy := m
		manifolds = append(manifolds, &mCopy)
	}

	var removed []ContactKey
	w.cache.sweepStale(func(key ContactKey) { removed = append(removed, key) })
	for _, key := range removed {
		listener.OnContactRemoved(key)
	}
	return manifolds
}

// propagateWakeAndBuildIslands runs the constraint-wake propagation and
// island build the first half of step 6 calls for: a constraint with one
// awake dynamic endpoint wakes the other, then islands are built from
// both broadphase pairs and constraint pairs.
func (w *World) propagateWakeAndBuildIslands(pairs []BroadPair) []Island {
	changed := true
	for changed {
		changed = false
		for _, c := range w.constraints {
			if !c.Enabled() {
				continue
			}
			ba, bb := w.bodies[c.BodyA], w.bodies[c.BodyB]
			if ba == nil || bb == nil {
				continue
			}
			awakeA := ba.IsDynamic() && !ba.IsSleeping()
			awakeB := bb.IsDynamic() && !bb.IsSleeping()
			if awakeA && bb.IsDynamic() && bb.IsSleeping() {
				bb.setSleeping(false)
				bb.sleepTimer = 0
				changed = true
			}
			if awakeB && ba.IsDynamic() && ba.IsSleeping() {
				ba.setSleeping(false)
				ba.sleepTimer = 0
				changed = true
			}
		}
	}

	constraintPairs := make([][2]bodyIndex, 0, len(w.constraints))
	for _, c := range w.constraints {
		if c.Enabled() {
			constraintPairs = append(constraintPairs, c.bodyPair())
		}
	}
	return buildIslands(w.bodies, pairs, constraintPairs)
}

// solveVelocity is the rest of step 6: per island, build this step's
// contact constraints from the manifolds touching it, set up the user
// constraints sharing the island's solverBody map, then run
// solveIslandVelocity/solveIslandConstraints. manifolds not touching any
// awake island (both endpoints asleep or static) are skipped: a sleeping
// pair still gets its contact cache refreshed by narrowphase, it just
// never reaches the solver.
func (w *World) solveVelocity(islands []Island, manifolds []*Manifold, warmStartScale, dt float64) []islandContacts {
	out := make([]islandContacts, len(islands))
	for i, isl := range islands {
		bodyOf := map[bodyIndex]*solverBody{}
		for _, bi := range isl.Bodies {
			bodyOf[bi] = newSolverBody(w.bodies[bi])
		}
		for _, bi := range isl.staticTouch {
			bodyOf[bi] = newSolverBody(w.bodies[bi])
		}

		var contacts []*contactConstraint
		for _, m := range manifolds {
			if _, ok := bodyOf[m.BodyA]; !ok {
				continue
			}
			if _, ok := bodyOf[m.BodyB]; !ok {
				continue
			}
			contacts = append(contacts, buildContactConstraints(m, bodyOf, w.bodies, w.cache, w.Settings, dt, w.step)...)
		}

		var joints []*UserConstraint
		for _, c := range w.constraints {
			if !c.Enabled() {
				continue
			}
			if c.setup(bodyOf, w.bodies, w.Settings, dt) {
				if _, ok := bodyOf[c.BodyA]; ok {
					if _, ok := bodyOf[c.BodyB]; ok {
						joints = append(joints, c)
					}
				}
			}
		}

		solveIslandVelocity(contacts, w.Settings.NumVelocitySteps, warmStartScale)
		solveIslandConstraints(joints, w.Settings.NumVelocitySteps, warmStartScale)

		for _, sb := range bodyOf {
			sb.finish()
		}
		out[i] = islandContacts{bodyOf: bodyOf, contacts: contacts}
	}
	return out
}

// integratePositions is step 7: discrete bodies get the full transform
// integration; CCD candidates get only their orientation integrated here
// (lin.T.Integrate updates both fields at once, so the stale location is
// restored immediately after), their location left for step 8 to set.
func (w *World) integratePositions(dt float64, ccdList []*CCDBody) {
	ccd := make(map[bodyIndex]bool, len(ccdList))
	for _, cb := range ccdList {
		ccd[cb.Body] = true
	}
	for _, b := range w.bodies {
		if b == nil || !b.IsDynamic() || b.IsSleeping() {
			continue
		}
		if ccd[b.index] {
			savedLoc := *b.Pose.Loc
			next := lin.NewT()
			next.Integrate(&b.Pose, &b.LinearVel, &b.AngularVel, dt)
			b.Pose.Rot.Set(next.Rot)
			b.Pose.Loc.Set(&savedLoc)
			continue
		}
		next := lin.NewT()
		next.Integrate(&b.Pose, &b.LinearVel, &b.AngularVel, dt)
		b.Pose.Set(next)
	}
}

// fireCCDListeners reports every manifold the CCD pass actually built as
// an OnContactAdded/OnContactPersisted, matching the discrete path's
// contract that a manifold always gets a callback before next step's
// solve might warm-start from it. CCD contacts are one-shot (never
// warm-started, per solver.go), so every one is "added".
func (w *World) fireCCDListeners(manifolds []*Manifold, listener Listener) {
	for _, m := range manifolds {
		a, b := w.bodies[m.BodyA], w.bodies[m.BodyB]
		if a == nil || b == nil {
			continue
		}
		cs := defaultContactSettings(combineMaterial(a.Material, b.Material))
		listener.OnContactAdded(a.ID, b.ID, m, &cs)
	}
}

// finishPositionCorrection is step 10's first half: fold each island's
// accumulated pushVel/turnVel into the body's pose (pure translation by
// pushVel*dt, pure rotation by turnVel*dt, never touching LinearVel/
// AngularVel) and recompute the shape's Aabb for the broadphase refresh.
func (w *World) finishPositionCorrection(islands []islandContacts, dt float64) {
	for _, isl := range islands {
		for _, sb := range isl.bodyOf {
			if sb.pushVel == (lin.V3{}) && sb.turnVel == (lin.V3{}) {
				continue
			}
			b := sb.body
			next := lin.NewT()
			next.Integrate(&b.Pose, &sb.pushVel, &sb.turnVel, dt)
			b.Pose.Set(next)
		}
	}
}

// refreshBroadphase is step 10's second half: recompute every dynamic,
// awake body's tight Aabb from its (possibly just-corrected) pose and
// push it into the broadphase tree.
func (w *World) refreshBroadphase() {
	for _, b := range w.bodies {
		if b == nil || b.Shape == nil || !b.IsDynamic() || b.IsSleeping() {
			continue
		}
		var tight Abox
		b.Shape.Aabb(&b.Pose, &tight, 0)
		b.aabb = tight
		w.broadphase.Update(b.index, b.Layer, tight)
	}
}

// updateSleep is step 11: a dynamic island sleeps once every member has
// spent TimeBeforeSleep seconds with both linear and angular speed below
// threshold. Kinematic/static endpoints never gate or contribute to this.
func (w *World) updateSleep(islands []Island, dt float64) {
	if dt <= 0 {
		return
	}
	linSq := w.Settings.LinearSleepThreshold * w.Settings.LinearSleepThreshold
	angSq := w.Settings.AngularSleepThreshold * w.Settings.AngularSleepThreshold
	for _, isl := range islands {
		allSlow := true
		for _, bi := range isl.Bodies {
			b := w.bodies[bi]
			if b == nil {
				continue
			}
			if b.LinearVel.Dot(&b.LinearVel) > linSq || b.AngularVel.Dot(&b.AngularVel) > angSq {
				allSlow = false
				break
			}
		}
		if !allSlow {
			for _, bi := range isl.Bodies {
				if b := w.bodies[bi]; b != nil {
					b.sleepTimer = 0
				}
			}
			continue
		}
		minTimer := lin.Large
		for _, bi := range isl.Bodies {
			b := w.bodies[bi]
			if b == nil {
				continue
			}
			b.sleepTimer += dt
			if b.sleepTimer < minTimer {
				minTimer = b.sleepTimer
			}
		}
		if minTimer >= w.Settings.TimeBeforeSleep {
			for _, bi := range isl.Bodies {
				if b := w.bodies[bi]; b != nil {
					b.setSleeping(true)
					b.LinearVel = lin.V3{}
					b.AngularVel = lin.V3{}
				}
			}
		}
	}
}

// clearForces is step 12.
func (w *World) clearForces() {
	for _, b := range w.bodies {
		if b != nil && b.IsDynamic() {
			b.clearForces()
		}
	}
}
