// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package phy

import "github.com/google/uuid"

// BodyID is the externally-stable identity of a rigid body: callers hold
// onto a BodyID across body removal/recreation. It is distinct from the
// dense pool index the body currently occupies: that index drives solver
// and broadphase ordering and is reused once a body is removed, so it
// must never leak to callers as a long-lived handle.
type BodyID uuid.UUID

// ConstraintID is the externally-stable identity of a user constraint.
type ConstraintID uuid.UUID

// ShapeID is the externally-stable identity of a registered shape.
type ShapeID uuid.UUID

func newBodyID() BodyID             { return BodyID(uuid.New()) }
func newConstraintID() ConstraintID { return ConstraintID(uuid.New()) }
func newShapeID() ShapeID           { return ShapeID(uuid.New()) }

func (id BodyID) String() string       { return uuid.UUID(id).String() }
func (id ConstraintID) String() string { return uuid.UUID(id).String() }
func (id ShapeID) String() string      { return uuid.UUID(id).String() }

// bodyIndex is the dense, reused pool slot a body currently occupies.
// Sub-shape ids and cache keys are built from bodyIndex, never BodyID:
// pair ordering (bodyA.id < bodyB.id) refers to this ordering key.
type bodyIndex uint32

const invalidIndex = bodyIndex(^uint32(0))
