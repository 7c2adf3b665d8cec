// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package phy

import (
	"math"
	"testing"

	"github.com/gazed/physics/math/lin"
)

// Basic test to check that a sphere ends up resting on a slab, no
// restitution.
func TestSphereSettlesOnSlab(t *testing.T) {
	w := NewWorld(NewWorldSettings())

	slab := NewRigidBody()
	slab.Motion = Static
	slab.SetShape(NewBox(100, 1, 100), 0, false)
	slab.Pose.Loc.Set(&lin.V3{X: 0, Y: -1, Z: 0})
	w.CreateBody(slab)

	ball := NewRigidBody()
	ball.Pose.Loc.Set(&lin.V3{X: 0, Y: 15, Z: 0})
	ball.SetShape(NewSphere(1), 1, false)
	id := w.CreateBody(ball)

	for i := 0; i < 300; i++ {
		if err := UpdateWorld(w, nil, 1.0/60); err != nil {
			t.Fatalf("UpdateWorld: %v", err)
		}
	}

	got, _ := w.Body(id)
	if math.Abs(got.Pose.Loc.Y-1) > 0.05 {
		t.Errorf("ball should rest at y=1, got y=%.4f", got.Pose.Loc.Y)
	}
}

func TestStaticBodyNeverMoves(t *testing.T) {
	w := NewWorld(NewWorldSettings())
	slab := NewRigidBody()
	slab.Motion = Static
	slab.SetShape(NewBox(10, 1, 10), 0, false)
	id := w.CreateBody(slab)

	for i := 0; i < 60; i++ {
		if err := UpdateWorld(w, nil, 1.0/60); err != nil {
			t.Fatalf("UpdateWorld: %v", err)
		}
	}

	got, _ := w.Body(id)
	if !got.Pose.Loc.AeqZ() {
		x, y, z := got.Pose.Loc.GetS()
		t.Errorf("static body moved to %.4f %.4f %.4f", x, y, z)
	}
}

// CreateBody called while a step is in progress (the pending-commands
// path every Listener callback is required to use instead of mutating the
// world directly) must not grow the pool until ApplyPending runs.
func TestCreateBodyDuringStepIsDeferred(t *testing.T) {
	w := NewWorld(NewWorldSettings())
	before := len(w.Bodies())

	w.stepping = true
	w.CreateBody(NewRigidBody())
	w.stepping = false

	if len(w.Bodies()) != before {
		t.Fatalf("body should not be added while stepping, pool grew from %d to %d", before, len(w.Bodies()))
	}

	w.ApplyPending()
	if len(w.Bodies()) != before+1 {
		t.Errorf("expected the deferred body after ApplyPending, pool has %d bodies", len(w.Bodies()))
	}
}

func TestRemoveBodyDropsConstraintsTouchingIt(t *testing.T) {
	w := NewWorld(NewWorldSettings())
	a := NewRigidBody()
	a.SetShape(NewSphere(1), 1, false)
	idA := w.CreateBody(a)

	b := NewRigidBody()
	b.SetShape(NewSphere(1), 1, false)
	b.Pose.Loc.Set(&lin.V3{X: 3, Y: 0, Z: 0})
	idB := w.CreateBody(b)

	cid, err := w.CreatePointConstraint(idA, idB, lin.V3{}, lin.V3{}, Local)
	if err != nil {
		t.Fatalf("CreatePointConstraint: %v", err)
	}

	w.RemoveBody(idB)

	if err := UpdateWorld(w, nil, 1.0/60); err != nil {
		t.Fatalf("UpdateWorld: %v", err)
	}
	if _, ok := w.Body(idB); ok {
		t.Errorf("removed body %v still present", idB)
	}
	if _, ok := w.constraintIdx[cid]; ok {
		t.Errorf("constraint %v touching the removed body is still registered", cid)
	}
}

func TestNegativeTimestepRejected(t *testing.T) {
	w := NewWorld(NewWorldSettings())
	if err := UpdateWorld(w, nil, -1); err == nil {
		t.Errorf("expected ErrNegativeTimestep for a negative dt")
	}
}
