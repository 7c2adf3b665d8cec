// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package phy

import (
	"math"
	"testing"

	"github.com/gazed/physics/math/lin"
)

// A dynamic body point-constrained to a fixed anchor should settle with
// its anchor point pinned at the origin despite gravity, rather than
// falling away from it.
func TestPointConstraintHoldsBodyAtAnchor(t *testing.T) {
	w := NewWorld(NewWorldSettings())

	anchor := NewRigidBody()
	anchor.Motion = Static
	anchor.SetShape(NewSphere(0.1), 0, false)
	anchorID := w.CreateBody(anchor)

	ball := NewRigidBody()
	ball.Pose.Loc.Set(&lin.V3{X: 0, Y: -2, Z: 0})
	ball.SetShape(NewSphere(0.3), 1, false)
	ballID := w.CreateBody(ball)

	if _, err := w.CreatePointConstraint(anchorID, ballID, lin.V3{}, lin.V3{X: 0, Y: 2, Z: 0}, Local); err != nil {
		t.Fatalf("CreatePointConstraint: %v", err)
	}

	for i := 0; i < 180; i++ {
		if err := UpdateWorld(w, nil, 1.0/60); err != nil {
			t.Fatalf("UpdateWorld: %v", err)
		}
	}

	got, _ := w.Body(ballID)
	// the ball's local anchor point (0,2,0) should still coincide with the
	// world-fixed anchor at the origin once the constraint has settled.
	wx, wy, wz := got.Pose.AppS(0, 2, 0)
	if math.Sqrt(wx*wx+wy*wy+wz*wz) > 0.1 {
		t.Errorf("constrained anchor point drifted to (%.3f, %.3f, %.3f), want near origin", wx, wy, wz)
	}
}

func TestRemoveConstraintStopsConstrainingBody(t *testing.T) {
	w := NewWorld(NewWorldSettings())

	anchor := NewRigidBody()
	anchor.Motion = Static
	anchorID := w.CreateBody(anchor)

	ball := NewRigidBody()
	ball.SetShape(NewSphere(0.3), 1, false)
	ballID := w.CreateBody(ball)

	cid, err := w.CreatePointConstraint(anchorID, ballID, lin.V3{}, lin.V3{}, Local)
	if err != nil {
		t.Fatalf("CreatePointConstraint: %v", err)
	}
	w.RemoveConstraint(cid)

	if err := UpdateWorld(w, nil, 1.0/60); err != nil {
		t.Fatalf("UpdateWorld: %v", err)
	}
	got, _ := w.Body(ballID)
	if got.Pose.Loc.Y >= 0 {
		t.Errorf("ball should fall freely once its constraint is removed, y=%.4f", got.Pose.Loc.Y)
	}
}

func TestCreateConstraintUnknownBodyReturnsError(t *testing.T) {
	w := NewWorld(NewWorldSettings())
	ball := NewRigidBody()
	ball.SetShape(NewSphere(0.3), 1, false)
	id := w.CreateBody(ball)

	if _, err := w.CreatePointConstraint(id, BodyID{}, lin.V3{}, lin.V3{}, Local); err == nil {
		t.Errorf("expected an error constraining against an unknown body")
	}
}
