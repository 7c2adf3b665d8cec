// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package phy

import (
	"math"
	"testing"

	"github.com/gazed/physics/math/lin"
)

func newStaticSphereWorld(t *testing.T, radius float64, pos lin.V3) (*World, BodyID) {
	t.Helper()
	w := NewWorld(NewWorldSettings(GravityOff()))
	b := NewRigidBody()
	b.Motion = Static
	b.Pose.Loc.Set(&pos)
	b.SetShape(NewSphere(radius), 0, false)
	return w, w.CreateBody(b)
}

func TestCastRayHitsSphere(t *testing.T) {
	w, id := newStaticSphereWorld(t, 1, lin.V3{X: 20, Y: 0, Z: 0})

	hits := NewClosestRayCastHitCollector()
	CastRay(w, hits, lin.V3{X: 0, Y: 0, Z: 0}, lin.V3{X: 1, Y: 0, Z: 0}, 100, nil)

	if !hits.Found {
		t.Fatalf("expected a hit against sphere %s", id)
	}
	if got, want := hits.Hit.Body, id; got != want {
		t.Errorf("hit body = %v, want %v", got, want)
	}
	wantFraction := 19.0 / 100.0
	if math.Abs(hits.Hit.Fraction-wantFraction) > 1e-6 {
		t.Errorf("hit fraction = %v, want %v", hits.Hit.Fraction, wantFraction)
	}
}

func TestCastRayMissesWhenOffAxis(t *testing.T) {
	w, _ := newStaticSphereWorld(t, 1, lin.V3{X: 20, Y: 5, Z: 0})

	hits := NewClosestRayCastHitCollector()
	CastRay(w, hits, lin.V3{X: 0, Y: 0, Z: 0}, lin.V3{X: 1, Y: 0, Z: 0}, 100, nil)

	if hits.Found {
		t.Errorf("expected no hit, got one at fraction %v", hits.Hit.Fraction)
	}
}

func TestCastRayFilterByMask(t *testing.T) {
	w := NewWorld(NewWorldSettings(GravityOff()))
	b := NewRigidBody()
	b.Motion = Static
	b.SetShape(NewSphere(1), 0, false)
	b.Pose.Loc.Set(&lin.V3{X: 10, Y: 0, Z: 0})
	b.Group = 0x2
	w.CreateBody(b)

	hits := NewAnyRayCastHitCollector()
	filter := &QueryFilter{Mask: 0x1} // does not include group 0x2.
	CastRay(w, hits, lin.V3{}, lin.V3{X: 1, Y: 0, Z: 0}, 100, filter)

	if hits.Found {
		t.Errorf("expected filtered body to be excluded, but got a hit")
	}
}

func TestCollidePointInsideAndOutsideSphere(t *testing.T) {
	w, id := newStaticSphereWorld(t, 2, lin.V3{X: 0, Y: 0, Z: 0})

	inside := NewAllCollidePointHitsCollector()
	CollidePoint(w, inside, lin.V3{X: 1, Y: 0, Z: 0}, nil)
	if len(inside.Hits) != 1 || inside.Hits[0].Body != id {
		t.Errorf("expected one hit on %v inside the sphere, got %+v", id, inside.Hits)
	}

	outside := NewAllCollidePointHitsCollector()
	CollidePoint(w, outside, lin.V3{X: 10, Y: 0, Z: 0}, nil)
	if len(outside.Hits) != 0 {
		t.Errorf("expected no hits outside the sphere, got %+v", outside.Hits)
	}
}

func TestCastShapeSweepsIntoStaticBox(t *testing.T) {
	w := NewWorld(NewWorldSettings(GravityOff()))
	ground := NewRigidBody()
	ground.Motion = Static
	ground.SetShape(NewBox(5, 0.5, 5), 0, false)
	w.CreateBody(ground)

	moving := NewSphere(0.5)
	hits := NewClosestShapeCastHitCollector()
	start := lin.V3{X: 0, Y: 5, Z: 0}
	delta := lin.V3{X: 0, Y: -10, Z: 0}
	CastShape(w, hits, moving, start, *lin.NewQI(), delta, nil)

	if !hits.Found {
		t.Fatal("expected the swept sphere to hit the ground box")
	}
	// the ground's top face is at y=0.5; the sphere (radius 0.5) should
	// first touch it when its centre reaches y=1.0, i.e. fraction 0.4 of
	// the 10-unit downward sweep from y=5.
	if want := 0.4; math.Abs(hits.Hit.Fraction-want) > 0.05 {
		t.Errorf("hit fraction = %v, want ~%v", hits.Hit.Fraction, want)
	}
}

func TestCollideShapeFindsOverlap(t *testing.T) {
	w, id := newStaticSphereWorld(t, 1, lin.V3{X: 0, Y: 0, Z: 0})

	overlapping := NewAllCollideShapeHitsCollector()
	CollideShape(w, overlapping, NewSphere(1), lin.V3{X: 1.5, Y: 0, Z: 0}, *lin.NewQI(), nil)
	if len(overlapping.Hits) != 1 || overlapping.Hits[0].Body != id {
		t.Fatalf("expected one overlapping hit on %v, got %+v", id, overlapping.Hits)
	}
	if overlapping.Hits[0].Manifold == nil || len(overlapping.Hits[0].Manifold.Points) == 0 {
		t.Errorf("expected a manifold with at least one contact point")
	}

	separate := NewAllCollideShapeHitsCollector()
	CollideShape(w, separate, NewSphere(1), lin.V3{X: 10, Y: 0, Z: 0}, *lin.NewQI(), nil)
	if len(separate.Hits) != 0 {
		t.Errorf("expected no overlap far from the sphere, got %+v", separate.Hits)
	}
}
