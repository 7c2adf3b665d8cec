// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package phy

import (
	"testing"

	"github.com/gazed/physics/math/lin"
)

// Pruning a manifold with <=4 points is a no-op.
func TestReduceManifoldNoOpUnderCap(t *testing.T) {
	m := &Manifold{Normal: lin.V3{X: 0, Y: 1, Z: 0}}
	pts := []lin.V3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 1}}
	for _, p := range pts {
		m.AddPoint(p, p, 0.1, 0, 0)
	}
	before := len(m.Points)
	m.reduce()
	if len(m.Points) != before {
		t.Errorf("reduce() changed a %d-point manifold, want no-op", before)
	}
}

// A square's four corners, plus points scattered inside it, reduce to
// exactly 4 points and keep the deepest corner.
func TestReduceManifoldKeepsAtMostFourPoints(t *testing.T) {
	m := &Manifold{Normal: lin.V3{X: 0, Y: 1, Z: 0}}
	corners := []lin.V3{
		{X: -1, Y: 0, Z: -1},
		{X: 1, Y: 0, Z: -1},
		{X: 1, Y: 0, Z: 1},
		{X: -1, Y: 0, Z: 1},
	}
	for i, c := range corners {
		depth := 0.1
		if i == 0 {
			depth = 0.5 // deepest corner, must survive reduction.
		}
		m.AddPoint(c, c, depth, 0, 0)
	}
	for i := 0; i < 10; i++ {
		p := lin.V3{X: 0.1 * float64(i%5), Y: 0, Z: 0.1 * float64(i%3)}
		m.AddPoint(p, p, 0.05, 0, 0)
	}

	m.reduce()

	if len(m.Points) > maxManifoldPoints {
		t.Fatalf("reduce() left %d points, want <= %d", len(m.Points), maxManifoldPoints)
	}
	foundDeepest := false
	for _, p := range m.Points {
		if p.Depth == 0.5 {
			foundDeepest = true
		}
	}
	if !foundDeepest {
		t.Errorf("reduce() dropped the deepest contact point")
	}
}

func TestManifoldAccumulatorMergesCompatibleNormals(t *testing.T) {
	acc := newManifoldAccumulator(0.99)
	a := &Manifold{Normal: lin.V3{X: 0, Y: 1, Z: 0}}
	a.AddPoint(lin.V3{X: 0, Y: 0, Z: 0}, lin.V3{X: 0, Y: 0, Z: 0}, 0.1, 0, 0)
	b := &Manifold{Normal: lin.V3{X: 0, Y: 1, Z: 0}}
	b.AddPoint(lin.V3{X: 1, Y: 0, Z: 0}, lin.V3{X: 1, Y: 0, Z: 0}, 0.1, 0, 0)

	acc.Add(a)
	acc.Add(b)
	finished := acc.Finish()

	if len(finished) != 1 {
		t.Fatalf("expected compatible-normal hits to merge into 1 manifold, got %d", len(finished))
	}
	if len(finished[0].Points) != 2 {
		t.Errorf("expected the merged manifold to carry both points, got %d", len(finished[0].Points))
	}
}

func TestManifoldAccumulatorKeepsIncompatibleNormalsSeparate(t *testing.T) {
	acc := newManifoldAccumulator(0.99)
	a := &Manifold{Normal: lin.V3{X: 0, Y: 1, Z: 0}}
	a.AddPoint(lin.V3{}, lin.V3{}, 0.1, 0, 0)
	b := &Manifold{Normal: lin.V3{X: 1, Y: 0, Z: 0}}
	b.AddPoint(lin.V3{}, lin.V3{}, 0.1, 0, 0)

	acc.Add(a)
	acc.Add(b)
	finished := acc.Finish()

	if len(finished) != 2 {
		t.Errorf("expected orthogonal-normal hits to stay separate, got %d manifolds", len(finished))
	}
}
