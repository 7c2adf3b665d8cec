// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// mass.go computes principal-axis inverse inertia for shapes whose raw
// inertia tensor is not already diagonal (convex hulls). Sphere and box
// stay closed-form (shape.go) since theirs is diagonal by construction.
// Convex hulls need an eigendecomposition of the (generally dense)
// vertex-mass inertia tensor; gonum's symmetric eigendecomposition
// supplies it.
package phy

import (
	"github.com/gazed/physics/math/lin"
	"gonum.org/v1/gonum/mat"
)

// diagonalizeInertia computes a vertex-mass approximation of the inertia
// tensor about centre (mass split evenly across vertices, matching the
// convex-hull inertia approximation fallback for
// non-sphere shapes), then symmetric-eigendecomposes it to report the
// inverse inertia along the hull's own principal axes.
//
// This drops the (generally small) off-diagonal coupling a caller would
// see if they kept the raw tensor in world axes: acceptable for a rigid
// body whose orientation is tracked by a quaternion and whose inertia is
// always re-expressed in world space via R·Iinv·Rᵀ before use (body.go).
func diagonalizeInertia(verts []lin.V3, centre lin.V3, mass float64) *lin.V3 {
	n := len(verts)
	if n == 0 || mass <= 0 {
		return lin.NewV3()
	}
	perVertexMass := mass / float64(n)

	var ixx, iyy, izz, ixy, ixz, iyz float64
	for i := range verts {
		x, y, z := verts[i].X-centre.X, verts[i].Y-centre.Y, verts[i].Z-centre.Z
		ixx += perVertexMass * (y*y + z*z)
		iyy += perVertexMass * (x*x + z*z)
		izz += perVertexMass * (x*x + y*y)
		ixy -= perVertexMass * x * y
		ixz -= perVertexMass * x * z
		iyz -= perVertexMass * y * z
	}

	tensor := mat.NewSymDense(3, []float64{
		ixx, ixy, ixz,
		ixy, iyy, iyz,
		ixz, iyz, izz,
	})
	var eig mat.EigenSym
	if !eig.Factorize(tensor, false) {
		// degenerate tensor (e.g. all vertices coincide): fall back to a
		// tiny isotropic inertia so the body is never infinitely easy to spin.
		const eps = 1e-6
		return lin.NewV3S(1/eps, 1/eps, 1/eps)
	}
	values := eig.Values(nil)
	inv := lin.NewV3()
	comps := []*float64{&inv.X, &inv.Y, &inv.Z}
	for i := 0; i < 3 && i < len(values); i++ {
		if values[i] > lin.Epsilon {
			*comps[i] = 1 / values[i]
		}
	}
	return inv
}
