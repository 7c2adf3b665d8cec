// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package phy is a real-time 3D rigid-body physics core: broadphase pair
// generation, GJK/EPA/clipping narrowphase, a warm-started sequential-impulse
// solver organised by simulation islands, and a continuous-collision pipeline
// for fast bodies.
//
// The package is a library: it has no rendering, no windowing, no asset
// loading, and no wire protocol. Callers drive it with UpdateWorld(world,
// listener, dt) and read results back off the RigidBody pool between steps.
package phy
