// Copyright © 2022 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

// settings.go reduces WorldSettings' API footprint using functional
// options
// (http://dave.cheney.net/2014/10/17/functional-options-for-friendly-apis).
package phy

import "github.com/gazed/physics/math/lin"

// WorldSettings configures a World at creation time: gravity, narrowphase
// tolerances, solver iteration counts, CCD thresholds, and the broadphase
// layer/interaction-matrix setup. Populated by NewWorldSettings and a set
// of Option overrides, then consumed once by NewWorld.
type WorldSettings struct {
	Gravity        lin.V3
	GravityEnabled bool

	Narrowphase NarrowphaseTolerances

	NumVelocitySteps      int
	NumPositionSteps      int
	PenetrationSlop       float64
	Baumgarte             float64
	MinRestitutionVelocity float64

	LinearCastThreshold      float64
	LinearCastMaxPenetration float64

	LinearSleepThreshold  float64
	AngularSleepThreshold float64
	TimeBeforeSleep       float64

	DebugLogger DebugLogger // optional; defaultDebugLogger (stdlib log) if nil.

	layers        []BroadphaseLayer
	disabledPairs [][2]BroadphaseLayer // applied to the broadphase's interaction matrix at NewWorld time.
}

// settingsDefaults holds reasonable values so a world runs even if the
// caller overrides nothing.
var settingsDefaults = WorldSettings{
	Gravity:        lin.V3{X: 0, Y: -9.81, Z: 0},
	GravityEnabled: true,
	Narrowphase: NarrowphaseTolerances{
		SpeculativeContactDistance: 0.02,
		ManifoldTolerance:          0.002,
		NormalCosMaxDelta:          0.984807753, // cos(10deg)
	},
	NumVelocitySteps:         10,
	NumPositionSteps:         2,
	PenetrationSlop:          0.02,
	Baumgarte:                0.2,
	MinRestitutionVelocity:   1.0,
	LinearCastThreshold:      0.75,
	LinearCastMaxPenetration: 0.25,
	LinearSleepThreshold:     0.05,
	AngularSleepThreshold:    0.087, // ~5 degrees/s
	TimeBeforeSleep:          0.5,
}

// Option overrides a WorldSettings field. For use in NewWorldSettings().
//
//	settings := phy.NewWorldSettings(
//	    phy.Gravity(0, -20, 0),
//	    phy.SolverIterations(8, 2),
//	)
type Option func(*WorldSettings)

// NewWorldSettings builds a WorldSettings from settingsDefaults plus any
// number of Option overrides, applied in order.
func NewWorldSettings(opts ...Option) *WorldSettings {
	s := settingsDefaults
	for _, opt := range opts {
		opt(&s)
	}
	return &s
}

// Gravity overrides the world's gravity vector.
func Gravity(x, y, z float64) Option {
	return func(s *WorldSettings) { s.Gravity = lin.V3{X: x, Y: y, Z: z} }
}

// GravityOff disables gravitational acceleration entirely; bodies still
// respond to forces, impulses, and constraints.
func GravityOff() Option {
	return func(s *WorldSettings) { s.GravityEnabled = false }
}

// SolverIterations overrides the per-island Gauss-Seidel pass counts.
func SolverIterations(velocitySteps, positionSteps int) Option {
	return func(s *WorldSettings) {
		if velocitySteps > 0 {
			s.NumVelocitySteps = velocitySteps
		}
		if positionSteps > 0 {
			s.NumPositionSteps = positionSteps
		}
	}
}

// PenetrationSlop overrides the allowed resting penetration before
// Baumgarte bias kicks in.
func PenetrationSlop(slop float64) Option {
	return func(s *WorldSettings) { s.PenetrationSlop = slop }
}

// NarrowphaseTolerance overrides the speculative-contact, manifold, and
// multi-manifold-merge tolerances.
func NarrowphaseTolerance(t NarrowphaseTolerances) Option {
	return func(s *WorldSettings) { s.Narrowphase = t }
}

// SleepThresholds overrides the linear/angular speed thresholds and the
// time a body must stay below both before an island is put to sleep.
func SleepThresholds(linear, angular, seconds float64) Option {
	return func(s *WorldSettings) {
		s.LinearSleepThreshold = linear
		s.AngularSleepThreshold = angular
		s.TimeBeforeSleep = seconds
	}
}

// CCDThresholds overrides the linear-cast activation threshold (as a
// multiple of the shape's inner radius) and the accepted penetration
// slop at time-of-impact.
func CCDThresholds(castThreshold, maxPenetration float64) Option {
	return func(s *WorldSettings) {
		s.LinearCastThreshold = castThreshold
		s.LinearCastMaxPenetration = maxPenetration
	}
}

// DebugLog overrides where geometric-degeneracy notices (EPA
// non-convergence and similar recoverable narrowphase faults) are sent;
// the default routes them to the standard logger.
func DebugLog(fn DebugLogger) Option {
	return func(s *WorldSettings) { s.DebugLogger = fn }
}

// AddBroadphaseLayer reserves a new broadphase layer, returning its id.
func AddBroadphaseLayer(s *WorldSettings) BroadphaseLayer {
	layer := BroadphaseLayer(len(s.layers))
	s.layers = append(s.layers, layer)
	return layer
}

// DisableCollision marks two broadphase layers as never generating
// pairs against each other (e.g. a debris layer that should not collide
// with itself). Every layer interacts with every other by default, so
// there is no matching EnableCollision: re-enabling after a
// DisableCollision call is done by constructing the settings again.
func DisableCollision(s *WorldSettings, a, b BroadphaseLayer) {
	s.disabledPairs = append(s.disabledPairs, [2]BroadphaseLayer{a, b})
}
