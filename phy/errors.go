// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package phy

import "errors"

// Usage errors. These are pre-condition failures: the caller asked for
// something the engine cannot do, as opposed to a geometric degeneracy
// encountered mid-step (which is handled locally, never returned as an
// error: see log.go).
var (
	ErrUnknownShape          = errors.New("phy: unknown shape variant")
	ErrDuplicateBodyID       = errors.New("phy: two dynamic bodies share the same id")
	ErrListenerMutation      = errors.New("phy: listener attempted to add or remove a body or constraint mid-step")
	ErrNegativeTimestep      = errors.New("phy: negative Δt")
	ErrNotUnitVector         = errors.New("phy: expected a unit-length vector")
	ErrBodyNotFound          = errors.New("phy: body id not found")
	ErrConstraintNotFound    = errors.New("phy: constraint id not found")
	ErrShapeNotFound         = errors.New("phy: shape id not found")
	ErrCyclicShape           = errors.New("phy: compound/transformed shape cycle")
	ErrStepInProgress        = errors.New("phy: UpdateWorld re-entered from a listener callback")
	ErrUnknownConstraintKind = errors.New("phy: unknown constraint kind")
)
