// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// listener.go is the Listener interface UpdateWorld invokes mid-step,
// plus the mutable per-contact settings those callbacks may adjust.
package phy

import "github.com/gazed/physics/math/lin"

// ValidateResult is onContactValidate's return value: how much of the
// remaining candidate hit set for a body pair to keep processing.
type ValidateResult int

const (
	AcceptContact ValidateResult = iota
	AcceptAllContactsForPair
	RejectContact
	RejectAllContactsForPair
)

// ContactSettings is handed to onContactAdded/onContactPersisted and
// read back afterwards: callbacks may override the combined
// friction/restitution, scale the effective mass/inertia of either
// side (0 disables that axis for this contact only), or mark the pair
// a sensor (no impulse response, added/persisted/removed callbacks
// still fire).
type ContactSettings struct {
	Friction, Restitution   float64
	InvMassScaleA, InvMassScaleB float64
	InvInertiaScaleA, InvInertiaScaleB float64
	IsSensor bool
}

func defaultContactSettings(mat Material) ContactSettings {
	return ContactSettings{
		Friction: mat.Friction, Restitution: mat.Restitution,
		InvMassScaleA: 1, InvMassScaleB: 1,
		InvInertiaScaleA: 1, InvInertiaScaleB: 1,
	}
}

// Listener receives every callback UpdateWorld fires mid-step. A nil
// Listener behaves as BaseListener: accept everything, change nothing.
// Embedding BaseListener lets an implementation override only the hooks
// it needs; OnBodyPairValidate's zero value (false) drops the pair.
// Bodies and constraints created or removed from within these methods are
// not applied mid-step: World queues them, and ApplyPending applies them
// after UpdateWorld returns.
type Listener interface {
	// OnBodyPairValidate is called once per broadphase-surfaced pair
	// before narrowphase runs. Returning false drops the pair for this
	// step without ever building a manifold.
	OnBodyPairValidate(a, b BodyID) bool

	// OnContactValidate is called once per manifold before it is turned
	// into solver constraints.
	OnContactValidate(a, b BodyID, baseOffset lin.V3, manifold *Manifold) ValidateResult

	// OnContactAdded fires the first step a cached contact exists;
	// OnContactPersisted fires every step after. settings starts at the
	// bodies' combined material and may be mutated in place.
	OnContactAdded(a, b BodyID, manifold *Manifold, settings *ContactSettings)
	OnContactPersisted(a, b BodyID, manifold *Manifold, settings *ContactSettings)

	// OnContactRemoved fires once a cached contact's processed bit goes
	// unset for a full step; bodies may already be gone, so only ids are
	// given.
	OnContactRemoved(key ContactKey)
}

// BaseListener implements Listener with every hook a no-op / accepting
// default, so callers only override the hooks they need.
type BaseListener struct{}

func (BaseListener) OnBodyPairValidate(a, b BodyID) bool { return true }
func (BaseListener) OnContactValidate(a, b BodyID, baseOffset lin.V3, manifold *Manifold) ValidateResult {
	return AcceptContact
}
func (BaseListener) OnContactAdded(a, b BodyID, manifold *Manifold, settings *ContactSettings)     {}
func (BaseListener) OnContactPersisted(a, b BodyID, manifold *Manifold, settings *ContactSettings) {}
func (BaseListener) OnContactRemoved(key ContactKey)                                               {}
