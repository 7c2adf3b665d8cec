// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

package phy

import "log"

// DebugLogger receives notice of geometric degeneracies that the engine
// recovers from locally: GJK non-convergence, zero-area clip faces,
// zero-length penetration axes. Never called for usage errors, which are
// returned directly instead.
type DebugLogger func(format string, args ...any)

// defaultDebugLogger routes to the standard logger (log.Printf).
func defaultDebugLogger(format string, args ...any) { log.Printf(format, args...) }

// activeDebugLogger is the world's current degeneracy sink. NewWorld
// installs WorldSettings.DebugLogger here when the caller supplies one;
// narrowphase code (clip.go) calls logDebug rather than the default
// directly so a world built with a custom logger gets every degeneracy
// notice, not just the ones raised after construction.
var activeDebugLogger DebugLogger = defaultDebugLogger

func logDebug(format string, args ...any) { activeDebugLogger(format, args...) }
