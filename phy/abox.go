// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package phy

import "github.com/gazed/physics/math/lin"

// Abox is an axis aligned bounding box. Its primary purpose is to surround
// arbitrary shapes during broadphase collision detection.
//    Sx, Sy, Sz -- smallest vertex (minimum point)
//    Lx, Ly, Lz -- largest vertex (maximum point)
type Abox struct {
	Sx, Sy, Sz float64
	Lx, Ly, Lz float64
}

// Overlaps returns true if Abox a and b intersect. Returns false if a and b
// are disjoint or merely touching along a point, edge, or face.
func (a *Abox) Overlaps(b *Abox) bool {
	return a.Lx > b.Sx && a.Sx < b.Lx && a.Ly > b.Sy && a.Sy < b.Ly && a.Lz > b.Sz && a.Sz < b.Lz
}

// Set copies b into a and returns a.
func (a *Abox) Set(b *Abox) *Abox {
	*a = *b
	return a
}

// Expand grows a by margin on every side. Used by the broadphase to apply
// the per-frame speculative contact distance.
func (a *Abox) Expand(margin float64) *Abox {
	a.Sx, a.Sy, a.Sz = a.Sx-margin, a.Sy-margin, a.Sz-margin
	a.Lx, a.Ly, a.Lz = a.Lx+margin, a.Ly+margin, a.Lz+margin
	return a
}

// ExpandSwept grows a to also cover the box translated by (dx,dy,dz),
// i.e. the swept volume of a linear-cast motion over one step.
func (a *Abox) ExpandSwept(dx, dy, dz float64) *Abox {
	if dx < 0 {
		a.Sx += dx
	} else {
		a.Lx += dx
	}
	if dy < 0 {
		a.Sy += dy
	} else {
		a.Ly += dy
	}
	if dz < 0 {
		a.Sz += dz
	} else {
		a.Lz += dz
	}
	return a
}

// Contains returns true if b is fully enclosed by a. Used by the broadphase
// tree to decide whether a leaf's stored (margin-expanded) box still
// encloses its current exact box, or whether it must be re-inserted.
func (a *Abox) Contains(b *Abox) bool {
	return a.Sx <= b.Sx && a.Sy <= b.Sy && a.Sz <= b.Sz && a.Lx >= b.Lx && a.Ly >= b.Ly && a.Lz >= b.Lz
}

// Union updates a to be the smallest box containing both b and c.
func (a *Abox) Union(b, c *Abox) *Abox {
	a.Sx, a.Sy, a.Sz = min(b.Sx, c.Sx), min(b.Sy, c.Sy), min(b.Sz, c.Sz)
	a.Lx, a.Ly, a.Lz = max(b.Lx, c.Lx), max(b.Ly, c.Ly), max(b.Lz, c.Lz)
	return a
}

// SurfaceArea returns the box's surface area, the cost metric the
// broadphase tree balances on (lower total surface area ⇒ fewer false
// overlaps walked per query).
func (a *Abox) SurfaceArea() float64 {
	dx, dy, dz := a.Lx-a.Sx, a.Ly-a.Sy, a.Lz-a.Sz
	return 2 * (dx*dy + dy*dz + dz*dx)
}

// Center returns the midpoint of a, used to pick a tree insertion side.
func (a *Abox) Center() *lin.V3 {
	return lin.NewV3S((a.Sx+a.Lx)*0.5, (a.Sy+a.Ly)*0.5, (a.Sz+a.Lz)*0.5)
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
