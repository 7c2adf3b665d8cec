// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package phy

import (
	"math"

	"github.com/gazed/physics/math/lin"
)

// ShapeType tags a Shape's variant. The narrowphase dispatches on the pair
// (typeA, typeB) via a 2-D table (collideTable) rather than virtual calls,
// keeping the inner loop monomorphic.
type ShapeType int

// Built-in shape variants. User variants register above NumBuiltinShapes
// via RegisterShape.
const (
	SphereShape ShapeType = iota
	BoxShape
	CapsuleShape
	CylinderShape
	ConvexHullShape
	TriangleMeshShape
	CompoundShape
	ScaledShape
	TransformedShape
	EmptyShape
	PlaneShape // non-volume, ray/point queries only
	NumBuiltinShapes
)

// defaultConvexRadius is the fixed convex radius used by the box,
// cylinder and convex-hull exclude-mode supports; sphere and capsule
// exclude their own radius instead.
// Treated as an engine-wide invariant rather than a per-shape setting.
const defaultConvexRadius = 0.05

// Shape is an immutable collision primitive in local space, centred at
// its own centre of mass is NOT assumed: CentreOfMass reports the
// offset explicitly so compound children can be off-centre.
//
// Shapes do not allocate during collision queries: Aabb/Inertia/CastRay
// etc. all write into a caller-supplied output parameter.
type Shape interface {
	Type() ShapeType
	Volume() float64
	InnerRadius() float64 // radius of the largest sphere fully inside the shape; CCD threshold basis.
	CentreOfMass() *lin.V3

	// Aabb updates and returns ab, the local-space axis aligned bounding
	// box of the shape expanded by transform and margin.
	Aabb(transform *lin.T, ab *Abox, margin float64) *Abox

	// ComputeMassProperties returns the mass (massOrDensity × Volume when
	// byDensity is true, massOrDensity itself otherwise) and
	// the local-space inverse inertia tensor diagonal (principal axes).
	ComputeMassProperties(massOrDensity float64, byDensity bool) (mass float64, invInertia *lin.V3)

	// CastRay intersects a local-space ray (origin, direction, maxFraction)
	// against the shape, returning the hit and the fraction along
	// direction*maxFraction at which it occurred.
	CastRay(origin, direction *lin.V3, maxFraction float64) (hit bool, fraction float64, subShapeID uint32)

	// CollidePoint reports whether the local-space point lies inside the shape.
	CollidePoint(point *lin.V3) bool

	// GetSurfaceNormal returns the outward local-space normal at worldPoint
	// (already shape-local) near subShapeID.
	GetSurfaceNormal(subShapeID uint32, localPoint *lin.V3) *lin.V3

	// GetSupportingFace returns the face (if any, ok=false for curved
	// shapes like sphere/capsule caps) most aligned with direction, used
	// by the clipping stage to build a contact manifold.
	GetSupportingFace(direction *lin.V3) (face *Face, ok bool)

	// CreateSupportPool returns an allocation-free Support for GJK/EPA in
	// the given mode.
	CreateSupportPool(mode SupportMode) Support
}

// Face is a planar supporting face sampled from a shape in the direction
// of a recovered penetration axis, used by the clipping stage.
type Face struct {
	Vertices []lin.V3 // ordered boundary loop, local space
	Normal   lin.V3
}

// shapeRegistry holds per-ShapeType metadata needed for dispatch and for
// the user-registration hook.
type shapeRegistry struct {
	names []string
	next  ShapeType
}

var registry = &shapeRegistry{
	names: []string{
		"sphere", "box", "capsule", "cylinder", "convexHull",
		"triangleMesh", "compound", "scaled", "transformed", "empty", "plane",
	},
	next: NumBuiltinShapes,
}

// RegisterShape reserves a new ShapeType for a user-defined shape variant
// and records its name for diagnostics. Callers must also register
// collision routines for the new type via RegisterCollideFn /
// ReversedCollideShapeVsShape before creating a world that uses it.
func RegisterShape(name string) ShapeType {
	t := registry.next
	registry.names = append(registry.names, name)
	registry.next++
	growCollideTable(int(registry.next))
	return t
}

func (t ShapeType) String() string {
	if int(t) < len(registry.names) {
		return registry.names[t]
	}
	return "unknown"
}

// ============================================================================
// sphere

type sphereShape struct {
	radius float64
}

// NewSphere creates a sphere shape of the given radius.
func NewSphere(radius float64) Shape { return &sphereShape{radius: absf(radius)} }

func (s *sphereShape) Type() ShapeType        { return SphereShape }
func (s *sphereShape) Volume() float64        { return (4.0 / 3.0) * math.Pi * s.radius * s.radius * s.radius }
func (s *sphereShape) InnerRadius() float64   { return s.radius }
func (s *sphereShape) CentreOfMass() *lin.V3  { return lin.NewV3() }

func (s *sphereShape) Aabb(t *lin.T, ab *Abox, margin float64) *Abox {
	r := s.radius + margin
	ab.Sx, ab.Sy, ab.Sz = t.Loc.X-r, t.Loc.Y-r, t.Loc.Z-r
	ab.Lx, ab.Ly, ab.Lz = t.Loc.X+r, t.Loc.Y+r, t.Loc.Z+r
	return ab
}

func (s *sphereShape) ComputeMassProperties(m float64, byDensity bool) (float64, *lin.V3) {
	mass := m
	if byDensity {
		mass = m * s.Volume()
	}
	elem := 0.4 * mass * s.radius * s.radius
	if elem <= lin.Epsilon {
		return mass, lin.NewV3()
	}
	return mass, lin.NewV3S(1/elem, 1/elem, 1/elem)
}

func (s *sphereShape) CastRay(o, d *lin.V3, maxFraction float64) (bool, float64, uint32) {
	// quadratic: |o + t*d|^2 = r^2
	b := o.Dot(d)
	c := o.Dot(o) - s.radius*s.radius
	disc := b*b - c
	if disc < 0 {
		return false, 0, 0
	}
	t := -b - sqrt(disc)
	if t < 0 {
		t = -b + sqrt(disc)
	}
	if t < 0 || t > maxFraction {
		return false, 0, 0
	}
	return true, t, 0
}

func (s *sphereShape) CollidePoint(p *lin.V3) bool { return p.Dot(p) <= s.radius*s.radius }

func (s *sphereShape) GetSurfaceNormal(sub uint32, p *lin.V3) *lin.V3 {
	n := lin.NewV3S(p.GetS())
	return n.Unit()
}

func (s *sphereShape) GetSupportingFace(dir *lin.V3) (*Face, bool) { return nil, false }

func (s *sphereShape) CreateSupportPool(mode SupportMode) Support {
	return newSphereSupport(s.radius, mode)
}

// ============================================================================
// box

type boxShape struct {
	halfExtent lin.V3
}

// NewBox creates a box shape from half-extents. Negative values are
// made positive.
func NewBox(hx, hy, hz float64) Shape {
	return &boxShape{halfExtent: lin.V3{X: absf(hx), Y: absf(hy), Z: absf(hz)}}
}

func (b *boxShape) Type() ShapeType       { return BoxShape }
func (b *boxShape) Volume() float64       { return 8 * b.halfExtent.X * b.halfExtent.Y * b.halfExtent.Z }
func (b *boxShape) InnerRadius() float64  { return minf(b.halfExtent.X, minf(b.halfExtent.Y, b.halfExtent.Z)) }
func (b *boxShape) CentreOfMass() *lin.V3 { return lin.NewV3() }

func (b *boxShape) Aabb(t *lin.T, ab *Abox, margin float64) *Abox {
	xx, xy, xz := lin.MultSQ(1, 0, 0, t.Rot)
	yx, yy, yz := lin.MultSQ(0, 1, 0, t.Rot)
	zx, zy, zz := lin.MultSQ(0, 0, 1, t.Rot)
	xx, xy, xz = absf(xx), absf(xy), absf(xz)
	yx, yy, yz = absf(yx), absf(yy), absf(yz)
	zx, zy, zz = absf(zx), absf(zy), absf(zz)
	hmx, hmy, hmz := b.halfExtent.X+margin, b.halfExtent.Y+margin, b.halfExtent.Z+margin
	ex := hmx*xx + hmy*xy + hmz*xz
	ey := hmx*yx + hmy*yy + hmz*yz
	ez := hmx*zx + hmy*zy + hmz*zz
	ab.Sx, ab.Sy, ab.Sz = t.Loc.X-ex, t.Loc.Y-ey, t.Loc.Z-ez
	ab.Lx, ab.Ly, ab.Lz = t.Loc.X+ex, t.Loc.Y+ey, t.Loc.Z+ez
	return ab
}

func (b *boxShape) ComputeMassProperties(m float64, byDensity bool) (float64, *lin.V3) {
	mass := m
	if byDensity {
		mass = m * b.Volume()
	}
	lx2 := 4.0 * b.halfExtent.X * b.halfExtent.X
	ly2 := 4.0 * b.halfExtent.Y * b.halfExtent.Y
	lz2 := 4.0 * b.halfExtent.Z * b.halfExtent.Z
	ix := mass / 12.0 * (ly2 + lz2)
	iy := mass / 12.0 * (lx2 + lz2)
	iz := mass / 12.0 * (lx2 + ly2)
	inv := lin.NewV3()
	if ix > lin.Epsilon {
		inv.X = 1 / ix
	}
	if iy > lin.Epsilon {
		inv.Y = 1 / iy
	}
	if iz > lin.Epsilon {
		inv.Z = 1 / iz
	}
	return mass, inv
}

func (b *boxShape) CastRay(o, d *lin.V3, maxFraction float64) (bool, float64, uint32) {
	tmin, tmax := 0.0, maxFraction
	ox, oy, oz := o.GetS()
	dx, dy, dz := d.GetS()
	for axis := 0; axis < 3; axis++ {
		var oc, dc, h float64
		switch axis {
		case 0:
			oc, dc, h = ox, dx, b.halfExtent.X
		case 1:
			oc, dc, h = oy, dy, b.halfExtent.Y
		default:
			oc, dc, h = oz, dz, b.halfExtent.Z
		}
		if absf(dc) < lin.Epsilon {
			if oc < -h || oc > h {
				return false, 0, 0
			}
			continue
		}
		inv := 1 / dc
		t1, t2 := (-h-oc)*inv, (h-oc)*inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = maxf(tmin, t1)
		tmax = minf(tmax, t2)
		if tmin > tmax {
			return false, 0, 0
		}
	}
	return true, tmin, 0
}

func (b *boxShape) CollidePoint(p *lin.V3) bool {
	return absf(p.X) <= b.halfExtent.X && absf(p.Y) <= b.halfExtent.Y && absf(p.Z) <= b.halfExtent.Z
}

func (b *boxShape) GetSurfaceNormal(sub uint32, p *lin.V3) *lin.V3 {
	// pick the face whose plane the point is closest to.
	dx := b.halfExtent.X - absf(p.X)
	dy := b.halfExtent.Y - absf(p.Y)
	dz := b.halfExtent.Z - absf(p.Z)
	switch {
	case dx <= dy && dx <= dz:
		return lin.NewV3S(signf(p.X), 0, 0)
	case dy <= dx && dy <= dz:
		return lin.NewV3S(0, signf(p.Y), 0)
	default:
		return lin.NewV3S(0, 0, signf(p.Z))
	}
}

func (b *boxShape) GetSupportingFace(dir *lin.V3) (*Face, bool) {
	nx, ny, nz := signf(dir.X), signf(dir.Y), signf(dir.Z)
	ax, ay, az := absf(dir.X), absf(dir.Y), absf(dir.Z)
	h := b.halfExtent
	var verts []lin.V3
	var normal lin.V3
	switch {
	case ax >= ay && ax >= az:
		normal = lin.V3{X: nx}
		verts = []lin.V3{
			{X: nx * h.X, Y: -h.Y, Z: -h.Z}, {X: nx * h.X, Y: h.Y, Z: -h.Z},
			{X: nx * h.X, Y: h.Y, Z: h.Z}, {X: nx * h.X, Y: -h.Y, Z: h.Z},
		}
	case ay >= ax && ay >= az:
		normal = lin.V3{Y: ny}
		verts = []lin.V3{
			{X: -h.X, Y: ny * h.Y, Z: -h.Z}, {X: -h.X, Y: ny * h.Y, Z: h.Z},
			{X: h.X, Y: ny * h.Y, Z: h.Z}, {X: h.X, Y: ny * h.Y, Z: -h.Z},
		}
	default:
		normal = lin.V3{Z: nz}
		verts = []lin.V3{
			{X: -h.X, Y: -h.Y, Z: nz * h.Z}, {X: h.X, Y: -h.Y, Z: nz * h.Z},
			{X: h.X, Y: h.Y, Z: nz * h.Z}, {X: -h.X, Y: h.Y, Z: nz * h.Z},
		}
	}
	return &Face{Vertices: verts, Normal: normal}, true
}

func (b *boxShape) CreateSupportPool(mode SupportMode) Support {
	return newBoxSupport(b.halfExtent, mode)
}

// ============================================================================
// capsule (segment of length 2*halfHeight along local Y, capped with radius r)

type capsuleShape struct {
	halfHeight, radius float64
}

// NewCapsule creates a capsule shape: a cylinder of the given half-height
// capped by hemispheres of the given radius, axis along local Y.
func NewCapsule(halfHeight, radius float64) Shape {
	return &capsuleShape{halfHeight: absf(halfHeight), radius: absf(radius)}
}

func (c *capsuleShape) Type() ShapeType       { return CapsuleShape }
func (c *capsuleShape) Volume() float64 {
	cyl := math.Pi * c.radius * c.radius * (2 * c.halfHeight)
	caps := (4.0 / 3.0) * math.Pi * c.radius * c.radius * c.radius
	return cyl + caps
}
func (c *capsuleShape) InnerRadius() float64  { return c.radius }
func (c *capsuleShape) CentreOfMass() *lin.V3 { return lin.NewV3() }

func (c *capsuleShape) Aabb(t *lin.T, ab *Abox, margin float64) *Abox {
	// local extent is an axis-aligned box (±radius, ±(halfHeight+radius), ±radius)
	// rotated into world space the same way boxShape does.
	hx, hy, hz := c.radius, c.halfHeight+c.radius, c.radius
	xx, xy, xz := lin.MultSQ(1, 0, 0, t.Rot)
	yx, yy, yz := lin.MultSQ(0, 1, 0, t.Rot)
	zx, zy, zz := lin.MultSQ(0, 0, 1, t.Rot)
	ex := hx*absf(xx) + hy*absf(xy) + hz*absf(xz) + margin
	ey := hx*absf(yx) + hy*absf(yy) + hz*absf(yz) + margin
	ez := hx*absf(zx) + hy*absf(zy) + hz*absf(zz) + margin
	ab.Sx, ab.Sy, ab.Sz = t.Loc.X-ex, t.Loc.Y-ey, t.Loc.Z-ez
	ab.Lx, ab.Ly, ab.Lz = t.Loc.X+ex, t.Loc.Y+ey, t.Loc.Z+ez
	return ab
}

func (c *capsuleShape) ComputeMassProperties(m float64, byDensity bool) (float64, *lin.V3) {
	mass := m
	if byDensity {
		mass = m * c.Volume()
	}
	// cylinder + two hemisphere caps, treated as one effective cylinder for
	// the perpendicular axes and as a solid-of-revolution for the long axis
	//: matches the approximation this package's box/sphere ComputeMassProperties
	// use (closed form per primitive, no general tensor machinery).
	r2 := c.radius * c.radius
	h := 2 * c.halfHeight
	iy := 0.5 * mass * r2
	ix := mass * (3*r2+h*h) / 12.0
	inv := lin.NewV3()
	if ix > lin.Epsilon {
		inv.X, inv.Z = 1/ix, 1/ix
	}
	if iy > lin.Epsilon {
		inv.Y = 1 / iy
	}
	return mass, inv
}

func (c *capsuleShape) CastRay(o, d *lin.V3, maxFraction float64) (bool, float64, uint32) {
	// segment-vs-ray closest approach, reduced to a cylinder test against
	// the [-halfHeight, halfHeight] segment on Y plus sphere caps beyond it.
	best, hit := maxFraction, false
	if a := d.X*d.X + d.Z*d.Z; a > lin.Epsilon {
		b := o.X*d.X + o.Z*d.Z
		disc := b*b - a*(o.X*o.X+o.Z*o.Z-c.radius*c.radius)
		if t := (-b - sqrt(disc)) / a; disc >= 0 && t >= 0 && t <= best && absf(o.Y+t*d.Y) <= c.halfHeight {
			best, hit = t, true
		}
	}
	if h, f, _ := (&sphereShape{radius: c.radius}).CastRay(lin.NewV3S(o.X, o.Y-c.halfHeight, o.Z), d, best); h && f < best {
		best, hit = f, true
	}
	if h, f, _ := (&sphereShape{radius: c.radius}).CastRay(lin.NewV3S(o.X, o.Y+c.halfHeight, o.Z), d, best); h && f < best {
		best, hit = f, true
	}
	return hit, best, 0
}

func (c *capsuleShape) CollidePoint(p *lin.V3) bool {
	y := lin.Clamp(p.Y, -c.halfHeight, c.halfHeight)
	dx, dy, dz := p.X, p.Y-y, p.Z
	return dx*dx+dy*dy+dz*dz <= c.radius*c.radius
}

func (c *capsuleShape) GetSurfaceNormal(sub uint32, p *lin.V3) *lin.V3 {
	y := lin.Clamp(p.Y, -c.halfHeight, c.halfHeight)
	n := lin.NewV3S(p.X, p.Y-y, p.Z)
	return n.Unit()
}

func (c *capsuleShape) GetSupportingFace(dir *lin.V3) (*Face, bool) { return nil, false }

func (c *capsuleShape) CreateSupportPool(mode SupportMode) Support {
	return newCapsuleSupport(c.halfHeight, c.radius, mode)
}

// ============================================================================
// cylinder (axis along local Y, half-height h, radius r)

type cylinderShape struct {
	halfHeight, radius float64
}

// NewCylinder creates a cylinder shape with axis along local Y.
func NewCylinder(halfHeight, radius float64) Shape {
	return &cylinderShape{halfHeight: absf(halfHeight), radius: absf(radius)}
}

func (c *cylinderShape) Type() ShapeType       { return CylinderShape }
func (c *cylinderShape) Volume() float64       { return math.Pi * c.radius * c.radius * 2 * c.halfHeight }
func (c *cylinderShape) InnerRadius() float64  { return minf(c.halfHeight, c.radius) }
func (c *cylinderShape) CentreOfMass() *lin.V3 { return lin.NewV3() }

func (c *cylinderShape) Aabb(t *lin.T, ab *Abox, margin float64) *Abox {
	hx, hy, hz := c.radius, c.halfHeight, c.radius
	xx, xy, xz := lin.MultSQ(1, 0, 0, t.Rot)
	yx, yy, yz := lin.MultSQ(0, 1, 0, t.Rot)
	zx, zy, zz := lin.MultSQ(0, 0, 1, t.Rot)
	ex := hx*absf(xx) + hy*absf(xy) + hz*absf(xz) + margin
	ey := hx*absf(yx) + hy*absf(yy) + hz*absf(yz) + margin
	ez := hx*absf(zx) + hy*absf(zy) + hz*absf(zz) + margin
	ab.Sx, ab.Sy, ab.Sz = t.Loc.X-ex, t.Loc.Y-ey, t.Loc.Z-ez
	ab.Lx, ab.Ly, ab.Lz = t.Loc.X+ex, t.Loc.Y+ey, t.Loc.Z+ez
	return ab
}

func (c *cylinderShape) ComputeMassProperties(m float64, byDensity bool) (float64, *lin.V3) {
	mass := m
	if byDensity {
		mass = m * c.Volume()
	}
	r2 := c.radius * c.radius
	h2 := (2 * c.halfHeight) * (2 * c.halfHeight)
	iy := 0.5 * mass * r2
	ix := mass * (3*r2+h2) / 12.0
	inv := lin.NewV3()
	if ix > lin.Epsilon {
		inv.X, inv.Z = 1/ix, 1/ix
	}
	if iy > lin.Epsilon {
		inv.Y = 1 / iy
	}
	return mass, inv
}

func (c *cylinderShape) CastRay(o, d *lin.V3, maxFraction float64) (bool, float64, uint32) {
	// slab test on Y against the caps, circle test on XZ against the side.
	tmin, tmax := 0.0, maxFraction
	if absf(d.Y) > lin.Epsilon {
		t1, t2 := (-c.halfHeight-o.Y)/d.Y, (c.halfHeight-o.Y)/d.Y
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin, tmax = maxf(tmin, t1), minf(tmax, t2)
	} else if o.Y < -c.halfHeight || o.Y > c.halfHeight {
		return false, 0, 0
	}
	a := d.X*d.X + d.Z*d.Z
	b := 2 * (o.X*d.X + o.Z*d.Z)
	cc := o.X*o.X + o.Z*o.Z - c.radius*c.radius
	if a > lin.Epsilon {
		disc := b*b - 4*a*cc
		if disc < 0 {
			return false, 0, 0
		}
		sd := sqrt(disc)
		t1, t2 := (-b-sd)/(2*a), (-b+sd)/(2*a)
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin, tmax = maxf(tmin, t1), minf(tmax, t2)
	} else if cc > 0 {
		return false, 0, 0
	}
	if tmin > tmax {
		return false, 0, 0
	}
	return true, tmin, 0
}

func (c *cylinderShape) CollidePoint(p *lin.V3) bool {
	return absf(p.Y) <= c.halfHeight && p.X*p.X+p.Z*p.Z <= c.radius*c.radius
}

func (c *cylinderShape) GetSurfaceNormal(sub uint32, p *lin.V3) *lin.V3 {
	capDist := c.halfHeight - absf(p.Y)
	sideDist := c.radius - sqrt(p.X*p.X+p.Z*p.Z)
	if capDist < sideDist {
		return lin.NewV3S(0, signf(p.Y), 0)
	}
	n := lin.NewV3S(p.X, 0, p.Z)
	return n.Unit()
}

func (c *cylinderShape) GetSupportingFace(dir *lin.V3) (*Face, bool) {
	if absf(dir.Y) < 0.9999 {
		return nil, false // side contact: curved, clipping falls back to point contact.
	}
	y := c.halfHeight
	if dir.Y < 0 {
		y = -y
	}
	const segments = 8
	verts := make([]lin.V3, segments)
	for i := 0; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / float64(segments)
		verts[i] = lin.V3{X: c.radius * math.Cos(a), Y: y, Z: c.radius * math.Sin(a)}
	}
	return &Face{Vertices: verts, Normal: lin.V3{Y: signf(dir.Y)}}, true
}

func (c *cylinderShape) CreateSupportPool(mode SupportMode) Support {
	return newCylinderSupport(c.halfHeight, c.radius, mode)
}

// ============================================================================
// plane (non-volume; ray/point queries only)

type planeShape struct {
	normal lin.V3
}

// NewPlane creates an infinite plane through the origin with the given
// local-space normal.
func NewPlane(x, y, z float64) Shape { return &planeShape{normal: lin.V3{X: x, Y: y, Z: z}} }

func (p *planeShape) Type() ShapeType       { return PlaneShape }
func (p *planeShape) Volume() float64       { return 0 }
func (p *planeShape) InnerRadius() float64  { return 0 }
func (p *planeShape) CentreOfMass() *lin.V3 { return lin.NewV3() }
func (p *planeShape) Aabb(t *lin.T, ab *Abox, m float64) *Abox { return nil }
func (p *planeShape) ComputeMassProperties(m float64, byDensity bool) (float64, *lin.V3) {
	return 0, lin.NewV3()
}
func (p *planeShape) CastRay(o, d *lin.V3, maxFraction float64) (bool, float64, uint32) {
	n := lin.NewV3S(p.normal.GetS()).Unit()
	denom := d.Dot(n)
	if lin.AeqZ(denom) || denom > 0 {
		return false, 0, 0
	}
	t := -o.Dot(n) / denom
	if t < 0 || t > maxFraction {
		return false, 0, 0
	}
	return true, t, 0
}
func (p *planeShape) CollidePoint(pt *lin.V3) bool              { return pt.Dot(&p.normal) <= 0 }
func (p *planeShape) GetSurfaceNormal(s uint32, pt *lin.V3) *lin.V3 { return lin.NewV3S(p.normal.GetS()).Unit() }
func (p *planeShape) GetSupportingFace(dir *lin.V3) (*Face, bool)  { return nil, false }
func (p *planeShape) CreateSupportPool(mode SupportMode) Support  { return nil }

// ============================================================================
// empty (a body with no collision geometry: e.g. a pure constraint anchor)

type emptyShape struct{}

// NewEmpty creates a shape with no volume, mass, or collision surface.
func NewEmpty() Shape { return emptyShape{} }

func (emptyShape) Type() ShapeType       { return EmptyShape }
func (emptyShape) Volume() float64       { return 0 }
func (emptyShape) InnerRadius() float64  { return 0 }
func (emptyShape) CentreOfMass() *lin.V3 { return lin.NewV3() }
func (emptyShape) Aabb(t *lin.T, ab *Abox, m float64) *Abox {
	ab.Sx, ab.Sy, ab.Sz = t.Loc.X, t.Loc.Y, t.Loc.Z
	ab.Lx, ab.Ly, ab.Lz = t.Loc.X, t.Loc.Y, t.Loc.Z
	return ab
}
func (emptyShape) ComputeMassProperties(m float64, byDensity bool) (float64, *lin.V3) {
	return 0, lin.NewV3()
}
func (emptyShape) CastRay(o, d *lin.V3, maxFraction float64) (bool, float64, uint32) {
	return false, 0, 0
}
func (emptyShape) CollidePoint(p *lin.V3) bool                    { return false }
func (emptyShape) GetSurfaceNormal(s uint32, p *lin.V3) *lin.V3   { return lin.NewV3() }
func (emptyShape) GetSupportingFace(dir *lin.V3) (*Face, bool)   { return nil, false }
func (emptyShape) CreateSupportPool(mode SupportMode) Support   { return nil }

// ============================================================================
// triangle mesh (static, non-convex: terrain/level geometry)

// meshTriangle is one indexed triangle face of a triangleMeshShape.
type meshTriangle struct {
	a, b, c int
	normal  lin.V3
}

type triangleMeshShape struct {
	verts []lin.V3
	tris  []meshTriangle
	bound Abox // local-space bound over all vertices, computed once.
}

// NewTriangleMesh builds a static, non-convex mesh shape from a vertex
// cloud and per-triangle vertex index triples. Intended for immovable
// bodies (terrain, level geometry): ComputeMassProperties always
// reports zero mass, matching this package's non-volume plane shape.
func NewTriangleMesh(verts []lin.V3, indices [][3]int) Shape {
	m := &triangleMeshShape{verts: verts}
	for _, idx := range indices {
		a, b, c := verts[idx[0]], verts[idx[1]], verts[idx[2]]
		e1, e2 := lin.NewV3(), lin.NewV3()
		e1.Sub(&b, &a)
		e2.Sub(&c, &a)
		n := lin.NewV3().Cross(e1, e2)
		n.Unit()
		m.tris = append(m.tris, meshTriangle{a: idx[0], b: idx[1], c: idx[2], normal: *n})
	}
	first := true
	for i := range verts {
		if first {
			m.bound.Sx, m.bound.Sy, m.bound.Sz = verts[i].X, verts[i].Y, verts[i].Z
			m.bound.Lx, m.bound.Ly, m.bound.Lz = verts[i].X, verts[i].Y, verts[i].Z
			first = false
			continue
		}
		m.bound.Sx, m.bound.Sy, m.bound.Sz = minf(m.bound.Sx, verts[i].X), minf(m.bound.Sy, verts[i].Y), minf(m.bound.Sz, verts[i].Z)
		m.bound.Lx, m.bound.Ly, m.bound.Lz = maxf(m.bound.Lx, verts[i].X), maxf(m.bound.Ly, verts[i].Y), maxf(m.bound.Lz, verts[i].Z)
	}
	return m
}

func (m *triangleMeshShape) Type() ShapeType       { return TriangleMeshShape }
func (m *triangleMeshShape) Volume() float64       { return 0 }
func (m *triangleMeshShape) InnerRadius() float64  { return 0 }
func (m *triangleMeshShape) CentreOfMass() *lin.V3 { return lin.NewV3() }

func (m *triangleMeshShape) Aabb(t *lin.T, ab *Abox, margin float64) *Abox {
	corners := [8][3]float64{
		{m.bound.Sx, m.bound.Sy, m.bound.Sz}, {m.bound.Lx, m.bound.Sy, m.bound.Sz},
		{m.bound.Sx, m.bound.Ly, m.bound.Sz}, {m.bound.Sx, m.bound.Sy, m.bound.Lz},
		{m.bound.Lx, m.bound.Ly, m.bound.Sz}, {m.bound.Lx, m.bound.Sy, m.bound.Lz},
		{m.bound.Sx, m.bound.Ly, m.bound.Lz}, {m.bound.Lx, m.bound.Ly, m.bound.Lz},
	}
	first := true
	for _, c := range corners {
		wx, wy, wz := t.AppS(c[0], c[1], c[2])
		if first {
			ab.Sx, ab.Sy, ab.Sz = wx, wy, wz
			ab.Lx, ab.Ly, ab.Lz = wx, wy, wz
			first = false
			continue
		}
		ab.Sx, ab.Sy, ab.Sz = minf(ab.Sx, wx), minf(ab.Sy, wy), minf(ab.Sz, wz)
		ab.Lx, ab.Ly, ab.Lz = maxf(ab.Lx, wx), maxf(ab.Ly, wy), maxf(ab.Lz, wz)
	}
	ab.Expand(margin)
	return ab
}

func (m *triangleMeshShape) ComputeMassProperties(_ float64, _ bool) (float64, *lin.V3) {
	return 0, lin.NewV3()
}

func (m *triangleMeshShape) CastRay(o, d *lin.V3, maxFraction float64) (bool, float64, uint32) {
	best, hit, sub := maxFraction, false, uint32(0)
	for i, tri := range m.tris {
		if t, ok := rayTriangle(o, d, &m.verts[tri.a], &m.verts[tri.b], &m.verts[tri.c], &tri.normal, best); ok {
			best, hit, sub = t, true, uint32(i)
		}
	}
	return hit, best, sub
}

func rayTriangle(o, d, a, b, c *lin.V3, n *lin.V3, maxFraction float64) (float64, bool) {
	denom := n.Dot(d)
	if lin.AeqZ(denom) {
		return 0, false
	}
	ao := lin.NewV3().Sub(a, o)
	t := n.Dot(ao) / denom
	if t < 0 || t > maxFraction {
		return 0, false
	}
	p := lin.NewV3S(o.X+d.X*t, o.Y+d.Y*t, o.Z+d.Z*t)
	if !pointInTriangle(p, a, b, c, n) {
		return 0, false
	}
	return t, true
}

func pointInTriangle(p, a, b, c, n *lin.V3) bool {
	edge := func(p1, p2 *lin.V3) bool {
		e, vp := lin.NewV3(), lin.NewV3()
		e.Sub(p2, p1)
		vp.Sub(p, p1)
		cr := lin.NewV3().Cross(e, vp)
		return cr.Dot(n) >= 0
	}
	return edge(a, b) && edge(b, c) && edge(c, a)
}

func (m *triangleMeshShape) CollidePoint(p *lin.V3) bool { return false }

func (m *triangleMeshShape) GetSurfaceNormal(sub uint32, p *lin.V3) *lin.V3 {
	if int(sub) < len(m.tris) {
		n := m.tris[sub].normal
		return &n
	}
	return lin.NewV3()
}

func (m *triangleMeshShape) GetSupportingFace(dir *lin.V3) (*Face, bool) {
	best, bestDot := -1, -lin.Large
	for i, tri := range m.tris {
		d := tri.normal.Dot(dir)
		if d > bestDot {
			bestDot, best = d, i
		}
	}
	if best < 0 {
		return nil, false
	}
	tri := m.tris[best]
	return &Face{Vertices: []lin.V3{m.verts[tri.a], m.verts[tri.b], m.verts[tri.c]}, Normal: tri.normal}, true
}

func (m *triangleMeshShape) CreateSupportPool(mode SupportMode) Support { return nil }

// ============================================================================
// compound: a fixed set of child shapes, each with its own local transform,
// exposed as a single Shape so compounds nest inside scaled/transformed
// wrappers and the narrowphase dispatch table uniformly.

type compoundChild struct {
	shape Shape
	pose  lin.T
}

type compoundShape struct {
	children []compoundChild
	centre   lin.V3
	volume   float64
}

// NewCompound builds a fixed compound shape from child shapes and their
// local transforms (local translation + rotation relative to the
// compound's own origin).
func NewCompound(children []Shape, locs []lin.V3, rots []lin.Q) Shape {
	cs := &compoundShape{}
	var totalVol float64
	weighted := lin.NewV3()
	for i, child := range children {
		loc, rot := locs[i], rots[i]
		cs.children = append(cs.children, compoundChild{shape: child, pose: lin.T{Loc: &loc, Rot: &rot}})
		v := child.Volume()
		totalVol += v
		com := child.CentreOfMass()
		wx, wy, wz := cs.children[i].pose.AppS(com.GetS())
		weighted.X += wx * v
		weighted.Y += wy * v
		weighted.Z += wz * v
	}
	cs.volume = totalVol
	if totalVol > lin.Epsilon {
		weighted.Scale(weighted, 1/totalVol)
	}
	cs.centre = *weighted
	return cs
}

func (c *compoundShape) Type() ShapeType       { return CompoundShape }
func (c *compoundShape) Volume() float64       { return c.volume }
func (c *compoundShape) InnerRadius() float64 {
	best := lin.Large
	for _, ch := range c.children {
		best = minf(best, ch.shape.InnerRadius())
	}
	if best == lin.Large {
		return 0
	}
	return best
}
func (c *compoundShape) CentreOfMass() *lin.V3 { return lin.NewV3S(c.centre.GetS()) }

func (c *compoundShape) Aabb(t *lin.T, ab *Abox, margin float64) *Abox {
	first := true
	child := lin.NewT()
	combined := lin.NewT()
	for _, ch := range c.children {
		child.SetVQ(ch.pose.Loc, ch.pose.Rot)
		combined.Mult(t, child)
		var sub Abox
		ch.shape.Aabb(combined, &sub, 0)
		if first {
			*ab = sub
			first = false
			continue
		}
		ab.Union(ab, &sub)
	}
	ab.Expand(margin)
	return ab
}

func (c *compoundShape) ComputeMassProperties(m float64, byDensity bool) (float64, *lin.V3) {
	mass := m
	if byDensity {
		mass = m * c.volume
	}
	// approximate: distribute mass across children proportional to volume,
	// combine with the parallel-axis theorem about the compound centroid.
	var ixx, iyy, izz float64
	for _, ch := range c.children {
		share := 1.0
		if c.volume > lin.Epsilon {
			share = ch.shape.Volume() / c.volume
		}
		childMass := mass * share
		_, invI := ch.shape.ComputeMassProperties(childMass, false)
		com := ch.shape.CentreOfMass()
		wx, wy, wz := ch.pose.AppS(com.GetS())
		dx, dy, dz := wx-c.centre.X, wy-c.centre.Y, wz-c.centre.Z
		if invI.X > lin.Epsilon {
			ixx += 1/invI.X + childMass*(dy*dy+dz*dz)
		}
		if invI.Y > lin.Epsilon {
			iyy += 1/invI.Y + childMass*(dx*dx+dz*dz)
		}
		if invI.Z > lin.Epsilon {
			izz += 1/invI.Z + childMass*(dx*dx+dy*dy)
		}
	}
	inv := lin.NewV3()
	if ixx > lin.Epsilon {
		inv.X = 1 / ixx
	}
	if iyy > lin.Epsilon {
		inv.Y = 1 / iyy
	}
	if izz > lin.Epsilon {
		inv.Z = 1 / izz
	}
	return mass, inv
}

func (c *compoundShape) CastRay(o, d *lin.V3, maxFraction float64) (bool, float64, uint32) {
	best, hit, sub := maxFraction, false, uint32(0)
	for i, ch := range c.children {
		lo, ld := lin.NewV3S(o.GetS()), lin.NewV3S(d.GetS())
		ch.pose.Inv(lo)
		ix, iy, iz := lin.MultSQ(ld.X, ld.Y, ld.Z, &lin.Q{X: -ch.pose.Rot.X, Y: -ch.pose.Rot.Y, Z: -ch.pose.Rot.Z, W: ch.pose.Rot.W})
		ld.SetS(ix, iy, iz)
		if h, f, _ := ch.shape.CastRay(lo, ld, best); h && f < best {
			best, hit, sub = f, true, uint32(i)
		}
	}
	return hit, best, packSubShape(sub, 0)
}

func (c *compoundShape) CollidePoint(p *lin.V3) bool {
	for _, ch := range c.children {
		lp := lin.NewV3S(p.GetS())
		ch.pose.Inv(lp)
		if ch.shape.CollidePoint(lp) {
			return true
		}
	}
	return false
}

func (c *compoundShape) GetSurfaceNormal(sub uint32, p *lin.V3) *lin.V3 {
	idx, inner := unpackSubShape(sub)
	if int(idx) >= len(c.children) {
		return lin.NewV3()
	}
	return c.children[idx].shape.GetSurfaceNormal(inner, p)
}

func (c *compoundShape) GetSupportingFace(dir *lin.V3) (*Face, bool) {
	best, bestDot := -1, -lin.Large
	for i, ch := range c.children {
		ld := lin.NewV3S(dir.GetS())
		ix, iy, iz := lin.MultSQ(ld.X, ld.Y, ld.Z, &lin.Q{X: -ch.pose.Rot.X, Y: -ch.pose.Rot.Y, Z: -ch.pose.Rot.Z, W: ch.pose.Rot.W})
		ld.SetS(ix, iy, iz)
		d := ld.Dot(dir)
		if d > bestDot {
			bestDot, best = d, i
		}
	}
	if best < 0 {
		return nil, false
	}
	return c.children[best].shape.GetSupportingFace(dir)
}

func (c *compoundShape) CreateSupportPool(mode SupportMode) Support { return nil }

// packSubShape/unpackSubShape bit-pack a (childIndex, innerSubShapeID) pair
// into the single uint32 sub-shape id the Shape interface threads through
// ray casts and manifolds: childIndex in the high 16 bits, inner id in
// the low 16.
func packSubShape(childIndex, inner uint32) uint32 {
	return (childIndex << 16) | (inner & 0xffff)
}
func unpackSubShape(sub uint32) (childIndex, inner uint32) {
	return sub >> 16, sub & 0xffff
}

// ============================================================================
// scaled: a non-uniform scale wrapper around an inner shape. Scale is
// applied in the inner shape's local space before any outer transform.

type scaledShape struct {
	inner Shape
	scale lin.V3
}

// NewScaled wraps inner with a non-uniform local-space scale.
func NewScaled(inner Shape, sx, sy, sz float64) Shape {
	return &scaledShape{inner: inner, scale: lin.V3{X: sx, Y: sy, Z: sz}}
}

func (s *scaledShape) Type() ShapeType { return ScaledShape }
func (s *scaledShape) Volume() float64 {
	return s.inner.Volume() * absf(s.scale.X*s.scale.Y*s.scale.Z)
}
func (s *scaledShape) InnerRadius() float64 {
	return s.inner.InnerRadius() * minf(absf(s.scale.X), minf(absf(s.scale.Y), absf(s.scale.Z)))
}
func (s *scaledShape) CentreOfMass() *lin.V3 {
	com := s.inner.CentreOfMass()
	return lin.NewV3S(com.X*s.scale.X, com.Y*s.scale.Y, com.Z*s.scale.Z)
}

func (s *scaledShape) Aabb(t *lin.T, ab *Abox, margin float64) *Abox {
	var inner Abox
	s.inner.Aabb(lin.NewT(), &inner, 0)
	corners := [8][3]float64{
		{inner.Sx, inner.Sy, inner.Sz}, {inner.Lx, inner.Sy, inner.Sz},
		{inner.Sx, inner.Ly, inner.Sz}, {inner.Sx, inner.Sy, inner.Lz},
		{inner.Lx, inner.Ly, inner.Sz}, {inner.Lx, inner.Sy, inner.Lz},
		{inner.Sx, inner.Ly, inner.Lz}, {inner.Lx, inner.Ly, inner.Lz},
	}
	first := true
	for _, c := range corners {
		sx, sy, sz := c[0]*s.scale.X, c[1]*s.scale.Y, c[2]*s.scale.Z
		wx, wy, wz := t.AppS(sx, sy, sz)
		if first {
			ab.Sx, ab.Sy, ab.Sz = wx, wy, wz
			ab.Lx, ab.Ly, ab.Lz = wx, wy, wz
			first = false
			continue
		}
		ab.Sx, ab.Sy, ab.Sz = minf(ab.Sx, wx), minf(ab.Sy, wy), minf(ab.Sz, wz)
		ab.Lx, ab.Ly, ab.Lz = maxf(ab.Lx, wx), maxf(ab.Ly, wy), maxf(ab.Lz, wz)
	}
	ab.Expand(margin)
	return ab
}

func (s *scaledShape) ComputeMassProperties(m float64, byDensity bool) (float64, *lin.V3) {
	mass := m
	if byDensity {
		mass = m * s.Volume()
	}
	_, invI := s.inner.ComputeMassProperties(mass, false)
	// crude rescale: inertia scales with (length^2), inverse with 1/length^2.
	inv := lin.NewV3()
	if s.scale.X != 0 {
		inv.X = invI.X / (s.scale.X * s.scale.X)
	}
	if s.scale.Y != 0 {
		inv.Y = invI.Y / (s.scale.Y * s.scale.Y)
	}
	if s.scale.Z != 0 {
		inv.Z = invI.Z / (s.scale.Z * s.scale.Z)
	}
	return mass, inv
}

func (s *scaledShape) CastRay(o, d *lin.V3, maxFraction float64) (bool, float64, uint32) {
	lo := lin.NewV3S(o.X/s.scale.X, o.Y/s.scale.Y, o.Z/s.scale.Z)
	ld := lin.NewV3S(d.X/s.scale.X, d.Y/s.scale.Y, d.Z/s.scale.Z)
	return s.inner.CastRay(lo, ld, maxFraction)
}

func (s *scaledShape) CollidePoint(p *lin.V3) bool {
	return s.inner.CollidePoint(lin.NewV3S(p.X/s.scale.X, p.Y/s.scale.Y, p.Z/s.scale.Z))
}

func (s *scaledShape) GetSurfaceNormal(sub uint32, p *lin.V3) *lin.V3 {
	lp := lin.NewV3S(p.X/s.scale.X, p.Y/s.scale.Y, p.Z/s.scale.Z)
	n := s.inner.GetSurfaceNormal(sub, lp)
	return lin.NewV3S(n.X*s.scale.X, n.Y*s.scale.Y, n.Z*s.scale.Z).Unit()
}

func (s *scaledShape) GetSupportingFace(dir *lin.V3) (*Face, bool) {
	face, ok := s.inner.GetSupportingFace(dir)
	if !ok {
		return nil, false
	}
	verts := make([]lin.V3, len(face.Vertices))
	for i, v := range face.Vertices {
		verts[i] = lin.V3{X: v.X * s.scale.X, Y: v.Y * s.scale.Y, Z: v.Z * s.scale.Z}
	}
	return &Face{Vertices: verts, Normal: face.Normal}, true
}

func (s *scaledShape) CreateSupportPool(mode SupportMode) Support { return nil }

// ============================================================================
// transformed: a fixed local rotate+translate wrapper around an inner
// shape, used to give a compound child (or any shape) an offset from its
// owning body's origin without the full compound machinery.

type transformedShape struct {
	inner Shape
	pose  lin.T
}

// NewTransformed wraps inner with a fixed local transform.
func NewTransformed(inner Shape, loc lin.V3, rot lin.Q) Shape {
	return &transformedShape{inner: inner, pose: lin.T{Loc: &loc, Rot: &rot}}
}

func (t *transformedShape) Type() ShapeType      { return TransformedShape }
func (t *transformedShape) Volume() float64      { return t.inner.Volume() }
func (t *transformedShape) InnerRadius() float64 { return t.inner.InnerRadius() }
func (t *transformedShape) CentreOfMass() *lin.V3 {
	com := t.inner.CentreOfMass()
	wx, wy, wz := t.pose.AppS(com.GetS())
	return lin.NewV3S(wx, wy, wz)
}

func (t *transformedShape) Aabb(outer *lin.T, ab *Abox, margin float64) *Abox {
	combined := lin.NewT().Mult(outer, &t.pose)
	return t.inner.Aabb(combined, ab, margin)
}

func (t *transformedShape) ComputeMassProperties(m float64, byDensity bool) (float64, *lin.V3) {
	return t.inner.ComputeMassProperties(m, byDensity)
}

func (t *transformedShape) CastRay(o, d *lin.V3, maxFraction float64) (bool, float64, uint32) {
	lo, ld := lin.NewV3S(o.GetS()), lin.NewV3S(d.GetS())
	t.pose.Inv(lo)
	ix, iy, iz := lin.MultSQ(ld.X, ld.Y, ld.Z, &lin.Q{X: -t.pose.Rot.X, Y: -t.pose.Rot.Y, Z: -t.pose.Rot.Z, W: t.pose.Rot.W})
	ld.SetS(ix, iy, iz)
	return t.inner.CastRay(lo, ld, maxFraction)
}

func (t *transformedShape) CollidePoint(p *lin.V3) bool {
	lp := lin.NewV3S(p.GetS())
	t.pose.Inv(lp)
	return t.inner.CollidePoint(lp)
}

func (t *transformedShape) GetSurfaceNormal(sub uint32, p *lin.V3) *lin.V3 {
	lp := lin.NewV3S(p.GetS())
	t.pose.Inv(lp)
	n := t.inner.GetSurfaceNormal(sub, lp)
	wx, wy, wz := t.pose.AppR(n.X, n.Y, n.Z)
	return lin.NewV3S(wx, wy, wz)
}

func (t *transformedShape) GetSupportingFace(dir *lin.V3) (*Face, bool) {
	ld := lin.NewV3S(dir.GetS())
	ix, iy, iz := lin.MultSQ(ld.X, ld.Y, ld.Z, &lin.Q{X: -t.pose.Rot.X, Y: -t.pose.Rot.Y, Z: -t.pose.Rot.Z, W: t.pose.Rot.W})
	ld.SetS(ix, iy, iz)
	return t.inner.GetSupportingFace(ld)
}

func (t *transformedShape) CreateSupportPool(mode SupportMode) Support {
	return newTransformedSupport(t.inner.CreateSupportPool(mode), &t.pose)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
func signf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
