// SPDX-FileCopyrightText : © 2024 Galvanized Logic Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package scenario loads declarative YAML fixtures into a running phy.World,
// generalising the teacher's load/shd.go pattern (unmarshal into a plain
// string-keyed config struct, convert via lookup maps into the typed domain
// values the engine actually wants) from shader configuration to physics
// scenes. Fixtures describe the six end-to-end scenes used to exercise the
// engine: bodies, their shapes and initial motion, and the constraints
// linking them.
package scenario

import (
	"embed"
	"fmt"

	"github.com/gazed/physics/math/lin"
	"github.com/gazed/physics/phy"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/*.yaml
var fixtures embed.FS

// Config is the raw, YAML-shaped description of one scenario. Field names
// mirror the fixture files directly; Build converts it into a live World.
type Config struct {
	Name    string      `yaml:"name"`
	Steps   int         `yaml:"steps"`
	Dt      float64     `yaml:"dt"`
	Gravity [3]float64  `yaml:"gravity"`
	Bodies  []BodyConfig `yaml:"bodies"`
	Joints  []JointConfig `yaml:"joints"`
}

// BodyConfig describes one RigidBody: its shape, initial pose and motion,
// and material. Rotation is an axis-angle quadruple (ax, ay, az, angleRad)
// fed to lin.Q.SetAa, matching this package's axis-angle constructor instead
// of asking fixture authors to hand-write quaternion components.
type BodyConfig struct {
	Name   string      `yaml:"name"`
	Shape  ShapeConfig `yaml:"shape"`
	Motion string      `yaml:"motion"` // static | kinematic | dynamic
	Quality string     `yaml:"quality"` // discrete | linearCast

	Position        [3]float64 `yaml:"position"`
	Rotation        [4]float64 `yaml:"rotation"` // ax,ay,az,angleRad
	LinearVelocity  [3]float64 `yaml:"linearVelocity"`
	AngularVelocity [3]float64 `yaml:"angularVelocity"`

	Mass    float64 `yaml:"mass"`
	Density float64 `yaml:"density"`

	Friction    float64 `yaml:"friction"`
	Restitution float64 `yaml:"restitution"`

	Sensor              bool   `yaml:"sensor"`
	EnhancedEdgeRemoval bool   `yaml:"enhancedEdgeRemoval"`
	Group               uint32 `yaml:"group"`
	Mask                uint32 `yaml:"mask"`
}

// ShapeConfig describes one Shape. Kind selects which of the fields below
// apply; grid is only meaningful for kind "meshGrid" and builds a flat,
// regularly-tessellated triangle mesh (used by the internal-edge scenario),
// generated here rather than hand-listed in YAML since a fixture author
// should not have to enumerate every vertex of an 8x8 ground plane.
type ShapeConfig struct {
	Kind        string     `yaml:"kind"` // sphere | box | capsule | cylinder | meshGrid
	Radius      float64    `yaml:"radius"`
	HalfHeight  float64    `yaml:"halfHeight"`
	HalfExtents [3]float64 `yaml:"halfExtents"`
	Grid        *GridConfig `yaml:"grid"`
}

// GridConfig parameterises a meshGrid shape: cols*rows cells of cellSize,
// centred on the shape's local origin, tessellated into two triangles per
// cell sharing the internal edges the enhanced-edge-removal scenario needs.
type GridConfig struct {
	Cols     int     `yaml:"cols"`
	Rows     int     `yaml:"rows"`
	CellSize float64 `yaml:"cellSize"`
}

// JointConfig describes one UserConstraint between two named bodies.
type JointConfig struct {
	Kind  string `yaml:"kind"` // point | distance | hinge | fixed | slider | cone | swingTwist
	BodyA string `yaml:"bodyA"`
	BodyB string `yaml:"bodyB"`

	PointA [3]float64 `yaml:"pointA"`
	PointB [3]float64 `yaml:"pointB"`
	AxisA  [3]float64 `yaml:"axisA"`
	AxisB  [3]float64 `yaml:"axisB"`

	Limit      *LimitConfig  `yaml:"limit"`
	TwistLimit *LimitConfig  `yaml:"twistLimit"`
	Spring     *SpringConfig `yaml:"spring"`
	Motor      *MotorConfig  `yaml:"motor"`
	HalfAngle  float64       `yaml:"halfAngle"` // cone and swingTwist.
}

type LimitConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type SpringConfig struct {
	Frequency float64 `yaml:"frequency"`
	Damping   float64 `yaml:"damping"`
}

// MotorConfig mirrors phy.MotorSettings with a string State for readability
// in YAML ("off" | "velocity" | "position").
type MotorConfig struct {
	State          string  `yaml:"state"`
	TargetVelocity float64 `yaml:"targetVelocity"`
	TargetPosition float64 `yaml:"targetPosition"`
	MaxForce       float64 `yaml:"maxForce"`
}

// Load reads and parses the named embedded fixture (without its .yaml
// suffix), e.g. Load("sphere-on-ground").
func Load(name string) (*Config, error) {
	data, err := fixtures.ReadFile("fixtures/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("scenario: yaml %w", err)
	}
	return &cfg, nil
}

// Names lists every embedded fixture's name, without the .yaml suffix.
func Names() ([]string, error) {
	entries, err := fixtures.ReadDir("fixtures")
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		names = append(names, n[:len(n)-len(".yaml")])
	}
	return names, nil
}

// Scenario is a built Config: a live World plus a name-to-BodyID index so
// test code can look up "the driven body" or "the platform" by the name it
// was given in the fixture instead of tracking creation order.
type Scenario struct {
	Config *Config
	World  *phy.World
	Bodies map[string]phy.BodyID
}

var motionByName = map[string]phy.MotionType{
	"static":    phy.Static,
	"kinematic": phy.Kinematic,
	"dynamic":   phy.Dynamic,
	"":          phy.Dynamic,
}

var qualityByName = map[string]phy.MotionQuality{
	"discrete":   phy.Discrete,
	"linearCast": phy.LinearCast,
	"":           phy.Discrete,
}

var motorStateByName = map[string]phy.MotorState{
	"off":      phy.MotorOff,
	"velocity": phy.MotorVelocity,
	"position": phy.MotorPosition,
	"":         phy.MotorOff,
}

var jointKindBuilders = map[string]func(w *phy.World, j JointConfig, a, b phy.BodyID) (phy.ConstraintID, error){
	"point":      buildPointJoint,
	"distance":   buildDistanceJoint,
	"hinge":      buildHingeJoint,
	"fixed":      buildFixedJoint,
	"slider":     buildSliderJoint,
	"cone":       buildConeJoint,
	"swingTwist": buildSwingTwistJoint,
}

var shapeKindBuilders = map[string]func(ShapeConfig) (phy.Shape, error){
	"sphere":   func(s ShapeConfig) (phy.Shape, error) { return phy.NewSphere(s.Radius), nil },
	"box":      func(s ShapeConfig) (phy.Shape, error) { return phy.NewBox(s.HalfExtents[0], s.HalfExtents[1], s.HalfExtents[2]), nil },
	"capsule":  func(s ShapeConfig) (phy.Shape, error) { return phy.NewCapsule(s.HalfHeight, s.Radius), nil },
	"cylinder": func(s ShapeConfig) (phy.Shape, error) { return phy.NewCylinder(s.HalfHeight, s.Radius), nil },
	"meshGrid": buildMeshGridShape,
}

// Build constructs a World from cfg: gravity from cfg.Gravity, one body per
// BodyConfig (in declaration order, so later joints may reference earlier
// bodies by name), then one UserConstraint per JointConfig.
func Build(cfg *Config) (*Scenario, error) {
	settings := phy.NewWorldSettings(phy.Gravity(cfg.Gravity[0], cfg.Gravity[1], cfg.Gravity[2]))
	world := phy.NewWorld(settings)

	sc := &Scenario{Config: cfg, World: world, Bodies: make(map[string]phy.BodyID, len(cfg.Bodies))}
	for _, bc := range cfg.Bodies {
		id, err := buildBody(world, bc)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: body %q: %w", cfg.Name, bc.Name, err)
		}
		sc.Bodies[bc.Name] = id
	}
	for _, jc := range cfg.Joints {
		a, ok := sc.Bodies[jc.BodyA]
		if !ok {
			return nil, fmt.Errorf("scenario %q: joint references unknown body %q", cfg.Name, jc.BodyA)
		}
		b, ok := sc.Bodies[jc.BodyB]
		if !ok {
			return nil, fmt.Errorf("scenario %q: joint references unknown body %q", cfg.Name, jc.BodyB)
		}
		build, ok := jointKindBuilders[jc.Kind]
		if !ok {
			return nil, fmt.Errorf("scenario %q: unknown joint kind %q", cfg.Name, jc.Kind)
		}
		if _, err := build(world, jc, a, b); err != nil {
			return nil, fmt.Errorf("scenario %q: joint %s-%s: %w", cfg.Name, jc.BodyA, jc.BodyB, err)
		}
	}
	return sc, nil
}

// LoadAndBuild is the one-call helper debug tooling and tests use: Load then
// Build.
func LoadAndBuild(name string) (*Scenario, error) {
	cfg, err := Load(name)
	if err != nil {
		return nil, err
	}
	return Build(cfg)
}

// LoadScenario is LoadAndBuild under the name a debug/tooling entry point
// would call it by (e.g. a "run this fixture" CLI flag).
func LoadScenario(name string) (*Scenario, error) { return LoadAndBuild(name) }

// Run steps the scenario's world cfg.Steps times at cfg.Dt (or the supplied
// overrides, if steps/dt are non-zero), with no listener attached.
func (sc *Scenario) Run(steps int, dt float64) error {
	if steps <= 0 {
		steps = sc.Config.Steps
	}
	if dt <= 0 {
		dt = sc.Config.Dt
	}
	for i := 0; i < steps; i++ {
		if err := phy.UpdateWorld(sc.World, nil, dt); err != nil {
			return fmt.Errorf("scenario %q: step %d: %w", sc.Config.Name, i, err)
		}
	}
	return nil
}

// Body looks up a body by the name it was given in the fixture.
func (sc *Scenario) Body(name string) (*phy.RigidBody, bool) {
	id, ok := sc.Bodies[name]
	if !ok {
		return nil, false
	}
	return sc.World.Body(id)
}

func buildBody(world *phy.World, bc BodyConfig) (phy.BodyID, error) {
	shapeBuild, ok := shapeKindBuilders[bc.Shape.Kind]
	if !ok {
		return phy.BodyID{}, fmt.Errorf("unknown shape kind %q", bc.Shape.Kind)
	}
	shape, err := shapeBuild(bc.Shape)
	if err != nil {
		return phy.BodyID{}, err
	}

	motion, ok := motionByName[bc.Motion]
	if !ok {
		return phy.BodyID{}, fmt.Errorf("unknown motion %q", bc.Motion)
	}
	quality, ok := qualityByName[bc.Quality]
	if !ok {
		return phy.BodyID{}, fmt.Errorf("unknown quality %q", bc.Quality)
	}

	b := phy.NewRigidBody()
	b.Motion = motion
	b.Quality = quality
	b.Pose.Loc.Set(lin.NewV3S(bc.Position[0], bc.Position[1], bc.Position[2]))
	if bc.Rotation[3] != 0 || bc.Rotation[0] != 0 || bc.Rotation[1] != 0 || bc.Rotation[2] != 0 {
		b.Pose.Rot.SetAa(bc.Rotation[0], bc.Rotation[1], bc.Rotation[2], bc.Rotation[3])
	}
	b.LinearVel = lin.V3{X: bc.LinearVelocity[0], Y: bc.LinearVelocity[1], Z: bc.LinearVelocity[2]}
	b.AngularVel = lin.V3{X: bc.AngularVelocity[0], Y: bc.AngularVelocity[1], Z: bc.AngularVelocity[2]}
	b.Material = phy.Material{Friction: bc.Friction, Restitution: bc.Restitution}
	b.SetSensor(bc.Sensor)
	b.SetEnhancedEdgeRemoval(bc.EnhancedEdgeRemoval)
	b.Group, b.Mask = bc.Group, bc.Mask

	byDensity := bc.Density > 0
	massOrDensity := bc.Mass
	if byDensity {
		massOrDensity = bc.Density
	}
	b.SetShape(shape, massOrDensity, byDensity)

	return world.CreateBody(b), nil
}

func buildMeshGridShape(s ShapeConfig) (phy.Shape, error) {
	g := s.Grid
	if g == nil || g.Cols < 1 || g.Rows < 1 {
		return nil, fmt.Errorf("meshGrid shape requires grid.cols/rows >= 1")
	}
	cell := g.CellSize
	if cell <= 0 {
		cell = 1
	}
	ox := float64(g.Cols) * cell / 2
	oz := float64(g.Rows) * cell / 2

	verts := make([]lin.V3, 0, (g.Cols+1)*(g.Rows+1))
	index := func(c, r int) int { return r*(g.Cols+1) + c }
	for r := 0; r <= g.Rows; r++ {
		for c := 0; c <= g.Cols; c++ {
			verts = append(verts, lin.V3{X: float64(c)*cell - ox, Y: 0, Z: float64(r)*cell - oz})
		}
	}
	var tris [][3]int
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			v00, v10 := index(c, r), index(c+1, r)
			v01, v11 := index(c, r+1), index(c+1, r+1)
			// wound so NewTriangleMesh's cross(e1,e2) face normal points
			// +Y (up, out of the ground) rather than into the ground.
			tris = append(tris, [3]int{v00, v01, v11}, [3]int{v00, v11, v10})
		}
	}
	return phy.NewTriangleMesh(verts, tris), nil
}

func v3(a [3]float64) lin.V3 { return lin.V3{X: a[0], Y: a[1], Z: a[2]} }

func limit(l *LimitConfig) phy.LimitSettings {
	if l == nil {
		return phy.LimitSettings{}
	}
	return phy.LimitSettings{Enabled: true, Min: l.Min, Max: l.Max}
}

func spring(s *SpringConfig) phy.SpringSettings {
	if s == nil {
		return phy.SpringSettings{}
	}
	return phy.SpringSettings{Enabled: true, Frequency: s.Frequency, Damping: s.Damping}
}

func motor(m *MotorConfig) phy.MotorSettings {
	if m == nil {
		return phy.MotorSettings{}
	}
	return phy.MotorSettings{
		State:          motorStateByName[m.State],
		TargetVelocity: m.TargetVelocity,
		TargetPosition: m.TargetPosition,
		MaxForce:       m.MaxForce,
	}
}

func buildPointJoint(w *phy.World, j JointConfig, a, b phy.BodyID) (phy.ConstraintID, error) {
	return w.CreatePointConstraint(a, b, v3(j.PointA), v3(j.PointB), phy.Local)
}

func buildDistanceJoint(w *phy.World, j JointConfig, a, b phy.BodyID) (phy.ConstraintID, error) {
	return w.CreateDistanceConstraint(a, b, v3(j.PointA), v3(j.PointB), phy.Local, limit(j.Limit))
}

func buildHingeJoint(w *phy.World, j JointConfig, a, b phy.BodyID) (phy.ConstraintID, error) {
	return w.CreateHingeConstraint(a, b, v3(j.PointA), v3(j.PointB), v3(j.AxisA), v3(j.AxisB), phy.Local,
		limit(j.Limit), spring(j.Spring), motor(j.Motor))
}

func buildFixedJoint(w *phy.World, j JointConfig, a, b phy.BodyID) (phy.ConstraintID, error) {
	return w.CreateFixedConstraint(a, b, v3(j.PointA), v3(j.PointB), v3(j.AxisA), v3(j.AxisB), phy.Local)
}

func buildSliderJoint(w *phy.World, j JointConfig, a, b phy.BodyID) (phy.ConstraintID, error) {
	return w.CreateSliderConstraint(a, b, v3(j.PointA), v3(j.PointB), v3(j.AxisA), v3(j.AxisB), phy.Local,
		limit(j.Limit), spring(j.Spring), motor(j.Motor))
}

func buildConeJoint(w *phy.World, j JointConfig, a, b phy.BodyID) (phy.ConstraintID, error) {
	return w.CreateConeConstraint(a, b, v3(j.PointA), v3(j.PointB), v3(j.AxisA), v3(j.AxisB), phy.Local, j.HalfAngle)
}

func buildSwingTwistJoint(w *phy.World, j JointConfig, a, b phy.BodyID) (phy.ConstraintID, error) {
	return w.CreateSwingTwistConstraint(a, b, v3(j.PointA), v3(j.PointB), v3(j.AxisA), v3(j.AxisB), phy.Local,
		j.HalfAngle, limit(j.TwistLimit), motor(j.Motor))
}
