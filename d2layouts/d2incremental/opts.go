package d2incremental

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

type ConfigurableOpts struct {
	MaxIterations        int `json:"maxIterations"`
	MinorIterations      int `json:"minorIterations"`
	ProjectionIterations int `json:"projectionIterations"`

	ApproximateRepulsion  bool    `json:"approximateRepulsion"`
	RungeKuttaIntegration bool    `json:"rungeKuttaIntegration"`
	InitialStepSize       float64 `json:"initialStepSize"`
	Decay                 float64 `json:"decay"`
	Friction              float64 `json:"friction"`

	RepulsiveForceConstant              float64 `json:"repulsiveForceConstant"`
	AttractiveForceConstant             float64 `json:"attractiveForceConstant"`
	GravityConstant                     float64 `json:"gravityConstant"`
	ClusterGravity                      float64 `json:"clusterGravity"`
	AttractiveInterClusterForceConstant float64 `json:"attractiveInterClusterForceConstant"`

	InterComponentForces bool    `json:"interComponentForces"`
	ApplyForces          bool    `json:"applyForces"`
	AvoidOverlaps        bool    `json:"avoidOverlaps"`
	NodeSeparation       float64 `json:"nodeSeparation"`
	ClusterMargin        float64 `json:"clusterMargin"`
	LogScaleEdgeForces   bool    `json:"logScaleEdgeForces"`
	RespectEdgePorts     bool    `json:"respectEdgePorts"`

	DisplacementThreshold float64 `json:"displacementThreshold"`
	MinConstraintLevel    int     `json:"minConstraintLevel"`
	MaxConstraintLevel    int     `json:"maxConstraintLevel"`

	UpdateClusterBoundariesFromChildren bool `json:"updateClusterBoundariesFromChildren"`

	// EdgeDirection is one of "", "up", "down", "left" or "right".
	EdgeDirection  string  `json:"edgeDirection,omitempty"`
	EdgeSeparation float64 `json:"edgeSeparation"`
}

var DefaultOpts = ConfigurableOpts{
	MaxIterations:        100,
	MinorIterations:      3,
	ProjectionIterations: 5,

	ApproximateRepulsion: true,
	InitialStepSize:      1.4,
	Decay:                0.9,
	Friction:             0.8,

	RepulsiveForceConstant:              1,
	AttractiveForceConstant:             1,
	GravityConstant:                     1,
	ClusterGravity:                      1,
	AttractiveInterClusterForceConstant: 1,

	InterComponentForces: true,
	ApplyForces:          true,
	AvoidOverlaps:        true,
	NodeSeparation:       10,
	ClusterMargin:        10,
	LogScaleEdgeForces:   true,

	DisplacementThreshold: 0.1,
	MinConstraintLevel:    0,
	MaxConstraintLevel:    2,

	UpdateClusterBoundariesFromChildren: true,

	EdgeSeparation: 20,
}

// ParseOpts reads JSON options over DefaultOpts.
func ParseOpts(b []byte) (ConfigurableOpts, error) {
	opts := DefaultOpts
	if len(b) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(b, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse incremental layout options: %w", err)
	}
	if _, err := ParseDirection(opts.EdgeDirection); err != nil {
		return opts, err
	}
	return opts, nil
}

const flagPrefix = "fil-"

// AddFlags binds every option to a flag on fs, defaulting to the current values.
func (o *ConfigurableOpts) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.MaxIterations, flagPrefix+"max-iterations", o.MaxIterations, "maximum number of iteration bursts")
	fs.IntVar(&o.MinorIterations, flagPrefix+"minor-iterations", o.MinorIterations, "iterations per burst")
	fs.IntVar(&o.ProjectionIterations, flagPrefix+"projection-iterations", o.ProjectionIterations, "constraint projections per iteration")

	fs.BoolVar(&o.ApproximateRepulsion, flagPrefix+"approximate-repulsion", o.ApproximateRepulsion, "use the KD-tree multipole approximation for large components")
	fs.BoolVar(&o.RungeKuttaIntegration, flagPrefix+"runge-kutta", o.RungeKuttaIntegration, "integrate with RK4 instead of Verlet")
	fs.Float64Var(&o.InitialStepSize, flagPrefix+"initial-step-size", o.InitialStepSize, "initial step size, in (0, 2]")
	fs.Float64Var(&o.Decay, flagPrefix+"decay", o.Decay, "step size decay, in [0.1, 1]")
	fs.Float64Var(&o.Friction, flagPrefix+"friction", o.Friction, "fraction of the previous displacement kept, in [0, 1]")

	fs.Float64Var(&o.RepulsiveForceConstant, flagPrefix+"repulsion", o.RepulsiveForceConstant, "repulsive force constant")
	fs.Float64Var(&o.AttractiveForceConstant, flagPrefix+"attraction", o.AttractiveForceConstant, "edge spring constant")
	fs.Float64Var(&o.GravityConstant, flagPrefix+"gravity", o.GravityConstant, "pull toward each component's centroid")
	fs.Float64Var(&o.ClusterGravity, flagPrefix+"cluster-gravity", o.ClusterGravity, "pull toward each cluster's barycenter")
	fs.Float64Var(&o.AttractiveInterClusterForceConstant, flagPrefix+"inter-cluster-attraction", o.AttractiveInterClusterForceConstant, "spring constant of edges to clusters")

	fs.BoolVar(&o.InterComponentForces, flagPrefix+"inter-component-forces", o.InterComponentForces, "repel across connected components")
	fs.BoolVar(&o.ApplyForces, flagPrefix+"apply-forces", o.ApplyForces, "apply forces, otherwise only project constraints")
	fs.BoolVar(&o.AvoidOverlaps, flagPrefix+"avoid-overlaps", o.AvoidOverlaps, "remove node and cluster overlaps at constraint level 2")
	fs.Float64Var(&o.NodeSeparation, flagPrefix+"node-separation", o.NodeSeparation, "minimum gap between nodes")
	fs.Float64Var(&o.ClusterMargin, flagPrefix+"cluster-margin", o.ClusterMargin, "gap between a cluster border and its children")
	fs.BoolVar(&o.LogScaleEdgeForces, flagPrefix+"log-scale-edge-forces", o.LogScaleEdgeForces, "logarithmic instead of squared spring forces")
	fs.BoolVar(&o.RespectEdgePorts, flagPrefix+"respect-edge-ports", o.RespectEdgePorts, "pull springs from port locations")

	fs.Float64Var(&o.DisplacementThreshold, flagPrefix+"displacement-threshold", o.DisplacementThreshold, "converge when total squared displacement drops below this")
	fs.IntVar(&o.MinConstraintLevel, flagPrefix+"min-constraint-level", o.MinConstraintLevel, "first constraint level")
	fs.IntVar(&o.MaxConstraintLevel, flagPrefix+"max-constraint-level", o.MaxConstraintLevel, "last constraint level")
	fs.BoolVar(&o.UpdateClusterBoundariesFromChildren, flagPrefix+"fit-clusters", o.UpdateClusterBoundariesFromChildren, "fit clusters to their children when no solver runs")

	fs.StringVar(&o.EdgeDirection, flagPrefix+"edge-direction", o.EdgeDirection, `edge flow direction: "up", "down", "left" or "right"`)
	fs.Float64Var(&o.EdgeSeparation, flagPrefix+"edge-separation", o.EdgeSeparation, "gap between the ends of a directed edge")
}

type Direction int

const (
	DirectionNone Direction = iota
	// DirectionNorth places edge targets above their sources.
	DirectionNorth
	// DirectionSouth places edge targets below their sources.
	DirectionSouth
	DirectionEast
	DirectionWest
)

func (d Direction) String() string {
	switch d {
	case DirectionNorth:
		return "up"
	case DirectionSouth:
		return "down"
	case DirectionEast:
		return "right"
	case DirectionWest:
		return "left"
	}
	return ""
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return DirectionNone, nil
	case "up":
		return DirectionNorth, nil
	case "down":
		return DirectionSouth, nil
	case "right":
		return DirectionEast, nil
	case "left":
		return DirectionWest, nil
	}
	return DirectionNone, fmt.Errorf("%w: edge direction %q", ErrInvalidArgument, s)
}
