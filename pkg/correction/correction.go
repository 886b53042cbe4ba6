package correction

import (
	"context"
	"fmt"
	"io"

	"surefit/pkg/volume"
)

// Options tunes the correctors
type Options struct {
	// MaxRadius is the largest opening/closing radius SureFit tries
	MaxRadius int

	// MaxIterations bounds the number of edits the graph corrector makes
	MaxIterations int

	// RadialPositionMap, when set, orders SureFit candidates: low values are
	// removed first and high values filled first
	RadialPositionMap *volume.Grid

	// Log receives progress lines; nil is silent
	Log io.Writer
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{MaxRadius: 2, MaxIterations: 64}
}

// StepReport describes one corrector run
type StepReport struct {
	Name          string                `yaml:"name"`
	Counts        volume.TopologyCounts `yaml:"counts"`
	VoxelsChanged int                   `yaml:"voxelsChanged"`
	Edits         int                   `yaml:"edits"`
}

// Report summarises a correction run. Residual is set when the result is
// still not a single object without holes or cavities.
type Report struct {
	Method        Method                `yaml:"method"`
	Before        volume.TopologyCounts `yaml:"before"`
	After         volume.TopologyCounts `yaml:"after"`
	Steps         []StepReport          `yaml:"steps"`
	VoxelsChanged int                   `yaml:"voxelsChanged"`
	Residual      bool                  `yaml:"residual"`
}

// run is the state shared by the correctors of one Apply call
type run struct {
	ctx    context.Context
	seg    *volume.Grid
	counts volume.TopologyCounts
	opts   Options

	changed int
	edits   int
}

func (c *run) logf(format string, args ...interface{}) {
	if c.opts.Log != nil {
		fmt.Fprintf(c.opts.Log, format, args...)
	}
}

// improves is the acceptance rule for every edit: fewer holes without more
// objects or cavities
func improves(before, after volume.TopologyCounts) bool {
	return after.Holes < before.Holes &&
		after.Objects <= before.Objects &&
		after.Cavities <= before.Cavities
}

// try applies set (On) or clear (0) to the voxels and keeps the edit when it
// improves the topology
func (c *run) try(voxels []int, value float32) bool {
	if len(voxels) == 0 {
		return false
	}
	g := c.seg
	ext := volume.Extent{Min: g.Dims, Max: [3]int{-1, -1, -1}}
	for _, idx := range voxels {
		p := [3]int{}
		p[0], p[1], p[2] = g.IJK(idx)
		for a := 0; a < 3; a++ {
			ext.Min[a] = min(ext.Min[a], p[a])
			ext.Max[a] = max(ext.Max[a], p[a])
		}
	}
	ext = ext.Grow(1)

	old := make([]float32, len(voxels))
	localBefore := g.EulerCharacteristicIn(ext)
	for i, idx := range voxels {
		old[i] = g.Data[idx]
		g.Data[idx] = value
	}
	undo := func() {
		for i, idx := range voxels {
			g.Data[idx] = old[i]
		}
	}

	// fewer holes needs a larger Euler characteristic unless objects or
	// cavities vanish, which only whole components do
	localAfter := g.EulerCharacteristicIn(ext)
	if localAfter <= localBefore && !c.mayDropComponent() {
		undo()
		return false
	}
	after := g.Topology()
	if !improves(c.counts, after) {
		undo()
		return false
	}
	c.counts = after
	c.changed += len(voxels)
	c.edits++
	return true
}

// mayDropComponent reports whether an edit could remove a whole object or
// cavity, which the local count alone cannot judge
func (c *run) mayDropComponent() bool {
	return c.counts.Objects > 1 || c.counts.Cavities > 0
}

// Apply corrects a copy of seg with the selected method and reports the
// topology before and after. The input grid is not modified. Correction is
// best effort: Report.Residual tells whether defects remain.
func Apply(ctx context.Context, seg *volume.Grid, method Method, opts Options) (*volume.Grid, *Report, error) {
	steps, err := method.steps()
	if err != nil {
		return nil, nil, err
	}
	if seg.Components != 1 {
		return nil, nil, fmt.Errorf("%w: segmentation must be scalar", volume.ErrDimensionMismatch)
	}
	if opts.RadialPositionMap != nil {
		if err := seg.SameGeometry(opts.RadialPositionMap); err != nil {
			return nil, nil, fmt.Errorf("radial position map: %w", err)
		}
	}
	if opts.MaxRadius <= 0 {
		opts.MaxRadius = DefaultOptions().MaxRadius
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}

	c := &run{ctx: ctx, seg: seg.Binary(), opts: opts}
	c.counts = c.seg.Topology()
	report := &Report{Method: method, Before: c.counts}
	c.logf("Topology before correction: %d objects, %d cavities, %d holes, Euler %d\n",
		c.counts.Objects, c.counts.Cavities, c.counts.Holes, c.counts.EulerCount)

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		c.changed, c.edits = 0, 0
		if err := step.correct(c); err != nil {
			return nil, nil, fmt.Errorf("%s correction failed: %w", step.name(), err)
		}
		report.Steps = append(report.Steps, StepReport{
			Name:          step.name(),
			Counts:        c.counts,
			VoxelsChanged: c.changed,
			Edits:         c.edits,
		})
		report.VoxelsChanged += c.changed
		c.logf("%s correction: %d edits, %d voxels changed, %d holes left\n",
			step.name(), c.edits, c.changed, c.counts.Holes)
	}

	report.After = c.counts
	report.Residual = !c.counts.Correct()
	return c.seg, report, nil
}
