package segmentation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"surefit/internal/models"
	"surefit/pkg/correction"
	"surefit/pkg/export"
	"surefit/pkg/surface"
	"surefit/pkg/volume"
)

// Names of the grids kept between stages
const (
	gridEyeFatSculpt          = "EyeFat.sculpt"
	gridWMThreshNoEye         = "WM.thresh_noEye"
	gridCerebralWMNoBstemFill = "CerebralWM_noBstemFill"
	gridCorpusCallosumSlice   = "CorpusCallosumSlice"
	gridCerebralWM            = "CerebralWM"
	gridCerebralWMErode       = "CerebralWM.erode"
	gridInnerMask             = "InnerMask"
	gridOuterMask             = "OuterMask"
	gridGradIntensity         = "Grad.Intensity"
	gridGradIntensityMag      = "Grad.Intensity.mag"
	gridGMLevel               = "GM.Ilevel"
	gridInTotal               = "In.Total"
	gridInTotalThinWM         = "In.Total.ThinWM"
	gridInTotalBlur           = "In.Total.blur1"
	gridThinWMOrNearVentricle = "ThinWMOrNearVentricle.HCmask"
	gridVentGradLevelBlur     = "VentGradLevel.blur"
	gridOutTotal              = "Out.Total"
	gridOutTotalBlur          = "Out.Total.blur1"
	gridRadialPositionMap     = "RadialPositionMap"
	gridSegmentation          = "Segmentation"
	gridVentriclesFilled      = "Segmentation.vent"
	gridPadded                = "Segmentation.padded"
	gridCorrected             = "Segmentation.corrected"
)

// errSkipped marks a stage that decided not to run; the reason is already a
// warning
var errSkipped = errors.New("stage skipped")

// Pipeline runs one segmentation. It owns every intermediate grid for the
// duration of Process.
type Pipeline struct {
	params *Params
	arena  *arena

	ac         [3]int
	acValid    bool
	limits     acLimits
	peaks      models.PeakIntensities
	th         models.Thresholds
	useAnatomy bool

	step     int
	stage    Stage
	stages   []string
	warnings []string

	correction *correction.Report
	surface    *surface.Surface
	corrected  *surface.Surface
	inflated   *surface.Surface
}

// Result holds the products of a successful run
type Result struct {
	// Segmentation is the final segmentation: corrected, padded and
	// ventricle-filled as far as those stages ran
	Segmentation *volume.Grid

	// RadialPositionMap is the in/out boundary balance the segmentation was
	// thresholded from (nil when segmentation was not generated)
	RadialPositionMap *volume.Grid

	// Volumes holds the intermediate products still owned at the end of the
	// run, by name
	Volumes map[string]*volume.Grid

	// Topology describes Segmentation
	Topology volume.TopologyCounts

	Correction *correction.Report

	// Surface carries the raw and fiducial coordinates on one topology
	Surface *surface.Surface

	// CorrectedSurface is the fiducial surface forced to genus zero
	CorrectedSurface *surface.Surface

	// InflatedSurface carries the inflated coordinates as Raw
	InflatedSurface *surface.Surface

	ACIndex    [3]int
	ACInVolume bool
	Peaks      models.PeakIntensities
	Warnings   []string
	Stages     []string
}

// NewPipeline validates the parameters and prepares a run
func NewPipeline(params *Params) (*Pipeline, error) {
	if params == nil {
		return nil, &StageError{Stage: StageSetup, Err: preconditionf("no parameters")}
	}
	if err := params.Validate(); err != nil {
		return nil, stageErr(StageSetup, err)
	}
	return &Pipeline{params: params, arena: newArena(params.MemoryLimit)}, nil
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.params.Log != nil {
		fmt.Fprintf(p.params.Log, format, args...)
	}
}

// warnf records a degenerate-but-continuable condition
func (p *Pipeline) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.warnings = append(p.warnings, msg)
	p.logf("Warning: %s\n", msg)
}

// skip records why a stage does not run
func (p *Pipeline) skip(format string, args ...interface{}) error {
	p.warnf(format, args...)
	return errSkipped
}

// keep hands g to the arena and dumps it when intermediary results are saved
func (p *Pipeline) keep(name string, g *volume.Grid) error {
	if err := p.arena.keep(name, g); err != nil {
		return err
	}
	p.saveIntermediaryResult(name, g)
	return nil
}

// saveIntermediaryResult writes g below IntermediaryDir/<step>_<stage>
func (p *Pipeline) saveIntermediaryResult(name string, g *volume.Grid) {
	if !p.params.SaveIntermediaryResults || p.params.IntermediaryDir == "" {
		return
	}
	dir := filepath.Join(p.params.IntermediaryDir, fmt.Sprintf("%02d_%s", p.step, p.stage))
	if err := export.WriteVolume(filepath.Join(dir, name+".npy"), g); err != nil {
		p.logf("Warning: Failed to save %s: %v\n", name, err)
	}
}

// current returns the latest segmentation
func (p *Pipeline) current() *volume.Grid {
	for _, name := range []string{gridCorrected, gridPadded, gridVentriclesFilled, gridSegmentation} {
		if g := p.arena.get(name); g != nil {
			return g
		}
	}
	return nil
}

type pipelineStep struct {
	stage    Stage
	title    string
	enabled  func() bool
	optional bool
	run      func(context.Context) error
}

func (p *Pipeline) steps() []pipelineStep {
	pr := p.params
	anatomy := func(flag bool) func() bool {
		return func() bool { return p.useAnatomy && flag }
	}
	return []pipelineStep{
		{StageDisconnectEye, "Disconnecting eye", anatomy(pr.DisconnectEye), false, p.disconnectEye},
		{StageDisconnectHind, "Disconnecting hindbrain", anatomy(pr.DisconnectHindbrain), false, p.disconnectHindbrain},
		{StageCutCorpusCallosum, "Cutting corpus callosum", anatomy(pr.CutCorpusCallosum), false, p.cutCorpusCallosum},
		{StageMask, "Applying volume mask and white matter maximum", func() bool {
			return p.arena.get(gridCerebralWMErode) != nil && (pr.Mask != nil || pr.WhiteMatterMaximum > 0)
		}, false, p.applyMask},
		{StageInnerBoundary, "Generating inner boundary", anatomy(pr.GenerateInnerBoundary), false, p.generateInnerBoundary},
		{StageOuterBoundary, "Generating outer boundary", anatomy(pr.GenerateOuterBoundary), false, p.generateOuterBoundary},
		{StageSegmentation, "Generating segmentation", anatomy(pr.GenerateSegmentation), false, p.generateSegmentation},
		{StageFillVentricles, "Filling ventricles", func() bool { return pr.FillVentricles }, true, p.fillVentricles},
		{StagePadding, "Padding cut faces", func() bool { return pr.Padding.Active() }, false, p.padCutFaces},
		{StageErrorCorrection, "Correcting segmentation topology", func() bool {
			return pr.ErrorCorrection != correction.None
		}, false, p.correctErrors},
		{StageSurface, "Generating raw and fiducial surfaces", func() bool { return pr.GenerateSurfaces }, false, p.generateSurfaces},
		{StageCorrectSurface, "Generating topologically correct fiducial surface", func() bool {
			return pr.TopologicallyCorrect && p.surface != nil
		}, true, p.correctSurface},
		{StageInflate, "Generating inflated surface", func() bool {
			return pr.GenerateInflated && p.surface != nil
		}, true, p.inflateSurface},
	}
}

// Process runs every enabled stage in order. A failing mandatory stage
// aborts the run, releases every intermediate grid and returns a
// *StageError; failing optional stages only add warnings. ctx is checked
// between stages.
func (p *Pipeline) Process(ctx context.Context) (*Result, error) {
	p.step = 1
	p.stage = StageSetup
	p.logf("Step 1: Preparing %s segmentation...\n", p.params.Structure)
	if err := p.setup(); err != nil {
		return nil, p.fail(StageSetup, err)
	}
	p.stages = append(p.stages, string(StageSetup))

	for _, s := range p.steps() {
		if !s.enabled() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, p.fail(s.stage, err)
		}
		p.step++
		p.stage = s.stage
		p.logf("Step %d: %s...\n", p.step, s.title)

		err := s.run(ctx)
		switch {
		case err == nil:
			p.stages = append(p.stages, string(s.stage))
		case errors.Is(err, errSkipped):
		case s.optional && ctx.Err() == nil && !errors.Is(err, ErrResourceExhausted):
			p.warnf("%s failed, continuing without it: %v", s.stage, err)
		default:
			return nil, p.fail(s.stage, err)
		}
	}

	return p.result(), nil
}

// fail releases the run and wraps err for stage
func (p *Pipeline) fail(stage Stage, err error) error {
	p.arena.reset()
	p.surface, p.corrected, p.inflated = nil, nil, nil
	return stageErr(stage, err)
}

func (p *Pipeline) result() *Result {
	r := &Result{
		Segmentation:      p.current(),
		RadialPositionMap: p.arena.get(gridRadialPositionMap),
		Volumes:           make(map[string]*volume.Grid),
		Correction:        p.correction,
		Surface:           p.surface,
		CorrectedSurface:  p.corrected,
		InflatedSurface:   p.inflated,
		ACIndex:           p.ac,
		ACInVolume:        p.acValid,
		Peaks:             p.peaks,
		Warnings:          p.warnings,
		Stages:            p.stages,
	}
	for _, name := range p.arena.names() {
		r.Volumes[name] = p.arena.get(name)
	}
	if r.Segmentation != nil {
		r.Topology = r.Segmentation.Topology()
		p.logf("Segmentation: %d objects, %d cavities, %d holes, Euler count %d\n",
			r.Topology.Objects, r.Topology.Cavities, r.Topology.Holes, r.Topology.EulerCount)
	}
	return r
}

// Report summarises the run for the user
func (r *Result) Report(structure models.Structure) *export.Report {
	rep := &export.Report{
		Created:      time.Now(),
		Structure:    structure.String(),
		Segmentation: r.Topology,
		Correction:   r.Correction,
		Warnings:     r.Warnings,
		Stages:       r.Stages,
	}
	for _, s := range []struct {
		name string
		surf *surface.Surface
	}{
		{"fiducial", r.Surface},
		{"fiducial.corrected", r.CorrectedSurface},
		{"inflated", r.InflatedSurface},
	} {
		if s.surf != nil {
			rep.Surfaces = append(rep.Surfaces, export.SurfaceReport{Name: s.name, Counts: s.surf.Topology.EulerCounts()})
		}
	}
	return rep
}

// setup locates the AC, settles the peaks and thresholds and decides
// whether the anatomy stages run
func (p *Pipeline) setup() error {
	pr := p.params
	ref := pr.Anatomy
	if ref == nil {
		ref = pr.Segmentation
	}

	if pr.ACIndex != nil {
		p.ac = *pr.ACIndex
		p.acValid = ref.InBounds(p.ac[0], p.ac[1], p.ac[2])
	} else {
		ac, ok, err := ref.ACIndex()
		if err != nil {
			return fmt.Errorf("failed to locate the anterior commissure: %w", err)
		}
		p.ac, p.acValid = ac, ok
	}
	if !p.acValid {
		if pr.RequireAC {
			return preconditionf("AC %v not in volume %v", p.ac, ref.Dims)
		}
		p.warnf("AC %v not in volume %v", p.ac, ref.Dims)
	} else {
		p.logf("AC voxel: %v\n", p.ac)
	}
	p.limits = newACLimits(p.ac, ref.Dims, pr.Structure)

	p.useAnatomy = pr.Anatomy != nil && pr.anatomyStages()
	if p.useAnatomy {
		p.peaks = pr.Peaks
		if p.peaks.Zero() {
			est, ok := pr.Anatomy.EstimatePeaks()
			switch {
			case ok:
				p.peaks = est
				p.logf("Estimated peaks: gray %.1f, white %.1f\n", est.Gray, est.White)
			case pr.Segmentation != nil:
				p.warnf("unable to separate gray and white matter peaks, using the input segmentation")
				p.useAnatomy = false
			default:
				return preconditionf("unable to separate gray and white matter peaks")
			}
		}
	}
	if p.useAnatomy {
		if !p.peaks.Valid() {
			return &StageError{
				Stage: p.firstAnatomyStage(),
				Err:   preconditionf("white matter peak %.1f must exceed gray matter peak %.1f > 0", p.peaks.White, p.peaks.Gray),
			}
		}
		p.th = models.DeriveThresholds(p.peaks, pr.MidThreshOverride)
		p.logf("White matter threshold: %.1f, CSF threshold: %.1f\n", p.th.WhiteMatter, p.th.CSF)
	}

	if pr.Segmentation != nil && (!p.useAnatomy || !pr.GenerateSegmentation) {
		if err := p.keep(gridSegmentation, pr.Segmentation.Binary()); err != nil {
			return err
		}
	}
	return nil
}

// firstAnatomyStage names the first stage that needs the thresholds
func (p *Pipeline) firstAnatomyStage() Stage {
	pr := p.params
	switch {
	case pr.DisconnectEye:
		return StageDisconnectEye
	case pr.DisconnectHindbrain:
		return StageDisconnectHind
	case pr.CutCorpusCallosum:
		return StageCutCorpusCallosum
	case pr.GenerateInnerBoundary:
		return StageInnerBoundary
	case pr.GenerateOuterBoundary:
		return StageOuterBoundary
	}
	return StageSegmentation
}

// requireAC skips AC-relative stages when the AC lies outside the grid
func (p *Pipeline) requireAC(what string) error {
	if p.acValid {
		return nil
	}
	return p.skip("skipping %s: AC not in volume", what)
}

// correctErrors runs the selected topology correction on the current
// segmentation. Residual defects are reported, not treated as failure.
func (p *Pipeline) correctErrors(ctx context.Context) error {
	seg := p.current()
	if seg == nil {
		return preconditionf("no segmentation to correct")
	}
	opts := p.params.Correction
	opts.RadialPositionMap = p.arena.get(gridRadialPositionMap)
	opts.Log = p.params.Log

	fixed, report, err := correction.Apply(ctx, seg, p.params.ErrorCorrection, opts)
	if err != nil {
		return fmt.Errorf("failed to correct segmentation: %w", err)
	}
	p.correction = report
	if report.Residual {
		p.warnf("segmentation still has %d objects, %d cavities and %d holes after %s correction",
			report.After.Objects, report.After.Cavities, report.After.Holes, report.Method)
	}
	return p.keep(gridCorrected, fixed)
}

// padCutFaces extrudes the segmentation through the padding band of every
// cut face
func (p *Pipeline) padCutFaces(ctx context.Context) error {
	seg := p.current()
	if seg == nil {
		return p.skip("skipping padding: no segmentation")
	}
	return p.keep(gridPadded, seg.Pad(p.params.Padding))
}
