// Package segmentation runs the SureFit pipeline: it turns an anatomical MRI
// volume, or an existing segmentation, into a topologically corrected
// segmentation volume and the cortical surfaces reconstructed from it.
package segmentation

import (
	"io"
	"runtime"

	"surefit/internal/models"
	"surefit/pkg/correction"
	"surefit/pkg/volume"
)

// Params holds everything one pipeline run needs. Stage flags select which
// steps run; Validate checks that the selection is consistent.
type Params struct {
	// Anatomy is the intensity-normalized (0-255) anatomical volume. It is
	// read, never modified.
	Anatomy *volume.Grid

	// Segmentation is an existing segmentation to start from when the
	// anatomy stages are skipped or fail to find tissue peaks
	Segmentation *volume.Grid

	// Mask optionally restricts the white matter and the boundary masks
	Mask *volume.Grid

	// WhiteMatterMaximum turns off anatomy voxels brighter than it (0 = off)
	WhiteMatterMaximum float64

	Structure models.Structure

	// Peaks are the gray/white intensities; zero peaks are estimated from the
	// anatomy histogram
	Peaks models.PeakIntensities

	// MidThreshOverride replaces the white matter threshold when positive
	MidThreshOverride float64

	// ACIndex overrides the AC voxel computed from the anatomy geometry
	ACIndex *[3]int

	// RequireAC turns an AC outside the volume into a failure instead of a
	// warning
	RequireAC bool

	// Padding describes the cut faces of a partial hemisphere
	Padding models.PaddingSpec

	DisconnectEye          bool
	DisconnectHindbrain    bool
	HindbrainHighThreshold bool
	CutCorpusCallosum      bool
	GenerateInnerBoundary  bool
	GenerateOuterBoundary  bool
	GenerateSegmentation   bool
	FillVentricles         bool

	// VentricleSeed, when set, is flooded instead of searching the ventricles
	// with a threshold sweep
	VentricleSeed *[3]int

	// ErrorCorrection selects the topology correction; None skips the stage
	ErrorCorrection correction.Method
	Correction      correction.Options

	// GenerateSurfaces extracts the raw and fiducial surfaces
	GenerateSurfaces bool

	// MaximumPolygons reduces the surfaces to at most this many triangles
	// (0 keeps full resolution)
	MaximumPolygons int

	// ReducedPolygonFraction, when MaximumPolygons is 0 and it lies in (0, 1),
	// reduces the surfaces to that fraction of the extracted triangles
	ReducedPolygonFraction float64

	// TopologicallyCorrect adds a fiducial surface forced to Euler number 2
	TopologicallyCorrect bool

	// FiducialSmoothing is the number of smoothing iterations that turn the
	// raw surface into the fiducial one
	FiducialSmoothing int

	// GenerateInflated adds an inflated surface
	GenerateInflated  bool
	InflateIterations int

	// NumCores bounds the smoothing workers
	NumCores int

	// MemoryLimit bounds the bytes held by intermediate grids (0 = unlimited)
	MemoryLimit int64

	// Log receives the progress lines; nil is silent
	Log io.Writer

	// SaveIntermediaryResults writes every intermediate grid to
	// IntermediaryDir as .npy
	SaveIntermediaryResults bool
	IntermediaryDir         string
}

// DefaultParams returns parameters that run every stage on an anatomy
// volume, without error correction
func DefaultParams() *Params {
	return &Params{
		DisconnectEye:         true,
		DisconnectHindbrain:   true,
		CutCorpusCallosum:     true,
		GenerateInnerBoundary: true,
		GenerateOuterBoundary: true,
		GenerateSegmentation:  true,
		FillVentricles:        true,
		ErrorCorrection:       correction.None,
		Correction:            correction.DefaultOptions(),
		GenerateSurfaces:      true,
		FiducialSmoothing:     2,
		InflateIterations:     100,
		NumCores:              runtime.NumCPU(),
	}
}

// anatomyStages reports whether any stage reading the anatomy is enabled
func (p *Params) anatomyStages() bool {
	return p.DisconnectEye || p.DisconnectHindbrain || p.CutCorpusCallosum ||
		p.GenerateInnerBoundary || p.GenerateOuterBoundary || p.GenerateSegmentation
}

// downstream reports whether any stage needs a segmentation volume
func (p *Params) downstream() bool {
	return p.FillVentricles || p.ErrorCorrection != correction.None || p.GenerateSurfaces
}

// Validate checks the stage combination and the input volumes once, before
// anything runs
func (p *Params) Validate() error {
	if p.Anatomy == nil && p.Segmentation == nil {
		return preconditionf("no anatomy or segmentation volume")
	}
	if p.Structure == models.StructureUnknown {
		return preconditionf("unable to determine structure")
	}
	if (p.TopologicallyCorrect || p.GenerateInflated) && !p.GenerateSurfaces {
		return preconditionf("topologically correct and inflated surfaces require surface generation")
	}
	if p.GenerateOuterBoundary && !p.GenerateInnerBoundary {
		return preconditionf("outer boundary generation requires the inner boundary")
	}
	if p.GenerateSegmentation && !(p.GenerateInnerBoundary && p.GenerateOuterBoundary) {
		return preconditionf("segmentation generation requires both boundaries")
	}
	if p.Anatomy == nil {
		if p.anatomyStages() {
			return preconditionf("anatomy stages selected without an anatomy volume")
		}
		if p.FillVentricles && p.VentricleSeed == nil {
			return preconditionf("ventricle fill without an anatomy volume needs a ventricle seed")
		}
	}
	if !p.GenerateSegmentation && p.Segmentation == nil && p.downstream() {
		return preconditionf("stages after segmentation need an input segmentation when segmentation is not generated")
	}
	if !p.ErrorCorrection.Valid() {
		return preconditionf("invalid error correction method %v", p.ErrorCorrection)
	}

	ref := p.Anatomy
	if ref == nil {
		ref = p.Segmentation
	}
	for name, g := range map[string]*volume.Grid{"anatomy": p.Anatomy, "segmentation": p.Segmentation, "mask": p.Mask} {
		if g == nil {
			continue
		}
		if err := g.Validate(); err != nil {
			return preconditionf("%s volume: %v", name, err)
		}
		if g.Components != 1 {
			return preconditionf("%s volume must be scalar", name)
		}
		if err := ref.SameGeometry(g); err != nil {
			return preconditionf("%s volume: %v", name, err)
		}
	}
	if err := p.Padding.Validate(ref.Dims); err != nil {
		return preconditionf("%v", err)
	}
	if p.ACIndex != nil && !ref.InBounds(p.ACIndex[0], p.ACIndex[1], p.ACIndex[2]) && p.RequireAC {
		return preconditionf("AC index %v outside volume %v", *p.ACIndex, ref.Dims)
	}
	if p.VentricleSeed != nil && !ref.InBounds(p.VentricleSeed[0], p.VentricleSeed[1], p.VentricleSeed[2]) {
		return preconditionf("ventricle seed %v outside volume %v", *p.VentricleSeed, ref.Dims)
	}
	if p.MaximumPolygons != 0 && p.MaximumPolygons < 4 {
		return preconditionf("maximum polygons %d is below a tetrahedron", p.MaximumPolygons)
	}
	if p.ReducedPolygonFraction < 0 || p.ReducedPolygonFraction > 1 {
		return preconditionf("reduced polygon fraction %.2f outside [0, 1]", p.ReducedPolygonFraction)
	}
	if p.Peaks.White < 0 || p.Peaks.Gray < 0 {
		return preconditionf("negative peak intensities %+v", p.Peaks)
	}
	return nil
}
