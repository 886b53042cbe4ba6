package segmentation

import (
	"context"
	"errors"
	"fmt"

	"surefit/pkg/surface"
)

// Smoothing strengths of the fiducial and inflated surfaces
const (
	fiducialStrength = 0.5
	inflateStrength  = 1.0
)

func (p *Pipeline) logSurface(name string, s *surface.Surface) surface.EulerCounts {
	c := s.Topology.EulerCounts()
	p.logf("%s surface: %d vertices, %d triangles, %d objects, Euler number %d\n",
		name, c.Vertices, c.Faces, c.Objects, c.EulerNumber)
	return c
}

// generateSurfaces extracts the raw surface of the current segmentation,
// reduces it when a triangle budget is set and smooths a fiducial copy
func (p *Pipeline) generateSurfaces(ctx context.Context) error {
	seg := p.current()
	if seg == nil {
		return preconditionf("no segmentation to extract a surface from")
	}
	mt := surface.NewMarchingTetrahedra(seg)
	mt.SetPadding(p.params.Padding)
	s, err := mt.Extract()
	if err != nil {
		return fmt.Errorf("failed to extract surface: %w", err)
	}
	if len(s.Topology.Triangles) == 0 {
		return fmt.Errorf("failed to extract surface: segmentation is empty")
	}

	limit := p.params.MaximumPolygons
	if f := p.params.ReducedPolygonFraction; limit == 0 && f > 0 && f < 1 {
		limit = max(int(f*float64(len(s.Topology.Triangles))), 4)
	}
	if limit > 0 && len(s.Topology.Triangles) > limit {
		p.logf("Reducing %d triangles to at most %d\n", len(s.Topology.Triangles), limit)
		if s, err = surface.Reduce(s, limit); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.Fiducial = surface.Smooth(s.Topology, s.Raw, surface.SmoothParams{
		Strength:   fiducialStrength,
		Iterations: p.params.FiducialSmoothing,
		NumWorkers: p.params.NumCores,
	})
	if c := p.logSurface("Fiducial", s); !c.Sphere() {
		p.warnf("fiducial surface has %d objects and %d handles", c.Objects, c.Holes)
	}
	p.surface = s
	return nil
}

// correctSurface forces the fiducial surface to genus zero. A surface that
// already is a sphere is kept as is.
func (p *Pipeline) correctSurface(ctx context.Context) error {
	s := p.surface
	if s.Topology.EulerCounts().Sphere() {
		p.logf("Fiducial surface is already topologically correct\n")
		p.corrected = s
		return nil
	}
	corrected, err := surface.CorrectTopology(s)
	if err != nil && !errors.Is(err, surface.ErrCorrectionIncomplete) {
		return err
	}
	if err != nil {
		p.warnf("%v", err)
	}
	if labels := surface.TransferLabels(s, corrected.Raw); labels != nil {
		corrected.Labels = labels
	}
	p.logSurface("Topologically correct fiducial", corrected)
	p.corrected = corrected
	return nil
}

// inflateSurface smooths the (corrected) fiducial surface strongly. The
// inflated coordinates are the Raw set of the result.
func (p *Pipeline) inflateSurface(ctx context.Context) error {
	base := p.surface
	if p.corrected != nil {
		base = p.corrected
	}
	inflated := surface.Smooth(base.Topology, base.Primary(), surface.SmoothParams{
		Strength:   inflateStrength,
		Iterations: p.params.InflateIterations,
		NumWorkers: p.params.NumCores,
	})
	if err := ctx.Err(); err != nil {
		return err
	}
	p.inflated = &surface.Surface{Topology: base.Topology, Raw: inflated, Labels: base.Labels}
	p.logSurface("Inflated", p.inflated)
	return nil
}
