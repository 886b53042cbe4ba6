package segmentation

import (
	"context"
	"fmt"

	"surefit/internal/models"
	"surefit/pkg/volume"
)

// ventricleSteps bounds the grow-back of the ventricles into the
// segmentation's surroundings
const ventricleSteps = 5

// findVentricles sweeps inverse thresholds down from just above the CSF
// threshold until the biggest dark object above the AC reaches no lower
// than 20 voxels below it. It returns nil when none qualifies.
func (p *Pipeline) findVentricles() (*volume.Grid, error) {
	anat := p.params.Anatomy
	ac, lim := p.ac, p.limits
	dims := anat.Dims

	x0, x1 := lim.xRange(0, 1)
	midline := anat.MakePlane(volume.Plane{
		Slope:     [3]float64{1, 0, 0},
		Offset:    [3]float64{float64(ac[0]), float64(ac[1]), float64(ac[2])},
		Thickness: 2,
	}).MaskExtent(volume.NewExtent(x0, x1, ac[1]-40, ac[1]+30, 0, ac[2]+30))

	pad := p.params.Padding
	inside := volume.NewExtent(
		pad.Effective(models.FaceNegX), dims[0]-1-pad.Effective(models.FacePosX),
		pad.Effective(models.FaceNegY), dims[1]-1-pad.Effective(models.FacePosY),
		pad.Effective(models.FaceNegZ), dims[2]-1-pad.Effective(models.FacePosZ),
	)

	w0, w1 := lim.xRange(0, 20)
	search := volume.NewExtent(w0, w1, ac[1]-20, ac[1]+20, ac[2]+20, ac[2]+40)
	if search.Clamp(dims).Empty() {
		p.logf("Ventricle search region above the AC lies outside the volume\n")
		return nil, nil
	}

	for t := int(p.th.CSF) + 10; t > 0; t -= 5 {
		dark, err := volume.Combine(volume.Subtract, anat.InverseThreshold(float64(t)).MaskExtent(inside), midline)
		if err != nil {
			return nil, err
		}
		vent, ok, err := dark.FloodBiggestObject(search, volume.Conn6)
		if err != nil {
			return nil, err
		}
		if !ok {
			p.logf("Ventricle not found within limits at threshold %d\n", t)
			return nil, nil
		}
		if e, _ := vent.Limits(); e.Min[2] > ac[2]-20 {
			p.logf("Ventricle found at threshold %d\n", t)
			return vent, nil
		}
	}
	return nil, nil
}

// fillVentricles adds the lateral ventricle to the segmentation. It only
// ever sets voxels.
func (p *Pipeline) fillVentricles(ctx context.Context) error {
	seg := p.current()
	if seg == nil {
		return p.skip("skipping ventricle fill: no segmentation")
	}

	var vent *volume.Grid
	var err error
	switch {
	case p.params.VentricleSeed != nil:
		vent, err = p.seededVentricles(seg, *p.params.VentricleSeed)
	case p.params.Anatomy == nil:
		return p.skip("skipping ventricle fill: no anatomy volume and no seed")
	case !p.acValid:
		return p.skip("skipping ventricle fill: AC not in volume")
	default:
		vent, err = p.findVentricles()
	}
	if err != nil {
		return err
	}
	if vent == nil {
		p.warnf("ventricles not found, segmentation left unfilled")
		return p.keep(gridVentriclesFilled, seg.Clone())
	}

	h0, h1 := p.limits.hemisphere()
	if !p.acValid {
		h0, h1 = 0, seg.Dims[0]-1
	}
	grown, err := vent.Sculpt(seg, volume.SculptOutside, ventricleSteps,
		volume.NewExtent(h0, h1, 0, seg.Dims[1]-1, 0, seg.Dims[2]-1))
	if err != nil {
		return err
	}
	filled, err := volume.Combine(volume.Or, seg, grown)
	if err != nil {
		return err
	}
	p.logf("Ventricle fill added %d voxels\n", filled.Count()-seg.Count())
	return p.keep(gridVentriclesFilled, filled)
}

// seededVentricles floods the unset voxels connected to seed, the cavity a
// user pointed at. A seed inside the segmentation or in the background that
// reaches the grid faces finds nothing to fill.
func (p *Pipeline) seededVentricles(seg *volume.Grid, seed [3]int) (*volume.Grid, error) {
	if seg.At(seed[0], seed[1], seed[2]) != 0 {
		p.logf("Ventricle seed %v lies inside the segmentation\n", seed)
		return nil, nil
	}
	if p.params.Anatomy != nil {
		t := p.th.CSF + 10
		if t <= 10 {
			t = float64(p.params.Anatomy.At(seed[0], seed[1], seed[2])) + 1
		}
		dark, err := volume.Combine(volume.Subtract, p.params.Anatomy.InverseThreshold(t), seg)
		if err != nil {
			return nil, err
		}
		vent, err := dark.FloodFill(seed, volume.Conn6)
		if err != nil {
			return nil, fmt.Errorf("failed to flood ventricle seed: %w", err)
		}
		if vent.Count() > 0 {
			return vent, nil
		}
	}
	vent, err := seg.Invert().FloodFill(seed, volume.Conn6)
	if err != nil {
		return nil, fmt.Errorf("failed to flood ventricle seed: %w", err)
	}
	if e, _ := vent.Limits(); e.Min[0] == 0 || e.Min[1] == 0 || e.Min[2] == 0 ||
		e.Max[0] == seg.Dims[0]-1 || e.Max[1] == seg.Dims[1]-1 || e.Max[2] == seg.Dims[2]-1 {
		p.logf("Ventricle seed %v reaches the grid faces\n", seed)
		return nil, nil
	}
	return vent, nil
}
