package segmentation

import (
	"context"
	"fmt"

	"surefit/pkg/volume"
)

// inOutDiffThresh is the radial position above which a voxel belongs to the
// segmentation
const inOutDiffThresh = 150

// sulcalSheets finds thin sheets where the inner and outer boundaries face
// each other across a sulcus, near the first segmentation estimate and
// outside the white matter
func (p *Pipeline) sulcalSheets(estimate, wm *volume.Grid) (*volume.Grid, error) {
	opp, err := opposed(p.arena.get(gridOutTotal).Gradient(), p.arena.get(gridInTotal).Gradient())
	if err != nil {
		return nil, err
	}
	vec, err := p.arena.get(gridGradIntensity).ReplaceMagnitude(opp)
	if err != nil {
		return nil, err
	}
	sheets := nearToPlane(vec, 1, estimate.Shell(2, 1))
	if sheets, err = volume.Combine(volume.Subtract, sheets, wm.MorphOps(1, 0)); err != nil {
		return nil, err
	}
	return volume.Combine(volume.Difference, sheets, p.arena.get(gridVentGradLevelBlur))
}

// generateSegmentation balances the inner against the outer boundary into
// the radial position map and keeps its biggest object above
// inOutDiffThresh, cavities filled
func (p *Pipeline) generateSegmentation(ctx context.Context) error {
	anat := p.params.Anatomy
	inBlur := p.arena.get(gridInTotalBlur)
	outBlur := p.arena.get(gridOutTotalBlur)

	in, mask := inBlur, p.arena.get(gridCerebralWMErode)
	wmBase := mask
	inner := p.arena.get(gridInnerMask)
	if inner != nil && mask != nil {
		var err error
		if in, err = volume.Combine(volume.Multiply, inBlur, inner); err != nil {
			return err
		}
	} else {
		wm, ok, err := anat.Threshold(p.th.WhiteMatter).FloodBiggestObject(anat.Full(), volume.Conn6)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("failed to find white matter above threshold %.1f", p.th.WhiteMatter)
		}
		mask, wmBase = wm.MorphOps(0, 2), wm
	}

	rpm, err := volume.DiffRatio(in, outBlur, mask)
	if err != nil {
		return err
	}
	estimate, ok, err := rpm.Threshold(inOutDiffThresh).FloodBiggestObject(rpm.Full(), volume.Conn6)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to find tissue above radial position %d", inOutDiffThresh)
	}
	sheets, err := p.sulcalSheets(estimate, wmBase)
	if err != nil {
		return err
	}
	if rpm, err = volume.Combine(volume.Difference, rpm, sheets); err != nil {
		return err
	}
	if err := p.keep(gridRadialPositionMap, rpm); err != nil {
		return err
	}

	seg, ok, err := rpm.Threshold(inOutDiffThresh).FloodBiggestObject(rpm.Full(), volume.Conn6)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to find tissue above radial position %d after the sulcal cut", inOutDiffThresh)
	}
	if seg, err = seg.FillCavities(volume.Conn14); err != nil {
		return err
	}

	p.arena.release(gridInTotal, gridOutTotal, gridInTotalBlur, gridOutTotalBlur,
		gridGradIntensity, gridInnerMask, gridCerebralWMErode)
	return p.keep(gridSegmentation, seg)
}
