package segmentation

import (
	"context"
	"math"

	"surefit/pkg/volume"
)

// clamp255 limits a scalar grid to 0-255 in place
func clamp255(g *volume.Grid) *volume.Grid {
	for i, v := range g.Data {
		g.Data[i] = min(max(v, 0), 255)
	}
	return g
}

// complement returns 255 - v for every voxel
func complement(g *volume.Grid) *volume.Grid {
	out := g.Blank()
	for i := range out.Data {
		out.Data[i] = 255 - min(max(g.Data[i*g.Components], 0), 255)
	}
	return out
}

// opposed returns sqrt(max(0, -a.b)): large where two vector fields point
// against each other
func opposed(a, b *volume.Grid) (*volume.Grid, error) {
	dot, err := volume.Dot(a, b)
	if err != nil {
		return nil, err
	}
	for i, v := range dot.Data {
		if v < 0 {
			dot.Data[i] = float32(math.Sqrt(float64(-v)))
		} else {
			dot.Data[i] = 0
		}
	}
	return clamp255(dot), nil
}

// hypot combines two responses as sqrt(a*a + b*b), limited to 255
func hypot(a, b *volume.Grid) (*volume.Grid, error) {
	if err := a.SameGeometry(b); err != nil {
		return nil, err
	}
	out := a.Blank()
	for i := range out.Data {
		x, y := float64(a.Data[i]), float64(b.Data[i])
		out.Data[i] = float32(math.Hypot(x, y))
	}
	return clamp255(out), nil
}

// nearToPlane responds to thin sheets: voxels whose neighbours offset voxels
// away on either side along an axis carry opposing vectors. The response is
// the strongest opposition over the three axes, zeroed outside mask when one
// is given.
func nearToPlane(vec *volume.Grid, offset int, mask *volume.Grid) *volume.Grid {
	out := vec.Blank()
	dims := vec.Dims
	for k := 0; k < dims[2]; k++ {
		for j := 0; j < dims[1]; j++ {
			for i := 0; i < dims[0]; i++ {
				idx := vec.Index(i, j, k)
				if mask != nil && mask.Data[idx] == 0 {
					continue
				}
				best := float32(0)
				for a := 0; a < 3; a++ {
					lo := [3]int{i, j, k}
					hi := lo
					lo[a] = max(lo[a]-offset, 0)
					hi[a] = min(hi[a]+offset, dims[a]-1)
					ax, ay, az := vec.Vector(vec.Index(lo[0], lo[1], lo[2]))
					bx, by, bz := vec.Vector(vec.Index(hi[0], hi[1], hi[2]))
					if d := ax*bx + ay*by + az*bz; d < 0 {
						best = max(best, float32(math.Sqrt(float64(-d))))
					}
				}
				out.Data[idx] = min(best, 255)
			}
		}
	}
	return out
}

// ventricleGradientLevel marks the strong gradients along the lateral
// ventricle wall, blurred and limited to the box beside and behind the AC
func (p *Pipeline) ventricleGradientLevel(mag *volume.Grid) *volume.Grid {
	if !p.acValid {
		return mag.Blank()
	}
	d := p.peaks.White - p.peaks.Gray/2
	level := mag.ClassifyIntensities(d/2, d/3, d, 1.5).Blur().Blur()
	ac := p.ac
	x0, x1 := p.limits.xRange(10, 40)
	return level.MaskExtent(volume.NewExtent(x0, x1, ac[1]-75, ac[1], ac[2]-20, ac[2]+20))
}

// generateInnerBoundary estimates the white/gray boundary: where the gray
// matter membership rises against an intensity gradient of white/gray
// contrast, plus thin white matter sheets the gradient test misses
func (p *Pipeline) generateInnerBoundary(ctx context.Context) error {
	anat := p.params.Anatomy
	ac := p.ac
	gm, wm := p.peaks.Gray, p.peaks.White

	grad := anat.Gradient()
	mag, err := grad.Magnitude()
	if err != nil {
		return err
	}
	clamp255(mag)
	if err := p.keep(gridGradIntensity, grad); err != nil {
		return err
	}
	if err := p.keep(gridGradIntensityMag, mag); err != nil {
		return err
	}

	gwDiff := wm - gm
	gradGW, err := grad.ReplaceMagnitude(mag.ClassifyIntensities(gwDiff/2, gwDiff/4, gwDiff, 1.5))
	if err != nil {
		return err
	}
	gradThin, err := grad.ReplaceMagnitude(mag.ClassifyIntensities(gwDiff/4, gwDiff/8, gwDiff/2, 1.5))
	if err != nil {
		return err
	}

	cgm := p.th.GrayMatter
	gmLevel := anat.ClassifyIntensities(cgm.Peak, cgm.Low, cgm.High, cgm.Signum)
	if err := p.keep(gridGMLevel, gmLevel); err != nil {
		return err
	}
	in := p.th.InnerBoundary
	gmGrad, err := gmLevel.Gradient().ReplaceMagnitude(anat.ClassifyIntensities(in.Peak, in.Low, in.High, in.Signum))
	if err != nil {
		return err
	}
	inTotal, err := opposed(gmGrad, gradGW)
	if err != nil {
		return err
	}
	if err := p.keep(gridInTotal, inTotal); err != nil {
		return err
	}

	// thin white matter, reinforced near the ventricles
	thin := nearToPlane(gradThin, 1, p.arena.get(gridInnerMask))
	thinBlur := thin.Blur()
	thinSq, err := volume.Combine(volume.Multiply, thinBlur, thinBlur)
	if err != nil {
		return err
	}
	vent := p.ventricleGradientLevel(mag)
	if err := p.keep(gridVentGradLevelBlur, vent); err != nil {
		return err
	}
	nearVent, err := volume.Combine(volume.Multiply, thinSq, vent)
	if err != nil {
		return err
	}
	if thin, err = volume.Combine(volume.Max, thin, nearVent); err != nil {
		return err
	}

	hc := anat.Blank()
	if p.acValid {
		x0, x1 := p.limits.xRange(10, 40)
		hc = thin.MaskExtent(volume.NewExtent(x0, x1, ac[1]-45, ac[1]+20, 0, ac[2]))
	}
	if err := p.keep(gridThinWMOrNearVentricle, hc); err != nil {
		return err
	}

	thinTotal, err := volume.Combine(volume.Max, thin, inTotal)
	if err != nil {
		return err
	}
	if err := p.keep(gridInTotalThinWM, thinTotal); err != nil {
		return err
	}
	return p.keep(gridInTotalBlur, thinTotal.Blur())
}

// generateOuterBoundary estimates the gray/CSF boundary: where the non-gray
// membership rises against the pial intensity gradient, plus the far side of
// thin gyri facing the inner boundary
func (p *Pipeline) generateOuterBoundary(ctx context.Context) error {
	anat := p.params.Anatomy
	gm := p.peaks.Gray
	grad := p.arena.get(gridGradIntensity)
	mag := p.arena.get(gridGradIntensityMag)

	gradPia, err := grad.ReplaceMagnitude(mag.ClassifyIntensities(2*gm/3, gm/3, gm, 1))
	if err != nil {
		return err
	}
	out := p.th.OuterBoundary
	solidGrad, err := complement(p.arena.get(gridGMLevel)).Gradient().
		ReplaceMagnitude(anat.ClassifyIntensities(out.Peak, out.Low, out.High, out.Signum))
	if err != nil {
		return err
	}
	pial, err := opposed(solidGrad, gradPia)
	if err != nil {
		return err
	}

	thinTotal := p.arena.get(gridInTotalThinWM)
	gradThinTotal, err := grad.ReplaceMagnitude(thinTotal)
	if err != nil {
		return err
	}
	opposite := nearToPlane(gradThinTotal, 2, p.arena.get(gridOuterMask))

	allowed := anat.Blank()
	allowed.SetAll(255)
	wm := p.arena.get(gridCerebralWMNoBstemFill)
	if wm == nil {
		wm = p.arena.get(gridCerebralWM)
	}
	if wm != nil {
		if allowed, err = volume.Combine(volume.Subtract, allowed, wm); err != nil {
			return err
		}
		if allowed, err = volume.Combine(volume.Difference, allowed, thinTotal); err != nil {
			return err
		}
	}
	if opposite, err = volume.Combine(volume.Sqrt, opposite, allowed); err != nil {
		return err
	}
	if opposite, err = volume.Combine(volume.Difference, opposite, p.arena.get(gridThinWMOrNearVentricle)); err != nil {
		return err
	}

	outTotal, err := hypot(pial, opposite)
	if err != nil {
		return err
	}
	if err := p.keep(gridOutTotal, outTotal); err != nil {
		return err
	}
	outBlur, err := volume.Combine(volume.Difference, outTotal, p.arena.get(gridVentGradLevelBlur))
	if err != nil {
		return err
	}
	p.arena.release(gridGMLevel, gridGradIntensityMag, gridInTotalThinWM,
		gridThinWMOrNearVentricle, gridOuterMask, gridCerebralWMNoBstemFill)
	return p.keep(gridOutTotalBlur, outBlur.Blur())
}
