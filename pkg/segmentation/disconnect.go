package segmentation

import (
	"context"
	"fmt"

	"surefit/pkg/volume"
)

// maxThresholdPasses bounds the threshold sweeps of the disconnection stages
const maxThresholdPasses = 8

// topZ returns the highest slice holding a set voxel
func topZ(g *volume.Grid) int {
	e, ok := g.Limits()
	if !ok {
		return -1
	}
	return e.Max[2]
}

// union ORs binary grids of one geometry
func union(grids ...*volume.Grid) (*volume.Grid, error) {
	out := grids[0]
	for _, g := range grids[1:] {
		var err error
		if out, err = volume.Combine(volume.Or, out, g); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// findEye sweeps thresholds above the white matter threshold until the
// biggest object in front of and below the AC separates from the cerebrum.
// It returns nil when no eye is found.
func (p *Pipeline) findEye() (*volume.Grid, error) {
	anat := p.params.Anatomy
	ac, lim := p.ac, p.limits
	ny := anat.Dims[1]

	x0, x1 := lim.xRange(15, 40)
	search := volume.NewExtent(x0, x1, ac[1]+20, ny-1, 0, ac[2]-15)
	if search.Clamp(anat.Dims).Empty() {
		p.warnf("eye not disconnected: search region in front of the AC lies outside the volume")
		return nil, nil
	}

	for i := 1; i <= maxThresholdPasses; i++ {
		t := p.th.WhiteMatter + float64(10*i)
		if t > 255 {
			break
		}
		eye, ok, err := anat.Threshold(t).FloodBiggestObject(search, volume.Conn6)
		if err != nil {
			return nil, err
		}
		if !ok {
			p.logf("No eye found at threshold %.0f\n", t)
			return nil, nil
		}
		if topZ(eye) < ac[2]+20 {
			p.logf("Eye disconnected from cerebrum at threshold %.0f\n", t)
			return eye, nil
		}
	}

	// Eye fat still attached: restrict the threshold to the region between
	// orbit and temporal lobe and require a lower top.
	p.logf("Eye fat not disconnected, trying second pass\n")
	h0, h1 := lim.hemisphere()
	region := volume.NewExtent(h0, h1, ac[1], ac[1]+35, ac[2]-30, ac[2])
	for i := 1; i <= maxThresholdPasses; i++ {
		t := p.th.WhiteMatter + float64(10*i)
		if t > 255 {
			return nil, fmt.Errorf("reached threshold limit before eye disconnected")
		}
		eye, ok, err := anat.Threshold(t).MaskExtent(region).FloodBiggestObject(search, volume.Conn6)
		if err != nil {
			return nil, err
		}
		if !ok {
			p.logf("No eye found at threshold %.0f\n", t)
			return nil, nil
		}
		if topZ(eye) < ac[2]-5 {
			p.logf("Eye disconnected from cerebrum at threshold %.0f\n", t)
			return eye, nil
		}
	}
	return nil, fmt.Errorf("eye fat remained connected after %d thresholds", maxThresholdPasses)
}

// disconnectEye removes the eye and the fat around it from the white matter
// threshold
func (p *Pipeline) disconnectEye(ctx context.Context) error {
	anat := p.params.Anatomy
	ac := p.ac

	sculpt := anat.Blank()
	if !p.acValid || ac[2] <= 0 {
		p.warnf("eye not disconnected: AC out of volume range")
	} else {
		eye, err := p.findEye()
		if err != nil {
			return err
		}
		if eye != nil {
			if sculpt, err = p.sculptEye(eye); err != nil {
				return err
			}
		}
	}
	if err := p.keep(gridEyeFatSculpt, sculpt); err != nil {
		return err
	}

	noEye, err := volume.Combine(volume.Subtract, anat.Threshold(p.th.WhiteMatter), sculpt)
	if err != nil {
		return err
	}
	if err := p.keep(gridWMThreshNoEye, noEye); err != nil {
		return err
	}
	if _, ok := noEye.BiggestObject(noEye.Full(), 1, volume.On, volume.Conn6); !ok {
		return fmt.Errorf("failed to find white matter after removing the eye")
	}
	return nil
}

// sculptEye smears the eye down and sideways and grows it through non-CSF
// voxels in front of the AC
func (p *Pipeline) sculptEye(eye *volume.Grid) (*volume.Grid, error) {
	anat := p.params.Anatomy
	ac := p.ac
	nx, ny, nz := anat.Dims[0], anat.Dims[1], anat.Dims[2]

	down := eye.Smear(2, 5, -1)
	sides := down.Shift(2, -10).Smear(0, 5, 1).Smear(0, 5, -1)
	smeared, err := union(down, sides)
	if err != nil {
		return nil, err
	}
	smeared = smeared.MaskExtent(volume.NewExtent(0, nx-1, ac[1]+25, ny-1, 0, nz-1))

	csf := anat.InverseThreshold(p.th.CSF)
	m0, m1 := p.limits.medial(50)
	return smeared.Sculpt(csf, volume.SculptOutside, 2, volume.NewExtent(m0, m1, ac[1], ny-1, 0, ac[2]+20))
}

// hindbrainCutPlanes builds the slabs that separate the brainstem from the
// cerebrum: an oblique plane through the AC and a horizontal one behind it
func (p *Pipeline) hindbrainCutPlanes() (*volume.Grid, error) {
	anat := p.params.Anatomy
	ac, lim := p.ac, p.limits
	ny := anat.Dims[1]

	ymax := min(ac[1], ny)
	oblique := anat.MakePlane(volume.Plane{
		Slope:     [3]float64{float64(lim.hem3), 1, 1},
		Offset:    [3]float64{float64(ac[0]), float64(ymax), float64(ac[2])},
		Constant:  -20,
		Thickness: 2,
	})
	m0, m1 := lim.medial(20)
	near := oblique.MaskExtent(volume.NewExtent(m0, m1, 0, ny-1, 0, ac[2]+10))
	wide := oblique.MaskExtent(volume.NewExtent(m0, m1+10, 0, ny-1, 0, ac[2]))

	horizontal := anat.MakePlane(volume.Plane{
		Slope:     [3]float64{0, 0, 1},
		Offset:    [3]float64{0, 0, float64(ac[2])},
		Thickness: 10,
	})
	c0, c1 := lim.medial(0)
	horizontal = horizontal.MaskExtent(volume.NewExtent(c0, c1, ac[1]-40, ac[1], 0, ac[2]+10))

	return union(near, wide, horizontal)
}

// findHindbrain sweeps thresholds around the white matter threshold until
// the biggest object below and behind the AC, cut along the planes,
// separates from the cerebrum. It returns nil when there is no hindbrain.
func (p *Pipeline) findHindbrain(wm *volume.Grid) (*volume.Grid, error) {
	anat := p.params.Anatomy
	ac, lim := p.ac, p.limits

	cuts, err := p.hindbrainCutPlanes()
	if err != nil {
		return nil, err
	}
	m0, m1 := lim.medial(20)
	search := volume.NewExtent(m0, m1, ac[1]-70, ac[1], 0, ac[2]/2)
	if search.Clamp(anat.Dims).Empty() {
		p.warnf("hindbrain not disconnected: search region below the AC lies outside the volume")
		return nil, nil
	}

	first := 1
	if p.params.HindbrainHighThreshold {
		first = 3
	}
	for i := first; i < first+maxThresholdPasses; i++ {
		t := p.th.WhiteMatter + float64(4*(i-2))
		if t > 255 {
			return nil, fmt.Errorf("reached threshold limit before hindbrain disconnected")
		}
		cut, err := volume.Combine(volume.Subtract, anat.Threshold(t), cuts)
		if err != nil {
			return nil, err
		}
		hb, ok, err := cut.FloodBiggestObject(search, volume.Conn6)
		if err != nil {
			return nil, err
		}
		if !ok {
			p.logf("No hindbrain found at threshold %.0f\n", t)
			return nil, nil
		}
		if topZ(hb) < ac[2]+20 {
			p.logf("Hindbrain disconnected at threshold %.0f\n", t)
			hb, err = hb.Sculpt(wm, volume.SculptInside, 3, volume.NewExtent(m0, m1, 0, ac[1], 0, ac[2]))
			if err != nil {
				return nil, err
			}
			return hb.MorphOps(2, 1), nil
		}
	}
	return nil, fmt.Errorf("hindbrain remained connected after %d thresholds", maxThresholdPasses)
}

// disconnectHindbrain removes brainstem and cerebellum and regrows the
// cerebral white matter from above the AC
func (p *Pipeline) disconnectHindbrain(ctx context.Context) error {
	if err := p.requireAC("hindbrain disconnection"); err != nil {
		return err
	}
	anat := p.params.Anatomy
	ac, lim := p.ac, p.limits
	ny, nz := anat.Dims[1], anat.Dims[2]

	wm := p.arena.get(gridWMThreshNoEye)
	if wm == nil {
		wm = anat.Threshold(p.th.WhiteMatter)
	}

	hb := anat.Blank()
	if ac[2] > 0 && ac[1]-60 <= ny {
		found, err := p.findHindbrain(wm)
		if err != nil {
			return err
		}
		if found != nil {
			hb = found
		}
	}

	noHB, err := volume.Combine(volume.Subtract, wm, hb)
	if err != nil {
		return err
	}
	m0, m1 := lim.medial(20)
	lowy := ac[1]
	if lowy > 15 {
		lowy = 15
	}
	cerebrum, ok, err := noHB.FloodBiggestObject(volume.NewExtent(m0, m1, lowy-20, ac[1]+40, ac[2], ac[2]+30), volume.Conn6)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to find cerebral white matter above the AC")
	}

	h0, h1 := lim.hemisphere()
	hemi := volume.NewExtent(h0, h1, 0, ny-1, 0, nz-1)
	fill, err := cerebrum.Sculpt(wm, volume.SculptInside, 3, hemi)
	if err != nil {
		return err
	}
	upper := hemi
	upper.Min[2] = ac[2] + 20
	high, err := cerebrum.Sculpt(wm, volume.SculptInside, 12, upper)
	if err != nil {
		return err
	}
	if fill, err = fill.Sculpt(wm, volume.SculptInside, 10, volume.NewExtent(h0-10, h1+10, 0, ny-1, 0, nz-1)); err != nil {
		return err
	}

	cwm, err := union(high, fill)
	if err != nil {
		return err
	}
	if cwm, err = volume.Combine(volume.Subtract, cwm, hb); err != nil {
		return err
	}
	p.arena.release(gridEyeFatSculpt, gridWMThreshNoEye)
	return p.keep(gridCerebralWMNoBstemFill, cwm)
}

// cutCorpusCallosum removes the callosal slab joining the hemispheres and
// builds the white matter masks the boundaries are limited to
func (p *Pipeline) cutCorpusCallosum(ctx context.Context) error {
	if err := p.requireAC("corpus callosum cut"); err != nil {
		return err
	}
	anat := p.params.Anatomy
	ac, lim := p.ac, p.limits
	ny, nz := anat.Dims[1], anat.Dims[2]

	cwm := p.arena.get(gridCerebralWMNoBstemFill)
	if cwm == nil {
		if cwm = p.arena.get(gridWMThreshNoEye); cwm == nil {
			cwm = anat.Threshold(p.th.WhiteMatter)
		}
	}

	x0, x1 := lim.xRange(0, 1)
	slab := volume.NewExtent(x0, x1, ac[1]-50, ac[1]+40, ac[2], ac[2]+40)
	if slab.Clamp(anat.Dims).Empty() {
		return p.skip("skipping corpus callosum cut: callosal slab lies outside the volume")
	}
	cc, ok, err := anat.Threshold(p.th.WhiteMatter).MaskExtent(slab).FloodBiggestObject(slab, volume.Conn6)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to find the corpus callosum slice")
	}
	if err := p.keep(gridCorpusCallosumSlice, cc); err != nil {
		return err
	}
	ccLim, _ := cc.Limits()
	ccPost, ccAnt := ccLim.Min[1], ccLim.Max[1]
	ccVent, ccDors := ccLim.Min[2], ccLim.Max[2]
	p.logf("Corpus callosum: posterior %d, anterior %d, ventral %d, dorsal %d\n", ccPost, ccAnt, ccVent, ccDors)

	dil := cwm.MorphOps(3, 0)
	notch1 := dil.MaskExtent(volume.NewExtent(x0, x1, ccPost-4, ccAnt+4, ac[2]-6, ccDors+3))
	notch2 := dil.MaskExtent(volume.NewExtent(x0, x1, ccPost-4, ac[1]+10, 0, ccDors+3))
	notch, err := union(notch1, notch2)
	if err != nil {
		return err
	}
	cut, err := volume.Combine(volume.Subtract, cwm, notch)
	if err != nil {
		return err
	}

	w0, w1 := lim.xRange(0, 20)
	keep := volume.NewExtent(w0, w1, 0, ny-1, 0, nz-1)
	if ccAnt > ccPost {
		keep.Min[1], keep.Max[1] = ccPost, ccAnt
	}
	if ccDors > ac[2] {
		keep.Min[2], keep.Max[2] = ac[2], ccDors
	}
	white, ok, err := cut.FloodBiggestObject(keep, volume.Conn6)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to find cerebral white matter after the callosal cut")
	}

	for _, g := range []struct {
		name string
		grid *volume.Grid
	}{
		{gridCerebralWM, white},
		{gridCerebralWMErode, white.MorphOps(0, 2)},
		{gridInnerMask, white.Shell(3, 3)},
		{gridOuterMask, white.Shell(6, 1)},
	} {
		if err := p.keep(g.name, g.grid); err != nil {
			return err
		}
	}
	return nil
}

// applyMask limits the eroded white matter and both boundary masks to the
// optional volume mask and to voxels not brighter than the white matter
// maximum
func (p *Pipeline) applyMask(ctx context.Context) error {
	pr := p.params
	for _, name := range []string{gridCerebralWMErode, gridInnerMask, gridOuterMask} {
		g := p.arena.get(name)
		if pr.Mask != nil {
			var err error
			if g, err = g.MaskWith(pr.Mask.Binary()); err != nil {
				return err
			}
		} else {
			g = g.Clone()
		}
		if pr.WhiteMatterMaximum > 0 {
			limit := float32(pr.WhiteMatterMaximum)
			for i, v := range pr.Anatomy.Data {
				if v > limit {
					g.Data[i] = 0
				}
			}
		}
		if err := p.keep(name, g); err != nil {
			return err
		}
	}
	return nil
}
