package correction

import (
	"sort"

	"surefit/pkg/volume"
)

// sureFitCorrector removes the thin parts of the foreground that carry
// handles and fills the thin gaps of the background that form tunnels. The
// candidates are the residues of morphological opening and closing at
// growing radii.
type sureFitCorrector struct{}

func (sureFitCorrector) name() string { return "SureFit" }

func (sureFitCorrector) correct(c *run) error {
	for r := 1; r <= c.opts.MaxRadius; r++ {
		if c.counts.Holes <= 0 {
			break
		}
		if err := c.ctx.Err(); err != nil {
			return err
		}

		// handles: foreground removed by opening
		opened := c.seg.Open(volume.Conn6, r)
		residue, err := volume.Combine(volume.Subtract, c.seg, opened)
		if err != nil {
			return err
		}
		pieces, err := c.candidates(residue, true)
		if err != nil {
			return err
		}
		for _, cand := range pieces {
			if c.counts.Holes <= 0 {
				break
			}
			c.try(cand, 0)
		}

		// tunnels: background added by closing
		closed := c.seg.Close(volume.Conn6, r)
		residue, err = volume.Combine(volume.Subtract, closed, c.seg)
		if err != nil {
			return err
		}
		if pieces, err = c.candidates(residue, false); err != nil {
			return err
		}
		for _, cand := range pieces {
			if c.counts.Holes <= 0 {
				break
			}
			c.try(cand, volume.On)
		}
	}

	// islands and cavities never carry the target topology
	before := c.seg
	kept, err := c.seg.RemoveIslands(volume.Conn14)
	if err != nil {
		return err
	}
	if c.seg, err = kept.FillCavities(volume.Conn14); err != nil {
		return err
	}
	for i := range c.seg.Data {
		if c.seg.Data[i] != before.Data[i] {
			c.changed++
		}
	}
	c.counts = c.seg.Topology()
	return nil
}

// candidates splits a residue into face-connected pieces. With a radial
// position map, removals try the pieces of lowest mean position first and
// fills the highest; otherwise smaller pieces go first.
func (c *run) candidates(residue *volume.Grid, removal bool) ([][]int, error) {
	labels, err := residue.ConnectedComponents(volume.Conn6)
	if err != nil {
		return nil, err
	}
	pieces := make([][]int, labels.Count())
	for idx, l := range labels.Label {
		if l >= 0 {
			pieces[l] = append(pieces[l], idx)
		}
	}

	rpm := c.opts.RadialPositionMap
	if rpm == nil {
		sort.SliceStable(pieces, func(i, j int) bool { return len(pieces[i]) < len(pieces[j]) })
		return pieces, nil
	}
	mean := make([]float64, len(pieces))
	for p, piece := range pieces {
		sum := 0.0
		for _, idx := range piece {
			sum += float64(rpm.Data[idx])
		}
		mean[p] = sum / float64(len(piece))
	}
	order := make([]int, len(pieces))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if removal {
			return mean[order[i]] < mean[order[j]]
		}
		return mean[order[i]] > mean[order[j]]
	})
	sorted := make([][]int, len(pieces))
	for i, p := range order {
		sorted[i] = pieces[p]
	}
	return sorted, nil
}
