package volume

import (
	"fmt"

	"github.com/theodesp/unionfind"
)

// Labels describes the connected components of a grid
type Labels struct {
	// Label holds the component of each voxel, or -1
	Label []int32

	// Sizes holds the voxel count of each component
	Sizes []int

	// Border marks components that touch a face of the grid
	Border []bool
}

// Count returns the number of components
func (l *Labels) Count() int { return len(l.Sizes) }

// Largest returns the biggest component, or -1 when there is none
func (l *Labels) Largest() int {
	best := -1
	for c, n := range l.Sizes {
		if best < 0 || n > l.Sizes[best] {
			best = c
		}
	}
	return best
}

// ConnectedComponents labels the set voxels of the grid
func (g *Grid) ConnectedComponents(c Connectivity) (*Labels, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return g.label(c, g.Full(), g.isSet), nil
}

// BackgroundComponents labels the unset voxels of the grid
func (g *Grid) BackgroundComponents(c Connectivity) (*Labels, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return g.label(c, g.Full(), g.isUnset), nil
}

func (g *Grid) isSet(idx int) bool   { return g.Data[idx*g.Components] != 0 }
func (g *Grid) isUnset(idx int) bool { return g.Data[idx*g.Components] == 0 }

func (c Connectivity) check() error {
	if !c.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidConnectivity, int(c))
	}
	return nil
}

// label runs a union-find pass over the voxels of ext selected by in. c must
// be valid.
func (g *Grid) label(c Connectivity, ext Extent, in func(idx int) bool) *Labels {
	n := g.NumVoxels()
	ids := make([]int32, n)
	for i := range ids {
		ids[i] = -1
	}
	out := &Labels{Label: ids}

	ext = ext.Clamp(g.Dims)
	if ext.Empty() {
		return out
	}

	count := 0
	for k := ext.Min[2]; k <= ext.Max[2]; k++ {
		for j := ext.Min[1]; j <= ext.Max[1]; j++ {
			for i := ext.Min[0]; i <= ext.Max[0]; i++ {
				idx := g.Index(i, j, k)
				if in(idx) {
					ids[idx] = int32(count)
					count++
				}
			}
		}
	}
	if count == 0 {
		return out
	}

	uf := unionfind.New(count)
	offs := c.Offsets()
	for k := ext.Min[2]; k <= ext.Max[2]; k++ {
		for j := ext.Min[1]; j <= ext.Max[1]; j++ {
			for i := ext.Min[0]; i <= ext.Max[0]; i++ {
				idx := g.Index(i, j, k)
				if ids[idx] < 0 {
					continue
				}
				for _, o := range offs {
					ii, jj, kk := i+o[0], j+o[1], k+o[2]
					if !ext.Contains(ii, jj, kk) {
						continue
					}
					nidx := g.Index(ii, jj, kk)
					if nidx < idx && ids[nidx] >= 0 {
						uf.Union(int(ids[idx]), int(ids[nidx]))
					}
				}
			}
		}
	}

	rootLabel := make([]int32, count)
	for i := range rootLabel {
		rootLabel[i] = -1
	}
	for k := ext.Min[2]; k <= ext.Max[2]; k++ {
		for j := ext.Min[1]; j <= ext.Max[1]; j++ {
			for i := ext.Min[0]; i <= ext.Max[0]; i++ {
				idx := g.Index(i, j, k)
				if ids[idx] < 0 {
					continue
				}
				r := uf.Root(int(ids[idx]))
				if rootLabel[r] < 0 {
					rootLabel[r] = int32(len(out.Sizes))
					out.Sizes = append(out.Sizes, 0)
					out.Border = append(out.Border, false)
				}
				l := rootLabel[r]
				ids[idx] = l
				out.Sizes[l]++
				if i == 0 || j == 0 || k == 0 || i == g.Dims[0]-1 || j == g.Dims[1]-1 || k == g.Dims[2]-1 {
					out.Border[l] = true
				}
			}
		}
	}
	return out
}

// FloodFill returns the set voxels reachable from seed under c. An unset
// seed yields an empty grid.
func (g *Grid) FloodFill(seed [3]int, c Connectivity) (*Grid, error) {
	if !g.InBounds(seed[0], seed[1], seed[2]) {
		return nil, fmt.Errorf("%w: seed %v", ErrOutOfBounds, seed)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	out := g.Blank()
	start := g.Index(seed[0], seed[1], seed[2])
	if g.Data[start*g.Components] == 0 {
		return out, nil
	}

	offs := c.Offsets()
	queue := []int{start}
	out.Data[start] = On
	for len(queue) > 0 {
		idx := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		i, j, k := g.IJK(idx)
		for _, o := range offs {
			ii, jj, kk := i+o[0], j+o[1], k+o[2]
			if !g.InBounds(ii, jj, kk) {
				continue
			}
			nidx := g.Index(ii, jj, kk)
			if out.Data[nidx] == 0 && g.Data[nidx*g.Components] != 0 {
				out.Data[nidx] = On
				queue = append(queue, nidx)
			}
		}
	}
	return out, nil
}

// BiggestObject finds the largest component of voxels within ext whose value
// lies in [lo, hi] and returns one of its voxels. ok is false when no voxel
// qualifies, when ext is empty after clamping or when c is not supported.
func (g *Grid) BiggestObject(ext Extent, lo, hi float32, c Connectivity) (seed [3]int, ok bool) {
	if !c.Valid() {
		return [3]int{-1, -1, -1}, false
	}
	labels := g.label(c, ext, func(idx int) bool {
		v := g.Data[idx*g.Components]
		return v != 0 && v >= lo && v <= hi
	})
	best := labels.Largest()
	if best < 0 {
		return [3]int{-1, -1, -1}, false
	}
	for idx, l := range labels.Label {
		if int(l) == best {
			i, j, k := g.IJK(idx)
			return [3]int{i, j, k}, true
		}
	}
	return [3]int{-1, -1, -1}, false
}

// FloodBiggestObject keeps the largest set component inside ext, including
// the parts of it that leave ext. ok is false when ext holds no set voxel.
func (g *Grid) FloodBiggestObject(ext Extent, c Connectivity) (*Grid, bool, error) {
	if err := c.check(); err != nil {
		return nil, false, err
	}
	seed, ok := g.BiggestObject(ext, 1e-6, float32(1e30), c)
	if !ok {
		return g.Blank(), false, nil
	}
	out, err := g.FloodFill(seed, c)
	return out, err == nil, err
}

// Limits returns the bounding box of the set voxels
func (g *Grid) Limits() (Extent, bool) {
	e := Extent{Min: g.Dims, Max: [3]int{-1, -1, -1}}
	found := false
	for idx := 0; idx < g.NumVoxels(); idx++ {
		if g.Data[idx*g.Components] == 0 {
			continue
		}
		found = true
		p := [3]int{}
		p[0], p[1], p[2] = g.IJK(idx)
		for a := 0; a < 3; a++ {
			e.Min[a] = min(e.Min[a], p[a])
			e.Max[a] = max(e.Max[a], p[a])
		}
	}
	return e, found
}

// FillCavities sets every background component (under c) that does not
// reach a face of the grid
func (g *Grid) FillCavities(c Connectivity) (*Grid, error) {
	bg, err := g.BackgroundComponents(c)
	if err != nil {
		return nil, err
	}
	out := g.Binary()
	for idx, l := range bg.Label {
		if l >= 0 && !bg.Border[l] {
			out.Data[idx] = On
		}
	}
	return out, nil
}

// RemoveIslands keeps only the largest set component under c
func (g *Grid) RemoveIslands(c Connectivity) (*Grid, error) {
	fg, err := g.ConnectedComponents(c)
	if err != nil {
		return nil, err
	}
	out := g.Blank()
	best := fg.Largest()
	for idx, l := range fg.Label {
		if best >= 0 && int(l) == best {
			out.Data[idx] = On
		}
	}
	return out, nil
}
