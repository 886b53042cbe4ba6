package volume

import (
	"fmt"
	"math"

	"surefit/internal/models"
)

// Plane selects the slab |sum(Slope[a]*(idx[a]-Offset[a])) - Constant| <= Thickness
type Plane struct {
	Slope     [3]float64
	Offset    [3]float64
	Constant  float64
	Thickness float64
}

// MakePlane returns a binary grid with the voxels of the slab set
func (g *Grid) MakePlane(p Plane) *Grid {
	out := g.Blank()
	for k := 0; k < g.Dims[2]; k++ {
		for j := 0; j < g.Dims[1]; j++ {
			for i := 0; i < g.Dims[0]; i++ {
				v := p.Slope[0]*(float64(i)-p.Offset[0]) +
					p.Slope[1]*(float64(j)-p.Offset[1]) +
					p.Slope[2]*(float64(k)-p.Offset[2]) - p.Constant
				if math.Abs(v) <= p.Thickness {
					out.Data[g.Index(i, j, k)] = On
				}
			}
		}
	}
	return out
}

// Smear extends every set voxel up to steps voxels along axis in the
// direction of sign (+1 or -1)
func (g *Grid) Smear(axis, steps, sign int) *Grid {
	out := g.Binary()
	if sign >= 0 {
		sign = 1
	} else {
		sign = -1
	}
	for idx := 0; idx < g.NumVoxels(); idx++ {
		if g.Data[idx*g.Components] == 0 {
			continue
		}
		p := [3]int{}
		p[0], p[1], p[2] = g.IJK(idx)
		for s := 1; s <= steps; s++ {
			p[axis] += sign
			if !g.InBounds(p[0], p[1], p[2]) {
				break
			}
			out.Data[g.Index(p[0], p[1], p[2])] = On
		}
	}
	return out
}

// Shift moves the grid content by offset voxels along axis; vacated voxels
// are zero
func (g *Grid) Shift(axis, offset int) *Grid {
	out := g.Blank()
	for idx := 0; idx < g.NumVoxels(); idx++ {
		p := [3]int{}
		p[0], p[1], p[2] = g.IJK(idx)
		p[axis] += offset
		if g.InBounds(p[0], p[1], p[2]) {
			out.Data[g.Index(p[0], p[1], p[2])] = g.Data[idx*g.Components]
		}
	}
	return out
}

// SculptMode selects where Sculpt may grow
type SculptMode int

const (
	// SculptInside grows only into voxels set in the constraint
	SculptInside SculptMode = iota
	// SculptOutside grows only into voxels unset in the constraint
	SculptOutside
)

// Sculpt grows the set voxels by face neighbours for steps iterations,
// limited to ext and to the voxels the constraint allows
func (g *Grid) Sculpt(constraint *Grid, mode SculptMode, steps int, ext Extent) (*Grid, error) {
	if err := g.SameGeometry(constraint); err != nil {
		return nil, fmt.Errorf("sculpt: %w", err)
	}
	ext = ext.Clamp(g.Dims)
	cur := g.Binary()
	allowed := func(idx int) bool {
		set := constraint.Data[idx*constraint.Components] != 0
		if mode == SculptInside {
			return set
		}
		return !set
	}
	offs := Conn6.Offsets()
	for s := 0; s < steps; s++ {
		next := cur.Clone()
		grown := 0
		for k := ext.Min[2]; k <= ext.Max[2] && !ext.Empty(); k++ {
			for j := ext.Min[1]; j <= ext.Max[1]; j++ {
				for i := ext.Min[0]; i <= ext.Max[0]; i++ {
					idx := g.Index(i, j, k)
					if cur.Data[idx] != 0 || !allowed(idx) {
						continue
					}
					for _, o := range offs {
						ii, jj, kk := i+o[0], j+o[1], k+o[2]
						if g.InBounds(ii, jj, kk) && cur.Data[g.Index(ii, jj, kk)] != 0 {
							next.Data[idx] = On
							grown++
							break
						}
					}
				}
			}
		}
		cur = next
		if grown == 0 {
			break
		}
	}
	return cur, nil
}

// Pad fills the padding band of every cut face by extruding the first slice
// inside the band outwards. Faces not marked as cut are left untouched. With
// spec.Erode each successive layer is eroded in-plane by one voxel.
func (g *Grid) Pad(spec models.PaddingSpec) *Grid {
	out := g.Binary()
	for f := models.FaceNegX; f <= models.FacePosZ; f++ {
		p := spec.Effective(f)
		if p <= 0 {
			continue
		}
		axis := f.Axis()
		n := g.Dims[axis]
		if p >= n {
			continue
		}
		src, dir := p, -1
		if f.Positive() {
			src, dir = n-1-p, 1
		}
		layer := out.slice(axis, src)
		for t := 1; t <= p; t++ {
			if spec.Erode {
				layer = erodeSlice(layer)
			}
			out.setSlice(axis, src+dir*t, layer)
		}
	}
	return out
}

// sliceData is a 2D binary slice; u and v are the two remaining axes in order
type sliceData struct {
	nu, nv int
	on     []bool
}

func (g *Grid) sliceAxes(axis int) (int, int) {
	switch axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

func (g *Grid) slice(axis, pos int) sliceData {
	ua, va := g.sliceAxes(axis)
	s := sliceData{nu: g.Dims[ua], nv: g.Dims[va]}
	s.on = make([]bool, s.nu*s.nv)
	for v := 0; v < s.nv; v++ {
		for u := 0; u < s.nu; u++ {
			p := [3]int{}
			p[axis], p[ua], p[va] = pos, u, v
			s.on[v*s.nu+u] = g.Data[g.Index(p[0], p[1], p[2])] != 0
		}
	}
	return s
}

func (g *Grid) setSlice(axis, pos int, s sliceData) {
	ua, va := g.sliceAxes(axis)
	for v := 0; v < s.nv; v++ {
		for u := 0; u < s.nu; u++ {
			p := [3]int{}
			p[axis], p[ua], p[va] = pos, u, v
			val := float32(0)
			if s.on[v*s.nu+u] {
				val = On
			}
			g.Data[g.Index(p[0], p[1], p[2])] = val
		}
	}
}

func erodeSlice(s sliceData) sliceData {
	out := sliceData{nu: s.nu, nv: s.nv, on: make([]bool, len(s.on))}
	at := func(u, v int) bool {
		if u < 0 || v < 0 || u >= s.nu || v >= s.nv {
			return false
		}
		return s.on[v*s.nu+u]
	}
	for v := 0; v < s.nv; v++ {
		for u := 0; u < s.nu; u++ {
			out.on[v*s.nu+u] = at(u, v) && at(u-1, v) && at(u+1, v) && at(u, v-1) && at(u, v+1)
		}
	}
	return out
}
