package volume

import (
	"fmt"
	"math"
)

// Gradient returns a 3-component grid holding the central-difference
// intensity gradient per mm. Samples beyond the grid take the value of the
// nearest boundary voxel, so at a face the difference spans one voxel but is
// still divided by two spacings.
func (g *Grid) Gradient() *Grid {
	out := g.blank(3)
	nx, ny, nz := g.Dims[0], g.Dims[1], g.Dims[2]
	at := func(i, j, k int) float32 {
		i = clampInt(i, 0, nx-1)
		j = clampInt(j, 0, ny-1)
		k = clampInt(k, 0, nz-1)
		return g.Data[g.Index(i, j, k)*g.Components]
	}
	sx := float32(2 * g.Spacing[0])
	sy := float32(2 * g.Spacing[1])
	sz := float32(2 * g.Spacing[2])
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				gx := (at(i+1, j, k) - at(i-1, j, k)) / sx
				gy := (at(i, j+1, k) - at(i, j-1, k)) / sy
				gz := (at(i, j, k+1) - at(i, j, k-1)) / sz
				out.SetVector(g.Index(i, j, k), gx, gy, gz)
			}
		}
	}
	return out
}

// Magnitude returns the per-voxel length of a vector grid
func (g *Grid) Magnitude() (*Grid, error) {
	if g.Components != 3 {
		return nil, fmt.Errorf("%w: magnitude needs a vector grid", ErrDimensionMismatch)
	}
	out := g.Blank()
	for idx := range out.Data {
		x, y, z := g.Vector(idx)
		out.Data[idx] = float32(math.Sqrt(float64(x*x + y*y + z*z)))
	}
	return out, nil
}

// ReplaceMagnitude rescales every vector of g to the matching value of mag,
// keeping its direction
func (g *Grid) ReplaceMagnitude(mag *Grid) (*Grid, error) {
	if g.Components != 3 {
		return nil, fmt.Errorf("%w: replace magnitude needs a vector grid", ErrDimensionMismatch)
	}
	if err := g.SameGeometry(mag); err != nil {
		return nil, err
	}
	out := g.Clone()
	for idx := 0; idx < g.NumVoxels(); idx++ {
		x, y, z := g.Vector(idx)
		l := float32(math.Sqrt(float64(x*x + y*y + z*z)))
		if l == 0 {
			out.SetVector(idx, 0, 0, 0)
			continue
		}
		s := mag.Data[idx] / l
		out.SetVector(idx, x*s, y*s, z*s)
	}
	return out, nil
}

// Dot returns the per-voxel dot product of two vector grids
func Dot(a, b *Grid) (*Grid, error) {
	if err := a.SameGeometry(b); err != nil {
		return nil, fmt.Errorf("dot: %w", err)
	}
	if a.Components != 3 || b.Components != 3 {
		return nil, fmt.Errorf("dot: %w: vector grids required", ErrDimensionMismatch)
	}
	out := a.Blank()
	for idx := range out.Data {
		ax, ay, az := a.Vector(idx)
		bx, by, bz := b.Vector(idx)
		out.Data[idx] = ax*bx + ay*by + az*bz
	}
	return out, nil
}

// Blur smooths a scalar grid with a separable 1-2-1 kernel. Samples beyond
// the grid take the value of the nearest boundary voxel.
func (g *Grid) Blur() *Grid {
	cur := g.Clone()
	if cur.Components != 1 {
		return cur
	}
	tmp := g.Blank()
	for axis := 0; axis < 3; axis++ {
		n := g.Dims[axis]
		for k := 0; k < g.Dims[2]; k++ {
			for j := 0; j < g.Dims[1]; j++ {
				for i := 0; i < g.Dims[0]; i++ {
					p := [3]int{i, j, k}
					c := p[axis]
					p[axis] = clampInt(c-1, 0, n-1)
					lo := cur.Data[g.Index(p[0], p[1], p[2])]
					p[axis] = clampInt(c+1, 0, n-1)
					hi := cur.Data[g.Index(p[0], p[1], p[2])]
					idx := g.Index(i, j, k)
					tmp.Data[idx] = 0.25*lo + 0.5*cur.Data[idx] + 0.25*hi
				}
			}
		}
		cur, tmp = tmp, cur
	}
	return cur
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
