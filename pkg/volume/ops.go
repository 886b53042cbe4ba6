package volume

import (
	"fmt"
	"math"
)

// On is the value of a set voxel in binary grids
const On float32 = 255

// Threshold returns a binary grid with voxels >= t set to On
func (g *Grid) Threshold(t float64) *Grid {
	out := g.Blank()
	tf := float32(t)
	for idx := 0; idx < g.NumVoxels(); idx++ {
		if g.Data[idx*g.Components] >= tf {
			out.Data[idx] = On
		}
	}
	return out
}

// InverseThreshold returns a binary grid with voxels < t set to On
func (g *Grid) InverseThreshold(t float64) *Grid {
	out := g.Blank()
	tf := float32(t)
	for idx := 0; idx < g.NumVoxels(); idx++ {
		if g.Data[idx*g.Components] < tf {
			out.Data[idx] = On
		}
	}
	return out
}

// Binary returns a grid with every non-zero voxel set to On
func (g *Grid) Binary() *Grid {
	out := g.Blank()
	for idx := 0; idx < g.NumVoxels(); idx++ {
		if g.Data[idx*g.Components] != 0 {
			out.Data[idx] = On
		}
	}
	return out
}

// Invert turns set voxels off and unset voxels on
func (g *Grid) Invert() *Grid {
	out := g.Blank()
	for idx := 0; idx < g.NumVoxels(); idx++ {
		if g.Data[idx*g.Components] == 0 {
			out.Data[idx] = On
		}
	}
	return out
}

// Stretch linearly rescales the grid in place to span 0-255. Constant grids
// are left unchanged.
func (g *Grid) Stretch() {
	lo, hi := g.Range()
	if hi <= lo {
		return
	}
	scale := 255 / (float64(hi) - float64(lo))
	for i, v := range g.Data {
		if v == hi {
			g.Data[i] = 255
			continue
		}
		g.Data[i] = float32((float64(v) - float64(lo)) * scale)
	}
}

// MaskExtent zeroes every voxel outside the extent
func (g *Grid) MaskExtent(e Extent) *Grid {
	out := g.Blank()
	e = e.Clamp(g.Dims)
	if e.Empty() || g.Components != 1 {
		return out
	}
	for k := e.Min[2]; k <= e.Max[2]; k++ {
		for j := e.Min[1]; j <= e.Max[1]; j++ {
			for i := e.Min[0]; i <= e.Max[0]; i++ {
				idx := g.Index(i, j, k)
				out.Data[idx] = g.Data[idx]
			}
		}
	}
	return out
}

// MaskWith zeroes every voxel that is unset in mask
func (g *Grid) MaskWith(mask *Grid) (*Grid, error) {
	return Combine(And, g, mask)
}

// Operation is a voxel-wise combination of two grids
type Operation int

const (
	// And keeps the smaller value; for binary grids the intersection
	And Operation = iota
	// Or keeps the larger value; for binary grids the union
	Or
	// Subtract keeps a where b is unset
	Subtract
	// Multiply scales a*b back into 0-255
	Multiply
	// Max keeps the larger value
	Max
	// Sqrt is the geometric mean sqrt(a*b)
	Sqrt
	// Difference is a-b clamped at zero
	Difference
)

func (op Operation) String() string {
	return [...]string{"and", "or", "subtract", "multiply", "max", "sqrt", "difference"}[op]
}

// Combine applies op voxel-wise to two scalar grids of identical geometry
func Combine(op Operation, a, b *Grid) (*Grid, error) {
	if err := a.SameGeometry(b); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.Components != 1 || b.Components != 1 {
		return nil, fmt.Errorf("%s: %w: scalar grids required", op, ErrDimensionMismatch)
	}
	out := a.Blank()
	for i := range out.Data {
		x, y := a.Data[i], b.Data[i]
		var v float32
		switch op {
		case And:
			v = min(x, y)
		case Or, Max:
			v = max(x, y)
		case Subtract:
			if y == 0 {
				v = x
			}
		case Multiply:
			v = x * y / 255
		case Sqrt:
			if p := x * y; p > 0 {
				v = float32(math.Sqrt(float64(p)))
			}
		case Difference:
			v = max(x-y, 0)
		default:
			return nil, fmt.Errorf("unknown operation %d", op)
		}
		out.Data[i] = v
	}
	return out, nil
}

// DiffRatio maps the balance between a and b onto 0-255: 255 where only a
// responds, 0 where only b responds, 127.5 where they are equal. Voxels set
// in mask are forced to 255; mask may be nil.
func DiffRatio(a, b, mask *Grid) (*Grid, error) {
	if err := a.SameGeometry(b); err != nil {
		return nil, fmt.Errorf("diffratio: %w", err)
	}
	if mask != nil {
		if err := a.SameGeometry(mask); err != nil {
			return nil, fmt.Errorf("diffratio mask: %w", err)
		}
	}
	out := a.Blank()
	for i := range out.Data {
		if mask != nil && mask.Data[i] != 0 {
			out.Data[i] = 255
			continue
		}
		x, y := a.Data[i], b.Data[i]
		if s := x + y; s > 0 {
			out.Data[i] = 127.5 * (1 + (x-y)/s)
		}
	}
	return out, nil
}
