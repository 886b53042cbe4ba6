// Package volume provides the voxel grid used throughout a segmentation run
// together with the thresholding, morphological, gradient and topological
// operators that the pipeline stages are built from.
package volume

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDimensionMismatch is returned when two operand grids differ in shape or spacing
	ErrDimensionMismatch = errors.New("grid dimensions do not match")

	// ErrInvalidGeometry is returned for non-positive dimensions or spacing and
	// for orientations that do not resolve to one axis each
	ErrInvalidGeometry = errors.New("invalid grid geometry")

	// ErrOutOfBounds is returned when a voxel index lies outside the grid
	ErrOutOfBounds = errors.New("voxel outside grid")

	// ErrResourceExhausted is returned when a grid cannot be allocated
	ErrResourceExhausted = errors.New("grid too large")

	// ErrInvalidConnectivity is returned for a Connectivity other than
	// Conn6, Conn14, Conn18 or Conn26
	ErrInvalidConnectivity = errors.New("unsupported connectivity")
)

// MaxVoxels is the largest voxel count a single grid may hold
const MaxVoxels = 1 << 31

// Orientation is the stereotaxic direction a grid axis points to
type Orientation int

const (
	OrientationUnknown Orientation = iota
	LeftToRight
	RightToLeft
	PosteriorToAnterior
	AnteriorToPosterior
	InferiorToSuperior
	SuperiorToInferior
)

// stereotaxic returns the stereotaxic axis and direction of an orientation
func (o Orientation) stereotaxic() (axis int, sign float64, ok bool) {
	switch o {
	case LeftToRight:
		return 0, 1, true
	case RightToLeft:
		return 0, -1, true
	case PosteriorToAnterior:
		return 1, 1, true
	case AnteriorToPosterior:
		return 1, -1, true
	case InferiorToSuperior:
		return 2, 1, true
	case SuperiorToInferior:
		return 2, -1, true
	}
	return 0, 0, false
}

// Grid is a 3D voxel grid. Voxel (i, j, k) component c lives at
// Data[(k*nx*ny + j*nx + i)*Components + c].
type Grid struct {
	// Dims is the number of voxels along x, y and z
	Dims [3]int

	// Spacing is the voxel size in mm along each axis
	Spacing [3]float64

	// Origin is the stereotaxic position of the center of voxel (0, 0, 0)
	Origin [3]float64

	// Orientation gives the stereotaxic direction of each grid axis.
	// Unknown orientations are read as LeftToRight, PosteriorToAnterior,
	// InferiorToSuperior for axes 0, 1, 2.
	Orientation [3]Orientation

	// Components is 1 for scalar grids and 3 for vector grids
	Components int

	// Data holds the voxel values
	Data []float32
}

// New allocates a zeroed grid
func New(dims [3]int, spacing [3]float64, components int) (*Grid, error) {
	if components != 1 && components != 3 {
		return nil, fmt.Errorf("%w: %d components per voxel", ErrInvalidGeometry, components)
	}
	n, err := voxelCount(dims)
	if err != nil {
		return nil, err
	}
	for a := 0; a < 3; a++ {
		if !(spacing[a] > 0) {
			return nil, fmt.Errorf("%w: spacing %v must be positive", ErrInvalidGeometry, spacing)
		}
	}
	return &Grid{
		Dims:       dims,
		Spacing:    spacing,
		Components: components,
		Data:       make([]float32, n*components),
	}, nil
}

func voxelCount(dims [3]int) (int, error) {
	n := int64(1)
	for a := 0; a < 3; a++ {
		if dims[a] <= 0 {
			return 0, fmt.Errorf("%w: dimensions %v must be positive", ErrInvalidGeometry, dims)
		}
		n *= int64(dims[a])
		if n > MaxVoxels {
			return 0, fmt.Errorf("%w: %v voxels", ErrResourceExhausted, dims)
		}
	}
	return int(n), nil
}

// Validate checks the grid invariants
func (g *Grid) Validate() error {
	n, err := voxelCount(g.Dims)
	if err != nil {
		return err
	}
	if g.Components != 1 && g.Components != 3 {
		return fmt.Errorf("%w: %d components per voxel", ErrInvalidGeometry, g.Components)
	}
	if len(g.Data) != n*g.Components {
		return fmt.Errorf("%w: buffer holds %d values, expected %d", ErrInvalidGeometry, len(g.Data), n*g.Components)
	}
	for a := 0; a < 3; a++ {
		if !(g.Spacing[a] > 0) {
			return fmt.Errorf("%w: spacing %v must be positive", ErrInvalidGeometry, g.Spacing)
		}
	}
	if _, err := g.Transform(); err != nil {
		return err
	}
	return nil
}

// Blank returns a zeroed scalar grid with the same geometry
func (g *Grid) Blank() *Grid {
	return g.blank(1)
}

func (g *Grid) blank(components int) *Grid {
	return &Grid{
		Dims:        g.Dims,
		Spacing:     g.Spacing,
		Origin:      g.Origin,
		Orientation: g.Orientation,
		Components:  components,
		Data:        make([]float32, g.NumVoxels()*components),
	}
}

// Clone returns a deep copy of the grid
func (g *Grid) Clone() *Grid {
	c := *g
	c.Data = make([]float32, len(g.Data))
	copy(c.Data, g.Data)
	return &c
}

// NumVoxels returns nx*ny*nz
func (g *Grid) NumVoxels() int {
	return g.Dims[0] * g.Dims[1] * g.Dims[2]
}

// SizeBytes returns the memory held by the voxel buffer
func (g *Grid) SizeBytes() int64 {
	return int64(len(g.Data)) * 4
}

// Index returns the flat voxel index of (i, j, k)
func (g *Grid) Index(i, j, k int) int {
	return k*g.Dims[0]*g.Dims[1] + j*g.Dims[0] + i
}

// IJK converts a flat voxel index back to (i, j, k)
func (g *Grid) IJK(idx int) (int, int, int) {
	plane := g.Dims[0] * g.Dims[1]
	k := idx / plane
	rem := idx % plane
	return rem % g.Dims[0], rem / g.Dims[0], k
}

// InBounds reports whether (i, j, k) is a voxel of the grid
func (g *Grid) InBounds(i, j, k int) bool {
	return i >= 0 && j >= 0 && k >= 0 && i < g.Dims[0] && j < g.Dims[1] && k < g.Dims[2]
}

// At returns the first component of voxel (i, j, k), or 0 outside the grid
func (g *Grid) At(i, j, k int) float32 {
	if !g.InBounds(i, j, k) {
		return 0
	}
	return g.Data[g.Index(i, j, k)*g.Components]
}

// Set assigns the first component of voxel (i, j, k); out-of-grid writes are ignored
func (g *Grid) Set(i, j, k int, v float32) {
	if g.InBounds(i, j, k) {
		g.Data[g.Index(i, j, k)*g.Components] = v
	}
}

// Vector returns the three components of voxel idx of a vector grid
func (g *Grid) Vector(idx int) (float32, float32, float32) {
	o := idx * g.Components
	return g.Data[o], g.Data[o+1], g.Data[o+2]
}

// SetVector assigns the three components of voxel idx of a vector grid
func (g *Grid) SetVector(idx int, x, y, z float32) {
	o := idx * g.Components
	g.Data[o], g.Data[o+1], g.Data[o+2] = x, y, z
}

// SetAll assigns v to every value in the grid
func (g *Grid) SetAll(v float32) {
	for i := range g.Data {
		g.Data[i] = v
	}
}

// Count returns the number of voxels whose first component is non-zero
func (g *Grid) Count() int {
	n := 0
	for idx := 0; idx < g.NumVoxels(); idx++ {
		if g.Data[idx*g.Components] != 0 {
			n++
		}
	}
	return n
}

// Range returns the minimum and maximum value of the grid
func (g *Grid) Range() (float32, float32) {
	if len(g.Data) == 0 {
		return 0, 0
	}
	lo, hi := g.Data[0], g.Data[0]
	for _, v := range g.Data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// SameGeometry returns ErrDimensionMismatch unless o has the same dimensions
// and spacing as g
func (g *Grid) SameGeometry(o *Grid) error {
	if o == nil {
		return fmt.Errorf("%w: missing operand", ErrDimensionMismatch)
	}
	if g.Dims != o.Dims {
		return fmt.Errorf("%w: %v vs %v", ErrDimensionMismatch, g.Dims, o.Dims)
	}
	for a := 0; a < 3; a++ {
		if math.Abs(g.Spacing[a]-o.Spacing[a]) > 1e-6 {
			return fmt.Errorf("%w: spacing %v vs %v", ErrDimensionMismatch, g.Spacing, o.Spacing)
		}
	}
	return nil
}

// Equal reports whether both grids have the same geometry and voxel values
func (g *Grid) Equal(o *Grid) bool {
	if g.SameGeometry(o) != nil || g.Components != o.Components || len(g.Data) != len(o.Data) {
		return false
	}
	for i := range g.Data {
		if g.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// Transform maps between voxel indices and stereotaxic millimetres
type Transform struct {
	forward *mat.Dense
	inverse *mat.Dense
}

// Transform builds the index-to-stereotaxic affine of the grid
func (g *Grid) Transform() (*Transform, error) {
	defaults := [3]Orientation{LeftToRight, PosteriorToAnterior, InferiorToSuperior}
	fwd := mat.NewDense(4, 4, nil)
	used := [3]bool{}
	for a := 0; a < 3; a++ {
		o := g.Orientation[a]
		if o == OrientationUnknown {
			o = defaults[a]
		}
		axis, sign, ok := o.stereotaxic()
		if !ok || used[axis] {
			return nil, fmt.Errorf("%w: orientation %v is not resolvable", ErrInvalidGeometry, g.Orientation)
		}
		used[axis] = true
		fwd.Set(axis, a, sign*g.Spacing[a])
		fwd.Set(axis, 3, g.Origin[axis])
	}
	fwd.Set(3, 3, 1)

	var inv mat.Dense
	if err := inv.Inverse(fwd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return &Transform{forward: fwd, inverse: &inv}, nil
}

func apply(m *mat.Dense, p [3]float64) [3]float64 {
	in := mat.NewVecDense(4, []float64{p[0], p[1], p[2], 1})
	var out mat.VecDense
	out.MulVec(m, in)
	return [3]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// ToStereotaxic maps a (fractional) voxel index to stereotaxic coordinates
func (t *Transform) ToStereotaxic(ijk [3]float64) [3]float64 {
	return apply(t.forward, ijk)
}

// ToIndex maps stereotaxic coordinates to a fractional voxel index
func (t *Transform) ToIndex(xyz [3]float64) [3]float64 {
	return apply(t.inverse, xyz)
}

// Determinant returns the determinant of the index-to-stereotaxic mapping.
// It is negative when the grid axes form a left-handed frame.
func (t *Transform) Determinant() float64 {
	return mat.Det(t.forward)
}

// ACIndex returns the voxel that contains stereotaxic (0, 0, 0), the anterior
// commissure. ok is false when that voxel lies outside the grid.
func (g *Grid) ACIndex() (ijk [3]int, ok bool, err error) {
	t, err := g.Transform()
	if err != nil {
		return ijk, false, err
	}
	f := t.ToIndex([3]float64{0, 0, 0})
	for a := 0; a < 3; a++ {
		ijk[a] = int(math.Round(f[a]))
	}
	return ijk, g.InBounds(ijk[0], ijk[1], ijk[2]), nil
}

// CenterAtIndex sets the origin so that voxel ijk sits at stereotaxic (0, 0, 0)
func (g *Grid) CenterAtIndex(ijk [3]int) error {
	g.Origin = [3]float64{}
	t, err := g.Transform()
	if err != nil {
		return err
	}
	p := t.ToStereotaxic([3]float64{float64(ijk[0]), float64(ijk[1]), float64(ijk[2])})
	for a := 0; a < 3; a++ {
		g.Origin[a] = -p[a]
	}
	return nil
}
