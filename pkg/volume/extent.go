package volume

// Extent is an inclusive box of voxel indices
type Extent struct {
	Min [3]int
	Max [3]int
}

// NewExtent builds an extent from the i, j and k ranges
func NewExtent(iMin, iMax, jMin, jMax, kMin, kMax int) Extent {
	return Extent{Min: [3]int{iMin, jMin, kMin}, Max: [3]int{iMax, jMax, kMax}}
}

// Full returns the extent that covers the whole grid
func (g *Grid) Full() Extent {
	return Extent{Max: [3]int{g.Dims[0] - 1, g.Dims[1] - 1, g.Dims[2] - 1}}
}

// Clamp restricts the extent to the grid. The result is Empty when the
// extent was inverted or lies wholly outside the grid on some axis.
func (e Extent) Clamp(dims [3]int) Extent {
	for a := 0; a < 3; a++ {
		if e.Min[a] < 0 {
			e.Min[a] = 0
		}
		if e.Max[a] > dims[a]-1 {
			e.Max[a] = dims[a] - 1
		}
	}
	return e
}

// Empty reports whether the extent contains no voxel
func (e Extent) Empty() bool {
	return e.Min[0] > e.Max[0] || e.Min[1] > e.Max[1] || e.Min[2] > e.Max[2]
}

// Contains reports whether (i, j, k) lies within the extent
func (e Extent) Contains(i, j, k int) bool {
	return i >= e.Min[0] && i <= e.Max[0] &&
		j >= e.Min[1] && j <= e.Max[1] &&
		k >= e.Min[2] && k <= e.Max[2]
}

// Grow widens the extent by n voxels on every side
func (e Extent) Grow(n int) Extent {
	for a := 0; a < 3; a++ {
		e.Min[a] -= n
		e.Max[a] += n
	}
	return e
}

// Connectivity selects which neighbours are adjacent to a voxel
type Connectivity int

const (
	// Conn6 joins voxels sharing a face
	Conn6 Connectivity = 6
	// Conn18 joins voxels sharing a face or an edge
	Conn18 Connectivity = 18
	// Conn26 joins voxels sharing a face, an edge or a corner
	Conn26 Connectivity = 26
	// Conn14 joins voxels along the edges of the Kuhn triangulation of the
	// voxel lattice (offsets whose non-zero components share one sign). It is
	// self-complementary and matches the surfaces built by the surface package.
	Conn14 Connectivity = 14
)

var neighborTables = map[Connectivity][][3]int{}

func init() {
	for _, c := range []Connectivity{Conn6, Conn14, Conn18, Conn26} {
		var offs [][3]int
		for dk := -1; dk <= 1; dk++ {
			for dj := -1; dj <= 1; dj++ {
				for di := -1; di <= 1; di++ {
					n := abs(di) + abs(dj) + abs(dk)
					if n == 0 {
						continue
					}
					switch c {
					case Conn6:
						if n != 1 {
							continue
						}
					case Conn18:
						if n > 2 {
							continue
						}
					case Conn14:
						if !sameSign(di, dj, dk) {
							continue
						}
					}
					offs = append(offs, [3]int{di, dj, dk})
				}
			}
		}
		neighborTables[c] = offs
	}
}

// Offsets returns the neighbour offsets of the connectivity, nil when c is
// not a supported rule
func (c Connectivity) Offsets() [][3]int {
	return neighborTables[c]
}

// Valid reports whether c is one of the supported rules
func (c Connectivity) Valid() bool {
	_, ok := neighborTables[c]
	return ok
}

func sameSign(v ...int) bool {
	pos, neg := false, false
	for _, x := range v {
		if x > 0 {
			pos = true
		}
		if x < 0 {
			neg = true
		}
	}
	return !(pos && neg)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
