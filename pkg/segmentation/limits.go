package segmentation

import "surefit/internal/models"

// acLimits builds the AC-relative search boxes of the disconnection and
// ventricle stages. x offsets grow laterally: towards +x for the right
// hemisphere, towards -x otherwise.
type acLimits struct {
	ac   [3]int
	dims [3]int
	hem3 int
}

func newACLimits(ac, dims [3]int, s models.Structure) acLimits {
	return acLimits{ac: ac, dims: dims, hem3: 2*s.Hem() - 1}
}

// x returns the column n voxels lateral of the AC
func (l acLimits) x(n int) int {
	return l.ac[0] + l.hem3*n
}

// xRange returns the columns between the AC offsets a and b in ascending
// order
func (l acLimits) xRange(a, b int) (int, int) {
	lo, hi := l.x(a), l.x(b)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// hemisphere returns the columns from the AC to the lateral edge of the grid
func (l acLimits) hemisphere() (int, int) {
	if l.hem3 > 0 {
		return l.ac[0], l.dims[0] - 1
	}
	return 0, l.ac[0]
}

// medial returns the columns from the medial edge of the grid to n voxels
// lateral of the AC
func (l acLimits) medial(n int) (int, int) {
	if l.hem3 > 0 {
		return 0, l.x(n)
	}
	return l.x(n), l.dims[0] - 1
}

