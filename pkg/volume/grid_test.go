package volume

import (
	"errors"
	"math"
	"testing"
)

// newTestGrid creates a cubic scalar grid with 1mm voxels
func newTestGrid(t *testing.T, n int) *Grid {
	t.Helper()
	g, err := New([3]int{n, n, n}, [3]float64{1, 1, 1}, 1)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	return g
}

// fillBox sets every voxel of ext
func fillBox(g *Grid, ext Extent, v float32) {
	for k := ext.Min[2]; k <= ext.Max[2]; k++ {
		for j := ext.Min[1]; j <= ext.Max[1]; j++ {
			for i := ext.Min[0]; i <= ext.Max[0]; i++ {
				g.Set(i, j, k, v)
			}
		}
	}
}

// fillBall sets every voxel within r of c
func fillBall(g *Grid, c [3]int, r float64, v float32) {
	for k := 0; k < g.Dims[2]; k++ {
		for j := 0; j < g.Dims[1]; j++ {
			for i := 0; i < g.Dims[0]; i++ {
				dx, dy, dz := float64(i-c[0]), float64(j-c[1]), float64(k-c[2])
				if dx*dx+dy*dy+dz*dz <= r*r {
					g.Set(i, j, k, v)
				}
			}
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		dims       [3]int
		spacing    [3]float64
		components int
		wantErr    error
	}{
		{"scalar", [3]int{4, 5, 6}, [3]float64{1, 1, 1}, 1, nil},
		{"vector", [3]int{4, 5, 6}, [3]float64{1, 2, 3}, 3, nil},
		{"zero dimension", [3]int{0, 5, 6}, [3]float64{1, 1, 1}, 1, ErrInvalidGeometry},
		{"negative spacing", [3]int{4, 5, 6}, [3]float64{1, -1, 1}, 1, ErrInvalidGeometry},
		{"two components", [3]int{4, 5, 6}, [3]float64{1, 1, 1}, 2, ErrInvalidGeometry},
		{"too many voxels", [3]int{1 << 11, 1 << 11, 1 << 11}, [3]float64{1, 1, 1}, 1, ErrResourceExhausted},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := New(tc.dims, tc.spacing, tc.components)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			want := tc.dims[0] * tc.dims[1] * tc.dims[2] * tc.components
			if len(g.Data) != want {
				t.Errorf("Expected %d values, got %d", want, len(g.Data))
			}
			if err := g.Validate(); err != nil {
				t.Errorf("Expected valid grid, got %v", err)
			}
		})
	}
}

func TestIndexRoundTrip(t *testing.T) {
	g, _ := New([3]int{3, 4, 5}, [3]float64{1, 1, 1}, 1)
	for idx := 0; idx < g.NumVoxels(); idx++ {
		i, j, k := g.IJK(idx)
		if got := g.Index(i, j, k); got != idx {
			t.Fatalf("Expected index %d, got %d for (%d,%d,%d)", idx, got, i, j, k)
		}
	}
}

func TestACIndex(t *testing.T) {
	g, _ := New([3]int{40, 50, 30}, [3]float64{1, 1, 2}, 1)

	if err := g.CenterAtIndex([3]int{20, 25, 10}); err != nil {
		t.Fatalf("Failed to center grid: %v", err)
	}
	ac, ok, err := g.ACIndex()
	if err != nil || !ok {
		t.Fatalf("Expected AC inside grid, got ok=%v err=%v", ok, err)
	}
	if ac != [3]int{20, 25, 10} {
		t.Errorf("Expected AC (20,25,10), got %v", ac)
	}

	tr, _ := g.Transform()
	p := tr.ToStereotaxic([3]float64{21, 25, 11})
	if math.Abs(p[0]-1) > 1e-9 || math.Abs(p[2]-2) > 1e-9 {
		t.Errorf("Expected (1,0,2), got %v", p)
	}

	g.Origin = [3]float64{100, 100, 100}
	if _, ok, _ := g.ACIndex(); ok {
		t.Error("Expected AC outside grid after moving the origin")
	}
}

func TestTransformFlippedAxes(t *testing.T) {
	g, _ := New([3]int{10, 10, 10}, [3]float64{1, 1, 1}, 1)
	g.Orientation = [3]Orientation{RightToLeft, AnteriorToPosterior, InferiorToSuperior}
	if err := g.CenterAtIndex([3]int{5, 5, 5}); err != nil {
		t.Fatalf("Failed to center grid: %v", err)
	}
	tr, _ := g.Transform()
	p := tr.ToStereotaxic([3]float64{6, 6, 6})
	if math.Abs(p[0]+1) > 1e-9 || math.Abs(p[1]+1) > 1e-9 || math.Abs(p[2]-1) > 1e-9 {
		t.Errorf("Expected (-1,-1,1), got %v", p)
	}
	back := tr.ToIndex(p)
	for a := 0; a < 3; a++ {
		if math.Abs(back[a]-6) > 1e-9 {
			t.Errorf("Expected index 6 on axis %d, got %v", a, back[a])
		}
	}

	g.Orientation = [3]Orientation{LeftToRight, LeftToRight, InferiorToSuperior}
	if _, err := g.Transform(); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("Expected ErrInvalidGeometry for duplicate axes, got %v", err)
	}
}

func TestSameGeometry(t *testing.T) {
	a := newTestGrid(t, 4)
	b, _ := New([3]int{4, 4, 5}, [3]float64{1, 1, 1}, 1)
	if err := a.SameGeometry(b); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
	if err := a.SameGeometry(a.Clone()); err != nil {
		t.Errorf("Expected clone to match, got %v", err)
	}
}
