package correction

import (
	"context"
	"errors"
	"testing"

	"surefit/pkg/volume"
)

func newGrid(t testing.TB, n int) *volume.Grid {
	t.Helper()
	g, err := volume.New([3]int{n, n, n}, [3]float64{1, 1, 1}, 1)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	return g
}

func fillBox(g *volume.Grid, e volume.Extent, v float32) {
	for k := e.Min[2]; k <= e.Max[2]; k++ {
		for j := e.Min[1]; j <= e.Max[1]; j++ {
			for i := e.Min[0]; i <= e.Max[0]; i++ {
				g.Set(i, j, k, v)
			}
		}
	}
}

// ringGrid is a thick slab pierced by a 2x2 tunnel
func ringGrid(t testing.TB) *volume.Grid {
	g := newGrid(t, 16)
	fillBox(g, volume.NewExtent(2, 13, 2, 13, 5, 9), volume.On)
	fillBox(g, volume.NewExtent(6, 7, 6, 7, 5, 9), 0)
	return g
}

// handleGrid is a ball of radius 20 with a thin bar that leaves the top pole
// and comes back in at the equator
func handleGrid(t testing.TB) *volume.Grid {
	g := newGrid(t, 64)
	for k := 0; k < 64; k++ {
		for j := 0; j < 64; j++ {
			for i := 0; i < 64; i++ {
				dx, dy, dz := i-32, j-32, k-32
				if dx*dx+dy*dy+dz*dz <= 400 {
					g.Set(i, j, k, volume.On)
				}
			}
		}
	}
	fillBox(g, volume.NewExtent(32, 33, 32, 33, 50, 58), volume.On)
	fillBox(g, volume.NewExtent(32, 59, 32, 33, 57, 58), volume.On)
	fillBox(g, volume.NewExtent(58, 59, 32, 33, 32, 58), volume.On)
	fillBox(g, volume.NewExtent(50, 59, 32, 33, 32, 33), volume.On)
	return g
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want Method
	}{
		{"", None},
		{"none", None},
		{"Graph", Graph},
		{"surefit", SureFit},
		{"surefit_then_graph", SureFitThenGraph},
		{"Graph Then SureFit", GraphThenSureFit},
	}
	for _, tc := range tests {
		got, err := ParseMethod(tc.in)
		if err != nil {
			t.Errorf("Failed to parse %q: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Expected %v for %q, got %v", tc.want, tc.in, got)
		}
	}
	if _, err := ParseMethod("bogus"); err == nil {
		t.Error("Expected an error for an unknown method")
	}

	var m Method
	if err := m.UnmarshalText([]byte("graph-then-surefit")); err != nil || m != GraphThenSureFit {
		t.Errorf("Expected graph-then-surefit, got %v (%v)", m, err)
	}
	if text, _ := SureFitThenGraph.MarshalText(); string(text) != "surefit-then-graph" {
		t.Errorf("Expected surefit-then-graph, got %s", text)
	}
}

func TestApplyNone(t *testing.T) {
	g := ringGrid(t)
	out, report, err := Apply(context.Background(), g, None, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to apply: %v", err)
	}
	if !out.Equal(g) {
		t.Error("Expected no changes without a method")
	}
	if report.Before != report.After || report.Before.Holes != 1 {
		t.Errorf("Expected one hole before and after, got %+v -> %+v", report.Before, report.After)
	}
	if !report.Residual {
		t.Error("Expected the remaining hole to be reported")
	}
}

func TestApplyRing(t *testing.T) {
	for _, m := range []Method{Graph, SureFit, SureFitThenGraph, GraphThenSureFit} {
		t.Run(m.String(), func(t *testing.T) {
			g := ringGrid(t)
			orig := g.Clone()
			out, report, err := Apply(context.Background(), g, m, DefaultOptions())
			if err != nil {
				t.Fatalf("Failed to apply: %v", err)
			}
			if !g.Equal(orig) {
				t.Error("Expected the input grid to stay untouched")
			}
			got := out.Topology()
			if !got.Correct() {
				t.Errorf("Expected a single object without holes, got %+v", got)
			}
			if report.After != got || report.Residual {
				t.Errorf("Expected the report to match %+v, got %+v", got, report)
			}
			if report.VoxelsChanged == 0 {
				t.Error("Expected changed voxels")
			}
		})
	}
}

func TestApplyHandle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping the 64^3 handle test in short mode")
	}
	g := handleGrid(t)
	before := g.Topology()
	if before.EulerCount != 0 || before.Objects != 1 {
		t.Fatalf("Expected one object with Euler count 0, got %+v", before)
	}

	for _, m := range []Method{SureFit, Graph} {
		t.Run(m.String(), func(t *testing.T) {
			out, report, err := Apply(context.Background(), g, m, DefaultOptions())
			if err != nil {
				t.Fatalf("Failed to apply: %v", err)
			}
			after := out.Topology()
			if after.Holes >= before.Holes || after.Objects != 1 || after.Cavities != 0 {
				t.Errorf("Expected fewer holes than %+v, got %+v", before, after)
			}
			if report.After.EulerCount <= before.EulerCount {
				t.Errorf("Expected the Euler count to grow from %d, got %d", before.EulerCount, report.After.EulerCount)
			}
		})
	}
}

func TestApplyNeverAddsDefects(t *testing.T) {
	g := newGrid(t, 20)
	fillBox(g, volume.NewExtent(2, 17, 2, 17, 6, 11), volume.On)
	fillBox(g, volume.NewExtent(5, 6, 5, 6, 6, 11), 0)
	fillBox(g, volume.NewExtent(12, 14, 12, 14, 6, 11), 0)
	before := g.Topology()

	out, report, err := Apply(context.Background(), g, SureFitThenGraph, DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to apply: %v", err)
	}
	prev := before.Holes
	for _, s := range report.Steps {
		if s.Counts.Holes > prev {
			t.Errorf("Expected holes not to grow in %s, got %d after %d", s.Name, s.Counts.Holes, prev)
		}
		prev = s.Counts.Holes
	}
	if h := out.Topology().Holes; h >= before.Holes {
		t.Errorf("Expected fewer than %d holes, got %d", before.Holes, h)
	}
}

func TestApplyRadialPositionMap(t *testing.T) {
	g := ringGrid(t)
	rpm := g.Blank()
	rpm.SetAll(100)
	out, _, err := Apply(context.Background(), g, SureFit, Options{RadialPositionMap: rpm})
	if err != nil {
		t.Fatalf("Failed to apply: %v", err)
	}
	if !out.Topology().Correct() {
		t.Errorf("Expected a corrected ring, got %+v", out.Topology())
	}

	small := newGrid(t, 8)
	if _, _, err := Apply(context.Background(), g, SureFit, Options{RadialPositionMap: small}); !errors.Is(err, volume.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestApplyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Apply(ctx, ringGrid(t), SureFit, DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSliceGraphCycles(t *testing.T) {
	g := ringGrid(t)
	sg := buildSliceGraph(g, 0, true)
	cycles := sg.cycles()
	if len(cycles) == 0 {
		t.Fatal("Expected a cycle around the tunnel")
	}
	v := sg.smallest(cycles[0])
	if v < 0 || len(sg.voxels[v]) == 0 {
		t.Fatalf("Expected a removable piece, got %d", v)
	}

	solid := newGrid(t, 8)
	fillBox(solid, volume.NewExtent(2, 5, 2, 5, 2, 5), volume.On)
	for axis := 0; axis < 3; axis++ {
		if c := buildSliceGraph(solid, axis, true).cycles(); len(c) != 0 {
			t.Errorf("Expected no cycles along axis %d, got %d", axis, len(c))
		}
	}
}
