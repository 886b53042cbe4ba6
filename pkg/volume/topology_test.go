package volume

import "testing"

func TestTopologyCounts(t *testing.T) {
	tests := []struct {
		name  string
		build func(g *Grid)
		want  TopologyCounts
	}{
		{
			name:  "empty",
			build: func(g *Grid) {},
			want:  TopologyCounts{},
		},
		{
			name:  "single voxel",
			build: func(g *Grid) { g.Set(5, 5, 5, On) },
			want:  TopologyCounts{Objects: 1, EulerCount: 2},
		},
		{
			name:  "box",
			build: func(g *Grid) { fillBox(g, NewExtent(2, 9, 3, 8, 4, 10), On) },
			want:  TopologyCounts{Objects: 1, EulerCount: 2},
		},
		{
			name: "two boxes",
			build: func(g *Grid) {
				fillBox(g, NewExtent(1, 3, 1, 3, 1, 3), On)
				fillBox(g, NewExtent(6, 9, 6, 9, 6, 9), On)
			},
			want: TopologyCounts{Objects: 2, EulerCount: 4},
		},
		{
			name: "square ring",
			build: func(g *Grid) {
				fillBox(g, NewExtent(2, 11, 2, 11, 4, 7), On)
				fillBox(g, NewExtent(5, 8, 5, 8, 4, 7), 0)
			},
			want: TopologyCounts{Objects: 1, Holes: 1, EulerCount: 0},
		},
		{
			name: "hollow box",
			build: func(g *Grid) {
				fillBox(g, NewExtent(2, 11, 2, 11, 2, 11), On)
				fillBox(g, NewExtent(5, 8, 5, 8, 5, 8), 0)
			},
			want: TopologyCounts{Objects: 1, Cavities: 1, EulerCount: 4},
		},
		{
			name: "two handles",
			build: func(g *Grid) {
				fillBox(g, NewExtent(1, 12, 2, 11, 4, 7), On)
				fillBox(g, NewExtent(3, 5, 5, 8, 4, 7), 0)
				fillBox(g, NewExtent(8, 10, 5, 8, 4, 7), 0)
			},
			want: TopologyCounts{Objects: 1, Holes: 2, EulerCount: -2},
		},
		{
			name:  "ball",
			build: func(g *Grid) { fillBall(g, [3]int{7, 7, 7}, 5, On) },
			want:  TopologyCounts{Objects: 1, EulerCount: 2},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGrid(t, 14)
			tc.build(g)
			got := g.Topology()
			if got != tc.want {
				t.Errorf("Expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestTopologyDiagonalVoxels(t *testing.T) {
	g := newTestGrid(t, 4)
	// the anti-diagonal is not a Kuhn edge, so these are separate objects
	g.Set(1, 2, 1, On)
	g.Set(2, 1, 1, On)
	got := g.Topology()
	if got.Objects != 2 || got.Holes != 0 {
		t.Errorf("Expected 2 objects without holes, got %+v", got)
	}

	// on the main diagonal the pair forms one object
	g = newTestGrid(t, 4)
	g.Set(1, 1, 1, On)
	g.Set(2, 2, 2, On)
	got = g.Topology()
	if got.Objects != 1 || got.EulerCount != 2 {
		t.Errorf("Expected 1 object with Euler number 2, got %+v", got)
	}
}

func TestEulerCharacteristicLocalSum(t *testing.T) {
	g := newTestGrid(t, 14)
	fillBox(g, NewExtent(2, 11, 2, 11, 4, 7), On)
	fillBox(g, NewExtent(5, 8, 5, 8, 4, 7), 0)

	// splitting the grid into two slabs partitions the simplices
	lower := g.EulerCharacteristicIn(NewExtent(0, 13, 0, 13, 0, 5))
	upper := g.EulerCharacteristicIn(NewExtent(0, 13, 0, 13, 6, 13))
	if lower+upper != g.EulerCharacteristic() {
		t.Errorf("Expected local sums %d+%d to match %d", lower, upper, g.EulerCharacteristic())
	}
}
