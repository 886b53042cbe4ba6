package volume

import "testing"

func TestExtentClamp(t *testing.T) {
	dims := [3]int{48, 48, 48}
	tests := []struct {
		name      string
		ext       Extent
		want      Extent
		wantEmpty bool
	}{
		{"inside", NewExtent(2, 9, 3, 10, 4, 11), NewExtent(2, 9, 3, 10, 4, 11), false},
		{"crossing faces", NewExtent(-5, 9, 40, 60, -1, 0), NewExtent(0, 9, 40, 47, 0, 0), false},
		{"beyond upper face", NewExtent(0, 9, 60, 47, 0, 9), Extent{}, true},
		{"wholly above", NewExtent(0, 9, 50, 70, 0, 9), Extent{}, true},
		{"wholly below", NewExtent(0, 9, 0, 9, -20, -5), Extent{}, true},
		{"inverted", NewExtent(9, 2, 0, 9, 0, 9), Extent{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.ext.Clamp(dims)
			if got.Empty() != tc.wantEmpty {
				t.Fatalf("Expected Empty()=%v, got %v for %+v", tc.wantEmpty, got.Empty(), got)
			}
			if !tc.wantEmpty && got != tc.want {
				t.Errorf("Expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestEmptyExtentSelectsNothing(t *testing.T) {
	g := newTestGrid(t, 8)
	fillBox(g, g.Full(), On)
	outside := NewExtent(0, 7, 12, 20, 0, 7)

	if n := g.MaskExtent(outside).Count(); n != 0 {
		t.Errorf("Expected an empty mask for an extent outside the grid, got %d voxels", n)
	}
	seed := g.Blank()
	seed.Set(0, 0, 0, On)
	grown, err := seed.Sculpt(g, SculptInside, 3, outside)
	if err != nil {
		t.Fatalf("Failed to sculpt: %v", err)
	}
	if n := grown.Count(); n != 1 {
		t.Errorf("Expected sculpting outside the grid to leave the seed alone, got %d voxels", n)
	}
}
