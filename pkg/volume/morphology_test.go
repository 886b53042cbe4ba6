package volume

import "testing"

func TestDilateErode(t *testing.T) {
	g := newTestGrid(t, 9)
	g.Set(4, 4, 4, On)

	d := g.Dilate(Conn6, 1)
	if n := d.Count(); n != 7 {
		t.Errorf("Expected 7 voxels after one face dilation, got %d", n)
	}
	if n := g.Dilate(Conn26, 1).Count(); n != 27 {
		t.Errorf("Expected 27 voxels after one full dilation, got %d", n)
	}
	if n := d.Erode(Conn6, 1).Count(); n != 1 {
		t.Errorf("Expected the center to survive erosion, got %d voxels", n)
	}

	// erosion treats the outside as unset
	full := newTestGrid(t, 3)
	full.SetAll(On)
	if n := full.Erode(Conn6, 1).Count(); n != 1 {
		t.Errorf("Expected only the center of a full 3x3x3 grid, got %d", n)
	}
}

func TestMorphOpsAndShell(t *testing.T) {
	g := newTestGrid(t, 16)
	fillBox(g, NewExtent(4, 11, 4, 11, 4, 11), On)

	closed := g.MorphOps(2, 2)
	if !closed.Equal(g) {
		t.Error("Expected a box to survive dilate/erode unchanged")
	}

	shell := g.Shell(1, 1)
	if shell.At(8, 8, 8) != 0 {
		t.Error("Expected the interior to be excluded from the shell")
	}
	if shell.At(3, 8, 8) == 0 || shell.At(4, 8, 8) == 0 {
		t.Error("Expected both sides of the boundary in the shell")
	}
	if shell.At(5, 8, 8) != 0 {
		t.Error("Expected the shell to be two voxels thick")
	}
}

func TestOpenRemovesThinBridge(t *testing.T) {
	g := newTestGrid(t, 20)
	fillBox(g, NewExtent(2, 7, 2, 7, 2, 7), On)
	fillBox(g, NewExtent(12, 17, 2, 7, 2, 7), On)
	fillBox(g, NewExtent(8, 11, 4, 4, 4, 4), On)

	if n := componentCount(t, g, Conn6); n != 1 {
		t.Fatalf("Expected the bridge to join the boxes, got %d components", n)
	}
	if n := componentCount(t, g.Open(Conn6, 1), Conn6); n != 2 {
		t.Errorf("Expected opening to cut the bridge, got %d components", n)
	}
}
