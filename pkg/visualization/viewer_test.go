package visualization

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"surefit/pkg/volume"
)

// newRampGrid returns a grid whose value grows with k
func newRampGrid(t *testing.T, dims [3]int, spacing [3]float64) *volume.Grid {
	t.Helper()
	g, err := volume.New(dims, spacing, 1)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	for k := 0; k < dims[2]; k++ {
		for j := 0; j < dims[1]; j++ {
			for i := 0; i < dims[0]; i++ {
				g.Set(i, j, k, float32(k*10))
			}
		}
	}
	return g
}

func grayAt(t *testing.T, c color.Color) uint8 {
	t.Helper()
	return color.GrayModel.Convert(c).(color.Gray).Y
}

func TestNewViewer(t *testing.T) {
	g := newRampGrid(t, [3]int{10, 8, 5}, [3]float64{1, 1, 1})
	viewer, err := NewViewer(g)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	if viewer.lo != 0 || viewer.hi != 40 {
		t.Errorf("Expected range 0-40, got %v-%v", viewer.lo, viewer.hi)
	}

	vec, err := volume.New([3]int{4, 4, 4}, [3]float64{1, 1, 1}, 3)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	if _, err := NewViewer(vec); err == nil {
		t.Error("Expected error for a vector volume, got nil")
	}
}

func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 8, 5
	viewer, err := NewViewer(newRampGrid(t, [3]int{width, height, depth}, [3]float64{1, 1, 1}))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}
		b := img.Bounds()
		if b.Dx() != width || b.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d", width, height, b.Dx(), b.Dy())
		}
		want := uint8(math.Round(float64(z) * 255 / float64(depth-1)))
		if got := grayAt(t, img.At(b.Min.X+width/2, b.Min.Y+height/2)); got != want {
			t.Errorf("Expected Z slice value %d at center, got %d", want, got)
		}
	}

	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	b := imgX.Bounds()
	if b.Dx() != height || b.Dy() != depth {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", height, depth, b.Dx(), b.Dy())
	}
	// the top row shows the highest k
	if top := grayAt(t, imgX.At(b.Min.X, b.Min.Y)); top != 255 {
		t.Errorf("Expected the top row to be white, got %d", top)
	}
	if bottom := grayAt(t, imgX.At(b.Min.X, b.Max.Y-1)); bottom != 0 {
		t.Errorf("Expected the bottom row to be black, got %d", bottom)
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", depth); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
}

func TestExtractSliceAnisotropic(t *testing.T) {
	viewer, err := NewViewer(newRampGrid(t, [3]int{10, 8, 5}, [3]float64{1, 1, 2}))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	img, err := viewer.ExtractSlice("y", 3)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 10 {
		t.Errorf("Expected a 10x10 slice for 2mm slices, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestExtractRegion(t *testing.T) {
	g := newRampGrid(t, [3]int{10, 10, 5}, [3]float64{1, 1, 1})
	viewer, err := NewViewer(g)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	region, err := viewer.ExtractRegion(volume.NewExtent(2, 5, 3, 5, 1, 2))
	if err != nil {
		t.Fatalf("Failed to extract region: %v", err)
	}
	if region.Dims != [3]int{4, 3, 2} {
		t.Errorf("Expected region dimensions [4 3 2], got %v", region.Dims)
	}
	for k := 0; k < 2; k++ {
		if got, want := region.At(0, 0, k), g.At(2, 3, 1+k); got != want {
			t.Errorf("Expected %v at k=%d, got %v", want, k, got)
		}
	}

	if _, err := viewer.ExtractRegion(volume.NewExtent(-1, 0, 0, 0, 0, 0)); err == nil {
		t.Error("Expected error for negative start coordinate, got nil")
	}
	if _, err := viewer.ExtractRegion(volume.NewExtent(9, 10, 0, 0, 0, 0)); err == nil {
		t.Error("Expected error for region extending beyond volume, got nil")
	}
}

func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	depth := 3
	viewer, err := NewViewer(newRampGrid(t, [3]int{5, 5, depth}, [3]float64{1, 1, 1}))
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	outputDir := filepath.Join(t.TempDir(), "slices")
	if err := viewer.SaveSliceSequence("z", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}
	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
