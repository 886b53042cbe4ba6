// Package visualization renders slices of segmentation volumes as images for
// quick visual checks of a run.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"surefit/pkg/volume"
)

// Viewer extracts and saves 2D slices of a scalar volume
type Viewer struct {
	grid *volume.Grid

	// lo and hi map to black and white
	lo, hi float32
}

// NewViewer creates a viewer for g. Intensities are scaled from the grid's
// value range to 0-255.
func NewViewer(g *volume.Grid) (*Viewer, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if g.Components != 1 {
		return nil, fmt.Errorf("viewer needs a scalar volume, got %d components", g.Components)
	}
	lo, hi := g.Range()
	return &Viewer{grid: g, lo: lo, hi: hi}, nil
}

func axisIndex(axis string) (int, error) {
	switch axis {
	case "x", "X":
		return 0, nil
	case "y", "Y":
		return 1, nil
	case "z", "Z":
		return 2, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// sliceAxes returns the grid axes shown horizontally and vertically
func sliceAxes(a int) (int, int) {
	switch a {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	}
	return 0, 1
}

func (v *Viewer) gray(val float32) uint8 {
	if v.hi <= v.lo {
		if val > 0 {
			return 255
		}
		return 0
	}
	s := (val - v.lo) / (v.hi - v.lo) * 255
	return uint8(math.Round(float64(min(max(s, 0), 255))))
}

// ExtractSlice extracts the slice at position along axis. Rows run from the
// top of the volume down and the image is stretched to square voxels.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	a, err := axisIndex(axis)
	if err != nil {
		return nil, err
	}
	g := v.grid
	if position < 0 || position >= g.Dims[a] {
		return nil, fmt.Errorf("position %d outside 0-%d along %s", position, g.Dims[a]-1, axis)
	}

	ha, va := sliceAxes(a)
	w, h := g.Dims[ha], g.Dims[va]
	img := image.NewGray(image.Rect(0, 0, w, h))
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			var ijk [3]int
			ijk[a], ijk[ha], ijk[va] = position, col, row
			img.SetGray(col, row, color.Gray{Y: v.gray(g.At(ijk[0], ijk[1], ijk[2]))})
		}
	}
	out := imaging.FlipV(img)

	sw, sh := g.Spacing[ha], g.Spacing[va]
	if sw != sh {
		unit := min(sw, sh)
		return imaging.Resize(out, int(math.Round(float64(w)*sw/unit)), int(math.Round(float64(h)*sh/unit)), imaging.NearestNeighbor), nil
	}
	return out, nil
}

// ExtractRegion copies the voxels of ext into a new grid of the extent's size
func (v *Viewer) ExtractRegion(ext volume.Extent) (*volume.Grid, error) {
	g := v.grid
	c := ext.Clamp(g.Dims)
	if c != ext || ext.Empty() {
		return nil, fmt.Errorf("region %v extends beyond volume %v", ext, g.Dims)
	}
	dims := [3]int{ext.Max[0] - ext.Min[0] + 1, ext.Max[1] - ext.Min[1] + 1, ext.Max[2] - ext.Min[2] + 1}
	out, err := volume.New(dims, g.Spacing, 1)
	if err != nil {
		return nil, err
	}
	out.Orientation = g.Orientation
	for k := 0; k < dims[2]; k++ {
		for j := 0; j < dims[1]; j++ {
			for i := 0; i < dims[0]; i++ {
				out.Set(i, j, k, g.At(ext.Min[0]+i, ext.Min[1]+j, ext.Min[2]+k))
			}
		}
	}
	return out, nil
}

// SaveSlice saves an extracted slice; the format follows the file extension
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	if err := imaging.Save(img, filename); err != nil {
		return fmt.Errorf("failed to save slice %s: %w", filename, err)
	}
	return nil
}

// SaveSliceSequence extracts and saves every slice along axis as PNG
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	a, err := axisIndex(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < v.grid.Dims[a]; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
