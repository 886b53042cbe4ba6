// Package export persists the products of a segmentation run: volumes as
// NumPy .npy arrays, per-vertex surface attributes as CSV and the topology
// report as YAML.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kshedden/gonpy"

	"surefit/pkg/volume"
)

// WriteVolume stores the grid as a C-ordered float32 array of shape
// (nz, ny, nx) for scalar grids and (nz, ny, nx, 3) for vector grids
func WriteVolume(path string, g *volume.Grid) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("failed to write volume %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	w.Shape = []int{g.Dims[2], g.Dims[1], g.Dims[0]}
	if g.Components > 1 {
		w.Shape = append(w.Shape, g.Components)
	}
	w.Version = 2
	if err := w.WriteFloat32(g.Data); err != nil {
		return fmt.Errorf("failed to write volume %s: %w", path, err)
	}
	return nil
}

// ReadVolume loads an array written by WriteVolume. The geometry (spacing,
// origin, orientation) is taken from like when it is not nil, otherwise the
// grid gets 1mm spacing.
func ReadVolume(path string, like *volume.Grid) (*volume.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r, err := gonpy.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if r.ColumnMajor {
		return nil, fmt.Errorf("failed to read %s: column-major arrays are not supported", path)
	}

	components := 1
	switch len(r.Shape) {
	case 3:
	case 4:
		components = r.Shape[3]
	default:
		return nil, fmt.Errorf("failed to read %s: expected a 3D array, got shape %v", path, r.Shape)
	}
	dims := [3]int{r.Shape[2], r.Shape[1], r.Shape[0]}

	spacing := [3]float64{1, 1, 1}
	if like != nil {
		if like.Dims != dims {
			return nil, fmt.Errorf("failed to read %s: %w: %v vs %v", path, volume.ErrDimensionMismatch, dims, like.Dims)
		}
		spacing = like.Spacing
	}
	g, err := volume.New(dims, spacing, components)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if like != nil {
		g.Origin = like.Origin
		g.Orientation = like.Orientation
	}

	data, err := r.GetFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) != len(g.Data) {
		return nil, fmt.Errorf("failed to read %s: %d values for %d voxels", path, len(data), g.NumVoxels())
	}
	copy(g.Data, data)
	return g, nil
}
