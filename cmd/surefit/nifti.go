package main

import (
	"fmt"

	"github.com/henghuang/nifti"

	"surefit/pkg/volume"
)

// safelyNiftiParse consumes panics emitted by the nifti library, which are
// inappropriate and must be captured in order to turn them into recoverable
// errors.
func safelyNiftiParse(filename string) (img nifti.Nifti1Image, header nifti.Nifti1Header, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("failed to parse %s: %v", filename, panicErr)
		}
	}()

	img.LoadImage(filename, true)
	header.LoadHeader(filename)

	return
}

// loadVolume reads the first time point of a NIfTI file into a scalar grid.
// The grid is centered on ac when given, otherwise on the middle voxel.
func loadVolume(filename string, ac *[3]int) (*volume.Grid, error) {
	img, header, err := safelyNiftiParse(filename)
	if err != nil {
		return nil, err
	}
	dims := img.GetDims()
	if len(dims) < 3 {
		return nil, fmt.Errorf("failed to load %s: %d dimensions", filename, len(dims))
	}

	spacing := [3]float64{1, 1, 1}
	for a := 0; a < 3; a++ {
		if s := float64(header.Pixdim[a+1]); s > 0 {
			spacing[a] = s
		}
	}
	g, err := volume.New([3]int{dims[0], dims[1], dims[2]}, spacing, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filename, err)
	}
	for k := 0; k < dims[2]; k++ {
		for j := 0; j < dims[1]; j++ {
			for i := 0; i < dims[0]; i++ {
				g.Set(i, j, k, float32(img.GetAt(i, j, k, 0)))
			}
		}
	}

	center := [3]int{dims[0] / 2, dims[1] / 2, dims[2] / 2}
	if ac != nil {
		center = *ac
	}
	if err := g.CenterAtIndex(center); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filename, err)
	}
	return g, nil
}
