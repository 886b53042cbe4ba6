package volume

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"surefit/internal/models"
)

// HistogramBins is the number of bins used for peak estimation
const HistogramBins = 256

// minPeakSeparation is the closest two tissue peaks may lie, in bins
const minPeakSeparation = 10

// Histogram counts the non-zero voxels of a scalar grid in HistogramBins
// equal bins spanning 0-255. Values outside that range are clamped.
func (g *Grid) Histogram() []float64 {
	values := make([]float64, 0, g.NumVoxels())
	for idx := 0; idx < g.NumVoxels(); idx++ {
		v := float64(g.Data[idx*g.Components])
		if v == 0 {
			continue
		}
		values = append(values, min(max(v, 0), 255))
	}
	counts := make([]float64, HistogramBins)
	if len(values) == 0 {
		return counts
	}
	sort.Float64s(values)

	// the last divider must exceed the largest value
	dividers := make([]float64, HistogramBins+1)
	floats.Span(dividers, 0, 256)
	return stat.Histogram(counts, dividers, values, nil)
}

// EstimatePeaks finds the gray and white matter peaks of an anatomy volume
// as the two most populated histogram modes at least minPeakSeparation
// bins apart. ok is false when the histogram has no two such modes.
func (g *Grid) EstimatePeaks() (models.PeakIntensities, bool) {
	counts := smoothCounts(g.Histogram(), 2)

	type mode struct {
		bin   int
		count float64
	}
	var modes []mode
	for i := 1; i < len(counts)-1; i++ {
		if counts[i] > 0 && counts[i] >= counts[i-1] && counts[i] > counts[i+1] {
			modes = append(modes, mode{i, counts[i]})
		}
	}
	if len(modes) < 2 {
		return models.PeakIntensities{}, false
	}
	sort.Slice(modes, func(a, b int) bool { return modes[a].count > modes[b].count })

	first := modes[0]
	for _, m := range modes[1:] {
		if abs(m.bin-first.bin) < minPeakSeparation {
			continue
		}
		lo, hi := first.bin, m.bin
		if lo > hi {
			lo, hi = hi, lo
		}
		return models.PeakIntensities{Gray: float64(lo), White: float64(hi)}, true
	}
	return models.PeakIntensities{}, false
}

// smoothCounts applies a moving average of half width w
func smoothCounts(counts []float64, w int) []float64 {
	out := make([]float64, len(counts))
	for i := range counts {
		lo, hi := max(i-w, 0), min(i+w, len(counts)-1)
		out[i] = stat.Mean(counts[lo:hi+1], nil)
	}
	return out
}
