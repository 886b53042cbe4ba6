package volume

import (
	"math"
	"math/rand"
	"testing"
)

func TestHistogram(t *testing.T) {
	g := newTestGrid(t, 4)
	for i := range g.Data {
		g.Data[i] = float32(i % 4 * 10)
	}
	h := g.Histogram()
	if len(h) != HistogramBins {
		t.Fatalf("Expected %d bins, got %d", HistogramBins, len(h))
	}
	if h[0] != 0 {
		t.Errorf("Expected zero voxels to be ignored, got %v", h[0])
	}
	if h[10] != 16 || h[20] != 16 || h[30] != 16 {
		t.Errorf("Expected 16 voxels in bins 10, 20 and 30, got %v %v %v", h[10], h[20], h[30])
	}
}

func TestEstimatePeaks(t *testing.T) {
	g := newTestGrid(t, 20)
	r := rand.New(rand.NewSource(3))
	for i := range g.Data {
		switch r.Intn(10) {
		case 0, 1:
			g.Data[i] = 0
		case 2, 3, 4:
			g.Data[i] = float32(90 + r.NormFloat64()*3)
		default:
			g.Data[i] = float32(170 + r.NormFloat64()*3)
		}
	}
	peaks, ok := g.EstimatePeaks()
	if !ok {
		t.Fatal("Expected two peaks")
	}
	if math.Abs(peaks.Gray-90) > 4 || math.Abs(peaks.White-170) > 4 {
		t.Errorf("Expected peaks near 90 and 170, got %+v", peaks)
	}
	if !peaks.Valid() {
		t.Errorf("Expected valid peaks, got %+v", peaks)
	}

	flat := newTestGrid(t, 6)
	flat.SetAll(120)
	if _, ok := flat.EstimatePeaks(); ok {
		t.Error("Expected no peaks for a constant volume")
	}
}
