package volume

import (
	"math"
	"testing"
)

func TestGradientRamp(t *testing.T) {
	g, _ := New([3]int{8, 4, 4}, [3]float64{2, 1, 1}, 1)
	for idx := 0; idx < g.NumVoxels(); idx++ {
		i, _, _ := g.IJK(idx)
		g.Data[idx] = float32(10 * i)
	}
	grad := g.Gradient()
	if grad.Components != 3 {
		t.Fatalf("Expected a vector grid, got %d components", grad.Components)
	}

	// 10 per voxel over 2mm voxels
	gx, gy, gz := grad.Vector(g.Index(3, 1, 1))
	if math.Abs(float64(gx)-5) > 1e-5 || gy != 0 || gz != 0 {
		t.Errorf("Expected (5,0,0) inside, got (%v,%v,%v)", gx, gy, gz)
	}

	// at a face the clamped difference spans one voxel
	gx, _, _ = grad.Vector(g.Index(0, 1, 1))
	if math.Abs(float64(gx)-2.5) > 1e-5 {
		t.Errorf("Expected 2.5 at the boundary, got %v", gx)
	}

	mag, err := grad.Magnitude()
	if err != nil {
		t.Fatalf("Failed to compute magnitude: %v", err)
	}
	if math.Abs(float64(mag.At(3, 1, 1))-5) > 1e-5 {
		t.Errorf("Expected magnitude 5, got %v", mag.At(3, 1, 1))
	}

	if _, err := g.Magnitude(); err == nil {
		t.Error("Expected an error for the magnitude of a scalar grid")
	}

	scaled, err := grad.ReplaceMagnitude(g.Threshold(0))
	if err != nil {
		t.Fatalf("Failed to replace magnitude: %v", err)
	}
	sx, _, _ := scaled.Vector(g.Index(3, 1, 1))
	if math.Abs(float64(sx)-255) > 1e-3 {
		t.Errorf("Expected rescaled x component 255, got %v", sx)
	}

	d, err := Dot(grad, grad)
	if err != nil {
		t.Fatalf("Failed to compute dot product: %v", err)
	}
	if math.Abs(float64(d.At(3, 1, 1))-25) > 1e-4 {
		t.Errorf("Expected squared magnitude 25, got %v", d.At(3, 1, 1))
	}
}

func TestBlurPreservesConstant(t *testing.T) {
	g := newTestGrid(t, 5)
	g.SetAll(42)
	b := g.Blur()
	for i, v := range b.Data {
		if math.Abs(float64(v)-42) > 1e-4 {
			t.Fatalf("Voxel %d: expected 42, got %v", i, v)
		}
	}

	g = newTestGrid(t, 5)
	g.Set(2, 2, 2, 64)
	b = g.Blur()
	if b.At(2, 2, 2) != 8 {
		t.Errorf("Expected peak 64/8, got %v", b.At(2, 2, 2))
	}
}

func TestClassifyIntensities(t *testing.T) {
	g := newTestGrid(t, 2)
	values := []float32{100, 50, 150, 75, 125, 40, 160, 0}
	copy(g.Data, values)

	c := g.ClassifyIntensities(100, 50, 150, 1)
	want := []float32{255, 0, 0, 127.5, 127.5, 0, 0, 0}
	for i, w := range want {
		if math.Abs(float64(c.Data[i]-w)) > 1e-3 {
			t.Errorf("Value %v: expected %v, got %v", values[i], w, c.Data[i])
		}
	}

	// a larger signum widens the plateau
	wide := g.ClassifyIntensities(100, 50, 150, 2)
	if wide.Data[3] <= c.Data[3] {
		t.Errorf("Expected signum 2 to score 75 higher than signum 1, got %v vs %v", wide.Data[3], c.Data[3])
	}
}
