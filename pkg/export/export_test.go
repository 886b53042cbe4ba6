package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"surefit/pkg/correction"
	"surefit/pkg/surface"
	"surefit/pkg/volume"
)

func testGrid(t *testing.T) *volume.Grid {
	t.Helper()
	g, err := volume.New([3]int{6, 5, 4}, [3]float64{1, 1.5, 2}, 1)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	for i := range g.Data {
		g.Data[i] = float32(i % 7)
	}
	g.Origin = [3]float64{-3, -4, -5}
	return g
}

func TestWriteVolume(t *testing.T) {
	dir := t.TempDir()
	g := testGrid(t)
	path := filepath.Join(dir, "nested", "anatomy.npy")

	if err := WriteVolume(path, g); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}
	back, err := ReadVolume(path, g)
	if err != nil {
		t.Fatalf("Failed to read volume: %v", err)
	}
	if !back.Equal(g) {
		t.Error("Expected the volume to survive a write and read")
	}
	if back.Origin != g.Origin || back.Spacing != g.Spacing {
		t.Errorf("Expected geometry %v/%v, got %v/%v", g.Origin, g.Spacing, back.Origin, back.Spacing)
	}

	// voxel (i, j, k) lands at [k][j][i]
	g.Set(5, 0, 0, 99)
	if err := WriteVolume(path, g); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}
	plain, err := ReadVolume(path, nil)
	if err != nil {
		t.Fatalf("Failed to read volume: %v", err)
	}
	if plain.Dims != g.Dims || plain.At(5, 0, 0) != 99 {
		t.Errorf("Expected dims %v with voxel (5,0,0)=99, got %v and %v", g.Dims, plain.Dims, plain.At(5, 0, 0))
	}

	other, _ := volume.New([3]int{2, 2, 2}, [3]float64{1, 1, 1}, 1)
	if _, err := ReadVolume(path, other); !errors.Is(err, volume.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestReadVolumeClosesFile(t *testing.T) {
	if _, err := os.Stat("/proc/self/fd"); err != nil {
		t.Skip("Skipping descriptor count without /proc")
	}
	openFiles := func() int {
		entries, err := os.ReadDir("/proc/self/fd")
		if err != nil {
			t.Fatalf("Failed to list descriptors: %v", err)
		}
		return len(entries)
	}

	g := testGrid(t)
	path := filepath.Join(t.TempDir(), "anatomy.npy")
	if err := WriteVolume(path, g); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}
	before := openFiles()
	for i := 0; i < 50; i++ {
		if _, err := ReadVolume(path, g); err != nil {
			t.Fatalf("Failed to read volume: %v", err)
		}
	}
	if after := openFiles(); after > before+5 {
		t.Errorf("Expected reads to release their files, descriptors grew from %d to %d", before, after)
	}
}

func TestWriteVectorVolume(t *testing.T) {
	g := testGrid(t)
	grad := g.Gradient()
	path := filepath.Join(t.TempDir(), "gradient.npy")
	if err := WriteVolume(path, grad); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}
	back, err := ReadVolume(path, nil)
	if err != nil {
		t.Fatalf("Failed to read volume: %v", err)
	}
	if back.Components != 3 || len(back.Data) != len(grad.Data) {
		t.Errorf("Expected a vector grid of %d values, got %d components and %d values",
			len(grad.Data), back.Components, len(back.Data))
	}
}

func sphereSurface(t *testing.T) *surface.Surface {
	t.Helper()
	g, err := volume.New([3]int{12, 12, 12}, [3]float64{1, 1, 1}, 1)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	for k := 0; k < 12; k++ {
		for j := 0; j < 12; j++ {
			for i := 0; i < 12; i++ {
				if (i-6)*(i-6)+(j-6)*(j-6)+(k-6)*(k-6) <= 16 {
					g.Set(i, j, k, volume.On)
				}
			}
		}
	}
	s, err := surface.NewMarchingTetrahedra(g).Extract()
	if err != nil {
		t.Fatalf("Failed to extract surface: %v", err)
	}
	return s
}

func TestWriteVertexAttributes(t *testing.T) {
	s := sphereSurface(t)
	s.Fiducial = surface.Smooth(s.Topology, s.Raw, surface.SmoothParams{Strength: 0.5, Iterations: 1, NumWorkers: 1})
	s.Labels = make([]string, s.Topology.NumVertices)
	s.Labels[0] = surface.CutFaceLabel

	path := filepath.Join(t.TempDir(), "vertices.csv")
	if err := WriteVertexAttributes(path, s); err != nil {
		t.Fatalf("Failed to write attributes: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read back: %v", err)
	}
	header := strings.SplitN(string(data), "\n", 2)[0]
	if header != "vertex,x,y,z,fiducial_x,fiducial_y,fiducial_z,label" {
		t.Errorf("Unexpected header %q", header)
	}

	records, err := ReadVertexAttributes(path)
	if err != nil {
		t.Fatalf("Failed to parse attributes: %v", err)
	}
	if len(records) != s.Topology.NumVertices {
		t.Fatalf("Expected %d rows, got %d", s.Topology.NumVertices, len(records))
	}
	if records[0].Label != surface.CutFaceLabel || records[1].Label != "" {
		t.Errorf("Expected only vertex 0 labelled, got %q and %q", records[0].Label, records[1].Label)
	}
	if records[3].X != s.Raw[3].X || records[3].FZ != s.Fiducial[3].Z {
		t.Errorf("Expected coordinates of vertex 3, got %+v", records[3])
	}

	s.Labels = s.Labels[:1]
	if err := WriteVertexAttributes(path, s); err == nil {
		t.Error("Expected an error for a label set of the wrong size")
	}
}

func TestWriteReport(t *testing.T) {
	g, _ := volume.New([3]int{16, 16, 16}, [3]float64{1, 1, 1}, 1)
	for k := 5; k <= 9; k++ {
		for j := 2; j <= 13; j++ {
			for i := 2; i <= 13; i++ {
				if i < 6 || i > 7 || j < 6 || j > 7 {
					g.Set(i, j, k, volume.On)
				}
			}
		}
	}
	fixed, cr, err := correction.Apply(context.Background(), g, correction.Graph, correction.DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to correct: %v", err)
	}

	r := &Report{
		Created:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Structure:    "left",
		Segmentation: fixed.Topology(),
		Correction:   cr,
		Surfaces:     []SurfaceReport{{Name: "fiducial", Counts: sphereSurface(t).Topology.EulerCounts()}},
		Warnings:     []string{"AC not in volume"},
		Stages:       []string{"errorCorrection", "surface"},
	}
	path := filepath.Join(t.TempDir(), "report.yaml")
	if err := WriteReport(path, r); err != nil {
		t.Fatalf("Failed to write report: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "method: graph") {
		t.Errorf("Expected the method by name in the report, got:\n%s", data)
	}

	back, err := ReadReport(path)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	if back.Correction == nil || back.Correction.Method != correction.Graph {
		t.Errorf("Expected the graph method, got %+v", back.Correction)
	}
	if back.Segmentation != r.Segmentation || back.Defects() {
		t.Errorf("Expected a defect-free segmentation %+v, got %+v", r.Segmentation, back.Segmentation)
	}
	if len(back.Surfaces) != 1 || !back.Surfaces[0].Counts.Sphere() {
		t.Errorf("Expected one sphere surface, got %+v", back.Surfaces)
	}
}
