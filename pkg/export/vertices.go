package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"surefit/pkg/surface"
)

// VertexRecord is one row of a per-vertex attribute table
type VertexRecord struct {
	Vertex int     `csv:"vertex"`
	X      float64 `csv:"x"`
	Y      float64 `csv:"y"`
	Z      float64 `csv:"z"`

	// fiducial coordinates, equal to the raw ones when no fiducial set exists
	FX float64 `csv:"fiducial_x"`
	FY float64 `csv:"fiducial_y"`
	FZ float64 `csv:"fiducial_z"`

	Label string `csv:"label"`
}

// VertexRecords flattens the coordinate sets and labels of a surface
func VertexRecords(s *surface.Surface) ([]*VertexRecord, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	raw, fid := s.Raw, s.Primary()
	records := make([]*VertexRecord, s.Topology.NumVertices)
	for v := range records {
		r := &VertexRecord{
			Vertex: v,
			X:      raw[v].X, Y: raw[v].Y, Z: raw[v].Z,
			FX: fid[v].X, FY: fid[v].Y, FZ: fid[v].Z,
		}
		if s.Labels != nil {
			r.Label = s.Labels[v]
		}
		records[v] = r
	}
	return records, nil
}

// WriteVertexAttributes writes one CSV row per surface vertex
func WriteVertexAttributes(path string, s *surface.Surface) error {
	records, err := VertexRecords(s)
	if err != nil {
		return fmt.Errorf("failed to collect vertex attributes: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&records, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadVertexAttributes loads a table written by WriteVertexAttributes
func ReadVertexAttributes(path string) ([]*VertexRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var records []*VertexRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}
