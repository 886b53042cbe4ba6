// Package stl writes reconstructed surfaces as binary STL files
package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"surefit/pkg/surface"
)

// Triangle is one facet of an STL file
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// FromSurface converts a topology and one of its coordinate sets into STL
// facets with unit normals
func FromSurface(topo *surface.Topology, coords surface.Coordinates) ([]Triangle, error) {
	if len(coords) != topo.NumVertices {
		return nil, fmt.Errorf("coordinate set holds %d vertices, topology has %d", len(coords), topo.NumVertices)
	}
	triangles := make([]Triangle, 0, len(topo.Triangles))
	for _, tri := range topo.Triangles {
		n := coords.TriangleNormal(tri)
		var t Triangle
		t.Normal = [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
		for c, dst := range []*[3]float32{&t.Vertex1, &t.Vertex2, &t.Vertex3} {
			p := coords[tri[c]]
			*dst = [3]float32{float32(p.X), float32(p.Y), float32(p.Z)}
		}
		triangles = append(triangles, t)
	}
	return triangles, nil
}

// SaveToSTL writes the triangles as a binary STL file
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %v", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	header := make([]byte, 80)
	copy(header, "surefit binary STL")
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write STL header: %v", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return fmt.Errorf("failed to write triangle count: %v", err)
	}

	buf := make([]byte, 50)
	for _, t := range triangles {
		off := 0
		for _, v := range [][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			for _, f := range v {
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
				off += 4
			}
		}
		// attribute byte count
		buf[48], buf[49] = 0, 0
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("failed to write triangle: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write STL file: %v", err)
	}
	return nil
}

// LoadSTL reads a binary STL file written by SaveToSTL
func LoadSTL(filename string) ([]Triangle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open STL file: %v", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	if _, err := r.Discard(80); err != nil {
		return nil, fmt.Errorf("failed to read STL header: %v", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read triangle count: %v", err)
	}
	triangles := make([]Triangle, count)
	for i := range triangles {
		if err := binary.Read(r, binary.LittleEndian, &triangles[i]); err != nil {
			return nil, fmt.Errorf("failed to read triangle %d: %v", i, err)
		}
		if _, err := r.Discard(2); err != nil {
			return nil, fmt.Errorf("failed to read triangle %d: %v", i, err)
		}
	}
	return triangles, nil
}
