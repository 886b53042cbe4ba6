// Package surface holds the triangle meshes reconstructed from a segmentation
// volume: extraction, Euler counts, polygon reduction, smoothing and the
// optional exact topology correction.
package surface

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
)

// ErrNotManifold is returned when an operation needs a closed, consistently
// oriented 2-manifold and the topology is not one
var ErrNotManifold = errors.New("surface is not a closed oriented manifold")

// Topology is the connectivity shared by every coordinate set of a surface.
// Triangles are counter-clockwise seen from outside.
type Topology struct {
	NumVertices int
	Triangles   [][3]int32
}

// Clone returns a deep copy of the topology
func (t *Topology) Clone() *Topology {
	c := &Topology{NumVertices: t.NumVertices, Triangles: make([][3]int32, len(t.Triangles))}
	copy(c.Triangles, t.Triangles)
	return c
}

// edge is an undirected edge with A < B
type edge struct{ A, B int32 }

func makeEdge(a, b int32) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

// Edges returns every edge with the number of triangles using it
func (t *Topology) Edges() map[edge]int {
	edges := make(map[edge]int, len(t.Triangles)*3/2)
	for _, tri := range t.Triangles {
		for c := 0; c < 3; c++ {
			edges[makeEdge(tri[c], tri[(c+1)%3])]++
		}
	}
	return edges
}

// Neighbors returns the vertices adjacent to each vertex
func (t *Topology) Neighbors() [][]int32 {
	seen := make([]map[int32]struct{}, t.NumVertices)
	for _, tri := range t.Triangles {
		for c := 0; c < 3; c++ {
			a, b := tri[c], tri[(c+1)%3]
			if seen[a] == nil {
				seen[a] = map[int32]struct{}{}
			}
			if seen[b] == nil {
				seen[b] = map[int32]struct{}{}
			}
			seen[a][b] = struct{}{}
			seen[b][a] = struct{}{}
		}
	}
	out := make([][]int32, t.NumVertices)
	for v, s := range seen {
		for n := range s {
			out[v] = append(out[v], n)
		}
	}
	return out
}

// directedEdges maps every directed triangle edge to its triangle
func (t *Topology) directedEdges() (map[[2]int32]int, error) {
	de := make(map[[2]int32]int, len(t.Triangles)*3)
	for i, tri := range t.Triangles {
		for c := 0; c < 3; c++ {
			k := [2]int32{tri[c], tri[(c+1)%3]}
			if _, dup := de[k]; dup {
				return nil, fmt.Errorf("%w: edge %v used twice in one direction", ErrNotManifold, k)
			}
			de[k] = i
		}
	}
	return de, nil
}

// ValidateManifold checks that every edge joins exactly two triangles with
// opposite orientation
func (t *Topology) ValidateManifold() error {
	de, err := t.directedEdges()
	if err != nil {
		return err
	}
	for _, tri := range t.Triangles {
		for c := 0; c < 3; c++ {
			a, b := tri[c], tri[(c+1)%3]
			if a < 0 || b < 0 || int(a) >= t.NumVertices || int(b) >= t.NumVertices {
				return fmt.Errorf("%w: vertex index out of range", ErrNotManifold)
			}
			if a == b {
				return fmt.Errorf("%w: degenerate triangle %v", ErrNotManifold, tri)
			}
			if _, ok := de[[2]int32{b, a}]; !ok {
				return fmt.Errorf("%w: edge (%d,%d) is a border", ErrNotManifold, a, b)
			}
		}
	}
	return nil
}

// Coordinates holds one position per vertex in stereotaxic millimetres
type Coordinates []r3.Vector

// Clone returns a copy of the coordinates
func (c Coordinates) Clone() Coordinates {
	out := make(Coordinates, len(c))
	copy(out, c)
	return out
}

// Centroid returns the mean vertex position
func (c Coordinates) Centroid() r3.Vector {
	var sum r3.Vector
	for _, p := range c {
		sum = sum.Add(p)
	}
	if len(c) == 0 {
		return sum
	}
	return sum.Mul(1 / float64(len(c)))
}

// TriangleNormal returns the unit normal of a triangle, or the zero vector
// for a degenerate one
func (c Coordinates) TriangleNormal(tri [3]int32) r3.Vector {
	n := c[tri[1]].Sub(c[tri[0]]).Cross(c[tri[2]].Sub(c[tri[0]]))
	if n.Norm2() == 0 {
		return n
	}
	return n.Normalize()
}

// CutFaceLabel marks vertices generated inside a padding band
const CutFaceLabel = "CUT.FACE"

// Surface is a topology with its coordinate sets. Raw holds the extracted
// positions; Fiducial, when present, is the lightly smoothed variant sharing
// the same topology.
type Surface struct {
	Topology *Topology
	Raw      Coordinates
	Fiducial Coordinates

	// Labels holds an optional per-vertex label (empty for none)
	Labels []string
}

// coordinateSets returns every non-empty coordinate set
func (s *Surface) coordinateSets() []*Coordinates {
	sets := []*Coordinates{&s.Raw}
	if len(s.Fiducial) > 0 {
		sets = append(sets, &s.Fiducial)
	}
	return sets
}

// Primary returns the fiducial coordinates when present, otherwise the raw ones
func (s *Surface) Primary() Coordinates {
	if len(s.Fiducial) > 0 {
		return s.Fiducial
	}
	return s.Raw
}

// Clone returns a deep copy of the surface
func (s *Surface) Clone() *Surface {
	c := &Surface{Topology: s.Topology.Clone(), Raw: s.Raw.Clone()}
	if s.Fiducial != nil {
		c.Fiducial = s.Fiducial.Clone()
	}
	if s.Labels != nil {
		c.Labels = make([]string, len(s.Labels))
		copy(c.Labels, s.Labels)
	}
	return c
}

// Validate checks that every coordinate set matches the topology
func (s *Surface) Validate() error {
	if s.Topology == nil {
		return errors.New("surface has no topology")
	}
	for _, set := range s.coordinateSets() {
		if len(*set) != s.Topology.NumVertices {
			return fmt.Errorf("coordinate set holds %d vertices, topology has %d", len(*set), s.Topology.NumVertices)
		}
	}
	if s.Labels != nil && len(s.Labels) != s.Topology.NumVertices {
		return fmt.Errorf("label set holds %d vertices, topology has %d", len(s.Labels), s.Topology.NumVertices)
	}
	return nil
}

// compact drops vertices no triangle uses and renumbers the rest. keep
// marks the triangles to retain; nil keeps them all.
func (s *Surface) compact(keep []bool) *Surface {
	remap := make([]int32, s.Topology.NumVertices)
	for i := range remap {
		remap[i] = -1
	}
	out := &Surface{Topology: &Topology{}}
	var order []int32
	for i, tri := range s.Topology.Triangles {
		if keep != nil && !keep[i] {
			continue
		}
		var nt [3]int32
		for c := 0; c < 3; c++ {
			v := tri[c]
			if remap[v] < 0 {
				remap[v] = int32(len(order))
				order = append(order, v)
			}
			nt[c] = remap[v]
		}
		out.Topology.Triangles = append(out.Topology.Triangles, nt)
	}
	out.Topology.NumVertices = len(order)
	pick := func(src Coordinates) Coordinates {
		if len(src) == 0 {
			return nil
		}
		dst := make(Coordinates, len(order))
		for i, v := range order {
			dst[i] = src[v]
		}
		return dst
	}
	out.Raw = pick(s.Raw)
	out.Fiducial = pick(s.Fiducial)
	if s.Labels != nil {
		out.Labels = make([]string, len(order))
		for i, v := range order {
			out.Labels[i] = s.Labels[v]
		}
	}
	return out
}
