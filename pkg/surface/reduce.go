package surface

import (
	"fmt"
	"sort"

	"github.com/golang/geo/r3"
)

// Reduce collapses the shortest edges until the surface has at most
// maxTriangles triangles or no edge can be collapsed without changing the
// topology or flipping a triangle. Every coordinate set receives the same
// collapses, and the input is left untouched.
func Reduce(s *Surface, maxTriangles int) (*Surface, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("failed to reduce surface: %w", err)
	}
	if maxTriangles < 4 {
		return nil, fmt.Errorf("failed to reduce surface: %d triangles cannot close a surface", maxTriangles)
	}
	out := s.Clone()
	for len(out.Topology.Triangles) > maxTriangles {
		alive, collapsed := out.collapsePass(maxTriangles)
		out = out.compact(alive)
		if collapsed == 0 {
			break
		}
	}
	return out, nil
}

// collapsePass collapses non-overlapping edges, shortest first. Both ends and
// their neighbours are locked after a collapse so the adjacency stays valid
// for the rest of the pass.
func (s *Surface) collapsePass(maxTriangles int) ([]bool, int) {
	topo := s.Topology
	primary := s.Primary()
	tris := topo.Triangles
	alive := make([]bool, len(tris))
	for i := range alive {
		alive[i] = true
	}
	remaining := len(tris)

	vertTris := make([][]int, topo.NumVertices)
	numVertices := 0
	for t, tri := range tris {
		for _, v := range tri {
			if vertTris[v] == nil {
				numVertices++
			}
			vertTris[v] = append(vertTris[v], t)
		}
	}
	neighbors := topo.Neighbors()

	edges := make([]edge, 0, len(tris)*3/2)
	for e := range topo.Edges() {
		edges = append(edges, e)
	}
	length := func(e edge) float64 { return primary[e.A].Sub(primary[e.B]).Norm2() }
	sort.Slice(edges, func(i, j int) bool {
		li, lj := length(edges[i]), length(edges[j])
		if li != lj {
			return li < lj
		}
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})

	locked := make([]bool, topo.NumVertices)
	collapsed := 0
	for _, e := range edges {
		if remaining <= maxTriangles || numVertices <= 4 {
			break
		}
		a, b := e.A, e.B
		if locked[a] || locked[b] {
			continue
		}
		if commonNeighbors(neighbors[a], neighbors[b]) != 2 {
			continue
		}
		mid := primary[a].Add(primary[b]).Mul(0.5)
		if flips(tris, alive, vertTris[a], a, b, mid, primary) || flips(tris, alive, vertTris[b], b, a, mid, primary) {
			continue
		}

		for _, set := range s.coordinateSets() {
			c := *set
			c[a] = c[a].Add(c[b]).Mul(0.5)
		}
		for _, t := range vertTris[b] {
			if !alive[t] {
				continue
			}
			tri := &tris[t]
			if tri[0] == a || tri[1] == a || tri[2] == a {
				alive[t] = false
				remaining--
				continue
			}
			for c := 0; c < 3; c++ {
				if tri[c] == b {
					tri[c] = a
				}
			}
			vertTris[a] = append(vertTris[a], t)
		}
		vertTris[b] = nil
		numVertices--

		locked[a], locked[b] = true, true
		for _, n := range neighbors[a] {
			locked[n] = true
		}
		for _, n := range neighbors[b] {
			locked[n] = true
		}
		collapsed++
	}
	return alive, collapsed
}

func commonNeighbors(a, b []int32) int {
	n := 0
	for _, x := range a {
		for _, y := range b {
			if x == y {
				n++
				break
			}
		}
	}
	return n
}

// flips reports whether moving v to pos turns any triangle of v that does not
// contain other upside down or makes it degenerate
func flips(tris [][3]int32, alive []bool, vt []int, v, other int32, pos r3.Vector, coords Coordinates) bool {
	for _, t := range vt {
		if !alive[t] {
			continue
		}
		tri := tris[t]
		if tri[0] == other || tri[1] == other || tri[2] == other {
			continue
		}
		before := coords.TriangleNormal(tri)
		moved := make(Coordinates, 3)
		for c := 0; c < 3; c++ {
			if tri[c] == v {
				moved[c] = pos
			} else {
				moved[c] = coords[tri[c]]
			}
		}
		after := moved.TriangleNormal([3]int32{0, 1, 2})
		if after.Norm2() == 0 || before.Dot(after) <= 0 {
			return true
		}
	}
	return false
}
