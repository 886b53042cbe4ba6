package surface

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/theodesp/unionfind"
)

// ErrCorrectionIncomplete is returned when handles remain after correction
var ErrCorrectionIncomplete = errors.New("topology correction left handles")

// CorrectTopology returns a new surface of genus zero built from the largest
// piece of s. Each handle is removed by cutting along its shortest generator
// loop and capping both sides of the cut with a fan; the caps can produce
// sharp geometry. The input surface is not modified.
func CorrectTopology(s *Surface) (*Surface, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("failed to correct topology: %w", err)
	}
	if err := s.Topology.ValidateManifold(); err != nil {
		return nil, fmt.Errorf("failed to correct topology: %w", err)
	}
	out := s.largestComponent()
	start := out.Topology.EulerCounts()
	for cut := 0; cut <= start.Holes; cut++ {
		if out.Topology.EulerCounts().Holes <= 0 {
			return out, nil
		}
		loop, err := out.shortestGenerator()
		if err != nil {
			return nil, fmt.Errorf("failed to correct topology: %w", err)
		}
		out = out.cutAndCap(loop)
		if err := out.Topology.ValidateManifold(); err != nil {
			return nil, fmt.Errorf("failed to cut handle: %w", err)
		}
	}
	if h := out.Topology.EulerCounts().Holes; h > 0 {
		return out, fmt.Errorf("%w: %d remaining", ErrCorrectionIncomplete, h)
	}
	return out, nil
}

// largestComponent returns a compacted copy holding only the biggest piece
func (s *Surface) largestComponent() *Surface {
	topo := s.Topology
	if topo.NumVertices == 0 {
		return s.Clone()
	}
	uf := unionfind.New(topo.NumVertices)
	for _, tri := range topo.Triangles {
		uf.Union(int(tri[0]), int(tri[1]))
		uf.Union(int(tri[0]), int(tri[2]))
	}
	sizes := map[int]int{}
	for _, tri := range topo.Triangles {
		sizes[uf.Root(int(tri[0]))]++
	}
	best, bestSize := -1, 0
	for r, n := range sizes {
		if n > bestSize || (n == bestSize && r < best) {
			best, bestSize = r, n
		}
	}
	keep := make([]bool, len(topo.Triangles))
	for t, tri := range topo.Triangles {
		keep[t] = uf.Root(int(tri[0])) == best
	}
	return s.compact(keep)
}

// shortestGenerator finds the homology generators of the surface with a
// tree-cotree decomposition and returns the shortest as a vertex cycle
func (s *Surface) shortestGenerator() ([]int32, error) {
	topo := s.Topology
	coords := s.Primary()
	neighbors := topo.Neighbors()

	// primal breadth-first spanning tree
	parent := make([]int32, topo.NumVertices)
	depth := make([]int, topo.NumVertices)
	for i := range parent {
		parent[i] = -2
	}
	root := topo.Triangles[0][0]
	parent[root] = -1
	queue := []int32{root}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, u := range neighbors[v] {
			if parent[u] == -2 {
				parent[u] = v
				depth[u] = depth[v] + 1
				queue = append(queue, u)
			}
		}
	}
	inTree := func(e edge) bool {
		return parent[e.A] == e.B || parent[e.B] == e.A
	}

	// dual spanning tree over the edges not in the primal tree
	edgeTris := make(map[edge][]int, len(topo.Triangles)*3/2)
	for t, tri := range topo.Triangles {
		for c := 0; c < 3; c++ {
			e := makeEdge(tri[c], tri[(c+1)%3])
			edgeTris[e] = append(edgeTris[e], t)
		}
	}
	dual := map[edge]bool{}
	visited := make([]bool, len(topo.Triangles))
	visited[0] = true
	faces := []int{0}
	for len(faces) > 0 {
		t := faces[0]
		faces = faces[1:]
		tri := topo.Triangles[t]
		for c := 0; c < 3; c++ {
			e := makeEdge(tri[c], tri[(c+1)%3])
			if inTree(e) {
				continue
			}
			for _, o := range edgeTris[e] {
				if !visited[o] {
					visited[o] = true
					dual[e] = true
					faces = append(faces, o)
				}
			}
		}
	}

	var best []int32
	bestLen := 0.0
	for e := range edgeTris {
		if inTree(e) || dual[e] {
			continue
		}
		loop := treeCycle(parent, depth, e.A, e.B)
		l := 0.0
		for i := range loop {
			l += coords[loop[i]].Distance(coords[loop[(i+1)%len(loop)]])
		}
		if best == nil || l < bestLen || (l == bestLen && len(loop) < len(best)) {
			best, bestLen = loop, l
		}
	}
	if best == nil {
		return nil, errors.New("no generator loop found")
	}
	return best, nil
}

// treeCycle closes the tree paths from u and v with the edge (v, u)
func treeCycle(parent []int32, depth []int, u, v int32) []int32 {
	var up, down []int32
	for depth[u] > depth[v] {
		up = append(up, u)
		u = parent[u]
	}
	for depth[v] > depth[u] {
		down = append(down, v)
		v = parent[v]
	}
	for u != v {
		up = append(up, u)
		down = append(down, v)
		u, v = parent[u], parent[v]
	}
	up = append(up, u)
	for i := len(down) - 1; i >= 0; i-- {
		up = append(up, down[i])
	}
	return up
}

// cutAndCap duplicates the loop vertices on the right-hand side of the loop
// and closes both boundaries with a fan around a new centre vertex
func (s *Surface) cutAndCap(loop []int32) *Surface {
	topo := s.Topology
	n := int32(topo.NumVertices)
	m := len(loop)
	de, _ := topo.directedEdges()

	vertTris := make([][]int, topo.NumVertices)
	for t, tri := range topo.Triangles {
		for _, v := range tri {
			vertTris[v] = append(vertTris[v], t)
		}
	}

	out := s.Clone()
	tris := out.Topology.Triangles
	for i, l := range loop {
		next, prev := loop[(i+1)%m], loop[(i+m-1)%m]

		// walk counter-clockwise from the loop edge to next until the loop
		// edge to prev; these triangles lie on the left of the loop
		left := map[int]bool{}
		t := de[[2]int32{l, next}]
		for steps := 0; steps <= len(vertTris[l]); steps++ {
			left[t] = true
			tri := topo.Triangles[t]
			pos := 0
			for tri[pos] != l {
				pos++
			}
			y := tri[(pos+2)%3]
			if y == prev {
				break
			}
			t = de[[2]int32{l, y}]
		}

		dup := n + int32(i)
		for _, t := range vertTris[l] {
			if left[t] {
				continue
			}
			for c := 0; c < 3; c++ {
				if tris[t][c] == l {
					tris[t][c] = dup
				}
			}
		}
	}

	centerA, centerB := n+int32(m), n+int32(m)+1
	for i := 0; i < m; i++ {
		a, b := loop[i], loop[(i+1)%m]
		tris = append(tris, [3]int32{centerA, b, a})
		tris = append(tris, [3]int32{centerB, n + int32(i), n + int32((i+1)%m)})
	}
	out.Topology.Triangles = tris
	out.Topology.NumVertices = int(n) + m + 2

	for _, set := range out.coordinateSets() {
		c := *set
		var center r3.Vector
		for _, v := range loop {
			c = append(c, c[v])
			center = center.Add(c[v])
		}
		center = center.Mul(1 / float64(m))
		*set = append(c, center, center)
	}
	if out.Labels != nil {
		for _, v := range loop {
			out.Labels = append(out.Labels, out.Labels[v])
		}
		out.Labels = append(out.Labels, "", "")
	}
	return out
}
