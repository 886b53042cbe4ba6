package correction

import (
	"github.com/theodesp/unionfind"

	"surefit/pkg/volume"
)

// graphCorrector builds, along each axis, a graph whose vertices are the
// connected pieces of every slice and whose edges join pieces that touch in
// neighbouring slices. A cycle in the foreground graph marks a handle, one in
// the background graph a tunnel. The smallest piece on a cycle is removed
// (foreground) or filled (background).
type graphCorrector struct{}

func (graphCorrector) name() string { return "Graph" }

func (graphCorrector) correct(c *run) error {
	for c.edits < c.opts.MaxIterations && c.counts.Holes > 0 {
		if err := c.ctx.Err(); err != nil {
			return err
		}
		if !c.graphPass() {
			break
		}
	}
	return nil
}

// graphPass makes at most one accepted edit and reports whether it did
func (c *run) graphPass() bool {
	for axis := 0; axis < 3; axis++ {
		for _, foreground := range []bool{true, false} {
			g := buildSliceGraph(c.seg, axis, foreground)
			for _, cycle := range g.cycles() {
				v := g.smallest(cycle)
				if v < 0 {
					continue
				}
				value := float32(0)
				if !foreground {
					value = volume.On
				}
				if c.try(g.voxels[v], value) {
					return true
				}
			}
		}
	}
	return false
}

// sliceGraph is the graph of slice pieces along one axis
type sliceGraph struct {
	voxels  [][]int // voxel indices of each piece
	outside []bool  // background pieces touching the slice border
	adj     [][]int
	edges   [][2]int
}

// buildSliceGraph labels every slice with the in-plane part of the Conn14
// neighbourhood and joins pieces of consecutive slices that are Conn14
// neighbours
func buildSliceGraph(g *volume.Grid, axis int, foreground bool) *sliceGraph {
	ua, va := (axis+1)%3, (axis+2)%3
	if ua > va {
		ua, va = va, ua
	}
	n := g.Dims[axis]
	nu, nv := g.Dims[ua], g.Dims[va]
	in := func(p [3]int) bool {
		return (g.Data[g.Index(p[0], p[1], p[2])] != 0) == foreground
	}

	sg := &sliceGraph{}
	piece := make([]int, g.NumVoxels())
	for i := range piece {
		piece[i] = -1
	}

	// in-plane Conn14 offsets: the two axes and their same-sign diagonal
	planar := [][2]int{{1, 0}, {0, 1}, {1, 1}}
	for s := 0; s < n; s++ {
		uf := unionfind.New(nu * nv)
		at := func(u, v int) [3]int {
			p := [3]int{}
			p[axis], p[ua], p[va] = s, u, v
			return p
		}
		for v := 0; v < nv; v++ {
			for u := 0; u < nu; u++ {
				if !in(at(u, v)) {
					continue
				}
				for _, o := range planar {
					uu, vv := u+o[0], v+o[1]
					if uu < nu && vv < nv && in(at(uu, vv)) {
						uf.Union(v*nu+u, vv*nu+uu)
					}
				}
			}
		}
		ids := map[int]int{}
		for v := 0; v < nv; v++ {
			for u := 0; u < nu; u++ {
				p := at(u, v)
				if !in(p) {
					continue
				}
				r := uf.Root(v*nu + u)
				id, ok := ids[r]
				if !ok {
					id = len(sg.voxels)
					ids[r] = id
					sg.voxels = append(sg.voxels, nil)
					sg.outside = append(sg.outside, false)
				}
				idx := g.Index(p[0], p[1], p[2])
				piece[idx] = id
				sg.voxels[id] = append(sg.voxels[id], idx)
				if u == 0 || v == 0 || u == nu-1 || v == nv-1 {
					sg.outside[id] = true
				}
			}
		}
	}

	// Conn14 offsets that step +1 along the axis
	seen := map[[2]int]bool{}
	sg.adj = make([][]int, len(sg.voxels))
	for id, vox := range sg.voxels {
		for _, idx := range vox {
			p := [3]int{}
			p[0], p[1], p[2] = g.IJK(idx)
			for du := 0; du <= 1; du++ {
				for dv := 0; dv <= 1; dv++ {
					q := p
					q[axis]++
					q[ua] += du
					q[va] += dv
					if !g.InBounds(q[0], q[1], q[2]) {
						continue
					}
					other := piece[g.Index(q[0], q[1], q[2])]
					if other < 0 {
						continue
					}
					key := [2]int{id, other}
					if seen[key] {
						continue
					}
					seen[key] = true
					sg.edges = append(sg.edges, key)
					sg.adj[id] = append(sg.adj[id], other)
					sg.adj[other] = append(sg.adj[other], id)
				}
			}
		}
	}
	return sg
}

// cycles returns one cycle per edge that closes a loop in a spanning forest
func (sg *sliceGraph) cycles() [][]int {
	n := len(sg.voxels)
	parent := make([]int, n)
	depth := make([]int, n)
	for i := range parent {
		parent[i] = -2
	}
	tree := map[[2]int]bool{}
	for root := 0; root < n; root++ {
		if parent[root] != -2 {
			continue
		}
		parent[root] = -1
		queue := []int{root}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, u := range sg.adj[v] {
				if parent[u] == -2 {
					parent[u] = v
					depth[u] = depth[v] + 1
					tree[[2]int{min(u, v), max(u, v)}] = true
					queue = append(queue, u)
				}
			}
		}
	}

	// a union-find pass picks the closing edges
	uf := unionfind.New(max(n, 1))
	var out [][]int
	for _, e := range sg.edges {
		a, b := e[0], e[1]
		if tree[[2]int{min(a, b), max(a, b)}] {
			uf.Union(a, b)
		}
	}
	for _, e := range sg.edges {
		a, b := e[0], e[1]
		if tree[[2]int{min(a, b), max(a, b)}] {
			continue
		}
		if uf.Root(a) != uf.Root(b) {
			continue
		}
		var up, down []int
		for depth[a] > depth[b] {
			up = append(up, a)
			a = parent[a]
		}
		for depth[b] > depth[a] {
			down = append(down, b)
			b = parent[b]
		}
		for a != b {
			up = append(up, a)
			down = append(down, b)
			a, b = parent[a], parent[b]
		}
		out = append(out, append(append(up, a), down...))
	}
	return out
}

// smallest returns the piece with the fewest voxels on the cycle, skipping
// background pieces that reach the slice border
func (sg *sliceGraph) smallest(cycle []int) int {
	best := -1
	for _, v := range cycle {
		if sg.outside[v] {
			continue
		}
		if best < 0 || len(sg.voxels[v]) < len(sg.voxels[best]) {
			best = v
		}
	}
	return best
}
