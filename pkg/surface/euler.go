package surface

import "github.com/theodesp/unionfind"

// EulerCounts reports the topology of a closed triangle mesh
type EulerCounts struct {
	Vertices int `yaml:"vertices" csv:"vertices"`
	Edges    int `yaml:"edges" csv:"edges"`
	Faces    int `yaml:"faces" csv:"faces"`

	// Objects is the number of connected pieces
	Objects int `yaml:"objects" csv:"objects"`

	// EulerNumber is V - E + F, 2 for a single sphere
	EulerNumber int `yaml:"eulerNumber" csv:"euler_number"`

	// Holes is the total genus over all pieces
	Holes int `yaml:"holes" csv:"holes"`
}

// Sphere reports whether the mesh is a single piece of genus zero
func (e EulerCounts) Sphere() bool {
	return e.Objects == 1 && e.EulerNumber == 2
}

// EulerCounts counts vertices, edges and faces of the topology. Vertices no
// triangle uses are ignored.
func (t *Topology) EulerCounts() EulerCounts {
	used := make([]bool, t.NumVertices)
	for _, tri := range t.Triangles {
		for _, v := range tri {
			used[v] = true
		}
	}
	counts := EulerCounts{
		Edges: len(t.Edges()),
		Faces: len(t.Triangles),
	}
	for _, u := range used {
		if u {
			counts.Vertices++
		}
	}
	counts.EulerNumber = counts.Vertices - counts.Edges + counts.Faces

	counts.Objects = len(t.components(used))
	// each closed orientable piece contributes 2 - 2g
	counts.Holes = counts.Objects - counts.EulerNumber/2
	return counts
}

// components groups the used vertices into connected pieces
func (t *Topology) components(used []bool) [][]int32 {
	if t.NumVertices == 0 {
		return nil
	}
	uf := unionfind.New(t.NumVertices)
	for _, tri := range t.Triangles {
		uf.Union(int(tri[0]), int(tri[1]))
		uf.Union(int(tri[0]), int(tri[2]))
	}
	index := map[int]int{}
	var out [][]int32
	for v := 0; v < t.NumVertices; v++ {
		if !used[v] {
			continue
		}
		r := uf.Root(v)
		c, ok := index[r]
		if !ok {
			c = len(out)
			index[r] = c
			out = append(out, nil)
		}
		out[c] = append(out[c], int32(v))
	}
	return out
}
