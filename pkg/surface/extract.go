package surface

import (
	"fmt"

	"github.com/golang/geo/r3"

	"surefit/internal/models"
	"surefit/pkg/volume"
)

// kuhnTets are the six tetrahedra of a unit cube, each a chain of corner
// offsets from (0,0,0) to (1,1,1). They triangulate the lattice the same way
// the topology counts of the volume package do.
var kuhnTets = func() [6][4][3]int {
	perms := [6][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	var tets [6][4][3]int
	for t, p := range perms {
		var cur [3]int
		for s := 0; s < 3; s++ {
			cur[p[s]] = 1
			tets[t][s+1] = cur
		}
	}
	return tets
}()

// MarchingTetrahedra extracts the iso-surface of a segmentation volume. Each
// voxel cube is split into six tetrahedra so the surface is always a closed
// manifold whose Euler number matches the volume topology counts.
type MarchingTetrahedra struct {
	grid    *volume.Grid
	iso     float32
	padding models.PaddingSpec
}

// NewMarchingTetrahedra creates an extractor for a binary segmentation. The
// default iso level lies halfway between unset and set voxels.
func NewMarchingTetrahedra(seg *volume.Grid) *MarchingTetrahedra {
	return &MarchingTetrahedra{grid: seg, iso: volume.On / 2}
}

// SetIsoLevel changes the iso level. It must be positive since everything
// outside the grid counts as zero.
func (mt *MarchingTetrahedra) SetIsoLevel(iso float32) {
	mt.iso = iso
}

// SetPadding labels vertices inside the padding band of cut faces with
// CutFaceLabel
func (mt *MarchingTetrahedra) SetPadding(spec models.PaddingSpec) {
	mt.padding = spec
}

// Extract builds the surface. Coordinates are stereotaxic millimetres.
func (mt *MarchingTetrahedra) Extract() (*Surface, error) {
	g := mt.grid
	if g == nil {
		return nil, fmt.Errorf("no volume to extract from")
	}
	if mt.iso <= 0 {
		return nil, fmt.Errorf("iso level %v must be positive", mt.iso)
	}
	tr, err := g.Transform()
	if err != nil {
		return nil, fmt.Errorf("failed to build coordinate transform: %w", err)
	}

	nx, ny, nz := g.Dims[0], g.Dims[1], g.Dims[2]
	px, py := int64(nx+2), int64(ny+2)
	vertexIndex := make(map[int64]int32)
	var lattice []r3.Vector
	var triangles [][3]int32

	// crossing returns the vertex on the lattice edge a -> b where b = a + d
	// with d in {0,1}^3
	crossing := func(a, b [3]int) int32 {
		dir := int64((b[0]-a[0])|(b[1]-a[1])<<1|(b[2]-a[2])<<2) - 1
		key := ((int64(a[2]+1)*py+int64(a[1]+1))*px+int64(a[0]+1))*7 + dir
		if v, ok := vertexIndex[key]; ok {
			return v
		}
		va, vb := g.At(a[0], a[1], a[2]), g.At(b[0], b[1], b[2])
		t := float64((mt.iso - va) / (vb - va))
		pa := r3.Vector{X: float64(a[0]), Y: float64(a[1]), Z: float64(a[2])}
		pb := r3.Vector{X: float64(b[0]), Y: float64(b[1]), Z: float64(b[2])}
		v := int32(len(lattice))
		lattice = append(lattice, pa.Add(pb.Sub(pa).Mul(t)))
		vertexIndex[key] = v
		return v
	}

	// emit orients a triangle so its normal points from inC to outC
	emit := func(a, b, c int32, inC, outC r3.Vector) {
		n := lattice[b].Sub(lattice[a]).Cross(lattice[c].Sub(lattice[a]))
		if n.Dot(outC.Sub(inC)) < 0 {
			b, c = c, b
		}
		triangles = append(triangles, [3]int32{a, b, c})
	}

	for k := -1; k < nz; k++ {
		for j := -1; j < ny; j++ {
			for i := -1; i < nx; i++ {
				var corner [8]bool
				nIn := 0
				for c := 0; c < 8; c++ {
					corner[c] = g.At(i+c&1, j+(c>>1)&1, k+(c>>2)&1) >= mt.iso
					if corner[c] {
						nIn++
					}
				}
				if nIn == 0 || nIn == 8 {
					continue
				}
				for _, tet := range kuhnTets {
					var pts [4][3]int
					var ins, outs []int
					var inC, outC r3.Vector
					for v := 0; v < 4; v++ {
						pts[v] = [3]int{i + tet[v][0], j + tet[v][1], k + tet[v][2]}
						p := r3.Vector{X: float64(pts[v][0]), Y: float64(pts[v][1]), Z: float64(pts[v][2])}
						if corner[tet[v][0]|tet[v][1]<<1|tet[v][2]<<2] {
							ins = append(ins, v)
							inC = inC.Add(p)
						} else {
							outs = append(outs, v)
							outC = outC.Add(p)
						}
					}
					if len(ins) == 0 || len(outs) == 0 {
						continue
					}
					inC = inC.Mul(1 / float64(len(ins)))
					outC = outC.Mul(1 / float64(len(outs)))

					// chain order puts the lower lattice point first
					cross := func(u, w int) int32 {
						if u > w {
							u, w = w, u
						}
						return crossing(pts[u], pts[w])
					}
					switch len(ins) {
					case 1:
						v := ins[0]
						emit(cross(v, outs[0]), cross(v, outs[1]), cross(v, outs[2]), inC, outC)
					case 3:
						o := outs[0]
						emit(cross(ins[0], o), cross(ins[1], o), cross(ins[2], o), inC, outC)
					case 2:
						a, b := ins[0], ins[1]
						c, d := outs[0], outs[1]
						ac, ad, bd, bc := cross(a, c), cross(a, d), cross(b, d), cross(b, c)
						emit(ac, ad, bd, inC, outC)
						emit(ac, bd, bc, inC, outC)
					}
				}
			}
		}
	}

	if tr.Determinant() < 0 {
		for t := range triangles {
			triangles[t][1], triangles[t][2] = triangles[t][2], triangles[t][1]
		}
	}

	raw := make(Coordinates, len(lattice))
	for v, p := range lattice {
		s := tr.ToStereotaxic([3]float64{p.X, p.Y, p.Z})
		raw[v] = r3.Vector{X: s[0], Y: s[1], Z: s[2]}
	}

	s := &Surface{
		Topology: &Topology{NumVertices: len(lattice), Triangles: triangles},
		Raw:      raw,
	}
	if mt.padding.Active() {
		s.Labels = cutFaceLabels(lattice, g.Dims, mt.padding)
	}
	return s, nil
}
