package volume

// TopologyCounts summarises the topology of a binary segmentation
type TopologyCounts struct {
	// Objects is the number of connected foreground components
	Objects int `yaml:"objects"`

	// Cavities is the number of background components enclosed by foreground
	Cavities int `yaml:"cavities"`

	// Holes is the total number of handles
	Holes int `yaml:"holes"`

	// EulerCount is the Euler number of the segmentation boundary surface,
	// 2 for a single object without handles or cavities
	EulerCount int `yaml:"eulerCount"`
}

// Correct reports whether the counts describe one object without holes or
// cavities
func (t TopologyCounts) Correct() bool {
	return t.Objects == 1 && t.Cavities == 0 && t.Holes == 0
}

// kuhnSimplices lists, for each dimension 1-3, the simplices of the Kuhn
// triangulation whose lowest vertex is the origin, as vertex offsets
var kuhnSimplices [4][][][3]int

func init() {
	unit := [3][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	add := func(a, b [3]int) [3]int { return [3]int{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

	// Every simplex is a chain 0 < e_A < e_B < ... of axis subsets; walk all
	// chains by extending with one new subset at a time.
	var walk func(chain [][3]int, used [3]bool, last [3]int)
	walk = func(chain [][3]int, used [3]bool, last [3]int) {
		if len(chain) > 1 {
			c := make([][3]int, len(chain))
			copy(c, chain)
			kuhnSimplices[len(chain)-1] = append(kuhnSimplices[len(chain)-1], c)
		}
		// the next vertex adds any non-empty set of unused axes
		for mask := 1; mask < 8; mask++ {
			ok := true
			next := last
			nu := used
			for a := 0; a < 3; a++ {
				if mask&(1<<a) == 0 {
					continue
				}
				if used[a] {
					ok = false
					break
				}
				nu[a] = true
				next = add(next, unit[a])
			}
			if ok {
				walk(append(chain, next), nu, next)
			}
		}
	}
	walk([][3]int{{0, 0, 0}}, [3]bool{}, [3]int{})
}

// EulerCharacteristicIn returns the Euler characteristic contribution of the
// simplices of the foreground complex whose lowest vertex lies in ext. Over
// the whole grid this is the Euler characteristic of the foreground solid.
func (g *Grid) EulerCharacteristicIn(ext Extent) int {
	ext = ext.Clamp(g.Dims)
	if ext.Empty() {
		return 0
	}
	set := func(i, j, k int) bool {
		return g.InBounds(i, j, k) && g.Data[g.Index(i, j, k)*g.Components] != 0
	}
	chi := 0
	for k := ext.Min[2]; k <= ext.Max[2]; k++ {
		for j := ext.Min[1]; j <= ext.Max[1]; j++ {
			for i := ext.Min[0]; i <= ext.Max[0]; i++ {
				if !set(i, j, k) {
					continue
				}
				chi++
				for dim := 1; dim <= 3; dim++ {
					sign := 1
					if dim%2 == 1 {
						sign = -1
					}
					for _, s := range kuhnSimplices[dim] {
						all := true
						for _, o := range s[1:] {
							if !set(i+o[0], j+o[1], k+o[2]) {
								all = false
								break
							}
						}
						if all {
							chi += sign
						}
					}
				}
			}
		}
	}
	return chi
}

// EulerCharacteristic returns the Euler characteristic of the foreground
func (g *Grid) EulerCharacteristic() int {
	return g.EulerCharacteristicIn(g.Full())
}

// Topology counts objects, cavities and holes of the foreground. All counts
// use Conn14 for foreground and background alike.
func (g *Grid) Topology() TopologyCounts {
	chi := g.EulerCharacteristic()
	fg := g.label(Conn14, g.Full(), g.isSet)
	bg := g.label(Conn14, g.Full(), g.isUnset)
	cavities := 0
	for l := range bg.Sizes {
		if !bg.Border[l] {
			cavities++
		}
	}
	return TopologyCounts{
		Objects:    fg.Count(),
		Cavities:   cavities,
		Holes:      fg.Count() + cavities - chi,
		EulerCount: 2 * chi,
	}
}
