package surface

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"

	"surefit/internal/models"
)

// cutFaceLabels marks the vertices whose voxel position lies within the
// padding band of a cut face
func cutFaceLabels(lattice []r3.Vector, dims [3]int, spec models.PaddingSpec) []string {
	labels := make([]string, len(lattice))
	for v, p := range lattice {
		pos := [3]float64{p.X, p.Y, p.Z}
		for f := models.FaceNegX; f <= models.FacePosZ; f++ {
			amount := spec.Effective(f)
			if amount <= 0 {
				continue
			}
			a := f.Axis()
			if (!f.Positive() && pos[a] <= float64(amount)) ||
				(f.Positive() && pos[a] >= float64(dims[a]-1-amount)) {
				labels[v] = CutFaceLabel
				break
			}
		}
	}
	return labels
}

// vertexPoint is a mesh vertex stored in a k-d tree
type vertexPoint struct {
	r3.Vector
	index int
}

// Compare implements the kdtree.Comparable interface
func (p vertexPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(vertexPoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the k-d tree
func (p vertexPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two vertices
func (p vertexPoint) Distance(c kdtree.Comparable) float64 {
	return p.Vector.Sub(c.(vertexPoint).Vector).Norm2()
}

// vertexPoints satisfies kdtree.Interface
type vertexPoints []vertexPoint

func (p vertexPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p vertexPoints) Len() int                              { return len(p) }
func (p vertexPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p vertexPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(vertexPlane{vertexPoints: p, Dim: d}, kdtree.MedianOfRandoms(vertexPlane{vertexPoints: p, Dim: d}, 100))
}

// vertexPlane implements sort.Interface and kdtree.SortSlicer
type vertexPlane struct {
	vertexPoints
	kdtree.Dim
}

func (p vertexPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.vertexPoints[i].X < p.vertexPoints[j].X
	case 1:
		return p.vertexPoints[i].Y < p.vertexPoints[j].Y
	case 2:
		return p.vertexPoints[i].Z < p.vertexPoints[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p vertexPlane) Slice(start, end int) kdtree.SortSlicer {
	return vertexPlane{vertexPoints: p.vertexPoints[start:end], Dim: p.Dim}
}

func (p vertexPlane) Swap(i, j int) {
	p.vertexPoints[i], p.vertexPoints[j] = p.vertexPoints[j], p.vertexPoints[i]
}

// TransferLabels gives every vertex of to the label of the nearest vertex of
// from. It returns nil when from carries no labels.
func TransferLabels(from *Surface, to Coordinates) []string {
	if from.Labels == nil || len(from.Raw) == 0 {
		return nil
	}
	points := make(vertexPoints, len(from.Raw))
	for i, p := range from.Raw {
		points[i] = vertexPoint{Vector: p, index: i}
	}
	tree := kdtree.New(points, true)

	labels := make([]string, len(to))
	for i, p := range to {
		nearest, _ := tree.Nearest(vertexPoint{Vector: p})
		if nearest == nil {
			continue
		}
		labels[i] = from.Labels[nearest.(vertexPoint).index]
	}
	return labels
}
