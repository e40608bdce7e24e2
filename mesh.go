package meshproj

import (
	"fmt"
	"math"

	"github.com/soypat/meshproj/internal/d3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh. Each triangle holds three indices
// into Vertices. A Mesh is never modified by projection so it may be
// shared between goroutines.
type Mesh struct {
	Vertices  []r3.Vec
	Triangles [][3]int
}

// NewMesh returns a validated Mesh. See Mesh.Validate.
func NewMesh(vertices []r3.Vec, triangles [][3]int) (Mesh, error) {
	m := Mesh{Vertices: vertices, Triangles: triangles}
	if err := m.Validate(); err != nil {
		return Mesh{}, err
	}
	return m, nil
}

// MeshFromDense builds a Mesh from an (n, 3) vertex matrix and
// an (m, 3) triangle index array. Vertex data is copied.
func MeshFromDense(vertices mat.Matrix, triangles [][]int) (Mesh, error) {
	verts, err := pointsFromMatrix("vertices", vertices)
	if err != nil {
		return Mesh{}, err
	}
	tris := make([][3]int, len(triangles))
	for i, row := range triangles {
		if len(row) != 3 {
			return Mesh{}, &ShapeError{Name: "triangles", Rows: len(triangles), Cols: len(row), Row: i}
		}
		tris[i] = [3]int{row[0], row[1], row[2]}
	}
	return NewMesh(verts, tris)
}

// Validate checks that the mesh has at least one triangle, that
// every triangle index lies in [0, len(m.Vertices)) and that all
// vertices are finite.
func (m Mesh) Validate() error {
	if len(m.Triangles) == 0 {
		return ErrEmptyMesh
	}
	nv := len(m.Vertices)
	for i, tri := range m.Triangles {
		for j, idx := range tri {
			if idx < 0 || idx >= nv {
				return &IndexError{Triangle: i, Corner: j, Index: idx, NumVertices: nv}
			}
		}
	}
	for i, v := range m.Vertices {
		if !d3.IsFinite(v) {
			return fmt.Errorf("vertex %d %v: %w", i, v, ErrNonFinite)
		}
	}
	return nil
}

// Corners returns the vertex positions of the ith triangle.
func (m Mesh) Corners(i int) [3]r3.Vec {
	return [3]r3.Vec(m.triangle(i))
}

func (m Mesh) triangle(i int) d3.Triangle {
	tri := m.Triangles[i]
	return d3.Triangle{m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]}
}

// Bounds returns the bounding box of the mesh vertices.
// An empty mesh has an inverted box with Min at +Inf and Max at -Inf.
func (m Mesh) Bounds() r3.Box {
	if len(m.Vertices) == 0 {
		return r3.Box{Min: d3.Elem(math.Inf(1)), Max: d3.Elem(math.Inf(-1))}
	}
	return r3.Box(d3.Set(m.Vertices).Bounds())
}

// pointsFromMatrix copies the rows of an (n, 3) matrix into vectors.
func pointsFromMatrix(name string, a mat.Matrix) ([]r3.Vec, error) {
	r, c := a.Dims()
	if c != 3 {
		return nil, &ShapeError{Name: name, Rows: r, Cols: c, Row: -1}
	}
	pts := make([]r3.Vec, r)
	for i := range pts {
		pts[i] = r3.Vec{X: a.At(i, 0), Y: a.At(i, 1), Z: a.At(i, 2)}
	}
	return pts, nil
}
