package meshproj

import (
	"github.com/soypat/meshproj/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Hit is the result of projecting a point onto a single triangle.
type Hit struct {
	// Point is the closest point on the triangle.
	Point r3.Vec
	// Bary are the barycentric coordinates of Point. Bary[i] weights
	// the triangle's ith vertex (a, b, c) and the weights sum to 1.
	Bary [3]float64
}

// ProjectOnTriangle returns the closest point to p on the triangle (a, b, c)
// along with its barycentric coordinates. It never fails; degenerate
// triangles yield some barycentric combination of their vertices.
func ProjectOnTriangle(p, a, b, c r3.Vec) Hit {
	return projectOnTriangle(p, d3.Triangle{a, b, c})
}

func projectOnTriangle(p r3.Vec, t d3.Triangle) Hit {
	pt, bary := t.Closest(p)
	return Hit{Point: pt, Bary: bary}
}
