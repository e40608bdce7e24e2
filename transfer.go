package meshproj

import (
	"fmt"
	"math"

	"github.com/soypat/meshproj/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is an affine 4x4 transformation applied to transferred points.
// The zero value is the identity.
type Transform = d3.Transform

// NewTransform returns a Transform from 16 values in row-major order.
// It panics if len(rowMajor) != 16.
func NewTransform(rowMajor []float64) Transform { return d3.NewTransform(rowMajor) }

// ComposeTransform returns the Transform that scales, rotates by q and
// then translates by position.
func ComposeTransform(position, scale r3.Vec, q r3.Rotation) Transform {
	return d3.ComposeTransform(position, scale, q)
}

// Interpolate returns, for every query of r, the barycentric blend of the
// per-vertex attribute attr at the corners of the winning triangle of m.
// Interpolating m.Vertices reproduces r.Projections.
func (r Result) Interpolate(m Mesh, attr []r3.Vec) ([]r3.Vec, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(attr) != len(m.Vertices) {
		return nil, fmt.Errorf("got %d attributes for %d vertices: %w", len(attr), len(m.Vertices), ErrAttrLength)
	}
	return r.blend(m.Triangles, attr)
}

// TransferOptions configures Transfer.
type TransferOptions struct {
	// Transform is applied to every transferred point, for instance
	// the object-to-world matrix of the target. Zero value is the identity.
	Transform Transform
	// MaxError is the largest distance between a query and its projection
	// for which a point is transferred. Points further away are set to NaN.
	// Zero or negative values disable the check.
	MaxError float64
}

// Transfer maps the projection result r, computed on a parameter mesh, onto
// a target point set. corners holds for every triangle of the parameter mesh
// the indices of its corners in target. The corner positions are blended
// with the barycentric coordinates of each projection and transformed by
// opts.Transform.
func Transfer(r Result, corners [][3]int, target []r3.Vec, opts TransferOptions) ([]r3.Vec, error) {
	for i, tri := range corners {
		for j, idx := range tri {
			if idx < 0 || idx >= len(target) {
				return nil, &IndexError{Triangle: i, Corner: j, Index: idx, NumVertices: len(target)}
			}
		}
	}
	if opts.MaxError > 0 && len(r.Dist2) != r.Len() {
		return nil, fmt.Errorf("result has %d distances for %d projections: %w", len(r.Dist2), r.Len(), ErrAttrLength)
	}
	out, err := r.blend(corners, target)
	if err != nil {
		return nil, err
	}
	maxDist2 := opts.MaxError * opts.MaxError
	nan := math.NaN()
	for i := range out {
		if opts.MaxError > 0 && r.Dist2[i] > maxDist2 {
			out[i] = r3.Vec{X: nan, Y: nan, Z: nan}
			continue
		}
		out[i] = opts.Transform.Transform(out[i])
	}
	return out, nil
}

func (r Result) blend(triangles [][3]int, attr []r3.Vec) ([]r3.Vec, error) {
	out := make([]r3.Vec, r.Len())
	for i, it := range r.Triangles {
		if it < 0 || it >= len(triangles) {
			return nil, fmt.Errorf("query %d won triangle %d, have %d triangles: %w", i, it, len(triangles), ErrAttrLength)
		}
		tri := triangles[it]
		out[i] = d3.Triangle{attr[tri[0]], attr[tri[1]], attr[tri[2]]}.Interpolate(r.Barycentric[i])
	}
	return out, nil
}
