package meshproj

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/soypat/meshproj/internal/d3"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultGrain is the number of consecutive queries processed by
// a single goroutine when Projector.Grain is not set.
const DefaultGrain = 64

// ErrNonFinite is returned when a query point or mesh vertex has a NaN or
// infinite component.
var ErrNonFinite = errors.New("non-finite coordinate")

// Result holds the per-query output of a batch projection. All slices
// have one element per query point, in query order.
type Result struct {
	// Projections are the closest points on the mesh.
	Projections []r3.Vec
	// Barycentric are the coordinates of each projection within its triangle,
	// ordered like the triangle's vertex indices.
	Barycentric [][3]float64
	// Triangles are the indices of the triangles the projections lie on.
	Triangles []int
	// Dist2 are the squared distances between each query and its projection.
	Dist2 []float64
}

func newResult(n int) Result {
	return Result{
		Projections: make([]r3.Vec, n),
		Barycentric: make([][3]float64, n),
		Triangles:   make([]int, n),
		Dist2:       make([]float64, n),
	}
}

// Len returns the number of query points in the result.
func (r Result) Len() int { return len(r.Projections) }

// Hit returns the projection of the ith query point.
func (r Result) Hit(i int) Hit {
	return Hit{Point: r.Projections[i], Bary: r.Barycentric[i]}
}

// Projector projects batches of points onto a mesh by exhaustively testing
// every triangle. Queries are split in chunks of Grain points which are
// processed concurrently by at most Workers goroutines.
// The zero value is ready to use.
type Projector struct {
	// Workers is the maximum number of goroutines. If zero runtime.GOMAXPROCS(0) is used.
	Workers int
	// Grain is the number of queries per goroutine task. If zero DefaultGrain is used.
	Grain int
}

// ProjectPoints projects queries onto m using a zero value Projector.
func ProjectPoints(ctx context.Context, m Mesh, queries []r3.Vec) (Result, error) {
	var p Projector
	return p.Project(ctx, m, queries)
}

// Project finds for every query point the closest point on the mesh. Ties
// between triangles are resolved in favor of the lowest triangle index.
// The mesh and queries are validated before any work is done. If ctx is
// cancelled during projection the context error is returned and no
// result is produced.
func (p *Projector) Project(ctx context.Context, m Mesh, queries []r3.Vec) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}
	for i, q := range queries {
		if !d3.IsFinite(q) {
			return Result{}, fmt.Errorf("query %d %v: %w", i, q, ErrNonFinite)
		}
	}
	n := len(queries)
	res := newResult(n)
	workers, grain := p.workers(), p.grain()
	if workers == 1 || n <= grain {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res.project(m, queries, 0, n)
		return res, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < n && gctx.Err() == nil; start += grain {
		start, end := start, min(start+grain, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Chunks write disjoint ranges of res.
			res.project(m, queries, start, end)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// project writes the projections of queries[start:end] into r.
func (r Result) project(m Mesh, queries []r3.Vec, start, end int) {
	for i := start; i < end; i++ {
		q := queries[i]
		var best Hit
		bestTri := -1
		minDist2 := math.Inf(1)
		for it := range m.Triangles {
			hit := projectOnTriangle(q, m.triangle(it))
			dist2 := d3.Dist2(hit.Point, q)
			if bestTri < 0 || dist2 < minDist2 {
				minDist2 = dist2
				best = hit
				bestTri = it
			}
		}
		r.Projections[i] = best.Point
		r.Barycentric[i] = best.Bary
		r.Triangles[i] = bestTri
		r.Dist2[i] = minDist2
	}
}

func (p *Projector) workers() int {
	if p.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return p.Workers
}

func (p *Projector) grain() int {
	if p.Grain <= 0 {
		return DefaultGrain
	}
	return p.Grain
}

// ProjectDense is the array form of ProjectPoints. vertices and queries
// must be (n, 3) and (p, 3) matrices and every row of triangles must hold
// three vertex indices. It returns a (p, 3) matrix of projections, a (p, 3)
// matrix of barycentric coordinates and the p winning triangle indices.
// All inputs are validated before projecting.
func ProjectDense(ctx context.Context, vertices mat.Matrix, triangles [][]int, queries mat.Matrix) (proj, bary *mat.Dense, tri []int, err error) {
	m, err := MeshFromDense(vertices, triangles)
	if err != nil && !errors.Is(err, ErrEmptyMesh) && !errors.Is(err, ErrIndexRange) {
		return nil, nil, nil, err
	}
	// Shape errors of queries take precedence over mesh content errors.
	qs, qerr := pointsFromMatrix("queries", queries)
	if qerr != nil {
		return nil, nil, nil, qerr
	}
	if err != nil {
		return nil, nil, nil, err
	}
	res, err := ProjectPoints(ctx, m, qs)
	if err != nil {
		return nil, nil, nil, err
	}
	n := res.Len()
	if n == 0 {
		return &mat.Dense{}, &mat.Dense{}, res.Triangles, nil
	}
	proj = mat.NewDense(n, 3, nil)
	bary = mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		pt := res.Projections[i]
		proj.SetRow(i, []float64{pt.X, pt.Y, pt.Z})
		bary.SetRow(i, res.Barycentric[i][:])
	}
	return proj, bary, res.Triangles, nil
}
