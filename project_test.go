package meshproj_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/soypat/meshproj"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// unitSquare is the unit square in the XY plane split along its diagonal.
func unitSquare() meshproj.Mesh {
	return meshproj.Mesh{
		Vertices: []r3.Vec{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 1, Y: 1, Z: 0},
			{X: 0, Y: 1, Z: 0},
		},
		Triangles: [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
}

// randomSoup returns a mesh of n unconnected random triangles.
func randomSoup(rng *rand.Rand, n int) meshproj.Mesh {
	var m meshproj.Mesh
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			m.Vertices = append(m.Vertices, randomVec(rng, 5))
		}
		m.Triangles = append(m.Triangles, [3]int{3 * i, 3*i + 1, 3*i + 2})
	}
	return m
}

func randomVec(rng *rand.Rand, size float64) r3.Vec {
	return r3.Vec{
		X: size * (2*rng.Float64() - 1),
		Y: size * (2*rng.Float64() - 1),
		Z: size * (2*rng.Float64() - 1),
	}
}

func TestProjectUnitSquare(t *testing.T) {
	res, err := meshproj.ProjectPoints(context.Background(), unitSquare(), []r3.Vec{{X: 0.5, Y: 0.5, Z: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Len() != 1 {
		t.Fatalf("got %d results, want 1", res.Len())
	}
	if got := res.Projections[0]; got != (r3.Vec{X: 0.5, Y: 0.5}) {
		t.Errorf("got projection %v, want (0.5, 0.5, 0)", got)
	}
	// The query is equidistant to both triangles. The first one wins and
	// the point lies on its AC edge.
	if res.Triangles[0] != 0 {
		t.Errorf("got triangle %d, want 0", res.Triangles[0])
	}
	if want := [3]float64{0.5, 0, 0.5}; res.Barycentric[0] != want {
		t.Errorf("got barycentric %v, want %v", res.Barycentric[0], want)
	}
	if res.Dist2[0] != 1 {
		t.Errorf("got dist2 %g, want 1", res.Dist2[0])
	}
}

func TestProjectTieBreak(t *testing.T) {
	m := unitSquare()
	// Reverse triangle order: the former second triangle must now win.
	m.Triangles = [][3]int{{0, 2, 3}, {0, 1, 2}}
	queries := []r3.Vec{{X: 0.5, Y: 0.5, Z: 1}, {X: 0.25, Y: 0.25, Z: -3}, {X: 0, Y: 0, Z: 1}}
	res, err := meshproj.ProjectPoints(context.Background(), m, queries)
	if err != nil {
		t.Fatal(err)
	}
	for i, q := range queries {
		if res.Triangles[i] != 0 {
			t.Errorf("query %v: got triangle %d, want lowest index 0", q, res.Triangles[i])
		}
	}
	if want := [3]float64{0.5, 0.5, 0}; res.Barycentric[0] != want {
		t.Errorf("got barycentric %v, want %v", res.Barycentric[0], want)
	}
}

func TestProjectOutsideBounds(t *testing.T) {
	m := unitSquare()
	for _, test := range []struct {
		q        r3.Vec
		wantPt   r3.Vec
		wantTri  int
		wantBary [3]float64
	}{
		// Nearest to edge x=1 which belongs to the first triangle only.
		{q: r3.Vec{X: 10, Y: 0.5}, wantPt: r3.Vec{X: 1, Y: 0.5}, wantTri: 0, wantBary: [3]float64{0, 0.5, 0.5}},
		// Nearest to the shared corner (1, 1, 0).
		{q: r3.Vec{X: 10, Y: 10, Z: 10}, wantPt: r3.Vec{X: 1, Y: 1}, wantTri: 0, wantBary: [3]float64{0, 0, 1}},
		// Nearest to corner (0, 1, 0) which belongs to the second triangle only.
		{q: r3.Vec{X: -50, Y: 80, Z: -1}, wantPt: r3.Vec{Y: 1}, wantTri: 1, wantBary: [3]float64{0, 0, 1}},
	} {
		res, err := meshproj.ProjectPoints(context.Background(), m, []r3.Vec{test.q})
		if err != nil {
			t.Fatal(err)
		}
		if res.Projections[0] != test.wantPt {
			t.Errorf("query %v: got %v, want %v", test.q, res.Projections[0], test.wantPt)
		}
		if res.Triangles[0] != test.wantTri {
			t.Errorf("query %v: got triangle %d, want %d", test.q, res.Triangles[0], test.wantTri)
		}
		if res.Barycentric[0] != test.wantBary {
			t.Errorf("query %v: got barycentric %v, want %v", test.q, res.Barycentric[0], test.wantBary)
		}
	}
}

func TestProjectSingleTriangle(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := randomSoup(rng, 1)
	queries := make([]r3.Vec, 500)
	for i := range queries {
		queries[i] = randomVec(rng, 10)
	}
	res, err := meshproj.ProjectPoints(context.Background(), m, queries)
	if err != nil {
		t.Fatal(err)
	}
	a, b, c := m.Vertices[0], m.Vertices[1], m.Vertices[2]
	for i, q := range queries {
		want := meshproj.ProjectOnTriangle(q, a, b, c)
		if got := res.Hit(i); got != want {
			t.Fatalf("query %d: batch got %+v, single triangle got %+v", i, got, want)
		}
		if res.Triangles[i] != 0 {
			t.Fatalf("query %d: got triangle %d", i, res.Triangles[i])
		}
	}
}

func TestProjectGlobalMinimum(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	m := randomSoup(rng, 40)
	queries := make([]r3.Vec, 200)
	for i := range queries {
		queries[i] = randomVec(rng, 8)
	}
	res, err := meshproj.ProjectPoints(context.Background(), m, queries)
	if err != nil {
		t.Fatal(err)
	}
	for i, q := range queries {
		if got := r3.Norm2(r3.Sub(res.Projections[i], q)); got != res.Dist2[i] {
			t.Fatalf("query %d: dist2 %g does not match projection distance %g", i, res.Dist2[i], got)
		}
		if !scalar.EqualWithinAbs(floats.Sum(res.Barycentric[i][:]), 1, 1e-9) {
			t.Fatalf("query %d: barycentric %v do not sum to 1", i, res.Barycentric[i])
		}
		for it := range m.Triangles {
			c := m.Corners(it)
			hit := meshproj.ProjectOnTriangle(q, c[0], c[1], c[2])
			d2 := r3.Norm2(r3.Sub(hit.Point, q))
			if d2 < res.Dist2[i] || (d2 == res.Dist2[i] && it < res.Triangles[i]) {
				t.Fatalf("query %d: triangle %d at dist2 %g beats winner %d at %g", i, it, d2, res.Triangles[i], res.Dist2[i])
			}
		}
	}
}

func TestProjectConcurrent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m := randomSoup(rng, 100)
	queries := make([]r3.Vec, 1000)
	for i := range queries {
		queries[i] = randomVec(rng, 8)
	}
	sequential := meshproj.Projector{Workers: 1}
	want, err := sequential.Project(context.Background(), m, queries)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []meshproj.Projector{
		{},
		{Workers: 4, Grain: 1},
		{Workers: 8, Grain: 7},
		{Workers: 3, Grain: 5000},
	} {
		got, err := p.Project(context.Background(), m, queries)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("projector %+v result differs from sequential projection", p)
		}
	}
}

func TestProjectCancelled(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	m := randomSoup(rng, 10)
	queries := make([]r3.Vec, 300)
	for i := range queries {
		queries[i] = randomVec(rng, 8)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, p := range []meshproj.Projector{{Workers: 1}, {Workers: 4, Grain: 10}} {
		res, err := p.Project(ctx, m, queries)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("projector %+v: got error %v, want context.Canceled", p, err)
		}
		if res.Len() != 0 {
			t.Errorf("projector %+v: got partial result of length %d", p, res.Len())
		}
	}
}

func TestProjectErrors(t *testing.T) {
	square := unitSquare()
	for _, test := range []struct {
		name    string
		mesh    meshproj.Mesh
		queries []r3.Vec
		want    error
	}{
		{name: "no triangles", mesh: meshproj.Mesh{Vertices: square.Vertices}, want: meshproj.ErrEmptyMesh},
		{name: "index too large", mesh: meshproj.Mesh{Vertices: square.Vertices, Triangles: [][3]int{{0, 1, 4}}}, want: meshproj.ErrIndexRange},
		{name: "negative index", mesh: meshproj.Mesh{Vertices: square.Vertices, Triangles: [][3]int{{-1, 1, 2}}}, want: meshproj.ErrIndexRange},
		{name: "NaN query", mesh: square, queries: []r3.Vec{{X: math.NaN()}}, want: meshproj.ErrNonFinite},
		{name: "infinite query", mesh: square, queries: []r3.Vec{{}, {Z: math.Inf(-1)}}, want: meshproj.ErrNonFinite},
		{name: "NaN vertex", mesh: meshproj.Mesh{Vertices: []r3.Vec{{}, {X: 1}, {Y: math.NaN()}}, Triangles: [][3]int{{0, 1, 2}}}, want: meshproj.ErrNonFinite},
		{name: "infinite vertex", mesh: meshproj.Mesh{Vertices: []r3.Vec{{}, {X: math.Inf(1)}, {Y: 1}}, Triangles: [][3]int{{0, 1, 2}}}, want: meshproj.ErrNonFinite},
	} {
		t.Run(test.name, func(t *testing.T) {
			queries := test.queries
			if queries == nil {
				queries = []r3.Vec{{X: 1}}
			}
			res, err := meshproj.ProjectPoints(context.Background(), test.mesh, queries)
			if !errors.Is(err, test.want) {
				t.Fatalf("got error %v, want %v", err, test.want)
			}
			if res.Len() != 0 {
				t.Errorf("got partial result of length %d", res.Len())
			}
		})
	}

	var ierr *meshproj.IndexError
	_, err := meshproj.NewMesh(square.Vertices, [][3]int{{0, 1, 2}, {0, 2, 9}})
	if !errors.As(err, &ierr) {
		t.Fatalf("got %v, want *IndexError", err)
	}
	if *ierr != (meshproj.IndexError{Triangle: 1, Corner: 2, Index: 9, NumVertices: 4}) {
		t.Errorf("got %+v", *ierr)
	}
}

// TestProjectDistanceOverflow checks that a query whose squared distance
// to every triangle overflows still gets a valid triangle.
func TestProjectDistanceOverflow(t *testing.T) {
	m, err := meshproj.NewMesh([]r3.Vec{
		{X: 1e200},
		{X: 1e200, Y: 1},
		{X: 1e200, Z: 1},
		{X: 2e200},
		{X: 2e200, Y: 1},
		{X: 2e200, Z: 1},
	}, [][3]int{{0, 1, 2}, {3, 4, 5}})
	if err != nil {
		t.Fatal(err)
	}
	res, err := meshproj.ProjectPoints(context.Background(), m, []r3.Vec{{}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Triangles[0] != 0 {
		t.Errorf("got triangle %d, want 0", res.Triangles[0])
	}
	if res.Projections[0] != m.Vertices[0] {
		t.Errorf("got projection %v, want %v", res.Projections[0], m.Vertices[0])
	}
	b := res.Barycentric[0]
	if !scalar.EqualWithinAbs(floats.Sum(b[:]), 1, 1e-12) {
		t.Errorf("barycentric %v does not sum to 1", b)
	}
	if !math.IsInf(res.Dist2[0], 1) {
		t.Errorf("got dist2 %g, want +Inf", res.Dist2[0])
	}
}

func TestProjectEmptyBatch(t *testing.T) {
	res, err := meshproj.ProjectPoints(context.Background(), unitSquare(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Len() != 0 || len(res.Triangles) != 0 {
		t.Errorf("got non-empty result %+v", res)
	}
}

func TestProjectDense(t *testing.T) {
	vertices := mat.NewDense(4, 3, []float64{
		0, 0, 0,
		1, 0, 0,
		1, 1, 0,
		0, 1, 0,
	})
	triangles := [][]int{{0, 1, 2}, {0, 2, 3}}
	queries := mat.NewDense(2, 3, []float64{
		0.5, 0.5, 1,
		0.25, 0.75, -2,
	})
	proj, bary, tri, err := meshproj.ProjectDense(context.Background(), vertices, triangles, queries)
	if err != nil {
		t.Fatal(err)
	}
	wantProj := mat.NewDense(2, 3, []float64{
		0.5, 0.5, 0,
		0.25, 0.75, 0,
	})
	if !mat.EqualApprox(proj, wantProj, 1e-12) {
		t.Errorf("got projections\n%v\nwant\n%v", mat.Formatted(proj), mat.Formatted(wantProj))
	}
	if !reflect.DeepEqual(tri, []int{0, 1}) {
		t.Errorf("got triangles %v, want [0 1]", tri)
	}
	r, c := bary.Dims()
	if r != 2 || c != 3 {
		t.Fatalf("got barycentric shape (%d, %d)", r, c)
	}
	if !floats.EqualApprox(bary.RawRowView(1), []float64{0.25, 0.25, 0.5}, 1e-12) {
		t.Errorf("got barycentric %v", bary.RawRowView(1))
	}
}

func TestProjectDenseShapes(t *testing.T) {
	good := mat.NewDense(3, 3, []float64{0, 0, 0, 1, 0, 0, 0, 1, 0})
	for _, test := range []struct {
		name      string
		vertices  mat.Matrix
		triangles [][]int
		queries   mat.Matrix
		wantName  string
	}{
		{name: "vertices", vertices: mat.NewDense(3, 2, nil), triangles: [][]int{{0, 1, 2}}, queries: good, wantName: "vertices"},
		{name: "triangles", vertices: good, triangles: [][]int{{0, 1, 2}, {0, 1}}, queries: good, wantName: "triangles"},
		{name: "queries", vertices: good, triangles: [][]int{{0, 1, 2}}, queries: mat.NewDense(2, 4, nil), wantName: "queries"},
		{name: "queries before indices", vertices: good, triangles: [][]int{{0, 1, 7}}, queries: mat.NewDense(2, 1, nil), wantName: "queries"},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, _, _, err := meshproj.ProjectDense(context.Background(), test.vertices, test.triangles, test.queries)
			var serr *meshproj.ShapeError
			if !errors.As(err, &serr) {
				t.Fatalf("got error %v, want *ShapeError", err)
			}
			if serr.Name != test.wantName {
				t.Errorf("got shape error for %q, want %q", serr.Name, test.wantName)
			}
			if !errors.Is(err, meshproj.ErrShape) {
				t.Error("shape error does not wrap ErrShape")
			}
		})
	}
	_, _, _, err := meshproj.ProjectDense(context.Background(), good, [][]int{{0, 1, 3}}, good)
	if !errors.Is(err, meshproj.ErrIndexRange) {
		t.Errorf("got %v, want ErrIndexRange", err)
	}
}

func BenchmarkProject(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	m := randomSoup(rng, 2000)
	queries := make([]r3.Vec, 2000)
	for i := range queries {
		queries[i] = randomVec(rng, 8)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := meshproj.ProjectPoints(context.Background(), m, queries)
		if err != nil {
			b.Fatal(err)
		}
	}
}
