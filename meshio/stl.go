package meshio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/chewxy/math32"
	"github.com/soypat/meshproj"
	"github.com/soypat/meshproj/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNormalMismatch is returned alongside a valid mesh by ReadSTL when stored
// triangle normals do not match the normals calculated from the vertices.
// It is common in high resolution models and may usually be ignored.
var ErrNormalMismatch = errors.New("triangle normal not approximately equal to calculated normal from vertices")

const stlTriangleSize = 50

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // Attribute byte count
}

// WriteSTL writes the mesh triangles to w in binary STL format.
func WriteSTL(w io.Writer, m meshproj.Mesh) error {
	if err := m.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	header := stlHeader{
		Count: uint32(len(m.Triangles)),
	}
	if err := binary.Write(bw, binary.LittleEndian, &header); err != nil {
		return err
	}
	var (
		d stlTriangle
		b [stlTriangleSize]byte
	)
	for i := range m.Triangles {
		tri := d3.Triangle(m.Corners(i))
		n := tri.Normal()
		if !d3.IsFinite(n) {
			n = r3.Vec{} // degenerate triangle.
		}
		d.Normal = to3F32(n)
		d.Vertex1 = to3F32(tri[0])
		d.Vertex2 = to3F32(tri[1])
		d.Vertex3 = to3F32(tri[2])
		d.put(b[:])
		if _, err := bw.Write(b[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadSTL reads a binary STL file and welds vertices closer than weldTol
// into shared vertices of an indexed mesh. If weldTol is zero it is
// inferred from the shortest triangle edge. The returned error may wrap
// ErrNormalMismatch in which case the mesh is still valid.
func ReadSTL(r io.Reader, weldTol float64) (meshproj.Mesh, error) {
	soup, readErr := readBinarySTL(bufio.NewReader(r))
	if readErr != nil && !errors.Is(readErr, ErrNormalMismatch) {
		return meshproj.Mesh{}, readErr
	}
	m, err := Weld(soup, weldTol)
	if err != nil {
		return meshproj.Mesh{}, err
	}
	return m, readErr
}

func readBinarySTL(r io.Reader) (output [][3]r3.Vec, readErr error) {
	var header stlHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, errors.New("encountered EOF while reading STL header")
		}
		return nil, errors.New("STL header read failed: " + err.Error())
	}
	if header.Count == 0 {
		return nil, errors.New("STL header indicates 0 triangles present")
	}
	var (
		buf            [stlTriangleSize]byte
		d              stlTriangle
		i              int
		normMismatches int
	)
	defer func() {
		if readErr != nil && !errors.Is(readErr, ErrNormalMismatch) {
			readErr = fmt.Errorf("%d/%d STL triangles read: %w", i+1, header.Count, readErr)
		}
	}()
	// Count is untrusted; the slice grows as triangles are actually read.
	output = make([][3]r3.Vec, 0, int(min(header.Count, 1<<16)))
	for i = 0; i < int(header.Count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		d.get(buf[:])
		if err := d.validate(); err != nil {
			if !errors.Is(err, ErrNormalMismatch) {
				return nil, err
			}
			normMismatches++
			readErr = fmt.Errorf("%d triangles: %w", normMismatches, ErrNormalMismatch)
		}
		output = append(output, [3]r3.Vec(d.toTriangle()))
	}
	return output, readErr
}

// Weld builds an indexed mesh from a triangle soup by merging vertices that
// fall in the same cell of a grid of size tol. If tol is zero it is inferred
// from the shortest triangle edge.
func Weld(soup [][3]r3.Vec, tol float64) (meshproj.Mesh, error) {
	if len(soup) == 0 {
		return meshproj.Mesh{}, meshproj.ErrEmptyMesh
	}
	bb := d3.Box{Min: d3.Elem(math.MaxFloat64), Max: d3.Elem(-math.MaxFloat64)}
	minDist2 := math.MaxFloat64
	maxDist2 := 0.0
	for _, tri := range soup {
		for j, vert := range tri {
			bb = bb.Include(vert)
			side2 := d3.Dist2(tri[(j+1)%3], vert)
			if side2 > 0 {
				minDist2 = math.Min(minDist2, side2)
			}
			maxDist2 = math.Max(maxDist2, side2)
		}
	}
	suggested := 0.0
	if minDist2 < math.MaxFloat64 {
		suggested = math.Sqrt(minDist2) / 256
	}
	if maxDist2 > 0 && tol > math.Sqrt(maxDist2)/2 {
		return meshproj.Mesh{}, fmt.Errorf("vertex tolerance is too large to generate appropriate mesh, suggested tolerance: %g", suggested)
	}
	if tol == 0 {
		tol = suggested
	}
	if tol <= 0 || math.IsInf(tol, 0) {
		return meshproj.Mesh{}, fmt.Errorf("invalid vertex tolerance %g", tol)
	}
	if d3.Max(d3.MaxElem(d3.AbsElem(bb.Min), d3.AbsElem(bb.Max)))/tol > math.MaxInt64/2 {
		return meshproj.Mesh{}, errors.New("tolerance too small. overflowed int64")
	}

	m := meshproj.Mesh{Triangles: make([][3]int, len(soup))}
	cache := make(map[[3]int64]int)
	htol := 0.5 * tol
	for i, tri := range soup {
		for j, v := range tri {
			key := [3]int64{
				int64(math.Floor((v.X + htol) / tol)),
				int64(math.Floor((v.Y + htol) / tol)),
				int64(math.Floor((v.Z + htol) / tol)),
			}
			idx, ok := cache[key]
			if !ok {
				idx = len(m.Vertices)
				cache[key] = idx
				m.Vertices = append(m.Vertices, v)
			}
			m.Triangles[i][j] = idx
		}
	}
	return m, nil
}

func (t stlTriangle) put(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
	// no attributes supported.
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

func (t stlTriangle) validate() error {
	const normTol = 5e-2
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return errors.New("inf/NaN STL triangle vertex")
	}
	if t.Normal == ([3]float32{}) {
		// Writers may leave the normal unset.
		return nil
	}
	calcNormal := to3F32(t.toTriangle().Normal())
	if bad3F32(calcNormal) {
		// Degenerate triangle, its normal is undefined.
		return nil
	}
	calcNormalNeg := [3]float32{-calcNormal[0], -calcNormal[1], -calcNormal[2]}
	if !equalWithin3F32(calcNormal, t.Normal, normTol) && !equalWithin3F32(calcNormalNeg, t.Normal, normTol) {
		return ErrNormalMismatch
	}
	return nil
}

func equalWithin3F32(a, b [3]float32, tol float32) bool {
	return math32.Abs(a[0]-b[0]) <= tol &&
		math32.Abs(a[1]-b[1]) <= tol &&
		math32.Abs(a[2]-b[2]) <= tol
}

func to3F32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func r3From3F32(f [3]float32) r3.Vec {
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}
}

func (t stlTriangle) toTriangle() d3.Triangle {
	return d3.Triangle{
		r3From3F32(t.Vertex1),
		r3From3F32(t.Vertex2),
		r3From3F32(t.Vertex3),
	}
}
