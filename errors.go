package meshproj

import (
	"errors"
	"fmt"
)

var (
	// ErrShape is wrapped by every *ShapeError.
	ErrShape = errors.New("bad input shape")
	// ErrIndexRange is wrapped by every *IndexError.
	ErrIndexRange = errors.New("triangle vertex index out of range")
	// ErrEmptyMesh is returned when projecting onto a mesh without triangles.
	ErrEmptyMesh = errors.New("mesh has no triangles to project onto")
	// ErrAttrLength is returned when a per-vertex or per-triangle attribute
	// slice does not match the mesh it is used with.
	ErrAttrLength = errors.New("attribute length mismatch")
)

// ShapeError reports an input array whose dimensions do not match
// the (*, 3) layout expected for vertices, triangles and query points.
type ShapeError struct {
	Name string // vertices, triangles or queries.
	Rows int
	Cols int
	// Row is the offending row for ragged inputs, -1 otherwise.
	Row int
}

func (e *ShapeError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("%s must have shape (*, 3): row %d has %d elements", e.Name, e.Row, e.Cols)
	}
	return fmt.Sprintf("%s must have shape (*, 3), got (%d, %d)", e.Name, e.Rows, e.Cols)
}

func (e *ShapeError) Unwrap() error { return ErrShape }

// IndexError reports a triangle corner referencing a vertex outside [0, NumVertices).
type IndexError struct {
	Triangle    int
	Corner      int
	Index       int
	NumVertices int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("triangle %d corner %d references vertex %d, mesh has %d vertices",
		e.Triangle, e.Corner, e.Index, e.NumVertices)
}

func (e *IndexError) Unwrap() error { return ErrIndexRange }
