package d3

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is a 4x4 affine transformation of 3D points, such as
// an object-to-world matrix.
// The zero value of Transform is the identity transform.
type Transform struct {
	// Stored with the identity subtracted from the diagonal so that
	// the zero value is the identity:
	//  d00 = x00-1, d11 = x11-1, d22 = x22-1, d33 = x33-1
	d00, x01, x02, x03 float64
	x10, d11, x12, x13 float64
	x20, x21, d22, x23 float64
	x30, x31, x32, d33 float64
}

// Transform applies the Transform to the argument point
// and returns the result.
func (t Transform) Transform(v r3.Vec) r3.Vec {
	if t == (Transform{}) {
		return v
	}
	w := 1 / (t.x30*v.X + t.x31*v.Y + t.x32*v.Z + t.d33 + 1)
	return r3.Vec{
		X: ((t.d00+1)*v.X + t.x01*v.Y + t.x02*v.Z + t.x03) * w,
		Y: (t.x10*v.X + (t.d11+1)*v.Y + t.x12*v.Z + t.x13) * w,
		Z: (t.x20*v.X + t.x21*v.Y + (t.d22+1)*v.Z + t.x23) * w,
	}
}

// NewTransform returns a new Transform and populates its elements
// with the 16 values passed in row-major form.
func NewTransform(a []float64) Transform {
	if len(a) != 16 {
		panic("Transform is initialized with 16 values")
	}
	return Transform{
		d00: a[0] - 1, x01: a[1], x02: a[2], x03: a[3],
		x10: a[4], d11: a[5] - 1, x12: a[6], x13: a[7],
		x20: a[8], x21: a[9], d22: a[10] - 1, x23: a[11],
		x30: a[12], x31: a[13], x32: a[14], d33: a[15] - 1,
	}
}

// ComposeTransform returns the Transform that scales by scale, rotates
// by q and then translates to position. q must be a unit quaternion; the
// identity Transform is
//
//	ComposeTransform(Vec{}, Vec{1,1,1}, Rotation{Real: 1})
func ComposeTransform(position, scale r3.Vec, q r3.Rotation) Transform {
	// Columns of the linear part are the rotated, scaled basis vectors.
	cx := r3.Scale(scale.X, q.Rotate(r3.Vec{X: 1}))
	cy := r3.Scale(scale.Y, q.Rotate(r3.Vec{Y: 1}))
	cz := r3.Scale(scale.Z, q.Rotate(r3.Vec{Z: 1}))
	t := Transform{
		d00: cx.X - 1, x01: cy.X, x02: cz.X,
		x10: cx.Y, d11: cy.Y - 1, x12: cz.Y,
		x20: cx.Z, x21: cy.Z, d22: cz.Z - 1,
	}
	return t.Translate(position)
}

// Translate adds v to the translation of the Transform.
func (t Transform) Translate(v r3.Vec) Transform {
	t.x03 += v.X
	t.x13 += v.Y
	t.x23 += v.Z
	return t
}

// SliceCopy returns a copy of the Transform's data
// in row major storage format. It returns 16 elements.
func (t Transform) SliceCopy() []float64 {
	return []float64{
		t.d00 + 1, t.x01, t.x02, t.x03,
		t.x10, t.d11 + 1, t.x12, t.x13,
		t.x20, t.x21, t.d22 + 1, t.x23,
		t.x30, t.x31, t.x32, t.d33 + 1,
	}
}
