package d3

import "gonum.org/v1/gonum/spatial/r3"

// Triangle is a triangle in 3D space defined by its vertices A, B and C,
// in that order.
type Triangle [3]r3.Vec

// Closest returns the closest point on the triangle to argument point p and
// its barycentric coordinates (weights of vertices t[0], t[1], t[2]).
//
// The point is located by testing the Voronoi regions of the triangle in order:
// vertex A, vertex B, vertex C, edge AB, edge AC, edge BC and finally the face.
// The first region that contains p decides the result. Closest is defined for
// degenerate triangles too, in which case some barycentric combination of the
// vertices is returned.
func (t Triangle) Closest(p r3.Vec) (closest r3.Vec, bary [3]float64) {
	a, b, c := t[0], t[1], t[2]
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	ap := r3.Sub(p, a)

	d1 := r3.Dot(ab, ap)
	d2 := r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a, [3]float64{1, 0, 0}
	}

	bp := r3.Sub(p, b)
	d3 := r3.Dot(ab, bp)
	d4 := r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b, [3]float64{0, 1, 0}
	}

	cp := r3.Sub(p, c)
	d5 := r3.Dot(ab, cp)
	d6 := r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c, [3]float64{0, 0, 1}
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return r3.Add(a, r3.Scale(v, ab)), [3]float64{1 - v, v, 0}
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return r3.Add(a, r3.Scale(w, ac)), [3]float64{1 - w, 0, w}
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		v := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return r3.Add(b, r3.Scale(v, r3.Sub(c, b))), [3]float64{0, 1 - v, v}
	}

	// p projects inside the face.
	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	closest = r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac)))
	return closest, [3]float64{1 - v - w, v, w}
}

// Interpolate returns the point on the plane of the triangle with
// the given barycentric coordinates.
func (t Triangle) Interpolate(bary [3]float64) r3.Vec {
	return r3.Add(r3.Scale(bary[0], t[0]), r3.Add(r3.Scale(bary[1], t[1]), r3.Scale(bary[2], t[2])))
}

// Bounds returns the smallest box containing the triangle.
func (t Triangle) Bounds() Box {
	return Box{Min: MinElem(t[2], MinElem(t[0], t[1])), Max: MaxElem(t[2], MaxElem(t[0], t[1]))}
}

// Normal returns the unit normal of the triangle following the
// right hand rule on the vertex order.
func (t Triangle) Normal() r3.Vec {
	return r3.Unit(r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0])))
}
