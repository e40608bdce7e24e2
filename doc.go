/*
Package meshproj computes closest points on triangle meshes.

For every query point of a batch the whole mesh is searched and the closest
point, its barycentric coordinates and the index of the triangle it lies on
are returned:

	res, err := meshproj.ProjectPoints(ctx, mesh, queries)
	// res.Projections[i], res.Barycentric[i], res.Triangles[i]

Barycentric coordinates are ordered like the triangle's vertex indices, so
for triangle {i0, i1, i2} the projection equals

	b[0]*Vertices[i0] + b[1]*Vertices[i1] + b[2]*Vertices[i2]

The search is exhaustive with no spatial acceleration structure. Queries are
processed concurrently; each query tests all triangles in index order and
keeps the first triangle at minimum distance.
*/
package meshproj
