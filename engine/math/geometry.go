package math

import "github.com/chewxy/math32"

// GeometryGenerateNormals writes a face normal into every vertex of each triangle.
// Vertices shared between faces end up with the normal of the last face, callers
// that want flat shading must not share vertices.
func GeometryGenerateNormals(vertices []Vertex3D, indices []uint16) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0 := indices[i+0]
		i1 := indices[i+1]
		i2 := indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)

		normal := edge1.Cross(edge2).Normalized()

		vertices[i0].Normal = normal
		vertices[i1].Normal = normal
		vertices[i2].Normal = normal
	}
}

var icosahedronFaces = [20][3]uint16{
	{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
	{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
	{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
	{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
}

/**
 * @brief Generates a flat shaded icosahedron centred on the origin.
 *
 * @param extent Distance from the centre to each corner.
 * @param inwardNormals Flips every normal to point toward the centre.
 * @return 60 unshared vertices and their counter-clockwise indices.
 */
func GeometryGenerateIcosahedron(extent float32, inwardNormals bool) ([]Vertex3D, []uint16) {
	t := (1 + math32.Sqrt(5)) / 2
	corners := [12]Vec3{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	for i := range corners {
		corners[i] = corners[i].Normalized().MulScalar(extent)
	}

	vertices := make([]Vertex3D, 0, len(icosahedronFaces)*3)
	indices := make([]uint16, 0, len(icosahedronFaces)*3)
	for _, f := range icosahedronFaces {
		for _, c := range f {
			indices = append(indices, uint16(len(vertices)))
			vertices = append(vertices, Vertex3D{Position: corners[c]})
		}
	}
	GeometryGenerateNormals(vertices, indices)
	if inwardNormals {
		for i := range vertices {
			vertices[i].Normal = vertices[i].Normal.Negate()
		}
	}
	return vertices, indices
}
