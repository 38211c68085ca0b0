package kernel

import "fmt"

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Groups   []Group   `json:"groups,omitempty"`
	PartName string    `json:"partName"` // which description node this came from
}

// Group is a contiguous run of triangles belonging to one shell.
type Group struct {
	Name  string `json:"name"`
	Start int    `json:"start"` // first triangle
	Count int    `json:"count"` // number of triangles
}

// Triangle is one mesh triangle with its corner positions and normals.
type Triangle struct {
	Points  [3][3]float32
	Normals [3][3]float32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Triangles enumerates the triangles of the mesh in index order.
func (m *Mesh) Triangles() []Triangle {
	out := make([]Triangle, m.TriangleCount())
	for i := range out {
		for k := 0; k < 3; k++ {
			v := int(m.Indices[3*i+k])
			copy(out[i].Points[k][:], m.Vertices[3*v:3*v+3])
			if len(m.Normals) >= 3*v+3 {
				copy(out[i].Normals[k][:], m.Normals[3*v:3*v+3])
			}
		}
	}
	return out
}

// Append adds the geometry of o to m. Index values of o are offset past
// m's existing vertices. o's groups are carried over; an ungrouped o
// becomes one group named name.
func (m *Mesh) Append(o *Mesh, name string) {
	base := uint32(m.VertexCount())
	start := m.TriangleCount()
	m.Vertices = append(m.Vertices, o.Vertices...)
	m.Normals = append(m.Normals, o.Normals...)
	for _, i := range o.Indices {
		m.Indices = append(m.Indices, base+i)
	}
	if len(o.Groups) > 0 {
		for _, g := range o.Groups {
			g.Start += start
			m.Groups = append(m.Groups, g)
		}
		return
	}
	if n := o.TriangleCount(); n > 0 {
		m.Groups = append(m.Groups, Group{Name: name, Start: start, Count: n})
	}
}

// Validate checks that the flat arrays are consistent.
func (m *Mesh) Validate() error {
	if len(m.Vertices)%3 != 0 {
		return fmt.Errorf("mesh: %d vertex floats is not a multiple of 3", len(m.Vertices))
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("mesh: %d normal floats for %d vertex floats", len(m.Normals), len(m.Vertices))
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("mesh: %d indices is not a multiple of 3", len(m.Indices))
	}
	n := uint32(m.VertexCount())
	for i, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("mesh: index %d at %d out of range (%d vertices)", idx, i, n)
		}
	}
	return nil
}
