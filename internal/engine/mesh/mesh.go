// Package mesh holds renderer-ready triangle meshes.
package mesh

import (
	"github.com/Faultbox/railrush/pkg/math"
)

// Attribute names a per-vertex stream.
type Attribute string

const (
	AttributePosition    Attribute = "Vertex_Position"
	AttributeColor       Attribute = "Vertex_Color"
	AttributeUV0         Attribute = "Vertex_Uv"
	AttributeNormal      Attribute = "Vertex_Normal"
	AttributeTangent     Attribute = "Vertex_Tangent"
	AttributeJointIndex  Attribute = "Vertex_JointIndex"
	AttributeJointWeight Attribute = "Vertex_JointWeight"
)

// Topology of the index buffer.
type Topology uint8

const (
	TriangleList Topology = iota
)

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min math.Vec3
	Max math.Vec3
}

// Mesh is the vertex data of one submesh plus its index buffer.
// Submeshes of the same source mesh share their vertex slices; treat
// them as read-only after construction.
type Mesh struct {
	Topology Topology

	Positions    []math.Vec3
	Colors       []math.Vec4
	UVs          []math.Vec2
	Normals      []math.Vec3
	Tangents     []math.Vec4
	JointIndices [][4]uint16
	JointWeights []math.Vec4

	Indices []uint32
}

// New creates a triangle-list mesh with no attributes.
func New() *Mesh {
	return &Mesh{Topology: TriangleList}
}

// VertexCount returns the number of positions.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// TriangleCount returns the number of whole triangles in the index buffer.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Attributes lists the streams present, in a fixed order.
func (m *Mesh) Attributes() []Attribute {
	var out []Attribute
	add := func(n int, a Attribute) {
		if n > 0 {
			out = append(out, a)
		}
	}
	add(len(m.Positions), AttributePosition)
	add(len(m.Colors), AttributeColor)
	add(len(m.UVs), AttributeUV0)
	add(len(m.Normals), AttributeNormal)
	add(len(m.Tangents), AttributeTangent)
	add(len(m.JointIndices), AttributeJointIndex)
	add(len(m.JointWeights), AttributeJointWeight)
	return out
}

// HasAttribute reports whether a stream is present.
func (m *Mesh) HasAttribute(a Attribute) bool {
	for _, have := range m.Attributes() {
		if have == a {
			return true
		}
	}
	return false
}

// IsSkinned reports whether the mesh carries joint streams.
func (m *Mesh) IsSkinned() bool {
	return len(m.JointIndices) > 0 && len(m.JointWeights) > 0
}

// Clone returns a copy sharing vertex data with m and owning no indices.
func (m *Mesh) Clone() *Mesh {
	c := *m
	c.Indices = nil
	return &c
}

// WithIndices returns a clone of m using indices as its index buffer.
func (m *Mesh) WithIndices(indices []uint32) *Mesh {
	c := m.Clone()
	c.Indices = append([]uint32(nil), indices...)
	return c
}

// Bounds returns the bounding box of the vertices referenced by the index
// buffer, or of every vertex when there are no indices.
func (m *Mesh) Bounds() Bounds {
	var b Bounds
	first := true
	grow := func(p math.Vec3) {
		if first {
			b.Min, b.Max = p, p
			first = false
			return
		}
		b.Min = math.Vec3{X: min(b.Min.X, p.X), Y: min(b.Min.Y, p.Y), Z: min(b.Min.Z, p.Z)}
		b.Max = math.Vec3{X: max(b.Max.X, p.X), Y: max(b.Max.Y, p.Y), Z: max(b.Max.Z, p.Z)}
	}

	if len(m.Indices) == 0 {
		for _, p := range m.Positions {
			grow(p)
		}
		return b
	}
	for _, i := range m.Indices {
		if int(i) < len(m.Positions) {
			grow(m.Positions[i])
		}
	}
	return b
}

// Center returns the middle of the bounding box.
func (b Bounds) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the extent of the bounding box.
func (b Bounds) Size() math.Vec3 {
	return b.Max.Sub(b.Min)
}
