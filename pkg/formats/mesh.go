package formats

// SerializableMesh is the .mesh document. Vertex attributes are parallel
// arrays; every non-empty optional array has one entry per position.
type SerializableMesh struct {
	Positions   []Float3   `json:"positions"`
	Colors      []Float4   `json:"colors"`
	UVs         []Float2   `json:"uvs"`
	Normals     []Float3   `json:"normals"`
	Tangents    []Float4   `json:"tangents"`
	BoneIndices []UInt4    `json:"bone_indices"`
	BoneWeights []Float4   `json:"bone_weights"`
	Submeshes   [][]uint32 `json:"submeshes"`
	Bindposes   []Float4x4 `json:"bindposes"`
	Bones       []string   `json:"bones"`
}

// ParseMesh parses a decrypted .mesh document.
func ParseMesh(data []byte) (*SerializableMesh, error) {
	return decode[SerializableMesh](data, "mesh")
}

// IsSkinned reports whether the mesh carries a skeleton binding.
func (m *SerializableMesh) IsSkinned() bool {
	return len(m.Bones) > 0 && len(m.Bindposes) > 0
}

// AttributeLengths returns the length of every optional attribute keyed by
// its document field name.
func (m *SerializableMesh) AttributeLengths() map[string]int {
	return map[string]int{
		"colors":       len(m.Colors),
		"uvs":          len(m.UVs),
		"normals":      len(m.Normals),
		"tangents":     len(m.Tangents),
		"bone_indices": len(m.BoneIndices),
		"bone_weights": len(m.BoneWeights),
	}
}
