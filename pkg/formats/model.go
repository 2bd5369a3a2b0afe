package formats

// SerializableModel is the .hierarchy document.
type SerializableModel struct {
	Root SerializableModelNode `json:"root"`
}

// SerializableModelNode is one node of a model tree. Mesh and Materials
// hold names, not paths; materials align with the mesh's submeshes.
type SerializableModelNode struct {
	Name      string                  `json:"name"`
	Transform Float4x4                `json:"transform"`
	Mesh      *string                 `json:"mesh"`
	Materials []string                `json:"materials"`
	Children  []SerializableModelNode `json:"children"`
}

// ParseModel parses a decrypted .hierarchy document.
func ParseModel(data []byte) (*SerializableModel, error) {
	return decode[SerializableModel](data, "hierarchy")
}

// Walk visits every node depth-first, parents before children.
func (n *SerializableModelNode) Walk(fn func(*SerializableModelNode)) {
	fn(n)
	for i := range n.Children {
		n.Children[i].Walk(fn)
	}
}

// Count returns the number of nodes in the subtree.
func (n *SerializableModelNode) Count() int {
	count := 0
	n.Walk(func(*SerializableModelNode) { count++ })
	return count
}
