package loader

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/engine/material"
	"github.com/Faultbox/railrush/pkg/formats"
	"github.com/Faultbox/railrush/pkg/math"
)

// ModelNode is one node of a model hierarchy. Mesh is empty for nodes
// without geometry; Materials pair with the mesh's submeshes by index.
type ModelNode struct {
	Name      string
	Transform math.Mat4
	Mesh      string
	Materials []string
	Children  []ModelNode
}

// Walk visits n and its descendants, parents first.
func (n *ModelNode) Walk(fn func(node *ModelNode, depth int)) {
	n.walk(0, fn)
}

func (n *ModelNode) walk(depth int, fn func(*ModelNode, int)) {
	fn(n, depth)
	for i := range n.Children {
		n.Children[i].walk(depth+1, fn)
	}
}

// ModelAsset is a loaded .hierarchy: the node tree plus handles to every
// mesh and material it names. It is not modified after loading.
type ModelAsset struct {
	Root      ModelNode
	Meshes    map[string]assets.Handle[*MeshAsset]
	Materials map[string]material.Handle
}

// Handles returns every dependency handle of the model.
func (m *ModelAsset) Handles() []assets.UntypedHandle {
	out := make([]assets.UntypedHandle, 0, len(m.Meshes)+len(m.Materials))
	for _, h := range m.Meshes {
		out = append(out, h.Untyped())
	}
	for _, h := range m.Materials {
		out = append(out, h.Untyped())
	}
	return out
}

// ModelLoader loads .hierarchy files and requests the meshes and
// materials they reference.
type ModelLoader struct{}

func (ModelLoader) Name() string         { return NameModel }
func (ModelLoader) Extensions() []string { return []string{"hierarchy"} }

func (ModelLoader) Load(ctx context.Context, lc *assets.LoadContext, data []byte) (any, error) {
	doc, err := decodeDocument(ctx, lc, data, formats.ParseModel, false)
	if err != nil {
		return nil, err
	}

	c := &collector{
		lc:        lc,
		meshes:    make(map[string]assets.Handle[*MeshAsset]),
		materials: make(map[string]material.Handle),
	}
	model := &ModelAsset{Root: c.visit(&doc.Root)}
	model.Meshes = c.meshes
	model.Materials = c.materials

	lc.Logger().Debug("model collected",
		zap.Int("nodes", doc.Root.Count()),
		zap.Int("meshes", len(c.meshes)),
		zap.Int("materials", len(c.materials)))
	return model, nil
}

// collector converts the node tree depth-first and issues one request per
// distinct mesh and material name.
type collector struct {
	lc        *assets.LoadContext
	meshes    map[string]assets.Handle[*MeshAsset]
	materials map[string]material.Handle
}

func (c *collector) visit(n *formats.SerializableModelNode) ModelNode {
	node := ModelNode{
		Name:      n.Name,
		Transform: n.Transform.Mat4(),
		Materials: append([]string(nil), n.Materials...),
	}

	if n.Mesh != nil {
		node.Mesh = *n.Mesh
		if _, ok := c.meshes[node.Mesh]; !ok {
			c.meshes[node.Mesh] = assets.LoadDep[*MeshAsset](c.lc, MeshPath(node.Mesh))
		}
	}

	for _, name := range n.Materials {
		if _, ok := c.materials[name]; ok {
			continue
		}
		path := MaterialPath(name)
		switch material.KindForName(name) {
		case material.KindFacialExpression:
			c.materials[name] = material.FacialHandle(
				assets.LoadDepWith[*material.FacialExpression](c.lc, path, NameFacial))
		default:
			c.materials[name] = material.StandardHandle(
				assets.LoadDepWith[*material.Standard](c.lc, path, NameMaterial))
		}
	}

	for i := range n.Children {
		node.Children = append(node.Children, c.visit(&n.Children[i]))
	}
	return node
}
