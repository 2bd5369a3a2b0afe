// Package spawner instantiates loaded model hierarchies into a scene world.
//
// Spawning runs in two passes over the model tree. The first pass creates
// one entity per node, carrying its transform and animation target, and
// records every node name. The second pass attaches the render entities
// for each mesh, which can only resolve skin joints by name once every
// node entity exists.
package spawner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/engine/animation"
	"github.com/Faultbox/railrush/internal/engine/material"
	"github.com/Faultbox/railrush/internal/engine/render"
	"github.com/Faultbox/railrush/internal/engine/scene"
	"github.com/Faultbox/railrush/internal/loader"
	"github.com/Faultbox/railrush/internal/logger"
)

// Commands creates entities and links them. *scene.World implements it.
type Commands interface {
	Spawn(components ...any) scene.Entity
	Insert(e scene.Entity, components ...any)
	AddChild(parent, child scene.Entity)
}

// Spawner builds entity trees from model assets.
type Spawner struct {
	assets *assets.Server
	log    *zap.Logger
}

// New creates a spawner registering skin data on server. A nil logger
// falls back to the global one.
func New(server *assets.Server, log *zap.Logger) *Spawner {
	if log == nil {
		log = logger.Named("spawner")
	}
	return &Spawner{assets: server, log: log}
}

// IsReady reports whether the model and every mesh and material it
// references are loaded together with their own dependencies.
func IsReady(h assets.Handle[*loader.ModelAsset]) bool {
	if !assets.IsReady(h.Untyped()) {
		return false
	}
	model, ok := h.Get()
	if !ok {
		return false
	}
	for _, dep := range model.Handles() {
		if !assets.IsReady(dep) {
			return false
		}
	}
	return true
}

// Spawn instantiates model under attachment and returns the entity of the
// model root. Every animation target points at attachment, which is
// where an animation.Player is expected to live. The model must be ready.
func (sp *Spawner) Spawn(cmds Commands, model *loader.ModelAsset, attachment scene.Entity) scene.Entity {
	names := make(map[string]scene.Entity)
	root := sp.spawnNode(cmds, &model.Root, attachment, names)
	sp.attachVisuals(cmds, model, &model.Root, names)
	cmds.AddChild(attachment, root)
	return root
}

// spawnNode creates the logical entity tree in post-order.
func (sp *Spawner) spawnNode(cmds Commands, n *loader.ModelNode, attachment scene.Entity, names map[string]scene.Entity) scene.Entity {
	children := make([]scene.Entity, 0, len(n.Children))
	for i := range n.Children {
		children = append(children, sp.spawnNode(cmds, &n.Children[i], attachment, names))
	}

	e := cmds.Spawn(
		scene.TransformFromMatrix(n.Transform),
		animation.Target{ID: animation.TargetIDFromName(n.Name), Player: attachment},
		scene.Inherited,
		scene.Name(n.Name),
	)
	for _, c := range children {
		cmds.AddChild(e, c)
	}

	if prev, dup := names[n.Name]; dup {
		sp.log.Warn("duplicate node name, later node wins",
			zap.String("name", n.Name),
			zap.Uint32("previous", uint32(prev)),
			zap.Uint32("entity", uint32(e)))
	}
	names[n.Name] = e
	return e
}

// attachVisuals adds render entities in pre-order.
func (sp *Spawner) attachVisuals(cmds Commands, model *loader.ModelAsset, n *loader.ModelNode, names map[string]scene.Entity) {
	if n.Mesh != "" {
		sp.attachMesh(cmds, model, n, names)
	}
	for i := range n.Children {
		sp.attachVisuals(cmds, model, &n.Children[i], names)
	}
}

func (sp *Spawner) attachMesh(cmds Commands, model *loader.ModelAsset, n *loader.ModelNode, names map[string]scene.Entity) {
	log := sp.log.With(zap.String("node", n.Name), zap.String("mesh", n.Mesh))

	h, ok := model.Meshes[n.Mesh]
	if !ok {
		log.Warn("mesh not collected, skipping node visuals")
		return
	}
	m, ok := h.Get()
	if !ok {
		log.Warn("mesh not loaded, skipping node visuals", zap.Stringer("state", h.State()))
		return
	}

	parent, ok := names[n.Name]
	if !ok {
		panic(fmt.Sprintf("spawner: node %q missing from name map", n.Name))
	}

	var (
		skinned   bool
		joints    []scene.Entity
		bindposes assets.Handle[render.InverseBindposes]
	)
	if m.IsSkinned() {
		skinned = true
		joints = make([]scene.Entity, 0, len(m.Bones))
		for _, bone := range m.Bones {
			j, ok := names[bone]
			if !ok {
				log.Error("bone entity not found", zap.String("bone", bone))
				continue
			}
			joints = append(joints, j)
		}
		bindposes = assets.Add(sp.assets, append(render.InverseBindposes(nil), m.Bindposes...))
		defer bindposes.Release()
	}

	count := min(len(n.Materials), len(m.Submeshes))
	if len(n.Materials) != len(m.Submeshes) {
		log.Debug("material and submesh counts differ",
			zap.Int("materials", len(n.Materials)),
			zap.Int("submeshes", len(m.Submeshes)))
	}
	for i := 0; i < count; i++ {
		mat, ok := model.Materials[n.Materials[i]]
		if !ok {
			log.Warn("material not collected, skipping submesh",
				zap.String("material", n.Materials[i]), zap.Int("submesh", i))
			continue
		}

		components := []any{
			render.Mesh3D{Mesh: m.Submeshes[i].Clone()},
			render.MeshMaterial{Material: mat.Clone()},
			scene.IdentityTransform(),
			scene.Inherited,
		}
		if skinned {
			components = append(components, render.SkinnedMesh{
				InverseBindposes: bindposes.Clone(),
				Joints:           append([]scene.Entity(nil), joints...),
			})
		}
		if mat.Kind == material.KindFacialExpression {
			components = append(components, render.EyeMouth{Material: mat.Facial.Clone()})
		}

		child := cmds.Spawn(components...)
		cmds.AddChild(parent, child)
	}
}
