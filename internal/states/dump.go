package states

import (
	"fmt"
	"io"
	"strings"

	"github.com/Faultbox/railrush/internal/engine/render"
	"github.com/Faultbox/railrush/internal/engine/scene"
)

// DumpTree writes one line per entity under root, indented by depth.
func DumpTree(w io.Writer, world *scene.World, root scene.Entity) error {
	var err error
	world.Walk(root, func(e scene.Entity, depth int) bool {
		if err != nil {
			return false
		}
		_, err = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), describe(world, e))
		return true
	})
	return err
}

func describe(world *scene.World, e scene.Entity) string {
	var b strings.Builder
	if name, ok := scene.Get[scene.Name](world, e); ok {
		b.WriteString(string(*name))
	} else {
		fmt.Fprintf(&b, "#%d", e)
	}

	if m, ok := scene.Get[render.Mesh3D](world, e); ok {
		fmt.Fprintf(&b, " mesh=%s", m.Mesh.Path())
	}
	if m, ok := scene.Get[render.MeshMaterial](world, e); ok {
		fmt.Fprintf(&b, " material=%s", m.Material.Path())
	}
	if s, ok := scene.Get[render.SkinnedMesh](world, e); ok {
		fmt.Fprintf(&b, " joints=%d", len(s.Joints))
	}
	if scene.Has[render.EyeMouth](world, e) {
		b.WriteString(" eye-mouth")
	}
	if v, ok := scene.Get[scene.Visibility](world, e); ok && *v != scene.Inherited {
		fmt.Fprintf(&b, " %s", *v)
	}
	return b.String()
}
