package loader

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/engine/mesh"
	"github.com/Faultbox/railrush/pkg/formats"
	"github.com/Faultbox/railrush/pkg/math"
)

// MeshAsset is a loaded .mesh: the skeleton binding plus one labeled
// sub-asset per submesh.
type MeshAsset struct {
	Bones     []string
	Bindposes []math.Mat4
	Submeshes []assets.Handle[*mesh.Mesh]
}

// IsSkinned reports whether the mesh is bound to a skeleton.
func (m *MeshAsset) IsSkinned() bool {
	return len(m.Bones) > 0 && len(m.Bindposes) > 0
}

// SubmeshLabel returns the label of submesh i of the mesh at path.
func SubmeshLabel(path string, i int) string {
	return fmt.Sprintf("%s_%d", path, i)
}

// MeshLoader loads .mesh files.
type MeshLoader struct{}

func (MeshLoader) Name() string         { return NameMesh }
func (MeshLoader) Extensions() []string { return []string{"mesh"} }

func (MeshLoader) Load(ctx context.Context, lc *assets.LoadContext, data []byte) (any, error) {
	doc, err := decodeDocument(ctx, lc, data, formats.ParseMesh, false)
	if err != nil {
		return nil, err
	}
	if err := validateMesh(doc); err != nil {
		return nil, assets.ConvertError(err)
	}

	base := buildMesh(doc)
	out := &MeshAsset{
		Bones:     append([]string(nil), doc.Bones...),
		Bindposes: make([]math.Mat4, len(doc.Bindposes)),
	}
	for i, bp := range doc.Bindposes {
		out.Bindposes[i] = bp.Mat4()
	}
	for i, indices := range doc.Submeshes {
		sub := base.WithIndices(indices)
		out.Submeshes = append(out.Submeshes, assets.AddLabeled(lc, SubmeshLabel(lc.Path(), i), sub))
	}

	lc.Logger().Debug("mesh converted",
		zap.Int("vertices", len(doc.Positions)),
		zap.Int("submeshes", len(doc.Submeshes)),
		zap.Int("bones", len(doc.Bones)))
	return out, nil
}

func validateMesh(doc *formats.SerializableMesh) error {
	if len(doc.Bones) != len(doc.Bindposes) {
		return fmt.Errorf("%w: %d bones, %d bindposes", ErrBindposeCount, len(doc.Bones), len(doc.Bindposes))
	}

	n := len(doc.Positions)
	lengths := doc.AttributeLengths()
	for _, name := range slices.Sorted(maps.Keys(lengths)) {
		if l := lengths[name]; l != 0 && l != n {
			return fmt.Errorf("%w: %s has %d entries, %d positions", ErrAttributeLength, name, l, n)
		}
	}

	for si, sub := range doc.Submeshes {
		for _, idx := range sub {
			if int(idx) >= n {
				return fmt.Errorf("%w: submesh %d references vertex %d of %d", ErrIndexOutOfRange, si, idx, n)
			}
		}
	}
	return nil
}

func buildMesh(doc *formats.SerializableMesh) *mesh.Mesh {
	m := mesh.New()
	m.Positions = convert(doc.Positions, formats.Float3.Vec3)
	m.Colors = convert(doc.Colors, formats.Float4.Vec4)
	m.UVs = convert(doc.UVs, formats.Float2.Vec2)
	m.Normals = convert(doc.Normals, formats.Float3.Vec3)
	m.Tangents = convert(doc.Tangents, formats.Float4.Vec4)
	m.JointIndices = convert(doc.BoneIndices, formats.UInt4.Array)
	m.JointWeights = convert(doc.BoneWeights, formats.Float4.Vec4)
	return m
}

func convert[S, D any](in []S, fn func(S) D) []D {
	if len(in) == 0 {
		return nil
	}
	out := make([]D, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
