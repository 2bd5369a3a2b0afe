package loader

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/engine/material"
	"github.com/Faultbox/railrush/internal/engine/mesh"
	"github.com/Faultbox/railrush/pkg/crypt"
	"github.com/Faultbox/railrush/pkg/formats"
	"github.com/Faultbox/railrush/pkg/math"
)

var testKey = crypt.Key{
	0x52, 0x61, 0x69, 0x6c, 0x52, 0x75, 0x73, 0x68, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17,
}

// content is an in-memory encrypted asset tree.
type content struct {
	t   *testing.T
	src *assets.MemSource
}

func newContent(t *testing.T) *content {
	return &content{t: t, src: assets.NewMemSource(nil)}
}

// put seals raw plaintext under path.
func (c *content) put(path string, plain []byte) {
	c.t.Helper()
	sealed, err := crypt.Seal(plain, testKey)
	require.NoError(c.t, err)
	c.src.Put(path, sealed)
}

// doc encodes v as JSON and seals it under path.
func (c *content) doc(path string, v any) {
	c.t.Helper()
	data, err := formats.Encode(v)
	require.NoError(c.t, err)
	c.put(path, data)
}

func (c *content) server() *assets.Server {
	s := assets.NewServer(assets.Options{
		Source:  c.src,
		Key:     crypt.Static(testKey),
		Workers: 2,
		Logger:  zaptest.NewLogger(c.t),
	})
	Register(s)
	c.t.Cleanup(s.Close)
	return s
}

func ptr[T any](v T) *T { return &v }

func triangleMesh() formats.SerializableMesh {
	return formats.SerializableMesh{
		Positions: []formats.Float3{{X: 0}, {X: 1}, {Y: 1}},
		UVs:       []formats.Float2{{}, {X: 1}, {Y: 1}},
		Normals:   []formats.Float3{{Z: 1}, {Z: 1}, {Z: 1}},
		Submeshes: [][]uint32{{0, 1, 2}, {2, 1, 0}},
	}
}

func waitReady(t *testing.T, s *assets.Server, h assets.UntypedHandle) {
	t.Helper()
	require.NoError(t, h.Wait(context.Background()))
	s.WaitIdle()
	require.True(t, assets.IsReady(h), "%s not ready: %v", h.Path(), s.FailedDependency(h))
}

func TestMeshSubmeshes(t *testing.T) {
	c := newContent(t)
	c.doc("props/crate.mesh", triangleMesh())
	s := c.server()

	h := assets.Load[*MeshAsset](s, "props/crate.mesh")
	waitReady(t, s, h.Untyped())

	m, ok := h.Get()
	require.True(t, ok)
	assert.False(t, m.IsSkinned())
	require.Len(t, m.Submeshes, 2)

	for i, sub := range m.Submeshes {
		assert.Equal(t, fmt.Sprintf("props/crate.mesh#props/crate.mesh_%d", i), sub.Path())
		direct := assets.Load[*mesh.Mesh](s, sub.Path())
		assert.True(t, direct.Same(sub.UntypedHandle))
		direct.Release()
	}

	first, _ := m.Submeshes[0].Get()
	second, _ := m.Submeshes[1].Get()
	assert.Equal(t, []uint32{0, 1, 2}, first.Indices)
	assert.Equal(t, []uint32{2, 1, 0}, second.Indices)
	assert.Equal(t, math.Vec3{X: 1}, first.Positions[1])
	assert.Equal(t, math.Vec2{Y: 1}, second.UVs[2])
	assert.Equal(t, []mesh.Attribute{mesh.AttributePosition, mesh.AttributeUV0, mesh.AttributeNormal}, first.Attributes())
}

func TestMeshSkeletonRoundTrip(t *testing.T) {
	doc := triangleMesh()
	doc.Bones = []string{"hip", "spine"}
	hip := math.Translate(0, -1, 0)
	spine := math.FromTRS(math.Vec3{Y: -2}, math.QuatFromAxisAngle(math.Vec3{Z: 1}, 0.3), math.One())
	doc.Bindposes = []formats.Float4x4{formats.FromMat4(hip), formats.FromMat4(spine)}
	doc.BoneIndices = []formats.UInt4{{X: 0}, {X: 1}, {X: 0, Y: 1}}
	doc.BoneWeights = []formats.Float4{{X: 1}, {X: 1}, {X: 0.5, Y: 0.5}}

	c := newContent(t)
	c.doc("chars/engineer.mesh", doc)
	s := c.server()

	h := assets.Load[*MeshAsset](s, "chars/engineer.mesh")
	waitReady(t, s, h.Untyped())
	m, _ := h.Get()

	assert.True(t, m.IsSkinned())
	assert.Equal(t, []string{"hip", "spine"}, m.Bones)
	require.Len(t, m.Bindposes, 2)
	assert.True(t, m.Bindposes[0].ApproxEqual(hip, 0))
	assert.True(t, m.Bindposes[1].ApproxEqual(spine, 0))

	sub, _ := m.Submeshes[0].Get()
	assert.True(t, sub.IsSkinned())
	assert.Equal(t, [4]uint16{0, 1, 0, 0}, sub.JointIndices[2])
}

func TestMeshValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*formats.SerializableMesh)
		want   error
	}{
		{"short uvs", func(m *formats.SerializableMesh) { m.UVs = m.UVs[:2] }, ErrAttributeLength},
		{"long colors", func(m *formats.SerializableMesh) { m.Colors = make([]formats.Float4, 4) }, ErrAttributeLength},
		{"index out of range", func(m *formats.SerializableMesh) { m.Submeshes[1] = []uint32{0, 1, 3} }, ErrIndexOutOfRange},
		{"bones without bindposes", func(m *formats.SerializableMesh) { m.Bones = []string{"hip"} }, ErrBindposeCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := triangleMesh()
			tt.mutate(&doc)

			c := newContent(t)
			c.doc("bad.mesh", doc)
			s := c.server()

			h := assets.Load[*MeshAsset](s, "bad.mesh")
			err := h.Wait(context.Background())
			assert.ErrorIs(t, err, assets.ErrConvert)
			assert.ErrorIs(t, err, tt.want)
			s.WaitIdle()
			assert.Equal(t, 1, s.Stats().Entries, "no submesh is registered for a rejected mesh")
		})
	}
}

func TestMalformedDocument(t *testing.T) {
	c := newContent(t)
	for _, p := range []string{"a.mesh", "a.material", "a.hierarchy", "a.anim", "a.atlas"} {
		c.put(p, []byte(`{"positions": 12`))
	}
	s := c.server()

	for _, p := range []string{"a.mesh", "a.material", "a.hierarchy", "a.anim", "a.atlas"} {
		h := assets.Load[any](s, p)
		err := h.Wait(context.Background())
		assert.ErrorIs(t, err, assets.ErrDecode, p)
		assert.ErrorIs(t, err, formats.ErrMalformedJSON, p)
	}
}

func TestWrongKey(t *testing.T) {
	c := newContent(t)
	c.doc("a.mesh", triangleMesh())

	other := testKey
	other[0] ^= 0xFF
	s := assets.NewServer(assets.Options{Source: c.src, Key: crypt.Static(other), Logger: zaptest.NewLogger(t)})
	Register(s)
	t.Cleanup(s.Close)

	err := assets.Load[*MeshAsset](s, "a.mesh").Wait(context.Background())
	assert.ErrorIs(t, err, assets.ErrCrypt)
	assert.ErrorIs(t, err, crypt.ErrAuth)
}

func TestMaterialDefaults(t *testing.T) {
	c := newContent(t)
	c.put("plain.material", []byte(`{}`))
	s := c.server()

	h := assets.Load[*material.Standard](s, "plain.material")
	waitReady(t, s, h.Untyped())
	m, _ := h.Get()

	assert.Equal(t, material.DefaultStandard(), *m)
	assert.Equal(t, float32(0.5), m.PerceptualRoughness)
	assert.Equal(t, float32(0), m.Metallic)
	assert.Equal(t, material.Opaque, m.AlphaMode)
}

func TestMaterialFields(t *testing.T) {
	c := newContent(t)
	c.doc("body.material", formats.SerializableMaterial{
		BaseColor:        &formats.Float4{X: 0.5, Y: 0.25, Z: 1, W: 1},
		BaseColorTexture: ptr("Body_D"),
		Metallic:         ptr(float32(3)),
		Roughness:        ptr(float32(0)),
		Reflectance:      ptr(float32(0.2)),
		EmissiveColor:    &formats.Float4{X: 2, W: 1},
		Unlit:            ptr(true),
		DoubleSided:      ptr(true),
		BlendMode:        &formats.BlendMode{Kind: formats.BlendMask, Cutoff: 0.3},
	})
	c.put("textures/Body_D.texture", pngBytes(t, 4, 2))
	s := c.server()

	h := assets.Load[*material.Standard](s, "body.material")
	waitReady(t, s, h.Untyped())
	m, _ := h.Get()

	assert.Equal(t, material.SRGBA(0.5, 0.25, 1, 1), m.BaseColor)
	assert.Equal(t, float32(1), m.Metallic)
	assert.InDelta(t, material.MinRoughness, m.PerceptualRoughness, 1e-6)
	assert.Equal(t, float32(0.2), m.Reflectance)
	assert.Equal(t, material.LinearRGBA(2, 0, 0, 1), m.Emissive)
	assert.True(t, m.Unlit)
	assert.True(t, m.DoubleSided)
	assert.Equal(t, material.Mask(0.3), m.AlphaMode)

	assert.Equal(t, "textures/Body_D.texture", m.BaseColorTexture.Path())
	tex, ok := m.BaseColorTexture.Get()
	require.True(t, ok)
	assert.Equal(t, 4, tex.Width())
	assert.False(t, m.EmissiveTexture.IsValid())
}

func TestMaterialMissingTextureBlocksGate(t *testing.T) {
	c := newContent(t)
	c.doc("body.material", formats.SerializableMaterial{EmissiveColorTexture: ptr("Glow")})
	s := c.server()

	h := assets.Load[*material.Standard](s, "body.material")
	require.NoError(t, h.Wait(context.Background()))
	s.WaitIdle()

	assert.Equal(t, assets.Loaded, h.State())
	assert.False(t, assets.IsReady(h.Untyped()))
	assert.ErrorIs(t, s.FailedDependency(h.Untyped()), assets.ErrIO)
}

func TestFacialMaterial(t *testing.T) {
	c := newContent(t)
	c.doc("Engineer_FaceMouth.material", formats.SerializableMaterial{MouthAtlas: ptr("Mouths")})
	c.doc("NoAtlas_FaceMouth.material", formats.SerializableMaterial{})
	c.put("textures/Mouths.texture", pngBytes(t, 8, 8))
	s := c.server()

	h := assets.LoadWith[*material.FacialExpression](s, "Engineer_FaceMouth.material", NameFacial)
	waitReady(t, s, h.Untyped())
	f, _ := h.Get()
	assert.Equal(t, "textures/Mouths.texture", f.MouthAtlas.Path())
	assert.Equal(t, [4]uint32{}, f.Uniform.Index)
	assert.Equal(t, material.DefaultStandard().PerceptualRoughness, f.Base.PerceptualRoughness)

	bad := assets.LoadWith[*material.FacialExpression](s, "NoAtlas_FaceMouth.material", NameFacial)
	err := bad.Wait(context.Background())
	assert.ErrorIs(t, err, assets.ErrConvert)
	assert.ErrorIs(t, err, ErrMissingMouthAtlas)
}
