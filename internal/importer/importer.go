// Package importer converts glTF 2.0 scenes into the asset documents the
// runtime loads: one .hierarchy, a .mesh per glTF mesh, a .material per
// glTF material and a .texture per referenced image.
package importer

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/railrush/internal/engine/material"
	"github.com/Faultbox/railrush/internal/loader"
	"github.com/Faultbox/railrush/internal/logger"
	"github.com/Faultbox/railrush/pkg/formats"
	"github.com/Faultbox/railrush/pkg/math"
)

const defaultMaterial = "default"

// Result holds the documents of one import keyed by content path.
type Result struct {
	Model     string // path of the .hierarchy document
	Documents map[string]any
	Files     map[string][]byte // raw payloads, such as texture images
}

// Paths returns every output path in sorted order.
func (r *Result) Paths() []string {
	out := make([]string, 0, len(r.Documents)+len(r.Files))
	for p := range r.Documents {
		out = append(out, p)
	}
	for p := range r.Files {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Write encodes every document under dir. The output is plaintext; run it
// through the packer to seal it.
func (r *Result) Write(dir string) error {
	write := func(rel string, data []byte) error {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
		return os.WriteFile(p, data, 0644)
	}
	for rel, doc := range r.Documents {
		data, err := formats.Encode(doc)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", rel, err)
		}
		if err := write(rel, data); err != nil {
			return err
		}
	}
	for rel, data := range r.Files {
		if err := write(rel, data); err != nil {
			return err
		}
	}
	return nil
}

// Import opens a .gltf or .glb file and converts it. prefix is the content
// path the outputs are named under, e.g. "trains/loco".
func Import(filename, prefix string) (*Result, error) {
	doc, err := gltf.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	return ImportDocument(doc, filepath.Dir(filename), prefix)
}

// ImportDocument converts an already opened document. dir resolves
// external image URIs.
func ImportDocument(doc *gltf.Document, dir, prefix string) (*Result, error) {
	im := &importer{
		doc:    doc,
		dir:    dir,
		prefix: strings.TrimSuffix(prefix, "/"),
		log:    logger.Named("importer"),
		res: &Result{
			Documents: make(map[string]any),
			Files:     make(map[string][]byte),
		},
		meshNames:     make(map[int]string),
		materialNames: make(map[int]string),
		textureNames:  make(map[int]string),
	}
	if err := im.run(); err != nil {
		return nil, err
	}
	return im.res, nil
}

type importer struct {
	doc    *gltf.Document
	dir    string
	prefix string
	log    *zap.Logger
	res    *Result

	meshNames     map[int]string
	materialNames map[int]string
	textureNames  map[int]string
}

func (im *importer) run() error {
	roots, err := im.sceneRoots()
	if err != nil {
		return err
	}

	var root formats.SerializableModelNode
	if len(roots) == 1 {
		if root, err = im.node(roots[0]); err != nil {
			return err
		}
	} else {
		root = formats.SerializableModelNode{Name: path.Base(im.prefix), Transform: formats.IdentityFloat4x4()}
		for _, idx := range roots {
			child, err := im.node(idx)
			if err != nil {
				return err
			}
			root.Children = append(root.Children, child)
		}
	}

	im.res.Model = im.prefix + ".hierarchy"
	im.res.Documents[im.res.Model] = formats.SerializableModel{Root: root}
	im.log.Info("imported gltf",
		zap.String("model", im.res.Model),
		zap.Int("nodes", root.Count()),
		zap.Int("meshes", len(im.meshNames)),
		zap.Int("materials", len(im.materialNames)),
		zap.Int("textures", len(im.textureNames)))
	return nil
}

func (im *importer) sceneRoots() ([]int, error) {
	if len(im.doc.Scenes) == 0 {
		if len(im.doc.Nodes) == 0 {
			return nil, fmt.Errorf("gltf has no scenes or nodes")
		}
		// No scene: every node without a parent is a root.
		child := make(map[int]bool)
		for _, n := range im.doc.Nodes {
			for _, c := range n.Children {
				child[c] = true
			}
		}
		var roots []int
		for i := range im.doc.Nodes {
			if !child[i] {
				roots = append(roots, i)
			}
		}
		return roots, nil
	}
	scene := 0
	if im.doc.Scene != nil {
		scene = *im.doc.Scene
	}
	if scene < 0 || scene >= len(im.doc.Scenes) {
		return nil, fmt.Errorf("default scene %d out of range", scene)
	}
	roots := im.doc.Scenes[scene].Nodes
	if len(roots) == 0 {
		return nil, fmt.Errorf("scene %d is empty", scene)
	}
	return roots, nil
}

func (im *importer) node(idx int) (formats.SerializableModelNode, error) {
	if idx < 0 || idx >= len(im.doc.Nodes) {
		return formats.SerializableModelNode{}, fmt.Errorf("node %d out of range", idx)
	}
	n := im.doc.Nodes[idx]
	out := formats.SerializableModelNode{
		Name:      im.nodeName(idx),
		Transform: formats.FromMat4(nodeMatrix(n)),
	}

	if n.Mesh != nil {
		name, materials, err := im.mesh(*n.Mesh, n.Skin)
		if err != nil {
			return out, fmt.Errorf("node %q: %w", out.Name, err)
		}
		out.Mesh = &name
		out.Materials = materials
	}

	for _, c := range n.Children {
		child, err := im.node(c)
		if err != nil {
			return out, err
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}

func (im *importer) nodeName(idx int) string {
	if name := im.doc.Nodes[idx].Name; name != "" {
		return name
	}
	return fmt.Sprintf("node%d", idx)
}

func nodeMatrix(n *gltf.Node) math.Mat4 {
	var m math.Mat4
	identity := [16]float64{0: 1, 5: 1, 10: 1, 15: 1}
	if n.Matrix != [16]float64{} && n.Matrix != identity {
		for i, v := range n.Matrix {
			m[i] = float32(v)
		}
		return m
	}

	t := math.Vec3{X: float32(n.Translation[0]), Y: float32(n.Translation[1]), Z: float32(n.Translation[2])}
	r := math.QuatIdentity()
	if n.Rotation != [4]float64{} {
		r = math.Quat{X: float32(n.Rotation[0]), Y: float32(n.Rotation[1]), Z: float32(n.Rotation[2]), W: float32(n.Rotation[3])}
	}
	s := math.One()
	if n.Scale != [3]float64{} {
		s = math.Vec3{X: float32(n.Scale[0]), Y: float32(n.Scale[1]), Z: float32(n.Scale[2])}
	}
	return math.FromTRS(t, r, s)
}

// mesh converts glTF mesh idx once and returns its content name and the
// material name of each primitive.
func (im *importer) mesh(idx int, skin *int) (string, []string, error) {
	if idx < 0 || idx >= len(im.doc.Meshes) {
		return "", nil, fmt.Errorf("mesh %d out of range", idx)
	}
	gm := im.doc.Meshes[idx]

	var materials []string
	for _, prim := range gm.Primitives {
		if !triangles(prim) {
			continue
		}
		name, err := im.material(prim.Material)
		if err != nil {
			return "", nil, err
		}
		materials = append(materials, name)
	}

	if name, done := im.meshNames[idx]; done {
		return name, materials, nil
	}
	name := im.prefix + "/" + sanitize(gm.Name, "mesh", idx)
	im.meshNames[idx] = name

	doc, err := im.buildMesh(gm)
	if err != nil {
		return "", nil, fmt.Errorf("mesh %q: %w", gm.Name, err)
	}
	if skin != nil {
		if err := im.bindSkin(doc, *skin); err != nil {
			return "", nil, fmt.Errorf("mesh %q: %w", gm.Name, err)
		}
	}
	im.res.Documents[loader.MeshPath(name)] = doc
	return name, materials, nil
}

func triangles(p *gltf.Primitive) bool {
	return p.Mode == gltf.PrimitiveTriangles || p.Mode == 0
}

// buildMesh concatenates the triangle primitives into one vertex buffer
// with a submesh per primitive.
func (im *importer) buildMesh(gm *gltf.Mesh) (*formats.SerializableMesh, error) {
	out := &formats.SerializableMesh{}
	for pi, prim := range gm.Primitives {
		if !triangles(prim) {
			im.log.Debug("skipping non-triangle primitive", zap.String("mesh", gm.Name), zap.Int("primitive", pi))
			continue
		}
		pos, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			return nil, fmt.Errorf("primitive %d has no positions", pi)
		}
		positions, err := readFloats(im.doc, pos, gltf.AccessorVec3)
		if err != nil {
			return nil, fmt.Errorf("primitive %d positions: %w", pi, err)
		}
		base := uint32(len(out.Positions))
		count := len(positions)
		for _, p := range positions {
			out.Positions = append(out.Positions, formats.Float3{X: p[0], Y: p[1], Z: p[2]})
		}

		if err := im.optional(prim, gltf.NORMAL, gltf.AccessorVec3, int(base), count, func(v []float32) {
			out.Normals = append(out.Normals, formats.Float3{X: v[0], Y: v[1], Z: v[2]})
		}, func() int { return len(out.Normals) }); err != nil {
			return nil, fmt.Errorf("primitive %d: %w", pi, err)
		}
		if err := im.optional(prim, gltf.TEXCOORD_0, gltf.AccessorVec2, int(base), count, func(v []float32) {
			out.UVs = append(out.UVs, formats.Float2{X: v[0], Y: v[1]})
		}, func() int { return len(out.UVs) }); err != nil {
			return nil, fmt.Errorf("primitive %d: %w", pi, err)
		}
		if err := im.optional(prim, gltf.TANGENT, gltf.AccessorVec4, int(base), count, func(v []float32) {
			out.Tangents = append(out.Tangents, formats.Float4{X: v[0], Y: v[1], Z: v[2], W: v[3]})
		}, func() int { return len(out.Tangents) }); err != nil {
			return nil, fmt.Errorf("primitive %d: %w", pi, err)
		}
		if err := im.optional(prim, gltf.COLOR_0, gltf.AccessorVec4, int(base), count, func(v []float32) {
			out.Colors = append(out.Colors, formats.Float4{X: v[0], Y: v[1], Z: v[2], W: v[3]})
		}, func() int { return len(out.Colors) }); err != nil {
			return nil, fmt.Errorf("primitive %d: %w", pi, err)
		}
		if err := im.optional(prim, gltf.WEIGHTS_0, gltf.AccessorVec4, int(base), count, func(v []float32) {
			out.BoneWeights = append(out.BoneWeights, formats.Float4{X: v[0], Y: v[1], Z: v[2], W: v[3]})
		}, func() int { return len(out.BoneWeights) }); err != nil {
			return nil, fmt.Errorf("primitive %d: %w", pi, err)
		}
		if err := im.joints(prim, out, int(base), count); err != nil {
			return nil, fmt.Errorf("primitive %d: %w", pi, err)
		}

		var indices []uint32
		if prim.Indices != nil {
			if indices, err = readIndices(im.doc, *prim.Indices); err != nil {
				return nil, fmt.Errorf("primitive %d indices: %w", pi, err)
			}
		} else {
			indices = make([]uint32, count)
			for i := range indices {
				indices[i] = uint32(i)
			}
		}
		sub := make([]uint32, len(indices))
		for i, ix := range indices {
			if int(ix) >= count {
				return nil, fmt.Errorf("primitive %d: index %d out of range for %d vertices", pi, ix, count)
			}
			sub[i] = base + ix
		}
		out.Submeshes = append(out.Submeshes, sub)
	}
	return out, nil
}

// optional appends an attribute for count vertices starting at base. When
// an earlier primitive carried the attribute and this one does not, or the
// other way round, the missing range is zero filled so every attribute
// stays parallel to the positions.
func (im *importer) optional(prim *gltf.Primitive, attr string, typ gltf.AccessorType, base, count int, add func([]float32), have func() int) error {
	idx, ok := prim.Attributes[attr]
	if !ok {
		if have() > 0 {
			zero := make([]float32, componentCount[typ])
			for range count {
				add(zero)
			}
		}
		return nil
	}
	values, err := readFloats(im.doc, idx, typ)
	if err != nil {
		return fmt.Errorf("%s: %w", attr, err)
	}
	if len(values) != count {
		return fmt.Errorf("%s: %d values for %d vertices", attr, len(values), count)
	}
	zero := make([]float32, componentCount[typ])
	for have() < base {
		add(zero)
	}
	for _, v := range values {
		add(v)
	}
	return nil
}

func (im *importer) joints(prim *gltf.Primitive, out *formats.SerializableMesh, base, count int) error {
	idx, ok := prim.Attributes[gltf.JOINTS_0]
	if !ok {
		if len(out.BoneIndices) > 0 {
			out.BoneIndices = append(out.BoneIndices, make([]formats.UInt4, count)...)
		}
		return nil
	}
	values, err := readJoints(im.doc, idx)
	if err != nil {
		return fmt.Errorf("%s: %w", gltf.JOINTS_0, err)
	}
	if len(values) != count {
		return fmt.Errorf("%s: %d values for %d vertices", gltf.JOINTS_0, len(values), count)
	}
	if missing := base - len(out.BoneIndices); missing > 0 {
		out.BoneIndices = append(out.BoneIndices, make([]formats.UInt4, missing)...)
	}
	for _, v := range values {
		out.BoneIndices = append(out.BoneIndices, formats.UInt4{X: uint16(v[0]), Y: uint16(v[1]), Z: uint16(v[2]), W: uint16(v[3])})
	}
	return nil
}

// bindSkin records the joint names and inverse bind matrices of a skin.
// A skin without matrices binds every joint at identity.
func (im *importer) bindSkin(out *formats.SerializableMesh, idx int) error {
	if idx < 0 || idx >= len(im.doc.Skins) {
		return fmt.Errorf("skin %d out of range", idx)
	}
	skin := im.doc.Skins[idx]
	for _, j := range skin.Joints {
		if j < 0 || j >= len(im.doc.Nodes) {
			return fmt.Errorf("skin %d: joint node %d out of range", idx, j)
		}
		out.Bones = append(out.Bones, im.nodeName(j))
	}

	if skin.InverseBindMatrices == nil {
		for range skin.Joints {
			out.Bindposes = append(out.Bindposes, formats.IdentityFloat4x4())
		}
		return nil
	}
	mats, err := readFloats(im.doc, *skin.InverseBindMatrices, gltf.AccessorMat4)
	if err != nil {
		return fmt.Errorf("skin %d inverse bind matrices: %w", idx, err)
	}
	for _, v := range mats {
		var m math.Mat4
		copy(m[:], v)
		out.Bindposes = append(out.Bindposes, formats.FromMat4(m))
	}
	return nil
}

// material converts glTF material idx once. Primitives without a material
// share a default one.
func (im *importer) material(idx *int) (string, error) {
	key := -1
	if idx != nil {
		key = *idx
	}
	if name, done := im.materialNames[key]; done {
		return name, nil
	}

	var doc formats.SerializableMaterial
	name := im.prefix + "/" + defaultMaterial
	if idx != nil {
		if key < 0 || key >= len(im.doc.Materials) {
			return "", fmt.Errorf("material %d out of range", key)
		}
		gm := im.doc.Materials[key]
		name = im.prefix + "/" + sanitize(gm.Name, "material", key)
		var err error
		if doc, err = im.convertMaterial(gm); err != nil {
			return "", fmt.Errorf("material %q: %w", gm.Name, err)
		}
	}
	im.materialNames[key] = name
	im.res.Documents[loader.MaterialPath(name)] = doc
	return name, nil
}

func (im *importer) convertMaterial(gm *gltf.Material) (formats.SerializableMaterial, error) {
	var doc formats.SerializableMaterial
	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		if c := pbr.BaseColorFactor; c != nil {
			doc.BaseColor = &formats.Float4{X: float32(c[0]), Y: float32(c[1]), Z: float32(c[2]), W: float32(c[3])}
		}
		if pbr.MetallicFactor != nil {
			doc.Metallic = ptr(float32(*pbr.MetallicFactor))
		}
		if pbr.RoughnessFactor != nil {
			doc.Roughness = ptr(float32(*pbr.RoughnessFactor))
		}
		if pbr.BaseColorTexture != nil {
			tex, err := im.texture(pbr.BaseColorTexture.Index)
			if err != nil {
				return doc, err
			}
			doc.BaseColorTexture = &tex
		}
	}
	if e := gm.EmissiveFactor; e != [3]float64{} {
		doc.EmissiveColor = &formats.Float4{X: float32(e[0]), Y: float32(e[1]), Z: float32(e[2]), W: 1}
	}
	if gm.EmissiveTexture != nil {
		tex, err := im.texture(gm.EmissiveTexture.Index)
		if err != nil {
			return doc, err
		}
		doc.EmissiveColorTexture = &tex
	}
	if gm.DoubleSided {
		doc.DoubleSided = ptr(true)
	}
	if _, ok := gm.Extensions["KHR_materials_unlit"]; ok {
		doc.Unlit = ptr(true)
	}
	switch gm.AlphaMode {
	case gltf.AlphaMask:
		cutoff := float32(0.5)
		if gm.AlphaCutoff != nil {
			cutoff = float32(*gm.AlphaCutoff)
		}
		doc.BlendMode = &formats.BlendMode{Kind: formats.BlendMask, Cutoff: cutoff}
	case gltf.AlphaBlend:
		doc.BlendMode = &formats.BlendMode{Kind: formats.BlendBlend}
	}
	return doc, nil
}

// texture extracts the image behind glTF texture idx and returns the
// texture name materials refer to.
func (im *importer) texture(idx int) (string, error) {
	if idx < 0 || idx >= len(im.doc.Textures) {
		return "", fmt.Errorf("texture %d out of range", idx)
	}
	src := im.doc.Textures[idx].Source
	if src == nil {
		return "", fmt.Errorf("texture %d has no image", idx)
	}
	if name, done := im.textureNames[*src]; done {
		return name, nil
	}
	if *src < 0 || *src >= len(im.doc.Images) {
		return "", fmt.Errorf("image %d out of range", *src)
	}
	img := im.doc.Images[*src]

	data, err := im.imageData(img)
	if err != nil {
		return "", fmt.Errorf("image %d: %w", *src, err)
	}
	name := path.Base(im.prefix) + "_" + sanitize(strings.TrimSuffix(path.Base(img.Name), path.Ext(img.Name)), "image", *src)
	im.textureNames[*src] = name
	im.res.Files[material.TexturePath(name)] = data
	return name, nil
}

func (im *importer) imageData(img *gltf.Image) ([]byte, error) {
	if img.BufferView != nil {
		bv := im.doc.BufferViews[*img.BufferView]
		buf := im.doc.Buffers[bv.Buffer]
		if end := bv.ByteOffset + bv.ByteLength; buf.Data == nil || end > len(buf.Data) {
			return nil, fmt.Errorf("buffer view %d out of range", *img.BufferView)
		}
		return buf.Data[bv.ByteOffset : bv.ByteOffset+bv.ByteLength], nil
	}
	if img.URI == "" || strings.HasPrefix(img.URI, "data:") {
		return nil, fmt.Errorf("unsupported image source")
	}
	return os.ReadFile(filepath.Join(im.dir, filepath.FromSlash(img.URI)))
}

// sanitize turns a glTF name into a path segment, falling back to kind+index.
func sanitize(name, kind string, idx int) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '#', ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return fmt.Sprintf("%s%d", kind, idx)
	}
	return name
}

func ptr[T any](v T) *T { return &v }
