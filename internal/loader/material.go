package loader

import (
	"context"

	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/engine/material"
	"github.com/Faultbox/railrush/pkg/formats"
)

// MaterialLoader loads .material files as standard materials.
type MaterialLoader struct{}

func (MaterialLoader) Name() string         { return NameMaterial }
func (MaterialLoader) Extensions() []string { return []string{"material"} }

func (MaterialLoader) Load(ctx context.Context, lc *assets.LoadContext, data []byte) (any, error) {
	doc, err := decodeDocument(ctx, lc, data, formats.ParseMaterial, false)
	if err != nil {
		return nil, err
	}
	m := buildStandard(lc, doc)
	return &m, nil
}

// FacialMaterialLoader loads .material files as facial expression
// materials. It is only selected by name, never by extension.
type FacialMaterialLoader struct{}

func (FacialMaterialLoader) Name() string         { return NameFacial }
func (FacialMaterialLoader) Extensions() []string { return nil }

func (FacialMaterialLoader) Load(ctx context.Context, lc *assets.LoadContext, data []byte) (any, error) {
	doc, err := decodeDocument(ctx, lc, data, formats.ParseMaterial, false)
	if err != nil {
		return nil, err
	}
	if doc.MouthAtlas == nil {
		return nil, assets.ConvertError(ErrMissingMouthAtlas)
	}

	return &material.FacialExpression{
		Base:       buildStandard(lc, doc),
		MouthAtlas: assets.LoadDep[*material.Texture](lc, material.TexturePath(*doc.MouthAtlas)),
	}, nil
}

func buildStandard(lc *assets.LoadContext, doc *formats.SerializableMaterial) material.Standard {
	m := material.DefaultStandard()

	if c := doc.BaseColor; c != nil {
		m.BaseColor = material.SRGBA(c.X, c.Y, c.Z, c.W)
	}
	if name := doc.BaseColorTexture; name != nil {
		m.BaseColorTexture = assets.LoadDep[*material.Texture](lc, material.TexturePath(*name))
	}
	if v := doc.Metallic; v != nil {
		m.SetMetallic(*v)
	}
	if v := doc.Roughness; v != nil {
		m.SetRoughness(*v)
	}
	if v := doc.Reflectance; v != nil {
		m.Reflectance = *v
	}
	if c := doc.EmissiveColor; c != nil {
		m.Emissive = material.LinearRGBA(c.X, c.Y, c.Z, c.W)
	}
	if name := doc.EmissiveColorTexture; name != nil {
		m.EmissiveTexture = assets.LoadDep[*material.Texture](lc, material.TexturePath(*name))
	}
	if v := doc.Unlit; v != nil {
		m.Unlit = *v
	}
	if v := doc.DoubleSided; v != nil {
		m.DoubleSided = *v
	}
	if b := doc.BlendMode; b != nil {
		m.AlphaMode = alphaMode(*b)
	}
	return m
}

func alphaMode(b formats.BlendMode) material.AlphaMode {
	switch b.Kind {
	case formats.BlendMask:
		return material.Mask(b.Cutoff)
	case formats.BlendBlend:
		return material.AlphaMode{Kind: material.AlphaBlend}
	case formats.BlendPremultiplied:
		return material.AlphaMode{Kind: material.AlphaPremultiplied}
	case formats.BlendAlphaToCoverage:
		return material.AlphaMode{Kind: material.AlphaToCoverage}
	case formats.BlendAdd:
		return material.AlphaMode{Kind: material.AlphaAdd}
	case formats.BlendMultiply:
		return material.AlphaMode{Kind: material.AlphaMultiply}
	default:
		return material.Opaque
	}
}
