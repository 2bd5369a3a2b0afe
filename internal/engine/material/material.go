// Package material defines the surface descriptions referenced by spawned meshes.
package material

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"

	"github.com/Faultbox/railrush/internal/assets"
)

// FacialExpressionMarker in a material name selects the facial expression
// material instead of the standard one.
const FacialExpressionMarker = "FaceMouth"

// ColorSpace tells how the channels of a Color are encoded.
type ColorSpace uint8

const (
	SRGB ColorSpace = iota
	Linear
)

// Color is an RGBA color with straight alpha.
type Color struct {
	R, G, B, A float32
	Space      ColorSpace
}

var (
	White = Color{R: 1, G: 1, B: 1, A: 1, Space: SRGB}
	Black = Color{A: 1, Space: Linear}
)

// SRGBA returns a gamma-encoded color.
func SRGBA(r, g, b, a float32) Color {
	return Color{R: r, G: g, B: b, A: a, Space: SRGB}
}

// LinearRGBA returns a linear color.
func LinearRGBA(r, g, b, a float32) Color {
	return Color{R: r, G: g, B: b, A: a, Space: Linear}
}

// ToLinear converts the color channels to linear space. Alpha is unchanged.
func (c Color) ToLinear() Color {
	if c.Space == Linear {
		return c
	}
	return Color{R: srgbToLinear(c.R), G: srgbToLinear(c.G), B: srgbToLinear(c.B), A: c.A, Space: Linear}
}

func srgbToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math32.Pow((v+0.055)/1.055, 2.4)
}

// AlphaModeKind selects how alpha is composited.
type AlphaModeKind uint8

const (
	AlphaOpaque AlphaModeKind = iota
	AlphaMask
	AlphaBlend
	AlphaPremultiplied
	AlphaToCoverage
	AlphaAdd
	AlphaMultiply
)

func (k AlphaModeKind) String() string {
	switch k {
	case AlphaOpaque:
		return "Opaque"
	case AlphaMask:
		return "Mask"
	case AlphaBlend:
		return "Blend"
	case AlphaPremultiplied:
		return "Premultiplied"
	case AlphaToCoverage:
		return "AlphaToCoverage"
	case AlphaAdd:
		return "Add"
	case AlphaMultiply:
		return "Multiply"
	default:
		return fmt.Sprintf("AlphaModeKind(%d)", int(k))
	}
}

// AlphaMode is the alpha handling of a material. Cutoff applies to AlphaMask only.
type AlphaMode struct {
	Kind   AlphaModeKind
	Cutoff float32
}

// Opaque is the default alpha mode.
var Opaque = AlphaMode{Kind: AlphaOpaque}

// Mask returns a cutout alpha mode.
func Mask(cutoff float32) AlphaMode {
	return AlphaMode{Kind: AlphaMask, Cutoff: cutoff}
}

func (a AlphaMode) String() string {
	if a.Kind == AlphaMask {
		return fmt.Sprintf("Mask(%g)", a.Cutoff)
	}
	return a.Kind.String()
}

// Roughness and metallic limits applied when a material is built.
const (
	MinRoughness = 0.089
	MaxRoughness = 1.0
)

// Standard is a physically based material.
type Standard struct {
	BaseColor        Color
	BaseColorTexture assets.Handle[*Texture] // zero when absent

	Metallic            float32
	PerceptualRoughness float32
	Reflectance         float32

	Emissive        Color
	EmissiveTexture assets.Handle[*Texture] // zero when absent

	Unlit       bool
	DoubleSided bool
	AlphaMode   AlphaMode
}

// DefaultStandard returns the values used for every field a material
// document leaves out.
func DefaultStandard() Standard {
	return Standard{
		BaseColor:           White,
		Metallic:            0,
		PerceptualRoughness: 0.5,
		Reflectance:         0.5,
		Emissive:            Black,
		AlphaMode:           Opaque,
	}
}

// SetMetallic stores v clamped to [0, 1].
func (m *Standard) SetMetallic(v float32) {
	m.Metallic = clamp(v, 0, 1)
}

// SetRoughness stores v clamped to [MinRoughness, MaxRoughness].
func (m *Standard) SetRoughness(v float32) {
	m.PerceptualRoughness = clamp(v, MinRoughness, MaxRoughness)
}

// Textures returns the texture handles set on the material.
func (m *Standard) Textures() []assets.UntypedHandle {
	var out []assets.UntypedHandle
	for _, h := range []assets.Handle[*Texture]{m.BaseColorTexture, m.EmissiveTexture} {
		if h.IsValid() {
			out = append(out, h.Untyped())
		}
	}
	return out
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}

// FacialExpressionUniform selects the mouth cell shown by the shader.
type FacialExpressionUniform struct {
	Index [4]uint32
}

// FacialExpression extends Standard with a mouth-shape atlas.
type FacialExpression struct {
	Base       Standard
	MouthAtlas assets.Handle[*Texture]
	Uniform    FacialExpressionUniform
}

// SetMouth selects the mouth cell.
func (f *FacialExpression) SetMouth(index uint32) {
	f.Uniform.Index[0] = index
}

// Mouth returns the selected mouth cell.
func (f *FacialExpression) Mouth() uint32 {
	return f.Uniform.Index[0]
}

// Kind tells which variant a Handle holds.
type Kind uint8

const (
	KindStandard Kind = iota
	KindFacialExpression
)

func (k Kind) String() string {
	if k == KindFacialExpression {
		return "FacialExpression"
	}
	return "Standard"
}

// KindForName picks the material variant from a material name.
func KindForName(name string) Kind {
	if strings.Contains(name, FacialExpressionMarker) {
		return KindFacialExpression
	}
	return KindStandard
}

// Handle refers to either material variant.
type Handle struct {
	Kind     Kind
	Standard assets.Handle[*Standard]
	Facial   assets.Handle[*FacialExpression]
}

// StandardHandle wraps a standard material handle.
func StandardHandle(h assets.Handle[*Standard]) Handle {
	return Handle{Kind: KindStandard, Standard: h}
}

// FacialHandle wraps a facial expression material handle.
func FacialHandle(h assets.Handle[*FacialExpression]) Handle {
	return Handle{Kind: KindFacialExpression, Facial: h}
}

// Untyped returns the handle of the active variant.
func (h Handle) Untyped() assets.UntypedHandle {
	if h.Kind == KindFacialExpression {
		return h.Facial.Untyped()
	}
	return h.Standard.Untyped()
}

// Path returns the asset path of the active variant.
func (h Handle) Path() string {
	return h.Untyped().Path()
}

// Clone returns a new reference to the same material.
func (h Handle) Clone() Handle {
	switch h.Kind {
	case KindFacialExpression:
		return FacialHandle(h.Facial.Clone())
	default:
		return StandardHandle(h.Standard.Clone())
	}
}

// Release drops the reference held by h.
func (h Handle) Release() {
	h.Untyped().Release()
}
