package formats

import (
	"encoding/json"
	"fmt"
)

// BlendModeKind enumerates the serialized blend modes.
type BlendModeKind int

const (
	BlendOpaque BlendModeKind = iota
	BlendMask
	BlendBlend
	BlendPremultiplied
	BlendAlphaToCoverage
	BlendAdd
	BlendMultiply
)

var blendModeNames = [...]string{
	BlendOpaque:          "Opaque",
	BlendMask:            "Mask",
	BlendBlend:           "Blend",
	BlendPremultiplied:   "Premultiplied",
	BlendAlphaToCoverage: "AlphaToCoverage",
	BlendAdd:             "Add",
	BlendMultiply:        "Multiply",
}

// String returns the wire name of the kind.
func (k BlendModeKind) String() string {
	if k < 0 || int(k) >= len(blendModeNames) {
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
	return blendModeNames[k]
}

// BlendMode is an externally tagged variant. Unit variants are encoded as a
// bare string ("Opaque"); Mask carries its cutoff: {"Mask": 0.5}.
type BlendMode struct {
	Kind   BlendModeKind
	Cutoff float32 // Mask only
}

// MarshalJSON implements json.Marshaler.
func (b BlendMode) MarshalJSON() ([]byte, error) {
	if b.Kind == BlendMask {
		return json.Marshal(map[string]float32{"Mask": b.Cutoff})
	}
	return json.Marshal(b.Kind.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BlendMode) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		for k, n := range blendModeNames {
			if n == name && BlendModeKind(k) != BlendMask {
				*b = BlendMode{Kind: BlendModeKind(k)}
				return nil
			}
		}
		return fmt.Errorf("unknown blend mode %q", name)
	}

	var tagged map[string]float32
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("blend mode must be a string or {\"Mask\": cutoff}: %w", err)
	}
	cutoff, ok := tagged["Mask"]
	if !ok || len(tagged) != 1 {
		return fmt.Errorf("unknown blend mode %s", data)
	}
	*b = BlendMode{Kind: BlendMask, Cutoff: cutoff}
	return nil
}

// SerializableMaterial is the .material document. Texture fields hold bare
// names that resolve to textures/{name}.texture.
type SerializableMaterial struct {
	BaseColor            *Float4    `json:"base_color,omitempty"`
	BaseColorTexture     *string    `json:"base_color_texture,omitempty"`
	Metallic             *float32   `json:"metallic,omitempty"`
	Roughness            *float32   `json:"roughness,omitempty"`
	Reflectance          *float32   `json:"reflectance,omitempty"`
	EmissiveColor        *Float4    `json:"emissive_color,omitempty"`
	EmissiveColorTexture *string    `json:"emissive_color_texture,omitempty"`
	Unlit                *bool      `json:"unlit,omitempty"`
	DoubleSided          *bool      `json:"double_sided,omitempty"`
	BlendMode            *BlendMode `json:"blend_mode,omitempty"`

	// MouthAtlas is only read by facial-expression materials. The wire name
	// is spelled "mouth_altas" in shipped content.
	MouthAtlas *string `json:"mouth_altas,omitempty"`
}

// ParseMaterial parses a decrypted .material document.
func ParseMaterial(data []byte) (*SerializableMaterial, error) {
	return decode[SerializableMaterial](data, "material")
}
