package formats

// Rect is a pixel rectangle inside an atlas, max exclusive.
type Rect struct {
	Min UInt2 `json:"min"`
	Max UInt2 `json:"max"`
}

// SerializableTextureAtlas is the .atlas document: a grid of cells in one
// texture, used for mouth shapes on facial materials.
type SerializableTextureAtlas struct {
	Size     UInt2  `json:"size"`
	Textures []Rect `json:"textures"`
}

// ParseTextureAtlas parses a decrypted .atlas document.
func ParseTextureAtlas(data []byte) (*SerializableTextureAtlas, error) {
	doc, err := decode[SerializableTextureAtlas](data, "atlas")
	if err != nil {
		return nil, err
	}
	for i, r := range doc.Textures {
		if r.Min.X > r.Max.X || r.Min.Y > r.Max.Y || r.Max.X > doc.Size.X || r.Max.Y > doc.Size.Y {
			return nil, invalidf("atlas rect %d out of bounds", i)
		}
	}
	return doc, nil
}
