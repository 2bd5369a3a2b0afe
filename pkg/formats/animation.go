package formats

// SerializableAnimation is the .anim document.
type SerializableAnimation struct {
	Duration float32                 `json:"duration"`
	Curves   []SerializableAnimCurve `json:"curves"`
}

// SerializableAnimCurve animates one bone. Timestamps and Keyframes are
// parallel arrays.
type SerializableAnimCurve struct {
	Bone       string                 `json:"bone"`
	Timestamps []float32              `json:"timestamps"`
	Keyframes  []SerializableKeyframe `json:"keyframes"`
}

// SerializableKeyframe is a sparse sample: any channel may be absent.
type SerializableKeyframe struct {
	Translation *Float3 `json:"translation,omitempty"`
	Rotation    *Float4 `json:"rotation,omitempty"`
	Scale       *Float3 `json:"scale,omitempty"`
}

// ParseAnimation parses a decrypted .anim document.
func ParseAnimation(data []byte) (*SerializableAnimation, error) {
	doc, err := decode[SerializableAnimation](data, "anim")
	if err != nil {
		return nil, err
	}
	for i, c := range doc.Curves {
		if len(c.Timestamps) != len(c.Keyframes) {
			return nil, invalidf("curve %d (%s): %d timestamps, %d keyframes",
				i, c.Bone, len(c.Timestamps), len(c.Keyframes))
		}
	}
	return doc, nil
}
