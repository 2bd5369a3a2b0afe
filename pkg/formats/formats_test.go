package formats

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Faultbox/railrush/pkg/math"
)

func TestFloat4x4ColumnOrder(t *testing.T) {
	data := []byte(`{
		"m00": 1, "m01": 0, "m02": 0, "m03": 0,
		"m10": 0, "m11": 1, "m12": 0, "m13": 0,
		"m20": 0, "m21": 0, "m22": 1, "m23": 0,
		"m30": 5, "m31": 6, "m32": 7, "m33": 1
	}`)
	var f Float4x4
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// m3x is the fourth column, which holds the translation.
	want := math.Translate(5, 6, 7)
	if got := f.Mat4(); got != want {
		t.Errorf("Mat4() = %v, want %v", got, want)
	}
	if back := FromMat4(want); back != f {
		t.Errorf("FromMat4 = %+v, want %+v", back, f)
	}
}

func TestBlendModeUnmarshal(t *testing.T) {
	tests := []struct {
		input   string
		want    BlendMode
		wantErr bool
	}{
		{`"Opaque"`, BlendMode{Kind: BlendOpaque}, false},
		{`"Blend"`, BlendMode{Kind: BlendBlend}, false},
		{`"Premultiplied"`, BlendMode{Kind: BlendPremultiplied}, false},
		{`"AlphaToCoverage"`, BlendMode{Kind: BlendAlphaToCoverage}, false},
		{`"Add"`, BlendMode{Kind: BlendAdd}, false},
		{`"Multiply"`, BlendMode{Kind: BlendMultiply}, false},
		{`{"Mask": 0.25}`, BlendMode{Kind: BlendMask, Cutoff: 0.25}, false},
		{`"Mask"`, BlendMode{}, true},
		{`"Glass"`, BlendMode{}, true},
		{`{"Mask": 0.5, "Blend": 1}`, BlendMode{}, true},
		{`{"Other": 1}`, BlendMode{}, true},
		{`3`, BlendMode{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got BlendMode
			err := json.Unmarshal([]byte(tt.input), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBlendModeMarshalTagged(t *testing.T) {
	mask, err := json.Marshal(BlendMode{Kind: BlendMask, Cutoff: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if string(mask) != `{"Mask":0.5}` {
		t.Errorf("mask encoded as %s", mask)
	}
	add, err := json.Marshal(BlendMode{Kind: BlendAdd})
	if err != nil {
		t.Fatal(err)
	}
	if string(add) != `"Add"` {
		t.Errorf("add encoded as %s", add)
	}
}

func TestParseMaterial(t *testing.T) {
	doc, err := ParseMaterial([]byte(`{
		"base_color": {"x": 1, "y": 0.5, "z": 0.25, "w": 1},
		"base_color_texture": "Face_Diffuse",
		"roughness": 0.7,
		"blend_mode": {"Mask": 0.5},
		"mouth_altas": "Mouth_Atlas"
	}`))
	if err != nil {
		t.Fatalf("ParseMaterial: %v", err)
	}
	if doc.BaseColorTexture == nil || *doc.BaseColorTexture != "Face_Diffuse" {
		t.Errorf("base_color_texture = %v", doc.BaseColorTexture)
	}
	if doc.MouthAtlas == nil || *doc.MouthAtlas != "Mouth_Atlas" {
		t.Errorf("mouth_altas = %v", doc.MouthAtlas)
	}
	if doc.Metallic != nil {
		t.Errorf("metallic should be absent, got %v", *doc.Metallic)
	}
	if doc.BlendMode == nil || doc.BlendMode.Kind != BlendMask {
		t.Errorf("blend_mode = %+v", doc.BlendMode)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		bad   string
		parse func([]byte) error
	}{
		{"mesh", `{"positions": 5}`, func(b []byte) error { _, err := ParseMesh(b); return err }},
		{"material", `{"metallic": "shiny"}`, func(b []byte) error { _, err := ParseMaterial(b); return err }},
		{"model", `{"root": 1}`, func(b []byte) error { _, err := ParseModel(b); return err }},
		{"animation", `{"curves": "x"}`, func(b []byte) error { _, err := ParseAnimation(b); return err }},
		{"atlas", `{"size": []}`, func(b []byte) error { _, err := ParseTextureAtlas(b); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, input := range []string{`{`, tt.bad} {
				if err := tt.parse([]byte(input)); !errors.Is(err, ErrMalformedJSON) {
					t.Errorf("%s: got %v, want ErrMalformedJSON", input, err)
				}
			}
		})
	}
}

func TestParseMesh(t *testing.T) {
	doc, err := ParseMesh([]byte(`{
		"positions": [{"x":0,"y":0,"z":0},{"x":1,"y":0,"z":0},{"x":0,"y":1,"z":0}],
		"colors": [], "uvs": [], "normals": [], "tangents": [],
		"bone_indices": [{"x":0,"y":1,"z":0,"w":0},{"x":0,"y":0,"z":0,"w":0},{"x":1,"y":0,"z":0,"w":0}],
		"bone_weights": [],
		"submeshes": [[0,1,2]],
		"bindposes": [],
		"bones": ["hip"]
	}`))
	if err != nil {
		t.Fatalf("ParseMesh: %v", err)
	}
	if len(doc.Positions) != 3 {
		t.Errorf("expected 3 positions, got %d", len(doc.Positions))
	}
	if doc.BoneIndices[0].Array() != [4]uint16{0, 1, 0, 0} {
		t.Errorf("bone indices = %v", doc.BoneIndices[0].Array())
	}
	if doc.IsSkinned() {
		t.Error("mesh without bindposes should not be skinned")
	}
	if n := doc.AttributeLengths()["bone_indices"]; n != 3 {
		t.Errorf("bone_indices length = %d", n)
	}
}

func TestParseModelWalk(t *testing.T) {
	doc, err := ParseModel([]byte(`{"root": {
		"name": "Root", "transform": {"m00":1,"m11":1,"m22":1,"m33":1},
		"mesh": null, "materials": [],
		"children": [
			{"name": "A", "transform": {"m00":1,"m11":1,"m22":1,"m33":1}, "mesh": "Body", "materials": ["Skin"], "children": [
				{"name": "A1", "transform": {"m00":1,"m11":1,"m22":1,"m33":1}, "mesh": null, "materials": [], "children": []}
			]},
			{"name": "B", "transform": {"m00":1,"m11":1,"m22":1,"m33":1}, "mesh": null, "materials": [], "children": []}
		]
	}}`))
	if err != nil {
		t.Fatalf("ParseModel: %v", err)
	}

	var names []string
	doc.Root.Walk(func(n *SerializableModelNode) { names = append(names, n.Name) })
	want := []string{"Root", "A", "A1", "B"}
	if len(names) != len(want) {
		t.Fatalf("visited %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("visit %d: got %s, want %s", i, names[i], want[i])
		}
	}
	if doc.Root.Count() != 4 {
		t.Errorf("Count() = %d, want 4", doc.Root.Count())
	}
	if doc.Root.Mesh != nil {
		t.Error("root mesh should be nil")
	}
	if m := doc.Root.Children[0].Mesh; m == nil || *m != "Body" {
		t.Errorf("child mesh = %v", m)
	}
	if doc.Root.Transform.Mat4() != math.Identity() {
		t.Error("root transform should be identity")
	}
}

func TestParseAnimationLengthMismatch(t *testing.T) {
	_, err := ParseAnimation([]byte(`{"duration": 1, "curves": [
		{"bone": "hip", "timestamps": [0, 1], "keyframes": [{"scale": {"x":1,"y":1,"z":1}}]}
	]}`))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("got %v, want ErrInvalid", err)
	}
}

func TestParseAnimationSparseChannels(t *testing.T) {
	doc, err := ParseAnimation([]byte(`{"duration": 2, "curves": [
		{"bone": "hip", "timestamps": [0, 2], "keyframes": [
			{"translation": {"x":0,"y":0,"z":0}},
			{"rotation": {"x":0,"y":0,"z":0,"w":1}}
		]}
	]}`))
	if err != nil {
		t.Fatalf("ParseAnimation: %v", err)
	}
	kf := doc.Curves[0].Keyframes
	if kf[0].Translation == nil || kf[0].Rotation != nil || kf[0].Scale != nil {
		t.Errorf("keyframe 0 channels: %+v", kf[0])
	}
	if kf[1].Rotation == nil || kf[1].Translation != nil {
		t.Errorf("keyframe 1 channels: %+v", kf[1])
	}
}

func TestParseTextureAtlas(t *testing.T) {
	doc, err := ParseTextureAtlas([]byte(`{"size": {"x": 256, "y": 128}, "textures": [
		{"min": {"x": 0, "y": 0}, "max": {"x": 128, "y": 128}},
		{"min": {"x": 128, "y": 0}, "max": {"x": 256, "y": 128}}
	]}`))
	if err != nil {
		t.Fatalf("ParseTextureAtlas: %v", err)
	}
	if len(doc.Textures) != 2 {
		t.Errorf("expected 2 rects, got %d", len(doc.Textures))
	}

	_, err = ParseTextureAtlas([]byte(`{"size": {"x": 64, "y": 64}, "textures": [
		{"min": {"x": 0, "y": 0}, "max": {"x": 128, "y": 64}}
	]}`))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("out of bounds rect: got %v, want ErrInvalid", err)
	}
}
