package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/ftrvxmtrx/tga"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
	"golang.org/x/image/webp"

	"github.com/Faultbox/railrush/internal/assets"
	"github.com/Faultbox/railrush/internal/engine/material"
	"github.com/Faultbox/railrush/pkg/formats"
)

// TextureLoader loads .texture files: an encrypted PNG, JPEG, WebP or TGA
// payload. TGA has no magic number, so anything unrecognized is tried as TGA.
type TextureLoader struct{}

func (TextureLoader) Name() string         { return NameTexture }
func (TextureLoader) Extensions() []string { return []string{"texture"} }

func (TextureLoader) Load(_ context.Context, lc *assets.LoadContext, data []byte) (any, error) {
	plain, err := lc.Decrypt(data)
	if err != nil {
		return nil, err
	}

	img, format, err := DecodeImage(plain)
	if err != nil {
		return nil, assets.DecodeError(err)
	}
	tex := &material.Texture{Image: material.ToNRGBA(img), Format: format}
	lc.Logger().Debug("texture decoded",
		zap.String("format", format),
		zap.Int("width", tex.Width()),
		zap.Int("height", tex.Height()))
	return tex, nil
}

// DecodeImage sniffs the payload format and decodes it.
func DecodeImage(data []byte) (image.Image, string, error) {
	kind, _ := filetype.Match(data)
	r := bytes.NewReader(data)

	var (
		img image.Image
		err error
	)
	format := kind.Extension
	switch format {
	case "png":
		img, err = png.Decode(r)
	case "jpg":
		img, err = jpeg.Decode(r)
	case "webp":
		img, err = webp.Decode(r)
	default:
		format = "tga"
		img, err = tga.Decode(r)
		if err != nil {
			return nil, "", fmt.Errorf("%w (sniffed %q): %v", ErrUnknownTexture, kind.Extension, err)
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s texture: %w", format, err)
	}
	return img, format, nil
}

// AtlasLoader loads .atlas files describing cells inside a texture.
type AtlasLoader struct{}

func (AtlasLoader) Name() string         { return NameAtlas }
func (AtlasLoader) Extensions() []string { return []string{"atlas"} }

func (AtlasLoader) Load(ctx context.Context, lc *assets.LoadContext, data []byte) (any, error) {
	doc, err := decodeDocument(ctx, lc, data, formats.ParseTextureAtlas, false)
	if err != nil {
		return nil, err
	}
	atlas := &material.TextureAtlas{Width: doc.Size.X, Height: doc.Size.Y}
	for _, r := range doc.Textures {
		atlas.Cells = append(atlas.Cells, image.Rect(int(r.Min.X), int(r.Min.Y), int(r.Max.X), int(r.Max.Y)))
	}
	return atlas, nil
}
