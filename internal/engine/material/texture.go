package material

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/Faultbox/railrush/pkg/math"
)

// TexturePath maps a bare texture name to its asset path.
func TexturePath(name string) string {
	return "textures/" + name + ".texture"
}

// Texture is a decoded image.
type Texture struct {
	Image  *image.NRGBA
	Format string // payload format, e.g. "png", "webp", "tga"
}

// Width returns the image width in pixels.
func (t *Texture) Width() int {
	if t == nil || t.Image == nil {
		return 0
	}
	return t.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (t *Texture) Height() int {
	if t == nil || t.Image == nil {
		return 0
	}
	return t.Image.Bounds().Dy()
}

// ToNRGBA converts any image to non-premultiplied RGBA.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// TextureAtlas lays out cells inside one texture.
type TextureAtlas struct {
	Width, Height uint32
	Cells         []image.Rectangle
}

// Len returns the number of cells.
func (a *TextureAtlas) Len() int {
	return len(a.Cells)
}

// UV returns the normalized min and max texture coordinates of cell i.
func (a *TextureAtlas) UV(i int) (minUV, maxUV math.Vec2, err error) {
	if i < 0 || i >= len(a.Cells) {
		return minUV, maxUV, fmt.Errorf("atlas cell %d out of range [0,%d)", i, len(a.Cells))
	}
	if a.Width == 0 || a.Height == 0 {
		return minUV, maxUV, fmt.Errorf("atlas has empty size")
	}
	r := a.Cells[i]
	w, h := float32(a.Width), float32(a.Height)
	minUV = math.Vec2{X: float32(r.Min.X) / w, Y: float32(r.Min.Y) / h}
	maxUV = math.Vec2{X: float32(r.Max.X) / w, Y: float32(r.Max.Y) / h}
	return minUV, maxUV, nil
}
