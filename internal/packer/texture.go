package packer

import (
	"bytes"
	"fmt"

	"github.com/HugoSmits86/nativewebp"

	"github.com/Faultbox/railrush/internal/engine/material"
	"github.com/Faultbox/railrush/internal/loader"
)

// Transcode re-encodes a PNG, JPEG, WebP or TGA image as lossless WebP,
// the payload format .texture files ship with.
func Transcode(data []byte) ([]byte, error) {
	img, format, err := loader.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, material.ToNRGBA(img), nil); err != nil {
		return nil, fmt.Errorf("webp encode of %s image: %w", format, err)
	}
	return buf.Bytes(), nil
}
