// Package loader converts decrypted asset documents into runtime assets.
//
// Every loader follows the same pipeline: the raw container is decrypted
// with the key supplied by the asset server, the plaintext is parsed into
// its formats.Serializable* document, and the document is converted into
// the runtime type. Serializable documents never leave this package.
package loader

import (
	"context"
	"errors"

	"github.com/Faultbox/railrush/internal/assets"
)

// Conversion errors.
var (
	ErrAttributeLength   = errors.New("vertex attribute length differs from position count")
	ErrIndexOutOfRange   = errors.New("submesh index out of range")
	ErrBindposeCount     = errors.New("bone and bindpose counts differ")
	ErrMissingMouthAtlas = errors.New("facial expression material has no mouth atlas")
	ErrUnknownTexture    = errors.New("unrecognized texture payload")
)

// Loader names, usable with assets.LoadWith.
const (
	NameMesh     = "mesh"
	NameMaterial = "material"
	NameFacial   = "facial_material"
	NameModel    = "model"
	NameAnim     = "animation"
	NameTexture  = "texture"
	NameAtlas    = "texture_atlas"
)

// Register installs every loader on s.
func Register(s *assets.Server) {
	s.Register(
		MeshLoader{},
		MaterialLoader{},
		FacialMaterialLoader{},
		ModelLoader{},
		AnimationLoader{},
		TextureLoader{},
		AtlasLoader{},
	)
}

// MeshPath returns the asset path of a mesh referenced by name.
func MeshPath(name string) string {
	return name + ".mesh"
}

// MaterialPath returns the asset path of a material referenced by name.
func MaterialPath(name string) string {
	return name + ".material"
}

// decodeDocument decrypts data and parses the plaintext. With offload set
// the decrypt runs on the server's worker pool.
func decodeDocument[T any](ctx context.Context, lc *assets.LoadContext, data []byte, parse func([]byte) (*T, error), offload bool) (*T, error) {
	var (
		plain []byte
		err   error
	)
	if offload {
		plain, err = lc.DecryptOffloaded(ctx, data)
	} else {
		plain, err = lc.Decrypt(data)
	}
	if err != nil {
		return nil, err
	}

	doc, err := parse(plain)
	if err != nil {
		return nil, assets.DecodeError(err)
	}
	return doc, nil
}
