// Package formats defines the JSON documents stored inside encrypted asset
// files: meshes, materials, model hierarchies, animations and texture atlases.
//
// Every document is decoded the same way: the container is opened with
// crypt.Open and the plaintext is parsed with the matching ParseX function.
package formats

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Document errors.
var (
	ErrMalformedJSON = errors.New("malformed asset document")
	ErrInvalid       = errors.New("invalid asset document")
)

// decode unmarshals plaintext JSON into v.
func decode[T any](data []byte, kind string) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedJSON, kind, err)
	}
	return v, nil
}

// Encode serializes a document the way the asset tools write it.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
