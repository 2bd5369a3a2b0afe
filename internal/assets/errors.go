package assets

import (
	"errors"
	"fmt"
)

// Failure kinds. A LoadError matches its kind with errors.Is.
var (
	ErrIO            = errors.New("failed to read asset")
	ErrDecode        = errors.New("failed to decode asset")
	ErrCrypt         = errors.New("failed to decrypt asset")
	ErrConvert       = errors.New("failed to convert asset")
	ErrNoLoader      = errors.New("no loader for asset")
	ErrLabelNotFound = errors.New("labeled asset not produced by parent")
	ErrClosed        = errors.New("asset server closed")
)

// LoadError is the terminal error of one asset request.
type LoadError struct {
	Path string
	Kind error
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Path, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// DecodeError marks err as a document decode failure.
func DecodeError(err error) error {
	return &LoadError{Kind: ErrDecode, Err: err}
}

// ConvertError marks err as a conversion failure.
func ConvertError(err error) error {
	return &LoadError{Kind: ErrConvert, Err: err}
}

// classify attaches path to err, defaulting unclassified errors to ErrConvert.
func classify(path string, err error) *LoadError {
	var le *LoadError
	if errors.As(err, &le) {
		out := *le
		if out.Path == "" {
			out.Path = path
		}
		return &out
	}
	return &LoadError{Path: path, Kind: ErrConvert, Err: err}
}
